package riff

import (
	"encoding/binary"
	"testing"
)

// chunk builds tag + little-endian size + payload, padding to even length.
func chunk(tag string, payload []byte) []byte {
	out := make([]byte, 0, 8+len(payload)+1)
	out = append(out, tag...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	out = append(out, payload...)
	if len(payload)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

// container builds a RIFF/LIST chunk wrapping a form type and children.
func container(tag, form string, kids ...[]byte) []byte {
	body := []byte(form)
	for _, k := range kids {
		body = append(body, k...)
	}
	return chunk(tag, body)
}

func TestParseLeaves(t *testing.T) {
	t.Run("even_and_odd_sizes", func(t *testing.T) {
		data := append(chunk("aaaa", []byte{1, 2, 3, 4}), chunk("bbbb", []byte{9, 9, 9})...)
		dir, err := Parse(data, 0, len(data))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		a, ok := dir.Leaf("aaaa")
		if !ok {
			t.Fatal("missing chunk aaaa")
		}
		if a.Off != 8 || a.Size != 4 {
			t.Errorf("aaaa: got off=%d size=%d, want off=8 size=4", a.Off, a.Size)
		}
		// The odd-sized sibling starts after a pad-free even chunk: 8+4.
		b, ok := dir.Leaf("bbbb")
		if !ok {
			t.Fatal("missing chunk bbbb")
		}
		if b.Off != 12+8 || b.Size != 3 {
			t.Errorf("bbbb: got off=%d size=%d, want off=20 size=3", b.Off, b.Size)
		}
		if got := b.Data(); len(got) != 3 || got[0] != 9 {
			t.Errorf("bbbb data: got %v", got)
		}
	})

	t.Run("odd_chunk_pads_before_next_sibling", func(t *testing.T) {
		data := append(chunk("odd ", []byte{7}), chunk("next", []byte{1, 2})...)
		dir, err := Parse(data, 0, len(data))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		n, ok := dir.Leaf("next")
		if !ok {
			t.Fatal("missing chunk next: pad byte not skipped")
		}
		// odd chunk consumes 8+1+1 bytes, so the sibling header starts at 10.
		if n.Off != 10+8 {
			t.Errorf("next: got off=%d, want 18", n.Off)
		}
	})
}

func TestParseContainers(t *testing.T) {
	inner := append(chunk("smpl", []byte{0, 0, 0, 0}), chunk("shdr", make([]byte, 46))...)
	data := container("RIFF", "sfbk",
		container("LIST", "sdta", inner),
	)
	dir, err := Parse(data, 0, len(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	top, ok := dir.Sub("sfbk")
	if !ok {
		t.Fatal("missing sfbk container")
	}
	sdta, ok := top.Sub("sdta")
	if !ok {
		t.Fatal("missing sdta container: containers must be keyed by form type")
	}
	if _, ok := sdta.Leaf("smpl"); !ok {
		t.Error("missing smpl leaf inside sdta")
	}
	if _, ok := sdta.Leaf("shdr"); !ok {
		t.Error("missing shdr leaf inside sdta")
	}
	if n := dir["sfbk"]; n.Tag != "RIFF" || n.Form != "sfbk" {
		t.Errorf("container node: got tag=%q form=%q", n.Tag, n.Form)
	}
}

func TestParseErrors(t *testing.T) {
	t.Run("size_past_end", func(t *testing.T) {
		data := []byte("data") // tag only
		data = binary.LittleEndian.AppendUint32(data, 100)
		data = append(data, 1, 2, 3)
		if _, err := Parse(data, 0, len(data)); err == nil {
			t.Fatal("want bounds error for size past end, got nil")
		}
	})

	t.Run("truncated_header", func(t *testing.T) {
		data := []byte("dat") // not even a full tag
		if _, err := Parse(data, 0, len(data)); err == nil {
			t.Fatal("want bounds error for truncated header, got nil")
		}
	})

	t.Run("binary_garbage_tag", func(t *testing.T) {
		data := []byte{0x00, 0x01, 0x02, 0x03}
		data = binary.LittleEndian.AppendUint32(data, 0)
		if _, err := Parse(data, 0, len(data)); err == nil {
			t.Fatal("want format error for non-ASCII tag, got nil")
		}
	})

	t.Run("container_too_small_for_form", func(t *testing.T) {
		data := []byte("LIST")
		data = binary.LittleEndian.AppendUint32(data, 2)
		data = append(data, 'a', 'b')
		if _, err := Parse(data, 0, len(data)); err == nil {
			t.Fatal("want format error for short container, got nil")
		}
	})
}
