package soundfont

import (
	"encoding/binary"
	"testing"
)

// Fixture builders. Records follow the fixed widths of the pdta tables;
// chunks follow the even-padded RIFF layout.

func chunk(tag string, payload []byte) []byte {
	out := append([]byte(tag), u32(uint32(len(payload)))...)
	out = append(out, payload...)
	if len(payload)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

func list(form string, kids ...[]byte) []byte {
	body := []byte(form)
	for _, k := range kids {
		body = append(body, k...)
	}
	return chunk("LIST", body)
}

func u16(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }
func u32(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }

func name20(s string) []byte {
	out := make([]byte, 20)
	copy(out, s)
	return out
}

func phdrRec(name string, prog, bank, bagIdx uint16) []byte {
	out := name20(name)
	out = append(out, u16(prog)...)
	out = append(out, u16(bank)...)
	out = append(out, u16(bagIdx)...)
	out = append(out, make([]byte, 12)...) // library, genre, morphology
	return out
}

func instRec(name string, bagIdx uint16) []byte {
	return append(name20(name), u16(bagIdx)...)
}

func shdrRec(name string, start, end, loopStart, loopEnd, rate uint32, pitch uint8, corr int8, link, typ uint16) []byte {
	out := name20(name)
	for _, v := range []uint32{start, end, loopStart, loopEnd, rate} {
		out = append(out, u32(v)...)
	}
	out = append(out, pitch, byte(corr))
	out = append(out, u16(link)...)
	out = append(out, u16(typ)...)
	return out
}

func bagRecBytes(gen, mod uint16) []byte {
	return append(u16(gen), u16(mod)...)
}

func genRec(op uint16, amount int16) []byte {
	return append(u16(op), u16(uint16(amount))...)
}

func pcmBytes(frames ...int16) []byte {
	var out []byte
	for _, f := range frames {
		out = append(out, u16(uint16(f))...)
	}
	return out
}

// minimalBank builds one preset ("Piano", program 0) whose single zone
// references one instrument ("Flute") whose single zone covers keys 40-80
// and references sample 0.
func minimalBank() []byte {
	info := list("INFO", chunk("INAM", []byte("Test Tones\x00")))
	smpl := chunk("smpl", pcmBytes(100, 200, 300, 400, -100, -200, -300, -400))

	shdr := chunk("shdr", append(
		shdrRec("sine", 0, 8, 2, 6, 22050, 60, 0, 0, SampleMono),
		shdrRec("EOS", 0, 0, 0, 0, 0, 0, 0, 0, 0)...))

	inst := chunk("inst", append(instRec("Flute", 0), instRec("EOI", 1)...))
	ibag := chunk("ibag", append(bagRecBytes(0, 0), bagRecBytes(2, 0)...))
	igen := chunk("igen", append(append(
		genRec(OpKeyRange, int16(40|80<<8)),
		genRec(OpSampleID, 0)...),
		genRec(0, 0)...))
	imod := chunk("imod", make([]byte, modSize))

	phdr := chunk("phdr", append(phdrRec("Piano", 0, 0, 0), phdrRec("EOP", 0, 0, 1)...))
	pbag := chunk("pbag", append(bagRecBytes(0, 0), bagRecBytes(1, 0)...))
	pgen := chunk("pgen", append(genRec(OpInstrument, 0), genRec(0, 0)...))
	pmod := chunk("pmod", make([]byte, modSize))

	body := append([]byte("sfbk"), info...)
	body = append(body, list("sdta", smpl)...)
	body = append(body, list("pdta", phdr, pbag, pgen, pmod, inst, ibag, igen, imod, shdr)...)
	return chunk("RIFF", body)
}

func TestLoadMinimalBank(t *testing.T) {
	b, err := Load(minimalBank())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	t.Run("name", func(t *testing.T) {
		if b.Name != "Test Tones" {
			t.Errorf("bank name: got %q, want %q", b.Name, "Test Tones")
		}
	})

	t.Run("samples", func(t *testing.T) {
		if len(b.Samples) != 1 {
			t.Fatalf("got %d samples, want 1 (terminal record excluded)", len(b.Samples))
		}
		s := b.Samples[0]
		if s.Name != "sine" || s.Start != 0 || s.End != 8 || s.LoopStart != 2 || s.LoopEnd != 6 {
			t.Errorf("sample fields: %+v", s)
		}
		if s.Rate != 22050 || s.OriginalPitch != 60 || s.Type != SampleMono {
			t.Errorf("sample fields: %+v", s)
		}
		data, err := b.SampleData(0)
		if err != nil {
			t.Fatalf("sample data: %v", err)
		}
		if len(data) != 8 || data[0] != 100 || data[7] != -400 {
			t.Errorf("pcm: got %v", data)
		}
	})

	t.Run("instruments", func(t *testing.T) {
		if len(b.Instruments) != 1 {
			t.Fatalf("got %d instruments, want 1", len(b.Instruments))
		}
		in := b.Instruments[0]
		if in.Name != "Flute" || len(in.Zones) != 1 {
			t.Fatalf("instrument: %+v", in)
		}
		z := in.Zones[0]
		if z.KeyRange != (Range{40, 80}) {
			t.Errorf("key range: got %+v, want {40 80}", z.KeyRange)
		}
		if z.VelRange != (Range{0, 127}) {
			t.Errorf("vel range: got %+v, want default {0 127}", z.VelRange)
		}
		if z.SampleIndex != 0 || z.InstIndex != -1 {
			t.Errorf("zone refs: sample=%d inst=%d", z.SampleIndex, z.InstIndex)
		}
	})

	t.Run("presets", func(t *testing.T) {
		if len(b.Presets) != 1 {
			t.Fatalf("got %d presets, want 1", len(b.Presets))
		}
		p := b.Presets[0]
		if p.Name != "Piano" || p.Program != 0 || len(p.Zones) != 1 {
			t.Fatalf("preset: %+v", p)
		}
		if p.Zones[0].InstIndex != 0 || p.Zones[0].SampleIndex != -1 {
			t.Errorf("preset zone refs: %+v", p.Zones[0])
		}
	})
}

func TestPresetCountExcludesSentinel(t *testing.T) {
	// Five 38-byte records decode to four presets.
	var phdr []byte
	for i := 0; i < 4; i++ {
		phdr = append(phdr, phdrRec("P", uint16(i), 0, 0)...)
	}
	phdr = append(phdr, phdrRec("EOP", 0, 0, 0)...)
	if len(phdr) != 38*5 {
		t.Fatalf("fixture: phdr size %d, want %d", len(phdr), 38*5)
	}

	data := chunk("RIFF", append([]byte("sfbk"),
		append(list("sdta", chunk("smpl", pcmBytes(0, 0))),
			list("pdta",
				chunk("phdr", phdr),
				chunk("pbag", bagRecBytes(0, 0)),
				chunk("pgen", genRec(0, 0)),
				chunk("pmod", make([]byte, modSize)),
				chunk("inst", append(instRec("I", 0), instRec("EOI", 0)...)),
				chunk("ibag", bagRecBytes(0, 0)),
				chunk("igen", genRec(0, 0)),
				chunk("imod", make([]byte, modSize)),
				chunk("shdr", append(shdrRec("S", 0, 0, 0, 0, 0, 0, 0, 0, 0), shdrRec("EOS", 0, 0, 0, 0, 0, 0, 0, 0, 0)...)),
			)...)...))

	b, err := Load(data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(b.Presets) != 4 {
		t.Errorf("got %d presets, want 4", len(b.Presets))
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("wrong_top_form", func(t *testing.T) {
		data := chunk("RIFF", append([]byte("WAVE"), chunk("fmt ", make([]byte, 16))...))
		if _, err := Load(data); err == nil {
			t.Fatal("want format error for non-sfbk container, got nil")
		}
	})

	t.Run("missing_pdta", func(t *testing.T) {
		data := chunk("RIFF", append([]byte("sfbk"), list("sdta", chunk("smpl", pcmBytes(0)))...))
		if _, err := Load(data); err == nil {
			t.Fatal("want format error for missing pdta, got nil")
		}
	})

	t.Run("missing_smpl", func(t *testing.T) {
		data := chunk("RIFF", append([]byte("sfbk"), list("sdta", chunk("junk", nil))...))
		if _, err := Load(data); err == nil {
			t.Fatal("want format error for missing smpl leaf, got nil")
		}
	})

	t.Run("bag_index_past_table", func(t *testing.T) {
		// Instrument bag range [0, 9) with a two-record bag table.
		data := chunk("RIFF", append([]byte("sfbk"),
			append(list("sdta", chunk("smpl", pcmBytes(0, 0))),
				list("pdta",
					chunk("phdr", append(phdrRec("P", 0, 0, 0), phdrRec("EOP", 0, 0, 0)...)),
					chunk("pbag", bagRecBytes(0, 0)),
					chunk("pgen", genRec(0, 0)),
					chunk("pmod", make([]byte, modSize)),
					chunk("inst", append(instRec("I", 0), instRec("EOI", 9)...)),
					chunk("ibag", append(bagRecBytes(0, 0), bagRecBytes(0, 0)...)),
					chunk("igen", genRec(0, 0)),
					chunk("imod", make([]byte, modSize)),
					chunk("shdr", append(shdrRec("S", 0, 0, 0, 0, 0, 0, 0, 0, 0), shdrRec("EOS", 0, 0, 0, 0, 0, 0, 0, 0, 0)...)),
				)...)...))
		if _, err := Load(data); err == nil {
			t.Fatal("want reference error for bag index past table, got nil")
		}
	})
}

func TestZoneCountsFromBagIndices(t *testing.T) {
	// One instrument with bag range [0, 2): two zones, each one generator.
	igen := append(append(genRec(OpSampleID, 0), genRec(OpSampleID, 0)...), genRec(0, 0)...)
	ibag := append(append(bagRecBytes(0, 0), bagRecBytes(1, 0)...), bagRecBytes(2, 0)...)

	data := chunk("RIFF", append([]byte("sfbk"),
		append(list("sdta", chunk("smpl", pcmBytes(0, 0))),
			list("pdta",
				chunk("phdr", append(phdrRec("P", 0, 0, 0), phdrRec("EOP", 0, 0, 1)...)),
				chunk("pbag", append(bagRecBytes(0, 0), bagRecBytes(1, 0)...)),
				chunk("pgen", append(genRec(OpInstrument, 0), genRec(0, 0)...)),
				chunk("pmod", make([]byte, modSize)),
				chunk("inst", append(instRec("I", 0), instRec("EOI", 2)...)),
				chunk("ibag", ibag),
				chunk("igen", igen),
				chunk("imod", make([]byte, modSize)),
				chunk("shdr", append(shdrRec("S", 0, 2, 0, 2, 44100, 60, 0, 0, SampleMono), shdrRec("EOS", 0, 0, 0, 0, 0, 0, 0, 0, 0)...)),
			)...)...))

	b, err := Load(data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := len(b.Instruments[0].Zones); got != 2 {
		t.Errorf("got %d zones, want 2 from bag index subtraction", got)
	}
}
