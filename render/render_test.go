package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"

	"go-sfplayer/smf"
	"go-sfplayer/soundfont"
)

// renderBank is one full-range preset over a steady 64-frame tone.
func renderBank() *soundfont.Bank {
	full := soundfont.Range{Lo: 0, Hi: 127}
	pcm := make([]int16, 64)
	for i := range pcm {
		pcm[i] = 16000
	}
	return &soundfont.Bank{
		Samples: []soundfont.Sample{
			{Name: "tone", Start: 0, End: 64, LoopStart: 0, LoopEnd: 64,
				Rate: 44100, OriginalPitch: 60, Type: soundfont.SampleMono},
		},
		Instruments: []soundfont.Instrument{
			{Name: "tone", Zones: []soundfont.Zone{
				{KeyRange: full, VelRange: full, SampleIndex: 0, InstIndex: -1,
					Gens: []soundfont.Generator{{Op: soundfont.OpSampleModes, Amount: 1}}},
			}},
		},
		Presets: []soundfont.Preset{
			{Name: "tone", Program: 0, Zones: []soundfont.Zone{
				{KeyRange: full, VelRange: full, SampleIndex: -1, InstIndex: 0},
			}},
		},
		PCM: pcm,
	}
}

func renderFile() *smf.File {
	ev := func(delta uint32, typ byte, d1, d2 byte) smf.Event {
		return smf.Event{Delta: delta, Status: typ << 4, Type: typ, D1: d1, D2: d2}
	}
	return &smf.File{Format: 0, Division: 48, Tracks: []smf.Track{{Events: []smf.Event{
		ev(0, smf.MsgNoteOn, 60, 127),
		ev(24, smf.MsgNoteOff, 60, 0),
	}}}}
}

func TestRenderFile(t *testing.T) {
	opts := Options{SampleRate: 8000, Gain: 1, Tail: 0.1}
	r := RenderFile(renderBank(), renderFile(), opts)

	if r.Rate != 8000 {
		t.Errorf("rate: got %d, want 8000", r.Rate)
	}
	// The note-off falls at 0.25s; release and teardown and tail follow.
	if got := r.Duration(); got < 0.35 {
		t.Errorf("duration: got %v, want at least 0.35s", got)
	}

	var energy float64
	for _, fr := range r.Frames {
		if fr[0] < 0 {
			energy -= float64(fr[0])
		} else {
			energy += float64(fr[0])
		}
	}
	if energy == 0 {
		t.Error("render produced silence")
	}

	// The tail after every voice has been torn down is silent.
	last := r.Frames[len(r.Frames)-1]
	if last[0] != 0 || last[1] != 0 {
		t.Errorf("tail not silent: %v", last)
	}
}

func TestWriteWAV(t *testing.T) {
	r := RenderFile(renderBank(), renderFile(), Options{SampleRate: 8000, Gain: 1, Tail: 0.1})
	path := filepath.Join(t.TempDir(), "out.wav")
	if err := WriteWAV(path, r); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	d := wav.NewDecoder(f)
	d.ReadInfo()
	if !d.IsValidFile() {
		t.Fatal("decoder rejects the written file")
	}
	if d.SampleRate != 8000 || d.NumChans != 2 || d.BitDepth != 16 {
		t.Errorf("format: got %d Hz %d ch %d bit", d.SampleRate, d.NumChans, d.BitDepth)
	}
}
