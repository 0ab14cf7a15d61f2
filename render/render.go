package render

import (
	"math"

	"go-sfplayer/debug"
	"go-sfplayer/sequencer"
	"go-sfplayer/smf"
	"go-sfplayer/soundfont"
	"go-sfplayer/synth"
)

// Options control an offline render.
type Options struct {
	SampleRate int     // output rate in Hz
	Gain       float64 // master gain, linear
	Tail       float64 // seconds appended after the last voice ends
}

// DefaultOptions returns the render settings used when nothing is
// configured.
func DefaultOptions() Options {
	return Options{SampleRate: 44100, Gain: 0.5, Tail: 0.5}
}

// Rendered is a finished offline mix.
type Rendered struct {
	Rate   int
	Frames [][2]float32
}

// Duration returns the mix length in seconds.
func (r *Rendered) Duration() float64 {
	return float64(len(r.Frames)) / float64(r.Rate)
}

// RenderFile plays a parsed file through a fresh graph and returns the
// stereo mix. The buffer runs to the later of the last file event and
// the last voice teardown, plus the configured tail.
func RenderFile(bank *soundfont.Bank, f *smf.File, opts Options) *Rendered {
	g := NewGraph(float64(opts.SampleRate))
	eng := synth.NewEngine(g, bank, opts.Gain)
	player := sequencer.NewPlayer(eng, bank)

	end := player.Schedule(f, 0)
	if e := eng.LastEnd(); e > end {
		end = e
	}
	end += opts.Tail

	frames := int(math.Ceil(end * float64(opts.SampleRate)))
	out := make([][2]float32, frames)
	g.Process(out)
	debug.Log("render", "rendered %d frames at %d Hz (%.2fs)", frames, opts.SampleRate, end)
	return &Rendered{Rate: opts.SampleRate, Frames: out}
}
