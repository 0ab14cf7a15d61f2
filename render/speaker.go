package render

import (
	"github.com/ebitengine/oto/v3"
	"github.com/pkg/errors"

	"go-sfplayer/debug"
)

// Speaker streams a graph to the sound card. The graph clock advances
// as the device consumes frames, so voice commands scheduled on it play
// out in real time.
type Speaker struct {
	ctx    *oto.Context
	player *oto.Player
	graph  *Graph
}

// NewSpeaker opens the audio device at the given rate and returns the
// speaker together with the graph it will play.
func NewSpeaker(rate int) (*Speaker, error) {
	op := &oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, errors.Wrap(err, "opening audio device")
	}
	<-ready

	g := NewGraph(float64(rate))
	s := &Speaker{ctx: ctx, graph: g}
	s.player = ctx.NewPlayer(&graphStream{graph: g})
	debug.Log("render", "audio device ready at %d Hz", rate)
	return s, nil
}

// Graph returns the graph this speaker is playing.
func (s *Speaker) Graph() *Graph { return s.graph }

// Start begins pulling frames from the graph.
func (s *Speaker) Start() { s.player.Play() }

// Pause stops consuming frames; the graph clock freezes with it.
func (s *Speaker) Pause() { s.player.Pause() }

// Playing reports whether the device is consuming frames.
func (s *Speaker) Playing() bool { return s.player.IsPlaying() }

// Close stops playback and releases the device.
func (s *Speaker) Close() error {
	return s.player.Close()
}

// graphStream adapts the graph to the byte stream the device consumes:
// interleaved signed 16-bit little-endian stereo.
type graphStream struct {
	graph   *Graph
	scratch [][2]float32
}

func (gs *graphStream) Read(p []byte) (int, error) {
	frames := len(p) / 4
	if frames == 0 {
		return 0, nil
	}
	if cap(gs.scratch) < frames {
		gs.scratch = make([][2]float32, frames)
	}
	buf := gs.scratch[:frames]
	gs.graph.Process(buf)
	for i, fr := range buf {
		l := uint16(int16(clip16(fr[0])))
		r := uint16(int16(clip16(fr[1])))
		p[4*i] = byte(l)
		p[4*i+1] = byte(l >> 8)
		p[4*i+2] = byte(r)
		p[4*i+3] = byte(r >> 8)
	}
	return frames * 4, nil
}
