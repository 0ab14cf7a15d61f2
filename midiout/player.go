package midiout

import (
	"runtime"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-sfplayer/debug"
	"go-sfplayer/sequencer"
	"go-sfplayer/smf"
)

// Player walks a file's timeline against the wall clock and sends each
// event to a MIDI port as its time comes up.
type Player struct {
	send     func(gomidi.Message) error
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewPlayer wraps a port sender in a player.
func NewPlayer(send func(gomidi.Message) error) *Player {
	return &Player{
		send:     send,
		stopChan: make(chan struct{}),
	}
}

// Play streams the file to the port in real time, blocking until the
// last event has been sent or Stop interrupts it. Tempo changes are
// already folded into the timeline, so metas are simply skipped here.
func (p *Player) Play(f *smf.File) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	timeline, duration := sequencer.BuildTimeline(f)
	debug.Log("midi", "streaming %d events over %.2fs", len(timeline), duration)

	start := time.Now()
	for i := range timeline {
		te := &timeline[i]
		wait := time.Until(start.Add(time.Duration(te.At * float64(time.Second))))
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-p.stopChan:
				timer.Stop()
				p.silence()
				return nil
			case <-timer.C:
			}
		}
		if err := p.dispatch(te.Ev); err != nil {
			return err
		}
	}
	return nil
}

// Stop interrupts a running Play and silences all channels.
func (p *Player) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
}

func (p *Player) dispatch(ev smf.Event) error {
	switch ev.Type {
	case smf.MsgNoteOn:
		if ev.D2 == 0 {
			return p.send(gomidi.NoteOff(ev.Channel, ev.D1))
		}
		return p.send(gomidi.NoteOn(ev.Channel, ev.D1, ev.D2))
	case smf.MsgNoteOff:
		return p.send(gomidi.NoteOff(ev.Channel, ev.D1))
	case smf.MsgController:
		return p.send(gomidi.ControlChange(ev.Channel, ev.D1, ev.D2))
	case smf.MsgProgramChange:
		return p.send(gomidi.ProgramChange(ev.Channel, ev.D1))
	case smf.MsgPitchBend:
		bend := int16(int(ev.D2)<<7|int(ev.D1)) - 8192
		return p.send(gomidi.Pitchbend(ev.Channel, bend))
	case smf.StatusSysEx:
		// The file payload keeps the trailing 0xF7; gomidi adds its own
		// framing bytes.
		data := ev.Payload
		if n := len(data); n > 0 && data[n-1] == 0xF7 {
			data = data[:n-1]
		}
		return p.send(gomidi.SysEx(data))
	}
	return nil
}

// silence sends all-notes-off on every channel.
func (p *Player) silence() {
	for ch := uint8(0); ch < 16; ch++ {
		p.send(gomidi.ControlChange(ch, 123, 0))
	}
}
