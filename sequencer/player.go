// Package sequencer drives the voice engine from parsed MIDI files: it
// merges tracks onto one timeline, tracks per-channel controller state,
// and issues every voice command with an absolute timestamp in a single
// pass over the file.
package sequencer

import (
	"go-sfplayer/debug"
	"go-sfplayer/smf"
	"go-sfplayer/soundfont"
	"go-sfplayer/synth"
)

// voiceKey identifies a sounding note for matching a later note-off.
type voiceKey struct {
	channel uint8
	note    byte
}

// Player schedules a parsed file against the voice engine.
type Player struct {
	engine   *synth.Engine
	bank     *soundfont.Bank
	channels [16]ChannelState
	active   map[voiceKey]*synth.StopHandle
	duration float64
}

// NewPlayer wires a player to an engine and the bank it resolves
// presets from.
func NewPlayer(engine *synth.Engine, bank *soundfont.Bank) *Player {
	return &Player{
		engine:   engine,
		bank:     bank,
		channels: DefaultChannels(),
		active:   make(map[voiceKey]*synth.StopHandle),
	}
}

// Schedule walks the file once in time order, updating channel state
// and issuing voice commands offset by startAt on the backend clock.
// Per-note failures are logged and skipped; they never abort the pass.
// Returns the time of the last file event relative to startAt.
func (p *Player) Schedule(f *smf.File, startAt float64) float64 {
	timeline, duration := BuildTimeline(f)
	for i := range timeline {
		te := &timeline[i]
		p.dispatch(te.Ev, startAt+te.At, te.Track)
	}
	p.duration = duration
	debug.Log("sched", "scheduled %d events over %.2fs", len(timeline), duration)
	return duration
}

// Duration returns the length reported by the last Schedule call.
func (p *Player) Duration() float64 {
	return p.duration
}

// CancelAll silences every voice the player has started and forgets its
// note bookkeeping.
func (p *Player) CancelAll() {
	p.engine.CancelAll()
	p.active = make(map[voiceKey]*synth.StopHandle)
}

func (p *Player) dispatch(ev smf.Event, at float64, track int) {
	switch ev.Type {
	case smf.MsgNoteOn:
		if ev.D2 == 0 {
			// Running-status shorthand: note-on at velocity zero releases.
			p.noteOff(ev.Channel, ev.D1, at)
			return
		}
		p.noteOn(ev.Channel, ev.D1, ev.D2, at, track)
	case smf.MsgNoteOff:
		p.noteOff(ev.Channel, ev.D1, at)
	case smf.MsgController:
		p.controller(ev.Channel, ev.D1, ev.D2)
	case smf.MsgProgramChange:
		p.channels[ev.Channel].Program = int(ev.D1)
	case smf.MsgPitchBend:
		p.channels[ev.Channel].PitchBend = (int(ev.D2)<<7 | int(ev.D1)) - 8192
	}
}

func (p *Player) noteOn(ch uint8, note, vel byte, at float64, track int) {
	cs := &p.channels[ch]
	preset, err := p.bank.PresetByProgram(cs.Program)
	if err != nil {
		debug.Log("sched", "track %d ch %d note %d: %v", track, ch, note, err)
		return
	}
	matches := p.bank.Resolve(preset, int(note), int(vel))
	h := p.engine.NoteOn(matches, cs.control(), int(note), int(vel), at)
	// A retrigger while the same note is sounding replaces the handle
	// without stopping the old voice; the earlier one rings on to its
	// natural end and only the newest responds to the note-off.
	p.active[voiceKey{ch, note}] = h
}

func (p *Player) noteOff(ch uint8, note byte, at float64) {
	key := voiceKey{ch, note}
	if h, ok := p.active[key]; ok {
		p.engine.Stop(h, at)
		delete(p.active, key)
	}
}

func (p *Player) controller(ch uint8, cc, value byte) {
	cs := &p.channels[ch]
	switch cc {
	case smf.CCBankMSB:
		cs.BankMSB = int(value)
	case smf.CCBankLSB:
		cs.BankLSB = int(value)
	case smf.CCVolume:
		cs.Volume = int(value)
	case smf.CCPan:
		cs.Pan = int(value)
	case smf.CCExpression:
		cs.Expression = int(value)
	case smf.CCModulation:
		cs.Modulation = int(value)
	}
}
