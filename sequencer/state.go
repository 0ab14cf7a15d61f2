package sequencer

import "go-sfplayer/synth"

// ChannelState tracks the controller values of one MIDI channel. Voices
// snapshot these at note-on; later controller moves do not retune notes
// that are already sounding.
type ChannelState struct {
	Program    int
	BankMSB    int // CC 0, recorded but not used for preset lookup
	BankLSB    int // CC 32
	Volume     int // CC 7
	Expression int // CC 11
	Pan        int // CC 10
	Modulation int // CC 1
	PitchBend  int // centered, -8192..8191
}

// DefaultChannels returns the sixteen channel states a fresh player
// starts with.
func DefaultChannels() [16]ChannelState {
	var chs [16]ChannelState
	for i := range chs {
		chs[i] = ChannelState{Volume: 100, Expression: 127, Pan: 64}
	}
	return chs
}

// control snapshots the state as a voice trigger parameter set.
func (c *ChannelState) control() synth.Control {
	return synth.Control{
		Volume:     c.Volume,
		Expression: c.Expression,
		Pan:        c.Pan,
		Modulation: c.Modulation,
		PitchBend:  c.PitchBend,
	}
}
