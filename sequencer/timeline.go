package sequencer

import (
	"sort"

	"go-sfplayer/debug"
	"go-sfplayer/smf"
)

// defaultTempo is the microseconds-per-quarter-note a file starts at,
// 120 BPM, until the first tempo meta event.
const defaultTempo = 500000

// TimedEvent is one file event placed on the absolute time axis.
type TimedEvent struct {
	At    float64 // seconds from the start of the file
	Tick  int64
	Track int
	Ev    smf.Event
}

// BuildTimeline merges every track onto one tick axis, then walks tempo
// changes in order to give each event an absolute time in seconds.
// Events at equal ticks keep track order, and within a track their file
// order, so a tempo change placed before a note in the file also takes
// effect first here. Returns the merged events and the time of the last
// one.
func BuildTimeline(f *smf.File) ([]TimedEvent, float64) {
	var out []TimedEvent
	for ti := range f.Tracks {
		var tick int64
		for _, ev := range f.Tracks[ti].Events {
			tick += int64(ev.Delta)
			out = append(out, TimedEvent{Tick: tick, Track: ti, Ev: ev})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Tick < out[j].Tick })

	tempo := float64(defaultTempo)
	div := float64(f.Division)
	var prevTick int64
	var at float64
	for i := range out {
		e := &out[i]
		at += float64(e.Tick-prevTick) * tempo / 1e6 / div
		prevTick = e.Tick
		e.At = at
		if e.Ev.Type == smf.StatusMeta && e.Ev.MetaType == smf.MetaTempo {
			if len(e.Ev.Payload) == 3 {
				tempo = float64(int(e.Ev.Payload[0])<<16 |
					int(e.Ev.Payload[1])<<8 | int(e.Ev.Payload[2]))
				debug.Log("sched", "tempo %.0f us/qn at tick %d", tempo, e.Tick)
			} else {
				debug.Log("sched", "tempo meta with %d bytes ignored at tick %d",
					len(e.Ev.Payload), e.Tick)
			}
		}
	}
	return out, at
}
