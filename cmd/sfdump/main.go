package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/davecgh/go-spew/spew"

	"go-sfplayer/sequencer"
	"go-sfplayer/smf"
	"go-sfplayer/soundfont"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "info":
		info(bankArg(2))
	case "presets":
		presets(bankArg(2))
	case "samples":
		samples(bankArg(2))
	case "match":
		match()
	case "dump":
		dump(bankArg(2))
	case "smf":
		smfSummary()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("Sound bank and MIDI file inspector")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  info bank.sf2                 - bank identity and table sizes")
	fmt.Println("  presets bank.sf2              - preset list")
	fmt.Println("  samples bank.sf2              - sample table")
	fmt.Println("  match bank.sf2 prog key vel   - resolved zones for one note")
	fmt.Println("  dump bank.sf2                 - full decoded tables")
	fmt.Println("  smf song.mid                  - MIDI file summary")
}

func bankArg(i int) *soundfont.Bank {
	if len(os.Args) <= i {
		usage()
		os.Exit(2)
	}
	data, err := os.ReadFile(os.Args[i])
	if err != nil {
		fatalf("%v", err)
	}
	b, err := soundfont.Load(data)
	if err != nil {
		fatalf("reading %s: %v", os.Args[i], err)
	}
	return b
}

func info(b *soundfont.Bank) {
	name := b.Name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Printf("bank:        %s\n", name)
	fmt.Printf("presets:     %d\n", len(b.Presets))
	fmt.Printf("instruments: %d\n", len(b.Instruments))
	fmt.Printf("samples:     %d\n", len(b.Samples))
	fmt.Printf("pcm frames:  %d\n", len(b.PCM))
}

func presets(b *soundfont.Bank) {
	idx := make([]int, len(b.Presets))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool {
		a, c := b.Presets[idx[i]], b.Presets[idx[j]]
		if a.Bank != c.Bank {
			return a.Bank < c.Bank
		}
		return a.Program < c.Program
	})
	for _, i := range idx {
		p := b.Presets[i]
		fmt.Printf("%3d:%-3d %-20s %d zones\n", p.Bank, p.Program, p.Name, len(p.Zones))
	}
}

func samples(b *soundfont.Bank) {
	for i, s := range b.Samples {
		fmt.Printf("%4d %-20s %6d Hz  root %3d  %d..%d loop %d..%d  %s\n",
			i, s.Name, s.Rate, s.OriginalPitch, s.Start, s.End, s.LoopStart, s.LoopEnd, sampleType(s.Type))
	}
}

func sampleType(t uint16) string {
	base := "mono"
	switch {
	case t&soundfont.SampleRight != 0:
		base = "right"
	case t&soundfont.SampleLeft != 0:
		base = "left"
	case t&soundfont.SampleLinked != 0:
		base = "linked"
	}
	if t&0x8000 != 0 {
		base += " rom"
	}
	return base
}

// match resolves one note the way playback would and lists every
// generator that differs from its default.
func match() {
	if len(os.Args) < 6 {
		usage()
		os.Exit(2)
	}
	b := bankArg(2)
	prog := intArg(3)
	key := intArg(4)
	vel := intArg(5)

	preset, err := b.PresetByProgram(prog)
	if err != nil {
		fatalf("%v", err)
	}
	matches := b.Resolve(preset, key, vel)
	fmt.Printf("%s: key %d vel %d -> %d match(es)\n", preset.Name, key, vel, len(matches))

	defaults := soundfont.DefaultGens()
	for _, m := range matches {
		s := b.Samples[m.SampleIndex]
		fmt.Printf("\n  sample %d %q  %d Hz  root %d\n", m.SampleIndex, s.Name, s.Rate, s.OriginalPitch)
		for op := uint16(0); int(op) < soundfont.OpCount; op++ {
			in := soundfont.Describe(op)
			if in.Name == "" {
				continue
			}
			amt := m.Gens.Amount(op)
			if amt == defaults.Amount(op) {
				continue
			}
			fmt.Printf("    %-24s %6d %s\n", in.Name, amt, in.Unit)
		}
	}
}

// dump prints every decoded table. The PCM pool is elided; its length is
// in the info output.
func dump(b *soundfont.Bank) {
	tables := *b
	tables.PCM = nil
	spew.Dump(tables)
}

func smfSummary() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(2)
	}
	data, err := os.ReadFile(os.Args[2])
	if err != nil {
		fatalf("%v", err)
	}
	f, err := smf.Parse(data)
	if err != nil {
		fatalf("reading %s: %v", os.Args[2], err)
	}

	fmt.Printf("format %d, %d track(s), %d ticks/quarter\n", f.Format, len(f.Tracks), f.Division)

	events, last := sequencer.BuildTimeline(f)
	notes := 0
	for _, ev := range events {
		if ev.Ev.Type == smf.MsgNoteOn && ev.Ev.D2 > 0 {
			notes++
		}
	}
	fmt.Printf("%d events, %d notes, %.1fs\n", len(events), notes, last)

	for i, tr := range f.Tracks {
		channel, meta, sysex := 0, 0, 0
		for _, ev := range tr.Events {
			switch {
			case ev.Status == smf.StatusMeta:
				meta++
			case ev.Status == smf.StatusSysEx || ev.Status == smf.StatusSysExCont:
				sysex++
			default:
				channel++
			}
		}
		fmt.Printf("  track %d: %d channel, %d meta, %d sysex\n", i, channel, meta, sysex)
	}
}

func intArg(i int) int {
	v, err := strconv.Atoi(os.Args[i])
	if err != nil {
		fatalf("bad number %q", os.Args[i])
	}
	return v
}

func fatalf(format string, args ...any) {
	fmt.Printf("Error: "+format+"\n", args...)
	os.Exit(1)
}
