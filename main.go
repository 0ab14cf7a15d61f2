package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"go-sfplayer/config"
	"go-sfplayer/debug"
	"go-sfplayer/midiout"
	"go-sfplayer/render"
	"go-sfplayer/sequencer"
	"go-sfplayer/smf"
	"go-sfplayer/soundfont"
	"go-sfplayer/synth"
	"go-sfplayer/theme"
	"go-sfplayer/tui"
)

// scheduleLead is the silence before the first event when playing live,
// so the earliest notes are not scheduled in the past.
const scheduleLead = 0.1

func main() {
	debug.EnableFromEnv()

	cfg, err := config.Load()
	if err != nil {
		fatalf("loading config: %v", err)
	}

	bankPath := flag.String("sf2", cfg.BankPath, "sound bank file")
	outPath := flag.String("o", "", "render to a WAV file instead of playing")
	port := flag.String("port", "", "play through a hardware MIDI output port")
	listPorts := flag.Bool("list-ports", false, "list MIDI output ports and exit")
	rate := flag.Int("rate", cfg.Audio.SampleRate, "output sample rate")
	gain := flag.Float64("gain", cfg.Audio.Gain, "master gain")
	quiet := flag.Bool("quiet", false, "play without the interface")
	flag.Usage = usage
	flag.Parse()

	if *listPorts {
		ports, err := midiout.Ports()
		if err != nil {
			fatalf("%v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	midiPath := flag.Arg(0)

	data, err := os.ReadFile(midiPath)
	if err != nil {
		fatalf("%v", err)
	}
	f, err := smf.Parse(data)
	if err != nil {
		fatalf("reading %s: %v", midiPath, err)
	}
	title := filepath.Base(midiPath)

	// Hardware MIDI output needs no sound bank.
	if *port != "" || cfg.Output == config.OutputMIDI {
		name := *port
		if name == "" {
			name = cfg.MIDI.PortName
		}
		cfg.AddRecent(midiPath)
		saveConfig(cfg)
		playMIDI(f, name, title)
		return
	}

	if *bankPath == "" {
		fatalf("no sound bank: pass -sf2 or set bankPath in the config")
	}
	bank, err := loadBank(*bankPath)
	if err != nil {
		fatalf("reading %s: %v", *bankPath, err)
	}
	bankName := bank.Name
	if bankName == "" {
		bankName = filepath.Base(*bankPath)
	}

	cfg.BankPath = *bankPath
	cfg.AddRecent(midiPath)
	saveConfig(cfg)

	if *outPath != "" {
		r := render.RenderFile(bank, f, render.Options{
			SampleRate: *rate,
			Gain:       *gain,
			Tail:       cfg.Audio.Tail,
		})
		if err := render.WriteWAV(*outPath, r); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Wrote %s: %.1fs at %d Hz\n", *outPath, r.Duration(), r.Rate)
		return
	}

	playSpeaker(cfg, f, bank, *rate, *gain, *quiet, title, bankName)
}

func playSpeaker(cfg *config.Config, f *smf.File, bank *soundfont.Bank, rate int, gain float64, quiet bool, title, bankName string) {
	speaker, err := render.NewSpeaker(rate)
	if err != nil {
		fatalf("opening audio device: %v", err)
	}
	defer speaker.Close()

	engine := synth.NewEngine(speaker.Graph(), bank, gain)
	player := sequencer.NewPlayer(engine, bank)

	if quiet {
		fmt.Printf("go-sfplayer  %s  [%s]\n", title, bankName)
		player.Schedule(f, scheduleLead)
		speaker.Start()
		waitQuiet(speaker, engine, player)
		return
	}

	th := theme.New(loadPalette(cfg))
	m := tui.NewModel(speaker, engine, player, f, th, title, bankName)
	speaker.Start()
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fatalf("%v", err)
	}
}

// waitQuiet blocks until the schedule has played out or the process is
// interrupted.
func waitQuiet(speaker *render.Speaker, engine *synth.Engine, player *sequencer.Player) {
	end := scheduleLead + player.Duration()
	if last := engine.LastEnd(); last > end {
		end = last
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sig:
			player.CancelAll()
			time.Sleep(50 * time.Millisecond)
			return
		case <-ticker.C:
			now := speaker.Graph().Now()
			engine.Reap(now)
			if now >= end+0.3 {
				return
			}
		}
	}
}

func playMIDI(f *smf.File, portName, title string) {
	send, name, err := midiout.Open(portName)
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("go-sfplayer  %s  -> %s\n", title, name)

	p := midiout.NewPlayer(send)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)
	go func() {
		<-sig
		p.Stop()
	}()

	if err := p.Play(f); err != nil {
		fatalf("%v", err)
	}
}

func loadBank(path string) (*soundfont.Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return soundfont.Load(data)
}

func loadPalette(cfg *config.Config) *theme.Palette {
	if cfg.UI.Theme == "" {
		return theme.Default()
	}
	p, err := theme.LoadGPL(cfg.UI.Theme)
	if err != nil {
		fmt.Printf("Warning: palette %s: %v\n", cfg.UI.Theme, err)
		return theme.Default()
	}
	return p
}

func saveConfig(cfg *config.Config) {
	if err := cfg.Save(); err != nil {
		fmt.Printf("Warning: could not save config: %v\n", err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: go-sfplayer [flags] song.mid\n\n")
	flag.PrintDefaults()
}

func fatalf(format string, args ...any) {
	fmt.Printf("Error: "+format+"\n", args...)
	os.Exit(1)
}
