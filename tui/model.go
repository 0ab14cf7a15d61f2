package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-sfplayer/render"
	"go-sfplayer/sequencer"
	"go-sfplayer/smf"
	"go-sfplayer/synth"
	"go-sfplayer/theme"
)

// activityWindow is how long a channel meter stays lit after a note-on.
const activityWindow = 0.25

// scheduleLead is the gap between the current clock and the first event
// when a schedule is placed, so no event lands in the past.
const scheduleLead = 0.1

const barWidth = 40

type Model struct {
	Speaker *render.Speaker
	Engine  *synth.Engine
	Player  *sequencer.Player
	Theme   *theme.Theme

	file     *smf.File
	title    string
	bankName string
	epoch    float64 // clock time of file tick zero
	end      float64 // clock time the last voice falls silent
	onsets   [16][]float64
	quitting bool
}

type tickMsg time.Time

// NewModel schedules the file on the engine and returns the model that
// tracks it. The speaker should be started right after.
func NewModel(speaker *render.Speaker, engine *synth.Engine, player *sequencer.Player, f *smf.File, th *theme.Theme, title, bankName string) Model {
	m := Model{
		Speaker:  speaker,
		Engine:   engine,
		Player:   player,
		Theme:    th,
		file:     f,
		title:    title,
		bankName: bankName,
	}

	events, _ := sequencer.BuildTimeline(f)
	for _, ev := range events {
		if ev.Ev.Type == smf.MsgNoteOn && ev.Ev.D2 > 0 {
			ch := ev.Ev.Channel & 0x0F
			m.onsets[ch] = append(m.onsets[ch], ev.At)
		}
	}

	m.schedule()
	return m
}

// schedule places the whole file on the backend clock a little ahead of
// now and records where it will end.
func (m *Model) schedule() {
	m.epoch = m.Speaker.Graph().Now() + scheduleLead
	m.Player.Schedule(m.file, m.epoch)
	m.end = m.epoch + m.Player.Duration()
	if last := m.Engine.LastEnd(); last > m.end {
		m.end = last
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.Player.CancelAll()
			return m, tea.Quit

		case " ", "p":
			if m.Speaker.Playing() {
				m.Speaker.Pause()
			} else {
				m.Speaker.Start()
			}

		case "r":
			m.Player.CancelAll()
			m.schedule()
			if !m.Speaker.Playing() {
				m.Speaker.Start()
			}
		}

	case tickMsg:
		now := m.Speaker.Graph().Now()
		m.Engine.Reap(now)
		if now >= m.end+0.3 {
			m.quitting = true
			return m, tea.Quit
		}
		return m, tick()
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	rel := m.Speaker.Graph().Now() - m.epoch
	if rel < 0 {
		rel = 0
	}
	dur := m.Player.Duration()

	// Styles
	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	fillStyle := lipgloss.NewStyle().Foreground(m.Theme.Active())
	onStyle := lipgloss.NewStyle().Foreground(m.Theme.Success())

	// Header with transport state
	sym := m.Theme.Symbols.Playing
	if !m.Speaker.Playing() {
		sym = m.Theme.Symbols.Paused
	}
	header := headerStyle.Render(fmt.Sprintf("go-sfplayer  %c  %s", sym, m.title)) +
		dimStyle.Render(fmt.Sprintf("   bank:%s  voices:%d", m.bankName, m.Engine.Voices()))

	// Progress bar
	frac := 0.0
	if dur > 0 {
		frac = rel / dur
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * barWidth)
	bar := fillStyle.Render(strings.Repeat(string(m.Theme.Symbols.BarFill), filled)) +
		dimStyle.Render(strings.Repeat(string(m.Theme.Symbols.BarEmpty), barWidth-filled))
	clock := dimStyle.Render(fmt.Sprintf("  %s / %s", formatTime(rel), formatTime(dur)))

	// Channel activity meters
	var meters strings.Builder
	for ch := 0; ch < 16; ch++ {
		if m.channelActive(ch, rel) {
			meters.WriteString(onStyle.Render(string(m.Theme.Symbols.MeterOn)))
		} else {
			meters.WriteString(dimStyle.Render(string(m.Theme.Symbols.MeterOff)))
		}
	}
	channels := dimStyle.Render("channels ") + meters.String()

	// Help line
	help := dimStyle.Render("space:pause  r:restart  q:quit")

	// Build output
	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(bar)
	out.WriteString(clock)
	out.WriteString("\n\n")
	out.WriteString(channels)
	out.WriteString("\n\n")
	out.WriteString(help)

	return out.String()
}

// channelActive reports whether the channel had a note-on inside the
// activity window ending at rel, in file time.
func (m Model) channelActive(ch int, rel float64) bool {
	ons := m.onsets[ch]
	i := sort.SearchFloat64s(ons, rel-activityWindow)
	return i < len(ons) && ons[i] <= rel
}

func formatTime(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	s := int(sec)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
