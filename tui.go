package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dictate/session"
)

// TUI message types
type stateMsg struct {
	from, to session.State
	at       time.Time
}
type levelMsg struct{ level float64 }
type transcriptMsg struct {
	text  string
	audio time.Duration
	took  time.Duration
}
type errorMsg struct{ err error }
type droppedMsg struct{ state session.State }
type tickMsg time.Time

type tuiModel struct {
	state     session.State
	startedAt time.Time
	maxDur    time.Duration
	now       time.Time

	level     float64
	peakLevel float64

	count    int
	lastText string
	lastMeta string
	lastErr  string
	notice   string

	width, height int

	hotkeyLine string
	modeLine   string
	deviceLine string
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

var (
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	faintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	recStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	busyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	textStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	meterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
)

func newTUIProgram(m tuiModel) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen())
}

// tuiSend forwards msg to the running TUI, if any.
func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}

	case tickMsg:
		m.now = time.Time(msg)
		return m, tuiTick()

	case stateMsg:
		m.state = msg.to
		switch msg.to {
		case session.Recording:
			m.startedAt = msg.at
			m.now = msg.at
			m.level = 0
			m.peakLevel = 0
			m.notice = ""
			m.lastErr = ""
		case session.Idle:
			m.level = 0
		}

	case levelMsg:
		if m.state == session.Recording {
			m.level = m.level*0.6 + msg.level*0.4
			m.peakLevel = max(m.peakLevel, msg.level)
		}

	case transcriptMsg:
		m.count++
		m.lastText = msg.text
		m.lastMeta = fmt.Sprintf("%.1fs audio, transcribed in %dms", msg.audio.Seconds(), msg.took.Milliseconds())

	case errorMsg:
		m.lastErr = msg.err.Error()

	case droppedMsg:
		m.notice = "busy " + msg.state.String() + ", toggle ignored"
	}
	return m, nil
}

func (m tuiModel) elapsed() time.Duration {
	if m.startedAt.IsZero() || m.now.Before(m.startedAt) {
		return 0
	}
	return m.now.Sub(m.startedAt)
}

func (m tuiModel) statusLine() string {
	switch m.state {
	case session.Recording:
		status := fmt.Sprintf("● REC %.1fs", m.elapsed().Seconds())
		if m.maxDur > 0 {
			status += fmt.Sprintf(" / %.0fs", m.maxDur.Seconds())
		}
		return recStyle.Render(status)
	case session.Transcribing:
		return busyStyle.Render("◌ TRANSCRIBING")
	case session.Injecting:
		return busyStyle.Render("◌ TYPING")
	case session.Error:
		return errStyle.Render("✕ ERROR")
	}
	return dimStyle.Render("○ STANDBY")
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	wrapWidth := max(m.width-2, 10)

	var b strings.Builder
	b.WriteString(m.statusLine() + "\n")
	if m.state == session.Recording {
		b.WriteString(meterStyle.Render(renderMeter(m.level, min(wrapWidth, 40))) + "\n")
		// Quiet for a full second usually means the wrong input device.
		if m.elapsed() > time.Second && m.peakLevel < 0.02 {
			b.WriteString(warnStyle.Render("  ⚠ no voice detected") + "\n")
		}
	} else {
		b.WriteString("\n")
	}
	for _, line := range []string{m.modeLine, m.deviceLine} {
		if line != "" {
			b.WriteString(dimStyle.Render(line) + "\n")
		}
	}
	if m.notice != "" {
		b.WriteString(warnStyle.Render(m.notice) + "\n")
	}
	b.WriteString("\n")

	if m.lastErr != "" {
		for _, line := range wrapText(m.lastErr, wrapWidth) {
			b.WriteString(errStyle.Render(line) + "\n")
		}
		b.WriteString("\n")
	}

	if m.count > 0 {
		b.WriteString(headerStyle.Render(fmt.Sprintf("Last transcription (#%d)", m.count)) + "\n\n")
		text := m.lastText
		style := textStyle
		if text == "" {
			text = "(no speech)"
			style = warnStyle
		}
		for _, line := range wrapText(text, wrapWidth) {
			b.WriteString(style.Render(line) + "\n")
		}
		b.WriteString(dimStyle.Render(m.lastMeta) + "\n")
	} else {
		b.WriteString(dimStyle.Render("No transcriptions yet") + "\n")
	}

	b.WriteString("\n")
	if m.hotkeyLine != "" {
		b.WriteString(faintStyle.Bold(true).Render(m.hotkeyLine) + faintStyle.Render(" to record") + "\n")
	}
	b.WriteString(faintStyle.Render("dictate " + version + "  q to quit"))

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		PaddingLeft(1).
		Render(b.String())
}

// renderMeter draws level (an RMS in 0..1) as a bar. Speech rarely goes
// above 0.3 RMS, so the scale tops out there.
func renderMeter(level float64, width int) string {
	if width <= 0 {
		return ""
	}
	n := int(level / 0.3 * float64(width))
	n = min(max(n, 0), width)
	return strings.Repeat("█", n) + strings.Repeat("░", width-n)
}

// wrapText breaks text at spaces so no line is wider than width runes.
func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	rs := []rune(text)
	var lines []string
	for len(rs) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if rs[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(rs[:splitAt]))
		rs = []rune(strings.TrimLeft(string(rs[splitAt:]), " "))
	}
	if len(rs) > 0 {
		lines = append(lines, string(rs))
	}
	return lines
}
