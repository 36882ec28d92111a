package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI message types
type RecordingStartMsg struct{}
type ProcessingStartMsg struct{}
type AudioLevelMsg struct{ Level float64 }
type TranscriptionMsg struct{ Text string }
type IdleMsg struct{}
type StatusMsg struct { // mode / auto-paste line
	Mode      string
	AutoPaste bool
}
type BackendLineMsg struct{ Text string } // backend endpoint or degraded warning
type tickMsg time.Time

type tuiState int

const (
	tuiStateIdle tuiState = iota
	tuiStateRecording
	tuiStateProcessing
)

type tuiModel struct {
	state         tuiState
	frame         int
	recordStart   time.Time
	audioLevel    float64
	peakLevel     float64
	msgCount      int
	width, height int
	mode          string
	autoPaste     bool
	backendLine   string
	chordLine     string
	lastText      string

	cycleMode  func() string
	toggleAuto func() bool
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

const meterWidth = 40

var (
	recStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	procStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	meterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	meterBgSty  = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	textStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// NewTUIProgram builds the terminal UI. cycleMode and toggleAuto are called
// on the bubbletea goroutine when the user hits the corresponding keys and
// return the value to display.
func NewTUIProgram(chord string, cycleMode func() string, toggleAuto func() bool) *tea.Program {
	m := tuiModel{
		chordLine:  chord,
		cycleMode:  cycleMode,
		toggleAuto: toggleAuto,
	}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
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
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "m":
			if m.cycleMode != nil {
				m.mode = m.cycleMode()
			}
		case "p":
			if m.toggleAuto != nil {
				m.autoPaste = m.toggleAuto()
			}
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case RecordingStartMsg:
		m.state = tuiStateRecording
		m.recordStart = time.Now()
		m.audioLevel = 0
		m.peakLevel = 0

	case ProcessingStartMsg:
		m.state = tuiStateProcessing
		m.audioLevel = 0

	case IdleMsg:
		m.state = tuiStateIdle
		m.audioLevel = 0

	case AudioLevelMsg:
		if m.state == tuiStateRecording {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
			if msg.Level > m.peakLevel {
				m.peakLevel = msg.Level
			}
		}

	case TranscriptionMsg:
		m.msgCount++
		m.lastText = msg.Text

	case StatusMsg:
		m.mode = msg.Mode
		m.autoPaste = msg.AutoPaste

	case BackendLineMsg:
		m.backendLine = msg.Text
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder

	switch m.state {
	case tuiStateRecording:
		dur := time.Since(m.recordStart).Seconds()
		b.WriteString(recStyle.Render(fmt.Sprintf("● REC %.1fs", dur)) + "\n")
		b.WriteString(renderMeter(m.audioLevel) + "\n")
		if dur > 1.0 && m.peakLevel < 0.02 {
			b.WriteString(warnStyle.Render("  ⚠ no voice detected") + "\n")
		}
	case tuiStateProcessing:
		dots := strings.Repeat(".", m.frame/8%4)
		b.WriteString(procStyle.Render("◌ TRANSCRIBING"+dots) + "\n")
		b.WriteString(renderMeter(0) + "\n")
	default:
		b.WriteString(idleStyle.Render("○ STANDBY") + "\n")
		b.WriteString(renderMeter(0) + "\n")
	}
	b.WriteString("\n")

	if m.mode != "" {
		b.WriteString(statusStyle.Render(statusLineText(m.mode, m.autoPaste)) + "\n")
	}
	if m.backendLine != "" {
		b.WriteString(idleStyle.Render(m.backendLine) + "\n")
	}
	b.WriteString("\n")

	if m.lastText != "" {
		b.WriteString(labelStyle.Render(fmt.Sprintf("Last transcription (#%d)", m.msgCount)) + "\n")
		wrapWidth := m.width - 2
		if wrapWidth < 10 {
			wrapWidth = 10
		}
		for _, line := range wrapText(m.lastText, wrapWidth) {
			b.WriteString(textStyle.Render(line) + "\n")
		}
	} else {
		b.WriteString(idleStyle.Render("No transcriptions yet") + "\n")
	}
	b.WriteString("\n")

	b.WriteString(helpStyle.Bold(true).Render(m.chordLine) + helpStyle.Render(" to dictate") + "\n")
	b.WriteString(helpStyle.Render("m: cycle mode  p: toggle auto-paste  q: quit") + "\n")

	return b.String()
}

func renderMeter(level float64) string {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	filled := int(level * meterWidth)
	return meterStyle.Render(strings.Repeat("█", filled)) +
		meterBgSty.Render(strings.Repeat("░", meterWidth-filled))
}

func statusLineText(mode string, autoPaste bool) string {
	paste := "auto-paste off"
	if autoPaste {
		paste = "auto-paste on"
	}
	return mode + " | " + paste
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// tuiObserver forwards session progress into the bubbletea program. Sends
// are fire-and-forget; with no TUI running they are dropped.
type tuiObserver struct{}

func (tuiObserver) RecordingStarted()   { tuiSend(RecordingStartMsg{}) }
func (tuiObserver) Amplitude(v float64) { tuiSend(AudioLevelMsg{Level: v}) }
func (tuiObserver) ProcessingStarted()  { tuiSend(ProcessingStartMsg{}) }
func (tuiObserver) Success(text string) { tuiSend(TranscriptionMsg{Text: text}) }
func (tuiObserver) Idle()               { tuiSend(IdleMsg{}) }
