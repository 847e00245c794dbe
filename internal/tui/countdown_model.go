package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rshade/finboard/internal/session"
)

// warnThreshold is the remaining time below which the countdown turns amber.
const warnThreshold = 60

// CountdownTickMsg carries a remaining-seconds update.
type CountdownTickMsg struct {
	Remaining int
}

// SessionEventMsg carries a session bus event.
type SessionEventMsg struct {
	Event session.Event
}

// ExtendResultMsg reports the result of an extension request.
type ExtendResultMsg struct {
	Err error
}

type sourceClosedMsg struct{}

// ExtendFunc asks the backend to extend the session.
type ExtendFunc func() error

// CountdownModel shows the session TTL and reacts to session signals.
type CountdownModel struct {
	ticks     <-chan int
	events    <-chan session.Event
	extend    ExtendFunc
	remaining int
	ended     bool
	endReason string
	notice    string
	extending bool
	quitting  bool
}

// NewCountdownModel creates a countdown view fed by ticks and events.
// extend may be nil, which disables the renew key.
func NewCountdownModel(ticks <-chan int, events <-chan session.Event, extend ExtendFunc) CountdownModel {
	return CountdownModel{ticks: ticks, events: events, extend: extend}
}

// Init starts listening on both sources.
func (m CountdownModel) Init() tea.Cmd {
	return tea.Batch(waitForTick(m.ticks), waitForSessionEvent(m.events))
}

func waitForTick(ticks <-chan int) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-ticks
		if !ok {
			return sourceClosedMsg{}
		}
		return CountdownTickMsg{Remaining: v}
	}
}

func waitForSessionEvent(events <-chan session.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return sourceClosedMsg{}
		}
		return SessionEventMsg{Event: e}
	}
}

// Remaining returns the last observed remaining seconds.
func (m CountdownModel) Remaining() int {
	return m.remaining
}

// Ended reports whether the session ended and why.
func (m CountdownModel) Ended() (bool, string) {
	return m.ended, m.endReason
}

// Update handles messages.
func (m CountdownModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case CountdownTickMsg:
		m.remaining = msg.Remaining
		return m, waitForTick(m.ticks)
	case SessionEventMsg:
		return m.handleEvent(msg.Event)
	case ExtendResultMsg:
		m.extending = false
		if msg.Err != nil {
			m.notice = "extend failed: " + msg.Err.Error()
		}
		return m, nil
	case sourceClosedMsg:
		return m, nil
	}
	return m, nil
}

func (m CountdownModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case keyQuit, keyEsc, keyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case keyRenew:
		if m.extend == nil || m.ended || m.extending {
			return m, nil
		}
		m.extending = true
		m.notice = "extending session..."
		extend := m.extend
		return m, func() tea.Msg {
			return ExtendResultMsg{Err: extend()}
		}
	}
	return m, nil
}

func (m CountdownModel) handleEvent(e session.Event) (tea.Model, tea.Cmd) {
	switch e.Signal {
	case session.SignalSessionExtended:
		if e.Remaining > 0 {
			m.remaining = e.Remaining
		}
		m.notice = "session extended"
	case session.SignalForcedLogout, session.SignalLoginRequired, session.SignalSessionExpired:
		m.ended = true
		m.endReason = string(e.Signal)
		if e.Reason != "" {
			m.endReason += ": " + e.Reason
		}
	}
	return m, waitForSessionEvent(m.events)
}

// View renders the countdown.
func (m CountdownModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render("Session"))
	b.WriteString("\n\n")

	var body string
	switch {
	case m.ended:
		body = CriticalStyle.Render("Session ended (" + m.endReason + ")")
	case m.remaining <= warnThreshold:
		body = LabelStyle.Render("Expires in ") + WarningStyle.Render(FormatRemaining(m.remaining))
	default:
		body = LabelStyle.Render("Expires in ") + ValueStyle.Render(FormatRemaining(m.remaining))
	}
	lines := []string{body}
	if m.notice != "" && !m.ended {
		lines = append(lines, InfoStyle.Render(m.notice))
	}
	b.WriteString(BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
	b.WriteString("\n\n")

	help := "r: extend  q: quit"
	if m.extend == nil || m.ended {
		help = "q: quit"
	}
	b.WriteString(MutedStyle.Render(help))
	return b.String()
}

// FormatRemaining renders seconds as m:ss, or h:mm:ss past an hour.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds) * time.Second
	h := int(d.Hours())
	mins := int(d.Minutes()) % 60 //nolint:mnd // Minutes per hour.
	secs := seconds % 60          //nolint:mnd // Seconds per minute.
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mins, secs)
	}
	return fmt.Sprintf("%d:%02d", mins, secs)
}
