package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/rshade/finboard/internal/engine/batch"
	"github.com/rshade/finboard/internal/engine/bulk"
	"github.com/rshade/finboard/internal/tui/list"
)

// BulkState is the phase of a bulk run as seen by the UI.
type BulkState int

// Bulk run phases.
const (
	BulkStateRunning BulkState = iota
	BulkStateCancelling
	BulkStateDone
	BulkStateError
)

const bulkEventBuffer = 64

// RunFunc executes a bulk run with the given callbacks and blocks until it
// finishes.
type RunFunc func(cb bulk.Callbacks) (bulk.Outcome, error)

// BulkProgressMsg reports a progress callback.
type BulkProgressMsg struct {
	Processed int
	Total     int
	Label     string
}

// BulkErrorMsg reports an error callback. The run may still be in flight.
type BulkErrorMsg struct {
	Message string
}

// BulkDoneMsg is sent once the run function returns.
type BulkDoneMsg struct {
	Outcome bulk.Outcome
	Err     error
}

type bulkResult struct {
	outcome bulk.Outcome
	err     error
}

// BulkModel renders a running bulk query and its results.
//
//nolint:recvcheck // Bubble Tea models use value receivers; Wait needs none.
type BulkModel struct {
	state     BulkState
	token     *batch.Token
	run       RunFunc
	events    chan tea.Msg
	result    chan bulkResult
	loading   *LoadingState
	bar       progress.Model
	processed int
	total     int
	label     string
	errMsg    string
	outcome   bulk.Outcome
	err       error
	results   *list.Model[bulk.ResultRow]
	width     int
	height    int
	quitting  bool
}

// NewBulkModel creates a model for a run over total identifiers. token is
// cancelled on user request; run is started by Init.
func NewBulkModel(token *batch.Token, total int, run RunFunc) BulkModel {
	loading := NewLoadingState()
	loading.SetMessage("Starting bulk query...")
	return BulkModel{
		state:   BulkStateRunning,
		token:   token,
		run:     run,
		events:  make(chan tea.Msg, bulkEventBuffer),
		result:  make(chan bulkResult, 1),
		loading: loading,
		bar:     progress.New(progress.WithDefaultGradient()),
		total:   total,
		width:   defaultWidth,
	}
}

// Init starts the spinner, the run and the event listener.
func (m BulkModel) Init() tea.Cmd {
	return tea.Batch(m.loading.Init(), m.startRun(), waitForBulkEvent(m.events))
}

func (m BulkModel) startRun() tea.Cmd {
	run, events, result := m.run, m.events, m.result
	return func() tea.Msg {
		send := func(msg tea.Msg) {
			// Progress is observational; a full buffer drops the update.
			select {
			case events <- msg:
			default:
			}
		}
		cb := bulk.Callbacks{
			OnProgress: func(processed, total int, label string) {
				send(BulkProgressMsg{Processed: processed, Total: total, Label: label})
			},
			OnError: func(message string) {
				send(BulkErrorMsg{Message: message})
			},
		}
		outcome, err := run(cb)
		result <- bulkResult{outcome: outcome, err: err}
		return BulkDoneMsg{Outcome: outcome, Err: err}
	}
}

func waitForBulkEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

// Wait blocks until the run function has returned. It is safe to call after
// the program exited early.
func (m BulkModel) Wait() (bulk.Outcome, error) {
	if m.state == BulkStateDone || m.state == BulkStateError {
		return m.outcome, m.err
	}
	r := <-m.result
	return r.outcome, r.err
}

// State returns the current phase.
func (m BulkModel) State() BulkState {
	return m.state
}

// Update handles messages.
func (m BulkModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-borderPadding*4, 10) //nolint:mnd // Minimum bar width.
		if m.results != nil {
			m.results.SetHeight(tableHeight(m.height))
		}
		return m, nil
	case BulkProgressMsg:
		m.processed = msg.Processed
		if msg.Total > 0 {
			m.total = msg.Total
		}
		m.label = msg.Label
		if m.state == BulkStateRunning {
			m.loading.SetMessage(msg.Label)
		}
		return m, waitForBulkEvent(m.events)
	case BulkErrorMsg:
		m.errMsg = msg.Message
		return m, waitForBulkEvent(m.events)
	case BulkDoneMsg:
		return m.handleDone(msg)
	default:
		if m.state == BulkStateRunning || m.state == BulkStateCancelling {
			return m, m.loading.Update(msg)
		}
		return m, nil
	}
}

func (m BulkModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if m.state == BulkStateDone || m.state == BulkStateError {
		switch key {
		case keyQuit, keyEsc, keyEnter, keyCtrlC:
			m.quitting = true
			return m, tea.Quit
		}
		if m.results != nil {
			m.results.Update(msg)
		}
		return m, nil
	}

	switch key {
	case keyStop, keyEsc:
		m.requestCancel()
	case keyCtrlC:
		m.requestCancel()
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *BulkModel) requestCancel() {
	if m.state != BulkStateRunning {
		return
	}
	m.token.RequestCancel()
	m.state = BulkStateCancelling
	m.loading.SetMessage("Cancelling after the current batch...")
}

func (m BulkModel) handleDone(msg BulkDoneMsg) (tea.Model, tea.Cmd) {
	m.outcome = msg.Outcome
	m.err = msg.Err
	if msg.Err != nil {
		m.state = BulkStateError
		if m.errMsg == "" || errors.Is(msg.Err, bulk.ErrExport) {
			m.errMsg = msg.Err.Error()
		}
		return m, nil
	}
	m.state = BulkStateDone
	m.processed = len(msg.Outcome.Rows)
	m.results = list.New(msg.Outcome.Rows, tableHeight(m.height), renderResultRow)
	return m, nil
}

// View renders the model.
func (m BulkModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render("Bulk Query"))
	b.WriteString("\n\n")

	switch m.state {
	case BulkStateRunning, BulkStateCancelling:
		b.WriteString(m.renderProgress())
	case BulkStateDone:
		b.WriteString(m.renderSummary())
		b.WriteString("\n\n")
		b.WriteString(renderResultTable(m.results))
	case BulkStateError:
		b.WriteString(CriticalStyle.Render("Error: " + m.errMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(MutedStyle.Render(m.helpText()))
	return b.String()
}

func (m BulkModel) renderProgress() string {
	percent := 0.0
	if m.total > 0 {
		percent = float64(m.processed) / float64(m.total)
	}
	lines := []string{
		RenderLoading(m.loading),
		"",
		m.bar.ViewAs(percent),
		LabelStyle.Render(fmt.Sprintf("%d / %d identifiers", m.processed, m.total)),
	}
	if m.errMsg != "" {
		lines = append(lines, WarningStyle.Render(m.errMsg))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m BulkModel) renderSummary() string {
	status := OKStyle.Render(m.outcome.Message())
	if m.outcome.Cancelled {
		status = WarningStyle.Render(m.outcome.Message())
	}
	lines := []string{status}
	if m.outcome.Failed > 0 {
		lines = append(lines, WarningStyle.Render(fmt.Sprintf("%d identifiers failed", m.outcome.Failed)))
	}
	if m.outcome.File != "" {
		lines = append(lines, LabelStyle.Render("Saved: ")+ValueStyle.Render(m.outcome.File))
	}
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m BulkModel) helpText() string {
	switch m.state {
	case BulkStateRunning:
		return "c/esc: cancel  ctrl+c: cancel and quit"
	case BulkStateCancelling:
		return "waiting for the current batch..."
	default:
		return "up/down/pgup/pgdn: scroll  q/enter: quit"
	}
}

// tableHeight is the number of result rows that fit a terminal of height h.
func tableHeight(h int) int {
	if h <= 0 {
		return maxTableRows
	}
	return max(h-tableChrome, minTableRows)
}

// renderResultTable renders the visible window of results with
// tier-colored grades.
func renderResultTable(results *list.Model[bulk.ResultRow]) string {
	if results == nil || results.Len() == 0 {
		return MutedStyle.Render("No rows.")
	}

	header := fmt.Sprintf("  %-4s %-10s %-24s %12s %12s %8s %s",
		"No", "Symbol", "Name", "Current", "Estimated", "PEG", "Grade")
	lines := []string{HeaderStyle.Render(header), results.View()}

	from, to := results.Window()
	if to-from < results.Len() {
		lines = append(lines, MutedStyle.Render(
			fmt.Sprintf("rows %d-%d of %d", from+1, to, results.Len())))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderResultRow(i int, r bulk.ResultRow, selected bool) string {
	cursor := "  "
	if selected {
		cursor = InfoStyle.Render("> ")
	}
	line := fmt.Sprintf("%-4d %-10s %-24s %12s %12s %8s ",
		i+1,
		truncate(r.Identifier, 10),
		truncate(r.DisplayName, 24),
		formatDecimal(r.CurrentValue),
		formatDecimal(r.EstimatedValue),
		formatDecimal(r.SecondaryMetric))
	if r.Failed() {
		return cursor + line + CriticalStyle.Render(r.FailureReason)
	}
	return cursor + line + TierStyle(r.Tier).Render(fmt.Sprintf(" %s ", r.Grade))
}

func formatDecimal(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.StringFixed(2) //nolint:mnd // Two decimal places.
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
