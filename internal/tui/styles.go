package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/rshade/finboard/internal/engine/bulk"
)

// Layout defaults.
const (
	defaultWidth  = 100
	defaultHeight = 30
	borderPadding = 2
	maxTableRows  = 15
	minTableRows  = 5
	tableChrome   = 14
)

// Key names handled by the models.
const (
	keyCtrlC = "ctrl+c"
	keyEsc   = "esc"
	keyEnter = "enter"
	keyQuit  = "q"
	keyStop  = "c"
	keyRenew = "r"
)

// Palette.
//
//nolint:gochecknoglobals // Shared, immutable styling.
var (
	ColorHeader    = lipgloss.Color("39")
	ColorLabel     = lipgloss.Color("245")
	ColorValue     = lipgloss.Color("255")
	ColorMuted     = lipgloss.Color("240")
	ColorWarning   = lipgloss.Color("214")
	ColorCritical  = lipgloss.Color("196")
	ColorOK        = lipgloss.Color("42")
	ColorBorder    = lipgloss.Color("62")
	ColorHighlight = lipgloss.Color("229")
)

// Common styles.
//
//nolint:gochecknoglobals // Shared, immutable styling.
var (
	HeaderStyle   = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	LabelStyle    = lipgloss.NewStyle().Foreground(ColorLabel)
	ValueStyle    = lipgloss.NewStyle().Foreground(ColorValue).Bold(true)
	MutedStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
	InfoStyle     = lipgloss.NewStyle().Foreground(ColorHighlight)
	WarningStyle  = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	CriticalStyle = lipgloss.NewStyle().Foreground(ColorCritical).Bold(true)
	OKStyle       = lipgloss.NewStyle().Foreground(ColorOK).Bold(true)
	BoxStyle      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)
)

// TierStyle returns the style used to render a grade of the given tier.
// Terminal colors approximate the workbook fills.
func TierStyle(t bulk.Tier) lipgloss.Style {
	switch t {
	case bulk.Tier1:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#1E7B34")).Background(lipgloss.Color("#C6EFCE")).Bold(true)
	case bulk.Tier2:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#7F6000")).Background(lipgloss.Color("#FFEB9C")).Bold(true)
	case bulk.Tier3:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#9C0006")).Background(lipgloss.Color("#FFC7CE")).Bold(true)
	default:
		return MutedStyle
	}
}
