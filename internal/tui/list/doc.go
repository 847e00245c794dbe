// Package list provides a scrollable, windowed list for Bubble Tea views.
//
// Only the rows inside the viewport are rendered, so result sets of any
// size scroll without re-rendering every row. Navigation keys are up/down,
// j/k, pgup/pgdn and home/end.
package list
