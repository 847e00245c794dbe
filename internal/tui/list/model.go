package list

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// RenderFunc renders the item at index. selected marks the cursor row.
type RenderFunc[T any] func(index int, item T, selected bool) string

// Model is a windowed list over items.
type Model[T any] struct {
	items  []T
	render RenderFunc[T]
	cursor int
	offset int
	height int
}

// New creates a list showing height rows at a time.
func New[T any](items []T, height int, render RenderFunc[T]) *Model[T] {
	if height < 1 {
		height = 1
	}
	return &Model[T]{items: items, render: render, height: height}
}

// Init implements tea.Model.
func (m *Model[T]) Init() tea.Cmd {
	return nil
}

// Update handles navigation keys and resizes.
func (m *Model[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		m.handleKey(key.String())
	}
	return m, nil
}

func (m *Model[T]) handleKey(key string) {
	switch key {
	case "up", "k":
		m.SetCursor(m.cursor - 1)
	case "down", "j":
		m.SetCursor(m.cursor + 1)
	case "pgup":
		m.SetCursor(m.cursor - m.height)
	case "pgdown":
		m.SetCursor(m.cursor + m.height)
	case "home", "g":
		m.SetCursor(0)
	case "end", "G":
		m.SetCursor(len(m.items) - 1)
	}
}

// SetHeight changes the number of visible rows.
func (m *Model[T]) SetHeight(height int) {
	if height < 1 {
		height = 1
	}
	m.height = height
	m.scroll()
}

// SetCursor moves the cursor, clamped to the items, and scrolls it into view.
func (m *Model[T]) SetCursor(index int) {
	switch {
	case len(m.items) == 0 || index < 0:
		m.cursor = 0
	case index >= len(m.items):
		m.cursor = len(m.items) - 1
	default:
		m.cursor = index
	}
	m.scroll()
}

// scroll keeps the cursor inside [offset, offset+height).
func (m *Model[T]) scroll() {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.height {
		m.offset = m.cursor - m.height + 1
	}
	if maxOffset := max(len(m.items)-m.height, 0); m.offset > maxOffset {
		m.offset = maxOffset
	}
}

// View renders the visible window.
func (m *Model[T]) View() string {
	if len(m.items) == 0 {
		return ""
	}
	end := min(m.offset+m.height, len(m.items))
	lines := make([]string, 0, end-m.offset)
	for i := m.offset; i < end; i++ {
		lines = append(lines, m.render(i, m.items[i], i == m.cursor))
	}
	return strings.Join(lines, "\n")
}

// Len returns the number of items.
func (m *Model[T]) Len() int {
	return len(m.items)
}

// Cursor returns the selected index.
func (m *Model[T]) Cursor() int {
	return m.cursor
}

// Window returns the visible range [from, to).
func (m *Model[T]) Window() (int, int) {
	return m.offset, min(m.offset+m.height, len(m.items))
}

// Selected returns the item under the cursor, or nil for an empty list.
func (m *Model[T]) Selected() *T {
	if len(m.items) == 0 {
		return nil
	}
	return &m.items[m.cursor]
}
