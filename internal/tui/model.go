// Package tui implements the interactive review of low confidence receipt
// lines with bubbletea.
package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/the-bill-must-split/internal/model"
	"github.com/Veraticus/the-bill-must-split/internal/tui/themes"
)

// Decision is a category confirmed by the reviewer for one line.
type Decision struct {
	ItemID string
	Name   string
	From   model.ItemCategory
	To     model.ItemCategory
}

// Changed reports whether the reviewer picked a different category.
func (d Decision) Changed() bool {
	return d.From != d.To
}

type step struct {
	index   int
	decided bool
}

// Model is the review screen. It walks the lines that need review one at a
// time and records a Decision for each confirmed line.
type Model struct {
	theme      themes.Theme
	help       help.Model
	keymap     KeyMap
	merchant   string
	items      []model.ClassifiedReceiptItem
	categories []model.ItemCategory
	decisions  []Decision
	history    []step
	index      int
	cursor     int
	width      int
	height     int
	done       bool
	aborted    bool
	quitting   bool
}

// NewModel creates the review screen for the lines of r that need review.
func NewModel(r *model.ClassifiedReceipt, merchant string, theme themes.Theme) Model {
	m := Model{
		theme:      theme,
		help:       help.New(),
		keymap:     DefaultKeyMap(),
		merchant:   merchant,
		items:      r.ItemsNeedingReview(),
		categories: model.AllCategories(),
		width:      80,
		height:     24,
	}
	m.done = len(m.items) == 0
	m.resetCursor()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.ForceQuit):
		m.aborted = true
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keymap.Undo):
		m.undo()
		return m, nil
	}

	if m.done {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keymap.Up):
		m.cursor = max(m.cursor-1, 0)

	case key.Matches(msg, m.keymap.Down):
		m.cursor = min(m.cursor+1, len(m.categories)-1)

	case key.Matches(msg, m.keymap.Home):
		m.cursor = 0

	case key.Matches(msg, m.keymap.End):
		m.cursor = len(m.categories) - 1

	case key.Matches(msg, m.keymap.Accept):
		return m.decide(m.categories[m.cursor])

	case key.Matches(msg, m.keymap.Skip):
		return m.advance(false)

	default:
		// 1-9 pick a category directly, 0 picks the tenth
		if idx, ok := quickSelect(msg); ok && idx < len(m.categories) {
			m.cursor = idx
			return m.decide(m.categories[idx])
		}
	}

	return m, nil
}

func quickSelect(msg tea.KeyMsg) (int, bool) {
	s := msg.String()
	if len(s) != 1 || s[0] < '0' || s[0] > '9' {
		return 0, false
	}
	if s[0] == '0' {
		return 9, true
	}
	return int(s[0] - '1'), true
}

func (m Model) decide(category model.ItemCategory) (tea.Model, tea.Cmd) {
	item := m.items[m.index]
	m.decisions = append(m.decisions, Decision{
		ItemID: item.ID,
		Name:   item.Name,
		From:   item.Category,
		To:     category,
	})
	return m.advance(true)
}

func (m Model) advance(decided bool) (tea.Model, tea.Cmd) {
	m.history = append(m.history, step{index: m.index, decided: decided})
	m.index++
	if m.index >= len(m.items) {
		m.done = true
		m.quitting = true
		return m, tea.Quit
	}
	m.resetCursor()
	return m, nil
}

func (m *Model) undo() {
	if len(m.history) == 0 {
		return
	}
	last := m.history[len(m.history)-1]
	m.history = m.history[:len(m.history)-1]
	m.index = last.index
	m.done = false
	m.quitting = false
	m.resetCursor()
	if last.decided {
		d := m.decisions[len(m.decisions)-1]
		m.decisions = m.decisions[:len(m.decisions)-1]
		m.cursor = m.categoryIndex(d.To)
	}
}

func (m *Model) resetCursor() {
	if m.index < len(m.items) {
		m.cursor = m.categoryIndex(m.items[m.index].Category)
	}
}

func (m Model) categoryIndex(c model.ItemCategory) int {
	for i, candidate := range m.categories {
		if candidate == c {
			return i
		}
	}
	return 0
}

// Decisions returns the confirmed categories in review order.
func (m Model) Decisions() []Decision {
	out := make([]Decision, len(m.decisions))
	copy(out, m.decisions)
	return out
}

// Aborted reports whether the reviewer abandoned the session. Decisions
// from an aborted session should be discarded.
func (m Model) Aborted() bool {
	return m.aborted
}

// Done reports whether every line was either decided or skipped.
func (m Model) Done() bool {
	return m.done
}

// Remaining returns how many lines are still to be reviewed.
func (m Model) Remaining() int {
	return len(m.items) - m.index
}
