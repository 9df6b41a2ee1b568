package tui

import (
	"bytes"
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-bill-must-split/internal/model"
	"github.com/Veraticus/the-bill-must-split/internal/tui/themes"
)

func line(name, price string, pos int, cat model.ItemCategory, conf float64) model.ClassifiedReceiptItem {
	return model.NewClassifiedReceiptItem(model.NewReceiptItem(name, decimal.RequireFromString(price)), pos,
		model.NewClassificationResult(cat, conf, model.MethodHeuristic, "test"))
}

func reviewReceipt() *model.ClassifiedReceipt {
	return model.NewClassifiedReceipt([]model.ClassifiedReceiptItem{
		line("Burger", "10.00", 0, model.CategoryFood, 0.95),
		line("SVC", "2.00", 1, model.CategoryUnknown, 0.3),
		line("Zzyzx", "1.00", 2, model.CategoryUnknown, 0.1),
		line("Dessert", "6.00", 3, model.CategoryFood, 0.5),
		line("Total", "19.00", 4, model.CategoryTotal, 0.95),
	})
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, msgs ...tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m, cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestModel_ReviewFlow(t *testing.T) {
	m := NewModel(reviewReceipt(), "Burger Barn", themes.Plain)
	require.Equal(t, 3, m.Remaining())
	assert.Equal(t, model.CategoryUnknown, m.categories[m.cursor], "cursor starts on the current category")

	// SVC becomes a service charge through its shortcut
	m, cmd := press(t, m, runes("8"))
	assert.Nil(t, cmd)
	assert.Equal(t, 2, m.Remaining())

	// Zzyzx is skipped
	m, cmd = press(t, m, runes("s"))
	assert.Nil(t, cmd)

	// Dessert is confirmed as food
	m, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, isQuit(cmd))
	assert.True(t, m.Done())
	assert.False(t, m.Aborted())

	decisions := m.Decisions()
	require.Len(t, decisions, 2)
	assert.Equal(t, "SVC", decisions[0].Name)
	assert.Equal(t, model.CategoryUnknown, decisions[0].From)
	assert.Equal(t, model.CategoryServiceCharge, decisions[0].To)
	assert.True(t, decisions[0].Changed())
	assert.Equal(t, "Dessert", decisions[1].Name)
	assert.False(t, decisions[1].Changed())
}

func TestModel_CursorMovement(t *testing.T) {
	m := NewModel(reviewReceipt(), "", themes.Plain)

	m, _ = press(t, m, runes("g"))
	assert.Equal(t, 0, m.cursor)
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, m.cursor, "cursor stays at the top")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown}, runes("j"))
	assert.Equal(t, 2, m.cursor)
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	require.Len(t, m.Decisions(), 1)
	assert.Equal(t, model.CategoryTip, m.Decisions()[0].To)

	m, _ = press(t, m, runes("G"), tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, len(model.AllCategories())-1, m.cursor, "cursor stays at the bottom")
}

func TestModel_Undo(t *testing.T) {
	m := NewModel(reviewReceipt(), "", themes.Plain)

	m, _ = press(t, m, runes("2"), runes("s"))
	require.Len(t, m.Decisions(), 1)
	require.Equal(t, 1, m.Remaining())

	m, _ = press(t, m, runes("u"))
	assert.Equal(t, 2, m.Remaining(), "undoing a skip only moves back")
	assert.Len(t, m.Decisions(), 1)

	m, _ = press(t, m, runes("u"))
	assert.Equal(t, 3, m.Remaining())
	assert.Empty(t, m.Decisions())
	assert.Equal(t, model.CategoryTax, m.categories[m.cursor], "cursor returns to the undone choice")

	m, _ = press(t, m, runes("u"))
	assert.Equal(t, 3, m.Remaining(), "nothing left to undo")
}

func TestModel_UndoAfterCompletion(t *testing.T) {
	m := NewModel(reviewReceipt(), "", themes.Plain)

	m, cmd := press(t, m, runes("1"), runes("1"), runes("1"))
	require.True(t, isQuit(cmd))
	require.True(t, m.Done())

	m, _ = press(t, m, runes("u"))
	assert.False(t, m.Done())
	assert.Len(t, m.Decisions(), 2)
	assert.Contains(t, m.View(), "Dessert")
}

func TestModel_Quit(t *testing.T) {
	t.Run("finish keeps decisions", func(t *testing.T) {
		m := NewModel(reviewReceipt(), "", themes.Plain)
		m, cmd := press(t, m, runes("1"), runes("q"))
		assert.True(t, isQuit(cmd))
		assert.False(t, m.Aborted())
		assert.Len(t, m.Decisions(), 1)
	})

	t.Run("ctrl+c aborts", func(t *testing.T) {
		m := NewModel(reviewReceipt(), "", themes.Plain)
		m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
		assert.True(t, isQuit(cmd))
		assert.True(t, m.Aborted())
	})
}

func TestModel_NothingToReview(t *testing.T) {
	r := model.NewClassifiedReceipt([]model.ClassifiedReceiptItem{
		line("Burger", "10.00", 0, model.CategoryFood, 0.95),
	})
	m := NewModel(r, "", themes.Plain)

	assert.True(t, m.Done())
	assert.Zero(t, m.Remaining())
	assert.Contains(t, m.View(), "Nothing to review")

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Empty(t, m.Decisions())
}

func TestModel_View(t *testing.T) {
	m := NewModel(reviewReceipt(), "Burger Barn", themes.Plain)
	m, _ = press(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	view := m.View()
	for _, want := range []string{"Burger Barn", "line 1 of 3", "SVC", "2.00", "Service Charge", "Unknown", "confirm category"} {
		assert.Contains(t, view, want)
	}

	m, _ = press(t, m, runes("?"))
	assert.Contains(t, m.View(), "undo", "full help lists every binding")
}

func TestRunReview(t *testing.T) {
	t.Run("nothing to review", func(t *testing.T) {
		r := model.NewClassifiedReceipt([]model.ClassifiedReceiptItem{
			line("Burger", "10.00", 0, model.CategoryFood, 0.95),
		})
		decisions, err := RunReview(context.Background(), r, ReviewConfig{})
		require.NoError(t, err)
		assert.Empty(t, decisions)
	})

	t.Run("nil receipt", func(t *testing.T) {
		_, err := RunReview(context.Background(), nil, ReviewConfig{})
		assert.Error(t, err)
	})

	t.Run("quit immediately", func(t *testing.T) {
		out := &bytes.Buffer{}
		plain := themes.Plain
		decisions, err := RunReview(context.Background(), reviewReceipt(), ReviewConfig{
			Input:  strings.NewReader("q"),
			Output: out,
			Theme:  &plain,
		})
		require.NoError(t, err)
		assert.Empty(t, decisions)
	})
}
