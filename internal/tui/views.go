package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/the-bill-must-split/internal/model"
)

const progressWidth = 30

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.done {
		return m.renderComplete()
	}

	sections := []string{
		m.renderHeader(),
		m.renderItem(),
		m.renderCategories(),
		m.help.View(m.keymap),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := "🧾 Review receipt"
	if m.merchant != "" {
		title += " · " + m.merchant
	}

	total := len(m.items)
	filled := 0
	if total > 0 {
		filled = progressWidth * m.index / total
	}
	bar := m.theme.ProgressFull.Render(strings.Repeat("█", filled)) +
		m.theme.ProgressEmpty.Render(strings.Repeat("░", progressWidth-filled))

	return lipgloss.JoinVertical(lipgloss.Left,
		m.theme.Title.Render(title),
		fmt.Sprintf("%s  line %d of %d", bar, m.index+1, total),
		"",
	)
}

func (m Model) renderItem() string {
	item := m.items[m.index]

	confidence := fmt.Sprintf("%.0f%%", item.ClassificationConfidence*100)
	switch {
	case item.ClassificationConfidence >= model.HighConfidenceThreshold:
		confidence = m.theme.StatusSuccess.Render(confidence)
	case item.ClassificationConfidence >= model.ReviewConfidenceThreshold:
		confidence = m.theme.StatusWarning.Render(confidence)
	default:
		confidence = m.theme.StatusError.Render(confidence)
	}

	lines := []string{
		m.theme.Bold.Render(item.Name) + "  " + item.Price.StringFixed(2),
		fmt.Sprintf("Suggested: %s %s (%s, %s)",
			item.Category.Icon(), item.Category.Label(), confidence, item.ClassificationMethod),
	}
	if item.Reasoning != "" {
		lines = append(lines, m.theme.Subtitle.Render(item.Reasoning))
	}

	width := min(max(m.width-4, 20), 72)
	return m.theme.RoundedBox.Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) renderCategories() string {
	rows := make([]string, 0, len(m.categories)+1)
	rows = append(rows, "")
	for i, c := range m.categories {
		shortcut := fmt.Sprintf("%d", (i+1)%10)
		if i >= 10 {
			shortcut = " "
		}
		label := fmt.Sprintf("%s %s %s", shortcut, m.theme.CategoryIcon.Render(c.Icon()), c.Label())
		if i == m.cursor {
			rows = append(rows, m.theme.Selected.Render("> "+label))
			continue
		}
		rows = append(rows, m.theme.Normal.Render("  "+label))
	}
	rows = append(rows, "")
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) renderComplete() string {
	changed := 0
	for _, d := range m.decisions {
		if d.Changed() {
			changed++
		}
	}
	msg := fmt.Sprintf("Reviewed %d lines: %d confirmed, %d recategorized", len(m.items), len(m.decisions), changed)
	if len(m.items) == 0 {
		msg = "Nothing to review"
	}
	return m.theme.StatusSuccess.Render("✓ "+msg) + "\n"
}
