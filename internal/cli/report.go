package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/the-bill-must-split/internal/model"
	"github.com/Veraticus/the-bill-must-split/internal/storage"
)

const maxNameWidth = 32

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// renderTable lays out rows under headers with TableCellStyle padding.
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	renderRow := func(cells []string, style lipgloss.Style) string {
		rendered := make([]string, len(cells))
		for i, cell := range cells {
			rendered[i] = style.Width(widths[i] + 2).Render(cell)
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, renderRow(headers, TableHeaderStyle))
	for _, row := range rows {
		lines = append(lines, renderRow(row, TableCellStyle))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// RenderReceipt renders a classified receipt as a table followed by its
// totals and validation issues.
func RenderReceipt(r *model.ClassifiedReceipt, merchant string) string {
	var b strings.Builder

	title := "Receipt " + shortID(r.ID)
	if merchant != "" {
		title = merchant + " · " + shortID(r.ID)
	}
	b.WriteString(FormatTitle(title))
	b.WriteString("\n")

	fmt.Fprintf(&b, "Engine: %s   Status: %s   Confidence: %s\n\n",
		r.Engine,
		StatusStyle(r.ValidationStatus).Render(string(r.ValidationStatus)),
		FormatConfidence(r.TotalConfidence))

	rows := make([][]string, 0, r.ItemCount())
	for _, item := range r.AllItems() {
		marker := ""
		if item.IsCorrected() {
			marker = SuccessIcon
		} else if item.NeedsReview() {
			marker = ReviewIcon
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.Position+1),
			truncate(item.Name, maxNameWidth),
			item.Price.StringFixed(2),
			item.Category.Icon() + " " + item.Category.Label(),
			FormatConfidence(item.ClassificationConfidence),
			string(item.ClassificationMethod),
			marker,
		})
	}
	b.WriteString(renderTable([]string{"#", "Item", "Price", "Category", "Conf", "Method", ""}, rows))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Food %s  + Charges %s  - Discounts %s  = %s",
		r.FoodItemsSum().StringFixed(2),
		r.TotalCharges().StringFixed(2),
		r.TotalDiscounts().StringFixed(2),
		BoldStyle.Render(r.ExpectedTotal().StringFixed(2)))
	if r.Total != nil {
		fmt.Fprintf(&b, "  (total line %s)", r.Total.Price.StringFixed(2))
	}
	b.WriteString("\n")

	if len(r.Issues) > 0 {
		b.WriteString("\n")
		for _, issue := range r.Issues {
			b.WriteString(SeverityStyle(issue.Severity).Render(fmt.Sprintf("%s %s: %s",
				severityIcon(issue.Severity), issue.Type, issue.Message)))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func severityIcon(s model.IssueSeverity) string {
	switch s {
	case model.SeverityError:
		return ErrorIcon
	case model.SeverityWarning:
		return WarningIcon
	default:
		return InfoIcon
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// RenderReceiptList renders stored receipts, newest first.
func RenderReceiptList(summaries []storage.ReceiptSummary) string {
	if len(summaries) == 0 {
		return FormatInfo("No receipts stored yet")
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		merchant := s.Merchant
		if merchant == "" {
			merchant = "-"
		}
		rows = append(rows, []string{
			s.ID,
			s.CreatedAt.Local().Format("2006-01-02 15:04"),
			truncate(merchant, maxNameWidth),
			s.Engine,
			fmt.Sprintf("%d", s.ItemCount),
			StatusStyle(s.Status).Render(string(s.Status)),
			FormatConfidence(s.TotalConfidence),
		})
	}
	return renderTable([]string{"ID", "Created", "Merchant", "Engine", "Items", "Status", "Conf"}, rows)
}
