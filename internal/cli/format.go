package cli

import (
	"fmt"
	"strings"

	"github.com/Veraticus/wantnot/internal/model"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// MethodIcon returns the icon for a categorization method.
func MethodIcon(m model.Method) string {
	switch m {
	case model.MethodRule:
		return RuleIcon
	case model.MethodVector:
		return VectorIcon
	case model.MethodLLM:
		return RobotIcon
	case model.MethodManual:
		return HandIcon
	default:
		return "·"
	}
}

// FormatConfidence renders a confidence as a colored percentage.
func FormatConfidence(c float64) string {
	text := fmt.Sprintf("%3.0f%%", c*100)
	switch {
	case c >= 0.9:
		return SuccessStyle.Render(text)
	case c >= 0.7:
		return WarningStyle.Render(text)
	default:
		return SubtleStyle.Render(text)
	}
}

// FormatAmount renders an amount with income shown as a positive credit.
func FormatAmount(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return SuccessStyle.Render("+$" + amount.Neg().StringFixed(2))
	}
	return "$" + amount.StringFixed(2)
}

// FormatCategorization describes a single result on one line.
func FormatCategorization(result model.Categorization) string {
	if result.IsEmpty() {
		return SubtleStyle.Render("no confident match")
	}
	return fmt.Sprintf("%s %s %s %s",
		MethodIcon(result.Method),
		BoldStyle.Render(result.CategoryName),
		SubtleStyle.Render("via "+string(result.Method)),
		FormatConfidence(result.Confidence))
}

// RenderTable lays out rows under a styled header, padding each column to
// its widest cell.
func RenderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	renderRow := func(cells []string, style lipgloss.Style) string {
		rendered := make([]string, len(widths))
		for i := range widths {
			var cell string
			if i < len(cells) {
				cell = cells[i]
			}
			rendered[i] = TableCellStyle.Width(widths[i] + TableCellStyle.GetPaddingRight()).Render(cell)
		}
		return style.Render(lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, renderRow(headers, TableHeaderStyle))
	for _, row := range rows {
		lines = append(lines, renderRow(row, lipgloss.NewStyle()))
	}
	return strings.Join(lines, "\n")
}

// RenderCategories renders a category listing.
func RenderCategories(categories []model.Category) string {
	if len(categories) == 0 {
		return SubtleStyle.Render("No categories yet. Add one with: wantnot categories add <name>")
	}
	rows := make([][]string, 0, len(categories))
	for _, c := range categories {
		budget := "-"
		if c.BudgetLimit.Valid {
			budget = "$" + c.BudgetLimit.Decimal.StringFixed(2)
		}
		rows = append(rows, []string{c.Name, string(c.Type), budget, c.ID})
	}
	return RenderTable([]string{"Name", "Type", "Budget", "ID"}, rows)
}

// RenderTransactions renders a transaction listing.
func RenderTransactions(txns []model.Transaction) string {
	if len(txns) == 0 {
		return SubtleStyle.Render("Nothing to show.")
	}
	rows := make([][]string, 0, len(txns))
	for _, t := range txns {
		rows = append(rows, []string{
			t.Date.Format("2006-01-02"),
			truncate(t.MerchantText(), 36),
			FormatAmount(t.Amount),
			t.ID,
		})
	}
	return RenderTable([]string{"Date", "Merchant", "Amount", "ID"}, rows)
}

// RenderSuggestions renders batch suggestions. names maps transaction IDs
// to the merchant shown in the first column.
func RenderSuggestions(suggestions []model.Suggestion, names map[string]string) string {
	if len(suggestions) == 0 {
		return SubtleStyle.Render("No suggestions.")
	}
	rows := make([][]string, 0, len(suggestions))
	for _, s := range suggestions {
		name := names[s.TransactionID]
		if name == "" {
			name = s.TransactionID
		}
		rows = append(rows, []string{
			truncate(name, 36),
			s.CategoryName,
			MethodIcon(s.Method) + " " + string(s.Method),
			FormatConfidence(s.Confidence),
		})
	}
	return RenderTable([]string{"Merchant", "Category", "Tier", "Confidence"}, rows)
}

// RenderRecommendations lists proposed new categories under a title.
func RenderRecommendations(recs []model.NewCategoryRecommendation) string {
	if len(recs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(FormatTitle("Suggested new categories") + "\n")
	for _, r := range recs {
		fmt.Fprintf(&b, "  • %s (%s, %d transactions)", BoldStyle.Render(r.Name), r.Type, len(r.TransactionIDs))
		if r.Description != "" {
			b.WriteString(" " + SubtleStyle.Render(r.Description))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderStats summarizes where results came from.
func RenderStats(stats model.BatchStats) string {
	total := stats.Rule + stats.Vector + stats.LLM + stats.Unresolved
	return fmt.Sprintf("%s Rules: %d\n%s Community: %d\n%s Model: %d\n%s Unresolved: %d\n%s Total: %d",
		RuleIcon, stats.Rule,
		VectorIcon, stats.Vector,
		RobotIcon, stats.LLM,
		"·", stats.Unresolved,
		ChartIcon, total)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
