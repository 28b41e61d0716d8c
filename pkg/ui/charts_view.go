package ui

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/eavview/pkg/explore"
)

const chartLabelWidth = 24

// chartBarWidth scales count against the peak into at most width cells.
// Any positive count gets at least one cell.
func chartBarWidth(count, peak, width int) int {
	if count <= 0 || width <= 0 {
		return 0
	}
	return max(1, width*count/max(1, peak))
}

func (m Model) renderCharts() string {
	top := m.view.Top
	title := m.theme.PrimaryBold.Render("Top values of "+m.view.ChartNode) +
		m.theme.MutedText.Render(fmt.Sprintf("  (%d shown, c to change node)", len(top)))
	if len(top) == 0 {
		return title + "\n\n" + m.theme.MutedText.Italic(true).Render(
			fmt.Sprintf("No %q values in the filtered triples.", m.view.ChartNode))
	}

	labelW := min(chartLabelWidth, max(8, m.width/3))
	countW := len(itoa(top[0].Count))
	barW := max(1, m.width-labelW-countW-6)
	peak := 0
	for _, vc := range top {
		peak = max(peak, vc.Count)
	}

	rows := max(1, m.bodyHeight()-2)
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n\n")
	for i, vc := range top {
		if i >= rows {
			sb.WriteString(m.theme.MutedText.Render(fmt.Sprintf("… %d more", len(top)-i)))
			break
		}
		sb.WriteString(m.renderChartRow(vc, peak, labelW, barW, countW))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderChartRow(vc explore.ValueCount, peak, labelW, barW, countW int) string {
	label := m.theme.Renderer.NewStyle().Foreground(m.theme.ValueColor(vc.Value.Kind())).
		Render(fitCell(displayValue(vc.Value), labelW))
	bar := m.theme.BarFill.Render(strings.Repeat("█", chartBarWidth(vc.Count, peak, barW)))
	return fmt.Sprintf("%s  %*d  %s", label, countW, vc.Count, bar)
}
