package ui

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/eavview/pkg/model"
)

// tableColumns splits the width into ID, node and value columns.
func tableColumns(width int) (idW, nodeW, valueW int) {
	usable := max(30, width-6) // 2 gutters of 2 + cursor mark
	idW = usable * 3 / 10
	nodeW = usable * 3 / 10
	valueW = usable - idW - nodeW
	return idW, nodeW, valueW
}

func (m Model) renderTable() string {
	page := m.view.Page
	if page.Total == 0 {
		if m.state.Criteria().IsEmpty() {
			return m.renderEmpty("The dataset has no triples.")
		}
		return m.renderEmpty("No triples match the current filters.")
	}

	idW, nodeW, valueW := tableColumns(m.width)
	headerStyle := m.theme.Renderer.NewStyle().Foreground(ColorSubtext).Bold(true)

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("  " + fitCell(model.ColumnID, idW) + "  " +
		fitCell(model.ColumnNode, nodeW) + "  " + fitCell(model.ColumnValue, valueW)))
	sb.WriteString("\n")

	rows := max(1, m.bodyHeight()-3)
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	end := min(start+rows, len(page.Items))
	for i := start; i < end; i++ {
		sb.WriteString(m.renderRow(page.Items[i], i == m.cursor, idW, nodeW, valueW))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(m.theme.MutedText.Render(fmt.Sprintf("Showing %d-%d of %d  •  page %d/%d",
		page.RangeStart, page.RangeEnd, page.Total, page.PageIndex, page.PageCount)))
	return sb.String()
}

func (m Model) renderRow(t model.Triple, selected bool, idW, nodeW, valueW int) string {
	valueStyle := m.theme.Renderer.NewStyle().Foreground(m.theme.ValueColor(t.Value.Kind()))
	row := m.theme.IDText.Render(fitCell(t.ID, idW)) + "  " +
		m.theme.NodeText.Render(fitCell(t.Node, nodeW)) + "  " +
		valueStyle.Render(fitCell(displayValue(t.Value), valueW))
	if selected {
		return m.theme.PrimaryBold.Render("▸ ") + m.theme.Selected.Render(row)
	}
	return "  " + row
}
