package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/eavview/pkg/explore"
)

// valueLinks groups the IDs linked to one value vertex. Parallel edges
// show up as repeated IDs.
type valueLinks struct {
	Value string
	IDs   []string
}

// groupByValue lists value vertices by descending edge count; ties keep
// vertex order.
func groupByValue(p explore.Projection) []valueLinks {
	groups := make([]valueLinks, len(p.ValueVertices))
	for i, v := range p.ValueVertices {
		groups[i].Value = v.Label
	}
	for _, e := range p.Edges {
		groups[e.ValueIndex].IDs = append(groups[e.ValueIndex].IDs, e.ID)
	}
	sort.SliceStable(groups, func(i, j int) bool { return len(groups[i].IDs) > len(groups[j].IDs) })
	return groups
}

func (m Model) renderNetwork() string {
	p := m.view.Graph
	s := p.Summary()

	var sb strings.Builder
	sb.WriteString(m.theme.PrimaryBold.Render("Network of "+p.Node) +
		m.theme.MutedText.Render("  (g to change node)"))
	sb.WriteString("\n")
	sb.WriteString(m.theme.MutedText.Render(fmt.Sprintf("%d IDs  •  %d values  •  %d edges  •  %d components",
		s.IDCount, s.ValueCount, s.EdgeCount, s.Components)))
	if s.IsolatedIDs > 0 {
		sb.WriteString(m.theme.MutedText.Render(fmt.Sprintf("  •  %d IDs without %q", s.IsolatedIDs, p.Node)))
	}
	sb.WriteString("\n\n")

	if !p.HasEdges() {
		sb.WriteString(m.theme.MutedText.Italic(true).Render(
			fmt.Sprintf("No %q edges in the filtered triples.", p.Node)))
		return sb.String()
	}

	valueW := min(chartLabelWidth, max(8, m.width/3))
	idsW := max(10, m.width-valueW-10)
	rows := max(1, m.bodyHeight()-4)
	groups := groupByValue(p)
	for i, g := range groups {
		if i >= rows {
			sb.WriteString(m.theme.MutedText.Render(fmt.Sprintf("… %d more values", len(groups)-i)))
			break
		}
		value := m.theme.NodeText.Render("● " + fitCell(g.Value, valueW))
		links := m.theme.IDText.Render(truncate(strings.Join(g.IDs, ", "), idsW))
		sb.WriteString(fmt.Sprintf("%s %3d ─ %s\n", value, len(g.IDs), links))
	}
	return sb.String()
}
