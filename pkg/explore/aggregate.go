package explore

import (
	"sort"

	"github.com/vanderheijden86/eavview/pkg/metrics"
	"github.com/vanderheijden86/eavview/pkg/model"
)

// DefaultTopLimit is how many values TopValues keeps when no limit is given.
const DefaultTopLimit = 20

// ValueCount is one row of a frequency distribution.
type ValueCount struct {
	Value model.Value `json:"value"`
	Count int         `json:"count"`
}

// TopValues counts the values of node within filtered and returns them by
// descending count. Ties keep first-encountered order. Values are distinct
// by kind and text, so the number 1 and the string "1" are counted apart.
// limit <= 0 means DefaultTopLimit. No matching triples yields an empty,
// non-nil slice.
func TopValues(filtered []model.Triple, node string, limit int) []ValueCount {
	defer metrics.Timer(metrics.Aggregate)()
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	index := make(map[string]int)
	out := []ValueCount{}
	for _, t := range filtered {
		if t.Node != node {
			continue
		}
		key := t.Value.Key()
		if i, ok := index[key]; ok {
			out[i].Count++
			continue
		}
		index[key] = len(out)
		out = append(out, ValueCount{Value: t.Value, Count: 1})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ChartNode picks the node to aggregate: the explicit chart selection, else
// the first selected node type, else the domain node.
func ChartNode(s State, domainNode string) string {
	if n := s.ChartNode(); n != "" {
		return n
	}
	if nodes := s.Criteria().Normalized().NodeTypes; len(nodes) > 0 {
		return nodes[0]
	}
	return domainNode
}

// GraphNode picks the node to project: the explicit graph selection, else
// the domain node.
func GraphNode(s State, domainNode string) string {
	if n := s.GraphNode(); n != "" {
		return n
	}
	return domainNode
}
