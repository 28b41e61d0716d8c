package explore

import (
	"sort"

	"github.com/vanderheijden86/eavview/pkg/metrics"
	"github.com/vanderheijden86/eavview/pkg/model"
)

// NodeGroup holds every value an ID has for one node, in load order.
type NodeGroup struct {
	Node   string        `json:"node"`
	Values []model.Value `json:"values"`
}

// Detail is the drill-down view of a single ID.
type Detail struct {
	ID     string      `json:"id"`
	Groups []NodeGroup `json:"groups"`
}

// Found reports whether the ID had any triples.
func (d Detail) Found() bool {
	return len(d.Groups) > 0
}

// Map returns the groups keyed by node name.
func (d Detail) Map() map[string][]model.Value {
	m := make(map[string][]model.Value, len(d.Groups))
	for _, g := range d.Groups {
		m[g.Node] = g.Values
	}
	return m
}

// DetailsFor groups the triples of id by node. Groups are sorted by node
// name; values keep first-encountered order, duplicates included.
func DetailsFor(store *model.Store, id string) Detail {
	mustStore(store, "DetailsFor")
	defer metrics.Timer(metrics.DetailResolve)()

	d := Detail{ID: id, Groups: []NodeGroup{}}
	idx, ok := store.IDIndex(id)
	if !ok {
		return d
	}
	pos := make(map[string]int)
	for i, t := range store.All() {
		if store.TripleIDIndex(i) != idx {
			continue
		}
		gi, ok := pos[t.Node]
		if !ok {
			gi = len(d.Groups)
			pos[t.Node] = gi
			d.Groups = append(d.Groups, NodeGroup{Node: t.Node})
		}
		d.Groups[gi].Values = append(d.Groups[gi].Values, t.Value)
	}
	sort.SliceStable(d.Groups, func(i, j int) bool { return d.Groups[i].Node < d.Groups[j].Node })
	return d
}
