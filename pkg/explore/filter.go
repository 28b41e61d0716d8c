package explore

import (
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/vanderheijden86/eavview/pkg/debug"
	"github.com/vanderheijden86/eavview/pkg/metrics"
	"github.com/vanderheijden86/eavview/pkg/model"
)

// Criteria is the combination of text query, domain-value selection and
// node-type selection. Empty fields impose no restriction.
type Criteria struct {
	Query        string   `json:"query,omitempty"`
	DomainValues []string `json:"domain_values,omitempty"`
	NodeTypes    []string `json:"node_types,omitempty"`
}

// Normalized trims the query and domain values, drops blanks and removes
// duplicates while keeping selection order. Node types are matched
// exactly and only have duplicates and empty names removed.
func (c Criteria) Normalized() Criteria {
	return Criteria{
		Query:        strings.TrimSpace(c.Query),
		DomainValues: uniqueOrdered(c.DomainValues, true),
		NodeTypes:    uniqueOrdered(c.NodeTypes, false),
	}
}

// IsEmpty reports whether the criteria impose no constraint at all.
func (c Criteria) IsEmpty() bool {
	n := c.Normalized()
	return n.Query == "" && len(n.DomainValues) == 0 && len(n.NodeTypes) == 0
}

// Equal compares normalized criteria. Selection order is significant.
func (c Criteria) Equal(o Criteria) bool {
	a, b := c.Normalized(), o.Normalized()
	return a.Query == b.Query && equalStrings(a.DomainValues, b.DomainValues) && equalStrings(a.NodeTypes, b.NodeTypes)
}

func uniqueOrdered(in []string, trim bool) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if trim {
			s = strings.TrimSpace(s)
		}
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Axis names one independent filter predicate.
type Axis int

const (
	AxisQuery Axis = iota
	AxisDomain
	AxisNode
)

func (a Axis) String() string {
	switch a {
	case AxisQuery:
		return "query"
	case AxisDomain:
		return "domain"
	case AxisNode:
		return "node"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// DefaultAxisOrder applies the cheapest predicates first: a set lookup on
// the node, a bitmap probe on the ID, then the substring scan.
var DefaultAxisOrder = []Axis{AxisNode, AxisDomain, AxisQuery}

// DomainMembership returns the interned indices of IDs that carry a
// domainNode triple whose trimmed value is one of values. It always scans
// the full store.
func DomainMembership(store *model.Store, domainNode string, values []string) *roaring.Bitmap {
	mustStore(store, "DomainMembership")
	bm := roaring.New()
	want := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			want[v] = struct{}{}
		}
	}
	if len(want) == 0 {
		return bm
	}
	for i, t := range store.All() {
		if t.Node != domainNode {
			continue
		}
		if _, ok := want[strings.TrimSpace(t.Value.String())]; ok {
			bm.Add(store.TripleIDIndex(i))
		}
	}
	return bm
}

// Filter is a compiled Criteria bound to a store. Domain membership is
// resolved once at compile time.
type Filter struct {
	store      *model.Store
	criteria   Criteria
	query      string
	nodes      map[string]struct{}
	membership *roaring.Bitmap
}

// NewFilter compiles criteria against store. domainNode names the node
// whose values DomainValues refer to.
func NewFilter(store *model.Store, c Criteria, domainNode string) *Filter {
	mustStore(store, "NewFilter")
	c = c.Normalized()
	f := &Filter{
		store:    store,
		criteria: c,
		query:    strings.ToLower(c.Query),
	}
	if len(c.NodeTypes) > 0 {
		f.nodes = make(map[string]struct{}, len(c.NodeTypes))
		for _, n := range c.NodeTypes {
			f.nodes[n] = struct{}{}
		}
	}
	if len(c.DomainValues) > 0 {
		f.membership = DomainMembership(store, domainNode, c.DomainValues)
	}
	return f
}

// Criteria returns the normalized criteria the filter was built from.
func (f *Filter) Criteria() Criteria {
	return f.criteria
}

// Active reports whether the axis constrains anything.
func (f *Filter) Active(a Axis) bool {
	switch a {
	case AxisQuery:
		return f.query != ""
	case AxisDomain:
		return f.membership != nil
	case AxisNode:
		return f.nodes != nil
	}
	return false
}

func (f *Filter) matchAxis(a Axis, t *model.Triple, idIdx uint32, known bool) bool {
	switch a {
	case AxisQuery:
		if f.query == "" {
			return true
		}
		return strings.Contains(strings.ToLower(t.ID), f.query) ||
			strings.Contains(strings.ToLower(t.Node), f.query) ||
			strings.Contains(strings.ToLower(t.Value.String()), f.query)
	case AxisDomain:
		if f.membership == nil {
			return true
		}
		return known && f.membership.Contains(idIdx)
	case AxisNode:
		if f.nodes == nil {
			return true
		}
		_, ok := f.nodes[t.Node]
		return ok
	}
	return true
}

// Match reports whether t satisfies every active axis. t need not come from
// the filter's store; IDs the store has never seen fail an active domain
// axis.
func (f *Filter) Match(t model.Triple) bool {
	idx, known := f.store.IDIndex(t.ID)
	for _, a := range DefaultAxisOrder {
		if !f.matchAxis(a, &t, idx, known) {
			return false
		}
	}
	return true
}

// Apply keeps the triples of in that match, preserving order.
func (f *Filter) Apply(in []model.Triple) []model.Triple {
	return f.applyAxes(in, DefaultAxisOrder)
}

func (f *Filter) applyAxes(in []model.Triple, axes []Axis) []model.Triple {
	out := make([]model.Triple, 0, len(in))
	for i := range in {
		t := &in[i]
		idx, known := f.store.IDIndex(t.ID)
		keep := true
		for _, a := range axes {
			if !f.matchAxis(a, t, idx, known) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, *t)
		}
	}
	return out
}

// applyStore is Apply over the whole store, using the interned ID index of
// each position instead of a map lookup.
func (f *Filter) applyStore() []model.Triple {
	all := f.store.All()
	out := make([]model.Triple, 0, len(all))
	for i := range all {
		t := &all[i]
		idx := f.store.TripleIDIndex(i)
		keep := true
		for _, a := range DefaultAxisOrder {
			if !f.matchAxis(a, t, idx, true) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, *t)
		}
	}
	return out
}

// Apply filters the full store by c. The result keeps load order and is
// empty, never nil, when nothing matches.
func Apply(store *model.Store, c Criteria, domainNode string) []model.Triple {
	defer metrics.Timer(metrics.FilterApply)()
	f := NewFilter(store, c, domainNode)
	out := f.applyStore()
	debug.Log("explore.Apply: %d of %d triples (query=%q domains=%d nodes=%d)",
		len(out), store.Len(), f.criteria.Query, len(f.criteria.DomainValues), len(f.criteria.NodeTypes))
	return out
}

// ApplyTo filters an arbitrary subsequence of store, e.g. an earlier
// result. Domain membership is still computed over the full store.
func ApplyTo(store *model.Store, triples []model.Triple, c Criteria, domainNode string) []model.Triple {
	defer metrics.Timer(metrics.FilterApply)()
	return NewFilter(store, c, domainNode).Apply(triples)
}

// ApplyInOrder applies each listed axis as a separate pass in the given
// order. Axes left out of order are not applied. Listing all three axes in
// any permutation gives the same result as Apply.
func ApplyInOrder(store *model.Store, c Criteria, domainNode string, order []Axis) []model.Triple {
	f := NewFilter(store, c, domainNode)
	out := append([]model.Triple{}, store.All()...)
	for _, a := range order {
		if f.Active(a) {
			out = f.applyAxes(out, []Axis{a})
		}
	}
	return out
}
