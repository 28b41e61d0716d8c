// Package explore is the in-memory exploration engine over a triple store:
// option indexing, filtering, paging, value aggregation, bipartite graph
// projection and per-ID detail resolution. Every function here is a pure
// computation over its inputs; Engine adds readiness and load supersession.
package explore

import (
	"sort"
	"strings"

	"github.com/vanderheijden86/eavview/pkg/metrics"
	"github.com/vanderheijden86/eavview/pkg/model"
)

// DefaultDomainNode is the node used as the primary filter facet when none
// is configured.
const DefaultDomainNode = "Scientific domain"

func mustStore(store *model.Store, op string) {
	if store == nil {
		panic("explore: " + op + " called with nil store")
	}
}

// DomainOptions returns the distinct, trimmed, non-empty values of triples
// whose node is domainNode, sorted lexicographically.
func DomainOptions(store *model.Store, domainNode string) []string {
	mustStore(store, "DomainOptions")
	defer metrics.Timer(metrics.OptionIndex)()

	seen := make(map[string]struct{})
	out := []string{}
	for _, t := range store.All() {
		if t.Node != domainNode {
			continue
		}
		v := strings.TrimSpace(t.Value.String())
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// NodeOptions returns the distinct non-empty node names, sorted.
func NodeOptions(store *model.Store) []string {
	mustStore(store, "NodeOptions")
	defer metrics.Timer(metrics.OptionIndex)()

	seen := make(map[string]struct{})
	out := []string{}
	for _, t := range store.All() {
		if t.Node == "" {
			continue
		}
		if _, ok := seen[t.Node]; ok {
			continue
		}
		seen[t.Node] = struct{}{}
		out = append(out, t.Node)
	}
	sort.Strings(out)
	return out
}
