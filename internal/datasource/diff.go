package datasource

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/eavview/pkg/loader"
	"github.com/vanderheijden86/eavview/pkg/model"
)

// SourceDiff represents differences between two triple stores
type SourceDiff struct {
	// SourceA is the label of the first store
	SourceA string `json:"source_a"`
	// SourceB is the label of the second store
	SourceB string `json:"source_b"`
	// MissingInA contains IDs present in B but not in A
	MissingInA []string `json:"missing_in_a,omitempty"`
	// MissingInB contains IDs present in A but not in B
	MissingInB []string `json:"missing_in_b,omitempty"`
	// Changed contains IDs present in both whose triples differ
	Changed []IDDifference `json:"changed,omitempty"`
	// CountA is the number of triples in store A
	CountA int `json:"count_a"`
	// CountB is the number of triples in store B
	CountB int `json:"count_b"`
}

// IDDifference counts the node/value pairs one side has that the other lacks.
type IDDifference struct {
	ID      string `json:"id"`
	OnlyInA int    `json:"only_in_a"`
	OnlyInB int    `json:"only_in_b"`
}

// HasInconsistencies returns true if there are any differences between stores
func (d SourceDiff) HasInconsistencies() bool {
	return len(d.MissingInA) > 0 || len(d.MissingInB) > 0 || len(d.Changed) > 0
}

// Summary returns a human-readable summary of the differences
func (d SourceDiff) Summary() string {
	if !d.HasInconsistencies() {
		return fmt.Sprintf("Sources match (%d triples each)", d.CountA)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Differences between %s and %s:\n", d.SourceA, d.SourceB)
	if d.CountA != d.CountB {
		fmt.Fprintf(&sb, "  - Triple count: %d vs %d\n", d.CountA, d.CountB)
	}
	writeIDs := func(ids []string, in, notIn string) {
		if len(ids) == 0 {
			return
		}
		fmt.Fprintf(&sb, "  - %d IDs in %s but not %s\n", len(ids), in, notIn)
		if len(ids) <= 5 {
			for _, id := range ids {
				fmt.Fprintf(&sb, "    - %s\n", id)
			}
		}
	}
	writeIDs(d.MissingInA, d.SourceB, d.SourceA)
	writeIDs(d.MissingInB, d.SourceA, d.SourceB)
	if len(d.Changed) > 0 {
		fmt.Fprintf(&sb, "  - %d IDs with different attributes\n", len(d.Changed))
		if len(d.Changed) <= 5 {
			for _, c := range d.Changed {
				fmt.Fprintf(&sb, "    - %s: -%d +%d\n", c.ID, c.OnlyInA, c.OnlyInB)
			}
		}
	}
	return sb.String()
}

// DiffOptions configures the diff operation
type DiffOptions struct {
	// MaxDifferences limits the entries tracked per list (0 = unlimited)
	MaxDifferences int
}

// DefaultDiffOptions returns the default diff options
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{MaxDifferences: 100}
}

// DiffStores compares two stores ID by ID. Triples are compared as a
// multiset of (node, value) pairs, so duplicate rows count.
func DiffStores(a, b *model.Store, labelA, labelB string, opts DiffOptions) SourceDiff {
	diff := SourceDiff{
		SourceA: labelA,
		SourceB: labelB,
		CountA:  a.Len(),
		CountB:  b.Len(),
	}
	room := func(n int) bool { return opts.MaxDifferences == 0 || n < opts.MaxDifferences }

	pairsA := pairCounts(a)
	pairsB := pairCounts(b)

	for id := range pairsA {
		if _, ok := pairsB[id]; !ok && room(len(diff.MissingInB)) {
			diff.MissingInB = append(diff.MissingInB, id)
		}
	}
	for id, pb := range pairsB {
		pa, ok := pairsA[id]
		if !ok {
			if room(len(diff.MissingInA)) {
				diff.MissingInA = append(diff.MissingInA, id)
			}
			continue
		}
		onlyA, onlyB := multisetDelta(pa, pb)
		if (onlyA > 0 || onlyB > 0) && room(len(diff.Changed)) {
			diff.Changed = append(diff.Changed, IDDifference{ID: id, OnlyInA: onlyA, OnlyInB: onlyB})
		}
	}

	sort.Strings(diff.MissingInA)
	sort.Strings(diff.MissingInB)
	sort.Slice(diff.Changed, func(i, j int) bool { return diff.Changed[i].ID < diff.Changed[j].ID })
	return diff
}

// CompareSources loads and compares two data sources
func CompareSources(ctx context.Context, sourceA, sourceB DataSource, parse loader.ParseOptions, opts DiffOptions) (*SourceDiff, error) {
	a, err := LoadFromSource(ctx, sourceA, parse)
	if err != nil {
		return nil, fmt.Errorf("failed to load source A (%s): %w", sourceA.Path, err)
	}
	b, err := LoadFromSource(ctx, sourceB, parse)
	if err != nil {
		return nil, fmt.Errorf("failed to load source B (%s): %w", sourceB.Path, err)
	}
	diff := DiffStores(a, b, sourceA.Path, sourceB.Path, opts)
	return &diff, nil
}

func pairCounts(s *model.Store) map[string]map[string]int {
	out := make(map[string]map[string]int, s.IDCount())
	for _, t := range s.All() {
		m, ok := out[t.ID]
		if !ok {
			m = make(map[string]int)
			out[t.ID] = m
		}
		m[t.Node+"\x00"+t.Value.Key()]++
	}
	return out
}

func multisetDelta(a, b map[string]int) (onlyA, onlyB int) {
	for k, na := range a {
		if nb := b[k]; na > nb {
			onlyA += na - nb
		}
	}
	for k, nb := range b {
		if na := a[k]; nb > na {
			onlyB += nb - na
		}
	}
	return onlyA, onlyB
}
