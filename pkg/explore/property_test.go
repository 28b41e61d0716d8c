package explore

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/eavview/pkg/model"
	"github.com/vanderheijden86/eavview/pkg/testutil"
)

var (
	propIDs     = []string{"A", "B", "C", "D", "E", "F"}
	propNodes   = []string{domain, "Country", "Year", "Open access", ""}
	propDomains = []string{"Bio", "Physics", " Bio", "Chemistry"}
	propQueries = []string{"", "a", "bio", "EG", "20", "true", " ph "}
)

func valueGen() *rapid.Generator[model.Value] {
	return rapid.Custom(func(t *rapid.T) model.Value {
		switch rapid.IntRange(0, 4).Draw(t, "kind") {
		case 0:
			return model.Null()
		case 1:
			return model.NumberValue(float64(rapid.IntRange(2018, 2022).Draw(t, "num")))
		case 2:
			return model.BoolValue(rapid.Bool().Draw(t, "bool"))
		case 3:
			return model.StringValue(rapid.SampledFrom(propDomains).Draw(t, "domain"))
		default:
			return model.StringValue(rapid.SampledFrom([]string{"EG", "FR", "eg", "1"}).Draw(t, "str"))
		}
	})
}

func tripleGen() *rapid.Generator[model.Triple] {
	return rapid.Custom(func(t *rapid.T) model.Triple {
		return model.Triple{
			ID:    rapid.SampledFrom(propIDs).Draw(t, "id"),
			Node:  rapid.SampledFrom(propNodes).Draw(t, "node"),
			Value: valueGen().Draw(t, "value"),
		}
	})
}

func storeGen() *rapid.Generator[*model.Store] {
	return rapid.Custom(func(t *rapid.T) *model.Store {
		return model.NewStore(rapid.SliceOfN(tripleGen(), 0, 40).Draw(t, "triples"))
	})
}

func criteriaGen() *rapid.Generator[Criteria] {
	return rapid.Custom(func(t *rapid.T) Criteria {
		return Criteria{
			Query:        rapid.SampledFrom(propQueries).Draw(t, "query"),
			DomainValues: rapid.SliceOfN(rapid.SampledFrom(propDomains), 0, 2).Draw(t, "domains"),
			NodeTypes:    rapid.SliceOfN(rapid.SampledFrom(propNodes[:4]), 0, 2).Draw(t, "nodes"),
		}
	})
}

func sameSeq(a, b []model.Triple) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !testutil.SameTriple(a[i], b[i]) {
			return false
		}
	}
	return true
}

func TestProperty_ApplyIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := storeGen().Draw(t, "store")
		c := criteriaGen().Draw(t, "criteria")
		once := Apply(store, c, domain)
		twice := ApplyTo(store, once, c, domain)
		if !sameSeq(once, twice) {
			t.Fatalf("apply not idempotent: %d vs %d triples", len(once), len(twice))
		}
	})
}

func TestProperty_ApplyIsStableSubsequence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := storeGen().Draw(t, "store")
		c := criteriaGen().Draw(t, "criteria")
		got := Apply(store, c, domain)
		j := 0
		all := store.All()
		for _, tr := range got {
			for j < len(all) && !testutil.SameTriple(all[j], tr) {
				j++
			}
			if j == len(all) {
				t.Fatalf("result is not an ordered subsequence of the store")
			}
			j++
		}
	})
}

func TestProperty_PredicatesCommute(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := storeGen().Draw(t, "store")
		c := criteriaGen().Draw(t, "criteria")
		order := rapid.Permutation([]Axis{AxisQuery, AxisDomain, AxisNode}).Draw(t, "order")
		want := Apply(store, c, domain)
		got := ApplyInOrder(store, c, domain, order)
		if !sameSeq(want, got) {
			t.Fatalf("order %v gave %d triples, want %d", order, len(got), len(want))
		}
	})
}

func TestProperty_PaginationCoversAll(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 120).Draw(t, "n")
		size := rapid.IntRange(1, 30).Draw(t, "size")
		items := make([]model.Triple, n)
		for i := range items {
			items[i] = model.Triple{ID: "x", Node: "n", Value: model.NumberValue(float64(i))}
		}

		first := Paginate(items, 1, size)
		sum := 0
		for p := 1; p <= first.PageCount; p++ {
			page := Paginate(items, p, size)
			if len(page.Items) > size {
				t.Fatalf("page %d has %d items", p, len(page.Items))
			}
			sum += len(page.Items)
		}
		if sum != n {
			t.Fatalf("pages hold %d items, want %d", sum, n)
		}

		idx := rapid.IntRange(-5, first.PageCount+5).Draw(t, "idx")
		page := Paginate(items, idx, size)
		if page.PageIndex < 1 || page.PageIndex > page.PageCount {
			t.Fatalf("page index %d outside [1,%d]", page.PageIndex, page.PageCount)
		}
	})
}

func TestProperty_TopValues(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := storeGen().Draw(t, "store")
		node := rapid.SampledFrom(propNodes).Draw(t, "node")
		limit := rapid.IntRange(1, 10).Draw(t, "limit")

		unlimited := TopValues(store.All(), node, 1<<20)
		sum := 0
		for i, vc := range unlimited {
			sum += vc.Count
			if i > 0 && vc.Count > unlimited[i-1].Count {
				t.Fatalf("counts increase at %d", i)
			}
		}
		if want := testutil.CountNode(store.All(), node); sum != want {
			t.Fatalf("sum(counts) = %d, want %d", sum, want)
		}
		if got := TopValues(store.All(), node, limit); len(got) > limit {
			t.Fatalf("got %d values for limit %d", len(got), limit)
		}
	})
}

func TestProperty_ProjectionVertices(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := storeGen().Draw(t, "store")
		c := criteriaGen().Draw(t, "criteria")
		node := rapid.SampledFrom(propNodes).Draw(t, "node")
		filtered := Apply(store, c, domain)
		p := Project(filtered, node)

		if len(p.IDVertices) != len(testutil.DistinctIDs(filtered)) {
			t.Fatalf("%d id vertices, want %d", len(p.IDVertices), len(testutil.DistinctIDs(filtered)))
		}
		if len(p.Edges) != testutil.CountNode(filtered, node) {
			t.Fatalf("%d edges, want one per %q triple", len(p.Edges), node)
		}
		for _, e := range p.Edges {
			if p.IDVertices[e.IDIndex].Label != e.ID {
				t.Fatalf("edge id %q not at its vertex", e.ID)
			}
			if p.ValueVertices[e.ValueIndex].Label != e.Value {
				t.Fatalf("edge value %q not at its vertex", e.Value)
			}
		}
	})
}

func TestProperty_StateCriteriaChangeResetsPage(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewState(10).SetPage(rapid.IntRange(2, 50).Draw(t, "page"))
		c := criteriaGen().Draw(t, "criteria")
		next := s.SetCriteria(c)
		if !next.Criteria().Equal(s.Criteria()) && next.Page() != 1 {
			t.Fatalf("criteria changed but page stayed %d", next.Page())
		}
		if s.Page() == 1 {
			t.Fatalf("receiver was modified")
		}
	})
}
