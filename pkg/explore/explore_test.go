package explore

import (
	"reflect"
	"testing"

	"github.com/vanderheijden86/eavview/pkg/model"
	"github.com/vanderheijden86/eavview/pkg/testutil"
)

const domain = testutil.DomainNode

// =============================================================================
// Option indexing
// =============================================================================

func TestDomainOptions(t *testing.T) {
	store := model.NewStore([]model.Triple{
		{ID: "A", Node: domain, Value: model.StringValue("Physics")},
		{ID: "B", Node: domain, Value: model.StringValue(" Bio ")},
		{ID: "C", Node: domain, Value: model.StringValue("Bio")},
		{ID: "D", Node: domain, Value: model.Null()},
		{ID: "E", Node: domain, Value: model.StringValue("   ")},
		{ID: "F", Node: "Country", Value: model.StringValue("EG")},
	})
	got := DomainOptions(store, domain)
	want := []string{"Bio", "Physics"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DomainOptions = %v, want %v", got, want)
	}
	testutil.AssertSorted(t, got)

	if got := DomainOptions(store, "Missing node"); len(got) != 0 || got == nil {
		t.Errorf("Expected empty non-nil options, got %#v", got)
	}
}

func TestNodeOptions(t *testing.T) {
	store := model.NewStore([]model.Triple{
		{ID: "A", Node: "Year", Value: model.NumberValue(1)},
		{ID: "A", Node: "", Value: model.NumberValue(1)},
		{ID: "B", Node: "Country", Value: model.StringValue("EG")},
		{ID: "B", Node: "Year", Value: model.NumberValue(2)},
	})
	got := NodeOptions(store)
	want := []string{"Country", "Year"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NodeOptions = %v, want %v", got, want)
	}
}

func TestOptions_OrderIndependent(t *testing.T) {
	triples := testutil.NewDefault().Triples()
	reversed := make([]model.Triple, len(triples))
	for i, tr := range triples {
		reversed[len(triples)-1-i] = tr
	}
	a, b := model.NewStore(triples), model.NewStore(reversed)
	if !reflect.DeepEqual(DomainOptions(a, domain), DomainOptions(b, domain)) {
		t.Error("DomainOptions depends on input order")
	}
	if !reflect.DeepEqual(NodeOptions(a), NodeOptions(b)) {
		t.Error("NodeOptions depends on input order")
	}
}

func TestNilStorePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for nil store")
		}
	}()
	Apply(nil, Criteria{}, domain)
}

// =============================================================================
// Filtering
// =============================================================================

func TestApply_DomainScenario(t *testing.T) {
	store := testutil.ScenarioStore()
	got := Apply(store, Criteria{DomainValues: []string{"Bio"}}, domain)
	testutil.AssertTripleCount(t, got, 2)
	for _, tr := range got {
		if tr.ID != "A" {
			t.Errorf("Expected only ID A, got %v", tr)
		}
	}
}

func TestApply_QueryScenario(t *testing.T) {
	store := testutil.ScenarioStore()
	got := Apply(store, Criteria{Query: "eg"}, domain)
	testutil.AssertTripleCount(t, got, 1)
	if got[0].Node != "Country" || got[0].Value.String() != "EG" {
		t.Errorf("Expected Country/EG, got %v", got[0])
	}
}

func TestApply_EmptyCriteriaKeepsEverything(t *testing.T) {
	store := testutil.NewDefault().Store()
	got := Apply(store, Criteria{Query: "   ", DomainValues: []string{""}}, domain)
	testutil.AssertTriplesEqual(t, got, store.All())
}

func TestApply_NoMatchIsEmptyNotNil(t *testing.T) {
	store := testutil.ScenarioStore()
	got := Apply(store, Criteria{Query: "zzz"}, domain)
	if got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil result, got %#v", got)
	}
}

func TestApply_QueryMatchesStringifiedValues(t *testing.T) {
	store := model.NewStore([]model.Triple{
		{ID: "A", Node: "Year", Value: model.NumberValue(2021)},
		{ID: "B", Node: "Open access", Value: model.BoolValue(true)},
		{ID: "C", Node: "Notes", Value: model.Null()},
	})
	tests := []struct {
		query string
		want  []string
	}{
		{"202", []string{"A"}},
		{"TRUE", []string{"B"}},
		{"null", nil},
		{"notes", []string{"C"}},
		{"c", []string{"B", "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := testutil.DistinctIDs(Apply(store, Criteria{Query: tt.query}, domain))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("query %q matched %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestApply_DomainMembershipUsesFullStore(t *testing.T) {
	store := testutil.ScenarioStore()
	// The query alone drops A's domain triple; A must still pass the domain
	// axis because membership is decided over the whole store.
	got := Apply(store, Criteria{Query: "EG", DomainValues: []string{"Bio"}}, domain)
	testutil.AssertTripleCount(t, got, 1)

	got = Apply(store, Criteria{DomainValues: []string{"Bio"}, NodeTypes: []string{"Country"}}, domain)
	testutil.AssertTripleCount(t, got, 1)
	if got[0].Node != "Country" {
		t.Errorf("Expected the Country triple, got %v", got[0])
	}
}

func TestApply_DomainValuesAreTrimmed(t *testing.T) {
	store := model.NewStore([]model.Triple{
		{ID: "A", Node: domain, Value: model.StringValue(" Bio ")},
		{ID: "B", Node: domain, Value: model.StringValue("Physics")},
	})
	got := Apply(store, Criteria{DomainValues: []string{"Bio "}}, domain)
	if ids := testutil.DistinctIDs(got); !reflect.DeepEqual(ids, []string{"A"}) {
		t.Errorf("Expected A, got %v", ids)
	}
}

func TestApply_CustomDomainNode(t *testing.T) {
	store := model.NewStore([]model.Triple{
		{ID: "A", Node: "Field", Value: model.StringValue("Bio")},
		{ID: "B", Node: domain, Value: model.StringValue("Bio")},
	})
	got := Apply(store, Criteria{DomainValues: []string{"Bio"}}, "Field")
	if ids := testutil.DistinctIDs(got); !reflect.DeepEqual(ids, []string{"A"}) {
		t.Errorf("Expected A, got %v", ids)
	}
}

func TestDomainMembership(t *testing.T) {
	store := testutil.ScenarioStore()
	bm := DomainMembership(store, domain, []string{"Bio", "Physics"})
	if bm.GetCardinality() != 2 {
		t.Errorf("Expected 2 members, got %d", bm.GetCardinality())
	}
	if DomainMembership(store, domain, nil).GetCardinality() != 0 {
		t.Error("Expected empty membership for empty selection")
	}
}

func TestFilter_MatchUnknownID(t *testing.T) {
	store := testutil.ScenarioStore()
	f := NewFilter(store, Criteria{DomainValues: []string{"Bio"}}, domain)
	if f.Match(model.Triple{ID: "Z", Node: "Country", Value: model.StringValue("EG")}) {
		t.Error("Unknown ID should fail an active domain axis")
	}
	if !f.Match(model.Triple{ID: "A", Node: "Anything"}) {
		t.Error("Member ID should match")
	}
}

func TestCriteriaNormalized(t *testing.T) {
	c := Criteria{Query: "  x ", DomainValues: []string{" Bio", "Bio", ""}, NodeTypes: []string{"Year", "Year", ""}}
	n := c.Normalized()
	if n.Query != "x" || !reflect.DeepEqual(n.DomainValues, []string{"Bio"}) || !reflect.DeepEqual(n.NodeTypes, []string{"Year"}) {
		t.Errorf("Normalized = %+v", n)
	}
	if !c.Equal(n) {
		t.Error("Criteria should equal its normalized form")
	}
	if (Criteria{Query: " "}).IsEmpty() != true {
		t.Error("Whitespace query should be empty")
	}
}

// =============================================================================
// Pagination
// =============================================================================

func TestPaginate(t *testing.T) {
	triples := testutil.New(testutil.GeneratorConfig{IDCount: 30, Nodes: []string{"Country"}}).Triples() // 60
	tests := []struct {
		name                string
		page, size          int
		wantPage, wantCount int
		wantStart, wantEnd  int
		wantItems           int
	}{
		{"first", 1, 25, 1, 3, 1, 25, 25},
		{"last partial", 3, 25, 3, 3, 51, 60, 10},
		{"clamp high", 9, 25, 3, 3, 51, 60, 10},
		{"clamp low", -4, 25, 1, 3, 1, 25, 25},
		{"exact fit", 2, 30, 2, 2, 31, 60, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(triples, tt.page, tt.size)
			if p.PageIndex != tt.wantPage || p.PageCount != tt.wantCount {
				t.Errorf("page %d/%d, want %d/%d", p.PageIndex, p.PageCount, tt.wantPage, tt.wantCount)
			}
			if p.RangeStart != tt.wantStart || p.RangeEnd != tt.wantEnd {
				t.Errorf("range %d-%d, want %d-%d", p.RangeStart, p.RangeEnd, tt.wantStart, tt.wantEnd)
			}
			if len(p.Items) != tt.wantItems || p.Total != 60 {
				t.Errorf("items=%d total=%d", len(p.Items), p.Total)
			}
		})
	}
}

func TestPaginate_Empty(t *testing.T) {
	p := Paginate(nil, 5, 50)
	if p.PageIndex != 1 || p.PageCount != 1 || p.RangeStart != 0 || p.RangeEnd != 0 || len(p.Items) != 0 {
		t.Errorf("Unexpected empty page %+v", p)
	}
}

func TestPaginate_NonPositiveSizePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for page size 0")
		}
	}()
	Paginate(nil, 1, 0)
}

// =============================================================================
// Aggregation
// =============================================================================

func TestTopValues_Scenario(t *testing.T) {
	got := TopValues(testutil.Scenario(), domain, 20)
	if len(got) != 2 {
		t.Fatalf("Expected 2 values, got %v", got)
	}
	if got[0].Value.String() != "Bio" || got[0].Count != 1 || got[1].Value.String() != "Physics" || got[1].Count != 1 {
		t.Errorf("Unexpected ranking %v", got)
	}
}

func TestTopValues_RankingAndLimit(t *testing.T) {
	var triples []model.Triple
	add := func(v string, n int) {
		for i := 0; i < n; i++ {
			triples = append(triples, model.Triple{ID: v, Node: "K", Value: model.StringValue(v)})
		}
	}
	add("c", 1)
	add("a", 3)
	add("b", 3)
	add("d", 2)

	got := TopValues(triples, "K", 3)
	want := []string{"a", "b", "d"}
	if len(got) != 3 {
		t.Fatalf("Expected 3, got %d", len(got))
	}
	for i, w := range want {
		if got[i].Value.String() != w {
			t.Errorf("rank %d: got %s, want %s", i, got[i].Value.String(), w)
		}
	}

	if got := TopValues(triples, "K", 0); len(got) != 4 {
		t.Errorf("limit 0 should use the default, got %d values", len(got))
	}
}

func TestTopValues_KindsAreDistinct(t *testing.T) {
	triples := []model.Triple{
		{ID: "A", Node: "K", Value: model.NumberValue(1)},
		{ID: "B", Node: "K", Value: model.StringValue("1")},
		{ID: "C", Node: "K", Value: model.NumberValue(1)},
	}
	got := TopValues(triples, "K", 0)
	if len(got) != 2 || got[0].Count != 2 || got[0].Value.Kind() != model.KindNumber {
		t.Errorf("Unexpected counts %v", got)
	}
}

func TestTopValues_NoMatch(t *testing.T) {
	got := TopValues(testutil.Scenario(), "Missing", 20)
	if got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", got)
	}
}

func TestChartNodeFallbacks(t *testing.T) {
	s := NewState(10)
	if got := ChartNode(s, domain); got != domain {
		t.Errorf("default chart node = %q", got)
	}
	s = s.SetNodeFilter([]string{"Year", "Country"})
	if got := ChartNode(s, domain); got != "Year" {
		t.Errorf("chart node from node filter = %q", got)
	}
	s = s.SelectChartNode("Country")
	if got := ChartNode(s, domain); got != "Country" {
		t.Errorf("explicit chart node = %q", got)
	}
	if got := GraphNode(s, domain); got != domain {
		t.Errorf("default graph node = %q", got)
	}
}

// =============================================================================
// Graph projection
// =============================================================================

func TestProject(t *testing.T) {
	triples := []model.Triple{
		{ID: "A", Node: domain, Value: model.StringValue("Bio")},
		{ID: "A", Node: "Country", Value: model.StringValue("EG")},
		{ID: "B", Node: "Country", Value: model.StringValue("FR")},
		{ID: "C", Node: domain, Value: model.StringValue("Bio")},
		{ID: "C", Node: domain, Value: model.StringValue("Bio")},
	}
	p := Project(triples, domain)

	ids := []string{"A", "B", "C"}
	for i, v := range p.IDVertices {
		if v.Label != ids[i] || v.Index != i || v.Kind != VertexID {
			t.Errorf("id vertex %d = %+v", i, v)
		}
	}
	if len(p.ValueVertices) != 1 || p.ValueVertices[0].Label != "Bio" {
		t.Errorf("value vertices = %+v", p.ValueVertices)
	}
	if len(p.Edges) != 3 {
		t.Fatalf("Expected 3 edges (duplicates kept), got %d", len(p.Edges))
	}
	if p.Edges[1] != p.Edges[2] {
		t.Errorf("Duplicate triples should give identical edges: %+v", p.Edges)
	}

	g := p.Graph()
	if g.Nodes().Len() != 4 {
		t.Errorf("graph nodes = %d", g.Nodes().Len())
	}
	if lines := g.Lines(2, 3); lines.Len() != 2 {
		t.Errorf("Expected 2 parallel lines between C and Bio, got %d", lines.Len())
	}

	s := p.Summary()
	want := GraphSummary{IDCount: 3, ValueCount: 1, EdgeCount: 3, DistinctEdges: 2, Components: 2, IsolatedIDs: 1, MaxValueDegree: 3, BusiestValue: "Bio"}
	if s != want {
		t.Errorf("Summary = %+v, want %+v", s, want)
	}
}

func TestProject_Empty(t *testing.T) {
	p := Project(nil, domain)
	if p.HasEdges() || len(p.IDVertices) != 0 {
		t.Errorf("Expected empty projection, got %+v", p)
	}
	if s := p.Summary(); s.Components != 0 {
		t.Errorf("Expected no components, got %+v", s)
	}
}

func TestProject_VertexFor(t *testing.T) {
	p := Project(testutil.Scenario(), domain)
	v, ok := p.VertexFor(2)
	if !ok || v.Kind != VertexValue || v.Label != "Bio" {
		t.Errorf("VertexFor(2) = %+v, %v", v, ok)
	}
	if _, ok := p.VertexFor(99); ok {
		t.Error("Expected out-of-range vertex lookup to fail")
	}
}

func TestLayout(t *testing.T) {
	p := Project(testutil.Scenario(), domain)
	l := p.Layout(1000, 600, 80)
	if l.IDs[0] != (Point{80, 80}) || l.IDs[1] != (Point{80, 520}) {
		t.Errorf("ID column = %v", l.IDs)
	}
	if l.Values[0].X != 920 || l.Values[1].Y != 520 {
		t.Errorf("value column = %v", l.Values)
	}

	single := Project(testutil.Scenario()[:1], domain).Layout(1000, 600, 80)
	if single.IDs[0].Y != 80 {
		t.Errorf("single vertex should sit at the top pad, got %v", single.IDs[0])
	}
}

// =============================================================================
// Details
// =============================================================================

func TestDetailsFor_Scenario(t *testing.T) {
	d := DetailsFor(testutil.ScenarioStore(), "A")
	if len(d.Groups) != 2 || d.Groups[0].Node != "Country" || d.Groups[1].Node != domain {
		t.Fatalf("Unexpected groups %+v", d.Groups)
	}
	m := d.Map()
	if m["Country"][0].String() != "EG" || m[domain][0].String() != "Bio" {
		t.Errorf("Unexpected values %v", m)
	}
}

func TestDetailsFor_DuplicatesAndOrder(t *testing.T) {
	store := model.NewStore([]model.Triple{
		{ID: "A", Node: "Tag", Value: model.StringValue("z")},
		{ID: "B", Node: "Tag", Value: model.StringValue("q")},
		{ID: "A", Node: "Tag", Value: model.StringValue("a")},
		{ID: "A", Node: "Tag", Value: model.StringValue("z")},
	})
	d := DetailsFor(store, "A")
	if len(d.Groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(d.Groups))
	}
	var got []string
	for _, v := range d.Groups[0].Values {
		got = append(got, v.String())
	}
	if !reflect.DeepEqual(got, []string{"z", "a", "z"}) {
		t.Errorf("values = %v", got)
	}
	if DetailsFor(store, "missing").Found() {
		t.Error("Unknown ID should have no groups")
	}
}
