package explore

import (
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/vanderheijden86/eavview/pkg/metrics"
	"github.com/vanderheijden86/eavview/pkg/model"
)

// VertexKind tells the two sides of the bipartite projection apart.
type VertexKind int

const (
	VertexID VertexKind = iota
	VertexValue
)

func (k VertexKind) String() string {
	if k == VertexValue {
		return "value"
	}
	return "id"
}

// Vertex is one side of the projection. Index is the vertex's rank in
// first-encountered order on its side.
type Vertex struct {
	Kind  VertexKind `json:"kind"`
	Label string     `json:"label"`
	Index int        `json:"index"`
}

// Edge links an ID vertex to a value vertex. One edge exists per triple, so
// duplicate triples give parallel edges.
type Edge struct {
	ID         string `json:"id"`
	Value      string `json:"value"`
	IDIndex    int    `json:"id_index"`
	ValueIndex int    `json:"value_index"`
}

// Projection is the bipartite relation between the IDs of a filtered
// sequence and the values of one node.
type Projection struct {
	Node          string   `json:"node"`
	IDVertices    []Vertex `json:"id_vertices"`
	ValueVertices []Vertex `json:"value_vertices"`
	Edges         []Edge   `json:"edges"`
}

// Project builds the projection for node. IDs are taken from every triple
// in filtered; values and edges only from triples whose node matches.
func Project(filtered []model.Triple, node string) Projection {
	defer metrics.Timer(metrics.GraphProject)()

	p := Projection{
		Node:          node,
		IDVertices:    []Vertex{},
		ValueVertices: []Vertex{},
		Edges:         []Edge{},
	}
	idIndex := make(map[string]int)
	valIndex := make(map[string]int)

	for _, t := range filtered {
		ii, ok := idIndex[t.ID]
		if !ok {
			ii = len(p.IDVertices)
			idIndex[t.ID] = ii
			p.IDVertices = append(p.IDVertices, Vertex{Kind: VertexID, Label: t.ID, Index: ii})
		}
		if t.Node != node {
			continue
		}
		label := t.Value.String()
		vi, ok := valIndex[label]
		if !ok {
			vi = len(p.ValueVertices)
			valIndex[label] = vi
			p.ValueVertices = append(p.ValueVertices, Vertex{Kind: VertexValue, Label: label, Index: vi})
		}
		p.Edges = append(p.Edges, Edge{ID: t.ID, Value: label, IDIndex: ii, ValueIndex: vi})
	}
	return p
}

// HasEdges reports whether any triple matched the projected node.
func (p Projection) HasEdges() bool {
	return len(p.Edges) > 0
}

// nodeID maps a vertex to its graph node ID: ID vertices first, then values.
func (p Projection) nodeID(v Vertex) int64 {
	if v.Kind == VertexValue {
		return int64(len(p.IDVertices) + v.Index)
	}
	return int64(v.Index)
}

// VertexFor returns the vertex behind a graph node ID produced by Graph.
func (p Projection) VertexFor(id int64) (Vertex, bool) {
	n := int64(len(p.IDVertices))
	switch {
	case id < 0:
		return Vertex{}, false
	case id < n:
		return p.IDVertices[id], true
	case id < n+int64(len(p.ValueVertices)):
		return p.ValueVertices[id-n], true
	}
	return Vertex{}, false
}

// Graph materializes the projection as an undirected multigraph with one
// line per edge.
func (p Projection) Graph() *multi.UndirectedGraph {
	g := multi.NewUndirectedGraph()
	for _, v := range p.IDVertices {
		g.AddNode(multi.Node(p.nodeID(v)))
	}
	for _, v := range p.ValueVertices {
		g.AddNode(multi.Node(p.nodeID(v)))
	}
	for _, e := range p.Edges {
		from := g.Node(int64(e.IDIndex))
		to := g.Node(int64(len(p.IDVertices) + e.ValueIndex))
		g.SetLine(g.NewLine(from, to))
	}
	return g
}

// simpleGraph collapses parallel edges.
func (p Projection) simpleGraph() *simple.UndirectedGraph {
	g := simple.NewUndirectedGraph()
	for _, v := range p.IDVertices {
		g.AddNode(simple.Node(p.nodeID(v)))
	}
	for _, v := range p.ValueVertices {
		g.AddNode(simple.Node(p.nodeID(v)))
	}
	for _, e := range p.Edges {
		from := simple.Node(int64(e.IDIndex))
		to := simple.Node(int64(len(p.IDVertices) + e.ValueIndex))
		if !g.HasEdgeBetween(from.ID(), to.ID()) {
			g.SetEdge(g.NewEdge(from, to))
		}
	}
	return g
}

// GraphSummary describes the shape of a projection.
type GraphSummary struct {
	IDCount        int    `json:"id_count"`
	ValueCount     int    `json:"value_count"`
	EdgeCount      int    `json:"edge_count"`
	DistinctEdges  int    `json:"distinct_edges"`
	Components     int    `json:"components"`
	IsolatedIDs    int    `json:"isolated_ids"`
	MaxValueDegree int    `json:"max_value_degree"`
	BusiestValue   string `json:"busiest_value,omitempty"`
}

// Summary counts vertices and edges, connected components of the collapsed
// graph, IDs without any edge and the value with the most edges.
func (p Projection) Summary() GraphSummary {
	s := GraphSummary{
		IDCount:    len(p.IDVertices),
		ValueCount: len(p.ValueVertices),
		EdgeCount:  len(p.Edges),
	}
	if s.IDCount+s.ValueCount == 0 {
		return s
	}

	g := p.simpleGraph()
	s.DistinctEdges = g.Edges().Len()
	s.Components = len(topo.ConnectedComponents(g))

	degree := make([]int, len(p.ValueVertices))
	for _, e := range p.Edges {
		degree[e.ValueIndex]++
	}
	for i, d := range degree {
		if d > s.MaxValueDegree {
			s.MaxValueDegree = d
			s.BusiestValue = p.ValueVertices[i].Label
		}
	}
	for _, v := range p.IDVertices {
		if g.From(p.nodeID(v)).Len() == 0 {
			s.IsolatedIDs++
		}
	}
	return s
}

// Point is a layout coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Layout places ID vertices in a left column and value vertices in a right
// column, each spread evenly from pad to height-pad by index.
type Layout struct {
	Width, Height, Pad float64
	IDs                []Point
	Values             []Point
}

// Layout computes the two-column coordinates for the projection.
func (p Projection) Layout(width, height, pad float64) Layout {
	l := Layout{
		Width:  width,
		Height: height,
		Pad:    pad,
		IDs:    make([]Point, len(p.IDVertices)),
		Values: make([]Point, len(p.ValueVertices)),
	}
	for i := range l.IDs {
		l.IDs[i] = Point{X: pad, Y: spread(i, len(l.IDs), height, pad)}
	}
	for i := range l.Values {
		l.Values[i] = Point{X: width - pad, Y: spread(i, len(l.Values), height, pad)}
	}
	return l
}

func spread(i, n int, height, pad float64) float64 {
	return pad + float64(i)*(height-2*pad)/float64(max(1, n-1))
}
