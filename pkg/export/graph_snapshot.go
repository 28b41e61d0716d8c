package export

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/eavview/pkg/explore"
)

// Snapshot canvas geometry.
const (
	SnapshotWidth  = 1000
	SnapshotHeight = 600
	SnapshotPad    = 80

	idRadius    = 6
	valueRadius = 12
	edgeInset   = 20
	// Only every labelEvery-th ID is labelled to keep the column readable.
	labelEvery = 3
)

// GraphSnapshotOptions controls graph snapshot export.
type GraphSnapshotOptions struct {
	Path       string // Output path; format inferred from extension when Format is empty
	Format     string // "svg" or "png"
	Title      string
	Projection explore.Projection
	DataHash   string // Hash of the source store for provenance
}

// SaveGraphSnapshot renders the bipartite projection as two columns: IDs on
// the left, values of the projected node on the right, one line per edge.
func SaveGraphSnapshot(opts GraphSnapshotOptions) error {
	p := opts.Projection
	if len(p.IDVertices)+len(p.ValueVertices) == 0 {
		return ErrNothingToExport
	}
	path, format, err := resolveImageFormat(opts.Path, opts.Format)
	if err != nil {
		return err
	}
	opts.Path = path
	if err := ensureParent(path); err != nil {
		return err
	}

	scene := buildScene(opts)
	switch format {
	case FormatPNG:
		return renderSnapshotPNG(path, scene)
	default:
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return renderSnapshotSVG(f, scene)
	}
}

type scene struct {
	title   string
	hash    string
	node    string
	layout  explore.Layout
	proj    explore.Projection
	summary explore.GraphSummary
}

func buildScene(opts GraphSnapshotOptions) scene {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "Network"
	}
	return scene{
		title:   title,
		hash:    opts.DataHash,
		node:    opts.Projection.Node,
		layout:  opts.Projection.Layout(SnapshotWidth, SnapshotHeight, SnapshotPad),
		proj:    opts.Projection,
		summary: opts.Projection.Summary(),
	}
}

func (s scene) summaryLine() string {
	line := fmt.Sprintf("ids: %d  values: %d  edges: %d  components: %d",
		s.summary.IDCount, s.summary.ValueCount, s.summary.EdgeCount, s.summary.Components)
	if s.summary.BusiestValue != "" {
		line += fmt.Sprintf("  busiest: %s (%d)", clip(s.summary.BusiestValue, 24), s.summary.MaxValueDegree)
	}
	return line
}

func (s scene) edgeEnds(e explore.Edge) (x1, y1, x2, y2 float64) {
	from := s.layout.IDs[e.IDIndex]
	to := s.layout.Values[e.ValueIndex]
	return from.X + edgeInset, from.Y, to.X - edgeInset, to.Y
}

func renderSnapshotSVG(w io.Writer, s scene) error {
	canvas := svg.New(w)
	canvas.Start(SnapshotWidth, SnapshotHeight)
	canvas.Rect(0, 0, SnapshotWidth, SnapshotHeight, "fill:"+css(colorBackdrop))

	canvas.Gstyle(fmt.Sprintf("stroke:%s;stroke-opacity:%s", css(colorEdge), opacity(colorEdge)))
	for _, e := range s.proj.Edges {
		x1, y1, x2, y2 := s.edgeEnds(e)
		canvas.Line(px(x1), px(y1), px(x2), px(y2))
	}
	canvas.Gend()

	small := fmt.Sprintf("fill:%s;font-size:10px;font-family:sans-serif", css(colorSubtle))
	for i, v := range s.proj.IDVertices {
		pt := s.layout.IDs[i]
		canvas.Circle(px(pt.X), px(pt.Y), idRadius, "fill:"+css(colorID))
		if i%labelEvery == 0 {
			canvas.Text(px(pt.X)+10, px(pt.Y)+4, v.Label, small)
		}
	}
	canvas.Text(px(s.layout.Pad), 24, "IDs", fmt.Sprintf("fill:%s;font-size:12px;font-family:sans-serif", css(colorSubtle)))

	valueStyle := fmt.Sprintf("fill:%s;font-size:11px;font-family:sans-serif;text-anchor:end", css(colorText))
	for i, v := range s.proj.ValueVertices {
		pt := s.layout.Values[i]
		canvas.Circle(px(pt.X), px(pt.Y), valueRadius, "fill:"+css(colorValue))
		canvas.Text(px(pt.X)-16, px(pt.Y)+4, v.Label, valueStyle)
	}
	canvas.Text(SnapshotWidth-SnapshotPad, 24, fmt.Sprintf("Values of %q", s.node),
		fmt.Sprintf("fill:%s;font-size:12px;font-family:sans-serif;text-anchor:end", css(colorSubtle)))

	canvas.Text(SnapshotWidth/2, 24, s.title,
		fmt.Sprintf("fill:%s;font-size:14px;font-family:sans-serif;font-weight:bold;text-anchor:middle", css(colorText)))
	footer := s.summaryLine()
	if s.hash != "" {
		footer += "  data_hash: " + clip(s.hash, 12)
	}
	canvas.Text(px(s.layout.Pad), SnapshotHeight-24, footer, small)

	canvas.End()
	return nil
}

func renderSnapshotPNG(path string, s scene) error {
	dc := gg.NewContext(SnapshotWidth, SnapshotHeight)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(colorEdge)
	dc.SetLineWidth(1)
	for _, e := range s.proj.Edges {
		x1, y1, x2, y2 := s.edgeEnds(e)
		dc.DrawLine(x1, y1, x2, y2)
		dc.Stroke()
	}

	for i, v := range s.proj.IDVertices {
		pt := s.layout.IDs[i]
		dc.SetColor(colorID)
		dc.DrawCircle(pt.X, pt.Y, idRadius)
		dc.Fill()
		if i%labelEvery == 0 {
			dc.SetColor(colorSubtle)
			dc.DrawStringAnchored(v.Label, pt.X+10, pt.Y, 0, 0.5)
		}
	}
	for i, v := range s.proj.ValueVertices {
		pt := s.layout.Values[i]
		dc.SetColor(colorValue)
		dc.DrawCircle(pt.X, pt.Y, valueRadius)
		dc.Fill()
		dc.SetColor(colorText)
		dc.DrawStringAnchored(v.Label, pt.X-16, pt.Y, 1, 0.5)
	}

	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored("IDs", s.layout.Pad, 24, 0, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("Values of %q", s.node), SnapshotWidth-SnapshotPad, 24, 1, 0.5)
	dc.DrawStringAnchored(s.summaryLine(), s.layout.Pad, SnapshotHeight-24, 0, 0.5)
	dc.SetColor(colorText)
	dc.DrawStringAnchored(s.title, SnapshotWidth/2, 24, 0.5, 0.5)

	return dc.SavePNG(path)
}

func px(f float64) int {
	return int(math.Round(f))
}
