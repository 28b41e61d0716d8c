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

// Chart geometry defaults.
const (
	ChartWidth  = 800
	ChartHeight = 320
	chartPad    = 40
	barGap      = 8
	minBar      = 2
	// Bar labels keep at most this many runes.
	BarLabelRunes = 12
)

// BarChartOptions controls bar chart export.
type BarChartOptions struct {
	Path   string
	Format string // "svg" or "png"; inferred from Path when empty
	Label  string // Axis caption, "Count" when empty
	Width  int
	Height int
	Data   []explore.ValueCount
}

// Bar is one laid-out bar.
type Bar struct {
	X, Y, W, H float64
	Label      string
	Count      int
}

// ChartBars lays out data left to right. Heights scale against the largest
// count (at least 1) and never drop below a visible minimum.
func ChartBars(data []explore.ValueCount, width, height int) []Bar {
	w, h := float64(width), float64(height)
	maxCount := 1
	for _, d := range data {
		maxCount = max(maxCount, d.Count)
	}
	barW := (w - chartPad*2) / float64(max(1, len(data)))
	bars := make([]Bar, len(data))
	for i, d := range data {
		bh := math.Max(minBar, (h-chartPad*2)*float64(d.Count)/float64(maxCount))
		bars[i] = Bar{
			X:     chartPad + float64(i)*barW + barGap/2,
			Y:     h - chartPad - bh,
			W:     barW - barGap,
			H:     bh,
			Label: clip(d.Value.String(), BarLabelRunes),
			Count: d.Count,
		}
	}
	return bars
}

// SaveBarChart renders top values as a bar chart.
func SaveBarChart(opts BarChartOptions) error {
	if len(opts.Data) == 0 {
		return ErrNothingToExport
	}
	path, format, err := resolveImageFormat(opts.Path, opts.Format)
	if err != nil {
		return err
	}
	if opts.Width <= 0 {
		opts.Width = ChartWidth
	}
	if opts.Height <= 0 {
		opts.Height = ChartHeight
	}
	if strings.TrimSpace(opts.Label) == "" {
		opts.Label = "Count"
	}
	if err := ensureParent(path); err != nil {
		return err
	}

	bars := ChartBars(opts.Data, opts.Width, opts.Height)
	if format == FormatPNG {
		return renderChartPNG(path, opts, bars)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return renderChartSVG(f, opts, bars)
}

func renderChartSVG(w io.Writer, opts BarChartOptions, bars []Bar) error {
	width, height := opts.Width, opts.Height
	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, "fill:"+css(colorBackdrop))

	axis := "stroke:" + css(colorAxis)
	canvas.Line(chartPad, height-chartPad, width-chartPad, height-chartPad, axis)
	canvas.Line(chartPad, chartPad, chartPad, height-chartPad, axis)
	text := fmt.Sprintf("fill:%s;font-size:10px;font-family:sans-serif", css(colorSubtle))
	canvas.Text(chartPad, 20, opts.Label, text)

	for i, b := range bars {
		canvas.Gid(fmt.Sprintf("bar-%d", i))
		canvas.Title(fmt.Sprintf("%s: %d", b.Label, b.Count))
		canvas.Roundrect(px(b.X), px(b.Y), px(b.W), px(b.H), 4, 4, "fill:"+css(colorBar))
		canvas.Text(px(b.X+b.W/2), height-chartPad+12, b.Label, text+";text-anchor:middle")
		canvas.Gend()
	}

	canvas.End()
	return nil
}

func renderChartPNG(path string, opts BarChartOptions, bars []Bar) error {
	width, height := float64(opts.Width), float64(opts.Height)
	dc := gg.NewContext(opts.Width, opts.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(colorAxis)
	dc.SetLineWidth(1)
	dc.DrawLine(chartPad, height-chartPad, width-chartPad, height-chartPad)
	dc.Stroke()
	dc.DrawLine(chartPad, chartPad, chartPad, height-chartPad)
	dc.Stroke()

	for _, b := range bars {
		dc.SetColor(colorBar)
		dc.DrawRoundedRectangle(b.X, b.Y, b.W, b.H, 4)
		dc.Fill()
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(b.Label, b.X+b.W/2, height-chartPad+12, 0.5, 0.5)
	}
	dc.DrawStringAnchored(opts.Label, chartPad, 20, 0, 0.5)

	return dc.SavePNG(path)
}
