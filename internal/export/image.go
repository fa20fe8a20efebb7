package export

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"

	"github.com/san-kum/steersim/internal/dynamo"
)

// Style selects how each series is drawn.
type Style string

const (
	StyleLine    Style = "line"
	StyleScatter Style = "scatter"
	StyleArea    Style = "area"
	StyleBold    Style = "bold"
	StyleStacked Style = "stacked"
)

// Styles lists the supported chart styles.
func Styles() []Style { return []Style{StyleLine, StyleScatter, StyleArea, StyleBold, StyleStacked} }

// ParseStyle accepts a style name.
func ParseStyle(s string) (Style, error) {
	for _, st := range Styles() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown chart style %q (want one of %v)", s, Styles())
}

// Fields accepted by ImageOptions.Field.
const (
	FieldDeflection = "deflection"
	FieldValve      = "valve"
	FieldForce      = "force"
)

var (
	colorDeflection = color.RGBA{R: 40, G: 140, B: 255, A: 255}
	colorReference  = color.RGBA{R: 240, G: 70, B: 70, A: 255}
	colorValve      = color.RGBA{R: 60, G: 180, B: 90, A: 255}
	colorStacked    = color.RGBA{R: 144, G: 238, B: 144, A: 255}
)

// ImageOptions controls chart rendering. Width and height are in inches.
type ImageOptions struct {
	Title    string
	Field    string
	Style    Style
	WidthIn  float64
	HeightIn float64
	DPI      int
}

// DefaultImageOptions draws deflection against reference on an 8x6 inch,
// 300 DPI canvas.
func DefaultImageOptions() ImageOptions {
	return ImageOptions{
		Field:    FieldDeflection,
		Style:    StyleLine,
		WidthIn:  8,
		HeightIn: 6,
		DPI:      300,
	}
}

type curve struct {
	name  string
	ys    []float64
	color color.Color
	dash  bool
}

func curves(s *dynamo.Series, field string) ([]curve, string, error) {
	deg := func(rad []float64) []float64 {
		out := make([]float64, len(rad))
		for i, v := range rad {
			out[i] = dynamo.Rad2Deg(v)
		}
		return out
	}

	switch field {
	case FieldDeflection, "":
		return []curve{
			{name: "phi", ys: deg(s.Deflection), color: colorDeflection},
			{name: "reference", ys: deg(s.Reference), color: colorReference, dash: true},
		}, "deflection (deg)", nil
	case FieldValve:
		return []curve{{name: "theta", ys: deg(s.ValveAngle), color: colorValve}}, "valve angle (deg)", nil
	case FieldForce:
		f := make([]float64, s.Len())
		for i, v := range s.Deflection {
			f[i] = dynamo.Force(v)
		}
		return []curve{{name: "F_h", ys: f, color: colorDeflection}}, "hydraulic force (N)", nil
	}
	return nil, "", fmt.Errorf("unknown chart field %q", field)
}

// NewPlot builds a chart of s without rendering it.
func NewPlot(s *dynamo.Series, opt ImageOptions) (*plot.Plot, error) {
	if s == nil || s.Len() == 0 {
		return nil, fmt.Errorf("plot data invalid: empty series")
	}
	cs, ylabel, err := curves(s, opt.Field)
	if err != nil {
		return nil, err
	}
	if opt.Style == "" {
		opt.Style = StyleLine
	}
	if _, err := ParseStyle(string(opt.Style)); err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = opt.Title
	if p.Title.Text == "" {
		p.Title.Text = ylabel + " vs time"
	}
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = ylabel
	stylePlot(p)
	p.Legend.Top = true

	for _, c := range cs {
		pts := make(plotter.XYs, s.Len())
		for i := range pts {
			pts[i].X = s.Time[i]
			pts[i].Y = c.ys[i]
		}
		if err := addCurve(p, c, pts, opt.Style); err != nil {
			return nil, fmt.Errorf("plot %s: %w", c.name, err)
		}
	}
	return p, nil
}

func addCurve(p *plot.Plot, c curve, pts plotter.XYs, style Style) error {
	if style == StyleScatter {
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = c.color
		sc.GlyphStyle.Radius = vg.Points(1.2)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
		p.Legend.Add(c.name, sc)
		return nil
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.LineStyle.Color = c.color
	line.LineStyle.Width = vg.Points(2.0)
	if style == StyleBold {
		line.LineStyle.Width = vg.Points(4.5)
	}
	line.FillColor = fillColor(c, style)
	if c.dash {
		line.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
	}
	p.Add(line)
	p.Legend.Add(c.name, line)
	return nil
}

// fillColor returns the fill under a curve, or nil. Dashed reference curves
// are never filled.
func fillColor(c curve, style Style) color.Color {
	if c.dash {
		return nil
	}
	switch style {
	case StyleArea:
		r, g, b, _ := c.color.RGBA()
		return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 80}
	case StyleStacked:
		return colorStacked
	}
	return nil
}

// limitedTicker produces at most maxLabels ticks formatted with labelFmt.
func limitedTicker(maxLabels int, labelFmt string) plot.Ticker {
	if maxLabels < 2 {
		maxLabels = 2
	}
	return plot.TickerFunc(func(min, max float64) []plot.Tick {
		if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
			return nil
		}
		if min == max {
			return []plot.Tick{{Value: min, Label: fmt.Sprintf(labelFmt, min)}}
		}
		step := (max - min) / float64(maxLabels-1)
		ticks := make([]plot.Tick, 0, maxLabels)
		for i := 0; i < maxLabels; i++ {
			v := min + float64(i)*step
			ticks = append(ticks, plot.Tick{Value: v, Label: fmt.Sprintf(labelFmt, v)})
		}
		return ticks
	})
}

func stylePlot(p *plot.Plot) {
	p.Title.TextStyle.Font.Size = vg.Points(20)
	p.Title.Padding = vg.Points(10)

	p.X.Label.TextStyle.Font.Size = vg.Points(16)
	p.Y.Label.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Padding = vg.Points(8)
	p.Y.Label.Padding = vg.Points(8)

	p.X.LineStyle.Width = vg.Points(1.8)
	p.Y.LineStyle.Width = vg.Points(1.8)
	p.X.Padding = vg.Points(16)
	p.Y.Padding = vg.Points(16)

	p.X.Tick.Label.Font.Size = vg.Points(12)
	p.Y.Tick.Label.Font.Size = vg.Points(12)

	p.X.Tick.Marker = limitedTicker(10, "%.2f")
	p.Y.Tick.Marker = limitedTicker(8, "%.3f")
}

// WriteImage renders s to w as "png" or "svg".
func WriteImage(w io.Writer, format string, s *dynamo.Series, opt ImageOptions) error {
	p, err := NewPlot(s, opt)
	if err != nil {
		return err
	}

	width := vg.Length(opt.WidthIn) * vg.Inch
	height := vg.Length(opt.HeightIn) * vg.Inch
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image size must be positive, got %gx%g in", opt.WidthIn, opt.HeightIn)
	}

	switch strings.ToLower(format) {
	case "png":
		dpi := opt.DPI
		if dpi <= 0 {
			dpi = 300
		}
		c := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(dpi))
		p.Draw(draw.New(c))
		if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(w); err != nil {
			return fmt.Errorf("cannot write png: %w", err)
		}
	case "svg":
		c := vgsvg.New(width, height)
		p.Draw(draw.New(c))
		if _, err := c.WriteTo(w); err != nil {
			return fmt.Errorf("cannot write svg: %w", err)
		}
	default:
		return fmt.Errorf("unsupported image format %q (want png or svg)", format)
	}
	return nil
}

// SaveImage renders s to filename, choosing the format from its extension.
func SaveImage(filename string, s *dynamo.Series, opt ImageOptions) error {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if format != "png" && format != "svg" {
		return fmt.Errorf("cannot infer image format from %q (want .png or .svg)", filename)
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create image: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := WriteImage(bw, format, s, opt); err != nil {
		return err
	}
	return bw.Flush()
}
