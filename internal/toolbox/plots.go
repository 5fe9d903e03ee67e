package toolbox

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotSize is the rendered size of report figures.
type PlotSize struct {
	Width  vg.Length
	Height vg.Length
}

var palette = []color.Color{
	color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	color.RGBA{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
	color.RGBA{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff},
}

// DefaultPlotSize is used when Params carry no size.
var DefaultPlotSize = PlotSize{Width: 6 * vg.Inch, Height: 4 * vg.Inch}

func (s PlotSize) orDefault() PlotSize {
	if s.Width <= 0 || s.Height <= 0 {
		return DefaultPlotSize
	}
	return s
}

// encodePNG renders p and returns it base64 encoded.
func encodePNG(p *plot.Plot, size PlotSize) (string, error) {
	size = size.orDefault()
	wt, err := p.WriterTo(size.Width, size.Height, "png")
	if err != nil {
		return "", fmt.Errorf("render plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("encode plot: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func boxPlot(title, ylabel string, groups []sample, size PlotSize) (string, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = ylabel
	names := make([]string, 0, len(groups))
	for i, g := range groups {
		if len(g.Values) == 0 {
			continue
		}
		b, err := plotter.NewBoxPlot(vg.Points(20), float64(len(names)), plotter.Values(g.Values))
		if err != nil {
			return "", fmt.Errorf("box plot %s: %w", g.Name, err)
		}
		b.FillColor = palette[i%len(palette)]
		p.Add(b)
		names = append(names, g.Name)
	}
	p.NominalX(names...)
	return encodePNG(p, size)
}

func histogram(title, xlabel string, values []float64, bins int, size PlotSize) (string, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = "Count"
	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return "", fmt.Errorf("histogram: %w", err)
	}
	h.FillColor = palette[0]
	p.Add(h)
	return encodePNG(p, size)
}

// qqPlot draws sample quantiles against theoretical normal quantiles.
func qqPlot(title string, theoretical, observed []float64, size PlotSize) (string, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Theoretical quantiles"
	p.Y.Label.Text = "Sample quantiles"
	pts := make(plotter.XYs, len(observed))
	for i := range observed {
		pts[i].X, pts[i].Y = theoretical[i], observed[i]
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return "", fmt.Errorf("qq plot: %w", err)
	}
	s.Color = palette[0]
	p.Add(s)
	return encodePNG(p, size)
}

// scatterPlot draws x against y, optionally with the line y = a + b*x.
func scatterPlot(title, xlabel, ylabel string, x, y []float64, fit *RegressionResult, size PlotSize) (string, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	pts := make(plotter.XYs, len(x))
	for i := range x {
		pts[i].X, pts[i].Y = x[i], y[i]
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return "", fmt.Errorf("scatter plot: %w", err)
	}
	s.Color = palette[0]
	p.Add(s)
	if fit != nil {
		a, b := fit.Intercept, fit.Slope
		line := plotter.NewFunction(func(x float64) float64 { return a + b*x })
		line.Color = palette[1]
		line.Width = vg.Points(1.5)
		p.Add(line)
	}
	return encodePNG(p, size)
}
