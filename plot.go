package main

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/plot"

	// Liberation fonts register automatically on import
	_ "gonum.org/v1/plot/font/liberation"

	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var plotPalette = []color.RGBA{
	{R: 0, G: 0, B: 255, A: 255},
	{R: 255, G: 0, B: 0, A: 255},
	{R: 0, G: 160, B: 0, A: 255},
	{R: 200, G: 120, B: 0, A: 255},
	{R: 140, G: 0, B: 200, A: 255},
	{R: 0, G: 150, B: 150, A: 255},
}

// MakeDarkFieldPlot draws the mean dark-field signal of each sample ROI
// against the autocorrelation length and saves it as a PNG. Points are
// sorted by xi per ROI so multi-scan orderings still plot as curves.
func MakeDarkFieldPlot(xi []float64, curves map[int][]float64, filename string) error {
	p := plot.New()

	// Modify the font fields directly on existing styles
	p.Title.TextStyle.Font.Typeface = "Liberation"
	p.Title.TextStyle.Font.Variant = "Sans"
	p.Title.TextStyle.Font.Size = vg.Points(12)

	p.X.Label.TextStyle.Font.Typeface = "Liberation"
	p.X.Label.TextStyle.Font.Variant = "Sans"
	p.X.Label.TextStyle.Font.Size = vg.Points(12)

	p.Y.Label.TextStyle.Font.Typeface = "Liberation"
	p.Y.Label.TextStyle.Font.Variant = "Sans"
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)

	p.X.Tick.Label.Font.Typeface = "Liberation"
	p.X.Tick.Label.Font.Variant = "Sans"
	p.X.Tick.Label.Font.Size = vg.Points(10)

	p.Y.Tick.Label.Font.Typeface = "Liberation"
	p.Y.Tick.Label.Font.Variant = "Sans"
	p.Y.Tick.Label.Font.Size = vg.Points(10)

	p.Title.Text = "Dark-field signal vs autocorrelation length"
	p.X.Label.Text = "autocorrelation length (nm)"
	p.Y.Label.Text = "mean dark field per ROI"
	p.Add(plotter.NewGrid()) // grid + ticks

	labels := make([]int, 0, len(curves))
	for label := range curves {
		labels = append(labels, label)
	}
	sort.Ints(labels)

	for i, label := range labels {
		df := curves[label]
		if len(df) != len(xi) {
			return fmt.Errorf("ROI %d has %d dark-field values for %d measurements", label, len(df), len(xi))
		}

		pts := make(plotter.XYs, 0, len(xi))
		for k := range xi {
			if math.IsNaN(df[k]) || math.IsInf(df[k], 0) {
				continue
			}
			pts = append(pts, plotter.XY{X: xi[k], Y: df[k]})
		}
		sort.Slice(pts, func(a, b int) bool { return pts[a].X < pts[b].X })

		linePoints, scatterPoints, err := plotter.NewLinePoints(pts)
		if err != nil {
			return err
		}
		c := plotPalette[i%len(plotPalette)]
		linePoints.Color = c
		linePoints.Width = vg.Points(1)

		scatterPoints.Shape = draw.CircleGlyph{}
		scatterPoints.Radius = vg.Points(2)
		scatterPoints.Color = c

		p.Add(linePoints, scatterPoints)
		p.Legend.Add(fmt.Sprintf("ROI %d", label), linePoints)
	}
	p.Legend.Top = true

	// Zero-signal reference line
	if len(xi) > 0 {
		lo, hi := xi[0], xi[0]
		for _, v := range xi {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		hpts := plotter.XYs{{X: lo, Y: 0}, {X: hi, Y: 0}}
		hline, err := plotter.NewLine(hpts)
		if err != nil {
			return err
		}
		hline.Dashes = []vg.Length{
			vg.Points(6), // dash length
			vg.Points(4), // gap length
		}
		hline.Color = color.RGBA{R: 0, G: 0, B: 0, A: 255} // black
		p.Add(hline)
	}

	return p.Save(8*vg.Inch, 4*vg.Inch, filename)
}
