package main

import (
	"fmt"
	"image/color"

	"github.com/Arafatk/glot"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/nscatter/qens-fit/teixeira"
)

// errPoints pairs coordinates with symmetric uncertainties so a single value
// feeds both the scatter and its error bars.
type errPoints struct {
	plotter.XYs
	plotter.YErrors
}

// writeFitPlot renders measured intensities with error bars and the fitted
// curve on top, then writes a PNG.
func writeFitPlot(path, title string, x, y, e, fitted []float64) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "energy transfer (meV)"
	p.Y.Label.Text = "intensity (arb.)"

	pts := make(plotter.XYs, len(x))
	errs := make(plotter.YErrors, len(x))
	for i := range x {
		pts[i].X = x[i]
		pts[i].Y = y[i]
		errs[i].Low = e[i]
		errs[i].High = e[i]
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("scatter: %w", err)
	}
	scatter.GlyphStyle.Radius = vg.Points(1.5)

	bars, err := plotter.NewYErrorBars(errPoints{pts, errs})
	if err != nil {
		return fmt.Errorf("error bars: %w", err)
	}

	curve := make(plotter.XYs, len(x))
	for i := range x {
		curve[i].X = x[i]
		curve[i].Y = fitted[i]
	}

	line, err := plotter.NewLine(curve)
	if err != nil {
		return fmt.Errorf("line: %w", err)
	}
	line.Color = color.RGBA{R: 204, A: 255}
	line.Width = vg.Points(1.5)

	p.Add(scatter, bars, line)
	p.Legend.Add("data", scatter)
	p.Legend.Add("fit", line)
	p.Legend.Top = true

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}

	return nil
}

// writeWidthPlot renders quasi-elastic half widths against Q² together with
// the jump-diffusion curve for the fitted D and tau.
func writeWidthPlot(path string, qs, widths []float64, d, tau float64) error {
	p := plot.New()
	p.Title.Text = "Lorentzian width vs momentum transfer"
	p.X.Label.Text = "Q² (1/Å²)"
	p.Y.Label.Text = "HWHM (meV)"

	pts := make(plotter.XYs, len(qs))
	for i, q := range qs {
		pts[i].X = q * q
		pts[i].Y = widths[i]
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("scatter: %w", err)
	}
	scatter.GlyphStyle.Radius = vg.Points(2)

	const curveSamples = 200
	qmax := qs[len(qs)-1]
	curve := make(plotter.XYs, curveSamples)
	for i := range curve {
		q := qmax * float64(i+1) / curveSamples
		curve[i].X = q * q
		curve[i].Y = teixeira.HWHM(q, d, tau)
	}

	line, err := plotter.NewLine(curve)
	if err != nil {
		return fmt.Errorf("line: %w", err)
	}
	line.Color = color.RGBA{B: 204, A: 255}

	p.Add(scatter, line)
	p.Legend.Add("sequential fits", scatter)
	p.Legend.Add("jump-diffusion model", line)
	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}

	return nil
}

// previewFit opens an interactive gnuplot window comparing data and fit.
// Requires gnuplot on PATH.
func previewFit(title string, x, y, fitted []float64) error {
	plt, err := glot.NewPlot(2, true, false)
	if err != nil {
		return fmt.Errorf("gnuplot: %w", err)
	}

	if err := plt.AddPointGroup("data", "points", [][]float64{x, y}); err != nil {
		return err
	}
	if err := plt.AddPointGroup("fit", "lines", [][]float64{x, fitted}); err != nil {
		return err
	}
	if err := plt.SetTitle(title); err != nil {
		return err
	}
	if err := plt.SetXLabel("energy transfer (meV)"); err != nil {
		return err
	}

	return plt.SetYLabel("intensity (arb.)")
}
