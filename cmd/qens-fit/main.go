// Command qens-fit walks a quasi-elastic neutron scattering dataset through
// the full analysis chain: a single-spectrum fit, a sequential fit across
// momentum transfer, a jump-diffusion fit of the recovered widths, and a
// global fit sharing the diffusion parameters across all spectra.
//
// Usage:
//
//	qens-fit [flags]
//
// Without -data it generates a synthetic dataset with a known diffusion law,
// which makes the command a self-contained demo.
//
// Examples:
//
//	qens-fit
//	qens-fit -config analysis.yaml
//	qens-fit -data irs26176.grp -resolution irs26173.grp -out results
//	qens-fit -preview
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/nscatter/qens-fit/data"
	"github.com/nscatter/qens-fit/fit"
	"github.com/nscatter/qens-fit/internal/logging"
	"github.com/nscatter/qens-fit/model"
	"github.com/nscatter/qens-fit/params"
	"github.com/nscatter/qens-fit/synth"
	"github.com/nscatter/qens-fit/teixeira"
)

func main() {
	configPath := flag.String("config", "qens-fit.yaml", "YAML configuration file")
	dataPath := flag.String("data", "", "sample spectra in DAVE grouped-data format (default: synthetic)")
	resPath := flag.String("resolution", "", "resolution run in DAVE grouped-data format")
	outDir := flag.String("out", "", "directory for plot output (overrides config)")
	preview := flag.Bool("preview", false, "open interactive gnuplot windows (requires gnuplot)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: qens-fit [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Fits quasi-elastic neutron spectra with a water jump-diffusion model.\n")
		fmt.Fprintf(os.Stderr, "Without -data a synthetic dataset is generated and analyzed.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  qens-fit\n")
		fmt.Fprintf(os.Stderr, "  qens-fit -config analysis.yaml\n")
		fmt.Fprintf(os.Stderr, "  qens-fit -data irs26176.grp -resolution irs26173.grp -out results\n")
	}
	flag.Parse()

	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})

	cfg, err := loadConfig(*configPath, explicit)
	if err != nil {
		slog.Error("configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if *dataPath != "" {
		cfg.Data.File = *dataPath
	}
	if *resPath != "" {
		cfg.Data.Resolution = *resPath
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if *preview {
		cfg.Output.Preview = true
	}
	if err := cfg.validate(); err != nil {
		slog.Error("configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.JSON)

	if err := run(cfg, logger); err != nil {
		logger.Error("analysis failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ds, res, err := loadInput(cfg, logger)
	if err != nil {
		return err
	}

	ds, err = ds.Crop(cfg.Data.EMin, cfg.Data.EMax)
	if err != nil {
		return fmt.Errorf("crop to window: %w", err)
	}
	logger.Info("fit window applied",
		slog.Float64("emin", cfg.Data.EMin),
		slog.Float64("emax", cfg.Data.EMax),
		slog.Int("spectra", ds.Len()),
		slog.Int("samples", ds.Samples()))

	settings := fit.Settings{MaxIterations: cfg.Fit.MaxIterations}

	refResult, err := fitReference(cfg, ds, res, &settings, logger)
	if err != nil {
		return err
	}

	seq, widths, err := fitSequential(ds, res, refResult.Params, &settings, logger)
	if err != nil {
		return err
	}

	tr, err := teixeira.FitHWHM(ds.Qs(), widths, cfg.Fit.D0, cfg.Fit.Tau0)
	if err != nil {
		return fmt.Errorf("width fit: %w", err)
	}
	logger.Info("jump-diffusion fit of sequential widths",
		slog.Float64("D", tr.D),
		slog.Float64("tau", tr.Tau),
		slog.Float64("rms", tr.RMS))

	globalResult, err := fitGlobal(ds, res, seq, tr, &settings, logger)
	if err != nil {
		return err
	}

	return writeOutput(cfg, ds, res, refResult, widths, globalResult, logger)
}

// loadInput reads measured spectra when configured, otherwise generates the
// synthetic demo dataset.
func loadInput(cfg Config, logger *slog.Logger) (*data.Dataset, *model.Resolution, error) {
	if cfg.Data.File == "" {
		scfg := synth.DefaultConfig()
		ds, res, err := synth.Dataset(scfg)
		if err != nil {
			return nil, nil, fmt.Errorf("synthetic dataset: %w", err)
		}
		logger.Info("generated synthetic dataset",
			slog.Int("spectra", ds.Len()),
			slog.Float64("trueD", scfg.D),
			slog.Float64("trueTau", scfg.Tau))
		return ds, res, nil
	}

	ds, err := data.LoadDave(cfg.Data.File)
	if err != nil {
		return nil, nil, fmt.Errorf("load sample data: %w", err)
	}

	resDS, err := data.LoadDave(cfg.Data.Resolution)
	if err != nil {
		return nil, nil, fmt.Errorf("load resolution data: %w", err)
	}

	// The vanadium run of the first spectrum stands in for the instrument
	// response at every Q.
	resSpec := &resDS.Spectra[0]
	res, err := model.NewResolution(resSpec.X, resSpec.Y)
	if err != nil {
		return nil, nil, fmt.Errorf("resolution table: %w", err)
	}

	logger.Info("loaded measured dataset",
		slog.String("file", cfg.Data.File),
		slog.Int("spectra", ds.Len()),
		slog.Int("samples", ds.Samples()))

	return ds, res, nil
}

// fitReference runs the single-spectrum walkthrough fit and prints its
// parameter report.
func fitReference(cfg Config, ds *data.Dataset, res *model.Resolution, s *fit.Settings, logger *slog.Logger) (*fit.Result, error) {
	idx := cfg.Fit.Reference
	if idx >= ds.Len() {
		return nil, fmt.Errorf("reference spectrum %d out of range (%d spectra)", idx, ds.Len())
	}
	spec := &ds.Spectra[idx]

	w := model.NewWater(res, -1)
	ps, err := w.Params()
	if err != nil {
		return nil, err
	}
	if err := w.Guess(ps, spec.X, spec.Y); err != nil {
		return nil, fmt.Errorf("initial guess: %w", err)
	}

	prob := &fit.Problem{Model: w, X: spec.X, Y: spec.Y, E: spec.E, Params: ps}
	r, err := fit.Fit(prob, s)
	if err != nil {
		return nil, fmt.Errorf("spectrum %d fit: %w", idx, err)
	}

	logger.Info("reference spectrum fitted",
		slog.Int("spectrum", idx),
		slog.Float64("q", spec.Q),
		slog.Float64("redchi", r.RedChi),
		slog.Bool("converged", r.Converged))

	fmt.Printf("Reference fit, spectrum %d (Q = %.3f 1/Å):\n", idx, spec.Q)
	printParams(r)

	return r, nil
}

// fitSequential chains fits across all spectra and collects the widths.
func fitSequential(ds *data.Dataset, res *model.Resolution, init *params.Set, s *fit.Settings, logger *slog.Logger) ([]*fit.Result, []float64, error) {
	seq, err := fit.Sequential(ds, res, init, s)
	if err != nil {
		return nil, nil, fmt.Errorf("sequential fit: %w", err)
	}

	widths := make([]float64, len(seq))

	fmt.Println("Sequential fit:")
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Spectrum\tQ [1/Å]\tHWHM [meV]\tEISF\tRed. chi²\tConverged\n")
	fmt.Fprintf(tw, "--------\t-------\t----------\t----\t---------\t---------\n")
	for i, r := range seq {
		widths[i] = r.Params.Value("l_hwhm")
		fmt.Fprintf(tw, "%d\t%.4f\t%.5f\t%.4f\t%.4g\t%t\n",
			i,
			ds.Spectra[i].Q,
			widths[i],
			r.Params.Value("e_amplitude"),
			r.RedChi,
			r.Converged)
	}
	if err := tw.Flush(); err != nil {
		return nil, nil, err
	}
	fmt.Println()

	logger.Info("sequential fit complete", slog.Int("spectra", len(seq)))

	return seq, widths, nil
}

// fitGlobal runs the simultaneous fit seeded by the sequential results and
// the jump-diffusion width fit.
func fitGlobal(ds *data.Dataset, res *model.Resolution, seq []*fit.Result, tr teixeira.Result, s *fit.Settings, logger *slog.Logger) (*fit.Result, error) {
	seeds := make([]*params.Set, len(seq))
	for i, r := range seq {
		seeds[i] = r.Params
	}

	g, err := fit.NewGlobal(ds, res, seeds, tr.D, tr.Tau)
	if err != nil {
		return nil, fmt.Errorf("global problem: %w", err)
	}

	r, err := g.Fit(s)
	if err != nil {
		return nil, fmt.Errorf("global fit: %w", err)
	}

	d := r.Params.Value(fit.SharedNameD)
	tau := r.Params.Value(fit.SharedNameTau)

	logger.Info("global fit complete",
		slog.Float64("D", d),
		slog.Float64("tau", tau),
		slog.Float64("redchi", r.RedChi),
		slog.Int("nfree", r.NFree),
		slog.Bool("converged", r.Converged))

	fmt.Println("Global fit, shared parameters:")
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Parameter\tValue\tUnit\n")
	fmt.Fprintf(tw, "---------\t-----\t----\n")
	fmt.Fprintf(tw, "D\t%.5f\tÅ²/ps\n", d)
	fmt.Fprintf(tw, "tau\t%.5f\tps\n", tau)
	fmt.Fprintf(tw, "red. chi²\t%.5g\t\n", r.RedChi)
	if err := tw.Flush(); err != nil {
		return nil, err
	}
	fmt.Println()

	return r, nil
}

// printParams writes one fit result's parameter table to stdout.
func printParams(r *fit.Result) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Parameter\tValue\tStderr\tConstraint\n")
	fmt.Fprintf(tw, "---------\t-----\t------\t----------\n")
	for _, name := range r.Params.Names() {
		p, err := r.Params.Get(name)
		if err != nil {
			continue
		}

		stderr := "-"
		if s, ok := r.Stderr[name]; ok {
			stderr = fmt.Sprintf("%.4g", s)
		}

		constraint := boundsLabel(p)
		fmt.Fprintf(tw, "%s\t%.5g\t%s\t%s\n", name, p.Value, stderr, constraint)
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to flush output: %v\n", err)
	}
	fmt.Println()
}

func boundsLabel(p *params.Param) string {
	switch {
	case p.Expr != "":
		return "= " + p.Expr
	case !p.Vary:
		return "fixed"
	case math.IsInf(p.Min, -1) && math.IsInf(p.Max, 1):
		return ""
	default:
		return fmt.Sprintf("[%g, %g]", p.Min, p.Max)
	}
}

// writeOutput renders the comparison and width plots, plus the optional
// interactive preview.
func writeOutput(cfg Config, ds *data.Dataset, res *model.Resolution, ref *fit.Result, widths []float64, gr *fit.Result, logger *slog.Logger) error {
	if cfg.Output.Dir == "" && !cfg.Output.Preview {
		return nil
	}

	idx := cfg.Fit.Reference
	spec := &ds.Spectra[idx]

	w := model.NewWater(res, -1)
	fitted := make([]float64, len(spec.X))
	if err := w.Eval(fitted, spec.X, ref.Params); err != nil {
		return fmt.Errorf("evaluate fitted curve: %w", err)
	}

	if cfg.Output.Dir != "" {
		if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
			return fmt.Errorf("output dir: %w", err)
		}

		fitPath := filepath.Join(cfg.Output.Dir, fmt.Sprintf("fit-q%.3f.png", spec.Q))
		title := fmt.Sprintf("Spectrum %d, Q = %.3f 1/Å", idx, spec.Q)
		if err := writeFitPlot(fitPath, title, spec.X, spec.Y, spec.E, fitted); err != nil {
			return err
		}

		d := gr.Params.Value(fit.SharedNameD)
		tau := gr.Params.Value(fit.SharedNameTau)
		widthPath := filepath.Join(cfg.Output.Dir, "widths.png")
		if err := writeWidthPlot(widthPath, ds.Qs(), widths, d, tau); err != nil {
			return err
		}

		logger.Info("plots written",
			slog.String("fit", fitPath),
			slog.String("widths", widthPath))
	}

	if cfg.Output.Preview {
		title := fmt.Sprintf("Spectrum %d, Q = %.3f 1/Å", idx, spec.Q)
		if err := previewFit(title, spec.X, spec.Y, fitted); err != nil {
			logger.Warn("interactive preview unavailable", slog.Any("error", err))
		}
	}

	return nil
}
