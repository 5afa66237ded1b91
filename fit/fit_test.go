package fit

import (
	"errors"
	"math"
	"testing"

	"github.com/nscatter/qens-fit/model"
	"github.com/nscatter/qens-fit/params"
	"github.com/nscatter/qens-fit/synth"
	"github.com/nscatter/qens-fit/teixeira"
)

func singleSpectrum(t *testing.T, noise float64) (*Problem, *model.Water, synth.Config) {
	t.Helper()

	cfg := synth.DefaultConfig()
	cfg.Qs = []float64{1.0}
	cfg.NPoints = 161
	cfg.Noise = noise

	ds, res, err := synth.Dataset(cfg)
	if err != nil {
		t.Fatalf("synth.Dataset: %v", err)
	}

	w := model.NewWater(res, -1)
	ps, err := w.Params()
	if err != nil {
		t.Fatalf("Params: %v", err)
	}

	spec := &ds.Spectra[0]
	if err := w.Guess(ps, spec.X, spec.Y); err != nil {
		t.Fatalf("Guess: %v", err)
	}

	prob := &Problem{Model: w, X: spec.X, Y: spec.Y, E: spec.E, Params: ps}

	return prob, w, cfg
}

func TestFitRecoversSingleSpectrum(t *testing.T) {
	prob, _, cfg := singleSpectrum(t, 0)

	r, err := Fit(prob, nil)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	wantHWHM := teixeira.HWHM(1.0, cfg.D, cfg.Tau)

	if math.Abs(r.Params.Value("l_hwhm")-wantHWHM) > 0.01*wantHWHM {
		t.Fatalf("l_hwhm = %g, want %g", r.Params.Value("l_hwhm"), wantHWHM)
	}
	if math.Abs(r.Params.Value("e_amplitude")-cfg.EISF) > 0.02 {
		t.Fatalf("e_amplitude = %g, want %g", r.Params.Value("e_amplitude"), cfg.EISF)
	}
	if math.Abs(r.Params.Value("scale")-cfg.Scale) > 0.02*cfg.Scale {
		t.Fatalf("scale = %g, want %g", r.Params.Value("scale"), cfg.Scale)
	}
	if r.RedChi > 1e-6 {
		t.Fatalf("redchi = %g on noise-free data", r.RedChi)
	}
}

func TestFitIterationLimitNotConverged(t *testing.T) {
	prob, _, _ := singleSpectrum(t, 0)

	r, err := Fit(prob, &Settings{MaxIterations: 1})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	if r.Converged {
		t.Fatal("iteration-starved fit reported convergence")
	}
	if r.Message != "IterationLimit" {
		t.Fatalf("message = %q, want IterationLimit", r.Message)
	}
}

func TestFitTiesHoldAfterOptimization(t *testing.T) {
	prob, _, _ := singleSpectrum(t, 0.02)

	r, err := Fit(prob, nil)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	lc := r.Params.Value("l_center")
	ec := r.Params.Value("e_center")
	if lc != ec {
		t.Fatalf("center tie broken: l=%g e=%g", lc, ec)
	}

	la := r.Params.Value("l_amplitude")
	ea := r.Params.Value("e_amplitude")
	if math.Abs(la-(1-ea)) > 1e-12 {
		t.Fatalf("amplitude tie broken: l=%g e=%g", la, ea)
	}
}

func TestFitDoesNotMutateInput(t *testing.T) {
	prob, _, _ := singleSpectrum(t, 0.02)

	before := prob.Params.Value("l_hwhm")
	if _, err := Fit(prob, nil); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	if prob.Params.Value("l_hwhm") != before {
		t.Fatalf("caller parameter set mutated: %g -> %g", before, prob.Params.Value("l_hwhm"))
	}
}

func TestFitBoundsRespected(t *testing.T) {
	prob, _, _ := singleSpectrum(t, 0.02)

	r, err := Fit(prob, nil)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	ea := r.Params.Value("e_amplitude")
	if ea < 0 || ea > 1 {
		t.Fatalf("e_amplitude outside [0, 1]: %g", ea)
	}
	if r.Params.Value("scale") < 0 {
		t.Fatalf("scale negative: %g", r.Params.Value("scale"))
	}
	if r.Params.Value("l_hwhm") <= 0 {
		t.Fatalf("l_hwhm not positive: %g", r.Params.Value("l_hwhm"))
	}
}

func TestFitReportsStderrForFreeParams(t *testing.T) {
	prob, _, _ := singleSpectrum(t, 0.02)

	r, err := Fit(prob, nil)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	if r.Stderr == nil {
		t.Skip("normal matrix singular for this draw")
	}

	for _, name := range []string{"scale", "e_amplitude", "l_hwhm"} {
		se, ok := r.Stderr[name]
		if !ok {
			t.Fatalf("no stderr for %s", name)
		}
		if se < 0 || math.IsNaN(se) {
			t.Fatalf("stderr[%s] = %g", name, se)
		}
	}
}

func TestFitValidation(t *testing.T) {
	prob, _, _ := singleSpectrum(t, 0)

	bad := &Problem{Model: prob.Model, X: nil, Y: nil, E: nil, Params: prob.Params}
	if _, err := Fit(bad, nil); !errors.Is(err, ErrEmptyData) {
		t.Fatalf("empty data: got %v", err)
	}

	bad = &Problem{Model: prob.Model, X: prob.X, Y: prob.Y[:1], E: prob.E, Params: prob.Params}
	if _, err := Fit(bad, nil); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("length mismatch: got %v", err)
	}

	e := append([]float64(nil), prob.E...)
	e[3] = 0
	bad = &Problem{Model: prob.Model, X: prob.X, Y: prob.Y, E: e, Params: prob.Params}
	if _, err := Fit(bad, nil); !errors.Is(err, ErrZeroUncertainty) {
		t.Fatalf("zero uncertainty: got %v", err)
	}

	fixed := params.NewSet()
	if _, err := fixed.AddFixed("c", 1); err != nil {
		t.Fatalf("AddFixed: %v", err)
	}
	bad = &Problem{Model: prob.Model, X: prob.X, Y: prob.Y, E: prob.E, Params: fixed}
	if _, err := Fit(bad, nil); !errors.Is(err, ErrNoFreeParams) {
		t.Fatalf("no free params: got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	resid := []float64{1, -2, 0.5}

	s := Summarize(resid, 1)

	if s.N != 3 || s.NFree != 1 {
		t.Fatalf("counts: %+v", s)
	}
	if math.Abs(s.Chi2-5.25) > 1e-12 {
		t.Fatalf("chi2 = %g, want 5.25", s.Chi2)
	}
	if math.Abs(s.RedChi-5.25/2) > 1e-12 {
		t.Fatalf("redchi = %g, want %g", s.RedChi, 5.25/2)
	}
	if s.Max != 2 || s.MaxPos != 1 {
		t.Fatalf("max: %+v", s)
	}

	if got := Summarize(nil, 0); got.N != 0 || got.Chi2 != 0 {
		t.Fatalf("empty: %+v", got)
	}
	if got := Summarize([]float64{1}, 1); !math.IsInf(got.RedChi, 1) {
		t.Fatalf("zero dof: %+v", got)
	}
}
