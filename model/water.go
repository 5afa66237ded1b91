package model

import (
	"fmt"
	"math"

	"github.com/nscatter/qens-fit/lineshape"
	"github.com/nscatter/qens-fit/params"
)

// Default starting values for a water spectrum fit.
const (
	defaultScale     = 1.0
	defaultEISF      = 0.5
	defaultHWHM      = 0.05 // meV
	minHWHM          = 1e-5 // meV, keeps the Lorentzian finite
	defaultMaxHWHM   = 10.0 // meV
	defaultCenterAbs = 0.5  // meV, elastic line stays near zero energy
)

// Water is the standard QENS water model for one spectrum:
//
//	scale · R ⊗ (EISF·δ(E−E₀) + (1−EISF)·L(E₀, Γ)) + slope·E + intercept
//
// where R is the instrument resolution. The elastic and quasi-elastic
// components share the center E₀, and their amplitudes are complementary;
// both ties are imposed as parameter expressions by [Water.Params].
type Water struct {
	Prefix string
	Res    *Resolution

	conv Convolved
	bg   Background
}

// NewWater builds the water model for the given spectrum index. A negative
// index leaves the parameter names unprefixed, for single-spectrum work;
// otherwise names gain the deterministic prefix "s<index>_".
func NewWater(res *Resolution, index int) *Water {
	prefix := ""
	if index >= 0 {
		prefix = fmt.Sprintf("s%d_", index)
	}

	w := &Water{Prefix: prefix, Res: res}
	w.conv = Convolved{
		Model: Composite{Components: []Evaluator{
			Elastic{Prefix: prefix},
			QuasiElastic{Prefix: prefix},
		}},
		Res: res,
	}
	w.bg = Background{Prefix: prefix}

	return w
}

// Params returns the model's parameter set with starting guesses and the two
// water-model ties: the Lorentzian center locked to the elastic center, and
// the Lorentzian amplitude complementary to the elastic amplitude.
// Background terms start at zero.
func (w *Water) Params() (*params.Set, error) {
	ps := params.NewSet()
	p := w.Prefix

	steps := []func() error{
		func() error { _, err := ps.Add(p+"scale", defaultScale, 0, math.Inf(1)); return err },
		func() error { _, err := ps.Add(p+"e_amplitude", defaultEISF, 0, 1); return err },
		func() error { _, err := ps.Add(p+"e_center", 0, -defaultCenterAbs, defaultCenterAbs); return err },
		func() error { _, err := ps.AddExpr(p+"l_amplitude", "1 - "+p+"e_amplitude"); return err },
		func() error { _, err := ps.AddExpr(p+"l_center", p+"e_center"); return err },
		func() error { _, err := ps.Add(p+"l_hwhm", defaultHWHM, minHWHM, defaultMaxHWHM); return err },
		func() error { _, err := ps.Add(p+"b_slope", 0, math.Inf(-1), math.Inf(1)); return err },
		func() error { _, err := ps.Add(p+"b_intercept", 0, math.Inf(-1), math.Inf(1)); return err },
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	if err := ps.Resolve(); err != nil {
		return nil, err
	}

	return ps, nil
}

// Guess refines the starting scale and width from measured data: the scale
// from the integrated intensity and the width from the observed peak. The
// remaining parameters keep the defaults from Params.
func (w *Water) Guess(ps *params.Set, x, y []float64) error {
	g := lineshape.GuessPeak(x, y)

	if g.Amplitude > 0 {
		if err := ps.SetValue(w.Prefix+"scale", g.Amplitude); err != nil {
			return err
		}
	}

	if g.HWHM > minHWHM && g.HWHM < defaultMaxHWHM {
		if err := ps.SetValue(w.Prefix+"l_hwhm", g.HWHM); err != nil {
			return err
		}
	}

	return ps.Resolve()
}

// Eval writes the full model into dst.
func (w *Water) Eval(dst, x []float64, ps *params.Set) error {
	if len(dst) != len(x) {
		return ErrLengthMismatch
	}

	scale, err := value(ps, w.Prefix+"scale")
	if err != nil {
		return err
	}

	peaks := make([]float64, len(x))
	if err := w.conv.Eval(peaks, x, ps); err != nil {
		return err
	}

	if err := w.bg.Eval(dst, x, ps); err != nil {
		return err
	}

	for i := range dst {
		dst[i] += scale * peaks[i]
	}

	return nil
}
