package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/nscatter/qens-fit/lineshape"
	"github.com/nscatter/qens-fit/params"
)

// Errors returned by model evaluation.
var (
	ErrEmptyDomain    = errors.New("model: empty domain")
	ErrLengthMismatch = errors.New("model: dst and x length mismatch")
	ErrMissingParam   = errors.New("model: missing parameter")
	ErrNoComponents   = errors.New("model: composite has no components")
)

// Evaluator evaluates a parametrized model over an energy domain.
//
// Implementations must be deterministic: the same x and parameter values
// always produce the same output.
type Evaluator interface {
	Eval(dst, x []float64, ps *params.Set) error
}

// EvalFunc adapts a plain function to the Evaluator interface.
type EvalFunc func(dst, x []float64, ps *params.Set) error

// Eval calls f.
func (f EvalFunc) Eval(dst, x []float64, ps *params.Set) error { return f(dst, x, ps) }

// Composite sums the outputs of its components.
type Composite struct {
	Components []Evaluator
}

// Eval evaluates every component on x and accumulates the sum into dst.
func (c Composite) Eval(dst, x []float64, ps *params.Set) error {
	if len(c.Components) == 0 {
		return ErrNoComponents
	}

	if len(dst) != len(x) {
		return ErrLengthMismatch
	}

	scratch := make([]float64, len(x))
	for i := range dst {
		dst[i] = 0
	}

	for _, comp := range c.Components {
		if err := comp.Eval(scratch, x, ps); err != nil {
			return err
		}
		for i := range dst {
			dst[i] += scratch[i]
		}
	}

	return nil
}

// Elastic is the elastic line: a delta function at the elastic center.
// Parameter names under the component prefix: e_amplitude, e_center.
type Elastic struct {
	Prefix string
}

// Eval writes the elastic line into dst.
func (c Elastic) Eval(dst, x []float64, ps *params.Set) error {
	a, err := value(ps, c.Prefix+"e_amplitude")
	if err != nil {
		return err
	}

	center, err := value(ps, c.Prefix+"e_center")
	if err != nil {
		return err
	}

	return lineshape.DeltaDirac(dst, x, a, center)
}

// QuasiElastic is the quasi-elastic Lorentzian component.
// Parameter names under the component prefix: l_amplitude, l_center, l_hwhm.
type QuasiElastic struct {
	Prefix string
}

// Eval writes the Lorentzian into dst.
func (c QuasiElastic) Eval(dst, x []float64, ps *params.Set) error {
	a, err := value(ps, c.Prefix+"l_amplitude")
	if err != nil {
		return err
	}

	center, err := value(ps, c.Prefix+"l_center")
	if err != nil {
		return err
	}

	hwhm, err := value(ps, c.Prefix+"l_hwhm")
	if err != nil {
		return err
	}

	return lineshape.Lorentzian(dst, x, a, center, hwhm)
}

// Background is a linear background.
// Parameter names under the component prefix: b_slope, b_intercept.
type Background struct {
	Prefix string
}

// Eval writes the background into dst.
func (c Background) Eval(dst, x []float64, ps *params.Set) error {
	slope, err := value(ps, c.Prefix+"b_slope")
	if err != nil {
		return err
	}

	intercept, err := value(ps, c.Prefix+"b_intercept")
	if err != nil {
		return err
	}

	return lineshape.Linear(dst, x, slope, intercept)
}

func value(ps *params.Set, name string) (float64, error) {
	v := ps.Value(name)
	if math.IsNaN(v) {
		if _, err := ps.Get(name); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMissingParam, name)
		}
	}

	return v, nil
}
