package fit

import (
	"errors"
	"fmt"

	vecmath "github.com/cwbudde/algo-vecmath"
	"github.com/nscatter/qens-fit/model"
	"github.com/nscatter/qens-fit/params"
)

// Errors returned by fitting.
var (
	ErrLengthMismatch   = errors.New("fit: x, y and e lengths differ")
	ErrEmptyData        = errors.New("fit: no data samples")
	ErrZeroUncertainty  = errors.New("fit: uncertainty must be positive for every sample")
	ErrNoFreeParams     = errors.New("fit: no free parameters to vary")
	ErrUnderdetermined  = errors.New("fit: fewer samples than free parameters")
	ErrNoInitialGuess   = errors.New("fit: sequential fitting needs an initial guess for the first spectrum")
	ErrMissingSeedParam = errors.New("fit: initial guess is missing a model parameter")
)

// Problem couples one spectrum with a model and its parameter set. The
// residual is the uncertainty-weighted difference (model(x) − y) / e.
type Problem struct {
	Model  model.Evaluator
	X      []float64
	Y      []float64
	E      []float64
	Params *params.Set

	invE    []float64
	scratch []float64
}

func (p *Problem) validate() error {
	if len(p.X) == 0 {
		return ErrEmptyData
	}

	if len(p.Y) != len(p.X) || len(p.E) != len(p.X) {
		return fmt.Errorf("%w: x=%d y=%d e=%d", ErrLengthMismatch, len(p.X), len(p.Y), len(p.E))
	}

	for i, e := range p.E {
		if e <= 0 {
			return fmt.Errorf("%w: e[%d] = %g", ErrZeroUncertainty, i, e)
		}
	}

	return nil
}

func (p *Problem) prepare() {
	p.invE = make([]float64, len(p.E))
	for i, e := range p.E {
		p.invE[i] = 1 / e
	}
	p.scratch = make([]float64, len(p.X))
}

// residuals fills dst with the weighted residual of the current parameter
// values. dst must have length len(p.X).
func (p *Problem) residuals(dst []float64, ps *params.Set) error {
	if err := ps.Resolve(); err != nil {
		return err
	}

	if err := p.Model.Eval(p.scratch, p.X, ps); err != nil {
		return err
	}

	for i := range p.scratch {
		p.scratch[i] -= p.Y[i]
	}
	vecmath.MulBlock(dst, p.scratch, p.invE)

	return nil
}

// pack maps the current external values of the free parameters onto the
// optimizer's internal axis.
func pack(ps *params.Set, names []string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, name := range names {
		p, err := ps.Get(name)
		if err != nil {
			return nil, err
		}
		out[i] = p.Internal()
	}

	return out, nil
}

// unpack writes internal optimizer values back onto the free parameters.
func unpack(ps *params.Set, names []string, v []float64) error {
	for i, name := range names {
		p, err := ps.Get(name)
		if err != nil {
			return err
		}
		p.SetInternal(v[i])
	}

	return nil
}
