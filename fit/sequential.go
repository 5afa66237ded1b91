package fit

import (
	"fmt"

	"github.com/nscatter/qens-fit/data"
	"github.com/nscatter/qens-fit/model"
	"github.com/nscatter/qens-fit/params"
)

// Sequential fits every spectrum of the dataset in ascending Q order with
// the water model. The first fit starts from init; each subsequent fit is
// seeded with the optimized parameters of the one before it. Exactly one
// result per spectrum is returned.
//
// init must provide every unprefixed water-model parameter, typically from
// [model.Water.Params] refined by hand or by [model.Water.Guess]. A missing
// initial guess is a precondition violation and stops the run before any
// fitting happens.
func Sequential(ds *data.Dataset, res *model.Resolution, init *params.Set, s *Settings) ([]*Result, error) {
	if init == nil {
		return nil, ErrNoInitialGuess
	}

	w := model.NewWater(res, -1)

	required, err := w.Params()
	if err != nil {
		return nil, err
	}
	for _, name := range required.Names() {
		if _, err := init.Get(name); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMissingSeedParam, name)
		}
	}

	current := init.Clone()
	results := make([]*Result, 0, ds.Len())

	for i := range ds.Spectra {
		spec := &ds.Spectra[i]

		prob := &Problem{
			Model:  w,
			X:      spec.X,
			Y:      spec.Y,
			E:      spec.E,
			Params: current,
		}

		r, err := Fit(prob, s)
		if err != nil {
			return nil, fmt.Errorf("fit: spectrum %d (q = %g): %w", i, spec.Q, err)
		}

		results = append(results, r)
		current = r.Params.Clone()
	}

	return results, nil
}
