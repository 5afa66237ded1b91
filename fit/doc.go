// Package fit drives Levenberg-Marquardt fits of QENS spectra: single
// spectra, sequential chains across momentum transfer, and one simultaneous
// global fit sharing two physical parameters across all spectra.
//
// The residual of every fit is the uncertainty-weighted difference
// (model(x) − y) / e. Bounded parameters are handled through the sine
// transform in the params package, so the unconstrained optimizer never
// leaves the feasible region. Ties between parameters are re-resolved before
// each model evaluation.
//
// # Usage
//
// Fit one spectrum:
//
//	w := model.NewWater(res, -1)
//	ps, _ := w.Params()
//	_ = w.Guess(ps, spec.X, spec.Y)
//
//	r, err := fit.Fit(&fit.Problem{
//	    Model: w, X: spec.X, Y: spec.Y, E: spec.E, Params: ps,
//	}, nil)
//
// Chain fits across all spectra, then share D and τ globally:
//
//	seq, _ := fit.Sequential(ds, res, ps, nil)
//
//	seeds := make([]*params.Set, len(seq))
//	for i, r := range seq {
//	    seeds[i] = r.Params
//	}
//
//	g, _ := fit.NewGlobal(ds, res, seeds, d0, tau0)
//	global, _ := g.Fit(nil)
//
// A fit that fails to converge still yields a best-effort Result with its
// reduced chi-square recorded; inspect Converged and Message.
package fit
