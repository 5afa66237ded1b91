// Package model assembles composite QENS spectral models from lineshape
// components, with parameter namespacing and resolution convolution.
//
// A model is an [Evaluator]: it fills an output slice from an energy grid and
// a parameter set. Components draw their parameters from the set by name,
// with an optional prefix so several spectra can share one collection without
// collisions.
//
// # Usage
//
// Build the standard water model for spectrum 3 and evaluate it:
//
//	res, _ := model.NewResolution(resX, resY)
//	w := model.NewWater(res, 3)
//	ps, _ := w.Params() // names s3_scale, s3_e_amplitude, ...
//
//	out := make([]float64, len(x))
//	_ = ps.Resolve()
//	_ = w.Eval(out, x, ps)
//
// The convolution follows the usual QENS convention: the physical model is
// evaluated on a symmetrically extended energy grid, convolved with the
// tabulated resolution in valid mode, and normalized by the resolution sum.
package model
