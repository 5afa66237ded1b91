package fit

import (
	"math"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/nscatter/qens-fit/params"
)

// Settings controls the Levenberg-Marquardt run.
type Settings struct {
	MaxIterations int
	ObjectiveTol  float64
}

// DefaultSettings returns the settings used when none are supplied.
func DefaultSettings() Settings {
	return Settings{MaxIterations: 200, ObjectiveTol: 1e-16}
}

func normalizeSettings(s *Settings) Settings {
	if s == nil {
		return DefaultSettings()
	}

	out := *s
	if out.MaxIterations <= 0 {
		out.MaxIterations = DefaultSettings().MaxIterations
	}
	if out.ObjectiveTol <= 0 {
		out.ObjectiveTol = DefaultSettings().ObjectiveTol
	}

	return out
}

// Result holds the outcome of one fit invocation. It is read-only after
// creation; its parameter set may seed a subsequent fit.
type Result struct {
	Params    *params.Set
	Chi2      float64
	RedChi    float64
	NData     int
	NFree     int
	Stderr    map[string]float64 // per-parameter standard error, when available
	Converged bool
	Message   string
}

// residualFunc fills dst with the weighted residual for the given parameter
// values.
type residualFunc func(dst []float64, ps *params.Set) error

// Fit runs a weighted Levenberg-Marquardt fit of the problem. The caller's
// parameter set is not modified; the optimized values live in the result.
//
// Non-convergence is not an error: the best-effort parameter values are
// returned with their reduced chi-square and Converged left false. Errors
// are reserved for structural defects (bad data arrays, unresolvable ties).
func Fit(p *Problem, s *Settings) (*Result, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	p.prepare()

	res, err := solve(p.Params, len(p.X), p.residuals, s)
	if err != nil {
		return nil, err
	}

	res.Stderr = stderr(p, res.Params, res.RedChi)

	return res, nil
}

// solve drives the optimizer over the free parameters of ps. The returned
// result carries a resolved clone of ps with the optimized values.
func solve(ps *params.Set, size int, resid residualFunc, s *Settings) (*Result, error) {
	ps = ps.Clone()
	if err := ps.Resolve(); err != nil {
		return nil, err
	}

	free := ps.FreeNames()
	if len(free) == 0 {
		return nil, ErrNoFreeParams
	}
	if size < len(free) {
		return nil, ErrUnderdetermined
	}

	init, err := pack(ps, free)
	if err != nil {
		return nil, err
	}

	var evalErr error
	residFn := func(dst, v []float64) {
		if evalErr != nil {
			return
		}
		if err := unpack(ps, free, v); err != nil {
			evalErr = err
			return
		}
		if err := resid(dst, ps); err != nil {
			evalErr = err
		}
	}

	cfg := normalizeSettings(s)
	jac := lm.NumJac{Func: residFn}
	prob := lm.LMProblem{
		Dim:        len(free),
		Size:       size,
		Func:       residFn,
		Jac:        jac.Jac,
		InitParams: init,
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}

	lmRes, err := lm.LM(prob, &lm.Settings{
		Iterations:   cfg.MaxIterations,
		ObjectiveTol: cfg.ObjectiveTol,
	})
	if evalErr != nil {
		return nil, evalErr
	}
	if err != nil {
		return nil, err
	}

	// The optimizer reports termination through Status, not the error value:
	// StepConvergence on success, IterationLimit when starved.
	converged := lmRes.Status == optimize.StepConvergence
	message := lmRes.Status.String()

	if err := unpack(ps, free, lmRes.X); err != nil {
		return nil, err
	}
	if err := ps.Resolve(); err != nil {
		return nil, err
	}

	residuals := make([]float64, size)
	if err := resid(residuals, ps); err != nil {
		return nil, err
	}

	stats := Summarize(residuals, len(free))

	return &Result{
		Params:    ps,
		Chi2:      stats.Chi2,
		RedChi:    stats.RedChi,
		NData:     stats.N,
		NFree:     stats.NFree,
		Converged: converged,
		Message:   message,
	}, nil
}

// stderr estimates per-parameter standard errors from the numerical Jacobian
// at the solution: the covariance is redchi · (JᵀJ)⁻¹ on the internal axis,
// scaled back to the parameter axis through the bound transform gradient.
// Returns nil when the normal matrix is singular.
func stderr(p *Problem, solved *params.Set, redchi float64) map[string]float64 {
	ps := solved.Clone()
	free := ps.FreeNames()

	internal, err := pack(ps, free)
	if err != nil {
		return nil
	}

	n := len(p.X)
	m := len(free)

	base := make([]float64, n)
	if err := p.residuals(base, ps); err != nil {
		return nil
	}

	jac := mat.NewDense(n, m, nil)
	pert := make([]float64, n)
	for j := 0; j < m; j++ {
		h := 1e-6 * (1 + math.Abs(internal[j]))
		internal[j] += h
		if err := unpack(ps, free, internal); err != nil {
			return nil
		}
		if err := p.residuals(pert, ps); err != nil {
			return nil
		}
		internal[j] -= h

		for i := 0; i < n; i++ {
			jac.Set(i, j, (pert[i]-base[i])/h)
		}
	}

	var jtj mat.Dense
	jtj.Mul(jac.T(), jac)

	var cov mat.Dense
	if err := cov.Inverse(&jtj); err != nil {
		return nil
	}

	out := make(map[string]float64, m)
	for j, name := range free {
		variance := redchi * cov.At(j, j)
		if variance < 0 {
			continue
		}

		param, err := solved.Get(name)
		if err != nil {
			return nil
		}
		out[name] = math.Sqrt(variance) * math.Abs(param.GradScale())
	}

	return out
}
