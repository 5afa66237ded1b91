package fit

import (
	"errors"
	"fmt"
	"math"

	"github.com/nscatter/qens-fit/data"
	"github.com/nscatter/qens-fit/model"
	"github.com/nscatter/qens-fit/params"
	"github.com/nscatter/qens-fit/teixeira"
)

// Errors returned by the global fit.
var (
	ErrSeedCount = errors.New("fit: need one seed parameter set per spectrum, or none")
	ErrBadShared = errors.New("fit: shared starting parameters must be positive")
)

// SharedNameD and SharedNameTau are the names of the two physical parameters
// every spectrum shares in a global fit.
const (
	SharedNameD   = "D"
	SharedNameTau = "tau"
)

// GlobalProblem is one simultaneous fit across all spectra of a dataset.
//
// Every spectrum keeps its own free scale, elastic amplitude and center, and
// background parameters, while the quasi-elastic width of spectrum i is
// replaced by the Teixeira expression ħ·D·Qᵢ²/(1+D·Qᵢ²·τ) over the two
// shared parameters. The residual vector is the concatenation, in ascending
// spectrum order, of every spectrum's weighted residuals; its length is the
// sum of the per-spectrum sample counts.
type GlobalProblem struct {
	ds     *data.Dataset
	models []*model.Water
	probs  []*Problem
	ps     *params.Set
}

// NewGlobal assembles the shared parameter collection and per-spectrum
// models. seeds, when non-nil, carries one unprefixed water-model parameter
// set per spectrum (typically sequential fit results) used as starting
// values; d0 and tau0 seed the shared parameters.
func NewGlobal(ds *data.Dataset, res *model.Resolution, seeds []*params.Set, d0, tau0 float64) (*GlobalProblem, error) {
	if seeds != nil && len(seeds) != ds.Len() {
		return nil, fmt.Errorf("%w: %d seeds for %d spectra", ErrSeedCount, len(seeds), ds.Len())
	}

	if d0 <= 0 || tau0 <= 0 {
		return nil, fmt.Errorf("%w: d0=%g tau0=%g", ErrBadShared, d0, tau0)
	}

	g := &GlobalProblem{ds: ds, ps: params.NewSet()}

	if _, err := g.ps.Add(SharedNameD, d0, 0, math.Inf(1)); err != nil {
		return nil, err
	}
	if _, err := g.ps.Add(SharedNameTau, tau0, 0, math.Inf(1)); err != nil {
		return nil, err
	}

	for i := range ds.Spectra {
		spec := &ds.Spectra[i]

		w := model.NewWater(res, i)
		g.models = append(g.models, w)

		sub, err := w.Params()
		if err != nil {
			return nil, err
		}

		if seeds != nil {
			if err := copySeed(sub, seeds[i], w.Prefix); err != nil {
				return nil, err
			}
		}

		if err := g.ps.Merge(sub); err != nil {
			return nil, err
		}

		// The width is no longer an independent parameter: it follows the
		// shared diffusion law at this spectrum's fixed Q.
		widthName := fmt.Sprintf("%sl_hwhm", w.Prefix)
		if err := g.ps.SetExpr(widthName, teixeira.Expr(SharedNameD, SharedNameTau, spec.Q)); err != nil {
			return nil, err
		}

		g.probs = append(g.probs, &Problem{
			Model:  w,
			X:      spec.X,
			Y:      spec.Y,
			E:      spec.E,
			Params: g.ps,
		})
	}

	if err := g.ps.Resolve(); err != nil {
		return nil, err
	}

	return g, nil
}

// copySeed transfers values of free and fixed parameters from an unprefixed
// seed set onto the prefixed per-spectrum set. Expression parameters keep
// their ties and are skipped.
func copySeed(dst, seed *params.Set, prefix string) error {
	for _, name := range dst.Names() {
		p, err := dst.Get(name)
		if err != nil {
			return err
		}
		if p.Expr != "" {
			continue
		}

		bare := name[len(prefix):]
		sp, err := seed.Get(bare)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrMissingSeedParam, bare)
		}

		v := sp.Value
		if v < p.Min {
			v = p.Min
		}
		if v > p.Max {
			v = p.Max
		}
		p.Value = v
	}

	return nil
}

// Params exposes the shared parameter collection.
func (g *GlobalProblem) Params() *params.Set { return g.ps }

// Size returns the length of the concatenated residual vector.
func (g *GlobalProblem) Size() int { return g.ds.Samples() }

// residuals fills dst with the concatenated weighted residuals, spectrum
// index ascending.
func (g *GlobalProblem) residuals(dst []float64, ps *params.Set) error {
	if err := ps.Resolve(); err != nil {
		return err
	}

	off := 0
	for _, p := range g.probs {
		n := len(p.X)
		if err := p.Model.Eval(p.scratch, p.X, ps); err != nil {
			return err
		}
		seg := dst[off : off+n]
		for i := range seg {
			seg[i] = (p.scratch[i] - p.Y[i]) * p.invE[i]
		}
		off += n
	}

	return nil
}

// Fit runs the simultaneous fit. Free parameters are the two shared physical
// scalars plus every spectrum's independent scale, amplitude, center and
// background terms.
func (g *GlobalProblem) Fit(s *Settings) (*Result, error) {
	for _, p := range g.probs {
		if err := p.validate(); err != nil {
			return nil, err
		}
		p.prepare()
	}

	return solve(g.ps, g.Size(), g.residuals, s)
}

// Widths evaluates the shared-width expression of every spectrum for the
// given result, ascending Q order.
func (g *GlobalProblem) Widths(res *Result) []float64 {
	out := make([]float64, g.ds.Len())
	d := res.Params.Value(SharedNameD)
	tau := res.Params.Value(SharedNameTau)
	for i := range g.ds.Spectra {
		out[i] = teixeira.HWHM(g.ds.Spectra[i].Q, d, tau)
	}

	return out
}
