// Package teixeira implements the Teixeira jump-diffusion model for water,
// relating the Lorentzian half width of the quasi-elastic component to the
// momentum transfer:
//
//	HWHM(Q) = ħ·D·Q² / (1 + D·Q²·τ)
//
// with diffusion coefficient D (Å²/ps) and residence time τ (ps). Widths are
// in meV, Q in 1/Å.
package teixeira

import (
	"errors"
	"fmt"
	"math"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/optimize"
)

// Hbar is the reduced Planck constant in meV·ps.
const Hbar = 0.6582119569

// Errors returned by the fit.
var (
	ErrInputMismatch = errors.New("teixeira: q and width lengths differ")
	ErrTooFewPoints  = errors.New("teixeira: need at least two (q, width) points")
	ErrBadGuess      = errors.New("teixeira: starting D and tau must be positive")
)

// HWHM evaluates the model half width at momentum transfer q.
func HWHM(q, d, tau float64) float64 {
	dq2 := d * q * q
	return Hbar * dq2 / (1 + dq2*tau)
}

// Expr renders the model as a tie expression over parameter names dName and
// tauName with the momentum transfer folded in, for use as a shared-width
// constraint in a multi-spectrum fit.
func Expr(dName, tauName string, q float64) string {
	q2 := q * q
	return fmt.Sprintf("%.10g * %s * %.10g / (1 + %s * %.10g * %s)",
		Hbar, dName, q2, dName, q2, tauName)
}

// Result holds the fitted model parameters.
type Result struct {
	D    float64 // diffusion coefficient, Å²/ps
	Tau  float64 // residence time, ps
	RMS  float64 // root mean square width residual, meV
	Iter bool    // true when the optimizer reported success
}

// FitHWHM fits the model to recovered half widths versus momentum transfer.
// d0 and tau0 are starting guesses; both parameters are constrained positive
// through a log transform. The fit is unweighted.
func FitHWHM(qs, widths []float64, d0, tau0 float64) (Result, error) {
	return fitHWHM(qs, widths, d0, tau0, 200)
}

func fitHWHM(qs, widths []float64, d0, tau0 float64, iterations int) (Result, error) {
	if len(qs) != len(widths) {
		return Result{}, fmt.Errorf("%w: %d vs %d", ErrInputMismatch, len(qs), len(widths))
	}

	if len(qs) < 2 {
		return Result{}, ErrTooFewPoints
	}

	if d0 <= 0 || tau0 <= 0 {
		return Result{}, fmt.Errorf("%w: d0=%g tau0=%g", ErrBadGuess, d0, tau0)
	}

	// Optimize log(D) and log(tau) so the optimizer cannot leave the
	// physical region.
	resid := func(dst, p []float64) {
		d := math.Exp(p[0])
		tau := math.Exp(p[1])
		for i, q := range qs {
			dst[i] = HWHM(q, d, tau) - widths[i]
		}
	}

	jac := lm.NumJac{Func: resid}
	prob := lm.LMProblem{
		Dim:        2,
		Size:       len(qs),
		Func:       resid,
		Jac:        jac.Jac,
		InitParams: []float64{math.Log(d0), math.Log(tau0)},
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}

	results, err := lm.LM(prob, &lm.Settings{Iterations: iterations, ObjectiveTol: 1e-16})
	if err != nil {
		return Result{}, err
	}

	// Termination is reported through Status; the optimizer still returns its
	// best point when the iteration limit cuts the run short.
	r := Result{
		D:    math.Exp(results.X[0]),
		Tau:  math.Exp(results.X[1]),
		Iter: results.Status == optimize.StepConvergence,
	}
	r.RMS = rms(qs, widths, r.D, r.Tau)

	return r, nil
}

func rms(qs, widths []float64, d, tau float64) float64 {
	sum := 0.0
	for i, q := range qs {
		r := HWHM(q, d, tau) - widths[i]
		sum += r * r
	}

	return math.Sqrt(sum / float64(len(qs)))
}
