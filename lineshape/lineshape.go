// Package lineshape provides the peak and background functions used to
// assemble QENS spectral models.
//
// All functions fill a caller-provided destination slice so composite models
// can evaluate repeatedly without allocating. Amplitudes are integrated
// intensities: a Lorentzian with amplitude A integrates to A over an infinite
// energy range, and the delta function carries its full amplitude in the
// single sample closest to its center.
package lineshape

import (
	"errors"
	"math"
)

// Errors returned by lineshape functions.
var (
	ErrEmptyDomain    = errors.New("lineshape: empty domain")
	ErrLengthMismatch = errors.New("lineshape: dst and x length mismatch")
	ErrDegenerate     = errors.New("lineshape: domain must contain at least two points")
)

// Lorentzian fills dst with an area-normalized Lorentzian
//
//	A/π · Γ / ((x−x₀)² + Γ²)
//
// where Γ is the half width at half maximum.
func Lorentzian(dst, x []float64, amplitude, center, hwhm float64) error {
	if err := checkDomain(dst, x); err != nil {
		return err
	}

	g := math.Abs(hwhm)
	if g == 0 {
		g = math.SmallestNonzeroFloat64
	}

	k := amplitude / math.Pi
	for i, xi := range x {
		d := xi - center
		dst[i] = k * g / (d*d + g*g)
	}

	return nil
}

// Gaussian fills dst with an area-normalized Gaussian
//
//	A / (σ√(2π)) · exp(−(x−x₀)² / 2σ²).
func Gaussian(dst, x []float64, amplitude, center, sigma float64) error {
	if err := checkDomain(dst, x); err != nil {
		return err
	}

	s := math.Abs(sigma)
	if s == 0 {
		s = math.SmallestNonzeroFloat64
	}

	k := amplitude / (s * math.Sqrt(2*math.Pi))
	inv := 1 / (2 * s * s)
	for i, xi := range x {
		d := xi - center
		dst[i] = k * math.Exp(-d*d*inv)
	}

	return nil
}

// DeltaDirac fills dst with zeros except at the sample closest to center,
// which receives amplitude divided by the domain spacing. On a regular grid
// the curve then integrates to the amplitude regardless of the spacing.
func DeltaDirac(dst, x []float64, amplitude, center float64) error {
	if err := checkDomain(dst, x); err != nil {
		return err
	}

	if len(x) < 2 {
		return ErrDegenerate
	}

	dx := (x[len(x)-1] - x[0]) / float64(len(x)-1)
	if dx == 0 {
		return ErrDegenerate
	}

	for i := range dst {
		dst[i] = 0
	}

	best := 0
	bestDist := math.Abs(x[0] - center)
	for i, xi := range x {
		if d := math.Abs(xi - center); d < bestDist {
			bestDist = d
			best = i
		}
	}

	dst[best] = amplitude / dx

	return nil
}

// Linear fills dst with slope·x + intercept.
func Linear(dst, x []float64, slope, intercept float64) error {
	if err := checkDomain(dst, x); err != nil {
		return err
	}

	for i, xi := range x {
		dst[i] = slope*xi + intercept
	}

	return nil
}

func checkDomain(dst, x []float64) error {
	if len(x) == 0 {
		return ErrEmptyDomain
	}

	if len(dst) != len(x) {
		return ErrLengthMismatch
	}

	return nil
}
