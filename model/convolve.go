package model

import (
	"errors"
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/nscatter/qens-fit/params"
)

// Errors returned by convolution.
var (
	ErrConvolveShort = errors.New("model: domain too short to convolve")
)

// Convolved evaluates an inner model convolved with the instrument
// resolution. The resolution FWHM is assumed energy independent.
//
// The inner model is evaluated on a symmetrically extended energy grid so the
// valid region of the convolution covers the full data range without boundary
// artifacts, then convolved with the resolution sampled on the data grid and
// normalized by the resolution sum. Non-symmetric energy windows are allowed.
type Convolved struct {
	Model Evaluator
	Res   *Resolution
}

// Eval writes the convolved model into dst.
func (c Convolved) Eval(dst, x []float64, ps *params.Set) error {
	if len(x) == 0 {
		return ErrEmptyDomain
	}

	if len(dst) != len(x) {
		return ErrLengthMismatch
	}

	if len(x) < 2 {
		return ErrConvolveShort
	}

	ext := extendGrid(x)

	inner := make([]float64, len(ext))
	if err := c.Model.Eval(inner, ext, ps); err != nil {
		return err
	}

	res := c.Res.On(x)
	sum := 0.0
	for _, v := range res {
		sum += v
	}
	if sum == 0 {
		return ErrResolutionZero
	}

	out, err := convolveValid(inner, res)
	if err != nil {
		return err
	}

	// The extension leaves the valid region one sample longer when the grid
	// has no exact zero sample; keep the leading len(x) samples.
	if len(out) < len(x) {
		return fmt.Errorf("%w: valid region %d, need %d", ErrConvolveShort, len(out), len(x))
	}

	for i := range dst {
		dst[i] = out[i] / sum
	}

	return nil
}

// extendGrid mirrors the positive energies below the range and the negative
// energies above it, giving the inner model room for the convolution tails.
func extendGrid(x []float64) []float64 {
	lo := x[0]
	hi := x[len(x)-1]

	var neg []float64
	for i := len(x) - 1; i >= 0; i-- {
		if x[i] > 0 {
			neg = append(neg, lo-x[i])
		}
	}

	var pos []float64
	for i := len(x) - 1; i >= 0; i-- {
		if x[i] < 0 {
			pos = append(pos, hi-x[i])
		}
	}

	out := make([]float64, 0, len(neg)+len(x)+len(pos))
	out = append(out, neg...)
	out = append(out, x...)
	out = append(out, pos...)

	return out
}

// directThreshold selects the FFT path once the direct convolution work
// exceeds roughly this many multiply-adds.
const directThreshold = 1 << 16

// convolveValid returns the valid region of the linear convolution of a with
// kernel: output length len(a) - len(kernel) + 1.
func convolveValid(a, kernel []float64) ([]float64, error) {
	n := len(a)
	m := len(kernel)
	if n < m {
		return nil, ErrConvolveShort
	}

	var full []float64
	var err error
	if n*m <= directThreshold {
		full = convolveDirect(a, kernel)
	} else {
		full, err = convolveFFT(a, kernel)
		if err != nil {
			return nil, err
		}
	}

	return full[m-1 : n], nil
}

func convolveDirect(a, kernel []float64) []float64 {
	n := len(a)
	m := len(kernel)

	full := make([]float64, n+m-1)
	for i, av := range a {
		for j, kv := range kernel {
			full[i+j] += av * kv
		}
	}

	return full
}

func convolveFFT(a, kernel []float64) ([]float64, error) {
	n := len(a)
	m := len(kernel)
	size := nextPowerOf2(n + m - 1)

	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("model: fft plan: %w", err)
	}

	aPadded := make([]complex128, size)
	for i, v := range a {
		aPadded[i] = complex(v, 0)
	}

	kPadded := make([]complex128, size)
	for i, v := range kernel {
		kPadded[i] = complex(v, 0)
	}

	aFreq := make([]complex128, size)
	if err := plan.Forward(aFreq, aPadded); err != nil {
		return nil, fmt.Errorf("model: forward FFT failed: %w", err)
	}

	kFreq := make([]complex128, size)
	if err := plan.Forward(kFreq, kPadded); err != nil {
		return nil, fmt.Errorf("model: forward FFT failed: %w", err)
	}

	for i := range aFreq {
		aFreq[i] *= kFreq[i]
	}

	resultTime := make([]complex128, size)
	if err := plan.Inverse(resultTime, aFreq); err != nil {
		return nil, fmt.Errorf("model: inverse FFT failed: %w", err)
	}

	full := make([]float64, n+m-1)
	for i := range full {
		full[i] = real(resultTime[i])
	}

	return full, nil
}

func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}

	p := 1
	for p < n {
		p <<= 1
	}

	return p
}
