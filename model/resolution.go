package model

import (
	"errors"
	"fmt"
	"sort"
)

// Errors returned by resolution handling.
var (
	ErrResolutionEmpty    = errors.New("model: resolution needs at least two samples")
	ErrResolutionMismatch = errors.New("model: resolution x and y lengths differ")
	ErrResolutionOrder    = errors.New("model: resolution energy axis must be strictly ascending")
	ErrResolutionZero     = errors.New("model: resolution integrates to zero")
)

// Resolution is a tabulated instrument resolution function. The tabulation
// is interpolated linearly onto whatever energy grid the data uses; outside
// the tabulated range the resolution is zero.
type Resolution struct {
	x []float64
	y []float64
}

// NewResolution validates and stores a measured resolution spectrum.
func NewResolution(x, y []float64) (*Resolution, error) {
	if len(x) < 2 {
		return nil, ErrResolutionEmpty
	}

	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: x=%d y=%d", ErrResolutionMismatch, len(x), len(y))
	}

	if !sort.Float64sAreSorted(x) {
		return nil, ErrResolutionOrder
	}
	for i := 1; i < len(x); i++ {
		if x[i] == x[i-1] {
			return nil, ErrResolutionOrder
		}
	}

	sum := 0.0
	for _, v := range y {
		sum += v
	}
	if sum == 0 {
		return nil, ErrResolutionZero
	}

	r := &Resolution{
		x: append([]float64(nil), x...),
		y: append([]float64(nil), y...),
	}

	return r, nil
}

// On samples the resolution on the given energy grid by linear
// interpolation.
func (r *Resolution) On(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, xi := range x {
		out[i] = r.at(xi)
	}

	return out
}

func (r *Resolution) at(xi float64) float64 {
	if xi < r.x[0] || xi > r.x[len(r.x)-1] {
		return 0
	}

	// Index of the first tabulated point at or beyond xi.
	j := sort.SearchFloat64s(r.x, xi)
	if j == 0 {
		return r.y[0]
	}

	x0, x1 := r.x[j-1], r.x[j]
	y0, y1 := r.y[j-1], r.y[j]
	t := (xi - x0) / (x1 - x0)

	return y0 + t*(y1-y0)
}
