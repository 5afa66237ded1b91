// Package data holds QENS spectra and their loading and windowing helpers.
//
// A Dataset is an ordered sequence of spectra, one per momentum transfer Q,
// sorted by ascending Q. The Q grid is fixed for the lifetime of the dataset.
package data

import (
	"errors"
	"fmt"
)

// Errors returned by data operations.
var (
	ErrLengthMismatch = errors.New("data: intensity, error and energy lengths differ")
	ErrEmptySpectrum  = errors.New("data: empty spectrum")
	ErrBadWindow      = errors.New("data: window lower edge must be below upper edge")
	ErrQOrder         = errors.New("data: q values must be positive and ascending")
)

// Spectrum is one measured QENS spectrum at a fixed momentum transfer.
type Spectrum struct {
	Q float64   // momentum transfer, 1/Å
	X []float64 // energy transfer, meV
	Y []float64 // intensity
	E []float64 // intensity uncertainty, one sigma
}

// Validate checks the array-length invariant.
func (s *Spectrum) Validate() error {
	if len(s.X) == 0 {
		return ErrEmptySpectrum
	}

	if len(s.Y) != len(s.X) || len(s.E) != len(s.X) {
		return fmt.Errorf("%w: x=%d y=%d e=%d", ErrLengthMismatch, len(s.X), len(s.Y), len(s.E))
	}

	return nil
}

// Crop returns a copy of the spectrum restricted to the open energy interval
// (lo, hi). Samples at exactly lo or hi are excluded. Intensity and
// uncertainty arrays are cropped in lockstep with the energy axis.
func (s *Spectrum) Crop(lo, hi float64) (Spectrum, error) {
	if lo >= hi {
		return Spectrum{}, fmt.Errorf("%w: (%g, %g)", ErrBadWindow, lo, hi)
	}

	if err := s.Validate(); err != nil {
		return Spectrum{}, err
	}

	out := Spectrum{Q: s.Q}
	for i, x := range s.X {
		if x > lo && x < hi {
			out.X = append(out.X, x)
			out.Y = append(out.Y, s.Y[i])
			out.E = append(out.E, s.E[i])
		}
	}

	if len(out.X) == 0 {
		return Spectrum{}, fmt.Errorf("%w: window (%g, %g) excludes every sample", ErrEmptySpectrum, lo, hi)
	}

	return out, nil
}

// Dataset is an ordered sequence of spectra with ascending Q.
type Dataset struct {
	Spectra []Spectrum
}

// NewDataset validates the spectra and their Q ordering.
func NewDataset(spectra []Spectrum) (*Dataset, error) {
	prev := 0.0
	for i := range spectra {
		if err := spectra[i].Validate(); err != nil {
			return nil, fmt.Errorf("data: spectrum %d: %w", i, err)
		}

		if spectra[i].Q <= prev {
			return nil, fmt.Errorf("%w: q[%d] = %g", ErrQOrder, i, spectra[i].Q)
		}
		prev = spectra[i].Q
	}

	return &Dataset{Spectra: spectra}, nil
}

// Len returns the number of spectra.
func (d *Dataset) Len() int { return len(d.Spectra) }

// Qs returns the Q value of every spectrum, ascending.
func (d *Dataset) Qs() []float64 {
	out := make([]float64, len(d.Spectra))
	for i := range d.Spectra {
		out[i] = d.Spectra[i].Q
	}

	return out
}

// Samples returns the total sample count across all spectra.
func (d *Dataset) Samples() int {
	n := 0
	for i := range d.Spectra {
		n += len(d.Spectra[i].X)
	}

	return n
}

// Crop applies the open energy window (lo, hi) to every spectrum and returns
// the cropped dataset.
func (d *Dataset) Crop(lo, hi float64) (*Dataset, error) {
	out := make([]Spectrum, 0, len(d.Spectra))
	for i := range d.Spectra {
		s, err := d.Spectra[i].Crop(lo, hi)
		if err != nil {
			return nil, fmt.Errorf("data: spectrum %d: %w", i, err)
		}
		out = append(out, s)
	}

	return &Dataset{Spectra: out}, nil
}
