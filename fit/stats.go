package fit

import "math"

// Statistics summarizes a weighted residual vector.
type Statistics struct {
	N      int     // residual samples
	NFree  int     // free parameters
	Chi2   float64 // sum of squared residuals
	RedChi float64 // chi-square per degree of freedom
	RMS    float64
	Max    float64 // largest absolute residual
	MaxPos int
}

// Summarize computes residual statistics in a single pass.
func Summarize(resid []float64, nfree int) Statistics {
	s := Statistics{N: len(resid), NFree: nfree}
	if len(resid) == 0 {
		return s
	}

	for i, r := range resid {
		s.Chi2 += r * r
		if a := math.Abs(r); a > s.Max {
			s.Max = a
			s.MaxPos = i
		}
	}

	s.RMS = math.Sqrt(s.Chi2 / float64(s.N))

	dof := s.N - nfree
	if dof > 0 {
		s.RedChi = s.Chi2 / float64(dof)
	} else {
		s.RedChi = math.Inf(1)
	}

	return s
}
