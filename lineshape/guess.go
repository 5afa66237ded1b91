package lineshape

import "math"

// PeakGuess holds starting values estimated from measured data.
type PeakGuess struct {
	Amplitude float64
	Center    float64
	HWHM      float64
}

// GuessPeak estimates peak parameters from the data: the center is placed at
// the maximum sample, the amplitude at the trapezoidal integral of the data,
// and the HWHM at half the span where the data exceeds half its maximum.
// Useful as the starting point of a Lorentzian or Gaussian fit.
func GuessPeak(x, y []float64) PeakGuess {
	if len(x) == 0 || len(x) != len(y) {
		return PeakGuess{}
	}

	maxY := y[0]
	maxPos := 0
	for i, v := range y {
		if v > maxY {
			maxY = v
			maxPos = i
		}
	}

	g := PeakGuess{Center: x[maxPos]}

	// Trapezoidal integral as the amplitude estimate.
	for i := 1; i < len(x); i++ {
		g.Amplitude += 0.5 * (y[i] + y[i-1]) * (x[i] - x[i-1])
	}

	half := maxY / 2
	lo, hi := x[0], x[len(x)-1]
	for i := maxPos; i >= 0; i-- {
		if y[i] < half {
			lo = x[i]
			break
		}
	}
	for i := maxPos; i < len(y); i++ {
		if y[i] < half {
			hi = x[i]
			break
		}
	}

	g.HWHM = (hi - lo) / 2
	if g.HWHM <= 0 {
		g.HWHM = defaultHWHMFraction * (x[len(x)-1] - x[0])
	}

	return g
}

// GuessLinear estimates slope and intercept from the data endpoints,
// averaging a few samples at each edge to suppress noise.
func GuessLinear(x, y []float64) (slope, intercept float64) {
	n := len(x)
	if n == 0 || n != len(y) {
		return 0, 0
	}

	if n < 2 {
		return 0, y[0]
	}

	edge := n / 10
	if edge < 1 {
		edge = 1
	}

	var x0, y0, x1, y1 float64
	for i := 0; i < edge; i++ {
		x0 += x[i]
		y0 += y[i]
		x1 += x[n-1-i]
		y1 += y[n-1-i]
	}
	x0 /= float64(edge)
	y0 /= float64(edge)
	x1 /= float64(edge)
	y1 /= float64(edge)

	if x1 == x0 {
		return 0, y0
	}

	slope = (y1 - y0) / (x1 - x0)
	intercept = y0 - slope*x0

	return slope, intercept
}

const defaultHWHMFraction = 0.05

// FWHM converts a half width at half maximum to a full width.
func FWHM(hwhm float64) float64 { return 2 * hwhm }

// SigmaFromFWHM converts a Gaussian full width at half maximum to the
// standard deviation: σ = FWHM / (2√(2·ln2)).
func SigmaFromFWHM(fwhm float64) float64 {
	return fwhm / (2 * math.Sqrt(2*math.Ln2))
}
