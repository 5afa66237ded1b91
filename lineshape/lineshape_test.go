package lineshape

import (
	"math"
	"testing"
)

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

func TestLorentzianPeakValueAndSymmetry(t *testing.T) {
	x := linspace(-1, 1, 2001)
	dst := make([]float64, len(x))

	amplitude, center, hwhm := 2.0, 0.0, 0.1
	if err := Lorentzian(dst, x, amplitude, center, hwhm); err != nil {
		t.Fatalf("Lorentzian: %v", err)
	}

	// Peak value of an area-normalized Lorentzian is A/(π·Γ).
	wantPeak := amplitude / (math.Pi * hwhm)
	if math.Abs(dst[1000]-wantPeak) > 1e-12 {
		t.Fatalf("peak = %.12f, want %.12f", dst[1000], wantPeak)
	}

	// Half maximum at center ± HWHM.
	idx := 1100 // x = 0.1
	if math.Abs(dst[idx]-wantPeak/2) > 1e-9 {
		t.Fatalf("value at +HWHM = %.12f, want %.12f", dst[idx], wantPeak/2)
	}

	for i := range dst {
		j := len(dst) - 1 - i
		if math.Abs(dst[i]-dst[j]) > 1e-12 {
			t.Fatalf("asymmetry at %d: %g vs %g", i, dst[i], dst[j])
		}
	}
}

func TestLorentzianDeterministic(t *testing.T) {
	x := linspace(-0.5, 0.5, 101)
	a := make([]float64, len(x))
	b := make([]float64, len(x))

	if err := Lorentzian(a, x, 1.5, 0.02, 0.07); err != nil {
		t.Fatalf("Lorentzian: %v", err)
	}
	if err := Lorentzian(b, x, 1.5, 0.02, 0.07); err != nil {
		t.Fatalf("Lorentzian: %v", err)
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("evaluation not reproducible at %d: %g vs %g", i, a[i], b[i])
		}
	}
}

func TestGaussianIntegratesToAmplitude(t *testing.T) {
	x := linspace(-2, 2, 4001)
	dst := make([]float64, len(x))

	if err := Gaussian(dst, x, 3.0, 0.0, 0.1); err != nil {
		t.Fatalf("Gaussian: %v", err)
	}

	sum := 0.0
	for i := 1; i < len(x); i++ {
		sum += 0.5 * (dst[i] + dst[i-1]) * (x[i] - x[i-1])
	}

	if math.Abs(sum-3.0) > 1e-6 {
		t.Fatalf("integral = %.9f, want 3.0", sum)
	}
}

func TestDeltaDiracSingleSample(t *testing.T) {
	x := linspace(-0.4, 0.4, 81) // spacing 0.01
	dst := make([]float64, len(x))

	if err := DeltaDirac(dst, x, 0.7, 0.102); err != nil {
		t.Fatalf("DeltaDirac: %v", err)
	}

	nonzero := 0
	for i, v := range dst {
		if v == 0 {
			continue
		}
		nonzero++
		if math.Abs(x[i]-0.1) > 1e-9 {
			t.Fatalf("impulse at x = %g, want 0.1", x[i])
		}
		if math.Abs(v-0.7/0.01) > 1e-9 {
			t.Fatalf("impulse value = %g, want %g", v, 0.7/0.01)
		}
	}

	if nonzero != 1 {
		t.Fatalf("nonzero samples = %d, want 1", nonzero)
	}
}

func TestLinear(t *testing.T) {
	x := []float64{-1, 0, 2}
	dst := make([]float64, len(x))

	if err := Linear(dst, x, 0.5, 1.0); err != nil {
		t.Fatalf("Linear: %v", err)
	}

	want := []float64{0.5, 1.0, 2.0}
	for i := range want {
		if math.Abs(dst[i]-want[i]) > 1e-12 {
			t.Fatalf("dst[%d] = %g, want %g", i, dst[i], want[i])
		}
	}
}

func TestDomainErrors(t *testing.T) {
	if err := Lorentzian(nil, nil, 1, 0, 1); err != ErrEmptyDomain {
		t.Fatalf("empty domain: got %v", err)
	}
	if err := Gaussian(make([]float64, 2), make([]float64, 3), 1, 0, 1); err != ErrLengthMismatch {
		t.Fatalf("length mismatch: got %v", err)
	}
	if err := DeltaDirac(make([]float64, 1), []float64{0}, 1, 0); err != ErrDegenerate {
		t.Fatalf("degenerate domain: got %v", err)
	}
}

func TestGuessPeakRecoversLorentzian(t *testing.T) {
	x := linspace(-1, 1, 2001)
	y := make([]float64, len(x))
	if err := Lorentzian(y, x, 2.0, 0.1, 0.05); err != nil {
		t.Fatalf("Lorentzian: %v", err)
	}

	g := GuessPeak(x, y)

	if math.Abs(g.Center-0.1) > 1e-3 {
		t.Fatalf("center guess = %g, want 0.1", g.Center)
	}
	// The clipped tails make the integral slightly short of the amplitude.
	if g.Amplitude < 1.8 || g.Amplitude > 2.05 {
		t.Fatalf("amplitude guess = %g, want near 2.0", g.Amplitude)
	}
	if g.HWHM < 0.04 || g.HWHM > 0.06 {
		t.Fatalf("hwhm guess = %g, want near 0.05", g.HWHM)
	}
}

func TestGuessLinear(t *testing.T) {
	x := linspace(0, 10, 100)
	y := make([]float64, len(x))
	for i, xi := range x {
		y[i] = 2*xi + 3
	}

	slope, intercept := GuessLinear(x, y)
	if math.Abs(slope-2) > 1e-9 || math.Abs(intercept-3) > 1e-9 {
		t.Fatalf("guess = (%g, %g), want (2, 3)", slope, intercept)
	}
}

func TestSigmaFromFWHM(t *testing.T) {
	got := SigmaFromFWHM(2.3548200450309493)
	if math.Abs(got-1.0) > 1e-12 {
		t.Fatalf("sigma = %.15f, want 1", got)
	}
}
