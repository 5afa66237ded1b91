package model

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/nscatter/qens-fit/internal/testutil"
	"github.com/nscatter/qens-fit/params"
)

func waterFixture(t *testing.T, index int) (*Water, *params.Set, []float64) {
	t.Helper()

	x := testutil.Grid(-0.4, 0.4, 161)
	res, err := NewResolution(x, gaussianTable(x, 0.025))
	if err != nil {
		t.Fatalf("NewResolution: %v", err)
	}

	w := NewWater(res, index)
	ps, err := w.Params()
	if err != nil {
		t.Fatalf("Params: %v", err)
	}

	return w, ps, x
}

func TestWaterParamNamespacing(t *testing.T) {
	_, ps, _ := waterFixture(t, 4)

	want := []string{
		"s4_scale", "s4_e_amplitude", "s4_e_center", "s4_l_amplitude",
		"s4_l_center", "s4_l_hwhm", "s4_b_slope", "s4_b_intercept",
	}

	names := ps.Names()
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i, n := range want {
		if names[i] != n {
			t.Fatalf("name %d = %q, want %q", i, names[i], n)
		}
	}

	// No prefix when no index is given.
	_, psFlat, _ := waterFixture(t, -1)
	for _, n := range psFlat.Names() {
		if strings.HasPrefix(n, "s") && strings.Contains(n, "_") && n[1] >= '0' && n[1] <= '9' {
			t.Fatalf("unexpected prefixed name %q", n)
		}
	}
}

func TestWaterTieInvariants(t *testing.T) {
	_, ps, _ := waterFixture(t, 0)

	cases := []struct {
		eAmplitude float64
		eCenter    float64
	}{
		{0.8, 0.0},
		{0.35, 0.02},
		{0.0, -0.1},
		{1.0, 0.05},
	}

	for _, tc := range cases {
		if err := ps.SetValue("s0_e_amplitude", tc.eAmplitude); err != nil {
			t.Fatalf("SetValue: %v", err)
		}
		if err := ps.SetValue("s0_e_center", tc.eCenter); err != nil {
			t.Fatalf("SetValue: %v", err)
		}
		if err := ps.Resolve(); err != nil {
			t.Fatalf("Resolve: %v", err)
		}

		if got := ps.Value("s0_l_center"); got != tc.eCenter {
			t.Fatalf("center tie: l=%g e=%g", got, tc.eCenter)
		}
		if got := ps.Value("s0_l_amplitude"); math.Abs(got-(1-tc.eAmplitude)) > 1e-15 {
			t.Fatalf("amplitude tie: l=%g, want %g", got, 1-tc.eAmplitude)
		}
	}
}

func TestWaterBackgroundStartsAtZero(t *testing.T) {
	_, ps, _ := waterFixture(t, 0)

	if ps.Value("s0_b_slope") != 0 || ps.Value("s0_b_intercept") != 0 {
		t.Fatalf("background not zero: slope=%g intercept=%g",
			ps.Value("s0_b_slope"), ps.Value("s0_b_intercept"))
	}
}

func TestWaterEvalDeterministic(t *testing.T) {
	w, ps, x := waterFixture(t, 0)

	a := make([]float64, len(x))
	b := make([]float64, len(x))
	if err := w.Eval(a, x, ps); err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if err := w.Eval(b, x, ps); err != nil {
		t.Fatalf("Eval: %v", err)
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("nondeterministic at %d", i)
		}
	}
}

func TestWaterEvalScaleAndBackground(t *testing.T) {
	w, ps, x := waterFixture(t, 0)

	base := make([]float64, len(x))
	if err := w.Eval(base, x, ps); err != nil {
		t.Fatalf("Eval: %v", err)
	}

	// Doubling the scale doubles the peak part; a flat background shifts
	// every sample by the intercept.
	if err := ps.SetValue("s0_scale", 2); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if err := ps.SetValue("s0_b_intercept", 0.25); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if err := ps.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	out := make([]float64, len(x))
	if err := w.Eval(out, x, ps); err != nil {
		t.Fatalf("Eval: %v", err)
	}

	for i := range out {
		want := 2*base[i] + 0.25
		if math.Abs(out[i]-want) > 1e-12 {
			t.Fatalf("sample %d: got %.12f, want %.12f", i, out[i], want)
		}
	}
}

func TestWaterGuessFromData(t *testing.T) {
	w, ps, x := waterFixture(t, 0)

	// A strong narrow peak: guess should raise the scale above the default.
	y := make([]float64, len(x))
	for i, xi := range x {
		y[i] = 40 * math.Exp(-xi*xi/(2*0.03*0.03))
	}

	if err := w.Guess(ps, x, y); err != nil {
		t.Fatalf("Guess: %v", err)
	}

	if ps.Value("s0_scale") <= 1 {
		t.Fatalf("scale guess = %g, want > 1", ps.Value("s0_scale"))
	}
	if ps.Value("s0_l_hwhm") <= 0 {
		t.Fatalf("hwhm guess = %g", ps.Value("s0_l_hwhm"))
	}
}

func TestWaterEvalMissingParam(t *testing.T) {
	w, _, x := waterFixture(t, 0)

	dst := make([]float64, len(x))
	if err := w.Eval(dst, x, params.NewSet()); !errors.Is(err, ErrMissingParam) {
		t.Fatalf("missing param: got %v", err)
	}
}

func TestCompositeRequiresComponents(t *testing.T) {
	dst := make([]float64, 3)
	if err := (Composite{}).Eval(dst, []float64{1, 2, 3}, params.NewSet()); !errors.Is(err, ErrNoComponents) {
		t.Fatalf("no components: got %v", err)
	}
}
