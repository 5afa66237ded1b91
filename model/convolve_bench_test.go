package model

import (
	"fmt"
	"testing"

	"github.com/nscatter/qens-fit/internal/testutil"
	"github.com/nscatter/qens-fit/params"
)

func BenchmarkConvolvedEval(b *testing.B) {
	for _, n := range []int{128, 512, 2048} {
		x := testutil.Grid(-0.4, 0.4, n)
		res, err := NewResolution(x, gaussianTable(x, 0.02))
		if err != nil {
			b.Fatalf("NewResolution: %v", err)
		}

		ps := params.NewSet()
		if _, err := ps.Add("l_amplitude", 0.8, 0, 1); err != nil {
			b.Fatalf("Add: %v", err)
		}
		if _, err := ps.Add("l_center", 0.0, -0.5, 0.5); err != nil {
			b.Fatalf("Add: %v", err)
		}
		if _, err := ps.Add("l_hwhm", 0.05, 1e-5, 10); err != nil {
			b.Fatalf("Add: %v", err)
		}

		conv := Convolved{Model: QuasiElastic{}, Res: res}
		dst := make([]float64, n)

		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if err := conv.Eval(dst, x, ps); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
