// Package synth generates synthetic QENS water datasets with known ground
// truth, for tests and for the self-contained demo mode of the CLI.
package synth

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/nscatter/qens-fit/data"
	"github.com/nscatter/qens-fit/model"
	"github.com/nscatter/qens-fit/teixeira"
)

// Errors returned by the generator.
var (
	ErrBadConfig = errors.New("synth: invalid generator configuration")
)

// Config is the ground truth of a generated dataset.
type Config struct {
	Qs       []float64 // momentum transfers, ascending, 1/Å
	EMin     float64   // energy window, meV
	EMax     float64
	NPoints  int     // samples per spectrum
	D        float64 // diffusion coefficient, Å²/ps
	Tau      float64 // residence time, ps
	EISF     float64 // elastic fraction, in [0, 1]
	Scale    float64 // overall intensity
	ResSigma float64 // Gaussian resolution sigma, meV
	BgSlope  float64
	BgOffset float64
	Noise    float64 // relative noise level; 0 gives noise-free data with unit errors
	Seed     int64
}

// DefaultConfig mimics a backscattering water measurement: the ten Q values
// of the IRIS reduction, a ±0.4 meV window and a narrow Gaussian resolution.
func DefaultConfig() Config {
	return Config{
		Qs: []float64{
			0.525312757876, 0.7291668809127, 0.9233951329944, 1.105593679447,
			1.273206832528, 1.42416584459, 1.556455009584, 1.668282739099,
			1.758225254224, 1.825094271503,
		},
		EMin:     -0.4,
		EMax:     0.4,
		NPoints:  257,
		D:        0.19,
		Tau:      1.25,
		EISF:     0.15,
		Scale:    1.0,
		ResSigma: 0.008,
		Noise:    0.02,
		Seed:     7,
	}
}

// Resolution tabulates the Gaussian instrument resolution on the dataset
// grid.
func Resolution(cfg Config) (*model.Resolution, error) {
	x, err := grid(cfg)
	if err != nil {
		return nil, err
	}

	y := make([]float64, len(x))
	inv := 1 / (2 * cfg.ResSigma * cfg.ResSigma)
	for i, xi := range x {
		y[i] = math.Exp(-xi * xi * inv)
	}

	return model.NewResolution(x, y)
}

// Dataset generates one spectrum per Q from the water model with the
// configured ground truth, the quasi-elastic width following the Teixeira
// law.
func Dataset(cfg Config) (*data.Dataset, *model.Resolution, error) {
	res, err := Resolution(cfg)
	if err != nil {
		return nil, nil, err
	}

	x, err := grid(cfg)
	if err != nil {
		return nil, nil, err
	}

	w := model.NewWater(res, -1)
	ps, err := w.Params()
	if err != nil {
		return nil, nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	spectra := make([]data.Spectrum, 0, len(cfg.Qs))

	for _, q := range cfg.Qs {
		values := map[string]float64{
			"scale":       cfg.Scale,
			"e_amplitude": cfg.EISF,
			"e_center":    0,
			"l_hwhm":      teixeira.HWHM(q, cfg.D, cfg.Tau),
			"b_slope":     cfg.BgSlope,
			"b_intercept": cfg.BgOffset,
		}
		for name, v := range values {
			if err := ps.SetValue(name, v); err != nil {
				return nil, nil, err
			}
		}
		if err := ps.Resolve(); err != nil {
			return nil, nil, err
		}

		y := make([]float64, len(x))
		if err := w.Eval(y, x, ps); err != nil {
			return nil, nil, err
		}

		e := make([]float64, len(x))
		peak := 0.0
		for _, v := range y {
			if v > peak {
				peak = v
			}
		}

		for i := range y {
			if cfg.Noise <= 0 {
				e[i] = 1
				continue
			}

			sigma := cfg.Noise * (math.Abs(y[i]) + 0.01*peak)
			y[i] += sigma * rng.NormFloat64()
			e[i] = sigma
		}

		spectra = append(spectra, data.Spectrum{
			Q: q,
			X: append([]float64(nil), x...),
			Y: y,
			E: e,
		})
	}

	ds, err := data.NewDataset(spectra)
	if err != nil {
		return nil, nil, err
	}

	return ds, res, nil
}

func grid(cfg Config) ([]float64, error) {
	if cfg.NPoints < 3 || cfg.EMin >= cfg.EMax || cfg.ResSigma <= 0 ||
		len(cfg.Qs) == 0 || cfg.EISF < 0 || cfg.EISF > 1 {
		return nil, fmt.Errorf("%w: %+v", ErrBadConfig, cfg)
	}

	x := make([]float64, cfg.NPoints)
	step := (cfg.EMax - cfg.EMin) / float64(cfg.NPoints-1)
	for i := range x {
		x[i] = cfg.EMin + float64(i)*step
	}

	return x, nil
}
