package moire

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/usnistgov/correlogram-tools/scan"
)

// Noise adds independent per-pixel, per-step Gaussian detector noise to a
// raw stack, approximating photon-counting statistics. Var <= 0 disables
// injection entirely; the stack passes through unchanged.
type Noise struct {
	Mean float64
	Var  float64
	Src  rand.Source
}

// Peak returns the expected intensity ceiling of a noisy raw frame,
// used to scale images on export.
func (n Noise) Peak(in Instrument) float64 {
	return in.MoireMean + in.MoireMean*in.MoireVis + n.Mean + 3*math.Sqrt(math.Max(n.Var, 0))
}

// Apply injects noise into the stack in place and returns it.
func (n Noise) Apply(s Stack) (Stack, error) {
	if n.Var < 0 {
		return nil, scan.Configf("noise_var must be non-negative, got %g", n.Var)
	}
	if n.Var == 0 {
		return s, nil
	}
	if n.Src == nil {
		return nil, scan.Configf("noise injection needs a random source")
	}
	dist := distuv.Normal{Mu: n.Mean, Sigma: math.Sqrt(n.Var), Src: n.Src}
	for _, frame := range s {
		for _, row := range frame {
			for x := range row {
				row[x] += dist.Rand()
			}
		}
	}
	return s, nil
}
