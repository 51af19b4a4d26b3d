package moire

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Reconstruct inverts a pair of raw phase-stepped stacks back to the
// normalized transmission (H0), normalized fringe amplitude (H1) and
// dark-field maps. Per pixel it least-squares fits the stepping sinusoid
//
//	I_k = c0 + c1*sin(phi_k) + c2*cos(phi_k),  phi_k = 2*pi*nPeriods*k/steps
//
// on a 3x3 median-filtered copy of each frame, then forms
// H0 = c0_samp/c0_open, H1 = amp_samp/amp_open and DF = -ln(H1/H0).
func Reconstruct(open, sample Stack, nPeriods int) (h0, h1, df [][]float64, err error) {
	steps, h, w := open.Shape()
	ss, sh, sw := sample.Shape()
	if steps == 0 || h == 0 || w == 0 {
		return nil, nil, nil, shapef("empty open-beam stack")
	}
	if ss != steps || sh != h || sw != w {
		return nil, nil, nil, shapef("sample stack is %dx%dx%d but open-beam stack is %dx%dx%d",
			ss, sh, sw, steps, h, w)
	}
	if steps < 3 {
		return nil, nil, nil, shapef("need at least 3 phase steps to fit mean and amplitude, got %d", steps)
	}

	g, err := fitMatrix(steps, nPeriods)
	if err != nil {
		return nil, nil, nil, err
	}

	openC := fitStack(open, g)
	sampC := fitStack(sample, g)

	h0 = make([][]float64, h)
	h1 = make([][]float64, h)
	df = make([][]float64, h)
	for y := 0; y < h; y++ {
		h0[y] = make([]float64, w)
		h1[y] = make([]float64, w)
		df[y] = make([]float64, w)
		for x := 0; x < w; x++ {
			ampOpen := math.Hypot(openC[1][y][x], openC[2][y][x])
			ampSamp := math.Hypot(sampC[1][y][x], sampC[2][y][x])
			h0[y][x] = sampC[0][y][x] / openC[0][y][x]
			h1[y][x] = ampSamp / ampOpen
			df[y][x] = -math.Log(h1[y][x] / h0[y][x])
		}
	}
	return h0, h1, df, nil
}

// fitMatrix returns the 3 x steps least-squares solve matrix
// (B'B)^-1 B' of the phase-stepping design matrix B = [1, sin, cos].
func fitMatrix(steps, nPeriods int) (*mat.Dense, error) {
	b := mat.NewDense(steps, 3, nil)
	for k := 0; k < steps; k++ {
		phi := 2 * math.Pi * float64(nPeriods) * float64(k) / float64(steps)
		b.Set(k, 0, 1)
		b.Set(k, 1, math.Sin(phi))
		b.Set(k, 2, math.Cos(phi))
	}
	var btb mat.Dense
	btb.Mul(b.T(), b)
	var inv mat.Dense
	if err := inv.Inverse(&btb); err != nil {
		return nil, shapef("phase-stepping design matrix is singular for %d steps over %d periods", steps, nPeriods)
	}
	var g mat.Dense
	g.Mul(&inv, b.T())
	return &g, nil
}

// fitStack accumulates the three per-pixel fit coefficients over the
// median-filtered frames of a stack.
func fitStack(s Stack, g *mat.Dense) [3][][]float64 {
	steps, h, w := s.Shape()
	var coeff [3][][]float64
	for c := range coeff {
		coeff[c] = make([][]float64, h)
		for y := range coeff[c] {
			coeff[c][y] = make([]float64, w)
		}
	}
	for k := 0; k < steps; k++ {
		frame := medianFilter3(s[k])
		for c := 0; c < 3; c++ {
			gk := g.At(c, k)
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					coeff[c][y][x] += gk * frame[y][x]
				}
			}
		}
	}
	return coeff
}

// medianFilter3 applies a 3x3 median filter with edge-replicated padding.
func medianFilter3(m [][]float64) [][]float64 {
	h, w := len(m), len(m[0])
	out := make([][]float64, h)
	window := make([]float64, 9)
	for y := 0; y < h; y++ {
		out[y] = make([]float64, w)
		for x := 0; x < w; x++ {
			i := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					window[i] = m[clamp(y+dy, 0, h-1)][clamp(x+dx, 0, w-1)]
					i++
				}
			}
			sort.Float64s(window)
			out[y][x] = window[4]
		}
	}
	return out
}
