// Package moire turns ideal transmission and dark-field maps into raw
// phase-stepped fringe images and back: geometric magnification, aperture
// blur, sinusoidal phase stepping, detector noise and the least-squares
// reconstruction of H0/H1/dark-field maps.
package moire

import (
	"math"

	"github.com/usnistgov/correlogram-tools/scan"
)

// Aperture types.
const (
	Pinhole = "pinhole"
	Slit    = "slit"
)

// Stack is a raw phase-stepped image sequence, indexed [step][y][x].
type Stack [][][]float64

// Shape returns (steps, height, width).
func (s Stack) Shape() (steps, h, w int) {
	if len(s) == 0 || len(s[0]) == 0 {
		return len(s), 0, 0
	}
	return len(s), len(s[0]), len(s[0][0])
}

// Clone returns a deep copy of the stack.
func (s Stack) Clone() Stack {
	out := make(Stack, len(s))
	for k, frame := range s {
		out[k] = make([][]float64, len(frame))
		for y, row := range frame {
			out[k][y] = append([]float64(nil), row...)
		}
	}
	return out
}

// Instrument is the interferometer geometry and fringe configuration.
type Instrument struct {
	InterferometerLength float64 // aperture to detector, m
	ApertureType         string  // "pinhole" or "slit"
	SlitApertureX        float64 // cm
	SlitApertureY        float64 // cm
	PixelPitch           float64 // detector pixel size, um/px
	NPhaseSteps          int
	NPhaseStepPeriods    int
	MoireMean            float64 // average exposure per pixel
	MoireVis             float64 // fringe visibility
}

// Validate checks the instrument section before any simulation starts.
func (in Instrument) Validate() error {
	if in.ApertureType != Pinhole && in.ApertureType != Slit {
		return scan.Configf("expected aperture_type pinhole|slit but got %q", in.ApertureType)
	}
	if in.InterferometerLength <= 0 {
		return scan.Configf("interferometer_length must be positive, got %g", in.InterferometerLength)
	}
	if in.PixelPitch <= 0 {
		return scan.Configf("x_pixel_pitch must be positive, got %g", in.PixelPitch)
	}
	if in.NPhaseSteps < 3 {
		return scan.Configf("n_phase_steps must be at least 3 to fit mean and amplitude, got %d", in.NPhaseSteps)
	}
	if in.NPhaseStepPeriods < 1 {
		return scan.Configf("n_phase_step_periods must be at least 1, got %d", in.NPhaseStepPeriods)
	}
	return nil
}

// Magnification returns the similar-triangles scale factor L/(L-Z) for a
// sample at z mm from the detector.
func (in Instrument) Magnification(z float64) float64 {
	L := in.InterferometerLength
	Z := math.Abs(z) / 1000 // mm -> m
	return L / (L - Z)
}

// magnify resamples a map by the magnification factor about its center
// using bilinear interpolation. Pixels pulled from beyond the input edge
// clamp to the edge value.
func magnify(m [][]float64, factor float64) [][]float64 {
	if factor == 1 {
		return m
	}
	h, w := len(m), len(m[0])
	cy, cx := float64(h-1)/2, float64(w-1)/2
	out := make([][]float64, h)
	for y := range out {
		out[y] = make([]float64, w)
		for x := range out[y] {
			sy := (float64(y)-cy)/factor + cy
			sx := (float64(x)-cx)/factor + cx
			out[y][x] = interpolate(m, sx, sy)
		}
	}
	return out
}

// interpolate samples a map at fractional coordinates with bilinear
// weighting, clamping to the map bounds.
func interpolate(m [][]float64, x, y float64) float64 {
	h, w := len(m), len(m[0])
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x >= float64(w-1) {
		x = float64(w-1) - 1e-9
	}
	if y >= float64(h-1) {
		y = float64(h-1) - 1e-9
	}
	if w == 1 {
		x = 0
	}
	if h == 1 {
		y = 0
	}

	x0, y0 := int(x), int(y)
	x1, y1 := x0+1, y0+1
	if x1 > w-1 {
		x1 = w - 1
	}
	if y1 > h-1 {
		y1 = h - 1
	}
	xf, yf := x-float64(x0), y-float64(y0)

	v0 := m[y0][x0]*(1-xf) + m[y0][x1]*xf
	v1 := m[y1][x0]*(1-xf) + m[y1][x1]*xf
	return v0*(1-yf) + v1*yf
}

// Project synthesizes the raw phase-stepped stack of a sample measurement.
// The geometric blur mixes beam paths where counts are additive, so it is
// applied to the mean map H0 and the amplitude map H1 = H0*exp(-DF)
// separately, never to their ratio.
func (in Instrument) Project(trans, df [][]float64, p scan.Point) (Stack, error) {
	h, w, err := rectShape(trans)
	if err != nil {
		return nil, err
	}
	dh, dw, err := rectShape(df)
	if err != nil {
		return nil, err
	}
	if dh != h || dw != w {
		return nil, shapef("dark-field map is %dx%d but transmission map is %dx%d", dh, dw, h, w)
	}

	mag := in.Magnification(p.Z)
	h0 := magnify(trans, mag)
	h1 := make([][]float64, h)
	for y := range h1 {
		h1[y] = make([]float64, w)
		for x := range h1[y] {
			h1[y][x] = trans[y][x] * math.Exp(-df[y][x])
		}
	}
	h1 = magnify(h1, mag)

	h0, err = in.blur(h0, p.Z)
	if err != nil {
		return nil, err
	}
	h1, err = in.blur(h1, p.Z)
	if err != nil {
		return nil, err
	}

	return in.step(func(y, x int, wave float64) float64 {
		return in.MoireMean*h0[y][x] + in.MoireMean*in.MoireVis*wave*h1[y][x]
	}, h, w, p), nil
}

// OpenBeam synthesizes the raw phase-stepped stack with no sample in the
// beam: a pure fringe pattern of the configured mean and visibility.
func (in Instrument) OpenBeam(h, w int, p scan.Point) Stack {
	amp := in.MoireMean * in.MoireVis
	return in.step(func(y, x int, wave float64) float64 {
		return in.MoireMean + amp*wave
	}, h, w, p)
}

// step evaluates the phase-stepping sinusoid and hands each pixel's wave
// value to f. The fringe runs along columns with the measurement's moire
// period; each step advances the phase by 2*pi*n_periods/n_steps.
func (in Instrument) step(f func(y, x int, wave float64) float64, h, w int, p scan.Point) Stack {
	periodPx := p.Moire * 1000 / in.PixelPitch
	deltaPhi := 2 * math.Pi * float64(in.NPhaseStepPeriods) / float64(in.NPhaseSteps)

	stack := make(Stack, in.NPhaseSteps)
	for k := range stack {
		phase := deltaPhi * float64(k)
		wave := make([]float64, w)
		for x := range wave {
			wave[x] = math.Sin(2*math.Pi*float64(x)/periodPx + phase)
		}
		frame := make([][]float64, h)
		for y := range frame {
			frame[y] = make([]float64, w)
			for x := range frame[y] {
				frame[y][x] = f(y, x, wave[x])
			}
		}
		stack[k] = frame
	}
	return stack
}

func rectShape(m [][]float64) (h, w int, err error) {
	h = len(m)
	if h == 0 || len(m[0]) == 0 {
		return 0, 0, shapef("empty image map")
	}
	w = len(m[0])
	for y := 1; y < h; y++ {
		if len(m[y]) != w {
			return 0, 0, shapef("ragged image map: row %d has %d columns, want %d", y, len(m[y]), w)
		}
	}
	return h, w, nil
}
