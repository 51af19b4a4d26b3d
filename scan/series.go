// Package scan expands the measurements section of an experiment
// description into concrete (xi, moire period, wavelength, z) points.
//
// Canonical internal units are nm for xi, mm for the moire period and the
// sample-to-detector distance z, and Angstroms for the wavelength. The
// physical relation tying them together is
//
//	xi [nm] = wavelength [Ang] * z [mm] / (10 * moire [mm])
package scan

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Mode selects how a parameter series generates its values.
type Mode string

const (
	Fixed        Mode = "fixed"
	Discrete     Mode = "discrete"
	Range        Mode = "range"
	Continuous   Mode = "continuous"
	Calculated   Mode = "calculated"
	File         Mode = "file"
	Random       Mode = "random"
	RandomSingle Mode = "random-single"
)

// Spacing keywords for Range series.
const (
	SpacingLinear = "linear"
	SpacingLog    = "log"
)

// AcceptedUnits lists the only unit string each scan parameter accepts.
// An absent unit in the experiment file defaults to the accepted one;
// anything else is a configuration error.
var AcceptedUnits = map[string]string{
	"xi":         "nm",
	"moire":      "mm",
	"wavelength": "Ang",
	"z":          "mm",
}

// CheckUnits returns a ConfigError if units is neither empty nor the
// accepted unit string for the named parameter.
func CheckUnits(keyword, units string) error {
	accepted, ok := AcceptedUnits[keyword]
	if !ok {
		return configf("unknown scan parameter %q", keyword)
	}
	if units != "" && units != accepted {
		return configf("units of %s are not accepted for %s, only %s are accepted", units, keyword, accepted)
	}
	return nil
}

// Series is one declared scan or model parameter.
//
// The meaning of Values depends on Mode:
//   - Fixed: a single value in Values[0]
//   - Discrete, File: the literal value list, in order
//   - Range: [start, stop] with N points and Spacing
//   - Continuous, Random, RandomSingle: the closed interval [min, max]
//   - Calculated: no values; resolved by the scan resolver
type Series struct {
	Mode    Mode
	Values  []float64
	N       int
	Spacing string
	Units   string
}

// Expand returns the concrete ordered value sequence for a series driving
// a scan. Continuous, calculated and random series have no sequence of
// their own and yield a ConfigError.
func (s Series) Expand() ([]float64, error) {
	switch s.Mode {
	case Fixed:
		if len(s.Values) == 0 {
			return nil, configf("fixed series carries no value")
		}
		return []float64{s.Values[0]}, nil
	case Discrete, File:
		if len(s.Values) == 0 {
			return nil, configf("%s series carries no values", s.Mode)
		}
		out := make([]float64, len(s.Values))
		copy(out, s.Values)
		return out, nil
	case Range:
		return s.grid()
	case Continuous:
		return nil, configf("continuous series is only valid as the free parameter of an xi-scan")
	case Calculated:
		return nil, configf("calculated series must be resolved by the scan resolver")
	case Random, RandomSingle:
		return nil, configf("%s series cannot drive a scan", s.Mode)
	}
	return nil, configf("unrecognized series mode %q", s.Mode)
}

// Resolve returns one value per member of an n-sized ROI group. This is
// the per-model-parameter view of a series: fixed and random-single
// broadcast, discrete lists must have length 1 or n, ranges must have
// exactly n points, and random draws independently per member. Random
// modes draw uniformly from [Values[0], Values[1]] using src, which must
// be supplied by the caller so runs stay reproducible.
func (s Series) Resolve(n int, src rand.Source) ([]float64, error) {
	if n <= 0 {
		return nil, configf("series resolution requires a positive ROI group size, got %d", n)
	}
	switch s.Mode {
	case Fixed:
		if len(s.Values) == 0 {
			return nil, configf("fixed series carries no value")
		}
		return broadcast(s.Values[0], n), nil
	case Discrete:
		switch len(s.Values) {
		case 1:
			return broadcast(s.Values[0], n), nil
		case n:
			out := make([]float64, n)
			copy(out, s.Values)
			return out, nil
		default:
			return nil, configf("discrete value list has %d entries but the ROI group has %d members (1 would also broadcast)", len(s.Values), n)
		}
	case Range:
		vals, err := s.grid()
		if err != nil {
			return nil, err
		}
		if len(vals) != n {
			return nil, configf("range produces %d values but the ROI group has %d members", len(vals), n)
		}
		return vals, nil
	case RandomSingle:
		v, err := s.draw(src)
		if err != nil {
			return nil, err
		}
		return broadcast(v, n), nil
	case Random:
		out := make([]float64, n)
		for i := range out {
			v, err := s.draw(src)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return nil, configf("series mode %q cannot be resolved per ROI", s.Mode)
}

func (s Series) draw(src rand.Source) (float64, error) {
	if len(s.Values) < 2 {
		return 0, configf("%s series needs a [min, max] interval", s.Mode)
	}
	if src == nil {
		return 0, configf("%s series needs a random source", s.Mode)
	}
	lo, hi := s.Values[0], s.Values[1]
	if hi < lo {
		lo, hi = hi, lo
	}
	if lo == hi {
		return lo, nil
	}
	u := distuv.Uniform{Min: lo, Max: hi, Src: src}
	return u.Rand(), nil
}

// grid builds the inclusive N-point grid of a Range series. Both
// endpoints are hit exactly; log spacing is geometrically uniform and
// requires positive endpoints.
func (s Series) grid() ([]float64, error) {
	if len(s.Values) < 2 {
		return nil, configf("range series needs [start, stop] values")
	}
	if s.N < 1 {
		return nil, configf("range series needs at least one point, got %d", s.N)
	}
	start, stop := s.Values[0], s.Values[1]
	switch s.Spacing {
	case SpacingLinear, "":
		return linspace(start, stop, s.N), nil
	case SpacingLog:
		if start <= 0 || stop <= 0 {
			return nil, configf("log range requires positive endpoints, got [%g, %g]", start, stop)
		}
		return logspace(start, stop, s.N), nil
	}
	return nil, configf("range spacing must be %q or %q, got %q", SpacingLinear, SpacingLog, s.Spacing)
}

func linspace(start, stop float64, n int) []float64 {
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}

func logspace(start, stop float64, n int) []float64 {
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	l0, l1 := math.Log(start), math.Log(stop)
	step := (l1 - l0) / float64(n-1)
	for i := range out {
		out[i] = math.Exp(l0 + float64(i)*step)
	}
	out[0] = start
	out[n-1] = stop
	return out
}

func broadcast(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
