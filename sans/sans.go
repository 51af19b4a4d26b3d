// Package sans evaluates small-angle scattering models: absolute I(q)
// cross sections for a small model registry, the Hankel projection into
// autocorrelation space, and neutron material properties (scattering
// length density, penetration depth) from molecular formulas.
package sans

import (
	"math"

	"github.com/usnistgov/correlogram-tools/scene"
)

// Default q-grid parameters. The log step gives 8000 points per decade.
const (
	DefaultQLogStep = 1.25e-4
	DefaultQMax     = 2 * math.Pi
)

// Evaluator implements scene.Evaluator. The zero value uses the default
// q grid.
type Evaluator struct {
	QLogStep float64 // log spacing of the q grid, 0 for the default
	QMax     float64 // upper q cutoff in 1/Angstrom, 0 for the default
}

var _ scene.Evaluator = (*Evaluator)(nil)

// New returns an evaluator with the default q grid.
func New() *Evaluator { return &Evaluator{} }

// Projection returns the normalized Hankel projections G(xi) and G(0) of
// a cross section, with xi in Angstroms:
//
//	G(xi) = 1/(2 pi) * sum_q J0(q xi) q dq I(q)
//
// The dark-field coefficient of a sample of thickness t cm follows as
// mu = -wavelength^2 * (G(xi) - G(0)) with DF = mu * t.
func (e *Evaluator) Projection(iq scene.IqFunc, xi float64) (g, g0 float64) {
	if xi <= 0 {
		// zero autocorrelation length: J0(0) = 1 everywhere
		_, g0 = e.Projection(iq, 1)
		return g0, g0
	}
	q := e.qGrid(xi)
	prev := 2*q[0] - q[1]
	for _, qi := range q {
		w := qi * (qi - prev) * iq(qi)
		g0 += w
		g += w * math.J0(qi*xi)
		prev = qi
	}
	return g / (2 * math.Pi), g0 / (2 * math.Pi)
}

// qGrid builds the log-spaced scattering-vector grid for a projection at
// autocorrelation length xi (Angstroms). The low cutoff scales inversely
// with xi so the integrand's long-wavelength tail is always covered.
func (e *Evaluator) qGrid(xi float64) []float64 {
	step := e.QLogStep
	if step <= 0 {
		step = DefaultQLogStep
	}
	qMax := e.QMax
	if qMax <= 0 {
		qMax = DefaultQMax
	}
	qMin := 0.1 * 2 * math.Pi / (100 * xi)
	if qMin >= qMax {
		qMin = qMax * 1e-4
	}

	n := int((math.Log(qMax) - math.Log(qMin)) / step)
	q := make([]float64, 0, n+1)
	for l := math.Log(qMin); l < math.Log(qMax); l += step {
		q = append(q, math.Exp(l))
	}
	return q
}
