package sans

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usnistgov/correlogram-tools/scene"
)

func TestParseFormula(t *testing.T) {
	counts, err := ParseFormula("H2O")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"H": 2, "O": 1}, counts)

	counts, err = ParseFormula("Al2O3")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Al": 2, "O": 3}, counts)

	counts, err = ParseFormula("Si0.5C0.5")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, counts["Si"], 1e-12)

	for _, bad := range []string{"", "h2O", "Xx2", "H-1", "H0"} {
		_, err := ParseFormula(bad)
		assert.Error(t, err, "formula %q", bad)
	}
}

func TestWaterSLD(t *testing.T) {
	e := New()
	sld, err := e.SLD("H2O", 0.997, 4)
	require.NoError(t, err)
	assert.InDelta(t, -0.56e-6, sld, 0.02e-6)

	heavy, err := e.SLD("D2O", 1.107, 4)
	require.NoError(t, err)
	assert.InDelta(t, 6.37e-6, heavy, 0.1e-6)

	_, err = e.SLD("H2O", 0, 4)
	assert.Error(t, err)
}

func TestComponentLibrary(t *testing.T) {
	e := New()
	formula, density, err := e.LookupComponent("silica")
	require.NoError(t, err)
	assert.Equal(t, "SiO2", formula)
	assert.Equal(t, 2.2, density)

	_, _, err = e.LookupComponent("unobtainium")
	assert.Error(t, err)
}

func TestPenetrationDepth(t *testing.T) {
	e := New()
	terms := []scene.MixtureTerm{{Formula: "V", Density: 6.0, VolumeFraction: 1}}
	pen4, err := e.PenetrationDepth(terms, 4)
	require.NoError(t, err)
	assert.Greater(t, pen4, 0.0)

	// absorption grows with wavelength, so penetration shrinks
	pen8, err := e.PenetrationDepth(terms, 8)
	require.NoError(t, err)
	assert.Less(t, pen8, pen4)

	_, err = e.PenetrationDepth(nil, 4)
	assert.Error(t, err)
}

func TestSphereForwardScattering(t *testing.T) {
	params := map[string]float64{
		"scale":       0.1,
		"background":  0,
		"radius":      100,
		"sld":         4e-6,
		"sld_solvent": 1e-6,
	}
	iq, err := sphereIq(params)
	require.NoError(t, err)

	volume := 4 * math.Pi / 3 * 1e6
	drho := 3e-6
	want := 0.1 / volume * 1e8 * (volume * drho) * (volume * drho)
	assert.InDelta(t, want, iq(1e-9), want*1e-6)

	// amplitude decays away from q=0
	assert.Less(t, iq(0.05), iq(1e-9))
}

func TestPercusYevickZeroQ(t *testing.T) {
	phi := 0.2
	sq, err := hardsphereSq(map[string]float64{"volfraction": phi, "radius_effective": 50})
	require.NoError(t, err)

	want := math.Pow(1-phi, 4) / math.Pow(1+2*phi, 2)
	assert.InDelta(t, want, sq(1e-9), 1e-6)

	// S(q) -> 1 at large q
	assert.InDelta(t, 1.0, sq(10), 0.05)

	// zero volume fraction is an ideal gas
	ideal, err := hardsphereSq(map[string]float64{"volfraction": 0, "radius_effective": 50})
	require.NoError(t, err)
	assert.Equal(t, 1.0, ideal(0.01))
}

func TestProjectionZeroXiLimit(t *testing.T) {
	e := New()
	params := map[string]float64{
		"scale": 1, "radius": 1000, "sld": 4e-6, "sld_solvent": 0,
	}
	iq, err := e.Intensity("sphere", params)
	require.NoError(t, err)

	// all the scattering weight sits at q*xi << 1, so G(xi) ~ G(0)
	g, g0 := e.Projection(iq, 1)
	assert.InDelta(t, g0, g, math.Abs(g0)*1e-2)

	// the exact xi=0 limit
	g, g0 = e.Projection(iq, 0)
	assert.Equal(t, g0, g)

	// at xi far beyond the particle size the correlation decays
	g, g0 = e.Projection(iq, 1e5)
	assert.Less(t, math.Abs(g), math.Abs(g0))
}

func TestProjectionMonotoneDecay(t *testing.T) {
	e := &Evaluator{QLogStep: 1e-3} // coarser grid keeps the test quick
	params := map[string]float64{
		"scale": 0.1, "radius": 500, "sld": 4e-6, "sld_solvent": 1e-6,
	}
	iq, err := e.Intensity("sphere", params)
	require.NoError(t, err)

	_, g0 := e.Projection(iq, 500)
	prev := g0
	for _, xi := range []float64{200, 500, 1000, 3000} {
		g, _ := e.Projection(iq, xi)
		assert.LessOrEqual(t, g, prev+math.Abs(g0)*1e-6, "xi=%g", xi)
		prev = g
	}
}

func TestModelDefaults(t *testing.T) {
	e := New()
	table, err := e.ModelDefaults("sphere")
	require.NoError(t, err)
	assert.Contains(t, table, "radius")
	assert.Contains(t, table, "sld_solvent")

	table, err = e.ModelDefaults("sphere@hardsphere")
	require.NoError(t, err)
	assert.Contains(t, table, "radius")
	assert.Contains(t, table, "volfraction")

	_, err = e.ModelDefaults("cylinder")
	assert.Error(t, err)

	_, err = e.ModelDefaults("hardsphere@sphere")
	assert.Error(t, err)
}

func TestPowerLawIntensity(t *testing.T) {
	e := New()
	iq, err := e.Intensity("power_law", map[string]float64{"scale": 2, "power": 4, "background": 0.1})
	require.NoError(t, err)
	assert.InDelta(t, 2*math.Pow(0.01, -4)+0.1, iq(0.01), 1e-6)
}
