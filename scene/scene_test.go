package scene

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/usnistgov/correlogram-tools/scan"
)

// fakeEvaluator produces a flat cross section and constant projections so
// render output is predictable: mu = -wavelength^2 * (g - g0).
type fakeEvaluator struct {
	g, g0     float64
	pen       float64
	lastModel string
	lastParam map[string]float64
}

func (f *fakeEvaluator) ModelDefaults(name string) (map[string]ParamDefault, error) {
	switch name {
	case "sphere":
		return map[string]ParamDefault{
			"scale":       {Value: 1},
			"background":  {Value: 0},
			"radius":      {Value: 50, Min: 10, Max: 100},
			"sld":         {},
			"sld_solvent": {},
		}, nil
	case "sphere@hardsphere":
		return map[string]ParamDefault{
			"scale":            {Value: 1},
			"background":       {Value: 0},
			"radius":           {Value: 50, Min: 10, Max: 100},
			"volfraction":      {Value: 0.2, Min: 0, Max: 0.74},
			"radius_effective": {Value: 50, Min: 10, Max: 100},
			"sld":              {},
			"sld_solvent":      {},
		}, nil
	}
	return nil, fmt.Errorf("model %q is not in the registry", name)
}

func (f *fakeEvaluator) Intensity(name string, params map[string]float64) (IqFunc, error) {
	f.lastModel = name
	f.lastParam = params
	return func(q float64) float64 { return 1 }, nil
}

func (f *fakeEvaluator) Projection(iq IqFunc, xi float64) (float64, float64) { return f.g, f.g0 }

func (f *fakeEvaluator) SLD(formula string, density, wavelength float64) (float64, error) {
	return 1e-6, nil
}

func (f *fakeEvaluator) PenetrationDepth(terms []MixtureTerm, wavelength float64) (float64, error) {
	return f.pen, nil
}

func (f *fakeEvaluator) LookupComponent(name string) (string, float64, error) {
	if name != "water" {
		return "", 0, fmt.Errorf("%q is not an available component", name)
	}
	return "H2O", 1.0, nil
}

func sphereModel() Model {
	return Model{
		Name: "sphere",
		Parts: []Part{{
			Name: "sphere",
			Parameters: map[string]scan.Series{
				"radius": {Mode: scan.Fixed, Values: []float64{40}},
			},
			Components: map[string]Component{
				"sld":         {Mode: ModeFormula, Value: "SiO2", Density: 2.2},
				"sld_solvent": {Mode: ModeLibrary, Value: "water"},
			},
		}},
	}
}

func testGroups() []Group {
	return []Group{
		{Labels: []int{1}, Binding: Binding{Open: true}},
		{Labels: []int{2}, Binding: Binding{Model: sphereModel()}},
	}
}

func testMask() ([][]int, [][]float64) {
	mask := [][]int{
		{1, 1, 1},
		{1, 2, 1},
		{1, 2, 1},
	}
	thickness := [][]float64{
		{0, 0, 0},
		{0, 0.5, 0},
		{0, 0.5, 0},
	}
	return mask, thickness
}

func TestRenderHitsOnlyMaskedPixels(t *testing.T) {
	mask, thickness := testMask()
	eval := &fakeEvaluator{g: -2, g0: -1, pen: 2}
	s, err := New(mask, thickness, testGroups(), eval, rand.NewSource(1))
	require.NoError(t, err)

	trans, df, err := s.Render(scan.Point{Xi: 100, Moire: 0.8, Z: 80, Wavelength: 4})
	require.NoError(t, err)

	wantTrans := math.Exp(-0.5 / 2)
	wantDF := -16 * (-2 - -1) * 0.5 // wavelength^2 * (g0 - g) * t
	for y := range mask {
		for x := range mask[y] {
			if mask[y][x] == 2 {
				assert.InDelta(t, wantTrans, trans[y][x], 1e-12)
				assert.InDelta(t, wantDF, df[y][x], 1e-12)
			} else {
				assert.Equal(t, 1.0, trans[y][x])
				assert.Equal(t, 0.0, df[y][x])
			}
		}
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	mask, thickness := testMask()
	eval := &fakeEvaluator{g: -2, g0: -1, pen: 2}
	s, err := New(mask, thickness, testGroups(), eval, rand.NewSource(1))
	require.NoError(t, err)

	p := scan.Point{Xi: 100, Moire: 0.8, Z: 80, Wavelength: 4}
	t1, d1, err := s.Render(p)
	require.NoError(t, err)
	t2, d2, err := s.Render(p)
	require.NoError(t, err)
	assert.Equal(t, t1, t2)
	assert.Equal(t, d1, d2)
}

func TestBackgroundForcedToZero(t *testing.T) {
	mask, thickness := testMask()
	m := sphereModel()
	m.Parts[0].Parameters["background"] = scan.Series{Mode: scan.Fixed, Values: []float64{5}}
	groups := []Group{
		{Labels: []int{1}, Binding: Binding{Open: true}},
		{Labels: []int{2}, Binding: Binding{Model: m}},
	}
	eval := &fakeEvaluator{g: -2, g0: -1, pen: 2}
	s, err := New(mask, thickness, groups, eval, rand.NewSource(1))
	require.NoError(t, err)

	_, _, err = s.Render(scan.Point{Xi: 100, Wavelength: 4})
	require.NoError(t, err)
	assert.Equal(t, 0.0, eval.lastParam["background"])
	assert.Equal(t, 40.0, eval.lastParam["radius"])
	assert.Equal(t, 1e-6, eval.lastParam["sld"])
}

func TestUnboundLabelIsConfigError(t *testing.T) {
	mask, thickness := testMask()
	groups := []Group{{Labels: []int{1}, Binding: Binding{Open: true}}}
	_, err := New(mask, thickness, groups, &fakeEvaluator{pen: 1}, rand.NewSource(1))
	require.Error(t, err)
	assert.True(t, scan.IsConfig(err))
}

func TestExactlyOneOpenLabel(t *testing.T) {
	mask, thickness := testMask()
	groups := []Group{
		{Labels: []int{1}, Binding: Binding{Open: true}},
		{Labels: []int{2}, Binding: Binding{Open: true}},
	}
	_, err := New(mask, thickness, groups, &fakeEvaluator{pen: 1}, rand.NewSource(1))
	require.Error(t, err)
	assert.True(t, scan.IsConfig(err))

	groups = []Group{
		{Labels: []int{1, 2}, Binding: Binding{Model: sphereModel()}},
	}
	_, err = New(mask, thickness, groups, &fakeEvaluator{pen: 1}, rand.NewSource(1))
	require.Error(t, err)
	assert.True(t, scan.IsConfig(err))
}

func TestThicknessShapeMismatch(t *testing.T) {
	mask, _ := testMask()
	thickness := [][]float64{{0, 0, 0}}
	_, err := New(mask, thickness, testGroups(), &fakeEvaluator{pen: 1}, rand.NewSource(1))
	require.Error(t, err)
	var shape *ShapeError
	assert.ErrorAs(t, err, &shape)
}

func TestParameterLengthMismatch(t *testing.T) {
	mask := [][]int{{1, 2, 3}}
	thickness := [][]float64{{0, 0.5, 0.5}}
	m := sphereModel()
	m.Parts[0].Parameters["radius"] = scan.Series{Mode: scan.Discrete, Values: []float64{40, 50, 60}}
	groups := []Group{
		{Labels: []int{1}, Binding: Binding{Open: true}},
		{Labels: []int{2, 3}, Binding: Binding{Model: m}},
	}
	_, err := New(mask, thickness, groups, &fakeEvaluator{pen: 1}, rand.NewSource(1))
	require.Error(t, err)
	assert.True(t, scan.IsConfig(err))
}

func TestUndeclaredParameterDrawsOnceAndBroadcasts(t *testing.T) {
	mask := [][]int{{1, 2, 3}}
	thickness := [][]float64{{0, 0.5, 0.5}}
	m := sphereModel()
	delete(m.Parts[0].Parameters, "radius")
	groups := []Group{
		{Labels: []int{1}, Binding: Binding{Open: true}},
		{Labels: []int{2, 3}, Binding: Binding{Model: m}},
	}
	eval := &fakeEvaluator{g: -2, g0: -1, pen: 2}
	s, err := New(mask, thickness, groups, eval, rand.NewSource(7))
	require.NoError(t, err)

	r2 := s.physics[2][0].params["radius"]
	r3 := s.physics[3][0].params["radius"]
	assert.Equal(t, r2, r3)
	assert.GreaterOrEqual(t, r2, 10.0)
	assert.LessOrEqual(t, r2, 100.0)
}

func TestParseModelName(t *testing.T) {
	units, err := ParseModelName("sphere1+sphere2")
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "sphere", units[0].Name)
	assert.Equal(t, "sphere1", units[0].Parts[0].UserName)
	assert.Equal(t, "sphere", units[1].Name)

	units, err = ParseModelName("sphere@hardsphere")
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "sphere@hardsphere", units[0].Name)
	assert.Equal(t, RoleForm, units[0].Parts[0].Role)
	assert.Equal(t, RoleStructure, units[0].Parts[1].Role)

	// * is a synonym for @
	units, err = ParseModelName("sphere1*hardsphere")
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "sphere@hardsphere", units[0].Name)

	for _, bad := range []string{"", "sphere@a@b", "sphere+", "(sphere)"} {
		_, err := ParseModelName(bad)
		assert.Error(t, err, "name %q", bad)
	}
}

func TestPhysicsErrorIsPerPoint(t *testing.T) {
	mask, thickness := testMask()
	m := sphereModel()
	m.Name = "sphere" // registry hit at New time
	groups := []Group{
		{Labels: []int{1}, Binding: Binding{Open: true}},
		{Labels: []int{2}, Binding: Binding{Model: m}},
	}
	eval := &brokenEvaluator{fakeEvaluator{g: -2, g0: -1, pen: 2}}
	s, err := New(mask, thickness, groups, eval, rand.NewSource(1))
	require.NoError(t, err)

	_, _, err = s.Render(scan.Point{Xi: 100, Wavelength: 4})
	require.Error(t, err)
	assert.True(t, IsPhysics(err))
}

type brokenEvaluator struct{ fakeEvaluator }

func (b *brokenEvaluator) Intensity(name string, params map[string]float64) (IqFunc, error) {
	return nil, fmt.Errorf("kernel rejected parameters")
}
