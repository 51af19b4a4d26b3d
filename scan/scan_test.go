package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestRangeGridEndpoints(t *testing.T) {
	s := Series{Mode: Range, Values: []float64{50, 80}, N: 4, Spacing: SpacingLinear}
	got, err := s.Expand()
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 60, 70, 80}, got)

	s = Series{Mode: Range, Values: []float64{1, 100}, N: 3, Spacing: SpacingLog}
	got, err = s.Expand()
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 1.0, got[0])
	assert.Equal(t, 100.0, got[2])
	// geometric spacing: constant ratio between neighbours
	assert.InDelta(t, got[1]/got[0], got[2]/got[1], 1e-12)
}

func TestLogRangeRejectsNonPositiveEndpoints(t *testing.T) {
	s := Series{Mode: Range, Values: []float64{0, 100}, N: 3, Spacing: SpacingLog}
	_, err := s.Expand()
	require.Error(t, err)
	assert.True(t, IsConfig(err))
}

func TestCheckUnits(t *testing.T) {
	assert.NoError(t, CheckUnits("xi", ""))
	assert.NoError(t, CheckUnits("xi", "nm"))
	assert.NoError(t, CheckUnits("wavelength", "Ang"))

	err := CheckUnits("moire", "cm")
	require.Error(t, err)
	assert.True(t, IsConfig(err))
}

func TestSeriesResolvePerROI(t *testing.T) {
	src := rand.NewSource(1)

	got, err := (Series{Mode: Fixed, Values: []float64{3}}).Resolve(4, src)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 3, 3, 3}, got)

	got, err = (Series{Mode: Discrete, Values: []float64{1, 2, 3}}).Resolve(3, src)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, got)

	_, err = (Series{Mode: Discrete, Values: []float64{1, 2}}).Resolve(3, src)
	require.Error(t, err)
	assert.True(t, IsConfig(err))

	got, err = (Series{Mode: RandomSingle, Values: []float64{5, 10}}).Resolve(3, src)
	require.NoError(t, err)
	assert.Equal(t, got[0], got[1])
	assert.Equal(t, got[0], got[2])
	assert.GreaterOrEqual(t, got[0], 5.0)
	assert.LessOrEqual(t, got[0], 10.0)

	got, err = (Series{Mode: Random, Values: []float64{5, 10}}).Resolve(100, src)
	require.NoError(t, err)
	for _, v := range got {
		assert.GreaterOrEqual(t, v, 5.0)
		assert.LessOrEqual(t, v, 10.0)
	}

	_, err = (Series{Mode: Random, Values: []float64{5, 10}}).Resolve(2, nil)
	require.Error(t, err)
}

func TestZScan(t *testing.T) {
	req := Request{
		Mode:       ZScan,
		Xi:         Series{Mode: Calculated},
		Moire:      Series{Mode: Fixed, Values: []float64{0.8}},
		Z:          Series{Mode: Range, Values: []float64{50, 80}, N: 4, Spacing: SpacingLinear},
		Wavelength: Series{Mode: Fixed, Values: []float64{4}},
	}
	pts, warns, err := Resolve(req)
	require.NoError(t, err)
	assert.Empty(t, warns)
	require.Len(t, pts, 4)

	wantZ := []float64{50, 60, 70, 80}
	wantXi := []float64{25, 30, 35, 40}
	for i, p := range pts {
		assert.Equal(t, wantZ[i], p.Z)
		assert.InDelta(t, wantXi[i], p.Xi, 1e-12)
		assert.Equal(t, 0.8, p.Moire)
		assert.Equal(t, 4.0, p.Wavelength)
		assert.True(t, p.Consistent(1e-12))
	}
}

func TestXiScanMidpointSelection(t *testing.T) {
	req := Request{
		Mode:       XiScan,
		Xi:         Series{Mode: Discrete, Values: []float64{50, 100, 150, 200}},
		Moire:      Series{Mode: Discrete, Values: []float64{0.2, 0.4, 1.0}},
		Z:          Series{Mode: Continuous, Values: []float64{30, 300}},
		Wavelength: Series{Mode: Fixed, Values: []float64{4}},
	}
	pts, warns, err := Resolve(req)
	require.NoError(t, err)
	assert.Empty(t, warns)
	require.Len(t, pts, 4)

	wantMoire := []float64{1.0, 0.4, 0.4, 0.4}
	wantZ := []float64{125, 100, 150, 200}
	for i, p := range pts {
		assert.Equal(t, wantMoire[i], p.Moire, "xi=%g", p.Xi)
		assert.InDelta(t, wantZ[i], p.Z, 1e-12, "xi=%g", p.Xi)
		assert.True(t, p.Consistent(1e-12))
	}
}

func TestXiScanInfeasibleProducesWarning(t *testing.T) {
	req := Request{
		Mode:       XiScan,
		Xi:         Series{Mode: Discrete, Values: []float64{50, 5000}},
		Moire:      Series{Mode: Discrete, Values: []float64{0.2, 0.4, 1.0}},
		Z:          Series{Mode: Continuous, Values: []float64{30, 300}},
		Wavelength: Series{Mode: Fixed, Values: []float64{4}},
	}
	pts, warns, err := Resolve(req)
	require.NoError(t, err)
	require.Len(t, pts, 1)
	require.Len(t, warns, 1)
	assert.Equal(t, 5000.0, warns[0].Xi)
	assert.Equal(t, "infeasible", warns[0].Reason)
	// the closest rejected candidate is the smallest moire period
	assert.Equal(t, 0.2, warns[0].Point.Moire)
	assert.NotEmpty(t, warns[0].String())
}

func TestXiScanContinuousMoire(t *testing.T) {
	req := Request{
		Mode:       XiScan,
		Xi:         Series{Mode: Discrete, Values: []float64{50}},
		Moire:      Series{Mode: Continuous, Values: []float64{0.1, 2.0}},
		Z:          Series{Mode: Discrete, Values: []float64{125}},
		Wavelength: Series{Mode: Fixed, Values: []float64{4}},
	}
	pts, warns, err := Resolve(req)
	require.NoError(t, err)
	assert.Empty(t, warns)
	require.Len(t, pts, 1)
	assert.InDelta(t, 1.0, pts[0].Moire, 1e-12)
	assert.Equal(t, 125.0, pts[0].Z)
}

func TestXiScanBadCombination(t *testing.T) {
	req := Request{
		Mode:       XiScan,
		Xi:         Series{Mode: Discrete, Values: []float64{50}},
		Moire:      Series{Mode: Continuous, Values: []float64{0.1, 2.0}},
		Z:          Series{Mode: Continuous, Values: []float64{30, 300}},
		Wavelength: Series{Mode: Fixed, Values: []float64{4}},
	}
	_, _, err := Resolve(req)
	require.Error(t, err)
	assert.True(t, IsConfig(err))
}

func TestMultiScanNesting(t *testing.T) {
	req := Request{
		Mode:       MultiScan,
		Xi:         Series{Mode: Calculated},
		Moire:      Series{Mode: Discrete, Values: []float64{0.4, 0.8}},
		Z:          Series{Mode: Discrete, Values: []float64{50, 100}},
		Wavelength: Series{Mode: Discrete, Values: []float64{4, 6}},
	}
	pts, warns, err := Resolve(req)
	require.NoError(t, err)
	assert.Empty(t, warns)
	require.Len(t, pts, 8)

	// wavelength outermost, z next, moire innermost
	assert.Equal(t, Point{Xi: XiFor(0.4, 50, 4), Moire: 0.4, Z: 50, Wavelength: 4}, pts[0])
	assert.Equal(t, Point{Xi: XiFor(0.8, 50, 4), Moire: 0.8, Z: 50, Wavelength: 4}, pts[1])
	assert.Equal(t, Point{Xi: XiFor(0.4, 100, 4), Moire: 0.4, Z: 100, Wavelength: 4}, pts[2])
	assert.Equal(t, 6.0, pts[4].Wavelength)

	// re-running gives the same order
	again, _, err := Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, pts, again)
}

func TestCustomScan(t *testing.T) {
	req := Request{
		Mode:       CustomScan,
		Xi:         Series{Mode: Calculated},
		Moire:      Series{Mode: File, Values: []float64{0.4, 0.8, 1.0}},
		Z:          Series{Mode: File, Values: []float64{50, 100, 150}},
		Wavelength: Series{Mode: File, Values: []float64{4}},
	}
	pts, warns, err := Resolve(req)
	require.NoError(t, err)
	assert.Empty(t, warns)
	require.Len(t, pts, 3)
	for i, p := range pts {
		assert.Equal(t, 4.0, p.Wavelength, "row %d", i)
		assert.True(t, p.Consistent(1e-12))
	}
	assert.Equal(t, 0.8, pts[1].Moire)
	assert.Equal(t, 100.0, pts[1].Z)
}

func TestCustomScanRowMismatch(t *testing.T) {
	req := Request{
		Mode:       CustomScan,
		Xi:         Series{Mode: Calculated},
		Moire:      Series{Mode: File, Values: []float64{0.4, 0.8}},
		Z:          Series{Mode: File, Values: []float64{50, 100, 150}},
		Wavelength: Series{Mode: File, Values: []float64{4}},
	}
	_, _, err := Resolve(req)
	require.Error(t, err)
	assert.True(t, IsConfig(err))
}

func TestResolveAllEmptyIsConfigError(t *testing.T) {
	_, _, err := ResolveAll(nil)
	require.Error(t, err)
	assert.True(t, IsConfig(err))

	// every combination infeasible: still a ConfigError
	req := Request{
		Mode:       XiScan,
		Xi:         Series{Mode: Discrete, Values: []float64{1e9}},
		Moire:      Series{Mode: Discrete, Values: []float64{0.2}},
		Z:          Series{Mode: Continuous, Values: []float64{30, 300}},
		Wavelength: Series{Mode: Fixed, Values: []float64{4}},
	}
	_, warns, err := ResolveAll([]Request{req})
	require.Error(t, err)
	assert.True(t, IsConfig(err))
	assert.Len(t, warns, 1)
}

func TestResolveRejectsBadUnits(t *testing.T) {
	req := Request{
		Mode:       ZScan,
		Xi:         Series{Mode: Calculated},
		Moire:      Series{Mode: Fixed, Values: []float64{0.8}, Units: "cm"},
		Z:          Series{Mode: Range, Values: []float64{50, 80}, N: 4},
		Wavelength: Series{Mode: Fixed, Values: []float64{4}},
	}
	_, _, err := Resolve(req)
	require.Error(t, err)
	assert.True(t, IsConfig(err))
}
