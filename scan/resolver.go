package scan

import "math"

// Scan mode tags accepted in the measurements section.
const (
	XiScan         = "xi-scan"
	ZScan          = "z-scan"
	WavelengthScan = "wavelength-scan"
	MoireScan      = "moire-scan"
	MultiScan      = "multi-scan"
	CustomScan     = "custom-scan"
)

// Request is one declared scan: the mode tag plus the four parameter
// series from the experiment file.
type Request struct {
	Mode       string
	Xi         Series
	Moire      Series
	Z          Series
	Wavelength Series
}

func (r Request) checkUnits() error {
	checks := []struct {
		keyword string
		units   string
	}{
		{"xi", r.Xi.Units},
		{"moire", r.Moire.Units},
		{"z", r.Z.Units},
		{"wavelength", r.Wavelength.Units},
	}
	for _, c := range checks {
		if err := CheckUnits(c.keyword, c.units); err != nil {
			return err
		}
	}
	return nil
}

// Resolve expands a single scan request into measurement points. Scan
// combinations that cannot satisfy declared bounds are dropped and
// reported as warnings; specification problems are ConfigErrors.
func Resolve(req Request) ([]Point, []Warning, error) {
	if err := req.checkUnits(); err != nil {
		return nil, nil, err
	}
	switch req.Mode {
	case XiScan:
		return resolveXiScan(req)
	case ZScan:
		pts, err := resolveSingleScan(req, "z")
		return pts, nil, err
	case WavelengthScan:
		pts, err := resolveSingleScan(req, "wavelength")
		return pts, nil, err
	case MoireScan:
		pts, err := resolveSingleScan(req, "moire")
		return pts, nil, err
	case MultiScan:
		pts, err := resolveMultiScan(req)
		return pts, nil, err
	case CustomScan:
		pts, err := resolveCustomScan(req)
		return pts, nil, err
	}
	return nil, nil, configf("unaccepted measurement mode %q; accepted modes are "+
		"'xi-scan', 'z-scan', 'wavelength-scan', 'moire-scan', 'multi-scan' and 'custom-scan'", req.Mode)
}

// ResolveAll expands every request in order and concatenates the results.
// The concatenation order is the file order, and within a request the
// enumeration order of its mode; nothing is re-sorted, so summary output
// is reproducible. An entirely empty result is a ConfigError rather than
// silently empty output.
func ResolveAll(reqs []Request) ([]Point, []Warning, error) {
	if len(reqs) == 0 {
		return nil, nil, configf("no measurements defined")
	}
	var (
		points   []Point
		warnings []Warning
	)
	for _, req := range reqs {
		pts, warns, err := Resolve(req)
		if err != nil {
			return nil, nil, err
		}
		points = append(points, pts...)
		warnings = append(warnings, warns...)
	}
	if len(points) == 0 {
		return nil, warnings, configf("all requested scan combinations are infeasible; nothing to simulate")
	}
	return points, warnings, nil
}

// resolveXiScan drives the scan by requested autocorrelation lengths and
// solves the physical relation for whichever of moire/z was declared
// continuous. Among feasible solutions for a given xi it picks the one
// closest to the midpoint of the continuous interval, ties broken by
// input order.
func resolveXiScan(req Request) ([]Point, []Warning, error) {
	if req.Xi.Mode != Range && req.Xi.Mode != Discrete {
		return nil, nil, configf("the xi mode in an xi-scan must be 'range' or 'discrete', got %q", req.Xi.Mode)
	}
	xis, err := req.Xi.Expand()
	if err != nil {
		return nil, nil, err
	}
	if req.Wavelength.Mode != Fixed || len(req.Wavelength.Values) == 0 {
		return nil, nil, configf("the wavelength mode in an xi-scan must be 'fixed'")
	}
	wl := req.Wavelength.Values[0]

	moireGiven := req.Moire.Mode == Fixed || req.Moire.Mode == Discrete
	zGiven := req.Z.Mode == Fixed || req.Z.Mode == Discrete

	var (
		grid    []float64
		lo, hi  float64
		solve   func(xi, given float64) float64
		mkPoint func(xi, given, free float64) Point
	)
	switch {
	case moireGiven && req.Z.Mode == Continuous:
		if grid, err = req.Moire.Expand(); err != nil {
			return nil, nil, err
		}
		if lo, hi, err = interval(req.Z, "z"); err != nil {
			return nil, nil, err
		}
		solve = func(xi, m float64) float64 { return ZFor(xi, m, wl) }
		mkPoint = func(xi, m, z float64) Point { return Point{Xi: xi, Moire: m, Z: z, Wavelength: wl} }
	case req.Moire.Mode == Continuous && zGiven:
		if grid, err = req.Z.Expand(); err != nil {
			return nil, nil, err
		}
		if lo, hi, err = interval(req.Moire, "moire"); err != nil {
			return nil, nil, err
		}
		solve = func(xi, z float64) float64 { return MoireFor(xi, z, wl) }
		mkPoint = func(xi, z, m float64) Point { return Point{Xi: xi, Moire: m, Z: z, Wavelength: wl} }
	default:
		return nil, nil, configf("an xi-scan needs exactly one of moire/z fixed or discrete and the other continuous "+
			"(got moire %s, z %s)", string(req.Moire.Mode), string(req.Z.Mode))
	}

	mid := (lo + hi) / 2
	var (
		points   []Point
		warnings []Warning
	)
	for _, xi := range xis {
		bestIdx := -1
		bestDist := math.Inf(1)
		nearIdx := 0
		nearDist := math.Inf(1)
		for i, g := range grid {
			v := solve(xi, g)
			if v >= lo && v <= hi {
				if d := math.Abs(v - mid); d < bestDist {
					bestDist, bestIdx = d, i
				}
				continue
			}
			// distance to the interval, for the warning report
			d := math.Max(lo-v, v-hi)
			if d < nearDist {
				nearDist, nearIdx = d, i
			}
		}
		if bestIdx < 0 {
			warnings = append(warnings, Warning{
				Reason: "infeasible",
				Xi:     xi,
				Point:  mkPoint(xi, grid[nearIdx], solve(xi, grid[nearIdx])),
			})
			continue
		}
		points = append(points, mkPoint(xi, grid[bestIdx], solve(xi, grid[bestIdx])))
	}
	return points, warnings, nil
}

// resolveSingleScan handles z-scan, wavelength-scan and moire-scan: the
// named parameter is scanned, the remaining two are fixed, and xi is
// calculated per value. No infeasibility is possible in this direction.
func resolveSingleScan(req Request, scanned string) ([]Point, error) {
	if req.Xi.Mode != Calculated {
		return nil, configf("the xi mode in a %s-scan must be 'calculated', got %q", scanned, req.Xi.Mode)
	}
	series := map[string]Series{"moire": req.Moire, "z": req.Z, "wavelength": req.Wavelength}
	driving := series[scanned]
	if driving.Mode != Range && driving.Mode != Discrete {
		return nil, configf("the %s mode in a %s-scan must be 'range' or 'discrete', got %q", scanned, scanned, driving.Mode)
	}
	values, err := driving.Expand()
	if err != nil {
		return nil, err
	}
	fixed := map[string]float64{}
	for name, s := range series {
		if name == scanned {
			continue
		}
		if s.Mode != Fixed || len(s.Values) == 0 {
			return nil, configf("the %s mode in a %s-scan must be 'fixed', got %q", name, scanned, s.Mode)
		}
		fixed[name] = s.Values[0]
	}

	points := make([]Point, 0, len(values))
	for _, v := range values {
		p := Point{Moire: fixed["moire"], Z: fixed["z"], Wavelength: fixed["wavelength"]}
		switch scanned {
		case "moire":
			p.Moire = v
		case "z":
			p.Z = v
		case "wavelength":
			p.Wavelength = v
		}
		p.Xi = XiFor(p.Moire, p.Z, p.Wavelength)
		points = append(points, p)
	}
	return points, nil
}

// resolveMultiScan enumerates the full cross product of the scanned
// parameters with wavelength outermost, then z, then moire innermost.
// This nesting is part of the contract: summary output depends on it.
func resolveMultiScan(req Request) ([]Point, error) {
	if req.Xi.Mode != Calculated {
		return nil, configf("the xi mode in a multi-scan must be 'calculated', got %q", req.Xi.Mode)
	}
	expand := func(name string, s Series) ([]float64, error) {
		switch s.Mode {
		case Fixed, Discrete, Range:
			return s.Expand()
		}
		return nil, configf("the %s mode in a multi-scan must be 'fixed', 'discrete' or 'range', got %q", name, s.Mode)
	}
	wls, err := expand("wavelength", req.Wavelength)
	if err != nil {
		return nil, err
	}
	zs, err := expand("z", req.Z)
	if err != nil {
		return nil, err
	}
	moires, err := expand("moire", req.Moire)
	if err != nil {
		return nil, err
	}

	points := make([]Point, 0, len(wls)*len(zs)*len(moires))
	for _, wl := range wls {
		for _, z := range zs {
			for _, m := range moires {
				points = append(points, Point{
					Xi:         XiFor(m, z, wl),
					Moire:      m,
					Z:          z,
					Wavelength: wl,
				})
			}
		}
	}
	return points, nil
}

// resolveCustomScan pairs the rows of three file-mode series: one point
// per row, no cross product. Row counts must agree (a single-row series
// broadcasts).
func resolveCustomScan(req Request) ([]Point, error) {
	if req.Xi.Mode != Calculated {
		return nil, configf("the xi mode in a custom-scan must be 'calculated', got %q", req.Xi.Mode)
	}
	series := map[string]Series{"moire": req.Moire, "z": req.Z, "wavelength": req.Wavelength}
	rows := map[string][]float64{}
	n := 0
	for name, s := range series {
		if s.Mode != File {
			return nil, configf("the %s mode in a custom-scan must be 'file', got %q", name, s.Mode)
		}
		vals, err := s.Expand()
		if err != nil {
			return nil, err
		}
		rows[name] = vals
		if len(vals) > n {
			n = len(vals)
		}
	}
	for name, vals := range rows {
		if len(vals) != n && len(vals) != 1 {
			return nil, configf("custom-scan row counts do not match: %s has %d rows, want %d (or 1)", name, len(vals), n)
		}
	}

	at := func(vals []float64, i int) float64 {
		if len(vals) == 1 {
			return vals[0]
		}
		return vals[i]
	}
	points := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		m := at(rows["moire"], i)
		z := at(rows["z"], i)
		wl := at(rows["wavelength"], i)
		points = append(points, Point{Xi: XiFor(m, z, wl), Moire: m, Z: z, Wavelength: wl})
	}
	return points, nil
}

func interval(s Series, name string) (lo, hi float64, err error) {
	if len(s.Values) < 2 {
		return 0, 0, configf("continuous %s series needs a [min, max] interval", name)
	}
	lo, hi = s.Values[0], s.Values[1]
	for _, v := range s.Values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi, nil
}
