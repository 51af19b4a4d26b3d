package scene

import (
	"math"
	"strings"

	"golang.org/x/exp/rand"

	"github.com/usnistgov/correlogram-tools/scan"
)

// Group binds a set of mask labels to one physics declaration. Model
// parameters resolve once per group: single values broadcast to every
// label, lists must match the label count.
type Group struct {
	Labels  []int
	Binding Binding
}

// resolvedUnit is one additive term of a ROI's model with its numeric
// parameters fixed. The sld-type parameters stay symbolic (formula and
// density) because their values depend on the measurement wavelength.
type resolvedUnit struct {
	name   string
	params map[string]float64
	slds   map[string]material
}

type material struct {
	formula string
	density float64
}

// Scene holds everything needed to render ideal transmission and
// dark-field maps for a measurement point. Random parameter draws happen
// once, in New; Render is deterministic after that.
type Scene struct {
	mask      [][]int
	thickness [][]float64 // cm
	eval      Evaluator
	open      map[int]bool
	physics   map[int][]resolvedUnit
	modelName map[int]string
}

// New validates the mask, thickness and bindings and resolves every
// group's model parameters. Unbound mask labels, a missing or duplicated
// open label, shape mismatches and malformed models are all fatal here,
// before any simulation starts.
func New(mask [][]int, thickness [][]float64, groups []Group, eval Evaluator, src rand.Source) (*Scene, error) {
	if len(mask) == 0 || len(mask[0]) == 0 {
		return nil, shapef("empty ROI mask")
	}
	if len(thickness) != len(mask) || len(thickness[0]) != len(mask[0]) {
		return nil, shapef("thickness map is %dx%d but the ROI mask is %dx%d",
			len(thickness), len(thickness[0]), len(mask), len(mask[0]))
	}

	s := &Scene{
		mask:      mask,
		thickness: thickness,
		eval:      eval,
		open:      map[int]bool{},
		physics:   map[int][]resolvedUnit{},
		modelName: map[int]string{},
	}

	bound := map[int]bool{}
	for _, g := range groups {
		for _, label := range g.Labels {
			if bound[label] {
				return nil, scan.Configf("ROI label %d is bound by more than one model entry", label)
			}
			bound[label] = true
		}
		if g.Binding.Open {
			for _, label := range g.Labels {
				s.open[label] = true
			}
			continue
		}
		perLabel, err := resolveGroup(eval, g.Binding.Model, len(g.Labels), src)
		if err != nil {
			return nil, err
		}
		for i, label := range g.Labels {
			s.physics[label] = perLabel[i]
			s.modelName[label] = g.Binding.Model.Name
		}
	}

	if len(s.open) != 1 {
		return nil, scan.Configf("exactly one ROI label must be bound as the open-beam region, got %d", len(s.open))
	}
	for _, row := range mask {
		for _, label := range row {
			if !bound[label] {
				return nil, scan.Configf("ROI mask contains label %d with no model binding", label)
			}
		}
	}
	return s, nil
}

// Shape returns the mask dimensions as (height, width).
func (s *Scene) Shape() (int, int) { return len(s.mask), len(s.mask[0]) }

// Render produces the ideal transmission and dark-field maps for one
// measurement point. Open pixels carry transmission 1 and dark field 0.
// Evaluator failures come back as *PhysicsError, fatal for this point
// only.
func (s *Scene) Render(p scan.Point) (trans, df [][]float64, err error) {
	h, w := s.Shape()
	trans = fill(h, w, 1)
	df = fill(h, w, 0)

	xiAng := p.Xi * 10 // nm -> Angstrom
	for label, units := range s.physics {
		pen, mu, err := s.evaluate(label, units, xiAng, p.Wavelength)
		if err != nil {
			return nil, nil, err
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if s.mask[y][x] != label {
					continue
				}
				t := s.thickness[y][x]
				trans[y][x] = math.Exp(-t / pen)
				df[y][x] = mu * t
			}
		}
	}
	return trans, df, nil
}

// evaluate computes the penetration depth (cm) and the dark-field
// coefficient mu (1/cm) of one ROI at the given autocorrelation length and
// wavelength, both in Angstroms.
func (s *Scene) evaluate(label int, units []resolvedUnit, xiAng, wavelength float64) (pen, mu float64, err error) {
	physErr := func(e error) (float64, float64, error) {
		return 0, 0, &PhysicsError{Label: label, Model: s.modelName[label], Err: e}
	}

	var terms []MixtureTerm
	var solvent *material
	var gSum, g0Sum float64
	for _, u := range units {
		params := map[string]float64{}
		for k, v := range u.params {
			params[k] = v
		}
		for name, m := range u.slds {
			sld, err := s.eval.SLD(m.formula, m.density, wavelength)
			if err != nil {
				return physErr(err)
			}
			params[name] = sld
		}
		iq, err := s.eval.Intensity(u.name, params)
		if err != nil {
			return physErr(err)
		}
		g, g0 := s.eval.Projection(iq, xiAng)
		gSum += g
		g0Sum += g0

		vf := u.params["scale"]
		if phi, ok := u.params["volfraction"]; ok {
			vf *= phi
		}
		for name, m := range u.slds {
			if isSolvent(name) {
				m := m
				solvent = &m
				continue
			}
			terms = append(terms, MixtureTerm{Formula: m.formula, Density: m.density, VolumeFraction: vf})
		}
	}

	if solvent != nil {
		used := 0.0
		for _, t := range terms {
			used += t.VolumeFraction
		}
		if used < 1 {
			terms = append(terms, MixtureTerm{Formula: solvent.formula, Density: solvent.density, VolumeFraction: 1 - used})
		}
	}
	// A model with no material components (pure scattering-law models)
	// scatters without attenuating.
	pen = math.Inf(1)
	if len(terms) > 0 {
		pen, err = s.eval.PenetrationDepth(terms, wavelength)
		if err != nil {
			return physErr(err)
		}
	}

	mu = -wavelength * wavelength * (gSum - g0Sum)
	return pen, mu, nil
}

// resolveGroup fixes every parameter of a group's model, one value per
// label. The background term is forced to zero regardless of what the
// experiment file declares, the scale term defaults to the registry value,
// and any other undeclared parameter draws once from its registry bounds
// and broadcasts.
func resolveGroup(eval Evaluator, m Model, n int, src rand.Source) ([][]resolvedUnit, error) {
	units, err := ParseModelName(m.Name)
	if err != nil {
		return nil, err
	}

	partByName := map[string]Part{}
	for _, p := range m.Parts {
		partByName[p.Name] = p
	}

	perLabel := make([][]resolvedUnit, n)
	for _, u := range units {
		defaults, err := eval.ModelDefaults(u.Name)
		if err != nil {
			return nil, scan.Configf("model %q: %v", m.Name, err)
		}

		values := map[string][]float64{}
		slds := map[string]material{}
		for name, d := range defaults {
			if isSLD(name) {
				mat, err := resolveComponent(eval, u, partByName, name)
				if err != nil {
					return nil, scan.Configf("model %q: %v", m.Name, err)
				}
				slds[name] = mat
				continue
			}
			if name == "background" {
				values[name] = make([]float64, n)
				continue
			}
			series, declared := declaredSeries(u, partByName, name)
			if !declared {
				if name == "scale" {
					series = scan.Series{Mode: scan.Fixed, Values: []float64{d.Value}}
				} else {
					series = scan.Series{Mode: scan.RandomSingle, Values: []float64{d.Min, d.Max}}
				}
			}
			vals, err := series.Resolve(n, src)
			if err != nil {
				return nil, scan.Configf("model %q parameter %q: %v", m.Name, name, err)
			}
			values[name] = vals
		}

		for i := 0; i < n; i++ {
			params := map[string]float64{}
			for name, vals := range values {
				params[name] = vals[i]
			}
			perLabel[i] = append(perLabel[i], resolvedUnit{name: u.Name, params: params, slds: slds})
		}
	}
	return perLabel, nil
}

// declaredSeries finds a parameter declaration among the unit's parts, in
// part order.
func declaredSeries(u Unit, parts map[string]Part, name string) (scan.Series, bool) {
	for _, ref := range u.Parts {
		p, ok := parts[ref.UserName]
		if !ok {
			continue
		}
		if s, ok := p.Parameters[name]; ok {
			return s, true
		}
	}
	return scan.Series{}, false
}

// resolveComponent finds the material behind an sld-type parameter among
// the unit's parts and resolves library references.
func resolveComponent(eval Evaluator, u Unit, parts map[string]Part, name string) (material, error) {
	for _, ref := range u.Parts {
		p, ok := parts[ref.UserName]
		if !ok {
			continue
		}
		c, ok := p.Components[name]
		if !ok {
			continue
		}
		switch c.Mode {
		case ModeFormula:
			if c.Value == "" {
				return material{}, scan.Configf("part %q component %q has no formula", ref.UserName, name)
			}
			return material{formula: c.Value, density: c.Density}, nil
		case ModeLibrary:
			formula, density, err := eval.LookupComponent(c.Value)
			if err != nil {
				return material{}, err
			}
			return material{formula: formula, density: density}, nil
		}
		return material{}, scan.Configf("part %q component %q has unaccepted mode %q (accepted: %q, %q)",
			ref.UserName, name, c.Mode, ModeFormula, ModeLibrary)
	}
	return material{}, scan.Configf("missing sample component for parameter %q", name)
}

func isSLD(name string) bool     { return strings.Contains(name, "sld") }
func isSolvent(name string) bool { return strings.Contains(name, "solvent") }

func fill(h, w int, v float64) [][]float64 {
	out := make([][]float64, h)
	for y := range out {
		row := make([]float64, w)
		for x := range row {
			row[x] = v
		}
		out[y] = row
	}
	return out
}
