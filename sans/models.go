package sans

import (
	"fmt"
	"math"
	"strings"

	"github.com/usnistgov/correlogram-tools/scene"
)

// modelDefaults holds the parameter tables of the models the registry
// knows. Minima and maxima bound the random draws for parameters the
// experiment file leaves unspecified.
var modelDefaults = map[string]map[string]scene.ParamDefault{
	"sphere": {
		"scale":      {Value: 1, Min: 0, Max: 1},
		"background": {Value: 0, Min: 0, Max: 0},
		"radius":     {Value: 500, Min: 10, Max: 5000},
		// sld values come from the sample components, not from draws
		"sld":         {},
		"sld_solvent": {},
	},
	"power_law": {
		"scale":      {Value: 1, Min: 0, Max: 1},
		"background": {Value: 0, Min: 0, Max: 0},
		"power":      {Value: 4, Min: 1, Max: 6},
	},
	"hardsphere": {
		"scale":            {Value: 1, Min: 0, Max: 1},
		"background":       {Value: 0, Min: 0, Max: 0},
		"radius_effective": {Value: 500, Min: 10, Max: 5000},
		"volfraction":      {Value: 0.2, Min: 0, Max: 0.74},
	},
}

// ModelDefaults returns the parameter table of a canonical model name.
// Combined "form@structure" names return the merged table of both parts.
func (e *Evaluator) ModelDefaults(name string) (map[string]scene.ParamDefault, error) {
	if form, structure, ok := strings.Cut(name, "@"); ok {
		ft, err := e.ModelDefaults(form)
		if err != nil {
			return nil, err
		}
		st, err := e.ModelDefaults(structure)
		if err != nil {
			return nil, err
		}
		if !isStructureFactor(structure) || isStructureFactor(form) {
			return nil, fmt.Errorf("combined model %q must be form_factor@structure_factor", name)
		}
		merged := map[string]scene.ParamDefault{}
		for k, v := range st {
			merged[k] = v
		}
		for k, v := range ft {
			merged[k] = v
		}
		return merged, nil
	}
	table, ok := modelDefaults[name]
	if !ok {
		return nil, fmt.Errorf("model %q is not an available model", name)
	}
	out := map[string]scene.ParamDefault{}
	for k, v := range table {
		out[k] = v
	}
	return out, nil
}

func isStructureFactor(name string) bool { return name == "hardsphere" }

// Intensity binds resolved parameters to a model and returns its absolute
// cross section in 1/cm with q in 1/Angstrom. For combined models the
// structure factor multiplies the form factor.
func (e *Evaluator) Intensity(name string, params map[string]float64) (scene.IqFunc, error) {
	if form, structure, ok := strings.Cut(name, "@"); ok {
		p, err := formFactor(form, params)
		if err != nil {
			return nil, err
		}
		s, err := structureFactor(structure, params)
		if err != nil {
			return nil, err
		}
		background := params["background"]
		return func(q float64) float64 { return p(q)*s(q) + background }, nil
	}
	p, err := formFactor(name, params)
	if err != nil {
		return nil, err
	}
	background := params["background"]
	return func(q float64) float64 { return p(q) + background }, nil
}

// formFactor returns the background-free P(q) of a form-factor model.
func formFactor(name string, params map[string]float64) (scene.IqFunc, error) {
	switch name {
	case "sphere":
		return sphereIq(params)
	case "power_law":
		scale := params["scale"]
		power := params["power"]
		return func(q float64) float64 { return scale * math.Pow(q, -power) }, nil
	}
	return nil, fmt.Errorf("model %q is not an available form factor", name)
}

func structureFactor(name string, params map[string]float64) (scene.IqFunc, error) {
	if name != "hardsphere" {
		return nil, fmt.Errorf("model %q is not an available structure factor", name)
	}
	return hardsphereSq(params)
}

// sphereIq is the monodisperse hard-sphere form factor
//
//	P(q) = scale/V * [3 V drho (sin(qr) - qr cos(qr))/(qr)^3]^2
//
// with slds in 1/A^2 and the 1e8 factor converting 1/A to the absolute
// 1/cm scale.
func sphereIq(params map[string]float64) (scene.IqFunc, error) {
	radius := params["radius"]
	if radius <= 0 {
		return nil, fmt.Errorf("sphere radius must be positive, got %g", radius)
	}
	scale := params["scale"]
	drho := params["sld"] - params["sld_solvent"]
	volume := 4 * math.Pi / 3 * radius * radius * radius
	prefactor := scale / volume * 1e8
	return func(q float64) float64 {
		f := volume * drho * sphericalJ1c(q*radius)
		return prefactor * f * f
	}, nil
}

// sphericalJ1c is 3*j1(x)/x = 3*(sin x - x cos x)/x^3, the normalized
// sphere amplitude, with the series limit near zero.
func sphericalJ1c(x float64) float64 {
	if math.Abs(x) < 1e-4 {
		return 1 - x*x/10
	}
	return 3 * (math.Sin(x) - x*math.Cos(x)) / (x * x * x)
}

// hardsphereSq is the Percus-Yevick hard-sphere structure factor. At q=0
// it reduces to (1-phi)^4/(1+2 phi)^2.
func hardsphereSq(params map[string]float64) (scene.IqFunc, error) {
	phi := params["volfraction"]
	r := params["radius_effective"]
	if r <= 0 {
		// fall back to the form factor radius when the effective
		// radius is not declared
		r = params["radius"]
	}
	if r <= 0 {
		return nil, fmt.Errorf("hardsphere needs a positive radius_effective, got %g", r)
	}
	if phi < 0 || phi >= 1 {
		return nil, fmt.Errorf("hardsphere volfraction must be in [0, 1), got %g", phi)
	}
	if phi == 0 {
		return func(q float64) float64 { return 1 }, nil
	}

	denom := math.Pow(1-phi, 4)
	alpha := (1 + 2*phi) * (1 + 2*phi) / denom
	beta := -6 * phi * (1 + phi/2) * (1 + phi/2) / denom
	gamma := phi * alpha / 2

	return func(q float64) float64 {
		a := 2 * q * r
		var gOverA float64
		if a < 1e-2 {
			gOverA = alpha/3 + beta/4 + gamma/6
		} else {
			sinA, cosA := math.Sin(a), math.Cos(a)
			g := alpha*(sinA-a*cosA)/(a*a) +
				beta*(2*a*sinA+(2-a*a)*cosA-2)/(a*a*a) +
				gamma*(-a*a*a*a*cosA+4*((3*a*a-6)*cosA+(a*a*a-6*a)*sinA+6))/(a*a*a*a*a)
			gOverA = g / a
		}
		return 1 / (1 + 24*phi*gOverA)
	}, nil
}
