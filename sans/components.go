package sans

import (
	"fmt"

	"github.com/usnistgov/correlogram-tools/scene"
)

// libraryEntry is a named stock material.
type libraryEntry struct {
	Formula string
	Density float64 // g/cm3
}

// componentLibrary holds the stock materials available by name in the
// experiment file's component-library mode.
var componentLibrary = map[string]libraryEntry{
	"water":       {"H2O", 0.997},
	"heavy_water": {"D2O", 1.107},
	"silica":      {"SiO2", 2.2},
	"quartz":      {"SiO2", 2.65},
	"alumina":     {"Al2O3", 3.95},
	"polystyrene": {"C8H8", 1.05},
	"titania":     {"TiO2", 4.23},
	"aluminum":    {"Al", 2.70},
	"iron":        {"Fe", 7.87},
	"vanadium":    {"V", 6.0},
}

// LookupComponent resolves a component-library name to its molecular
// formula and mass density.
func (e *Evaluator) LookupComponent(name string) (string, float64, error) {
	entry, ok := componentLibrary[name]
	if !ok {
		return "", 0, fmt.Errorf("%q is not an available component in the component library", name)
	}
	return entry.Formula, entry.Density, nil
}

// PenetrationDepth returns the 1/e attenuation length in cm of a
// volume-weighted material mixture at the given wavelength in Angstroms.
// Attenuation combines incoherent scattering with absorption scaled
// linearly from the thermal reference cross sections.
func (e *Evaluator) PenetrationDepth(terms []scene.MixtureTerm, wavelength float64) (float64, error) {
	if wavelength <= 0 {
		return 0, fmt.Errorf("penetration depth needs a positive wavelength, got %g", wavelength)
	}
	mu := 0.0 // 1/cm
	for _, t := range terms {
		if t.VolumeFraction <= 0 {
			continue
		}
		if t.Density <= 0 {
			return 0, fmt.Errorf("material %q needs a positive density, got %g", t.Formula, t.Density)
		}
		counts, err := ParseFormula(t.Formula)
		if err != nil {
			return 0, err
		}
		n := numberDensity(counts, t.Density) // formula units / cm^3
		sigma := 0.0                          // barns per formula unit
		for symbol, c := range counts {
			el := elements[symbol]
			sigma += c * (el.sigmaInc + el.sigmaAbs*wavelength/thermalWavelength)
		}
		mu += t.VolumeFraction * n * sigma * 1e-24 // barn = 1e-24 cm^2
	}
	if mu <= 0 {
		return 0, fmt.Errorf("mixture has no attenuating material")
	}
	return 1 / mu, nil
}
