package sans

import (
	"fmt"
	"strconv"
	"unicode"
)

// avogadro in 1/mol.
const avogadro = 6.02214076e23

// thermal reference wavelength for absorption cross sections, Angstroms
// (2200 m/s neutrons).
const thermalWavelength = 1.798

// element holds the neutron constants of one isotope-averaged element:
// atomic mass in g/mol, bound coherent scattering length in fm, and
// incoherent and thermal absorption cross sections in barns.
type element struct {
	mass     float64
	bCoh     float64
	sigmaInc float64
	sigmaAbs float64
}

// elements is the neutron data table (Sears, Neutron News 3, 1992) for
// the materials the simulator's component set needs. "D" is deuterium.
var elements = map[string]element{
	"H":  {1.008, -3.7390, 80.26, 0.3326},
	"D":  {2.014, 6.671, 2.05, 0.000519},
	"C":  {12.011, 6.6460, 0.001, 0.0035},
	"N":  {14.007, 9.36, 0.50, 1.90},
	"O":  {15.999, 5.803, 0.0008, 0.00019},
	"Na": {22.990, 3.63, 1.62, 0.530},
	"Mg": {24.305, 5.375, 0.08, 0.063},
	"Al": {26.982, 3.449, 0.0082, 0.231},
	"Si": {28.085, 4.1491, 0.004, 0.171},
	"S":  {32.06, 2.847, 0.007, 0.53},
	"Cl": {35.45, 9.5770, 5.3, 33.5},
	"Ca": {40.078, 4.70, 0.05, 0.43},
	"Ti": {47.867, -3.438, 2.87, 6.09},
	"V":  {50.942, -0.3824, 5.08, 5.08},
	"Fe": {55.845, 9.45, 0.40, 2.56},
	"Cu": {63.546, 7.718, 0.55, 3.78},
}

// ParseFormula splits a molecular formula like "H2O" or "Al2O3" into
// element counts. Counts may be fractional ("Si0.5Ge0.5" style), default
// to 1, and every symbol must be in the element table.
func ParseFormula(formula string) (map[string]float64, error) {
	if formula == "" {
		return nil, fmt.Errorf("empty molecular formula")
	}
	counts := map[string]float64{}
	i := 0
	for i < len(formula) {
		if !unicode.IsUpper(rune(formula[i])) {
			return nil, fmt.Errorf("molecular formula %q: unexpected character %q at position %d", formula, formula[i], i)
		}
		j := i + 1
		for j < len(formula) && unicode.IsLower(rune(formula[j])) {
			j++
		}
		symbol := formula[i:j]
		if _, ok := elements[symbol]; !ok {
			return nil, fmt.Errorf("molecular formula %q: element %q is not in the neutron data table", formula, symbol)
		}
		i = j
		for j < len(formula) && (unicode.IsDigit(rune(formula[j])) || formula[j] == '.') {
			j++
		}
		count := 1.0
		if j > i {
			v, err := strconv.ParseFloat(formula[i:j], 64)
			if err != nil || v <= 0 {
				return nil, fmt.Errorf("molecular formula %q: bad count %q for element %q", formula, formula[i:j], symbol)
			}
			count = v
		}
		counts[symbol] += count
		i = j
	}
	return counts, nil
}

// molarMass returns the g/mol mass of a parsed formula.
func molarMass(counts map[string]float64) float64 {
	m := 0.0
	for symbol, n := range counts {
		m += n * elements[symbol].mass
	}
	return m
}

// numberDensity returns formula units per cm^3 at the given mass density.
func numberDensity(counts map[string]float64, density float64) float64 {
	return density * avogadro / molarMass(counts)
}

// SLD returns the coherent scattering length density of a material in
// 1/Angstrom^2. Wavelength is accepted for interface symmetry; the bound
// coherent lengths in the table are wavelength-independent.
func (e *Evaluator) SLD(formula string, density, wavelength float64) (float64, error) {
	if density <= 0 {
		return 0, fmt.Errorf("material %q needs a positive density, got %g", formula, density)
	}
	counts, err := ParseFormula(formula)
	if err != nil {
		return 0, err
	}
	sumB := 0.0 // fm per formula unit
	for symbol, n := range counts {
		sumB += n * elements[symbol].bCoh
	}
	// N [1/cm^3] * b [fm = 1e-13 cm] = 1e-13 N b [1/cm^2]; 1/cm^2 = 1e-16/A^2
	return numberDensity(counts, density) * sumB * 1e-13 * 1e-16, nil
}
