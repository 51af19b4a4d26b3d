package scene

// IqFunc is a scattering cross-section I(q) with q in 1/Angstrom and I in
// absolute units of 1/cm.
type IqFunc func(q float64) float64

// ParamDefault describes one model parameter in the evaluator's registry:
// its default value and the bounds used for unspecified-parameter draws.
type ParamDefault struct {
	Value float64
	Min   float64
	Max   float64
}

// MixtureTerm is one material of a sample mixture, weighted by volume
// fraction, used for penetration-depth (attenuation) calculations.
type MixtureTerm struct {
	Formula        string
	Density        float64
	VolumeFraction float64
}

// Evaluator is the scattering-model collaborator. All wavelengths and
// autocorrelation lengths cross this interface in Angstroms.
type Evaluator interface {
	// ModelDefaults returns the parameter table of a canonical model
	// name ("sphere", "hardsphere", "sphere@hardsphere", ...).
	ModelDefaults(name string) (map[string]ParamDefault, error)

	// Intensity binds resolved parameters (sld values included) to a
	// model and returns its cross section.
	Intensity(name string, params map[string]float64) (IqFunc, error)

	// Projection returns the normalized real-space projections G(xi)
	// and G(0) of the cross section.
	Projection(iq IqFunc, xi float64) (g, g0 float64)

	// SLD returns the coherent scattering length density of a material
	// in 1/Angstrom^2.
	SLD(formula string, density, wavelength float64) (float64, error)

	// PenetrationDepth returns the 1/e attenuation length in cm of the
	// volume-weighted mixture.
	PenetrationDepth(terms []MixtureTerm, wavelength float64) (float64, error)

	// LookupComponent resolves a component-library name to its formula
	// and density.
	LookupComponent(name string) (formula string, density float64, err error)
}
