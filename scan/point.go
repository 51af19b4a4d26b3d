package scan

import "math"

// Point is one concrete measurement: a single image to simulate.
// Values are in canonical internal units (nm, mm, mm, Ang) and are never
// mutated once produced by the resolver.
type Point struct {
	Xi         float64 // autocorrelation length, nm
	Moire      float64 // moire fringe period at the detector, mm
	Z          float64 // sample-to-detector distance, mm
	Wavelength float64 // neutron wavelength, Ang
}

// XiFor returns the autocorrelation length probed at the given geometry.
func XiFor(moire, z, wavelength float64) float64 {
	return wavelength * z / (10 * moire)
}

// ZFor solves the physical relation for the sample-to-detector distance.
func ZFor(xi, moire, wavelength float64) float64 {
	return 10 * xi * moire / wavelength
}

// MoireFor solves the physical relation for the moire period.
func MoireFor(xi, z, wavelength float64) float64 {
	return wavelength * z / (10 * xi)
}

// WavelengthFor solves the physical relation for the wavelength.
func WavelengthFor(xi, moire, z float64) float64 {
	return 10 * xi * moire / z
}

// Consistent reports whether the point satisfies the physical relation to
// within a relative tolerance.
func (p Point) Consistent(tol float64) bool {
	want := XiFor(p.Moire, p.Z, p.Wavelength)
	if want == 0 {
		return math.Abs(p.Xi) <= tol
	}
	return math.Abs(p.Xi-want) <= tol*math.Abs(want)
}
