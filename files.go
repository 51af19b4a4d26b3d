package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/usnistgov/correlogram-tools/scan"
)

// stemParts are the optional fields woven into an exported file name.
// Nil fields are left out of the stem entirely.
type stemParts struct {
	xi         *float64 // nm, truncated to an integer field
	period     *float64 // um, truncated to an integer field
	z          *float64 // mm
	wavelength *float64 // nm
	phase      *float64 // step index
	increment  *int     // running file counter
}

// encodeStem builds an exported file name from the base plus the encoded
// measurement condition. xi and the period are compact integer fields;
// z, wavelength and phase keep their full precision with the sign and
// decimal point transliterated so the stem stays filesystem-safe.
func encodeStem(base string, p stemParts) string {
	var b strings.Builder
	b.WriteString(base)
	if p.xi != nil {
		fmt.Fprintf(&b, "_xi%04d", int(*p.xi))
	}
	if p.period != nil {
		fmt.Fprintf(&b, "_P%04d", int(*p.period))
	}
	for _, part := range []*float64{p.z, p.wavelength, p.phase} {
		if part != nil {
			b.WriteByte('_')
			b.WriteString(numEncode(*part))
		}
	}
	if p.increment != nil {
		fmt.Fprintf(&b, "_%06d", *p.increment)
	}
	return b.String()
}

// numEncode renders a signed value with the sign and decimal point
// replaced by letters: +12.5 -> "p12d500000", -0.3 -> "m0d300000".
func numEncode(v float64) string {
	s := fmt.Sprintf("%+08f", v)
	s = strings.ReplaceAll(s, "+", "p")
	s = strings.ReplaceAll(s, "-", "m")
	s = strings.ReplaceAll(s, ".", "d")
	return s
}

func fp(v float64) *float64 { return &v }

// WriteMeasurementDetails writes the per-image measurement summary next
// to the exported images. Row k describes image k, 1-based, in export
// order; wavelengths are reported in nm.
func WriteMeasurementDetails(path string, points []scan.Point) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if _, err := fmt.Fprintln(f, "# measurement number, xi (nm), period (mm), wavelength (nm), z (mm)"); err != nil {
		return err
	}
	for i, p := range points {
		_, err := fmt.Fprintf(f, "%d,%1.3f,%1.3f,%1.3f,%1.3f\n",
			i+1, p.Xi, p.Moire, p.Wavelength/10, p.Z)
		if err != nil {
			return err
		}
	}
	return nil
}
