package moire

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// PaddingMode selects how convolution samples beyond the image edge.
type PaddingMode int

const (
	PadZeros PaddingMode = iota
	PadReflect
	PadReplicate
	PadCircular
)

// blur convolves a map with the projected aperture footprint for a sample
// at z mm from the detector. Pinhole apertures project a filled disk, slit
// apertures a box. The penumbra radius in pixels is
//
//	lambda_g = D/2 * Z/(L-Z) * 1e4/pitch
//
// with D in cm, L and Z in m and pitch in um/px. Sub-pixel footprints
// leave the map untouched.
func (in Instrument) blur(m [][]float64, z float64) ([][]float64, error) {
	L := in.InterferometerLength
	Z := math.Abs(z) / 1000 // mm -> m
	scale := Z / (L - Z) * 1e4 / in.PixelPitch

	var kernel [][]float64
	switch in.ApertureType {
	case Pinhole:
		kernel = diskKernel(in.SlitApertureX / 2 * scale)
	case Slit:
		kernel = boxKernel(in.SlitApertureX/2*scale, in.SlitApertureY/2*scale)
	default:
		return nil, shapef("unknown aperture type %q", in.ApertureType)
	}
	if kernel == nil {
		return m, nil
	}
	return convolveFFT(m, kernel, PadReflect)
}

// diskKernel builds a normalized filled-disk kernel of the given radius in
// pixels, or nil when the footprint is below one pixel.
func diskKernel(lambda float64) [][]float64 {
	radius := math.Round(lambda)
	if radius < 1 {
		return nil
	}
	r := int(math.Floor(lambda))
	if r < 1 {
		r = 1
	}
	width := 2*r + 1
	kernel := make([][]float64, width)
	sum := 0.0
	for y := range kernel {
		kernel[y] = make([]float64, width)
		for x := range kernel[y] {
			dy, dx := float64(y-r), float64(x-r)
			if dy*dy+dx*dx <= radius*radius {
				kernel[y][x] = 1
				sum++
			}
		}
	}
	for y := range kernel {
		for x := range kernel[y] {
			kernel[y][x] /= sum
		}
	}
	return kernel
}

// boxKernel builds a normalized box kernel with half-widths in pixels, or
// nil when both are below one pixel.
func boxKernel(halfX, halfY float64) [][]float64 {
	w := 2*int(math.Round(halfX)) + 1
	h := 2*int(math.Round(halfY)) + 1
	if w <= 1 && h <= 1 {
		return nil
	}
	kernel := make([][]float64, h)
	v := 1 / float64(h*w)
	for y := range kernel {
		kernel[y] = make([]float64, w)
		for x := range kernel[y] {
			kernel[y][x] = v
		}
	}
	return kernel
}

// convolveFFT convolves an image with a centered kernel via 2D FFT and
// returns the same-size result. The kernel must already be normalized.
func convolveFFT(img, kernel [][]float64, pad PaddingMode) ([][]float64, error) {
	h, w, err := rectShape(img)
	if err != nil {
		return nil, err
	}
	kh, kw, err := rectShape(kernel)
	if err != nil {
		return nil, err
	}

	// FFT grid for linear convolution: at least full size, padded to a
	// power of two for speed.
	fh := nextPow2(h + kh - 1)
	fw := nextPow2(w + kw - 1)

	a := makeComplex2D(fh, fw)
	b := makeComplex2D(fh, fw)

	for y := 0; y < fh; y++ {
		for x := 0; x < fw; x++ {
			a[y][x] = complex(sample2D(img, y, x, pad), 0)
		}
	}

	// The kernel is stored centered; shift its center to (0,0) so the
	// convolution does not translate the image.
	shifted := ifftshift2D(kernel)
	for y := 0; y < kh; y++ {
		for x := 0; x < kw; x++ {
			b[y][x] = complex(shifted[y][x], 0)
		}
	}

	fft2InPlace(a, true)
	fft2InPlace(b, true)
	for y := 0; y < fh; y++ {
		for x := 0; x < fw; x++ {
			a[y][x] *= b[y][x]
		}
	}
	fft2InPlace(a, false)

	// Gonum transforms are unnormalized: forward then inverse multiplies
	// by the grid size.
	scale := float64(fh * fw)
	out := make([][]float64, h)
	for y := range out {
		out[y] = make([]float64, w)
		for x := range out[y] {
			out[y][x] = real(a[y][x]) / scale
		}
	}
	return out, nil
}

func fft2InPlace(a [][]complex128, forward bool) {
	h := len(a)
	w := len(a[0])

	rowFFT := fourier.NewCmplxFFT(w)
	colFFT := fourier.NewCmplxFFT(h)

	tmp := make([]complex128, w)
	for y := 0; y < h; y++ {
		copy(tmp, a[y])
		if forward {
			rowFFT.Coefficients(tmp, tmp)
		} else {
			rowFFT.Sequence(tmp, tmp)
		}
		copy(a[y], tmp)
	}

	col := make([]complex128, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = a[y][x]
		}
		if forward {
			colFFT.Coefficients(col, col)
		} else {
			colFFT.Sequence(col, col)
		}
		for y := 0; y < h; y++ {
			a[y][x] = col[y]
		}
	}
}

func sample2D(img [][]float64, y, x int, mode PaddingMode) float64 {
	h := len(img)
	w := len(img[0])

	if 0 <= y && y < h && 0 <= x && x < w {
		return img[y][x]
	}

	switch mode {
	case PadZeros:
		return 0
	case PadReplicate:
		return img[clamp(y, 0, h-1)][clamp(x, 0, w-1)]
	case PadReflect:
		return img[reflectIndex(y, h)][reflectIndex(x, w)]
	case PadCircular:
		return img[mod(y, h)][mod(x, w)]
	}
	return 0
}

// ifftshift2D moves the center of a centered kernel to (0,0).
func ifftshift2D(m [][]float64) [][]float64 {
	h := len(m)
	w := len(m[0])
	out := make([][]float64, h)
	for i := range out {
		out[i] = make([]float64, w)
	}
	shY := h / 2
	shX := w / 2
	for y := 0; y < h; y++ {
		yy := (y + shY) % h
		for x := 0; x < w; x++ {
			xx := (x + shX) % w
			out[y][x] = m[yy][xx]
		}
	}
	return out
}

func makeComplex2D(h, w int) [][]complex128 {
	m := make([][]complex128, h)
	for i := range m {
		m[i] = make([]complex128, w)
	}
	return m
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func mod(i, n int) int {
	r := i % n
	if r < 0 {
		r += n
	}
	return r
}

// reflectIndex implements reflect padding without repeating edge pixels.
// Example for n=5 indices: ... 2 1 0 1 2 3 4 3 2 1 0 1 ...
func reflectIndex(i, n int) int {
	if n <= 1 {
		return 0
	}
	period := 2*n - 2
	i = mod(i, period)
	if i >= n {
		i = period - i
	}
	return i
}
