package main

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
)

// LoadMask reads a labeled ROI mask image. Each pixel value is the
// integer ROI label; indexed (paletted) images use the palette index so
// the labels survive whatever colors the drawing tool assigned.
func LoadMask(path string) ([][]int, error) {
	img, err := decodeImage(path)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	mask := make([][]int, b.Dy())
	for y := range mask {
		mask[y] = make([]int, b.Dx())
		for x := range mask[y] {
			mask[y][x] = int(pixelValue(img, b.Min.X+x, b.Min.Y+y))
		}
	}
	return mask, nil
}

// LoadThickness reads a thickness map image. Pixel values are thickness
// in cm.
func LoadThickness(path string) ([][]float64, error) {
	img, err := decodeImage(path)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	thick := make([][]float64, b.Dy())
	for y := range thick {
		thick[y] = make([]float64, b.Dx())
		for x := range thick[y] {
			thick[y][x] = pixelValue(img, b.Min.X+x, b.Min.Y+y)
		}
	}
	return thick, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// image.Decode dispatches on the registered png and tiff decoders.
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// pixelValue extracts the raw sample value of a grayscale or paletted
// pixel without any bit-depth rescaling.
func pixelValue(img image.Image, x, y int) float64 {
	switch im := img.(type) {
	case *image.Paletted:
		return float64(im.ColorIndexAt(x, y))
	case *image.Gray:
		return float64(im.GrayAt(x, y).Y)
	case *image.Gray16:
		return float64(im.Gray16At(x, y).Y)
	}
	r, _, _, _ := img.At(x, y).RGBA()
	return float64(r >> 8)
}

// MatrixToGray16 maps matrix values to the full 16-bit range with a fixed
// physical ceiling: Y16 = round(v * 65535 / peak), clipped to [0, 65535].
// Non-finite values write black.
func MatrixToGray16(m [][]float64, peak float64) (*image.Gray16, error) {
	if len(m) == 0 || len(m[0]) == 0 {
		return nil, errors.New("empty matrix")
	}
	if peak <= 0 {
		return nil, errors.New("peak must be > 0")
	}
	h := len(m)
	w := len(m[0])
	for y := 1; y < h; y++ {
		if len(m[y]) != w {
			return nil, errors.New("ragged matrix")
		}
	}

	scale := 65535 / peak
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			v := m[y][x]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				i := row + 2*x
				img.Pix[i], img.Pix[i+1] = 0, 0
				continue
			}

			u := math.Round(v * scale)
			if u < 0 {
				u = 0
			} else if u > 65535 {
				u = 65535
			}
			y16 := uint16(u)

			// Gray16 Pix is big-endian per pixel: high then low
			i := row + 2*x
			img.Pix[i] = uint8(y16 >> 8)
			img.Pix[i+1] = uint8(y16)
		}
	}
	return img, nil
}

// SaveMatrix writes a matrix as a 16-bit grayscale image, clipped and
// scaled to the given peak. The extension picks the codec: tif/tiff or
// png.
func SaveMatrix(path string, m [][]float64, peak float64) error {
	img, err := MatrixToGray16(m, peak)
	if err != nil {
		return fmt.Errorf("converting %s: %w", filepath.Base(path), err)
	}
	return saveGray16(path, img)
}

func saveGray16(path string, img *image.Gray16) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return tiff.Encode(f, img, nil)
	case ".png":
		return png.Encode(f, img)
	}
	return fmt.Errorf("unsupported image extension on %s", filepath.Base(path))
}
