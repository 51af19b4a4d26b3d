package main

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrixToGray16(t *testing.T) {
	m := [][]float64{
		{0, 0.5, 1},
		{1.5, math.NaN(), -0.2},
	}
	img, err := MatrixToGray16(m, 1)
	require.NoError(t, err)

	assert.Equal(t, uint16(0), img.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(32768), img.Gray16At(1, 0).Y)
	assert.Equal(t, uint16(65535), img.Gray16At(2, 0).Y)
	// out-of-range values clip, non-finite values write black
	assert.Equal(t, uint16(65535), img.Gray16At(0, 1).Y)
	assert.Equal(t, uint16(0), img.Gray16At(1, 1).Y)
	assert.Equal(t, uint16(0), img.Gray16At(2, 1).Y)

	_, err = MatrixToGray16(nil, 1)
	assert.Error(t, err)
	_, err = MatrixToGray16(m, 0)
	assert.Error(t, err)
	_, err = MatrixToGray16([][]float64{{1, 2}, {3}}, 1)
	assert.Error(t, err)
}

func TestSaveMatrixRoundTrip(t *testing.T) {
	m := [][]float64{
		{0, 16384},
		{32768, 65535},
	}
	for _, ext := range []string{"png", "tiff"} {
		path := filepath.Join(t.TempDir(), "map."+ext)
		require.NoError(t, SaveMatrix(path, m, 65535))

		got, err := LoadThickness(path)
		require.NoError(t, err)
		require.Len(t, got, 2)
		for y := range m {
			for x := range m[y] {
				assert.InDelta(t, m[y][x], got[y][x], 1, "%s (%d,%d)", ext, x, y)
			}
		}
	}

	err := SaveMatrix(filepath.Join(t.TempDir(), "map.bmp"), m, 65535)
	assert.Error(t, err)
}

func TestLoadMaskPalettedLabels(t *testing.T) {
	palette := color.Palette{
		color.RGBA{A: 255},
		color.RGBA{R: 255, A: 255},
		color.RGBA{G: 255, A: 255},
	}
	img := image.NewPaletted(image.Rect(0, 0, 3, 2), palette)
	want := [][]int{
		{0, 1, 2},
		{2, 1, 0},
	}
	for y, row := range want {
		for x, label := range row {
			img.SetColorIndex(x, y, uint8(label))
		}
	}

	path := filepath.Join(t.TempDir(), "mask.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	// labels come from the palette index, not the assigned colors
	mask, err := LoadMask(path)
	require.NoError(t, err)
	assert.Equal(t, want, mask)
}
