// Command correlogram-tools simulates far-field interferometry
// measurements from an experiment description file: it resolves the
// measurement points, renders ideal transmission (H0) and visibility-loss
// (H1byH0) images for each, and optionally simulates the noisy
// phase-stepped moire acquisition with reconstruction.
//
// Usage:
//
//	correlogram-tools [-r] [-f format] <experiment-file>
//
// -r additionally simulates the raw moire projections and reconstructs
// them; -f picks the image extension (tiff by default, png accepted).
package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/exp/rand"

	"github.com/usnistgov/correlogram-tools/moire"
	"github.com/usnistgov/correlogram-tools/sans"
	"github.com/usnistgov/correlogram-tools/scan"
	"github.com/usnistgov/correlogram-tools/scene"
)

func main() {
	startTime := time.Now()

	configPath, reconstruct, format, ok := parseArgs(os.Args[1:])
	if !ok {
		fmt.Println("\n\tUsage: correlogram-tools [-r] [-f format] <experiment-file>")
		os.Exit(1)
	}

	exp, err := LoadExperiment(configPath)
	if err != nil {
		fmt.Println(fmt.Errorf("experiment file %s: %w", configPath, err))
		os.Exit(2)
	}
	if exp.Title != "" {
		fmt.Printf("Experiment: %s\n", exp.Title)
	}

	points, warnings, err := scan.ResolveAll(exp.Measurements)
	if err != nil {
		fmt.Println(fmt.Errorf("resolving measurements: %w", err))
		os.Exit(3)
	}
	fmt.Printf("Resolved %d measurement points (%d infeasible combinations dropped) in %s\n",
		len(points), len(warnings), time.Since(startTime))

	mask, err := LoadMask(exp.MaskPath)
	if err != nil {
		fmt.Println(fmt.Errorf("ROI mask: %w", err))
		os.Exit(4)
	}
	thickness, err := LoadThickness(exp.ThicknessPath)
	if err != nil {
		fmt.Println(fmt.Errorf("thickness map: %w", err))
		os.Exit(5)
	}

	src := rand.NewSource(uint64(time.Now().UnixNano()))
	sceneStart := time.Now()
	sc, err := scene.New(mask, thickness, exp.Groups, sans.New(), src)
	if err != nil {
		fmt.Println(fmt.Errorf("building scene: %w", err))
		os.Exit(6)
	}
	fmt.Printf("Scene built from %dx%d mask in %s\n", len(mask), len(mask[0]), time.Since(sceneStart))
	exp.Noise.Src = src

	exportDir := filepath.Join(filepath.Dir(exp.MaskPath), "simulated_images")
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		fmt.Println(fmt.Errorf("creating export directory: %w", err))
		os.Exit(7)
	}

	// Render the ideal images. Points whose physics evaluation fails are
	// dropped with a warning; everything else is fatal.
	renderStart := time.Now()
	var (
		kept       []scan.Point
		transMaps  [][][]float64
		dfMaps     [][][]float64
		physicsLog []string
	)
	for k, p := range points {
		trans, df, err := sc.Render(p)
		if err != nil {
			if scene.IsPhysics(err) {
				physicsLog = append(physicsLog, fmt.Sprintf("point %d (xi=%g nm): %v", k+1, p.Xi, err))
				continue
			}
			fmt.Println(fmt.Errorf("rendering point %d: %w", k+1, err))
			os.Exit(8)
		}
		kept = append(kept, p)
		transMaps = append(transMaps, trans)
		dfMaps = append(dfMaps, df)
	}
	fmt.Printf("Rendered %d of %d points in %s\n", len(kept), len(points), time.Since(renderStart))
	if len(kept) == 0 {
		fmt.Println("No measurement point could be rendered.")
		os.Exit(8)
	}

	for k, p := range kept {
		stem := encodeStem(exp.Stem, stemParts{
			xi:         fp(p.Xi),
			period:     fp(p.Moire * 1000),
			z:          fp(p.Z),
			wavelength: fp(p.Wavelength / 10),
		})
		h1byh0 := expNeg(dfMaps[k])

		if err := SaveMatrix(filepath.Join(exportDir, stem+"_H0."+format), transMaps[k], 1.1); err != nil {
			fmt.Println(fmt.Errorf("writing H0 image: %w", err))
			os.Exit(9)
		}
		if err := SaveMatrix(filepath.Join(exportDir, stem+"_H1byH0."+format), h1byh0, 1.1); err != nil {
			fmt.Println(fmt.Errorf("writing H1byH0 image: %w", err))
			os.Exit(9)
		}
	}
	fmt.Printf("Wrote %d image pairs to %s\n", len(kept), exportDir)

	csvPath := filepath.Join(exportDir, "measurement_details.csv")
	if err := WriteMeasurementDetails(csvPath, kept); err != nil {
		fmt.Println(fmt.Errorf("writing measurement details: %w", err))
		os.Exit(10)
	}

	xis, curves := darkFieldCurves(mask, exp.Groups, kept, dfMaps)
	plotPath := filepath.Join(exportDir, "dark_field_vs_xi.png")
	if err := MakeDarkFieldPlot(xis, curves, plotPath); err != nil {
		fmt.Println(fmt.Errorf("writing dark-field plot: %w", err))
		os.Exit(11)
	}

	if reconstruct {
		rawStart := time.Now()
		if err := simulateRaw(exp, kept, transMaps, dfMaps, exportDir, format); err != nil {
			fmt.Println(fmt.Errorf("raw simulation: %w", err))
			os.Exit(12)
		}
		fmt.Printf("Raw simulation and reconstruction took %s\n", time.Since(rawStart))
	}

	for _, w := range warnings {
		fmt.Println("Warning:", w)
	}
	for _, msg := range physicsLog {
		fmt.Println("Warning: dropped", msg)
	}
	fmt.Printf("Done in %s\n", time.Since(startTime))
}

// parseArgs handles the -r/--reconstruct and -f/--format flags plus the
// single positional experiment file.
func parseArgs(args []string) (configPath string, reconstruct bool, format string, ok bool) {
	format = "tiff"
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-r", "--reconstruct":
			reconstruct = true
		case "-f", "--format":
			i++
			if i >= len(args) {
				return "", false, "", false
			}
			format = args[i]
		default:
			if configPath != "" {
				return "", false, "", false
			}
			configPath = args[i]
		}
	}
	if configPath == "" || (format != "tiff" && format != "tif" && format != "png") {
		return "", false, "", false
	}
	return configPath, reconstruct, format, true
}

// openKey identifies an open-beam acquisition. Points sharing the exact
// same geometry reuse one simulated open stack.
type openKey struct {
	moire, z, wavelength float64
}

// simulateRaw runs the noisy phase-stepped acquisition for every kept
// point, persists the raw frames (open beams once per distinct period)
// and reconstructs H0 and H1byH0 from them.
func simulateRaw(exp *Experiment, points []scan.Point, transMaps, dfMaps [][][]float64, exportDir, format string) error {
	in := exp.Instrument
	noise := exp.Noise
	peak := noise.Peak(in)

	rawDir := filepath.Join(exportDir, "raw")
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return err
	}
	reconDir := filepath.Join(exportDir, "recon")
	if err := os.MkdirAll(reconDir, 0o755); err != nil {
		return err
	}

	h := len(transMaps[0])
	w := len(transMaps[0][0])
	openCache := make(map[openKey]moire.Stack)
	periodsWritten := make(map[int]bool)
	fileIndex := 1

	for k, p := range points {
		if k%5 == 0 {
			fmt.Printf("Raw reconstruction %d of %d\n", k+1, len(points))
		}

		samp, err := in.Project(transMaps[k], dfMaps[k], p)
		if err != nil {
			return err
		}
		samp, err = noise.Apply(samp)
		if err != nil {
			return err
		}

		key := openKey{moire: p.Moire, z: p.Z, wavelength: p.Wavelength}
		open, cached := openCache[key]
		if !cached {
			open, err = noise.Apply(in.OpenBeam(h, w, p))
			if err != nil {
				return err
			}
			openCache[key] = open
		}

		periodUm := int(p.Moire * 1000)
		wavelengthNm := p.Wavelength / 10
		if !periodsWritten[periodUm] {
			periodsWritten[periodUm] = true
			for step := range open {
				stem := encodeStem("open", stemParts{
					period:     fp(p.Moire * 1000),
					wavelength: fp(wavelengthNm),
					phase:      fp(float64(step)),
					increment:  &fileIndex,
				})
				if err := SaveMatrix(filepath.Join(rawDir, stem+"."+format), open[step], peak); err != nil {
					return err
				}
				fileIndex++
			}
		}
		for step := range samp {
			stem := encodeStem("samp", stemParts{
				period:     fp(p.Moire * 1000),
				z:          fp(p.Z),
				wavelength: fp(wavelengthNm),
				phase:      fp(float64(step)),
				increment:  &fileIndex,
			})
			if err := SaveMatrix(filepath.Join(rawDir, stem+"."+format), samp[step], peak); err != nil {
				return err
			}
			fileIndex++
		}

		h0r, h1r, _, err := moire.Reconstruct(open, samp, in.NPhaseStepPeriods)
		if err != nil {
			return err
		}
		h1byh0r := ratio(h1r, h0r)

		stem := encodeStem("samp", stemParts{
			xi:         fp(p.Xi),
			period:     fp(p.Moire * 1000),
			z:          fp(p.Z),
			wavelength: fp(wavelengthNm),
		})
		if err := SaveMatrix(filepath.Join(reconDir, stem+"_H0."+format), h0r, 1.1); err != nil {
			return err
		}
		if err := SaveMatrix(filepath.Join(reconDir, stem+"_H1byH0."+format), h1byh0r, 1.1); err != nil {
			return err
		}
	}
	return nil
}

// darkFieldCurves averages the dark-field map over each sample ROI for
// every kept point, for the summary plot.
func darkFieldCurves(mask [][]int, groups []scene.Group, points []scan.Point, dfMaps [][][]float64) ([]float64, map[int][]float64) {
	xis := make([]float64, len(points))
	for k, p := range points {
		xis[k] = p.Xi
	}

	curves := make(map[int][]float64)
	for _, g := range groups {
		if g.Binding.Open {
			continue
		}
		for _, label := range g.Labels {
			curve := make([]float64, len(points))
			for k := range points {
				var sum float64
				var n int
				for y := range mask {
					for x := range mask[y] {
						if mask[y][x] == label {
							sum += dfMaps[k][y][x]
							n++
						}
					}
				}
				if n > 0 {
					curve[k] = sum / float64(n)
				} else {
					curve[k] = math.NaN()
				}
			}
			curves[label] = curve
		}
	}
	return xis, curves
}

func expNeg(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for y := range m {
		out[y] = make([]float64, len(m[y]))
		for x, v := range m[y] {
			out[y][x] = math.Exp(-v)
		}
	}
	return out
}

func ratio(num, den [][]float64) [][]float64 {
	out := make([][]float64, len(num))
	for y := range num {
		out[y] = make([]float64, len(num[y]))
		for x := range num[y] {
			out[y][x] = num[y][x] / den[y][x]
		}
	}
	return out
}
