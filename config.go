package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	json "github.com/KevinWang15/go-json5"

	"github.com/usnistgov/correlogram-tools/moire"
	"github.com/usnistgov/correlogram-tools/scan"
	"github.com/usnistgov/correlogram-tools/scene"
)

// Experiment is the fully validated content of an experiment description
// file. Everything the simulation needs is resolved here, before any
// image work starts: measurement requests, ROI bindings, instrument
// geometry and the noise settings.
type Experiment struct {
	Title         string
	Description   string
	MaskPath      string
	ThicknessPath string
	Measurements  []scan.Request
	Groups        []scene.Group
	Instrument    moire.Instrument
	Noise         moire.Noise

	// ConfigDir anchors the relative paths in the file (mask, thickness,
	// file-mode series).
	ConfigDir string
	// Stem is the config file name without extensions, used as the base
	// of every exported image name.
	Stem string
}

// rawExperiment mirrors the file layout. The measurement and model
// sections are left untyped because their value fields are polymorphic
// (a range is [start, stop, n, spacing], a file series is a filename).
type rawExperiment struct {
	Title         string                   `json:"title"`
	Description   string                   `json:"description"`
	MaskPath      string                   `json:"mask_path"`
	ThicknessPath string                   `json:"thickness_path"`
	Measurements  []map[string]interface{} `json:"measurements"`
	Models        []map[string]interface{} `json:"models"`
	Instrument    rawInstrument            `json:"instrument"`
	SimNoise      rawNoise                 `json:"sim_noise"`
}

type rawInstrument struct {
	InterferometerLength float64 `json:"interferometer_length"`
	ApertureType         string  `json:"aperture_type"`
	SlitApertureX        float64 `json:"slit_aperture_x"`
	SlitApertureY        float64 `json:"slit_aperture_y"`
	PixelPitch           float64 `json:"x_pixel_pitch"`
	NPhaseSteps          int     `json:"n_phase_steps"`
	NPhaseStepPeriods    int     `json:"n_phase_step_periods"`
}

type rawNoise struct {
	MoireMean float64 `json:"moire_mean"`
	MoireVis  float64 `json:"moire_vis"`
	NoiseMean float64 `json:"noise_mean"`
	NoiseVar  float64 `json:"noise_var"`
}

// LoadExperiment reads and validates an experiment description file.
// The file is relaxed JSON; an optional top-level "experiment" key wraps
// the sections so annotated templates can carry sibling metadata.
func LoadExperiment(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiment file: %w", err)
	}

	// The json5 decoder cannot unmarshal an object into a pointer-typed
	// struct field, so the optional wrapper is probed with a map and the
	// section re-encoded before decoding into the typed struct.
	var wrapper struct {
		Experiment map[string]interface{} `json:"experiment"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("parsing experiment file: %w", err)
	}
	src := data
	if wrapper.Experiment != nil {
		var err error
		if src, err = json.Marshal(wrapper.Experiment); err != nil {
			return nil, fmt.Errorf("parsing experiment file: %w", err)
		}
	}
	raw := &rawExperiment{}
	if err := json.Unmarshal(src, raw); err != nil {
		return nil, fmt.Errorf("parsing experiment file: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	exp := &Experiment{
		Title:         raw.Title,
		Description:   raw.Description,
		ConfigDir:     filepath.Dir(abs),
		Stem:          strings.SplitN(filepath.Base(path), ".", 2)[0],
	}

	if raw.MaskPath == "" {
		return nil, scan.Configf("mask_path: not found")
	}
	if raw.ThicknessPath == "" {
		return nil, scan.Configf("thickness_path: not found")
	}
	exp.MaskPath = filepath.Join(exp.ConfigDir, raw.MaskPath)
	exp.ThicknessPath = filepath.Join(exp.ConfigDir, raw.ThicknessPath)

	if len(raw.Measurements) == 0 {
		return nil, scan.Configf("measurements: section is missing or empty")
	}
	for i, m := range raw.Measurements {
		req, err := parseMeasurement(m, exp.ConfigDir)
		if err != nil {
			return nil, fmt.Errorf("measurements[%d]: %w", i, err)
		}
		exp.Measurements = append(exp.Measurements, req)
	}

	if len(raw.Models) == 0 {
		return nil, scan.Configf("models: section is missing or empty")
	}
	for i, m := range raw.Models {
		group, err := parseModelGroup(m)
		if err != nil {
			return nil, fmt.Errorf("models[%d]: %w", i, err)
		}
		exp.Groups = append(exp.Groups, group)
	}

	exp.Instrument = moire.Instrument{
		InterferometerLength: raw.Instrument.InterferometerLength,
		ApertureType:         raw.Instrument.ApertureType,
		SlitApertureX:        raw.Instrument.SlitApertureX,
		SlitApertureY:        raw.Instrument.SlitApertureY,
		PixelPitch:           raw.Instrument.PixelPitch,
		NPhaseSteps:          raw.Instrument.NPhaseSteps,
		NPhaseStepPeriods:    raw.Instrument.NPhaseStepPeriods,
		MoireMean:            raw.SimNoise.MoireMean,
		MoireVis:             raw.SimNoise.MoireVis,
	}
	if exp.Instrument.ApertureType == "" {
		exp.Instrument.ApertureType = moire.Pinhole
	}
	if err := exp.Instrument.Validate(); err != nil {
		return nil, fmt.Errorf("instrument: %w", err)
	}

	exp.Noise = moire.Noise{Mean: raw.SimNoise.NoiseMean, Var: raw.SimNoise.NoiseVar}
	if exp.Noise.Var < 0 {
		return nil, scan.Configf("sim_noise: noise_var must be non-negative, got %g", exp.Noise.Var)
	}

	return exp, nil
}

// parseMeasurement converts one entry of the measurements section into a
// scan request. The four variables are all required, whatever the mode.
func parseMeasurement(m map[string]interface{}, dir string) (scan.Request, error) {
	var req scan.Request

	mode, ok := m["measurement_mode"].(string)
	if !ok {
		return req, scan.Configf("missing measurement_mode; accepted modes are xi-scan, z-scan, wavelength-scan, moire-scan, multi-scan and custom-scan")
	}
	req.Mode = mode

	for _, keyword := range []string{"xi", "moire", "z", "wavelength"} {
		v, ok := m[keyword]
		if !ok {
			return req, scan.Configf("missing variable %s; xi, moire, z and wavelength must all be declared", keyword)
		}
		vm, ok := v.(map[string]interface{})
		if !ok {
			return req, scan.Configf("%s: is not an object", keyword)
		}
		series, err := parseSeries(keyword, vm, dir)
		if err != nil {
			return req, err
		}
		switch keyword {
		case "xi":
			req.Xi = series
		case "moire":
			req.Moire = series
		case "z":
			req.Z = series
		case "wavelength":
			req.Wavelength = series
		}
	}
	return req, nil
}

// parseSeries interprets one {mode, value, units} variable declaration.
// File-mode values are loaded here so the scan package never touches the
// filesystem.
func parseSeries(keyword string, m map[string]interface{}, dir string) (scan.Series, error) {
	var s scan.Series

	mode, ok := m["mode"].(string)
	if !ok {
		return s, scan.Configf("missing mode for variable %s", keyword)
	}
	s.Mode = scan.Mode(mode)

	if units, ok := m["units"].(string); ok {
		s.Units = units
	}
	if err := scan.CheckUnits(keyword, s.Units); err != nil {
		return s, err
	}

	value, hasValue := m["value"]
	switch s.Mode {
	case scan.Calculated:
		return s, nil
	case scan.File:
		name, ok := value.(string)
		if !ok {
			return s, scan.Configf("%s: file mode needs a filename value", keyword)
		}
		vals, err := loadColumn(filepath.Join(dir, name))
		if err != nil {
			return s, fmt.Errorf("%s: %w", keyword, err)
		}
		s.Values = vals
		return s, nil
	case scan.Range:
		start, stop, n, spacing, err := parseRangeValue(value)
		if err != nil {
			return s, fmt.Errorf("%s: %w", keyword, err)
		}
		s.Values = []float64{start, stop}
		s.N = n
		s.Spacing = spacing
		return s, nil
	}

	if !hasValue {
		return s, scan.Configf("%s: missing value", keyword)
	}
	vals, err := floatList(value)
	if err != nil {
		return s, fmt.Errorf("%s: %w", keyword, err)
	}
	s.Values = vals
	return s, nil
}

// parseRangeValue unpacks the [start, stop, n, spacing] range shorthand.
func parseRangeValue(v interface{}) (start, stop float64, n int, spacing string, err error) {
	list, ok := v.([]interface{})
	if !ok || len(list) != 4 {
		return 0, 0, 0, "", scan.Configf("range value must be [start, stop, n, spacing]")
	}
	start, ok = asFloat(list[0])
	if !ok {
		return 0, 0, 0, "", scan.Configf("range start is not a number")
	}
	stop, ok = asFloat(list[1])
	if !ok {
		return 0, 0, 0, "", scan.Configf("range stop is not a number")
	}
	fn, ok := asFloat(list[2])
	if !ok || fn != float64(int(fn)) {
		return 0, 0, 0, "", scan.Configf("range point count is not an integer")
	}
	spacing, ok = list[3].(string)
	if !ok || (spacing != scan.SpacingLinear && spacing != scan.SpacingLog) {
		return 0, 0, 0, "", scan.Configf("range spacing must be %q or %q", scan.SpacingLinear, scan.SpacingLog)
	}
	return start, stop, int(fn), spacing, nil
}

// parseModelGroup converts one entry of the models section into a scene
// group: the bound ROI labels plus either the open intent or a full
// sample model declaration.
func parseModelGroup(m map[string]interface{}) (scene.Group, error) {
	var group scene.Group

	intent, ok := m["intent"].(string)
	if !ok {
		return group, scan.Configf("missing intent; expected \"open\" or \"sample\"")
	}

	roi, ok := m["roi"].([]interface{})
	if !ok || len(roi) == 0 {
		return group, scan.Configf("missing roi label list")
	}
	for _, r := range roi {
		f, ok := asFloat(r)
		if !ok || f != float64(int(f)) {
			return group, scan.Configf("roi labels must be integers, got %v", r)
		}
		group.Labels = append(group.Labels, int(f))
	}

	switch intent {
	case "open":
		group.Binding.Open = true
		return group, nil
	case "sample":
	default:
		return group, scan.Configf("unrecognized intent %q", intent)
	}

	model, ok := m["model"].(map[string]interface{})
	if !ok {
		return group, scan.Configf("sample intent needs a model declaration")
	}
	modelMode, ok := model["model_mode"].(string)
	if !ok || modelMode != "user-defined" {
		return group, scan.Configf("unrecognized model_mode %v", model["model_mode"])
	}
	name, ok := model["model_name"].(string)
	if !ok {
		return group, scan.Configf("missing model_name")
	}
	group.Binding.Model.Name = name

	parts, ok := model["model_parts"].([]interface{})
	if !ok || len(parts) == 0 {
		return group, scan.Configf("model %s declares no model_parts", name)
	}
	for _, p := range parts {
		pm, ok := p.(map[string]interface{})
		if !ok {
			return group, scan.Configf("model %s: part is not an object", name)
		}
		part, err := parseModelPart(pm)
		if err != nil {
			return group, fmt.Errorf("model %s: %w", name, err)
		}
		group.Binding.Model.Parts = append(group.Binding.Model.Parts, part)
	}
	return group, nil
}

func parseModelPart(m map[string]interface{}) (scene.Part, error) {
	var part scene.Part

	name, ok := m["part_name"].(string)
	if !ok {
		return part, scan.Configf("missing part_name")
	}
	part.Name = name

	if params, ok := m["parameters"].(map[string]interface{}); ok {
		part.Parameters = make(map[string]scan.Series, len(params))
		for pname, pv := range params {
			pm, ok := pv.(map[string]interface{})
			if !ok {
				return part, scan.Configf("parameter %s of %s is not an object", pname, name)
			}
			series, err := parseParameter(pm)
			if err != nil {
				return part, fmt.Errorf("parameter %s of %s: %w", pname, name, err)
			}
			part.Parameters[pname] = series
		}
	}

	if comps, ok := m["sample_components"].(map[string]interface{}); ok {
		part.Components = make(map[string]scene.Component, len(comps))
		for cname, cv := range comps {
			cm, ok := cv.(map[string]interface{})
			if !ok {
				return part, scan.Configf("component %s of %s is not an object", cname, name)
			}
			comp, err := parseComponent(cm)
			if err != nil {
				return part, fmt.Errorf("component %s of %s: %w", cname, name, err)
			}
			part.Components[cname] = comp
		}
	}
	return part, nil
}

// parseParameter interprets a model parameter declaration. A
// "user-defined" value list behaves like a discrete series: one entry
// broadcasts to the whole ROI group, otherwise the length must match.
func parseParameter(m map[string]interface{}) (scan.Series, error) {
	var s scan.Series

	mode, ok := m["parameter_mode"].(string)
	if !ok {
		return s, scan.Configf("missing parameter_mode")
	}
	switch mode {
	case "user-defined":
		s.Mode = scan.Discrete
	case "range":
		s.Mode = scan.Range
	case "random":
		s.Mode = scan.Random
	case "random-single":
		s.Mode = scan.RandomSingle
	default:
		return s, scan.Configf("invalid parameter_mode %q; accepted modes are range, random, random-single and user-defined", mode)
	}

	if s.Mode == scan.Range {
		start, stop, n, spacing, err := parseRangeValue(m["value"])
		if err != nil {
			return s, err
		}
		s.Values = []float64{start, stop}
		s.N = n
		s.Spacing = spacing
		return s, nil
	}

	vals, err := floatList(m["value"])
	if err != nil {
		return s, err
	}
	s.Values = vals
	return s, nil
}

func parseComponent(m map[string]interface{}) (scene.Component, error) {
	var c scene.Component

	mode, ok := m["component_mode"].(string)
	if !ok {
		return c, scan.Configf("missing component_mode")
	}
	value, ok := m["value"].(string)
	if !ok {
		return c, scan.Configf("missing component value")
	}
	c.Mode = mode
	c.Value = value

	switch mode {
	case scene.ModeFormula:
		density, ok := asFloat(m["density"])
		if !ok {
			return c, scan.Configf("molecular-formula component %s needs a density", value)
		}
		c.Density = density
	case scene.ModeLibrary:
	default:
		return c, scan.Configf("invalid component_mode %q", mode)
	}
	return c, nil
}

// loadColumn reads a single-column text file of float values, one per
// line, for file-mode series. Blank lines are skipped.
func loadColumn(path string) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading series file: %w", err)
	}
	var vals []float64
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, scan.Configf("series file %s line %d: %q is not a number", filepath.Base(path), i+1, line)
		}
		vals = append(vals, v)
	}
	if len(vals) == 0 {
		return nil, scan.Configf("series file %s holds no values", filepath.Base(path))
	}
	return vals, nil
}

func floatList(v interface{}) ([]float64, error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, scan.Configf("value must be a list of numbers")
	}
	out := make([]float64, len(list))
	for i, e := range list {
		f, ok := asFloat(e)
		if !ok {
			return nil, scan.Configf("value entry %v is not a number", e)
		}
		out[i] = f
	}
	return out, nil
}

func asFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}
