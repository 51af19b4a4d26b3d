// Package scene renders per-pixel transmission and dark-field maps from a
// labeled ROI mask, a thickness map and per-ROI scattering models. The
// scattering physics itself lives behind the Evaluator interface.
package scene

import (
	"strings"
	"unicode"

	"github.com/usnistgov/correlogram-tools/scan"
)

// Component modes accepted in sample_components entries.
const (
	ModeFormula = "molecular-formula"
	ModeLibrary = "component-library"
)

// Component identifies the material behind an sld-type parameter: either a
// molecular formula with an explicit mass density, or a named entry in the
// evaluator's component library.
type Component struct {
	Mode    string
	Value   string
	Density float64 // g/cm3, formula mode only
}

// Part is one named piece of a combined model as declared in the
// experiment file: its parameter series and the material components behind
// its sld parameters (keyed by parameter name, e.g. "sld", "sld_solvent").
type Part struct {
	Name       string
	Parameters map[string]scan.Series
	Components map[string]Component
}

// Model is the declared scattering model of a ROI group.
type Model struct {
	Name  string // combined name, e.g. "sphere1+sphere2" or "sphere@hardsphere"
	Parts []Part
}

// Binding attaches physics to a mask label: either the open-beam reference
// region or a sample model.
type Binding struct {
	Open  bool
	Model Model
}

// Role of a part inside a combined model.
type Role int

const (
	RoleForm Role = iota
	RoleStructure
)

// PartRef is one parsed part of a combined model name: the name as the
// user wrote it (possibly with a digit suffix to disambiguate repeats) and
// the canonical model name with the suffix stripped.
type PartRef struct {
	UserName string
	CoreName string
	Role     Role
}

// Unit is an additive term of a combined model: a lone form factor, or a
// form factor paired with a structure factor. Name is the canonical
// evaluator-facing name ("sphere", "sphere@hardsphere").
type Unit struct {
	Name  string
	Parts []PartRef
}

// ParseModelName splits a user model name into additive units. Accepted
// grammar: parts joined by "+", and within a part an optional structure
// factor joined by "@" or "*" (the two are synonyms). Parentheses are not
// accepted, "@"/"*" pairs exactly one form factor with one structure
// factor, and a trailing digit on a part name is a repeat disambiguator,
// not part of the model name.
func ParseModelName(name string) ([]Unit, error) {
	if name == "" {
		return nil, scan.Configf("empty model name")
	}
	if strings.ContainsAny(name, "() ") {
		return nil, scan.Configf("model name %q: parentheses and spaces are not accepted", name)
	}
	var units []Unit
	for _, term := range strings.Split(name, "+") {
		sep := ""
		switch {
		case strings.Contains(term, "@"):
			sep = "@"
		case strings.Contains(term, "*"):
			sep = "*"
		}
		if sep == "" {
			if term == "" {
				return nil, scan.Configf("model name %q has an empty additive term", name)
			}
			units = append(units, Unit{
				Name:  trimRepeatSuffix(term),
				Parts: []PartRef{{UserName: term, CoreName: trimRepeatSuffix(term), Role: RoleForm}},
			})
			continue
		}
		pieces := strings.Split(term, sep)
		if len(pieces) != 2 || pieces[0] == "" || pieces[1] == "" {
			return nil, scan.Configf("model term %q: a structure factor pairs exactly one form factor with one structure factor", term)
		}
		form, structure := trimRepeatSuffix(pieces[0]), trimRepeatSuffix(pieces[1])
		units = append(units, Unit{
			Name: form + "@" + structure,
			Parts: []PartRef{
				{UserName: pieces[0], CoreName: form, Role: RoleForm},
				{UserName: pieces[1], CoreName: structure, Role: RoleStructure},
			},
		})
	}
	return units, nil
}

func trimRepeatSuffix(s string) string {
	i := len(s)
	for i > 0 && unicode.IsDigit(rune(s[i-1])) {
		i--
	}
	if i == 0 {
		return s
	}
	return s[:i]
}
