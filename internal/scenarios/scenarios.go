// Package scenarios decodes scenario files and ships the built-in scenarios.
//
// A scenario file lists, per line, the formulations to run. Each formulation is
// either a bare share or a mapping with share_formula and widths:
//
//	name: example
//	operating:
//	  uptime: 0.95
//	  days: 30
//	  lines:
//	    4027/EXBA02: {uptime: 0.9}
//	lines:
//	  4027/EXBA01:
//	    YB206: 1.0
//	  4027/EXBA02:
//	    YB206:
//	      share_formula: 1.0
//	      widths: {280: 0.4, 310: 0.6}
package scenarios

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Simplici0/extrusion-capacity/internal/capacity"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

var ErrUnknownScenario = errors.New("unknown scenario")

// Definition is a decoded scenario file.
type Definition struct {
	Scenario    capacity.Scenario
	Description string
	// Operating is nil when the file has no operating block.
	Operating *capacity.OperatingParameters
}

type file struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Operating   *operating `yaml:"operating"`
	Lines       yaml.Node  `yaml:"lines"`
}

type shift struct {
	Uptime *float64 `yaml:"uptime"`
	Days   *int     `yaml:"days"`
}

type operating struct {
	Uptime *float64         `yaml:"uptime"`
	Days   *int             `yaml:"days"`
	Lines  map[string]shift `yaml:"lines"`
}

// Names lists the built-in scenarios.
func Names() []string {
	entries, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	slices.Sort(names)
	return names
}

// Builtin decodes a built-in scenario by name.
func Builtin(name string) (Definition, error) {
	data, err := builtinFS.ReadFile("builtin/" + name + ".yaml")
	if err != nil {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	return Decode(data, name)
}

// Load reads a scenario file. The file name is used when it has no name field.
func Load(p string) (Definition, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return Definition{}, fmt.Errorf("read scenario file: %w", err)
	}
	return Decode(data, strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)))
}

// Resolve accepts either a built-in name or a path to a YAML file.
func Resolve(nameOrPath string) (Definition, error) {
	if slices.Contains(Names(), nameOrPath) {
		return Builtin(nameOrPath)
	}
	return Load(nameOrPath)
}

// Decode parses scenario YAML. Entries are applied in document order.
func Decode(data []byte, fallbackName string) (Definition, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Definition{}, fmt.Errorf("decode scenario: %w", err)
	}
	name := f.Name
	if name == "" {
		name = fallbackName
	}

	b := capacity.NewScenarioBuilder(name)
	if err := decodeLines(b, &f.Lines); err != nil {
		return Definition{}, fmt.Errorf("decode scenario %q: %w", name, err)
	}
	s, err := b.Build()
	if err != nil {
		return Definition{}, err
	}

	def := Definition{Scenario: s, Description: f.Description}
	if f.Operating != nil {
		params := f.Operating.params()
		if err := params.Validate(); err != nil {
			return Definition{}, fmt.Errorf("decode scenario %q: %w", name, err)
		}
		def.Operating = &params
	}
	return def, nil
}

func decodeLines(b *capacity.ScenarioBuilder, lines *yaml.Node) error {
	if lines.Kind == 0 {
		return nil
	}
	if lines.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: lines must be a mapping", lines.Line)
	}
	for i := 0; i+1 < len(lines.Content); i += 2 {
		line := lines.Content[i].Value
		forms := lines.Content[i+1]
		if forms.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: formulations of %s must be a mapping", forms.Line, line)
		}
		for j := 0; j+1 < len(forms.Content); j += 2 {
			form := forms.Content[j].Value
			share, err := decodeShare(forms.Content[j+1])
			if err != nil {
				return fmt.Errorf("%s/%s: %w", line, form, err)
			}
			b.Add(line, form, share)
		}
	}
	return nil
}

func decodeShare(n *yaml.Node) (capacity.FormulaShare, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil, fmt.Errorf("line %d: share is empty", n.Line)
		}
		var v float64
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: share must be a number: %w", n.Line, err)
		}
		return capacity.Flat(v), nil
	case yaml.MappingNode:
		return decodeDetailed(n)
	}
	return nil, fmt.Errorf("line %d: share must be a number or a mapping", n.Line)
}

// decodeDetailed reads a {share_formula, widths} entry. A missing share_formula
// means the whole line; an explicit null is an error.
func decodeDetailed(n *yaml.Node) (capacity.FormulaShare, error) {
	var d capacity.Detailed
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		switch key.Value {
		case "share_formula":
			if val.Tag == "!!null" {
				return nil, fmt.Errorf("line %d: share_formula is empty", val.Line)
			}
			var v float64
			if err := val.Decode(&v); err != nil {
				return nil, fmt.Errorf("line %d: share_formula must be a number: %w", val.Line, err)
			}
			d.ShareFormula = &v
		case "widths":
			widths, err := decodeWidths(val)
			if err != nil {
				return nil, err
			}
			d.Widths = widths
		default:
			return nil, fmt.Errorf("line %d: unknown key %q, want share_formula or widths", key.Line, key.Value)
		}
	}
	return d, nil
}

func decodeWidths(n *yaml.Node) (map[capacity.Width]float64, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: widths must be a mapping", n.Line)
	}
	widths := make(map[capacity.Width]float64, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]

		w := capacity.NullWidth
		if key.Tag != "!!null" {
			parsed, err := capacity.ParseWidth(key.Value)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", key.Line, err)
			}
			w = parsed
		}

		if val.Tag == "!!null" {
			return nil, fmt.Errorf("line %d: width share of %s is empty", val.Line, w)
		}
		var share float64
		if err := val.Decode(&share); err != nil {
			return nil, fmt.Errorf("line %d: width share must be a number: %w", val.Line, err)
		}
		widths[w] = share
	}
	return widths, nil
}

func (o *operating) params() capacity.OperatingParameters {
	p := capacity.DefaultOperating()
	p.Default = shift{Uptime: o.Uptime, Days: o.Days}.apply(p.Default)
	if len(o.Lines) > 0 {
		p.Lines = make(map[string]capacity.Shift, len(o.Lines))
		for line, s := range o.Lines {
			p.Lines[line] = s.apply(p.Default)
		}
	}
	return p
}

func (s shift) apply(base capacity.Shift) capacity.Shift {
	if s.Uptime != nil {
		base.Uptime = *s.Uptime
	}
	if s.Days != nil {
		base.Days = *s.Days
	}
	return base
}
