package capacity

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
)

// ErrShareOutOfRange is returned by ScenarioBuilder.Build for shares that are not
// finite numbers in [0, 1].
var ErrShareOutOfRange = errors.New("share out of range")

// FormulaShare is a formulation's allocation on a line as stated by a scenario
// source. It is either Flat or Detailed.
type FormulaShare interface {
	formulaShare()
}

// Flat allocates a fraction of the line to the formulation and spreads it over
// widths following the baseline mix.
type Flat float64

// Detailed allocates a fraction of the line to the formulation with explicit
// width shares. A nil ShareFormula means 1.0. Widths missing from the map fall
// back to the baseline mix.
type Detailed struct {
	ShareFormula *float64
	Widths       map[Width]float64
}

func (Flat) formulaShare()     {}
func (Detailed) formulaShare() {}

// ShareEntry is one raw share tuple collected from a configuration source.
// Width nil makes it a formulation-level entry; Share nil on a formulation-level
// entry only declares the formulation (its share defaults to 1.0).
type ShareEntry struct {
	Line        string   `json:"line"`
	Formulation string   `json:"formulation"`
	Width       *Width   `json:"width,omitempty"`
	Share       *float64 `json:"share,omitempty"`
}

// shareEntryJSON spells out has_width because a null width and no width would
// otherwise both encode as null.
type shareEntryJSON struct {
	Line        string   `json:"line"`
	Formulation string   `json:"formulation"`
	HasWidth    bool     `json:"has_width,omitempty"`
	Width       *Width   `json:"width,omitempty"`
	Share       *float64 `json:"share,omitempty"`
}

func (e ShareEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(shareEntryJSON{
		Line:        e.Line,
		Formulation: e.Formulation,
		HasWidth:    e.Width != nil,
		Width:       e.Width,
		Share:       e.Share,
	})
}

func (e *ShareEntry) UnmarshalJSON(data []byte) error {
	var raw shareEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode share entry: %w", err)
	}
	*e = ShareEntry{Line: raw.Line, Formulation: raw.Formulation, Width: raw.Width, Share: raw.Share}
	if raw.HasWidth && e.Width == nil {
		w := NullWidth
		e.Width = &w
	}
	return nil
}

// FormulationShare is the normalized allocation of one formulation on a line.
type FormulationShare struct {
	ShareFormula float64
	widths       map[Width]float64
}

// WidthShare returns the explicit share for width, if the scenario states one.
func (f FormulationShare) WidthShare(w Width) (float64, bool) {
	share, ok := f.widths[w]
	return share, ok
}

// HasWidths reports whether any width share was stated explicitly.
func (f FormulationShare) HasWidths() bool {
	return len(f.widths) > 0
}

// Widths returns the explicitly stated widths in ascending order.
func (f FormulationShare) Widths() []Width {
	widths := slices.Collect(maps.Keys(f.widths))
	slices.SortFunc(widths, compareWidth)
	return widths
}

// Scenario is an immutable allocation plan: line -> formulation -> share.
type Scenario struct {
	name    string
	lines   map[string]map[string]FormulationShare
	entries []ShareEntry
}

func (s Scenario) Name() string {
	return s.name
}

// Lines returns the scenario's lines in ascending order.
func (s Scenario) Lines() []string {
	lines := slices.Collect(maps.Keys(s.lines))
	slices.Sort(lines)
	return lines
}

// Formulations returns the formulations listed for line in ascending order.
func (s Scenario) Formulations(line string) []string {
	forms := slices.Collect(maps.Keys(s.lines[line]))
	slices.Sort(forms)
	return forms
}

// Share returns the normalized share of formulation on line.
func (s Scenario) Share(line, formulation string) (FormulationShare, bool) {
	fs, ok := s.lines[line][formulation]
	return fs, ok
}

// Entries returns the raw tuples the scenario was built from.
func (s Scenario) Entries() []ShareEntry {
	return slices.Clone(s.entries)
}

// ScenarioBuilder collects raw share tuples and builds a Scenario in one step.
// The zero value is not usable; call NewScenarioBuilder.
type ScenarioBuilder struct {
	name    string
	entries []ShareEntry
}

func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{name: name}
}

// Formula records a formulation-level share.
func (b *ScenarioBuilder) Formula(line, formulation string, share float64) *ScenarioBuilder {
	b.entries = append(b.entries, ShareEntry{Line: line, Formulation: formulation, Share: &share})
	return b
}

// Declare lists a formulation without stating its share.
func (b *ScenarioBuilder) Declare(line, formulation string) *ScenarioBuilder {
	b.entries = append(b.entries, ShareEntry{Line: line, Formulation: formulation})
	return b
}

// Width records an explicit width share.
func (b *ScenarioBuilder) Width(line, formulation string, width Width, share float64) *ScenarioBuilder {
	b.entries = append(b.entries, ShareEntry{Line: line, Formulation: formulation, Width: &width, Share: &share})
	return b
}

// Add records either shape of FormulaShare.
func (b *ScenarioBuilder) Add(line, formulation string, fs FormulaShare) *ScenarioBuilder {
	switch v := fs.(type) {
	case Flat:
		b.Formula(line, formulation, float64(v))
	case Detailed:
		if v.ShareFormula != nil {
			b.Formula(line, formulation, *v.ShareFormula)
		} else {
			b.Declare(line, formulation)
		}
		widths := slices.Collect(maps.Keys(v.Widths))
		slices.SortFunc(widths, compareWidth)
		for _, w := range widths {
			b.Width(line, formulation, w, v.Widths[w])
		}
	}
	return b
}

// Append records previously collected tuples, e.g. ones read back from storage.
func (b *ScenarioBuilder) Append(entries ...ShareEntry) *ScenarioBuilder {
	b.entries = append(b.entries, entries...)
	return b
}

// Build normalizes the collected tuples. Later tuples for the same slot win.
func (b *ScenarioBuilder) Build() (Scenario, error) {
	lines := make(map[string]map[string]FormulationShare)
	for _, e := range b.entries {
		if e.Share != nil {
			if err := checkShare(*e.Share); err != nil {
				return Scenario{}, fmt.Errorf("build scenario %q: line %q formulation %q: %w", b.name, e.Line, e.Formulation, err)
			}
		}
		if e.Width != nil && e.Share == nil {
			return Scenario{}, fmt.Errorf("build scenario %q: line %q formulation %q width %s: width entry without share", b.name, e.Line, e.Formulation, e.Width)
		}

		forms, ok := lines[e.Line]
		if !ok {
			forms = make(map[string]FormulationShare)
			lines[e.Line] = forms
		}
		fs, ok := forms[e.Formulation]
		if !ok {
			fs = FormulationShare{ShareFormula: 1.0}
		}

		switch {
		case e.Width != nil:
			if fs.widths == nil {
				fs.widths = make(map[Width]float64)
			}
			fs.widths[*e.Width] = *e.Share
		case e.Share != nil:
			fs.ShareFormula = *e.Share
		}
		forms[e.Formulation] = fs
	}

	return Scenario{name: b.name, lines: lines, entries: slices.Clone(b.entries)}, nil
}

func checkShare(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %v", ErrShareOutOfRange, v)
	}
	return nil
}
