package capacity

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParameters is returned for uptime outside [0, 1] or negative days.
var ErrInvalidParameters = errors.New("invalid operating parameters")

const (
	DefaultUptime = 0.95
	DefaultDays   = 30
)

// Shift is the operating time assumed for a line over the projected period.
type Shift struct {
	Uptime float64 `json:"uptime"`
	Days   int     `json:"days"`
}

// Hours is 24 × days × uptime.
func (s Shift) Hours() float64 {
	return 24 * float64(s.Days) * s.Uptime
}

func (s Shift) validate() error {
	if math.IsNaN(s.Uptime) || s.Uptime < 0 || s.Uptime > 1 {
		return fmt.Errorf("%w: uptime %v not in [0, 1]", ErrInvalidParameters, s.Uptime)
	}
	if s.Days < 0 {
		return fmt.Errorf("%w: days %d is negative", ErrInvalidParameters, s.Days)
	}
	return nil
}

// OperatingParameters holds the global shift and per-line overrides.
type OperatingParameters struct {
	Default Shift            `json:"default"`
	Lines   map[string]Shift `json:"lines,omitempty"`
}

// DefaultOperating returns 95% uptime over 30 days for every line.
func DefaultOperating() OperatingParameters {
	return OperatingParameters{Default: Shift{Uptime: DefaultUptime, Days: DefaultDays}}
}

// For returns the shift of line, falling back to the global one.
func (p OperatingParameters) For(line string) Shift {
	if s, ok := p.Lines[line]; ok {
		return s
	}
	return p.Default
}

func (p OperatingParameters) Hours(line string) float64 {
	return p.For(line).Hours()
}

func (p OperatingParameters) Validate() error {
	if err := p.Default.validate(); err != nil {
		return err
	}
	for line, s := range p.Lines {
		if err := s.validate(); err != nil {
			return fmt.Errorf("line %q: %w", line, err)
		}
	}
	return nil
}

// ShareSource tells where an allocation's width share came from.
type ShareSource string

const (
	SourceScenario ShareSource = "scenario"
	SourceBaseline ShareSource = "baseline"
	SourceNone     ShareSource = "none"
)

// Allocation is the projected production of one (line, formulation, width).
type Allocation struct {
	Line         string      `json:"line"`
	Formulation  string      `json:"formulation"`
	Width        Width       `json:"width"`
	KgPerHour    float64     `json:"kg_per_hour"`
	RateDefined  bool        `json:"rate_defined"`
	Hours        float64     `json:"hours"`
	ShareFormula float64     `json:"share_formula"`
	WidthShare   float64     `json:"width_share"`
	ShareSource  ShareSource `json:"share_source"`
	ProjectedKg  float64     `json:"projected_kg"`
}

// widthShareFunc is one step of the width share fallback chain.
type widthShareFunc func(fs FormulationShare, mix BaselineMix, key RateKey) (float64, bool)

func explicitWidthShare(fs FormulationShare, _ BaselineMix, key RateKey) (float64, bool) {
	return fs.WidthShare(key.Width)
}

func baselineWidthShare(_ FormulationShare, mix BaselineMix, key RateKey) (float64, bool) {
	return mix.Share(key)
}

// widthShareChain is tried left to right; when every step misses the share is 0.
var widthShareChain = []struct {
	source  ShareSource
	resolve widthShareFunc
}{
	{SourceScenario, explicitWidthShare},
	{SourceBaseline, baselineWidthShare},
}

func resolveWidthShare(fs FormulationShare, mix BaselineMix, key RateKey) (float64, ShareSource) {
	for _, step := range widthShareChain {
		if share, ok := step.resolve(fs, mix, key); ok {
			return share, step.source
		}
	}
	return 0, SourceNone
}

// Allocate projects production for every width with history under each
// scenario formulation. A row is emitted even when the projection is zero;
// keys without a defined rate always project zero.
func Allocate(rates RateMap, s Scenario, params OperatingParameters, mix BaselineMix) []Allocation {
	widths := rates.widthsByMix()

	var out []Allocation
	for _, line := range s.Lines() {
		hours := params.Hours(line)
		for _, form := range s.Formulations(line) {
			fs, _ := s.Share(line, form)
			for _, w := range widths[MixKey{Line: line, Formulation: form}] {
				key := RateKey{Line: line, Formulation: form, Width: w}
				rate := rates[key]
				share, source := resolveWidthShare(fs, mix, key)

				a := Allocation{
					Line:         line,
					Formulation:  form,
					Width:        w,
					KgPerHour:    rate.KgPerHour,
					RateDefined:  rate.Defined,
					Hours:        hours,
					ShareFormula: fs.ShareFormula,
					WidthShare:   share,
					ShareSource:  source,
				}
				if rate.Defined {
					a.ProjectedKg = rate.KgPerHour * hours * share * fs.ShareFormula
				}
				out = append(out, a)
			}
		}
	}
	return out
}
