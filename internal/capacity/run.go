package capacity

import "fmt"

// RateRow is a RateMap entry in report form.
type RateRow struct {
	Line        string `json:"line"`
	Formulation string `json:"formulation"`
	Width       Width  `json:"width"`
	RunRate
}

// MixRow is a BaselineMix entry in report form.
type MixRow struct {
	Line        string  `json:"line"`
	Formulation string  `json:"formulation"`
	Width       Width   `json:"width"`
	WeightKg    float64 `json:"weight_kg"`
	Share       float64 `json:"share"`
}

// Report is everything one run derives from its inputs, in stable order.
type Report struct {
	Scenario    string              `json:"scenario"`
	Shares      []ShareEntry        `json:"shares"`
	Operating   OperatingParameters `json:"operating"`
	Records     int                 `json:"records"`
	Rates       []RateRow           `json:"rates"`
	Baseline    []MixRow            `json:"baseline"`
	Detail      []Allocation        `json:"detail"`
	Rollups     Rollups             `json:"rollups"`
	Diagnostics []Diagnostic        `json:"diagnostics"`
}

// Run executes the whole pipeline from scratch. Only missing input and invalid
// operating parameters are errors; share problems are reported as diagnostics.
func Run(records []ProductionRecord, s Scenario, params OperatingParameters) (Report, error) {
	if len(records) == 0 {
		return Report{}, fmt.Errorf("run scenario %q: no production records: %w", s.Name(), ErrMissingInput)
	}
	if err := params.Validate(); err != nil {
		return Report{}, fmt.Errorf("run scenario %q: %w", s.Name(), err)
	}

	rates := AggregateRates(records)
	mix := ResolveBaselineMix(records)

	diags := ValidateShares(s)
	diags = append(diags, CheckCoverage(s, rates)...)

	allocs := Allocate(rates, s, params, mix)

	return Report{
		Scenario:    s.Name(),
		Shares:      s.Entries(),
		Operating:   params,
		Records:     len(records),
		Rates:       rateRows(rates),
		Baseline:    mixRows(rates, mix),
		Detail:      allocs,
		Rollups:     Rollup(allocs),
		Diagnostics: diags,
	}, nil
}

func rateRows(rates RateMap) []RateRow {
	keys := rates.Keys()
	rows := make([]RateRow, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, RateRow{Line: key.Line, Formulation: key.Formulation, Width: key.Width, RunRate: rates[key]})
	}
	return rows
}

func mixRows(rates RateMap, mix BaselineMix) []MixRow {
	keys := rates.Keys()
	rows := make([]MixRow, 0, len(keys))
	for _, key := range keys {
		share, _ := mix.Share(key)
		rows = append(rows, MixRow{
			Line:        key.Line,
			Formulation: key.Formulation,
			Width:       key.Width,
			WeightKg:    rates[key].WeightKg,
			Share:       share,
		})
	}
	return rows
}

// Plan rebuilds the scenario the report was produced from.
func (r Report) Plan() (Scenario, error) {
	return NewScenarioBuilder(r.Scenario).Append(r.Shares...).Build()
}
