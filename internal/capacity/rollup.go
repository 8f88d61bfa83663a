package capacity

import (
	"cmp"
	"slices"
)

// TotalLabel is the line name of the synthetic grand total row.
const TotalLabel = "TOTAL"

type LineTotal struct {
	Line        string  `json:"line"`
	ProjectedKg float64 `json:"projected_kg"`
	MixShare    float64 `json:"mix_share"`
	Total       bool    `json:"total,omitempty"`
}

type FormulationTotal struct {
	Formulation string  `json:"formulation"`
	ProjectedKg float64 `json:"projected_kg"`
	MixShare    float64 `json:"mix_share"`
}

type FormulationWidthTotal struct {
	Formulation string  `json:"formulation"`
	Width       Width   `json:"width"`
	ProjectedKg float64 `json:"projected_kg"`
	MixShare    float64 `json:"mix_share"`
}

// Rollups holds projected production summed at three granularities.
// ByLine ends with a synthetic row (Total set) carrying the grand total.
type Rollups struct {
	ByLine             []LineTotal             `json:"by_line"`
	ByFormulation      []FormulationTotal      `json:"by_formulation"`
	ByFormulationWidth []FormulationWidthTotal `json:"by_formulation_width"`
	GrandTotal         float64                 `json:"grand_total"`
}

type formWidthKey struct {
	Formulation string
	Width       Width
}

// Rollup sums allocations by line, by formulation and by formulation+width and
// annotates each row with its share of the grand total (0 when the total is 0).
func Rollup(allocs []Allocation) Rollups {
	byLine := make(map[string]float64)
	byForm := make(map[string]float64)
	byFormWidth := make(map[formWidthKey]float64)

	var grand float64
	for _, a := range allocs {
		byLine[a.Line] += a.ProjectedKg
		byForm[a.Formulation] += a.ProjectedKg
		byFormWidth[formWidthKey{a.Formulation, a.Width}] += a.ProjectedKg
		grand += a.ProjectedKg
	}

	share := func(kg float64) float64 {
		if grand == 0 {
			return 0
		}
		return kg / grand
	}

	r := Rollups{GrandTotal: grand}
	for line, kg := range byLine {
		r.ByLine = append(r.ByLine, LineTotal{Line: line, ProjectedKg: kg, MixShare: share(kg)})
	}
	slices.SortFunc(r.ByLine, func(a, b LineTotal) int { return cmp.Compare(a.Line, b.Line) })
	r.ByLine = append(r.ByLine, LineTotal{Line: TotalLabel, ProjectedKg: grand, MixShare: 1.0, Total: true})

	for form, kg := range byForm {
		r.ByFormulation = append(r.ByFormulation, FormulationTotal{Formulation: form, ProjectedKg: kg, MixShare: share(kg)})
	}
	slices.SortFunc(r.ByFormulation, func(a, b FormulationTotal) int { return cmp.Compare(a.Formulation, b.Formulation) })

	for key, kg := range byFormWidth {
		r.ByFormulationWidth = append(r.ByFormulationWidth, FormulationWidthTotal{
			Formulation: key.Formulation,
			Width:       key.Width,
			ProjectedKg: kg,
			MixShare:    share(kg),
		})
	}
	slices.SortFunc(r.ByFormulationWidth, func(a, b FormulationWidthTotal) int {
		if c := cmp.Compare(a.Formulation, b.Formulation); c != 0 {
			return c
		}
		return compareWidth(a.Width, b.Width)
	})

	return r
}

// Lines returns the per-line rows without the grand total row.
func (r Rollups) Lines() []LineTotal {
	rows := make([]LineTotal, 0, len(r.ByLine))
	for _, row := range r.ByLine {
		if !row.Total {
			rows = append(rows, row)
		}
	}
	return rows
}
