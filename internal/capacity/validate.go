package capacity

import (
	"fmt"
	"math"
)

// ShareTolerance is how far a share sum may be from 1.0 and still count as valid.
const ShareTolerance = 0.001

// DiagnosticKind names the check that produced a Diagnostic.
type DiagnosticKind string

const (
	KindFormulaSum         DiagnosticKind = "formula-sum"
	KindWidthSum           DiagnosticKind = "width-sum"
	KindUnknownFormulation DiagnosticKind = "unknown-formulation"
)

type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityAdvisory Severity = "advisory"
)

// Diagnostic reports a scenario inconsistency. Diagnostics never stop a run;
// blocking ones are meant to be shown to the user before results are trusted.
type Diagnostic struct {
	Line        string         `json:"line"`
	Formulation string         `json:"formulation,omitempty"`
	Kind        DiagnosticKind `json:"kind"`
	ObservedSum float64        `json:"observed_sum"`
	Severity    Severity       `json:"severity"`
	Message     string         `json:"message"`
}

// ValidateShares checks that formulation shares sum to 1.0 per line and that
// explicit width shares sum to 1.0 per formulation.
func ValidateShares(s Scenario) []Diagnostic {
	var diags []Diagnostic
	for _, line := range s.Lines() {
		var formulaSum float64
		for _, form := range s.Formulations(line) {
			fs, _ := s.Share(line, form)
			formulaSum += fs.ShareFormula

			if !fs.HasWidths() {
				continue
			}
			var widthSum float64
			for _, w := range fs.Widths() {
				share, _ := fs.WidthShare(w)
				widthSum += share
			}
			if !withinTolerance(widthSum) {
				diags = append(diags, Diagnostic{
					Line:        line,
					Formulation: form,
					Kind:        KindWidthSum,
					ObservedSum: widthSum,
					Severity:    SeverityAdvisory,
					Message:     fmt.Sprintf("width shares of %s on %s sum to %.1f%%", form, line, widthSum*100),
				})
			}
		}
		if !withinTolerance(formulaSum) {
			diags = append(diags, Diagnostic{
				Line:        line,
				Kind:        KindFormulaSum,
				ObservedSum: formulaSum,
				Severity:    SeverityBlocking,
				Message:     fmt.Sprintf("formulation shares on %s sum to %.1f%%", line, formulaSum*100),
			})
		}
	}
	return diags
}

// CheckCoverage flags scenario formulations that have no production history on
// their line. They can only ever project zero.
func CheckCoverage(s Scenario, rates RateMap) []Diagnostic {
	known := make(map[MixKey]bool)
	for key := range rates {
		known[key.Mix()] = true
	}

	var diags []Diagnostic
	for _, line := range s.Lines() {
		for _, form := range s.Formulations(line) {
			if known[MixKey{Line: line, Formulation: form}] {
				continue
			}
			fs, _ := s.Share(line, form)
			diags = append(diags, Diagnostic{
				Line:        line,
				Formulation: form,
				Kind:        KindUnknownFormulation,
				ObservedSum: fs.ShareFormula,
				Severity:    SeverityAdvisory,
				Message:     fmt.Sprintf("no production history for %s on %s", form, line),
			})
		}
	}
	return diags
}

// HasBlocking reports whether any diagnostic is blocking.
func HasBlocking(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityBlocking {
			return true
		}
	}
	return false
}

func withinTolerance(sum float64) bool {
	// 1e-12 absorbs float error when a sum lands exactly on the tolerance.
	return math.Abs(sum-1.0) <= ShareTolerance+1e-12
}
