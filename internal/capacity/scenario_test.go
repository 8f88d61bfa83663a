package capacity

import (
	"errors"
	"math"
	"testing"
)

func TestBuild_FlatAndDetailedNormalizeTheSame(t *testing.T) {
	flat, err := NewScenarioBuilder("flat").Add("L1", "F1", Flat(1)).Build()
	if err != nil {
		t.Fatalf("build flat: %v", err)
	}
	detailed, err := NewScenarioBuilder("detailed").Add("L1", "F1", Detailed{}).Build()
	if err != nil {
		t.Fatalf("build detailed: %v", err)
	}

	a, _ := flat.Share("L1", "F1")
	b, _ := detailed.Share("L1", "F1")
	if a.ShareFormula != b.ShareFormula || a.HasWidths() != b.HasWidths() {
		t.Fatalf("flat %+v and detailed %+v should normalize identically", a, b)
	}
	if b.ShareFormula != 1.0 {
		t.Fatalf("detailed without share_formula = %v, want 1.0", b.ShareFormula)
	}
}

func TestBuild_LaterTuplesWin(t *testing.T) {
	s, err := NewScenarioBuilder("s").
		Formula("L1", "F1", 0.2).
		Width("L1", "F1", MM(200), 0.1).
		Formula("L1", "F1", 0.7).
		Width("L1", "F1", MM(200), 0.6).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	fs, ok := s.Share("L1", "F1")
	if !ok {
		t.Fatalf("expected F1 on L1")
	}
	nearlyEqual(t, "share formula", fs.ShareFormula, 0.7)
	share, _ := fs.WidthShare(MM(200))
	nearlyEqual(t, "200mm", share, 0.6)
	if len(s.Entries()) != 4 {
		t.Fatalf("expected raw entries to be kept, got %d", len(s.Entries()))
	}
}

func TestBuild_RejectsOutOfRangeShares(t *testing.T) {
	cases := map[string]*ScenarioBuilder{
		"negative formula": NewScenarioBuilder("s").Formula("L1", "F1", -0.1),
		"formula above 1":  NewScenarioBuilder("s").Formula("L1", "F1", 1.5),
		"NaN width":        NewScenarioBuilder("s").Width("L1", "F1", MM(200), math.NaN()),
		"width above 1":    NewScenarioBuilder("s").Width("L1", "F1", MM(200), 2),
	}
	for name, b := range cases {
		if _, err := b.Build(); !errors.Is(err, ErrShareOutOfRange) {
			t.Fatalf("%s: err = %v, want ErrShareOutOfRange", name, err)
		}
	}
}

func TestBuild_RejectsWidthEntryWithoutShare(t *testing.T) {
	w := MM(200)
	_, err := NewScenarioBuilder("s").Append(ShareEntry{Line: "L1", Formulation: "F1", Width: &w}).Build()
	if err == nil {
		t.Fatalf("expected error for width entry without share")
	}
}

func TestScenario_OrderIsSorted(t *testing.T) {
	s, err := NewScenarioBuilder("s").
		Add("L2", "F9", Flat(0.5)).
		Add("L1", "F2", Flat(0.5)).
		Add("L2", "F1", Flat(0.5)).
		Add("L1", "F1", Flat(0.5)).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	lines := s.Lines()
	if len(lines) != 2 || lines[0] != "L1" || lines[1] != "L2" {
		t.Fatalf("unexpected lines: %v", lines)
	}
	forms := s.Formulations("L2")
	if len(forms) != 2 || forms[0] != "F1" || forms[1] != "F9" {
		t.Fatalf("unexpected formulations: %v", forms)
	}
}

func TestValidateShares_WidthSums(t *testing.T) {
	valid, err := NewScenarioBuilder("valid").Add("L1", "F1", Detailed{
		Widths: map[Width]float64{MM(200): 0.4, MM(220): 0.6},
	}).Build()
	if err != nil {
		t.Fatalf("build valid: %v", err)
	}
	if diags := ValidateShares(valid); len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", diags)
	}

	short, err := NewScenarioBuilder("short").Add("L1", "F1", Detailed{
		Widths: map[Width]float64{MM(200): 0.4, MM(220): 0.4},
	}).Build()
	if err != nil {
		t.Fatalf("build short: %v", err)
	}
	diags := ValidateShares(short)
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %+v", diags)
	}
	d := diags[0]
	if d.Kind != KindWidthSum || d.Severity != SeverityAdvisory || d.Line != "L1" || d.Formulation != "F1" {
		t.Fatalf("unexpected diagnostic: %+v", d)
	}
	nearlyEqual(t, "observed sum", d.ObservedSum, 0.8)
}

func TestValidateShares_FormulaSumIsBlocking(t *testing.T) {
	s, err := NewScenarioBuilder("s").
		Add("L1", "F1", Flat(0.5)).
		Add("L1", "F2", Flat(0.3)).
		Add("L2", "F1", Flat(0.4)).
		Add("L2", "F2", Flat(0.6)).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	diags := ValidateShares(s)
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %+v", diags)
	}
	if diags[0].Kind != KindFormulaSum || diags[0].Severity != SeverityBlocking || diags[0].Line != "L1" {
		t.Fatalf("unexpected diagnostic: %+v", diags[0])
	}
	nearlyEqual(t, "observed sum", diags[0].ObservedSum, 0.8)
	if !HasBlocking(diags) {
		t.Fatalf("expected HasBlocking to be true")
	}
}

func TestValidateShares_ToleranceAndNoWidths(t *testing.T) {
	s, err := NewScenarioBuilder("s").
		Add("L1", "F1", Flat(0.6)).
		Add("L1", "F2", Flat(0.3995)).
		Add("L2", "F1", Detailed{}).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if diags := ValidateShares(s); len(diags) != 0 {
		t.Fatalf("expected sums within tolerance and no width checks, got %+v", diags)
	}
}

func TestCheckCoverage_FlagsFormulationWithoutHistory(t *testing.T) {
	rates := AggregateRates([]ProductionRecord{rec("L1", "F1", 200, 100, 1)})
	s, err := NewScenarioBuilder("s").Add("L1", "F1", Flat(0.5)).Add("L1", "NEW", Flat(0.5)).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	diags := CheckCoverage(s, rates)
	if len(diags) != 1 || diags[0].Formulation != "NEW" || diags[0].Kind != KindUnknownFormulation {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
	if HasBlocking(diags) {
		t.Fatalf("coverage diagnostics should be advisory")
	}
}
