package capacity

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func twoWidthRecords() []ProductionRecord {
	return []ProductionRecord{
		rec("L", "F", 200, 600, 6),
		rec("L", "F", 200, 400, 4),
		rec("L", "F", 220, 1200, 10),
	}
}

func TestRun_SingleWidthProjection(t *testing.T) {
	s, err := NewScenarioBuilder("s").Add("L", "F", Detailed{
		Widths: map[Width]float64{MM(200): 0.4},
	}).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	report, err := Run([]ProductionRecord{rec("L", "F", 200, 1000, 10)}, s, DefaultOperating())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(report.Detail) != 1 {
		t.Fatalf("expected 1 detail row, got %d", len(report.Detail))
	}
	a := report.Detail[0]
	nearlyEqual(t, "kg/h", a.KgPerHour, 100)
	nearlyEqual(t, "hours", a.Hours, 684)
	nearlyEqual(t, "projected", a.ProjectedKg, 27360)
}

func TestRun_TwoWidthScenario(t *testing.T) {
	s, err := NewScenarioBuilder("s").Add("L", "F", Detailed{
		Widths: map[Width]float64{MM(200): 0.4, MM(220): 0.6},
	}).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	report, err := Run(twoWidthRecords(), s, DefaultOperating())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	nearlyEqual(t, "200mm", report.Detail[0].ProjectedKg, 27360)
	nearlyEqual(t, "220mm", report.Detail[1].ProjectedKg, 49248)

	if len(report.Rollups.ByFormulation) != 1 {
		t.Fatalf("expected 1 formulation row, got %+v", report.Rollups.ByFormulation)
	}
	nearlyEqual(t, "formulation total", report.Rollups.ByFormulation[0].ProjectedKg, 76608)
	nearlyEqual(t, "grand total", report.Rollups.GrandTotal, 76608)

	lines := report.Rollups.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected 1 line row, got %+v", lines)
	}
	nearlyEqual(t, "line share", lines[0].MixShare, 1)
	if len(report.Diagnostics) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", report.Diagnostics)
	}
}

func TestRun_ZeroRunTimeKeyIsListedButNeverProjected(t *testing.T) {
	records := append(twoWidthRecords(), rec("L", "F", 240, 500, 0))
	s, err := NewScenarioBuilder("s").Add("L", "F", Flat(1)).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	report, err := Run(records, s, DefaultOperating())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var listed bool
	for _, row := range report.Rates {
		if row.Width == MM(240) {
			listed = true
			if row.Defined {
				t.Fatalf("expected 240mm rate to be undefined: %+v", row)
			}
			nearlyEqual(t, "240mm weight", row.WeightKg, 500)
		}
	}
	if !listed {
		t.Fatalf("expected 240mm to appear in the rate table")
	}

	for _, a := range report.Detail {
		if a.Width == MM(240) && a.ProjectedKg != 0 {
			t.Fatalf("240mm projected %v, want 0", a.ProjectedKg)
		}
	}
}

func TestRun_IsIdempotent(t *testing.T) {
	records := append(twoWidthRecords(),
		rec("L2", "F", 300, 900, 3),
		rec("L2", "G", 310, 100, 2),
		ProductionRecord{Line: "L2", Formulation: "G", Width: NullWidth, WeightKg: 50, RunTimeH: 1},
	)
	s, err := NewScenarioBuilder("s").
		Add("L", "F", Detailed{Widths: map[Width]float64{MM(200): 0.4, MM(220): 0.4}}).
		Add("L2", "F", Flat(0.6)).
		Add("L2", "G", Flat(0.3)).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	first, err := Run(records, s, DefaultOperating())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := Run(records, s, DefaultOperating())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal first: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal second: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("outputs differ:\n%s\n%s", a, b)
	}
	if len(first.Diagnostics) != 2 {
		t.Fatalf("expected width-sum and formula-sum diagnostics, got %+v", first.Diagnostics)
	}
}

func TestRun_MissingInput(t *testing.T) {
	s, _ := NewScenarioBuilder("s").Add("L", "F", Flat(1)).Build()
	if _, err := Run(nil, s, DefaultOperating()); !errors.Is(err, ErrMissingInput) {
		t.Fatalf("err = %v, want ErrMissingInput", err)
	}
}

func TestRun_InvalidParameters(t *testing.T) {
	s, _ := NewScenarioBuilder("s").Add("L", "F", Flat(1)).Build()
	params := OperatingParameters{Default: Shift{Uptime: 2, Days: 30}}
	if _, err := Run(twoWidthRecords(), s, params); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("err = %v, want ErrInvalidParameters", err)
	}
}

func TestWidthJSON(t *testing.T) {
	out, err := json.Marshal([]Width{MM(200), NullWidth, MM(212.5)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "[200,null,212.5]" {
		t.Fatalf("unexpected JSON %s", out)
	}

	var back []Width
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back[0] != MM(200) || back[1] != NullWidth || back[2] != MM(212.5) {
		t.Fatalf("unexpected widths %+v", back)
	}
}

func TestReportPlan_KeepsNullWidthEntries(t *testing.T) {
	s, err := NewScenarioBuilder("s").
		Declare("L", "F").
		Width("L", "F", NullWidth, 0.25).
		Width("L", "F", MM(200), 0.75).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	report, err := Run(twoWidthRecords(), s, DefaultOperating())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Report
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	plan, err := back.Plan()
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	fs, ok := plan.Share("L", "F")
	if !ok {
		t.Fatalf("expected L/F in rebuilt plan")
	}
	if share, ok := fs.WidthShare(NullWidth); !ok || share != 0.25 {
		t.Fatalf("null width share = %v ok=%v, want 0.25", share, ok)
	}
	if len(plan.Entries()) != 3 || plan.Entries()[0].Width != nil {
		t.Fatalf("unexpected entries %+v", plan.Entries())
	}
}
