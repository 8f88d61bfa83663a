package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/Simplici0/extrusion-capacity/internal/capacity"
)

func sampleRecords() []capacity.ProductionRecord {
	return []capacity.ProductionRecord{
		{Line: "4027/EXBA01", Formulation: "YB206", Width: capacity.MM(200), WeightKg: 1000, RunTimeH: 10},
		{Line: "4027/EXBA01", Formulation: "YB206", Width: capacity.MM(220), WeightKg: 1200, RunTimeH: 10},
		{Line: "4027/EXBA02", Formulation: "YL206N", Width: capacity.NullWidth, WeightKg: 500, RunTimeH: 0},
	}
}

func sampleReport(t *testing.T) capacity.Report {
	t.Helper()

	s, err := capacity.NewScenarioBuilder("with_widths").
		Add("4027/EXBA01", "YB206", capacity.Detailed{Widths: map[capacity.Width]float64{
			capacity.MM(200): 0.4,
			capacity.MM(220): 0.6,
		}}).
		Add("4027/EXBA02", "YL206N", capacity.Flat(0.5)).
		Build()
	if err != nil {
		t.Fatalf("build scenario: %v", err)
	}
	rep, err := capacity.Run(sampleRecords(), s, capacity.DefaultOperating())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return rep
}

func TestFormatKg(t *testing.T) {
	cases := map[float64]string{
		0:          "0",
		999.4:      "999",
		27360:      "27,360",
		1234567.8:  "1,234,568",
		-76608.2:   "-76,608",
		1000000000: "1,000,000,000",
	}
	for in, want := range cases {
		if got := FormatKg(in); got != want {
			t.Fatalf("FormatKg(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleReport(t)); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Scenario: with_widths",
		"Uptime: 95.0%",
		"Total projected: 76,608 kg",
		"TOTAL 2 Linhas",
		"Warnings:",
		"[blocking] formulation shares on 4027/EXBA02 sum to 50.0%",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	rep := sampleReport(t)

	var buf bytes.Buffer
	if err := WriteJSON(&buf, rep); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var back capacity.Report
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Rollups.GrandTotal != rep.Rollups.GrandTotal || len(back.Detail) != len(rep.Detail) {
		t.Fatalf("decoded report differs: %+v", back.Rollups)
	}
	if back.Rates[2].Width != capacity.NullWidth {
		t.Fatalf("null width lost in JSON: %+v", back.Rates[2])
	}
	if _, err := back.Plan(); err != nil {
		t.Fatalf("rebuild scenario from JSON: %v", err)
	}
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, sampleReport(t), sampleRecords()); err != nil {
		t.Fatalf("WriteWorkbook: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	want := []string{SheetAssumptions, SheetRates, SheetMix, SheetBase, SheetDetail, SheetTotals, SheetDiagnostics}
	if got := f.GetSheetList(); !slices.Equal(got, want) {
		t.Fatalf("sheets = %v, want %v", got, want)
	}

	rows, err := f.GetRows(SheetTotals, excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatalf("read totals: %v", err)
	}
	if rows[0][0] != "Work Center" || rows[1][0] != "4027/EXBA01" {
		t.Fatalf("unexpected totals header: %v", rows[:2])
	}
	if rows[3][0] != "TOTAL 2 Linhas" || rows[3][1] != "76608" {
		t.Fatalf("unexpected total row: %v", rows[3])
	}
	// Line table: header + 2 lines + total, then two blank rows.
	if rows[6][0] != "Formulation" {
		t.Fatalf("formulation table should start at row 7, got %v", rows[6])
	}

	base, err := f.GetRows(SheetBase)
	if err != nil {
		t.Fatalf("read base: %v", err)
	}
	if len(base) != 4 {
		t.Fatalf("expected header + 3 records in Base, got %d rows", len(base))
	}

	premissas, err := f.GetRows(SheetAssumptions)
	if err != nil {
		t.Fatalf("read assumptions: %v", err)
	}
	var described bool
	for _, row := range premissas {
		if len(row) == 2 && row[0] == "4027/EXBA01" && row[1] == "YB206: 100.0% [200: 40.0%, 220: 60.0%]" {
			described = true
		}
	}
	if !described {
		t.Fatalf("scenario not described in %s: %v", SheetAssumptions, premissas)
	}
}

func TestWriteWorkbook_WithoutRecordsSkipsBase(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, sampleReport(t), nil); err != nil {
		t.Fatalf("WriteWorkbook: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	if slices.Contains(f.GetSheetList(), SheetBase) {
		t.Fatalf("Base sheet should be omitted without records")
	}
}

func TestWriteCharts(t *testing.T) {
	dir := t.TempDir()

	paths, err := WriteCharts(dir, sampleReport(t))
	if err != nil {
		t.Fatalf("WriteCharts: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 charts, got %v", paths)
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s is empty", p)
		}
	}
	if paths[0] != filepath.Join(dir, LineChartFile) {
		t.Fatalf("unexpected first chart %s", paths[0])
	}
}
