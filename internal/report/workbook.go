package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Simplici0/extrusion-capacity/internal/capacity"
)

// Sheet names of the exported workbook.
const (
	SheetAssumptions = "Premissas"
	SheetRates       = "RunRates"
	SheetMix         = "Mix"
	SheetBase        = "Base"
	SheetDetail      = "Resultados_Detalhados"
	SheetTotals      = "Resultados_Totais"
	SheetDiagnostics = "Diagnosticos"
)

const headerFill = "D9E1F2"

var percentFormat = "0.0%"

// sheetWriter keeps the first error so rows can be written without checks in between.
type sheetWriter struct {
	f      *excelize.File
	err    error
	header int
	kg     int
	pct    int
}

func (sw *sheetWriter) row(sheet string, row int, values ...any) {
	if sw.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		sw.err = err
		return
	}
	if err := sw.f.SetSheetRow(sheet, cell, &values); err != nil {
		sw.err = fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
}

func (sw *sheetWriter) headerRow(sheet string, row int, names ...string) {
	values := make([]any, len(names))
	for i, n := range names {
		values[i] = n
	}
	sw.row(sheet, row, values...)
	if sw.err != nil {
		return
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(names), row)
	if err := sw.f.SetCellStyle(sheet, first, last, sw.header); err != nil {
		sw.err = fmt.Errorf("style %s header: %w", sheet, err)
	}
}

func (sw *sheetWriter) column(sheet, col string, width float64, style int) {
	if sw.err != nil {
		return
	}
	if err := sw.f.SetColWidth(sheet, col, col, width); err != nil {
		sw.err = fmt.Errorf("size %s column %s: %w", sheet, col, err)
		return
	}
	if style != 0 {
		if err := sw.f.SetColStyle(sheet, col, style); err != nil {
			sw.err = fmt.Errorf("style %s column %s: %w", sheet, col, err)
		}
	}
}

func (sw *sheetWriter) sheet(name string) {
	if sw.err != nil {
		return
	}
	if _, err := sw.f.NewSheet(name); err != nil {
		sw.err = fmt.Errorf("create sheet %s: %w", name, err)
	}
}

// WriteWorkbook writes the report as an xlsx workbook. records fills the Base
// sheet and may be nil, in which case the sheet is left out.
func WriteWorkbook(w io.Writer, rep capacity.Report, records []capacity.ProductionRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := newSheetWriter(f)
	if err != nil {
		return err
	}

	if err := f.SetSheetName("Sheet1", SheetAssumptions); err != nil {
		return fmt.Errorf("rename default sheet: %w", err)
	}
	if err := writeAssumptions(sw, rep); err != nil {
		return err
	}
	writeRates(sw, rep)
	writeMix(sw, rep)
	if records != nil {
		writeBase(sw, records)
	}
	writeDetail(sw, rep)
	writeTotals(sw, rep)
	if len(rep.Diagnostics) > 0 {
		writeDiagnostics(sw, rep)
	}
	if sw.err != nil {
		return fmt.Errorf("write workbook: %w", sw.err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func newSheetWriter(f *excelize.File) (*sheetWriter, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	kg, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		return nil, fmt.Errorf("create number style: %w", err)
	}
	pct, err := f.NewStyle(&excelize.Style{CustomNumFmt: &percentFormat})
	if err != nil {
		return nil, fmt.Errorf("create percent style: %w", err)
	}
	return &sheetWriter{f: f, header: header, kg: kg, pct: pct}, nil
}

func writeAssumptions(sw *sheetWriter, rep capacity.Report) error {
	s, err := rep.Plan()
	if err != nil {
		return fmt.Errorf("rebuild scenario: %w", err)
	}
	def := rep.Operating.Default

	sw.headerRow(SheetAssumptions, 1, "Item", "Valor")
	rows := [][]any{
		{"Premissas", ""},
		{"Cenário", rep.Scenario},
		{"Uptime", FormatPercent(def.Uptime)},
		{fmt.Sprintf("Tempo de produção (%d dias)", def.Days), fmt.Sprintf("%.1f horas/linha", def.Hours())},
		{"Produção Total Estimada", FormatKg(rep.Rollups.GrandTotal) + " kg"},
	}
	for _, line := range sortedKeys(rep.Operating.Lines) {
		shift := rep.Operating.Lines[line]
		rows = append(rows, []any{"Operação " + line, fmt.Sprintf("%s uptime, %d dias, %.1f horas", FormatPercent(shift.Uptime), shift.Days, shift.Hours())})
	}
	rows = append(rows, []any{"", ""}, []any{"Cenário definido", ""})
	for _, line := range s.Lines() {
		rows = append(rows, []any{label(line), describeLine(s, line)})
	}

	for i, r := range rows {
		sw.row(SheetAssumptions, i+2, r...)
	}
	sw.column(SheetAssumptions, "A", 30, 0)
	sw.column(SheetAssumptions, "B", 80, 0)
	return nil
}

// describeLine renders one scenario line, e.g. "YB206: 100.0% [200: 40.0%, 220: 60.0%]".
func describeLine(s capacity.Scenario, line string) string {
	var parts []string
	for _, form := range s.Formulations(line) {
		fs, _ := s.Share(line, form)
		part := fmt.Sprintf("%s: %s", label(form), FormatPercent(fs.ShareFormula))
		if fs.HasWidths() {
			var widths []string
			for _, w := range fs.Widths() {
				share, _ := fs.WidthShare(w)
				widths = append(widths, fmt.Sprintf("%s: %s", w, FormatPercent(share)))
			}
			part += " [" + strings.Join(widths, ", ") + "]"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "; ")
}

func writeRates(sw *sheetWriter, rep capacity.Report) {
	sw.sheet(SheetRates)
	sw.headerRow(SheetRates, 1, "Work Center", "Formulation", "Width", "Matl Produced, Wgt", "Run Time", "Run Rate (kg/h)")
	for i, r := range rep.Rates {
		var rate any
		if r.Defined {
			rate = r.KgPerHour
		}
		sw.row(SheetRates, i+2, r.Line, r.Formulation, widthCell(r.Width), r.WeightKg, r.RunTimeH, rate)
	}
	sw.column(SheetRates, "A", 18, 0)
	sw.column(SheetRates, "D", 20, sw.kg)
	sw.column(SheetRates, "F", 18, sw.kg)
}

func writeMix(sw *sheetWriter, rep capacity.Report) {
	sw.sheet(SheetMix)
	sw.headerRow(SheetMix, 1, "Work Center", "Formulation", "Width", "Matl Produced, Wgt", "Mix %")
	for i, m := range rep.Baseline {
		sw.row(SheetMix, i+2, m.Line, m.Formulation, widthCell(m.Width), m.WeightKg, m.Share)
	}
	sw.column(SheetMix, "A", 18, 0)
	sw.column(SheetMix, "D", 20, sw.kg)
	sw.column(SheetMix, "E", 12, sw.pct)
}

func writeBase(sw *sheetWriter, records []capacity.ProductionRecord) {
	sw.sheet(SheetBase)
	sw.headerRow(SheetBase, 1, "Work Center", "Formulation", "Width", "Matl Produced, Wgt", "Run Time")
	for i, r := range records {
		sw.row(SheetBase, i+2, r.Line, r.Formulation, widthCell(r.Width), r.WeightKg, r.RunTimeH)
	}
	sw.column(SheetBase, "A", 18, 0)
}

func writeDetail(sw *sheetWriter, rep capacity.Report) {
	sw.sheet(SheetDetail)
	sw.headerRow(SheetDetail, 1, "Work Center", "Formulation", "Width", "Run Rate (kg/h)", "Horas", "Share Formula", "Share Width", "Origem", "Produção Estimada (kg)")
	for i, a := range rep.Detail {
		var rate any
		if a.RateDefined {
			rate = a.KgPerHour
		}
		sw.row(SheetDetail, i+2, a.Line, a.Formulation, widthCell(a.Width), rate, a.Hours, a.ShareFormula, a.WidthShare, string(a.ShareSource), a.ProjectedKg)
	}
	sw.column(SheetDetail, "A", 18, 0)
	sw.column(SheetDetail, "F", 14, sw.pct)
	sw.column(SheetDetail, "G", 14, sw.pct)
	sw.column(SheetDetail, "I", 24, sw.kg)
}

// writeTotals stacks the three rollups with two blank rows between tables and
// adds the formulation pie and the per-line column chart.
func writeTotals(sw *sheetWriter, rep capacity.Report) {
	r := rep.Rollups
	sw.sheet(SheetTotals)
	sw.column(SheetTotals, "A", 25, 0)
	sw.column(SheetTotals, "B", 20, sw.kg)
	sw.column(SheetTotals, "C", 15, sw.pct)
	sw.column(SheetTotals, "D", 20, sw.kg)

	sw.headerRow(SheetTotals, 1, "Work Center", "Produção Estimada (kg)", "Mix %")
	for i, row := range r.ByLine {
		sw.row(SheetTotals, i+2, totalLabel(row, r), row.ProjectedKg, row.MixShare)
	}

	formStart := len(r.ByLine) + 4
	sw.headerRow(SheetTotals, formStart, "Formulation", "Produção Estimada (kg)", "Mix %")
	for i, row := range r.ByFormulation {
		sw.row(SheetTotals, formStart+i+1, row.Formulation, row.ProjectedKg, row.MixShare)
	}

	widthStart := len(r.ByLine) + len(r.ByFormulation) + 7
	sw.headerRow(SheetTotals, widthStart, "Formulation", "Width", "Mix %", "Produção Estimada (kg)")
	for i, row := range r.ByFormulationWidth {
		sw.row(SheetTotals, widthStart+i+1, row.Formulation, widthCell(row.Width), row.MixShare, row.ProjectedKg)
	}

	if sw.err != nil {
		return
	}
	if n := len(r.ByFormulation); n > 0 {
		sw.err = sw.f.AddChart(SheetTotals, "F15", &excelize.Chart{
			Type: excelize.Pie,
			Series: []excelize.ChartSeries{{
				Name:       "Mix por Formulação",
				Categories: fmt.Sprintf("%s!$A$%d:$A$%d", SheetTotals, formStart+1, formStart+n),
				Values:     fmt.Sprintf("%s!$B$%d:$B$%d", SheetTotals, formStart+1, formStart+n),
			}},
			Title:    []excelize.RichTextRun{{Text: "Mix por Formulação (%)"}},
			PlotArea: excelize.ChartPlotArea{ShowPercent: true},
		})
	}
	if n := len(r.Lines()); n > 0 && sw.err == nil {
		categories := fmt.Sprintf("%s!$A$2:$A$%d", SheetTotals, n+1)
		sw.err = sw.f.AddChart(SheetTotals, "F2", &excelize.Chart{
			Type: excelize.Col,
			Series: []excelize.ChartSeries{{
				Name:       "Produção por Linha (kg)",
				Categories: categories,
				Values:     fmt.Sprintf("%s!$B$2:$B$%d", SheetTotals, n+1),
			}},
			Title:    []excelize.RichTextRun{{Text: "Produção Estimada por Linha"}},
			YAxis:    excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: "Produção (kg)"}}},
			PlotArea: excelize.ChartPlotArea{ShowVal: true},
		}, &excelize.Chart{
			Type: excelize.Line,
			Series: []excelize.ChartSeries{{
				Name:       "Participação (%)",
				Categories: categories,
				Values:     fmt.Sprintf("%s!$C$2:$C$%d", SheetTotals, n+1),
			}},
			YAxis: excelize.ChartAxis{Secondary: true, Title: []excelize.RichTextRun{{Text: "Share (%)"}}},
		})
	}
	if sw.err != nil {
		sw.err = fmt.Errorf("add %s charts: %w", SheetTotals, sw.err)
	}
}

func writeDiagnostics(sw *sheetWriter, rep capacity.Report) {
	sw.sheet(SheetDiagnostics)
	sw.headerRow(SheetDiagnostics, 1, "Work Center", "Formulation", "Tipo", "Soma", "Severidade", "Mensagem")
	for i, d := range rep.Diagnostics {
		sw.row(SheetDiagnostics, i+2, d.Line, d.Formulation, string(d.Kind), d.ObservedSum, string(d.Severity), d.Message)
	}
	sw.column(SheetDiagnostics, "D", 10, sw.pct)
	sw.column(SheetDiagnostics, "F", 60, 0)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := slices.Collect(maps.Keys(m))
	slices.Sort(keys)
	return keys
}

func widthCell(w capacity.Width) any {
	if w.Null {
		return nil
	}
	return w.MM
}
