// Package ingest reads historical production records from spreadsheet exports.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Simplici0/extrusion-capacity/internal/capacity"
)

// DefaultSheet is read when present; otherwise the first sheet is used.
const DefaultSheet = "Planilha1"

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Column aliases, lower-cased. The first entry is the ERP export header.
var columns = []struct {
	field   string
	aliases []string
}{
	{"line", []string{"work center", "line"}},
	{"formulation", []string{"formulation"}},
	{"width", []string{"width", "width_mm"}},
	{"weight", []string{"matl produced, wgt", "weight_kg"}},
	{"time", []string{"run time", "run_time_h"}},
}

// Result is what a read produced. Warnings name rows that were skipped.
type Result struct {
	Records  []capacity.ProductionRecord
	Warnings []string
	Sheet    string
}

// ReadFile reads an .xlsx or .csv file.
func ReadFile(path string) (Result, error) {
	switch format(path) {
	case "xlsx":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return Result{}, fmt.Errorf("open workbook %s: %w", path, err)
		}
		defer f.Close()
		return readWorkbook(f)
	case "csv":
		f, err := os.Open(path)
		if err != nil {
			return Result{}, fmt.Errorf("open csv %s: %w", path, err)
		}
		defer f.Close()
		return readCSV(f)
	}
	return Result{}, fmt.Errorf("read %s: %w", path, ErrUnsupportedFormat)
}

// Read reads an upload; name only decides the format.
func Read(r io.Reader, name string) (Result, error) {
	switch format(name) {
	case "xlsx":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return Result{}, fmt.Errorf("open workbook %s: %w", name, err)
		}
		defer f.Close()
		return readWorkbook(f)
	case "csv":
		return readCSV(r)
	}
	return Result{}, fmt.Errorf("read %s: %w", name, ErrUnsupportedFormat)
}

func format(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return "xlsx"
	case ".csv":
		return "csv"
	}
	return ""
}

// rowSource yields rows until io.EOF.
type rowSource interface {
	Next() ([]string, error)
}

type csvRows struct{ r *csv.Reader }

func (c csvRows) Next() ([]string, error) {
	return c.r.Read()
}

type sheetRows struct{ rows *excelize.Rows }

func (s sheetRows) Next() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return s.rows.Columns(excelize.Options{RawCellValue: true})
}

func readCSV(r io.Reader) (Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	return decode(csvRows{reader})
}

func readWorkbook(f *excelize.File) (Result, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Result{}, fmt.Errorf("read workbook: no sheets: %w", capacity.ErrMissingInput)
	}
	sheet := sheets[0]
	if slices.Contains(sheets, DefaultSheet) {
		sheet = DefaultSheet
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return Result{}, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	res, err := decode(sheetRows{rows})
	res.Sheet = sheet
	return res, err
}

func decode(src rowSource) (Result, error) {
	header, err := src.Next()
	if errors.Is(err, io.EOF) {
		return Result{}, fmt.Errorf("read header: empty input: %w", capacity.ErrMissingInput)
	}
	if err != nil {
		return Result{}, fmt.Errorf("read header: %w", err)
	}

	index := mapHeaders(header)
	if missing := missingHeaders(index); len(missing) > 0 {
		return Result{}, fmt.Errorf("missing required headers: %s: %w", strings.Join(missing, ", "), capacity.ErrMissingInput)
	}

	var res Result
	line := 1
	for {
		line++
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("read row %d: %w", line, err)
		}
		if blank(row) {
			continue
		}
		rec, warn := parseRecord(row, index, line)
		if warn != "" {
			res.Warnings = append(res.Warnings, warn)
			continue
		}
		res.Records = append(res.Records, rec)
	}

	if len(res.Records) == 0 {
		return res, fmt.Errorf("no valid production records found: %w", capacity.ErrMissingInput)
	}
	return res, nil
}

// mapHeaders resolves each field to its column through the alias table.
func mapHeaders(header []string) map[string]int {
	seen := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := seen[key]; !dup {
			seen[key] = i
		}
	}

	index := make(map[string]int, len(columns))
	for _, col := range columns {
		for _, alias := range col.aliases {
			if i, ok := seen[alias]; ok {
				index[col.field] = i
				break
			}
		}
	}
	return index
}

func missingHeaders(index map[string]int) []string {
	var missing []string
	for _, col := range columns {
		if _, ok := index[col.field]; !ok {
			missing = append(missing, col.aliases[0])
		}
	}
	return missing
}

func parseRecord(row []string, index map[string]int, line int) (capacity.ProductionRecord, string) {
	rec := capacity.ProductionRecord{
		Line:        cell(row, index["line"]),
		Formulation: cell(row, index["formulation"]),
	}

	width, err := capacity.ParseWidth(cell(row, index["width"]))
	if err != nil {
		return rec, fmt.Sprintf("line %d: %v", line, err)
	}
	rec.Width = width

	if rec.WeightKg, err = parseAmount(cell(row, index["weight"])); err != nil {
		return rec, fmt.Sprintf("line %d: invalid weight: %v", line, err)
	}
	if rec.RunTimeH, err = parseAmount(cell(row, index["time"])); err != nil {
		return rec, fmt.Sprintf("line %d: invalid run time: %v", line, err)
	}
	return rec, ""
}

// parseAmount treats an empty cell as 0, like a sum that skips missing values.
// Weights and run times cannot be negative.
func parseAmount(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a number", raw)
	}
	if v < 0 {
		return 0, fmt.Errorf("%q is negative", raw)
	}
	return v, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
