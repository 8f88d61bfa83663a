package capacity

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMissingInput is returned when there are no production records to aggregate
// or the source lacks one of the required columns.
var ErrMissingInput = errors.New("missing production input")

// ProductionRecord is one historical production run.
// Empty Line/Formulation values and a null Width are kept as their own groups.
type ProductionRecord struct {
	Line        string  `json:"line"`
	Formulation string  `json:"formulation"`
	Width       Width   `json:"width"`
	WeightKg    float64 `json:"weight_kg"`
	RunTimeH    float64 `json:"run_time_h"`
}

// Width is a product width in millimeters. Null marks a record whose width cell was empty.
type Width struct {
	MM   float64
	Null bool
}

// NullWidth is the width of records with no width value.
var NullWidth = Width{Null: true}

// MM returns a known width.
func MM(mm float64) Width {
	return Width{MM: mm}
}

// ParseWidth parses a width cell. Blank input yields NullWidth.
func ParseWidth(raw string) (Width, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NullWidth, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Width{}, fmt.Errorf("parse width %q: %w", raw, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Width{}, fmt.Errorf("parse width %q: not a finite number", raw)
	}
	return MM(v), nil
}

func (w Width) String() string {
	if w.Null {
		return "(null)"
	}
	return strconv.FormatFloat(w.MM, 'f', -1, 64)
}

// MarshalJSON encodes a known width as a number and a null width as null.
func (w Width) MarshalJSON() ([]byte, error) {
	if w.Null {
		return []byte("null"), nil
	}
	return json.Marshal(w.MM)
}

func (w *Width) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*w = NullWidth
		return nil
	}
	var mm float64
	if err := json.Unmarshal(data, &mm); err != nil {
		return fmt.Errorf("decode width: %w", err)
	}
	*w = MM(mm)
	return nil
}

// compareWidth orders widths ascending with the null width last.
func compareWidth(a, b Width) int {
	switch {
	case a.Null && b.Null:
		return 0
	case a.Null:
		return 1
	case b.Null:
		return -1
	}
	return cmp.Compare(a.MM, b.MM)
}

// RateKey identifies one (line, formulation, width) combination.
type RateKey struct {
	Line        string
	Formulation string
	Width       Width
}

// MixKey identifies one (line, formulation) group.
type MixKey struct {
	Line        string
	Formulation string
}

func (k RateKey) Mix() MixKey {
	return MixKey{Line: k.Line, Formulation: k.Formulation}
}

func compareRateKey(a, b RateKey) int {
	if c := cmp.Compare(a.Line, b.Line); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Formulation, b.Formulation); c != 0 {
		return c
	}
	return compareWidth(a.Width, b.Width)
}
