package scenarios

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Simplici0/extrusion-capacity/internal/capacity"
)

func TestNames(t *testing.T) {
	names := Names()
	if len(names) != 2 || names[0] != "base" || names[1] != "with_widths" {
		t.Fatalf("unexpected built-in scenarios: %v", names)
	}
}

func TestBuiltin_Base(t *testing.T) {
	def, err := Builtin("base")
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	s := def.Scenario
	if s.Name() != "base" {
		t.Fatalf("name = %q, want base", s.Name())
	}
	if len(s.Lines()) != 4 {
		t.Fatalf("expected 4 lines, got %v", s.Lines())
	}

	forms := s.Formulations("4027/EXBA02")
	if len(forms) != 2 || forms[0] != "YB206" || forms[1] != "YL206N" {
		t.Fatalf("unexpected formulations on EXBA02: %v", forms)
	}
	yl, _ := s.Share("4027/EXBA02", "YL206N")
	if yl.ShareFormula != 0 || yl.HasWidths() {
		t.Fatalf("unexpected YL206N share: %+v", yl)
	}
	if diags := capacity.ValidateShares(s); len(diags) != 0 {
		t.Fatalf("base scenario should be consistent, got %+v", diags)
	}
	if def.Operating != nil {
		t.Fatalf("base scenario has no operating block")
	}
}

func TestBuiltin_WithWidths(t *testing.T) {
	def, err := Builtin("with_widths")
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	s := def.Scenario

	fs, ok := s.Share("4027/EXBA03", "YB206")
	if !ok {
		t.Fatalf("expected YB206 on EXBA03")
	}
	if len(fs.Widths()) != 7 {
		t.Fatalf("expected 7 widths, got %v", fs.Widths())
	}
	if share, _ := fs.WidthShare(capacity.MM(430)); share != 0.8 {
		t.Fatalf("430mm share = %v, want 0.8", share)
	}

	diags := capacity.ValidateShares(s)
	if len(diags) != 1 {
		t.Fatalf("expected only the YL206N width diagnostic, got %+v", diags)
	}
	if diags[0].Formulation != "YL206N" || diags[0].Kind != capacity.KindWidthSum {
		t.Fatalf("unexpected diagnostic: %+v", diags[0])
	}
}

func TestBuiltin_Unknown(t *testing.T) {
	if _, err := Builtin("nope"); !errors.Is(err, ErrUnknownScenario) {
		t.Fatalf("err = %v, want ErrUnknownScenario", err)
	}
}

func TestDecode_MixedShapesAndOperating(t *testing.T) {
	data := []byte(`
operating:
  uptime: 0.9
  lines:
    L2:
      days: 15
lines:
  L1:
    F1: 0.5
    F2:
      widths:
        200: 0.25
        ~: 0.75
  L2:
    F1:
      share_formula: 1
`)

	def, err := Decode(data, "custom")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	s := def.Scenario
	if s.Name() != "custom" {
		t.Fatalf("name = %q, want custom", s.Name())
	}

	f2, _ := s.Share("L1", "F2")
	if f2.ShareFormula != 1.0 {
		t.Fatalf("missing share_formula should default to 1.0, got %v", f2.ShareFormula)
	}
	if share, ok := f2.WidthShare(capacity.NullWidth); !ok || share != 0.75 {
		t.Fatalf("null width share = %v, %v", share, ok)
	}

	if def.Operating == nil {
		t.Fatalf("expected operating parameters")
	}
	if got := def.Operating.For("L1"); got.Uptime != 0.9 || got.Days != capacity.DefaultDays {
		t.Fatalf("L1 shift = %+v", got)
	}
	if got := def.Operating.For("L2"); got.Uptime != 0.9 || got.Days != 15 {
		t.Fatalf("L2 shift = %+v", got)
	}
}

func TestDecode_LaterEntriesWin(t *testing.T) {
	data := []byte(`
lines:
  L1:
    F1: 0.2
    F1: 0.8
`)
	def, err := Decode(data, "dup")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	fs, _ := def.Scenario.Share("L1", "F1")
	if fs.ShareFormula != 0.8 {
		t.Fatalf("share = %v, want 0.8", fs.ShareFormula)
	}
}

func TestDecode_Errors(t *testing.T) {
	cases := map[string]string{
		"share out of range": "lines: {L1: {F1: 1.5}}",
		"not a number":       "lines: {L1: {F1: lots}}",
		"bad width":          "lines: {L1: {F1: {widths: {wide: 1}}}}",
		"formulations list":  "lines: {L1: [F1]}",
		"bad uptime":         "operating: {uptime: 2}\nlines: {L1: {F1: 1}}",
		"empty share":        "lines: {L1: {F1: ~}}",
		"empty width share":  "lines: {L1: {F1: {widths: {200: ~}}}}",
		"blank width share":  "lines:\n  L1:\n    F1:\n      widths:\n        220:\n",
		"empty formula":      "lines: {L1: {F1: {share_formula: ~}}}",
		"unknown key":        "lines: {L1: {F1: {share: 0.3}}}",
	}
	for name, data := range cases {
		if _, err := Decode([]byte(data), "x"); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	if _, err := Decode([]byte("lines: {L1: {F1: 1.5}}"), "x"); !errors.Is(err, capacity.ErrShareOutOfRange) {
		t.Fatalf("err = %v, want ErrShareOutOfRange", err)
	}
}

func TestLoadAndResolve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "next_month.yaml")
	if err := os.WriteFile(path, []byte("lines: {L1: {F1: 1}}\n"), 0o600); err != nil {
		t.Fatalf("write scenario: %v", err)
	}

	def, err := Resolve(path)
	if err != nil {
		t.Fatalf("Resolve path: %v", err)
	}
	if def.Scenario.Name() != "next_month" {
		t.Fatalf("name = %q, want next_month", def.Scenario.Name())
	}

	def, err = Resolve("base")
	if err != nil {
		t.Fatalf("Resolve builtin: %v", err)
	}
	if def.Scenario.Name() != "base" {
		t.Fatalf("name = %q, want base", def.Scenario.Name())
	}
}
