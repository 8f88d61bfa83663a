// Package report renders capacity reports as workbooks, JSON, text and charts.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/Simplici0/extrusion-capacity/internal/capacity"
)

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, rep capacity.Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(rep); err != nil {
		return fmt.Errorf("write report json: %w", err)
	}
	return nil
}

// WriteText writes a plain-text summary: assumptions, totals and diagnostics.
func WriteText(w io.Writer, rep capacity.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Scenario: %s\n", rep.Scenario)
	fmt.Fprintf(tw, "Uptime: %.1f%%\n", rep.Operating.Default.Uptime*100)
	fmt.Fprintf(tw, "Production time (%d days): %.1f hours/line\n", rep.Operating.Default.Days, rep.Operating.Default.Hours())
	fmt.Fprintf(tw, "Records: %d\n", rep.Records)
	fmt.Fprintf(tw, "Total projected: %s kg\n\n", FormatKg(rep.Rollups.GrandTotal))

	fmt.Fprintln(tw, "Line\tProjected (kg)\tMix\t")
	for _, row := range rep.Rollups.ByLine {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", totalLabel(row, rep.Rollups), FormatKg(row.ProjectedKg), FormatPercent(row.MixShare))
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "Formulation\tProjected (kg)\tMix\t")
	for _, row := range rep.Rollups.ByFormulation {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", label(row.Formulation), FormatKg(row.ProjectedKg), FormatPercent(row.MixShare))
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "Formulation\tWidth\tProjected (kg)\tMix\t")
	for _, row := range rep.Rollups.ByFormulationWidth {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", label(row.Formulation), row.Width, FormatKg(row.ProjectedKg), FormatPercent(row.MixShare))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write report text: %w", err)
	}

	if len(rep.Diagnostics) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, d := range rep.Diagnostics {
			fmt.Fprintf(w, "- [%s] %s\n", d.Severity, d.Message)
		}
	}
	return nil
}

// FormatKg rounds to whole kilograms and groups thousands.
func FormatKg(v float64) string {
	return formatInt(int64(math.Round(v)))
}

func FormatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func formatInt(n int64) string {
	if n < 0 {
		return "-" + formatInt(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s,%03d", formatInt(n/1000), n%1000)
}

// totalLabel names the grand total row after the number of lines it sums.
func totalLabel(row capacity.LineTotal, r capacity.Rollups) string {
	if row.Total {
		return fmt.Sprintf("%s %d Linhas", capacity.TotalLabel, len(r.Lines()))
	}
	return label(row.Line)
}

func label(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(blank)"
	}
	return s
}
