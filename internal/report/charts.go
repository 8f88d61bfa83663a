package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/Simplici0/extrusion-capacity/internal/capacity"
)

// Chart file names written by WriteCharts.
const (
	LineChartFile        = "producao_por_linha.png"
	FormulationChartFile = "mix_por_formulacao.png"
)

var barColor = color.RGBA{R: 70, G: 130, B: 180, A: 255}

// WriteCharts renders bar charts of projected production per line and per
// formulation into dir and returns the written paths.
func WriteCharts(dir string, rep capacity.Report) ([]string, error) {
	lines := rep.Rollups.Lines()
	lineLabels := make([]string, len(lines))
	lineValues := make(plotter.Values, len(lines))
	for i, row := range lines {
		lineLabels[i] = label(row.Line)
		lineValues[i] = row.ProjectedKg
	}

	forms := rep.Rollups.ByFormulation
	formLabels := make([]string, len(forms))
	formValues := make(plotter.Values, len(forms))
	for i, row := range forms {
		formLabels[i] = label(row.Formulation)
		formValues[i] = row.ProjectedKg
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart directory: %w", err)
	}

	var written []string
	charts := []struct {
		file, title, xLabel string
		labels              []string
		values              plotter.Values
	}{
		{LineChartFile, "Produção Estimada por Linha", "Linha", lineLabels, lineValues},
		{FormulationChartFile, "Produção Estimada por Formulação", "Formulação", formLabels, formValues},
	}
	for _, c := range charts {
		if len(c.values) == 0 {
			continue
		}
		p, err := barChart(c.title, c.xLabel, c.labels, c.values, rep.Rollups.GrandTotal)
		if err != nil {
			return written, fmt.Errorf("build chart %s: %w", c.file, err)
		}
		path := filepath.Join(dir, c.file)
		width := vg.Length(math.Max(8, float64(len(c.values))*1.5)) * vg.Inch
		if err := p.Save(width, 6*vg.Inch, path); err != nil {
			return written, fmt.Errorf("save chart %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func barChart(title, xLabel string, labels []string, values plotter.Values, total float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "Produção (kg)"

	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return nil, err
	}
	bars.Color = barColor
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)

	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 6
	p.X.Tick.Label.YAlign = draw.YCenter
	p.X.Tick.Label.XAlign = draw.XRight

	var peak float64
	for _, v := range values {
		peak = math.Max(peak, v)
	}
	p.Y.Min = 0
	if peak > 0 {
		p.Y.Max = peak * 1.15
	}

	xys := make([]plotter.XY, 0, len(values))
	texts := make([]string, 0, len(values))
	for i, v := range values {
		if v <= 0 {
			continue
		}
		share := 0.0
		if total > 0 {
			share = v / total
		}
		xys = append(xys, plotter.XY{X: float64(i), Y: v + peak*0.02})
		texts = append(texts, fmt.Sprintf("%s kg (%s)", FormatKg(v), FormatPercent(share)))
	}
	if len(xys) > 0 {
		annotations, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: texts})
		if err != nil {
			return nil, err
		}
		p.Add(annotations)
	}
	p.Add(plotter.NewGrid())
	return p, nil
}
