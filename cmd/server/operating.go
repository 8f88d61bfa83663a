package main

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/Simplici0/extrusion-capacity/internal/capacity"
)

type lineShiftRow struct {
	Line  string
	Shift capacity.Shift
}

type operatingViewData struct {
	baseViewData
	Default capacity.Shift
	Lines   []lineShiftRow
}

func newOperatingViewData(p capacity.OperatingParameters) operatingViewData {
	data := operatingViewData{Default: p.Default}
	for line, shift := range p.Lines {
		data.Lines = append(data.Lines, lineShiftRow{Line: line, Shift: shift})
	}
	slices.SortFunc(data.Lines, func(a, b lineShiftRow) int { return strings.Compare(a.Line, b.Line) })
	return data
}

func (s *server) handleAdminOperatingForm(w http.ResponseWriter, r *http.Request) {
	params, err := s.store.Operating(r.Context())
	if err != nil {
		s.serverError(w, r, err, "failed to load operating parameters")
		return
	}

	data := newOperatingViewData(params)
	data.baseViewData = flash(r)
	s.renderTemplate(w, "admin_operating.html", data)
}

func (s *server) handleAdminOperatingSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	params, validationErr := parseOperatingForm(r)
	if validationErr != nil {
		data := newOperatingViewData(params)
		data.ErrorMessage = validationErr.Error()
		w.WriteHeader(http.StatusBadRequest)
		s.renderTemplate(w, "admin_operating.html", data)
		return
	}

	if err := s.store.SaveOperating(r.Context(), params); err != nil {
		s.serverError(w, r, err, "failed to save operating parameters")
		return
	}

	data := newOperatingViewData(params)
	data.SuccessMessage = "Parâmetros operacionais salvos."
	s.renderTemplate(w, "admin_operating.html", data)
}

// parseOperatingForm reads the global shift and the per-line rows. Line rows
// come as parallel line / line_uptime_percent / line_days values; rows with an
// empty line name are ignored.
func parseOperatingForm(r *http.Request) (capacity.OperatingParameters, error) {
	params := capacity.OperatingParameters{Default: capacity.DefaultOperating().Default}

	var err error
	if params.Default.Uptime, err = parseUptimePercent(r.FormValue("uptime_percent")); err != nil {
		return params, err
	}
	if params.Default.Days, err = parseDays(r.FormValue("days"), "days"); err != nil {
		return params, err
	}

	lines := r.Form["line"]
	uptimes := r.Form["line_uptime_percent"]
	days := r.Form["line_days"]
	if len(uptimes) != len(lines) || len(days) != len(lines) {
		return params, fmt.Errorf("linhas incompletas no formulário")
	}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if _, dup := params.Lines[line]; dup {
			return params, fmt.Errorf("linha %s repetida", line)
		}

		shift := params.Default
		if strings.TrimSpace(uptimes[i]) != "" {
			if shift.Uptime, err = parseUptimePercent(uptimes[i]); err != nil {
				return params, fmt.Errorf("linha %s: %w", line, err)
			}
		}
		if strings.TrimSpace(days[i]) != "" {
			if shift.Days, err = parseDays(days[i], "line_days"); err != nil {
				return params, fmt.Errorf("linha %s: %w", line, err)
			}
		}
		if params.Lines == nil {
			params.Lines = make(map[string]capacity.Shift)
		}
		params.Lines[line] = shift
	}

	return params, params.Validate()
}

// parseShiftOverride applies optional uptime/days form values on top of base.
func parseShiftOverride(uptimeRaw, daysRaw string, base capacity.Shift) (capacity.Shift, error) {
	shift := base
	var err error
	if strings.TrimSpace(uptimeRaw) != "" {
		if shift.Uptime, err = parseUptimePercent(uptimeRaw); err != nil {
			return base, err
		}
	}
	if strings.TrimSpace(daysRaw) != "" {
		if shift.Days, err = parseDays(daysRaw, "days"); err != nil {
			return base, err
		}
	}
	return shift, nil
}

// parseUptimePercent reads a 0-100 percentage and returns the 0-1 fraction.
func parseUptimePercent(raw string) (float64, error) {
	value, err := parsePercent(raw, "uptime_percent")
	if err != nil {
		return 0, err
	}
	return value / 100, nil
}

func parseDays(raw, field string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s deve ser um número inteiro", field)
	}
	if value < 0 {
		return 0, fmt.Errorf("%s deve ser maior ou igual a 0", field)
	}
	return value, nil
}

func parseNonNegativeFloat(raw, field string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(raw, ",", ".")), 64)
	if err != nil {
		return 0, fmt.Errorf("%s deve ser numérico", field)
	}
	if value < 0 {
		return 0, fmt.Errorf("%s deve ser maior ou igual a 0", field)
	}
	return value, nil
}

func parsePercent(raw, field string) (float64, error) {
	value, err := parseNonNegativeFloat(raw, field)
	if err != nil {
		return 0, err
	}
	if value > 100 {
		return 0, fmt.Errorf("%s deve estar entre 0 e 100", field)
	}
	return value, nil
}
