package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/Simplici0/extrusion-capacity/internal/capacity"
	"github.com/Simplici0/extrusion-capacity/internal/ingest"
	"github.com/Simplici0/extrusion-capacity/internal/report"
	"github.com/Simplici0/extrusion-capacity/internal/scenarios"
	"github.com/Simplici0/extrusion-capacity/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type homeViewData struct {
	baseViewData
	Batch     *store.Batch
	Operating capacity.OperatingParameters
	Scenarios []store.ScenarioInfo
	Runs      []store.RunInfo
}

type scenariosViewData struct {
	baseViewData
	Scenarios []store.ScenarioInfo
}

type runsViewData struct {
	baseViewData
	Batch     *store.Batch
	Operating capacity.OperatingParameters
	Scenarios []store.ScenarioInfo
	Runs      []store.RunInfo
}

type runDetailViewData struct {
	baseViewData
	Info   store.RunInfo
	Report capacity.Report
	Lines  int
}

func (s *server) homeData(r *http.Request) (homeViewData, error) {
	ctx := r.Context()

	var data homeViewData
	batch, err := s.latestBatch(r)
	if err != nil {
		return data, err
	}
	data.Batch = batch

	if data.Operating, err = s.store.Operating(ctx); err != nil {
		return data, err
	}
	if data.Scenarios, err = s.store.ListScenarios(ctx); err != nil {
		return data, err
	}
	if data.Runs, err = s.store.ListRuns(ctx, 5); err != nil {
		return data, err
	}
	return data, nil
}

// latestBatch returns nil when no records were uploaded yet.
func (s *server) latestBatch(r *http.Request) (*store.Batch, error) {
	batch, err := s.store.LatestBatch(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// handleRecordsUpload replaces the current production records with an uploaded
// workbook or CSV export.
func (s *server) handleRecordsUpload(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(w, r)
	if err != nil {
		redirectWithError(w, r, "/", err)
		return
	}

	res, err := ingest.Read(bytes.NewReader(data), name)
	if err != nil {
		redirectWithError(w, r, "/", err)
		return
	}

	batch, err := s.store.SaveBatch(r.Context(), name, res.Sheet, res.Records, res.Warnings)
	if err != nil {
		s.serverError(w, r, err, "failed to store records")
		return
	}
	hlog.FromRequest(r).Info().Int64("batch_id", batch.ID).Str("source", name).Int("records", batch.RecordCount).Int("warnings", len(batch.Warnings)).Msg("records uploaded")

	msg := fmt.Sprintf("%d registros carregados de %s", batch.RecordCount, name)
	if n := len(batch.Warnings); n > 0 {
		msg += fmt.Sprintf(" (%d linhas ignoradas)", n)
	}
	http.Redirect(w, r, "/?success="+url.QueryEscape(msg), http.StatusSeeOther)
}

func (s *server) handleScenariosList(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListScenarios(r.Context())
	if err != nil {
		s.serverError(w, r, err, "failed to load scenarios")
		return
	}

	s.renderTemplate(w, "scenarios.html", scenariosViewData{
		baseViewData: flash(r),
		Scenarios:    list,
	})
}

// handleScenariosUpload stores an uploaded scenario file. Only its shares are
// kept; operating parameters are edited under /admin/operating.
func (s *server) handleScenariosUpload(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(w, r)
	if err != nil {
		redirectWithError(w, r, "/scenarios", err)
		return
	}

	def, err := scenarios.Decode(data, strings.TrimSuffix(name, filepath.Ext(name)))
	if err != nil {
		redirectWithError(w, r, "/scenarios", err)
		return
	}
	if strings.TrimSpace(def.Scenario.Name()) == "" {
		redirectWithError(w, r, "/scenarios", fmt.Errorf("cenário sem nome"))
		return
	}

	if err := s.store.SaveScenario(r.Context(), def.Scenario, def.Description, false); err != nil {
		s.serverError(w, r, err, "failed to store scenario")
		return
	}

	msg := fmt.Sprintf("Cenário %s salvo", def.Scenario.Name())
	if diags := capacity.ValidateShares(def.Scenario); capacity.HasBlocking(diags) {
		msg += fmt.Sprintf(" com %d avisos de soma", len(diags))
	}
	http.Redirect(w, r, "/scenarios?success="+url.QueryEscape(msg), http.StatusSeeOther)
}

func (s *server) handleScenarioDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := s.store.DeleteScenario(r.Context(), name)
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to delete scenario")
		return
	}
	http.Redirect(w, r, "/scenarios?success="+url.QueryEscape("Cenário "+name+" removido"), http.StatusSeeOther)
}

func (s *server) handleRunsList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data := runsViewData{baseViewData: flash(r)}
	var err error
	if data.Batch, err = s.latestBatch(r); err != nil {
		s.serverError(w, r, err, "failed to load records")
		return
	}
	if data.Operating, err = s.store.Operating(ctx); err != nil {
		s.serverError(w, r, err, "failed to load operating parameters")
		return
	}
	if data.Scenarios, err = s.store.ListScenarios(ctx); err != nil {
		s.serverError(w, r, err, "failed to load scenarios")
		return
	}
	if data.Runs, err = s.store.ListRuns(ctx, 0); err != nil {
		s.serverError(w, r, err, "failed to load runs")
		return
	}

	s.renderTemplate(w, "runs.html", data)
}

// handleRunCreate evaluates a stored scenario against the current records and
// stores the resulting report.
func (s *server) handleRunCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	params, err := s.store.Operating(ctx)
	if err != nil {
		s.serverError(w, r, err, "failed to load operating parameters")
		return
	}
	if params.Default, err = parseShiftOverride(r.FormValue("uptime_percent"), r.FormValue("days"), params.Default); err != nil {
		redirectWithError(w, r, "/runs", err)
		return
	}

	name := strings.TrimSpace(r.FormValue("scenario"))
	if name == "" {
		redirectWithError(w, r, "/runs", fmt.Errorf("cenário é obrigatório"))
		return
	}
	sc, err := s.store.LoadScenario(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		redirectWithError(w, r, "/runs", fmt.Errorf("cenário %s não encontrado", name))
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to load scenario")
		return
	}

	batch, err := s.latestBatch(r)
	if err != nil {
		s.serverError(w, r, err, "failed to load records")
		return
	}
	if batch == nil {
		redirectWithError(w, r, "/runs", fmt.Errorf("nenhum registro de produção carregado"))
		return
	}
	records, err := s.store.Records(ctx, batch.ID)
	if err != nil {
		s.serverError(w, r, err, "failed to load records")
		return
	}

	rep, err := capacity.Run(records, sc, params)
	if errors.Is(err, capacity.ErrMissingInput) || errors.Is(err, capacity.ErrInvalidParameters) {
		redirectWithError(w, r, "/runs", err)
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to run scenario")
		return
	}

	info, err := s.store.SaveRun(ctx, rep, batch.ID)
	if err != nil {
		s.serverError(w, r, err, "failed to store run")
		return
	}
	hlog.FromRequest(r).Info().Str("run_id", info.ID).Str("scenario", info.Scenario).Float64("total_kg", info.GrandTotal).Bool("blocking", info.Blocking).Msg("run stored")

	http.Redirect(w, r, "/runs/"+info.ID, http.StatusSeeOther)
}

func (s *server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	info, rep, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	s.renderTemplate(w, "run_detail.html", runDetailViewData{
		baseViewData: flash(r),
		Info:         info,
		Report:       rep,
		Lines:        len(rep.Rollups.Lines()),
	})
}

func (s *server) handleRunText(w http.ResponseWriter, r *http.Request) {
	_, rep, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := report.WriteText(w, rep); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("write run text")
	}
}

func (s *server) handleRunJSON(w http.ResponseWriter, r *http.Request) {
	_, rep, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := report.WriteJSON(w, rep); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("write run json")
	}
}

// handleRunWorkbook renders the xlsx export from the stored snapshot. The
// records sheet is included while the run's batch is still stored.
func (s *server) handleRunWorkbook(w http.ResponseWriter, r *http.Request) {
	info, rep, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	var records []capacity.ProductionRecord
	if info.BatchID != 0 {
		var err error
		if records, err = s.store.Records(r.Context(), info.BatchID); err != nil {
			s.serverError(w, r, err, "failed to load records")
			return
		}
		if len(records) == 0 {
			records = nil
		}
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="capacidade_%s.xlsx"`, info.ID))
	if err := report.WriteWorkbook(w, rep, records); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("write run workbook")
	}
}

func (s *server) loadRun(w http.ResponseWriter, r *http.Request) (store.RunInfo, capacity.Report, bool) {
	info, rep, err := s.store.Run(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return store.RunInfo{}, capacity.Report{}, false
	}
	if err != nil {
		s.serverError(w, r, err, "failed to load run")
		return store.RunInfo{}, capacity.Report{}, false
	}
	return info, rep, true
}

func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", nil, fmt.Errorf("upload inválido: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("arquivo é obrigatório")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return filepath.Base(header.Filename), data, nil
}

func redirectWithError(w http.ResponseWriter, r *http.Request, path string, err error) {
	hlog.FromRequest(r).Warn().Err(err).Str("path", r.URL.Path).Msg("request rejected")
	http.Redirect(w, r, path+"?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
}
