package main

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Simplici0/extrusion-capacity/internal/capacity"
	"github.com/Simplici0/extrusion-capacity/internal/config"
	"github.com/Simplici0/extrusion-capacity/internal/db"
	"github.com/Simplici0/extrusion-capacity/internal/logging"
	"github.com/Simplici0/extrusion-capacity/internal/migrations"
	"github.com/Simplici0/extrusion-capacity/internal/report"
	"github.com/Simplici0/extrusion-capacity/internal/seed"
	"github.com/Simplici0/extrusion-capacity/internal/store"
)

// maxUploadBytes bounds record and scenario uploads.
const maxUploadBytes = 32 << 20

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{
	"login.html",
	"home.html",
	"scenarios.html",
	"runs.html",
	"run_detail.html",
	"admin_operating.html",
}

type server struct {
	auth      *authService
	store     *store.Store
	log       zerolog.Logger
	templates map[string]*template.Template
}

type baseViewData struct {
	ErrorMessage   string
	SuccessMessage string
}

type loginViewData struct {
	baseViewData
}

func main() {
	cfg := config.Load()
	logger := logging.Install(logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr))
	cfg.LogWarnings()
	cfg.WarnUnsetSecrets()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(database); err != nil {
			logger.Fatal().Err(err).Msg("failed to run database migrations")
		}
	}

	builtins, err := seed.Builtins()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load built-in scenarios")
	}
	stats, err := seed.Run(database, seed.Config{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
		Operating:     cfg.Operating(),
		Scenarios:     builtins,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to seed database")
	}
	logger.Info().Int("inserts", stats.Inserts).Msg("seed complete")

	srv, err := newServer(newAuthService(database, cfg.SessionSecret), store.New(database), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	addr := ":" + cfg.Port
	logger.Info().Str("addr", addr).Msg("listening")
	if err := http.ListenAndServe(addr, srv.routes()); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func newServer(auth *authService, st *store.Store, logger zerolog.Logger) (*server, error) {
	funcs := template.FuncMap{
		"kg":    report.FormatKg,
		"pct":   report.FormatPercent,
		"label": displayLabel,
		"uptimePercent": func(s capacity.Shift) string {
			return fmt.Sprintf("%g", s.Uptime*100)
		},
		"hours": func(s capacity.Shift) string {
			return fmt.Sprintf("%.1f", s.Hours())
		},
		"date": func(t time.Time) string {
			return t.Format("2006-01-02 15:04")
		},
	}

	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		templates[page] = t
	}

	return &server{auth: auth, store: st, log: logger, templates: templates}, nil
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(s.authMiddleware)

	r.Get("/", s.handleHome)
	r.Get("/login", s.handleLoginForm)
	r.Post("/login", s.handleLoginSubmit)
	r.Post("/logout", s.handleLogout)
	r.Post("/records", s.handleRecordsUpload)
	r.Get("/scenarios", s.handleScenariosList)
	r.Post("/scenarios", s.handleScenariosUpload)
	r.Post("/scenarios/{name}/delete", s.handleScenarioDelete)
	r.Get("/runs", s.handleRunsList)
	r.Post("/runs", s.handleRunCreate)
	r.Get("/runs/{id}", s.handleRunDetail)
	r.Get("/runs/{id}/text", s.handleRunText)
	r.Get("/runs/{id}/json", s.handleRunJSON)
	r.Get("/runs/{id}/workbook", s.handleRunWorkbook)
	r.Get("/admin/operating", s.handleAdminOperatingForm)
	r.Post("/admin/operating", s.handleAdminOperatingSubmit)
	return r
}

func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	data, err := s.homeData(r)
	if err != nil {
		s.serverError(w, r, err, "failed to load home")
		return
	}
	data.baseViewData = flash(r)
	s.renderTemplate(w, "home.html", data)
}

func (s *server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if isAuthenticated(r, s.auth) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.renderTemplate(w, "login.html", loginViewData{})
}

func (s *server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	email := r.FormValue("email")
	password := r.FormValue("password")
	valid, err := s.auth.validateCredentials(r.Context(), email, password)
	if err != nil {
		s.serverError(w, r, err, "authentication error")
		return
	}
	if !valid {
		hlog.FromRequest(r).Warn().Str("email", email).Msg("login rejected")
		w.WriteHeader(http.StatusUnauthorized)
		s.renderTemplate(w, "login.html", loginViewData{baseViewData: baseViewData{ErrorMessage: "Credenciais inválidas. Tente novamente."}})
		return
	}

	s.auth.setSessionCookie(w, email)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *server) renderTemplate(w http.ResponseWriter, page string, data any) {
	t, ok := s.templates[page]
	if !ok {
		http.Error(w, "failed to parse template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "layout.html", data); err != nil {
		s.log.Error().Err(err).Str("page", page).Msg("render template")
		http.Error(w, "failed to render template", http.StatusInternalServerError)
		return
	}
}

func (s *server) serverError(w http.ResponseWriter, r *http.Request, err error, message string) {
	hlog.FromRequest(r).Error().Err(err).Msg(message)
	http.Error(w, message, http.StatusInternalServerError)
}

func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			next.ServeHTTP(w, r)
			return
		}

		if !isAuthenticated(r, s.auth) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isAuthenticated(r *http.Request, auth *authService) bool {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return false
	}

	_, ok := auth.verifySessionValue(cookie.Value)
	return ok
}

func flash(r *http.Request) baseViewData {
	return baseViewData{
		ErrorMessage:   r.URL.Query().Get("error"),
		SuccessMessage: r.URL.Query().Get("success"),
	}
}

func displayLabel(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(vazio)"
	}
	return s
}
