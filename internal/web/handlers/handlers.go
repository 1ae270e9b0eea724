package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/mailtarget/internal/web/config"
	"github.com/foxzi/mailtarget/internal/web/i18n"
	"github.com/foxzi/mailtarget/internal/web/repository"
	"github.com/foxzi/mailtarget/internal/web/selector"
	"github.com/foxzi/mailtarget/internal/web/views"
)

type Handlers struct {
	cfg       *config.Config
	logger    *slog.Logger
	views     *views.Engine
	bundle    *i18n.Bundle
	mailings  *repository.MailingRepository
	members   *repository.MemberRepository
	selectors *selector.Registry
	dashboard *selector.Dashboard
}

// Deps groups the services used by the handlers
type Deps struct {
	Views     *views.Engine
	Bundle    *i18n.Bundle
	Mailings  *repository.MailingRepository
	Members   *repository.MemberRepository
	Selectors *selector.Registry
	Dashboard *selector.Dashboard
}

func New(cfg *config.Config, logger *slog.Logger, deps Deps) *Handlers {
	return &Handlers{
		cfg:       cfg,
		logger:    logger.With("component", "web"),
		views:     deps.Views,
		bundle:    deps.Bundle,
		mailings:  deps.Mailings,
		members:   deps.Members,
		selectors: deps.Selectors,
		dashboard: deps.Dashboard,
	}
}

// RegisterRoutes mounts every page and API endpoint on r
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Get("/", h.Dashboard)
	r.Post("/mailings", h.MailingCreate)
	r.Get("/mailings/{id}/targets", h.TargetsPage)
	r.Post("/mailings/{id}/targets/clear", h.TargetsClear)
	r.Post("/mailings/{id}/targets/{selector}", h.TargetsAdd)
	r.Get("/members/{id}", h.MemberView)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", h.APIStats)
		r.Get("/mailings/{id}/targets/count", h.APITargetsCount)
	})
}

// Health check
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// page is the data passed to every HTML view
type page struct {
	Title string
	Lang  string
	Flash string
	Data  any

	tr  *i18n.Translator
	loc *time.Location
}

func (p page) T(key string, args ...any) string {
	return p.tr.T(key, args...)
}

func (p page) Day(t time.Time) string {
	return p.tr.Day(t.In(p.loc))
}

// translator follows Accept-Language, then the configured language
func (h *Handlers) translator(r *http.Request) *i18n.Translator {
	lang := r.Header.Get("Accept-Language")
	if lang == "" {
		lang = h.cfg.Locale.Language
	}
	return h.bundle.Translator(lang)
}

// localized returns the selectors and dashboard translating with the request language
func (h *Handlers) localized(r *http.Request) (*selector.Registry, *selector.Dashboard) {
	tr := h.translator(r)
	return h.selectors.Localize(tr), h.dashboard.Localize(tr)
}

func (h *Handlers) newPage(r *http.Request, title string, data any) page {
	tr := h.translator(r)
	return page{
		Title: tr.T(title),
		Lang:  tr.Tag().String(),
		Data:  data,
		tr:    tr,
		loc:   h.cfg.Locale.Location(),
	}
}

// Helper to render templates
func (h *Handlers) render(w http.ResponseWriter, name string, data page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.views.Render(w, name, data); err != nil {
		h.logger.Error("failed to render template", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// Helper for JSON responses
func (h *Handlers) json(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// Helper for errors
func (h *Handlers) error(w http.ResponseWriter, status int, message string) {
	h.logger.Error("request error", "status", status, "message", message)
	http.Error(w, message, status)
}

// Helper for API errors
func (h *Handlers) apiError(w http.ResponseWriter, status int, message string) {
	h.logger.Error("api error", "status", status, "message", message)
	h.json(w, status, map[string]string{"error": message})
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
