package handlers

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/mailtarget/internal/metrics"
	"github.com/foxzi/mailtarget/internal/web/models"
	"github.com/foxzi/mailtarget/internal/web/selector"
)

const targetsPageSize = 500

type dashboardData struct {
	Stats    []models.Stat
	Mailings []models.Mailing
}

type selectorPanel struct {
	Name        string
	Description string
	Nb          int
	Form        template.HTML
}

type targetsData struct {
	Mailing   *models.Mailing
	Selectors []selectorPanel
	Targets   []models.Target
	Total     int
}

// Dashboard shows the statistics of every selector and the mailings
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	_, dashboard := h.localized(r)
	stats, err := dashboard.Stats(r.Context())
	if err != nil {
		h.error(w, http.StatusInternalServerError, "Failed to compute statistics")
		return
	}

	mailings, err := h.mailings.List(r.Context(), h.cfg.Tenant.Entity)
	if err != nil {
		h.error(w, http.StatusInternalServerError, "Failed to list mailings")
		return
	}

	p := h.newPage(r, "Dashboard", dashboardData{Stats: stats, Mailings: mailings})
	if r.URL.Query().Get("created") != "" {
		p.Flash = p.T("MailingCreated")
	}
	h.render(w, "dashboard", p)
}

// MailingCreate creates an empty mailing
func (h *Handlers) MailingCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.error(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		h.error(w, http.StatusBadRequest, "Title is required")
		return
	}

	m := &models.Mailing{Entity: h.cfg.Tenant.Entity, Title: title}
	if err := h.mailings.Create(r.Context(), m); err != nil {
		h.logger.Error("failed to create mailing", "error", err)
		h.error(w, http.StatusInternalServerError, "Failed to create mailing")
		return
	}

	h.logger.Info("mailing created", "mailing_id", m.ID, "title", m.Title)
	http.Redirect(w, r, fmt.Sprintf("/mailings/%d/targets?created=1", m.ID), http.StatusSeeOther)
}

// TargetsPage lists the recipients of a mailing and the selector forms
func (h *Handlers) TargetsPage(w http.ResponseWriter, r *http.Request) {
	mailing, err := h.mailing(r)
	if err != nil {
		h.mailingError(w, err)
		return
	}

	targets, total, err := h.mailings.ListTargets(r.Context(), models.TargetFilter{
		MailingID: mailing.ID,
		Search:    r.URL.Query().Get("search"),
		Limit:     targetsPageSize,
	})
	if err != nil {
		h.logger.Error("failed to list targets", "mailing_id", mailing.ID, "error", err)
		h.error(w, http.StatusInternalServerError, "Failed to list recipients")
		return
	}

	var panels []selectorPanel
	selectors, _ := h.localized(r)
	for _, s := range selectors.All() {
		panel, err := h.panel(r.Context(), s)
		if err != nil {
			h.logger.Error("failed to render selector", "selector", s.Name(), "error", err)
			h.error(w, http.StatusInternalServerError, "Failed to render recipient filters")
			return
		}
		panels = append(panels, panel)
	}

	p := h.newPage(r, "Recipients", targetsData{
		Mailing:   mailing,
		Selectors: panels,
		Targets:   targets,
		Total:     total,
	})

	q := r.URL.Query()
	switch {
	case q.Get("added") != "":
		added, _ := strconv.Atoi(q.Get("added"))
		p.Flash = p.T("TargetsAdded", added)
	case q.Get("cleared") != "":
		p.Flash = p.T("TargetsCleared")
	case q.Get("created") != "":
		p.Flash = p.T("MailingCreated")
	}

	h.render(w, "targets", p)
}

func (h *Handlers) panel(ctx context.Context, s selector.Selector) (selectorPanel, error) {
	form, err := s.FormFilter(ctx)
	if err != nil {
		return selectorPanel{}, err
	}

	nb, err := s.NbOfRecipients(ctx, false)
	if err != nil {
		return selectorPanel{}, err
	}

	return selectorPanel{
		Name:        s.Name(),
		Description: s.Description(),
		Nb:          nb,
		Form:        form,
	}, nil
}

// TargetsAdd runs a selector with the submitted filters
func (h *Handlers) TargetsAdd(w http.ResponseWriter, r *http.Request) {
	mailing, err := h.mailing(r)
	if err != nil {
		h.mailingError(w, err)
		return
	}

	selectors, _ := h.localized(r)
	s, err := selectors.Get(chi.URLParam(r, "selector"))
	if err != nil {
		h.error(w, http.StatusNotFound, "Selector not found")
		return
	}

	if err := r.ParseForm(); err != nil {
		h.error(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	filter := selector.ParseFilter(r.PostForm, h.cfg.Locale.Location())

	added, err := s.AddToTarget(r.Context(), mailing.ID, filter)
	if err != nil {
		h.error(w, http.StatusInternalServerError, "Failed to add recipients")
		return
	}

	h.logger.Info("recipients added", "mailing_id", mailing.ID, "selector", s.Name(), "added", added)
	http.Redirect(w, r, fmt.Sprintf("/mailings/%d/targets?added=%d", mailing.ID, added), http.StatusSeeOther)
}

// TargetsClear removes every recipient of a mailing
func (h *Handlers) TargetsClear(w http.ResponseWriter, r *http.Request) {
	mailing, err := h.mailing(r)
	if err != nil {
		h.mailingError(w, err)
		return
	}

	if err := h.mailings.ClearTargets(r.Context(), mailing.ID); err != nil {
		h.logger.Error("failed to clear targets", "mailing_id", mailing.ID, "error", err)
		h.error(w, http.StatusInternalServerError, "Failed to clear recipients")
		return
	}
	metrics.IncTargetsCleared()

	h.logger.Info("recipients cleared", "mailing_id", mailing.ID)
	http.Redirect(w, r, fmt.Sprintf("/mailings/%d/targets?cleared=1", mailing.ID), http.StatusSeeOther)
}

// mailing loads the mailing named by the id URL parameter
func (h *Handlers) mailing(r *http.Request) (*models.Mailing, error) {
	id, ok := idParam(r)
	if !ok {
		return nil, models.ErrMailingNotFound
	}

	m, err := h.mailings.GetByID(r.Context(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get mailing %d: %w", id, err)
	}
	if m == nil || m.Entity != h.cfg.Tenant.Entity {
		return nil, models.ErrMailingNotFound
	}
	return m, nil
}

func (h *Handlers) mailingError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrMailingNotFound) {
		h.error(w, http.StatusNotFound, "Mailing not found")
		return
	}
	h.logger.Error("failed to load mailing", "error", err)
	h.error(w, http.StatusInternalServerError, "Failed to load mailing")
}
