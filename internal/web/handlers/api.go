package handlers

import (
	"errors"
	"net/http"

	"github.com/foxzi/mailtarget/internal/web/models"
)

// StatsResponse is the response for GET /api/stats
type StatsResponse struct {
	Stats []models.Stat `json:"stats"`
}

// SelectorCount is the number of recipients a selector can provide
type SelectorCount struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Nb          int    `json:"nb"`
}

// CountResponse is the response for GET /api/mailings/{id}/targets/count
type CountResponse struct {
	MailingID int64           `json:"mailing_id"`
	NbEmails  int             `json:"nb_emails"`
	Selectors []SelectorCount `json:"selectors"`
}

// APIStats returns the dashboard statistics
func (h *Handlers) APIStats(w http.ResponseWriter, r *http.Request) {
	_, dashboard := h.localized(r)
	stats, err := dashboard.Stats(r.Context())
	if err != nil {
		h.apiError(w, http.StatusInternalServerError, "Failed to compute statistics")
		return
	}

	h.json(w, http.StatusOK, StatsResponse{Stats: stats})
}

// APITargetsCount returns the number of recipients of a mailing and
// the number each selector can provide
func (h *Handlers) APITargetsCount(w http.ResponseWriter, r *http.Request) {
	mailing, err := h.mailing(r)
	if err != nil {
		if errors.Is(err, models.ErrMailingNotFound) {
			h.apiError(w, http.StatusNotFound, "Mailing not found")
			return
		}
		h.apiError(w, http.StatusInternalServerError, "Failed to load mailing")
		return
	}

	includeUnsubscribed := r.URL.Query().Get("evenunsubscribe") != ""

	resp := CountResponse{
		MailingID: mailing.ID,
		NbEmails:  mailing.NbEmails,
		Selectors: []SelectorCount{},
	}

	selectors, _ := h.localized(r)
	for _, s := range selectors.All() {
		nb, err := s.NbOfRecipients(r.Context(), includeUnsubscribed)
		if err != nil {
			h.logger.Error("failed to count recipients", "selector", s.Name(), "error", err)
			h.apiError(w, http.StatusInternalServerError, "Failed to count recipients")
			return
		}
		resp.Selectors = append(resp.Selectors, SelectorCount{
			Name:        s.Name(),
			Description: s.Description(),
			Nb:          nb,
		})
	}

	h.json(w, http.StatusOK, resp)
}
