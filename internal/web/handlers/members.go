package handlers

import (
	"net/http"
)

// MemberView shows the card of a member, the target of recipient source links
func (h *Handlers) MemberView(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		h.error(w, http.StatusNotFound, "Member not found")
		return
	}

	m, err := h.members.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get member", "id", id, "error", err)
		h.error(w, http.StatusInternalServerError, "Failed to load member")
		return
	}
	if m == nil || !h.visible(m.Entity) {
		h.error(w, http.StatusNotFound, "Member not found")
		return
	}

	h.render(w, "member", h.newPage(r, "FundationMembers", m))
}

func (h *Handlers) visible(entity int) bool {
	for _, e := range h.cfg.Tenant.Entities() {
		if e == entity {
			return true
		}
	}
	return false
}
