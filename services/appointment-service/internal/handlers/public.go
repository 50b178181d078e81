package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/policy"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/publicaccess"
)

// PublicHandler serves unauthenticated clients holding a token.
type PublicHandler struct {
	access *publicaccess.Service
	logger *slog.Logger
}

func NewPublicHandler(access *publicaccess.Service, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{access: access, logger: logger}
}

type tokenStatusResponse struct {
	Valid    bool             `json:"valid"`
	Decision *policy.Decision `json:"decision,omitempty"`
}

func (h *PublicHandler) View(w http.ResponseWriter, r *http.Request) {
	appt, err := h.access.ResolveByPublicToken(chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Validate never answers 404 so the page can tell a stale link apart from
// a transport failure.
func (h *PublicHandler) Validate(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if !h.access.ValidateModificationToken(token) {
		writeJSON(w, http.StatusOK, tokenStatusResponse{Valid: false})
		return
	}
	d, err := h.access.Decision(r.Context(), token)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenStatusResponse{Valid: true, Decision: &d})
}

func (h *PublicHandler) Modify(w http.ResponseWriter, r *http.Request) {
	var req publicaccess.ModifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	updated, err := h.access.Modify(r.Context(), chi.URLParam(r, "token"), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *PublicHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	cancelled, err := h.access.Cancel(r.Context(), chi.URLParam(r, "token"), strings.TrimSpace(req.Reason))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelled)
}
