package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/history"
)

type StatsHandler struct {
	agg    *history.Aggregator
	logger *slog.Logger
}

func NewStatsHandler(agg *history.Aggregator, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{agg: agg, logger: logger}
}

func (h *StatsHandler) Global(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.agg.Global(f))
}

func (h *StatsHandler) Client(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	st, err := h.agg.Client(r.Context(), chi.URLParam(r, "clientID"), f)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
