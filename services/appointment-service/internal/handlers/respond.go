package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/policy"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an engine error kind to a status code and a stable code.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", "err", err, "code", code)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func classify(err error) (int, string) {
	var denied *policy.DeniedError
	switch {
	case errors.As(err, &denied):
		return http.StatusForbidden, string(denied.Reason)
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, "validation_failure"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrModificationWindowExpired):
		return http.StatusForbidden, "modification_window_expired"
	case errors.Is(err, model.ErrSlotUnavailable):
		return http.StatusConflict, "slot_unavailable"
	case errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, model.ErrPersistenceFailure):
		return http.StatusServiceUnavailable, "persistence_failure"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// decodeJSON treats an empty body as an empty object.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	if errors.Is(err, model.ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: invalid json body: %v", model.ErrValidation, err)
}

func queryDate(r *http.Request, key string, required bool) (model.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		if required {
			return model.Date{}, fmt.Errorf("%w: %s is required", model.ErrValidation, key)
		}
		return model.Date{}, nil
	}
	return model.ParseDate(raw)
}

func queryClock(r *http.Request, key string) (model.Clock, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", model.ErrValidation, key)
	}
	return model.ParseClock(raw)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", model.ErrValidation, key)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s", model.ErrValidation, key)
	}
	return n, nil
}

// filterFromQuery reads from, to, client_id, stylist_id, service_id and a
// comma separated status list.
func filterFromQuery(r *http.Request) (model.Filter, error) {
	q := r.URL.Query()
	from, err := queryDate(r, "from", false)
	if err != nil {
		return model.Filter{}, err
	}
	to, err := queryDate(r, "to", false)
	if err != nil {
		return model.Filter{}, err
	}
	f := model.Filter{
		From:      from,
		To:        to,
		ClientID:  strings.TrimSpace(q.Get("client_id")),
		StylistID: strings.TrimSpace(q.Get("stylist_id")),
		ServiceID: strings.TrimSpace(q.Get("service_id")),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			s, ok := model.ParseStatus(strings.TrimSpace(part))
			if !ok {
				return model.Filter{}, fmt.Errorf("%w: unknown status %q", model.ErrValidation, part)
			}
			f.Statuses = append(f.Statuses, s)
		}
	}
	return f, nil
}
