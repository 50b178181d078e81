package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/availability"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/lifecycle"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/prebooking"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/reconcile"
)

// BookingHandler serves the staff booking UI and wizard.
type BookingHandler struct {
	book       *lifecycle.Service
	holds      prebooking.Ledger
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
}

func NewBookingHandler(book *lifecycle.Service, holds prebooking.Ledger, reconciler *reconcile.Reconciler, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{book: book, holds: holds, reconciler: reconciler, logger: logger}
}

type availabilityResponse struct {
	Available bool `json:"available"`
}

type preBookingRequest struct {
	Date      model.Date   `json:"date"`
	StartTime *model.Clock `json:"startTime"`
	EndTime   *model.Clock `json:"endTime"`
	StylistID string       `json:"stylistId"`
}

type preBookingResponse struct {
	ID string `json:"id"`
}

type createAppointmentRequest struct {
	Date            model.Date        `json:"date"`
	StartTime       *model.Clock      `json:"startTime"`
	StylistID       string            `json:"stylistId"`
	ServiceID       string            `json:"serviceId"`
	ClientID        string            `json:"clientId"`
	ClientInfo      *model.ClientInfo `json:"clientInfo"`
	Notes           string            `json:"notes"`
	DurationMinutes int               `json:"durationMinutes"`
	PreBookingID    string            `json:"preBookingId"`
}

type updateAppointmentRequest struct {
	Date            *model.Date       `json:"date"`
	StartTime       *model.Clock      `json:"startTime"`
	StylistID       *string           `json:"stylistId"`
	ServiceID       *string           `json:"serviceId"`
	DurationMinutes *int              `json:"durationMinutes"`
	Notes           *string           `json:"notes"`
	ClientInfo      *model.ClientInfo `json:"clientInfo"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type reconcileRequest struct {
	Action string `json:"action"`
}

type listResponse struct {
	Appointments []model.Appointment `json:"appointments"`
}

func (h *BookingHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	date, err := queryDate(r, "date", true)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	slots, err := h.book.Availability().DaySchedule(r.Context(), date, strings.TrimSpace(r.URL.Query().Get("stylist_id")))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "slots": slots})
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	date, err := queryDate(r, "date", true)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	duration, err := queryInt(r, "duration_minutes")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	q := r.URL.Query()
	slots, err := h.book.Availability().FreeStarts(r.Context(), date, strings.TrimSpace(q.Get("stylist_id")), duration, q.Get("modification_token"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if slots == nil {
		slots = []availability.Slot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "slots": slots})
}

func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	date, err := queryDate(r, "date", true)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	start, err := queryClock(r, "start_time")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	end, err := queryClock(r, "end_time")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	q := r.URL.Query()
	ok, err := h.book.Availability().IsAvailable(r.Context(), availability.Query{
		Date:                     date,
		StartTime:                start,
		EndTime:                  end,
		StylistID:                strings.TrimSpace(q.Get("stylist_id")),
		ExcludeModificationToken: q.Get("modification_token"),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{Available: ok})
}

func (h *BookingHandler) CreatePreBooking(w http.ResponseWriter, r *http.Request) {
	var req preBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.StartTime == nil || req.EndTime == nil {
		writeError(w, h.logger, fmt.Errorf("%w: startTime and endTime are required", model.ErrValidation))
		return
	}
	id, err := h.holds.Add(r.Context(), model.PreBooking{
		Date:      req.Date,
		StartTime: *req.StartTime,
		EndTime:   *req.EndTime,
		StylistID: strings.TrimSpace(req.StylistID),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, preBookingResponse{ID: id})
}

func (h *BookingHandler) DeletePreBooking(w http.ResponseWriter, r *http.Request) {
	if err := h.holds.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.StartTime == nil {
		writeError(w, h.logger, fmt.Errorf("%w: startTime is required", model.ErrValidation))
		return
	}
	created, err := h.book.Create(r.Context(), lifecycle.CreateInput{
		Date:            req.Date,
		StartTime:       *req.StartTime,
		StylistID:       strings.TrimSpace(req.StylistID),
		ServiceID:       strings.TrimSpace(req.ServiceID),
		ClientID:        strings.TrimSpace(req.ClientID),
		ClientInfo:      req.ClientInfo,
		Notes:           req.Notes,
		DurationMinutes: req.DurationMinutes,
		PreBookingID:    req.PreBookingID,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Appointments: h.book.List(f)})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.book.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	updated, err := h.book.Update(r.Context(), chi.URLParam(r, "id"), lifecycle.Changes{
		Date:            req.Date,
		StartTime:       req.StartTime,
		StylistID:       req.StylistID,
		ServiceID:       req.ServiceID,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
		ClientInfo:      req.ClientInfo,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.respond(w)(h.book.Confirm(r.Context(), chi.URLParam(r, "id")))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.respond(w)(h.book.Cancel(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(req.Reason)))
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.respond(w)(h.book.Complete(r.Context(), chi.URLParam(r, "id")))
}

func (h *BookingHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.respond(w)(h.book.MarkNoShow(r.Context(), chi.URLParam(r, "id")))
}

func (h *BookingHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listResponse{Appointments: h.reconciler.FindOverdue()})
}

// Reconcile answers 200 with the per-appointment failures listed when only
// some transitions failed.
func (h *BookingHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	action, _ := model.ParseStatus(strings.TrimSpace(req.Action))
	res, err := h.reconciler.Reconcile(r.Context(), action)
	if err != nil && res.Transitioned == 0 && len(res.Failures) == 0 {
		writeError(w, h.logger, err)
		return
	}
	if err != nil {
		h.logger.Warn("reconcile finished with failures", "err", err)
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *BookingHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.book.Reload(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookingHandler) respond(w http.ResponseWriter) func(model.Appointment, error) {
	return func(appt model.Appointment, err error) {
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}
