// Package reconcile closes out appointments whose day has passed while they
// were still open.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/metrics"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

type Book interface {
	List(f model.Filter) []model.Appointment
	SetStatus(ctx context.Context, id string, to model.Status) (model.Appointment, error)
}

type Failure struct {
	AppointmentID string `json:"appointmentId"`
	Error         string `json:"error"`
}

type Result struct {
	Action       model.Status `json:"action"`
	Transitioned int          `json:"transitioned"`
	Failures     []Failure    `json:"failures,omitempty"`
}

type Reconciler struct {
	book    Book
	loc     *time.Location
	now     func() time.Time
	metrics *metrics.BookingMetrics
	logger  *slog.Logger
}

func NewReconciler(book Book, loc *time.Location, now func() time.Time, m *metrics.BookingMetrics, logger *slog.Logger) *Reconciler {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{book: book, loc: loc, now: now, metrics: m, logger: logger}
}

// FindOverdue lists scheduled or confirmed appointments dated before today.
// Time of day is ignored, so same-day appointments are never overdue.
func (r *Reconciler) FindOverdue() []model.Appointment {
	today := model.DateOf(r.now(), r.loc)
	open := r.book.List(model.Filter{Statuses: []model.Status{model.StatusScheduled, model.StatusConfirmed}})
	overdue := make([]model.Appointment, 0, len(open))
	for _, a := range open {
		if a.Date.Before(today) {
			overdue = append(overdue, a)
		}
	}
	return overdue
}

// Reconcile moves every overdue appointment to action. Each transition is
// independent: failures are collected and returned joined, successes stay.
func (r *Reconciler) Reconcile(ctx context.Context, action model.Status) (Result, error) {
	if action != model.StatusCompleted && action != model.StatusNoShow {
		return Result{}, fmt.Errorf("%w: reconcile action must be completed or noShow, got %q", model.ErrValidation, action)
	}
	ctx, span := otel.Tracer("reconcile").Start(ctx, "reconcile.Run")
	defer span.End()

	res := Result{Action: action}
	var errs []error
	for _, a := range r.FindOverdue() {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := r.book.SetStatus(ctx, a.ID, action); err != nil {
			res.Failures = append(res.Failures, Failure{AppointmentID: a.ID, Error: err.Error()})
			errs = append(errs, fmt.Errorf("appointment %s: %w", a.ID, err))
			continue
		}
		res.Transitioned++
	}

	span.SetAttributes(
		attribute.String("reconcile.action", string(action)),
		attribute.Int("reconcile.transitioned", res.Transitioned),
		attribute.Int("reconcile.failed", len(res.Failures)),
	)
	r.metrics.ObserveReconcile(string(action), "ok", res.Transitioned)
	r.metrics.ObserveReconcile(string(action), "error", len(res.Failures))
	if res.Transitioned > 0 || len(res.Failures) > 0 {
		r.logger.Info("overdue appointments reconciled",
			"action", string(action),
			"transitioned", res.Transitioned,
			"failed", len(res.Failures),
		)
	}
	return res, errors.Join(errs...)
}
