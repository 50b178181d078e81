package lifecycle

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

// Confirm is only valid for a scheduled appointment.
func (s *Service) Confirm(ctx context.Context, id string) (model.Appointment, error) {
	return s.transition(ctx, id, model.StatusConfirmed, "", func(from model.Status) bool {
		return from == model.StatusScheduled
	})
}

func (s *Service) Cancel(ctx context.Context, id, reason string) (model.Appointment, error) {
	return s.transition(ctx, id, model.StatusCancelled, reason, model.Status.Live)
}

// Complete and MarkNoShow accept any open appointment regardless of its date.
func (s *Service) Complete(ctx context.Context, id string) (model.Appointment, error) {
	return s.transition(ctx, id, model.StatusCompleted, "", model.Status.Live)
}

func (s *Service) MarkNoShow(ctx context.Context, id string) (model.Appointment, error) {
	return s.transition(ctx, id, model.StatusNoShow, "", model.Status.Live)
}

// SetStatus moves an open appointment to one of the terminal statuses.
func (s *Service) SetStatus(ctx context.Context, id string, to model.Status) (model.Appointment, error) {
	switch to {
	case model.StatusCompleted:
		return s.Complete(ctx, id)
	case model.StatusNoShow:
		return s.MarkNoShow(ctx, id)
	case model.StatusCancelled:
		return s.Cancel(ctx, id, "")
	case model.StatusConfirmed:
		return s.Confirm(ctx, id)
	default:
		return model.Appointment{}, fmt.Errorf("%w: cannot set status %q directly", model.ErrValidation, to)
	}
}

func (s *Service) transition(ctx context.Context, id string, to model.Status, reason string, allowed func(model.Status) bool) (model.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Transition", trace.WithAttributes(
		attribute.String("appointment.id", id),
		attribute.String("appointment.status", string(to)),
	))
	defer span.End()

	current, err := s.Get(id)
	if err != nil {
		return model.Appointment{}, err
	}
	unlock := s.locks.lock(slotKey(current.Date, current.StylistID))
	defer unlock()

	if current, err = s.Get(id); err != nil {
		return model.Appointment{}, err
	}
	if !allowed(current.Status) {
		err := fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, current.Status, to)
		span.RecordError(err)
		return model.Appointment{}, err
	}

	at := s.now()
	next := current
	next.Status = to
	next.LastModified = at
	if to == model.StatusCancelled {
		next.CancellationReason = reason
	}
	err = s.commit(func() error {
		if err := s.store.UpdateAppointmentStatus(ctx, id, to, reason, at); err != nil {
			return persistErr("update appointment status", err)
		}
		s.put(next)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return model.Appointment{}, err
	}
	s.metrics.ObserveTransition(string(to))
	s.logger.Info("appointment status changed",
		"appointment_id", id,
		"from", string(current.Status),
		"to", string(to),
	)
	return next, nil
}
