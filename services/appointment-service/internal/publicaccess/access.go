// Package publicaccess brokers self-service requests from clients who hold
// an appointment's public or modification token.
package publicaccess

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/availability"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/lifecycle"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/policy"
)

// Book is the part of the lifecycle service this package drives.
type Book interface {
	ByPublicToken(token string) (model.Appointment, error)
	ByModificationToken(token string) (model.Appointment, error)
	ModifyGuarded(ctx context.Context, id string, gate lifecycle.Gate, changes lifecycle.Changes, record model.Modification) (model.Appointment, error)
	CancelGuarded(ctx context.Context, id, reason string, gate lifecycle.Gate) (model.Appointment, error)
}

type Guard interface {
	Check(ctx context.Context, appt model.Appointment) (policy.Decision, error)
}

type Availability interface {
	IsAvailable(ctx context.Context, q availability.Query) (bool, error)
}

type Service struct {
	book    Book
	guard   Guard
	checker Availability
	logger  *slog.Logger
	tracer  trace.Tracer
}

func New(book Book, guard Guard, checker Availability, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{book: book, guard: guard, checker: checker, logger: logger, tracer: otel.Tracer("publicaccess")}
}

// ResolveByPublicToken is a read-only lookup with no policy check.
func (s *Service) ResolveByPublicToken(token string) (model.Appointment, error) {
	return s.book.ByPublicToken(token)
}

// ValidateModificationToken reports whether token belongs to a live appointment.
func (s *Service) ValidateModificationToken(token string) bool {
	a, err := s.book.ByModificationToken(token)
	return err == nil && a.Status.Live()
}

type ModifyRequest struct {
	Date      *model.Date  `json:"date,omitempty"`
	StartTime *model.Clock `json:"startTime,omitempty"`
	StylistID *string      `json:"stylistId,omitempty"`
}

func (r ModifyRequest) empty() bool {
	return r.Date == nil && r.StartTime == nil && r.StylistID == nil
}

// Modify moves the appointment behind token. The guard, the availability
// check, the update and the AppointmentModification record happen under the
// appointment's lock, so parallel requests cannot exceed the reschedule limit.
func (s *Service) Modify(ctx context.Context, token string, req ModifyRequest) (model.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "publicaccess.Modify")
	defer span.End()

	if req.empty() {
		return model.Appointment{}, fmt.Errorf("%w: nothing to change", model.ErrValidation)
	}
	appt, err := s.book.ByModificationToken(token)
	if err != nil {
		span.RecordError(err)
		return model.Appointment{}, err
	}
	span.SetAttributes(attribute.String("appointment.id", appt.ID))

	gate := func(ctx context.Context, current model.Appointment) error {
		if err := s.authorize(ctx, token, current); err != nil {
			return err
		}
		return s.ensureFree(ctx, token, current, req)
	}
	updated, err := s.book.ModifyGuarded(ctx, appt.ID, gate, lifecycle.Changes{
		Date:      req.Date,
		StartTime: req.StartTime,
		StylistID: req.StylistID,
	}, model.Modification{
		ModificationToken: token,
		NewDate:           req.Date,
		NewStartTime:      req.StartTime,
		NewStylistID:      req.StylistID,
	})
	if err != nil {
		span.RecordError(err)
		return model.Appointment{}, err
	}
	s.logger.Info("appointment modified by client", "appointment_id", appt.ID)
	return updated, nil
}

// ensureFree re-validates availability when the placement changes.
func (s *Service) ensureFree(ctx context.Context, token string, current model.Appointment, req ModifyRequest) error {
	target := current
	if req.Date != nil {
		target.Date = *req.Date
	}
	if req.StartTime != nil {
		target.StartTime = *req.StartTime
		target.EndTime = req.StartTime.Add(current.DurationMinutes())
	}
	if req.StylistID != nil {
		target.StylistID = *req.StylistID
	}
	if target.Date == current.Date && target.StartTime == current.StartTime && target.StylistID == current.StylistID {
		return nil
	}
	ok, err := s.checker.IsAvailable(ctx, availability.Query{
		Date:                     target.Date,
		StartTime:                target.StartTime,
		EndTime:                  target.EndTime,
		StylistID:                target.StylistID,
		ExcludeModificationToken: token,
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s %s for stylist %s", model.ErrSlotUnavailable, target.Date, target.StartTime, target.StylistID)
	}
	return nil
}

func (s *Service) Cancel(ctx context.Context, token, reason string) (model.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "publicaccess.Cancel")
	defer span.End()

	appt, err := s.book.ByModificationToken(token)
	if err != nil {
		span.RecordError(err)
		return model.Appointment{}, err
	}
	cancelled, err := s.book.CancelGuarded(ctx, appt.ID, reason, func(ctx context.Context, current model.Appointment) error {
		return s.authorize(ctx, token, current)
	})
	if err != nil {
		span.RecordError(err)
		return model.Appointment{}, err
	}
	s.logger.Info("appointment cancelled by client", "appointment_id", appt.ID)
	return cancelled, nil
}

// Decision exposes the guard outcome for a token so the public page can
// explain why changes are no longer possible.
func (s *Service) Decision(ctx context.Context, token string) (policy.Decision, error) {
	appt, err := s.book.ByModificationToken(token)
	if err != nil {
		return policy.Decision{}, err
	}
	return s.guard.Check(ctx, appt)
}

// authorize runs the guard against the locked appointment. A token that no
// longer belongs to it reads as not found.
func (s *Service) authorize(ctx context.Context, token string, current model.Appointment) error {
	if current.ModificationToken != token {
		return fmt.Errorf("%w: unknown token", model.ErrNotFound)
	}
	d, err := s.guard.Check(ctx, current)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return &policy.DeniedError{Reason: d.Reason}
	}
	return nil
}
