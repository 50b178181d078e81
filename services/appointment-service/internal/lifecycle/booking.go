package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/availability"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

type CreateInput struct {
	Date       model.Date
	StartTime  model.Clock
	StylistID  string
	ServiceID  string
	ClientID   string
	ClientInfo *model.ClientInfo
	Notes      string
	// DurationMinutes overrides the catalog duration when positive.
	DurationMinutes int
	// PreBookingID is the wizard's own hold; it does not block the create
	// and is released once the appointment exists.
	PreBookingID string
}

func (in CreateInput) validate() error {
	var missing []string
	if in.StylistID == "" {
		missing = append(missing, "stylist")
	}
	if in.ServiceID == "" {
		missing = append(missing, "service")
	}
	if in.Date.IsZero() {
		missing = append(missing, "date")
	}
	if in.ClientID == "" && (in.ClientInfo == nil || strings.TrimSpace(in.ClientInfo.Name) == "") {
		missing = append(missing, "client")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", model.ErrValidation, strings.Join(missing, ", "))
	}
	if !in.StartTime.Valid() {
		return fmt.Errorf("%w: invalid start time", model.ErrValidation)
	}
	return nil
}

// Created carries the persisted appointment and both freshly minted tokens.
type Created struct {
	Appointment       model.Appointment `json:"appointment"`
	PublicToken       string            `json:"publicToken"`
	ModificationToken string            `json:"modificationToken"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Created, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Create", trace.WithAttributes(
		attribute.String("stylist.id", in.StylistID),
		attribute.String("appointment.date", in.Date.String()),
	))
	defer span.End()

	created, err := s.create(ctx, in)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveCreate(outcome(err))
		return Created{}, err
	}
	s.metrics.ObserveCreate("created")
	s.logger.Info("appointment created",
		"appointment_id", created.Appointment.ID,
		"stylist_id", created.Appointment.StylistID,
		"date", created.Appointment.Date.String(),
		"start_time", created.Appointment.StartTime.String(),
	)
	return created, nil
}

func (s *Service) create(ctx context.Context, in CreateInput) (Created, error) {
	if err := in.validate(); err != nil {
		return Created{}, err
	}
	duration, err := s.duration(ctx, in.ServiceID, in.DurationMinutes)
	if err != nil {
		return Created{}, err
	}
	end := in.StartTime.Add(duration)
	if !end.Valid() {
		return Created{}, fmt.Errorf("%w: appointment must end within the day", model.ErrValidation)
	}

	unlock := s.locks.lock(slotKey(in.Date, in.StylistID))
	defer unlock()

	ok, err := s.checker.IsAvailable(ctx, availability.Query{
		Date:                in.Date,
		StartTime:           in.StartTime,
		EndTime:             end,
		StylistID:           in.StylistID,
		ExcludePreBookingID: in.PreBookingID,
	})
	if err != nil {
		return Created{}, err
	}
	if !ok {
		return Created{}, fmt.Errorf("%w: %s %s-%s for stylist %s", model.ErrSlotUnavailable, in.Date, in.StartTime, end, in.StylistID)
	}

	tokens, err := mintTokens()
	if err != nil {
		return Created{}, err
	}
	now := s.now()
	var persisted model.Appointment
	err = s.commit(func() error {
		var err error
		persisted, err = s.store.CreateAppointment(ctx, model.Appointment{
			Date:              in.Date,
			StartTime:         in.StartTime,
			EndTime:           end,
			StylistID:         in.StylistID,
			ServiceID:         in.ServiceID,
			ClientID:          in.ClientID,
			ClientInfo:        in.ClientInfo,
			Status:            model.StatusScheduled,
			Notes:             in.Notes,
			PublicToken:       tokens.public,
			ModificationToken: tokens.modification,
			LastModified:      now,
			CreatedAt:         now,
		})
		if err != nil {
			return persistErr("create appointment", err)
		}
		s.put(persisted)
		return nil
	})
	if err != nil {
		return Created{}, err
	}

	if in.PreBookingID != "" && s.holds != nil {
		if err := s.holds.Remove(ctx, in.PreBookingID); err != nil {
			s.logger.Warn("pre-booking release failed", "prebooking_id", in.PreBookingID, "err", err)
		}
	}
	return Created{
		Appointment:       persisted,
		PublicToken:       persisted.PublicToken,
		ModificationToken: persisted.ModificationToken,
	}, nil
}

// Changes lists the fields an update may touch; nil fields are kept.
type Changes struct {
	Date            *model.Date
	StartTime       *model.Clock
	StylistID       *string
	ServiceID       *string
	DurationMinutes *int
	Notes           *string
	ClientInfo      *model.ClientInfo
}

func (c Changes) empty() bool {
	return c.Date == nil && c.StartTime == nil && c.StylistID == nil && c.ServiceID == nil &&
		c.DurationMinutes == nil && c.Notes == nil && c.ClientInfo == nil
}

// Update applies changes to a live appointment. A new placement is checked
// for availability while ignoring the appointment itself; moving a
// scheduled appointment marks it rescheduled.
func (s *Service) Update(ctx context.Context, id string, changes Changes) (model.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Update", trace.WithAttributes(attribute.String("appointment.id", id)))
	defer span.End()

	updated, err := s.update(ctx, id, changes)
	if err != nil {
		span.RecordError(err)
		return model.Appointment{}, err
	}
	s.logger.Info("appointment updated",
		"appointment_id", updated.ID,
		"status", string(updated.Status),
		"date", updated.Date.String(),
		"start_time", updated.StartTime.String(),
	)
	return updated, nil
}

func (s *Service) update(ctx context.Context, id string, changes Changes) (model.Appointment, error) {
	if changes.empty() {
		return model.Appointment{}, fmt.Errorf("%w: no changes", model.ErrValidation)
	}
	current, next, unlock, err := s.prepare(ctx, id, changes)
	if err != nil {
		return model.Appointment{}, err
	}
	defer unlock()

	moved := next.Date != current.Date || next.StartTime != current.StartTime ||
		next.EndTime != current.EndTime || next.StylistID != current.StylistID
	if moved {
		ok, err := s.checker.IsAvailable(ctx, availability.Query{
			Date:                     next.Date,
			StartTime:                next.StartTime,
			EndTime:                  next.EndTime,
			StylistID:                next.StylistID,
			ExcludeModificationToken: current.ModificationToken,
		})
		if err != nil {
			return model.Appointment{}, err
		}
		if !ok {
			return model.Appointment{}, fmt.Errorf("%w: %s %s-%s for stylist %s", model.ErrSlotUnavailable, next.Date, next.StartTime, next.EndTime, next.StylistID)
		}
		if current.Status == model.StatusScheduled {
			next.Status = model.StatusRescheduled
		}
	}
	next.LastModified = s.now()

	var persisted model.Appointment
	err = s.commit(func() error {
		var err error
		if persisted, err = s.store.UpdateAppointment(ctx, next); err != nil {
			return persistErr("update appointment", err)
		}
		s.put(persisted)
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	if persisted.Status != current.Status {
		s.metrics.ObserveTransition(string(persisted.Status))
	}
	return persisted, nil
}

// prepare derives the next version and locks both the old and the new
// placement. It retries when the appointment changed while waiting.
func (s *Service) prepare(ctx context.Context, id string, changes Changes) (model.Appointment, model.Appointment, func(), error) {
	for {
		current, err := s.Get(id)
		if err != nil {
			return model.Appointment{}, model.Appointment{}, nil, err
		}
		next, err := s.apply(ctx, current, changes)
		if err != nil {
			return model.Appointment{}, model.Appointment{}, nil, err
		}
		unlock := s.locks.lock(slotKey(current.Date, current.StylistID), slotKey(next.Date, next.StylistID))
		fresh, err := s.Get(id)
		if err != nil {
			unlock()
			return model.Appointment{}, model.Appointment{}, nil, err
		}
		if fresh.Status == current.Status && fresh.LastModified.Equal(current.LastModified) {
			return current, next, unlock, nil
		}
		unlock()
	}
}

// apply derives the next version of an appointment. endTime is recomputed
// whenever the start, the service or the duration changes.
func (s *Service) apply(ctx context.Context, current model.Appointment, c Changes) (model.Appointment, error) {
	if current.Status.Terminal() {
		return model.Appointment{}, fmt.Errorf("%w: appointment is %s", model.ErrInvalidTransition, current.Status)
	}
	next := current
	if c.Date != nil {
		if c.Date.IsZero() {
			return model.Appointment{}, fmt.Errorf("%w: date is required", model.ErrValidation)
		}
		next.Date = *c.Date
	}
	if c.StylistID != nil {
		if *c.StylistID == "" {
			return model.Appointment{}, fmt.Errorf("%w: stylist is required", model.ErrValidation)
		}
		next.StylistID = *c.StylistID
	}
	if c.Notes != nil {
		next.Notes = *c.Notes
	}
	if c.ClientInfo != nil {
		next.ClientInfo = c.ClientInfo
	}

	if c.StartTime == nil && c.ServiceID == nil && c.DurationMinutes == nil {
		return next, nil
	}
	if c.StartTime != nil {
		if !c.StartTime.Valid() {
			return model.Appointment{}, fmt.Errorf("%w: invalid start time", model.ErrValidation)
		}
		next.StartTime = *c.StartTime
	}
	duration := current.DurationMinutes()
	if c.ServiceID != nil && *c.ServiceID != current.ServiceID {
		next.ServiceID = *c.ServiceID
		explicit := 0
		if c.DurationMinutes != nil {
			explicit = *c.DurationMinutes
		}
		d, err := s.duration(ctx, next.ServiceID, explicit)
		if err != nil {
			return model.Appointment{}, err
		}
		duration = d
	} else if c.DurationMinutes != nil {
		if *c.DurationMinutes <= 0 {
			return model.Appointment{}, fmt.Errorf("%w: duration must be positive", model.ErrValidation)
		}
		duration = *c.DurationMinutes
	}
	next.EndTime = next.StartTime.Add(duration)
	if !next.EndTime.Valid() {
		return model.Appointment{}, fmt.Errorf("%w: appointment must end within the day", model.ErrValidation)
	}
	return next, nil
}

func (s *Service) duration(ctx context.Context, serviceID string, explicit int) (int, error) {
	if explicit > 0 {
		return explicit, nil
	}
	if s.catalog == nil {
		return 0, fmt.Errorf("%w: duration is required", model.ErrValidation)
	}
	d, err := s.catalog.ServiceDuration(ctx, serviceID)
	if errors.Is(err, model.ErrNotFound) {
		return 0, fmt.Errorf("%w: unknown service %s", model.ErrValidation, serviceID)
	}
	if err != nil {
		return 0, persistErr("resolve service duration", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: service %s has no duration", model.ErrValidation, serviceID)
	}
	return d, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, model.ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, model.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
