package lifecycle

import (
	"context"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

// Gate decides whether a client change to current may go ahead. It runs
// while the appointment is locked, so the modification history it sees
// cannot grow until the change has been recorded.
type Gate func(ctx context.Context, current model.Appointment) error

func appointmentKey(id string) string { return "appointment:" + id }

// ModifyGuarded applies changes and appends record as one step per
// appointment. The appointment lock is taken before any slot lock.
func (s *Service) ModifyGuarded(ctx context.Context, id string, gate Gate, changes Changes, record model.Modification) (model.Appointment, error) {
	unlock := s.locks.lock(appointmentKey(id))
	defer unlock()

	current, err := s.Get(id)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := gate(ctx, current); err != nil {
		return model.Appointment{}, err
	}
	updated, err := s.Update(ctx, id, changes)
	if err != nil {
		return model.Appointment{}, err
	}
	record.AppointmentID = id
	if err := s.RecordModification(ctx, record); err != nil {
		s.logger.Error("modification record failed after update", "appointment_id", id, "err", err)
		return model.Appointment{}, err
	}
	return updated, nil
}

// CancelGuarded cancels after gate approved the current state.
func (s *Service) CancelGuarded(ctx context.Context, id, reason string, gate Gate) (model.Appointment, error) {
	unlock := s.locks.lock(appointmentKey(id))
	defer unlock()

	current, err := s.Get(id)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := gate(ctx, current); err != nil {
		return model.Appointment{}, err
	}
	return s.Cancel(ctx, id, reason)
}
