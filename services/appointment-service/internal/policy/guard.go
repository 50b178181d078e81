package policy

import (
	"context"
	"time"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

type Reason string

const (
	ReasonTerminalStatus         Reason = "terminal_status"
	ReasonInsufficientLeadTime   Reason = "insufficient_lead_time"
	ReasonRescheduleLimitReached Reason = "reschedule_limit_reached"
)

type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
}

// Evaluate applies the self-service rules in order: the appointment must be
// live, start at least MinHoursBeforeAppointment from now, and have fewer
// than MaxReschedulesAllowed prior modifications.
func Evaluate(appt model.Appointment, priorModifications int, p model.CancellationPolicy, now time.Time, loc *time.Location) Decision {
	if !appt.Status.Live() {
		return Decision{Reason: ReasonTerminalStatus}
	}
	lead := time.Duration(p.MinHoursBeforeAppointment) * time.Hour
	if appt.Start(loc).Sub(now) < lead {
		return Decision{Reason: ReasonInsufficientLeadTime}
	}
	if priorModifications >= p.MaxReschedulesAllowed {
		return Decision{Reason: ReasonRescheduleLimitReached}
	}
	return Decision{Allowed: true}
}

// Lookup is the read side of the appointment book the guard needs.
type Lookup interface {
	Get(id string) (model.Appointment, error)
	ModificationCount(appointmentID string) int
}

type Guard struct {
	lookup   Lookup
	provider Provider
	loc      *time.Location
	now      func() time.Time
}

func NewGuard(lookup Lookup, provider Provider, loc *time.Location, now func() time.Time) *Guard {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Guard{lookup: lookup, provider: provider, loc: loc, now: now}
}

func (g *Guard) Check(ctx context.Context, appt model.Appointment) (Decision, error) {
	p, err := g.provider.CancellationPolicy(ctx)
	if err != nil {
		return Decision{}, err
	}
	return Evaluate(appt, g.lookup.ModificationCount(appt.ID), p, g.now(), g.loc), nil
}

// CanModify reports whether a client may still change the appointment.
// Unknown ids yield model.ErrNotFound.
func (g *Guard) CanModify(ctx context.Context, appointmentID string) (bool, error) {
	appt, err := g.lookup.Get(appointmentID)
	if err != nil {
		return false, err
	}
	d, err := g.Check(ctx, appt)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// DeniedError reports why the guard refused a change. It matches
// model.ErrModificationWindowExpired with errors.Is.
type DeniedError struct {
	Reason Reason
}

func (e *DeniedError) Error() string {
	return model.ErrModificationWindowExpired.Error() + ": " + string(e.Reason)
}

func (e *DeniedError) Unwrap() error { return model.ErrModificationWindowExpired }
