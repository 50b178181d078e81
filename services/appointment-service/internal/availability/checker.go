package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/metrics"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

// Book is the read side of the in-memory appointment collection.
type Book interface {
	LiveOn(date model.Date, stylistID string) []model.Appointment
}

// Holds is the read side of the pre-booking ledger. PurgeExpired must run
// before Active on every read.
type Holds interface {
	PurgeExpired(ctx context.Context) (int, error)
	Active(ctx context.Context, date model.Date, stylistID string) ([]model.PreBooking, error)
}

type SettingsSource interface {
	AppointmentSettings(ctx context.Context) (model.AppointmentSettings, error)
}

type Query struct {
	Date      model.Date
	StartTime model.Clock
	EndTime   model.Clock
	StylistID string
	// ExcludeModificationToken lets an appointment move without colliding with itself.
	ExcludeModificationToken string
	// ExcludePreBookingID ignores the caller's own hold when committing it.
	ExcludePreBookingID string
}

func (q Query) validate() error {
	if q.StylistID == "" {
		return fmt.Errorf("%w: stylist is required", model.ErrValidation)
	}
	if q.Date.IsZero() {
		return fmt.Errorf("%w: date is required", model.ErrValidation)
	}
	if !q.StartTime.Valid() || !q.EndTime.Valid() || q.EndTime <= q.StartTime {
		return fmt.Errorf("%w: end time must be after start time", model.ErrValidation)
	}
	return nil
}

type Checker struct {
	book     Book
	holds    Holds
	settings SettingsSource
	hours    model.BusinessHours
	loc      *time.Location
	now      func() time.Time
	metrics  *metrics.BookingMetrics
}

type Config struct {
	Hours    model.BusinessHours
	Location *time.Location
	Now      func() time.Time
	Metrics  *metrics.BookingMetrics
}

func NewChecker(book Book, holds Holds, settings SettingsSource, cfg Config) *Checker {
	if cfg.Hours.SlotDuration <= 0 {
		cfg.Hours = model.DefaultBusinessHours()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Checker{
		book:     book,
		holds:    holds,
		settings: settings,
		hours:    cfg.Hours,
		loc:      cfg.Location,
		now:      cfg.Now,
		metrics:  cfg.Metrics,
	}
}

func (c *Checker) Hours() model.BusinessHours { return c.hours }

// IsAvailable reports whether the buffered interval is free of live
// pre-bookings and live appointments for the stylist on that date.
func (c *Checker) IsAvailable(ctx context.Context, q Query) (bool, error) {
	if err := q.validate(); err != nil {
		return false, err
	}
	snap, err := c.load(ctx, q.Date, q.StylistID, q.ExcludeModificationToken, q.ExcludePreBookingID)
	if err != nil {
		return false, err
	}
	ok := snap.free(Interval{Start: q.StartTime, End: q.EndTime})
	c.metrics.ObserveAvailability(ok)
	return ok, nil
}

// DaySchedule marks each grid slot unavailable when its start falls inside a
// booked or held interval.
func (c *Checker) DaySchedule(ctx context.Context, date model.Date, stylistID string) ([]Slot, error) {
	if stylistID == "" {
		return nil, fmt.Errorf("%w: stylist is required", model.ErrValidation)
	}
	snap, err := c.load(ctx, date, stylistID, "", "")
	if err != nil {
		return nil, err
	}
	busy := append(append([]Interval(nil), snap.appointments...), snap.holds...)
	slots := GenerateSlots(c.hours)
	for i := range slots {
		for _, b := range busy {
			if b.Contains(slots[i].StartTime) {
				slots[i].Available = false
				break
			}
		}
	}
	return slots, nil
}

// FreeStarts lists grid starts where a booking of duration minutes would be
// available. Starts already in the past are skipped.
func (c *Checker) FreeStarts(ctx context.Context, date model.Date, stylistID string, duration int, excludeToken string) ([]Slot, error) {
	if stylistID == "" {
		return nil, fmt.Errorf("%w: stylist is required", model.ErrValidation)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", model.ErrValidation)
	}
	snap, err := c.load(ctx, date, stylistID, excludeToken, "")
	if err != nil {
		return nil, err
	}

	now := c.now()
	today := model.DateOf(now, c.loc)
	if date.Before(today) {
		return nil, nil
	}
	nowClock := model.ClockOf(now, c.loc)

	var out []Slot
	for _, s := range GenerateSlots(c.hours) {
		candidate := Interval{Start: s.StartTime, End: s.StartTime.Add(duration)}
		if candidate.End > c.hours.End {
			break
		}
		if date == today && candidate.Start < nowClock {
			continue
		}
		if snap.free(candidate) {
			out = append(out, Slot{StartTime: candidate.Start, EndTime: candidate.End, Available: true})
		}
	}
	return out, nil
}

type snapshot struct {
	buffer       int
	holds        []Interval
	appointments []Interval
}

// free applies the buffer to the candidate only; stored intervals are raw.
func (s snapshot) free(candidate Interval) bool {
	buffered := candidate.Expand(s.buffer)
	return !overlapsAny(buffered, s.holds) && !overlapsAny(buffered, s.appointments)
}

func (c *Checker) load(ctx context.Context, date model.Date, stylistID, excludeToken, excludeHold string) (snapshot, error) {
	purged, err := c.holds.PurgeExpired(ctx)
	if err != nil {
		return snapshot{}, fmt.Errorf("%w: purge pre-bookings: %w", model.ErrPersistenceFailure, err)
	}
	c.metrics.ObservePurged(purged)

	var snap snapshot
	if c.settings != nil {
		settings, err := c.settings.AppointmentSettings(ctx)
		if err != nil {
			return snapshot{}, fmt.Errorf("%w: load appointment settings: %w", model.ErrPersistenceFailure, err)
		}
		snap.buffer = settings.BufferTimeBetweenAppointments
	}

	holds, err := c.holds.Active(ctx, date, stylistID)
	if err != nil {
		return snapshot{}, fmt.Errorf("%w: list pre-bookings: %w", model.ErrPersistenceFailure, err)
	}
	for _, h := range holds {
		if excludeHold != "" && h.ID == excludeHold {
			continue
		}
		snap.holds = append(snap.holds, Interval{Start: h.StartTime, End: h.EndTime})
	}

	for _, a := range c.book.LiveOn(date, stylistID) {
		if !a.Status.Live() || (excludeToken != "" && a.ModificationToken == excludeToken) {
			continue
		}
		snap.appointments = append(snap.appointments, Interval{Start: a.StartTime, End: a.EndTime})
	}
	return snap, nil
}
