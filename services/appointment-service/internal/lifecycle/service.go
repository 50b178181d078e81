// Package lifecycle owns the in-memory appointment book and every state
// transition applied to it. Writes go to the Store first; local state is
// only updated once the store call has succeeded.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/availability"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/metrics"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/prebooking"
)

// Store is the persistence collaborator and system of record.
type Store interface {
	CreateAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error)
	UpdateAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id string, status model.Status, reason string, at time.Time) error
	ListAppointments(ctx context.Context) ([]model.Appointment, error)
	AppendModification(ctx context.Context, m model.Modification) error
	ListModifications(ctx context.Context) ([]model.Modification, error)
}

// Catalog resolves a service to its duration in minutes. Unknown services
// yield model.ErrNotFound.
type Catalog interface {
	ServiceDuration(ctx context.Context, serviceID string) (int, error)
}

type Config struct {
	Hours    model.BusinessHours
	Location *time.Location
	Now      func() time.Time
	Metrics  *metrics.BookingMetrics
	Logger   *slog.Logger
}

type Service struct {
	store   Store
	catalog Catalog
	holds   prebooking.Ledger
	checker *availability.Checker
	locks   *keyLocks
	loc     *time.Location
	now     func() time.Time
	metrics *metrics.BookingMetrics
	logger  *slog.Logger
	tracer  trace.Tracer

	// writeMu is held shared by every store write until its result is in
	// memory, and exclusively by Reload across list and swap, so a reload
	// never drops a write the store has committed.
	writeMu sync.RWMutex

	mu           sync.RWMutex
	appointments map[string]model.Appointment
	byPublic     map[string]string
	byMod        map[string]string
	mods         map[string][]model.Modification
}

func NewService(store Store, catalog Catalog, holds prebooking.Ledger, settings availability.SettingsSource, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Service{
		store:        store,
		catalog:      catalog,
		holds:        holds,
		locks:        newKeyLocks(),
		loc:          cfg.Location,
		now:          cfg.Now,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		tracer:       otel.Tracer("lifecycle"),
		appointments: map[string]model.Appointment{},
		byPublic:     map[string]string{},
		byMod:        map[string]string{},
		mods:         map[string][]model.Modification{},
	}
	s.checker = availability.NewChecker(s, holds, settings, availability.Config{
		Hours:    cfg.Hours,
		Location: cfg.Location,
		Now:      cfg.Now,
		Metrics:  cfg.Metrics,
	})
	return s
}

func (s *Service) Availability() *availability.Checker { return s.checker }

func (s *Service) Location() *time.Location { return s.loc }

// Reload replaces the in-memory collections with the store's view. On
// failure the current state is kept.
func (s *Service) Reload(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Reload")
	defer span.End()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	appts, err := s.store.ListAppointments(ctx)
	if err != nil {
		s.metrics.ObserveReload(false)
		span.RecordError(err)
		return persistErr("list appointments", err)
	}
	mods, err := s.store.ListModifications(ctx)
	if err != nil {
		s.metrics.ObserveReload(false)
		span.RecordError(err)
		return persistErr("list modifications", err)
	}

	byID := make(map[string]model.Appointment, len(appts))
	byPublic := make(map[string]string, len(appts))
	byMod := make(map[string]string, len(appts))
	for _, a := range appts {
		byID[a.ID] = a
		if a.PublicToken != "" {
			byPublic[a.PublicToken] = a.ID
		}
		if a.ModificationToken != "" {
			byMod[a.ModificationToken] = a.ID
		}
	}
	byAppt := map[string][]model.Modification{}
	for _, m := range mods {
		byAppt[m.AppointmentID] = append(byAppt[m.AppointmentID], m)
	}

	s.mu.Lock()
	s.appointments, s.byPublic, s.byMod, s.mods = byID, byPublic, byMod, byAppt
	s.mu.Unlock()

	s.metrics.ObserveReload(true)
	span.SetAttributes(attribute.Int("appointments.count", len(appts)))
	s.logger.Info("appointment book reloaded", "appointments", len(appts), "modifications", len(mods))
	return nil
}

func (s *Service) Get(id string) (model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("%w: appointment %s", model.ErrNotFound, id)
	}
	return a, nil
}

func (s *Service) ByPublicToken(token string) (model.Appointment, error) {
	return s.byToken(s.byPublic, token)
}

func (s *Service) ByModificationToken(token string) (model.Appointment, error) {
	return s.byToken(s.byMod, token)
}

func (s *Service) byToken(index map[string]string, token string) (model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if token == "" {
		return model.Appointment{}, fmt.Errorf("%w: empty token", model.ErrNotFound)
	}
	id, ok := index[token]
	if !ok {
		return model.Appointment{}, fmt.Errorf("%w: unknown token", model.ErrNotFound)
	}
	return s.appointments[id], nil
}

// List returns matching appointments ordered by date, start time and id.
func (s *Service) List(f model.Filter) []model.Appointment {
	s.mu.RLock()
	out := make([]model.Appointment, 0, len(s.appointments))
	for _, a := range s.appointments {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()
	sortAppointments(out)
	return out
}

// LiveOn lists the live appointments of a stylist on one day.
func (s *Service) LiveOn(date model.Date, stylistID string) []model.Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Appointment
	for _, a := range s.appointments {
		if a.Date == date && a.StylistID == stylistID && a.Status.Live() {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out
}

func (s *Service) ModificationCount(appointmentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mods[appointmentID])
}

func (s *Service) Modifications(appointmentID string) []model.Modification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Modification(nil), s.mods[appointmentID]...)
}

// RecordModification appends an audit record through the store.
func (s *Service) RecordModification(ctx context.Context, m model.Modification) error {
	if m.ModifiedAt.IsZero() {
		m.ModifiedAt = s.now()
	}
	return s.commit(func() error {
		if err := s.store.AppendModification(ctx, m); err != nil {
			return persistErr("append modification", err)
		}
		s.mu.Lock()
		s.mods[m.AppointmentID] = append(s.mods[m.AppointmentID], m)
		s.mu.Unlock()
		return nil
	})
}

// commit runs a store write together with its in-memory apply. Calls must
// not nest.
func (s *Service) commit(write func() error) error {
	s.writeMu.RLock()
	defer s.writeMu.RUnlock()
	return write()
}

func (s *Service) put(a model.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments[a.ID] = a
	if a.PublicToken != "" {
		s.byPublic[a.PublicToken] = a.ID
	}
	if a.ModificationToken != "" {
		s.byMod[a.ModificationToken] = a.ID
	}
}

func sortAppointments(appts []model.Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		a, b := appts[i], appts[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID < b.ID
	})
}

// persistErr keeps error kinds reported by the store and classifies
// everything else as a persistence failure.
func persistErr(op string, err error) error {
	for _, kind := range []error{model.ErrSlotUnavailable, model.ErrNotFound, model.ErrPersistenceFailure} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", model.ErrPersistenceFailure, op, err)
}
