package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/availability"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

type CatalogEntry struct {
	Name            string
	DurationMinutes int
}

// MemoryStore keeps everything in process. It enforces the same no-overlap
// rule as the Postgres exclusion constraint.
type MemoryStore struct {
	mu       sync.Mutex
	appts    map[string]model.Appointment
	order    []string
	mods     []model.Modification
	services map[string]CatalogEntry
	stylists map[string]string
	clients  map[string]string
	policy   *model.CancellationPolicy
	settings model.AppointmentSettings
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		appts:    map[string]model.Appointment{},
		services: map[string]CatalogEntry{},
		stylists: map[string]string{},
		clients:  map[string]string{},
	}
}

func (s *MemoryStore) AddService(id string, entry CatalogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[id] = entry
}

func (s *MemoryStore) AddStylist(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stylists[id] = name
}

func (s *MemoryStore) AddClient(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[id] = name
}

func (s *MemoryStore) SaveSettings(cp model.CancellationPolicy, settings model.AppointmentSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = &cp
	s.settings = settings
}

// Seed inserts an appointment as-is, bypassing the overlap check.
func (s *MemoryStore) Seed(appts ...model.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range appts {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if _, ok := s.appts[a.ID]; !ok {
			s.order = append(s.order, a.ID)
		}
		s.appts[a.ID] = a
	}
}

func (s *MemoryStore) CreateAppointment(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conflictLocked(appt); err != nil {
		return model.Appointment{}, err
	}
	appt.ID = uuid.NewString()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = time.Now()
	}
	s.appts[appt.ID] = appt
	s.order = append(s.order, appt.ID)
	return appt, nil
}

func (s *MemoryStore) UpdateAppointment(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.appts[appt.ID]
	if !ok {
		return model.Appointment{}, fmt.Errorf("%w: appointment %s", model.ErrNotFound, appt.ID)
	}
	if err := s.conflictLocked(appt); err != nil {
		return model.Appointment{}, err
	}
	appt.PublicToken = current.PublicToken
	appt.ModificationToken = current.ModificationToken
	appt.CreatedAt = current.CreatedAt
	s.appts[appt.ID] = appt
	return appt, nil
}

func (s *MemoryStore) UpdateAppointmentStatus(_ context.Context, id string, status model.Status, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok {
		return fmt.Errorf("%w: appointment %s", model.ErrNotFound, id)
	}
	a.Status = status
	a.LastModified = at
	if status == model.StatusCancelled {
		a.CancellationReason = reason
	}
	s.appts[id] = a
	return nil
}

func (s *MemoryStore) ListAppointments(context.Context) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Appointment, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.appts[id])
	}
	return out, nil
}

func (s *MemoryStore) AppendModification(_ context.Context, m model.Modification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appts[m.AppointmentID]; !ok {
		return fmt.Errorf("%w: appointment %s", model.ErrNotFound, m.AppointmentID)
	}
	s.mods = append(s.mods, m)
	return nil
}

func (s *MemoryStore) ListModifications(context.Context) ([]model.Modification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Modification(nil), s.mods...), nil
}

func (s *MemoryStore) ServiceDuration(_ context.Context, serviceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.services[serviceID]
	if !ok {
		return 0, fmt.Errorf("%w: service %s", model.ErrNotFound, serviceID)
	}
	return e.DurationMinutes, nil
}

func (s *MemoryStore) LoadSettings(context.Context) (model.CancellationPolicy, model.AppointmentSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.policy == nil {
		return model.CancellationPolicy{}, model.AppointmentSettings{}, model.ErrNotFound
	}
	return *s.policy, s.settings, nil
}

func (s *MemoryStore) ServiceName(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.services[id]
	if !ok {
		return "", model.ErrNotFound
	}
	return e.Name, nil
}

func (s *MemoryStore) StylistName(_ context.Context, id string) (string, error) {
	return s.lookup(s.stylists, id)
}

func (s *MemoryStore) ClientName(_ context.Context, id string) (string, error) {
	return s.lookup(s.clients, id)
}

func (s *MemoryStore) lookup(names map[string]string, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := names[id]
	if !ok {
		return "", model.ErrNotFound
	}
	return name, nil
}

func (s *MemoryStore) conflictLocked(appt model.Appointment) error {
	if !appt.Status.Live() {
		return nil
	}
	candidate := placement(appt)
	for id, other := range s.appts {
		if id == appt.ID || !other.Status.Live() {
			continue
		}
		if availability.Conflicts(candidate, placement(other)) {
			return fmt.Errorf("%w: overlaps appointment %s", model.ErrSlotUnavailable, id)
		}
	}
	return nil
}

func placement(a model.Appointment) availability.Placement {
	return availability.Placement{
		Date:      a.Date,
		StylistID: a.StylistID,
		Interval:  availability.Interval{Start: a.StartTime, End: a.EndTime},
	}
}
