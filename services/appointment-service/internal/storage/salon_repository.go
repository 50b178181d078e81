package storage

import (
	"context"

	"github.com/Trio-Ads/saloneo/libs/db"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

// SalonRepository reads the salon's catalog, staff, clients and settings.
type SalonRepository struct {
	conn db.Conn
}

func NewSalonRepository(conn db.Conn) *SalonRepository {
	return &SalonRepository{conn: conn}
}

func (r *SalonRepository) ServiceDuration(ctx context.Context, serviceID string) (int, error) {
	var minutes int
	err := r.conn.QueryRow(ctx, `
		SELECT duration_minutes
		FROM salon_services
		WHERE id = $1 AND active
	`, serviceID).Scan(&minutes)
	if err != nil {
		return 0, classify(err)
	}
	return minutes, nil
}

func (r *SalonRepository) LoadSettings(ctx context.Context) (model.CancellationPolicy, model.AppointmentSettings, error) {
	var (
		cp model.CancellationPolicy
		s  model.AppointmentSettings
	)
	err := r.conn.QueryRow(ctx, `
		SELECT min_hours_before_appointment, max_reschedules_allowed, cancellation_fee, buffer_minutes
		FROM salon_settings
		WHERE id = 1
	`).Scan(&cp.MinHoursBeforeAppointment, &cp.MaxReschedulesAllowed, &cp.CancellationFee, &s.BufferTimeBetweenAppointments)
	if err != nil {
		return model.CancellationPolicy{}, model.AppointmentSettings{}, classify(err)
	}
	return cp, s, nil
}

func (r *SalonRepository) ServiceName(ctx context.Context, id string) (string, error) {
	return r.name(ctx, `SELECT name FROM salon_services WHERE id = $1`, id)
}

func (r *SalonRepository) StylistName(ctx context.Context, id string) (string, error) {
	return r.name(ctx, `SELECT display_name FROM stylists WHERE id = $1`, id)
}

func (r *SalonRepository) ClientName(ctx context.Context, id string) (string, error) {
	return r.name(ctx, `SELECT first_name || ' ' || last_name FROM clients WHERE id = $1`, id)
}

func (r *SalonRepository) name(ctx context.Context, query, id string) (string, error) {
	var name string
	if err := r.conn.QueryRow(ctx, query, id).Scan(&name); err != nil {
		return "", classify(err)
	}
	return name, nil
}
