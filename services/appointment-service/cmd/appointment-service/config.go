package main

import (
	"fmt"
	"time"

	"github.com/Trio-Ads/saloneo/libs/config"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

type settings struct {
	service        string
	port           string
	grpcPort       string
	databaseURL    string
	redisURL       string
	kafkaBrokers   string
	kafkaGroupID   string
	changesTopic   string
	location       *time.Location
	hours          model.BusinessHours
	policy         model.CancellationPolicy
	appointment    model.AppointmentSettings
	holdTTL        time.Duration
	sweepEvery     time.Duration
	reconcileEvery time.Duration
	reconcileWith  model.Status
	publicRate     int
	corsOrigins    []string
}

func loadSettings() (settings, error) {
	var s settings
	var err error

	s.service = config.String("SERVICE_NAME", "appointment-service")
	if s.port, err = config.Port("PORT", "8083"); err != nil {
		return s, err
	}
	if config.Bool("GRPC_ENABLED", true) {
		if s.grpcPort, err = config.Port("GRPC_PORT", "9093"); err != nil {
			return s, err
		}
	}
	if s.databaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
		return s, err
	}
	s.redisURL = config.String("REDIS_URL", "")
	s.kafkaBrokers = config.String("KAFKA_BROKERS", "")
	s.kafkaGroupID = config.String("KAFKA_GROUP_ID", "appointment-service")
	s.changesTopic = config.String("KAFKA_CHANGES_TOPIC", "salon.appointments.changed.v1")
	s.corsOrigins = config.List("CORS_ALLOWED_ORIGINS")

	if s.location, err = time.LoadLocation(config.String("SALON_TIMEZONE", "UTC")); err != nil {
		return s, fmt.Errorf("SALON_TIMEZONE: %w", err)
	}

	s.hours = model.DefaultBusinessHours()
	if s.hours.Start, err = model.ParseClock(config.String("BUSINESS_HOURS_START", "09:00")); err != nil {
		return s, fmt.Errorf("BUSINESS_HOURS_START: %w", err)
	}
	if s.hours.End, err = model.ParseClock(config.String("BUSINESS_HOURS_END", "19:00")); err != nil {
		return s, fmt.Errorf("BUSINESS_HOURS_END: %w", err)
	}
	if s.hours.SlotDuration, err = config.Int("SLOT_DURATION_MINUTES", 15); err != nil {
		return s, err
	}
	if s.hours.End <= s.hours.Start || s.hours.SlotDuration <= 0 {
		return s, fmt.Errorf("business hours must span a positive range with a positive slot duration")
	}

	s.policy = model.DefaultCancellationPolicy()
	if s.policy.MinHoursBeforeAppointment, err = config.Int("POLICY_MIN_HOURS_BEFORE", 24); err != nil {
		return s, err
	}
	if s.policy.MaxReschedulesAllowed, err = config.Int("POLICY_MAX_RESCHEDULES", 2); err != nil {
		return s, err
	}
	if s.policy.CancellationFee, err = config.Float("POLICY_CANCELLATION_FEE", 0); err != nil {
		return s, err
	}
	if s.policy.CancellationFee < 0 {
		return s, fmt.Errorf("POLICY_CANCELLATION_FEE must not be negative")
	}
	if s.appointment.BufferTimeBetweenAppointments, err = config.Int("BUFFER_MINUTES", 0); err != nil {
		return s, err
	}

	if s.holdTTL, err = config.Duration("PREBOOKING_TTL", 15*time.Minute); err != nil {
		return s, err
	}
	if s.sweepEvery, err = config.Duration("PREBOOKING_SWEEP_INTERVAL", time.Minute); err != nil {
		return s, err
	}
	if s.reconcileEvery, err = config.Duration("RECONCILE_INTERVAL", 0); err != nil {
		return s, err
	}
	action, ok := model.ParseStatus(config.String("RECONCILE_ACTION", string(model.StatusCompleted)))
	if !ok || (action != model.StatusCompleted && action != model.StatusNoShow) {
		return s, fmt.Errorf("RECONCILE_ACTION must be completed or noShow")
	}
	s.reconcileWith = action
	if s.publicRate, err = config.Int("PUBLIC_RATE_LIMIT_PER_MIN", 60); err != nil {
		return s, err
	}
	return s, nil
}
