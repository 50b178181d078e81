package main

import (
	"testing"
	"time"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

func TestLoadSettingsDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://salon@localhost/salon")
	s, err := loadSettings()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.hours != model.DefaultBusinessHours() {
		t.Fatalf("unexpected hours %+v", s.hours)
	}
	if s.policy.MinHoursBeforeAppointment != 24 || s.policy.MaxReschedulesAllowed != 2 {
		t.Fatalf("unexpected policy %+v", s.policy)
	}
	if s.holdTTL != 15*time.Minute || s.reconcileEvery != 0 || s.reconcileWith != model.StatusCompleted {
		t.Fatalf("unexpected worker settings %+v", s)
	}
	if s.grpcPort != "9093" || s.location != time.UTC {
		t.Fatalf("unexpected ports or zone: %q %v", s.grpcPort, s.location)
	}
}

func TestLoadSettingsRejectsBadValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://salon@localhost/salon")
	for key, value := range map[string]string{
		"BUSINESS_HOURS_END": "08:00",
		"RECONCILE_ACTION":   "cancelled",
		"SALON_TIMEZONE":     "Mars/Olympus",
		"PREBOOKING_TTL":     "fifteen",
		"POLICY_CANCELLATION_FEE": "-5",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := loadSettings(); err == nil {
				t.Fatalf("expected %s=%s to be rejected", key, value)
			}
		})
	}
}

func TestLoadSettingsAcceptsFractionalFee(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://salon@localhost/salon")
	t.Setenv("POLICY_CANCELLATION_FEE", "12.50")
	s, err := loadSettings()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.policy.CancellationFee != 12.5 {
		t.Fatalf("expected fee 12.5, got %v", s.policy.CancellationFee)
	}
}

func TestLoadSettingsRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := loadSettings(); err == nil {
		t.Fatal("expected DATABASE_URL to be required")
	}
}
