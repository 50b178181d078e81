package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

func TestMemoryStoreRejectsOverlap(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	first, err := s.CreateAppointment(ctx, sampleAppointment())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	clash := sampleAppointment()
	clash.StartTime, clash.EndTime = 10*60+30, 11*60+30
	if _, err := s.CreateAppointment(ctx, clash); !errors.Is(err, model.ErrSlotUnavailable) {
		t.Fatalf("expected slot unavailable, got %v", err)
	}

	if err := s.UpdateAppointmentStatus(ctx, first.ID, model.StatusCancelled, "moved away", time.Now()); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := s.CreateAppointment(ctx, clash); err != nil {
		t.Fatalf("expected cancelled slot to be reusable, got %v", err)
	}

	all, _ := s.ListAppointments(ctx)
	if len(all) != 2 || all[0].CancellationReason != "moved away" {
		t.Fatalf("unexpected appointments: %+v", all)
	}
}

func TestMemoryStoreUpdateKeepsTokens(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	created, _ := s.CreateAppointment(ctx, sampleAppointment())

	moved := created
	moved.StartTime, moved.EndTime = 12*60, 13*60
	moved.PublicToken, moved.ModificationToken = "", ""
	got, err := s.UpdateAppointment(ctx, moved)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.PublicToken != "pub" || got.ModificationToken != "mod" {
		t.Fatalf("tokens lost: %+v", got)
	}
	missing := moved
	missing.ID = "nope"
	if _, err := s.UpdateAppointment(ctx, missing); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
