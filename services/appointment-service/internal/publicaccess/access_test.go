package publicaccess

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/lifecycle"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/policy"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/prebooking"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/storage"
)

var day = model.Date{Year: 2025, Month: time.June, Day: 10}

type env struct {
	book   *lifecycle.Service
	guard  *policy.Guard
	access *Service
	now    *time.Time
}

func newEnv(t *testing.T) env {
	t.Helper()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := storage.NewMemoryStore()
	store.AddService("svc-cut", storage.CatalogEntry{Name: "Cut", DurationMinutes: 60})
	provider := policy.NewStaticProvider(model.DefaultCancellationPolicy(), model.AppointmentSettings{})
	book := lifecycle.NewService(store, store, prebooking.NewMemoryLedger(prebooking.Options{Now: clock}), provider, lifecycle.Config{
		Now:    clock,
		Logger: logger,
	})
	guard := policy.NewGuard(book, provider, time.UTC, clock)
	return env{book: book, guard: guard, access: New(book, guard, book.Availability(), logger), now: &now}
}

func (e env) book10(t *testing.T, stylist string, start model.Clock) lifecycle.Created {
	t.Helper()
	created, err := e.book.Create(context.Background(), lifecycle.CreateInput{
		Date: day, StartTime: start, StylistID: stylist, ServiceID: "svc-cut", ClientID: "client-1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return created
}

func clockPtr(c model.Clock) *model.Clock { return &c }

func TestModifyReschedulesAndRecords(t *testing.T) {
	e := newEnv(t)
	created := e.book10(t, "S", 10*60)

	if !e.access.ValidateModificationToken(created.ModificationToken) {
		t.Fatal("expected token to be valid")
	}
	updated, err := e.access.Modify(context.Background(), created.ModificationToken, ModifyRequest{StartTime: clockPtr(11 * 60)})
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	if updated.Status != model.StatusRescheduled || updated.StartTime != 11*60 || updated.EndTime != 12*60 {
		t.Fatalf("unexpected appointment after modify: %+v", updated)
	}
	mods := e.book.Modifications(updated.ID)
	if len(mods) != 1 || mods[0].NewStartTime == nil || *mods[0].NewStartTime != 11*60 {
		t.Fatalf("expected one modification to 11:00, got %+v", mods)
	}

	viewed, err := e.access.ResolveByPublicToken(created.PublicToken)
	if err != nil || viewed.StartTime != 11*60 {
		t.Fatalf("public view mismatch: %+v err=%v", viewed, err)
	}
}

func TestModifyEnforcesRescheduleLimit(t *testing.T) {
	e := newEnv(t)
	created := e.book10(t, "S", 10*60)
	ctx := context.Background()

	for _, start := range []model.Clock{11 * 60, 12 * 60} {
		if _, err := e.access.Modify(ctx, created.ModificationToken, ModifyRequest{StartTime: clockPtr(start)}); err != nil {
			t.Fatalf("modify to %s: %v", start, err)
		}
	}
	_, err := e.access.Modify(ctx, created.ModificationToken, ModifyRequest{StartTime: clockPtr(13 * 60)})
	var denied *policy.DeniedError
	if !errors.As(err, &denied) || denied.Reason != policy.ReasonRescheduleLimitReached {
		t.Fatalf("expected reschedule limit, got %v", err)
	}
	if !errors.Is(err, model.ErrModificationWindowExpired) {
		t.Fatalf("expected window expired kind, got %v", err)
	}
}

func TestModifyRejectsTakenSlot(t *testing.T) {
	e := newEnv(t)
	mine := e.book10(t, "S", 10*60)
	e.book10(t, "S", 11*60)

	_, err := e.access.Modify(context.Background(), mine.ModificationToken, ModifyRequest{StartTime: clockPtr(11*60 + 30)})
	if !errors.Is(err, model.ErrSlotUnavailable) {
		t.Fatalf("expected slot unavailable, got %v", err)
	}
	if n := len(e.book.Modifications(mine.Appointment.ID)); n != 0 {
		t.Fatalf("failed modify must not be recorded, got %d", n)
	}
}

func TestModifyWithinLeadTimeIsRefused(t *testing.T) {
	e := newEnv(t)
	created := e.book10(t, "S", 10*60)
	*e.now = day.At(10*60, time.UTC).Add(-23 * time.Hour)

	_, err := e.access.Cancel(context.Background(), created.ModificationToken, "change of plans")
	var denied *policy.DeniedError
	if !errors.As(err, &denied) || denied.Reason != policy.ReasonInsufficientLeadTime {
		t.Fatalf("expected insufficient lead time, got %v", err)
	}
}

func TestCancelInvalidatesToken(t *testing.T) {
	e := newEnv(t)
	created := e.book10(t, "S", 10*60)
	ctx := context.Background()

	cancelled, err := e.access.Cancel(ctx, created.ModificationToken, "sick")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != model.StatusCancelled || cancelled.CancellationReason != "sick" {
		t.Fatalf("unexpected cancel result: %+v", cancelled)
	}
	if e.access.ValidateModificationToken(created.ModificationToken) {
		t.Fatal("token of a cancelled appointment must be invalid")
	}
	d, err := e.access.Decision(ctx, created.ModificationToken)
	if err != nil || d.Allowed || d.Reason != policy.ReasonTerminalStatus {
		t.Fatalf("unexpected decision: %+v err=%v", d, err)
	}
}

func TestUnknownTokens(t *testing.T) {
	e := newEnv(t)
	if _, err := e.access.Modify(context.Background(), "nope", ModifyRequest{StartTime: clockPtr(9 * 60)}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := e.access.ResolveByPublicToken("nope"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if e.access.ValidateModificationToken("") {
		t.Fatal("empty token must be invalid")
	}
}

// slowGuard widens the window between the guard decision and the write.
type slowGuard struct{ inner Guard }

func (g slowGuard) Check(ctx context.Context, appt model.Appointment) (policy.Decision, error) {
	d, err := g.inner.Check(ctx, appt)
	time.Sleep(10 * time.Millisecond)
	return d, err
}

func TestConcurrentModifiesRespectRescheduleLimit(t *testing.T) {
	e := newEnv(t)
	created := e.book10(t, "S", 10*60)
	ctx := context.Background()
	if _, err := e.access.Modify(ctx, created.ModificationToken, ModifyRequest{StartTime: clockPtr(15 * 60)}); err != nil {
		t.Fatalf("first modify: %v", err)
	}

	access := New(e.book, slowGuard{inner: e.guard}, e.book.Availability(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	starts := []model.Clock{9 * 60, 11 * 60, 12 * 60, 13 * 60, 16 * 60, 17 * 60}
	errs := make([]error, len(starts))
	var wg sync.WaitGroup
	for i, start := range starts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = access.Modify(ctx, created.ModificationToken, ModifyRequest{StartTime: clockPtr(start)})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		var denied *policy.DeniedError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &denied) && denied.Reason == policy.ReasonRescheduleLimitReached:
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected one modify to pass the limit, got %d", succeeded)
	}
	if n := len(e.book.Modifications(created.Appointment.ID)); n != 2 {
		t.Fatalf("expected 2 modifications, got %d", n)
	}
}
