package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/outbox"
)

var appointmentRowColumns = []string{
	"id", "appointment_date", "start_minute", "end_minute", "stylist_id", "service_id",
	"client_id", "client_name", "client_email", "client_phone",
	"status", "notes", "public_token", "modification_token", "cancellation_reason",
	"last_modified", "created_at",
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func sampleAppointment() model.Appointment {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return model.Appointment{
		Date:              model.Date{Year: 2025, Month: time.June, Day: 10},
		StartTime:         10 * 60,
		EndTime:           11 * 60,
		StylistID:         "stylist-1",
		ServiceID:         "svc-cut",
		ClientInfo:        &model.ClientInfo{Name: "Ada"},
		Status:            model.StatusScheduled,
		PublicToken:       "pub",
		ModificationToken: "mod",
		LastModified:      now,
		CreatedAt:         now,
	}
}

func TestCreateAppointmentWritesOutbox(t *testing.T) {
	mock := newMock(t)
	appt := sampleAppointment()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO appointments").WithArgs(anyArgs(15)...).WillReturnRows(
		pgxmock.NewRows(appointmentRowColumns).AddRow(
			"appt-1", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), 600, 660, "stylist-1", "svc-cut",
			"", "Ada", "", "",
			"scheduled", "", "pub", "mod", "",
			appt.LastModified, appt.CreatedAt,
		),
	)
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(outbox.AggregateAppointment, "appt-1", outbox.EventAppointmentBooked, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	repo := NewAppointmentRepository(mock, outbox.NewRepository())
	got, err := repo.CreateAppointment(context.Background(), appt)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got.ID != "appt-1" || got.Date != appt.Date || got.StartTime != 600 || got.EndTime != 660 {
		t.Fatalf("unexpected appointment: %+v", got)
	}
	if got.ClientInfo == nil || got.ClientInfo.Name != "Ada" || got.ClientID != "" {
		t.Fatalf("unexpected client: %+v", got.ClientInfo)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateAppointmentMapsExclusionViolation(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO appointments").WithArgs(anyArgs(15)...).
		WillReturnError(&pgconn.PgError{Code: "23P01", Message: "conflicting key value violates exclusion constraint"})
	mock.ExpectRollback()

	repo := NewAppointmentRepository(mock, outbox.NewRepository())
	_, err := repo.CreateAppointment(context.Background(), sampleAppointment())
	if !errors.Is(err, model.ErrSlotUnavailable) {
		t.Fatalf("expected slot unavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateAppointmentStatusUnknownID(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE appointments").WithArgs(anyArgs(4)...).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	repo := NewAppointmentRepository(mock, outbox.NewRepository())
	err := repo.UpdateAppointmentStatus(context.Background(), "missing", model.StatusCompleted, "", time.Now())
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateAppointmentStatusEmitsEvent(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE appointments").WithArgs(anyArgs(4)...).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(outbox.AggregateAppointment, "appt-1", outbox.EventAppointmentStatusChanged, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	repo := NewAppointmentRepository(mock, outbox.NewRepository())
	if err := repo.UpdateAppointmentStatus(context.Background(), "appt-1", model.StatusCancelled, "sick", time.Now()); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListAppointmentsAndModifications(t *testing.T) {
	mock := newMock(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM appointments").WillReturnRows(
		pgxmock.NewRows(appointmentRowColumns).
			AddRow("a1", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), 600, 660, "s1", "svc", "c1", "", "", "", "confirmed", "vip", "p1", "m1", "", now, now).
			AddRow("a2", time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC), 540, 570, "s1", "svc", "", "Bob", "bob@example.com", "", "cancelled", "", "p2", "m2", "ill", now, now),
	)
	mock.ExpectQuery("FROM appointment_modifications").WillReturnRows(
		pgxmock.NewRows([]string{"appointment_id", "modification_token", "new_date", "new_start_minute", "new_stylist_id", "modified_at"}).
			AddRow("a1", "m1", nil, nil, nil, now),
	)

	repo := NewAppointmentRepository(mock, outbox.NewRepository())
	appts, err := repo.ListAppointments(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(appts) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(appts))
	}
	if appts[0].ClientInfo != nil || appts[0].ClientID != "c1" || appts[0].Status != model.StatusConfirmed {
		t.Fatalf("unexpected first appointment: %+v", appts[0])
	}
	if appts[1].ClientInfo == nil || appts[1].ClientInfo.Email != "bob@example.com" || appts[1].CancellationReason != "ill" {
		t.Fatalf("unexpected second appointment: %+v", appts[1])
	}

	mods, err := repo.ListModifications(context.Background())
	if err != nil {
		t.Fatalf("list modifications: %v", err)
	}
	if len(mods) != 1 || mods[0].NewDate != nil || mods[0].NewStartTime != nil {
		t.Fatalf("unexpected modifications: %+v", mods)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSalonRepositoryLookups(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("SELECT duration_minutes").WithArgs("svc-cut").WillReturnRows(pgxmock.NewRows([]string{"duration_minutes"}).AddRow(45))
	mock.ExpectQuery("SELECT duration_minutes").WithArgs("svc-gone").WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM salon_settings").WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM stylists").WithArgs("s1").WillReturnRows(pgxmock.NewRows([]string{"display_name"}).AddRow("Maya"))

	repo := NewSalonRepository(mock)
	ctx := context.Background()
	if d, err := repo.ServiceDuration(ctx, "svc-cut"); err != nil || d != 45 {
		t.Fatalf("expected 45, got %d err=%v", d, err)
	}
	if _, err := repo.ServiceDuration(ctx, "svc-gone"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := repo.LoadSettings(ctx); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if name, err := repo.StylistName(ctx, "s1"); err != nil || name != "Maya" {
		t.Fatalf("expected Maya, got %q err=%v", name, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func expectUpdate(mock pgxmock.PgxPoolIface, appt model.Appointment, prevStart int, event string) {
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT appointment_date, start_minute, end_minute, stylist_id").WithArgs("appt-1").WillReturnRows(
		pgxmock.NewRows([]string{"appointment_date", "start_minute", "end_minute", "stylist_id"}).
			AddRow(time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), prevStart, prevStart+60, "stylist-1"),
	)
	mock.ExpectQuery("UPDATE appointments").WithArgs(anyArgs(12)...).WillReturnRows(
		pgxmock.NewRows(appointmentRowColumns).AddRow(
			"appt-1", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), int(appt.StartTime), int(appt.EndTime), "stylist-1", "svc-cut",
			"", "Ada", "", "",
			string(appt.Status), appt.Notes, "pub", "mod", "",
			appt.LastModified, appt.CreatedAt,
		),
	)
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(outbox.AggregateAppointment, "appt-1", event, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
}

func TestUpdateAppointmentEventFollowsPlacement(t *testing.T) {
	t.Run("moved", func(t *testing.T) {
		mock := newMock(t)
		appt := sampleAppointment()
		appt.ID = "appt-1"
		appt.StartTime, appt.EndTime = 11*60, 12*60
		appt.Status = model.StatusRescheduled
		expectUpdate(mock, appt, 10*60, outbox.EventAppointmentRescheduled)

		got, err := NewAppointmentRepository(mock, outbox.NewRepository()).UpdateAppointment(context.Background(), appt)
		if err != nil || got.StartTime != 11*60 {
			t.Fatalf("update: %+v err=%v", got, err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("expectations: %v", err)
		}
	})
	t.Run("notes only", func(t *testing.T) {
		mock := newMock(t)
		appt := sampleAppointment()
		appt.ID = "appt-1"
		appt.Notes = "bring reference photo"
		expectUpdate(mock, appt, 10*60, outbox.EventAppointmentUpdated)

		if _, err := NewAppointmentRepository(mock, outbox.NewRepository()).UpdateAppointment(context.Background(), appt); err != nil {
			t.Fatalf("update: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("expectations: %v", err)
		}
	})
}

func TestUpdateAppointmentUnknownID(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT appointment_date").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	appt := sampleAppointment()
	appt.ID = "missing"
	if _, err := NewAppointmentRepository(mock, outbox.NewRepository()).UpdateAppointment(context.Background(), appt); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
