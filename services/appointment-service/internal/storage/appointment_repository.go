package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Trio-Ads/saloneo/libs/db"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/outbox"
)

// AppointmentRepository is the Postgres system of record. Every mutation
// writes its outbox event in the same transaction.
type AppointmentRepository struct {
	conn   db.Conn
	outbox *outbox.Repository
}

func NewAppointmentRepository(conn db.Conn, outboxRepo *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{conn: conn, outbox: outboxRepo}
}

const appointmentColumns = `id::text, appointment_date, start_minute, end_minute, stylist_id, service_id,
	COALESCE(client_id, ''), COALESCE(client_name, ''), COALESCE(client_email, ''), COALESCE(client_phone, ''),
	status, COALESCE(notes, ''), public_token, modification_token, COALESCE(cancellation_reason, ''),
	last_modified, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var (
		a                              model.Appointment
		date                           time.Time
		start, end                     int
		clientName, clientEmail, phone string
		status                         string
	)
	if err := row.Scan(&a.ID, &date, &start, &end, &a.StylistID, &a.ServiceID,
		&a.ClientID, &clientName, &clientEmail, &phone,
		&status, &a.Notes, &a.PublicToken, &a.ModificationToken, &a.CancellationReason,
		&a.LastModified, &a.CreatedAt,
	); err != nil {
		return model.Appointment{}, err
	}
	a.Date = model.DateOf(date, time.UTC)
	a.StartTime = model.Clock(start)
	a.EndTime = model.Clock(end)
	a.Status = model.Status(status)
	if clientName != "" || clientEmail != "" || phone != "" {
		a.ClientInfo = &model.ClientInfo{Name: clientName, Email: clientEmail, Phone: phone}
	}
	return a, nil
}

func dateParam(d model.Date) time.Time { return d.At(0, time.UTC) }

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func clientFields(info *model.ClientInfo) (name, email, phone *string) {
	if info == nil {
		return nil, nil, nil
	}
	return nullable(info.Name), nullable(info.Email), nullable(info.Phone)
}

func (r *AppointmentRepository) CreateAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	name, email, phone := clientFields(appt.ClientInfo)
	var persisted model.Appointment
	err := db.InTx(ctx, r.conn, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO appointments
				(appointment_date, start_minute, end_minute, stylist_id, service_id, client_id, client_name, client_email, client_phone,
				 status, notes, public_token, modification_token, last_modified, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING `+appointmentColumns,
			dateParam(appt.Date), int(appt.StartTime), int(appt.EndTime), appt.StylistID, appt.ServiceID,
			nullable(appt.ClientID), name, email, phone,
			string(appt.Status), nullable(appt.Notes), appt.PublicToken, appt.ModificationToken,
			appt.LastModified, appt.CreatedAt,
		)
		var err error
		if persisted, err = scanAppointment(row); err != nil {
			return err
		}
		evt, err := outbox.NewAppointmentEvent(outbox.EventAppointmentBooked, persisted.ID, newAppointmentPayload(persisted))
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		return model.Appointment{}, classify(err)
	}
	return persisted, nil
}

// UpdateAppointment emits a rescheduled event when the placement moved and an
// updated event for detail-only edits.
func (r *AppointmentRepository) UpdateAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	name, email, phone := clientFields(appt.ClientInfo)
	var persisted model.Appointment
	err := db.InTx(ctx, r.conn, func(tx pgx.Tx) error {
		var (
			prevDate           time.Time
			prevStart, prevEnd int
			prevStylist        string
		)
		if err := tx.QueryRow(ctx, `
			SELECT appointment_date, start_minute, end_minute, stylist_id
			FROM appointments
			WHERE id = $1
			FOR UPDATE
		`, appt.ID).Scan(&prevDate, &prevStart, &prevEnd, &prevStylist); err != nil {
			return err
		}

		row := tx.QueryRow(ctx, `
			UPDATE appointments
			SET appointment_date = $2,
				start_minute = $3,
				end_minute = $4,
				stylist_id = $5,
				service_id = $6,
				client_name = $7,
				client_email = $8,
				client_phone = $9,
				status = $10,
				notes = $11,
				last_modified = $12
			WHERE id = $1
			RETURNING `+appointmentColumns,
			appt.ID, dateParam(appt.Date), int(appt.StartTime), int(appt.EndTime), appt.StylistID, appt.ServiceID,
			name, email, phone, string(appt.Status), nullable(appt.Notes), appt.LastModified,
		)
		var err error
		if persisted, err = scanAppointment(row); err != nil {
			return err
		}
		eventType := outbox.EventAppointmentUpdated
		if model.DateOf(prevDate, time.UTC) != persisted.Date || model.Clock(prevStart) != persisted.StartTime ||
			model.Clock(prevEnd) != persisted.EndTime || prevStylist != persisted.StylistID {
			eventType = outbox.EventAppointmentRescheduled
		}
		evt, err := outbox.NewAppointmentEvent(eventType, persisted.ID, newAppointmentPayload(persisted))
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		return model.Appointment{}, classify(err)
	}
	return persisted, nil
}

func (r *AppointmentRepository) UpdateAppointmentStatus(ctx context.Context, id string, status model.Status, reason string, at time.Time) error {
	err := db.InTx(ctx, r.conn, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE appointments
			SET status = $2,
				cancellation_reason = CASE WHEN $2 = 'cancelled' THEN $3 ELSE cancellation_reason END,
				last_modified = $4
			WHERE id = $1
		`, id, string(status), nullable(reason), at)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		evt, err := outbox.NewAppointmentEvent(outbox.EventAppointmentStatusChanged, id, statusPayload{
			AppointmentID: id,
			Status:        string(status),
			Reason:        reason,
			OccurredAt:    at.UTC(),
		})
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	return classify(err)
}

func (r *AppointmentRepository) ListAppointments(ctx context.Context) ([]model.Appointment, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		ORDER BY appointment_date, start_minute, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *AppointmentRepository) AppendModification(ctx context.Context, m model.Modification) error {
	var newDate *time.Time
	if m.NewDate != nil {
		d := dateParam(*m.NewDate)
		newDate = &d
	}
	var newStart *int
	if m.NewStartTime != nil {
		v := int(*m.NewStartTime)
		newStart = &v
	}
	err := db.InTx(ctx, r.conn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO appointment_modifications (appointment_id, modification_token, new_date, new_start_minute, new_stylist_id, modified_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, m.AppointmentID, m.ModificationToken, newDate, newStart, m.NewStylistID, m.ModifiedAt); err != nil {
			return err
		}
		evt, err := outbox.NewAppointmentEvent(outbox.EventAppointmentModified, m.AppointmentID, m)
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	return classify(err)
}

func (r *AppointmentRepository) ListModifications(ctx context.Context) ([]model.Modification, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT appointment_id::text, modification_token, new_date, new_start_minute, new_stylist_id, modified_at
		FROM appointment_modifications
		ORDER BY modified_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mods []model.Modification
	for rows.Next() {
		var (
			m        model.Modification
			newDate  *time.Time
			newStart *int
		)
		if err := rows.Scan(&m.AppointmentID, &m.ModificationToken, &newDate, &newStart, &m.NewStylistID, &m.ModifiedAt); err != nil {
			return nil, err
		}
		if newDate != nil {
			d := model.DateOf(*newDate, time.UTC)
			m.NewDate = &d
		}
		if newStart != nil {
			c := model.Clock(*newStart)
			m.NewStartTime = &c
		}
		mods = append(mods, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return mods, nil
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// classify tags driver errors with the matching domain error kind.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case IsConflict(err):
		return fmt.Errorf("%w: %w", model.ErrSlotUnavailable, err)
	case IsNotFound(err):
		return fmt.Errorf("%w: %w", model.ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %w", model.ErrPersistenceFailure, err)
	}
}

type appointmentPayload struct {
	AppointmentID string `json:"appointment_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	StylistID     string `json:"stylist_id"`
	ServiceID     string `json:"service_id"`
	ClientID      string `json:"client_id,omitempty"`
	Status        string `json:"status"`
	PublicToken   string `json:"public_token"`
}

func newAppointmentPayload(a model.Appointment) appointmentPayload {
	return appointmentPayload{
		AppointmentID: a.ID,
		Date:          a.Date.String(),
		StartTime:     a.StartTime.String(),
		EndTime:       a.EndTime.String(),
		StylistID:     a.StylistID,
		ServiceID:     a.ServiceID,
		ClientID:      a.ClientID,
		Status:        string(a.Status),
		PublicToken:   a.PublicToken,
	}
}

type statusPayload struct {
	AppointmentID string    `json:"appointment_id"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
