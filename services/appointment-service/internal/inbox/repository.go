package inbox

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Trio-Ads/saloneo/libs/db"
)

const uniqueViolation = "23505"

// Repository deduplicates consumed events by event id.
type Repository struct {
	conn db.Conn
}

func NewRepository(conn db.Conn) *Repository {
	return &Repository{conn: conn}
}

// Record returns false when the event was already seen.
func (r *Repository) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return false, nil
	}
	return false, err
}

// Forget removes an event so a redelivery is handled again.
func (r *Repository) Forget(ctx context.Context, eventID string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM inbox_events WHERE event_id = $1`, eventID)
	return err
}
