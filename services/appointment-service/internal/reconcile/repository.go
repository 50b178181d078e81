package reconcile

import (
	"context"
	"encoding/json"

	"github.com/Trio-Ads/saloneo/libs/db"
)

// RunRepository stores periodic run summaries in reconcile_runs.
type RunRepository struct {
	conn db.Conn
}

func NewRunRepository(conn db.Conn) *RunRepository {
	return &RunRepository{conn: conn}
}

func (r *RunRepository) Record(ctx context.Context, run Run) error {
	failures, err := json.Marshal(run.Failures)
	if err != nil {
		return err
	}
	_, err = r.conn.Exec(ctx, `
		INSERT INTO reconcile_runs (action, transitioned, failed, failures, last_error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	`, string(run.Action), run.Transitioned, len(run.Failures), failures, run.LastError, run.StartedAt, run.FinishedAt)
	return err
}
