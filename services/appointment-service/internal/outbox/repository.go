package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"

	"github.com/Trio-Ads/saloneo/libs/kafkax"
	otelx "github.com/Trio-Ads/saloneo/libs/otel"
)

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Insert writes evt inside tx so it commits together with the state change.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, evt Event) error {
	tc := otelx.CaptureTraceContext(ctx)
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, tc.Traceparent, tc.Tracestate)
	return err
}

type Record struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}

// Message renders the record as a Kafka message keyed by aggregate id so
// events of one appointment stay ordered within a partition.
func (rcd Record) Message(ctx context.Context) kafka.Message {
	msgCtx := otelx.TraceContext{Traceparent: rcd.Traceparent, Tracestate: rcd.Tracestate}.Attach(ctx)
	meta := kafkax.EventMeta{
		EventID:       rcd.EventID,
		EventType:     rcd.EventType,
		AggregateType: rcd.AggregateType,
		AggregateID:   rcd.AggregateID,
	}
	msg := kafka.Message{
		Topic:   rcd.EventType,
		Key:     []byte(rcd.AggregateID),
		Value:   rcd.Payload,
		Headers: meta.Headers(),
	}
	msg.Headers = kafkax.InjectTraceHeaders(msgCtx, msg.Headers)
	return msg
}

func (r *Repository) FetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_id::text, aggregate_type, aggregate_id, event_type, payload, COALESCE(traceparent, ''), COALESCE(tracestate, ''), created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rcd Record
		if err := rows.Scan(&rcd.ID, &rcd.EventID, &rcd.AggregateType, &rcd.AggregateID, &rcd.EventType, &rcd.Payload, &rcd.Traceparent, &rcd.Tracestate, &rcd.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rcd)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func (r *Repository) MarkPublished(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE outbox_events
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}
