package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"

	"github.com/Trio-Ads/saloneo/libs/db"
	"github.com/Trio-Ads/saloneo/libs/kafkax"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/metrics"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
	// MaxBackoff caps the wait after consecutive failed polls.
	MaxBackoff time.Duration
	Metrics    *metrics.BookingMetrics
}

// Publisher relays committed outbox rows to Kafka. Rows are marked only after
// the broker acknowledged them, so delivery is at least once.
type Publisher struct {
	conn    db.Conn
	repo    *Repository
	logger  *slog.Logger
	brokers []string
	cfg     PublisherConfig
}

func NewPublisher(conn db.Conn, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxBackoff < cfg.PollEvery {
		cfg.MaxBackoff = 16 * cfg.PollEvery
	}
	return &Publisher{
		conn:    conn,
		repo:    repo,
		logger:  logger,
		brokers: kafkax.SplitBrokers(cfg.Brokers),
		cfg:     cfg,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled, no kafka brokers configured")
		return
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	wait := p.cfg.PollEvery
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if err := p.Drain(ctx, writer); err != nil {
			if ctx.Err() != nil {
				return
			}
			wait = min(wait*2, p.cfg.MaxBackoff)
			p.logger.Error("outbox publish failed", "err", err, "retry_in", wait.String())
		} else {
			wait = p.cfg.PollEvery
		}
		timer.Reset(wait)
	}
}

// Drain ships batches until a short batch shows the backlog is empty.
func (p *Publisher) Drain(ctx context.Context, writer MessageWriter) error {
	for {
		n, err := p.PublishBatch(ctx, writer)
		if err != nil || n < p.cfg.BatchSize || ctx.Err() != nil {
			return err
		}
	}
}

// PublishBatch ships one batch of unpublished events and marks them
// published in the transaction that locked them.
func (p *Publisher) PublishBatch(ctx context.Context, writer MessageWriter) (int, error) {
	var batch []Record
	err := db.InTx(ctx, p.conn, func(tx pgx.Tx) error {
		records, err := p.repo.FetchUnpublished(ctx, tx, p.cfg.BatchSize)
		if err != nil || len(records) == 0 {
			return err
		}
		batch = records

		msgs := make([]kafka.Message, len(records))
		ids := make([]int64, len(records))
		for i, r := range records {
			msgs[i] = r.Message(ctx)
			ids[i] = r.ID
		}
		if err := writer.WriteMessages(ctx, msgs...); err != nil {
			return err
		}
		return p.repo.MarkPublished(ctx, tx, ids)
	})
	p.cfg.Metrics.ObserveOutbox(len(batch), err)
	if err != nil {
		return 0, err
	}
	return len(batch), nil
}
