package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Trio-Ads/saloneo/libs/kafkax"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Reader is the part of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Inbox records consumed event ids. Record returns false for duplicates.
type Inbox interface {
	Record(ctx context.Context, eventID, eventType string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type Consumer struct {
	reader  Reader
	logger  *slog.Logger
	inbox   Inbox
	handler Handler
	backoff time.Duration
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, inbox Inbox, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return NewWithReader(logger, inbox, reader, handler)
}

func NewWithReader(logger *slog.Logger, inbox Inbox, reader Reader, handler Handler) *Consumer {
	return &Consumer{
		reader:  reader,
		logger:  logger,
		inbox:   inbox,
		handler: handler,
		backoff: time.Second,
	}
}

// Run consumes until ctx is cancelled. A message is committed after it was
// handled or recognised as a duplicate; a failed handler releases its inbox
// entry so the redelivery is processed.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
			continue
		}
		if c.handle(ctx, msg) {
			if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				c.logger.Error("kafka commit failed", "err", err)
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) bool {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
	if err != nil {
		c.logger.Error("inbox record failed", "err", err)
		span.RecordError(err)
		return false
	}
	if !ok {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return true
	}

	if err := c.handler(ctxSpan, msg); err != nil {
		c.logger.Error("handler error", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
		if ferr := c.inbox.Forget(ctxSpan, meta.EventID); ferr != nil {
			c.logger.Error("inbox release failed", "err", ferr, "event_id", meta.EventID)
		}
		return false
	}
	return true
}
