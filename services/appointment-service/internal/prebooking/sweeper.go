package prebooking

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper purges expired holds on a ticker. It complements, and never
// replaces, the purge performed before each availability read.
type Sweeper struct {
	ledger   Ledger
	logger   *slog.Logger
	interval time.Duration
	onPurge  func(int)
}

func NewSweeper(ledger Ledger, logger *slog.Logger, interval time.Duration, onPurge func(int)) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{ledger: ledger, logger: logger, interval: interval, onPurge: onPurge}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.ledger.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error("pre-booking sweep failed", "err", err)
		return
	}
	if n > 0 {
		s.logger.Debug("expired pre-bookings purged", "count", n)
	}
	if s.onPurge != nil {
		s.onPurge(n)
	}
}
