// Package prebooking holds short-lived slot reservations taken while a
// booking wizard is in progress. Holds expire after a fixed TTL; expiry is
// applied lazily by PurgeExpired, which the availability checker calls
// before every read.
package prebooking

import (
	"context"
	"fmt"
	"time"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

const DefaultTTL = 15 * time.Minute

// Ledger is implemented by MemoryLedger and RedisLedger.
type Ledger interface {
	Add(ctx context.Context, hold model.PreBooking) (string, error)
	Remove(ctx context.Context, id string) error
	PurgeExpired(ctx context.Context) (int, error)
	Active(ctx context.Context, date model.Date, stylistID string) ([]model.PreBooking, error)
}

type Options struct {
	TTL time.Duration
	Now func() time.Time
	// NewID defaults to a random UUID.
	NewID func() string
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = newID
	}
	return o
}

func validate(hold model.PreBooking) error {
	if hold.StylistID == "" {
		return fmt.Errorf("%w: stylist is required", model.ErrValidation)
	}
	if hold.Date.IsZero() {
		return fmt.Errorf("%w: date is required", model.ErrValidation)
	}
	if hold.EndTime <= hold.StartTime {
		return fmt.Errorf("%w: end time must be after start time", model.ErrValidation)
	}
	return nil
}

// expired holds are those whose age has reached the TTL.
func expired(hold model.PreBooking, now time.Time, ttl time.Duration) bool {
	return now.Sub(hold.Timestamp) >= ttl
}
