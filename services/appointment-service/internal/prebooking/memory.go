package prebooking

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

type MemoryLedger struct {
	opts  Options
	mu    sync.Mutex
	holds map[string]model.PreBooking
}

func NewMemoryLedger(opts Options) *MemoryLedger {
	return &MemoryLedger{opts: opts.withDefaults(), holds: map[string]model.PreBooking{}}
}

func (l *MemoryLedger) Add(_ context.Context, hold model.PreBooking) (string, error) {
	if err := validate(hold); err != nil {
		return "", err
	}
	hold.ID = l.opts.NewID()
	hold.Timestamp = l.opts.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.holds[hold.ID] = hold
	return hold.ID, nil
}

// Remove is idempotent; removing an unknown or already expired hold is not an error.
func (l *MemoryLedger) Remove(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.holds, id)
	return nil
}

func (l *MemoryLedger) PurgeExpired(_ context.Context) (int, error) {
	now := l.opts.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for id, h := range l.holds {
		if expired(h, now, l.opts.TTL) {
			delete(l.holds, id)
			n++
		}
	}
	return n, nil
}

func (l *MemoryLedger) Active(_ context.Context, date model.Date, stylistID string) ([]model.PreBooking, error) {
	now := l.opts.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.PreBooking
	for _, h := range l.holds {
		if h.Date != date || h.StylistID != stylistID || expired(h, now, l.opts.TTL) {
			continue
		}
		out = append(out, h)
	}
	sortHolds(out)
	return out, nil
}

func sortHolds(holds []model.PreBooking) {
	sort.Slice(holds, func(i, j int) bool {
		if holds[i].StartTime != holds[j].StartTime {
			return holds[i].StartTime < holds[j].StartTime
		}
		return holds[i].ID < holds[j].ID
	})
}

func newID() string { return uuid.NewString() }
