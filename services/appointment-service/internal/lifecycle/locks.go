package lifecycle

import (
	"slices"
	"sync"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

// keyLocks serializes check-then-write sequences per stylist and day.
// Entries are dropped once nobody holds or waits on them.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: map[string]*keyLock{}}
}

func slotKey(date model.Date, stylistID string) string {
	return date.String() + "/" + stylistID
}

// lock acquires every key in a stable order and returns the release func.
func (k *keyLocks) lock(keys ...string) func() {
	keys = dedupeSorted(keys)
	held := make([]*keyLock, 0, len(keys))
	for _, key := range keys {
		k.mu.Lock()
		l := k.locks[key]
		if l == nil {
			l = &keyLock{}
			k.locks[key] = l
		}
		l.refs++
		k.mu.Unlock()

		l.mu.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			k.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(k.locks, keys[i])
			}
			k.mu.Unlock()
		}
	}
}

func (k *keyLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func dedupeSorted(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}
