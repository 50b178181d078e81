package prebooking

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func slogDiscard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newRedisLedger(t *testing.T, clock *fakeClock) (*RedisLedger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLedger(rdb, "test", Options{Now: clock.Now, NewID: sequentialIDs()}), mr
}

func TestRedisLedgerLifecycle(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	l, _ := newRedisLedger(t, clock)
	ctx := context.Background()

	first, err := l.Add(ctx, hold(15*60, 16*60))
	require.NoError(t, err)
	_, err = l.Add(ctx, hold(10*60, 11*60))
	require.NoError(t, err)

	active, err := l.Active(ctx, testDay, "s1")
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, hold(10*60, 11*60).StartTime, active[0].StartTime)
	require.Equal(t, clock.Now(), active[0].Timestamp.UTC())

	require.NoError(t, l.Remove(ctx, first))
	require.NoError(t, l.Remove(ctx, first))
	active, err = l.Active(ctx, testDay, "s1")
	require.NoError(t, err)
	require.Len(t, active, 1)

	other, err := l.Active(ctx, testDay, "s2")
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestRedisLedgerPurgeUsesInjectedClock(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	l, mr := newRedisLedger(t, clock)
	ctx := context.Background()

	id, err := l.Add(ctx, hold(14*60, 15*60))
	require.NoError(t, err)

	clock.Advance(14 * time.Minute)
	n, err := l.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	active, err := l.Active(ctx, testDay, "s1")
	require.NoError(t, err)
	require.Len(t, active, 1)

	clock.Advance(time.Minute)
	active, err = l.Active(ctx, testDay, "s1")
	require.NoError(t, err)
	require.Empty(t, active)

	n, err = l.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.False(t, mr.Exists("test:hold:"+id))
}
