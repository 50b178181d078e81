package prebooking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

// RedisLedger shares holds between service instances. Each hold is a JSON
// value under its own key; a global sorted set scored by creation time
// (unix ms) drives purging and a per stylist/day sorted set drives lookups.
// Key expiry is only a backstop, expiry decisions use the injected clock.
type RedisLedger struct {
	rdb    *redis.Client
	opts   Options
	prefix string
}

func NewRedisLedger(rdb *redis.Client, prefix string, opts Options) *RedisLedger {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "prebooking"
	}
	return &RedisLedger{rdb: rdb, opts: opts.withDefaults(), prefix: prefix}
}

func (l *RedisLedger) holdKey(id string) string { return l.prefix + ":hold:" + id }
func (l *RedisLedger) indexKey() string         { return l.prefix + ":index" }
func (l *RedisLedger) dayKey(date model.Date, stylistID string) string {
	return l.prefix + ":day:" + date.String() + ":" + stylistID
}

func (l *RedisLedger) Add(ctx context.Context, hold model.PreBooking) (string, error) {
	if err := validate(hold); err != nil {
		return "", err
	}
	hold.ID = l.opts.NewID()
	hold.Timestamp = l.opts.Now()

	raw, err := json.Marshal(hold)
	if err != nil {
		return "", err
	}
	score := float64(hold.Timestamp.UnixMilli())
	backstop := 2 * l.opts.TTL
	dayKey := l.dayKey(hold.Date, hold.StylistID)

	_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, l.holdKey(hold.ID), raw, backstop)
		pipe.ZAdd(ctx, l.indexKey(), redis.Z{Score: score, Member: hold.ID})
		pipe.ZAdd(ctx, dayKey, redis.Z{Score: score, Member: hold.ID})
		pipe.PExpire(ctx, dayKey, backstop)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("prebooking: add hold: %w", err)
	}
	return hold.ID, nil
}

func (l *RedisLedger) Remove(ctx context.Context, id string) error {
	hold, found, err := l.get(ctx, id)
	if err != nil {
		return err
	}
	_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, l.holdKey(id))
		pipe.ZRem(ctx, l.indexKey(), id)
		if found {
			pipe.ZRem(ctx, l.dayKey(hold.Date, hold.StylistID), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("prebooking: remove hold: %w", err)
	}
	return nil
}

func (l *RedisLedger) PurgeExpired(ctx context.Context) (int, error) {
	ids, err := l.rdb.ZRangeByScore(ctx, l.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: l.cutoff(),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("prebooking: scan expired: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	holds, err := l.load(ctx, ids)
	if err != nil {
		return 0, err
	}

	members := make([]any, 0, len(ids))
	for _, id := range ids {
		members = append(members, id)
	}
	_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, l.holdKey(id))
		}
		for _, h := range holds {
			pipe.ZRem(ctx, l.dayKey(h.Date, h.StylistID), h.ID)
		}
		pipe.ZRem(ctx, l.indexKey(), members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prebooking: purge expired: %w", err)
	}
	return len(ids), nil
}

func (l *RedisLedger) Active(ctx context.Context, date model.Date, stylistID string) ([]model.PreBooking, error) {
	ids, err := l.rdb.ZRangeByScore(ctx, l.dayKey(date, stylistID), &redis.ZRangeBy{
		Min: "(" + l.cutoff(),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("prebooking: list holds: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	holds, err := l.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortHolds(holds)
	return holds, nil
}

// cutoff is the newest creation time (unix ms) that counts as expired.
func (l *RedisLedger) cutoff() string {
	return strconv.FormatInt(l.opts.Now().Add(-l.opts.TTL).UnixMilli(), 10)
}

func (l *RedisLedger) get(ctx context.Context, id string) (model.PreBooking, bool, error) {
	raw, err := l.rdb.Get(ctx, l.holdKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.PreBooking{}, false, nil
	}
	if err != nil {
		return model.PreBooking{}, false, fmt.Errorf("prebooking: get hold: %w", err)
	}
	var hold model.PreBooking
	if err := json.Unmarshal(raw, &hold); err != nil {
		return model.PreBooking{}, false, fmt.Errorf("prebooking: decode hold: %w", err)
	}
	return hold, true, nil
}

func (l *RedisLedger) load(ctx context.Context, ids []string) ([]model.PreBooking, error) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, l.holdKey(id))
	}
	values, err := l.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("prebooking: load holds: %w", err)
	}
	holds := make([]model.PreBooking, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var hold model.PreBooking
		if err := json.Unmarshal([]byte(s), &hold); err != nil {
			return nil, fmt.Errorf("prebooking: decode hold: %w", err)
		}
		holds = append(holds, hold)
	}
	return holds, nil
}
