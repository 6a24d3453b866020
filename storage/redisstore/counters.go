package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jrsteele09/go-auth-core/ratelimit"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ ratelimit.Store = (*CounterStore)(nil)

// CounterStore keeps rate limit counters as JSON values. Each key lives
// for one window after its last write so idle clients disappear on their
// own.
type CounterStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCounterStore(rdb *redis.Client, window time.Duration) *CounterStore {
	return &CounterStore{rdb: rdb, ttl: window}
}

func (s *CounterStore) Update(ctx context.Context, key string, fn func(current *ratelimit.Counter) (*ratelimit.Counter, error)) error {
	rkey := counterKey(key)
	err := watchRetry(ctx, s.rdb, rkey, func(tx *redis.Tx) error {
		var current *ratelimit.Counter
		data, err := tx.Get(ctx, rkey).Bytes()
		switch {
		case err == redis.Nil:
		case err != nil:
			return err
		default:
			current = &ratelimit.Counter{}
			if err := json.Unmarshal(data, current); err != nil {
				return errors.Wrap(err, "decode counter")
			}
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, rkey)
				return nil
			}
			payload, err := json.Marshal(next)
			if err != nil {
				return err
			}
			pipe.Set(ctx, rkey, payload, s.ttl)
			return nil
		})
		return err
	})
	if err != nil {
		return errors.Wrap(err, "[CounterStore.Update] watch")
	}
	return nil
}

func (s *CounterStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, counterKey(key)).Err(); err != nil {
		return errors.Wrap(err, "[CounterStore.Delete] del")
	}
	return nil
}
