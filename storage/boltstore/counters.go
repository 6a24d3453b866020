package boltstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jrsteele09/go-auth-core/ratelimit"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

// CounterStore keeps rate limit counters in the counters bucket.
type CounterStore struct {
	db *bbolt.DB
}

func (s *CounterStore) Update(ctx context.Context, key string, fn func(current *ratelimit.Counter) (*ratelimit.Counter, error)) error {
	err := runTx(ctx, s.db.Update, func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCounters)
		var current *ratelimit.Counter
		if data := b.Get([]byte(key)); data != nil {
			current = &ratelimit.Counter{}
			if err := json.Unmarshal(data, current); err != nil {
				return errors.Wrapf(err, "decode counter %s", key)
			}
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			return b.Delete([]byte(key))
		}
		return putJSON(b, key, next)
	})
	return errors.Wrap(err, "[CounterStore.Update] update")
}

func (s *CounterStore) Delete(ctx context.Context, key string) error {
	err := runTx(ctx, s.db.Update, func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCounters).Delete([]byte(key))
	})
	return errors.Wrap(err, "[CounterStore.Delete] update")
}

// Cleanup drops counters whose window started before cutoff.
func (s *CounterStore) Cleanup(cutoff time.Time) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCounters)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var counter ratelimit.Counter
			if err := json.Unmarshal(v, &counter); err != nil {
				return errors.Wrapf(err, "decode counter %s", k)
			}
			if counter.WindowStart.Before(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		return deleteKeys(b, stale, &removed)
	})
	if err != nil {
		return 0, errors.Wrap(err, "[CounterStore.Cleanup] update")
	}
	return removed, nil
}
