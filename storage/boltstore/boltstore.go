package boltstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jrsteele09/go-auth-core/ratelimit"
	"github.com/jrsteele09/go-auth-core/token"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var (
	bucketRevocations = []byte("revocations")
	bucketCounters    = []byte("counters")
)

var (
	_ token.RevocationStore = (*Store)(nil)
	_ ratelimit.Store       = (*CounterStore)(nil)
)

type revocationRecord struct {
	Revoked   bool      `json:"revoked"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store is a single-node bolt database holding revocation records and
// rate limit counters. Bolt serializes writers, so every Update is atomic.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "[boltstore.Open] open")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketRevocations, bucketCounters} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrapf(err, "create bucket %s", name)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "[boltstore.Open] init buckets")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Counters returns the rate limit counter store sharing this database.
func (s *Store) Counters() *CounterStore {
	return &CounterStore{db: s.db}
}

func (s *Store) Get(ctx context.Context, id string) (bool, error) {
	var rec *revocationRecord
	err := runTx(ctx, s.db.View, func(tx *bbolt.Tx) error {
		var err error
		rec, err = getRecord(tx.Bucket(bucketRevocations), id)
		return err
	})
	if err != nil {
		return false, errors.Wrap(err, "[boltstore.Get] view")
	}
	if rec == nil {
		return false, token.ErrRecordNotFound
	}
	return rec.Revoked, nil
}

func (s *Store) Set(ctx context.Context, id string, revoked bool, expiresAt time.Time) error {
	err := runTx(ctx, s.db.Update, func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRevocations)
		existing, err := getRecord(b, id)
		if err != nil {
			return err
		}
		rec := revocationRecord{Revoked: revoked, ExpiresAt: expiresAt}
		if existing != nil && existing.Revoked {
			rec.Revoked = true
		}
		return putJSON(b, id, rec)
	})
	return errors.Wrap(err, "[boltstore.Set] update")
}

func (s *Store) Revoke(ctx context.Context, id string) (bool, error) {
	var flipped bool
	err := runTx(ctx, s.db.Update, func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRevocations)
		rec, err := getRecord(b, id)
		if err != nil || rec == nil || rec.Revoked {
			return err
		}
		rec.Revoked = true
		flipped = true
		return putJSON(b, id, rec)
	})
	if err != nil {
		return false, errors.Wrap(err, "[boltstore.Revoke] update")
	}
	return flipped, nil
}

// Cleanup drops revocation records whose token expired and returns how
// many were removed.
func (s *Store) Cleanup(now time.Time) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRevocations)
		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var rec revocationRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return errors.Wrapf(err, "decode record %s", k)
			}
			if !now.Before(rec.ExpiresAt) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		return deleteKeys(b, expired, &removed)
	})
	if err != nil {
		return 0, errors.Wrap(err, "[boltstore.Cleanup] update")
	}
	return removed, nil
}

// runTx runs fn inside a bolt transaction but returns as soon as ctx is
// done. A transaction that only gets the lock after ctx expired rolls back
// without running fn.
func runTx(ctx context.Context, begin func(func(*bbolt.Tx) error) error, fn func(*bbolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		done <- begin(func(tx *bbolt.Tx) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(tx)
		})
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func getRecord(b *bbolt.Bucket, id string) (*revocationRecord, error) {
	data := b.Get([]byte(id))
	if data == nil {
		return nil, nil
	}
	var rec revocationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrapf(err, "decode record %s", id)
	}
	return &rec, nil
}

// deleteKeys runs after ForEach; bolt does not allow deleting while iterating.
func deleteKeys(b *bbolt.Bucket, keys [][]byte, removed *int) error {
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
		*removed++
	}
	return nil
}

func putJSON(b *bbolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return b.Put([]byte(key), data)
}
