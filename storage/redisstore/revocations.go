package redisstore

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-core/token"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ token.RevocationStore = (*RevocationStore)(nil)

const (
	stateActive  = "0"
	stateRevoked = "1"
)

// RevocationStore keeps one key per token id holding "0" or "1". Keys
// expire together with their token, so no cleanup job is needed.
type RevocationStore struct {
	rdb *redis.Client
}

func NewRevocationStore(rdb *redis.Client) *RevocationStore {
	return &RevocationStore{rdb: rdb}
}

func (s *RevocationStore) Get(ctx context.Context, id string) (bool, error) {
	val, err := s.rdb.Get(ctx, revocationKey(id)).Result()
	if err == redis.Nil {
		return false, token.ErrRecordNotFound
	}
	if err != nil {
		return false, errors.Wrap(err, "[RevocationStore.Get] get")
	}
	return val == stateRevoked, nil
}

// Set writes an active record only when none exists, so it can never
// overwrite a revocation.
func (s *RevocationStore) Set(ctx context.Context, id string, revoked bool, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// the token is already dead; a missing record reads as revoked
		return nil
	}

	var err error
	if revoked {
		err = s.rdb.Set(ctx, revocationKey(id), stateRevoked, ttl).Err()
	} else {
		err = s.rdb.SetNX(ctx, revocationKey(id), stateActive, ttl).Err()
	}
	if err != nil {
		return errors.Wrap(err, "[RevocationStore.Set] set")
	}
	return nil
}

func (s *RevocationStore) Revoke(ctx context.Context, id string) (bool, error) {
	key := revocationKey(id)
	var flipped bool
	err := watchRetry(ctx, s.rdb, key, func(tx *redis.Tx) error {
		flipped = false
		val, err := tx.Get(ctx, key).Result()
		if err == redis.Nil || val == stateRevoked {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, stateRevoked, redis.KeepTTL)
			return nil
		})
		if err == nil {
			flipped = true
		}
		return err
	})
	if err != nil {
		return false, errors.Wrap(err, "[RevocationStore.Revoke] watch")
	}
	return flipped, nil
}
