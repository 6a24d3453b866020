package redisstore

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	revocationKeyPrefix = "revoked:"
	counterKeyPrefix    = "ratelimit:"

	// optimistic transactions retry this many times before giving up
	maxTxRetries = 16
)

var errTxContention = errors.New("redis transaction retries exhausted")

// NewClient parses a redis:// URL and checks the server is reachable.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "[redisstore.NewClient] parse url")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrap(err, "[redisstore.NewClient] ping")
	}
	return rdb, nil
}

// watchRetry runs fn inside WATCH key, retrying when another client
// touched the key before EXEC.
func watchRetry(ctx context.Context, rdb *redis.Client, key string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := rdb.Watch(ctx, fn, key)
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
	return errTxContention
}

func revocationKey(id string) string {
	return revocationKeyPrefix + id
}

func counterKey(key string) string {
	return counterKeyPrefix + key
}
