package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-core/auth"
	"github.com/jrsteele09/go-auth-core/internal/config"
	"github.com/jrsteele09/go-auth-core/notify"
	"github.com/jrsteele09/go-auth-core/ratelimit"
	"github.com/jrsteele09/go-auth-core/server"
	"github.com/jrsteele09/go-auth-core/storage/boltstore"
	"github.com/jrsteele09/go-auth-core/storage/redisstore"
	"github.com/jrsteele09/go-auth-core/storage/sqlstore"
	"github.com/jrsteele09/go-auth-core/token"
	"github.com/jrsteele09/go-auth-core/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-core/users/repofake"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// cleaner purges records that can no longer matter at now.
type cleaner func(ctx context.Context, now time.Time) (int, error)

// App is the fully wired auth service.
type App struct {
	Server *server.Server
	Auth   *auth.AuthService

	cleaners []cleaner
	closers  []io.Closer
}

type stores struct {
	users       users.UserRepo
	revocations token.RevocationStore
	counters    ratelimit.Store
}

// Build wires stores, signer, token issuer/verifier, rate limiter,
// notifier, auth service and HTTP server from c.
func Build(ctx context.Context, c config.Config) (_ *App, returnErr error) {
	a := &App{}
	defer func() {
		if returnErr != nil {
			a.Close()
		}
	}()

	st, err := a.openStores(ctx, c)
	if err != nil {
		return nil, err
	}

	signer, err := token.NewSignerFromConfig(c)
	if err != nil {
		return nil, err
	}
	ttls := token.TTLsFromConfig(c)
	issuer, err := token.NewIssuer(signer, st.revocations, ttls, token.WithStoreTimeout(c.GetStoreTimeout()))
	if err != nil {
		return nil, err
	}
	verifier, err := token.NewVerifier(signer, st.revocations, token.WithStoreTimeout(c.GetStoreTimeout()))
	if err != nil {
		return nil, err
	}

	limiter, err := ratelimit.NewLimiter(st.counters, ratelimit.Config{
		Enabled:      c.GetEnableRateLimiting(),
		Threshold:    c.GetRateLimitThreshold(),
		Window:       c.GetRateLimitWindow(),
		StoreTimeout: c.GetStoreTimeout(),
	})
	if err != nil {
		return nil, err
	}

	sender, err := a.newSender(c)
	if err != nil {
		return nil, err
	}

	a.Auth, err = auth.NewAuthService(
		auth.Repos{Users: st.users},
		auth.Tokens{Issuer: issuer, Verifier: verifier},
		limiter,
		auth.WithNotifier(sender),
		auth.WithBaseURL(c.GetBaseURL()),
	)
	if err != nil {
		return nil, err
	}

	var serverOpts []server.ServerOption
	if kp, ok := signer.(*token.KeyPairSigner); ok {
		serverOpts = append(serverOpts, server.WithJWKS(kp))
	}
	a.Server, err = server.New(c, a.Auth, serverOpts...)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("store", string(c.GetStoreBackend())).
		Str("alg", signer.GetSigningMethod().Alg()).
		Bool("rate_limiting", c.GetEnableRateLimiting()).
		Msg("auth service wired")
	return a, nil
}

func (a *App) openStores(ctx context.Context, c config.Config) (*stores, error) {
	switch backend := c.GetStoreBackend(); backend {
	case config.BackendMemory:
		revocations := token.NewMemoryRevocationStore()
		counters := ratelimit.NewMemoryStore()
		window := c.GetRateLimitWindow()
		a.cleaners = append(a.cleaners,
			func(_ context.Context, now time.Time) (int, error) { return revocations.Cleanup(now), nil },
			func(_ context.Context, now time.Time) (int, error) { return counters.Cleanup(now.Add(-window)), nil },
		)
		return &stores{users: fakeuserrepo.NewFakeUserRepo(), revocations: revocations, counters: counters}, nil

	case config.BackendRedis:
		sqlStore, err := a.openSQL(ctx, c)
		if err != nil {
			return nil, err
		}
		rdb, err := redisstore.NewClient(ctx, c.GetRedisURL())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb)
		return &stores{
			users:       sqlStore.Users(),
			revocations: redisstore.NewRevocationStore(rdb),
			counters:    redisstore.NewCounterStore(rdb, c.GetRateLimitWindow()),
		}, nil

	case config.BackendSQLite, config.BackendPostgres:
		sqlStore, err := a.openSQL(ctx, c)
		if err != nil {
			return nil, err
		}
		revocations := sqlStore.Revocations()
		a.cleaners = append(a.cleaners, func(ctx context.Context, now time.Time) (int, error) {
			n, err := revocations.DeleteExpired(ctx, now)
			return int(n), err
		})
		// counters are per process; a shared limiter needs redis or bolt
		counters := ratelimit.NewMemoryStore()
		window := c.GetRateLimitWindow()
		a.cleaners = append(a.cleaners, func(_ context.Context, now time.Time) (int, error) {
			return counters.Cleanup(now.Add(-window)), nil
		})
		return &stores{users: sqlStore.Users(), revocations: revocations, counters: counters}, nil

	case config.BackendBolt:
		sqlStore, err := a.openSQL(ctx, c)
		if err != nil {
			return nil, err
		}
		bolt, err := boltstore.Open(c.GetBoltPath())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, bolt)
		counters := bolt.Counters()
		window := c.GetRateLimitWindow()
		a.cleaners = append(a.cleaners,
			func(_ context.Context, now time.Time) (int, error) { return bolt.Cleanup(now) },
			func(_ context.Context, now time.Time) (int, error) { return counters.Cleanup(now.Add(-window)) },
		)
		return &stores{users: sqlStore.Users(), revocations: bolt, counters: counters}, nil

	default:
		return nil, errors.Errorf("[app.Build] unknown STORE_BACKEND %q", backend)
	}
}

// openSQL opens the user database. postgres:// URLs select postgres,
// anything else is a sqlite path.
func (a *App) openSQL(ctx context.Context, c config.Config) (*sqlstore.Store, error) {
	dsn := c.GetDatabaseURL()
	dialect := sqlstore.DialectSQLite
	if c.GetStoreBackend() == config.BackendPostgres || IsPostgresURL(dsn) {
		dialect = sqlstore.DialectPostgres
	}
	if dialect == sqlstore.DialectSQLite && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, errors.Wrap(err, "[app.openSQL] create data dir")
		}
	}
	store, err := sqlstore.Open(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store)
	return store, nil
}

func IsPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func (a *App) newSender(c config.Config) (notify.Sender, error) {
	switch c.GetNotifyBackend() {
	case "queue":
		q, err := notify.NewQueueSender(c.GetNotifyRedisURL())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, q)
		return q, nil
	case "log", "":
		return notify.LogSender{From: c.GetEmailFrom()}, nil
	default:
		return nil, errors.Errorf("[app.Build] unknown NOTIFY_BACKEND %q", c.GetNotifyBackend())
	}
}

// Cleanup runs every store purge once and returns how many records went.
func (a *App) Cleanup(ctx context.Context, now time.Time) int {
	total := 0
	for _, clean := range a.cleaners {
		n, err := clean(ctx, now)
		if err != nil {
			log.Warn().Err(err).Msg("store cleanup failed")
			continue
		}
		total += n
	}
	return total
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (a *App) RunCleanup(ctx context.Context, interval time.Duration) {
	if len(a.cleaners) == 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := a.Cleanup(ctx, now); n > 0 {
				log.Debug().Int("removed", n).Msg("expired records purged")
			}
		}
	}
}

// Close releases stores and clients in reverse order of opening.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
