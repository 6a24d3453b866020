package ratelimit

import (
	"context"
	"time"

	apperrors "github.com/jrsteele09/go-auth-core/internal/errors"
	"github.com/pkg/errors"
)

// Counter tracks attempts for one client key inside the current window.
type Counter struct {
	Attempts    int       `json:"attempts"`
	WindowStart time.Time `json:"window_start"`
}

// Store holds counters. Update must run fn atomically with respect to other
// calls for the same key; fn receives nil when no counter exists and
// returns the counter to keep (nil deletes it).
type Store interface {
	Update(ctx context.Context, key string, fn func(current *Counter) (*Counter, error)) error
	Delete(ctx context.Context, key string) error
}

// Config holds the limiter policy.
type Config struct {
	Enabled      bool
	Threshold    int
	Window       time.Duration
	StoreTimeout time.Duration
}

// Limiter blocks a client key once Threshold attempts were counted inside
// Window. The window is measured from the first attempt and expired
// counters are reset lazily on the next access.
type Limiter struct {
	store   Store
	config  Config
	nowFunc func() time.Time
}

type LimiterOption func(*Limiter)

// WithNowFunc sets the clock (primarily for testing)
func WithNowFunc(nowFunc func() time.Time) LimiterOption {
	return func(l *Limiter) {
		l.nowFunc = nowFunc
	}
}

func NewLimiter(store Store, config Config, options ...LimiterOption) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("[NewLimiter] store is required")
	}
	if config.Enabled {
		if config.Threshold < 1 {
			return nil, errors.New("[NewLimiter] threshold must be at least 1")
		}
		if config.Window <= 0 {
			return nil, errors.New("[NewLimiter] window must be positive")
		}
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = 2 * time.Second
	}

	l := &Limiter{
		store:   store,
		config:  config,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(l)
	}
	return l, nil
}

// CheckAndConsume counts one attempt for key, or rejects it with
// ErrTooManyRequests without counting when the key is already at the
// threshold.
func (l *Limiter) CheckAndConsume(ctx context.Context, key string) error {
	if !l.config.Enabled {
		return nil
	}

	now := l.nowFunc()
	var retryAfter time.Duration
	var blocked bool

	storeCtx, cancel := context.WithTimeout(ctx, l.config.StoreTimeout)
	defer cancel()
	err := l.store.Update(storeCtx, key, func(current *Counter) (*Counter, error) {
		blocked = false
		if current == nil || l.expired(current, now) {
			return &Counter{Attempts: 1, WindowStart: now}, nil
		}
		if current.Attempts >= l.config.Threshold {
			blocked = true
			retryAfter = current.WindowStart.Add(l.config.Window).Sub(now)
			return current, nil
		}
		next := *current
		next.Attempts++
		return &next, nil
	})
	if err != nil {
		return apperrors.StoreFailure(err, "[Limiter.CheckAndConsume] update counter")
	}
	if blocked {
		return apperrors.ErrTooManyRequests.WithRetryAfter(retryAfter)
	}
	return nil
}

// ReportOutcome clears the counter after a success. Failures keep the
// attempt counted by CheckAndConsume.
func (l *Limiter) ReportOutcome(ctx context.Context, key string, success bool) error {
	if !l.config.Enabled || !success {
		return nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, l.config.StoreTimeout)
	defer cancel()
	if err := l.store.Delete(storeCtx, key); err != nil {
		return apperrors.StoreFailure(err, "[Limiter.ReportOutcome] reset counter")
	}
	return nil
}

func (l *Limiter) expired(c *Counter, now time.Time) bool {
	return !now.Before(c.WindowStart.Add(l.config.Window))
}

// Window is exposed so shared stores can expire idle counters.
func (l *Limiter) Window() time.Duration {
	return l.config.Window
}
