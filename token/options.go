package token

import "time"

const defaultStoreTimeout = 2 * time.Second

type settings struct {
	nowFunc      func() time.Time
	storeTimeout time.Duration
}

// Option configures an Issuer or Verifier.
type Option func(*settings)

// WithNowFunc sets the clock (primarily for testing)
func WithNowFunc(nowFunc func() time.Time) Option {
	return func(s *settings) {
		s.nowFunc = nowFunc
	}
}

// WithStoreTimeout bounds every revocation store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

func newSettings(options []Option) settings {
	s := settings{
		nowFunc:      time.Now,
		storeTimeout: defaultStoreTimeout,
	}
	for _, opt := range options {
		opt(&s)
	}
	return s
}
