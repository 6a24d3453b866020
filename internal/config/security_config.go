package config

import "time"

type SecurityConfig interface {
	GetEnableRateLimiting() bool
	GetRateLimitThreshold() int
	GetRateLimitWindow() time.Duration
	GetStoreTimeout() time.Duration
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetEnableRateLimiting defaults to on in production only.
func (Security) GetEnableRateLimiting() bool {
	return GetEnvBool("RATE_LIMIT_ENABLED", EnvVars{}.IsProduction())
}

func (Security) GetRateLimitThreshold() int {
	return GetEnvInt("RATE_LIMIT_THRESHOLD", 20)
}

func (Security) GetRateLimitWindow() time.Duration {
	return GetEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute)
}

// GetStoreTimeout bounds every call to the revocation and counter stores.
func (Security) GetStoreTimeout() time.Duration {
	return GetEnvDuration("STORE_TIMEOUT", 2*time.Second)
}
