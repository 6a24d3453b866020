package config

import "time"

type TokenConfig interface {
	GetJWTSecret() string
	GetJWTKeyFile() string
	GetJWTAlgorithm() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetVerifyEmailTokenExpiry() time.Duration
	GetResetPasswordTokenExpiry() time.Duration
}

type Token struct{}

var _ TokenConfig = Token{}

func (Token) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "")
}

// GetJWTKeyFile points at a PEM private key. When set it takes precedence
// over JWT_SECRET.
func (Token) GetJWTKeyFile() string {
	return GetEnv("JWT_KEY_FILE", "")
}

func (Token) GetJWTAlgorithm() string {
	return GetEnv("JWT_ALGORITHM", "HS256")
}

func (Token) GetAccessTokenExpiry() time.Duration {
	return GetEnvDuration("JWT_ACCESS_EXPIRATION", 30*time.Minute)
}

func (Token) GetRefreshTokenExpiry() time.Duration {
	return GetEnvDuration("JWT_REFRESH_EXPIRATION", 30*24*time.Hour)
}

func (Token) GetVerifyEmailTokenExpiry() time.Duration {
	return GetEnvDuration("JWT_VERIFY_EMAIL_EXPIRATION", 10*time.Minute)
}

func (Token) GetResetPasswordTokenExpiry() time.Duration {
	return GetEnvDuration("JWT_RESET_PASSWORD_EXPIRATION", 10*time.Minute)
}
