package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-core/internal/config"
)

// Kind is the purpose a token was minted for.
type Kind string

const (
	KindAccess        Kind = "access"
	KindRefresh       Kind = "refresh"
	KindVerifyEmail   Kind = "verify_email"
	KindResetPassword Kind = "reset_password"
)

func (k Kind) Valid() bool {
	switch k {
	case KindAccess, KindRefresh, KindVerifyEmail, KindResetPassword:
		return true
	}
	return false
}

// Revocable kinds carry a revocation record. Access tokens are stateless.
func (k Kind) Revocable() bool {
	return k.Valid() && k != KindAccess
}

// Claims is the JWT payload: sub, jti, iat, exp plus the token kind.
type Claims struct {
	Type Kind `json:"type"`
	jwt.RegisteredClaims
}

// Token is an issued, signed token.
type Token struct {
	Raw      string    `json:"token"`
	Expires  time.Time `json:"expires"`
	ID       string    `json:"-"`
	Subject  string    `json:"-"`
	Kind     Kind      `json:"-"`
	IssuedAt time.Time `json:"-"`
}

// Pair is the access/refresh couple returned by login and refresh.
type Pair struct {
	Access  *Token `json:"access"`
	Refresh *Token `json:"refresh"`
}

// TTLs holds the lifetime of each token kind.
type TTLs struct {
	Access        time.Duration
	Refresh       time.Duration
	VerifyEmail   time.Duration
	ResetPassword time.Duration
}

func TTLsFromConfig(c config.TokenConfig) TTLs {
	return TTLs{
		Access:        c.GetAccessTokenExpiry(),
		Refresh:       c.GetRefreshTokenExpiry(),
		VerifyEmail:   c.GetVerifyEmailTokenExpiry(),
		ResetPassword: c.GetResetPasswordTokenExpiry(),
	}
}

func (t TTLs) For(kind Kind) time.Duration {
	switch kind {
	case KindAccess:
		return t.Access
	case KindRefresh:
		return t.Refresh
	case KindVerifyEmail:
		return t.VerifyEmail
	case KindResetPassword:
		return t.ResetPassword
	}
	return 0
}
