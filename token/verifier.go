package token

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-auth-core/internal/errors"
)

// Verifier resolves a presented token back to its subject. Checks run in
// order: signature and kind, expiry, then revocation for revocable kinds.
type Verifier struct {
	signer      Signer
	revocations RevocationStore
	parser      *jwt.Parser
	settings
}

func NewVerifier(signer Signer, revocations RevocationStore, options ...Option) (*Verifier, error) {
	if signer == nil {
		return nil, errors.New("[NewVerifier] signer is required")
	}
	if revocations == nil {
		return nil, errors.New("[NewVerifier] revocation store is required")
	}

	return &Verifier{
		signer:      signer,
		revocations: revocations,
		// Expiry is checked against the injected clock below.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{signer.GetSigningMethod().Alg()}),
			jwt.WithoutClaimsValidation(),
		),
		settings: newSettings(options),
	}, nil
}

func (v *Verifier) Verify(ctx context.Context, raw string, expected Kind) (*Claims, error) {
	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(raw, claims, v.signer.GetVerificationKey)
	if err != nil || !parsed.Valid {
		return nil, apperrors.ErrInvalidToken.WithCause(err)
	}
	if claims.Type != expected || claims.Subject == "" || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, apperrors.ErrInvalidToken
	}

	if !v.nowFunc().Before(claims.ExpiresAt.Time) {
		return nil, apperrors.ErrTokenExpired
	}

	if expected.Revocable() {
		storeCtx, cancel := context.WithTimeout(ctx, v.storeTimeout)
		defer cancel()
		revoked, err := v.revocations.Get(storeCtx, claims.ID)
		if errors.Is(err, ErrRecordNotFound) {
			return nil, apperrors.ErrTokenRevoked
		}
		if err != nil {
			return nil, apperrors.StoreFailure(err, "[Verifier.Verify] revocation lookup")
		}
		if revoked {
			return nil, apperrors.ErrTokenRevoked
		}
	}

	return claims, nil
}

// Consume revokes a verified revocable token exactly once. A concurrent
// caller that loses the race gets ErrTokenRevoked.
func (v *Verifier) Consume(ctx context.Context, claims *Claims) error {
	storeCtx, cancel := context.WithTimeout(ctx, v.storeTimeout)
	defer cancel()
	swapped, err := v.revocations.Revoke(storeCtx, claims.ID)
	if err != nil {
		return apperrors.StoreFailure(err, "[Verifier.Consume] revoke")
	}
	if !swapped {
		return apperrors.ErrTokenRevoked
	}
	return nil
}

// Revoke marks a token revoked. Revoking twice is not an error.
func (v *Verifier) Revoke(ctx context.Context, claims *Claims) error {
	storeCtx, cancel := context.WithTimeout(ctx, v.storeTimeout)
	defer cancel()
	if err := v.revocations.Set(storeCtx, claims.ID, true, claims.ExpiresAt.Time); err != nil {
		return apperrors.StoreFailure(err, "[Verifier.Revoke] set revoked")
	}
	return nil
}
