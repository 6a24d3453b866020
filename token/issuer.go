package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-auth-core/internal/errors"
	"github.com/pkg/errors"
)

// Issuer mints signed tokens. Revocable kinds get a fresh, active record in
// the revocation store.
type Issuer struct {
	signer      Signer
	revocations RevocationStore
	ttls        TTLs
	settings
}

func NewIssuer(signer Signer, revocations RevocationStore, ttls TTLs, options ...Option) (*Issuer, error) {
	if signer == nil {
		return nil, errors.New("[NewIssuer] signer is required")
	}
	if revocations == nil {
		return nil, errors.New("[NewIssuer] revocation store is required")
	}
	for _, kind := range []Kind{KindAccess, KindRefresh, KindVerifyEmail, KindResetPassword} {
		if ttls.For(kind) < time.Second {
			return nil, errors.Errorf("[NewIssuer] %s token TTL must be at least 1s", kind)
		}
	}

	return &Issuer{
		signer:      signer,
		revocations: revocations,
		ttls:        ttls,
		settings:    newSettings(options),
	}, nil
}

func (i *Issuer) Issue(ctx context.Context, subject string, kind Kind) (*Token, error) {
	if subject == "" {
		return nil, errors.New("[Issuer.Issue] subject is required")
	}
	if !kind.Valid() {
		return nil, errors.Errorf("[Issuer.Issue] unknown token kind %q", kind)
	}

	now := i.nowFunc()
	claims := &Claims{
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttls.For(kind))),
		},
	}

	raw, err := i.signer.Sign(claims)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.Issue] sign")
	}

	if kind.Revocable() {
		storeCtx, cancel := context.WithTimeout(ctx, i.storeTimeout)
		defer cancel()
		if err := i.revocations.Set(storeCtx, claims.ID, false, claims.ExpiresAt.Time); err != nil {
			return nil, apperrors.StoreFailure(err, "[Issuer.Issue] persist revocation record")
		}
	}

	return &Token{
		Raw:      raw,
		Expires:  claims.ExpiresAt.Time,
		ID:       claims.ID,
		Subject:  subject,
		Kind:     kind,
		IssuedAt: claims.IssuedAt.Time,
	}, nil
}

// IssuePair mints an access token and a refresh token for subject.
func (i *Issuer) IssuePair(ctx context.Context, subject string) (*Pair, error) {
	access, err := i.Issue(ctx, subject, KindAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := i.Issue(ctx, subject, KindRefresh)
	if err != nil {
		return nil, err
	}
	return &Pair{Access: access, Refresh: refresh}, nil
}
