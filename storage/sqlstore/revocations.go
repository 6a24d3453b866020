package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/jrsteele09/go-auth-core/token"
	"github.com/pkg/errors"
)

var _ token.RevocationStore = (*RevocationStore)(nil)

// RevocationStore keeps token revocation records in the revocations table.
// Revoke is a conditional UPDATE, so only one caller can flip a record.
type RevocationStore struct {
	store *Store
}

func (r *RevocationStore) Get(ctx context.Context, id string) (bool, error) {
	var revoked bool
	err := r.store.queryRow(ctx, `SELECT revoked FROM revocations WHERE id = ?`, id).Scan(&revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, token.ErrRecordNotFound
	}
	if err != nil {
		return false, errors.Wrap(err, "[RevocationStore.Get] scan")
	}
	return revoked, nil
}

func (r *RevocationStore) Set(ctx context.Context, id string, revoked bool, expiresAt time.Time) error {
	_, err := r.store.exec(ctx, `
		INSERT INTO revocations (id, revoked, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			revoked = (revocations.revoked OR excluded.revoked),
			expires_at = excluded.expires_at`,
		id, revoked, toUnix(expiresAt))
	if err != nil {
		return errors.Wrap(err, "[RevocationStore.Set] exec")
	}
	return nil
}

func (r *RevocationStore) Revoke(ctx context.Context, id string) (bool, error) {
	res, err := r.store.exec(ctx, `UPDATE revocations SET revoked = TRUE WHERE id = ? AND revoked = FALSE`, id)
	if err != nil {
		return false, errors.Wrap(err, "[RevocationStore.Revoke] exec")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "[RevocationStore.Revoke] rows affected")
	}
	return n == 1, nil
}

// DeleteExpired removes records whose token expired at or before now.
func (r *RevocationStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.store.exec(ctx, `DELETE FROM revocations WHERE expires_at <= ?`, toUnix(now))
	if err != nil {
		return 0, errors.Wrap(err, "[RevocationStore.DeleteExpired] exec")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "[RevocationStore.DeleteExpired] rows affected")
	}
	return n, nil
}
