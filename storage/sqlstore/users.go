package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/jrsteele09/go-auth-core/internal/errors"
	"github.com/jrsteele09/go-auth-core/users"
	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const pgUniqueViolation = "23505"

var _ users.UserRepo = (*UserRepo)(nil)

// UserRepo stores users in the users table.
type UserRepo struct {
	store *Store
}

const selectUser = `SELECT id, email, password_hash, status, date_joined, last_login FROM users`

func (r *UserRepo) Upsert(ctx context.Context, user *users.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = users.NormalizeEmail(user.Email)

	_, err := r.store.exec(ctx, `
		INSERT INTO users (id, email, password_hash, status, date_joined, last_login)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			password_hash = excluded.password_hash,
			status = excluded.status,
			date_joined = excluded.date_joined,
			last_login = excluded.last_login`,
		user.ID, user.Email, user.PasswordHash, string(user.Status), toUnix(user.DateJoined), toUnix(user.LastLogin))
	if isUniqueViolation(err) {
		// id conflicts are absorbed by ON CONFLICT, so this is the email index.
		return apperrors.ErrEmailTaken
	}
	if err != nil {
		return errors.Wrap(err, "[UserRepo.Upsert] exec")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	res, err := r.store.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "[UserRepo.Delete] exec")
	}
	return expectOneRow(res, "[UserRepo.Delete]")
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.get(ctx, selectUser+` WHERE email = ?`, users.NormalizeEmail(email))
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	return r.get(ctx, selectUser+` WHERE id = ?`, id)
}

func (r *UserRepo) SetStatus(ctx context.Context, id string, status users.Status) error {
	res, err := r.store.exec(ctx, `UPDATE users SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return errors.Wrap(err, "[UserRepo.SetStatus] exec")
	}
	return expectOneRow(res, "[UserRepo.SetStatus]")
}

func (r *UserRepo) SetPassword(ctx context.Context, id string, passwordHash string) error {
	res, err := r.store.exec(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return errors.Wrap(err, "[UserRepo.SetPassword] exec")
	}
	return expectOneRow(res, "[UserRepo.SetPassword]")
}

func (r *UserRepo) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := r.store.exec(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, toUnix(at), id)
	if err != nil {
		return errors.Wrap(err, "[UserRepo.SetLastLogin] exec")
	}
	return expectOneRow(res, "[UserRepo.SetLastLogin]")
}

func (r *UserRepo) get(ctx context.Context, query string, arg string) (*users.User, error) {
	var (
		u                    users.User
		status               string
		dateJoined, lastSeen int64
	)
	err := r.store.queryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &status, &dateJoined, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[UserRepo.get] scan")
	}
	u.Status = users.Status(status)
	u.DateJoined = fromUnix(dateJoined)
	u.LastLogin = fromUnix(lastSeen)
	return &u, nil
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, op+" rows affected")
	}
	if n == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}
