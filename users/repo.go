package users

import (
	"context"
	"time"
)

// UserRepo is the user store consumed by the auth core. Lookups of a
// missing user return errors.ErrUserNotFound.
type UserRepo interface {
	Upsert(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	SetStatus(ctx context.Context, id string, status Status) error
	SetPassword(ctx context.Context, id string, passwordHash string) error
	SetLastLogin(ctx context.Context, id string, at time.Time) error
}
