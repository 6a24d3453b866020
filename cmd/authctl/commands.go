package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-core/internal/app"
	"github.com/jrsteele09/go-auth-core/internal/config"
	apperrors "github.com/jrsteele09/go-auth-core/internal/errors"
	"github.com/jrsteele09/go-auth-core/storage/sqlstore"
	"github.com/jrsteele09/go-auth-core/token"
	"github.com/jrsteele09/go-auth-core/users"
	"golang.org/x/term"
)

// readPassword is a seam for tests; it must not echo.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

func userAdd(ctx context.Context, c config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("useradd", flag.ContinueOnError)
	fs.SetOutput(out)
	email := fs.String("email", "", "login email")
	status := fs.String("status", string(users.StatusActive), "initial status: active or pending")
	if err := fs.Parse(args); err != nil {
		return err
	}

	*email = users.NormalizeEmail(*email)
	if *email == "" || !strings.Contains(*email, "@") {
		return fmt.Errorf("a valid -email is required")
	}
	st := users.Status(*status)
	if st != users.StatusActive && st != users.StatusPending {
		return fmt.Errorf("status must be active or pending, got %q", *status)
	}

	fmt.Fprint(out, "Enter password: ")
	pw, err := readPassword()
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if err := users.ValidatePasswordStrength(string(pw)); err != nil {
		return err
	}
	hash, err := users.HashPassword(string(pw))
	if err != nil {
		return err
	}

	dsn := c.GetDatabaseURL()
	dialect := sqlstore.DialectSQLite
	if app.IsPostgresURL(dsn) {
		dialect = sqlstore.DialectPostgres
	} else if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return err
	}
	store, err := sqlstore.Open(ctx, dialect, dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	repo := store.Users()
	if _, err := repo.GetByEmail(ctx, *email); err == nil {
		return apperrors.ErrEmailTaken
	} else if !apperrors.Is(err, apperrors.ErrUserNotFound) {
		return err
	}

	u := &users.User{Email: *email, PasswordHash: hash, Status: st, DateJoined: time.Now().UTC()}
	if err := repo.Upsert(ctx, u); err != nil {
		return err
	}
	fmt.Fprintf(out, "created user %s (%s)\n", u.Email, u.ID)
	return nil
}

func keygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(out)
	alg := fs.String("alg", "RS256", "RS256 or ES256")
	path := fs.String("out", "", "where to write the PEM private key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("-out is required")
	}

	var (
		kp  *token.KeyPair
		err error
	)
	switch strings.ToUpper(*alg) {
	case "RS256":
		kp, err = token.GenerateRSAKeyPair(2048)
	case "ES256":
		kp, err = token.GenerateECDSAKeyPair()
	default:
		return fmt.Errorf("unsupported -alg %q", *alg)
	}
	if err != nil {
		return err
	}

	pem, err := kp.ExportPrivateKeyPEM()
	if err != nil {
		return err
	}
	if err := os.WriteFile(*path, pem, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s key %s to %s\nset JWT_KEY_FILE=%s\n", kp.Algorithm, kp.KeyID, *path, *path)
	return nil
}
