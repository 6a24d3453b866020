package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver, registered as "pgx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // sqlite driver, registered as "sqlite"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Dialect selects the driver and placeholder style.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Dialect) gooseDialect() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// Store holds the database handle shared by the user and revocation tables.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to dsn, applies sqlite pragmas when needed and runs the
// embedded migrations. Use ":memory:" for a throwaway sqlite database.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, errors.Wrap(err, "[sqlstore.Open] open database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "[sqlstore.Open] ping database")
	}

	if dialect == DialectSQLite {
		// one writer at a time; also keeps ":memory:" on a single connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		pragmas := []string{
			"PRAGMA journal_mode = WAL;",
			"PRAGMA synchronous = NORMAL;",
			"PRAGMA busy_timeout = 5000;",
		}
		for _, pragma := range pragmas {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, errors.Wrap(err, "[sqlstore.Open] set pragma")
			}
		}
	}

	s := New(db, dialect)
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Str("dialect", string(dialect)).Msg("database ready")
	return s, nil
}

// New wraps an already open handle without running migrations.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

func (s *Store) migrate(ctx context.Context) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(s.dialect.gooseDialect()); err != nil {
		return errors.Wrap(err, "[sqlstore.migrate] set dialect")
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return errors.Wrap(err, "[sqlstore.migrate] goose up")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Users() *UserRepo {
	return &UserRepo{store: s}
}

func (s *Store) Revocations() *RevocationStore {
	return &RevocationStore{store: s}
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

// Timestamps are stored as unix nanoseconds; 0 is the zero time.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
