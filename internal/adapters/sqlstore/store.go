package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/peloton/internal/adapters/repository"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/pkg/metrics"
)

const dateLayout = "2006-01-02"

// Store is a repository.Store and repository.Loader backed by database/sql.
type Store struct {
	db           *sql.DB
	backend      Backend
	migrate      bool
	maxOpenConns int
}

var (
	_ repository.Store  = (*Store)(nil)
	_ repository.Loader = (*Store)(nil)
)

// Open connects to the database named by dsn.
func Open(ctx context.Context, backend Backend, dsn string, opts ...Option) (*Store, error) {
	s := &Store{backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	switch backend {
	case SQLite, PostgreSQL, MySQL:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, backend)
	}

	db, err := sql.Open(backend.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", backend, err)
	}
	if backend == SQLite {
		// A second connection to ":memory:" would see an empty database.
		db.SetMaxOpenConns(1)
	} else if s.maxOpenConns > 0 {
		db.SetMaxOpenConns(s.maxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to %s database: %w", backend, err)
	}
	s.db = db

	if s.migrate {
		if _, err := Migrate(db, backend, -1); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) observe(op string) func() {
	start := time.Now()
	metrics.RecordRepositoryQuery(string(s.backend), op)
	return func() {
		metrics.RecordRepositoryQueryLatency(string(s.backend), float64(time.Since(start).Milliseconds()))
	}
}

// Update runs fn inside one transaction.
func (s *Store) Update(ctx context.Context, fn func(w repository.Writer) error) error {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&writer{q: tx, backend: s.backend}); err != nil {
		metrics.RecordErrorByComponent("repository", "rollback")
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	metrics.RecordRepositoryUpdateLatency(string(s.backend), float64(time.Since(start).Milliseconds()))
	return nil
}

func formatDate(t time.Time) string { return model.Day(t).Format(dateLayout) }

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, repository.ErrNotFound)
	}
	return fmt.Errorf("%s %v: %w", what, id, err)
}
