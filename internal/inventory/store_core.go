package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"shelfscan/internal/config"
)

// Store is the SQLite inventory backend.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// connectionPragmas are applied by the driver to every new connection.
var connectionPragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// Open opens the inventory database configured in cfg.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.Inventory.DatabasePath)
}

// OpenPath initializes or connects to the database at path and brings its
// schema up to date.
func OpenPath(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("inventory database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer keeps SQLITE_BUSY rare; readers are short.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func sqliteDSN(path string) string {
	q := url.Values{}
	for _, p := range connectionPragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Ping verifies the database connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("inventory store is closed")
	}
	return s.db.PingContext(ensureContext(ctx))
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const (
	busyRetryAttempts = 5
	busyRetryBackoff  = 10 * time.Millisecond
	busyRetryCap      = 200 * time.Millisecond
)

// withBusyRetry runs op until it succeeds, fails with something other than
// SQLITE_BUSY, or runs out of attempts. Backoff doubles up to busyRetryCap.
func withBusyRetry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	delay := busyRetryBackoff
	for attempt := 1; ; attempt++ {
		v, err := op()
		if err == nil || !isSQLiteBusy(err) || attempt == busyRetryAttempts {
			return v, err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
		delay = min(delay*2, busyRetryCap)
	}
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	return withBusyRetry(ctx, func() (sql.Result, error) {
		return s.db.ExecContext(ctx, query, args...)
	})
}

// inTx runs fn inside a transaction, retrying the whole transaction when
// SQLite reports the database busy.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	ctx = ensureContext(ctx)
	_, err := withBusyRetry(ctx, func() (struct{}, error) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return struct{}{}, err
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, tx.Commit()
	})
	return err
}

// sqliteBusyCode is the primary result code for SQLITE_BUSY; extended codes
// carry it in the low byte.
const sqliteBusyCode = 5

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// storeTimeLayout has fixed width so stored timestamps sort lexically.
const storeTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(storeTimeLayout)
}

func (s *Store) timestamp() string {
	return formatTime(s.now())
}
