// Package store implements the durable, single-writer persistence layer
// for QueueCTL: one SQLite file holding jobs, workers, and config, shared
// by every worker process via ordinary file-level locking.
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	mathrand "math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/maumercado/queuectl/internal/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Sentinel errors surfaced to callers, mapped to CLI exit codes and HTTP
// status codes by their respective front-ends.
var (
	ErrDuplicateID   = errors.New("duplicate id")
	ErrNotFound      = errors.New("not found")
	ErrInvalidState  = errors.New("invalid state transition")
	ErrValidation    = errors.New("validation error")
	ErrUnavailable   = errors.New("store unavailable")
)

// Store is the sole owner of on-disk job, worker, and config state.
type Store struct {
	db *sql.DB
}

// Open creates the schema if absent, runs any pending migrations, and
// returns a ready-to-use Store. Safe to call repeatedly against the same
// path from multiple processes.
func Open(path string) (*Store, error) {
	dsn := dsnFor(path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single physical writer; SQLite serializes concurrent writers at
	// the file level regardless, but capping the pool avoids piling up
	// driver-level connections that would all contend for the same lock.
	db.SetMaxOpenConns(1)

	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set migration dialect: %w", err)
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	st := &Store{db: db}

	secret, err := randomSecret()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("generate admin jwt secret: %w", err)
	}
	if err := st.SeedDefaults(context.Background(), secret); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed config defaults: %w", err)
	}

	return st, nil
}

// randomSecret generates the admin_jwt_secret seeded into a brand-new
// database on first Open. A database that already has the key keeps its
// existing value: SeedDefaults only inserts missing keys.
func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func dsnFor(path string) string {
	// modernc.org/sqlite accepts repeated _pragma params; each becomes its
	// own PRAGMA statement executed on connection open.
	vals := url.Values{}
	vals.Add("_pragma", "busy_timeout(5000)")
	vals.Add("_pragma", "journal_mode(WAL)")
	vals.Add("_pragma", "foreign_keys(1)")
	return fmt.Sprintf("file:%s?%s", path, vals.Encode())
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// withBusyRetry retries fn a bounded number of times with jittered backoff
// when SQLite reports the writer is busy. WAL + busy_timeout handle the
// common case, this is the backstop for when that timeout is itself hit.
func withBusyRetry(fn func() error) error {
	const maxAttempts = 5
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil || !isBusyErr(err) {
			return err
		}
		jitter := time.Duration(mathrand.Intn(50)) * time.Millisecond
		time.Sleep(time.Duration(attempt+1)*20*time.Millisecond + jitter)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func logStoreError(op string, err error) {
	logger.Error().Err(err).Str("op", op).Msg("store operation failed")
}
