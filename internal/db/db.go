// Package db opens per-tenant SQLite databases and keeps their schema current.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	// _ import for sqlite driver registration
	_ "modernc.org/sqlite"

	apperrors "github.com/skairunner/lunabot/internal/errors"
)

const dsnParams = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// dsnFor returns a file: URI for path. The path is escaped so that '?' or '#'
// in a directory name stay part of the file name.
func dsnFor(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p, RawQuery: dsnParams}
	return u.String(), nil
}

// Key identifies one tenant database.
type Key struct {
	Kind Kind
	ID   int64
}

// String returns the key in "<kind> <id>" form, which is also the file stem.
func (k Key) String() string {
	return string(k.Kind) + " " + strconv.FormatInt(k.ID, 10)
}

// FileName returns the database file name for k.
func (k Key) FileName() string {
	return k.String() + ".db"
}

func (k Key) metadata() map[string]string {
	return map[string]string{"kind": string(k.Kind), "tenant": strconv.FormatInt(k.ID, 10)}
}

// Options configures how handles are opened.
type Options struct {
	// Root is the directory holding tenant files. It is created if missing.
	Root string
	// Migrations defaults to DefaultMigrations().
	Migrations Migrations
	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger
	// Now defaults to time.Now and stamps version history rows.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Migrations == nil {
		o.Migrations = DefaultMigrations()
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Handle is one tenant's open database. It owns a single connection, so
// concurrent callers are serialized by the connection pool.
type Handle struct {
	conn *sql.DB
	key  Key
	path string
}

// Open opens (creating if needed) the database for key under opts.Root and
// applies every pending migration before returning.
func Open(ctx context.Context, opts Options, key Key) (*Handle, error) {
	opts = opts.withDefaults()
	log := opts.Logger.With().Str("tenant", key.String()).Logger()

	steps, err := opts.Migrations.StepsFor(key.Kind)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.Root) == "" {
		return nil, apperrors.WithMetadata(apperrors.CodeStorageUnavailable, "data root is required", key.metadata())
	}
	if err := os.MkdirAll(opts.Root, 0o755); err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeStorageUnavailable, "create data dir", key.metadata(), err)
	}
	path := filepath.Join(filepath.Clean(opts.Root), key.FileName())

	dsn, err := dsnFor(path)
	if err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeStorageUnavailable, fmt.Sprintf("resolve %s", path), key.metadata(), err)
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeStorageUnavailable, fmt.Sprintf("open sqlite %s", path), key.metadata(), err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, apperrors.WrapWithMetadata(apperrors.CodeStorageUnavailable, fmt.Sprintf("ping sqlite %s", path), key.metadata(), err)
	}
	if err := ensureVersionTable(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, apperrors.WrapWithMetadata(apperrors.CodeStorageUnavailable, "prepare version table", key.metadata(), err)
	}
	from, err := currentVersion(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, apperrors.WrapWithMetadata(apperrors.CodeStorageUnavailable, "read version", key.metadata(), err)
	}

	to, err := upgrade(ctx, conn, steps, from, opts.Now())
	if err != nil {
		_ = conn.Close()
		log.Debug().Err(err).Int("from", from).Msg("schema upgrade failed")
		return nil, err
	}
	if to != from {
		log.Info().Int("from", from).Int("to", to).Msg("schema upgraded")
	}
	log.Debug().Str("path", path).Int("version", to).Msg("database opened")

	return &Handle{conn: conn, key: key, path: path}, nil
}

// Key returns the tenant key of h.
func (h *Handle) Key() Key { return h.key }

// Path returns the backing file path of h.
func (h *Handle) Path() string { return h.path }

// ExecContext runs a statement that returns no rows.
func (h *Handle) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return h.conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a query. The caller must close the rows before issuing
// another statement on h, since h has only one connection.
func (h *Handle) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return h.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a query expected to return at most one row.
func (h *Handle) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return h.conn.QueryRowContext(ctx, query, args...)
}

// WithTx runs fn in a transaction, committing if fn returns nil.
// fn must use only tx; calling back into h would wait on the held connection.
func (h *Handle) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := h.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Version returns the schema version recorded in h.
func (h *Handle) Version(ctx context.Context) (int, error) {
	return currentVersion(ctx, h.conn)
}

// History returns the version history rows in insertion order.
func (h *Handle) History(ctx context.Context) ([]VersionRecord, error) {
	rows, err := h.conn.QueryContext(ctx, "SELECT id, date, version FROM "+versionTable+" ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("read version history: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []VersionRecord
	for rows.Next() {
		var r VersionRecord
		if err := rows.Scan(&r.ID, &r.Date, &r.Version); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying DB connection.
func (h *Handle) Close() error {
	if h == nil || h.conn == nil {
		return nil
	}
	return h.conn.Close()
}
