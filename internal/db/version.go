package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const versionTable = "_version"

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// VersionRecord is one row of the append-only version history.
type VersionRecord struct {
	ID      int64
	Date    string
	Version int
}

func ensureVersionTable(ctx context.Context, e execer) error {
	if _, err := e.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+versionTable+`(
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date NUMERIC,
    version INTEGER)`); err != nil {
		return fmt.Errorf("ensure version table: %w", err)
	}
	return nil
}

// currentVersion returns the highest recorded version, or 0 for a fresh database.
func currentVersion(ctx context.Context, q queryRower) (int, error) {
	var v sql.NullInt64
	if err := q.QueryRowContext(ctx, "SELECT max(version) FROM "+versionTable).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if !v.Valid {
		return 0, nil
	}
	return int(v.Int64), nil
}

func recordVersion(ctx context.Context, e execer, version int, at time.Time) error {
	if _, err := e.ExecContext(ctx, "INSERT INTO "+versionTable+"(date, version) VALUES(?, ?)", FormatTime(at), version); err != nil {
		return fmt.Errorf("record schema version %d: %w", version, err)
	}
	return nil
}
