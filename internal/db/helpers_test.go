package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

func openInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func openTestHandle(t *testing.T, opts Options, key Key) *Handle {
	t.Helper()
	h, err := Open(context.Background(), opts, key)
	if err != nil {
		t.Fatalf("Open(%s): %v", key, err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tableExists(t *testing.T, q querier, name string) bool {
	t.Helper()
	var count int
	row := q.QueryRowContext(context.Background(), "SELECT count(*) FROM sqlite_master WHERE type IN ('table', 'index') AND name = ?", name)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("check schema object %s: %v", name, err)
	}
	return count == 1
}

func countVersionRows(t *testing.T, q querier) int {
	t.Helper()
	var n int
	if err := q.QueryRowContext(context.Background(), "SELECT count(*) FROM _version").Scan(&n); err != nil {
		t.Fatalf("count version rows: %v", err)
	}
	return n
}
