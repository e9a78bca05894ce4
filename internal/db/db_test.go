package db

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	apperrors "github.com/skairunner/lunabot/internal/errors"
)

func TestOpenCreatesFileAndSchema(t *testing.T) {
	root := filepath.Join(t.TempDir(), "databases")
	h := openTestHandle(t, Options{Root: root, Now: fixedNow}, Key{Kind: KindScene, ID: 42})

	want := filepath.Join(root, "scene 42.db")
	if h.Path() != want {
		t.Fatalf("expected path %s got %s", want, h.Path())
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("db file not created: %v", err)
	}
	for _, name := range []string{"channel_scenes", "channels", "channel_scenes_created", "_version"} {
		if !tableExists(t, h, name) {
			t.Fatalf("expected schema object %q to exist", name)
		}
	}
	v, err := h.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != len(sceneSteps) {
		t.Fatalf("expected version %d got %d", len(sceneSteps), v)
	}
}

func TestOpenEveryKindReachesFullVersion(t *testing.T) {
	root := t.TempDir()
	for kind, steps := range DefaultMigrations() {
		h := openTestHandle(t, Options{Root: root}, Key{Kind: kind, ID: 1})
		v, err := h.Version(context.Background())
		if err != nil {
			t.Fatalf("Version(%s): %v", kind, err)
		}
		if v != len(steps) {
			t.Fatalf("%s: expected version %d got %d", kind, len(steps), v)
		}
		if n := countVersionRows(t, h); n != len(steps) {
			t.Fatalf("%s: expected %d history rows got %d", kind, len(steps), n)
		}
	}
}

func TestOpenKindsAreIsolated(t *testing.T) {
	root := t.TempDir()
	scene := openTestHandle(t, Options{Root: root}, Key{Kind: KindScene, ID: 7})
	board := openTestHandle(t, Options{Root: root}, Key{Kind: KindLeaderboard, ID: 7})
	if scene.Path() == board.Path() {
		t.Fatalf("kinds must not share a file")
	}
	if tableExists(t, scene, "messages") {
		t.Fatalf("scene database should not have messages table")
	}
	if tableExists(t, board, "channel_scenes") {
		t.Fatalf("leaderboard database should not have channel_scenes table")
	}
}

func TestOpenRootWithQueryCharacters(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "data?v=1#x")
	scene := openTestHandle(t, Options{Root: root}, Key{Kind: KindScene, ID: 1})
	board := openTestHandle(t, Options{Root: root}, Key{Kind: KindLeaderboard, ID: 1})

	for _, h := range []*Handle{scene, board} {
		if filepath.Dir(h.Path()) != root {
			t.Fatalf("expected %s under %s", h.Path(), root)
		}
		if _, err := os.Stat(h.Path()); err != nil {
			t.Fatalf("db file not created: %v", err)
		}
	}
	if _, err := os.Stat(filepath.Join(base, "data")); !os.IsNotExist(err) {
		t.Fatalf("expected no stray file beside the root, stat err = %v", err)
	}
	if _, err := board.ExecContext(context.Background(),
		"INSERT INTO messages(author, date, channel_id, message_id) VALUES(1, '2024-01-01 00:00:00', 2, 3)"); err != nil {
		t.Fatalf("leaderboard schema missing: %v", err)
	}
	if tableExists(t, scene, "messages") {
		t.Fatalf("scene database should not have messages table")
	}
}

func TestOpenFailedUpgradeIsNotLoggedAsError(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)
	broken := DefaultMigrations()
	broken[KindScene] = append(broken[KindScene], Step{Name: "bad", Statements: []string{"CREAT TABLE oops(id INTEGER)"}})

	_, err := Open(context.Background(), Options{Root: t.TempDir(), Migrations: broken, Logger: &logger}, Key{Kind: KindScene, ID: 1})
	if !errors.Is(err, apperrors.ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}
	if strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("failure is returned to the caller and should not be logged as an error: %s", buf.String())
	}
}

func TestReopenIsNoop(t *testing.T) {
	root := t.TempDir()
	key := Key{Kind: KindLeaderboard, ID: 9}
	h, err := Open(context.Background(), Options{Root: root}, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = h.Close()

	// If any applied step ran again its CREATE TABLE would fail.
	h2 := openTestHandle(t, Options{Root: root}, key)
	if n := countVersionRows(t, h2); n != len(leaderboardSteps) {
		t.Fatalf("expected %d history rows after reopen, got %d", len(leaderboardSteps), n)
	}
}

func TestOpenAppliesOnlyNewSteps(t *testing.T) {
	root := t.TempDir()
	key := Key{Kind: KindScene, ID: 3}
	base := DefaultMigrations()
	n := len(base[KindScene])

	h, err := Open(context.Background(), Options{Root: root, Migrations: base}, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = h.Close()

	grown := DefaultMigrations()
	grown[KindScene] = append(grown[KindScene], Step{
		Name:       "add_scene_notes",
		Statements: []string{"ALTER TABLE channel_scenes ADD COLUMN notes TEXT"},
	})

	upgraded := openTestHandle(t, Options{Root: root, Migrations: grown}, key)
	history, err := upgraded.History(context.Background())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	var versions []int
	for _, r := range history {
		versions = append(versions, r.Version)
	}
	want := make([]int, 0, n+1)
	for i := 1; i <= n+1; i++ {
		want = append(want, i)
	}
	if !slices.Equal(versions, want) {
		t.Fatalf("expected history %v got %v", want, versions)
	}
	if _, err := upgraded.ExecContext(context.Background(), "UPDATE channel_scenes SET notes = 'x'"); err != nil {
		t.Fatalf("new column missing: %v", err)
	}

	// A fresh database gets every step directly.
	fresh := openTestHandle(t, Options{Root: root, Migrations: grown}, Key{Kind: KindScene, ID: 4})
	if v, _ := fresh.Version(context.Background()); v != n+1 {
		t.Fatalf("fresh database: expected version %d got %d", n+1, v)
	}
}

func TestOpenFailedUpgradeRollsBack(t *testing.T) {
	root := t.TempDir()
	key := Key{Kind: KindScene, ID: 5}
	h, err := Open(context.Background(), Options{Root: root}, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = h.Close()
	n := len(sceneSteps)

	broken := DefaultMigrations()
	broken[KindScene] = append(broken[KindScene],
		Step{Name: "good_half", Statements: []string{"CREATE TABLE scene_tags(id INTEGER PRIMARY KEY)"}},
		Step{Name: "bad_half", Statements: []string{
			"CREATE TABLE scene_notes(id INTEGER PRIMARY KEY)",
			"CREAT TABLE oops(id INTEGER)",
		}},
	)
	_, err = Open(context.Background(), Options{Root: root, Migrations: broken}, key)
	if !errors.Is(err, apperrors.ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}

	after := openTestHandle(t, Options{Root: root}, key)
	if v, _ := after.Version(context.Background()); v != n {
		t.Fatalf("expected version to stay %d, got %d", n, v)
	}
	for _, name := range []string{"scene_tags", "scene_notes"} {
		if tableExists(t, after, name) {
			t.Fatalf("%s should have been rolled back", name)
		}
	}
	_ = after.Close()

	fixed := DefaultMigrations()
	fixed[KindScene] = append(fixed[KindScene],
		Step{Name: "good_half", Statements: []string{"CREATE TABLE scene_tags(id INTEGER PRIMARY KEY)"}},
		Step{Name: "bad_half", Statements: []string{"CREATE TABLE scene_notes(id INTEGER PRIMARY KEY)"}},
	)
	healed := openTestHandle(t, Options{Root: root, Migrations: fixed}, key)
	if v, _ := healed.Version(context.Background()); v != n+2 {
		t.Fatalf("expected version %d after fix, got %d", n+2, v)
	}
}

func TestOpenRejectsNewerDatabase(t *testing.T) {
	root := t.TempDir()
	key := Key{Kind: KindScene, ID: 6}
	grown := DefaultMigrations()
	grown[KindScene] = append(grown[KindScene], Step{Name: "future", Statements: []string{"CREATE TABLE future(id INTEGER)"}})
	h, err := Open(context.Background(), Options{Root: root, Migrations: grown}, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = h.Close()

	if _, err := Open(context.Background(), Options{Root: root}, key); !errors.Is(err, apperrors.ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed for newer database, got %v", err)
	}
}

func TestOpenUnknownKindCreatesNothing(t *testing.T) {
	root := filepath.Join(t.TempDir(), "dbs")
	_, err := Open(context.Background(), Options{Root: root}, Key{Kind: "dice", ID: 1})
	if !errors.Is(err, apperrors.ErrUnknownTenantKind) {
		t.Fatalf("expected ErrUnknownTenantKind, got %v", err)
	}
	if _, statErr := os.Stat(root); !os.IsNotExist(statErr) {
		t.Fatalf("expected no data dir to be created, stat err = %v", statErr)
	}
}

func TestOpenStorageUnavailable(t *testing.T) {
	// A regular file where the data directory should be.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	_, err := Open(context.Background(), Options{Root: blocker}, Key{Kind: KindScene, ID: 1})
	if !errors.Is(err, apperrors.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}

	_, err = Open(context.Background(), Options{}, Key{Kind: KindScene, ID: 1})
	if !errors.Is(err, apperrors.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable for empty root, got %v", err)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	h := openTestHandle(t, Options{Root: t.TempDir()}, Key{Kind: KindScene, ID: 8})
	ctx := context.Background()
	boom := errors.New("boom")
	err := h.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO channels(id) VALUES(1)"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	var n int
	if err := h.QueryRowContext(ctx, "SELECT count(*) FROM channels").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected rollback, found %d rows", n)
	}
}
