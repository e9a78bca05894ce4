package scene

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/skairunner/lunabot/internal/db"
	apperrors "github.com/skairunner/lunabot/internal/errors"
)

// Store runs scene queries against one tenant handle.
type Store struct {
	h   *db.Handle
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for reservation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store over h, which must be a scene handle.
func NewStore(h *db.Handle, opts ...Option) *Store {
	s := &Store{h: h, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

const selectChannel = "SELECT id, channel_name, created_by, created, updated, scene_name FROM channel_scenes"

// OpenChannel returns a channel with no scene running. ok is false when every
// known channel is reserved or none exist.
func (s *Store) OpenChannel(ctx context.Context) (id int64, ok bool, err error) {
	row := s.h.QueryRowContext(ctx, "SELECT id FROM channel_scenes WHERE created IS NULL ORDER BY id LIMIT 1")
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("find open channel: %w", err)
	}
	return id, true, nil
}

// ChannelInfo returns the channel with id, or nil if it is not known.
func (s *Store) ChannelInfo(ctx context.Context, id int64) (*Channel, error) {
	row := s.h.QueryRowContext(ctx, selectChannel+" WHERE id = ?", id)
	c, err := scanChannel(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("channel info %d: %w", id, err)
	}
	return &c, nil
}

// HasChannel reports whether id has a scene row. It reads no scene columns,
// so it works on rows that ChannelInfo rejects.
func (s *Store) HasChannel(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.h.QueryRowContext(ctx, "SELECT 1 FROM channel_scenes WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up channel %d: %w", id, err)
	}
	return true, nil
}

// ListChannels returns every known channel ordered by id.
func (s *Store) ListChannels(ctx context.Context) ([]Channel, error) {
	rows, err := s.h.QueryContext(ctx, selectChannel+" ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddChannel registers a new free channel. Both the ledger row and the scene
// row are written in one transaction.
func (s *Store) AddChannel(ctx context.Context, id int64, name string) error {
	err := s.h.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO channels(id) VALUES(?)", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO channel_scenes(channel_name, id) VALUES(?, ?)", name, id); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.WrapWithMetadata(apperrors.CodeDuplicateChannel,
				fmt.Sprintf("channel %d already registered", id),
				map[string]string{"channel": strconv.FormatInt(id, 10)}, err)
		}
		return fmt.Errorf("add channel %d: %w", id, err)
	}
	return nil
}

// ReserveChannel binds a scene to channel id. It does not check that the
// channel exists or is free; an unknown id changes nothing.
func (s *Store) ReserveChannel(ctx context.Context, id int64, sceneName string, authorID int64) error {
	now := db.FormatTime(s.now())
	if _, err := s.h.ExecContext(ctx,
		"UPDATE channel_scenes SET created = ?, scene_name = ?, updated = ?, created_by = ? WHERE id = ?",
		now, sceneName, now, authorID, id); err != nil {
		return fmt.Errorf("reserve channel %d: %w", id, err)
	}
	return nil
}

// ReserveOpenChannel finds a free channel and reserves it in one
// transaction. ok is false if no channel is free.
func (s *Store) ReserveOpenChannel(ctx context.Context, sceneName string, authorID int64) (id int64, ok bool, err error) {
	now := db.FormatTime(s.now())
	err = s.h.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT id FROM channel_scenes WHERE created IS NULL ORDER BY id LIMIT 1")
		if err := row.Scan(&id); err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE channel_scenes SET created = ?, scene_name = ?, updated = ?, created_by = ? WHERE id = ? AND created IS NULL",
			now, sceneName, now, authorID, id); err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("reserve open channel: %w", err)
	}
	if !ok {
		return 0, false, nil
	}
	return id, true, nil
}

// TouchChannel moves the updated time of a reserved channel to now. Free
// channels are left alone.
func (s *Store) TouchChannel(ctx context.Context, id int64) error {
	if _, err := s.h.ExecContext(ctx,
		"UPDATE channel_scenes SET updated = ? WHERE id = ? AND created IS NOT NULL",
		db.FormatTime(s.now()), id); err != nil {
		return fmt.Errorf("touch channel %d: %w", id, err)
	}
	return nil
}

// FreeChannel ends the scene in channel id, making it available again.
func (s *Store) FreeChannel(ctx context.Context, id int64) error {
	if _, err := s.h.ExecContext(ctx,
		"UPDATE channel_scenes SET created = NULL, updated = NULL, scene_name = NULL, created_by = NULL WHERE id = ?",
		id); err != nil {
		return fmt.Errorf("free channel %d: %w", id, err)
	}
	return nil
}

// CountChannels returns how many channels have ever been registered.
func (s *Store) CountChannels(ctx context.Context) (int, error) {
	var n int
	if err := s.h.QueryRowContext(ctx, "SELECT count(*) FROM channels").Scan(&n); err != nil {
		return 0, fmt.Errorf("count channels: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChannel(r scanner) (Channel, error) {
	var (
		c         Channel
		name      sql.NullString
		createdBy sql.NullInt64
		created   sql.NullString
		updated   sql.NullString
		sceneName sql.NullString
	)
	if err := r.Scan(&c.ID, &name, &createdBy, &created, &updated, &sceneName); err != nil {
		return Channel{}, err
	}
	c.Name = name.String

	switch {
	case !created.Valid && !updated.Valid && !createdBy.Valid && !sceneName.Valid:
		c.State = Available{}
	case created.Valid && updated.Valid && createdBy.Valid && sceneName.Valid:
		createdAt, err := db.ParseTime(created.String)
		if err != nil {
			return Channel{}, integrityError(c.ID, "bad created time", err)
		}
		updatedAt, err := db.ParseTime(updated.String)
		if err != nil {
			return Channel{}, integrityError(c.ID, "bad updated time", err)
		}
		c.State = Reserved{
			SceneName: sceneName.String,
			CreatedBy: createdBy.Int64,
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		}
	default:
		return Channel{}, integrityError(c.ID, "partially reserved", nil)
	}
	return c, nil
}

func integrityError(id int64, msg string, cause error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeDataIntegrity,
		fmt.Sprintf("channel %d: %s", id, msg),
		map[string]string{"channel": strconv.FormatInt(id, 10)}, cause)
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
