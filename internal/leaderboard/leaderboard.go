// Package leaderboard records observed chat messages and ranks authors by
// message count.
package leaderboard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/skairunner/lunabot/internal/db"
	apperrors "github.com/skairunner/lunabot/internal/errors"
)

// Message identifies one observed chat message.
type Message struct {
	AuthorID  int64
	ChannelID int64
	MessageID int64
}

// Count is one leaderboard row.
type Count struct {
	AuthorID int64
	Messages int
}

// Query selects the window and size of a leaderboard. Bounds are exclusive
// and independently optional. Limit <= 0 means no limit.
type Query struct {
	Before *time.Time
	After  *time.Time
	Limit  int
}

// Validate reports ErrInvalidRange when both bounds are set and After is not
// before Before. CountMessages does not call it.
func (q Query) Validate() error {
	if q.Before != nil && q.After != nil && !q.After.Before(*q.Before) {
		return apperrors.WithMetadata(apperrors.CodeInvalidRange,
			fmt.Sprintf("after %s is not before %s", db.FormatTime(*q.After), db.FormatTime(*q.Before)),
			map[string]string{"after": db.FormatTime(*q.After), "before": db.FormatTime(*q.Before)})
	}
	return nil
}

// Store runs leaderboard queries against one tenant handle.
type Store struct {
	h   *db.Handle
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used to stamp messages.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store over h, which must be a leaderboard handle.
func NewStore(h *db.Handle, opts ...Option) *Store {
	s := &Store{h: h, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RecordMessage stores m stamped with the current UTC time.
func (s *Store) RecordMessage(ctx context.Context, m Message) error {
	if _, err := s.h.ExecContext(ctx,
		"INSERT INTO messages(author, date, channel_id, message_id) VALUES(?, ?, ?, ?)",
		m.AuthorID, db.FormatTime(s.now()), m.ChannelID, m.MessageID); err != nil {
		return fmt.Errorf("record message %d: %w", m.MessageID, err)
	}
	return nil
}

// DeleteMessage removes the events for messageID and returns how many rows
// went away. More than one means duplicate events were recorded.
func (s *Store) DeleteMessage(ctx context.Context, messageID int64) (int64, error) {
	res, err := s.h.ExecContext(ctx, "DELETE FROM messages WHERE message_id = ?", messageID)
	if err != nil {
		return 0, fmt.Errorf("delete message %d: %w", messageID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// CountMessages counts events per author inside q's window, highest first.
// Ties are ordered by author id. An inverted window matches nothing.
func (s *Store) CountMessages(ctx context.Context, q Query) ([]Count, error) {
	var (
		clauses []string
		args    []any
	)
	if q.Before != nil {
		clauses = append(clauses, "date < ?")
		args = append(args, db.FormatTime(*q.Before))
	}
	if q.After != nil {
		clauses = append(clauses, "date > ?")
		args = append(args, db.FormatTime(*q.After))
	}

	var b strings.Builder
	b.WriteString("SELECT author, COUNT(*) AS n FROM messages")
	if len(clauses) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(clauses, " AND "))
	}
	b.WriteString(" GROUP BY author ORDER BY n DESC, author ASC")
	if q.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(q.Limit))
	}

	rows, err := s.h.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Count
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.AuthorID, &c.Messages); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
