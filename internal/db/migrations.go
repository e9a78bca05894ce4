package db

import (
	"fmt"
	"slices"
	"strings"

	apperrors "github.com/skairunner/lunabot/internal/errors"
)

// Kind names a family of tenant databases sharing one migration history.
type Kind string

// Tenant kinds.
const (
	KindScene       Kind = "scene"
	KindLeaderboard Kind = "leaderboard"
)

// ParseKind converts s into a registered Kind of the default migrations.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, err := DefaultMigrations().StepsFor(k); err != nil {
		return "", err
	}
	return k, nil
}

// Step is one atomic unit of schema change. Statements run in order.
type Step struct {
	Name       string
	Statements []string
}

// Migrations maps each tenant kind to its ordered, append-only steps.
// Index i of a kind's slice is applied when moving from version i to i+1.
type Migrations map[Kind][]Step

// StepsFor returns the ordered steps registered for kind.
func (m Migrations) StepsFor(kind Kind) ([]Step, error) {
	steps, ok := m[kind]
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeUnknownTenantKind,
			fmt.Sprintf("no migrations registered for tenant kind %q", kind),
			map[string]string{"kind": string(kind)})
	}
	return slices.Clone(steps), nil
}

// Validate checks the registry for empty kinds, empty steps, and duplicate step names.
func (m Migrations) Validate() error {
	for kind, steps := range m {
		if len(steps) == 0 {
			return fmt.Errorf("kind %q: no steps registered", kind)
		}
		seen := make(map[string]int, len(steps))
		for i, s := range steps {
			if strings.TrimSpace(s.Name) == "" {
				return fmt.Errorf("kind %q: step %d has no name", kind, i+1)
			}
			if prev, dup := seen[s.Name]; dup {
				return fmt.Errorf("kind %q: step %d reuses name %q of step %d", kind, i+1, s.Name, prev)
			}
			seen[s.Name] = i + 1
			if len(s.Statements) == 0 {
				return fmt.Errorf("kind %q: step %d (%s) has no statements", kind, i+1, s.Name)
			}
			for j, stmt := range s.Statements {
				if strings.TrimSpace(stmt) == "" {
					return fmt.Errorf("kind %q: step %d (%s) statement %d is empty", kind, i+1, s.Name, j+1)
				}
			}
		}
	}
	return nil
}

// DefaultMigrations returns a fresh copy of the shipped registry.
//
// Released steps must never be edited or reordered; add new steps at the end.
func DefaultMigrations() Migrations {
	return Migrations{
		KindScene:       slices.Clone(sceneSteps),
		KindLeaderboard: slices.Clone(leaderboardSteps),
	}
}

var sceneSteps = []Step{
	{
		Name: "create_channel_scenes",
		Statements: []string{
			// id is the Discord channel snowflake. A NULL created means the channel is free;
			// created is when the scene opened and updated is the last post time.
			`CREATE TABLE channel_scenes(
    id INTEGER PRIMARY KEY,
    channel_name TEXT,
    created_by INTEGER,
    created NUMERIC,
    updated NUMERIC,
    scene_name TEXT)`,
			// Ledger of every rp- channel ever created, independent of reservation state.
			`CREATE TABLE channels(id INTEGER PRIMARY KEY)`,
		},
	},
	{
		Name: "index_channel_scenes_created",
		Statements: []string{
			`CREATE INDEX channel_scenes_created ON channel_scenes(created)`,
		},
	},
}

var leaderboardSteps = []Step{
	{
		Name: "create_messages",
		Statements: []string{
			`CREATE TABLE messages(
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    author INTEGER NOT NULL,
    date NUMERIC NOT NULL,
    channel_id INTEGER NOT NULL,
    message_id INTEGER NOT NULL)`,
		},
	},
	{
		Name: "index_messages",
		Statements: []string{
			`CREATE INDEX messages_message_id ON messages(message_id)`,
			`CREATE INDEX messages_date ON messages(date)`,
		},
	},
}
