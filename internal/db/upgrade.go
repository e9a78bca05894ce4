package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/skairunner/lunabot/internal/errors"
)

// upgrade applies steps[from:] inside one transaction, recording version i+1
// after step i. Any failure rolls the whole upgrade back. It returns the
// resulting version.
func upgrade(ctx context.Context, conn *sql.DB, steps []Step, from int, now time.Time) (int, error) {
	if from > len(steps) {
		return from, apperrors.WithMetadata(apperrors.CodeMigrationFailed,
			fmt.Sprintf("database is at version %d but only %d steps are registered", from, len(steps)),
			map[string]string{"version": strconv.Itoa(from)})
	}
	if from == len(steps) {
		return from, nil
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return from, apperrors.Wrap(apperrors.CodeMigrationFailed, "begin upgrade", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := from; i < len(steps); i++ {
		step := steps[i]
		meta := map[string]string{"step": step.Name, "version": strconv.Itoa(i + 1)}
		for j, stmt := range step.Statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return from, apperrors.WrapWithMetadata(apperrors.CodeMigrationFailed,
					fmt.Sprintf("apply step %d (%s) statement %d", i+1, step.Name, j+1), meta, err)
			}
		}
		if err := recordVersion(ctx, tx, i+1, now); err != nil {
			return from, apperrors.WrapWithMetadata(apperrors.CodeMigrationFailed, "record upgrade", meta, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return from, apperrors.Wrap(apperrors.CodeMigrationFailed, "commit upgrade", err)
	}
	return len(steps), nil
}
