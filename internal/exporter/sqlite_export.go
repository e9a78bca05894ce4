// Package exporter writes standalone backups of tenant databases.
package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/skairunner/lunabot/internal/db"
)

// ExportDatabase writes a consistent copy of h's database to dstPath using
// VACUUM INTO. dstPath must not exist yet.
func ExportDatabase(ctx context.Context, h *db.Handle, dstPath string) error {
	if _, err := os.Stat(dstPath); err == nil {
		return fmt.Errorf("export %s: destination already exists", dstPath)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat destination: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("create dst dir: %w", err)
	}
	if _, err := h.ExecContext(ctx, "VACUUM INTO ?", dstPath); err != nil {
		return fmt.Errorf("export %s: %w", h.Key(), err)
	}
	return nil
}
