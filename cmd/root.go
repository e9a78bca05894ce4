package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/skairunner/lunabot/internal/config"
	"github.com/skairunner/lunabot/internal/db"
	"github.com/skairunner/lunabot/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "lunabot",
	Short:         "lunabot manages per-server scene and leaderboard databases",
	Long:          "lunabot opens, migrates, inspects, and backs up the per-server SQLite databases used by the bot",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		log.Logger = logger
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "lunabot: run 'lunabot --help' to see available commands")
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// openHandles builds a handle cache rooted at the configured data directory.
func openHandles() (*db.Handles, error) {
	root, err := config.EnsureDataDir()
	if err != nil {
		return nil, err
	}
	logger := log.Logger
	return db.NewHandles(db.Options{Root: root, Logger: &logger}), nil
}

// addTenantFlags registers --tenant and, when withKind is set, --kind.
func addTenantFlags(c *cobra.Command, withKind bool) {
	c.Flags().Int64("tenant", 0, "Server (guild) id owning the database")
	_ = c.MarkFlagRequired("tenant")
	if withKind {
		c.Flags().String("kind", string(db.KindScene), "Database kind: scene or leaderboard")
	}
}

// tenantFromFlags reads the kind and tenant id from c. fixed overrides --kind.
func tenantFromFlags(c *cobra.Command, fixed db.Kind) (db.Kind, int64, error) {
	id, err := c.Flags().GetInt64("tenant")
	if err != nil {
		return "", 0, err
	}
	if fixed != "" {
		return fixed, id, nil
	}
	raw, err := c.Flags().GetString("kind")
	if err != nil {
		return "", 0, err
	}
	kind, err := db.ParseKind(raw)
	if err != nil {
		return "", 0, err
	}
	return kind, id, nil
}
