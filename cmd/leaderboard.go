package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/skairunner/lunabot/internal/db"
	"github.com/skairunner/lunabot/internal/leaderboard"
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show message counts per author",
	Long:  "Show message counts per author within an optional window. Example:\n  lunabot leaderboard --tenant 1234 --after 2024-01-01 --limit 10",
	RunE: func(cmd *cobra.Command, _ []string) error {
		kind, id, err := tenantFromFlags(cmd, db.KindLeaderboard)
		if err != nil {
			return err
		}
		var q leaderboard.Query
		if q.After, err = timeFlag(cmd, "after"); err != nil {
			return err
		}
		if q.Before, err = timeFlag(cmd, "before"); err != nil {
			return err
		}
		if q.Limit, err = cmd.Flags().GetInt("limit"); err != nil {
			return err
		}
		if err := q.Validate(); err != nil {
			return err
		}

		hs, err := openHandles()
		if err != nil {
			return err
		}
		defer func() { _ = hs.Close() }()
		h, err := hs.Get(cmd.Context(), kind, id)
		if err != nil {
			return err
		}
		counts, err := leaderboard.NewStore(h).CountMessages(cmd.Context(), q)
		if err != nil {
			return err
		}
		for i, c := range counts {
			fmt.Fprintf(cmd.OutOrStdout(), "%d.\t%d\t%d\n", i+1, c.AuthorID, c.Messages)
		}
		return nil
	},
}

// timeFlag parses an RFC 3339, "YYYY-MM-DD HH:MM:SS", or "YYYY-MM-DD" flag
// value as UTC. An empty flag yields nil.
func timeFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	raw, err := cmd.Flags().GetString(name)
	if err != nil || raw == "" {
		return nil, err
	}
	for _, layout := range []string{time.RFC3339, db.TimeLayout, time.DateOnly} {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid --%s %q: want RFC 3339 or %q", name, raw, db.TimeLayout)
}

func init() {
	addTenantFlags(leaderboardCmd, false)
	leaderboardCmd.Flags().String("after", "", "Only count messages after this time (exclusive)")
	leaderboardCmd.Flags().String("before", "", "Only count messages before this time (exclusive)")
	leaderboardCmd.Flags().Int("limit", 0, "Maximum number of authors to show (0 = all)")
	rootCmd.AddCommand(leaderboardCmd)
}
