package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the schema version history of a server database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		kind, id, err := tenantFromFlags(cmd, "")
		if err != nil {
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
		history, err := h.History(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s):\n", h.Key(), h.Path())
		for _, r := range history {
			fmt.Fprintf(out, "v%d\t%s\n", r.Version, r.Date)
		}
		return nil
	},
}

func init() {
	addTenantFlags(statusCmd, true)
	rootCmd.AddCommand(statusCmd)
}
