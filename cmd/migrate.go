package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Open a server database and apply pending migrations",
	Long:  "Open (creating if needed) a server database and apply any pending migrations. Example:\n  lunabot migrate --kind scene --tenant 1234",
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
		v, err := h.Version(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: version %d (%s)\n", h.Key(), v, h.Path())
		return nil
	},
}

func init() {
	addTenantFlags(migrateCmd, true)
	rootCmd.AddCommand(migrateCmd)
}
