package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skairunner/lunabot/internal/exporter"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a standalone backup of a server database",
	Long:  "Write a consistent single-file backup of a server database. Example:\n  lunabot export --kind leaderboard --tenant 1234 --out backup.db",
	RunE: func(cmd *cobra.Command, _ []string) error {
		kind, id, err := tenantFromFlags(cmd, "")
		if err != nil {
			return err
		}
		dst, err := cmd.Flags().GetString("out")
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
		if err := exporter.ExportDatabase(cmd.Context(), h, dst); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", h.Key(), dst)
		return nil
	},
}

func init() {
	addTenantFlags(exportCmd, true)
	exportCmd.Flags().String("out", "", "Destination file (must not exist)")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
