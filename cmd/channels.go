package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/skairunner/lunabot/internal/db"
	"github.com/skairunner/lunabot/internal/scene"
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Inspect and repair scene channel reservations",
}

// withSceneStore opens the scene database named by cmd's flags and runs fn.
func withSceneStore(cmd *cobra.Command, fn func(*scene.Store) error) error {
	kind, id, err := tenantFromFlags(cmd, db.KindScene)
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
	return fn(scene.NewStore(h))
}

var channelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known rp channels and their scenes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSceneStore(cmd, func(s *scene.Store) error {
			chans, err := s.ListChannels(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range chans {
				if r, ok := c.Reservation(); ok {
					fmt.Fprintf(out, "%d\t%s\treserved\t%q by %d since %s (last post %s)\n",
						c.ID, c.Name, r.SceneName, r.CreatedBy, db.FormatTime(r.CreatedAt), db.FormatTime(r.UpdatedAt))
					continue
				}
				fmt.Fprintf(out, "%d\t%s\tfree\n", c.ID, c.Name)
			}
			return nil
		})
	},
}

var channelsAddCmd = &cobra.Command{
	Use:   "add <channel-id> <name>",
	Short: "Register an existing rp channel",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		channelID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid channel id %q: %w", args[0], err)
		}
		return withSceneStore(cmd, func(s *scene.Store) error {
			if err := s.AddChannel(cmd.Context(), channelID, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added channel %d\n", channelID)
			return nil
		})
	},
}

var channelsFreeCmd = &cobra.Command{
	Use:   "free <channel-id>",
	Short: "End whatever scene holds a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		channelID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid channel id %q: %w", args[0], err)
		}
		return withSceneStore(cmd, func(s *scene.Store) error {
			ok, err := s.HasChannel(cmd.Context(), channelID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("channel %d is not registered", channelID)
			}
			if err := s.FreeChannel(cmd.Context(), channelID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "freed channel %d\n", channelID)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{channelsListCmd, channelsAddCmd, channelsFreeCmd} {
		addTenantFlags(c, false)
		channelsCmd.AddCommand(c)
	}
	rootCmd.AddCommand(channelsCmd)
}
