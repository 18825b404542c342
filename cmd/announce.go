package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var announceCmd = &cobra.Command{
	Use:   "announce",
	Short: "Manage announcements without going through Discord",
}

var announceAddCmd = &cobra.Command{
	Use:   "add <twitch-login> <guild-id> <channel-id> <message>",
	Short: "Announce a streamer in a channel",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateCore(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if err := cfg.ValidateTwitch(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		ctx, stop := commandContext(cmd)
		defer stop()

		e, err := newEngine(ctx, cfg, engineOptions{})
		if err != nil {
			return err
		}
		defer e.Close()

		reg, err := e.bot.Register(ctx, args[0], args[1], args[2], args[3])
		if err != nil {
			return err
		}
		cmd.Printf("Added announcement for %v (%v) in channel %v\n", reg.State.DisplayName, reg.State.ID, args[2])
		return nil
	},
}

var announceRemoveCmd = &cobra.Command{
	Use:   "remove <twitch-login> <guild-id>",
	Short: "Remove every announcement of a streamer in a guild",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateCore(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if err := cfg.ValidateTwitch(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		ctx, stop := commandContext(cmd)
		defer stop()

		e, err := newEngine(ctx, cfg, engineOptions{})
		if err != nil {
			return err
		}
		defer e.Close()

		state, removed, err := e.bot.Unregister(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		cmd.Printf("Removed %d announcements for %v\n", removed, state.DisplayName)
		return nil
	},
}

var announceListCmd = &cobra.Command{
	Use:   "list [guild-id]",
	Short: "List announcements, optionally for a single guild",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateCore(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		ctx, stop := commandContext(cmd)
		defer stop()

		e, err := newEngine(ctx, cfg, engineOptions{})
		if err != nil {
			return err
		}
		defer e.Close()

		guildID := ""
		if len(args) == 1 {
			guildID = args[0]
		}
		listings, err := e.bot.List(ctx, guildID)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STREAMER\tID\tGUILD\tCHANNEL\tMESSAGE")
		for _, l := range listings {
			fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", l.DisplayName, l.StreamerID, l.Announcement.GuildID, l.Announcement.ChannelID, l.Announcement.AnnouncementText)
		}
		return w.Flush()
	},
}

func init() {
	announceCmd.AddCommand(announceAddCmd, announceRemoveCmd, announceListCmd)
	rootCmd.AddCommand(announceCmd)
}
