package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var subscriptionsCmd = &cobra.Command{
	Use:   "subscriptions",
	Short: "Manage event subscriptions on the streaming platform",
}

var subscriptionsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Create missing subscriptions and repair broken ones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.ValidateCore(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if err := cfg.ValidateTwitch(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if prune, _ := cmd.Flags().GetBool("prune"); prune {
			cfg.Twitch.PruneSubscriptions = true
		}
		ctx, stop := commandContext(cmd)
		defer stop()

		e, err := newEngine(ctx, cfg, engineOptions{})
		if err != nil {
			return err
		}
		defer e.Close()

		report, err := e.bot.VerifySubscriptions(ctx)
		if err != nil {
			return err
		}
		cmd.Printf("created %d, deleted %d, unchanged %d\n", report.Created, report.Deleted, report.Unchanged)
		return nil
	},
}

func init() {
	subscriptionsSyncCmd.Flags().Bool("prune", false, "also delete subscriptions for streamers without announcements")
	subscriptionsCmd.AddCommand(subscriptionsSyncCmd)
	rootCmd.AddCommand(subscriptionsCmd)
}
