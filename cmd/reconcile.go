package cmd

import (
	"fmt"

	"github.com/callummance/betty/telemetry"
	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <streamer-id>...",
	Short: "Reconcile the given streamers against their live state once",
	Long: `Fetches the live state of each streamer and applies whatever transition is due, exactly as an
incoming webhook would. Announcements are only posted or edited if a Discord token is configured.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateCore(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if err := cfg.ValidateTwitch(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		ctx, stop := commandContext(cmd)
		defer stop()

		e, err := newEngine(ctx, cfg, engineOptions{withDiscord: true})
		if err != nil {
			return err
		}
		defer e.Close()

		failed := 0
		for _, id := range args {
			tr, err := e.bot.Reconcile(telemetry.NewCorrelation(ctx), id)
			if err != nil {
				failed++
				cmd.PrintErrf("%v: %v\n", id, err)
				continue
			}
			cmd.Printf("%v: %v\n", id, tr)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d streamers failed to reconcile", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
