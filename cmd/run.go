package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/callummance/betty/telemetry"
	"github.com/callummance/betty/webhook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the webhook receiver and the engine loops until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.ValidateRun(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		telemetry.Init()

		endpoint := cfg.Telemetry.OTLPEndpoint
		if endpoint == "" {
			endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		shutdownTracing, err := telemetry.InitTracing(endpoint, "betty", Version)
		if err != nil {
			logrus.Warnf("Failed to initialize tracing: %v", err)
			shutdownTracing = func() {}
		}
		defer shutdownTracing()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := newEngine(ctx, cfg, engineOptions{withQueue: true, withDiscord: true})
		if err != nil {
			return err
		}
		defer e.Close()

		e.discord.SetHandler(e.bot)
		addURL, err := e.discord.BotAddURL()
		if err != nil {
			logrus.Errorf("Failed to generate bot add URL due to error %v", err)
		} else {
			logrus.Infof("Go to `%v` to add bot to your server", addURL)
		}

		srv := webhook.NewServer(e.bot.Queue, cfg.Twitch.WebhookSecret)
		go func() {
			if err := srv.Listen(cfg.HTTP.Listen); err != nil {
				logrus.Errorf("Webhook server stopped: %v", err)
				stop()
			}
		}()

		logrus.Infof("Bot is now running. Press ^+C to exit.")
		e.bot.Run(ctx)

		if err := srv.Shutdown(); err != nil {
			logrus.Warnf("Failed to shut down webhook server cleanly: %v", err)
		}
		fmt.Println("Goodbye!")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

//commandContext returns a context cancelled on interrupt, for one-shot commands.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}
