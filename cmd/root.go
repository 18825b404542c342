package cmd

import (
	"os"

	"github.com/callummance/betty/config"
	"github.com/callummance/betty/telemetry"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

//Version is set at build time.
var Version = "dev"

var (
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "betty",
	Short: "Keeps Discord stream announcements in sync with Twitch",
	Long: `betty posts an announcement when a tracked Twitch streamer goes live, keeps it up to date
while they stream, and turns it into a recap with a highlight animation once they go offline.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
		telemetry.ConfigureLogging(cfg.Log.Level, cfg.Log.Format)
		return nil
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "optional config file (yaml, toml or json); BETTY_* environment variables take precedence")
	rootCmd.Version = Version
}

//Execute runs the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
