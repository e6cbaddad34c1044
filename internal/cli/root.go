package cli

import (
	"github.com/spf13/cobra"

	"github.com/claude/repquest/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "repquest-session",
	Short: "Play RepQuest levels from a pose stream",
	Long: `repquest-session runs level attempts against a RepQuest server.

Poses come from a recorded stream; reps are counted locally and the level is
reported complete to the server once every exercise reaches its target.
Configuration is read from an optional YAML file and REPQUEST_SESSION_* env vars.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("repquest-session version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to session config file")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.SessionConfig, error) {
	return config.LoadSession(configPath)
}
