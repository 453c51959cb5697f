package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kalambet/trad/internal/config"
)

var version = "dev"

var (
	noColor    bool
	configPath string
	tokenFlag  string
)

var rootCmd = &cobra.Command{
	Use:           "trad",
	Short:         "Translation arbitration server and admin CLI",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/trad/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "bearer token for server requests (default $TRAD_TOKEN)")

	rootCmd.AddCommand(
		startCmd,
		stopCmd,
		statusCmd,
		translateCmd,
		recordsCmd,
		reviewCmd,
		langsCmd,
		pairsCmd,
		tokenCmd,
		configCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}
