package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "HydroRoll webhook bridge",
	Long:  "bridge forwards GitHub webhooks and arXiv feed entries to chat groups through a OneBot API.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "bridge.yaml", "path to configuration file")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
