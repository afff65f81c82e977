package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/healthagent/internal/config"
)

var (
	cfgFile string
	verbose bool
	userID  int64
)

var rootCmd = &cobra.Command{
	Use:   "healthagent",
	Short: "AI health assistant with streaming chat and automatic record updates",
	Long: `healthagent stores body measurements and health preferences, and runs an
AI assistant that streams its replies and applies the record changes it
proposes. It serves an HTTP API, an MCP server for AI agents, and an
interactive terminal chat.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().Int64Var(&userID, "user", 1, "user ID for terminal commands")
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
