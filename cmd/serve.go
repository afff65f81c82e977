package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/healthagent/internal/logging"
	mcpserver "github.com/ziadkadry99/healthagent/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing health record and change-log tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "healthagent MCP server started on stdio (database=%s)\n", a.cfg.DatabasePath)

		srv := mcpserver.NewServer(a.store, a.router, a.audit, logging.Component(a.logger, "mcp"))
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
