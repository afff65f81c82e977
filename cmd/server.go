package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/healthagent/internal/assistant"
	"github.com/ziadkadry99/healthagent/internal/audit"
	"github.com/ziadkadry99/healthagent/internal/health"
	"github.com/ziadkadry99/healthagent/internal/server"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the health assistant HTTP server",
	Long:  `Starts the REST API with the streaming chat endpoint (SSE and WebSocket), health records, recommendations and the change audit trail.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		svc, err := a.newAssistant()
		if err != nil {
			return err
		}

		port := a.cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = serverPort
		}
		srv := server.New(server.Config{
			Port:     port,
			AllowAll: a.cfg.Server.AllowAllOrigins,
		}, a.db, a.metrics, a.logger)

		r := srv.Router()
		health.RegisterRoutes(r, a.store)
		assistant.RegisterRoutes(r, svc)
		audit.RegisterRoutes(r, a.audit)

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		a.logger.Info().
			Str("version", Version).
			Int("port", port).
			Str("database", a.cfg.DatabasePath).
			Str("provider", string(a.cfg.Provider)).
			Str("model", a.cfg.Model).
			Msg("healthagent server starting")

		return srv.Start()
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 3000, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serverCmd)
}
