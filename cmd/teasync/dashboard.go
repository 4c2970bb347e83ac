package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plantationops/teasync/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "daemon",
	Short:   "Start the standalone sync monitoring dashboard",
	Long: `Start a WebSocket dashboard server for monitoring sync state in real-time.

The dashboard broadcasts sync events to connected clients:
- record_pushed: A record reached the remote backend
- pull_complete: A remote pull pass finished
- queue_update: The weather queue changed
- reconcile_complete: A reconciliation run finished
- stats: Current pending counts and reachability

Run standalone to inspect a device's state, or enable dashboard.enabled in
the config to run it inside the daemon.

Example usage:
  teasync dashboard                   # Start on the configured port
  teasync dashboard --port 9000       # Start on a custom port

Connect with a WebSocket client:
  ws://localhost:8090/ws`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			port = cfg.Dashboard.Port
		}

		logger := newLogger(cfg, "[dashboard] ")
		a, err := newAgent(cfg, logger)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		server := dashboard.NewServer(&dashboard.Config{
			Port:   port,
			Stats:  a.statsFunc(),
			Logger: logger,
		})

		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}

		fmt.Printf("Dashboard server started on http://localhost:%d\n", port)
		fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", port)
		fmt.Printf("Sync statistics: http://localhost:%d/stats\n", port)
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		<-ctx.Done()

		fmt.Println("\nShutting down dashboard server...")
		return server.Stop()
	},
}

func init() {
	dashboardCmd.Flags().IntP("port", "p", 0, "Port to listen on (default: config value)")
	rootCmd.AddCommand(dashboardCmd)
}
