package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "inspect",
	Short:   "Show local sync state and remote reachability",
	Long: `Display the device's current sync state.

Shows:
  - Pending record counts per entity
  - Outbox row counts by status
  - Weather queue depth (total, synced, unsynced)
  - Whether the remote backend is currently reachable`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := newLogger(cfg, "[status] ")
		a, err := newAgent(cfg, logger)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		defer a.close(ctx)

		fields, err := a.store.CountPendingFields(ctx)
		if err != nil {
			return err
		}
		workers, err := a.store.CountPendingWorkers(ctx)
		if err != nil {
			return err
		}
		schedules, err := a.store.CountPendingSchedules(ctx)
		if err != nil {
			return err
		}
		logs, err := a.store.CountPendingActivityLogs(ctx)
		if err != nil {
			return err
		}

		outbox, err := a.store.OutboxStats(ctx)
		if err != nil {
			return err
		}

		qs, err := a.queue.Stats()
		if err != nil {
			return err
		}

		reachable := a.probe.IsReachable(ctx)

		fmt.Printf("Database: %s\n", cfg.DatabasePath())
		fmt.Printf("Plantation: %s\n\n", cfg.PlantationID)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "Pending records:")
		fmt.Fprintf(w, "  fields\t%d\n", fields)
		fmt.Fprintf(w, "  workers\t%d\n", workers)
		fmt.Fprintf(w, "  schedules\t%d\n", schedules)
		fmt.Fprintf(w, "  activity logs\t%d\n", logs)
		w.Flush()

		fmt.Printf("\nOutbox: %d rows", outboxTotal(outbox))
		for _, status := range []string{"pending", "synced"} {
			if n, ok := outbox[status]; ok {
				fmt.Printf(", %d %s", n, status)
			}
		}
		fmt.Println()

		fmt.Printf("\nWeather queue: %d total, %d synced, %d awaiting delivery\n",
			qs.Total, qs.Synced, qs.Unsynced)

		if reachable {
			fmt.Printf("Remote: reachable (%s)\n", healthBaseURL(cfg))
		} else {
			fmt.Printf("Remote: unreachable (%s)\n", healthBaseURL(cfg))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func outboxTotal(stats map[string]int) int {
	total := 0
	for _, n := range stats {
		total += n
	}
	return total
}
