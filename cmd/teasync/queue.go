package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plantationops/teasync/internal/queue"
)

var queueCmd = &cobra.Command{
	Use:     "queue",
	GroupID: "inspect",
	Short:   "Inspect and maintain the weather offline queue",
	Long: `Manage the durable queue of weather readings awaiting delivery.

Readings acquired while the remote backend is unreachable are queued here
and drained oldest-first on the next reconciliation run. Synced readings
are retained until the retention window passes; unsynced readings are
never expired.`,
}

func openQueue() (*queue.Queue, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return queue.Open(cfg.QueuePath(), newLogger(cfg, "[queue] ")), nil
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue item counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := openQueue()
		if err != nil {
			return err
		}
		stats, err := q.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("Total: %d\nSynced: %d\nAwaiting delivery: %d\n",
			stats.Total, stats.Synced, stats.Unsynced)
		return nil
	},
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued readings in delivery order",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := openQueue()
		if err != nil {
			return err
		}
		items, err := q.GetAll()
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("Queue is empty")
			return nil
		}
		for _, item := range items {
			state := "pending"
			if item.Synced {
				state = "synced"
			}
			fmt.Printf("%s  %s  %.1f°C  %.1fmm  %s\n",
				item.Timestamp.Format("2006-01-02 15:04"),
				state,
				item.Current.TemperatureC,
				item.Current.RainfallMM,
				item.ID)
		}
		return nil
	},
}

var queueCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Expire old synced readings",
	Long: `Remove synced readings older than the retention window.
Unsynced readings are never removed regardless of age.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if days <= 0 {
			days = cfg.Weather.RetentionDays
		}

		q := queue.Open(cfg.QueuePath(), newLogger(cfg, "[queue] "))
		removed, err := q.Cleanup(days)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d synced readings older than %d days\n", removed, days)
		return nil
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every queued reading, delivered or not",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			return fmt.Errorf("clear discards undelivered readings; pass --force to confirm")
		}
		q, err := openQueue()
		if err != nil {
			return err
		}
		if err := q.Clear(); err != nil {
			return err
		}
		fmt.Println("Queue cleared")
		return nil
	},
}

func init() {
	queueCleanupCmd.Flags().Int("days", 0, "Retention window in days (default: config value)")
	queueClearCmd.Flags().Bool("force", false, "Confirm discarding undelivered readings")

	queueCmd.AddCommand(queueStatsCmd, queueListCmd, queueCleanupCmd, queueClearCmd)
	rootCmd.AddCommand(queueCmd)
}
