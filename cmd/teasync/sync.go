package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/plantationops/teasync/internal/dashboard"
)

// syncAll runs one full sync pass: push every pending record oldest-first,
// then pull records created elsewhere. Pull failures do not abort the pass;
// each entity is attempted independently.
func (a *agent) syncAll(ctx context.Context, dash *dashboard.Server) error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	_, err := a.fields.SyncPending(ctx)
	record(err)
	_, err = a.workers.SyncPending(ctx)
	record(err)
	_, err = a.schedules.SyncPending(ctx)
	record(err)
	_, err = a.activities.SyncPending(ctx)
	record(err)

	pulls := []struct {
		entity string
		pull   func(context.Context) (int, error)
	}{
		{"fields", func(ctx context.Context) (int, error) { return a.fields.PullFromRemote(ctx, a.cfg.PlantationID) }},
		{"workers", func(ctx context.Context) (int, error) { return a.workers.PullFromRemote(ctx, a.cfg.PlantationID) }},
		{"schedules", func(ctx context.Context) (int, error) { return a.schedules.PullFromRemote(ctx, a.cfg.PlantationID) }},
		{"activity_logs", func(ctx context.Context) (int, error) { return a.activities.PullFromRemote(ctx) }},
	}

	for _, p := range pulls {
		inserted, err := p.pull(ctx)
		record(err)
		if err == nil && dash != nil {
			dash.BroadcastEvent(dashboard.MessageTypePullComplete, dashboard.PullCompleteData{
				Entity:   p.entity,
				Inserted: inserted,
			})
		}
	}

	if dash != nil {
		dash.BroadcastEvent(dashboard.MessageTypeStats, a.statsFunc()())
	}

	return firstErr
}

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Run one full sync pass now",
	Long: `Push all pending records to the remote backend, then pull records
created on other devices.

Pushes run oldest-first per entity; a record that fails to push stays
pending and is retried on the next pass. Pulls only insert records this
device has never seen, so local edits are never overwritten.

Example usage:
  teasync sync                  # Full push and pull
  teasync sync --push-only      # Skip the pull phase`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pushOnly, _ := cmd.Flags().GetBool("push-only")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := newLogger(cfg, "[sync] ")
		a, err := newAgent(cfg, logger)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		defer a.close(ctx)

		start := time.Now()

		if pushOnly {
			total := 0
			for _, sweep := range []func(context.Context) (int, error){
				a.fields.SyncPending,
				a.workers.SyncPending,
				a.schedules.SyncPending,
				a.activities.SyncPending,
			} {
				n, err := sweep(ctx)
				if err != nil {
					return err
				}
				total += n
			}
			fmt.Printf("Pushed %d pending records in %v\n", total, time.Since(start).Round(time.Millisecond))
			return nil
		}

		if err := a.syncAll(ctx, nil); err != nil {
			return err
		}
		fmt.Printf("Sync complete in %v\n", time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:     "pull",
	GroupID: "sync",
	Short:   "Pull records created on other devices",
	Long: `Fetch remote records this device has never seen and insert them locally.

Pulled records arrive already marked synced. Records that exist locally are
left untouched, so a pull never overwrites local edits, and running it twice
inserts nothing the second time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := newLogger(cfg, "[pull] ")
		a, err := newAgent(cfg, logger)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		defer a.close(ctx)

		total := 0
		pulls := []func(context.Context) (int, error){
			func(ctx context.Context) (int, error) { return a.fields.PullFromRemote(ctx, cfg.PlantationID) },
			func(ctx context.Context) (int, error) { return a.workers.PullFromRemote(ctx, cfg.PlantationID) },
			func(ctx context.Context) (int, error) { return a.schedules.PullFromRemote(ctx, cfg.PlantationID) },
			func(ctx context.Context) (int, error) { return a.activities.PullFromRemote(ctx) },
		}
		for _, pull := range pulls {
			n, err := pull(ctx)
			if err != nil {
				return err
			}
			total += n
		}

		fmt.Printf("Pulled %d new records\n", total)
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("push-only", false, "Push pending records without pulling")
	rootCmd.AddCommand(syncCmd, pullCmd)
}
