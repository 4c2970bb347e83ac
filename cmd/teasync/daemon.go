package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/plantationops/teasync/internal/config"
	"github.com/plantationops/teasync/internal/dashboard"
	"github.com/plantationops/teasync/internal/health"
	"github.com/plantationops/teasync/internal/queue"
	"github.com/plantationops/teasync/internal/reconcile"
	"github.com/plantationops/teasync/internal/remote"
	"github.com/plantationops/teasync/internal/scheduler"
	"github.com/plantationops/teasync/internal/store"
	"github.com/plantationops/teasync/internal/syncer"
	"github.com/plantationops/teasync/internal/weather"
)

// agent bundles the wired components a command run needs.
type agent struct {
	cfg    *config.Config
	store  *store.Store
	remote *remote.Adapter
	queue  *queue.Queue
	probe  *health.Probe

	fields     *syncer.FieldSyncer
	workers    *syncer.WorkerSyncer
	schedules  *syncer.ScheduleSyncer
	activities *syncer.ActivityLogSyncer
	weather    *syncer.WeatherSyncer
}

// newAgent opens the local store and wires the sync components. The remote
// adapter connects lazily, so this never touches the network.
func newAgent(cfg *config.Config, logger *log.Logger) (*agent, error) {
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	if err := st.InitSchema(); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	adapter := remote.New(remote.Config{
		Endpoint:  cfg.Remote.Endpoint,
		Namespace: cfg.Remote.Namespace,
		Database:  cfg.Remote.Database,
		Username:  cfg.Remote.Username,
		Password:  cfg.Remote.Password,
		Logger:    logger,
	})

	probe := health.New(healthBaseURL(cfg), &health.Config{
		Timeout: cfg.Remote.HealthTimeout,
		Logger:  logger,
	})

	q := queue.Open(cfg.QueuePath(), logger)

	return &agent{
		cfg:        cfg,
		store:      st,
		remote:     adapter,
		queue:      q,
		probe:      probe,
		fields:     syncer.NewFieldSyncer(st, adapter, nil, logger),
		workers:    syncer.NewWorkerSyncer(st, adapter, nil, logger),
		schedules:  syncer.NewScheduleSyncer(st, adapter, nil, logger),
		activities: syncer.NewActivityLogSyncer(st, adapter, nil, logger),
		weather:    syncer.NewWeatherSyncer(adapter, logger),
	}, nil
}

func (a *agent) close(ctx context.Context) {
	_ = a.remote.Close(ctx)
	_ = a.store.Close()
}

// healthBaseURL derives the probe target from configuration. An explicit
// health_url wins; otherwise the remote endpoint's host is probed over HTTP.
func healthBaseURL(cfg *config.Config) string {
	if cfg.Remote.HealthURL != "" {
		return cfg.Remote.HealthURL
	}
	u, err := url.Parse(cfg.Remote.Endpoint)
	if err != nil || u.Host == "" {
		return cfg.Remote.Endpoint
	}
	scheme := "http"
	if u.Scheme == "wss" || u.Scheme == "https" {
		scheme = "https"
	}
	return scheme + "://" + u.Host
}

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "daemon",
	Short:   "Run the background sync daemon",
	Long: `Run the sync daemon until interrupted.

The daemon schedules three periodic tasks:
  sync        push pending records, then pull new remote records
  weather     fetch a reading and deliver or queue it
  cleanup     expire old synced entries from the weather queue

With the dashboard enabled, sync activity is broadcast to WebSocket clients
and current statistics are served over HTTP.

Example usage:
  teasync daemon                       # Run with config defaults
  teasync daemon --config /etc/teasync/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := newLogger(cfg, "[daemon] ")

		a, err := newAgent(cfg, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		defer a.close(context.Background())

		var dash *dashboard.Server
		if cfg.Dashboard.Enabled {
			dash = dashboard.NewServer(&dashboard.Config{
				Port:   cfg.Dashboard.Port,
				Stats:  a.statsFunc(),
				Logger: newLogger(cfg, "[dashboard] "),
			})
			if err := dash.Start(); err != nil {
				return fmt.Errorf("failed to start dashboard: %w", err)
			}
			defer func() { _ = dash.Stop() }()
		}

		provider := weather.New(cfg.Weather.Endpoint, cfg.Weather.Latitude, cfg.Weather.Longitude, weather.Config{
			Logger: newLogger(cfg, "[weather] "),
		})

		reconciler := reconcile.New(reconcile.Config{
			Provider: provider,
			Probe:    a.probe,
			Queue:    a.queue,
			Pusher:   a.weather,
			Logger:   newLogger(cfg, "[reconcile] "),
			Notify: func(res reconcile.Result) {
				if dash == nil {
					return
				}
				dash.BroadcastEvent(dashboard.MessageTypeReconcileComplete, dashboard.ReconcileCompleteData{
					Reachable: res.Reachable,
					Drained:   res.Drained,
					Queued:    res.Queued,
					Pushed:    res.Pushed,
				})
			},
		})

		sched := scheduler.New(scheduler.Options{
			MinimumInterval:    cfg.Sync.Interval,
			ExecutionBudget:    cfg.Sync.ExecutionBudget,
			PersistOnTerminate: true,
			StartOnBoot:        cfg.Sync.StartOnBoot,
			Headless:           true,
			RequiredNetwork:    networkClass(cfg.Sync.RequiredNetwork),
			RequiresCharging:   cfg.Sync.RequiresCharging,
			RequiresIdle:       cfg.Sync.RequiresIdle,
			Logger:             newLogger(cfg, "[scheduler] "),
		})

		sched.Register("sync", func(ctx context.Context) error {
			return a.syncAll(ctx, dash)
		}, func() {
			logger.Printf("Sync run force-completed, pending records remain for next run")
		})

		sched.Register("weather", func(ctx context.Context) error {
			_, err := reconciler.Run(ctx)
			return err
		}, nil)

		sched.Register("cleanup", func(ctx context.Context) error {
			_, err := a.queue.Cleanup(cfg.Weather.RetentionDays)
			return err
		}, nil)

		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()

		config.Watch(cfgFile, func(file string) {
			logger.Printf("Config file %s changed, restart to apply", file)
		})

		if watcher, err := watchQueueFile(cfg, a, dash, logger); err != nil {
			logger.Printf("Queue watch unavailable: %v", err)
		} else if watcher != nil {
			defer watcher.Close()
		}

		logger.Printf("Daemon running, plantation %s, data dir %s", cfg.PlantationID, cfg.DataDir)
		<-ctx.Done()
		logger.Printf("Shutting down")
		return nil
	},
}

// watchQueueFile broadcasts queue statistics when another process rewrites
// the queue document. Returns nil when no dashboard is running.
func watchQueueFile(cfg *config.Config, a *agent, dash *dashboard.Server, logger *log.Logger) (*fsnotify.Watcher, error) {
	if dash == nil {
		return nil, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(cfg.DataDir); err != nil {
		watcher.Close()
		return nil, err
	}

	queueFile := filepath.Base(cfg.QueuePath())
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != queueFile {
					continue
				}
				if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
					continue
				}
				stats, err := a.queue.Stats()
				if err != nil {
					continue
				}
				dash.BroadcastEvent(dashboard.MessageTypeQueueUpdate, dashboard.QueueUpdateData{
					Total:    stats.Total,
					Synced:   stats.Synced,
					Unsynced: stats.Unsynced,
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Printf("Queue watch error: %v", err)
			}
		}
	}()

	return watcher, nil
}

// statsFunc snapshots pending counts, queue depth, and reachability for the
// dashboard.
func (a *agent) statsFunc() dashboard.StatsFunc {
	return func() dashboard.StatsData {
		ctx, cancel := context.WithTimeout(context.Background(), health.DefaultTimeout)
		defer cancel()

		pending := map[string]int{}
		if n, err := a.store.CountPendingFields(ctx); err == nil {
			pending["fields"] = n
		}
		if n, err := a.store.CountPendingWorkers(ctx); err == nil {
			pending["workers"] = n
		}
		if n, err := a.store.CountPendingSchedules(ctx); err == nil {
			pending["schedules"] = n
		}
		if n, err := a.store.CountPendingActivityLogs(ctx); err == nil {
			pending["activity_logs"] = n
		}

		stats := dashboard.StatsData{PendingByEntity: pending}
		if qs, err := a.queue.Stats(); err == nil {
			stats.QueueUnsynced = qs.Unsynced
		}
		stats.RemoteReachable = a.probe.IsReachable(ctx)
		return stats
	}
}

func networkClass(s string) scheduler.Network {
	switch strings.ToLower(s) {
	case "unmetered":
		return scheduler.NetworkUnmetered
	case "none":
		return scheduler.NetworkNone
	default:
		return scheduler.NetworkAny
	}
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
