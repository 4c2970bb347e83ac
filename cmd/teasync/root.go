package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/plantationops/teasync/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "teasync",
	Short: "Offline-first sync agent for tea plantation field data",
	Long: `teasync keeps a plantation device's field data usable without connectivity.

All writes land in a local SQLite database first and are marked pending.
A background reconciler pushes pending records to the remote backend when it
is reachable, pulls down records created elsewhere, and queues weather
readings offline until they can be delivered.

Records never block on the network: a write succeeds the moment it is
committed locally, and sync catches up later.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml, ~/.teasync/config.yaml)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "daemon", Title: "Daemon Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "inspect", Title: "Inspection Commands:"},
	)
}

// loadConfig reads the effective configuration for a command run.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds a component logger. When cfg.Log.File is set, output goes
// to both stderr and a size-rotated file.
func newLogger(cfg *config.Config, prefix string) *log.Logger {
	var out io.Writer = os.Stderr
	if cfg.Log.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, rotated)
	}
	return log.New(out, prefix, log.LstdFlags)
}
