package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lqos-tc/bakery/internal/clock"
	"github.com/lqos-tc/bakery/internal/config"
	"github.com/lqos-tc/bakery/internal/logging"
)

// TaskRegistry holds references to the running engine for task execution.
type TaskRegistry struct {
	ConfigPath  string
	BackupDir   string
	GetConfig   func() *config.Config
	RunTick     func(ctx context.Context) error
	CollectStat func(ctx context.Context) error
}

// NewTickTask creates the periodic idle-circuit pruning task: it calls the
// executor's Tick, which walks committed circuits and prunes any that have
// been idle past IdleTimeout when the lazy policy allows it.
func NewTickTask(registry *TaskRegistry, interval time.Duration) *Task {
	return &Task{
		ID:          "tc-tick",
		Name:        "Idle Circuit Tick",
		Description: "Prune lazily-materialized circuits that have gone idle",
		Schedule:    Every(interval),
		Enabled:     true,
		RunOnStart:  false,
		Timeout:     30 * time.Second,
		Func: func(ctx context.Context) error {
			if registry.RunTick == nil {
				return fmt.Errorf("tick function not configured")
			}
			return registry.RunTick(ctx)
		},
	}
}

// NewConfigBackupTask creates a task to snapshot the active shaping
// configuration to disk, so an operator can diff deployments over time.
func NewConfigBackupTask(registry *TaskRegistry, schedule Schedule, keepCount int) *Task {
	if keepCount <= 0 {
		keepCount = 7
	}

	return &Task{
		ID:          "config-backup",
		Name:        "Configuration Backup",
		Description: "Snapshot the active shaping configuration",
		Schedule:    schedule,
		Enabled:     true,
		RunOnStart:  false,
		Timeout:     1 * time.Minute,
		Func: func(ctx context.Context) error {
			if registry.GetConfig == nil {
				return fmt.Errorf("GetConfig function not configured")
			}
			if registry.BackupDir == "" {
				return fmt.Errorf("backup directory not configured")
			}

			if err := os.MkdirAll(registry.BackupDir, 0755); err != nil {
				return fmt.Errorf("failed to create backup directory: %w", err)
			}

			cfg := registry.GetConfig()
			if cfg == nil {
				return fmt.Errorf("no configuration available")
			}

			timestamp := clock.Now().Format("2006-01-02_15-04-05")
			filename := filepath.Join(registry.BackupDir, fmt.Sprintf("config_%s.json", timestamp))

			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}

			if err := os.WriteFile(filename, data, 0644); err != nil {
				return fmt.Errorf("failed to write backup: %w", err)
			}

			if err := cleanupOldBackups(registry.BackupDir, keepCount); err != nil {
				logging.Warn("failed to cleanup old backups", "error", err)
			}

			return nil
		},
	}
}

func cleanupOldBackups(dir string, keepCount int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var backups []os.DirEntry
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			backups = append(backups, entry)
		}
	}

	if len(backups) <= keepCount {
		return nil
	}

	type fileInfo struct {
		entry   os.DirEntry
		modTime time.Time
	}
	var files []fileInfo
	for _, entry := range backups {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{entry: entry, modTime: info.ModTime()})
	}

	for i := 0; i < len(files)-1; i++ {
		for j := i + 1; j < len(files); j++ {
			if files[i].modTime.After(files[j].modTime) {
				files[i], files[j] = files[j], files[i]
			}
		}
	}

	toDelete := len(files) - keepCount
	for i := 0; i < toDelete; i++ {
		path := filepath.Join(dir, files[i].entry.Name())
		if err := os.Remove(path); err != nil {
			logging.Warn("failed to delete old backup", "path", path, "error", err)
		}
	}

	return nil
}

// NewHealthCheckTask creates a task to perform periodic health checks.
func NewHealthCheckTask(checkFunc func(context.Context) error, interval time.Duration) *Task {
	return &Task{
		ID:          "health-check",
		Name:        "Health Check",
		Description: "Periodic engine health check",
		Schedule:    Every(interval),
		Enabled:     true,
		RunOnStart:  true,
		Timeout:     30 * time.Second,
		Func:        checkFunc,
	}
}

// NewMetricsCollectionTask creates a task to collect and export metrics.
func NewMetricsCollectionTask(collectFunc func(context.Context) error, interval time.Duration) *Task {
	return &Task{
		ID:          "metrics-collection",
		Name:        "Metrics Collection",
		Description: "Collect shaping engine metrics",
		Schedule:    Every(interval),
		Enabled:     true,
		RunOnStart:  false,
		Timeout:     10 * time.Second,
		Func:        collectFunc,
	}
}
