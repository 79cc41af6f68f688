// Command bakeryd is the Bakery process entry point: it loads the shaping
// configuration, builds the intended topology's batch engine, and runs the
// activity loop that keeps the kernel's HTB/SQM tree in sync with it.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lqos-tc/bakery/internal/clock"
	"github.com/lqos-tc/bakery/internal/config"
	"github.com/lqos-tc/bakery/internal/events"
	"github.com/lqos-tc/bakery/internal/logging"
	"github.com/lqos-tc/bakery/internal/metrics"
	"github.com/lqos-tc/bakery/internal/overrides"
	"github.com/lqos-tc/bakery/internal/scheduler"
	"github.com/lqos-tc/bakery/internal/tc"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "/etc/lqos/bakery.hcl", "Path to the shaping configuration file")
	metricsAddr := flag.String("metrics-addr", ":9100", "Address to serve Prometheus metrics on")
	tickInterval := flag.Duration("tick-interval", time.Minute, "Interval between idle-circuit prune ticks")
	jsonLogs := flag.Bool("json-logs", false, "Emit logs as JSON instead of console text")
	syslogAddr := flag.String("syslog-addr", "", "Remote syslog host, e.g. 10.0.0.1:514 (UDP); empty disables remote syslog")
	logFile := flag.String("log-file", "", "Path to capture raw stdout/stderr (panics, third-party library output) into; empty disables capture")
	flag.Parse()

	logOutput := io.Writer(os.Stderr)
	if *syslogAddr != "" {
		host, portStr, err := net.SplitHostPort(*syslogAddr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -syslog-addr %q: %v\n", *syslogAddr, err)
			return 1
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -syslog-addr port %q: %v\n", portStr, err)
			return 1
		}
		cfg := logging.DefaultSyslogConfig()
		cfg.Enabled = true
		cfg.Host = host
		cfg.Port = port
		syslogWriter, err := logging.NewSyslogWriter(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to syslog server %s: %v\n", *syslogAddr, err)
			return 1
		}
		defer syslogWriter.Close()
		logOutput = logging.MultiWriter(os.Stderr, syslogWriter)
	}

	logging.SetDefault(logging.New(logging.Config{
		Level:  logging.LevelInfo,
		Output: logOutput,
		JSON:   *jsonLogs,
	}))
	logger := logging.Default().WithComponent("bakeryd")

	// Route anything written via the standard 'log' package (vishvananda/netlink
	// and other dependencies sometimes do) through the structured logger.
	logging.RedirectStdLog()
	if *logFile != "" {
		// Hijack os.Stdout/os.Stderr so a panic or raw third-party write still
		// lands in the log file and the ring buffer instead of vanishing when
		// the process is run under a supervisor that discards its own stdio.
		logging.CaptureStdio(*logFile)
	}

	if err := clock.EnsureSaneTime(); err != nil {
		logger.Warn("clock sanity check failed, continuing with system time", "error", err)
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	if err := tc.ValidateInterfaces(cfg); err != nil {
		logger.Error("interface validation failed", "error", err)
		return 1
	}

	if _, err := overrides.Load(cfg.LqosDirectory); err != nil {
		logger.Error("failed to load override file", "error", err)
		return 1
	}

	// All concurrent readers (executor, scheduler tick, metrics collector)
	// go through the store, so a SIGHUP reload swaps in a new snapshot
	// without tearing anyone's in-flight view.
	store := config.NewStore(cfg)

	hub := events.NewHub()
	engine := tc.NewEngine(store, logger.Logger)
	engine.SetHub(hub)
	executor := tc.NewExecutor(store, logger.Logger, &clock.RealClock{}, nil, engine, hub)

	collector := metrics.NewCollector(logger, engine, 15*time.Second)
	go collector.Start()
	defer collector.Stop()

	sched := scheduler.New(logger)
	registry := &scheduler.TaskRegistry{
		ConfigPath: *configPath,
		GetConfig:  store.Get,
		RunTick:    executor.Tick,
	}
	if err := sched.AddTask(scheduler.NewTickTask(registry, *tickInterval)); err != nil {
		logger.Error("failed to register tick task", "error", err)
		return 1
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	httpServer := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go executor.Run(ctx)
	sched.Start()

	if err := coldStart(store.Get(), logger); err != nil {
		logger.Error("cold start failed", "error", err)
		return 1
	}

	// SIGHUP reloads the configuration; SIGUSR1 dumps recent shaping
	// diagnostics. Neither restarts anything.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)
	logReader := logging.NewLogReader()
	var sig os.Signal
	for sig = range sigCh {
		if sig == syscall.SIGHUP {
			reloadConfig(*configPath, store, logger)
			continue
		}
		if sig == syscall.SIGUSR1 {
			dumpDiagnostics(logReader, logger)
			continue
		}
		break
	}
	logger.Info("shutting down", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	sched.Stop()
	cancel()
	return 0
}

// reloadConfig re-reads the configuration file and atomically publishes the
// new snapshot. A reload that fails to parse or validate is rejected whole;
// the previous snapshot stays active. In-flight operations finish against
// the snapshot they already hold.
func reloadConfig(path string, store *config.Store, logger *logging.Logger) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		logger.Error("config reload failed, keeping previous configuration", "path", path, "error", err)
		return
	}
	if err := tc.ValidateInterfaces(cfg); err != nil {
		logger.Error("config reload rejected, keeping previous configuration", "error", err)
		return
	}
	store.Replace(cfg)
	logger.Info("configuration reloaded", "path", path,
		"lazy_queues", string(cfg.Queues.LazyQueues), "monitor_only", cfg.Queues.MonitorOnly)
}

// dumpDiagnostics writes the most recent tc-related kernel messages and
// bakeryd's own log tail through the logger, for operators poking a live
// box with `kill -USR1`.
func dumpDiagnostics(reader *logging.LogReader, logger *logging.Logger) {
	for _, source := range []logging.LogSource{logging.LogSourceTC, logging.LogSourceService} {
		entries, err := reader.GetLogs(logging.LogFilter{Source: source, Limit: 50})
		if err != nil {
			logger.Warn("diagnostic dump failed", "source", source, "error", err)
			continue
		}
		logger.Info("diagnostic dump", "source", source, "entries", len(entries))
		for _, e := range entries {
			logger.Info("diag", "source", e.Source, "level", e.Level, "ts", e.Timestamp.Format(time.RFC3339), "msg", e.Message)
		}
	}
}

// coldStart runs the initial MQ setup as a single-command transaction. The
// engine's own committed sites and circuits are populated separately, via
// the first StartBatch/CommitBatch cycle driven by the scheduler's
// site/circuit import (external to the Bakery core); coldStart only has to
// get the MQ root qdiscs and per-queue HTB roots onto the wire once.
func coldStart(cfg *config.Config, logger *logging.Logger) error {
	if tc.MqCreated() {
		return nil
	}
	mqCmd := tc.Command{Kind: tc.KindMqSetup, QueuesAvailable: cfg.QueuesAvailable, StickOffset: cfg.StickOffset}
	argv, ok := tc.ToCommands(mqCmd, cfg, tc.Builder, logger.Logger)
	if !ok {
		return fmt.Errorf("mq setup produced no commands")
	}
	runner := tc.DefaultCommandRunner
	for _, a := range argv {
		if err := runner.Run(a); err != nil {
			logger.Error("mq setup command failed", "argv", a, "error", err)
		}
	}
	logger.Info("mq setup complete", "commands", len(argv))
	return nil
}
