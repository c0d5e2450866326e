// cronrun - Entry Point
//
// cronrun is a standalone cron daemon for Linux hosts. It reads a YAML
// job table, computes each job's occurrences with its own five-field
// cron engine, executes due jobs, keeps run history in a local
// database, and optionally reports runs to a webhook and/or NATS.
//
// Besides the daemon, the binary offers small one-shot modes:
//
//	cronrun -check '*/5 * * * *'          validate an expression
//	cronrun -preview '5 0 * * *' -n 3     print upcoming occurrences
//	cronrun -init                         write a starter config
//
// Daemon lifecycle:
//  1. Load configuration from YAML (-config, default /etc/cronrun/config.yaml)
//  2. Set up structured JSON logging
//  3. Open the run-history database
//  4. Build notifiers (webhook, NATS) and the load guard
//  5. Start the scheduler loop, notify systemd READY, start the watchdog
//  6. Wait for SIGTERM/SIGINT, then shut down coordinated with a timeout
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/doughall/cronrun/internal/config"
	"github.com/doughall/cronrun/internal/cron"
	"github.com/doughall/cronrun/internal/executor"
	"github.com/doughall/cronrun/internal/history"
	"github.com/doughall/cronrun/internal/logging"
	"github.com/doughall/cronrun/internal/notify"
	"github.com/doughall/cronrun/internal/scheduler"
	"github.com/doughall/cronrun/internal/shutdown"
	"github.com/doughall/cronrun/internal/sysload"
	"github.com/doughall/cronrun/internal/systemd"
	"github.com/doughall/cronrun/internal/version"
)

// shutdownTimeout bounds graceful shutdown after a signal.
const shutdownTimeout = 30 * time.Second

// heartbeatInterval is how often the NATS heartbeat is published.
const heartbeatInterval = 60 * time.Second

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	initConfig := flag.Bool("init", false, "write an example configuration file and exit")
	checkExpr := flag.String("check", "", "validate a cron expression and exit")
	previewExpr := flag.String("preview", "", "print upcoming occurrences of a cron expression and exit")
	previewCount := flag.Int("n", 5, "number of occurrences for -preview")
	previewFrom := flag.String("from", "", "RFC3339 seed time for -preview (default: now)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	if *initConfig {
		if err := config.WriteExample(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote example configuration to %s\n", *configPath)
		os.Exit(0)
	}

	if *checkExpr != "" {
		os.Exit(runCheck(*checkExpr))
	}

	if *previewExpr != "" {
		os.Exit(runPreview(*previewExpr, *previewCount, *previewFrom))
	}

	runDaemon(*configPath)
}

// runCheck validates one expression, printing the parse error if any.
func runCheck(expr string) int {
	if _, err := cron.Parse(expr); err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		return 1
	}
	fmt.Println("valid")
	return 0
}

// runPreview prints the next n occurrences of an expression.
func runPreview(expr string, n int, from string) int {
	sched, err := cron.Parse(expr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid expression: %v\n", err)
		return 1
	}

	seed := time.Now()
	if from != "" {
		seed, err = time.Parse(time.RFC3339, from)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -from time: %v\n", err)
			return 1
		}
	}

	it := sched.Upcoming(seed)
	for i := 0; i < n; i++ {
		t, ok := it.Next()
		if !ok {
			if i == 0 {
				fmt.Fprintln(os.Stderr, "schedule has no occurrences")
				return 1
			}
			break
		}
		fmt.Printf("%s  %s\n", cron.FormatLocal(t), cron.FormatUTC(t))
	}
	return 0
}

// runDaemon is the long-running mode.
func runDaemon(configPath string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		// Basic stderr logging before the logger is configured.
		fmt.Fprintf(os.Stderr, "ERROR: failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger := logging.SetupLogger(cfg.LogLevel)

	logger.Info("cronrun starting",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
		slog.String("config_path", configPath),
		slog.Int("jobs", len(cfg.Jobs)),
		slog.Int("tick_seconds", cfg.TickSeconds),
	)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}

	store, err := history.Open(filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		logger.Error("failed to open history database", "error", err)
		os.Exit(1)
	}

	coordinator := shutdown.NewCoordinator(logger)

	// Notification sinks.
	var webhook *notify.Webhook
	if cfg.WebhookURL != "" {
		webhook = notify.NewWebhook(cfg.WebhookURL, logger)
		logger.Info("webhook notifications enabled",
			slog.String("url", cfg.WebhookURL),
		)
	}

	var natsNotifier *notify.NATSNotifier
	if cfg.NATSEnabled() {
		host, _ := os.Hostname()
		natsNotifier, err = notify.NewNATSNotifier(notify.NATSConfig{
			Servers:       cfg.NATS.Servers,
			NKeySeed:      cfg.NATS.NKeySeed,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			Host:          host,
		}, logger)
		if err != nil {
			logger.Warn("NATS notifications unavailable",
				slog.String("error", err.Error()),
			)
			natsNotifier = nil
		} else {
			natsNotifier.StartHeartbeat(ctx, heartbeatInterval, version.Version)
			coordinator.Register("nats", natsNotifier)
		}
	}

	var notifier notify.Notifier
	if multi := buildMulti(cfg.NotifyOn, webhook, natsNotifier); multi.HasSinks() {
		notifier = multi
	}

	guard := sysload.NewGuard(cfg.MaxLoad1m, logger)

	sched, err := scheduler.New(
		cfg.Jobs,
		time.Duration(cfg.TickSeconds)*time.Second,
		store,
		executor.New(),
		notifier,
		guard,
		logger,
	)
	if err != nil {
		logger.Error("failed to build scheduler", "error", err)
		os.Exit(1)
	}
	coordinator.Register("scheduler", sched)

	go sched.Run(ctx)

	systemd.NotifyReady()
	logger.Info("cronrun ready")

	systemd.StartWatchdog(ctx, sched.IsHealthy)

	<-ctx.Done()
	logger.Info("shutdown signal received, starting graceful shutdown")

	systemd.NotifyStopping()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := coordinator.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	if err := store.Close(); err != nil {
		logger.Warn("failed to close history database",
			slog.String("error", err.Error()),
		)
	}

	logger.Info("shutdown complete")
}

// buildMulti assembles the fan-out notifier from whichever sinks are
// configured. Typed nils must not reach NewMulti as non-nil interfaces.
func buildMulti(mode string, webhook *notify.Webhook, nats *notify.NATSNotifier) *notify.Multi {
	var sinks []notify.Notifier
	if webhook != nil {
		sinks = append(sinks, webhook)
	}
	if nats != nil {
		sinks = append(sinks, nats)
	}
	return notify.NewMulti(mode, sinks...)
}
