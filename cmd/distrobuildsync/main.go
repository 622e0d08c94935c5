// Package main implements the distrobuildsync CLI: a daemon that mirrors
// package build activity from an upstream build system to a downstream one.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sgallagher/distrobuildsync/internal/awaitedrepo"
	"github.com/sgallagher/distrobuildsync/internal/bus"
	"github.com/sgallagher/distrobuildsync/internal/config"
	"github.com/sgallagher/distrobuildsync/internal/daemon"
	"github.com/sgallagher/distrobuildsync/internal/gitsync"
	"github.com/sgallagher/distrobuildsync/internal/metrics"
	"github.com/sgallagher/distrobuildsync/internal/orchestrator"
	"github.com/sgallagher/distrobuildsync/internal/retry"
	"github.com/sgallagher/distrobuildsync/internal/scm"
	"github.com/sgallagher/distrobuildsync/internal/session"
)

// exitError carries a specific process exit code through cobra's error return,
// so main can translate it without main itself knowing the CLI-misuse-vs-fatal-
// config-load distinction (spec.md §6: exit 0 normal, 1 CLI misuse, 128 config
// load failure).
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ee *exitError
		if ok := asExitError(err, &ee); ok {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

func asExitError(err error, target **exitError) bool {
	for err != nil {
		if ee, ok := err.(*exitError); ok {
			*target = ee
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

type cliOptions struct {
	logLevel           string
	updateMinutes      int
	retryAttempts      int
	oneshot            bool
	dryRun             bool
	dryRunLegacy       bool
	selectStr          string
	distroGitSyncURL   string
	natsURL            string
	metricsAddr        string
}

func run() error {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:           "distrobuildsync <config>",
		Short:         "Mirror package build activity from an upstream build system to a downstream one",
		Args:          cobra.ExactArgs(1),
		Version:       "dev",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.selectStr != "" && !opts.oneshot {
				return &exitError{code: 1, err: fmt.Errorf("--select requires --oneshot")}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), args[0], opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.logLevel, "loglevel", "l", "INFO", "log level: DEBUG, INFO, WARN, ERROR")
	flags.IntVarP(&opts.updateMinutes, "update", "u", 5, "config reload interval, in minutes")
	flags.IntVarP(&opts.retryAttempts, "retry", "r", 3, "max attempts for config-repo and content-resolver fetches")
	flags.BoolVarP(&opts.oneshot, "oneshot", "1", false, "run one rebuild pass and exit, instead of listening on the bus")
	flags.BoolVarP(&opts.dryRun, "dry-run", "d", false, "classify and log what would be built, without tagging or submitting builds")
	flags.BoolVarP(&opts.dryRunLegacy, "dry-run-n", "n", false, "alias of --dry-run")
	flags.MarkHidden("dry-run-n")
	flags.StringVarP(&opts.selectStr, "select", "s", "", `space-separated "ns/comp" selectors (requires --oneshot)`)
	flags.StringVar(&opts.distroGitSyncURL, "distrogitsync-endpoint", "", "base URL of the downstream git-sync service")
	flags.StringVar(&opts.natsURL, "nats-url", "", "message-bus URL (default: embedded, for local/dev runs)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", ":9090", "address to serve /metrics on")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func runDaemon(ctx context.Context, configSCMURL string, opts *cliOptions) error {
	dryRun := opts.dryRun || opts.dryRunLegacy

	level := parseLogLevel(opts.logLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	u := scm.Split(configSCMURL)
	ref := u.Ref
	if ref == "" {
		ref = "master"
	}

	retryCfg := retry.DefaultConfig().WithAttempts(opts.retryAttempts)

	scratchDir, err := os.MkdirTemp("", "distrobuildsync-config-")
	if err != nil {
		return &exitError{code: 128, err: fmt.Errorf("create scratch directory: %w", err)}
	}
	defer os.RemoveAll(scratchDir)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	reloader := config.NewReloader(u.Link, ref, "distrobaker.yaml", scratchDir,
		time.Duration(opts.updateMinutes)*time.Minute, retryCfg, nil, m, logger)

	main, comps, configRef, err := reloader.LoadInitial(ctx)
	if err != nil {
		return &exitError{code: 128, err: fmt.Errorf("load initial configuration: %w", err)}
	}
	logger.Info("initial configuration loaded", "ref", configRef, "rpms", len(comps.RPMs), "modules", len(comps.Modules))

	store := config.NewStore(main, comps, configRef)
	reloader.Store = store

	b, err := bus.Connect(opts.natsURL)
	if err != nil {
		return fmt.Errorf("connect to message bus: %w", err)
	}
	defer b.Close()

	sessions := session.New(unconfiguredBuildSystemFactory, map[session.Role]string{
		session.RoleSource:      main.Source.Profile,
		session.RoleDestination: main.Destination.Profile,
	}, logger)

	var gitSync orchestrator.GitSyncer
	if opts.distroGitSyncURL != "" {
		gitSync = gitsync.New(opts.distroGitSyncURL, logger)
	}

	registry := awaitedrepo.New()
	d := daemon.New(store, registry, sessions, b, gitSync, ">", dryRun, m, logger)

	metricsSrv := &http.Server{Addr: opts.metricsAddr, Handler: metricsMux(reg)}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
	defer metricsSrv.Shutdown(context.Background())

	if opts.oneshot {
		selectors := strings.Fields(opts.selectStr)
		return d.RunOneshot(ctx, selectors)
	}

	if strings.HasPrefix(u.Link, "file://") || strings.HasPrefix(u.Link, "/") {
		localPath := filepath.Join(strings.TrimPrefix(u.Link, "file://"), reloader.ConfigPath)
		go func() {
			if err := config.WatchLocalFile(ctx, localPath, func() {
				if err := reloader.Reload(ctx); err != nil {
					logger.Error("local config reload failed", "error", err)
				}
			}, logger); err != nil && ctx.Err() == nil {
				logger.Warn("local config watch stopped", "error", err)
			}
		}()
	}

	go func() {
		if err := reloader.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("config reloader stopped unexpectedly", "error", err)
		}
	}()

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	defer d.Stop()

	logger.Info("distrobuildsync running", "config", u.Link, "ref", ref, "dry_run", dryRun)
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
