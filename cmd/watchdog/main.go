package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hamed0406/watchdog/internal/config"
	"github.com/hamed0406/watchdog/internal/logging"
	"github.com/hamed0406/watchdog/internal/probe"
	"github.com/hamed0406/watchdog/internal/repo/backend"
	"github.com/hamed0406/watchdog/internal/scheduler"
)

func main() {
	cfg := config.FromEnv()
	configPath := flag.String("config", cfg.ConfigPath, "path to the watchdog configuration file (.yaml or .toml)")
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	file, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("config_load_failed", zap.String("path", *configPath), zap.Error(err))
	}

	store, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store_open_failed", zap.Error(err))
	}
	defer store.Close()

	runner := scheduler.NewRunner(logger, store, cfg.CycleInterval, cfg.MaxConcurrentChecks, probe.Options{
		HTTPTimeout:   cfg.HTTPTimeout,
		RetryAttempts: cfg.RetryAttempts,
		RetryBackoff:  cfg.RetryBackoff,
	})
	if err := runner.Apply(file); err != nil {
		logger.Fatal("config_apply_failed", zap.Error(err))
	}
	defer runner.Close()

	if *once {
		d, err := runner.RunOnce(ctx)
		if err != nil {
			logger.Error("cycle_failed", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("cycle_done", zap.String("state", d.State.String()), zap.Int("snapshots", len(d.Snapshots)))
		return
	}

	go func() {
		err := config.Watch(ctx, *configPath, logger, func(f *config.File) {
			if err := runner.Apply(f); err != nil {
				logger.Error("config_apply_failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("config_watch_disabled", zap.Error(err))
		}
	}()

	logger.Info("watchdog_started",
		zap.String("config", *configPath),
		zap.Duration("interval", cfg.CycleInterval),
		zap.Int("checks", len(file.Checks)),
	)
	runner.Run(ctx)
}
