package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/watchdog/internal/config"
	"github.com/hamed0406/watchdog/internal/domain"
	"github.com/hamed0406/watchdog/internal/httpapi"
	apimw "github.com/hamed0406/watchdog/internal/httpapi/middleware"
	"github.com/hamed0406/watchdog/internal/logging"
	"github.com/hamed0406/watchdog/internal/repo/backend"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store_open_failed", zap.Error(err))
	}
	defer store.Close()

	// The dashboard works without a config file; it then shows no static
	// mute windows and uses UTC.
	title, static, tc := "watchdog", []domain.MuteWindow(nil), domain.TimeContext{Location: time.UTC, Clock: time.Now}
	file, err := config.Load(cfg.ConfigPath)
	if err != nil {
		logger.Warn("config_load_failed", zap.String("path", cfg.ConfigPath), zap.Error(err))
	} else {
		title, static, tc = file.Digest.Title, file.Digest.MuteWindows, file.TimeContext()
	}
	api := httpapi.NewServer(logger, store, title, static, tc)

	if file != nil {
		go func() {
			err := config.Watch(ctx, cfg.ConfigPath, logger, func(f *config.File) {
				api.Update(f.Digest.Title, f.Digest.MuteWindows, f.TimeContext())
			})
			if err != nil {
				logger.Warn("config_watch_disabled", zap.Error(err))
			}
		}()
	}

	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("api_listen", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("api_listen_failed", zap.Error(err))
	}
}
