package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ohcupload/ohcupload/internal/config"
	"github.com/ohcupload/ohcupload/internal/core/engine"
	errwrap "github.com/ohcupload/ohcupload/internal/errors"
	"github.com/ohcupload/ohcupload/internal/metrics"
	"github.com/ohcupload/ohcupload/internal/observability"
	"github.com/ohcupload/ohcupload/internal/server"
	"github.com/ohcupload/ohcupload/internal/server/handlers"
)

const adminTokenEnv = config.EnvPrefix + "ADMIN_TOKEN"

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// uploaderHealthChecker fails while configuration is invalid.
type uploaderHealthChecker struct {
	up *uploader
}

func (u uploaderHealthChecker) CheckHealth(ctx context.Context) error {
	if !u.up.Active() {
		return errwrap.NewConfigInvalidError("uploader inactive: configuration invalid")
	}
	return nil
}

// ledgerHealthChecker pings the quota ledger database.
type ledgerHealthChecker struct {
	up *uploader
}

func (l ledgerHealthChecker) CheckHealth(ctx context.Context) error {
	if l.up.db == nil || l.up.db.DB == nil {
		return errwrap.NewServiceUnavailableError("quota ledger not open")
	}
	if err := l.up.db.DB.PingContext(ctx); err != nil {
		return errwrap.WrapDatabaseError(ctx, err, "quota ledger ping failed")
	}
	return nil
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Upload periodically and on demand",
	Long: `Run as a daemon: upload pending handshakes every watch.interval and,
when server.enabled is set, whenever POST /trigger is called.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown, cancelling quota waits
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Reload handshakes_dir, credentials and whitelist`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := currentConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		observability.InitServerLogger(config.AppName, level, config.AppName)
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port, config.AppName); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
		}

		ctx, cancel := context.WithCancel(ensureContext(cmd.Context()))
		defer cancel()

		up, err := newUploader(ctx, cfg, uploaderOptions{
			LogStatus: true,
			Logger:    logger,
		})
		if err != nil {
			return err
		}

		hm := handlers.NewHealthManager(versionInfo.Version)
		hm.RegisterChecker("uploader", uploaderHealthChecker{up: up})
		if up.db != nil {
			hm.RegisterChecker("quota_ledger", ledgerHealthChecker{up: up})
		}
		if cfg.Metrics.Enabled {
			hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		}

		var srv *server.Server
		if cfg.Server.Enabled {
			srv = server.New(server.Options{
				Host:         cfg.Server.Host,
				Port:         cfg.Server.Port,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  cfg.Server.IdleTimeout,
				AdminToken:   os.Getenv(adminTokenEnv),
				Health:       hm,
				Status:       up,
				Quota:        up,
				HourlyCap:    up.hourlyCap,
				Trigger:      up,
			})
		}

		logger.Info("Starting watch mode",
			zap.String("version", versionInfo.Version),
			zap.String("handshakes_dir", cfg.HandshakesDir),
			zap.Duration("interval", cfg.Watch.Interval),
			zap.Bool("server", srv != nil),
			zap.Bool("active", up.Active()))

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown handlers run LIFO: the logger flush registered first runs last.
		signals.OnShutdown(func(ctx context.Context) error {
			if err := logger.Sync(); err != nil {
				logger.Debug("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})
		signals.OnShutdown(func(ctx context.Context) error {
			if err := observability.ShutdownMetrics(); err != nil {
				logger.Warn("Failed to stop metrics exporter", zap.Error(err))
			}
			return nil
		})
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Stopping uploader...")
			cancel()
			done := make(chan struct{})
			go func() {
				up.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(shutdownTimeout):
				logger.Warn("Uploader did not stop before shutdown timeout")
			}
			return up.Close()
		})
		if srv != nil {
			signals.OnShutdown(func(ctx context.Context) error {
				logger.Info("Shutting down HTTP server...")
				shutdownCtx, cancelShutdown := context.WithTimeout(ctx, shutdownTimeout)
				defer cancelShutdown()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return errwrap.WrapInternal(ctx, err, "server shutdown failed")
				}
				return nil
			})
		}

		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: reloading configuration")
			reloaded, err := config.Load(ctx, cfgFile)
			if err != nil {
				logger.Error("Failed to reload configuration", zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}
			up.Reload(reloaded)
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 2)
		if srv != nil {
			go func() {
				logger.Info("Starting HTTP server...",
					zap.String("host", cfg.Server.Host),
					zap.Int("port", cfg.Server.Port))
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errChan <- err
				}
			}()
		}

		go func() {
			if err := signals.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		metrics.SetServerStartTime(time.Now().Unix())

		if err := watchLoop(ctx, up, cfg.Watch.Interval, errChan); err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "watch mode failed")
		}
		return nil
	},
}

// watchLoop triggers a batch immediately and then on every tick until ctx
// ends or errc yields an error.
func watchLoop(ctx context.Context, up *uploader, interval time.Duration, errc <-chan error) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tick := func() {
		_, err := up.Trigger(ctx, false)
		switch {
		case err == nil:
		case errors.Is(err, engine.ErrRunInProgress):
			if up.logger != nil {
				up.logger.Debug("Previous batch still running, skipping tick")
			}
		case errors.Is(err, engine.ErrInactive):
			if up.logger != nil {
				up.logger.Debug("Uploader inactive, skipping tick")
			}
		default:
			if up.logger != nil {
				up.logger.Warn("Trigger failed", zap.Error(err))
			}
		}
	}

	tick()
	for {
		select {
		case <-ctx.Done():
			up.Wait()
			return nil
		case err := <-errc:
			return err
		case <-ticker.C:
			tick()
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
