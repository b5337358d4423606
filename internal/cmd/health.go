package cmd

import (
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ohcupload/ohcupload/internal/config"
	errwrap "github.com/ohcupload/ohcupload/internal/errors"
	"github.com/ohcupload/ohcupload/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Check that the uploader could start: version, logger, configuration, handshakes directory and quota ledger.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		if logger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		logger.Info("✅ Version information available", zap.String("version", versionInfo.Version))

		cfg, err := currentConfig()
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration could not be loaded", err)
			return
		}
		if err := config.Validate(cfg); err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		logger.Info("✅ Configuration valid")

		info, err := os.Stat(cfg.HandshakesDir)
		if err != nil || !info.IsDir() {
			if err == nil {
				err = errwrap.NewConfigInvalidError("handshakes_dir is not a directory")
			}
			ExitWithCode(logger, foundry.ExitFileNotFound, "Handshakes directory unavailable", err)
			return
		}
		logger.Info("✅ Handshakes directory readable", zap.String("path", cfg.HandshakesDir))

		if cfg.Store.Enabled {
			db, err := openStore(cmd.Context(), cfg)
			if err != nil {
				ExitWithCode(logger, foundry.ExitExternalServiceUnavailable, "Quota ledger unavailable", err)
				return
			}
			_ = db.Close()
			logger.Info("✅ Quota ledger ready", zap.String("driver", db.Driver()))
		}

		logger.Info("")
		logger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
