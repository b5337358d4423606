package cmd

import (
	"context"
	"fmt"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ohcupload/ohcupload/internal/config"
	"github.com/ohcupload/ohcupload/internal/observability"
)

var (
	cfgFile string
	verbose bool

	loadedConfig *config.Config
	configErr    error

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Upload captured WPA handshakes to onlinehashcrack",
	Long: `ohcupload submits hashcat 22000 handshake files to the onlinehashcrack v2 API.

Each file is uploaded at most once, a marker file records the upload, and
submissions are paced to stay inside the hourly quota.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Disable global telemetry early so config loading does not emit
	// metrics to stdout. Watch mode initializes real telemetry later.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default is %s)", config.DefaultConfigPath()))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
}

// initConfig sets up the CLI logger and loads configuration once per process.
func initConfig() {
	observability.InitCLILogger(config.AppName, verbose)

	loadedConfig, configErr = config.Load(context.Background(), cfgFile)
	if configErr != nil {
		observability.CLILogger.Debug("Configuration load failed", zap.Error(configErr))
		return
	}

	if used := config.ConfigFileUsed(); used != "" {
		observability.CLILogger.Debug("Using config file", zap.String("path", used))
	} else {
		observability.CLILogger.Debug("No config file found, using defaults and environment variables")
	}
}

// currentConfig returns the configuration loaded at startup.
func currentConfig() (*config.Config, error) {
	if loadedConfig == nil && configErr == nil {
		loadedConfig, configErr = config.Load(context.Background(), cfgFile)
	}
	return loadedConfig, configErr
}
