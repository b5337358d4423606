package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ohcupload/ohcupload/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create and check configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := strings.TrimSpace(mustString(cmd, "path"))
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if path == "" {
			return errors.New("could not resolve a config directory; pass --path")
		}
		force, _ := cmd.Flags().GetBool("force")

		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		data, err := config.DefaultsYAML()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		// The file will hold the API key.
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("write config: %w", err)
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\nSet credentials.api_key and credentials.email before running.\n", path)
		return err
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := currentConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		source := config.ConfigFileUsed()
		if source == "" {
			source = "defaults and environment"
		}

		if err := config.Validate(cfg); err != nil {
			var verr *config.ValidationError
			if errors.As(err, &verr) {
				for _, field := range verr.Fields {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "  ✗ %s\n", field.String())
				}
			}
			return err
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Configuration valid (%s)\n", source)
		return err
	},
}

func init() {
	configInitCmd.Flags().String("path", "", "Destination file (default is the user config path)")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
