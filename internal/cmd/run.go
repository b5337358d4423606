package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ohcupload/ohcupload/internal/config"
	"github.com/ohcupload/ohcupload/internal/core"
	"github.com/ohcupload/ohcupload/internal/observability"
	"github.com/ohcupload/ohcupload/internal/output"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Upload pending handshakes once",
	Long: `Scan the handshakes directory and upload every .22000 file that has no
.uploaded marker yet, respecting the hourly quota.

Ctrl+C cancels any quota wait and ends the batch.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := currentConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = withRunOverrides(cmd, cfg)

		ctx, stop := signal.NotifyContext(ensureContext(cmd.Context()), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := observability.InitForProfile(config.AppName, cfg.Logging.Profile, cfg.Logging.Level, verbose)

		up, err := newUploader(ctx, cfg, uploaderOptions{
			Out:    cmd.ErrOrStderr(),
			Logger: logger,
		})
		if err != nil {
			return err
		}
		defer func() { _ = up.Close() }()

		summary, err := up.RunOnce(ctx)
		if err != nil {
			return err
		}

		logger.Debug("Batch finished", summaryFields(summary)...)

		return writeOutput(cmd, "run-"+summary.RunID, func(f output.Formatter) (string, error) {
			return f.FormatRun(summary)
		})
	},
}

// withRunOverrides applies --dir and --policy on a copy of cfg.
func withRunOverrides(cmd *cobra.Command, cfg *config.Config) *config.Config {
	overridden := *cfg
	if dir, _ := cmd.Flags().GetString("dir"); strings.TrimSpace(dir) != "" {
		overridden.HandshakesDir = strings.TrimSpace(dir)
	}
	if policy, _ := cmd.Flags().GetString("policy"); strings.TrimSpace(policy) != "" {
		overridden.Policy = strings.ToLower(strings.TrimSpace(policy))
	}
	return &overridden
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// summaryFields renders the log fields for a finished batch.
func summaryFields(summary *core.RunSummary) []zap.Field {
	if summary == nil {
		return nil
	}
	fields := []zap.Field{
		zap.String("run_id", summary.RunID),
		zap.Int("candidates", summary.Candidates),
		zap.Int("accepted", summary.Accepted),
		zap.Int("skipped", summary.Skipped),
		zap.Bool("aborted", summary.Aborted),
	}
	if summary.AbortReason != "" {
		fields = append(fields, zap.String("abort_reason", summary.AbortReason))
	}
	return fields
}

func init() {
	runCmd.Flags().String("dir", "", "Handshakes directory (overrides handshakes_dir)")
	runCmd.Flags().String("policy", "", "Failure policy: abort|skip (overrides policy)")
	addOutputFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}
