package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/ohcupload/ohcupload/internal/config"
	"github.com/ohcupload/ohcupload/internal/core/store"
	"github.com/ohcupload/ohcupload/internal/output"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect and reset the persisted upload quota",
}

var quotaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the persisted quota state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := currentConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if !cfg.Store.Enabled {
			return errors.New("quota ledger disabled (store.enabled=false); quota state lives only inside a running watch process")
		}

		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		query := store.QuotaQuery{Service: strings.TrimSpace(mustString(cmd, "service"))}
		if query.Service == "" {
			query.All = true
		}
		entries, err := db.ListQuotaStates(cmd.Context(), query)
		if err != nil {
			return err
		}

		rows := quotaRows(entries, cfg)
		return writeOutput(cmd, "quota", func(f output.Formatter) (string, error) {
			return f.FormatQuota(rows)
		})
	},
}

var quotaResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset stored quota state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		all, _ := cmd.Flags().GetBool("all")
		yes, _ := cmd.Flags().GetBool("yes")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		query := store.QuotaQuery{All: all, Service: strings.TrimSpace(mustString(cmd, "service"))}
		if err := query.Validate(); err != nil {
			return err
		}
		if query.All && !yes && !dryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		cfg, err := currentConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		matched, err := db.CountQuotaStates(cmd.Context(), query)
		if err != nil {
			return err
		}
		if dryRun {
			return writeQuotaResetResult(format, cmd.OutOrStdout(), matched, 0, true)
		}

		deleted, err := db.ResetQuotaStates(cmd.Context(), query)
		if err != nil {
			return err
		}
		return writeQuotaResetResult(format, cmd.OutOrStdout(), matched, deleted, false)
	},
}

func quotaRows(entries []store.QuotaEntry, cfg *config.Config) []output.QuotaRow {
	rows := make([]output.QuotaRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, output.QuotaRow{
			Service:   entry.Service,
			HourlyCap: cfg.Quota.HourlyCap,
			State:     entry.State,
			UpdatedAt: entry.UpdatedAt,
		})
	}
	return rows
}

func writeQuotaResetResult(format output.Format, w io.Writer, matched int, deleted int64, dryRun bool) error {
	result := map[string]any{
		"matched": matched,
		"deleted": deleted,
		"dry_run": dryRun,
	}

	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	line := fmt.Sprintf("Deleted %d/%d quota entr(ies)", deleted, matched)
	if dryRun {
		line = fmt.Sprintf("Would delete %d quota entr(ies)", matched)
	}
	_, err := fmt.Fprint(w, ascii.DrawBox(strings.Join([]string{"Quota Reset", "", line}, "\n"), 0))
	return err
}

func mustString(cmd *cobra.Command, name string) string {
	value, _ := cmd.Flags().GetString(name)
	return value
}

func init() {
	quotaShowCmd.Flags().String("service", "", "Show a single service (default all)")
	addOutputFlags(quotaShowCmd)

	quotaResetCmd.Flags().Bool("all", false, "Reset all services")
	quotaResetCmd.Flags().String("service", "", "Reset a single service (exact match)")
	quotaResetCmd.Flags().Bool("yes", false, "Confirm destructive reset")
	quotaResetCmd.Flags().Bool("dry-run", false, "Show what would be deleted")
	quotaResetCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json")

	quotaCmd.AddCommand(quotaShowCmd)
	quotaCmd.AddCommand(quotaResetCmd)
	rootCmd.AddCommand(quotaCmd)
}
