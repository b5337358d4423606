package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/ohcupload/ohcupload/internal/config"
	"github.com/ohcupload/ohcupload/internal/core/store"
	"github.com/ohcupload/ohcupload/internal/observability"
	"github.com/ohcupload/ohcupload/internal/statusfile"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last run and the persisted quota",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := currentConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		var record *statusfile.Record
		if strings.TrimSpace(cfg.StatusFile) != "" {
			file, err := statusfile.Open(cfg.StatusFile, observability.CLILogger)
			if file != nil {
				r := file.Record()
				record = &r
			} else if err != nil {
				return err
			}
		}

		var entries []store.QuotaEntry
		if cfg.Store.Enabled {
			db, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close() // nolint:errcheck // best-effort cleanup

			entries, err = db.ListQuotaStates(cmd.Context(), store.QuotaQuery{All: true})
			if err != nil {
				return err
			}
		}

		return renderStatus(cmd.OutOrStdout(), cfg, record, entries)
	},
}

func renderStatus(w io.Writer, cfg *config.Config, record *statusfile.Record, entries []store.QuotaEntry) error {
	lines := []string{"ohcupload status", ""}

	verdict := "valid"
	if err := config.Validate(cfg); err != nil {
		verdict = err.Error()
	}
	lines = append(lines,
		"Handshakes: "+cfg.HandshakesDir,
		"Policy:     "+cfg.Policy,
		"Config:     "+verdict,
		"",
	)

	switch {
	case record == nil:
		lines = append(lines, "Last run:   (status file disabled)")
	case record.LastRunID == "":
		lines = append(lines, "Last run:   never")
	default:
		lastRun := fmt.Sprintf("Last run:   %s (%s)", record.LastRunAt.UTC().Format(time.RFC3339), record.LastRunID)
		lines = append(lines, lastRun, fmt.Sprintf("Accepted:   %d (total %d over %d runs)", record.LastAccepted, record.TotalAccepted, record.TotalRuns))
		if record.LastAbortReason != "" {
			lines = append(lines, "Aborted:    "+record.LastAbortReason)
		}
	}
	lines = append(lines, "")

	if !cfg.Store.Enabled {
		lines = append(lines, "Quota:      (ledger disabled)")
	} else if len(entries) == 0 {
		lines = append(lines, "Quota:      (no stored quota state)")
	}
	for _, entry := range entries {
		lines = append(lines, fmt.Sprintf("Quota:      %s %d/%d since %s", entry.Service,
			entry.State.UploadsThisWindow, cfg.Quota.HourlyCap, entry.State.WindowStart.UTC().Format(time.RFC3339)))
		if entry.State.CooldownActive {
			lines = append(lines, "            throttled, cooling down")
		}
	}

	_, err := fmt.Fprint(w, ascii.DrawBox(strings.Join(lines, "\n"), 0))
	return err
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
