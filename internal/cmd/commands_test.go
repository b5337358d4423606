package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/ohcupload/ohcupload/internal/config"
	"github.com/ohcupload/ohcupload/internal/core"
	"github.com/ohcupload/ohcupload/internal/core/engine"
	"github.com/ohcupload/ohcupload/internal/core/store"
	"github.com/ohcupload/ohcupload/internal/output"
	"github.com/ohcupload/ohcupload/internal/statusfile"
)

func newOutputCmd(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addOutputFlags(cmd)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	return cmd, buf
}

func renderRun(summary *core.RunSummary) func(output.Formatter) (string, error) {
	return func(f output.Formatter) (string, error) {
		return f.FormatRun(summary)
	}
}

func TestWriteOutputStdout(t *testing.T) {
	cmd, buf := newOutputCmd(t)
	require.NoError(t, cmd.Flags().Set("output-format", "json"))

	require.NoError(t, writeOutput(cmd, "run", renderRun(&core.RunSummary{RunID: "abc", Accepted: 2})))
	require.Contains(t, buf.String(), `"run_id": "abc"`)
	require.Contains(t, buf.String(), `"accepted": 2`)
}

func TestWriteOutputOutDir(t *testing.T) {
	cmd, buf := newOutputCmd(t)
	dir := filepath.Join(t.TempDir(), "reports")
	require.NoError(t, cmd.Flags().Set("out-dir", dir))
	require.NoError(t, cmd.Flags().Set("output-format", "markdown"))

	require.NoError(t, writeOutput(cmd, "Run ABC", renderRun(&core.RunSummary{RunID: "abc"})))
	require.Empty(t, buf.String())

	data, err := os.ReadFile(filepath.Join(dir, "run-abc.md"))
	require.NoError(t, err)
	require.Contains(t, string(data), "abc")
}

func TestWriteOutputRejectsBothTargets(t *testing.T) {
	cmd, _ := newOutputCmd(t)
	require.NoError(t, cmd.Flags().Set("out", "a.txt"))
	require.NoError(t, cmd.Flags().Set("out-dir", "b"))

	err := writeOutput(cmd, "run", renderRun(&core.RunSummary{}))
	require.ErrorContains(t, err, "mutually exclusive")
}

func TestSanitizeFilename(t *testing.T) {
	require.Equal(t, "run-1234", sanitizeFilename(" Run 1234 "))
	require.Equal(t, "output", sanitizeFilename("///"))
}

func TestExitCodeFor(t *testing.T) {
	require.Equal(t, foundry.ExitConfigInvalid, exitCodeFor(engine.ErrInactive))
	require.Equal(t, foundry.ExitConfigInvalid, exitCodeFor(fmt.Errorf("load: %w", &config.ValidationError{})))
	require.Equal(t, foundry.ExitFileNotFound, exitCodeFor(fmt.Errorf("open: %w", os.ErrNotExist)))
	require.Equal(t, foundry.ExitFailure, exitCodeFor(errors.New("boom")))
}

func TestWithRunOverrides(t *testing.T) {
	cmd := &cobra.Command{Use: "run"}
	cmd.Flags().String("dir", "", "")
	cmd.Flags().String("policy", "", "")
	require.NoError(t, cmd.Flags().Set("dir", " /tmp/captures "))
	require.NoError(t, cmd.Flags().Set("policy", "SKIP"))

	base := &config.Config{HandshakesDir: "/root/handshakes", Policy: "abort"}
	got := withRunOverrides(cmd, base)
	require.Equal(t, "/tmp/captures", got.HandshakesDir)
	require.Equal(t, "skip", got.Policy)
	require.Equal(t, "/root/handshakes", base.HandshakesDir)
}

func TestConfigInitWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ohcupload", "config.yaml")
	buf := &bytes.Buffer{}
	configInitCmd.SetOut(buf)
	require.NoError(t, configInitCmd.Flags().Set("path", path))
	t.Cleanup(func() {
		_ = configInitCmd.Flags().Set("path", "")
		_ = configInitCmd.Flags().Set("force", "false")
		configInitCmd.SetOut(nil)
	})

	require.NoError(t, configInitCmd.RunE(configInitCmd, nil))
	require.Contains(t, buf.String(), "Wrote "+path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "handshakes_dir")

	require.ErrorContains(t, configInitCmd.RunE(configInitCmd, nil), "already exists")

	require.NoError(t, configInitCmd.Flags().Set("force", "true"))
	require.NoError(t, configInitCmd.RunE(configInitCmd, nil))
}

func TestRenderStatus(t *testing.T) {
	cfg, err := config.Decode(config.Defaults())
	require.NoError(t, err)
	cfg.Credentials.APIKey = "sk_test"
	cfg.Credentials.Email = "me@example.com"

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	record := &statusfile.Record{LastRunID: "run-1", LastRunAt: at, LastAccepted: 2, TotalAccepted: 7, TotalRuns: 3}
	entries := []store.QuotaEntry{{
		Service: "api.onlinehashcrack.com",
		State:   core.QuotaState{UploadsThisWindow: 4, WindowStart: at, CooldownActive: true},
	}}

	var buf bytes.Buffer
	require.NoError(t, renderStatus(&buf, cfg, record, entries))
	out := buf.String()
	require.Contains(t, out, "Config:     valid")
	require.Contains(t, out, "run-1")
	require.Contains(t, out, "total 7 over 3 runs")
	require.Contains(t, out, "api.onlinehashcrack.com 4/30")
	require.Contains(t, out, "cooling down")
}

func TestRenderStatusNeverRun(t *testing.T) {
	cfg, err := config.Decode(config.Defaults())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, renderStatus(&buf, cfg, &statusfile.Record{}, nil))
	require.Contains(t, buf.String(), "Last run:   never")
	require.Contains(t, buf.String(), "credentials.email")
	require.Contains(t, buf.String(), "no stored quota state")
}

func TestWriteQuotaResetResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeQuotaResetResult(output.FormatJSON, &buf, 3, 2, false))
	require.Contains(t, buf.String(), `"deleted": 2`)

	buf.Reset()
	require.NoError(t, writeQuotaResetResult(output.FormatTable, &buf, 3, 0, true))
	require.Contains(t, buf.String(), "Would delete 3 quota entr(ies)")
}
