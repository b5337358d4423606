package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/ohcupload/ohcupload/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// QuotaRow is one quota ledger entry prepared for display.
type QuotaRow struct {
	Service   string          `json:"service"`
	HourlyCap int             `json:"hourly_cap"`
	State     core.QuotaState `json:"state"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
}

// Formatter renders run summaries and quota state.
type Formatter interface {
	FormatRun(summary *core.RunSummary) (string, error)
	FormatQuota(rows []QuotaRow) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &TableFormatter{Markdown: true}
	default:
		return &TableFormatter{}
	}
}

func runStatus(summary *core.RunSummary) string {
	if summary.Aborted {
		if summary.AbortReason != "" {
			return "aborted (" + summary.AbortReason + ")"
		}
		return "aborted"
	}
	return "completed"
}

func outcomeLabel(outcome *core.Outcome) string {
	if outcome == nil {
		return "-"
	}
	label := string(outcome.Kind)
	if outcome.StatusCode != 0 {
		label += fmt.Sprintf(" (%d)", outcome.StatusCode)
	}
	if outcome.Message != "" {
		label += ": " + outcome.Message
	}
	return label
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
