package output

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ohcupload/ohcupload/internal/core"
)

// TableFormatter renders results as an ASCII table, or as a Markdown
// table when Markdown is set.
type TableFormatter struct {
	Markdown bool
}

// FormatRun renders a run summary as a two-column table.
func (f *TableFormatter) FormatRun(summary *core.RunSummary) (string, error) {
	if summary == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"Run ID", summary.RunID},
		{"Status", runStatus(summary)},
		{"Candidates", summary.Candidates},
		{"Uploaded", summary.Accepted},
		{"Skipped", summary.Skipped},
		{"Attempted", summary.Attempted},
		{"Last outcome", outcomeLabel(summary.LastOutcome)},
		{"Duration", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Second).String()},
	})

	return f.render(t), nil
}

// FormatQuota renders quota rows with remaining capacity.
func (f *TableFormatter) FormatQuota(rows []QuotaRow) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Service", "Used", "Window Start", "Last Submission", "Cooldown"})

	for _, row := range rows {
		used := fmt.Sprintf("%d", row.State.UploadsThisWindow)
		if row.HourlyCap > 0 {
			used = fmt.Sprintf("%d/%d", row.State.UploadsThisWindow, row.HourlyCap)
		}
		cooldown := "no"
		if row.State.CooldownActive {
			cooldown = "yes"
		}
		t.AppendRow(table.Row{
			row.Service,
			used,
			formatTime(row.State.WindowStart),
			formatTime(row.State.LastSubmissionAt),
			cooldown,
		})
	}

	if len(rows) == 0 {
		t.AppendFooter(table.Row{"", "no quota state recorded", "", "", ""})
	}

	return f.render(t), nil
}

func (f *TableFormatter) render(t table.Writer) string {
	if f.Markdown {
		return t.RenderMarkdown()
	}
	return t.Render()
}
