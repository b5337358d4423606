package output

import (
	"encoding/json"

	"github.com/ohcupload/ohcupload/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatRun renders a run summary as JSON.
func (f *JSONFormatter) FormatRun(summary *core.RunSummary) (string, error) {
	if summary == nil {
		return "", nil
	}
	return f.marshal(summary)
}

// FormatQuota renders quota rows as a JSON array.
func (f *JSONFormatter) FormatQuota(rows []QuotaRow) (string, error) {
	if rows == nil {
		rows = []QuotaRow{}
	}
	return f.marshal(rows)
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
