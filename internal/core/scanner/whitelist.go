package scanner

import (
	"path/filepath"
	"strings"
)

// PatternWhitelist excludes captures whose normalized base name contains any
// normalized entry. Entries are typically SSIDs or BSSIDs; colons and case
// are ignored so "AA:BB:CC:DD:EE:FF" matches "aabbccddeeff".
type PatternWhitelist struct {
	entries []string
}

// NewPatternWhitelist normalizes the configured entries once.
func NewPatternWhitelist(entries []string) *PatternWhitelist {
	w := &PatternWhitelist{}
	for _, entry := range entries {
		if normalized := normalizeKey(entry); normalized != "" {
			w.entries = append(w.entries, normalized)
		}
	}
	return w
}

// IsExcluded implements Whitelist.
func (w *PatternWhitelist) IsExcluded(captureName string) bool {
	if w == nil || len(w.entries) == 0 {
		return false
	}

	base := strings.TrimSuffix(filepath.Base(captureName), CaptureSuffix)
	candidate := normalizeKey(base)
	for _, entry := range w.entries {
		if strings.Contains(candidate, entry) {
			return true
		}
	}
	return false
}

// Len returns the number of active entries.
func (w *PatternWhitelist) Len() int {
	if w == nil {
		return 0
	}
	return len(w.entries)
}

func normalizeKey(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	return strings.ReplaceAll(value, ":", "")
}
