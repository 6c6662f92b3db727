package reconcile

import (
	"strings"
	"time"
)

// dateLayouts are tried in order. Partner rosters disagree on date shapes;
// anything unparseable is discarded rather than failing the row.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"2006/01/02",
	"Jan 2, 2006",
}

// parseDate parses a roster date defensively. ok is false when no layout
// matches; callers drop the field in that case.
func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
