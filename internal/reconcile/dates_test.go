package reconcile

import (
	"testing"
	"time"
)

func TestParseDateAcceptsKnownLayouts(t *testing.T) {
	want := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)

	cases := []string{
		"2026-01-15",
		"01/15/2026",
		"1/15/2026",
		"01-15-2026",
		"2026/01/15",
		"Jan 15, 2026",
		"  2026-01-15  ",
	}

	for _, raw := range cases {
		got, ok := parseDate(raw)
		if !ok {
			t.Errorf("parseDate(%q) failed, want success", raw)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseDate(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	cases := []string{"", "not-a-date", "15/33/2026", "2026-13-45", "tomorrow"}
	for _, raw := range cases {
		if _, ok := parseDate(raw); ok {
			t.Errorf("parseDate(%q) succeeded, want failure", raw)
		}
	}
}
