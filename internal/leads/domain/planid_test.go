package domain

import (
	"strings"
	"testing"
)

func TestIsValidPlanID(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"1A2B3C4D5E6", true},
		{"9ZZZZZZZZZZ", true},
		{"12345678923", true},
		// Partner-issued identifiers are opaque: any 11 printable
		// characters, not just the synthetic-generation alphabet.
		{"AB2C3D4E5F6", true},
		{"0A2B3C4D5E6", true},
		{"1A2B3C4D5EO", true},
		{"1a2b3c4d5e6", true},
		{"1A2B3C4D5E", false}, // too short
		{"1A2B3C4D5E67", false},
		{"1A2B3C 4D5E", false}, // embedded whitespace
		{"", false},
	}

	for _, tc := range cases {
		if got := IsValidPlanID(tc.id); got != tc.want {
			t.Errorf("IsValidPlanID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestNormalizePlanID(t *testing.T) {
	if got := NormalizePlanID("  1A2B3C4D5E6\n"); got != "1A2B3C4D5E6" {
		t.Errorf("NormalizePlanID trimmed to %q", got)
	}
	// Matching is case-sensitive; normalization must not fold case.
	if got := NormalizePlanID("1a2b3c4d5e6"); got != "1a2b3c4d5e6" {
		t.Errorf("NormalizePlanID changed case: %q", got)
	}
}

func TestGeneratePlanID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		id, err := GeneratePlanID()
		if err != nil {
			t.Fatalf("GeneratePlanID: %v", err)
		}
		if !IsValidPlanID(id) {
			t.Fatalf("generated id %q fails its own shape check", id)
		}
		// Only generated ids are held to the unambiguous alphabet.
		if id[0] < '1' || id[0] > '9' {
			t.Fatalf("generated id %q must lead with a digit 1-9", id)
		}
		if strings.ContainsAny(id[1:], "ILO01") {
			t.Fatalf("generated id %q contains ambiguous characters", id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) < 200 {
		t.Errorf("expected 200 distinct ids, got %d", len(seen))
	}
}
