package reconcile

import "testing"

func TestResolveWalksAliasesInOrder(t *testing.T) {
	rec := Record{
		"memberid": "1A2B3C4D5E6",
		"plan":     "9Z8Y7X6W5V4",
	}
	// "plan" outranks "memberid" in the alias list.
	if got := resolve(rec, FieldPlanID); got != "9Z8Y7X6W5V4" {
		t.Errorf("resolve plan_id = %q, want the higher-priority alias value", got)
	}
}

func TestResolveNormalizesColumnNames(t *testing.T) {
	cases := []struct {
		column string
		field  string
		want   string
	}{
		{"First Name", FieldFirstName, "Ada"},
		{"FIRST-NAME", FieldFirstName, "Ada"},
		{"  first_name  ", FieldFirstName, "Ada"},
		{"Tracking Number", FieldTrackingRef, "Ada"},
	}

	for _, tc := range cases {
		rec := Record{tc.column: "Ada"}
		if got := resolve(rec, tc.field); got != tc.want {
			t.Errorf("resolve(%q, %s) = %q, want %q", tc.column, tc.field, got, tc.want)
		}
	}
}

func TestResolveSkipsEmptyValues(t *testing.T) {
	rec := Record{
		"phone":        "   ",
		"phone_number": "303-555-1234",
	}
	if got := resolve(rec, FieldPhone); got != "303-555-1234" {
		t.Errorf("resolve phone = %q, blank values should be skipped", got)
	}
}

func TestResolveUnknownField(t *testing.T) {
	if got := resolve(Record{"x": "y"}, "not_a_field"); got != "" {
		t.Errorf("resolve unknown field = %q, want empty", got)
	}
}

func TestIsCompletionMarker(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{"", false},
		{"2026-01-15", true},
		{"01/15/2026", true},
		{"yes", true},
		{"Y", true},
		{"TRUE", true},
		{"completed", true},
		{"x", true},
		{"no", false},
		{"false", false},
		{"0", false},
		{"pending", false},
	}
	for _, tc := range cases {
		if got := isCompletionMarker(tc.raw); got != tc.want {
			t.Errorf("isCompletionMarker(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
