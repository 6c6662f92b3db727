package reconcile

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Record is one loosely structured external row: source field names vary by
// partner, values are raw strings.
type Record map[string]string

// Logical fields the engine resolves from a record.
const (
	FieldPlanID       = "plan_id"
	FieldFirstName    = "first_name"
	FieldLastName     = "last_name"
	FieldPhone        = "phone"
	FieldDateOfBirth  = "date_of_birth"
	FieldTrackingRef  = "tracking_ref"
	FieldTestType     = "test_type"
	FieldKitCompleted = "kit_completed"
)

//go:embed aliases.yaml
var aliasesYAML []byte

// aliasTable maps each logical field to its prioritized source-column
// aliases, loaded once from the embedded table.
var aliasTable = mustLoadAliases()

func mustLoadAliases() map[string][]string {
	table := make(map[string][]string)
	if err := yaml.Unmarshal(aliasesYAML, &table); err != nil {
		panic(fmt.Sprintf("reconcile: embedded alias table is invalid: %v", err))
	}
	return table
}

// resolve returns the first non-empty value among the field's aliases.
// Source column names are compared case-insensitively with surrounding
// whitespace ignored.
func resolve(rec Record, field string) string {
	aliases, ok := aliasTable[field]
	if !ok {
		return ""
	}

	normalized := make(map[string]string, len(rec))
	for k, v := range rec {
		normalized[normalizeColumn(k)] = strings.TrimSpace(v)
	}

	for _, alias := range aliases {
		if v := normalized[alias]; v != "" {
			return v
		}
	}
	return ""
}

func normalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}
