package domain

import (
	"crypto/rand"
	"math/big"
	"strings"
	"unicode"
)

// PlanIDLength is the fixed length of a plan identifier.
const PlanIDLength = 11

// Synthetic plan identifiers avoid visually ambiguous characters: no I, L or
// O, and no 0 or 1 past the leading digit.
const (
	planIDLeading = "123456789"
	planIDBody    = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"
)

// NormalizePlanID trims surrounding whitespace. Matching on plan identifiers
// is case-sensitive, so no case folding happens here.
func NormalizePlanID(id string) string {
	return strings.TrimSpace(id)
}

// IsValidPlanID reports whether id is a well-formed plan identifier: exactly
// 11 characters, none of them whitespace. Externally issued identifiers are
// opaque strings; the restricted alphabet above applies only to the ones
// GeneratePlanID mints.
func IsValidPlanID(id string) bool {
	if len(id) != PlanIDLength {
		return false
	}
	for _, r := range id {
		if unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// GeneratePlanID returns a synthetic 11-character plan identifier with a
// leading digit 1-9, used when reconciliation creates a lead whose source
// record carries no identifier.
func GeneratePlanID() (string, error) {
	var b strings.Builder
	b.Grow(PlanIDLength)

	c, err := pick(planIDLeading)
	if err != nil {
		return "", err
	}
	b.WriteByte(c)

	for i := 1; i < PlanIDLength; i++ {
		c, err := pick(planIDBody)
		if err != nil {
			return "", err
		}
		b.WriteByte(c)
	}

	return b.String(), nil
}

func pick(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, err
	}
	return alphabet[n.Int64()], nil
}
