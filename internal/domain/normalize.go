package domain

import "strings"

// NormalizeHumanName trims leading/trailing whitespace and collapses internal whitespace runs.
// It is used for user name normalization.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeLocation trims surrounding whitespace and collapses internal
// whitespace runs so that duplicate detection is not fooled by spacing.
func NormalizeLocation(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
