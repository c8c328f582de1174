// utils/labels.go
package utils

import "strings"

// NormalizeLabel trims a categorical cell and collapses inner runs of whitespace,
// so "New  Delhi " and "New Delhi" land in the same category. Case is preserved.
func NormalizeLabel(label string) string {
	return strings.Join(strings.Fields(label), " ")
}

// FoldLabel is NormalizeLabel plus lower-casing, for lookups that ignore case.
func FoldLabel(label string) string {
	return strings.ToLower(NormalizeLabel(label))
}
