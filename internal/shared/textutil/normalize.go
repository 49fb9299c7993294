// Package textutil holds small text helpers for comparing free-form phrases.
package textutil

import "strings"

// NormalizeWhitespace collapses runs of whitespace to single spaces.
func NormalizeWhitespace(value string) string {
	if value == "" {
		return ""
	}
	return strings.Join(strings.Fields(value), " ")
}

// NormalizePhrase lower-cases value and collapses its whitespace.
func NormalizePhrase(value string) string {
	return NormalizeWhitespace(strings.ToLower(value))
}
