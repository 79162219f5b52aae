// Package keyword matches the fixed vocabulary of the tag language
// (meta categories, boolean tokens, presence fields) case-insensitively.
package keyword

import (
	"strings"

	"golang.org/x/text/cases"
)

// Fold returns the Unicode case-folded form of s with surrounding space
// removed. A Caser is stateful, so one is made per call.
func Fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Equal reports whether a and b are equal under case folding.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}

// In reports whether s folds to any of words.
func In(s string, words ...string) bool {
	f := Fold(s)
	for _, w := range words {
		if f == Fold(w) {
			return true
		}
	}
	return false
}

// IsMetaCategory reports whether category holds structural directives
// rather than display fields.
func IsMetaCategory(category string) bool {
	return In(category, "meta", "system")
}

// IsPresenceField reports whether a meta field name controls presence.
func IsPresenceField(name string) bool {
	return In(name, "present", "visible")
}

// ParseBool reads a boolean-like token. ok is false for anything outside
// true/on/yes/1 and false/off/no/0.
func ParseBool(s string) (value, ok bool) {
	switch Fold(s) {
	case "true", "on", "yes", "1":
		return true, true
	case "false", "off", "no", "0":
		return false, true
	}
	return false, false
}
