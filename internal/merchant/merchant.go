// Package merchant canonicalizes merchant strings into the stable keys used
// by the rule store and, after hashing, the community corpus.
package merchant

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// MaxLength bounds the length of a normalized merchant string.
const MaxLength = 100

// Normalize lower-cases s, drops every character outside [a-z0-9 ],
// collapses whitespace runs and truncates the result to MaxLength.
// Any Unicode whitespace separates words.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pendingSpace := false
	for _, r := range strings.ToLower(s) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}

	out := b.String()
	if len(out) > MaxLength {
		out = strings.TrimRight(out[:MaxLength], " ")
	}
	return out
}

// Hash returns the hex SHA-256 of an already normalized merchant string.
func Hash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Key normalizes raw and returns both the normalized form and its hash.
func Key(raw string) (normalized, hash string) {
	normalized = Normalize(raw)
	return normalized, Hash(normalized)
}

// IsHash reports whether s has the shape of a Hash result: 64 lower-case
// hex digits.
func IsHash(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}
