// Package fingerprint derives the cache key for a source locator.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Length is the number of hex characters kept from the digest.
const Length = 16

// Generate returns the first Length hex characters of sha256(locator).
// The locator is hashed as given; callers normalise it beforehand if needed.
func Generate(locator string) string {
	sum := sha256.Sum256([]byte(locator))
	return hex.EncodeToString(sum[:])[:Length]
}

// Valid reports whether s has the shape of a generated fingerprint.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
