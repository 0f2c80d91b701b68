// Package checksum computes note digests used for change detection and
// optimistic concurrency.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Matches reports whether ifMatch is empty or equals the digest of data.
// Surrounding quotes (ETag form) are ignored.
func Matches(data []byte, ifMatch string) bool {
	return MatchesSum(Sum(data), ifMatch)
}

// MatchesSum is Matches for an already computed digest.
func MatchesSum(sum, ifMatch string) bool {
	ifMatch = strings.Trim(ifMatch, `"`)
	return ifMatch == "" || ifMatch == sum
}
