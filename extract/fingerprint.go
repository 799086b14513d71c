package extract

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// normalizeText collapses all runs of whitespace to single spaces and
// case-folds. Two renders that differ only in layout whitespace or casing
// normalize to the same string — the fingerprint purity invariant depends
// on this.
func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// fingerprint hashes availability plus a normalized content key.
// Availability is part of the digest so an empty page and a populated page
// with identical boilerplate text cannot collide.
func fingerprint(available bool, key string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("avail=%t;%s", available, normalizeText(key))))
	return fmt.Sprintf("%x", h)
}
