package docs

import (
	"crypto/sha256"
	"encoding/hex"
)

// DigestLen is the length of a digest string (hex encoded SHA-256).
const DigestLen = sha256.Size * 2

// Digest returns the lowercase hex SHA-256 of b.
// Digests are the unit of staleness detection: equal digests mean the cached
// chunks still describe the remote content.
func Digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// DigestString is Digest for string content.
func DigestString(s string) string {
	return Digest([]byte(s))
}
