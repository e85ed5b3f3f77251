// Package checksum fingerprints note content.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// String hashes the exact UTF-8 bytes of s, which are the bytes written to disk.
func String(s string) string {
	return Sum([]byte(s))
}
