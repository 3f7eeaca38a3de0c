package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// CalculateSHA256 computes the hex SHA-256 digest of raw page content.
func CalculateSHA256(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// CalculateStringSHA256 computes the SHA-256 hash of a string.
func CalculateStringSHA256(content string) string {
	return CalculateSHA256([]byte(content))
}
