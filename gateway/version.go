package gateway

import (
	"crypto/sha256"
	"encoding/hex"
)

// FingerprintFunc computes a stable version fingerprint for an agent's
// instruction text. Identical instructions always yield the same version;
// any change yields a different version, invalidating prior cache entries.
type FingerprintFunc func(instructions string) string

// Fingerprint is the default FingerprintFunc, a truncated SHA-256 content hash.
func Fingerprint(instructions string) string {
	sum := sha256.Sum256([]byte(instructions))
	return hex.EncodeToString(sum[:])[:16]
}
