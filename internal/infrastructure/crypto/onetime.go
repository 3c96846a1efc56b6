package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashPass digests a one-time pass for storage and indexed lookup. The
// plaintext is never stored.
func HashPass(pass string) string {
	sum := sha256.Sum256([]byte(pass))
	return hex.EncodeToString(sum[:])
}
