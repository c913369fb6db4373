package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashEmail derives the subscriber hash for an email address.
//
// The address is trimmed and lowercased before hashing so that the same
// mailbox always maps to the same namespace. The hex output contains no
// ':' or '_', which keeps it safe to use verbatim as a storage key prefix.
func HashEmail(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
