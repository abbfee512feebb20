package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashOwnerKey returns the storage directory for an owner. Owner ids come
// from a request header, so they are hashed rather than used as path parts;
// surrounding whitespace does not change the key.
func HashOwnerKey(ownerID string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(ownerID)))
	return hex.EncodeToString(sum[:])
}
