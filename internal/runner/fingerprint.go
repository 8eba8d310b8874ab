package runner

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint computes the content hash of a resolved dependency set.
// The requirement order is part of the identity: dependency lists are
// ordered sequences, not sets.
func Fingerprint(requirements []string) string {
	h := sha256.Sum256([]byte(strings.Join(requirements, "\n")))
	return hex.EncodeToString(h[:])
}
