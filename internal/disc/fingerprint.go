package disc

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives a stable identifier for a disc from its table of
// contents. It is used only for queue deduplication, never for metadata
// lookups.
func Fingerprint(toc TOC) string {
	sum := sha256.Sum256([]byte(toc.CanonicalString()))
	return hex.EncodeToString(sum[:])
}
