package regulator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"aeroledger/pkg/platform/canonical"
)

// IdempotencyKey derives the header value for a mutating regulator call:
// tag + ":" + hex(SHA-256(tag + "|" + canonical(parts))). Canonicalization
// makes the key independent of map iteration order, so retries of the same
// logical request always carry the same key.
func IdempotencyKey(tag string, parts map[string]any) (string, error) {
	body, err := canonical.Canonicalize(parts)
	if err != nil {
		return "", fmt.Errorf("idempotency key for %s: %w", tag, err)
	}
	sum := sha256.Sum256(append([]byte(tag+"|"), body...))
	return tag + ":" + hex.EncodeToString(sum[:]), nil
}
