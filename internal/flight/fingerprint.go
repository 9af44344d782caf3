package flight

import (
	"strconv"
	"strings"
	"unicode/utf16"

	"aeroledger/pkg/platform/canonical"
)

// Fingerprint derives the human-checkable integrity tag stamped on a stage
// at creation: "ANAC-DBE-" plus the uppercase hex of a folded 32-bit hash
// over the canonical JSON of the submitted data. It is a display checksum
// for paper cross-checks, deliberately weak and distinct from the SHA-256
// audit chain.
func Fingerprint(payload any) (string, error) {
	body, err := canonical.Canonicalize(payload)
	if err != nil {
		return "", err
	}
	var h int32
	for _, unit := range utf16.Encode([]rune(string(body))) {
		h = (h << 5) - h + int32(unit)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return "ANAC-DBE-" + strings.ToUpper(strconv.FormatInt(abs, 16)), nil
}
