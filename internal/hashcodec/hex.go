package hashcodec

import (
	"encoding/hex"
	"strings"

	"github.com/fslcore/fsl/internal/corecontext"
)

// EncodeHex returns the lower-case hex encoding of data.
func EncodeHex(data []byte) string {
	return hex.EncodeToString(data)
}

// DecodeHex decodes a lower- or upper-case hex string into bytes.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, corecontext.Wrap(corecontext.KindSyntax, "invalid hex", err)
	}
	return b, nil
}

// IsValidPrefix reports whether prefix is a syntactically valid partial
// hash: non-empty, at least 4 hex characters, at most 64, all hex digits.
func IsValidPrefix(prefix string) bool {
	if len(prefix) < 4 || len(prefix) > 64 {
		return false
	}
	return strings.IndexFunc(prefix, func(r rune) bool {
		return !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F'))
	}) == -1
}

// PrefixRange returns the half-open [lo, hi) lexicographic string range
// that any full hash sharing the given hex prefix falls into — the
// standard trick for a prefix match on an indexed text column without a
// full table scan (§7 supplemented-feature note on partial-hash lookup).
func PrefixRange(prefix string) (lo, hi string) {
	lo = strings.ToLower(prefix)
	// hi is lo with its last hex digit incremented, carrying as needed;
	// an all-'f' prefix has no successor, so hi is returned empty and the
	// caller should treat it as "no upper bound".
	digits := []byte(lo)
	i := len(digits) - 1
	for i >= 0 {
		d := unhex(digits[i])
		if d < 15 {
			digits[i] = hexDigit(byte(d + 1))
			return lo, string(digits[:i+1])
		}
		i--
	}
	return lo, ""
}
