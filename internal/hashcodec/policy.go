package hashcodec

import "github.com/fslcore/fsl/internal/corecontext"

// Policy governs which hash algorithm is used for newly-inserted content.
// Existing content is always accepted under either family, disambiguated
// by digest length (40 hex chars = SHA1, 64 = SHA3-256).
type Policy int

const (
	// PolicySHA1Only mints SHA1 hashes for all new content.
	PolicySHA1Only Policy = iota
	// PolicyAuto prefers SHA3-256 unless the repository already contains
	// SHA1 content, in which case it keeps using SHA1 for continuity.
	PolicyAuto
	// PolicySHA3Preferred mints SHA3-256 but still accepts SHA1 lookups.
	PolicySHA3Preferred
	// PolicySHA3Only mints SHA3-256 for all new content. Existing SHA1
	// content stays resolvable. The policy only selects the minting
	// family; SHA1 hashes are not rejected on insert.
	PolicySHA3Only
	// PolicyShunSHA1 mints SHA3-256 like PolicySHA3Only. SHA1 hashes are
	// not treated as shunned under it.
	PolicyShunSHA1
)

func (p Policy) String() string {
	switch p {
	case PolicySHA1Only:
		return "sha1-only"
	case PolicyAuto:
		return "auto"
	case PolicySHA3Preferred:
		return "sha3-preferred"
	case PolicySHA3Only:
		return "sha3-only"
	case PolicyShunSHA1:
		return "shun-sha1"
	default:
		return "unknown"
	}
}

// ParsePolicy converts a persisted hash-policy config string (§6.7) into a
// Policy value.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "sha1-only":
		return PolicySHA1Only, nil
	case "auto", "":
		return PolicyAuto, nil
	case "sha3-preferred":
		return PolicySHA3Preferred, nil
	case "sha3-only":
		return PolicySHA3Only, nil
	case "shun-sha1":
		return PolicyShunSHA1, nil
	default:
		return PolicyAuto, corecontext.New(corecontext.KindMisuse, "unknown hash-policy: "+s)
	}
}

// Family identifies which hash algorithm a digest belongs to.
type Family int

const (
	FamilyUnknown Family = iota
	FamilySHA1
	FamilySHA3256
)

// FamilyOfHexLen classifies a hash string by its hex-encoded length, per
// §4.1: 40 chars = SHA1, 64 chars = SHA3-256.
func FamilyOfHexLen(hexHash string) Family {
	switch len(hexHash) {
	case 40:
		return FamilySHA1
	case 64:
		return FamilySHA3256
	default:
		return FamilyUnknown
	}
}

// NewHashForInsert picks the algorithm to mint a hash with for newly
// inserted content under the given policy, given whether the repository
// has already seen SHA1-addressed content ("seenSHA1").
func NewHashForInsert(policy Policy, seenSHA1 bool) Family {
	switch policy {
	case PolicySHA1Only:
		return FamilySHA1
	case PolicyAuto:
		if seenSHA1 {
			return FamilySHA1
		}
		return FamilySHA3256
	case PolicySHA3Preferred, PolicySHA3Only, PolicyShunSHA1:
		return FamilySHA3256
	default:
		return FamilySHA3256
	}
}
