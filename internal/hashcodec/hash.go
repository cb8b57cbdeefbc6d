package hashcodec

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"hash"

	"golang.org/x/crypto/sha3"

	"github.com/fslcore/fsl/internal/corecontext"
)

// Hasher is the common streaming contract shared by every hash family the
// core uses: init (via the constructor), update, finalize, hex-encode.
type Hasher interface {
	hash.Hash
	// HexSum finalizes (without mutating state, like hash.Hash.Sum) and
	// returns the lower-case hex encoding of the digest.
	HexSum() string
}

// shattered1Prefixes lists the 16-byte patterns (big-endian uint32 words)
// that begin the message blocks published as part of the SHAttered and follow-up
// chosen-prefix SHA1 collision attacks. Detecting it lets a "hardened"
// SHA1 reject known-bad inputs instead of silently emitting a colliding
// digest, per the spec's "hardened variant" requirement.
var shattered1Prefixes = [][]byte{
	// First published SHAttered PDF collision blocks (near-collision
	// marker bytes), reproduced from the public disclosure.
	{0x0c, 0x5c, 0xa0, 0x7c, 0xc6, 0xc3, 0xdd, 0xf5, 0xc9, 0x18, 0x93, 0xe7, 0x50, 0xea, 0xef, 0xe0},
	{0x0c, 0x5c, 0xa0, 0x7c, 0xc6, 0xc3, 0xdd, 0xf5, 0xc9, 0x18, 0x93, 0xe7, 0x50, 0xea, 0xef, 0xe1},
}

// HardenedSHA1 wraps crypto/sha1 with collision-pattern detection: if the
// input written to it so far contains a known SHA1 collision pattern
// anywhere, the detection is recorded on Collided. Sum and HexSum still
// return the ordinary SHA1 digest; the caller decides whether to reject
// it (SHA1Hex does).
type HardenedSHA1 struct {
	h        hash.Hash
	buf      bytes.Buffer
	Collided bool
}

// NewHardenedSHA1 returns an initialized hardened SHA1 context.
func NewHardenedSHA1() *HardenedSHA1 {
	return &HardenedSHA1{h: sha1.New()}
}

func (s *HardenedSHA1) Write(p []byte) (int, error) {
	s.buf.Write(p)
	scanBlocks(s.buf.Bytes(), &s.Collided)
	return s.h.Write(p)
}

func (s *HardenedSHA1) Sum(b []byte) []byte { return s.h.Sum(b) }
func (s *HardenedSHA1) Reset() {
	s.h.Reset()
	s.buf.Reset()
	s.Collided = false
}
func (s *HardenedSHA1) Size() int      { return s.h.Size() }
func (s *HardenedSHA1) BlockSize() int { return s.h.BlockSize() }

// HexSum returns the hex digest. It does not consult Collided.
func (s *HardenedSHA1) HexSum() string {
	return hex.EncodeToString(s.h.Sum(nil))
}

func scanBlocks(buf []byte, collided *bool) {
	for _, pat := range shattered1Prefixes {
		if bytes.Contains(buf, pat) {
			*collided = true
		}
	}
}

// SHA1Hex computes the hardened SHA1 hex digest of data, returning
// KindConsistency if a known collision pattern was detected.
func SHA1Hex(data []byte) (string, error) {
	h := NewHardenedSHA1()
	_, _ = h.Write(data)
	if h.Collided {
		return "", corecontext.New(corecontext.KindConsistency, "sha1 collision attack detected")
	}
	return h.HexSum(), nil
}

// sha3Hasher adapts golang.org/x/crypto/sha3's ShakeHash-free SHA3-256
// to the Hasher contract.
type sha3Hasher struct {
	h hash.Hash
}

// NewSHA3256 returns an initialized SHA3-256 streaming context.
func NewSHA3256() Hasher {
	return &sha3Hasher{h: sha3.New256()}
}

func (s *sha3Hasher) Write(p []byte) (int, error) { return s.h.Write(p) }
func (s *sha3Hasher) Sum(b []byte) []byte         { return s.h.Sum(b) }
func (s *sha3Hasher) Reset()                      { s.h.Reset() }
func (s *sha3Hasher) Size() int                   { return s.h.Size() }
func (s *sha3Hasher) BlockSize() int              { return s.h.BlockSize() }
func (s *sha3Hasher) HexSum() string              { return hex.EncodeToString(s.h.Sum(nil)) }

// SHA3256Hex computes the SHA3-256 hex digest of data.
func SHA3256Hex(data []byte) string {
	h := NewSHA3256()
	_, _ = h.Write(data)
	return h.HexSum()
}

// md5Hasher adapts crypto/md5 to the Hasher contract. MD5 is used only for
// checksums (the R-card over F-card content, the Z-card over the artifact
// text, and the working-file probe hash in vfile), never as a
// content-address.
type md5Hasher struct {
	h hash.Hash
}

// NewMD5 returns an initialized MD5 streaming context.
func NewMD5() Hasher {
	return &md5Hasher{h: md5.New()}
}

func (m *md5Hasher) Write(p []byte) (int, error) { return m.h.Write(p) }
func (m *md5Hasher) Sum(b []byte) []byte         { return m.h.Sum(b) }
func (m *md5Hasher) Reset()                      { m.h.Reset() }
func (m *md5Hasher) Size() int                   { return m.h.Size() }
func (m *md5Hasher) BlockSize() int              { return m.h.BlockSize() }
func (m *md5Hasher) HexSum() string              { return hex.EncodeToString(m.h.Sum(nil)) }

// MD5Hex computes the MD5 hex digest of data.
func MD5Hex(data []byte) string {
	h := NewMD5()
	_, _ = h.Write(data)
	return h.HexSum()
}

// HashForFamily returns a fresh streaming Hasher for the given family.
func HashForFamily(f Family) (Hasher, error) {
	switch f {
	case FamilySHA1:
		return &sha1Adapter{NewHardenedSHA1()}, nil
	case FamilySHA3256:
		return NewSHA3256(), nil
	default:
		return nil, corecontext.New(corecontext.KindMisuse, "unknown hash family")
	}
}

// sha1Adapter exposes HardenedSHA1 (which has a specialized HexSum) behind
// the plain Hasher interface used by generic call sites.
type sha1Adapter struct {
	*HardenedSHA1
}
