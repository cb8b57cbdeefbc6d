package hashcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSHA1HexKnownVector(t *testing.T) {
	h, err := SHA1Hex([]byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, "f572d396fae9206628714fb2ce00f72e94f2258f", h)
}

func TestMD5HexEmptyStream(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", MD5Hex(nil))
}

func TestSHA3256HexIsStable(t *testing.T) {
	a := SHA3256Hex([]byte("abc"))
	b := SHA3256Hex([]byte("abc"))
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestHardenedSHA1DetectsKnownCollisionPattern(t *testing.T) {
	h := NewHardenedSHA1()
	_, _ = h.Write(shattered1Prefixes[0])
	assert.True(t, h.Collided)
}

func TestFossilizeRoundTrip(t *testing.T) {
	cases := []string{
		"plain text",
		"has a\\backslash",
		"has\ttabs\nand\rnewlines",
		"has\x01control\x7fbytes",
		"",
		"has\x00nul",
	}
	for _, s := range cases {
		got := Defossilize(Fossilize(s))
		assert.Equal(t, s, got, "round trip for %q", s)
	}
}

func TestFossilizeLeavesPlainTextUnchanged(t *testing.T) {
	assert.Equal(t, "README.md", Fossilize("README.md"))
}

func TestZlibCompressRoundTrip(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog, repeated. " +
		"the quick brown fox jumps over the lazy dog, repeated.")
	compressed, err := CompressWithPrefix(content)
	require.NoError(t, err)
	assert.True(t, IsCompressed(compressed))

	out, err := DecompressWithPrefix(compressed)
	require.NoError(t, err)
	assert.Equal(t, content, out)
}

func TestIsCompressedRejectsRawBytes(t *testing.T) {
	assert.False(t, IsCompressed([]byte("not compressed at all")))
}

func TestFamilyOfHexLen(t *testing.T) {
	assert.Equal(t, FamilySHA1, FamilyOfHexLen("2aae6c35c94fcfb415dbe95f408b9ce91ee846ed"))
	assert.Equal(t, FamilySHA3256, FamilyOfHexLen(SHA3256Hex([]byte("x"))))
	assert.Equal(t, FamilyUnknown, FamilyOfHexLen("short"))
}

func TestNewHashForInsert(t *testing.T) {
	assert.Equal(t, FamilySHA1, NewHashForInsert(PolicySHA1Only, false))
	assert.Equal(t, FamilySHA1, NewHashForInsert(PolicyAuto, true))
	assert.Equal(t, FamilySHA3256, NewHashForInsert(PolicyAuto, false))
	assert.Equal(t, FamilySHA3256, NewHashForInsert(PolicySHA3Only, true))
}

func TestPrefixRange(t *testing.T) {
	lo, hi := PrefixRange("beef")
	assert.Equal(t, "beef", lo)
	assert.Equal(t, "bef", hi)

	lo, hi = PrefixRange("ffff")
	assert.Equal(t, "ffff", lo)
	assert.Equal(t, "", hi)
}

func TestIsValidPrefix(t *testing.T) {
	assert.True(t, IsValidPrefix("beef"))
	assert.False(t, IsValidPrefix("xyz"))
	assert.False(t, IsValidPrefix("ab"))
}
