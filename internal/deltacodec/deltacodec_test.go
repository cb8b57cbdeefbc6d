package deltacodec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateApplyRoundTrip(t *testing.T) {
	cases := []struct {
		name          string
		source, target []byte
	}{
		{"identical", []byte("hello world"), []byte("hello world")},
		{"empty-to-content", []byte(""), []byte("new content")},
		{"content-to-empty", []byte("old content"), []byte("")},
		{"append", []byte("the quick brown fox"), []byte("the quick brown fox jumps over")},
		{"prepend", []byte("jumps over the lazy dog"), []byte("the fox jumps over the lazy dog")},
		{"single-byte-change", repeatByte("abcdefghij", 100, 500, 'X')},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			delta := Create(tc.source, tc.target)
			got, err := Apply(tc.source, delta)
			require.NoError(t, err)
			assert.Equal(t, tc.target, got)

			sz, err := AppliedSize(delta)
			require.NoError(t, err)
			assert.Equal(t, uint64(len(tc.target)), sz)
		})
	}
}

// repeatByte returns (source, target) where target is source with a single
// byte flipped, matching scenario S3 from spec.md.
func repeatByte(pattern string, times int, idx int, flip byte) (source, target []byte) {
	source = bytes.Repeat([]byte(pattern), times)
	target = append([]byte(nil), source...)
	target[idx] = flip
	return source, target
}

func TestCreateProducesSmallDeltaForSingleByteChange(t *testing.T) {
	source, target := repeatByte("abcdefghij", 100, 500, 'X')
	delta := Create(source, target)
	assert.LessOrEqual(t, len(delta), len(target)/10, "delta should be <=10%% of target size")

	got, err := Apply(source, delta)
	require.NoError(t, err)
	assert.Equal(t, target, got)
}

func TestApplyRejectsBadSeparator(t *testing.T) {
	delta := []byte("5X1:hello;")
	_, err := Apply(nil, delta)
	require.Error(t, err)
}

func TestApplyRejectsInvalidOperator(t *testing.T) {
	delta := Create([]byte("source"), []byte("target"))
	// Corrupt the first command's operator byte.
	idx := bytes.IndexAny(delta, "@:")
	require.GreaterOrEqual(t, idx, 0)
	corrupt := append([]byte(nil), delta...)
	corrupt[idx] = '?'
	_, err := Apply([]byte("source"), corrupt)
	require.Error(t, err)
}

func TestApplyRejectsSizeMismatch(t *testing.T) {
	// Header declares size 3 but body inserts 5 literal bytes.
	delta := []byte("3\n5:hello0;")
	_, err := Apply(nil, delta)
	require.Error(t, err)
}

func TestApplyRejectsChecksumMismatch(t *testing.T) {
	source := []byte("source")
	target := []byte("target")
	delta := Create(source, target)
	corrupt := append([]byte(nil), delta...)
	corrupt[len(corrupt)-2] = corrupt[len(corrupt)-2] ^ 0xff
	_, err := Apply(source, corrupt)
	require.Error(t, err)
}

func TestApplyRejectsMissingTerminator(t *testing.T) {
	delta := []byte("5\n5:hello")
	_, err := Apply(nil, delta)
	require.Error(t, err)
}

func TestDeltaOfDeltaChainTransitivity(t *testing.T) {
	a := []byte("version one of the document")
	b := []byte("version two of the document, a bit longer")
	c := []byte("version three, quite different from the others entirely")

	deltaAB := Create(a, b)
	deltaBC := Create(b, c)

	gotB, err := Apply(a, deltaAB)
	require.NoError(t, err)
	assert.Equal(t, b, gotB)

	gotC, err := Apply(gotB, deltaBC)
	require.NoError(t, err)
	assert.Equal(t, c, gotC)
}
