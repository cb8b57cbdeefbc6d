package hashcodec

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"

	"github.com/fslcore/fsl/internal/corecontext"
)

// uncompressedLenPrefix is the size of the big-endian length prefix stored
// before every zlib-compressed blob body, per §4.1.
const uncompressedLenPrefix = 4

// CompressWithPrefix zlib-compresses content and prepends a 4-byte
// big-endian uncompressed-size header, the on-disk raw-blob form.
func CompressWithPrefix(content []byte) ([]byte, error) {
	var buf bytes.Buffer
	var header [uncompressedLenPrefix]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(content)))
	buf.Write(header[:])

	w := zlib.NewWriter(&buf)
	if _, err := w.Write(content); err != nil {
		return nil, corecontext.Wrap(corecontext.KindIO, "zlib compress", err)
	}
	if err := w.Close(); err != nil {
		return nil, corecontext.Wrap(corecontext.KindIO, "zlib compress close", err)
	}
	return buf.Bytes(), nil
}

// DecompressWithPrefix reverses CompressWithPrefix, validating that the
// decompressed length matches the stored prefix.
func DecompressWithPrefix(stored []byte) ([]byte, error) {
	if len(stored) < uncompressedLenPrefix {
		return nil, corecontext.New(corecontext.KindConsistency, "zlib blob too short for length prefix")
	}
	wantLen := binary.BigEndian.Uint32(stored[:uncompressedLenPrefix])

	r, err := zlib.NewReader(bytes.NewReader(stored[uncompressedLenPrefix:]))
	if err != nil {
		return nil, corecontext.Wrap(corecontext.KindConsistency, "zlib header invalid", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, corecontext.Wrap(corecontext.KindConsistency, "zlib decompress", err)
	}
	if uint32(len(out)) != wantLen {
		return nil, corecontext.New(corecontext.KindConsistency, "zlib decompressed size mismatch")
	}
	return out, nil
}

// IsCompressed probes stored bytes for the compressed-raw-blob shape: a
// 4-byte length prefix followed by a valid zlib (RFC 1950) header — CMF's
// low nibble names the deflate method and the CMF/FLG pair must be a
// multiple of 31, the check zlib itself uses to validate its header.
func IsCompressed(stored []byte) bool {
	if len(stored) < uncompressedLenPrefix+2 {
		return false
	}
	body := stored[uncompressedLenPrefix:]
	cmf, flg := body[0], body[1]
	if cmf&0x0f != 8 {
		return false
	}
	return (uint16(cmf)*256+uint16(flg))%31 == 0
}
