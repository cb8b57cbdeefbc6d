package deltacodec

// b64Digits is Fossil's own delta digit alphabet (getInt/putInt in
// delta.c): digits are 0..9, upper-case letters are 10..35, '_' is 36,
// lower-case letters are 37..62, '~' is 63 — distinct from both standard
// RFC 4648 base64 and the digit order this codec shipped with before.
const b64Digits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz~"

var b64Value [256]int8

func init() {
	for i := range b64Value {
		b64Value[i] = -1
	}
	for v, c := range []byte(b64Digits) {
		b64Value[c] = int8(v)
	}
}

// encodeUint appends the big-endian base64 encoding of v to dst and
// returns the extended slice. A value of 0 encodes as a single "0" digit.
func encodeUint(dst []byte, v uint64) []byte {
	if v == 0 {
		return append(dst, '0')
	}
	var tmp [16]byte
	i := len(tmp)
	for v > 0 {
		i--
		tmp[i] = b64Digits[v&0x3f]
		v >>= 6
	}
	return append(dst, tmp[i:]...)
}

// decodeUint reads a run of base64 digits from s starting at pos, returning
// the decoded value and the position just past the last digit consumed.
// It fails with KindDeltaInvalidSize if no digit is present at pos.
func decodeUint(s []byte, pos int) (uint64, int, error) {
	start := pos
	var v uint64
	for pos < len(s) {
		d := b64Value[s[pos]]
		if d < 0 {
			break
		}
		v = v<<6 | uint64(d)
		pos++
	}
	if pos == start {
		return 0, pos, errInvalidSize("expected base64 integer")
	}
	return v, pos, nil
}
