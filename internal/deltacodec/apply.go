package deltacodec

// Apply reconstructs the target buffer a delta (produced by Create, or by
// any compatible Fossil delta encoder) transforms source into. It
// validates every field and fails with a distinct error kind for each
// malformed-input case named in §4.2.
func Apply(source, delta []byte) ([]byte, error) {
	pos := 0

	targetSize, next, err := decodeUint(delta, pos)
	if err != nil {
		return nil, err
	}
	pos = next
	if pos >= len(delta) || delta[pos] != '\n' {
		return nil, errInvalidSeparator("missing newline after header size")
	}
	pos++

	out := make([]byte, targetSize)
	outPos := uint64(0)
	terminated := false

	for pos < len(delta) {
		n, next, err := decodeUint(delta, pos)
		if err != nil {
			return nil, err
		}
		pos = next
		if pos >= len(delta) {
			return nil, errInvalidTerminator("delta ends mid-command")
		}
		op := delta[pos]
		pos++

		switch op {
		case '@':
			m, next, err := decodeUint(delta, pos)
			if err != nil {
				return nil, err
			}
			pos = next
			if pos >= len(delta) || delta[pos] != ',' {
				return nil, errInvalidSeparator("missing ',' after copy offset")
			}
			pos++

			if m+n > uint64(len(source)) {
				return nil, errSizeMismatch("copy reads past end of source")
			}
			if outPos+n > targetSize {
				return nil, errSizeMismatch("copy writes past end of target")
			}
			copy(out[outPos:outPos+n], source[m:m+n])
			outPos += n

		case ':':
			if uint64(len(delta))-uint64(pos) < n {
				return nil, errSizeMismatch("insert literal truncated")
			}
			if outPos+n > targetSize {
				return nil, errSizeMismatch("insert writes past end of target")
			}
			copy(out[outPos:outPos+n], delta[pos:pos+int(n)])
			pos += int(n)
			outPos += n

		case ';':
			if outPos != targetSize {
				return nil, errSizeMismatch("target size mismatch at checksum")
			}
			if uint32(n) != checksum(out) {
				return nil, errChecksumMismatch("delta checksum mismatch")
			}
			if pos != len(delta) {
				return nil, errInvalidTerminator("trailing bytes after checksum command")
			}
			terminated = true

		default:
			return nil, errInvalidOperator("unrecognized delta command")
		}

		if terminated {
			break
		}
	}

	if !terminated {
		return nil, errInvalidTerminator("delta missing trailing checksum command")
	}
	return out, nil
}

// AppliedSize returns the declared target size of a delta without
// decoding the body, for callers that only need to validate length.
func AppliedSize(delta []byte) (uint64, error) {
	v, _, err := decodeUint(delta, 0)
	return v, err
}
