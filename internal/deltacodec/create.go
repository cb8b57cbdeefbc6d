package deltacodec

// chunkLen is the window size used to index the source for matching, per
// §4.2's "16-byte chunks."
const chunkLen = 16

// minCopyLen is the shortest match worth emitting as a copy-op instead of
// a literal: below this length the op overhead (two encoded integers plus
// punctuation) outweighs just inlining the bytes, per §4.2's "a copy-op is
// emitted only when it is smaller than the equivalent literal."
const minCopyLen = chunkLen

// sourceIndex is a sliding-window rolling-hash index of 16-byte chunks of
// a source buffer, used to find candidate copy sources while scanning the
// target.
type sourceIndex struct {
	source []byte
	table  map[uint32][]int
}

func buildSourceIndex(source []byte) *sourceIndex {
	idx := &sourceIndex{source: source, table: make(map[uint32][]int)}
	if len(source) < chunkLen {
		return idx
	}
	h := rollingHash(source[:chunkLen])
	idx.table[h] = append(idx.table[h], 0)
	for i := 1; i+chunkLen <= len(source); i++ {
		h = rollSum(h, source[i-1], source[i+chunkLen-1])
		idx.table[h] = append(idx.table[h], i)
	}
	return idx
}

// rollingHash computes the initial 32-bit rolling checksum of a window
// using the rsync-style split-sum construction: a runs low, b folds in
// position so a and b combined are sensitive to byte order, not just
// multiset membership.
func rollingHash(window []byte) uint32 {
	var a, b uint32
	for i, c := range window {
		a += uint32(c)
		b += uint32(len(window)-i) * uint32(c)
	}
	return a | b<<16
}

// rollSum advances a rolling hash by one byte: out leaves the window, in
// enters it. Recomputing from scratch would also be correct; this mirrors
// the "sliding-window rolling hash" the spec calls for.
func rollSum(prev uint32, out, in byte) uint32 {
	a := prev & 0xffff
	b := prev >> 16
	a = a - uint32(out) + uint32(in)
	b = b - uint32(chunkLen)*uint32(out) + a
	return (a & 0xffff) | (b << 16)
}

func (idx *sourceIndex) find(target []byte, at int) (sourceOffset, matchLen int, ok bool) {
	if at+chunkLen > len(target) {
		return 0, 0, false
	}
	h := rollingHash(target[at : at+chunkLen])
	candidates := idx.table[h]
	best := -1
	bestLen := 0
	for _, off := range candidates {
		if off+chunkLen > len(idx.source) {
			continue
		}
		if string(idx.source[off:off+chunkLen]) != string(target[at:at+chunkLen]) {
			continue
		}
		length := extendMatch(idx.source, off, target, at)
		if length > bestLen {
			best = off
			bestLen = length
		}
	}
	if best < 0 {
		return 0, 0, false
	}
	return best, bestLen, true
}

// extendMatch grows a confirmed chunkLen match forward as far as source
// and target continue to agree.
func extendMatch(source []byte, srcOff int, target []byte, tgtOff int) int {
	n := chunkLen
	for srcOff+n < len(source) && tgtOff+n < len(target) && source[srcOff+n] == target[tgtOff+n] {
		n++
	}
	return n
}

// Create builds a Fossil-format binary delta that transforms source into
// target: a base64 header giving the target size, a sequence of copy/
// insert ops, and a trailing checksum command.
func Create(source, target []byte) []byte {
	out := make([]byte, 0, len(target)/2+32)
	out = encodeUint(out, uint64(len(target)))
	out = append(out, '\n')

	idx := buildSourceIndex(source)

	litStart := 0
	i := 0
	for i < len(target) {
		if off, length, ok := idx.find(target, i); ok && length >= minCopyLen {
			if litStart < i {
				out = appendInsert(out, target[litStart:i])
			}
			out = encodeUint(out, uint64(length))
			out = append(out, '@')
			out = encodeUint(out, uint64(off))
			out = append(out, ',')
			i += length
			litStart = i
			continue
		}
		i++
	}
	if litStart < len(target) {
		out = appendInsert(out, target[litStart:])
	}

	out = encodeUint(out, uint64(checksum(target)))
	out = append(out, ';')
	return out
}

func appendInsert(out []byte, literal []byte) []byte {
	out = encodeUint(out, uint64(len(literal)))
	out = append(out, ':')
	out = append(out, literal...)
	return out
}
