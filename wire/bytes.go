package wire

import "encoding/binary"

// U32BE returns the exact 4-byte big-endian representation of n.
func U32BE(n uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, n)
	return b
}

// U64BE returns the exact 8-byte big-endian representation of n.
//
// n must be safely representable as a float64 integer (millisecond
// timestamps satisfy this far past any realistic date) per spec.md §4.1.
func U64BE(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

// Concat returns the exact byte concatenation of parts, in order.
func Concat(parts ...[]byte) []byte {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
