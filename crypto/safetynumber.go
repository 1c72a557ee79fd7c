package crypto

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// SafetyNumber derives the 8-digit dashed display code two parties can
// read aloud to confirm they hold matching key material out of band
// (spec.md §3). It is symmetric: SafetyNumber(a, b) == SafetyNumber(b, a).
func SafetyNumber(fpA, fpB [FingerprintLen]byte) string {
	first, second := fpA, fpB
	if bytes.Compare(first[:], second[:]) > 0 {
		first, second = second, first
	}

	var xored [FingerprintLen]byte
	for i := range xored {
		xored[i] = first[i] ^ second[i]
	}

	n := binary.BigEndian.Uint32(xored[:4]) % 100_000_000
	return fmt.Sprintf("%04d-%04d", n/10000, n%10000)
}
