package crypto

import "time"

// Domain separation tag prefixed onto every SignBytes construction
// (spec.md §4.2). Exactly 12 ASCII bytes.
const Domain = "DMESH_MSG_V1"

// Fixed lengths, spec.md §4.2.
const (
	SignPKLen    = 32
	SignSKLen    = 64
	BoxPKLen     = 32
	BoxSKLen     = 32
	NonceLen     = 24
	SignatureLen = 64
	FingerprintLen = 16
	MessageIDLen   = 32
)

// Size and timing limits, spec.md §4.2.
const (
	MaxContentBytes = 150 * 1024
	MaxSkewMs       = int64(10 * 60 * 1000)
	DefaultTTLMs    = int64(7 * 24 * time.Hour / time.Millisecond)
	SeenRetention   = int64(30 * 24 * time.Hour / time.Millisecond)
)

func init() {
	if len(Domain) != 12 {
		panic("crypto: Domain must be exactly 12 bytes")
	}
}
