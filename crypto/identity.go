package crypto

import (
	"crypto/sha512"

	"github.com/dmesh-net/dmesh-core/wire"
)

// Fingerprint returns the first 16 bytes of SHA-512(signPK), the stable
// party identifier defined in spec.md §3. Implementations MUST NOT
// substitute SHA-256 (spec.md §6.2).
func Fingerprint(signPK []byte) [FingerprintLen]byte {
	sum := sha512.Sum512(signPK)
	var fp [FingerprintLen]byte
	copy(fp[:], sum[:FingerprintLen])
	return fp
}

// MessageID returns the first 32 bytes of SHA-512(ciphertext), the
// deterministic message identifier of spec.md §3.
func MessageID(ciphertext []byte) [MessageIDLen]byte {
	sum := sha512.Sum512(ciphertext)
	var id [MessageIDLen]byte
	copy(id[:], sum[:MessageIDLen])
	return id
}

// CreatePublicIdentity builds the serializable dmesh-id document for a
// party (spec.md §4.2).
func CreatePublicIdentity(name string, signPK, boxPK []byte) *wire.PublicIdentity {
	fp := Fingerprint(signPK)
	return wire.NewPublicIdentity(name, fp[:], signPK, boxPK)
}
