package crypto

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/dmesh-net/dmesh-core/wire"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// SigningKeyPair is a long-term Ed25519 identity key pair. Identity
// continuity for a party equals signing-key continuity (spec.md §3).
type SigningKeyPair struct {
	Public  [SignPKLen]byte
	Private [SignSKLen]byte
}

// GenerateSignKeyPair creates a new Ed25519 pair from a CSPRNG.
func GenerateSignKeyPair() (*SigningKeyPair, error) {
	logger := logrus.WithFields(logrus.Fields{"function": "GenerateSignKeyPair", "package": "crypto"})
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		logger.WithError(err).Error("failed to generate signing key pair")
		return nil, wire.ErrKeyGenerationFailed.WithDetail(err)
	}
	kp := &SigningKeyPair{}
	copy(kp.Public[:], pub)
	copy(kp.Private[:], priv)
	logger.WithField("public_key_preview", wire.Preview(kp.Public[:], 8)).Info("signing key pair generated")
	return kp, nil
}

// BoxKeyPair is a long-term X25519 key pair used for sealed-box
// encryption (spec.md §3). Rotation is not defined at v1.
type BoxKeyPair struct {
	Public  [BoxPKLen]byte
	Private [BoxSKLen]byte
}

// GenerateBoxKeyPair creates a new random X25519 pair from a CSPRNG.
func GenerateBoxKeyPair() (*BoxKeyPair, error) {
	logger := logrus.WithFields(logrus.Fields{"function": "GenerateBoxKeyPair", "package": "crypto"})
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		logger.WithError(err).Error("failed to generate box key pair")
		return nil, wire.ErrKeyGenerationFailed.WithDetail(err)
	}
	kp := &BoxKeyPair{Public: *pub, Private: *priv}
	logger.WithField("public_key_preview", wire.Preview(kp.Public[:], 8)).Info("box key pair generated")
	return kp, nil
}

// BoxKeyPairFromSecret derives the public half of a box key pair from an
// existing secret, clamping it per curve25519 convention, mirroring the
// teacher's FromSecretKey helper for signing keys.
func BoxKeyPairFromSecret(secret [BoxSKLen]byte) *BoxKeyPair {
	var clamped [BoxSKLen]byte
	copy(clamped[:], secret[:])
	clamped[0] &= 248
	clamped[31] &= 127
	clamped[31] |= 64

	var pub [BoxPKLen]byte
	curve25519.ScalarBaseMult(&pub, &clamped)
	ZeroBytes(clamped[:])

	return &BoxKeyPair{Public: pub, Private: secret}
}

// EphemeralBoxKeyPair is generated fresh per sent message; its secret must
// be destroyed with Destroy immediately after sealing (spec.md §3, §5).
type EphemeralBoxKeyPair struct {
	Public  [BoxPKLen]byte
	private [BoxSKLen]byte
	used    bool
}

// GenerateEphemeralBoxKeyPair creates a fresh per-message X25519 pair.
func GenerateEphemeralBoxKeyPair() (*EphemeralBoxKeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, wire.ErrKeyGenerationFailed.WithDetail(err)
	}
	return &EphemeralBoxKeyPair{Public: *pub, private: *priv}, nil
}

// Destroy zeroes the ephemeral secret. Safe to call more than once.
func (e *EphemeralBoxKeyPair) Destroy() {
	ZeroBytes(e.private[:])
	e.used = true
}

// ZeroBytes overwrites b with zeros in place.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
