package crypto

import (
	"crypto/ed25519"
	"crypto/sha512"
	"strings"
	"testing"

	"github.com/dmesh-net/dmesh-core/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edPublicFromSeed(t *testing.T, seed []byte) []byte {
	t.Helper()
	priv := ed25519.NewKeyFromSeed(seed)
	return priv.Public().(ed25519.PublicKey)
}

func genParties(t *testing.T) (aliceSign *SigningKeyPair, aliceBox *BoxKeyPair, bobSign *SigningKeyPair, bobBox *BoxKeyPair) {
	t.Helper()
	var err error
	aliceSign, err = GenerateSignKeyPair()
	require.NoError(t, err)
	aliceBox, err = GenerateBoxKeyPair()
	require.NoError(t, err)
	bobSign, err = GenerateSignKeyPair()
	require.NoError(t, err)
	bobBox, err = GenerateBoxKeyPair()
	require.NoError(t, err)
	return
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	aliceSign, aliceBox, _, bobBox := genParties(t)

	env, err := Encrypt("Hello, Bob!", aliceSign, aliceBox, bobBox.Public, EncryptOptions{
		Ts:    1706012345678,
		TTLMs: DefaultTTLMs,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1706617145678), env.Exp)

	res, err := Decrypt(env, bobBox, DecryptPolicy{Mode: DelayTolerant, Time: FixedTimeProvider{Ms: 1706012345678}})
	require.NoError(t, err)
	assert.Equal(t, "Hello, Bob!", res.Content)
	assert.Equal(t, wire.PayloadText, res.PayloadType)

	ctBytes, err := wire.B64Decode(env.Ciphertext)
	require.NoError(t, err)
	wantID := MessageID(ctBytes)
	assert.Equal(t, wantID, res.MsgID)
}

func TestEncryptEmptyContent(t *testing.T) {
	aliceSign, aliceBox, _, bobBox := genParties(t)

	env, err := Encrypt("", aliceSign, aliceBox, bobBox.Public, EncryptOptions{Ts: 1706012345678})
	require.NoError(t, err)

	res, err := Decrypt(env, bobBox, DecryptPolicy{Mode: DelayTolerant, Time: FixedTimeProvider{Ms: 1706012345678}})
	require.NoError(t, err)
	assert.Equal(t, "", res.Content)
}

func TestEncryptUnicodeContent(t *testing.T) {
	aliceSign, aliceBox, _, bobBox := genParties(t)
	content := "こんにちは🌏 Hello 世界!"

	env, err := Encrypt(content, aliceSign, aliceBox, bobBox.Public, EncryptOptions{Ts: 1706012345678})
	require.NoError(t, err)

	res, err := Decrypt(env, bobBox, DecryptPolicy{Mode: DelayTolerant, Time: FixedTimeProvider{Ms: 1706012345678}})
	require.NoError(t, err)
	assert.Equal(t, content, res.Content)
}

func TestEncryptLargeMessage(t *testing.T) {
	aliceSign, aliceBox, _, bobBox := genParties(t)
	content := strings.Repeat("A", 1024)

	env, err := Encrypt(content, aliceSign, aliceBox, bobBox.Public, EncryptOptions{Ts: 1706012345678})
	require.NoError(t, err)

	res, err := Decrypt(env, bobBox, DecryptPolicy{Mode: DelayTolerant, Time: FixedTimeProvider{Ms: 1706012345678}})
	require.NoError(t, err)
	assert.Equal(t, content, res.Content)
}

func TestEncryptContentTooLarge(t *testing.T) {
	aliceSign, aliceBox, _, bobBox := genParties(t)
	content := strings.Repeat("A", MaxContentBytes+1)

	_, err := Encrypt(content, aliceSign, aliceBox, bobBox.Public, EncryptOptions{})
	assert.ErrorIs(t, err, wire.ErrContentTooLarge)
}

func TestFingerprintVector(t *testing.T) {
	seed := sha512.Sum512([]byte("alice_fp_sign_seed"))
	// Use the first 32 bytes of the seed hash as an Ed25519 seed, as
	// spec.md's scenario 5 describes.
	pub := edPublicFromSeed(t, seed[:32])

	fp := Fingerprint(pub)
	want := sha512.Sum512(pub)
	assert.Equal(t, want[:FingerprintLen], fp[:])
}

func TestTamperRejectsBeforeBoxOpen(t *testing.T) {
	aliceSign, aliceBox, _, bobBox := genParties(t)

	env, err := Encrypt("tamper me", aliceSign, aliceBox, bobBox.Public, EncryptOptions{Ts: 1706012345678})
	require.NoError(t, err)

	ct, err := wire.B64Decode(env.Ciphertext)
	require.NoError(t, err)
	ct[0] ^= 0x01
	env.Ciphertext = wire.B64(ct)

	_, err = Decrypt(env, bobBox, DecryptPolicy{Mode: DelayTolerant, Time: FixedTimeProvider{Ms: 1706012345678}})
	assert.ErrorIs(t, err, wire.ErrSignatureInvalid)
}

func TestWrongRecipientRejectsBeforeBoxOpen(t *testing.T) {
	aliceSign, aliceBox, _, bobBox := genParties(t)

	env, err := Encrypt("for bob only", aliceSign, aliceBox, bobBox.Public, EncryptOptions{Ts: 1706012345678})
	require.NoError(t, err)

	_, err = Decrypt(env, aliceBox, DecryptPolicy{Mode: DelayTolerant, Time: FixedTimeProvider{Ms: 1706012345678}})
	assert.ErrorIs(t, err, wire.ErrRecipientMismatch)
}

func TestReplayDetection(t *testing.T) {
	aliceSign, aliceBox, _, bobBox := genParties(t)

	env, err := Encrypt("once only", aliceSign, aliceBox, bobBox.Public, EncryptOptions{Ts: 1706012345678})
	require.NoError(t, err)

	seen := map[string]bool{}
	replay := func(msgID [MessageIDLen]byte, senderFp [FingerprintLen]byte) bool {
		key := string(msgID[:]) + string(senderFp[:])
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	}

	_, err = Decrypt(env, bobBox, DecryptPolicy{Mode: DelayTolerant, Replay: replay, Time: FixedTimeProvider{Ms: 1706012345678}})
	require.NoError(t, err)

	_, err = Decrypt(env, bobBox, DecryptPolicy{Mode: DelayTolerant, Replay: replay, Time: FixedTimeProvider{Ms: 1706012345678}})
	assert.ErrorIs(t, err, wire.ErrReplayDetected)
}

func TestStrictModeSkew(t *testing.T) {
	aliceSign, aliceBox, _, bobBox := genParties(t)

	env, err := Encrypt("skewed", aliceSign, aliceBox, bobBox.Public, EncryptOptions{
		Ts:   1_700_000_000_000,
		Time: FixedTimeProvider{Ms: 1_700_000_000_000},
	})
	require.NoError(t, err)

	_, err = Decrypt(env, bobBox, DecryptPolicy{
		Mode: Strict,
		Time: FixedTimeProvider{Ms: 1_700_000_000_000 + MaxSkewMs + 1},
	})
	assert.ErrorIs(t, err, wire.ErrTimestampSkew)
}

func TestDelayTolerantExpiration(t *testing.T) {
	aliceSign, aliceBox, _, bobBox := genParties(t)

	env, err := Encrypt("expiring", aliceSign, aliceBox, bobBox.Public, EncryptOptions{
		Ts:    1_700_000_000_000,
		TTLMs: 1000,
	})
	require.NoError(t, err)

	_, err = Decrypt(env, bobBox, DecryptPolicy{
		Mode: DelayTolerant,
		Time: FixedTimeProvider{Ms: 1_700_000_000_000 + 999},
	})
	assert.NoError(t, err)

	_, err = Decrypt(env, bobBox, DecryptPolicy{
		Mode: DelayTolerant,
		Time: FixedTimeProvider{Ms: 1_700_000_000_000 + 1001},
	})
	assert.ErrorIs(t, err, wire.ErrMessageExpired)
}

func TestSafetyNumberSymmetric(t *testing.T) {
	a := Fingerprint([]byte("party-a-signing-public-key-bytes"))
	b := Fingerprint([]byte("party-b-signing-public-key-bytes"))

	assert.Equal(t, SafetyNumber(a, b), SafetyNumber(b, a))
	assert.Len(t, SafetyNumber(a, b), 9)
}

func TestSenderKeyMismatch(t *testing.T) {
	aliceSign, aliceBox, _, bobBox := genParties(t)
	var wrongPK [SignPKLen]byte
	copy(wrongPK[:], "not-the-real-expected-sender-pk")

	env, err := Encrypt("hi", aliceSign, aliceBox, bobBox.Public, EncryptOptions{Ts: 1706012345678})
	require.NoError(t, err)

	_, err = Decrypt(env, bobBox, DecryptPolicy{
		Mode:                 DelayTolerant,
		ExpectedSenderSignPK: &wrongPK,
		Time:                 FixedTimeProvider{Ms: 1706012345678},
	})
	assert.ErrorIs(t, err, wire.ErrSenderKeyMismatch)
}
