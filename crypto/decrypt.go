package crypto

import (
	"crypto/ed25519"
	"encoding/json"

	"github.com/dmesh-net/dmesh-core/wire"
	"github.com/sirupsen/logrus"
	naclbox "golang.org/x/crypto/nacl/box"
)

// ValidityMode selects between the two coexisting validity checks of
// spec.md §4.2 step 3 and §9's "mixed validity modes" design note: Strict
// enforces a clock-skew window (v1.0), DelayTolerant enforces expiration
// (v1.1).
type ValidityMode int

const (
	DelayTolerant ValidityMode = iota
	Strict
)

// ReplayCheck is called with (msgID, senderFp) during decrypt step 8. It
// must atomically test-and-mark the pair in the seen-set and report
// whether this is the first time it has been observed.
type ReplayCheck func(msgID [MessageIDLen]byte, senderFp [FingerprintLen]byte) (allowed bool)

// DecryptPolicy is the explicit configuration spec.md §9 recommends in
// place of the source's nullable expected-key parameters: the caller
// states up front whether it requires a previously known contact or
// trusts on first use, and supplies the expectations accordingly.
type DecryptPolicy struct {
	Mode                 ValidityMode
	ExpectedSenderSignPK *[SignPKLen]byte // nil under TOFU
	ExpectedSenderBoxPK  *[BoxPKLen]byte  // nil under TOFU
	Replay               ReplayCheck      // nil disables replay protection (tests only)
	Time                 TimeProvider
}

// DecryptResult is returned on success. The caller decides, per spec.md
// §9's TOFU design note, whether to persist SenderSignPK/SenderBoxPK as a
// new contact.
type DecryptResult struct {
	Content      string
	SenderSignPK [SignPKLen]byte
	SenderBoxPK  [BoxPKLen]byte
	SenderFp     [FingerprintLen]byte
	Ts           int64
	MsgID        [MessageIDLen]byte
	PayloadType  string
	Payload      map[string]interface{}
}

// Decrypt runs the mandatory, fixed-order verification state machine of
// spec.md §4.2. Returning on the first failing check is load-bearing:
// recipient binding must precede signature verification so a message
// destined elsewhere never triggers cryptographic work, and the replay
// check must follow signature verification so a forged replay can never
// pollute the seen-set.
func Decrypt(env *wire.MessageEnvelope, recipientBoxKP *BoxKeyPair, policy DecryptPolicy) (*DecryptResult, error) {
	logger := logrus.WithFields(logrus.Fields{"function": "Decrypt", "package": "crypto"})

	// 1. format
	if env.V != 1 || env.Kind != wire.KindMessage {
		return nil, wire.ErrInvalidMessageFormat
	}

	// 2. decode & lengths
	senderSignPK, err := wire.B64DecodeLen(env.SenderSignPK, SignPKLen)
	if err != nil {
		return nil, err
	}
	senderBoxPK, err := wire.B64DecodeLen(env.SenderBoxPK, BoxPKLen)
	if err != nil {
		return nil, err
	}
	recipientBoxPKField, err := wire.B64DecodeLen(env.RecipientBoxPK, BoxPKLen)
	if err != nil {
		return nil, err
	}
	ephPK, err := wire.B64DecodeLen(env.EphPK, BoxPKLen)
	if err != nil {
		return nil, err
	}
	nonce, err := wire.B64DecodeLen(env.Nonce, NonceLen)
	if err != nil {
		return nil, err
	}
	ciphertext, err := wire.B64Decode(env.Ciphertext)
	if err != nil {
		return nil, err
	}
	signature, err := wire.B64DecodeLen(env.Signature, SignatureLen)
	if err != nil {
		return nil, err
	}

	tp := policy.Time
	if tp == nil {
		tp = defaultTimeProvider
	}
	now := tp.NowMs()

	// 3. validity window
	if policy.Mode == Strict {
		skew := env.Ts - now
		if skew < 0 {
			skew = -skew
		}
		if skew > MaxSkewMs {
			logger.WithField("skew_ms", skew).Warn("timestamp skew exceeds strict-mode bound")
			return nil, wire.ErrTimestampSkew
		}
	} else {
		if env.Exp != 0 {
			if now > env.Exp {
				return nil, wire.ErrMessageExpired
			}
		} else if now > env.Ts+DefaultTTLMs {
			return nil, wire.ErrMessageExpired
		}
	}

	// 4. message-id binding (v1.1)
	computedID := MessageID(ciphertext)
	if env.MsgID != "" {
		declaredID, err := wire.B64DecodeLen(env.MsgID, MessageIDLen)
		if err != nil {
			return nil, err
		}
		if string(declaredID) != string(computedID[:]) {
			return nil, wire.ErrMessageIdMismatch
		}
	}

	// 5. recipient binding
	if string(recipientBoxPKField) != string(recipientBoxKP.Public[:]) {
		return nil, wire.ErrRecipientMismatch
	}

	// 6. sender identity continuity
	var senderFp [FingerprintLen]byte
	{
		fp := Fingerprint(senderSignPK)
		senderFp = fp
	}
	if policy.ExpectedSenderSignPK != nil && string(senderSignPK) != string(policy.ExpectedSenderSignPK[:]) {
		return nil, wire.ErrSenderKeyMismatch
	}
	if policy.ExpectedSenderBoxPK != nil && string(senderBoxPK) != string(policy.ExpectedSenderBoxPK[:]) {
		return nil, wire.ErrSenderKeyMismatch
	}

	// 7. signature
	var senderSignPKArr [SignPKLen]byte
	var senderBoxPKArr, ephPKArr, recipientBoxPKArr [BoxPKLen]byte
	var nonceArr [NonceLen]byte
	copy(senderSignPKArr[:], senderSignPK)
	copy(senderBoxPKArr[:], senderBoxPK)
	copy(ephPKArr[:], ephPK)
	copy(recipientBoxPKArr[:], recipientBoxPKField)
	copy(nonceArr[:], nonce)

	sigBytes := SignBytes(senderSignPKArr, senderBoxPKArr, recipientBoxPKArr, ephPKArr, nonceArr, env.Ts, ciphertext)
	if !ed25519.Verify(senderSignPK, sigBytes, signature) {
		logger.Warn("signature verification failed")
		return nil, wire.ErrSignatureInvalid
	}

	// 8. replay
	if policy.Replay != nil {
		if !policy.Replay(computedID, senderFp) {
			return nil, wire.ErrReplayDetected
		}
	}

	// 9. decrypt
	plaintext, ok := naclbox.Open(nil, ciphertext, &nonceArr, &ephPKArr, &recipientBoxKP.Private)
	if !ok {
		return nil, wire.ErrDecryptionFailed
	}

	// 10. payload parse
	var payload map[string]interface{}
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, wire.ErrJsonParseFailed.WithDetail(err)
	}
	content, _ := payload["content"].(string)
	payloadType, _ := payload["type"].(string)
	if payloadType == "" {
		payloadType = wire.PayloadText
	}

	logger.WithFields(logrus.Fields{
		"msg_id_preview": wire.Preview(computedID[:], 8),
		"sender_fp":      wire.Preview(senderFp[:], 8),
	}).Info("message decrypted")

	return &DecryptResult{
		Content:      content,
		SenderSignPK: senderSignPKArr,
		SenderBoxPK:  senderBoxPKArr,
		SenderFp:     senderFp,
		Ts:           env.Ts,
		MsgID:        computedID,
		PayloadType:  payloadType,
		Payload:      payload,
	}, nil
}
