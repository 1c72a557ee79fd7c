package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"

	"github.com/dmesh-net/dmesh-core/wire"
	"github.com/sirupsen/logrus"
	naclbox "golang.org/x/crypto/nacl/box"
)

// EncryptOptions carries the optional parameters of Encrypt (spec.md
// §4.2). Zero values fall back to the documented defaults.
type EncryptOptions struct {
	Ts           int64 // defaults to TimeProvider.NowMs()
	TTLMs        int64 // defaults to DefaultTTLMs
	PayloadType  string
	PayloadExtra map[string]interface{}
	Time         TimeProvider
}

// Encrypt seals content for recipientBoxPK under senderSignKP/senderBoxKP,
// implementing spec.md §4.2 step by step:
//
//  1. enforce the content size bound
//  2. resolve ts/exp
//  3. generate an ephemeral X25519 pair and a fresh nonce
//  4. build and seal the plaintext payload
//  5. derive msg_id from the ciphertext
//  6. sign the domain-separated SignBytes
//  7. destroy the ephemeral secret
func Encrypt(content string, senderSignKP *SigningKeyPair, senderBoxKP *BoxKeyPair, recipientBoxPK [BoxPKLen]byte, opts EncryptOptions) (*wire.MessageEnvelope, error) {
	logger := logrus.WithFields(logrus.Fields{"function": "Encrypt", "package": "crypto"})

	if len([]byte(content)) > MaxContentBytes {
		logger.WithField("content_size", len(content)).Error("content exceeds MAX_BYTES")
		return nil, wire.ErrContentTooLarge
	}

	tp := opts.Time
	if tp == nil {
		tp = defaultTimeProvider
	}
	ts := opts.Ts
	if ts == 0 {
		ts = tp.NowMs()
	}
	ttl := opts.TTLMs
	if ttl == 0 {
		ttl = DefaultTTLMs
	}
	exp := ts + ttl

	eph, err := GenerateEphemeralBoxKeyPair()
	if err != nil {
		return nil, err
	}
	defer eph.Destroy()

	var nonce [NonceLen]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, wire.ErrKeyGenerationFailed.WithDetail(err)
	}

	payloadType := opts.PayloadType
	if payloadType == "" {
		payloadType = wire.PayloadText
	}
	payload := &wire.Payload{V: 1, Ts: ts, Type: payloadType, Content: content, Extra: opts.PayloadExtra}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, wire.ErrJsonParseFailed.WithDetail(err)
	}

	ciphertext := naclbox.Seal(nil, plaintext, &nonce, &recipientBoxPK, &eph.private)
	if ciphertext == nil {
		logger.Error("nacl box seal unexpectedly failed")
		return nil, wire.ErrDecryptionFailed
	}

	msgID := MessageID(ciphertext)

	sigBytes := SignBytes(senderSignKP.Public, senderBoxKP.Public, recipientBoxPK, eph.Public, nonce, ts, ciphertext)
	signature := ed25519.Sign(senderSignKP.Private[:], sigBytes)

	env := &wire.MessageEnvelope{
		V:              1,
		Kind:           wire.KindMessage,
		MsgID:          wire.B64(msgID[:]),
		Ts:             ts,
		Exp:            exp,
		SenderSignPK:   wire.B64(senderSignKP.Public[:]),
		SenderBoxPK:    wire.B64(senderBoxKP.Public[:]),
		RecipientBoxPK: wire.B64(recipientBoxPK[:]),
		EphPK:          wire.B64(eph.Public[:]),
		Nonce:          wire.B64(nonce[:]),
		Ciphertext:     wire.B64(ciphertext),
		Signature:      wire.B64(signature),
	}

	logger.WithFields(logrus.Fields{
		"msg_id_preview": wire.Preview(msgID[:], 8),
		"ts":             ts,
		"exp":            exp,
	}).Info("message encrypted")

	return env, nil
}
