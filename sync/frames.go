package sync

import (
	"crypto/ed25519"

	"github.com/dmesh-net/dmesh-core/crypto"
	"github.com/dmesh-net/dmesh-core/wire"
)

// signFrame signs signable with signKP.Private and returns the base64
// signature, per spec.md §4.6: "an Ed25519 signature by the sending peer
// over the frame with the signature field blank".
func signFrame(signable []byte, signKP *crypto.SigningKeyPair) string {
	sig := ed25519.Sign(signKP.Private[:], signable)
	return wire.B64(sig)
}

// verifyFrame checks sig (base64) against signable using peerSignPK.
func verifyFrame(signable []byte, sig string, peerSignPK []byte) error {
	sigBytes, err := wire.B64DecodeLen(sig, crypto.SignatureLen)
	if err != nil {
		return err
	}
	if !ed25519.Verify(peerSignPK, signable, sigBytes) {
		return wire.ErrSignatureInvalid
	}
	return nil
}

func signHello(h *wire.HelloFrame, signKP *crypto.SigningKeyPair) error {
	h.Signature = ""
	signable, err := h.SignableBytes()
	if err != nil {
		return err
	}
	h.Signature = signFrame(signable, signKP)
	return nil
}

func verifyHello(h *wire.HelloFrame, peerSignPK []byte) error {
	sig := h.Signature
	signable, err := (&wire.HelloFrame{
		V: h.V, Kind: h.Kind, Ts: h.Ts, PeerFp: h.PeerFp, PeerSignPK: h.PeerSignPK, Capabilities: h.Capabilities,
	}).SignableBytes()
	if err != nil {
		return err
	}
	if err := verifyFrame(signable, sig, peerSignPK); err != nil {
		return err
	}
	declaredFp, err := wire.B64DecodeLen(h.PeerFp, crypto.FingerprintLen)
	if err != nil {
		return err
	}
	fp := crypto.Fingerprint(peerSignPK)
	if string(declaredFp) != string(fp[:]) {
		return wire.ErrSenderKeyMismatch
	}
	return nil
}

func signInv(f *wire.InvFrame, signKP *crypto.SigningKeyPair) error {
	f.Signature = ""
	signable, err := f.SignableBytes()
	if err != nil {
		return err
	}
	f.Signature = signFrame(signable, signKP)
	return nil
}

func verifyInv(f *wire.InvFrame, peerSignPK []byte) error {
	sig := f.Signature
	signable, err := (&wire.InvFrame{V: f.V, Kind: f.Kind, Ts: f.Ts, Items: f.Items, Bloom: f.Bloom}).SignableBytes()
	if err != nil {
		return err
	}
	return verifyFrame(signable, sig, peerSignPK)
}

func signGet(f *wire.GetFrame, signKP *crypto.SigningKeyPair) error {
	f.Signature = ""
	signable, err := f.SignableBytes()
	if err != nil {
		return err
	}
	f.Signature = signFrame(signable, signKP)
	return nil
}

func verifyGet(f *wire.GetFrame, peerSignPK []byte) error {
	sig := f.Signature
	signable, err := (&wire.GetFrame{V: f.V, Kind: f.Kind, Ts: f.Ts, Want: f.Want, MaxBytes: f.MaxBytes}).SignableBytes()
	if err != nil {
		return err
	}
	return verifyFrame(signable, sig, peerSignPK)
}

func signData(f *wire.DataFrame, signKP *crypto.SigningKeyPair) error {
	f.Signature = ""
	signable, err := f.SignableBytes()
	if err != nil {
		return err
	}
	f.Signature = signFrame(signable, signKP)
	return nil
}

func verifyData(f *wire.DataFrame, peerSignPK []byte) error {
	sig := f.Signature
	signable, err := (&wire.DataFrame{V: f.V, Kind: f.Kind, Ts: f.Ts, Messages: f.Messages}).SignableBytes()
	if err != nil {
		return err
	}
	return verifyFrame(signable, sig, peerSignPK)
}

func signAck(f *wire.AckFrame, signKP *crypto.SigningKeyPair) error {
	f.Signature = ""
	signable, err := f.SignableBytes()
	if err != nil {
		return err
	}
	f.Signature = signFrame(signable, signKP)
	return nil
}

func verifyAck(f *wire.AckFrame, peerSignPK []byte) error {
	sig := f.Signature
	signable, err := (&wire.AckFrame{V: f.V, Kind: f.Kind, Ts: f.Ts, Received: f.Received}).SignableBytes()
	if err != nil {
		return err
	}
	return verifyFrame(signable, sig, peerSignPK)
}
