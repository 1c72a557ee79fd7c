package crypto

import "github.com/dmesh-net/dmesh-core/wire"

// SignBytes builds the exact, domain-separated byte string a sender signs
// and a receiver reconstructs for verification (spec.md §4.2, §6.2). Field
// order and lengths are a breaking-change boundary: never reorder.
func SignBytes(senderSignPK [SignPKLen]byte, senderBoxPK, recipientBoxPK, ephPK [BoxPKLen]byte, nonce [NonceLen]byte, ts int64, ciphertext []byte) []byte {
	return wire.Concat(
		[]byte(Domain),
		senderSignPK[:],
		senderBoxPK[:],
		recipientBoxPK[:],
		ephPK[:],
		nonce[:],
		wire.U64BE(uint64(ts)),
		wire.U32BE(uint32(len(ciphertext))),
		ciphertext,
	)
}
