// Package crypto implements the dmesh-core cryptographic construction:
// key-pair generation, fingerprint and message-ID derivation, the
// safety-number display code, the domain-separated SignBytes
// construction, and the authenticated encrypt/decrypt envelope with its
// mandatory-order verification state machine.
//
// Sealing uses golang.org/x/crypto/nacl/box (X25519 + XSalsa20 +
// Poly1305); signing uses the standard library's crypto/ed25519, reached
// for directly rather than through a wrapper package.
package crypto
