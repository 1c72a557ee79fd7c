// Package wire implements the byte-level primitives and canonical JSON
// codec shared by every other dmesh-core package: big-endian integer
// encoding, byte concatenation, the stable error taxonomy, and the wire
// JSON shapes for identities, messages, chunks, and sync frames.
//
// Nothing in this package depends on any other dmesh-core package; it is
// the leaf of the dependency graph described in spec.md §2.
package wire
