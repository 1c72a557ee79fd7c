// Package chunk splits a serialized MessageEnvelope into transport-sized
// chunks bound to the message ID and reassembles a received set back into
// the original envelope (spec.md §4.3). Chunks are not themselves signed;
// integrity rests on the envelope's signature once the set is
// reassembled, with msg_id binding every chunk to a specific ciphertext.
package chunk
