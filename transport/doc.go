// Package transport implements the pluggable I/O layer dmesh-core sends
// and receives serialized wire documents over (spec.md §4.5). Unlike a
// network transport, every adapter here carries data through a
// store-and-forward medium a human operates: the system clipboard, a
// printed/scanned QR code, or a file handed over by sneakernet. Transport
// is a capability abstraction, not a socket abstraction: callers ask
// "what can this channel do" (chunking support, payload ceiling,
// realtime vs offline) rather than dialing an address.
package transport
