// Package sync implements the HELLO/INV/GET/DATA/ACK exchange two peers
// run over a brief, possibly one-shot Transport connection (spec.md
// §4.6): advertise capabilities, offer an inventory filtered by priority
// and prior forwarding, request a bandwidth-bounded want-list, emit
// messages (chunking oversized envelopes), and acknowledge receipt so the
// sender can mark items forwarded and stop re-offering them.
package sync
