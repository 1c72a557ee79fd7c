package transport

import (
	"github.com/dmesh-net/dmesh-core/wire"
)

// Capabilities describes what an adapter can carry, per spec.md §4.5.
// Callers (notably the Sync Engine) use these fields to decide framing
// and chunking strategy without knowing which concrete adapter is in
// play.
type Capabilities struct {
	MaxPayloadSize   int
	SupportsChunking bool
	Bidirectional    bool
	Realtime         bool
	Offline          bool
	PeerDiscovery    bool
}

// ReceivedItem is one parsed document handed back by Receive. Exactly one
// field is set, mirroring the "dmesh-msg | dmesh-id" union a transport
// may carry.
type ReceivedItem struct {
	Envelope *wire.MessageEnvelope
	Identity *wire.PublicIdentity
}

// SendableDocument is anything with a canonical JSON form a Transport can
// carry: a MessageEnvelope or a PublicIdentity.
type SendableDocument interface {
	MarshalCanonical() ([]byte, error)
}

// Transport is the abstract capability every adapter implements (spec.md
// §4.5). Send may return more than one serialized unit when the document
// is chunked; Receive may return nothing if no new data is available.
type Transport interface {
	Name() string
	Capabilities() Capabilities
	Send(doc SendableDocument) ([]string, error)
	Receive() ([]ReceivedItem, error)
	StartListening() error
	StopListening() error
	IsAvailable() bool
}

// MessageHandler is invoked for each item a transport surfaces, tagged
// with the originating transport's name.
type MessageHandler func(transportName string, item ReceivedItem)

// ErrorHandler is invoked when a transport-level operation dispatched by
// Manager fails: a Send through Manager.Send, or a Receive during
// Manager.Poll.
type ErrorHandler func(transportName string, err error)

// parseReceived attempts to interpret raw as either a dmesh-msg or a
// dmesh-id document, the two kinds a bare text/byte carrier (clipboard,
// file) can hold. It returns ok=false, no error, if raw parses as neither
// — callers treat that as "not one of ours" rather than a failure.
func parseReceived(raw []byte) (ReceivedItem, bool) {
	if env, err := wire.ParseMessageEnvelope(raw); err == nil && env.V == 1 && env.Kind == wire.KindMessage {
		return ReceivedItem{Envelope: env}, true
	}
	if id, err := wire.ParsePublicIdentity(raw); err == nil {
		return ReceivedItem{Identity: id}, true
	}
	return ReceivedItem{}, false
}
