package wire

import "encoding/json"

// Sync frame kinds (spec.md §4.6, §6.1). Every frame carries v, kind, ts,
// and a signature computed over the frame with the signature field blank.
const (
	KindSyncHello = "sync-hello"
	KindSyncInv   = "sync-inv"
	KindSyncGet   = "sync-get"
	KindSyncData  = "sync-data"
	KindSyncAck   = "sync-ack"
)

// Capabilities is the capability set a peer advertises in HELLO.
type Capabilities struct {
	MaxMsgSize      int      `json:"max_msg_size"`
	MaxInvCount     int      `json:"max_inv_count"`
	MaxChunks       int      `json:"max_chunks"`
	SupportedKinds  []string `json:"supported_kinds"`
	ProtocolVersion int      `json:"protocol_version"`
}

// HelloFrame is sync-hello.
type HelloFrame struct {
	V            int          `json:"v"`
	Kind         string       `json:"kind"`
	Ts           int64        `json:"ts"`
	PeerFp       string       `json:"peer_fp"`
	PeerSignPK   string       `json:"peer_sign_pk"`
	Capabilities Capabilities `json:"capabilities"`
	Signature    string       `json:"signature,omitempty"`
}

// InvItem is one advertised entry in sync-inv.
type InvItem struct {
	MsgID    string `json:"msg_id"`
	Exp      int64  `json:"exp"`
	Size     int    `json:"size"`
	Priority int    `json:"priority"`
}

// InvFrame is sync-inv.
type InvFrame struct {
	V         int       `json:"v"`
	Kind      string    `json:"kind"`
	Ts        int64     `json:"ts"`
	Items     []InvItem `json:"items"`
	Bloom     string    `json:"bloom,omitempty"`
	Signature string    `json:"signature,omitempty"`
}

// GetFrame is sync-get.
type GetFrame struct {
	V         int      `json:"v"`
	Kind      string   `json:"kind"`
	Ts        int64    `json:"ts"`
	Want      []string `json:"want"`
	MaxBytes  int      `json:"max_bytes"`
	Signature string   `json:"signature,omitempty"`
}

// DataUnit is either a full MessageEnvelope or a Chunk; exactly one of
// Envelope/Chunk is set, mirroring the "envelope | chunk" union of
// spec.md §4.6.
type DataUnit struct {
	Envelope *MessageEnvelope `json:"envelope,omitempty"`
	Chunk    *Chunk           `json:"chunk,omitempty"`
}

// DataFrame is sync-data.
type DataFrame struct {
	V         int        `json:"v"`
	Kind      string     `json:"kind"`
	Ts        int64      `json:"ts"`
	Messages  []DataUnit `json:"messages"`
	Signature string     `json:"signature,omitempty"`
}

// AckFrame is sync-ack.
type AckFrame struct {
	V         int      `json:"v"`
	Kind      string   `json:"kind"`
	Ts        int64    `json:"ts"`
	Received  []string `json:"received"`
	Signature string   `json:"signature,omitempty"`
}

// SignableBytes marshals the frame with its Signature field cleared, per
// spec.md §4.6: "an Ed25519 signature over the frame (excluding the
// signature field)". Each frame type implements this the same way: copy,
// blank the signature, marshal.
func (h HelloFrame) SignableBytes() ([]byte, error) {
	h.Signature = ""
	return json.Marshal(h)
}

func (i InvFrame) SignableBytes() ([]byte, error) {
	i.Signature = ""
	return json.Marshal(i)
}

func (g GetFrame) SignableBytes() ([]byte, error) {
	g.Signature = ""
	return json.Marshal(g)
}

func (d DataFrame) SignableBytes() ([]byte, error) {
	d.Signature = ""
	return json.Marshal(d)
}

func (a AckFrame) SignableBytes() ([]byte, error) {
	a.Signature = ""
	return json.Marshal(a)
}
