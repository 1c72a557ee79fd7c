package store

import "time"

// Verification is a contact's trust state (spec.md §3).
type Verification string

const (
	Unverified  Verification = "Unverified"
	Verified    Verification = "Verified"
	Compromised Verification = "Compromised"
)

// Contact mirrors spec.md §3's Contact entity. Primary key: Fingerprint.
type Contact struct {
	Fingerprint        [16]byte
	SigningPK          [32]byte
	BoxPK              [32]byte
	DisplayName        string
	Verification       Verification
	AddedAt            time.Time
	UpdatedAt          time.Time
	VerifiedAt         *time.Time
	CompromisedAt      *time.Time
	CompromisedReason  string
}

// OutboxStatus is an OutboxEntry's delivery status.
type OutboxStatus string

const (
	StatusPending   OutboxStatus = "Pending"
	StatusSent      OutboxStatus = "Sent"
	StatusDelivered OutboxStatus = "Delivered"
	StatusFailed    OutboxStatus = "Failed"
)

// OutboxEntry mirrors spec.md §3's OutboxEntry. Primary key: MsgID.
type OutboxEntry struct {
	MsgID           [32]byte
	RecipientFp     [16]byte
	MessageEnvelope []byte // canonical serialized dmesh-msg JSON
	CreatedAt       time.Time
	Status          OutboxStatus
	Attempts        int
	LastAttempt     *time.Time
	// Exp carries the envelope's expiration for inventory construction
	// without re-parsing MessageEnvelope on every sync pass.
	Exp int64
	// PayloadType carries the envelope's plaintext payload type for
	// priority assignment (spec.md §4.6); recorded at Add time since the
	// outbox only ever holds envelopes this node itself sealed.
	PayloadType string
	// Urgency carries a need_help/medical payload's urgency extra
	// (low|medium|high|critical), recorded at Add time for the same
	// reason as PayloadType. Empty for payload types that don't carry it.
	Urgency string
}

// InboxEntry mirrors spec.md §3's InboxEntry. Primary key: MsgID.
type InboxEntry struct {
	MsgID             [32]byte
	SenderFp          [16]byte
	Content           string
	PayloadType       string
	Payload           map[string]interface{}
	Ts                int64
	ReceivedAt        time.Time
	Read              bool
	OriginalEnvelope  []byte
}

// SeenEntry mirrors spec.md §3's SeenEntry. Key: (MsgID, SenderFp).
type SeenEntry struct {
	MsgID    [32]byte
	SenderFp [16]byte
	SeenAt   time.Time
}

// ForwardedEntry mirrors spec.md §3's ForwardedEntry. Key: (PeerFp, MsgID).
type ForwardedEntry struct {
	PeerFp       [16]byte
	MsgID        [32]byte
	ForwardedAt  time.Time
}

// PartialChunkEntry mirrors spec.md §3's PartialChunkEntry. Key: (MsgID, Seq).
type PartialChunkEntry struct {
	MsgID      string // base64, matches wire.Chunk.MsgID
	Seq        int
	Total      int
	Data       string // base64 chunk payload slice
	ReceivedAt time.Time
}

// OwnKeys is the node's long-term identity, the sole payload of the Keys
// table (spec.md §4.4).
type OwnKeys struct {
	SigningPublic  [32]byte
	SigningPrivate [64]byte
	BoxPublic      [32]byte
	BoxPrivate     [32]byte
	DisplayName    string
}

// Stats reports per-table counts, per spec.md §4.4's run_maintenance/stats
// contract.
type Stats struct {
	Contacts      int
	Outbox        int
	Inbox         int
	Seen          int
	Forwarded     int
	PartialChunks int
}
