package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by single-entity lookups that find nothing.
var ErrNotFound = errors.New("store: not found")

// ErrKeyChangeRefused is returned when SaveContact would silently change
// the signing or box public key recorded for an existing fingerprint
// (spec.md §3's Contact invariant).
var ErrKeyChangeRefused = errors.New("store: refusing silent contact key change")

// Default retention/cleanup ages, spec.md §3's lifecycle section and §4.2
// constants.
const (
	SeenRetention     = 30 * 24 * time.Hour
	ChunkMaxAge       = 24 * time.Hour
	MaxChunksPerMsgID = 64 // anti-DoS bound, spec.md §9 open question 3
)

// KeysStore persists the node's own long-term identity.
type KeysStore interface {
	PutOwnKeys(ctx context.Context, k *OwnKeys) error
	GetOwnKeys(ctx context.Context) (*OwnKeys, error)
	DeleteOwnKeys(ctx context.Context) error
}

// ContactsStore persists known parties and their verification state.
type ContactsStore interface {
	SaveContact(ctx context.Context, c *Contact) error
	GetContact(ctx context.Context, fp [16]byte) (*Contact, error)
	AllContacts(ctx context.Context) ([]*Contact, error)
	ContactsWhere(ctx context.Context, v Verification) ([]*Contact, error)
	VerifyContact(ctx context.Context, fp [16]byte) error
	MarkCompromised(ctx context.Context, fp [16]byte, reason string) error
	DeleteContact(ctx context.Context, fp [16]byte) error
}

// OutboxStore persists messages this node has sealed and is sending.
type OutboxStore interface {
	AddOutbox(ctx context.Context, e *OutboxEntry) error
	PendingOutbox(ctx context.Context) ([]*OutboxEntry, error)
	OutboxForRecipient(ctx context.Context, fp [16]byte) ([]*OutboxEntry, error)
	UpdateOutboxStatus(ctx context.Context, msgID [32]byte, status OutboxStatus) error
	RemoveOutbox(ctx context.Context, msgID [32]byte) error
}

// InboxStore persists successfully decrypted messages.
type InboxStore interface {
	AddInbox(ctx context.Context, e *InboxEntry) error
	AllInbox(ctx context.Context) ([]*InboxEntry, error) // sorted by ReceivedAt descending
	UnreadInbox(ctx context.Context) ([]*InboxEntry, error)
	InboxFromSender(ctx context.Context, fp [16]byte) ([]*InboxEntry, error)
	InboxByType(ctx context.Context, payloadType string) ([]*InboxEntry, error)
	MarkRead(ctx context.Context, msgID [32]byte) error
	DeleteInbox(ctx context.Context, msgID [32]byte) error
}

// SeenStore implements the replay-protection dedup set. CheckAndMark MUST
// be atomic and linearizable per (msgID, senderFp): a same-pair
// concurrent call on two goroutines must produce exactly one true and one
// false (spec.md §5, §8).
type SeenStore interface {
	CheckAndMark(ctx context.Context, msgID [32]byte, senderFp [16]byte) (allowed bool, err error)
	HasSeen(ctx context.Context, msgID [32]byte, senderFp [16]byte) (bool, error)
	CleanupSeen(ctx context.Context, maxAge time.Duration) (removed int, err error)
}

// ForwardedStore tracks which peers have already received which messages,
// suppressing redundant sync offers.
type ForwardedStore interface {
	MarkForwarded(ctx context.Context, peerFp [16]byte, msgID [32]byte) error
	WasForwarded(ctx context.Context, peerFp [16]byte, msgID [32]byte) (bool, error)
	ForwardedTo(ctx context.Context, peerFp [16]byte) ([][32]byte, error)
}

// ChunksStore buffers partial chunk sets until complete.
type ChunksStore interface {
	// StoreChunk inserts c. If the set for c.MsgID becomes complete (every
	// sequence number in [0,Total) present), it atomically removes the
	// partial entries and returns the complete, sorted set.
	StoreChunk(ctx context.Context, c *PartialChunkEntry) (complete []*PartialChunkEntry, err error)
	CleanupChunks(ctx context.Context, maxAge time.Duration) (removed int, err error)
}

// Maintainer runs periodic cleanup and reports aggregate stats.
type Maintainer interface {
	RunMaintenance(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
}

// Store is the full persistence contract consumed by crypto, chunk, and
// sync (spec.md §4.4, §6.3, §6.4).
type Store interface {
	KeysStore
	ContactsStore
	OutboxStore
	InboxStore
	SeenStore
	ForwardedStore
	ChunksStore
	Maintainer

	Close() error
}
