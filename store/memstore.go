package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MemStore is an in-memory reference Store: a mutex-guarded set of maps,
// safe for concurrent use, with no external dependency. It is the
// default choice for tests and for embeddings that don't need
// cross-restart persistence.
type MemStore struct {
	mu sync.Mutex

	ownKeys *OwnKeys

	contacts map[[16]byte]*Contact

	outbox map[[32]byte]*OutboxEntry

	inbox map[[32]byte]*InboxEntry

	seen map[seenKey]time.Time

	forwarded map[forwardedKey]time.Time

	chunks map[string]map[int]*PartialChunkEntry // msgID(base64) -> seq -> entry
}

type seenKey struct {
	msgID    [32]byte
	senderFp [16]byte
}

type forwardedKey struct {
	peerFp [16]byte
	msgID  [32]byte
}

var _ Store = (*MemStore)(nil)

// NewMemStore constructs an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		contacts:  make(map[[16]byte]*Contact),
		outbox:    make(map[[32]byte]*OutboxEntry),
		inbox:     make(map[[32]byte]*InboxEntry),
		seen:      make(map[seenKey]time.Time),
		forwarded: make(map[forwardedKey]time.Time),
		chunks:    make(map[string]map[int]*PartialChunkEntry),
	}
}

func (m *MemStore) Close() error { return nil }

// --- Keys ---

func (m *MemStore) PutOwnKeys(ctx context.Context, k *OwnKeys) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *k
	m.ownKeys = &cp
	return nil
}

func (m *MemStore) GetOwnKeys(ctx context.Context) (*OwnKeys, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ownKeys == nil {
		return nil, ErrNotFound
	}
	cp := *m.ownKeys
	return &cp, nil
}

func (m *MemStore) DeleteOwnKeys(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ownKeys = nil
	return nil
}

// --- Contacts ---

func (m *MemStore) SaveContact(ctx context.Context, c *Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	if existing, ok := m.contacts[c.Fingerprint]; ok {
		// Invariant (spec.md §3): (signing_pk, box_pk) for a known
		// fingerprint must not change silently once recorded.
		if existing.SigningPK != c.SigningPK || existing.BoxPK != c.BoxPK {
			logrus.WithFields(logrus.Fields{
				"function": "SaveContact", "package": "store",
			}).Error("refusing silent key change for existing contact")
			return ErrKeyChangeRefused
		}
	}
	m.contacts[c.Fingerprint] = &cp
	return nil
}

func (m *MemStore) GetContact(ctx context.Context, fp [16]byte) (*Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[fp]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemStore) AllContacts(ctx context.Context) ([]*Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Contact, 0, len(m.contacts))
	for _, c := range m.contacts {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

func (m *MemStore) ContactsWhere(ctx context.Context, v Verification) ([]*Contact, error) {
	all, _ := m.AllContacts(ctx)
	out := make([]*Contact, 0, len(all))
	for _, c := range all {
		if c.Verification == v {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemStore) VerifyContact(ctx context.Context, fp [16]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[fp]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	c.Verification = Verified
	c.VerifiedAt = &now
	c.UpdatedAt = now
	return nil
}

func (m *MemStore) MarkCompromised(ctx context.Context, fp [16]byte, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[fp]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	c.Verification = Compromised
	c.CompromisedAt = &now
	c.CompromisedReason = reason
	c.UpdatedAt = now
	return nil
}

func (m *MemStore) DeleteContact(ctx context.Context, fp [16]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contacts, fp)
	return nil
}

// --- Outbox ---

func (m *MemStore) AddOutbox(ctx context.Context, e *OutboxEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.outbox[e.MsgID] = &cp
	return nil
}

func (m *MemStore) PendingOutbox(ctx context.Context) ([]*OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*OutboxEntry, 0)
	for _, e := range m.outbox {
		if e.Status == StatusPending || e.Status == StatusSent {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemStore) OutboxForRecipient(ctx context.Context, fp [16]byte) ([]*OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*OutboxEntry, 0)
	for _, e := range m.outbox {
		if e.RecipientFp == fp {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemStore) UpdateOutboxStatus(ctx context.Context, msgID [32]byte, status OutboxStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.outbox[msgID]
	if !ok {
		return ErrNotFound
	}
	e.Status = status
	now := time.Now()
	e.LastAttempt = &now
	if status == StatusSent || status == StatusFailed {
		e.Attempts++
	}
	return nil
}

func (m *MemStore) RemoveOutbox(ctx context.Context, msgID [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.outbox, msgID)
	return nil
}

// --- Inbox ---

func (m *MemStore) AddInbox(ctx context.Context, e *InboxEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.inbox[e.MsgID] = &cp
	return nil
}

func (m *MemStore) AllInbox(ctx context.Context) ([]*InboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*InboxEntry, 0, len(m.inbox))
	for _, e := range m.inbox {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	return out, nil
}

func (m *MemStore) UnreadInbox(ctx context.Context) ([]*InboxEntry, error) {
	all, _ := m.AllInbox(ctx)
	out := make([]*InboxEntry, 0)
	for _, e := range all {
		if !e.Read {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemStore) InboxFromSender(ctx context.Context, fp [16]byte) ([]*InboxEntry, error) {
	all, _ := m.AllInbox(ctx)
	out := make([]*InboxEntry, 0)
	for _, e := range all {
		if e.SenderFp == fp {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemStore) InboxByType(ctx context.Context, payloadType string) ([]*InboxEntry, error) {
	all, _ := m.AllInbox(ctx)
	out := make([]*InboxEntry, 0)
	for _, e := range all {
		if e.PayloadType == payloadType {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemStore) MarkRead(ctx context.Context, msgID [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.inbox[msgID]
	if !ok {
		return ErrNotFound
	}
	e.Read = true
	return nil
}

func (m *MemStore) DeleteInbox(ctx context.Context, msgID [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inbox, msgID)
	return nil
}

// --- Seen ---

// CheckAndMark is the one linearizable operation the whole protocol
// leans on (spec.md §5, §8): the mutex makes read-then-write-or-reject
// atomic across goroutines.
func (m *MemStore) CheckAndMark(ctx context.Context, msgID [32]byte, senderFp [16]byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := seenKey{msgID, senderFp}
	if _, exists := m.seen[k]; exists {
		return false, nil
	}
	m.seen[k] = time.Now()
	return true, nil
}

func (m *MemStore) HasSeen(ctx context.Context, msgID [32]byte, senderFp [16]byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[seenKey{msgID, senderFp}]
	return ok, nil
}

func (m *MemStore) CleanupSeen(ctx context.Context, maxAge time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for k, t := range m.seen {
		if t.Before(cutoff) {
			delete(m.seen, k)
			removed++
		}
	}
	return removed, nil
}

// --- Forwarded ---

func (m *MemStore) MarkForwarded(ctx context.Context, peerFp [16]byte, msgID [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forwarded[forwardedKey{peerFp, msgID}] = time.Now()
	return nil
}

func (m *MemStore) WasForwarded(ctx context.Context, peerFp [16]byte, msgID [32]byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.forwarded[forwardedKey{peerFp, msgID}]
	return ok, nil
}

func (m *MemStore) ForwardedTo(ctx context.Context, peerFp [16]byte) ([][32]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][32]byte, 0)
	for k := range m.forwarded {
		if k.peerFp == peerFp {
			out = append(out, k.msgID)
		}
	}
	return out, nil
}

// --- Chunks ---

func (m *MemStore) StoreChunk(ctx context.Context, c *PartialChunkEntry) ([]*PartialChunkEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.chunks[c.MsgID]
	if !ok {
		set = make(map[int]*PartialChunkEntry)
		m.chunks[c.MsgID] = set
	}
	if len(set) >= MaxChunksPerMsgID && set[c.Seq] == nil {
		// Anti-DoS bound (spec.md §9 open question 3): drop the oldest
		// entry to make room rather than growing unbounded.
		var oldestSeq int
		var oldestTime time.Time
		first := true
		for seq, e := range set {
			if first || e.ReceivedAt.Before(oldestTime) {
				oldestSeq, oldestTime, first = seq, e.ReceivedAt, false
			}
		}
		delete(set, oldestSeq)
	}
	cp := *c
	set[c.Seq] = &cp

	if len(set) != c.Total {
		return nil, nil
	}
	for seq := 0; seq < c.Total; seq++ {
		if _, ok := set[seq]; !ok {
			return nil, nil
		}
	}

	complete := make([]*PartialChunkEntry, c.Total)
	for seq := 0; seq < c.Total; seq++ {
		complete[seq] = set[seq]
	}
	delete(m.chunks, c.MsgID)
	return complete, nil
}

func (m *MemStore) CleanupChunks(ctx context.Context, maxAge time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for msgID, set := range m.chunks {
		for seq, e := range set {
			if e.ReceivedAt.Before(cutoff) {
				delete(set, seq)
				removed++
			}
		}
		if len(set) == 0 {
			delete(m.chunks, msgID)
		}
	}
	return removed, nil
}

// --- Maintenance ---

func (m *MemStore) RunMaintenance(ctx context.Context) error {
	if _, err := m.CleanupSeen(ctx, SeenRetention); err != nil {
		return err
	}
	if _, err := m.CleanupChunks(ctx, ChunkMaxAge); err != nil {
		return err
	}
	return nil
}

func (m *MemStore) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chunkCount := 0
	for _, set := range m.chunks {
		chunkCount += len(set)
	}
	return Stats{
		Contacts:      len(m.contacts),
		Outbox:        len(m.outbox),
		Inbox:         len(m.inbox),
		Seen:          len(m.seen),
		Forwarded:     len(m.forwarded),
		PartialChunks: chunkCount,
	}, nil
}
