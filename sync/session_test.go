package sync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmesh-net/dmesh-core/crypto"
	"github.com/dmesh-net/dmesh-core/store"
	"github.com/dmesh-net/dmesh-core/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type party struct {
	signKP *crypto.SigningKeyPair
	boxKP  *crypto.BoxKeyPair
	fp     [16]byte
	store  store.Store
}

func newParty(t *testing.T) *party {
	t.Helper()
	signKP, err := crypto.GenerateSignKeyPair()
	require.NoError(t, err)
	boxKP, err := crypto.GenerateBoxKeyPair()
	require.NoError(t, err)
	return &party{signKP: signKP, boxKP: boxKP, fp: crypto.Fingerprint(signKP.Public[:]), store: store.NewMemStore()}
}

func defaultCaps() wire.Capabilities {
	return wire.Capabilities{MaxMsgSize: 64 * 1024, MaxInvCount: 50, MaxChunks: 50, SupportedKinds: []string{"text"}, ProtocolVersion: 1}
}

func runPairedSessions(t *testing.T, alice, bob *party, limits SessionLimits) (*SessionResult, *SessionResult) {
	t.Helper()
	connA, connB := NewPipe()
	now := func() int64 { return time.Now().UnixMilli() }

	var aliceResult, bobResult *SessionResult
	var aliceErr, bobErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		aliceResult, aliceErr = RunSession(context.Background(), connA, Identity{
			SignKP: alice.signKP, BoxKP: alice.boxKP, Fingerprint: alice.fp, Capabilities: defaultCaps(),
			DecryptPolicy: crypto.DecryptPolicy{Mode: crypto.DelayTolerant},
		}, alice.store, limits, now)
	}()
	go func() {
		defer wg.Done()
		bobResult, bobErr = RunSession(context.Background(), connB, Identity{
			SignKP: bob.signKP, BoxKP: bob.boxKP, Fingerprint: bob.fp, Capabilities: defaultCaps(),
			DecryptPolicy: crypto.DecryptPolicy{Mode: crypto.DelayTolerant},
		}, bob.store, limits, now)
	}()
	wg.Wait()
	require.NoError(t, aliceErr)
	require.NoError(t, bobErr)
	return aliceResult, bobResult
}

func addOutboxMessage(t *testing.T, p *party, content string, recipientBoxPK [32]byte) [32]byte {
	t.Helper()
	env, err := crypto.Encrypt(content, p.signKP, p.boxKP, recipientBoxPK, crypto.EncryptOptions{Ts: time.Now().UnixMilli()})
	require.NoError(t, err)
	ct, err := wire.B64Decode(env.Ciphertext)
	require.NoError(t, err)
	msgID := crypto.MessageID(ct)
	canonical, err := env.MarshalCanonical()
	require.NoError(t, err)
	require.NoError(t, p.store.AddOutbox(context.Background(), &store.OutboxEntry{
		MsgID: msgID, RecipientFp: crypto.Fingerprint(p.signKP.Public[:]), MessageEnvelope: canonical,
		CreatedAt: time.Now(), Status: store.StatusPending, Exp: env.Exp, PayloadType: "text",
	}))
	return msgID
}

func TestRunSession_DeliversAliceMessageToBob(t *testing.T) {
	alice := newParty(t)
	bob := newParty(t)

	msgID := addOutboxMessage(t, alice, "Hello, Bob!", bob.boxKP.Public)

	limits := SessionLimits{InventoryCap: 50, MaxBytes: 1 << 20, FrameTimeout: time.Second}
	aliceRes, bobRes := runPairedSessions(t, alice, bob, limits)

	assert.Equal(t, 1, aliceRes.ItemsOffered)
	assert.Equal(t, 1, bobRes.ItemsReceived)

	inbox, err := bob.store.AllInbox(context.Background())
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "Hello, Bob!", inbox[0].Content)
	assert.Equal(t, msgID, inbox[0].MsgID)

	was, err := alice.store.WasForwarded(context.Background(), bob.fp, msgID)
	require.NoError(t, err)
	assert.True(t, was, "alice must mark the message forwarded once bob acks it")
}

// TestRunSession_ForwardedSuppression is spec.md §8 testable property 10:
// after ACK of msg_id X from peer P, a subsequent inventory build MUST
// NOT offer X to that same peer again.
func TestRunSession_ForwardedSuppression(t *testing.T) {
	alice := newParty(t)
	bob := newParty(t)

	msgID := addOutboxMessage(t, alice, "Hello again", bob.boxKP.Public)

	limits := SessionLimits{InventoryCap: 50, MaxBytes: 1 << 20, FrameTimeout: time.Second}
	aliceRes1, _ := runPairedSessions(t, alice, bob, limits)
	require.Equal(t, 1, aliceRes1.ItemsOffered)

	items, err := BuildInventory(context.Background(), alice.store, bob.fp, time.Now().UnixMilli(), 50, 50)
	require.NoError(t, err)
	for _, it := range items {
		assert.NotEqual(t, wire.B64(msgID[:]), it.MsgID, "forwarded message must not reappear in inventory")
	}
}

func TestBuildInventory_DropsExpired(t *testing.T) {
	alice := newParty(t)
	bob := newParty(t)
	ctx := context.Background()

	env, err := crypto.Encrypt("expiring", alice.signKP, alice.boxKP, bob.boxKP.Public, crypto.EncryptOptions{Ts: 1, TTLMs: 1})
	require.NoError(t, err)
	ct, _ := wire.B64Decode(env.Ciphertext)
	msgID := crypto.MessageID(ct)
	canonical, _ := env.MarshalCanonical()
	require.NoError(t, alice.store.AddOutbox(ctx, &store.OutboxEntry{
		MsgID: msgID, RecipientFp: bob.fp, MessageEnvelope: canonical,
		CreatedAt: time.Now(), Status: store.StatusPending, Exp: env.Exp, PayloadType: "text",
	}))

	items, err := BuildInventory(ctx, alice.store, bob.fp, time.Now().UnixMilli(), 50, 50)
	require.NoError(t, err)
	assert.Len(t, items, 0)
}

func TestSelectWant_RespectsByteBudgetAndPriority(t *testing.T) {
	items := []wire.InvItem{
		{MsgID: "low", Exp: 1000, Size: 100, Priority: 1},
		{MsgID: "high", Exp: 1000, Size: 100, Priority: 5},
	}
	want := SelectWant(items, func(string) bool { return false }, 100)
	require.Len(t, want, 1)
	assert.Equal(t, "high", want[0])
}

func TestRateLimiter_BlocksExcessSessions(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	var fp [16]byte
	now := time.Now()
	assert.True(t, rl.Allow(fp, now))
	assert.True(t, rl.Allow(fp, now))
	assert.False(t, rl.Allow(fp, now))
}

// TestRunSession_RateLimited checks that RunSession itself, not just
// RateLimiter.Allow in isolation, aborts a session once a peer's limiter
// denies it, before any inventory is built.
func TestRunSession_RateLimited(t *testing.T) {
	alice := newParty(t)
	bob := newParty(t)
	connA, connB := NewPipe()
	now := func() int64 { return time.Now().UnixMilli() }

	limits := SessionLimits{
		InventoryCap: 50, MaxBytes: 1 << 20, FrameTimeout: time.Second,
		Limiter: NewRateLimiter(0, time.Minute),
	}

	var aliceErr, bobErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, aliceErr = RunSession(context.Background(), connA, Identity{
			SignKP: alice.signKP, BoxKP: alice.boxKP, Fingerprint: alice.fp, Capabilities: defaultCaps(),
			DecryptPolicy: crypto.DecryptPolicy{Mode: crypto.DelayTolerant},
		}, alice.store, limits, now)
	}()
	go func() {
		defer wg.Done()
		_, bobErr = RunSession(context.Background(), connB, Identity{
			SignKP: bob.signKP, BoxKP: bob.boxKP, Fingerprint: bob.fp, Capabilities: defaultCaps(),
			DecryptPolicy: crypto.DecryptPolicy{Mode: crypto.DelayTolerant},
		}, bob.store, limits, now)
	}()
	wg.Wait()

	assert.ErrorIs(t, aliceErr, wire.ErrSessionRateLimited)
	assert.ErrorIs(t, bobErr, wire.ErrSessionRateLimited)
}

func TestBuildDataUnits_RespectsMaxBytes(t *testing.T) {
	alice := newParty(t)
	bob := newParty(t)
	ctx := context.Background()

	ids := make([][32]byte, 0, 3)
	for i := 0; i < 3; i++ {
		ids = append(ids, addOutboxMessage(t, alice, fmt.Sprintf("padding padding padding message %d", i), bob.boxKP.Public))
	}
	want := make([]string, len(ids))
	for i, id := range ids {
		want[i] = wire.B64(id[:])
	}

	entries, err := alice.store.PendingOutbox(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	oneSize := len(entries[0].MessageEnvelope)
	budget := oneSize + oneSize/2 // room for one full unit, not two

	units, err := buildDataUnits(ctx, alice.store, want, 64*1024, 50, budget)
	require.NoError(t, err)
	assert.Less(t, len(units), len(ids), "max_bytes must cap the number of units emitted")
	assert.LessOrEqual(t, dataUnitsBytes(units), budget)
}
