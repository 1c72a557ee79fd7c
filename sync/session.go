package sync

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmesh-net/dmesh-core/crypto"
	"github.com/dmesh-net/dmesh-core/store"
	"github.com/dmesh-net/dmesh-core/wire"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Conn is the bidirectional, message-framed channel a sync Session runs
// over. It is deliberately narrower than transport.Transport: sync frames
// are exchanged in a tight back-and-forth over one live connection,
// whereas transport.Transport models store-and-forward media. An
// embedding application bridges the two (e.g. a direct socket, or a
// transport.Transport pair connected out of band).
type Conn interface {
	SendFrame(data []byte) error
	ReceiveFrame(ctx context.Context) ([]byte, error)
}

// Identity is this node's signing/box material and advertised
// capabilities, supplied to RunSession.
type Identity struct {
	SignKP       *crypto.SigningKeyPair
	BoxKP        *crypto.BoxKeyPair
	Fingerprint  [16]byte
	Capabilities wire.Capabilities
	// DecryptPolicy governs how received envelopes are validated before
	// being written to the inbox; Replay is overridden internally since
	// the session already owns seen.CheckAndMark sequencing.
	DecryptPolicy crypto.DecryptPolicy
}

// SessionLimits bounds the resources one sync session may consume,
// spec.md §4.6's validation rules.
type SessionLimits struct {
	InventoryCap int // additional cap beyond the peer's own max_inv_count
	MaxBytes     int // this node's own want-list byte budget
	FrameTimeout time.Duration
	// Limiter bounds how many sessions a single peer may start within a
	// window ("rate-limit sessions per peer", spec.md §4.6). Nil disables
	// rate limiting (tests only).
	Limiter *RateLimiter
	// Metrics records session outcomes and item counts to Prometheus.
	// Nil disables metrics.
	Metrics *SessionMetrics
}

// SessionResult summarizes one completed session for logging/metrics.
type SessionResult struct {
	SessionID      string
	PeerFp         [16]byte
	ItemsOffered   int
	ItemsRequested int
	ItemsReceived  int
	ItemsConfirmed int
}

// RunSession drives one symmetric HELLO/INV/GET/DATA/ACK exchange with a
// peer over conn, per spec.md §4.6's state machine. Both sides run this
// same function concurrently over their respective ends of the
// connection; the phases are strictly ordered within a session but the
// GET/DATA/ACK leg each side drives runs independently of the other's.
func RunSession(ctx context.Context, conn Conn, self Identity, st store.Store, limits SessionLimits, now func() int64) (result *SessionResult, err error) {
	sessionID := uuid.New().String()
	logger := logrus.WithFields(logrus.Fields{
		"function": "RunSession", "package": "sync", "session_id": sessionID,
	})
	logger.Debug("sync session starting")
	defer func() { limits.Metrics.observe(result, err) }()

	// --- HELLO ---
	hello := &wire.HelloFrame{
		V: 1, Kind: wire.KindSyncHello, Ts: now(),
		PeerFp: wire.B64(self.Fingerprint[:]), PeerSignPK: wire.B64(self.SignKP.Public[:]),
		Capabilities: wire.Capabilities{
			MaxMsgSize: self.Capabilities.MaxMsgSize, MaxInvCount: self.Capabilities.MaxInvCount,
			MaxChunks: self.Capabilities.MaxChunks, SupportedKinds: self.Capabilities.SupportedKinds,
			ProtocolVersion: self.Capabilities.ProtocolVersion,
		},
	}
	if err := signHello(hello, self.SignKP); err != nil {
		return nil, err
	}
	if err := sendJSON(conn, hello); err != nil {
		return nil, wire.ErrTransportError.WithDetail(err)
	}

	peerHelloRaw, err := conn.ReceiveFrame(ctx)
	if err != nil {
		return nil, wire.ErrTransportError.WithDetail(err)
	}
	var peerHello wire.HelloFrame
	if err := json.Unmarshal(peerHelloRaw, &peerHello); err != nil {
		return nil, wire.ErrJsonParseFailed.WithDetail(err)
	}
	if peerHello.V != 1 || peerHello.Kind != wire.KindSyncHello {
		return nil, wire.ErrInvalidMessageFormat
	}
	peerSignPK, err := wire.B64DecodeLen(peerHello.PeerSignPK, crypto.SignPKLen)
	if err != nil {
		return nil, err
	}
	if err := verifyHello(&peerHello, peerSignPK); err != nil {
		logger.WithError(err).Warn("peer hello signature invalid, aborting session")
		return nil, err
	}
	var peerFp [16]byte
	copy(peerFp[:], mustB64Decode(peerHello.PeerFp))

	// Rate-limit sessions per peer (spec.md §4.6 validation rules). This
	// is the earliest point a peer's identity is authenticated (the
	// signature over HELLO has just been verified), so it is also the
	// earliest point a per-peer limit can be enforced; the session aborts
	// here, before any inventory is built or sent.
	if limits.Limiter != nil && !limits.Limiter.Allow(peerFp, time.UnixMilli(now())) {
		logger.WithField("peer_fp", wire.Preview(peerFp[:], 8)).Warn("peer exceeded sync session rate limit, aborting session")
		return nil, wire.ErrSessionRateLimited
	}

	// --- INV ---
	items, err := BuildInventory(ctx, st, peerFp, now(), peerHello.Capabilities.MaxInvCount, limits.InventoryCap)
	if err != nil {
		return nil, err
	}
	inv := &wire.InvFrame{V: 1, Kind: wire.KindSyncInv, Ts: now(), Items: items}
	if err := signInv(inv, self.SignKP); err != nil {
		return nil, err
	}
	if err := sendJSON(conn, inv); err != nil {
		return nil, wire.ErrTransportError.WithDetail(err)
	}

	peerInvRaw, err := conn.ReceiveFrame(ctx)
	if err != nil {
		return nil, wire.ErrTransportError.WithDetail(err)
	}
	var peerInv wire.InvFrame
	if err := json.Unmarshal(peerInvRaw, &peerInv); err != nil {
		return nil, wire.ErrJsonParseFailed.WithDetail(err)
	}
	if peerInv.V != 1 || peerInv.Kind != wire.KindSyncInv {
		return nil, wire.ErrInvalidMessageFormat
	}
	if len(peerInv.Items) > self.Capabilities.MaxInvCount {
		return nil, wire.ErrInvalidMessageFormat
	}
	if err := verifyInv(&peerInv, peerSignPK); err != nil {
		logger.WithError(err).Warn("peer inv signature invalid, aborting session")
		return nil, err
	}

	nowMs := now()
	liveItems := make([]wire.InvItem, 0, len(peerInv.Items))
	for _, it := range peerInv.Items {
		if it.Exp != 0 && it.Exp < nowMs {
			continue
		}
		liveItems = append(liveItems, it)
	}

	// --- GET ---
	want := SelectWant(liveItems, func(msgIDB64 string) bool {
		raw, err := wire.B64Decode(msgIDB64)
		if err != nil || len(raw) != crypto.MessageIDLen {
			return true // malformed id, treat as unwanted
		}
		var id [32]byte
		copy(id[:], raw)
		seen, _ := st.HasSeen(ctx, id, peerFp)
		return seen
	}, limits.MaxBytes)

	get := &wire.GetFrame{V: 1, Kind: wire.KindSyncGet, Ts: now(), Want: want, MaxBytes: limits.MaxBytes}
	if err := signGet(get, self.SignKP); err != nil {
		return nil, err
	}
	if err := sendJSON(conn, get); err != nil {
		return nil, wire.ErrTransportError.WithDetail(err)
	}

	peerGetRaw, err := conn.ReceiveFrame(ctx)
	if err != nil {
		return nil, wire.ErrTransportError.WithDetail(err)
	}
	var peerGet wire.GetFrame
	if err := json.Unmarshal(peerGetRaw, &peerGet); err != nil {
		return nil, wire.ErrJsonParseFailed.WithDetail(err)
	}
	if peerGet.V != 1 || peerGet.Kind != wire.KindSyncGet {
		return nil, wire.ErrInvalidMessageFormat
	}
	if err := verifyGet(&peerGet, peerSignPK); err != nil {
		logger.WithError(err).Warn("peer get signature invalid, aborting session")
		return nil, err
	}

	// --- DATA ---
	dataUnits, err := buildDataUnits(ctx, st, peerGet.Want, peerHello.Capabilities.MaxMsgSize, peerHello.Capabilities.MaxChunks, peerGet.MaxBytes)
	if err != nil {
		return nil, err
	}
	data := &wire.DataFrame{V: 1, Kind: wire.KindSyncData, Ts: now(), Messages: dataUnits}
	if err := signData(data, self.SignKP); err != nil {
		return nil, err
	}
	if err := sendJSON(conn, data); err != nil {
		return nil, wire.ErrTransportError.WithDetail(err)
	}

	peerDataRaw, err := conn.ReceiveFrame(ctx)
	if err != nil {
		return nil, wire.ErrTransportError.WithDetail(err)
	}
	var peerData wire.DataFrame
	if err := json.Unmarshal(peerDataRaw, &peerData); err != nil {
		return nil, wire.ErrJsonParseFailed.WithDetail(err)
	}
	if peerData.V != 1 || peerData.Kind != wire.KindSyncData {
		return nil, wire.ErrInvalidMessageFormat
	}
	if len(peerData.Messages) > self.Capabilities.MaxChunks {
		return nil, wire.ErrInvalidMessageFormat
	}
	if limits.MaxBytes > 0 && dataUnitsBytes(peerData.Messages) > limits.MaxBytes {
		return nil, wire.ErrInvalidMessageFormat
	}
	if err := verifyData(&peerData, peerSignPK); err != nil {
		logger.WithError(err).Warn("peer data signature invalid, aborting session")
		return nil, err
	}

	received, err := ingestData(ctx, st, peerData.Messages, peerFp, nowMs, self)
	if err != nil {
		return nil, err
	}

	// --- ACK ---
	ackIDs := make([]string, 0, len(received))
	for _, id := range received {
		ackIDs = append(ackIDs, wire.B64(id[:]))
	}
	ack := &wire.AckFrame{V: 1, Kind: wire.KindSyncAck, Ts: now(), Received: ackIDs}
	if err := signAck(ack, self.SignKP); err != nil {
		return nil, err
	}
	if err := sendJSON(conn, ack); err != nil {
		return nil, wire.ErrTransportError.WithDetail(err)
	}

	peerAckRaw, err := conn.ReceiveFrame(ctx)
	if err != nil {
		return nil, wire.ErrTransportError.WithDetail(err)
	}
	var peerAck wire.AckFrame
	if err := json.Unmarshal(peerAckRaw, &peerAck); err != nil {
		return nil, wire.ErrJsonParseFailed.WithDetail(err)
	}
	if peerAck.V != 1 || peerAck.Kind != wire.KindSyncAck {
		return nil, wire.ErrInvalidMessageFormat
	}
	if err := verifyAck(&peerAck, peerSignPK); err != nil {
		logger.WithError(err).Warn("peer ack signature invalid, aborting session")
		return nil, err
	}

	confirmed := 0
	for _, idB64 := range peerAck.Received {
		raw, err := wire.B64DecodeLen(idB64, crypto.MessageIDLen)
		if err != nil {
			continue
		}
		var id [32]byte
		copy(id[:], raw)
		if err := st.MarkForwarded(ctx, peerFp, id); err != nil {
			return nil, err
		}
		confirmed++
	}

	logger.WithFields(logrus.Fields{
		"items_offered":   len(items),
		"items_requested": len(peerGet.Want),
		"items_received":  len(received),
		"items_confirmed": confirmed,
	}).Info("sync session complete")

	return &SessionResult{
		SessionID: sessionID, PeerFp: peerFp,
		ItemsOffered: len(items), ItemsRequested: len(peerGet.Want),
		ItemsReceived: len(received), ItemsConfirmed: confirmed,
	}, nil
}

func sendJSON(conn Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.SendFrame(data)
}

func mustB64Decode(s string) []byte {
	b, err := wire.B64Decode(s)
	if err != nil {
		return nil
	}
	return b
}

// buildDataUnits loads each requested msg_id from the outbox, chunking
// any envelope larger than maxMsgSize, and caps both the total unit
// count to maxChunks and the cumulative bytes emitted to maxBytes
// (spec.md §4.6 "data emission"; maxBytes is the peer's own sync-get
// max_bytes, so this node never sends more than the peer asked for).
// maxBytes <= 0 disables the byte cap.
func buildDataUnits(ctx context.Context, st store.Store, want []string, maxMsgSize, maxChunks, maxBytes int) ([]wire.DataUnit, error) {
	units := make([]wire.DataUnit, 0, len(want))
	usedBytes := 0
	fits := func(n int) bool { return maxBytes <= 0 || usedBytes+n <= maxBytes }

	for _, idB64 := range want {
		if len(units) >= maxChunks {
			break
		}
		raw, err := wire.B64DecodeLen(idB64, crypto.MessageIDLen)
		if err != nil {
			continue
		}
		var id [32]byte
		copy(id[:], raw)

		entries, err := st.PendingOutbox(ctx)
		if err != nil {
			return nil, err
		}
		var envelope []byte
		for _, e := range entries {
			if e.MsgID == id {
				envelope = e.MessageEnvelope
				break
			}
		}
		if envelope == nil {
			continue
		}

		if maxMsgSize <= 0 || len(envelope) <= maxMsgSize {
			if !fits(len(envelope)) {
				continue
			}
			env, err := wire.ParseMessageEnvelope(envelope)
			if err != nil {
				continue
			}
			units = append(units, wire.DataUnit{Envelope: env})
			usedBytes += len(envelope)
			continue
		}

		env, err := wire.ParseMessageEnvelope(envelope)
		if err != nil {
			continue
		}
		chunks, err := splitForSync(env, maxMsgSize)
		if err != nil {
			continue
		}
		for _, c := range chunks {
			if len(units) >= maxChunks {
				break
			}
			n := len(c.Data)
			if !fits(n) {
				continue
			}
			units = append(units, wire.DataUnit{Chunk: c})
			usedBytes += n
		}
	}
	return units, nil
}

// dataUnitsBytes sums the serialized size of a sync-data frame's units,
// for enforcing "total bytes <= max_bytes" against our own request
// (spec.md §4.6 validation rules) independent of the per-unit size and
// max_chunks count checks.
func dataUnitsBytes(units []wire.DataUnit) int {
	total := 0
	for _, u := range units {
		switch {
		case u.Envelope != nil:
			if raw, err := u.Envelope.MarshalCanonical(); err == nil {
				total += len(raw)
			}
		case u.Chunk != nil:
			total += len(u.Chunk.Data)
		}
	}
	return total
}

// ingestData verifies each received envelope/chunk and returns the
// msg_ids to acknowledge. Chunks are buffered via the store's
// partial-chunk table until complete. An envelope addressed to a
// different recipient (RecipientMismatch) is acknowledged but not
// written to the inbox: dmesh-core does not implement multi-hop relay,
// so a node only ever materializes messages addressed to its own box
// key, but it still reports receipt so the peer stops re-offering an
// item this node can never decrypt.
func ingestData(ctx context.Context, st store.Store, units []wire.DataUnit, peerFp [16]byte, nowMs int64, self Identity) ([][32]byte, error) {
	logger := logrus.WithFields(logrus.Fields{"function": "ingestData", "package": "sync"})
	received := make([][32]byte, 0, len(units))
	for _, u := range units {
		var env *wire.MessageEnvelope
		switch {
		case u.Envelope != nil:
			env = u.Envelope
		case u.Chunk != nil:
			complete, err := reassembleViaStore(ctx, st, u.Chunk)
			if err != nil {
				continue
			}
			if complete == nil {
				continue
			}
			env = complete
		default:
			continue
		}

		ct, err := wire.B64Decode(env.Ciphertext)
		if err != nil {
			continue
		}
		msgID := crypto.MessageID(ct)
		if env.Exp != 0 && env.Exp < nowMs {
			continue
		}

		policy := self.DecryptPolicy
		policy.Replay = func(id [crypto.MessageIDLen]byte, senderFp [crypto.FingerprintLen]byte) bool {
			allowed, err := st.CheckAndMark(ctx, id, senderFp)
			if err != nil {
				logger.WithError(err).Error("check_and_mark failed during sync ingest")
				return false
			}
			return allowed
		}

		result, err := crypto.Decrypt(env, self.BoxKP, policy)
		if err != nil {
			if errors.Is(err, wire.ErrRecipientMismatch) {
				// Addressed to someone else; this node has nowhere to
				// relay it (no multi-hop relay), but the bytes were
				// durably received, so it's acknowledged to stop the
				// peer re-offering it every session.
				received = append(received, msgID)
				continue
			}
			logger.WithError(err).Debug("dropping undeliverable envelope during sync ingest")
			continue
		}

		canonical, err := env.MarshalCanonical()
		if err != nil {
			return nil, err
		}
		if err := st.AddInbox(ctx, &store.InboxEntry{
			MsgID: msgID, SenderFp: result.SenderFp, Content: result.Content,
			PayloadType: result.PayloadType, Payload: result.Payload, Ts: result.Ts,
			ReceivedAt: time.UnixMilli(nowMs), OriginalEnvelope: canonical,
		}); err != nil {
			return nil, err
		}
		received = append(received, msgID)
	}
	return received, nil
}
