package sync

import (
	"context"
	"sort"

	"github.com/dmesh-net/dmesh-core/store"
	"github.com/dmesh-net/dmesh-core/wire"
)

// BuildInventory constructs the sender-side sync-inv item list of
// spec.md §4.6: outbox entries in {Pending, Sent}, minus expired and
// already-forwarded-to-this-peer entries, truncated to
// min(peerMaxInv, cap) keeping the highest-priority / soonest-expiring
// entries.
func BuildInventory(ctx context.Context, st store.Store, peerFp [16]byte, now int64, peerMaxInv, capLimit int) ([]wire.InvItem, error) {
	pending, err := st.PendingOutbox(ctx)
	if err != nil {
		return nil, err
	}
	forwarded, err := st.ForwardedTo(ctx, peerFp)
	if err != nil {
		return nil, err
	}
	already := make(map[[32]byte]bool, len(forwarded))
	for _, id := range forwarded {
		already[id] = true
	}

	items := make([]wire.InvItem, 0, len(pending))
	for _, e := range pending {
		if e.Exp != 0 && e.Exp < now {
			continue
		}
		if already[e.MsgID] {
			continue
		}
		items = append(items, wire.InvItem{
			MsgID:    wire.B64(e.MsgID[:]),
			Exp:      e.Exp,
			Size:     len(e.MessageEnvelope),
			Priority: PriorityOf(e.PayloadType, e.Urgency),
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority > items[j].Priority
		}
		return items[i].Exp < items[j].Exp
	})

	limit := peerMaxInv
	if capLimit > 0 && capLimit < limit {
		limit = capLimit
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// SelectWant implements the receiver-side want selection of spec.md
// §4.6: drop already-seen items, sort by priority descending then exp
// ascending, and accumulate greedily up to maxBytes.
func SelectWant(items []wire.InvItem, alreadySeen func(msgIDB64 string) bool, maxBytes int) []string {
	candidates := make([]wire.InvItem, 0, len(items))
	for _, it := range items {
		if alreadySeen != nil && alreadySeen(it.MsgID) {
			continue
		}
		candidates = append(candidates, it)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].Exp < candidates[j].Exp
	})

	want := make([]string, 0, len(candidates))
	used := 0
	for _, it := range candidates {
		if used+it.Size > maxBytes {
			continue
		}
		want = append(want, it.MsgID)
		used += it.Size
	}
	return want
}
