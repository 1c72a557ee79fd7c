package sync

import (
	"context"
	"time"

	"github.com/dmesh-net/dmesh-core/chunk"
	"github.com/dmesh-net/dmesh-core/store"
	"github.com/dmesh-net/dmesh-core/wire"
)

// splitForSync wraps chunk.Split for the sync engine's data-emission step
// (spec.md §4.6), reusing the Chunker package rather than reimplementing
// splitting logic here.
func splitForSync(env *wire.MessageEnvelope, maxChunkSize int) ([]*wire.Chunk, error) {
	return chunk.Split(env, maxChunkSize)
}

// reassembleViaStore feeds one received chunk into the store's partial
// chunk buffer and, once the set for its msg_id is complete, reassembles
// and returns the envelope. Returns (nil, nil) while still collecting.
func reassembleViaStore(ctx context.Context, st store.Store, c *wire.Chunk) (*wire.MessageEnvelope, error) {
	complete, err := st.StoreChunk(ctx, &store.PartialChunkEntry{
		MsgID: c.MsgID, Seq: c.Seq, Total: c.Total, Data: c.Data, ReceivedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if complete == nil {
		return nil, nil
	}
	chunks := make([]*wire.Chunk, len(complete))
	for i, e := range complete {
		chunks[i] = &wire.Chunk{V: 1, Kind: wire.KindChunk, MsgID: e.MsgID, Seq: e.Seq, Total: e.Total, Data: e.Data}
	}
	return chunk.Reassemble(chunks)
}
