package chunk

import (
	"errors"
	"sort"

	"github.com/dmesh-net/dmesh-core/crypto"
	"github.com/dmesh-net/dmesh-core/wire"
	"github.com/sirupsen/logrus"
)

// ChunkOverhead accounts for the dmesh-chunk envelope JSON around each
// data slice (spec.md §4.3).
const ChunkOverhead = 150

// Recommended transport MTUs, spec.md §4.3.
const (
	MaxSizeQR   = 2048
	MaxSizeSMS  = 1200
	MaxSizeLoRa = 200
	MaxSizeBLE  = 512
)

var (
	// ErrChunkSizeTooSmall is returned when maxChunkSize leaves no room
	// for data after ChunkOverhead.
	ErrChunkSizeTooSmall = errors.New("chunk: max_chunk_size too small for overhead")
	// ErrIncompleteChunks is returned by Reassemble when fewer chunks
	// than Total were supplied.
	ErrIncompleteChunks = errors.New("chunk: incomplete chunk set")
	// ErrMissingSequence is returned by Reassemble when the supplied
	// chunks don't cover [0,total) contiguously.
	ErrMissingSequence = errors.New("chunk: missing sequence number")
)

// Split partitions a serialized envelope into raw slices of
// maxChunkSize-ChunkOverhead bytes each (the last may be shorter), per
// spec.md §4.3. Each slice is base64-encoded into a chunk's Data, so an
// encoded chunk is larger than maxChunkSize.
func Split(env *wire.MessageEnvelope, maxChunkSize int) ([]*wire.Chunk, error) {
	logger := logrus.WithFields(logrus.Fields{"function": "Split", "package": "chunk"})

	dataSize := maxChunkSize - ChunkOverhead
	if dataSize <= 0 {
		return nil, ErrChunkSizeTooSmall
	}

	serialized, err := env.MarshalCanonical()
	if err != nil {
		return nil, wire.ErrJsonParseFailed.WithDetail(err)
	}

	ct, err := wire.B64Decode(env.Ciphertext)
	if err != nil {
		return nil, err
	}
	msgID := crypto.MessageID(ct)
	msgIDB64 := wire.B64(msgID[:])

	total := (len(serialized) + dataSize - 1) / dataSize
	if total == 0 {
		total = 1
	}
	chunks := make([]*wire.Chunk, 0, total)
	for seq := 0; seq < total; seq++ {
		start := seq * dataSize
		end := start + dataSize
		if end > len(serialized) {
			end = len(serialized)
		}
		chunks = append(chunks, &wire.Chunk{
			V:     1,
			Kind:  wire.KindChunk,
			MsgID: msgIDB64,
			Seq:   seq,
			Total: total,
			Data:  wire.B64(serialized[start:end]),
		})
	}

	logger.WithFields(logrus.Fields{
		"total_chunks":    total,
		"serialized_size": len(serialized),
	}).Debug("envelope split into chunks")

	return chunks, nil
}

// Reassemble rebuilds the original envelope from a received chunk set,
// per spec.md §4.3: chunks must share one msg_id and total, and cover
// every sequence number in [0,total) exactly once.
func Reassemble(chunks []*wire.Chunk) (*wire.MessageEnvelope, error) {
	if len(chunks) == 0 {
		return nil, ErrIncompleteChunks
	}

	sorted := make([]*wire.Chunk, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	total := sorted[0].Total
	msgID := sorted[0].MsgID
	if len(sorted) != total {
		return nil, ErrIncompleteChunks
	}

	buf := make([]byte, 0, total*1024)
	for i, c := range sorted {
		if c.MsgID != msgID {
			return nil, wire.ErrMessageIdMismatch
		}
		if c.Total != total {
			return nil, wire.ErrMessageIdMismatch
		}
		if c.Seq != i {
			return nil, ErrMissingSequence
		}
		data, err := wire.B64Decode(c.Data)
		if err != nil {
			return nil, err
		}
		buf = append(buf, data...)
	}

	return wire.ParseMessageEnvelope(buf)
}
