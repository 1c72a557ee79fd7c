package transport

import (
	"sort"

	"github.com/dmesh-net/dmesh-core/chunk"
	"github.com/dmesh-net/dmesh-core/wire"
	"github.com/sirupsen/logrus"
)

// QRMaxFrameSize is the conservative per-frame payload ceiling a printed
// or displayed QR code can reliably carry and a phone camera can decode,
// matching chunk.MaxSizeQR (spec.md §4.3/§4.5).
const QRMaxFrameSize = chunk.MaxSizeQR

// QRTransport implements the QR adapter of spec.md §4.5: one-way per
// sweep, chunked, event-driven reception. Rendering frames to an actual
// QR image and scanning them back is the embedding application's job
// (no pack example carries an image/QR codec); this adapter only owns
// the chunk assembly and progress bookkeeping around strings the
// application has already rendered or already scanned.
type QRTransport struct {
	partial map[string]map[int]*wire.Chunk // msgID -> seq -> chunk
}

func NewQRTransport() *QRTransport {
	return &QRTransport{partial: make(map[string]map[int]*wire.Chunk)}
}

func (q *QRTransport) Name() string { return "qr" }

func (q *QRTransport) Capabilities() Capabilities {
	return Capabilities{
		MaxPayloadSize:   QRMaxFrameSize,
		SupportsChunking: true,
		Bidirectional:    false,
		Realtime:         false,
		Offline:          true,
		PeerDiscovery:    false,
	}
}

// Send returns the list of JSON strings to render as successive QR
// frames. A MessageEnvelope smaller than one frame still goes through the
// chunker so reception always sees a uniform chunked stream rather than
// a small/large special case. Any other document (a PublicIdentity) is
// returned unchunked as a single JSON string, which ProcessScanned does
// not accept.
func (q *QRTransport) Send(doc SendableDocument) ([]string, error) {
	logger := logrus.WithFields(logrus.Fields{"function": "Send", "package": "transport", "transport": "qr"})

	env, ok := doc.(*wire.MessageEnvelope)
	if !ok {
		data, err := doc.MarshalCanonical()
		if err != nil {
			return nil, wire.ErrTransportError.WithDetail(err)
		}
		return []string{string(data)}, nil
	}

	chunks, err := chunk.Split(env, QRMaxFrameSize)
	if err != nil {
		return nil, wire.ErrTransportError.WithDetail(err)
	}
	frames := make([]string, 0, len(chunks))
	for _, c := range chunks {
		data, err := c.MarshalCanonical()
		if err != nil {
			return nil, wire.ErrTransportError.WithDetail(err)
		}
		frames = append(frames, string(data))
	}
	logger.WithField("frames", len(frames)).Debug("envelope split into QR frames")
	return frames, nil
}

// Receive is unused for QR: reception is driven by ProcessScanned, since
// scans arrive one at a time from an external camera loop rather than in
// a batch the transport can poll.
func (q *QRTransport) Receive() ([]ReceivedItem, error) { return nil, nil }

// ProcessScanned ingests one scanned frame's raw text. It returns a
// reassembled envelope once every sequence number for that msg_id has
// arrived, or (nil, false) while still collecting.
func (q *QRTransport) ProcessScanned(data string) (*wire.MessageEnvelope, bool, error) {
	c, err := wire.ParseChunk([]byte(data))
	if err != nil {
		return nil, false, err
	}

	set, ok := q.partial[c.MsgID]
	if !ok {
		set = make(map[int]*wire.Chunk)
		q.partial[c.MsgID] = set
	}
	set[c.Seq] = c

	if len(set) != c.Total {
		return nil, false, nil
	}
	ordered := make([]*wire.Chunk, 0, c.Total)
	for seq := 0; seq < c.Total; seq++ {
		chk, present := set[seq]
		if !present {
			return nil, false, nil
		}
		ordered = append(ordered, chk)
	}

	env, err := chunk.Reassemble(ordered)
	if err != nil {
		return nil, false, err
	}
	delete(q.partial, c.MsgID)
	return env, true, nil
}

// ChunkProgress reports which sequence numbers have arrived and which are
// still outstanding for msgID, per spec.md §4.5's get_chunk_progress.
type ChunkProgress struct {
	Total     int
	Received  []int
	Missing   []int
}

func (q *QRTransport) GetChunkProgress(msgID string) ChunkProgress {
	set, ok := q.partial[msgID]
	if !ok || len(set) == 0 {
		return ChunkProgress{}
	}
	var total int
	for _, c := range set {
		total = c.Total
		break
	}
	received := make([]int, 0, len(set))
	for seq := range set {
		received = append(received, seq)
	}
	sort.Ints(received)
	missing := make([]int, 0)
	for seq := 0; seq < total; seq++ {
		if _, present := set[seq]; !present {
			missing = append(missing, seq)
		}
	}
	return ChunkProgress{Total: total, Received: received, Missing: missing}
}

func (q *QRTransport) StartListening() error { return nil }
func (q *QRTransport) StopListening() error  { return nil }
func (q *QRTransport) IsAvailable() bool     { return true }
