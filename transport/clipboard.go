package transport

import (
	"github.com/dmesh-net/dmesh-core/wire"
	"github.com/sirupsen/logrus"
)

// ClipboardBackend abstracts the host's system clipboard. No pack example
// carries a clipboard-access library and OS clipboard access is
// inherently platform-specific (cgo on Linux/macOS, syscalls on Windows);
// the embedding application supplies the concrete backend (for example
// wrapping atotto/clipboard or a platform API) and the core stays free of
// that dependency, matching spec.md §6.3's "Transport (pluggable I/O)"
// boundary.
type ClipboardBackend interface {
	Read() (string, error)
	Write(text string) error
}

// MemoryClipboard is an in-process ClipboardBackend for tests and for
// embeddings that pass data between local peers without touching an
// actual OS clipboard.
type MemoryClipboard struct {
	content string
}

func (m *MemoryClipboard) Read() (string, error)    { return m.content, nil }
func (m *MemoryClipboard) Write(text string) error  { m.content = text; return nil }

// ClipboardTransport implements the Clipboard adapter of spec.md §4.5:
// bidirectional, unlimited payload, no chunking. Send writes one
// canonical JSON string; Receive reads back whatever is currently on the
// clipboard and parses it if it looks like a dmesh document.
type ClipboardTransport struct {
	backend   ClipboardBackend
	listening bool
	lastSeen  string
}

// NewClipboardTransport wraps backend. Pass &MemoryClipboard{} for
// in-process use, or an OS-backed implementation supplied by the
// embedding application.
func NewClipboardTransport(backend ClipboardBackend) *ClipboardTransport {
	return &ClipboardTransport{backend: backend}
}

func (c *ClipboardTransport) Name() string { return "clipboard" }

func (c *ClipboardTransport) Capabilities() Capabilities {
	return Capabilities{
		MaxPayloadSize:   0, // unbounded
		SupportsChunking: false,
		Bidirectional:    true,
		Realtime:         false,
		Offline:          true,
		PeerDiscovery:    false,
	}
}

func (c *ClipboardTransport) Send(doc SendableDocument) ([]string, error) {
	logger := logrus.WithFields(logrus.Fields{"function": "Send", "package": "transport", "transport": "clipboard"})
	data, err := doc.MarshalCanonical()
	if err != nil {
		return nil, wire.ErrTransportError.WithDetail(err)
	}
	text := string(data)
	if err := c.backend.Write(text); err != nil {
		logger.WithError(err).Error("clipboard write failed")
		return nil, wire.ErrTransportError.WithDetail(err)
	}
	logger.WithField("size", len(text)).Debug("wrote document to clipboard")
	return []string{text}, nil
}

// Receive reads the current clipboard contents once. It only ever
// returns a new item when the text differs from the last poll, so
// repeated calls against an unchanged clipboard yield an empty slice
// rather than redelivering the same document forever.
func (c *ClipboardTransport) Receive() ([]ReceivedItem, error) {
	text, err := c.backend.Read()
	if err != nil {
		return nil, wire.ErrTransportError.WithDetail(err)
	}
	if text == "" || text == c.lastSeen {
		return nil, nil
	}
	c.lastSeen = text
	item, ok := parseReceived([]byte(text))
	if !ok {
		return nil, nil
	}
	return []ReceivedItem{item}, nil
}

func (c *ClipboardTransport) StartListening() error { c.listening = true; return nil }
func (c *ClipboardTransport) StopListening() error  { c.listening = false; return nil }
func (c *ClipboardTransport) IsAvailable() bool     { return c.backend != nil }
