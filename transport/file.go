package transport

import (
	"fmt"

	"github.com/dmesh-net/dmesh-core/wire"
	"github.com/sirupsen/logrus"
)

// FileBackend abstracts writing/reading the byte blobs the File adapter
// produces and consumes. The embedding application supplies the concrete
// filesystem (or removable-media, or attachment-pipe) implementation;
// the core only needs byte-slices in and out.
type FileBackend interface {
	WriteFile(name string, data []byte) error
	ReadFile(name string) ([]byte, error)
}

// FileTransport implements the File adapter of spec.md §4.5: bidirectional,
// no chunking, one document per file named by its content.
type FileTransport struct {
	backend FileBackend
}

func NewFileTransport(backend FileBackend) *FileTransport {
	return &FileTransport{backend: backend}
}

func (f *FileTransport) Name() string { return "file" }

func (f *FileTransport) Capabilities() Capabilities {
	return Capabilities{
		MaxPayloadSize:   0,
		SupportsChunking: false,
		Bidirectional:    true,
		Realtime:         false,
		Offline:          true,
		PeerDiscovery:    false,
	}
}

// FileName derives the canonical file name for doc, per spec.md §4.5:
// "message-<msg_id_prefix>.dmesh" for an envelope, or
// "identity-<fp_prefix>.dmesh" for a public identity.
func FileName(doc SendableDocument) string {
	switch v := doc.(type) {
	case *wire.MessageEnvelope:
		prefix := v.MsgID
		if len(prefix) > 12 {
			prefix = prefix[:12]
		}
		return fmt.Sprintf("message-%s.dmesh", prefix)
	case *wire.PublicIdentity:
		prefix := v.Fp
		if len(prefix) > 12 {
			prefix = prefix[:12]
		}
		return fmt.Sprintf("identity-%s.dmesh", prefix)
	default:
		return "document.dmesh"
	}
}

func (f *FileTransport) Send(doc SendableDocument) ([]string, error) {
	logger := logrus.WithFields(logrus.Fields{"function": "Send", "package": "transport", "transport": "file"})
	data, err := doc.MarshalCanonical()
	if err != nil {
		return nil, wire.ErrTransportError.WithDetail(err)
	}
	name := FileName(doc)
	if err := f.backend.WriteFile(name, data); err != nil {
		logger.WithError(err).Error("file write failed")
		return nil, wire.ErrTransportError.WithDetail(err)
	}
	logger.WithFields(logrus.Fields{"name": name, "size": len(data)}).Debug("wrote document to file")
	return []string{name}, nil
}

// ReceiveFile parses one file's raw bytes into a ReceivedItem. Unlike
// Clipboard/QR, the File adapter has no single well in the file system to
// poll; the embedding application discovers candidate files (new
// attachments, inserted media) on its own and hands each one's bytes to
// ReceiveFile.
func (f *FileTransport) ReceiveFile(data []byte) (ReceivedItem, bool, error) {
	item, ok := parseReceived(data)
	if !ok {
		return ReceivedItem{}, false, wire.ErrInvalidMessageFormat
	}
	return item, true, nil
}

// Receive always returns empty: File has no ambient channel to poll (see
// ReceiveFile).
func (f *FileTransport) Receive() ([]ReceivedItem, error) { return nil, nil }

func (f *FileTransport) StartListening() error { return nil }
func (f *FileTransport) StopListening() error  { return nil }
func (f *FileTransport) IsAvailable() bool     { return f.backend != nil }
