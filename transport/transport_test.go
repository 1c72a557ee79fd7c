package transport

import (
	"strings"
	"testing"

	"github.com/dmesh-net/dmesh-core/crypto"
	"github.com/dmesh-net/dmesh-core/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestEnvelope(t *testing.T, contentLen int) *wire.MessageEnvelope {
	t.Helper()
	signKP, err := crypto.GenerateSignKeyPair()
	require.NoError(t, err)
	boxKP, err := crypto.GenerateBoxKeyPair()
	require.NoError(t, err)
	recipKP, err := crypto.GenerateBoxKeyPair()
	require.NoError(t, err)

	env, err := crypto.Encrypt(strings.Repeat("z", contentLen), signKP, boxKP, recipKP.Public, crypto.EncryptOptions{Ts: 1706012345678})
	require.NoError(t, err)
	return env
}

func TestClipboardRoundTrip(t *testing.T) {
	backend := &MemoryClipboard{}
	ct := NewClipboardTransport(backend)
	assert.True(t, ct.IsAvailable())
	assert.Equal(t, "clipboard", ct.Name())

	env := buildTestEnvelope(t, 32)
	units, err := ct.Send(env)
	require.NoError(t, err)
	require.Len(t, units, 1)

	items, err := ct.Receive()
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Envelope)

	// Second poll with no change yields nothing new.
	items, err = ct.Receive()
	require.NoError(t, err)
	assert.Len(t, items, 0)
}

func TestQRSplitAndReassemble(t *testing.T) {
	env := buildTestEnvelope(t, 6*1024)
	qr := NewQRTransport()
	frames, err := qr.Send(env)
	require.NoError(t, err)
	require.Greater(t, len(frames), 1)

	var reassembled *wire.MessageEnvelope
	for i, frame := range frames {
		got, complete, err := qr.ProcessScanned(frame)
		require.NoError(t, err)
		if i < len(frames)-1 {
			assert.False(t, complete)
		} else {
			assert.True(t, complete)
			reassembled = got
		}
	}
	require.NotNil(t, reassembled)
	assert.Equal(t, env.MsgID, reassembled.MsgID)
}

func TestQRChunkProgress(t *testing.T) {
	env := buildTestEnvelope(t, 6*1024)
	qr := NewQRTransport()
	frames, err := qr.Send(env)
	require.NoError(t, err)
	require.Greater(t, len(frames), 2)

	firstChunk, err := wire.ParseChunk([]byte(frames[0]))
	require.NoError(t, err)

	_, _, err = qr.ProcessScanned(frames[0])
	require.NoError(t, err)

	progress := qr.GetChunkProgress(firstChunk.MsgID)
	assert.Equal(t, 1, len(progress.Received))
	assert.Greater(t, len(progress.Missing), 0)
}

type memFileBackend struct{ files map[string][]byte }

func (m *memFileBackend) WriteFile(name string, data []byte) error {
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[name] = data
	return nil
}

func (m *memFileBackend) ReadFile(name string) ([]byte, error) { return m.files[name], nil }

func TestFileRoundTrip(t *testing.T) {
	env := buildTestEnvelope(t, 64)
	backend := &memFileBackend{}
	ft := NewFileTransport(backend)

	names, err := ft.Send(env)
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.True(t, strings.HasPrefix(names[0], "message-"))

	data, err := backend.ReadFile(names[0])
	require.NoError(t, err)
	item, ok, err := ft.ReceiveFile(data)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, item.Envelope)
}

func TestManagerBestPreference(t *testing.T) {
	m := NewManager()
	m.Register(NewFileTransport(&memFileBackend{}))
	m.Register(NewQRTransport())
	m.Register(NewClipboardTransport(&MemoryClipboard{}))

	best, ok := m.Best()
	require.True(t, ok)
	assert.Equal(t, "clipboard", best)
}

func TestManagerPollDispatchesByOrigin(t *testing.T) {
	backend := &MemoryClipboard{}
	ct := NewClipboardTransport(backend)
	env := buildTestEnvelope(t, 16)
	_, err := ct.Send(env)
	require.NoError(t, err)

	m := NewManager()
	m.Register(ct)

	var gotOrigin string
	m.OnMessage(func(origin string, item ReceivedItem) { gotOrigin = origin })
	m.Poll()
	assert.Equal(t, "clipboard", gotOrigin)
}
