package chunk

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/dmesh-net/dmesh-core/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildEnvelope(t *testing.T, contentLen int) (*crypto.SigningKeyPair, *crypto.BoxKeyPair) {
	t.Helper()
	signKP, err := crypto.GenerateSignKeyPair()
	require.NoError(t, err)
	boxKP, err := crypto.GenerateBoxKeyPair()
	require.NoError(t, err)
	return signKP, boxKP
}

func TestChunkRoundTrip(t *testing.T) {
	signKP, boxKP := buildEnvelope(t, 5*1024)
	recipBox, err := crypto.GenerateBoxKeyPair()
	require.NoError(t, err)

	content := strings.Repeat("x", 5*1024)
	env, err := crypto.Encrypt(content, signKP, boxKP, recipBox.Public, crypto.EncryptOptions{Ts: 1706012345678})
	require.NoError(t, err)

	chunks, err := Split(env, MaxSizeQR)
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)

	rand.Shuffle(len(chunks), func(i, j int) { chunks[i], chunks[j] = chunks[j], chunks[i] })

	rebuilt, err := Reassemble(chunks)
	require.NoError(t, err)

	res, err := crypto.Decrypt(rebuilt, recipBox, crypto.DecryptPolicy{Mode: crypto.DelayTolerant, Time: crypto.FixedTimeProvider{Ms: 1706012345678}})
	require.NoError(t, err)
	assert.Equal(t, content, res.Content)
}

func TestChunkOverheadTooSmall(t *testing.T) {
	signKP, boxKP := buildEnvelope(t, 10)
	recipBox, err := crypto.GenerateBoxKeyPair()
	require.NoError(t, err)
	env, err := crypto.Encrypt("hi", signKP, boxKP, recipBox.Public, crypto.EncryptOptions{Ts: 1})
	require.NoError(t, err)

	_, err = Split(env, ChunkOverhead)
	assert.ErrorIs(t, err, ErrChunkSizeTooSmall)
}

func TestReassembleMissingChunk(t *testing.T) {
	signKP, boxKP := buildEnvelope(t, 5*1024)
	recipBox, err := crypto.GenerateBoxKeyPair()
	require.NoError(t, err)
	content := strings.Repeat("y", 5*1024)
	env, err := crypto.Encrypt(content, signKP, boxKP, recipBox.Public, crypto.EncryptOptions{Ts: 1})
	require.NoError(t, err)

	chunks, err := Split(env, MaxSizeQR)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	_, err = Reassemble(chunks[:len(chunks)-1])
	assert.ErrorIs(t, err, ErrIncompleteChunks)
}
