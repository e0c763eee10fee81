package blobstore

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeChunksRoundTrip(t *testing.T) {
	t.Parallel()

	key := DeriveKey([]byte("chunk test key"))
	plaintext := bytes.Repeat([]byte("rgb-consignment-data"), 1000)

	encoded, err := EncodeChunks(key, plaintext)
	require.NoError(t, err)

	decoded, err := DecodeChunks(key, encoded)
	require.NoError(t, err)
	require.Equal(t, plaintext, decoded)
}

func TestEncodeDecodeChunksMultiChunk(t *testing.T) {
	t.Parallel()

	key := DeriveKey([]byte("multi chunk key"))
	plaintext := bytes.Repeat([]byte{0xAB}, ChunkSize*2+100)

	encoded, err := EncodeChunks(key, plaintext)
	require.NoError(t, err)

	decoded, err := DecodeChunks(key, encoded)
	require.NoError(t, err)
	require.Equal(t, plaintext, decoded)
}

func TestEncodeDecodeChunksEmpty(t *testing.T) {
	t.Parallel()

	key := DeriveKey([]byte("empty key"))

	encoded, err := EncodeChunks(key, nil)
	require.NoError(t, err)

	decoded, err := DecodeChunks(key, encoded)
	require.NoError(t, err)
	require.Empty(t, decoded)
}
