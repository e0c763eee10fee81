package blobstore

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
)

// ChunkSize is the uncompressed size each chunk is split to before
// compression and encryption, mirroring carbonado's fixed chunk size.
const ChunkSize = 1 << 20 // 1 MiB

// EncodeChunks splits plaintext into ChunkSize pieces, zlib-compresses
// each, encrypts each independently under key, and concatenates them as
// a stream of [4-byte big-endian length][ciphertext] records. Splitting
// before compression (rather than compressing the whole blob) lets a
// reader fetch and decrypt an individual chunk without the whole blob
// on hand, the property carbonado's chunking exists for.
func EncodeChunks(key, plaintext []byte) ([]byte, error) {
	var out bytes.Buffer

	for offset := 0; offset < len(plaintext) || (offset == 0 && len(plaintext) == 0); offset += ChunkSize {
		end := offset + ChunkSize
		if end > len(plaintext) {
			end = len(plaintext)
		}
		chunk := plaintext[offset:end]

		var compressed bytes.Buffer
		zw := zlib.NewWriter(&compressed)
		if _, err := zw.Write(chunk); err != nil {
			return nil, fmt.Errorf("blobstore: compress chunk: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("blobstore: close zlib writer: %w", err)
		}

		sealed, err := Seal(key, compressed.Bytes())
		if err != nil {
			return nil, fmt.Errorf("blobstore: seal chunk: %w", err)
		}

		var lenPrefix [4]byte
		binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(sealed)))
		out.Write(lenPrefix[:])
		out.Write(sealed)

		if end == len(plaintext) {
			break
		}
	}

	return out.Bytes(), nil
}

// DecodeChunks reverses EncodeChunks.
func DecodeChunks(key, encoded []byte) ([]byte, error) {
	var out bytes.Buffer
	r := bytes.NewReader(encoded)

	for r.Len() > 0 {
		var lenPrefix [4]byte
		if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
			return nil, fmt.Errorf("blobstore: read chunk length: %w", err)
		}
		chunkLen := binary.BigEndian.Uint32(lenPrefix[:])

		sealed := make([]byte, chunkLen)
		if _, err := io.ReadFull(r, sealed); err != nil {
			return nil, fmt.Errorf("blobstore: read chunk body: %w", err)
		}

		compressed, err := Open(key, sealed)
		if err != nil {
			return nil, fmt.Errorf("blobstore: open chunk: %w", err)
		}

		zr, err := zlib.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("blobstore: init zlib reader: %w", err)
		}
		if _, err := io.Copy(&out, zr); err != nil {
			return nil, fmt.Errorf("blobstore: decompress chunk: %w", err)
		}
		if err := zr.Close(); err != nil {
			return nil, fmt.Errorf("blobstore: close zlib reader: %w", err)
		}
	}

	return out.Bytes(), nil
}
