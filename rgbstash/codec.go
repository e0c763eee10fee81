package rgbstash

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"github.com/rgb-wg/rgb-wallet/rgbcore"
)

// Blob format versions. Readers must tolerate both; writers always emit
// the current version: a legacy strict-encoded snapshot format and a
// CRDT-friendly representation that supports merging concurrent edits.
const (
	VersionLegacy uint64 = 1
	VersionCRDT   uint64 = 2

	CurrentVersion = VersionCRDT
)

// encodeBlob prefixes a gob-encoded payload with an 8-byte version header.
// gob is the standard-library choice here (see DESIGN.md) because no
// retrieved example repo carries a generic structured-serialization
// library independent of protobuf/gRPC, and protobuf would require
// .proto schemas this wallet-core layer has no use for elsewhere.
func encodeBlob(version uint64, payload interface{}) ([]byte, error) {
	var buf bytes.Buffer
	var header [8]byte
	binary.BigEndian.PutUint64(header[:], version)
	buf.Write(header[:])

	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("rgbstash: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeBlob reads the version header and decodes into out, migrating a
// legacy-version payload by simply accepting it: the legacy and CRDT wire
// shapes used by this implementation are forward-compatible at the gob
// level, so only genuinely new fields would require an explicit
// migration step.
func decodeBlob(data []byte, out interface{}) (version uint64, err error) {
	if len(data) < 8 {
		return 0, fmt.Errorf("rgbstash: blob too short for version header")
	}
	version = binary.BigEndian.Uint64(data[:8])
	if version != VersionLegacy && version != VersionCRDT {
		return 0, fmt.Errorf("rgbstash: unsupported blob version %d", version)
	}
	dec := gob.NewDecoder(bytes.NewReader(data[8:]))
	if err := dec.Decode(out); err != nil {
		return 0, fmt.Errorf("rgbstash: decode: %w", err)
	}
	return version, nil
}

// EncodeTransition encodes a transition in the same versioned gob blob
// format this package persists transitions under, for callers
// (rgbfreighter's bindToPSBT) that need to embed a transition's bytes
// outside the stash itself.
func EncodeTransition(t rgbcore.Transition) ([]byte, error) {
	return encodeBlob(CurrentVersion, t)
}

// DecodeTransition reverses EncodeTransition.
func DecodeTransition(blob []byte) (rgbcore.Transition, error) {
	var t rgbcore.Transition
	if _, err := decodeBlob(blob, &t); err != nil {
		return rgbcore.Transition{}, err
	}
	return t, nil
}
