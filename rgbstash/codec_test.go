package rgbstash

import (
	"testing"

	"github.com/rgb-wg/rgb-wallet/rgbcore"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeBlob_RoundTrips(t *testing.T) {
	g := sampleGenesis()
	blob, err := encodeBlob(CurrentVersion, &g)
	require.NoError(t, err)

	var decoded rgbcore.Genesis
	version, err := decodeBlob(blob, &decoded)
	require.NoError(t, err)
	require.Equal(t, CurrentVersion, version)
	require.Equal(t, g.Ticker, decoded.Ticker)
}

func TestDecodeBlob_RejectsShortPayload(t *testing.T) {
	_, err := decodeBlob([]byte{1, 2, 3}, &rgbcore.Genesis{})
	require.Error(t, err)
}

func TestDecodeBlob_RejectsUnknownVersion(t *testing.T) {
	blob, err := encodeBlob(99, &rgbcore.Genesis{})
	require.NoError(t, err)

	_, err = decodeBlob(blob, &rgbcore.Genesis{})
	require.Error(t, err)
}

func TestEncodeDecodeBlob_AcceptsLegacyVersion(t *testing.T) {
	g := sampleGenesis()
	blob, err := encodeBlob(VersionLegacy, &g)
	require.NoError(t, err)

	var decoded rgbcore.Genesis
	version, err := decodeBlob(blob, &decoded)
	require.NoError(t, err)
	require.Equal(t, VersionLegacy, version)
}
