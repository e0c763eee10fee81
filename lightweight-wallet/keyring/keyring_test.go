package keyring

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

func testSeed() []byte {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	return seed
}

func TestKeyRing_NextIndexIncrements(t *testing.T) {
	t.Parallel()

	kr, err := New(DefaultConfig(testSeed(), &chaincfg.TestNet3Params))
	require.NoError(t, err)

	const app = 20 // AppRGB20

	first, err := kr.NextIndex(app)
	require.NoError(t, err)
	require.EqualValues(t, 0, first)

	second, err := kr.NextIndex(app)
	require.NoError(t, err)
	require.EqualValues(t, 1, second)

	// Independent apps have independent counters.
	other, err := kr.NextIndex(9)
	require.NoError(t, err)
	require.EqualValues(t, 0, other)
}

func TestKeyRing_DeriveScriptDeterministic(t *testing.T) {
	t.Parallel()

	kr, err := New(DefaultConfig(testSeed(), &chaincfg.TestNet3Params))
	require.NoError(t, err)

	script1, err := kr.DeriveScript(20, 0)
	require.NoError(t, err)
	require.Len(t, script1, 34) // OP_1 <32-byte-x-only-key>

	script2, err := kr.DeriveScript(20, 0)
	require.NoError(t, err)
	require.Equal(t, script1, script2)

	script3, err := kr.DeriveScript(20, 1)
	require.NoError(t, err)
	require.NotEqual(t, script1, script3)
}

func TestKeyRing_PrivateKeyMatchesInternalKey(t *testing.T) {
	t.Parallel()

	kr, err := New(DefaultConfig(testSeed(), &chaincfg.MainNetParams))
	require.NoError(t, err)

	priv, err := kr.PrivateKeyAt(0, 3)
	require.NoError(t, err)

	pub, err := kr.DeriveInternalKey(0, 3)
	require.NoError(t, err)

	require.True(t, priv.PubKey().IsEqual(pub))
}

func TestFileIndexStore_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := dir + "/indexes.json"

	store, err := NewFileIndexStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SetCurrentIndex(20, 5))

	reopened, err := NewFileIndexStore(path)
	require.NoError(t, err)

	idx, err := reopened.GetCurrentIndex(20)
	require.NoError(t, err)
	require.EqualValues(t, 5, idx)
}

func TestMemoryIndexStore(t *testing.T) {
	t.Parallel()

	store := NewMemoryIndexStore()
	require.NoError(t, store.SetCurrentIndex(9, 2))

	all, err := store.GetAllIndexes()
	require.NoError(t, err)
	require.EqualValues(t, 2, all[9])
}
