package tapret

import (
	"crypto/rand"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

func fixtureKey(t *testing.T) *btcec.PublicKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv.PubKey()
}

func TestCommit_Deterministic(t *testing.T) {
	internal := fixtureKey(t)
	msg := [32]byte{1, 2, 3}

	a, err := Commit(internal, nil, msg)
	require.NoError(t, err)
	b, err := Commit(internal, nil, msg)
	require.NoError(t, err)

	require.True(t, a.IsEqual(b))
}

func TestCommit_DifferentMessagesDiverge(t *testing.T) {
	internal := fixtureKey(t)

	a, err := Commit(internal, nil, [32]byte{1})
	require.NoError(t, err)
	b, err := Commit(internal, nil, [32]byte{2})
	require.NoError(t, err)

	require.False(t, a.IsEqual(b))
}

func TestCommit_SiblingChangesOutputKey(t *testing.T) {
	internal := fixtureKey(t)
	msg := [32]byte{7}

	withoutSibling, err := Commit(internal, nil, msg)
	require.NoError(t, err)

	sibling := [32]byte{9, 9, 9}
	withSibling, err := Commit(internal, &sibling, msg)
	require.NoError(t, err)

	require.False(t, withoutSibling.IsEqual(withSibling))
}

func TestVerifyCommitment_RoundTrips(t *testing.T) {
	internal := fixtureKey(t)
	msg := [32]byte{5, 5, 5}

	outputKey, err := Commit(internal, nil, msg)
	require.NoError(t, err)

	ok, err := VerifyCommitment(internal, outputKey, nil, msg)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyCommitment_RejectsWrongMessage(t *testing.T) {
	internal := fixtureKey(t)
	outputKey, err := Commit(internal, nil, [32]byte{1})
	require.NoError(t, err)

	ok, err := VerifyCommitment(internal, outputKey, nil, [32]byte{2})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCommit_RandomMessageNoPanic(t *testing.T) {
	internal := fixtureKey(t)
	var msg [32]byte
	_, err := rand.Read(msg[:])
	require.NoError(t, err)

	_, err = Commit(internal, nil, msg)
	require.NoError(t, err)
}
