package lnpbp4

import (
	"testing"

	"github.com/rgb-wg/rgb-wallet/rgbcore"
	"github.com/stretchr/testify/require"
)

func TestMultiCommitment_InsertAndRootDeterministic(t *testing.T) {
	tree := New()
	require.NoError(t, tree.Insert(rgbcore.ContractId{1}, [32]byte{0xAA}))
	require.NoError(t, tree.Insert(rgbcore.ContractId{2}, [32]byte{0xBB}))

	root1 := tree.Root()
	root2 := tree.Root()
	require.Equal(t, root1, root2)
}

func TestMultiCommitment_RootChangesWithMessage(t *testing.T) {
	a := New()
	require.NoError(t, a.Insert(rgbcore.ContractId{1}, [32]byte{0xAA}))

	b := New()
	require.NoError(t, b.Insert(rgbcore.ContractId{1}, [32]byte{0xBB}))

	require.NotEqual(t, a.Root(), b.Root())
}

func TestMultiCommitment_EmptyVsNonEmptyRootDiffer(t *testing.T) {
	empty := New()
	nonEmpty := New()
	require.NoError(t, nonEmpty.Insert(rgbcore.ContractId{1}, [32]byte{}))

	require.NotEqual(t, empty.Root(), nonEmpty.Root())
}

func TestMultiCommitment_ReinsertSameIdIsIdempotent(t *testing.T) {
	tree := New()
	require.NoError(t, tree.Insert(rgbcore.ContractId{1}, [32]byte{0xAA}))
	require.NoError(t, tree.Insert(rgbcore.ContractId{1}, [32]byte{0xCC}))

	proof := tree.Proof()
	require.Len(t, proof, 1)
	require.Equal(t, [32]byte{0xCC}, proof[0].Message)
}

func TestRootFromLeaves_ReproducesOriginalRoot(t *testing.T) {
	tree := New()
	require.NoError(t, tree.Insert(rgbcore.ContractId{1}, [32]byte{0xAA}))
	require.NoError(t, tree.Insert(rgbcore.ContractId{2}, [32]byte{0xBB}))

	recomputed := RootFromLeaves(tree.Proof())
	require.Equal(t, tree.Root(), recomputed)
}

func TestMultiCommitment_ProofIsOrderedByPosition(t *testing.T) {
	tree := New()
	for i := byte(0); i < 10; i++ {
		require.NoError(t, tree.Insert(rgbcore.ContractId{i}, [32]byte{i}))
	}
	proof := tree.Proof()
	require.Len(t, proof, 10)
	for i, leaf := range proof {
		require.Equal(t, rgbcore.ContractId{byte(i)}, leaf.ProtocolId)
	}
}
