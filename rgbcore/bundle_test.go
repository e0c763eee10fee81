package rgbcore

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func chainhashFixture(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

func TestBundle_ConcealMovesTransition(t *testing.T) {
	b := NewBundle(ContractId{1})
	tr := Transition{ContractId: ContractId{1}, TypeName: "transfer"}
	opid := TransitionOpId(tr)
	b.Revealed[opid] = tr

	b.Conceal(opid)

	_, stillRevealed := b.Revealed[opid]
	require.False(t, stillRevealed)
	require.Contains(t, b.Concealed, opid)
}

func TestBundle_ConcealUnknownIsNoop(t *testing.T) {
	b := NewBundle(ContractId{1})
	b.Conceal(OpId{9})
	require.Empty(t, b.Concealed)
}

func TestBundle_BundleIdDeterministic(t *testing.T) {
	b := NewBundle(ContractId{1})
	tr := Transition{ContractId: ContractId{1}, TypeName: "transfer"}
	b.Revealed[TransitionOpId(tr)] = tr

	require.Equal(t, b.BundleId(), b.BundleId())
}

func TestBundle_BundleIdChangesOnConceal(t *testing.T) {
	b := NewBundle(ContractId{1})
	tr := Transition{ContractId: ContractId{1}, TypeName: "transfer"}
	opid := TransitionOpId(tr)
	b.Revealed[opid] = tr
	before := b.BundleId()

	b.Conceal(opid)
	after := b.BundleId()

	require.NotEqual(t, before, after)
}

func TestAnchor_New(t *testing.T) {
	a := NewAnchor(chainhashFixture(3), 1)
	require.Equal(t, uint32(1), a.VoutHost)
	require.NotNil(t, a.BundleIds)
}
