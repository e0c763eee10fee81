package rgbcore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpId_IsGenesis(t *testing.T) {
	var zero OpId
	require.True(t, zero.IsGenesis())

	nonZero := OpId{1}
	require.False(t, nonZero.IsGenesis())
}

func TestAssignmentType_String(t *testing.T) {
	require.Equal(t, "generic", AssignmentTypeGeneric.String())
	require.Equal(t, "RGB20", AssignmentTypeRGB20.String())
	require.Equal(t, "RGB21", AssignmentTypeRGB21.String())
	require.Equal(t, "unknown(99)", AssignmentType(99).String())
}

func TestSeal_StringRevealedVsBlinded(t *testing.T) {
	revealed := RevealedSeal([32]byte{1}, 2)
	require.Contains(t, revealed.String(), "tapret1st:")

	blinded := Seal{Blinded: true, BlindedBaid58: "abc123"}
	require.Equal(t, "utxob:abc123", blinded.String())
}

func TestSeal_OutPoint(t *testing.T) {
	s := RevealedSeal([32]byte{7}, 3)
	op := s.OutPoint()
	require.Equal(t, uint32(3), op.Index)
	require.EqualValues(t, s.Txid, op.Hash)
}

func TestContractState_BalanceOf(t *testing.T) {
	cs := NewContractState(ContractId{1})
	cs.Live[Opout{OpId: OpId{1}, AssignmentType: AssignmentTypeRGB20, OutputIndex: 0}] = Assignment{
		State: NewAmount(100),
	}
	cs.Live[Opout{OpId: OpId{1}, AssignmentType: AssignmentTypeRGB20, OutputIndex: 1}] = Assignment{
		State: NewAmount(50),
	}
	cs.Live[Opout{OpId: OpId{2}, AssignmentType: AssignmentTypeRGB21, OutputIndex: 0}] = Assignment{
		State: NewData(4),
	}

	require.Equal(t, uint64(150), cs.BalanceOf())
}

func TestContractState_TokenIndexes(t *testing.T) {
	cs := NewContractState(ContractId{1})
	cs.Live[Opout{OpId: OpId{1}, OutputIndex: 0}] = Assignment{State: NewData(4)}
	cs.Live[Opout{OpId: OpId{1}, OutputIndex: 1}] = Assignment{State: NewData(7)}
	cs.Live[Opout{OpId: OpId{1}, OutputIndex: 2}] = Assignment{State: NewAmount(1)}

	idx := cs.TokenIndexes()
	require.Len(t, idx, 2)
	require.Contains(t, idx, uint32(4))
	require.Contains(t, idx, uint32(7))
}

func TestNewAmountDataVoid(t *testing.T) {
	require.Equal(t, State{Kind: StateAmount, Amount: 42}, NewAmount(42))
	require.Equal(t, State{Kind: StateData, TokenIndex: 3}, NewData(3))
	require.Equal(t, State{Kind: StateVoid}, NewVoid())
}
