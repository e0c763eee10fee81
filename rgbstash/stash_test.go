package rgbstash

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/rgb-wg/rgb-wallet/rgbcore"
	"github.com/stretchr/testify/require"
)

func openTestStash(t *testing.T) *Stash {
	t.Helper()
	db, err := OpenDB(DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return Open(db)
}

func sampleGenesis() rgbcore.Genesis {
	return rgbcore.Genesis{
		SchemaId:  [32]byte{1},
		Ticker:    "TST",
		Name:      "Test",
		Precision: 8,
		Supply:    1000,
		InitialOut: []rgbcore.TransitionOutput{
			{Type: rgbcore.AssignmentTypeRGB20, Seal: rgbcore.RevealedSeal([32]byte{2}, 0), State: rgbcore.NewAmount(1000)},
		},
	}
}

func TestStash_ConsumeAndReadGenesis(t *testing.T) {
	s := openTestStash(t)
	g := sampleGenesis()
	contractID := rgbcore.ContractIdFromGenesis(g)

	require.NoError(t, s.ConsumeGenesis(contractID, &g))

	got, err := s.Genesis(contractID)
	require.NoError(t, err)
	require.Equal(t, g.Ticker, got.Ticker)
	require.Equal(t, g.Supply, got.Supply)
}

func TestStash_GenesisMissingReturnsRetrieveFailed(t *testing.T) {
	s := openTestStash(t)
	_, err := s.Genesis(rgbcore.ContractId{9})
	require.ErrorIs(t, err, rgbcore.ErrRetrieveFailed)
}

func TestStash_StateForOutpointsReflectsGenesisAndTransitions(t *testing.T) {
	s := openTestStash(t)
	g := sampleGenesis()
	contractID := rgbcore.ContractIdFromGenesis(g)
	require.NoError(t, s.ConsumeGenesis(contractID, &g))

	outpoint := wire.OutPoint{Hash: [32]byte{2}, Index: 0}
	state, err := s.StateForOutpoints(contractID, []wire.OutPoint{outpoint})
	require.NoError(t, err)
	require.Len(t, state, 1)

	for _, assign := range state {
		require.Equal(t, uint64(1000), assign.State.Amount)
	}
}

func TestStash_ConsumeBundleUpdatesMaterializedState(t *testing.T) {
	s := openTestStash(t)
	g := sampleGenesis()
	contractID := rgbcore.ContractIdFromGenesis(g)
	require.NoError(t, s.ConsumeGenesis(contractID, &g))

	genesisOpId := rgbcore.GenesisOpId(g)
	tr := rgbcore.Transition{
		ContractId: contractID,
		TypeName:   "transfer",
		Inputs:     []rgbcore.TransitionInput{{PrevId: genesisOpId, OutputIndex: 0, Type: rgbcore.AssignmentTypeRGB20}},
		Outputs: []rgbcore.TransitionOutput{
			{Type: rgbcore.AssignmentTypeRGB20, Seal: rgbcore.RevealedSeal([32]byte{3}, 0), State: rgbcore.NewAmount(1000)},
		},
	}
	bundle := NewBundleFor(contractID, tr)
	witnessTxid := chainhash.Hash{7}

	require.NoError(t, s.ConsumeBundle(contractID, bundle, witnessTxid))

	oldOutpoint := wire.OutPoint{Hash: [32]byte{2}, Index: 0}
	stateOld, err := s.StateForOutpoints(contractID, []wire.OutPoint{oldOutpoint})
	require.NoError(t, err)
	require.Empty(t, stateOld)

	newOutpoint := wire.OutPoint{Hash: [32]byte{3}, Index: 0}
	stateNew, err := s.StateForOutpoints(contractID, []wire.OutPoint{newOutpoint})
	require.NoError(t, err)
	require.Len(t, stateNew, 1)
}

func TestStash_ConsumeBundleIsIdempotent(t *testing.T) {
	s := openTestStash(t)
	g := sampleGenesis()
	contractID := rgbcore.ContractIdFromGenesis(g)
	require.NoError(t, s.ConsumeGenesis(contractID, &g))

	genesisOpId := rgbcore.GenesisOpId(g)
	tr := rgbcore.Transition{
		ContractId: contractID,
		TypeName:   "transfer",
		Inputs:     []rgbcore.TransitionInput{{PrevId: genesisOpId, OutputIndex: 0, Type: rgbcore.AssignmentTypeRGB20}},
		Outputs: []rgbcore.TransitionOutput{
			{Type: rgbcore.AssignmentTypeRGB20, Seal: rgbcore.RevealedSeal([32]byte{3}, 0), State: rgbcore.NewAmount(1000)},
		},
	}
	bundle := NewBundleFor(contractID, tr)
	witnessTxid := chainhash.Hash{7}

	require.NoError(t, s.ConsumeBundle(contractID, bundle, witnessTxid))
	require.NoError(t, s.ConsumeBundle(contractID, bundle, witnessTxid))
}

func TestStash_IsConsumedTracksSpentOpouts(t *testing.T) {
	s := openTestStash(t)
	g := sampleGenesis()
	contractID := rgbcore.ContractIdFromGenesis(g)
	require.NoError(t, s.ConsumeGenesis(contractID, &g))

	genesisOpId := rgbcore.GenesisOpId(g)
	opout := rgbcore.Opout{OpId: genesisOpId, AssignmentType: rgbcore.AssignmentTypeRGB20, OutputIndex: 0}

	before, err := s.IsConsumed(opout)
	require.NoError(t, err)
	require.False(t, before)

	tr := rgbcore.Transition{
		ContractId: contractID,
		TypeName:   "transfer",
		Inputs:     []rgbcore.TransitionInput{{PrevId: genesisOpId, OutputIndex: 0, Type: rgbcore.AssignmentTypeRGB20}},
	}
	bundle := NewBundleFor(contractID, tr)
	require.NoError(t, s.ConsumeBundle(contractID, bundle, chainhash.Hash{1}))

	after, err := s.IsConsumed(opout)
	require.NoError(t, err)
	require.True(t, after)
}

func TestStash_RollbackWitnessRemovesBundleAndAnchor(t *testing.T) {
	s := openTestStash(t)
	g := sampleGenesis()
	contractID := rgbcore.ContractIdFromGenesis(g)
	require.NoError(t, s.ConsumeGenesis(contractID, &g))

	witnessTxid := chainhash.Hash{4}
	tr := rgbcore.Transition{ContractId: contractID, TypeName: "transfer"}
	bundle := NewBundleFor(contractID, tr)
	require.NoError(t, s.ConsumeBundle(contractID, bundle, witnessTxid))

	anchor := rgbcore.NewAnchor(witnessTxid, 0)
	require.NoError(t, s.ConsumeAnchor(anchor))

	require.NoError(t, s.RollbackWitness(contractID, witnessTxid))

	_, _, err := s.AnchoredBundle(contractID, witnessTxid)
	require.ErrorIs(t, err, rgbcore.ErrRetrieveFailed)
}

func TestStash_TryLockReportsBusy(t *testing.T) {
	s := openTestStash(t)
	unlock, err := s.TryLock()
	require.NoError(t, err)
	defer unlock()

	_, err = s.TryLock()
	require.ErrorIs(t, err, rgbcore.ErrBusy)
}

// NewBundleFor is a small test helper building a single-transition bundle,
// mirroring how the composer populates bundles in rgbfreighter.
func NewBundleFor(contractID rgbcore.ContractId, t rgbcore.Transition) *rgbcore.Bundle {
	b := rgbcore.NewBundle(contractID)
	b.Revealed[rgbcore.TransitionOpId(t)] = t
	return b
}
