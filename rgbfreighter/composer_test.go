package rgbfreighter

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
	"github.com/rgb-wg/rgb-wallet/rgbcore"
	"github.com/rgb-wg/rgb-wallet/rgbpsbt"
	"github.com/stretchr/testify/require"
)

type fakeStash struct {
	contracts map[OutPoint][]rgbcore.ContractId
	states    map[rgbcore.ContractId]map[rgbcore.Opout]rgbcore.Assignment
}

func (s *fakeStash) ContractsByOutpoint(op OutPoint) ([]rgbcore.ContractId, error) {
	return s.contracts[op], nil
}

func (s *fakeStash) StateForOutpoints(contractID rgbcore.ContractId, _ []OutPoint) (map[rgbcore.Opout]rgbcore.Assignment, error) {
	return s.states[contractID], nil
}

func (s *fakeStash) ConsumeBundle(rgbcore.ContractId, *rgbcore.Bundle, [32]byte) error { return nil }
func (s *fakeStash) ConsumeAnchor(*rgbcore.Anchor) error                              { return nil }

func fixturePacketWithTapretHostAndChangeOutput() *psbt.Packet {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: [32]byte{1}, Index: 0}})
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x51, 0x20}))
	tx.AddTxOut(wire.NewTxOut(500, []byte{0x51, 0x20}))

	p := &psbt.Packet{
		UnsignedTx: tx,
		Inputs:     []psbt.PInput{{}},
		Outputs: []psbt.POutput{
			{},
			{Bip32Derivation: []*psbt.Bip32Derivation{{PubKey: []byte{1, 2, 3}}}},
		},
	}
	rgbpsbt.MarkTapretHost(p, 0)
	return p
}

func TestCompose_RejectsExpiredInvoice(t *testing.T) {
	_, err := Compose(ComposeParams{
		Invoice: Invoice{Expired: true},
		Packet:  fixturePacketWithTapretHostAndChangeOutput(),
		Stash:   &fakeStash{},
	})
	require.ErrorIs(t, err, rgbcore.ErrInvoiceExpired)
}

func TestCompose_RejectsMissingContract(t *testing.T) {
	_, err := Compose(ComposeParams{
		Invoice: Invoice{Interface: "RGB20"},
		Packet:  fixturePacketWithTapretHostAndChangeOutput(),
		Stash:   &fakeStash{},
	})
	require.ErrorIs(t, err, rgbcore.ErrInvoiceNoContract)
}

func TestCompose_BuildsPrimaryTransitionAndAnchor(t *testing.T) {
	contractID := rgbcore.ContractId{1}
	prevOut := OutPoint{Txid: [32]byte{1}, Vout: 0}
	opout := rgbcore.Opout{OpId: rgbcore.OpId{9}, AssignmentType: rgbcore.AssignmentTypeRGB20, OutputIndex: 0}

	stash := &fakeStash{
		contracts: map[OutPoint][]rgbcore.ContractId{prevOut: {contractID}},
		states: map[rgbcore.ContractId]map[rgbcore.Opout]rgbcore.Assignment{
			contractID: {opout: {State: rgbcore.NewAmount(1000)}},
		},
	}

	result, err := Compose(ComposeParams{
		Invoice: Invoice{
			ContractId:     contractID,
			Interface:      "RGB20",
			AssignmentType: rgbcore.AssignmentTypeRGB20,
			Amount:         600,
			Beneficiary:    rgbcore.RevealedSeal([32]byte{2}, 0),
		},
		Packet:   fixturePacketWithTapretHostAndChangeOutput(),
		PrevOuts: []OutPoint{prevOut},
		Stash:    stash,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Anchor)
	require.Contains(t, result.Bundles, contractID)
	require.Len(t, result.Transitions[contractID], 1)

	primary := result.Transitions[contractID][0]
	require.Len(t, primary.Outputs, 2) // change + beneficiary
}

func TestCompose_InsufficientStateFails(t *testing.T) {
	contractID := rgbcore.ContractId{1}
	prevOut := OutPoint{Txid: [32]byte{1}, Vout: 0}
	opout := rgbcore.Opout{OpId: rgbcore.OpId{9}, AssignmentType: rgbcore.AssignmentTypeRGB20, OutputIndex: 0}

	stash := &fakeStash{
		contracts: map[OutPoint][]rgbcore.ContractId{prevOut: {contractID}},
		states: map[rgbcore.ContractId]map[rgbcore.Opout]rgbcore.Assignment{
			contractID: {opout: {State: rgbcore.NewAmount(100)}},
		},
	}

	_, err := Compose(ComposeParams{
		Invoice: Invoice{
			ContractId:     contractID,
			Interface:      "RGB20",
			AssignmentType: rgbcore.AssignmentTypeRGB20,
			Amount:         600,
			Beneficiary:    rgbcore.RevealedSeal([32]byte{2}, 0),
		},
		Packet:   fixturePacketWithTapretHostAndChangeOutput(),
		PrevOuts: []OutPoint{prevOut},
		Stash:    stash,
	})
	require.ErrorIs(t, err, rgbcore.ErrInsufficientState)
}
