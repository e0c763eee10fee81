package rgbpsbt

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

type fakeDescriptor struct {
	script      []byte
	internalKey []byte
	err         error
}

func (d *fakeDescriptor) ScriptAt(Terminal) ([]byte, error)      { return d.script, d.err }
func (d *fakeDescriptor) InternalKeyAt(Terminal) ([]byte, error) { return d.internalKey, nil }

type fakeFundingResolver struct {
	txs map[chainhash.Hash]*wire.MsgTx
}

func (r *fakeFundingResolver) ResolveTx(_ context.Context, txid chainhash.Hash) (*wire.MsgTx, error) {
	tx, ok := r.txs[txid]
	if !ok {
		return nil, &OutputUnknownError{Txid: txid}
	}
	return tx, nil
}

func fixtureScript(b byte) []byte {
	return []byte{0x51, 0x20, b, b, b, b, b, b, b, b, b, b, b, b, b, b, b, b, b, b, b, b, b, b, b, b, b, b, b, b, b, b, b}
}

func fundingSetup(script []byte, value int64) (*fakeFundingResolver, wire.OutPoint) {
	fundingTx := wire.NewMsgTx(2)
	fundingTx.AddTxOut(wire.NewTxOut(value, script))
	txid := fundingTx.TxHash()
	return &fakeFundingResolver{txs: map[chainhash.Hash]*wire.MsgTx{txid: fundingTx}}, wire.OutPoint{Hash: txid, Index: 0}
}

func TestBuild_RejectsEmptyInputs(t *testing.T) {
	_, err := Build(context.Background(), BuildParams{})
	require.ErrorIs(t, err, ErrEmptyInputs)
}

func TestBuild_SimpleSpendMarksTapretHost(t *testing.T) {
	script := fixtureScript(0xAA)
	resolver, outpoint := fundingSetup(script, 100_000)
	descriptor := &fakeDescriptor{script: script, internalKey: []byte{1, 2, 3}}

	packet, err := Build(context.Background(), BuildParams{
		Descriptor: descriptor,
		Resolver:   resolver,
		Inputs:     []InputDescriptor{{OutPoint: outpoint}},
		Outputs:    []Output{{Script: fixtureScript(0xBB), Amount: 50_000}},
	})
	require.NoError(t, err)
	require.True(t, IsTapretHost(packet, 0))
}

func TestBuild_ComputesChangeOutput(t *testing.T) {
	script := fixtureScript(0xAA)
	resolver, outpoint := fundingSetup(script, 100_000)
	descriptor := &fakeDescriptor{script: script}

	packet, err := Build(context.Background(), BuildParams{
		Descriptor:   descriptor,
		Resolver:     resolver,
		Inputs:       []InputDescriptor{{OutPoint: outpoint}},
		Outputs:      []Output{{Script: fixtureScript(0xBB), Amount: 50_000}},
		ChangeScript: fixtureScript(0xCC),
		Fee:          1_000,
	})
	require.NoError(t, err)
	require.Len(t, packet.UnsignedTx.TxOut, 2)
	require.Equal(t, int64(49_000), packet.UnsignedTx.TxOut[1].Value)
}

func TestBuild_DropsZeroChange(t *testing.T) {
	script := fixtureScript(0xAA)
	resolver, outpoint := fundingSetup(script, 50_000)
	descriptor := &fakeDescriptor{script: script}

	packet, err := Build(context.Background(), BuildParams{
		Descriptor:   descriptor,
		Resolver:     resolver,
		Inputs:       []InputDescriptor{{OutPoint: outpoint}},
		Outputs:      []Output{{Script: fixtureScript(0xBB), Amount: 50_000}},
		ChangeScript: fixtureScript(0xCC),
	})
	require.NoError(t, err)
	require.Len(t, packet.UnsignedTx.TxOut, 1)
}

func TestBuild_RejectsInflationWithoutForce(t *testing.T) {
	script := fixtureScript(0xAA)
	resolver, outpoint := fundingSetup(script, 10_000)
	descriptor := &fakeDescriptor{script: script}

	_, err := Build(context.Background(), BuildParams{
		Descriptor:   descriptor,
		Resolver:     resolver,
		Inputs:       []InputDescriptor{{OutPoint: outpoint}},
		Outputs:      []Output{{Script: fixtureScript(0xBB), Amount: 50_000}},
		ChangeScript: fixtureScript(0xCC),
	})
	require.Error(t, err)
	var inflationErr *InflationError
	require.ErrorAs(t, err, &inflationErr)
}

func TestBuild_RejectsScriptPubkeyMismatch(t *testing.T) {
	fundingScript := fixtureScript(0xAA)
	resolver, outpoint := fundingSetup(fundingScript, 100_000)
	descriptor := &fakeDescriptor{script: fixtureScript(0xDD)}

	_, err := Build(context.Background(), BuildParams{
		Descriptor: descriptor,
		Resolver:   resolver,
		Inputs:     []InputDescriptor{{OutPoint: outpoint}},
		Outputs:    []Output{{Script: fixtureScript(0xBB), Amount: 50_000}},
	})
	require.ErrorIs(t, err, ErrScriptPubkeyMismatch)
}

func TestBuild_RejectsUnknownFundingTx(t *testing.T) {
	descriptor := &fakeDescriptor{script: fixtureScript(0xAA)}
	resolver := &fakeFundingResolver{txs: map[chainhash.Hash]*wire.MsgTx{}}

	_, err := Build(context.Background(), BuildParams{
		Descriptor: descriptor,
		Resolver:   resolver,
		Inputs:     []InputDescriptor{{OutPoint: wire.OutPoint{Index: 0}}},
		Outputs:    []Output{{Script: fixtureScript(0xBB), Amount: 1000}},
	})
	var unknownErr *OutputUnknownError
	require.ErrorAs(t, err, &unknownErr)
}
