package rgbpsbt

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/stretchr/testify/require"
)

func packetWithOneOutput() *psbt.Packet {
	return &psbt.Packet{
		Outputs: []psbt.POutput{{}},
		Inputs:  []psbt.PInput{{}},
	}
}

func TestMarkTapretHost_IsTapretHost(t *testing.T) {
	p := packetWithOneOutput()
	require.False(t, IsTapretHost(p, 0))

	MarkTapretHost(p, 0)
	require.True(t, IsTapretHost(p, 0))
}

func TestSetTapretCommitment_RoundTrips(t *testing.T) {
	p := packetWithOneOutput()
	root := [32]byte{1, 2, 3, 4}

	SetTapretCommitment(p, 0, root)

	got, ok := TapretCommitment(p, 0)
	require.True(t, ok)
	require.Equal(t, root, got)
}

func TestTapretCommitment_AbsentReturnsFalse(t *testing.T) {
	p := packetWithOneOutput()
	_, ok := TapretCommitment(p, 0)
	require.False(t, ok)
}

func TestSetConsumer_RoundTrips(t *testing.T) {
	p := packetWithOneOutput()
	contractID := [32]byte{1}
	opid := [32]byte{2}

	SetConsumer(p, 0, contractID, opid)

	consumers := Consumers(p, 0)
	require.Len(t, consumers, 1)
	require.Equal(t, contractID, consumers[0][0])
	require.Equal(t, opid, consumers[0][1])
}

func TestSetConsumer_MultipleConsumers(t *testing.T) {
	p := packetWithOneOutput()
	SetConsumer(p, 0, [32]byte{1}, [32]byte{10})
	SetConsumer(p, 0, [32]byte{2}, [32]byte{20})

	require.Len(t, Consumers(p, 0), 2)
}

func TestSetTransition_RoundTrips(t *testing.T) {
	p := packetWithOneOutput()
	contractID := [32]byte{5}
	payload := []byte("transition-bytes")

	SetTransition(p, contractID, payload)

	transitions := Transitions(p)
	require.Equal(t, payload, transitions[contractID])
}

func TestDecodeProprietaryKey_RejectsForeignIdentifier(t *testing.T) {
	foreign := encodeProprietaryKey(psbt.ProprietaryKey{Identifier: []byte("XYZ"), Subtype: PsbtOutTapretHost})
	_, _, ok := decodeProprietaryKey(foreign)
	require.False(t, ok)
}
