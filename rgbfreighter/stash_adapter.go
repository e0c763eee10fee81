package rgbfreighter

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/rgb-wg/rgb-wallet/rgbcore"
	"github.com/rgb-wg/rgb-wallet/rgbstash"
)

// StashAdapter satisfies the Stash interface on top of *rgbstash.Stash,
// translating the composer's minimal OutPoint/[32]byte shapes into the
// wire/chainhash types the real Stash implementation uses internally.
type StashAdapter struct {
	*rgbstash.Stash
}

func NewStashAdapter(s *rgbstash.Stash) *StashAdapter {
	return &StashAdapter{Stash: s}
}

func (a *StashAdapter) ContractsByOutpoint(op OutPoint) ([]rgbcore.ContractId, error) {
	return a.Stash.ContractsByOutpoint(wire.OutPoint{Hash: op.Txid, Index: op.Vout})
}

func (a *StashAdapter) StateForOutpoints(contractID rgbcore.ContractId, outpoints []OutPoint) (map[rgbcore.Opout]rgbcore.Assignment, error) {
	wireOps := make([]wire.OutPoint, len(outpoints))
	for i, op := range outpoints {
		wireOps[i] = wire.OutPoint{Hash: op.Txid, Index: op.Vout}
	}
	return a.Stash.StateForOutpoints(contractID, wireOps)
}

func (a *StashAdapter) ConsumeBundle(contractID rgbcore.ContractId, bundle *rgbcore.Bundle, witnessTxid [32]byte) error {
	return a.Stash.ConsumeBundle(contractID, bundle, chainhash.Hash(witnessTxid))
}

func (a *StashAdapter) ConsumeAnchor(anchor *rgbcore.Anchor) error {
	return a.Stash.ConsumeAnchor(anchor)
}
