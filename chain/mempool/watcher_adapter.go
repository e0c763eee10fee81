package mempool

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rgb-wg/rgb-wallet/rgbwatcher"
)

// WatcherAdapter satisfies rgbwatcher.Resolver on top of Resolver,
// translating between the two packages' UTXO/spent-status shapes so the
// Watcher (C3) never needs to import the explorer's wire types directly.
type WatcherAdapter struct {
	*Resolver
}

func NewWatcherAdapter(r *Resolver) *WatcherAdapter {
	return &WatcherAdapter{Resolver: r}
}

func (a *WatcherAdapter) ResolveUtxos(ctx context.Context, scripts [][]byte) ([]rgbwatcher.UtxoCandidate, error) {
	found, err := a.Resolver.ResolveUtxos(ctx, scripts)
	if err != nil {
		return nil, err
	}
	out := make([]rgbwatcher.UtxoCandidate, len(found))
	for i, u := range found {
		out[i] = rgbwatcher.UtxoCandidate{
			Txid:        u.OutPoint.Hash,
			Vout:        u.OutPoint.Index,
			Value:       u.Value,
			PkScript:    u.PkScript,
			Confirmed:   u.Confirmed,
			BlockHeight: u.BlockHeight,
		}
	}
	return out, nil
}

func (a *WatcherAdapter) ResolveSpentStatus(ctx context.Context, txid chainhash.Hash, vout uint32) (rgbwatcher.SpentStatus, error) {
	spent, err := a.Resolver.ResolveSpent(ctx, txid, vout, false)
	if err != nil {
		return rgbwatcher.SpentStatus{}, err
	}
	// The explorer has no notion of "invalid" (reorged-out) spends for a
	// confirmed chain tip; only a spend whose spending tx itself later
	// disappears from the mempool without confirming would count, which
	// this synchronous poll-based resolver cannot observe directly.
	return rgbwatcher.SpentStatus{Spent: spent.Spent, TxInvalid: false}, nil
}
