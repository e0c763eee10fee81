// Package rgbwatcher implements the Watcher (C3): a derivation-index
// tracker that, given an extended public key, enumerates scripts, scans
// for UTXOs via the Resolver, and tracks in memory any tapret tweak
// applied to each terminal derivation path (tweaks are not persisted and
// are lost with the Watcher), following the lightweight-wallet
// keyring's derivation-path conventions and a map-of-state-plus-mutex
// shape for concurrent access.
package rgbwatcher

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btclog"
)

var log = btclog.Disabled

func UseLogger(l btclog.Logger) { log = l }

// App indices used by the watcher.
const (
	AppBitcoinReceive = 0
	AppBitcoinChange  = 1
	AppGenericContract = 9
	AppRGB20          = 20
	AppRGB21          = 21
)

// DefaultStep is the number of addresses Sync derives and sends to the
// Resolver in one batch.
const DefaultStep = 20

// RGBDefaultFetchLimit and BitcoinDefaultFetchLimit bound how many
// addresses, counted from index 0, Sync probes before giving up.
const (
	RGBDefaultFetchLimit     = 100
	BitcoinDefaultFetchLimit = 1000
)

// SpentStatus mirrors the Resolver's verdict closely enough for the
// Watcher to decide whether a once-seen UTXO is still live: "spent and
// that spent tx is not invalid" excludes it from next_utxo/next_utxos.
type SpentStatus struct {
	Spent     bool
	TxInvalid bool
}

// Resolver is the subset of C1 the Watcher needs.
type Resolver interface {
	ResolveUtxos(ctx context.Context, scripts [][]byte) ([]UtxoCandidate, error)
	ResolveSpentStatus(ctx context.Context, txid chainhash.Hash, vout uint32) (SpentStatus, error)
}

// UtxoCandidate is what the Resolver reports before the Watcher attaches
// derivation metadata.
type UtxoCandidate struct {
	Txid        chainhash.Hash
	Vout        uint32
	Value       int64
	PkScript    []byte
	Confirmed   bool
	BlockHeight int64
}

// Status is the Watcher's own view of a UTXO's maturity.
type Status uint8

const (
	StatusMempool Status = iota
	StatusConfirmed
)

// Utxo is one entry of the Watcher's tracked set: outpoint, amount, mining
// status, derivation path, and optional tapret tweak.
type Utxo struct {
	Txid        chainhash.Hash
	Vout        uint32
	Value       int64
	Status      Status
	BlockHeight int64

	AppIndex   uint32
	AddrIndex  uint32
	TapretTweak *[32]byte
}

func (u Utxo) terminal() terminal {
	return terminal{app: u.AppIndex, index: u.AddrIndex}
}

type terminal struct {
	app   uint32
	index uint32
}

// ScriptDeriver derives the scriptPubkey (and internal key, for taproot
// app indices) at a given terminal path. This is the Bitcoin-wallet
// collaborator's contract; the Watcher only calls it.
type ScriptDeriver interface {
	DeriveScript(app, index uint32) ([]byte, error)
	DeriveInternalKey(app, index uint32) (*btcec.PublicKey, error)
}

// Watcher is one named instance per extended public key.
type Watcher struct {
	name     string
	deriver  ScriptDeriver
	resolver Resolver

	mu          sync.RWMutex
	highestIdx  map[uint32]uint32 // app index -> next index to hand out (one past the highest seen)
	utxos       map[terminal]*Utxo
	tweaks      map[terminal][32]byte
}

// New builds a Watcher for one extended public key under the given name.
func New(name string, deriver ScriptDeriver, resolver Resolver) *Watcher {
	return &Watcher{
		name:       name,
		deriver:    deriver,
		resolver:   resolver,
		highestIdx: make(map[uint32]uint32),
		utxos:      make(map[terminal]*Utxo),
		tweaks:     make(map[terminal][32]byte),
	}
}

// NextAddress returns the script of the first address of terminal path
// /app/i for i just past the highest derivation index seen for that app.
func (w *Watcher) NextAddress(appIndex uint32) ([]byte, uint32, error) {
	w.mu.Lock()
	idx := w.highestIdx[appIndex]
	w.highestIdx[appIndex] = idx + 1
	w.mu.Unlock()

	script, err := w.deriver.DeriveScript(appIndex, idx)
	if err != nil {
		return nil, 0, fmt.Errorf("next_address(%d): %w", appIndex, err)
	}
	return script, idx, nil
}

// RecordTapretTweak stores in memory a tweak applied to a terminal path,
// so a later spend through this Watcher can reproduce it when building
// the input's control block. The tweak is not written to disk.
func (w *Watcher) RecordTapretTweak(appIndex, addrIndex uint32, tweak [32]byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t := terminal{app: appIndex, index: addrIndex}
	w.tweaks[t] = tweak
	if u, ok := w.utxos[t]; ok {
		tw := tweak
		u.TapretTweak = &tw
	}
}

// TapretTweak looks up a previously-recorded tweak for a terminal path.
func (w *Watcher) TapretTweak(appIndex, addrIndex uint32) (*[32]byte, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.tweaks[terminal{app: appIndex, index: addrIndex}]
	if !ok {
		return nil, false
	}
	out := t
	return &out, true
}

// isLive reports whether a UTXO should still be considered live: it is
// excluded if it is spent and that spending tx is not invalid.
func isLive(u *Utxo, resolver Resolver, ctx context.Context) (bool, error) {
	status, err := resolver.ResolveSpentStatus(ctx, u.Txid, u.Vout)
	if err != nil {
		return false, err
	}
	if status.Spent && !status.TxInvalid {
		return false, nil
	}
	return true, nil
}

// NextUtxo returns the unspent UTXO with the smallest block height
// (mempool last), excluding spent-and-valid-spend UTXOs.
func (w *Watcher) NextUtxo(ctx context.Context, appIndex uint32) (*Utxo, error) {
	candidates, err := w.NextUtxos(ctx, appIndex)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return candidates[0], nil
}

// NextUtxos returns every live UTXO for an app index, sorted by block
// height ascending with mempool entries (height 0) sorted last.
func (w *Watcher) NextUtxos(ctx context.Context, appIndex uint32) ([]*Utxo, error) {
	w.mu.RLock()
	var all []*Utxo
	for t, u := range w.utxos {
		if t.app == appIndex {
			all = append(all, u)
		}
	}
	w.mu.RUnlock()

	var live []*Utxo
	for _, u := range all {
		ok, err := isLive(u, w.resolver, ctx)
		if err != nil {
			return nil, fmt.Errorf("next_utxos(%d): %w", appIndex, err)
		}
		if ok {
			live = append(live, u)
		}
	}

	sort.Slice(live, func(i, j int) bool {
		hi, hj := live[i].BlockHeight, live[j].BlockHeight
		if live[i].Status == StatusMempool {
			hi = 1 << 62
		}
		if live[j].Status == StatusMempool {
			hj = 1 << 62
		}
		return hi < hj
	})
	return live, nil
}

// Sync rescans addresses /app/0..N via the Resolver in batches of
// DefaultStep. The scan stops at the first batch with no UTXOs that
// starts at or past the stored next index, or once the fetch limit,
// counted from index 0, is reached.
func (w *Watcher) Sync(ctx context.Context, appIndex uint32) error {
	limit := uint32(RGBDefaultFetchLimit)
	if appIndex == AppBitcoinReceive || appIndex == AppBitcoinChange {
		limit = BitcoinDefaultFetchLimit
	}

	w.mu.RLock()
	start := w.highestIdx[appIndex]
	w.mu.RUnlock()

	highestWithActivity := start
	for base := uint32(0); base < limit; base += DefaultStep {
		scripts := make([][]byte, 0, DefaultStep)
		indexOf := make(map[string]uint32, DefaultStep)
		for i := uint32(0); i < DefaultStep; i++ {
			idx := base + i
			script, err := w.deriver.DeriveScript(appIndex, idx)
			if err != nil {
				return fmt.Errorf("sync(%d): derive index %d: %w", appIndex, idx, err)
			}
			scripts = append(scripts, script)
			indexOf[string(script)] = idx
		}

		found, err := w.resolver.ResolveUtxos(ctx, scripts)
		if err != nil {
			return fmt.Errorf("sync(%d): %w", appIndex, err)
		}
		if len(found) == 0 && base >= start {
			break
		}

		for _, f := range found {
			idx, ok := indexOf[string(f.PkScript)]
			if !ok {
				continue
			}
			if idx > highestWithActivity {
				highestWithActivity = idx
			}
			w.upsert(appIndex, idx, f)
		}
	}

	w.mu.Lock()
	if highestWithActivity+1 > w.highestIdx[appIndex] {
		w.highestIdx[appIndex] = highestWithActivity + 1
	}
	w.mu.Unlock()
	return nil
}

// upsert inserts a newly-discovered UTXO, or, for an existing UTXO whose
// status was Mempool and is now on-chain, replaces it while preserving
// derivation and any tapret tweak.
func (w *Watcher) upsert(appIndex, addrIndex uint32, f UtxoCandidate) {
	w.mu.Lock()
	defer w.mu.Unlock()

	t := terminal{app: appIndex, index: addrIndex}
	status := StatusMempool
	if f.Confirmed {
		status = StatusConfirmed
	}

	existing, ok := w.utxos[t]
	if !ok {
		w.utxos[t] = &Utxo{
			Txid: f.Txid, Vout: f.Vout, Value: f.Value,
			Status: status, BlockHeight: f.BlockHeight,
			AppIndex: appIndex, AddrIndex: addrIndex,
		}
		if tweak, known := w.tweaks[t]; known {
			tw := tweak
			w.utxos[t].TapretTweak = &tw
		}
		return
	}

	if existing.Status == StatusMempool && status == StatusConfirmed && existing.Txid == f.Txid && existing.Vout == f.Vout {
		existing.Status = StatusConfirmed
		existing.BlockHeight = f.BlockHeight
		return
	}

	if existing.Txid != f.Txid || existing.Vout != f.Vout {
		tweak := existing.TapretTweak
		w.utxos[t] = &Utxo{
			Txid: f.Txid, Vout: f.Vout, Value: f.Value,
			Status: status, BlockHeight: f.BlockHeight,
			AppIndex: appIndex, AddrIndex: addrIndex,
			TapretTweak: tweak,
		}
	}
}
