package mempool

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btclog"
	"github.com/rgb-wg/rgb-wallet/rgbcore"
)

var log = btclog.Disabled

// UseLogger sets the package-level logger, following the common
// subsystem-logger convention (set once from lightweight-wallet/server).
func UseLogger(l btclog.Logger) {
	log = l
}

// TxStatus is the coarse confirmation status of a transaction.
type TxStatus uint8

const (
	TxStatusNotFound TxStatus = iota
	TxStatusMempool
	TxStatusBlock
	TxStatusError
)

// Utxo is one unspent output discovered by resolve_utxos.
type Utxo struct {
	OutPoint    wire.OutPoint
	Value       int64
	PkScript    []byte
	Confirmed   bool
	BlockHeight int64
}

// SpentStatus answers resolve_spent.
type SpentStatus struct {
	Spent       bool
	SpendingTx  chainhash.Hash
	SpendingVin uint32
	Confirmed   bool
	BlockHeight int64
}

// Resolver is the C1 contract: resolve Bitcoin transactions, UTXO sets,
// and spent-status from an external explorer.
type Resolver struct {
	client *Client
	cache  *cache
}

// NewResolver builds a Resolver backed by an Esplora-compatible client.
func NewResolver(cfg *Config) (*Resolver, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Resolver{
		client: NewClient(cfg),
		cache:  newCache(cfg.CacheTTL),
	}, nil
}

// ResetCache drops every cached answer whose TTL has lapsed. Entries still
// within their TTL are kept and may be reused by the next operation.
func (r *Resolver) ResetCache() {
	r.cache.cleanup()
}

// ResolveTx fetches a transaction by txid.
func (r *Resolver) ResolveTx(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error) {
	resp, err := r.fetchTx(ctx, txid)
	if err != nil {
		return nil, err
	}
	return txFromResponse(resp)
}

func (r *Resolver) fetchTx(ctx context.Context, txid chainhash.Hash) (*TransactionResponse, error) {
	key := txid.String()
	if cached, ok := r.cache.getTx(key); ok {
		return cached, nil
	}
	resp, err := r.client.GetTransaction(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("resolve_tx(%s): %w", key, err)
	}
	r.cache.setTx(key, resp)
	return resp, nil
}

// ResolveTxStatus reports whether a txid is unknown, in the mempool, or
// confirmed in a block (with height).
func (r *Resolver) ResolveTxStatus(ctx context.Context, txid chainhash.Hash) (TxStatus, uint32, error) {
	resp, err := r.fetchTx(ctx, txid)
	if err != nil {
		var rerr *rgbcore.ResolverError
		if errors.As(err, &rerr) && rerr.Code() == "Malformed" {
			return TxStatusNotFound, 0, nil
		}
		return TxStatusError, 0, err
	}
	if !resp.Status.Confirmed {
		return TxStatusMempool, 0, nil
	}
	return TxStatusBlock, uint32(resp.Status.BlockHeight), nil
}

// ResolveSpent reports the spent-status of a specific outpoint.
func (r *Resolver) ResolveSpent(ctx context.Context, txid chainhash.Hash, vout uint32, withHeight bool) (SpentStatus, error) {
	key := fmt.Sprintf("%s:%d", txid, vout)
	var resp *OutspendResponse
	if cached, ok := r.cache.getOutspend(key); ok {
		resp = cached
	} else {
		fetched, err := r.client.GetOutspend(ctx, txid.String(), vout)
		if err != nil {
			return SpentStatus{}, fmt.Errorf("resolve_spent(%s): %w", key, err)
		}
		r.cache.setOutspend(key, fetched)
		resp = fetched
	}

	status := SpentStatus{Spent: resp.Spent}
	if !resp.Spent {
		return status, nil
	}
	spendTxid, err := chainhash.NewHashFromStr(resp.TxID)
	if err != nil {
		return SpentStatus{}, fmt.Errorf("resolve_spent(%s): %w", key, err)
	}
	status.SpendingTx = *spendTxid
	status.SpendingVin = resp.Vin
	status.Confirmed = resp.Status.Confirmed
	if withHeight {
		status.BlockHeight = resp.Status.BlockHeight
	}
	return status, nil
}

// ResolveUtxos returns every unspent output paying any of the given
// scripts, deduplicated and unaffected by spends.
func (r *Resolver) ResolveUtxos(ctx context.Context, scripts [][]byte) ([]Utxo, error) {
	var out []Utxo
	for _, script := range scripts {
		sh := scripthash(script)
		txs, err := r.client.GetScripthashTxs(ctx, sh)
		if err != nil {
			return nil, fmt.Errorf("resolve_utxos(%x): %w", sh, err)
		}
		for _, tx := range txs {
			txHash, err := chainhash.NewHashFromStr(tx.TxID)
			if err != nil {
				continue
			}
			full, err := r.fetchTx(ctx, *txHash)
			if err != nil {
				return nil, err
			}
			for vout, o := range full.Vout {
				if o.ScriptPubKey != hex.EncodeToString(script) {
					continue
				}
				spent, err := r.ResolveSpent(ctx, *txHash, uint32(vout), false)
				if err != nil {
					return nil, err
				}
				if spent.Spent {
					continue
				}
				out = append(out, Utxo{
					OutPoint:    wire.OutPoint{Hash: *txHash, Index: uint32(vout)},
					Value:       o.Value,
					PkScript:    script,
					Confirmed:   full.Status.Confirmed,
					BlockHeight: full.Status.BlockHeight,
				})
			}
		}
	}
	return out, nil
}

// Prefetch batches the UTXO/transaction lookups a composition will need
// up front, keeping the per-operation cache warm. Grounded on
// original_source's src/rgb/prefetch.rs.
func (r *Resolver) Prefetch(ctx context.Context, outpoints []wire.OutPoint, txids []chainhash.Hash) error {
	for _, op := range outpoints {
		if _, err := r.ResolveSpent(ctx, op.Hash, op.Index, false); err != nil {
			return err
		}
	}
	for _, txid := range txids {
		if _, err := r.fetchTx(ctx, txid); err != nil {
			return err
		}
	}
	return nil
}

func scripthash(script []byte) string {
	h := chainhash.HashH(script)
	// Esplora scripthashes are the sha256 of the script, byte-reversed
	// the same way txids are displayed, for historical compatibility
	// with Electrum server addressing.
	reversed := make([]byte, len(h))
	for i := range h {
		reversed[i] = h[len(h)-1-i]
	}
	return hex.EncodeToString(reversed)
}

func txFromResponse(resp *TransactionResponse) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(resp.Version)
	tx.LockTime = resp.Locktime
	for _, in := range resp.Vin {
		hash, err := chainhash.NewHashFromStr(in.TxID)
		if err != nil {
			return nil, fmt.Errorf("bad input txid: %w", err)
		}
		txIn := wire.NewTxIn(&wire.OutPoint{Hash: *hash, Index: in.Vout}, nil, nil)
		txIn.Sequence = in.Sequence
		if in.ScriptSig != "" {
			sigScript, err := hex.DecodeString(in.ScriptSig)
			if err != nil {
				return nil, fmt.Errorf("bad scriptsig: %w", err)
			}
			txIn.SignatureScript = sigScript
		}
		tx.AddTxIn(txIn)
	}
	for _, out := range resp.Vout {
		pkScript, err := hex.DecodeString(out.ScriptPubKey)
		if err != nil {
			return nil, fmt.Errorf("bad scriptpubkey: %w", err)
		}
		tx.AddTxOut(wire.NewTxOut(out.Value, pkScript))
	}
	return tx, nil
}

// taprootOutputKey extracts the x-only output key from a P2TR scriptPubkey.
func taprootOutputKey(pkScript []byte) ([]byte, error) {
	if len(pkScript) != 34 || pkScript[0] != txscript.OP_1 {
		return nil, fmt.Errorf("not a v1 taproot scriptpubkey")
	}
	return pkScript[2:], nil
}

