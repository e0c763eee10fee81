// Package keyring implements the wallet's BIP32 signer collaborator: a
// demo single-seed HD key ring deriving along the m/1017'/0'/app'/0/index
// path rgbpsbt.InputDescriptor and rgbwatcher.ScriptDeriver expect.
package keyring

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

const (
	// Purpose is the BIP43 purpose field RGB wallets reserve: 1017.
	Purpose = 1017

	// CoinType is the BIP44 coin type (0 = Bitcoin).
	CoinType = 0
)

// Config holds the configuration for the KeyRing.
type Config struct {
	NetParams *chaincfg.Params
	Seed      []byte

	// IndexStore is optional storage for the per-app next-index
	// counters. If nil, indexes are kept in memory only.
	IndexStore IndexStore
}

func DefaultConfig(seed []byte, params *chaincfg.Params) *Config {
	return &Config{NetParams: params, Seed: seed}
}

// KeyRing derives Taproot internal keys along m/1017'/0'/app'/0/index and
// satisfies rgbwatcher.ScriptDeriver.
type KeyRing struct {
	cfg       *Config
	masterKey *hdkeychain.ExtendedKey

	nextIndex map[uint32]uint32

	mu sync.RWMutex
}

func New(cfg *Config) (*KeyRing, error) {
	if cfg == nil {
		return nil, fmt.Errorf("keyring: config is required")
	}
	if len(cfg.Seed) == 0 {
		return nil, fmt.Errorf("keyring: seed is required")
	}
	if cfg.NetParams == nil {
		return nil, fmt.Errorf("keyring: network params required")
	}

	masterKey, err := hdkeychain.NewMaster(cfg.Seed, cfg.NetParams)
	if err != nil {
		return nil, fmt.Errorf("keyring: create master key: %w", err)
	}

	kr := &KeyRing{
		cfg:       cfg,
		masterKey: masterKey,
		nextIndex: make(map[uint32]uint32),
	}

	if cfg.IndexStore != nil {
		all, err := cfg.IndexStore.GetAllIndexes()
		if err != nil {
			return nil, fmt.Errorf("keyring: load indexes: %w", err)
		}
		kr.nextIndex = all
	}

	return kr, nil
}

// NextIndex returns and reserves the next unused index for app, the
// counterpart to rgbwatcher.Watcher.NextAddress's own bookkeeping when the
// key ring, rather than the watcher, owns index allocation.
func (kr *KeyRing) NextIndex(app uint32) (uint32, error) {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	idx := kr.nextIndex[app]
	kr.nextIndex[app] = idx + 1

	if kr.cfg.IndexStore != nil {
		if err := kr.cfg.IndexStore.SetCurrentIndex(app, idx+1); err != nil {
			return 0, fmt.Errorf("keyring: persist index: %w", err)
		}
	}
	return idx, nil
}

// DeriveInternalKey implements rgbwatcher.ScriptDeriver: the taproot
// internal public key at m/1017'/0'/app'/0/index.
func (kr *KeyRing) DeriveInternalKey(app, index uint32) (*btcec.PublicKey, error) {
	key, err := kr.deriveKeyAtPath(app, index)
	if err != nil {
		return nil, err
	}
	return key.ECPubKey()
}

// DeriveScript implements rgbwatcher.ScriptDeriver: a plain P2TR
// scriptPubkey over the derived internal key (no script-path commitment;
// tapret tweaks are applied separately once the asset state is known).
func (kr *KeyRing) DeriveScript(app, index uint32) ([]byte, error) {
	pub, err := kr.DeriveInternalKey(app, index)
	if err != nil {
		return nil, err
	}
	return txscript.PayToTaprootScript(pub)
}

// DeriveSharedKey performs ECDH against an ephemeral counterparty key at
// the given app/index, used for blinding-factor derivation in invoices.
func (kr *KeyRing) DeriveSharedKey(app, index uint32, ephemeralPubKey *btcec.PublicKey) ([sha256.Size]byte, error) {
	key, err := kr.deriveKeyAtPath(app, index)
	if err != nil {
		return [32]byte{}, err
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return [32]byte{}, fmt.Errorf("keyring: private key: %w", err)
	}

	shared := btcec.GenerateSharedSecret(priv, ephemeralPubKey)
	return sha256.Sum256(shared), nil
}

// PrivateKeyAt returns the private key at m/1017'/0'/app'/0/index, for
// signing PSBT inputs whose InputDescriptor names this terminal.
func (kr *KeyRing) PrivateKeyAt(app, index uint32) (*btcec.PrivateKey, error) {
	key, err := kr.deriveKeyAtPath(app, index)
	if err != nil {
		return nil, err
	}
	return key.ECPrivKey()
}

func (kr *KeyRing) deriveKeyAtPath(app, index uint32) (*hdkeychain.ExtendedKey, error) {
	key := kr.masterKey

	for _, step := range []uint32{
		hdkeychain.HardenedKeyStart + Purpose,
		hdkeychain.HardenedKeyStart + CoinType,
		hdkeychain.HardenedKeyStart + app,
		0,
		index,
	} {
		var err error
		key, err = key.Derive(step)
		if err != nil {
			return nil, fmt.Errorf("keyring: derive path: %w", err)
		}
	}

	return key, nil
}
