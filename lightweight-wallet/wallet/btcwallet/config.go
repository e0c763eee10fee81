package btcwallet

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcwallet/wallet"
	"github.com/rgb-wg/rgb-wallet/chain/mempool"
)

// Config holds the configuration for the btcwallet-based WalletAnchor, the
// Bitcoin-side UTXO/signing collaborator. Out of scope for RGB transfer
// semantics, but kept so rgbpsbt.Build has real funding inputs and
// rgbpsbt-signed PSBTs to broadcast.
type Config struct {
	NetParams *chaincfg.Params

	// DBPath locates the wallet database: the wallet loader keeps its
	// database file in DBPath's directory. If empty, the current directory
	// is used.
	DBPath string

	PrivatePass []byte
	PublicPass  []byte

	// Seed is the wallet seed for key derivation. Used to initialize a
	// new wallet.
	Seed []byte

	// Birthday is the wallet birthday (earliest time to scan for
	// transactions). If zero, scans from genesis.
	Birthday time.Time

	// Chain is the mempool.space-backed chain client. MinRelayFee uses it
	// for fee estimation; Start wraps it in a chainSource but does not
	// attach that source to the wallet, so the wallet runs no chain sync.
	Chain *mempool.Client

	// RecoveryWindow is the number of addresses to generate during
	// recovery.
	RecoveryWindow uint32

	MinConfs uint32

	// ChainRequestTimeout bounds each call chainSource makes against
	// Chain. Zero falls back to defaultChainRequestTimeout.
	ChainRequestTimeout time.Duration

	// UtxoLockDuration is how long a UTXO selected by FundPsbt stays
	// reserved against concurrent selection, giving one in-flight
	// transfer composition exclusive use of it until it either broadcasts
	// or the reservation expires.
	UtxoLockDuration time.Duration
}

func DefaultConfig(chainClient *mempool.Client) *Config {
	return &Config{
		NetParams:        &chaincfg.TestNet3Params,
		PrivatePass:      []byte("password"),
		PublicPass:       []byte(wallet.InsecurePubPassphrase),
		RecoveryWindow:   250,
		MinConfs:         1,
		Chain:            chainClient,
		UtxoLockDuration: 10 * time.Minute,
	}
}

func (c *Config) Validate() error {
	if c.NetParams == nil {
		return ErrInvalidNetParams
	}
	if c.Chain == nil {
		return ErrChainBridgeRequired
	}
	if len(c.PrivatePass) == 0 {
		return ErrPrivatePassRequired
	}
	return nil
}
