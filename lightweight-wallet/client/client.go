// Package client is the top-level embeddable entry point wiring every
// collaborator together: the chain resolver, persistent stash, address
// watcher, key ring, Bitcoin wallet, consignment proxy, and blob store.
package client

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/rgb-wg/rgb-wallet/chain/mempool"
	"github.com/rgb-wg/rgb-wallet/lightweight-wallet/blobstore"
	"github.com/rgb-wg/rgb-wallet/lightweight-wallet/keyring"
	"github.com/rgb-wg/rgb-wallet/lightweight-wallet/proxy"
	"github.com/rgb-wg/rgb-wallet/lightweight-wallet/wallet/btcwallet"
	"github.com/rgb-wg/rgb-wallet/rgbcore"
	rgbinvoice "github.com/rgb-wg/rgb-wallet/rgbcore/invoice"
	"github.com/rgb-wg/rgb-wallet/rgbfreighter"
	"github.com/rgb-wg/rgb-wallet/rgbpsbt"
	"github.com/rgb-wg/rgb-wallet/rgbstash"
	"github.com/rgb-wg/rgb-wallet/rgbwatcher"
)

// Config holds the client's configuration.
type Config struct {
	Network string // "mainnet", "testnet", "regtest"

	DBPath string
	Seed   []byte

	MempoolURL string

	BlobDir        string
	BlobPassphrase []byte

	ProxyURL string
}

// Client wires the collaborators (C1-C7) into one handle applications
// embed to issue invoices, compose transfers, and accept consignments.
type Client struct {
	cfg *Config

	chainClient *mempool.Client
	resolver    *mempool.Resolver
	stash       *rgbstash.Stash
	watcher     *rgbwatcher.Watcher
	keyRing     *keyring.KeyRing
	wallet      *btcwallet.WalletAnchor
	proxy       *proxy.Client
	blobs       *blobstore.Store
}

func netParamsFor(network string) *chaincfg.Params {
	switch network {
	case "mainnet":
		return &chaincfg.MainNetParams
	case "regtest":
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.TestNet3Params
	}
}

// New wires every collaborator and returns a ready client.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("client: config required")
	}
	netParams := netParamsFor(cfg.Network)

	mempoolCfg := mempool.DefaultConfig()
	if cfg.MempoolURL != "" {
		mempoolCfg.BaseURL = cfg.MempoolURL
	}
	chainClient := mempool.NewClient(mempoolCfg)
	resolver, err := mempool.NewResolver(mempoolCfg)
	if err != nil {
		return nil, fmt.Errorf("client: init resolver: %w", err)
	}

	kr, err := keyring.New(keyring.DefaultConfig(cfg.Seed, netParams))
	if err != nil {
		return nil, fmt.Errorf("client: init keyring: %w", err)
	}

	db, err := rgbstash.OpenDB(&rgbstash.Config{DBPath: cfg.DBPath})
	if err != nil {
		return nil, fmt.Errorf("client: open stash db: %w", err)
	}
	stash := rgbstash.Open(db)

	watcher := rgbwatcher.New("default", krScriptDeriver{kr}, mempool.NewWatcherAdapter(resolver))

	walletCfg := btcwallet.DefaultConfig(chainClient)
	walletCfg.DBPath = cfg.DBPath + ".wallet"
	walletCfg.Seed = cfg.Seed
	walletCfg.NetParams = netParams
	wallet, err := btcwallet.New(walletCfg)
	if err != nil {
		return nil, fmt.Errorf("client: init wallet: %w", err)
	}

	proxyCfg := proxy.DefaultConfig()
	if cfg.ProxyURL != "" {
		proxyCfg.BaseURL = cfg.ProxyURL
	}
	proxyClient := proxy.NewClient(proxyCfg)

	blobCfg := blobstore.DefaultConfig()
	if cfg.BlobDir != "" {
		blobCfg.Dir = cfg.BlobDir
	}
	blobCfg.Passphrase = cfg.BlobPassphrase
	blobs, err := blobstore.New(blobCfg)
	if err != nil {
		return nil, fmt.Errorf("client: init blob store: %w", err)
	}

	return &Client{
		cfg:         cfg,
		chainClient: chainClient,
		resolver:    resolver,
		stash:       stash,
		watcher:     watcher,
		keyRing:     kr,
		wallet:      wallet,
		proxy:       proxyClient,
		blobs:       blobs,
	}, nil
}

func (c *Client) Start() error {
	return c.wallet.Start()
}

func (c *Client) Stop() error {
	return c.wallet.Stop()
}

// BalanceOf returns the confirmed fungible balance of a contract.
func (c *Client) BalanceOf(ctx context.Context, contractID rgbcore.ContractId, assignmentType rgbcore.AssignmentType) (uint64, error) {
	state, err := c.stashAdapter().StateForOutpoints(contractID, nil)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, a := range state {
		if a.State.Kind == rgbcore.StateAmount {
			total += a.State.Amount
		}
	}
	return total, nil
}

// NextInvoice derives a fresh receive address/seal and returns an
// invoice for the given contract and amount.
func (c *Client) NextInvoice(contractID rgbcore.ContractId, iface string, assignmentType rgbcore.AssignmentType, amount uint64) (*rgbcoreInvoiceHandle, error) {
	script, addrIdx, err := c.watcher.NextAddress(rgbwatcher.AppRGB20)
	if err != nil {
		return nil, fmt.Errorf("client: derive address: %w", err)
	}
	_ = script

	return &rgbcoreInvoiceHandle{
		ContractId:     contractID,
		Interface:      iface,
		AssignmentType: assignmentType,
		Amount:         amount,
		AddrIndex:      addrIdx,
	}, nil
}

// rgbcoreInvoiceHandle is a minimal, client-local view of an outgoing
// invoice pending beneficiary-seal assignment.
type rgbcoreInvoiceHandle struct {
	ContractId     rgbcore.ContractId
	Interface      string
	AssignmentType rgbcore.AssignmentType
	Amount         uint64
	AddrIndex      uint32
}

func (c *Client) stashAdapter() *rgbfreighter.StashAdapter {
	return rgbfreighter.NewStashAdapter(c.stash)
}

// SendInput names a funding outpoint the caller has already selected and
// unlocked via the wallet anchor.
type SendInput struct {
	OutPoint wire.OutPoint
	Terminal rgbpsbt.Terminal
	Sequence uint32
}

// SendAsset builds a funded PSBT paying the decoded invoice, composes the
// resulting transitions/bundle/anchor/consignment, and hands the
// consignment to the proxy for pickup by the recipient. Each consignment
// is posted gob-encoded and unencrypted.
func (c *Client) SendAsset(ctx context.Context, invoiceStr string, inputs []SendInput, changeScript []byte, fee int64) (*rgbfreighter.Result, error) {
	inv, err := rgbinvoice.Decode(invoiceStr)
	if err != nil {
		return nil, fmt.Errorf("client: decode invoice: %w", err)
	}

	descriptor := &clientDescriptor{kr: c.keyRing}
	funding := &clientFundingResolver{r: c.resolver}

	buildInputs := make([]rgbpsbt.InputDescriptor, len(inputs))
	prevOuts := make([]rgbfreighter.OutPoint, len(inputs))
	for i, in := range inputs {
		buildInputs[i] = rgbpsbt.InputDescriptor{
			OutPoint: in.OutPoint,
			Terminal: in.Terminal,
			Sequence: in.Sequence,
		}
		prevOuts[i] = rgbfreighter.OutPoint{
			Txid: in.OutPoint.Hash,
			Vout: in.OutPoint.Index,
		}
	}

	packet, err := rgbpsbt.Build(ctx, rgbpsbt.BuildParams{
		Descriptor:   descriptor,
		Resolver:     funding,
		Inputs:       buildInputs,
		ChangeScript: changeScript,
		Fee:          fee,
	})
	if err != nil {
		return nil, fmt.Errorf("client: build psbt: %w", err)
	}

	result, err := rgbfreighter.Compose(rgbfreighter.ComposeParams{
		Invoice: rgbfreighter.Invoice{
			ContractId:     inv.ContractId,
			Interface:      inv.Interface,
			AssignmentType: inv.AssignmentType,
			Amount:         inv.Amount,
			TokenIndex:     inv.TokenIndex,
			Beneficiary:    inv.Beneficiary,
		},
		Packet:   packet,
		PrevOuts: prevOuts,
		Stash:    c.stashAdapter(),
	})
	if err != nil {
		return nil, fmt.Errorf("client: compose transfer: %w", err)
	}

	genesis, err := c.stash.Genesis(inv.ContractId)
	if err != nil {
		return nil, fmt.Errorf("client: load genesis: %w", err)
	}

	result.Consignments, err = rgbfreighter.Assemble(rgbfreighter.AssembleParams{
		ContractId: inv.ContractId,
		Genesis:    *genesis,
		SchemaId:   genesis.SchemaId,
		Bundles:    result.Bundles,
		Anchors:    []*rgbcore.Anchor{result.Anchor},
		Terminals:  []rgbcore.Seal{inv.Beneficiary},
	})
	if err != nil {
		return nil, fmt.Errorf("client: assemble consignment: %w", err)
	}

	for i, cons := range result.Consignments {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(cons); err != nil {
			return nil, fmt.Errorf("client: encode consignment %d: %w", i, err)
		}
		if err := c.proxy.PostConsignment(ctx, invoiceRecipientID(inv, i), buf.Bytes()); err != nil {
			return nil, fmt.Errorf("client: post consignment %d: %w", i, err)
		}
	}

	return result, nil
}

func invoiceRecipientID(inv rgbinvoice.Invoice, idx int) string {
	return fmt.Sprintf("%x:%d", inv.Beneficiary.Txid, idx)
}

// krScriptDeriver adapts keyring.KeyRing to rgbwatcher.ScriptDeriver.
type krScriptDeriver struct{ kr *keyring.KeyRing }

func (d krScriptDeriver) DeriveScript(app, index uint32) ([]byte, error) {
	return d.kr.DeriveScript(app, index)
}

func (d krScriptDeriver) DeriveInternalKey(app, index uint32) (*btcec.PublicKey, error) {
	return d.kr.DeriveInternalKey(app, index)
}

var _ rgbpsbt.Descriptor = (*clientDescriptor)(nil)

// clientDescriptor adapts the key ring to rgbpsbt.Descriptor.
type clientDescriptor struct{ kr *keyring.KeyRing }

func (d *clientDescriptor) ScriptAt(t rgbpsbt.Terminal) ([]byte, error) {
	return d.kr.DeriveScript(t.App, t.Index)
}

func (d *clientDescriptor) InternalKeyAt(t rgbpsbt.Terminal) ([]byte, error) {
	pub, err := d.kr.DeriveInternalKey(t.App, t.Index)
	if err != nil {
		return nil, err
	}
	return pub.SerializeCompressed(), nil
}

var _ rgbpsbt.FundingResolver = (*clientFundingResolver)(nil)

// clientFundingResolver adapts the C1 resolver to rgbpsbt.FundingResolver.
type clientFundingResolver struct{ r *mempool.Resolver }

func (r *clientFundingResolver) ResolveTx(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error) {
	return r.r.ResolveTx(ctx, txid)
}
