package btcwallet

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/chain"
	"github.com/btcsuite/btcwallet/waddrmgr"
	"github.com/rgb-wg/rgb-wallet/chain/mempool"
)

func timeFromUnix(sec int64) time.Time { return time.Unix(sec, 0) }

// chainSource adapts mempool.Client to btcwallet's chain.Interface.
type chainSource struct {
	client  *mempool.Client
	timeout time.Duration
}

func newChainSource(client *mempool.Client, timeout time.Duration) chain.Interface {
	return &chainSource{client: client, timeout: timeout}
}

func (c *chainSource) Start() error           { return nil }
func (c *chainSource) Stop()                  {}
func (c *chainSource) WaitForShutdown()       {}
func (c *chainSource) IsCurrent() bool        { return true }
func (c *chainSource) BackEnd() string        { return "mempool.space" }
func (c *chainSource) MapRPCErr(err error) error { return err }

func (c *chainSource) GetBestBlock() (*chainhash.Hash, int32, error) {
	ctx := withChainTimeout(c.timeout)
	defer ctx.cancel()

	height, err := c.client.GetCurrentHeight(ctx.Context)
	if err != nil {
		return nil, 0, err
	}
	hash, err := c.GetBlockHash(int64(height))
	if err != nil {
		return nil, 0, err
	}
	return hash, int32(height), nil
}

// GetBlock returns a header-only block: mempool.space's REST API exposes
// block metadata, not raw block bytes, so the transaction list is always
// empty. Callers needing specific transactions use GetTransaction instead.
func (c *chainSource) GetBlock(hash *chainhash.Hash) (*wire.MsgBlock, error) {
	ctx := withChainTimeout(c.timeout)
	defer ctx.cancel()

	resp, err := c.client.GetBlock(ctx.Context, hash.String())
	if err != nil {
		return nil, err
	}

	merkleRoot, err := chainhash.NewHashFromStr(resp.MerkleRoot)
	if err != nil {
		return nil, fmt.Errorf("parse merkle root: %w", err)
	}
	prevHash, err := chainhash.NewHashFromStr(resp.PreviousBlockHash)
	if err != nil {
		prevHash = &chainhash.Hash{}
	}

	return &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:    resp.Version,
			PrevBlock:  *prevHash,
			MerkleRoot: *merkleRoot,
			Timestamp:  timeFromUnix(resp.Timestamp),
			Bits:       resp.Bits,
			Nonce:      resp.Nonce,
		},
	}, nil
}

func (c *chainSource) GetBlockHash(height int64) (*chainhash.Hash, error) {
	ctx := withChainTimeout(c.timeout)
	defer ctx.cancel()

	hashStr, err := c.client.GetBlockHash(ctx.Context, height)
	if err != nil {
		return nil, err
	}
	return chainhash.NewHashFromStr(hashStr)
}

func (c *chainSource) GetBlockHeader(hash *chainhash.Hash) (*wire.BlockHeader, error) {
	block, err := c.GetBlock(hash)
	if err != nil {
		return nil, err
	}
	return &block.Header, nil
}

func (c *chainSource) FilterBlocks(req *chain.FilterBlocksRequest) (*chain.FilterBlocksResponse, error) {
	return &chain.FilterBlocksResponse{}, fmt.Errorf("btcwallet: FilterBlocks not implemented for mempool.space backend")
}

func (c *chainSource) BlockStamp() (*waddrmgr.BlockStamp, error) {
	hash, height, err := c.GetBestBlock()
	if err != nil {
		return nil, err
	}
	return &waddrmgr.BlockStamp{Height: height, Hash: *hash}, nil
}

func (c *chainSource) SendRawTransaction(tx *wire.MsgTx, allowHighFees bool) (*chainhash.Hash, error) {
	ctx := withChainTimeout(c.timeout)
	defer ctx.cancel()

	if err := c.client.BroadcastTransaction(ctx.Context, tx); err != nil {
		return nil, err
	}
	txHash := tx.TxHash()
	return &txHash, nil
}

func (c *chainSource) Rescan(startHash *chainhash.Hash, addrs []btcutil.Address, outPoints map[wire.OutPoint]btcutil.Address) error {
	return fmt.Errorf("btcwallet: rescan not implemented for mempool.space backend")
}

func (c *chainSource) NotifyReceived(addrs []btcutil.Address) error { return nil }
func (c *chainSource) NotifyBlocks() error                          { return nil }

func (c *chainSource) Notifications() <-chan interface{} {
	ch := make(chan interface{})
	close(ch)
	return ch
}

func (c *chainSource) TestMempoolAccept(txns []*wire.MsgTx, maxFeeRate float64) ([]*btcjson.TestMempoolAcceptResult, error) {
	return nil, fmt.Errorf("btcwallet: TestMempoolAccept not supported by mempool.space")
}
