package mempool

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/rgb-wg/rgb-wallet/rgbcore"
	"golang.org/x/time/rate"
)

// Client is an HTTP client for an Esplora-compatible explorer API, with
// rate limiting and retry/backoff on retryable failures.
type Client struct {
	cfg *Config

	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient creates a new explorer API client.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: limiter,
	}
}

// doRequest performs an HTTP request with rate limiting and retries. A
// network failure or a 429, 500, 502, 503 or 504 response is retried and
// finally surfaces as a retryable ResolverError (ServiceUnavailable); any
// other non-2xx response (404 included), or an unreadable body, surfaces
// as a fatal Malformed error.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	url := c.cfg.BaseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, rgbcore.NewMalformed(fmt.Errorf("rate limiter error: %w", err))
		}

		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, rgbcore.NewMalformed(fmt.Errorf("failed to create request: %w", err))
		}
		if body != nil {
			req.Header.Set("Content-Type", "text/plain")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = rgbcore.NewServiceUnavailable(fmt.Errorf("HTTP request failed: %w", err))
			if attempt < c.cfg.RetryAttempts {
				time.Sleep(c.cfg.RetryDelay * time.Duration(attempt+1))
				continue
			}
			return nil, lastErr
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, rgbcore.NewMalformed(fmt.Errorf("failed to read response body: %w", err))
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}

		switch resp.StatusCode {
		case 429:
			lastErr = rgbcore.NewServiceUnavailable(fmt.Errorf("rate limited by server (429)"))
			if attempt < c.cfg.RetryAttempts {
				time.Sleep(c.cfg.RetryDelay * time.Duration(attempt+1) * 2)
				continue
			}
		case 404:
			return nil, rgbcore.NewMalformed(fmt.Errorf("resource not found (404): %s", string(respBody)))
		case 500, 502, 503, 504:
			lastErr = rgbcore.NewServiceUnavailable(fmt.Errorf("server error (%d): %s", resp.StatusCode, string(respBody)))
			if attempt < c.cfg.RetryAttempts {
				time.Sleep(c.cfg.RetryDelay * time.Duration(attempt+1))
				continue
			}
		default:
			return nil, rgbcore.NewMalformed(fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(respBody)))
		}
	}

	return nil, lastErr
}

// GetCurrentHeight retrieves the current blockchain height.
func (c *Client) GetCurrentHeight(ctx context.Context) (uint32, error) {
	respBody, err := c.doRequest(ctx, "GET", "/blocks/tip/height", nil)
	if err != nil {
		return 0, err
	}
	var height uint32
	if err := json.Unmarshal(respBody, &height); err != nil {
		return 0, rgbcore.NewMalformed(fmt.Errorf("failed to parse height: %w", err))
	}
	return height, nil
}

// GetBlockHash retrieves the block hash for a given height.
func (c *Client) GetBlockHash(ctx context.Context, height int64) (string, error) {
	path := fmt.Sprintf("/block-height/%d", height)
	respBody, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return "", err
	}
	return string(respBody), nil
}

// GetBlock retrieves a block by its hash.
func (c *Client) GetBlock(ctx context.Context, blockHash string) (*BlockResponse, error) {
	path := fmt.Sprintf("/block/%s", blockHash)
	respBody, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}
	var block BlockResponse
	if err := json.Unmarshal(respBody, &block); err != nil {
		return nil, rgbcore.NewMalformed(fmt.Errorf("failed to parse block: %w", err))
	}
	return &block, nil
}

// GetTransaction retrieves a transaction by its ID.
func (c *Client) GetTransaction(ctx context.Context, txid string) (*TransactionResponse, error) {
	path := fmt.Sprintf("/tx/%s", txid)
	respBody, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}
	var tx TransactionResponse
	if err := json.Unmarshal(respBody, &tx); err != nil {
		return nil, rgbcore.NewMalformed(fmt.Errorf("failed to parse transaction: %w", err))
	}
	return &tx, nil
}

// GetOutspend retrieves the spent-status of a specific output.
func (c *Client) GetOutspend(ctx context.Context, txid string, vout uint32) (*OutspendResponse, error) {
	path := fmt.Sprintf("/tx/%s/outspend/%d", txid, vout)
	respBody, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}
	var out OutspendResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, rgbcore.NewMalformed(fmt.Errorf("failed to parse outspend: %w", err))
	}
	return &out, nil
}

// GetScripthashTxs retrieves every transaction touching a scripthash,
// paginating when the explorer returns 25 or more confirmed entries (the
// Esplora page size).
func (c *Client) GetScripthashTxs(ctx context.Context, scripthash string) ([]ScripthashTx, error) {
	var all []ScripthashTx
	path := fmt.Sprintf("/scripthash/%s/txs", scripthash)
	for {
		respBody, err := c.doRequest(ctx, "GET", path, nil)
		if err != nil {
			return nil, err
		}
		var page []ScripthashTx
		if err := json.Unmarshal(respBody, &page); err != nil {
			return nil, rgbcore.NewMalformed(fmt.Errorf("failed to parse scripthash txs: %w", err))
		}
		all = append(all, page...)
		confirmed := 0
		var lastSeen string
		for _, tx := range page {
			if tx.Status.Confirmed {
				confirmed++
				lastSeen = tx.TxID
			}
		}
		if confirmed < 25 {
			return all, nil
		}
		path = fmt.Sprintf("/scripthash/%s/txs/chain/%s", scripthash, lastSeen)
	}
}

// BroadcastTransaction broadcasts a raw transaction to the network.
func (c *Client) BroadcastTransaction(ctx context.Context, tx *wire.MsgTx) error {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return rgbcore.NewMalformed(fmt.Errorf("failed to serialize transaction: %w", err))
	}
	txHex := hex.EncodeToString(buf.Bytes())

	_, err := c.doRequest(ctx, "POST", "/tx", []byte(txHex))
	if err != nil {
		return fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	return nil
}

// GetFeeEstimates retrieves fee estimates for different confirmation
// targets.
func (c *Client) GetFeeEstimates(ctx context.Context) (*FeeEstimates, error) {
	respBody, err := c.doRequest(ctx, "GET", "/v1/fees/recommended", nil)
	if err != nil {
		return nil, err
	}
	var fees FeeEstimates
	if err := json.Unmarshal(respBody, &fees); err != nil {
		return nil, rgbcore.NewMalformed(fmt.Errorf("failed to parse fee estimates: %w", err))
	}
	return &fees, nil
}
