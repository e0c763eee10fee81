// Package proxy implements the consignment proxy collaborator (§6): an
// untrusted store-and-forward service for exchanging consignments and
// media attachments between wallets that aren't simultaneously online.
// This client uploads the bytes it is given unchanged and does no
// encryption of its own; it is a thin JSON envelope over net/http, grounded
// on chain/mempool/client.go's own direct net/http usage rather than
// reaching for a JSON-RPC framework the pack never carries.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Config holds the proxy client's configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL: "https://proxy.rgbtools.org",
		Timeout: 30 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errEmptyBaseURL
	}
	return nil
}

// Client talks to a consignment proxy's consignment.post/consignment.get
// and media.post/media.get endpoints.
type Client struct {
	cfg        *Config
	httpClient *http.Client
}

func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// rpcEnvelope mirrors the JSON-RPC 2.0 shape the proxy speaks for its
// non-upload calls (consignment.get, media.get).
type rpcEnvelope struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      int         `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	ID     int             `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	env := rpcEnvelope{JSONRPC: "2.0", Method: method, Params: params, ID: 1}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("proxy: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/json-rpc", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("proxy: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("proxy: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("proxy: read response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("proxy: unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("proxy: %s (code %d)", rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, out)
}

// PostConsignmentParams names the recipient and carries the ciphertext
// payload to upload.
type PostConsignmentParams struct {
	RecipientID string `json:"recipient_id"`
}

type postResult struct {
	Success bool `json:"success"`
}

// PostConsignment uploads a consignment blob, as given, via a
// multipart POST, pairing the JSON-RPC params with the raw file body the
// way consignment.post's multipart shape requires.
func (c *Client) PostConsignment(ctx context.Context, recipientID string, blob []byte) error {
	return c.postMultipart(ctx, "consignment.post", PostConsignmentParams{RecipientID: recipientID}, blob)
}

// GetConsignment fetches the ciphertext consignment blob stored for a
// recipient id, or nil if nothing is queued for them.
func (c *Client) GetConsignment(ctx context.Context, recipientID string) ([]byte, error) {
	return c.getBlob(ctx, "consignment.get", recipientID)
}

// UploadMedia uploads an encrypted media attachment, keyed by its content
// digest (matching rgbcore.Media.Digest).
func (c *Client) UploadMedia(ctx context.Context, digest string, blob []byte) error {
	return c.postMultipart(ctx, "media.post", PostConsignmentParams{RecipientID: digest}, blob)
}

// DownloadMedia fetches an encrypted media attachment by content digest.
func (c *Client) DownloadMedia(ctx context.Context, digest string) ([]byte, error) {
	return c.getBlob(ctx, "media.get", digest)
}

func (c *Client) postMultipart(ctx context.Context, method string, params PostConsignmentParams, blob []byte) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("proxy: marshal params: %w", err)
	}
	if err := w.WriteField("params", string(paramsJSON)); err != nil {
		return fmt.Errorf("proxy: write params field: %w", err)
	}

	fw, err := w.CreateFormFile("file", "blob.bin")
	if err != nil {
		return fmt.Errorf("proxy: create form file: %w", err)
	}
	if _, err := fw.Write(blob); err != nil {
		return fmt.Errorf("proxy: write blob: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("proxy: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/"+method, &buf)
	if err != nil {
		return fmt.Errorf("proxy: build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("proxy: upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("proxy: upload rejected (%d): %s", resp.StatusCode, string(body))
	}

	var result postResult
	_ = json.NewDecoder(resp.Body).Decode(&result)
	return nil
}

type getResult struct {
	Blob []byte `json:"blob"`
}

func (c *Client) getBlob(ctx context.Context, method, key string) ([]byte, error) {
	var result getResult
	if err := c.call(ctx, method, map[string]string{"recipient_id": key}, &result); err != nil {
		return nil, err
	}
	return result.Blob, nil
}
