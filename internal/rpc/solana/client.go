package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Client is a JSON-RPC client for a Solana-compatible endpoint. All block
// reads use finalized commitment.
type Client struct {
	httpClient *http.Client
	endpoint   string

	rpcID int64
	mutex sync.Mutex
}

// NewClient builds a client for baseURL. A non-empty apiKey is appended as an
// api-key query parameter, the convention of hosted RPC providers.
func NewClient(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse rpc url: %w", err)
	}
	if apiKey != "" {
		q := u.Query()
		q.Set("api-key", apiKey)
		u.RawQuery = q.Encode()
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   u.String(),
		rpcID:      1,
	}, nil
}

func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	raw, err := c.call(ctx, "getSlot", []any{map[string]string{"commitment": "finalized"}})
	if err != nil {
		return 0, err
	}
	var slot uint64
	if err := json.Unmarshal(raw, &slot); err != nil {
		return 0, &MalformedResponseError{Method: "getSlot", Err: err}
	}
	return slot, nil
}

// GetBlock fetches the block at slot. ErrSlotSkipped is returned when the
// ledger produced no block for it.
func (c *Client) GetBlock(ctx context.Context, slot uint64) (*GetBlockResult, error) {
	cfg := GetBlockConfig{
		Encoding:                       "json",
		TransactionDetails:             "full",
		Rewards:                        false,
		MaxSupportedTransactionVersion: 0,
		Commitment:                     "finalized",
	}
	raw, err := c.call(ctx, "getBlock", []any{slot, cfg})
	if err != nil {
		return nil, err
	}
	// Some RPCs return null instead of an error for skipped slots.
	if string(raw) == "null" {
		return nil, ErrSlotSkipped
	}
	var out GetBlockResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &MalformedResponseError{Method: "getBlock", Err: err}
	}
	return &out, nil
}

func (c *Client) GetAccount(ctx context.Context, pubkey string) (*AccountInfo, error) {
	params := []any{pubkey, map[string]string{
		"encoding":   "base64",
		"commitment": "finalized",
	}}
	raw, err := c.call(ctx, "getAccountInfo", params)
	if err != nil {
		return nil, err
	}
	var out getAccountInfoResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &MalformedResponseError{Method: "getAccountInfo", Err: err}
	}
	if out.Value == nil {
		return nil, ErrAccountNotFound
	}
	return out.Value, nil
}

func (c *Client) GetHealth(ctx context.Context) error {
	raw, err := c.call(ctx, "getHealth", nil)
	if err != nil {
		return err
	}
	var status string
	if err := json.Unmarshal(raw, &status); err != nil {
		return &MalformedResponseError{Method: "getHealth", Err: err}
	}
	if status != "ok" {
		return fmt.Errorf("rpc endpoint unhealthy: %s", status)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mutex.Lock()
	reqID := c.rpcID
	c.rpcID++
	c.mutex.Unlock()

	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%s: %w", method, ErrRateLimited)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d: %s", method, resp.StatusCode, string(body))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, &MalformedResponseError{Method: method, Err: err}
	}
	if rpcResp.Error != nil {
		if rpcResp.Error.isSlotSkipped() {
			return nil, fmt.Errorf("%s: %w", method, ErrSlotSkipped)
		}
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}
