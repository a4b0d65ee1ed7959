// Package remote provides an HTTP JSON-RPC client for an external token
// ledger. Sale operations never retry internally: a failed or malformed
// response aborts the enclosing operation.
package remote

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"

	"token-sale-lab/internal/domain"
	"token-sale-lab/internal/ledger"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// wordLength is the expected byte length of a balance word.
const wordLength = 32

// Client implements ledger.TokenLedger over HTTP JSON-RPC 2.0.
type Client struct {
	endpoint  string
	client    *http.Client
	requestID atomic.Uint64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a new remote ledger client.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ ledger.TokenLedger = (*Client)(nil)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a single JSON-RPC call. No retries.
func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", ledger.ErrUnavailable, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}

	return nil
}

// BalanceOf queries the token balance of addr via ledger_balanceOf.
// The result must be exactly one 32-byte hex word; any other shape maps to
// ledger.ErrMalformedBalance.
func (c *Client) BalanceOf(ctx context.Context, addr domain.Address) (*uint256.Int, error) {
	var word string
	if err := c.call(ctx, "ledger_balanceOf", []interface{}{addr.String()}, &word); err != nil {
		return nil, err
	}
	return decodeBalanceWord(word)
}

// Transfer requests a token transfer via ledger_transfer. The remote ledger
// returns the success flag; false means rejected with no effect.
func (c *Client) Transfer(ctx context.Context, from, to domain.Address, amount *uint256.Int) (bool, error) {
	var ok bool
	params := []interface{}{from.String(), to.String(), amount.Hex()}
	if err := c.call(ctx, "ledger_transfer", params, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// decodeBalanceWord decodes a 0x-prefixed hex word into a balance.
func decodeBalanceWord(word string) (*uint256.Int, error) {
	trimmed := strings.TrimPrefix(word, "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrMalformedBalance, err)
	}
	if len(raw) != wordLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ledger.ErrMalformedBalance, wordLength, len(raw))
	}
	return new(uint256.Int).SetBytes(raw), nil
}
