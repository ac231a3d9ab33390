// Package ledger is the JSON-RPC client for the external ledger. It is pure
// transport: no retry, no interpretation beyond decoding. Classification of
// outcomes belongs to the executor.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"faucetd/pkg/platform/sentinel"
)

// Client talks to a ledger node over its JSON-RPC HTTP endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// New creates a ledger client for the given JSON-RPC endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("ledger endpoint is required")
	}
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// rpcRequest is the JSON-RPC envelope the node expects: a method name and a
// single positional params object.
type rpcRequest struct {
	Method string `json:"method"`
	Params [1]any `json:"params"`
}

type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
}

type rpcStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

// call performs one JSON-RPC round trip and decodes result into out.
// Transport and node-level failures wrap sentinel.ErrUnavailable so callers
// can distinguish "could not ask" from a negative answer.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	body, err := json.Marshal(rpcRequest{Method: method, Params: [1]any{params}})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", method, sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %w: node returned status %d", method, sentinel.ErrUnavailable, resp.StatusCode)
	}

	var env rpcEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}

	var status rpcStatus
	if err := json.Unmarshal(env.Result, &status); err != nil {
		return fmt.Errorf("decode %s status: %w", method, err)
	}
	if status.Status == "error" {
		// Node answered but refused the query. txnNotFound is a factual
		// answer, everything else is treated as the node being unusable.
		if status.Error == "txnNotFound" {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("%s: %w: %s", method, sentinel.ErrUnavailable, status.Error)
	}

	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// AccountLines returns the relationship lines between account and the peer
// issuer, as of the last validated ledger.
func (c *Client) AccountLines(ctx context.Context, account, peer string) ([]TrustLine, error) {
	params := map[string]any{
		"account":      account,
		"peer":         peer,
		"ledger_index": "validated",
	}
	var out struct {
		Lines []TrustLine `json:"lines"`
	}
	if err := c.call(ctx, "account_lines", params, &out); err != nil {
		return nil, err
	}
	return out.Lines, nil
}

// AccountState returns the account's next sequence and the validated ledger index.
func (c *Client) AccountState(ctx context.Context, account string) (*AccountState, error) {
	params := map[string]any{
		"account":      account,
		"ledger_index": "validated",
	}
	var out struct {
		AccountData struct {
			Sequence uint32 `json:"Sequence"`
		} `json:"account_data"`
		LedgerIndex uint32 `json:"ledger_index"`
	}
	if err := c.call(ctx, "account_info", params, &out); err != nil {
		return nil, err
	}
	return &AccountState{
		Sequence:        out.AccountData.Sequence,
		ValidatedLedger: out.LedgerIndex,
	}, nil
}

// BaseFee returns the current base transaction fee in drops.
func (c *Client) BaseFee(ctx context.Context) (string, error) {
	var out struct {
		Drops struct {
			BaseFee string `json:"base_fee"`
		} `json:"drops"`
	}
	if err := c.call(ctx, "fee", map[string]any{}, &out); err != nil {
		return "", err
	}
	if out.Drops.BaseFee == "" {
		return "", fmt.Errorf("fee: node returned empty base fee")
	}
	return out.Drops.BaseFee, nil
}

// Submit broadcasts a signed transaction blob. The returned engine result is
// preliminary; the transaction is final only once observed validated via TxStatus.
func (c *Client) Submit(ctx context.Context, txBlob string) (*SubmitResult, error) {
	params := map[string]any{"tx_blob": txBlob}
	var out struct {
		EngineResult        string `json:"engine_result"`
		EngineResultMessage string `json:"engine_result_message"`
	}
	if err := c.call(ctx, "submit", params, &out); err != nil {
		return nil, err
	}
	return &SubmitResult{
		EngineResult:        out.EngineResult,
		EngineResultMessage: out.EngineResultMessage,
	}, nil
}

// TxStatus looks up a transaction by hash. A missing transaction is not an
// error: it simply has not been seen (yet, or ever).
func (c *Client) TxStatus(ctx context.Context, hash string) (*TxResult, error) {
	params := map[string]any{"transaction": hash}
	var out struct {
		Validated bool `json:"validated"`
		Meta      struct {
			TransactionResult string `json:"TransactionResult"`
		} `json:"meta"`
	}
	err := c.call(ctx, "tx", params, &out)
	if errors.Is(err, sentinel.ErrNotFound) {
		return &TxResult{Found: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &TxResult{
		Found:     true,
		Validated: out.Validated,
		Result:    out.Meta.TransactionResult,
	}, nil
}
