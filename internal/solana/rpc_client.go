package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	solana "github.com/gagliardetto/solana-go"

	"switchboard-sim/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout = 30 * time.Second
	// Simulation runs are single-shot: a failed call is reported, not repeated.
	DefaultMaxRetries  = 0
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the RPC URL the client talks to.
func (c *HTTPClient) Endpoint() string {
	return c.endpoint
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object returned by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call, retrying transport failures with exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	start := time.Now()
	defer func() {
		observability.RecordRPCLatency(method, time.Since(start).Seconds())
	}()

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

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		// RPC errors are not retried
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

	if c.maxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

type rpcContext struct {
	Slot uint64 `json:"slot"`
}

type getLatestBlockhashResult struct {
	Context rpcContext `json:"context"`
	Value   *struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	} `json:"value"`
}

// GetLatestBlockhash retrieves the latest blockhash at the node's default commitment.
func (c *HTTPClient) GetLatestBlockhash(ctx context.Context) (*LatestBlockhash, error) {
	var result getLatestBlockhashResult
	if err := c.call(ctx, "getLatestBlockhash", nil, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, fmt.Errorf("getLatestBlockhash: empty value")
	}

	hash, err := solana.HashFromBase58(result.Value.Blockhash)
	if err != nil {
		return nil, fmt.Errorf("decode blockhash %q: %w", result.Value.Blockhash, err)
	}

	return &LatestBlockhash{
		Slot:                 result.Context.Slot,
		Blockhash:            hash,
		LastValidBlockHeight: result.Value.LastValidBlockHeight,
	}, nil
}

type simulateTransactionResult struct {
	Context rpcContext           `json:"context"`
	Value   *simulateResultValue `json:"value"`
}

type simulateResultValue struct {
	Err               interface{}             `json:"err"`
	Logs              []string                `json:"logs"`
	Accounts          []*getAccountInfoValue  `json:"accounts"`
	UnitsConsumed     *uint64                 `json:"unitsConsumed"`
	InnerInstructions []InnerInstructionGroup `json:"innerInstructions"`
	ReturnData        *ReturnData             `json:"returnData"`
}

type getAccountInfoValue struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [base64_data, encoding]
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

// SimulateTransaction serializes tx and submits it to simulateTransaction.
func (c *HTTPClient) SimulateTransaction(ctx context.Context, tx *solana.Transaction, opts SimulateOpts) (*SimulateResult, error) {
	if tx == nil {
		return nil, fmt.Errorf("simulate: nil transaction")
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}

	params := []interface{}{
		base64.StdEncoding.EncodeToString(raw),
		simulateConfig(opts),
	}

	var result simulateTransactionResult
	if err := c.call(ctx, "simulateTransaction", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, fmt.Errorf("simulateTransaction: empty value")
	}

	v := result.Value
	sim := &SimulateResult{
		Slot:              result.Context.Slot,
		Err:               v.Err,
		Logs:              v.Logs,
		UnitsConsumed:     v.UnitsConsumed,
		InnerInstructions: v.InnerInstructions,
		ReturnData:        v.ReturnData,
	}

	if v.Accounts != nil {
		sim.Accounts = make([]*AccountInfo, len(v.Accounts))
		for i, acc := range v.Accounts {
			// Accounts that do not exist after execution come back as null.
			if acc == nil {
				continue
			}
			info := &AccountInfo{
				Lamports:   acc.Lamports,
				Owner:      acc.Owner,
				Executable: acc.Executable,
				RentEpoch:  acc.RentEpoch,
			}
			if len(acc.Data) >= 1 {
				info.Data = acc.Data[0]
			}
			sim.Accounts[i] = info
		}
	}

	return sim, nil
}

func simulateConfig(opts SimulateOpts) map[string]interface{} {
	config := map[string]interface{}{
		"encoding":               "base64",
		"sigVerify":              opts.SigVerify,
		"replaceRecentBlockhash": opts.ReplaceRecentBlockhash,
		"innerInstructions":      opts.InnerInstructions,
	}
	if opts.Commitment != "" {
		config["commitment"] = opts.Commitment
	}
	if opts.MinContextSlot != nil {
		config["minContextSlot"] = *opts.MinContextSlot
	}
	if opts.Accounts != nil {
		encoding := opts.Accounts.Encoding
		if encoding == "" {
			encoding = "base64"
		}
		config["accounts"] = map[string]interface{}{
			"encoding":  encoding,
			"addresses": opts.Accounts.Addresses,
		}
	}
	return config
}
