package switchboard

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"switchboard-sim/internal/observability"
)

// Default client settings.
const (
	DefaultTimeout = 30 * time.Second
	DefaultNetwork = "mainnet"

	// DefaultMaxResponseBytes caps the update response body.
	DefaultMaxResponseBytes int64 = 8 << 20
)

// Fetch errors.
var (
	// ErrInsufficientResponses is returned when no oracle produced a usable response.
	ErrInsufficientResponses = errors.New("insufficient oracle responses")

	// ErrService is returned when the gateway or crossbar reports a failure.
	ErrService = errors.New("update service error")
)

// Client fetches update instructions over HTTP.
type Client struct {
	http    *http.Client
	network string
	logger  zerolog.Logger
	maxBody int64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithNetwork sets the cluster name used in crossbar routes.
func WithNetwork(network string) ClientOption {
	return func(c *Client) {
		c.network = network
	}
}

// WithMaxResponseBytes caps how much of a response body is read.
func WithMaxResponseBytes(n int64) ClientOption {
	return func(c *Client) {
		c.maxBody = n
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates an update client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:    &http.Client{Timeout: DefaultTimeout},
		network: DefaultNetwork,
		logger:  zerolog.Nop(),
		maxBody: DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// updateResponse is the JSON document returned by both crossbar and gateway routes.
type updateResponse struct {
	PullIx       *wireInstruction `json:"pullIx"`
	Responses    []wireResponse   `json:"responses"`
	NumSuccesses int              `json:"numSuccesses"`
	LookupTables []wireLUT        `json:"luts"`
	Error        string           `json:"error,omitempty"`
}

type wireInstruction struct {
	ProgramID string        `json:"programId"`
	Keys      []wireAccount `json:"keys"`
	Data      string        `json:"data"` // base64
}

type wireAccount struct {
	Pubkey     string `json:"pubkey"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

type wireResponse struct {
	Oracle string          `json:"oracle"`
	Value  decimal.Decimal `json:"value"`
	Error  string          `json:"error"`
}

type wireLUT struct {
	Key       string   `json:"key"`
	Addresses []string `json:"addresses"`
}

type gatewayRequest struct {
	Feed          string  `json:"feed"`
	Payer         string  `json:"payer"`
	NumSignatures *uint32 `json:"numSignatures,omitempty"`
}

// FetchUpdateIx requests a signed update instruction for params.Feed.
// The whole result is decoded before it is returned; a fetch never yields partial data.
func (c *Client) FetchUpdateIx(ctx context.Context, params FetchUpdateParams) (*UpdateResult, error) {
	if params.Gateway.URL == "" {
		return nil, fmt.Errorf("%w: gateway url is empty", ErrService)
	}

	start := time.Now()
	defer func() {
		observability.RecordGatewayLatency(time.Since(start).Seconds())
	}()

	req, err := c.newRequest(ctx, params)
	if err != nil {
		return nil, err
	}

	if params.Debug {
		c.logger.Debug().
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Str("feed", params.Feed.String()).
			Msg("fetching update instruction")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrService, c.maxBody)
	}

	if params.Debug {
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Int("bytes", len(body)).
			Msg("update response received")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrService, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out updateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrService, out.Error)
	}

	return decodeUpdate(&out)
}

func (c *Client) newRequest(ctx context.Context, params FetchUpdateParams) (*http.Request, error) {
	if params.Crossbar != nil {
		q := url.Values{}
		q.Set("payer", params.Payer.String())
		q.Set("gateway", params.Gateway.URL)
		if params.NumSignatures != nil {
			q.Set("numSignatures", strconv.FormatUint(uint64(*params.NumSignatures), 10))
		}
		u := fmt.Sprintf("%s/updates/solana/%s/%s?%s",
			strings.TrimRight(params.Crossbar.URL, "/"), c.network, params.Feed.String(), q.Encode())

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		return req, nil
	}

	body, err := json.Marshal(gatewayRequest{
		Feed:          params.Feed.String(),
		Payer:         params.Payer.String(),
		NumSignatures: params.NumSignatures,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	u := strings.TrimRight(params.Gateway.URL, "/") + "/gateway/api/v1/fetch_update_ix"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func decodeUpdate(out *updateResponse) (*UpdateResult, error) {
	if out.NumSuccesses <= 0 {
		return nil, fmt.Errorf("%w: %d of %d oracles responded", ErrInsufficientResponses, out.NumSuccesses, len(out.Responses))
	}
	if out.PullIx == nil {
		return nil, fmt.Errorf("%w: response carries no instruction", ErrService)
	}

	ix, err := decodeInstruction(out.PullIx)
	if err != nil {
		return nil, err
	}

	result := &UpdateResult{
		Instruction:  ix,
		Responses:    make([]OracleResponse, 0, len(out.Responses)),
		NumSuccesses: out.NumSuccesses,
		LookupTables: make([]LookupTable, 0, len(out.LookupTables)),
	}

	for i, r := range out.Responses {
		oracle, err := solana.PublicKeyFromBase58(r.Oracle)
		if err != nil {
			return nil, fmt.Errorf("decode oracle %d: %w", i, err)
		}
		result.Responses = append(result.Responses, OracleResponse{
			Oracle: oracle,
			Value:  r.Value,
			Error:  r.Error,
		})
	}

	for i, lut := range out.LookupTables {
		key, err := solana.PublicKeyFromBase58(lut.Key)
		if err != nil {
			return nil, fmt.Errorf("decode lookup table %d: %w", i, err)
		}
		addrs := make([]solana.PublicKey, len(lut.Addresses))
		for j, a := range lut.Addresses {
			addrs[j], err = solana.PublicKeyFromBase58(a)
			if err != nil {
				return nil, fmt.Errorf("decode lookup table %s address %d: %w", lut.Key, j, err)
			}
		}
		result.LookupTables = append(result.LookupTables, LookupTable{Key: key, Addresses: addrs})
	}

	return result, nil
}

func decodeInstruction(w *wireInstruction) (Instruction, error) {
	programID, err := solana.PublicKeyFromBase58(w.ProgramID)
	if err != nil {
		return Instruction{}, fmt.Errorf("decode program id: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(w.Data)
	if err != nil {
		return Instruction{}, fmt.Errorf("decode instruction data: %w", err)
	}

	accounts := make([]AccountMeta, len(w.Keys))
	for i, k := range w.Keys {
		pk, err := solana.PublicKeyFromBase58(k.Pubkey)
		if err != nil {
			return Instruction{}, fmt.Errorf("decode account %d: %w", i, err)
		}
		accounts[i] = AccountMeta{PublicKey: pk, IsSigner: k.IsSigner, IsWritable: k.IsWritable}
	}

	return Instruction{ProgramID: programID, Accounts: accounts, Data: data}, nil
}
