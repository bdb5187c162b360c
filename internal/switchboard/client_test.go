package switchboard

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	solana "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	feed     solana.PublicKey
	payer    solana.PublicKey
	program  solana.PublicKey
	oracleA  solana.PublicKey
	oracleB  solana.PublicKey
	lutKey   solana.PublicKey
	lutAddrs []solana.PublicKey
}

func newFixture() fixture {
	return fixture{
		feed:     solana.NewWallet().PublicKey(),
		payer:    solana.NewWallet().PublicKey(),
		program:  solana.NewWallet().PublicKey(),
		oracleA:  solana.NewWallet().PublicKey(),
		oracleB:  solana.NewWallet().PublicKey(),
		lutKey:   solana.NewWallet().PublicKey(),
		lutAddrs: []solana.PublicKey{solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()},
	}
}

func (f fixture) body() map[string]interface{} {
	return map[string]interface{}{
		"pullIx": map[string]interface{}{
			"programId": f.program.String(),
			"keys": []map[string]interface{}{
				{"pubkey": f.feed.String(), "isSigner": false, "isWritable": true},
				{"pubkey": f.payer.String(), "isSigner": true, "isWritable": true},
			},
			"data": base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4}),
		},
		"responses": []map[string]interface{}{
			{"oracle": f.oracleA.String(), "value": "101.5", "error": ""},
			{"oracle": f.oracleB.String(), "value": "0", "error": "timeout"},
		},
		"numSuccesses": 1,
		"luts": []map[string]interface{}{
			{"key": f.lutKey.String(), "addresses": []string{f.lutAddrs[0].String(), f.lutAddrs[1].String()}},
		},
	}
}

func TestFetchUpdateIx_ViaCrossbar(t *testing.T) {
	f := newFixture()
	numSigs := uint32(3)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/updates/solana/mainnet/"+f.feed.String(), r.URL.Path)
		assert.Equal(t, f.payer.String(), r.URL.Query().Get("payer"))
		assert.Equal(t, "https://gateway.example", r.URL.Query().Get("gateway"))
		assert.Equal(t, "3", r.URL.Query().Get("numSignatures"))
		_ = json.NewEncoder(w).Encode(f.body())
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()))
	result, err := client.FetchUpdateIx(context.Background(), FetchUpdateParams{
		Feed:          f.feed,
		Payer:         f.payer,
		Gateway:       NewGateway("https://gateway.example"),
		Crossbar:      &CrossbarClient{URL: server.URL + "/"},
		NumSignatures: &numSigs,
	})
	require.NoError(t, err)

	assert.Equal(t, f.program, result.Instruction.ProgramID)
	assert.Equal(t, []byte{1, 2, 3, 4}, result.Instruction.Data)
	require.Len(t, result.Instruction.Accounts, 2)
	assert.Equal(t, AccountMeta{PublicKey: f.payer, IsSigner: true, IsWritable: true}, result.Instruction.Accounts[1])

	require.Len(t, result.Responses, 2)
	assert.Equal(t, f.oracleA, result.Responses[0].Oracle)
	assert.True(t, result.Responses[0].Value.Equal(decimal.RequireFromString("101.5")))
	assert.True(t, result.Responses[0].OK())
	assert.False(t, result.Responses[1].OK())
	assert.Equal(t, 1, result.NumSuccesses)

	require.Len(t, result.LookupTables, 1)
	assert.Equal(t, f.lutKey, result.LookupTables[0].Key)
	assert.Equal(t, f.lutAddrs, result.LookupTables[0].Addresses)
}

func TestFetchUpdateIx_DirectGateway(t *testing.T) {
	f := newFixture()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/mainnet/gateway/api/v1/fetch_update_ix", r.URL.Path)

		var req gatewayRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, f.feed.String(), req.Feed)
		assert.Equal(t, f.payer.String(), req.Payer)
		assert.Nil(t, req.NumSignatures)

		_ = json.NewEncoder(w).Encode(f.body())
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()))
	result, err := client.FetchUpdateIx(context.Background(), FetchUpdateParams{
		Feed:    f.feed,
		Payer:   f.payer,
		Gateway: NewGateway(server.URL + "/mainnet"),
	})
	require.NoError(t, err)
	assert.Len(t, result.Responses, 2)
}

func TestFetchUpdateIx_SuccessCountReportedVerbatim(t *testing.T) {
	f := newFixture()
	body := f.body()
	// Both responses carry no error text but the service reports one success.
	body["responses"] = []map[string]interface{}{
		{"oracle": f.oracleA.String(), "value": "1", "error": ""},
		{"oracle": f.oracleB.String(), "value": "2", "error": ""},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()))
	result, err := client.FetchUpdateIx(context.Background(), FetchUpdateParams{
		Feed: f.feed, Payer: f.payer, Gateway: NewGateway(server.URL),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.NumSuccesses)
	assert.Len(t, result.Responses, 2)
}

func TestFetchUpdateIx_Errors(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name    string
		status  int
		body    func() map[string]interface{}
		wantErr error
	}{
		{
			name:    "http status",
			status:  http.StatusBadGateway,
			body:    f.body,
			wantErr: ErrService,
		},
		{
			name:   "service error text",
			status: http.StatusOK,
			body: func() map[string]interface{} {
				return map[string]interface{}{"error": "feed not found"}
			},
			wantErr: ErrService,
		},
		{
			name:   "no successes",
			status: http.StatusOK,
			body: func() map[string]interface{} {
				b := f.body()
				b["numSuccesses"] = 0
				return b
			},
			wantErr: ErrInsufficientResponses,
		},
		{
			name:   "missing instruction",
			status: http.StatusOK,
			body: func() map[string]interface{} {
				b := f.body()
				delete(b, "pullIx")
				return b
			},
			wantErr: ErrService,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(tt.body())
			}))
			defer server.Close()

			client := NewClient(WithHTTPClient(server.Client()))
			_, err := client.FetchUpdateIx(context.Background(), FetchUpdateParams{
				Feed: f.feed, Payer: f.payer, Gateway: NewGateway(server.URL),
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestFetchUpdateIx_BadAddress(t *testing.T) {
	f := newFixture()
	body := f.body()
	body["luts"] = []map[string]interface{}{{"key": "not-base58!", "addresses": []string{}}}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()))
	_, err := client.FetchUpdateIx(context.Background(), FetchUpdateParams{
		Feed: f.feed, Payer: f.payer, Gateway: NewGateway(server.URL),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup table 0")
}

func TestFetchUpdateIx_EmptyGateway(t *testing.T) {
	_, err := NewClient().FetchUpdateIx(context.Background(), FetchUpdateParams{})
	require.ErrorIs(t, err, ErrService)
}

func TestFetchUpdateIx_ContextCancelled(t *testing.T) {
	f := newFixture()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(f.body())
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(WithHTTPClient(server.Client())).FetchUpdateIx(ctx, FetchUpdateParams{
		Feed: f.feed, Payer: f.payer, Gateway: NewGateway(server.URL),
	})
	require.Error(t, err)
}

func TestFetchUpdateIx_ResponseSizeCap(t *testing.T) {
	f := newFixture()
	payload, err := json.Marshal(f.body())
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	params := FetchUpdateParams{Feed: f.feed, Payer: f.payer, Gateway: NewGateway(server.URL)}

	t.Run("at cap", func(t *testing.T) {
		client := NewClient(WithHTTPClient(server.Client()), WithMaxResponseBytes(int64(len(payload))))
		result, err := client.FetchUpdateIx(context.Background(), params)
		require.NoError(t, err)
		assert.Equal(t, 1, result.NumSuccesses)
	})

	t.Run("over cap", func(t *testing.T) {
		client := NewClient(WithHTTPClient(server.Client()), WithMaxResponseBytes(int64(len(payload)-1)))
		_, err := client.FetchUpdateIx(context.Background(), params)
		require.ErrorIs(t, err, ErrService)
		assert.Contains(t, err.Error(), "exceeds")
	})
}
