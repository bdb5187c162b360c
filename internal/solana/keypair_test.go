package solana

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	solana "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keypairJSON(t *testing.T, key []byte) []byte {
	t.Helper()
	values := make([]int, len(key))
	for i, b := range key {
		values[i] = int(b)
	}
	raw, err := json.Marshal(values)
	require.NoError(t, err)
	return raw
}

func TestLoadKeypair_JSONArray(t *testing.T) {
	want := solana.NewWallet().PrivateKey
	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, keypairJSON(t, want), 0o600))

	got, err := LoadKeypair(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, want.PublicKey(), got.PublicKey())
}

func TestParseKeypair_Base58(t *testing.T) {
	want := solana.NewWallet().PrivateKey

	got, err := ParseKeypair([]byte(base58.Encode(want) + "\n"))
	require.NoError(t, err)
	assert.Equal(t, want.PublicKey(), got.PublicKey())
}

func TestParseKeypair_Invalid(t *testing.T) {
	a := solana.NewWallet().PrivateKey
	b := solana.NewWallet().PrivateKey
	mismatched := append(append([]byte{}, a[:32]...), b[32:]...)

	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", []byte("  ")},
		{"short array", []byte("[1,2,3]")},
		{"byte out of range", []byte("[256," + string(keypairJSON(t, a[1:]))[1:])},
		{"negative byte", []byte("[-1," + string(keypairJSON(t, a[1:]))[1:])},
		{"malformed json", []byte("[1,2,")},
		{"bad base58", []byte("0OIl")},
		{"short base58", []byte(base58.Encode(a[:32]))},
		{"mismatched public half", keypairJSON(t, mismatched)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseKeypair(tt.raw)
			assert.ErrorIs(t, err, ErrInvalidKeypair)
		})
	}
}

func TestLoadKeypair_MissingFile(t *testing.T) {
	_, err := LoadKeypair(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidKeypair)
}

func TestIsOnCurve(t *testing.T) {
	assert.True(t, isOnCurve(solana.NewWallet().PublicKey().Bytes()))
	assert.False(t, isOnCurve([]byte{1, 2, 3}))
}
