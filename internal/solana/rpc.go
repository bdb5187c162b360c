package solana

import (
	"context"

	solana "github.com/gagliardetto/solana-go"
)

// RPCClient defines the Solana RPC HTTP calls the update simulation needs.
type RPCClient interface {
	// GetLatestBlockhash retrieves the most recent blockhash known to the node.
	GetLatestBlockhash(ctx context.Context) (*LatestBlockhash, error)

	// SimulateTransaction dry-runs a signed transaction against current state.
	SimulateTransaction(ctx context.Context, tx *solana.Transaction, opts SimulateOpts) (*SimulateResult, error)
}
