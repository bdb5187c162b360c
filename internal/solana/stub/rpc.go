package stub

import (
	"context"
	"errors"

	solanago "github.com/gagliardetto/solana-go"

	"switchboard-sim/internal/solana"
)

// ErrNoBlockhash is returned when no blockhash has been configured.
var ErrNoBlockhash = errors.New("no blockhash configured")

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	Blockhash    *solana.LatestBlockhash
	BlockhashErr error

	Simulation    *solana.SimulateResult
	SimulationErr error

	// Recorded calls
	BlockhashCalls int
	Simulated      []*solanago.Transaction
	SimulateOpts   []solana.SimulateOpts
}

// NewRPCClient creates a stub returning the given blockhash and an empty successful simulation.
func NewRPCClient(blockhash solanago.Hash) *RPCClient {
	return &RPCClient{
		Blockhash:  &solana.LatestBlockhash{Blockhash: blockhash},
		Simulation: &solana.SimulateResult{},
	}
}

// GetLatestBlockhash returns the configured blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (*solana.LatestBlockhash, error) {
	c.BlockhashCalls++
	if c.BlockhashErr != nil {
		return nil, c.BlockhashErr
	}
	if c.Blockhash == nil {
		return nil, ErrNoBlockhash
	}
	return c.Blockhash, nil
}

// SimulateTransaction records the transaction and returns the configured outcome.
func (c *RPCClient) SimulateTransaction(_ context.Context, tx *solanago.Transaction, opts solana.SimulateOpts) (*solana.SimulateResult, error) {
	c.Simulated = append(c.Simulated, tx)
	c.SimulateOpts = append(c.SimulateOpts, opts)
	if c.SimulationErr != nil {
		return nil, c.SimulationErr
	}
	return c.Simulation, nil
}
