package solana

import (
	"encoding/json"

	solana "github.com/gagliardetto/solana-go"
)

// LatestBlockhash from getLatestBlockhash.
type LatestBlockhash struct {
	Slot                 uint64
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
}

// SimulateOpts mirrors the simulateTransaction config object.
// The transaction itself is always sent base64 encoded.
type SimulateOpts struct {
	SigVerify              bool
	ReplaceRecentBlockhash bool
	Commitment             string // empty leaves the node default
	Accounts               *SimulateAccountsOpts
	MinContextSlot         *uint64
	InnerInstructions      bool
}

// SimulateAccountsOpts requests post-simulation state for specific accounts.
type SimulateAccountsOpts struct {
	Encoding  string
	Addresses []string
}

// DefaultSimulateOpts returns the configuration used for update simulations:
// no signature verification, blockhash replacement on, inner instructions reported.
func DefaultSimulateOpts() SimulateOpts {
	return SimulateOpts{
		SigVerify:              false,
		ReplaceRecentBlockhash: true,
		InnerInstructions:      true,
	}
}

// SimulateResult is the value of a simulateTransaction response.
// Slices are nil when the node did not report the field.
type SimulateResult struct {
	Slot              uint64
	Err               interface{}
	Logs              []string
	Accounts          []*AccountInfo
	UnitsConsumed     *uint64
	InnerInstructions []InnerInstructionGroup
	ReturnData        *ReturnData
}

// Failed reports whether the simulated execution returned an error.
func (r *SimulateResult) Failed() bool {
	return r != nil && r.Err != nil
}

// InnerInstructionGroup lists the CPI instructions issued by one top-level instruction.
type InnerInstructionGroup struct {
	Index        int               `json:"index"`
	Instructions []json.RawMessage `json:"instructions"`
}

// ReturnData is the program return data captured by the simulation.
type ReturnData struct {
	ProgramID string   `json:"programId"`
	Data      []string `json:"data"` // [base64_data, encoding]
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}
