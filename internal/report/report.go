// Package report renders the human-readable progress of an update simulation run.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	solana "github.com/gagliardetto/solana-go"

	sol "switchboard-sim/internal/solana"
	"switchboard-sim/internal/switchboard"
)

// Stage identifies a run stage that can fail without aborting the run.
type Stage string

const (
	StageFetch    Stage = "fetch update instruction"
	StageSimulate Stage = "simulate transaction"
)

var likelyCauses = map[Stage][]string{
	StageFetch: {
		"Network connectivity issues",
		"Feed not configured properly",
		"Gateway/Crossbar service issues",
		"Insufficient oracle responses",
	},
	StageSimulate: {
		"Network connectivity issues",
		"Invalid instruction data",
		"Insufficient account balances for simulation",
		"RPC endpoint limitations",
	},
}

// LikelyCauses returns the fixed list of probable causes for a failed stage.
func LikelyCauses(stage Stage) []string {
	causes := likelyCauses[stage]
	out := make([]string, len(causes))
	copy(out, causes)
	return out
}

// Reporter writes run progress to an output stream.
type Reporter struct {
	w io.Writer
}

// New creates a Reporter writing to w.
func New(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

func (r *Reporter) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.w, format, args...)
}

// Start prints the run banner.
func (r *Reporter) Start(name string) {
	r.printf("Starting %s\n", name)
	r.printf("%s\n", strings.Repeat("=", 60))
}

// KeypairLoaded prints the payer identity.
func (r *Reporter) KeypairLoaded(payer solana.PublicKey) {
	r.printf("Loaded payer keypair: %s\n", payer)
}

// FetchStarted announces the update fetch.
func (r *Reporter) FetchStarted(feed solana.PublicKey) {
	r.printf("Attempting to fetch update instruction for feed %s...\n", feed)
}

// FetchSucceeded prints the fetched instruction and every oracle response.
func (r *Reporter) FetchSucceeded(result *switchboard.UpdateResult) {
	ix := result.Instruction

	r.printf("Successfully fetched update instruction!\n")
	r.printf("Number of successful oracle responses: %d\n", result.NumSuccesses)
	r.printf("Instruction program ID: %s\n", ix.ProgramID)
	r.printf("Instruction data length: %d bytes\n", len(ix.Data))
	r.printf("Oracle responses:\n")
	for i, resp := range result.Responses {
		r.printf("  Oracle #%d: %s\n", i+1, resp.Oracle)
		r.printf("    Value: %s\n", resp.Value.String())
		if !resp.OK() {
			r.printf("    Error: %s\n", resp.Error)
		}
	}

	r.printf("\nInstruction Analysis:\n")
	r.printf("Program ID: %s\n", ix.ProgramID)
	r.printf("Instruction accounts: %d\n", len(ix.Accounts))
	for i, acc := range ix.Accounts {
		r.printf("  Account [%d]: %s\n", i, acc.PublicKey)
		r.printf("    Signer: %t, Writable: %t\n", acc.IsSigner, acc.IsWritable)
	}
}

// StageFailed prints a stage error followed by its likely causes.
func (r *Reporter) StageFailed(stage Stage, err error) {
	r.printf("Failed to %s: %v\n", stage, err)
	r.printf("This could be due to:\n")
	for _, cause := range LikelyCauses(stage) {
		r.printf("  - %s\n", cause)
	}
}

// LookupTables prints the lookup tables used to compress the transaction.
func (r *Reporter) LookupTables(luts []switchboard.LookupTable) {
	r.printf("Using %d lookup table(s) to compress transaction size\n", len(luts))
	for i, lut := range luts {
		r.printf("  LUT #%d: %s (%d addresses)\n", i+1, lut.Key, len(lut.Addresses))
	}
}

// SimulationStarted announces the simulate call.
func (r *Reporter) SimulationStarted() {
	r.printf("\nRunning transaction simulation...\n")
}

// SimulationResult prints a simulate response. An execution error suppresses
// units, logs and account details.
func (r *Reporter) SimulationResult(res *sol.SimulateResult) {
	r.printf("Transaction simulation returned\n")

	if res.Failed() {
		r.printf("Simulation failed with error: %s\n", FormatError(res.Err))
		return
	}

	if res.UnitsConsumed != nil {
		r.printf("Units consumed: %d\n", *res.UnitsConsumed)
	} else {
		r.printf("Units consumed: unknown\n")
	}

	if res.Logs != nil {
		r.printf("\nSimulation Logs:\n")
		for i, line := range res.Logs {
			r.printf("  [%d] %s\n", i+1, line)
		}
	}

	if res.Accounts != nil {
		r.printf("\nAccount Changes: %d accounts affected\n", len(res.Accounts))
	}

	if res.InnerInstructions != nil {
		r.printf("Inner Instructions: %d instruction groups\n", len(res.InnerInstructions))
	}

	r.printf("\nSimulation completed successfully!\n")
}

// Completed prints the final banner.
func (r *Reporter) Completed(name string) {
	r.printf("\n%s completed\n", name)
}

// FormatError renders a transaction error value as reported by the node.
func FormatError(v interface{}) string {
	switch e := v.(type) {
	case nil:
		return ""
	case string:
		return e
	case error:
		return e.Error()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
