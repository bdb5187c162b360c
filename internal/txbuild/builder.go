// Package txbuild assembles and signs the versioned transaction that carries
// an oracle update instruction behind the compute-budget prelude.
package txbuild

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"

	"switchboard-sim/internal/switchboard"
)

// ComputeBudgetProgramID is the native compute budget program.
var ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// Compute budget instruction tags.
const (
	tagSetComputeUnitLimit = 2
	tagSetComputeUnitPrice = 3
)

// Default compute budget for update transactions.
const (
	DefaultUnitLimit uint32 = 1_400_000
	DefaultUnitPrice uint64 = 1_000 // micro-lamports per compute unit
)

// Build errors.
var (
	// ErrCompile is returned when the instructions cannot form a valid message.
	ErrCompile = errors.New("compile message")

	// ErrSign is returned when the payer cannot sign the compiled message.
	ErrSign = errors.New("sign message")
)

// ComputeBudget holds the unit cap and priority fee prepended to every update.
type ComputeBudget struct {
	UnitLimit uint32
	UnitPrice uint64
}

// DefaultComputeBudget returns the budget used when nothing is configured.
func DefaultComputeBudget() ComputeBudget {
	return ComputeBudget{UnitLimit: DefaultUnitLimit, UnitPrice: DefaultUnitPrice}
}

// ComputeUnitLimitInstruction caps the compute units the transaction may consume.
func ComputeUnitLimitInstruction(units uint32) solana.Instruction {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	_ = enc.WriteUint8(tagSetComputeUnitLimit)
	_ = enc.WriteUint32(units, bin.LE)
	return solana.NewInstruction(ComputeBudgetProgramID, solana.AccountMetaSlice{}, buf.Bytes())
}

// ComputeUnitPriceInstruction sets the priority fee in micro-lamports per unit.
func ComputeUnitPriceInstruction(microLamports uint64) solana.Instruction {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	_ = enc.WriteUint8(tagSetComputeUnitPrice)
	_ = enc.WriteUint64(microLamports, bin.LE)
	return solana.NewInstruction(ComputeBudgetProgramID, solana.AccountMetaSlice{}, buf.Bytes())
}

// ConvertInstruction re-encodes a fetched update instruction as a solana-go instruction.
// Keys, flags and data are copied unchanged.
func ConvertInstruction(ix switchboard.Instruction) solana.Instruction {
	accounts := make(solana.AccountMetaSlice, len(ix.Accounts))
	for i, acc := range ix.Accounts {
		accounts[i] = &solana.AccountMeta{
			PublicKey:  acc.PublicKey,
			IsWritable: acc.IsWritable,
			IsSigner:   acc.IsSigner,
		}
	}
	data := make([]byte, len(ix.Data))
	copy(data, ix.Data)
	return solana.NewInstruction(ix.ProgramID, accounts, data)
}

// ConvertLookupTables re-encodes lookup table descriptors into solana-go address tables.
func ConvertLookupTables(luts []switchboard.LookupTable) map[solana.PublicKey]solana.PublicKeySlice {
	tables := make(map[solana.PublicKey]solana.PublicKeySlice, len(luts))
	for _, lut := range luts {
		addrs := make(solana.PublicKeySlice, len(lut.Addresses))
		copy(addrs, lut.Addresses)
		tables[lut.Key] = addrs
	}
	return tables
}

// Instructions returns the full instruction list for an update transaction:
// compute-unit limit, compute-unit price, then the update itself.
func Instructions(budget ComputeBudget, update switchboard.Instruction) []solana.Instruction {
	return []solana.Instruction{
		ComputeUnitLimitInstruction(budget.UnitLimit),
		ComputeUnitPriceInstruction(budget.UnitPrice),
		ConvertInstruction(update),
	}
}

// Build compiles a v0 message paid for by payer and signs it once.
// The ed25519 signature covers the serialized message bytes, which is what
// the runtime verifies; ed25519 hashes its input internally.
// The payer must be the only signer the instructions require, otherwise
// the message is rejected with ErrCompile.
func Build(payer solana.PrivateKey, instructions []solana.Instruction, tables map[solana.PublicKey]solana.PublicKeySlice, blockhash solana.Hash) (*solana.Transaction, error) {
	payerKey := payer.PublicKey()

	opts := []solana.TransactionOption{solana.TransactionPayer(payerKey)}
	if len(tables) > 0 {
		opts = append(opts, solana.TransactionAddressTables(tables))
	}

	tx, err := solana.NewTransaction(instructions, blockhash, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompile, err)
	}
	if !tx.Message.IsVersioned() {
		tx.Message.SetVersion(solana.MessageVersionV0)
	}

	if n := tx.Message.Header.NumRequiredSignatures; n != 1 {
		return nil, fmt.Errorf("%w: message requires %d signatures, only the payer signs", ErrCompile, n)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payerKey) {
			return &payer
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSign, err)
	}

	return tx, nil
}

// BuildUpdate assembles the three-instruction update transaction for a fetched result.
func BuildUpdate(payer solana.PrivateKey, budget ComputeBudget, update *switchboard.UpdateResult, blockhash solana.Hash) (*solana.Transaction, error) {
	if update == nil {
		return nil, fmt.Errorf("%w: nil update", ErrCompile)
	}
	return Build(payer, Instructions(budget, update.Instruction), ConvertLookupTables(update.LookupTables), blockhash)
}
