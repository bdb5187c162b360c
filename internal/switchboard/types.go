// Package switchboard fetches oracle feed update instructions from a
// Switchboard gateway, optionally routed through a Crossbar service.
package switchboard

import (
	solana "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// DefaultCrossbarURL is the public Crossbar deployment.
const DefaultCrossbarURL = "https://crossbar.switchboard.xyz"

// Gateway identifies the oracle gateway that collects signed responses.
type Gateway struct {
	URL string
}

// NewGateway creates a gateway handle for url.
func NewGateway(url string) Gateway {
	return Gateway{URL: url}
}

// CrossbarClient identifies a Crossbar service used to resolve and route feed updates.
type CrossbarClient struct {
	URL string
}

// DefaultCrossbar returns a client for the public Crossbar deployment.
func DefaultCrossbar() *CrossbarClient {
	return &CrossbarClient{URL: DefaultCrossbarURL}
}

// FetchUpdateParams describes one update request. Values are not mutated after construction.
type FetchUpdateParams struct {
	Feed          solana.PublicKey
	Payer         solana.PublicKey
	Gateway       Gateway
	Crossbar      *CrossbarClient // nil sends the request straight to the gateway
	NumSignatures *uint32         // nil lets the service pick
	Debug         bool
}

// AccountMeta is one account reference of an update instruction.
type AccountMeta struct {
	PublicKey  solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

// Instruction is the update instruction returned by the service.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// OracleResponse is the value one oracle reported for the feed.
type OracleResponse struct {
	Oracle solana.PublicKey
	Value  decimal.Decimal
	Error  string
}

// OK reports whether the oracle answered without error.
func (r OracleResponse) OK() bool {
	return r.Error == ""
}

// LookupTable is an address lookup table the instruction's accounts can be compressed with.
type LookupTable struct {
	Key       solana.PublicKey
	Addresses []solana.PublicKey
}

// UpdateResult is everything one fetch produces.
type UpdateResult struct {
	Instruction  Instruction
	Responses    []OracleResponse
	NumSuccesses int
	LookupTables []LookupTable
}
