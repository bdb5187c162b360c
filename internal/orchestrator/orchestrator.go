// Package orchestrator runs one oracle update simulation end to end.
// Flow: fetch update → latest blockhash → build and sign → simulate
package orchestrator

import (
	"context"
	"fmt"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"switchboard-sim/internal/observability"
	"switchboard-sim/internal/report"
	sol "switchboard-sim/internal/solana"
	"switchboard-sim/internal/switchboard"
	"switchboard-sim/internal/txbuild"
)

// Name is printed in the start and completion banners.
const Name = "oracle update simulation"

// Metric stage labels.
const (
	stageFetch     = "fetch_update"
	stageBlockhash = "latest_blockhash"
	stageBuild     = "build_transaction"
	stageSimulate  = "simulate"
)

// UpdateFetcher fetches an oracle update instruction.
type UpdateFetcher interface {
	FetchUpdateIx(ctx context.Context, params switchboard.FetchUpdateParams) (*switchboard.UpdateResult, error)
}

// Orchestrator coordinates a single simulation run.
type Orchestrator struct {
	fetcher  UpdateFetcher
	rpc      sol.RPCClient
	reporter *report.Reporter
	logger   zerolog.Logger

	payer   solana.PrivateKey
	params  switchboard.FetchUpdateParams
	budget  txbuild.ComputeBudget
	simOpts sol.SimulateOpts
}

// Options for creating Orchestrator.
type Options struct {
	// Required collaborators
	Fetcher  UpdateFetcher
	RPC      sol.RPCClient
	Reporter *report.Reporter
	Logger   zerolog.Logger

	// Payer signs and pays for the simulated transaction
	Payer solana.PrivateKey

	// Update request
	Feed          solana.PublicKey
	Gateway       switchboard.Gateway
	Crossbar      *switchboard.CrossbarClient
	NumSignatures *uint32
	Debug         bool

	// Transaction settings
	Budget       txbuild.ComputeBudget
	SimulateOpts *sol.SimulateOpts // nil uses sol.DefaultSimulateOpts
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	simOpts := sol.DefaultSimulateOpts()
	if opts.SimulateOpts != nil {
		simOpts = *opts.SimulateOpts
	}

	return &Orchestrator{
		fetcher:  opts.Fetcher,
		rpc:      opts.RPC,
		reporter: opts.Reporter,
		logger:   opts.Logger,
		payer:    opts.Payer,
		params: switchboard.FetchUpdateParams{
			Feed:          opts.Feed,
			Payer:         opts.Payer.PublicKey(),
			Gateway:       opts.Gateway,
			Crossbar:      opts.Crossbar,
			NumSignatures: opts.NumSignatures,
			Debug:         opts.Debug,
		},
		budget:  opts.Budget,
		simOpts: simOpts,
	}
}

// RunResult contains results from a run. Reported failures are kept here
// rather than returned as errors.
type RunResult struct {
	Update      *switchboard.UpdateResult
	FetchErr    error
	Transaction *solana.Transaction
	Simulation  *sol.SimulateResult
	SimulateErr error
}

// Run executes the full flow.
// Phases:
//  1. Fetch the update instruction (failure is reported, run ends)
//  2. Fetch the latest blockhash (failure is fatal)
//  3. Build and sign the versioned transaction (failure is fatal)
//  4. Simulate (failure is reported)
//
// The completion banner is printed on every non-fatal path.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}

	o.reporter.Start(Name)
	o.reporter.KeypairLoaded(o.params.Payer)

	// Phase 1: fetch update
	o.reporter.FetchStarted(o.params.Feed)
	o.logger.Info().
		Str("feed", o.params.Feed.String()).
		Str("gateway", o.params.Gateway.URL).
		Bool("crossbar", o.params.Crossbar != nil).
		Msg("Phase 1: fetching update instruction")

	update, err := o.fetcher.FetchUpdateIx(ctx, o.params)
	observability.RecordStage(stageFetch, err)
	if err != nil {
		o.logger.Warn().Err(err).Msg("update fetch failed")
		result.FetchErr = err
		o.reporter.StageFailed(report.StageFetch, err)
		o.complete()
		return result, nil
	}
	result.Update = update
	observability.RecordOracleResponses(len(update.Responses), update.NumSuccesses)
	o.reporter.FetchSucceeded(update)
	o.logger.Info().
		Int("responses", len(update.Responses)).
		Int("successes", update.NumSuccesses).
		Int("lookup_tables", len(update.LookupTables)).
		Msg("  update instruction fetched")

	o.reporter.SimulationStarted()

	// Phase 2: blockhash
	o.logger.Info().Msg("Phase 2: fetching latest blockhash")
	bh, err := o.rpc.GetLatestBlockhash(ctx)
	observability.RecordStage(stageBlockhash, err)
	if err != nil {
		return result, fmt.Errorf("phase 2 (latest blockhash) failed: %w", err)
	}

	// Phase 3: build
	o.reporter.LookupTables(update.LookupTables)
	o.logger.Info().Str("blockhash", bh.Blockhash.String()).Msg("Phase 3: building transaction")
	tx, err := txbuild.BuildUpdate(o.payer, o.budget, update, bh.Blockhash)
	observability.RecordStage(stageBuild, err)
	if err != nil {
		return result, fmt.Errorf("phase 3 (build transaction) failed: %w", err)
	}
	result.Transaction = tx

	// Phase 4: simulate
	o.logger.Info().Msg("Phase 4: simulating transaction")
	sim, err := o.rpc.SimulateTransaction(ctx, tx, o.simOpts)
	observability.RecordStage(stageSimulate, err)
	if err != nil {
		o.logger.Warn().Err(err).Msg("simulation request failed")
		result.SimulateErr = err
		o.reporter.StageFailed(report.StageSimulate, err)
	} else {
		result.Simulation = sim
		if sim.UnitsConsumed != nil {
			observability.RecordUnitsConsumed(*sim.UnitsConsumed)
		}
		o.reporter.SimulationResult(sim)
		o.logger.Info().Bool("execution_error", sim.Failed()).Uint64("slot", sim.Slot).Msg("  simulation returned")
	}

	o.complete()
	return result, nil
}

func (o *Orchestrator) complete() {
	o.reporter.Completed(Name)
	observability.MarkRunCompleted(time.Now())
}
