package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"switchboard-sim/internal/config"
	"switchboard-sim/internal/logging"
	"switchboard-sim/internal/observability"
	"switchboard-sim/internal/orchestrator"
	"switchboard-sim/internal/report"
	"switchboard-sim/internal/solana"
	"switchboard-sim/internal/switchboard"
	"switchboard-sim/internal/txbuild"
)

const pushTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	payer, err := solana.LoadKeypair(cfg.KeypairPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.KeypairPath).Msg("Failed to load keypair")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rpcClient := solana.NewHTTPClient(cfg.RPC.URL,
		solana.WithTimeout(cfg.RPC.Timeout),
		solana.WithMaxRetries(cfg.RPC.MaxRetries),
	)

	fetcher := switchboard.NewClient(
		switchboard.WithHTTPClient(&http.Client{Timeout: cfg.RPC.Timeout}),
		switchboard.WithNetwork(cfg.Crossbar.Network),
		switchboard.WithLogger(logger.With().Str("component", "switchboard").Logger()),
	)

	var crossbar *switchboard.CrossbarClient
	if cfg.Crossbar.Enabled {
		crossbar = &switchboard.CrossbarClient{URL: cfg.Crossbar.URL}
	}

	logger.Info().
		Str("rpc", rpcClient.Endpoint()).
		Str("feed", cfg.Feed).
		Msg("Starting simulation")

	orch := orchestrator.New(orchestrator.Options{
		Fetcher:       fetcher,
		RPC:           rpcClient,
		Reporter:      report.New(os.Stdout),
		Logger:        logger,
		Payer:         payer,
		Feed:          cfg.FeedKey(),
		Gateway:       switchboard.NewGateway(cfg.Gateway.URL),
		Crossbar:      crossbar,
		NumSignatures: cfg.NumSignaturesHint(),
		Debug:         cfg.Debug,
		Budget: txbuild.ComputeBudget{
			UnitLimit: cfg.ComputeBudget.UnitLimit,
			UnitPrice: cfg.ComputeBudget.UnitPrice,
		},
	})

	_, runErr := orch.Run(ctx)

	pushMetrics(logger, cfg.Metrics)

	if runErr != nil {
		logger.Fatal().Err(runErr).Msg("Simulation aborted")
	}
}

func pushMetrics(logger zerolog.Logger, m config.Metrics) {
	if m.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	if err := observability.Push(ctx, m.PushgatewayURL, m.Job); err != nil {
		logger.Warn().Err(err).Str("url", m.PushgatewayURL).Msg("Metrics push failed")
		return
	}
	logger.Debug().Str("url", m.PushgatewayURL).Msg("Metrics pushed")
}
