package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/moonsong-labs/fisherman/pkg/chainrpc"
	"github.com/moonsong-labs/fisherman/pkg/config"
	"github.com/moonsong-labs/fisherman/pkg/indexer"
	"github.com/moonsong-labs/fisherman/pkg/log"
	"github.com/moonsong-labs/fisherman/pkg/metrics"
	"github.com/moonsong-labs/fisherman/pkg/store"
)

var indexerCmd = &cobra.Command{
	Use:   "indexer",
	Short: "Run only the chain event indexer",
	Long: `Run the indexer loop on its own, without the deletion scheduler. Useful
when standalone_indexer is set and the scheduler runs as a separate
process or on a separate schedule against the same event store.`,
	RunE: runIndexerOnly,
}

func runIndexerOnly(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := log.WithComponent("main")

	st, err := store.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()
	metrics.RegisterComponent("store", true, "ready")

	rpc, err := chainrpc.Dial(ctx, cfg.RPCURL, cfg.ChainRPCTimeout, cfg.BlockChannelCapacity)
	if err != nil {
		return fmt.Errorf("dialing chain RPC: %w", err)
	}
	defer rpc.Close()
	metrics.RegisterComponent("chain_rpc", true, "ready")

	ix := indexer.New(rpc, st, cfg)

	metrics.SetVersion(Version)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := ix.Run(ctx); err != nil {
			errCh <- err
		}
	}()
	logger.Info().Msg("indexer started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("indexer loop exited unexpectedly")
	}

	cancel()
	logger.Info().Msg("shutdown complete")
	return nil
}
