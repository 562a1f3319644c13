package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/moonsong-labs/fisherman/pkg/chainrpc"
	"github.com/moonsong-labs/fisherman/pkg/config"
	"github.com/moonsong-labs/fisherman/pkg/fisherman"
	"github.com/moonsong-labs/fisherman/pkg/indexer"
	"github.com/moonsong-labs/fisherman/pkg/log"
	"github.com/moonsong-labs/fisherman/pkg/metrics"
	"github.com/moonsong-labs/fisherman/pkg/proof"
	"github.com/moonsong-labs/fisherman/pkg/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the indexer and deletion scheduler together",
	Long: `Start both the chain event indexer and the deletion-intent scheduler in
one process, sharing a single chain RPC connection and event store.

This is the default way to run fisherman in production; use "fisherman
indexer" instead when the scheduler is deployed separately.`,
	RunE: runFisherman,
}

func init() {
	runCmd.Flags().Bool("enable-pprof", false, "Enable pprof profiling endpoints on the metrics server")
	runCmd.Flags().Bool("no-indexer", false, "Skip launching the indexer loop; use when it runs as a separate \"fisherman indexer\" process")
}

func runFisherman(cmd *cobra.Command, args []string) error {
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

	proofProvider := proof.NewHTTPProvider(cfg.ProofProviderURL, cfg.ChainRPCTimeout)

	fm := fisherman.New(rpc, st, proofProvider, cfg)

	collector := metrics.NewCollector(st, cfg.ProofProviderURL, cfg.DBURL)
	collector.Start()
	defer collector.Stop()

	metrics.SetVersion(Version)

	pprofEnabled, _ := cmd.Flags().GetBool("enable-pprof")
	go serveMetrics(cfg.MetricsAddr, pprofEnabled)
	logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")

	noIndexer, _ := cmd.Flags().GetBool("no-indexer")
	runIndexer := !noIndexer && !cfg.StandaloneIndexer

	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	if runIndexer {
		ix := indexer.New(rpc, st, cfg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ix.Run(ctx); err != nil {
				errCh <- fmt.Errorf("indexer: %w", err)
			}
		}()
	} else {
		logger.Info().Msg("skipping indexer loop; expecting it to run as a separate process")
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := fm.Run(ctx); err != nil {
			errCh <- fmt.Errorf("fisherman: %w", err)
		}
	}()
	logger.Info().Msg("scheduler started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("a loop exited unexpectedly")
	}

	cancel()
	wg.Wait()
	logger.Info().Msg("shutdown complete")
	return nil
}

// serveMetrics runs the Prometheus, health, readiness, and liveness
// endpoints until the process exits; it never returns on its own.
func serveMetrics(addr string, pprofEnabled bool) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	if pprofEnabled {
		registerPprof(mux)
	}
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
	}
}
