package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"marginScope/internal/chain"
	"marginScope/internal/config"
	"marginScope/internal/margin"
	"marginScope/internal/monitor"
	"marginScope/internal/solvency"
	"marginScope/internal/storage/postgres"
)

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWatch(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	sigma, err := config.ParseSigma(cfg.Sigma)
	if err != nil {
		return err
	}
	borrowers, err := config.ParseAddresses(cfg.Borrowers)
	if err != nil {
		return err
	}
	if len(borrowers) == 0 {
		return fmt.Errorf("borrower list is required")
	}
	targets, err := targetsFor(cfg.Market, borrowers)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}

	sinks, store, closeSinks, err := openSinks(ctx, cfg.Out, cfg.PGDSN, logger)
	if err != nil {
		return err
	}
	defer closeSinks()
	logLastStored(ctx, store, chainID.Uint64(), targets, logger)

	var metrics *monitor.Metrics
	if cfg.MetricsAddr != "" {
		metrics = monitor.NewMetrics()
	}

	reader := margin.NewReader(margin.Config{
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, logger)
	engine := solvency.NewEngine(solvency.Config{Iterations: cfg.Iterations}, logger)

	watcher := monitor.NewWatcher(monitor.Config{
		ChainID:     chainID.Uint64(),
		Interval:    cfg.Interval,
		Concurrency: cfg.Concurrency,
		Sigma:       sigma,
		Targets:     targets,
	}, reader, engine, sinks, metrics, logger)

	logger.Info("watch start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("chain_id", chainID.Uint64()),
		zap.Int("borrowers", len(targets)),
		zap.String("pool", targets[0].Pool.Hex()),
		zap.String("sigma", sigma.String()),
		zap.Duration("interval", cfg.Interval),
		zap.Int("concurrency", cfg.Concurrency),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", store != nil),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watcher.Run(gctx)
	})
	if metrics != nil {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.MetricsAddr, logger)
		})
	}
	return g.Wait()
}

func logLastStored(ctx context.Context, store *postgres.Store, chainID uint64, targets []margin.Target, logger *zap.Logger) {
	if store == nil {
		return
	}
	for _, target := range targets {
		block, ok, err := store.LatestBlock(ctx, chainID, target.Borrower.Hex())
		if err != nil {
			logger.Warn("load last stored evaluation", zap.String("borrower", target.Borrower.Hex()), zap.Error(err))
			continue
		}
		if ok {
			logger.Info("resume borrower", zap.String("borrower", target.Borrower.Hex()), zap.Uint64("last_block", block))
		}
	}
}
