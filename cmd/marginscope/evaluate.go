package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"marginScope/internal/chain"
	"marginScope/internal/config"
	"marginScope/internal/margin"
	"marginScope/internal/model"
	"marginScope/internal/solvency"
)

func runEvaluate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadEvaluate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	sigma, err := config.ParseSigma(cfg.Sigma)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := solvency.NewEngine(solvency.Config{Iterations: cfg.Iterations}, logger)

	var evaluation model.Evaluation
	if cfg.Snapshot != "" {
		evaluation, err = evaluateSnapshot(engine, cfg.Snapshot, sigma)
	} else {
		evaluation, err = evaluateChain(ctx, engine, cfg, sigma, logger)
	}
	if err != nil {
		return err
	}

	sinks, _, closeSinks, err := openSinks(ctx, cfg.Out, cfg.PGDSN, logger)
	if err != nil {
		return err
	}
	defer closeSinks()
	if len(sinks) > 0 {
		if err := sinks.PutEvaluations(ctx, []model.Evaluation{evaluation}); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}

	logger.Info("evaluate done",
		zap.String("borrower", evaluation.Borrower),
		zap.Uint64("block", evaluation.BlockNumber),
		zap.Bool("solvent", evaluation.Solvency.Solvent()),
		zap.String("lower", evaluation.Thresholds.Lower.String()),
		zap.String("upper", evaluation.Thresholds.Upper.String()),
	)

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(evaluation)
}

// evaluateSnapshot uses the snapshot's sigma unless it is zero.
func evaluateSnapshot(engine *solvency.Engine, path string, sigma decimal.Decimal) (model.Evaluation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snapshot model.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.Evaluation{}, fmt.Errorf("parse snapshot: %w", err)
	}

	account, positions, snapshotSigma, err := snapshot.Decode()
	if err != nil {
		return model.Evaluation{}, err
	}
	if !snapshotSigma.IsZero() {
		sigma = snapshotSigma
	}

	evaluation, err := engine.Report(account, positions, sigma)
	if err != nil {
		return model.Evaluation{}, err
	}
	evaluation.ChainID = snapshot.ChainID
	evaluation.BlockNumber = snapshot.BlockNumber
	evaluation.ComputedAt = time.Now().UTC()
	return evaluation, nil
}

func evaluateChain(ctx context.Context, engine *solvency.Engine, cfg config.EvaluateConfig, sigma decimal.Decimal, logger *zap.Logger) (model.Evaluation, error) {
	if cfg.RPCURL == "" {
		return model.Evaluation{}, fmt.Errorf("rpc url or snapshot file is required")
	}
	if cfg.Borrower == "" {
		return model.Evaluation{}, fmt.Errorf("borrower address is required")
	}
	borrowers, err := config.ParseAddresses([]string{cfg.Borrower})
	if err != nil {
		return model.Evaluation{}, err
	}
	targets, err := targetsFor(cfg.Market, borrowers)
	if err != nil {
		return model.Evaluation{}, err
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("chain id: %w", err)
	}

	reader := margin.NewReader(margin.Config{
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, logger)
	state, err := reader.Snapshot(ctx, targets[0])
	if err != nil {
		return model.Evaluation{}, err
	}

	evaluation, err := engine.Report(state.Account, state.Positions, sigma)
	if err != nil {
		return model.Evaluation{}, err
	}
	evaluation.ChainID = chainID.Uint64()
	evaluation.BlockNumber = state.BlockNumber
	evaluation.ComputedAt = time.Now().UTC()
	return evaluation, nil
}
