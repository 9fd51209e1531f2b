package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"marginScope/internal/config"
	"marginScope/internal/margin"
	"marginScope/internal/storage"
	"marginScope/internal/storage/postgres"
)

func targetsFor(cfg config.Market, borrowers []common.Address) ([]margin.Target, error) {
	pool, err := config.ParseOptionalAddress(cfg.Pool)
	if err != nil {
		return nil, err
	}
	if pool == (common.Address{}) {
		return nil, fmt.Errorf("pool address is required")
	}
	lender0, err := config.ParseOptionalAddress(cfg.Lender0)
	if err != nil {
		return nil, err
	}
	lender1, err := config.ParseOptionalAddress(cfg.Lender1)
	if err != nil {
		return nil, err
	}

	targets := make([]margin.Target, 0, len(borrowers))
	for _, borrower := range borrowers {
		targets = append(targets, margin.Target{
			Borrower:               borrower,
			Pool:                   pool,
			Lender0:                lender0,
			Lender1:                lender1,
			IncludeInterestBearing: cfg.IncludeInterestBearing,
		})
	}
	return targets, nil
}

// openSinks returns the configured sinks and a function that releases them.
func openSinks(ctx context.Context, out, dsn string, logger *zap.Logger) (storage.Multi, *postgres.Store, func(), error) {
	var sinks storage.Multi
	if out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(out))
	}
	if dsn == "" {
		return sinks, nil, func() {}, nil
	}

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}
	logger.Info("postgres ready")
	return append(sinks, store), store, store.Close, nil
}
