package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"marginScope/internal/margin"
	"marginScope/internal/model"
	"marginScope/internal/storage"
)

// Reader loads one account snapshot.
type Reader interface {
	Snapshot(ctx context.Context, target margin.Target) (margin.State, error)
}

// Evaluator turns a snapshot into a published evaluation.
type Evaluator interface {
	Report(account model.Account, positions []model.UniswapPosition, sigma decimal.Decimal) (model.Evaluation, error)
}

// Config controls the watch loop.
type Config struct {
	ChainID     uint64
	Interval    time.Duration
	Concurrency int
	Sigma       decimal.Decimal
	Targets     []margin.Target
}

// Watcher re-evaluates every target on a fixed interval. Starting a cycle cancels the one before it,
// and a cycle only publishes while it is still the newest.
type Watcher struct {
	cfg     Config
	reader  Reader
	engine  Evaluator
	sink    storage.Sink
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time

	generation atomic.Uint64
	mu         sync.Mutex
	cancel     context.CancelFunc
	publishMu  sync.Mutex
}

func NewWatcher(cfg Config, reader Reader, engine Evaluator, sink storage.Sink, metrics *Metrics, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Watcher{
		cfg:     cfg,
		reader:  reader,
		engine:  engine,
		sink:    sink,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Run starts a cycle immediately and then on every tick until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	start := func() {
		cycleCtx, generation := w.begin(ctx)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.cycle(ctx, cycleCtx, generation); err != nil && cycleCtx.Err() == nil {
				w.logger.Warn("cycle failed", zap.Uint64("cycle", generation), zap.Error(err))
			}
		}()
	}

	start()
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.cancel != nil {
				w.cancel()
			}
			w.mu.Unlock()
			wg.Wait()
			return nil
		case <-ticker.C:
			start()
		}
	}
}

// Once runs a single cycle and returns what it published.
func (w *Watcher) Once(ctx context.Context) ([]model.Evaluation, error) {
	cycleCtx, generation := w.begin(ctx)
	return w.cycle(ctx, cycleCtx, generation)
}

// begin supersedes the running cycle, if any.
func (w *Watcher) begin(parent context.Context) (context.Context, uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	w.cancel = cancel
	return ctx, w.generation.Add(1)
}

func (w *Watcher) cycle(publishCtx, ctx context.Context, generation uint64) ([]model.Evaluation, error) {
	results := make([]*model.Evaluation, len(w.cfg.Targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	for i, target := range w.cfg.Targets {
		i, target := i, target
		g.Go(func() error {
			evaluation, err := w.evaluate(gctx, target)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.metrics.ObserveFailure()
				w.logger.Warn("evaluate account",
					zap.Uint64("cycle", generation),
					zap.String("borrower", target.Borrower.Hex()),
					zap.Error(err),
				)
				return nil
			}
			results[i] = &evaluation
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("cycle %d: %w", generation, err)
	}

	evaluations := make([]model.Evaluation, 0, len(results))
	for _, r := range results {
		if r != nil {
			evaluations = append(evaluations, *r)
		}
	}

	w.publishMu.Lock()
	defer w.publishMu.Unlock()
	if w.generation.Load() != generation {
		w.metrics.ObserveStale(len(evaluations))
		w.logger.Debug("discard superseded cycle", zap.Uint64("cycle", generation))
		return nil, nil
	}

	if w.sink != nil && len(evaluations) > 0 {
		if err := w.sink.PutEvaluations(publishCtx, evaluations); err != nil {
			return nil, fmt.Errorf("publish: %w", err)
		}
	}
	for _, e := range evaluations {
		w.metrics.ObserveEvaluation(e)
	}
	w.logger.Info("cycle complete",
		zap.Uint64("cycle", generation),
		zap.Int("targets", len(w.cfg.Targets)),
		zap.Int("published", len(evaluations)),
	)
	return evaluations, nil
}

func (w *Watcher) evaluate(ctx context.Context, target margin.Target) (model.Evaluation, error) {
	started := time.Now()
	state, err := w.reader.Snapshot(ctx, target)
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("read: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return model.Evaluation{}, err
	}

	evaluation, err := w.engine.Report(state.Account, state.Positions, w.cfg.Sigma)
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("evaluate: %w", err)
	}
	evaluation.ChainID = w.cfg.ChainID
	evaluation.BlockNumber = state.BlockNumber
	evaluation.ComputedAt = w.now().UTC()
	w.metrics.ObserveDuration(time.Since(started))
	return evaluation, nil
}
