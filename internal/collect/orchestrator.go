package collect

import (
	"context"
	"fmt"
	"sync"

	"ohlcv-collector/internal/exchange"
	"ohlcv-collector/internal/market"
	"ohlcv-collector/internal/metrics"
	"ohlcv-collector/internal/normalize"
	"ohlcv-collector/internal/symbols"

	"go.uber.org/zap"
)

// Orchestrator fans a collection request out across exchanges and folds
// the results into one canonical dataset. Each exchange runs as its own
// task owning its status slot; one exchange failing, rate limiting or
// disappearing never blocks the others.
type Orchestrator struct {
	resolver *symbols.Resolver
	adapters map[string]exchange.Adapter
	limiters map[string]*Limiter
	pager    *Pager
	workers  int
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewOrchestrator wires the collection pipeline. workers bounds
// concurrent (asset, exchange) pairs per exchange; the per-exchange
// limiter bounds actual in-flight requests underneath.
func NewOrchestrator(resolver *symbols.Resolver, adapters map[string]exchange.Adapter, limiters map[string]*Limiter, pager *Pager, workers int, log *zap.Logger, m *metrics.Metrics) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		resolver: resolver,
		adapters: adapters,
		limiters: limiters,
		pager:    pager,
		workers:  workers,
		log:      log,
		metrics:  m,
	}
}

type exchangeOutcome struct {
	status  market.ExchangeStatus
	batches [][]market.Candle
	partial bool
}

// Run executes one collection. It fails only on request misuse; every
// live-data condition lands in the per-exchange status of the result.
func (o *Orchestrator) Run(ctx context.Context, req market.CollectionRequest) (*market.CollectionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	outcomes := make([]exchangeOutcome, len(req.Exchanges))
	var wg sync.WaitGroup
	for i, exchangeID := range req.Exchanges {
		wg.Add(1)
		go func(slot int, exchangeID string) {
			defer wg.Done()
			outcomes[slot] = o.collectExchange(ctx, exchangeID, req)
		}(i, exchangeID)
	}
	wg.Wait()

	var batches [][]market.Candle
	status := make(map[string]market.ExchangeStatus, len(req.Exchanges))
	partial := ctx.Err() != nil
	for i, exchangeID := range req.Exchanges {
		status[exchangeID] = outcomes[i].status
		batches = append(batches, outcomes[i].batches...)
		if outcomes[i].partial {
			partial = true
		}
	}

	table, warnings := normalize.Merge(batches, req.Interval, req.Window)
	return &market.CollectionResult{
		Table:    table,
		Status:   status,
		Warnings: warnings,
		Partial:  partial,
	}, nil
}

type pairOutcome struct {
	candles []market.Candle
	err     error
}

// collectExchange is the single task for one exchange: it owns the
// status slot and gathers pair results from a bounded worker pool, so
// no status field is ever written concurrently.
func (o *Orchestrator) collectExchange(ctx context.Context, exchangeID string, req market.CollectionRequest) exchangeOutcome {
	var out exchangeOutcome
	adapter, ok := o.adapters[exchangeID]
	if !ok {
		out.status.Failed = len(req.Assets)
		out.status.LastError = fmt.Sprintf("unknown exchange %q", exchangeID)
		out.partial = true
		return out
	}
	lim := o.limiters[exchangeID]

	jobs := make(chan string)
	results := make(chan pairOutcome)
	var workers sync.WaitGroup
	n := o.workers
	if n > len(req.Assets) {
		n = len(req.Assets)
	}
	for i := 0; i < n; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for asset := range jobs {
				results <- o.collectPair(ctx, adapter, lim, asset, req)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, asset := range req.Assets {
			select {
			case jobs <- asset:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		workers.Wait()
		close(results)
	}()

	for res := range results {
		if len(res.candles) > 0 {
			out.batches = append(out.batches, res.candles)
		}
		if res.err != nil {
			out.status.Failed++
			out.status.LastError = res.err.Error()
			// any failed pair leaves part of the requested range
			// uncovered, whether or not a prefix was collected
			out.partial = true
			o.metrics.PairsFailed.Inc()
			continue
		}
		out.status.Succeeded++
		o.metrics.PairsCollected.Inc()
	}
	if ctx.Err() != nil {
		out.partial = true
	}
	return out
}

func (o *Orchestrator) collectPair(ctx context.Context, adapter exchange.Adapter, lim *Limiter, asset string, req market.CollectionRequest) pairOutcome {
	symbol, err := o.resolver.Resolve(asset, adapter.Name())
	if err != nil {
		o.log.Info("asset unsupported on exchange",
			zap.String("asset", asset),
			zap.String("exchange", adapter.Name()))
		return pairOutcome{err: err}
	}
	candles, err := o.pager.Collect(ctx, adapter, lim, exchange.FetchRequest{
		Asset:    asset,
		Symbol:   symbol,
		Interval: req.Interval,
		Window:   req.Window,
	})
	if err != nil {
		o.log.Warn("pair collection failed",
			zap.String("asset", asset),
			zap.String("exchange", adapter.Name()),
			zap.Int("candles_kept", len(candles)),
			zap.Error(err))
		return pairOutcome{candles: candles, err: err}
	}
	o.log.Debug("pair collected",
		zap.String("asset", asset),
		zap.String("exchange", adapter.Name()),
		zap.Int("candles", len(candles)))
	return pairOutcome{candles: candles}
}
