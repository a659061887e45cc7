package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ohlcv-collector/internal/collect"
	"ohlcv-collector/internal/config"
	"ohlcv-collector/internal/exchange"
	"ohlcv-collector/internal/exchange/binance"
	"ohlcv-collector/internal/exchange/bybit"
	"ohlcv-collector/internal/exchange/coinbase"
	"ohlcv-collector/internal/exchange/kraken"
	"ohlcv-collector/internal/exchange/kucoin"
	"ohlcv-collector/internal/exchange/rest"
	"ohlcv-collector/internal/exchange/upbit"
	"ohlcv-collector/internal/export"
	"ohlcv-collector/internal/market"
	"ohlcv-collector/internal/metrics"
	"ohlcv-collector/internal/symbols"

	"go.uber.org/zap"
)

// App assembles the collection pipeline from config: adapters with
// their rate limiters, the pager, the orchestrator and the export
// sinks. One Run is one collection.
type App struct {
	cfg          *config.Config
	log          *zap.Logger
	orchestrator *collect.Orchestrator
	prom         *metrics.Prometheus
	timescale    *export.TimescaleWriter
}

type adapterEntry struct {
	defaultBaseURL string
	build          func(*rest.Client) exchange.Adapter
}

var adapterRegistry = map[string]adapterEntry{
	upbit.Name:    {upbit.DefaultBaseURL, func(c *rest.Client) exchange.Adapter { return upbit.New(c) }},
	binance.Name:  {binance.DefaultBaseURL, func(c *rest.Client) exchange.Adapter { return binance.New(c) }},
	kraken.Name:   {kraken.DefaultBaseURL, func(c *rest.Client) exchange.Adapter { return kraken.New(c) }},
	bybit.Name:    {bybit.DefaultBaseURL, func(c *rest.Client) exchange.Adapter { return bybit.New(c) }},
	coinbase.Name: {coinbase.DefaultBaseURL, func(c *rest.Client) exchange.Adapter { return coinbase.New(c) }},
	kucoin.Name:   {kucoin.DefaultBaseURL, func(c *rest.Client) exchange.Adapter { return kucoin.New(c) }},
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	var prom *metrics.Prometheus
	m := metrics.NewNoop()
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}

	adapters := make(map[string]exchange.Adapter, len(adapterRegistry))
	limiters := make(map[string]*collect.Limiter, len(adapterRegistry))
	for name, entry := range adapterRegistry {
		exCfg := cfg.Exchanges[name]
		baseURL := entry.defaultBaseURL
		if exCfg.BaseURL != "" {
			baseURL = exCfg.BaseURL
		}
		client := rest.New(baseURL, cfg.HTTP.Timeout, cfg.HTTP.UserAgent, log.Named(name))
		adapters[name] = entry.build(client)
		limiters[name] = collect.NewLimiter(exCfg.RatePerSec, exCfg.Burst, exCfg.MaxInFlight)
	}

	resolver := symbols.New(cfg.Symbols.Overrides)
	pager := collect.NewPager(retryPolicy(cfg.Collector), log, m)
	orchestrator := collect.NewOrchestrator(resolver, adapters, limiters, pager, cfg.Collector.ExchangeWorkers, log, m)

	timescale, err := export.NewTimescale(cfg.Export.Timescale, log)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:          cfg,
		log:          log,
		orchestrator: orchestrator,
		prom:         prom,
		timescale:    timescale,
	}, nil
}

func retryPolicy(cfg config.CollectorConfig) collect.RetryPolicy {
	return collect.RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		Backoff: collect.BackoffPolicy{
			Base:       cfg.BackoffBase,
			Max:        cfg.BackoffMax,
			Multiplier: cfg.BackoffMultiplier,
			Jitter:     cfg.BackoffJitter,
		},
		NetworkRetries: cfg.NetworkRetries,
		NetworkDelay:   cfg.NetworkDelay,
	}
}

// Run executes the configured collection and writes every enabled
// export sink. Partial results are still exported; partiality is
// reported through logs and the snapshot metadata.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		if err := a.timescale.Close(); err != nil {
			a.log.Warn("timescale close failed", zap.Error(err))
		}
	}()

	var metricsSrv *http.Server
	if a.prom != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.prom.Handler())
		metricsSrv = &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	req, err := a.buildRequest()
	if err != nil {
		return err
	}
	a.log.Info("collection started",
		zap.Strings("assets", req.Assets),
		zap.Strings("exchanges", req.Exchanges),
		zap.String("interval", req.Interval.String()),
		zap.Time("start", req.Window.Start),
		zap.Time("end", req.Window.End))

	res, err := a.orchestrator.Run(ctx, req)
	if err != nil {
		return err
	}

	for _, ex := range req.Exchanges {
		st := res.Status[ex]
		fields := []zap.Field{
			zap.String("exchange", ex),
			zap.Int("succeeded", st.Succeeded),
			zap.Int("failed", st.Failed),
		}
		if st.LastError != "" {
			fields = append(fields, zap.String("last_error", st.LastError))
		}
		a.log.Info("exchange finished", fields...)
	}
	for _, w := range res.Warnings {
		a.log.Warn("data quality warning",
			zap.String("kind", string(w.Kind)),
			zap.String("asset", w.Asset),
			zap.String("exchange", w.Exchange),
			zap.String("detail", w.Detail))
	}
	if res.Partial {
		a.log.Warn("collection is partial", zap.Int("candles", len(res.Table)))
	} else {
		a.log.Info("collection complete", zap.Int("candles", len(res.Table)))
	}

	return a.export(ctx, req, res)
}

func (a *App) buildRequest() (market.CollectionRequest, error) {
	iv, err := market.ParseInterval(a.cfg.Request.Interval)
	if err != nil {
		return market.CollectionRequest{}, err
	}
	win, err := a.cfg.Request.ParseWindow()
	if err != nil {
		return market.CollectionRequest{}, err
	}
	req := market.CollectionRequest{
		Assets:    a.cfg.Request.Assets,
		Exchanges: a.cfg.Request.Exchanges,
		Interval:  iv,
		Window:    win,
	}
	return req, req.Validate()
}

func (a *App) export(ctx context.Context, req market.CollectionRequest, res *market.CollectionResult) error {
	// A signal-cancelled run still exports whatever it collected, so
	// the sinks must not inherit the run's cancellation.
	ctx = context.WithoutCancel(ctx)
	if a.cfg.Export.CSVPath != "" {
		if err := export.WriteCSVFile(a.cfg.Export.CSVPath, res.Table); err != nil {
			return err
		}
		a.log.Info("csv written",
			zap.String("path", a.cfg.Export.CSVPath),
			zap.Int("rows", len(res.Table)))
	}
	if a.cfg.Export.SnapshotPath != "" {
		snap, err := export.OpenSnapshot(a.cfg.Export.SnapshotPath)
		if err != nil {
			return err
		}
		runID, err := snap.Write(ctx, req, res)
		closeErr := snap.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			a.log.Warn("snapshot close failed", zap.Error(closeErr))
		}
		a.log.Info("snapshot written",
			zap.String("path", a.cfg.Export.SnapshotPath),
			zap.Int64("run_id", runID))
	}
	if a.timescale != nil {
		if err := a.timescale.Write(ctx, res.Table); err != nil {
			return err
		}
		a.log.Info("timescale written", zap.Int("rows", len(res.Table)))
	}
	return nil
}
