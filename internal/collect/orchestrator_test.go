package collect

import (
	"context"
	"strings"
	"testing"

	"ohlcv-collector/internal/exchange"
	"ohlcv-collector/internal/market"
	"ohlcv-collector/internal/symbols"

	"go.uber.org/zap"
)

func newTestOrchestrator(adapters map[string]exchange.Adapter) *Orchestrator {
	limiters := make(map[string]*Limiter, len(adapters))
	for name := range adapters {
		limiters[name] = NewLimiter(1000, 1000, 4)
	}
	p, _ := newTestPager(testPolicy())
	return NewOrchestrator(symbols.New(nil), adapters, limiters, p, 2, zap.NewNop(), nil)
}

func collectionReq(assets []string, exchanges []string, days int) market.CollectionRequest {
	return market.CollectionRequest{
		Assets:    assets,
		Exchanges: exchanges,
		Interval:  market.Interval1d,
		Window:    market.Window{Start: day(0), End: day(days)},
	}
}

func TestRunCollectsAllExchanges(t *testing.T) {
	adapters := map[string]exchange.Adapter{}
	for _, name := range []string{"binance", "kraken"} {
		name := name
		adapters[name] = &fakeAdapter{name: name, pageSize: 100, fetch: func(_ context.Context, req exchange.FetchRequest) ([]market.Candle, error) {
			return dailyCandles(name, req.Window.Start, req.Window.End), nil
		}}
	}
	o := newTestOrchestrator(adapters)

	res, err := o.Run(context.Background(), collectionReq([]string{"BTC/USDT"}, []string{"binance", "kraken"}, 3))
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if res.Partial {
		t.Fatalf("run should be complete")
	}
	if len(res.Table) != 6 {
		t.Fatalf("expected 6 candles, got %d", len(res.Table))
	}
	for _, ex := range []string{"binance", "kraken"} {
		st := res.Status[ex]
		if st.Succeeded != 1 || st.Failed != 0 {
			t.Fatalf("%s: unexpected status %+v", ex, st)
		}
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings %v", res.Warnings)
	}
}

func TestRunIsolatesFailingExchange(t *testing.T) {
	adapters := map[string]exchange.Adapter{
		"binance": &fakeAdapter{name: "binance", pageSize: 100, fetch: func(_ context.Context, req exchange.FetchRequest) ([]market.Candle, error) {
			return dailyCandles("binance", req.Window.Start, req.Window.End), nil
		}},
		"kraken": &fakeAdapter{name: "kraken", pageSize: 100, fetch: func(context.Context, exchange.FetchRequest) ([]market.Candle, error) {
			return nil, exchange.NewError(exchange.KindNotFound, "kraken", "Unknown asset pair")
		}},
	}
	o := newTestOrchestrator(adapters)

	res, err := o.Run(context.Background(), collectionReq([]string{"BTC/USDT"}, []string{"binance", "kraken"}, 3))
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if res.Status["binance"].Succeeded != 1 {
		t.Fatalf("binance should succeed despite kraken: %+v", res.Status["binance"])
	}
	st := res.Status["kraken"]
	if st.Failed != 1 || !strings.Contains(st.LastError, "Unknown asset pair") {
		t.Fatalf("kraken failure not recorded: %+v", st)
	}
	if len(res.Table) != 3 {
		t.Fatalf("expected binance candles only, got %d", len(res.Table))
	}
	if !res.Partial {
		t.Fatalf("a failed pair must mark the run partial even with no data collected")
	}
}

func TestRunUnknownExchange(t *testing.T) {
	adapters := map[string]exchange.Adapter{
		"binance": &fakeAdapter{name: "binance", pageSize: 100, fetch: func(_ context.Context, req exchange.FetchRequest) ([]market.Candle, error) {
			return dailyCandles("binance", req.Window.Start, req.Window.End), nil
		}},
	}
	o := newTestOrchestrator(adapters)

	res, err := o.Run(context.Background(), collectionReq([]string{"BTC/USDT", "ETH/USDT"}, []string{"binance", "ghostex"}, 2))
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	st := res.Status["ghostex"]
	if st.Failed != 2 || !strings.Contains(st.LastError, "ghostex") {
		t.Fatalf("unknown exchange not reported: %+v", st)
	}
	if res.Status["binance"].Succeeded != 2 {
		t.Fatalf("binance should still collect: %+v", res.Status["binance"])
	}
	if !res.Partial {
		t.Fatalf("an unknown exchange must mark the run partial")
	}
}

func TestRunUnsupportedAssetCountsAsFailure(t *testing.T) {
	adapters := map[string]exchange.Adapter{
		"upbit": &fakeAdapter{name: "upbit", pageSize: 100, fetch: func(_ context.Context, req exchange.FetchRequest) ([]market.Candle, error) {
			return dailyCandles("upbit", req.Window.Start, req.Window.End), nil
		}},
	}
	o := newTestOrchestrator(adapters)

	// EUR is not a quote upbit lists, so the resolver refuses the pair
	res, err := o.Run(context.Background(), collectionReq([]string{"BTC/EUR", "BTC/KRW"}, []string{"upbit"}, 2))
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	st := res.Status["upbit"]
	if st.Succeeded != 1 || st.Failed != 1 {
		t.Fatalf("expected one success and one failure, got %+v", st)
	}
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	o := newTestOrchestrator(map[string]exchange.Adapter{})
	if _, err := o.Run(context.Background(), market.CollectionRequest{}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRunPartialOnPairFailureWithData(t *testing.T) {
	calls := 0
	adapters := map[string]exchange.Adapter{
		"binance": &fakeAdapter{name: "binance", pageSize: 2, fetch: func(_ context.Context, req exchange.FetchRequest) ([]market.Candle, error) {
			calls++
			if calls == 1 {
				return dailyCandles("binance", req.Window.Start, req.Window.End), nil
			}
			return nil, exchange.NewError(exchange.KindSchema, "binance", "malformed row")
		}},
	}
	o := newTestOrchestrator(adapters)

	res, err := o.Run(context.Background(), collectionReq([]string{"BTC/USDT"}, []string{"binance"}, 6))
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if !res.Partial {
		t.Fatalf("run with a truncated pair should be partial")
	}
	if len(res.Table) != 2 {
		t.Fatalf("expected the collected prefix to survive, got %d", len(res.Table))
	}
	if res.Status["binance"].Failed != 1 {
		t.Fatalf("failure not recorded: %+v", res.Status["binance"])
	}
}
