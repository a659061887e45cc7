package kucoin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ohlcv-collector/internal/exchange"
	"ohlcv-collector/internal/exchange/rest"
	"ohlcv-collector/internal/market"

	"go.uber.org/zap"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(rest.New(srv.URL, 2*time.Second, "", zap.NewNop()))
}

func dayReq(days int) exchange.FetchRequest {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return exchange.FetchRequest{
		Asset:    "BTC/USDT",
		Symbol:   "BTC-USDT",
		Interval: market.Interval1d,
		Window:   market.Window{Start: start, End: start.AddDate(0, 0, days)},
	}
}

func TestFetchCandles(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/market/candles" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("type") != "1day" || q.Get("symbol") != "BTC-USDT" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("startAt") != "1714521600" || q.Get("endAt") != "1714694400" {
			t.Errorf("unexpected bounds %s", r.URL.RawQuery)
		}
		// rows are [time, open, close, high, low, volume, turnover], newest first
		w.Write([]byte(`{"code":"200000","data":[
			["1714608000","57800","58950.1","59000","57000","987.65","57000000"],
			["1714521600","57000.01","57800","58000.5","56500","1234.5","70000000"]
		]}`))
	})

	out, err := a.FetchCandles(context.Background(), dayReq(2))
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(out))
	}
	if !out[0].Start.Before(out[1].Start) {
		t.Fatalf("candles should be flipped to ascending")
	}
	if out[0].Close.String() != "57800" || out[0].High.String() != "58000.5" || out[0].Low.String() != "56500" {
		t.Fatalf("field order wrong: close %s high %s low %s", out[0].Close, out[0].High, out[0].Low)
	}
}

func TestFetchCandlesUnknownSymbol(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"400100","msg":"This pair is not provided at present."}`))
	})
	_, err := a.FetchCandles(context.Background(), dayReq(2))
	if exchange.KindOf(err) != exchange.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFetchCandlesRateLimited(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"429000","msg":"Too Many Requests"}`))
	})
	_, err := a.FetchCandles(context.Background(), dayReq(2))
	if exchange.KindOf(err) != exchange.KindRateLimited {
		t.Fatalf("expected rate limited, got %v", err)
	}
}

func TestFetchCandlesEmptyData(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"200000","data":[]}`))
	})
	out, err := a.FetchCandles(context.Background(), dayReq(2))
	if err != nil {
		t.Fatalf("empty data should not error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no candles, got %d", len(out))
	}
}
