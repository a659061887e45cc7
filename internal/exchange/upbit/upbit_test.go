package upbit

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

func TestFetchDayCandles(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/candles/days" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("market") != "KRW-BTC" {
			t.Errorf("unexpected market %s", q.Get("market"))
		}
		if q.Get("to") != "2024-05-04T00:00:00Z" {
			t.Errorf("unexpected to %s", q.Get("to"))
		}
		if q.Get("count") != "3" {
			t.Errorf("unexpected count %s", q.Get("count"))
		}
		// newest first, one row before the window
		w.Write([]byte(`[
			{"market":"KRW-BTC","candle_date_time_utc":"2024-05-03T00:00:00","opening_price":88000000,"high_price":89500000.5,"low_price":87000000,"trade_price":89000000,"candle_acc_trade_volume":310.25,"timestamp":1714780800000},
			{"market":"KRW-BTC","candle_date_time_utc":"2024-05-02T00:00:00","opening_price":87500000,"high_price":88200000,"low_price":86900000,"trade_price":88000000,"candle_acc_trade_volume":295.5,"timestamp":1714694400000},
			{"market":"KRW-BTC","candle_date_time_utc":"2024-04-30T00:00:00","opening_price":87000000,"high_price":87600000,"low_price":86000000,"trade_price":87500000,"candle_acc_trade_volume":280,"timestamp":1714435200000}
		]`))
	})

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	out, err := a.FetchCandles(context.Background(), exchange.FetchRequest{
		Asset:    "BTC/KRW",
		Symbol:   "KRW-BTC",
		Interval: market.Interval1d,
		Window:   market.Window{Start: start, End: start.AddDate(0, 0, 3)},
	})
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 candles inside the window, got %d", len(out))
	}
	if !out[0].Start.Before(out[1].Start) {
		t.Fatalf("candles should be flipped to ascending")
	}
	if !out[0].Start.Equal(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first candle start %v", out[0].Start)
	}
	if out[1].High.String() != "89500000.5" {
		t.Fatalf("expected high 89500000.5, got %s", out[1].High)
	}
	if out[0].Exchange != Name {
		t.Fatalf("unexpected exchange %s", out[0].Exchange)
	}
}

func TestFetchMinuteCandlesEndpoint(t *testing.T) {
	var path string
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(`[]`))
	})

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for iv, want := range map[market.Interval]string{
		market.Interval15m: "/candles/minutes/15",
		market.Interval1h:  "/candles/minutes/60",
		market.Interval4h:  "/candles/minutes/240",
	} {
		_, err := a.FetchCandles(context.Background(), exchange.FetchRequest{
			Asset:    "BTC/KRW",
			Symbol:   "KRW-BTC",
			Interval: iv,
			Window:   market.Window{Start: start, End: start.Add(24 * time.Hour)},
		})
		if err != nil {
			t.Fatalf("%s fetch error: %v", iv, err)
		}
		if path != want {
			t.Fatalf("%s: expected path %s, got %s", iv, want, path)
		}
	}
}

func TestWeeklyUnsupported(t *testing.T) {
	a := New(nil)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := a.FetchCandles(context.Background(), exchange.FetchRequest{
		Asset:    "BTC/KRW",
		Symbol:   "KRW-BTC",
		Interval: market.Interval1w,
		Window:   market.Window{Start: start, End: start.AddDate(0, 0, 14)},
	})
	if exchange.KindOf(err) != exchange.KindUnsupported {
		t.Fatalf("expected unsupported, got %v", err)
	}
}

func TestFetchCandlesNotFound(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"name":404,"message":"Code not found"}}`))
	})
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := a.FetchCandles(context.Background(), exchange.FetchRequest{
		Asset:    "NOPE/KRW",
		Symbol:   "KRW-NOPE",
		Interval: market.Interval1d,
		Window:   market.Window{Start: start, End: start.AddDate(0, 0, 1)},
	})
	if exchange.KindOf(err) != exchange.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
