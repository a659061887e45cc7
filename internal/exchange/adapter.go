package exchange

import (
	"context"

	"ohlcv-collector/internal/market"
)

// FetchRequest asks an adapter for one page of candles. Symbol is the
// exchange-native pair string produced by the symbol resolver; Asset is
// the logical identifier stamped onto the returned candles.
type FetchRequest struct {
	Asset    string
	Symbol   string
	Interval market.Interval
	Window   market.Window
}

// Adapter is the single contract every exchange implements. FetchCandles
// performs one HTTP request for the earliest page of the window and
// returns canonical candles in ascending start order. Adapters hold no
// mutable state and are safe for concurrent use; paging across the full
// range is the controller's job.
//
// An empty result with a nil error means the window is valid but had no
// trading. An unknown symbol is a NotFound error, never an empty page.
type Adapter interface {
	Name() string
	PageSize() int
	FetchCandles(ctx context.Context, req FetchRequest) ([]market.Candle, error)
}
