package coinbase

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"ohlcv-collector/internal/exchange"
	"ohlcv-collector/internal/exchange/rest"
	"ohlcv-collector/internal/market"
)

const (
	Name           = "coinbase"
	DefaultBaseURL = "https://api.exchange.coinbase.com"

	pageSize   = 300
	timeLayout = "2006-01-02T15:04:05"
)

// Coinbase expresses intervals as granularity in seconds and only
// offers this fixed set.
var granularities = map[market.Interval]int{
	market.Interval1m:  60,
	market.Interval5m:  300,
	market.Interval15m: 900,
	market.Interval30m: 1800,
	market.Interval1h:  3600,
	market.Interval6h:  21600,
	market.Interval1d:  86400,
}

// Adapter fetches candles from the Coinbase Exchange public API. Rows
// are numeric arrays sorted newest first with low before high and open
// after both:
//
//	[time(s), low, high, open, close, volume]
type Adapter struct {
	client *rest.Client
}

func New(client *rest.Client) *Adapter { return &Adapter{client: client} }

func (a *Adapter) Name() string  { return Name }
func (a *Adapter) PageSize() int { return pageSize }

func (a *Adapter) FetchCandles(ctx context.Context, req exchange.FetchRequest) ([]market.Candle, error) {
	granularity, ok := granularities[req.Interval]
	if !ok {
		return nil, exchange.NewError(exchange.KindUnsupported, Name, fmt.Sprintf("interval %s not offered", req.Interval))
	}
	q := url.Values{}
	q.Set("start", req.Window.Start.UTC().Format(timeLayout))
	q.Set("end", req.Window.End.Add(-time.Second).UTC().Format(timeLayout))
	q.Set("granularity", strconv.Itoa(granularity))

	var rows [][]any
	if err := a.client.GetJSON(ctx, "/products/"+url.PathEscape(req.Symbol)+"/candles", q, &rows); err != nil {
		return nil, exchange.ClassifyHTTP(Name, err)
	}
	out := make([]market.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 6 {
			return nil, exchange.NewError(exchange.KindSchema, Name, fmt.Sprintf("candle row has %d fields, want 6", len(row)))
		}
		start, err := exchange.TimeFromAny(row[0])
		if err != nil {
			return nil, exchange.WrapError(exchange.KindSchema, Name, "candle time", err)
		}
		o, h, l, c, v, err := exchange.OHLCV(row, 3, 2, 1, 4, 5)
		if err != nil {
			return nil, exchange.WrapError(exchange.KindSchema, Name, "candle row", err)
		}
		out = append(out, market.Candle{
			Asset:    req.Asset,
			Exchange: Name,
			Interval: req.Interval,
			Start:    start,
			Open:     o,
			High:     h,
			Low:      l,
			Close:    c,
			Volume:   v,
		})
	}
	return out, nil
}
