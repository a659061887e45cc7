package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"ohlcv-collector/internal/exchange"
	"ohlcv-collector/internal/exchange/rest"
	"ohlcv-collector/internal/market"
)

const (
	Name           = "binance"
	DefaultBaseURL = "https://data-api.binance.vision/api/v3"

	pageSize = 1000
)

// Binance interval codes happen to match the canonical ones, but the
// table still gates which intervals the exchange offers.
var intervals = map[market.Interval]string{
	market.Interval1m:  "1m",
	market.Interval3m:  "3m",
	market.Interval5m:  "5m",
	market.Interval15m: "15m",
	market.Interval30m: "30m",
	market.Interval1h:  "1h",
	market.Interval2h:  "2h",
	market.Interval4h:  "4h",
	market.Interval6h:  "6h",
	market.Interval12h: "12h",
	market.Interval1d:  "1d",
	market.Interval1w:  "1w",
}

// Adapter fetches spot klines from the Binance public data API.
// Response rows are positional arrays with millisecond timestamps and
// string-encoded prices:
//
//	[openTime, open, high, low, close, volume, closeTime, ...]
type Adapter struct {
	client *rest.Client
}

func New(client *rest.Client) *Adapter { return &Adapter{client: client} }

func (a *Adapter) Name() string  { return Name }
func (a *Adapter) PageSize() int { return pageSize }

func (a *Adapter) FetchCandles(ctx context.Context, req exchange.FetchRequest) ([]market.Candle, error) {
	code, ok := intervals[req.Interval]
	if !ok {
		return nil, exchange.NewError(exchange.KindUnsupported, Name, fmt.Sprintf("interval %s not offered", req.Interval))
	}
	q := url.Values{}
	q.Set("symbol", req.Symbol)
	q.Set("interval", code)
	q.Set("startTime", strconv.FormatInt(req.Window.Start.UnixMilli(), 10))
	q.Set("endTime", strconv.FormatInt(req.Window.End.UnixMilli()-1, 10))
	q.Set("limit", strconv.Itoa(pageSize))

	var rows [][]any
	if err := a.client.GetJSON(ctx, "/klines", q, &rows); err != nil {
		return nil, classify(err)
	}
	out := make([]market.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			return nil, exchange.NewError(exchange.KindSchema, Name, fmt.Sprintf("kline row has %d fields, want at least 6", len(row)))
		}
		start, err := exchange.TimeFromAny(row[0])
		if err != nil {
			return nil, exchange.WrapError(exchange.KindSchema, Name, "kline open time", err)
		}
		o, h, l, c, v, err := exchange.OHLCV(row, 1, 2, 3, 4, 5)
		if err != nil {
			return nil, exchange.WrapError(exchange.KindSchema, Name, "kline row", err)
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

// classify refines the generic mapping: Binance reports unknown symbols
// as HTTP 400 with body code -1121.
func classify(err error) error {
	var he *rest.HTTPError
	if errors.As(err, &he) && he.Status == 400 {
		var body struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal([]byte(he.Body), &body) == nil && body.Code == -1121 {
			return exchange.WrapError(exchange.KindNotFound, Name, "unknown symbol", err)
		}
	}
	return exchange.ClassifyHTTP(Name, err)
}
