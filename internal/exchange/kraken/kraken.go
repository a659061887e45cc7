package kraken

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"ohlcv-collector/internal/exchange"
	"ohlcv-collector/internal/exchange/rest"
	"ohlcv-collector/internal/market"
)

const (
	Name           = "kraken"
	DefaultBaseURL = "https://api.kraken.com/0/public"

	pageSize = 720
)

// Kraken expresses intervals in minutes.
var intervalMinutes = map[market.Interval]int{
	market.Interval1m:  1,
	market.Interval5m:  5,
	market.Interval15m: 15,
	market.Interval30m: 30,
	market.Interval1h:  60,
	market.Interval4h:  240,
	market.Interval1d:  1440,
	market.Interval1w:  10080,
}

// Adapter fetches OHLC data from the Kraken public API. The result is
// keyed by Kraken's own pair spelling (e.g. XXBTZUSD for XBTUSD), so
// the payload is located by skipping the "last" cursor key. Rows are
// ascending positional arrays with second timestamps and a vwap column
// between close and volume:
//
//	[time, open, high, low, close, vwap, volume, count]
type Adapter struct {
	client *rest.Client
}

func New(client *rest.Client) *Adapter { return &Adapter{client: client} }

func (a *Adapter) Name() string  { return Name }
func (a *Adapter) PageSize() int { return pageSize }

type ohlcResponse struct {
	Error  []string       `json:"error"`
	Result map[string]any `json:"result"`
}

func (a *Adapter) FetchCandles(ctx context.Context, req exchange.FetchRequest) ([]market.Candle, error) {
	minutes, ok := intervalMinutes[req.Interval]
	if !ok {
		return nil, exchange.NewError(exchange.KindUnsupported, Name, fmt.Sprintf("interval %s not offered", req.Interval))
	}
	q := url.Values{}
	q.Set("pair", req.Symbol)
	q.Set("interval", strconv.Itoa(minutes))
	// since is exclusive; back off one second to include a candle
	// opening exactly at the window start.
	q.Set("since", strconv.FormatInt(req.Window.Start.Unix()-1, 10))

	var resp ohlcResponse
	if err := a.client.GetJSON(ctx, "/OHLC", q, &resp); err != nil {
		return nil, exchange.ClassifyHTTP(Name, err)
	}
	if len(resp.Error) > 0 {
		return nil, classifyAPIError(resp.Error)
	}
	rows, err := ohlcRows(resp.Result)
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(rows))
	for _, raw := range rows {
		row, ok := raw.([]any)
		if !ok || len(row) < 7 {
			return nil, exchange.NewError(exchange.KindSchema, Name, "malformed OHLC row")
		}
		start, err := exchange.TimeFromAny(row[0])
		if err != nil {
			return nil, exchange.WrapError(exchange.KindSchema, Name, "OHLC time", err)
		}
		o, h, l, c, v, err := exchange.OHLCV(row, 1, 2, 3, 4, 6)
		if err != nil {
			return nil, exchange.WrapError(exchange.KindSchema, Name, "OHLC row", err)
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

func ohlcRows(result map[string]any) ([]any, error) {
	for key, val := range result {
		if key == "last" {
			continue
		}
		rows, ok := val.([]any)
		if !ok {
			return nil, exchange.NewError(exchange.KindSchema, Name, "OHLC payload is not an array")
		}
		return rows, nil
	}
	return nil, exchange.NewError(exchange.KindSchema, Name, "response carries no OHLC key")
}

func classifyAPIError(errs []string) error {
	msg := strings.Join(errs, ", ")
	switch {
	case strings.Contains(msg, "Unknown asset pair"):
		return exchange.NewError(exchange.KindNotFound, Name, msg)
	case strings.Contains(msg, "Rate limit") || strings.Contains(msg, "Too many requests"):
		return exchange.NewError(exchange.KindRateLimited, Name, msg)
	default:
		return exchange.NewError(exchange.KindSchema, Name, msg)
	}
}
