package kucoin

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"ohlcv-collector/internal/exchange"
	"ohlcv-collector/internal/exchange/rest"
	"ohlcv-collector/internal/market"
)

const (
	Name           = "kucoin"
	DefaultBaseURL = "https://api.kucoin.com"

	pageSize = 1500

	codeOK          = "200000"
	codeBadRequest  = "400100"
	codeRateLimited = "429000"
)

var intervals = map[market.Interval]string{
	market.Interval1m:  "1min",
	market.Interval3m:  "3min",
	market.Interval5m:  "5min",
	market.Interval15m: "15min",
	market.Interval30m: "30min",
	market.Interval1h:  "1hour",
	market.Interval2h:  "2hour",
	market.Interval4h:  "4hour",
	market.Interval6h:  "6hour",
	market.Interval12h: "12hour",
	market.Interval1d:  "1day",
	market.Interval1w:  "1week",
}

// Adapter fetches klines from the KuCoin public API. The envelope is a
// string-code wrapper; rows are string arrays sorted newest first with
// close before high and low:
//
//	[time(s), open, close, high, low, volume, turnover]
type Adapter struct {
	client *rest.Client
}

func New(client *rest.Client) *Adapter { return &Adapter{client: client} }

func (a *Adapter) Name() string  { return Name }
func (a *Adapter) PageSize() int { return pageSize }

type klineResponse struct {
	Code string  `json:"code"`
	Msg  string  `json:"msg"`
	Data [][]any `json:"data"`
}

func (a *Adapter) FetchCandles(ctx context.Context, req exchange.FetchRequest) ([]market.Candle, error) {
	code, ok := intervals[req.Interval]
	if !ok {
		return nil, exchange.NewError(exchange.KindUnsupported, Name, fmt.Sprintf("interval %s not offered", req.Interval))
	}
	q := url.Values{}
	q.Set("type", code)
	q.Set("symbol", req.Symbol)
	q.Set("startAt", strconv.FormatInt(req.Window.Start.Unix(), 10))
	q.Set("endAt", strconv.FormatInt(req.Window.End.Unix(), 10))

	var resp klineResponse
	if err := a.client.GetJSON(ctx, "/api/v1/market/candles", q, &resp); err != nil {
		return nil, exchange.ClassifyHTTP(Name, err)
	}
	if resp.Code != codeOK {
		return nil, classifyCode(resp.Code, resp.Msg)
	}
	out := make([]market.Candle, 0, len(resp.Data))
	for i := len(resp.Data) - 1; i >= 0; i-- {
		row := resp.Data[i]
		if len(row) < 6 {
			return nil, exchange.NewError(exchange.KindSchema, Name, fmt.Sprintf("kline row has %d fields, want at least 6", len(row)))
		}
		start, err := exchange.TimeFromAny(row[0])
		if err != nil {
			return nil, exchange.WrapError(exchange.KindSchema, Name, "kline time", err)
		}
		o, h, l, c, v, err := exchange.OHLCV(row, 1, 3, 4, 2, 5)
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

func classifyCode(code, msg string) error {
	detail := fmt.Sprintf("code %s: %s", code, msg)
	switch code {
	case codeBadRequest:
		return exchange.NewError(exchange.KindNotFound, Name, detail)
	case codeRateLimited:
		return exchange.NewError(exchange.KindRateLimited, Name, detail)
	default:
		return exchange.NewError(exchange.KindSchema, Name, detail)
	}
}
