package bybit

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
	Name           = "bybit"
	DefaultBaseURL = "https://api.bybit.com/v5/market"

	pageSize = 1000

	retCodeOK            = 0
	retCodeInvalidParams = 10001
	retCodeRateLimited   = 10006
)

// Bybit spells minute and hour intervals as minute counts, days and
// weeks as letters.
var intervals = map[market.Interval]string{
	market.Interval1m:  "1",
	market.Interval3m:  "3",
	market.Interval5m:  "5",
	market.Interval15m: "15",
	market.Interval30m: "30",
	market.Interval1h:  "60",
	market.Interval2h:  "120",
	market.Interval4h:  "240",
	market.Interval6h:  "360",
	market.Interval12h: "720",
	market.Interval1d:  "D",
	market.Interval1w:  "W",
}

// Adapter fetches spot klines from the Bybit v5 API. The envelope is a
// retCode/result wrapper; rows are string arrays sorted newest first:
//
//	[startTime(ms), open, high, low, close, volume, turnover]
type Adapter struct {
	client *rest.Client
}

func New(client *rest.Client) *Adapter { return &Adapter{client: client} }

func (a *Adapter) Name() string  { return Name }
func (a *Adapter) PageSize() int { return pageSize }

type klineResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List [][]any `json:"list"`
	} `json:"result"`
}

func (a *Adapter) FetchCandles(ctx context.Context, req exchange.FetchRequest) ([]market.Candle, error) {
	code, ok := intervals[req.Interval]
	if !ok {
		return nil, exchange.NewError(exchange.KindUnsupported, Name, fmt.Sprintf("interval %s not offered", req.Interval))
	}
	q := url.Values{}
	q.Set("category", "spot")
	q.Set("symbol", req.Symbol)
	q.Set("interval", code)
	q.Set("start", strconv.FormatInt(req.Window.Start.UnixMilli(), 10))
	q.Set("end", strconv.FormatInt(req.Window.End.UnixMilli()-1, 10))
	q.Set("limit", strconv.Itoa(pageSize))

	var resp klineResponse
	if err := a.client.GetJSON(ctx, "/kline", q, &resp); err != nil {
		return nil, exchange.ClassifyHTTP(Name, err)
	}
	if resp.RetCode != retCodeOK {
		return nil, classifyRetCode(resp.RetCode, resp.RetMsg)
	}
	list := resp.Result.List
	out := make([]market.Candle, 0, len(list))
	// list is newest-first; walk it backwards to hand ascending candles
	// to the controller.
	for i := len(list) - 1; i >= 0; i-- {
		row := list[i]
		if len(row) < 6 {
			return nil, exchange.NewError(exchange.KindSchema, Name, fmt.Sprintf("kline row has %d fields, want at least 6", len(row)))
		}
		start, err := exchange.TimeFromAny(row[0])
		if err != nil {
			return nil, exchange.WrapError(exchange.KindSchema, Name, "kline start time", err)
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

func classifyRetCode(code int, msg string) error {
	detail := fmt.Sprintf("retCode %d: %s", code, msg)
	switch code {
	case retCodeInvalidParams:
		return exchange.NewError(exchange.KindNotFound, Name, detail)
	case retCodeRateLimited:
		return exchange.NewError(exchange.KindRateLimited, Name, detail)
	default:
		return exchange.NewError(exchange.KindSchema, Name, detail)
	}
}
