package upbit

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"ohlcv-collector/internal/exchange"
	"ohlcv-collector/internal/exchange/rest"
	"ohlcv-collector/internal/market"
)

const (
	Name           = "upbit"
	DefaultBaseURL = "https://api.upbit.com/v1"

	pageSize   = 200
	timeLayout = "2006-01-02T15:04:05"
)

// Upbit serves day candles and minute candles from separate endpoints;
// hour intervals ride on the minute endpoint. Weekly is not offered
// through this adapter.
var minuteUnits = map[market.Interval]int{
	market.Interval1m:  1,
	market.Interval3m:  3,
	market.Interval5m:  5,
	market.Interval15m: 15,
	market.Interval30m: 30,
	market.Interval1h:  60,
	market.Interval4h:  240,
}

// Adapter fetches candles from the Upbit public API. Rows are JSON
// objects with ISO timestamps and numeric prices, returned newest
// first; the adapter anchors the page at the window start and flips it
// to ascending order.
type Adapter struct {
	client *rest.Client
}

func New(client *rest.Client) *Adapter { return &Adapter{client: client} }

func (a *Adapter) Name() string  { return Name }
func (a *Adapter) PageSize() int { return pageSize }

type candleRow struct {
	Market       string  `json:"market"`
	DateTimeUTC  string  `json:"candle_date_time_utc"`
	OpeningPrice any     `json:"opening_price"`
	HighPrice    any     `json:"high_price"`
	LowPrice     any     `json:"low_price"`
	TradePrice   any     `json:"trade_price"`
	AccVolume    any     `json:"candle_acc_trade_volume"`
	Timestamp    float64 `json:"timestamp"`
}

func (a *Adapter) FetchCandles(ctx context.Context, req exchange.FetchRequest) ([]market.Candle, error) {
	path, err := endpointFor(req.Interval)
	if err != nil {
		return nil, err
	}
	iv := req.Interval.Duration()
	pageEnd := req.Window.Start.Add(time.Duration(pageSize) * iv)
	if pageEnd.After(req.Window.End) {
		pageEnd = req.Window.End
	}
	count := int(pageEnd.Sub(req.Window.Start) / iv)
	if count < 1 {
		count = 1
	}
	q := url.Values{}
	q.Set("market", req.Symbol)
	q.Set("to", pageEnd.UTC().Format(timeLayout)+"Z")
	q.Set("count", strconv.Itoa(count))

	var rows []candleRow
	if err := a.client.GetJSON(ctx, path, q, &rows); err != nil {
		return nil, exchange.ClassifyHTTP(Name, err)
	}
	out := make([]market.Candle, 0, len(rows))
	for _, row := range rows {
		start, err := time.ParseInLocation(timeLayout, row.DateTimeUTC, time.UTC)
		if err != nil {
			return nil, exchange.WrapError(exchange.KindSchema, Name, "candle_date_time_utc", err)
		}
		if !req.Window.Contains(start) {
			continue
		}
		c := market.Candle{
			Asset:    req.Asset,
			Exchange: Name,
			Interval: req.Interval,
			Start:    start,
		}
		if c.Open, err = exchange.DecimalFromAny(row.OpeningPrice); err != nil {
			return nil, exchange.WrapError(exchange.KindSchema, Name, "opening_price", err)
		}
		if c.High, err = exchange.DecimalFromAny(row.HighPrice); err != nil {
			return nil, exchange.WrapError(exchange.KindSchema, Name, "high_price", err)
		}
		if c.Low, err = exchange.DecimalFromAny(row.LowPrice); err != nil {
			return nil, exchange.WrapError(exchange.KindSchema, Name, "low_price", err)
		}
		if c.Close, err = exchange.DecimalFromAny(row.TradePrice); err != nil {
			return nil, exchange.WrapError(exchange.KindSchema, Name, "trade_price", err)
		}
		if c.Volume, err = exchange.DecimalFromAny(row.AccVolume); err != nil {
			return nil, exchange.WrapError(exchange.KindSchema, Name, "candle_acc_trade_volume", err)
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func endpointFor(iv market.Interval) (string, error) {
	if iv == market.Interval1d {
		return "/candles/days", nil
	}
	unit, ok := minuteUnits[iv]
	if !ok {
		return "", exchange.NewError(exchange.KindUnsupported, Name, fmt.Sprintf("interval %s not offered", iv))
	}
	return "/candles/minutes/" + strconv.Itoa(unit), nil
}
