package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Candle is the canonical OHLCV record every exchange response is
// translated into. Start is the opening time of the period, UTC, second
// precision. Prices and volume are fixed-precision decimals so values
// survive export byte-for-byte.
type Candle struct {
	Asset    string
	Exchange string
	Interval Interval
	Start    time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}

// Key identifies a candle uniquely across exchanges and intervals.
type Key struct {
	Asset    string
	Exchange string
	Interval Interval
	Start    int64
}

func (c Candle) Key() Key {
	return Key{
		Asset:    c.Asset,
		Exchange: c.Exchange,
		Interval: c.Interval,
		Start:    c.Start.Unix(),
	}
}

// SameValues reports whether two candles carry identical OHLCV values,
// regardless of decimal exponent.
func (c Candle) SameValues(other Candle) bool {
	return c.Open.Equal(other.Open) &&
		c.High.Equal(other.High) &&
		c.Low.Equal(other.Low) &&
		c.Close.Equal(other.Close) &&
		c.Volume.Equal(other.Volume)
}

// CheckConsistency validates the OHLC shape: no negative values,
// high >= max(open, close) and low <= min(open, close). It returns a
// description of the first violation found, or "" when the candle is
// consistent. Violating candles are never corrected or dropped here;
// callers flag them and keep the row.
func (c Candle) CheckConsistency() string {
	zero := decimal.Zero
	for _, v := range []struct {
		name string
		val  decimal.Decimal
	}{
		{"open", c.Open}, {"high", c.High}, {"low", c.Low}, {"close", c.Close}, {"volume", c.Volume},
	} {
		if v.val.LessThan(zero) {
			return fmt.Sprintf("%s is negative: %s", v.name, v.val)
		}
	}
	maxOC := c.Open
	if c.Close.GreaterThan(maxOC) {
		maxOC = c.Close
	}
	minOC := c.Open
	if c.Close.LessThan(minOC) {
		minOC = c.Close
	}
	if c.High.LessThan(maxOC) {
		return fmt.Sprintf("high %s below max(open, close) %s", c.High, maxOC)
	}
	if c.Low.GreaterThan(minOC) {
		return fmt.Sprintf("low %s above min(open, close) %s", c.Low, minOC)
	}
	return ""
}
