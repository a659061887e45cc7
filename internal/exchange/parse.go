package exchange

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DecimalFromAny converts a decoded JSON value into a decimal without a
// float64 round trip. Missing or non-numeric values are schema errors
// for the caller, never coerced to zero.
func DecimalFromAny(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("non-numeric value %q", val)
		}
		return d, nil
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("non-numeric value %q", val.String())
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(val), nil
	case nil:
		return decimal.Decimal{}, fmt.Errorf("missing numeric value")
	default:
		return decimal.Decimal{}, fmt.Errorf("unexpected value type %T", v)
	}
}

// OHLCV pulls the five decimal fields out of a positional row using the
// exchange's field ordering. Field names in errors follow the canonical
// order, not the native one.
func OHLCV(row []any, open, high, low, close, volume int) (o, h, l, c, v decimal.Decimal, err error) {
	fields := []struct {
		name string
		idx  int
		dst  *decimal.Decimal
	}{
		{"open", open, &o}, {"high", high, &h}, {"low", low, &l}, {"close", close, &c}, {"volume", volume, &v},
	}
	for _, f := range fields {
		if f.idx >= len(row) {
			return o, h, l, c, v, fmt.Errorf("%s field missing at index %d", f.name, f.idx)
		}
		d, derr := DecimalFromAny(row[f.idx])
		if derr != nil {
			return o, h, l, c, v, fmt.Errorf("%s: %w", f.name, derr)
		}
		*f.dst = d
	}
	return o, h, l, c, v, nil
}

// TimeFromAny converts a second- or millisecond-unit timestamp into UTC
// second precision. Values above 1e12 are treated as milliseconds, the
// same heuristic the upstream APIs force on every consumer.
func TimeFromAny(v any) (time.Time, error) {
	var ts int64
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("non-numeric timestamp %q", val.String())
		}
		ts = int64(f)
	case float64:
		ts = int64(val)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("non-numeric timestamp %q", val)
		}
		ts = int64(f)
	case nil:
		return time.Time{}, fmt.Errorf("missing timestamp")
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
	if ts > 1_000_000_000_000 {
		ts /= 1000
	}
	return time.Unix(ts, 0).UTC(), nil
}
