package normalize

import (
	"fmt"
	"sort"
	"time"

	"ohlcv-collector/internal/market"
)

type series struct {
	asset    string
	exchange string
}

// Merge folds any number of candle batches into one canonical table:
// deduplicated by (asset, exchange, interval, start) with the
// first-seen value winning, sorted ascending by (asset, exchange,
// start), gap-checked against the expected grid of the requested
// window, and validated against the OHLC invariant. Rows are never
// dropped or synthesized; every finding becomes a warning. Inputs are
// not mutated.
func Merge(batches [][]market.Candle, iv market.Interval, win market.Window) ([]market.Candle, []market.Warning) {
	var warnings []market.Warning
	seen := make(map[market.Key]market.Candle)
	var table []market.Candle

	for _, batch := range batches {
		for _, c := range batch {
			key := c.Key()
			first, dup := seen[key]
			if !dup {
				seen[key] = c
				table = append(table, c)
				continue
			}
			if !first.SameValues(c) {
				warnings = append(warnings, market.Warning{
					Kind:     market.WarnConflict,
					Asset:    c.Asset,
					Exchange: c.Exchange,
					Interval: c.Interval,
					From:     c.Start,
					To:       c.Start,
					Detail:   fmt.Sprintf("duplicate key with differing values, kept first seen (ohlcv %s/%s/%s/%s/%s vs %s/%s/%s/%s/%s)", first.Open, first.High, first.Low, first.Close, first.Volume, c.Open, c.High, c.Low, c.Close, c.Volume),
				})
			}
		}
	}

	sort.SliceStable(table, func(i, j int) bool {
		a, b := table[i], table[j]
		if a.Asset != b.Asset {
			return a.Asset < b.Asset
		}
		if a.Exchange != b.Exchange {
			return a.Exchange < b.Exchange
		}
		return a.Start.Before(b.Start)
	})

	for _, c := range table {
		if detail := c.CheckConsistency(); detail != "" {
			warnings = append(warnings, market.Warning{
				Kind:     market.WarnInconsistent,
				Asset:    c.Asset,
				Exchange: c.Exchange,
				Interval: c.Interval,
				From:     c.Start,
				To:       c.Start,
				Detail:   detail,
			})
		}
	}

	warnings = append(warnings, gapWarnings(table, iv, win)...)
	return table, warnings
}

// gapWarnings walks the expected timestamp grid of each (asset,
// exchange) series present in the table and coalesces consecutive
// missing periods into one warning. The grid is anchored at the window
// start; the core never backfills what it reports here.
func gapWarnings(table []market.Candle, iv market.Interval, win market.Window) []market.Warning {
	step := iv.Duration()
	if step <= 0 || !win.End.After(win.Start) {
		return nil
	}
	present := make(map[series]map[int64]bool)
	var order []series
	for _, c := range table {
		s := series{asset: c.Asset, exchange: c.Exchange}
		if present[s] == nil {
			present[s] = make(map[int64]bool)
			order = append(order, s)
		}
		present[s][c.Start.Unix()] = true
	}

	var warnings []market.Warning
	for _, s := range order {
		var gapStart time.Time
		inGap := false
		flush := func(end time.Time) {
			if !inGap {
				return
			}
			warnings = append(warnings, market.Warning{
				Kind:     market.WarnGap,
				Asset:    s.asset,
				Exchange: s.exchange,
				Interval: iv,
				From:     gapStart,
				To:       end,
				Detail:   fmt.Sprintf("missing candles in [%s, %s)", gapStart.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339)),
			})
			inGap = false
		}
		for t := win.Start; t.Before(win.End); t = t.Add(step) {
			if present[s][t.Unix()] {
				flush(t)
				continue
			}
			if !inGap {
				gapStart = t
				inGap = true
			}
		}
		flush(win.End)
	}
	return warnings
}
