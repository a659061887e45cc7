package collect

import (
	"context"
	"fmt"
	"time"

	"ohlcv-collector/internal/exchange"
	"ohlcv-collector/internal/market"
	"ohlcv-collector/internal/metrics"

	"go.uber.org/zap"
)

// RetryPolicy bounds how the pager handles transient failures.
// RateLimited responses back off exponentially up to MaxRetries;
// network failures back off linearly up to NetworkRetries. Everything
// else aborts the pair immediately.
type RetryPolicy struct {
	MaxRetries     int
	Backoff        BackoffPolicy
	NetworkRetries int
	NetworkDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     5,
		Backoff:        DefaultBackoff(),
		NetworkRetries: 2,
		NetworkDelay:   2 * time.Second,
	}
}

// Pager drives one adapter across a requested window page by page.
// Pages within a pair are strictly sequential since each page's start
// depends on the previous page's last candle.
type Pager struct {
	policy  RetryPolicy
	log     *zap.Logger
	metrics *metrics.Metrics

	// sleep is swapped out by tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewPager(policy RetryPolicy, log *zap.Logger, m *metrics.Metrics) *Pager {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Pager{
		policy:  policy,
		log:     log,
		metrics: m,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Collect fetches the full window for one (asset, exchange) pair.
// Whatever was collected before a failure is always returned alongside
// the error; callers decide what a partial sequence is worth.
func (p *Pager) Collect(ctx context.Context, a exchange.Adapter, lim *Limiter, req exchange.FetchRequest) ([]market.Candle, error) {
	iv := req.Interval.Duration()
	if iv <= 0 {
		return nil, exchange.NewError(exchange.KindUnsupported, a.Name(), fmt.Sprintf("interval %s has no duration", req.Interval))
	}
	span := time.Duration(a.PageSize()) * iv
	cursor := req.Window.Start
	var out []market.Candle

	for cursor.Before(req.Window.End) {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		pageEnd := cursor.Add(span)
		if pageEnd.After(req.Window.End) {
			pageEnd = req.Window.End
		}
		pageReq := req
		pageReq.Window = market.Window{Start: cursor, End: pageEnd}

		page, err := p.fetchPage(ctx, a, lim, pageReq)
		if err != nil {
			return out, err
		}
		p.metrics.Pages.Inc()
		page = trim(page, req.Window)
		if len(page) == 0 {
			// No trading in this page window. Later pages may still
			// hold data, so skip ahead; gap detection reports the
			// empty stretch.
			cursor = pageEnd
			continue
		}
		next := page[len(page)-1].Start.Add(iv)
		if !next.After(cursor) {
			return out, exchange.NewError(exchange.KindNoProgress, a.Name(),
				fmt.Sprintf("page for %s did not advance past %s", req.Symbol, cursor.UTC().Format(time.RFC3339)))
		}
		out = append(out, page...)
		cursor = next
	}
	return out, nil
}

// fetchPage issues one page request with retry. Rate limits wait with
// exponential backoff, network errors with linear backoff; both are
// bounded and the last error escalates to the caller.
func (p *Pager) fetchPage(ctx context.Context, a exchange.Adapter, lim *Limiter, req exchange.FetchRequest) ([]market.Candle, error) {
	rateAttempts := 0
	netAttempts := 0
	for {
		if lim != nil {
			if err := lim.Acquire(ctx); err != nil {
				return nil, err
			}
		}
		p.metrics.Requests.Inc()
		page, err := a.FetchCandles(ctx, req)
		if lim != nil {
			lim.Release()
		}
		if err == nil {
			return page, nil
		}
		p.metrics.RequestFailures.Inc()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var delay time.Duration
		switch exchange.KindOf(err) {
		case exchange.KindRateLimited:
			p.metrics.RateLimitHits.Inc()
			rateAttempts++
			if rateAttempts > p.policy.MaxRetries {
				return nil, err
			}
			delay = p.policy.Backoff.Delay(rateAttempts)
		case exchange.KindNetwork:
			netAttempts++
			if netAttempts > p.policy.NetworkRetries {
				return nil, err
			}
			delay = time.Duration(netAttempts) * p.policy.NetworkDelay
		default:
			return nil, err
		}

		p.metrics.Retries.Inc()
		if p.log != nil {
			p.log.Warn("page fetch failed, retrying",
				zap.String("exchange", a.Name()),
				zap.String("symbol", req.Symbol),
				zap.Duration("delay", delay),
				zap.Error(err))
		}
		if err := p.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// trim drops candles outside the requested window; adapters are not
// trusted to honor bounds exactly.
func trim(page []market.Candle, win market.Window) []market.Candle {
	out := page[:0:0]
	for _, c := range page {
		if win.Contains(c.Start) {
			out = append(out, c)
		}
	}
	return out
}
