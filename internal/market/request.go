package market

import (
	"errors"
	"time"
)

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// CollectionRequest describes one collection run. It is treated as
// immutable once handed to the orchestrator.
type CollectionRequest struct {
	Assets    []string
	Exchanges []string
	Interval  Interval
	Window    Window
}

// Validate rejects programming-level misuse. Live-data conditions are
// never reported here.
func (r CollectionRequest) Validate() error {
	if len(r.Assets) == 0 {
		return errors.New("collection request has no assets")
	}
	if len(r.Exchanges) == 0 {
		return errors.New("collection request has no exchanges")
	}
	if r.Interval.Duration() <= 0 {
		return errors.New("collection request has no valid interval")
	}
	if !r.Window.End.After(r.Window.Start) {
		return errors.New("collection request window is empty or inverted")
	}
	return nil
}

// ExchangeStatus aggregates per-exchange outcomes of one run. Each slot
// is written only by the task collecting that exchange.
type ExchangeStatus struct {
	Succeeded int
	Failed    int
	LastError string
}

// CollectionResult is the canonical dataset plus observability. Partial
// marks runs that were cancelled or recorded at least one failure, so
// the table may not cover the full requested range.
type CollectionResult struct {
	Table    []Candle
	Status   map[string]ExchangeStatus
	Warnings []Warning
	Partial  bool
}

// WarningKind classifies data-quality findings from normalization.
type WarningKind string

const (
	WarnConflict     WarningKind = "conflict"
	WarnGap          WarningKind = "gap"
	WarnInconsistent WarningKind = "inconsistent"
)

// Warning records a data-quality issue without altering the table:
// duplicate keys with differing values, missing stretches of the
// expected grid, or OHLC invariant violations.
type Warning struct {
	Kind     WarningKind
	Asset    string
	Exchange string
	Interval Interval
	From     time.Time
	To       time.Time
	Detail   string
}
