package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func testCandle(t *testing.T, o, h, l, c, v string) Candle {
	t.Helper()
	return Candle{
		Asset:    "BTC/USDT",
		Exchange: "binance",
		Interval: Interval1d,
		Start:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Open:     dec(t, o),
		High:     dec(t, h),
		Low:      dec(t, l),
		Close:    dec(t, c),
		Volume:   dec(t, v),
	}
}

func TestCandleKey(t *testing.T) {
	a := testCandle(t, "1", "2", "0.5", "1.5", "10")
	b := a
	b.Open = dec(t, "9")
	if a.Key() != b.Key() {
		t.Fatalf("keys should ignore values")
	}
	b.Start = a.Start.Add(24 * time.Hour)
	if a.Key() == b.Key() {
		t.Fatalf("keys should differ on start time")
	}
}

func TestSameValuesIgnoresExponent(t *testing.T) {
	a := testCandle(t, "1.50", "2", "1", "1.5", "10")
	b := a
	b.Open = dec(t, "1.5")
	if !a.SameValues(b) {
		t.Fatalf("1.50 and 1.5 should compare equal")
	}
	b.Open = dec(t, "1.51")
	if a.SameValues(b) {
		t.Fatalf("different opens should not compare equal")
	}
}

func TestCheckConsistencyOK(t *testing.T) {
	c := testCandle(t, "100", "110", "95", "105", "3")
	if detail := c.CheckConsistency(); detail != "" {
		t.Fatalf("expected consistent candle, got %q", detail)
	}
	// doji where everything collapses to one price
	c = testCandle(t, "100", "100", "100", "100", "0")
	if detail := c.CheckConsistency(); detail != "" {
		t.Fatalf("expected consistent doji, got %q", detail)
	}
}

func TestCheckConsistencyViolations(t *testing.T) {
	if testCandle(t, "100", "99", "95", "98", "1").CheckConsistency() == "" {
		t.Fatalf("high below open should be flagged")
	}
	if testCandle(t, "100", "110", "101", "105", "1").CheckConsistency() == "" {
		t.Fatalf("low above open should be flagged")
	}
	if testCandle(t, "-1", "110", "95", "105", "1").CheckConsistency() == "" {
		t.Fatalf("negative open should be flagged")
	}
	if testCandle(t, "100", "110", "95", "105", "-2").CheckConsistency() == "" {
		t.Fatalf("negative volume should be flagged")
	}
}

func TestWindowContains(t *testing.T) {
	w := Window{
		Start: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
	}
	if !w.Contains(w.Start) {
		t.Fatalf("window start should be inside")
	}
	if w.Contains(w.End) {
		t.Fatalf("window end should be outside")
	}
	if w.Contains(w.Start.Add(-time.Second)) {
		t.Fatalf("time before start should be outside")
	}
}

func TestCollectionRequestValidate(t *testing.T) {
	valid := CollectionRequest{
		Assets:    []string{"BTC/USDT"},
		Exchanges: []string{"binance"},
		Interval:  Interval1d,
		Window: Window{
			Start: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	r := valid
	r.Assets = nil
	if err := r.Validate(); err == nil {
		t.Fatalf("expected error for empty assets")
	}
	r = valid
	r.Exchanges = nil
	if err := r.Validate(); err == nil {
		t.Fatalf("expected error for empty exchanges")
	}
	r = valid
	r.Interval = "bogus"
	if err := r.Validate(); err == nil {
		t.Fatalf("expected error for bogus interval")
	}
	r = valid
	r.Window.End = r.Window.Start
	if err := r.Validate(); err == nil {
		t.Fatalf("expected error for empty window")
	}
}
