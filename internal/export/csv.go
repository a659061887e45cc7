package export

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"time"

	"ohlcv-collector/internal/market"
)

// csvHeader is the fixed column order the downstream offline consumer
// expects; it never changes without coordinating with that application.
var csvHeader = []string{"asset_id", "exchange_id", "timestamp", "interval", "open", "high", "low", "close", "volume"}

// WriteCSV serializes the canonical table. Timestamps are RFC3339 UTC;
// numeric fields are decimal text, never scientific notation, so the
// consumer reads back exactly what the exchange reported.
func WriteCSV(w io.Writer, table []market.Candle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, c := range table {
		record := []string{
			c.Asset,
			c.Exchange,
			c.Start.UTC().Format(time.RFC3339),
			c.Interval.String(),
			c.Open.String(),
			c.High.String(),
			c.Low.String(),
			c.Close.String(),
			c.Volume.String(),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the table to path, creating parent directories.
func WriteCSVFile(path string, table []market.Candle) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, table); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
