package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ohlcv-collector/internal/config"
	"ohlcv-collector/internal/market"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const timescaleWriteTimeout = 3 * time.Second

// TimescaleWriter is an optional sink mirroring the CSV snapshot into a
// TimescaleDB hypertable. Disabled configs yield a nil writer, which
// every method tolerates.
type TimescaleWriter struct {
	db     *sql.DB
	log    *zap.Logger
	schema string
}

func NewTimescale(cfg config.TimescaleConfig, log *zap.Logger) (*TimescaleWriter, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	writer := &TimescaleWriter{db: db, log: log, schema: schema}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *TimescaleWriter) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *TimescaleWriter) ensureSchema(ctx context.Context) error {
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		asset TEXT NOT NULL,
		exchange TEXT NOT NULL,
		interval TEXT NOT NULL,
		open NUMERIC NOT NULL,
		high NUMERIC NOT NULL,
		low NUMERIC NOT NULL,
		close NUMERIC NOT NULL,
		volume NUMERIC NOT NULL DEFAULT 0,
		PRIMARY KEY (ts, asset, exchange, interval)
	)`, w.table("ohlcv"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("ohlcv"))); err != nil && w.log != nil {
		w.log.Warn("timescale ohlcv hypertable create failed", zap.Error(err))
	}
	return nil
}

// Write upserts the table. Decimal values travel as text so NUMERIC
// columns keep the exact reported precision.
func (w *TimescaleWriter) Write(ctx context.Context, table []market.Candle) error {
	if w == nil || w.db == nil {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, asset, exchange, interval, open, high, low, close, volume
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9
	)
	ON CONFLICT (ts, asset, exchange, interval) DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume`, w.table("ohlcv"))
	for _, c := range table {
		writeCtx, cancel := context.WithTimeout(ctx, timescaleWriteTimeout)
		_, err := w.db.ExecContext(writeCtx, query,
			c.Start.UTC(),
			c.Asset,
			c.Exchange,
			c.Interval.String(),
			c.Open.String(),
			c.High.String(),
			c.Low.String(),
			c.Close.String(),
			c.Volume.String(),
		)
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *TimescaleWriter) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, timescaleWriteTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *TimescaleWriter) table(name string) string {
	return w.schema + "." + name
}
