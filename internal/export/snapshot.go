package export

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"ohlcv-collector/internal/market"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

// Snapshot is a self-contained sqlite export of one collection run:
// the candle rows plus a compact msgpack blob describing the request
// and per-exchange outcomes. The core never reads it back; it exists
// for the offline consumer and for inspecting past runs.
type Snapshot struct {
	db *sql.DB
}

func OpenSnapshot(path string) (*Snapshot, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Snapshot{db: db}, nil
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TEXT NOT NULL,
		partial INTEGER NOT NULL,
		meta BLOB NOT NULL
	)`); err != nil {
		return err
	}
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS candles (
		run_id INTEGER NOT NULL,
		asset TEXT NOT NULL,
		exchange TEXT NOT NULL,
		interval TEXT NOT NULL,
		ts TEXT NOT NULL,
		open TEXT NOT NULL,
		high TEXT NOT NULL,
		low TEXT NOT NULL,
		close TEXT NOT NULL,
		volume TEXT NOT NULL,
		PRIMARY KEY (run_id, asset, exchange, interval, ts)
	)`)
	return err
}

type runMeta struct {
	Assets    []string                 `msgpack:"assets"`
	Exchanges []string                 `msgpack:"exchanges"`
	Interval  string                   `msgpack:"interval"`
	Start     time.Time                `msgpack:"start"`
	End       time.Time                `msgpack:"end"`
	Status    map[string]runExchStatus `msgpack:"status"`
	Warnings  int                      `msgpack:"warnings"`
}

type runExchStatus struct {
	Succeeded int    `msgpack:"succeeded"`
	Failed    int    `msgpack:"failed"`
	LastError string `msgpack:"last_error,omitempty"`
}

// Write stores one run and returns its id.
func (s *Snapshot) Write(ctx context.Context, req market.CollectionRequest, res *market.CollectionResult) (int64, error) {
	meta := runMeta{
		Assets:    req.Assets,
		Exchanges: req.Exchanges,
		Interval:  req.Interval.String(),
		Start:     req.Window.Start.UTC(),
		End:       req.Window.End.UTC(),
		Status:    make(map[string]runExchStatus, len(res.Status)),
		Warnings:  len(res.Warnings),
	}
	for ex, st := range res.Status {
		meta.Status[ex] = runExchStatus{Succeeded: st.Succeeded, Failed: st.Failed, LastError: st.LastError}
	}
	blob, err := msgpack.Marshal(meta)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	partial := 0
	if res.Partial {
		partial = 1
	}
	result, err := tx.ExecContext(ctx,
		`INSERT INTO runs (created_at, partial, meta) VALUES (?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), partial, blob)
	if err != nil {
		return 0, err
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO candles (run_id, asset, exchange, interval, ts, open, high, low, close, volume)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for _, c := range res.Table {
		if _, err := stmt.ExecContext(ctx,
			runID, c.Asset, c.Exchange, c.Interval.String(), c.Start.UTC().Format(time.RFC3339),
			c.Open.String(), c.High.String(), c.Low.String(), c.Close.String(), c.Volume.String(),
		); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

func (s *Snapshot) Close() error {
	return s.db.Close()
}
