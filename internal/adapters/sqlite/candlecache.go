package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"candleflow/internal/domain"
	"candleflow/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// CandleCache implements the ports.CandleCache interface using SQLite.
// Series are keyed by (symbol, interval, range_start, range_end); a series
// written for a range is never mutated afterwards.
type CandleCache struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite candle cache.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewCandleCache creates a new SQLite-backed candle cache.
func NewCandleCache(cfg Config) (*CandleCache, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite candle cache")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/candle_cache.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite candle cache initialization failed")
		return nil, err
	}

	// WAL mode so the realtime path is never blocked by cache writes.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite candle cache initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite candle cache initialization failed")
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cache := &CandleCache{db: db, logger: cfg.Logger}
	if err := cache.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize candle cache schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite candle cache initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite candle cache ready", map[string]interface{}{"path": dbPath})
	return cache, nil
}

func (c *CandleCache) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS candle_ranges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		range_start INTEGER NOT NULL,
		range_end INTEGER NOT NULL,
		fetched_at TIMESTAMP NOT NULL,
		UNIQUE (symbol, interval, range_start, range_end)
	);

	CREATE TABLE IF NOT EXISTS candles (
		range_id INTEGER NOT NULL REFERENCES candle_ranges(id) ON DELETE CASCADE,
		open_time INTEGER NOT NULL,
		close_time INTEGER NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		PRIMARY KEY (range_id, open_time)
	);
	CREATE INDEX IF NOT EXISTS idx_candle_ranges_key ON candle_ranges (symbol, interval, range_start, range_end);
	`
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *CandleCache) Close() error {
	if c.db != nil {
		c.logger.Info(context.Background(), "Closing SQLite candle cache")
		return c.db.Close()
	}
	return nil
}

// Get returns the cached series for the exact range key, or (nil, false, nil)
// on a miss.
func (c *CandleCache) Get(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time) ([]*domain.Candle, bool, error) {
	const rangeQuery = `
	SELECT id FROM candle_ranges
	WHERE symbol = ? AND interval = ? AND range_start = ? AND range_end = ?`

	var rangeID int64
	err := c.db.QueryRowContext(ctx, rangeQuery, symbol, string(interval), start.UnixMilli(), end.UnixMilli()).Scan(&rangeID)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up cached range for %s/%s: %w: %w", symbol, interval, ports.ErrQueryFailed, err)
	}

	const candlesQuery = `
	SELECT open_time, close_time, open, high, low, close, volume
	FROM candles WHERE range_id = ? ORDER BY open_time ASC`

	rows, err := c.db.QueryContext(ctx, candlesQuery, rangeID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query cached candles for %s/%s: %w: %w", symbol, interval, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	candles := make([]*domain.Candle, 0)
	for rows.Next() {
		var openMs, closeMs int64
		candle := &domain.Candle{Symbol: symbol, Interval: interval}
		if err := rows.Scan(&openMs, &closeMs, &candle.Open, &candle.High, &candle.Low, &candle.Close, &candle.Volume); err != nil {
			return nil, false, fmt.Errorf("failed to scan cached candle: %w", err)
		}
		candle.OpenTime = time.UnixMilli(openMs)
		candle.CloseTime = time.UnixMilli(closeMs)
		candles = append(candles, candle)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("error iterating cached candle rows: %w", err)
	}

	c.logger.Debug(ctx, "Candle cache hit", map[string]interface{}{"symbol": symbol, "interval": interval, "count": len(candles)})
	return candles, true, nil
}

// Put stores a series under the range key, replacing any previous entry.
func (c *CandleCache) Put(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time, candles []*domain.Candle) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cache write transaction: %w", err)
	}
	defer tx.Rollback()

	const deleteRange = `
	DELETE FROM candle_ranges WHERE symbol = ? AND interval = ? AND range_start = ? AND range_end = ?`
	if _, err := tx.ExecContext(ctx, deleteRange, symbol, string(interval), start.UnixMilli(), end.UnixMilli()); err != nil {
		return fmt.Errorf("failed to clear previous cache entry: %w", err)
	}

	const insertRange = `
	INSERT INTO candle_ranges (symbol, interval, range_start, range_end, fetched_at)
	VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, insertRange, symbol, string(interval), start.UnixMilli(), end.UnixMilli(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert cache range for %s/%s: %w", symbol, interval, err)
	}
	rangeID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get cache range ID: %w", err)
	}

	const insertCandle = `
	INSERT INTO candles (range_id, open_time, close_time, open, high, low, close, volume)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := tx.PrepareContext(ctx, insertCandle)
	if err != nil {
		return fmt.Errorf("failed to prepare candle insert: %w", err)
	}
	defer stmt.Close()

	for _, candle := range candles {
		if _, err := stmt.ExecContext(ctx, rangeID,
			candle.OpenTime.UnixMilli(), candle.CloseTime.UnixMilli(),
			candle.Open, candle.High, candle.Low, candle.Close, candle.Volume); err != nil {
			return fmt.Errorf("failed to insert cached candle at %s: %w", candle.OpenTime, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache write: %w", err)
	}
	c.logger.Debug(ctx, "Candle series cached", map[string]interface{}{"symbol": symbol, "interval": interval, "count": len(candles)})
	return nil
}
