package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"AutoEye/internal/domain/models"
	pkgch "AutoEye/pkg/clickhouse"
	applogger "AutoEye/pkg/logger"
)

// CandleSchema creates the tables read by ClickHouseCandleReader.
func CandleSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.bars (
            symbol LowCardinality(String),
            timeframe LowCardinality(String),
            time DateTime64(3, 'UTC'),
            open Float64,
            high Float64,
            low Float64,
            close Float64,
            volume Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (symbol, timeframe, time)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.quotes (
            symbol LowCardinality(String),
            price Float64,
            bid Nullable(Float64),
            ask Nullable(Float64),
            source LowCardinality(String),
            tick_time DateTime64(3, 'UTC')
        ) ENGINE = ReplacingMergeTree(tick_time)
        ORDER BY symbol`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.symbols (
            symbol String,
            point Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY symbol`, database),
	}
}

// ClickHouseCandleReader implements CandleReader over the bars, quotes and symbols tables.
type ClickHouseCandleReader struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewClickHouseCandleReader(ch *pkgch.Client, database string) *ClickHouseCandleReader {
	return &ClickHouseCandleReader{db: ch.DB(), database: database}
}

// SetLogger injects a structured logger.
func (r *ClickHouseCandleReader) SetLogger(l *applogger.Logger) { r.l = l }

func (r *ClickHouseCandleReader) GetBars(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Bar, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT time, open, high, low, close, volume
        FROM %s.bars FINAL
        WHERE symbol = ? AND timeframe = ? AND time >= ? AND time <= ?
        ORDER BY time ASC
    `, r.database)
	out, err := r.queryBars(ctx, q, symbol, strings.ToUpper(timeframe), from, to)
	if err != nil {
		r.logError("clickhouse get_bars", symbol, timeframe, err)
		return nil, fmt.Errorf("get bars: %w", err)
	}
	if r.l != nil {
		r.l.Debug("clickhouse get_bars ok",
			applogger.String("symbol", symbol),
			applogger.String("tf", timeframe),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration", time.Since(start)),
		)
	}
	return out, nil
}

func (r *ClickHouseCandleReader) GetLatestBars(ctx context.Context, symbol, timeframe string, n int) ([]models.Bar, error) {
	q := fmt.Sprintf(`
        SELECT time, open, high, low, close, volume
        FROM %s.bars FINAL
        WHERE symbol = ? AND timeframe = ?
        ORDER BY time DESC
        LIMIT ?
    `, r.database)
	tmp, err := r.queryBars(ctx, q, symbol, strings.ToUpper(timeframe), n)
	if err != nil {
		r.logError("clickhouse latest_bars", symbol, timeframe, err)
		return nil, fmt.Errorf("get latest bars: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	return tmp, nil
}

func (r *ClickHouseCandleReader) queryBars(ctx context.Context, q string, args ...any) ([]models.Bar, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 1024)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Time = b.Time.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *ClickHouseCandleReader) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	q := fmt.Sprintf(`
        SELECT price, bid, ask, source, tick_time
        FROM %s.quotes FINAL
        WHERE symbol = ?
        ORDER BY tick_time DESC
        LIMIT 1
    `, r.database)
	var (
		quote    models.Quote
		bid, ask sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, q, symbol).Scan(&quote.Price, &bid, &ask, &quote.Source, &quote.TickTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logError("clickhouse get_quote", symbol, "", err)
		return nil, fmt.Errorf("get quote: %w", err)
	}
	if bid.Valid {
		quote.Bid = &bid.Float64
	}
	if ask.Valid {
		quote.Ask = &ask.Float64
	}
	quote.TickTime = quote.TickTime.UTC()
	return &quote, nil
}

func (r *ClickHouseCandleReader) GetPointSize(ctx context.Context, symbol string) (float64, error) {
	q := fmt.Sprintf(`SELECT point FROM %s.symbols FINAL WHERE symbol = ? LIMIT 1`, r.database)
	var point float64
	err := r.db.QueryRowContext(ctx, q, symbol).Scan(&point)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get point size: %w", err)
	}
	return point, nil
}

func (r *ClickHouseCandleReader) logError(op, symbol, timeframe string, err error) {
	if r.l == nil {
		return
	}
	r.l.Error(op+" error",
		applogger.String("database", r.database),
		applogger.String("symbol", symbol),
		applogger.String("tf", timeframe),
		applogger.Error(err),
	)
}
