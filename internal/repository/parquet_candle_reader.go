package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"AutoEye/internal/domain/models"
)

// parquetBar is the crawler's bar layout (t in unix milliseconds).
type parquetBar struct {
	Timestamp    int64   `parquet:"t"`
	Open         float64 `parquet:"o"`
	High         float64 `parquet:"h"`
	Low          float64 `parquet:"l"`
	Close        float64 `parquet:"c"`
	Volume       int64   `parquet:"v"`
	VWAP         float64 `parquet:"vw,optional"`
	Transactions int64   `parquet:"n,optional"`
}

// ParquetCandleReader reads bars from <dir>/<SYM>_<TF>.parquet files. Quotes are the
// close of the newest bar of the quote timeframe.
type ParquetCandleReader struct {
	dir            string
	quoteTimeframe string
	points         map[string]float64
}

func NewParquetCandleReader(dir, quoteTimeframe string, points map[string]float64) *ParquetCandleReader {
	if quoteTimeframe == "" {
		quoteTimeframe = "M5"
	}
	p := make(map[string]float64, len(points))
	for k, v := range points {
		p[strings.ToUpper(k)] = v
	}
	return &ParquetCandleReader{dir: dir, quoteTimeframe: strings.ToUpper(quoteTimeframe), points: p}
}

func (r *ParquetCandleReader) path(symbol, timeframe string) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s_%s.parquet", fileName(symbol), strings.ToUpper(timeframe)))
}

func (r *ParquetCandleReader) load(symbol, timeframe string) ([]models.Bar, error) {
	rows, err := parquet.ReadFile[parquetBar](r.path(symbol, timeframe))
	if err != nil {
		return nil, fmt.Errorf("read parquet bars: %w", err)
	}
	out := make([]models.Bar, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.Bar{
			Time:   time.UnixMilli(row.Timestamp).UTC(),
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: float64(row.Volume),
		})
	}
	return models.NormalizeBars(out), nil
}

func (r *ParquetCandleReader) GetBars(_ context.Context, symbol, timeframe string, from, to time.Time) ([]models.Bar, error) {
	bars, err := r.load(symbol, timeframe)
	if err != nil {
		return nil, err
	}
	lo := sort.Search(len(bars), func(i int) bool { return !bars[i].Time.Before(from) })
	hi := sort.Search(len(bars), func(i int) bool { return bars[i].Time.After(to) })
	if lo >= hi {
		return []models.Bar{}, nil
	}
	return bars[lo:hi], nil
}

func (r *ParquetCandleReader) GetLatestBars(_ context.Context, symbol, timeframe string, n int) ([]models.Bar, error) {
	bars, err := r.load(symbol, timeframe)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

// GetQuote returns nil when the quote timeframe file is missing or empty.
func (r *ParquetCandleReader) GetQuote(_ context.Context, symbol string) (*models.Quote, error) {
	bars, err := r.load(symbol, r.quoteTimeframe)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, nil
	}
	last := bars[len(bars)-1]
	return &models.Quote{Price: last.Close, Source: "parquet", TickTime: last.Time}, nil
}

func (r *ParquetCandleReader) GetPointSize(_ context.Context, symbol string) (float64, error) {
	return r.points[strings.ToUpper(symbol)], nil
}

// WriteParquetBars stores bars in the crawler layout. Used to seed offline sources.
func WriteParquetBars(path string, bars []models.Bar) error {
	rows := make([]parquetBar, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, parquetBar{
			Timestamp: b.Time.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    int64(b.Volume),
		})
	}
	return parquet.WriteFile(path, rows)
}
