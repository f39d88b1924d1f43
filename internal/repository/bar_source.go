package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"AutoEye/internal/domain"
	"AutoEye/internal/domain/models"
	domrepo "AutoEye/internal/domain/repository"
	applogger "AutoEye/pkg/logger"
)

// BarSourceConfig holds the fetch windows.
type BarSourceConfig struct {
	HistoryDays       int
	HistoryBufferDays int
	IncrementalBars   int
	SymbolMap         map[string]string
}

// MarketBarSource applies the history and incremental fetch policies on top of a reader.
type MarketBarSource struct {
	reader domrepo.CandleReader
	cfg    BarSourceConfig
	l      *applogger.Logger
}

func NewMarketBarSource(reader domrepo.CandleReader, cfg BarSourceConfig, l *applogger.Logger) *MarketBarSource {
	symbolMap := make(map[string]string, len(cfg.SymbolMap))
	for k, v := range cfg.SymbolMap {
		symbolMap[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	cfg.SymbolMap = symbolMap
	return &MarketBarSource{reader: reader, cfg: cfg, l: l}
}

// ResolveSymbol maps configured aliases to source symbols and passes everything else through.
func (s *MarketBarSource) ResolveSymbol(raw string) string {
	raw = strings.TrimSpace(raw)
	if mapped, ok := s.cfg.SymbolMap[strings.ToUpper(raw)]; ok && mapped != "" {
		return mapped
	}
	return raw
}

// Cutoff is the oldest instant the engine keeps bars and elements for.
func (s *MarketBarSource) Cutoff(now time.Time) time.Time {
	days := s.cfg.HistoryDays + s.cfg.HistoryBufferDays
	if days < 1 {
		days = 1
	}
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

func (s *MarketBarSource) FetchHistory(ctx context.Context, symbol, timeframe string, now time.Time) ([]models.Bar, error) {
	return s.FetchRange(ctx, symbol, timeframe, s.Cutoff(now), now)
}

// FetchIncremental re-reads from a little before the last stored bar. When that window
// yields fewer than three bars the latest bars are fetched instead.
func (s *MarketBarSource) FetchIncremental(ctx context.Context, symbol, timeframe string, lastBar, now time.Time) ([]models.Bar, error) {
	rewind := time.Duration(max(60, 4*domrepo.TimeframeSeconds(timeframe))) * time.Second
	from := lastBar.UTC().Add(-rewind).Truncate(time.Second)
	if cutoff := s.Cutoff(now); from.Before(cutoff) {
		from = cutoff
	}

	bars, err := s.FetchRange(ctx, symbol, timeframe, from, now)
	if err != nil {
		return nil, err
	}
	if len(bars) >= 3 {
		return bars, nil
	}

	n := max(20, s.cfg.IncrementalBars)
	latest, err := s.reader.GetLatestBars(ctx, symbol, timeframe, n)
	if err != nil {
		return nil, fmt.Errorf("%w: latest %d %s %s: %v", domain.ErrDataUnavailable, n, symbol, timeframe, err)
	}
	if s.l != nil {
		s.l.Debug("incremental window short, used latest bars",
			applogger.String("symbol", symbol),
			applogger.String("timeframe", timeframe),
			applogger.Int("window_bars", len(bars)),
			applogger.Int("latest_bars", len(latest)),
		)
	}
	return models.NormalizeBars(latest), nil
}

func (s *MarketBarSource) FetchRange(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Bar, error) {
	bars, err := s.reader.GetBars(ctx, symbol, timeframe, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrDataUnavailable, symbol, timeframe, err)
	}
	return models.NormalizeBars(bars), nil
}

func (s *MarketBarSource) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	return s.reader.GetQuote(ctx, symbol)
}

// PointSize returns 0 when the reader does not know the symbol.
func (s *MarketBarSource) PointSize(ctx context.Context, symbol string) float64 {
	p, err := s.reader.GetPointSize(ctx, symbol)
	if err != nil {
		if s.l != nil {
			s.l.Warn("point size unavailable",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return 0
	}
	return p
}
