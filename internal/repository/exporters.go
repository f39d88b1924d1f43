package repository

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"AutoEye/internal/domain"
	"AutoEye/internal/domain/models"
	domrepo "AutoEye/internal/domain/repository"
	"AutoEye/pkg/util"
)

// elementRow is the flat export form of an element. Metadata is kept as JSON text.
type elementRow struct {
	ID            string   `parquet:"id"`
	ElementType   string   `parquet:"element_type"`
	Symbol        string   `parquet:"symbol"`
	Timeframe     string   `parquet:"timeframe"`
	Direction     string   `parquet:"direction"`
	FormationTime string   `parquet:"formation_time"`
	FVGLow        float64  `parquet:"fvg_low"`
	FVGHigh       float64  `parquet:"fvg_high"`
	GapSize       float64  `parquet:"gap_size"`
	C1Time        string   `parquet:"c1_time"`
	C2Time        string   `parquet:"c2_time"`
	C3Time        string   `parquet:"c3_time"`
	Status        string   `parquet:"status"`
	TouchedTime   *string  `parquet:"touched_time,optional"`
	MitigatedTime *string  `parquet:"mitigated_time,optional"`
	FillPrice     *float64 `parquet:"fill_price,optional"`
	FillPercent   *float64 `parquet:"fill_percent,optional"`
	Metadata      string   `parquet:"metadata"`
}

var csvHeader = []string{
	"id", "element_type", "symbol", "timeframe", "direction", "formation_time",
	"fvg_low", "fvg_high", "gap_size", "c1_time", "c2_time", "c3_time", "status",
	"touched_time", "mitigated_time", "fill_price", "fill_percent", "metadata",
}

func toRows(elements []*models.Element) ([]elementRow, error) {
	rows := make([]elementRow, 0, len(elements))
	for _, e := range elements {
		raw, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode element %s: %w", e.ID, err)
		}
		var fields struct {
			Metadata json.RawMessage `json:"metadata"`
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("decode element %s: %w", e.ID, err)
		}
		meta := string(fields.Metadata)
		if meta == "" {
			meta = "{}"
		}
		rows = append(rows, elementRow{
			ID:            e.ID,
			ElementType:   string(e.Kind),
			Symbol:        e.Symbol,
			Timeframe:     e.Timeframe,
			Direction:     e.Direction,
			FormationTime: util.FormatISO(e.FormationTime),
			FVGLow:        e.ZoneLow,
			FVGHigh:       e.ZoneHigh,
			GapSize:       e.ZoneSize(),
			C1Time:        util.FormatISO(e.C1Time),
			C2Time:        util.FormatISO(e.C2Time),
			C3Time:        util.FormatISO(e.C3Time),
			Status:        e.Status,
			TouchedTime:   util.FormatISOPtr(e.TouchedTime),
			MitigatedTime: util.FormatISOPtr(e.MitigatedTime),
			FillPrice:     e.FillPrice,
			FillPercent:   e.FillPercent,
			Metadata:      meta,
		})
	}
	return rows, nil
}

// CSVExporter writes element rows as CSV under <output>/exports.
type CSVExporter struct {
	Output string
}

func (CSVExporter) Extension() string { return "csv" }

func (e CSVExporter) Export(symbol, timeframe string, elements []*models.Element) (string, error) {
	path := ExportPath(e.Output, symbol, timeframe, e.Extension())
	return path, writeCSV(path, elements)
}

func writeCSV(path string, elements []*models.Element) error {
	rows, err := toRows(elements)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)

	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{
			r.ID, r.ElementType, r.Symbol, r.Timeframe, r.Direction, r.FormationTime,
			priceStr(r.FVGLow), priceStr(r.FVGHigh), priceStr(r.GapSize),
			r.C1Time, r.C2Time, r.C3Time, r.Status,
			deref(r.TouchedTime), deref(r.MitigatedTime),
			optPrice(r.FillPrice), optPrice(r.FillPercent),
			r.Metadata,
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ParquetExporter writes element rows as Parquet under <output>/exports.
type ParquetExporter struct {
	Output string
}

func (ParquetExporter) Extension() string { return "parquet" }

func (e ParquetExporter) Export(symbol, timeframe string, elements []*models.Element) (string, error) {
	path := ExportPath(e.Output, symbol, timeframe, e.Extension())
	return path, writeParquet(path, elements)
}

func writeParquet(path string, elements []*models.Element) error {
	rows, err := toRows(elements)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	return parquet.WriteFile(path, rows)
}

// NewElementExporter creates an exporter by format (csv, parquet) writing below output.
func NewElementExporter(format, output string) (domrepo.ElementExporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVExporter{Output: output}, nil
	case "parquet":
		return ParquetExporter{Output: output}, nil
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", domain.ErrConfiguration, format)
	}
}

// ExportPath is <output>/exports/<SYM>_<TF>.<ext>.
func ExportPath(output, symbol, timeframe, ext string) string {
	return filepath.Join(output, ExportsDir, fmt.Sprintf("%s_%s.%s", fileName(symbol), timeframe, ext))
}

func priceStr(f float64) string { return decimal.NewFromFloat(f).String() }

func optPrice(f *float64) string {
	if f == nil {
		return ""
	}
	return priceStr(*f)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
