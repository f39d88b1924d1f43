package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"AutoEye/internal/domain/models"
)

// BacktestsDir holds one sub-directory per backtest run.
const BacktestsDir = "backtests"

// BacktestFileWriter stores backtest artifacts under <dir>/<run_id>.
type BacktestFileWriter struct {
	dir string
}

// NewBacktestFileWriter writes below dir. An empty dir means <output>/backtests.
func NewBacktestFileWriter(dir, output string) *BacktestFileWriter {
	if dir == "" {
		dir = filepath.Join(output, BacktestsDir)
	}
	return &BacktestFileWriter{dir: dir}
}

// WriteRun writes proposals.jsonl, events.jsonl and summary.json and returns the run directory.
func (w *BacktestFileWriter) WriteRun(runID string, proposals []models.Proposal, events []models.Event, summary *models.BacktestSummary) (string, error) {
	runDir := filepath.Join(w.dir, fileName(runID))
	summary.OutputDir = runDir

	if err := writeLines(filepath.Join(runDir, "proposals.jsonl"), proposals); err != nil {
		return runDir, fmt.Errorf("write proposals: %w", err)
	}
	if err := writeLines(filepath.Join(runDir, "events.jsonl"), events); err != nil {
		return runDir, fmt.Errorf("write events: %w", err)
	}
	data, err := encodeJSON(summary)
	if err != nil {
		return runDir, fmt.Errorf("encode summary: %w", err)
	}
	if err := writeAtomic(filepath.Join(runDir, "summary.json"), data); err != nil {
		return runDir, fmt.Errorf("write summary: %w", err)
	}
	return runDir, nil
}

func writeLines[T any](path string, rows []T) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			return err
		}
	}
	return writeAtomic(path, buf.Bytes())
}
