package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"AutoEye/internal/domain"
	"AutoEye/internal/domain/models"
	applogger "AutoEye/pkg/logger"
)

// Output sub-directories, one per document type.
const (
	ElementsDir  = "elements"
	StateDir     = "state"
	TrendsDir    = "trends"
	ScenariosDir = "scenarios"
	ExportsDir   = "exports"

	schemaMarkerFile = "schema_version.json"
)

type docDir struct {
	dir string
	l   *applogger.Logger
}

func (d docDir) path(symbol string) string {
	return filepath.Join(d.dir, fileName(symbol)+".json")
}

// load decodes the symbol's document into dest. found is false for a missing file.
// A file that does not decode yields an ErrPersistenceCorrupt error.
func (d docDir) load(symbol string, dest any) (bool, error) {
	path := d.path(symbol)
	b, err := readFile(path)
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, nil
	}
	if err := json.Unmarshal(b, dest); err != nil {
		if d.l != nil {
			d.l.Warn("document unreadable, treating as empty",
				applogger.String("path", path),
				applogger.Error(err),
			)
		}
		return false, fmt.Errorf("%w: %s: %v", domain.ErrPersistenceCorrupt, path, err)
	}
	return true, nil
}

// ElementFileStore keeps element documents under <output>/elements.
type ElementFileStore struct{ docDir }

func NewElementFileStore(output string, l *applogger.Logger) *ElementFileStore {
	return &ElementFileStore{docDir{dir: filepath.Join(output, ElementsDir), l: l}}
}

func (s *ElementFileStore) Load(_ context.Context, symbol string) (*models.ElementDocument, error) {
	var doc models.ElementDocument
	found, err := s.load(symbol, &doc)
	if !found {
		return models.NewElementDocument(symbol), err
	}
	if doc.Symbol == "" {
		doc.Symbol = symbol
	}
	if doc.SchemaVersion == "" {
		doc.SchemaVersion = models.SchemaVersion
	}
	if doc.Timeframes == nil {
		doc.Timeframes = map[string]*models.TimeframeBlock{}
	}
	return &doc, nil
}

func (s *ElementFileStore) Save(_ context.Context, doc *models.ElementDocument) (bool, error) {
	for _, b := range doc.Timeframes {
		if b != nil && b.Elements == nil {
			b.Elements = []*models.Element{}
		}
	}
	return writeIfChanged(s.path(doc.Symbol), doc)
}

// StateFileStore keeps state documents and the schema marker under <output>/state.
type StateFileStore struct{ docDir }

func NewStateFileStore(output string, l *applogger.Logger) *StateFileStore {
	return &StateFileStore{docDir{dir: filepath.Join(output, StateDir), l: l}}
}

// Load returns nil, nil when the symbol has no state yet.
func (s *StateFileStore) Load(_ context.Context, symbol string) (*models.StateDocument, error) {
	var doc models.StateDocument
	found, err := s.load(symbol, &doc)
	if !found {
		return nil, err
	}
	if doc.Symbol == "" {
		doc.Symbol = symbol
	}
	return &doc, nil
}

func (s *StateFileStore) Save(_ context.Context, doc *models.StateDocument) (bool, error) {
	return writeIfChanged(s.path(doc.Symbol), doc)
}

func (s *StateFileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list state: %w", err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.EqualFold(name, schemaMarkerFile) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = strings.TrimSuffix(name, ".json")
	}
	return out, nil
}

// SaveSchemaMarker writes the marker only when the stored version differs.
func (s *StateFileStore) SaveSchemaMarker(_ context.Context, marker *models.SchemaMarker) (bool, error) {
	path := filepath.Join(s.dir, schemaMarkerFile)
	b, err := readFile(path)
	if err != nil {
		return false, err
	}
	if b != nil {
		var old models.SchemaMarker
		if json.Unmarshal(b, &old) == nil && old.SchemaVersion == marker.SchemaVersion {
			return false, nil
		}
	}
	data, err := encodeJSON(marker)
	if err != nil {
		return false, fmt.Errorf("encode schema marker: %w", err)
	}
	if err := writeAtomic(path, data); err != nil {
		return false, err
	}
	return true, nil
}

// TrendFileStore keeps trend documents under <output>/trends.
type TrendFileStore struct{ docDir }

func NewTrendFileStore(output string, l *applogger.Logger) *TrendFileStore {
	return &TrendFileStore{docDir{dir: filepath.Join(output, TrendsDir), l: l}}
}

// Load returns nil, nil when the symbol has no trend yet.
func (s *TrendFileStore) Load(_ context.Context, symbol string) (*models.TrendDocument, error) {
	var doc models.TrendDocument
	found, err := s.load(symbol, &doc)
	if !found {
		return nil, err
	}
	return &doc, nil
}

// Save always writes; callers decide whether the trend moved.
func (s *TrendFileStore) Save(_ context.Context, doc *models.TrendDocument) error {
	data, err := encodeJSON(doc)
	if err != nil {
		return fmt.Errorf("encode trend: %w", err)
	}
	return writeAtomic(s.path(doc.Symbol), data)
}

// ScenarioFileStore keeps scenario documents under <output>/scenarios.
type ScenarioFileStore struct{ docDir }

func NewScenarioFileStore(output string, l *applogger.Logger) *ScenarioFileStore {
	return &ScenarioFileStore{docDir{dir: filepath.Join(output, ScenariosDir), l: l}}
}

// Load returns nil, nil when the symbol has no scenarios yet.
func (s *ScenarioFileStore) Load(_ context.Context, symbol string) (*models.ScenarioDocument, error) {
	var doc models.ScenarioDocument
	found, err := s.load(symbol, &doc)
	if !found {
		return nil, err
	}
	return &doc, nil
}

func (s *ScenarioFileStore) Save(_ context.Context, doc *models.ScenarioDocument) (bool, error) {
	return writeIfChanged(s.path(doc.Symbol), doc)
}
