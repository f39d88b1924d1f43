package repository

import (
	"context"
	"time"

	"AutoEye/internal/domain/models"
)

// ElementStore persists per-symbol element documents.
type ElementStore interface {
	// Load returns an empty document when none exists. A corrupt file yields an empty
	// document together with an error wrapping domain.ErrPersistenceCorrupt.
	Load(ctx context.Context, symbol string) (*models.ElementDocument, error)
	// Save returns false when the content matched the stored document.
	Save(ctx context.Context, doc *models.ElementDocument) (bool, error)
}

// StateStore persists per-symbol state snapshots.
type StateStore interface {
	Load(ctx context.Context, symbol string) (*models.StateDocument, error)
	Save(ctx context.Context, doc *models.StateDocument) (bool, error)
	// List returns the symbols with a state document, sorted by file name.
	List(ctx context.Context) ([]string, error)
	SaveSchemaMarker(ctx context.Context, doc *models.SchemaMarker) (bool, error)
}

// TrendStore persists per-symbol trend documents.
type TrendStore interface {
	Load(ctx context.Context, symbol string) (*models.TrendDocument, error)
	Save(ctx context.Context, doc *models.TrendDocument) error
}

// ScenarioStore persists per-symbol scenario documents.
type ScenarioStore interface {
	Load(ctx context.Context, symbol string) (*models.ScenarioDocument, error)
	Save(ctx context.Context, doc *models.ScenarioDocument) (bool, error)
}

// EventPublisher emits cycle events to an external bus.
type EventPublisher interface {
	PublishEvents(ctx context.Context, events []models.Event) error
	Close() error
}

// ProposalSink stores proposal records for later analysis.
type ProposalSink interface {
	Init(ctx context.Context) error
	StoreProposals(ctx context.Context, proposals []models.Proposal) error
	Close() error
}

// BacktestWriter persists the artifacts of one backtest run and returns their directory.
type BacktestWriter interface {
	WriteRun(runID string, proposals []models.Proposal, events []models.Event, summary *models.BacktestSummary) (string, error)
}

// ElementExporter writes the element rows of one (symbol, timeframe) to a flat file
// and returns its path.
type ElementExporter interface {
	Extension() string
	Export(symbol, timeframe string, elements []*models.Element) (string, error)
}

// DocumentCache drops cached API documents after their files change.
type DocumentCache interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// RunLock guards a cycle against concurrent writers of the same output directory.
type RunLock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Metrics records engine activity.
type Metrics interface {
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordElements(timeframe, kind string, active, total int)
	RecordScenarios(symbol string, created, expired int)
	RecordDocumentWrite(doc string, written bool)
}

// SnapshotCache holds encoded API views between cycles. A miss is any error from Get.
type SnapshotCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}
