package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"AutoEye/internal/domain/models"
	pkgch "AutoEye/pkg/clickhouse"
)

// ClickHouseProposalSink stores proposal records in <database>.proposals.
type ClickHouseProposalSink struct {
	client   *pkgch.Client
	db       *sql.DB
	database string
}

func NewClickHouseProposalSink(ch *pkgch.Client, database string) *ClickHouseProposalSink {
	return &ClickHouseProposalSink{client: ch, db: ch.DB(), database: database}
}

func (s *ClickHouseProposalSink) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.proposals (
            run_id String,
            created_at DateTime64(3, 'UTC'),
            symbol LowCardinality(String),
            scenario_id String,
            scenario_type LowCardinality(String),
            direction LowCardinality(String),
            trend_at_creation LowCardinality(String),
            htf_anchor_id String,
            ltf_confirmation_id String,
            entry_price Float64,
            entry_low Float64,
            entry_high Float64,
            sl_price Float64,
            tp_price Nullable(Float64),
            tp_target_id Nullable(String)
        ) ENGINE = ReplacingMergeTree
        ORDER BY (symbol, run_id, scenario_id)`, s.database),
	})
}

// StoreProposals inserts in multi-row chunks to keep round-trips low.
func (s *ClickHouseProposalSink) StoreProposals(ctx context.Context, proposals []models.Proposal) error {
	if len(proposals) == 0 {
		return nil
	}
	const chunkSize = 2000
	const cols = "(run_id, created_at, symbol, scenario_id, scenario_type, direction, trend_at_creation, htf_anchor_id, ltf_confirmation_id, entry_price, entry_low, entry_high, sl_price, tp_price, tp_target_id)"
	for start := 0; start < len(proposals); start += chunkSize {
		end := min(start+chunkSize, len(proposals))

		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*15)
		for _, p := range proposals[start:end] {
			if p.ScenarioID == "" {
				continue
			}
			var tpPrice, tpTarget any
			if p.TP != nil {
				tpPrice, tpTarget = p.TP.Price, p.TP.TargetID
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				p.RunID,
				p.CreatedAtUTC.Time,
				p.Symbol,
				p.ScenarioID,
				p.ScenarioType,
				p.Direction,
				p.TrendAtCreation,
				p.HTFAnchorID,
				p.LTFConfirmationID,
				p.Entry.Price,
				p.Entry.Zone[0],
				p.Entry.Zone[1],
				p.SL.Price,
				tpPrice,
				tpTarget,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s.proposals %s VALUES %s", s.database, cols, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert proposals: %w", err)
		}
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (s *ClickHouseProposalSink) Close() error { return nil }
