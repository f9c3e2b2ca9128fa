package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SigFuse/internal/domain/models"
	domrepo "SigFuse/internal/domain/repository"
)

// tradeLogSchema creates the audit table. ReplacingMergeTree keyed by
// route_id absorbs redelivered audit messages.
var tradeLogSchema = []string{
	`CREATE TABLE IF NOT EXISTS trade_audit (
		executed_at DateTime,
		route_id    String,
		symbol      String,
		route_type  String,
		venue       String,
		success     UInt8,
		simulated   UInt8,
		amount      Float64,
		price       Float64,
		output      Float64,
		gas_cost    Float64,
		fail_reason String
	) ENGINE = ReplacingMergeTree()
	ORDER BY (route_id, executed_at)`,
}

// ClickHouseTradeLog implements TradeLog over ClickHouse.
type ClickHouseTradeLog struct {
	db    *sql.DB
	table string
}

// NewClickHouseTradeLog creates the audit store on an existing pool.
func NewClickHouseTradeLog(db *sql.DB, table string) domrepo.TradeLog {
	if table == "" {
		table = "trade_audit"
	}
	return &ClickHouseTradeLog{db: db, table: table}
}

// Schema returns the DDL statements for the audit table.
func Schema() []string { return tradeLogSchema }

func (s *ClickHouseTradeLog) Store(ctx context.Context, t *models.TradeResult) error {
	q := fmt.Sprintf(`INSERT INTO %s
		(executed_at, route_id, symbol, route_type, venue, success, simulated,
		 amount, price, output, gas_cost, fail_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)

	_, err := s.db.ExecContext(ctx, q,
		time.UnixMilli(t.ExecutedAt),
		t.RouteID,
		t.Symbol,
		string(t.RouteType),
		t.Venue,
		boolToUint8(t.Success),
		boolToUint8(t.Simulated),
		t.Amount.InexactFloat64(),
		t.Price.InexactFloat64(),
		t.Output.InexactFloat64(),
		t.GasCost.InexactFloat64(),
		t.FailReason,
	)
	return err
}

func (s *ClickHouseTradeLog) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseTradeLog) Close() error {
	return nil // pool is owned by pkg/clickhouse
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
