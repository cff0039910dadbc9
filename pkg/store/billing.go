package store

import (
	"context"
	"log/slog"
	"time"
)

// CostLedger records per-run spend. RecordCost is fire-and-forget: a failed
// insert is logged and never blocks or fails the pipeline.
type CostLedger struct {
	db     *PostgresDB
	logger *slog.Logger
}

func NewCostLedger(db *PostgresDB, logger *slog.Logger) *CostLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &CostLedger{db: db, logger: logger}
}

func (l *CostLedger) RecordCost(ownerID string, delta float64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, err := l.db.Pool.Exec(ctx,
			"INSERT INTO run_costs (owner_id, amount) VALUES ($1, $2)", ownerID, delta)
		if err != nil {
			l.logger.Warn("cost record failed", "owner_id", ownerID, "amount", delta, "error", err)
		}
	}()
}

// TotalCost sums an owner's recorded spend.
func (l *CostLedger) TotalCost(ctx context.Context, ownerID string) (float64, error) {
	var total float64
	err := l.db.Pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM run_costs WHERE owner_id = $1", ownerID).Scan(&total)
	return total, err
}
