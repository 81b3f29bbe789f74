package postgres

import (
	"context"
	"fmt"

	"settlement-kernel/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var operationColumns = []string{
	"run_id", "seq", "tick", "agent_id", "currency", "delta", "memo", "resulting_balance",
}

// OperationRepo implements ports.OperationStore.
type OperationRepo struct {
	pool Pool
}

// NewOperationRepo creates a new OperationRepo.
func NewOperationRepo(pool Pool) *OperationRepo {
	return &OperationRepo{pool: pool}
}

// AppendOperations bulk-copies records into wallet_operations inside tx.
func (r *OperationRepo) AppendOperations(ctx context.Context, tx pgx.Tx, runID string, records []domain.OperationRecord) error {
	if len(records) == 0 {
		return nil
	}
	run, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("parse run id: %w", err)
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"wallet_operations"},
		operationColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			rec := records[i]
			return []any{
				run, rec.Seq, rec.Tick, int64(rec.AgentID), string(rec.Currency),
				int64(rec.Delta), rec.Memo, int64(rec.ResultingBalance),
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy operations: %w", err)
	}
	if n != int64(len(records)) {
		return fmt.Errorf("copy operations: wrote %d of %d rows", n, len(records))
	}
	return nil
}

// CountOperations returns how many records are stored for runID.
func (r *OperationRepo) CountOperations(ctx context.Context, runID string) (int64, error) {
	run, err := uuid.Parse(runID)
	if err != nil {
		return 0, fmt.Errorf("parse run id: %w", err)
	}
	var n int64
	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM wallet_operations WHERE run_id = $1`, run,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count operations: %w", err)
	}
	return n, nil
}
