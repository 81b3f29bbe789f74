package ports

import (
	"context"

	"settlement-kernel/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// BalanceRow is one persisted (agent, currency) balance.
type BalanceRow struct {
	AgentID  domain.AgentID  `db:"agent_id"`
	Currency domain.Currency `db:"currency"`
	Balance  domain.Money    `db:"balance"`
	Tick     int64           `db:"tick"`
}

// BalanceStore owns durable wallet balances keyed by (agent_id, currency).
// The kernel only hydrates from it and hands it snapshots.
type BalanceStore interface {
	SaveBalances(ctx context.Context, tx pgx.Tx, rows []BalanceRow) error
	LoadBalances(ctx context.Context) (map[domain.AgentID]map[domain.Currency]domain.Money, error)
}

// OperationStore persists operation records for offline zero-sum verification.
type OperationStore interface {
	AppendOperations(ctx context.Context, tx pgx.Tx, runID string, records []domain.OperationRecord) error
	CountOperations(ctx context.Context, runID string) (int64, error)
}

// AuditRepository persists audit events.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
