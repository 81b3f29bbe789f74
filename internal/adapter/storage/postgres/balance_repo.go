package postgres

import (
	"context"
	"fmt"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// BalanceRepo implements ports.BalanceStore.
type BalanceRepo struct {
	pool Pool
}

// NewBalanceRepo creates a new BalanceRepo.
func NewBalanceRepo(pool Pool) *BalanceRepo {
	return &BalanceRepo{pool: pool}
}

// SaveBalances replaces the stored snapshot with rows inside tx. Rows are a full
// snapshot, so a balance that dropped to zero disappears from the table.
func (r *BalanceRepo) SaveBalances(ctx context.Context, tx pgx.Tx, rows []ports.BalanceRow) error {
	if _, err := tx.Exec(ctx, `DELETE FROM agent_balances`); err != nil {
		return fmt.Errorf("clear balances: %w", err)
	}

	query := `INSERT INTO agent_balances (agent_id, currency, balance, tick)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (agent_id, currency) DO UPDATE
		SET balance = EXCLUDED.balance, tick = EXCLUDED.tick, updated_at = now()`

	for _, row := range rows {
		_, err := tx.Exec(ctx, query,
			int64(row.AgentID), string(row.Currency), int64(row.Balance), row.Tick,
		)
		if err != nil {
			return fmt.Errorf("upsert balance %d/%s: %w", row.AgentID, row.Currency, err)
		}
	}
	return nil
}

// LoadBalances reads the stored snapshot grouped by agent.
func (r *BalanceRepo) LoadBalances(ctx context.Context) (map[domain.AgentID]map[domain.Currency]domain.Money, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT agent_id, currency, balance FROM agent_balances ORDER BY agent_id, currency`)
	if err != nil {
		return nil, fmt.Errorf("load balances: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.AgentID]map[domain.Currency]domain.Money)
	for rows.Next() {
		var (
			agentID  int64
			currency string
			balance  int64
		)
		if err := rows.Scan(&agentID, &currency, &balance); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		id := domain.AgentID(agentID)
		if out[id] == nil {
			out[id] = make(map[domain.Currency]domain.Money)
		}
		out[id][domain.Currency(currency)] = domain.Money(balance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}
	return out, nil
}
