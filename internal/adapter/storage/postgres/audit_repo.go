package postgres

import (
	"context"
	"fmt"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"
)

type auditRepo struct {
	pool Pool
}

// NewAuditRepository creates a PostgreSQL-backed AuditRepository.
func NewAuditRepository(pool Pool) ports.AuditRepository {
	return &auditRepo{pool: pool}
}

func (r *auditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	var details any
	if entry.Details != "" {
		details = entry.Details
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, action, agent_id, resource_id, tick, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, string(entry.Action), int64(entry.AgentID), entry.ResourceID,
		entry.Tick, details, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
