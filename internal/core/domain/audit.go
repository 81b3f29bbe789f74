package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited kernel event.
type AuditAction string

const (
	AuditActionSagaCommitted   AuditAction = "SAGA_COMMITTED"
	AuditActionSagaRolledBack  AuditAction = "SAGA_ROLLED_BACK"
	AuditActionRollbackFailed  AuditAction = "ROLLBACK_FAILED"
	AuditActionIntegrityDrift  AuditAction = "INTEGRITY_DRIFT"
	AuditActionDebtUnderflow   AuditAction = "DEBT_UNDERFLOW"
	AuditActionAgentRegistered AuditAction = "AGENT_REGISTERED"
	AuditActionAgentRemoved    AuditAction = "AGENT_REMOVED"
)

// AuditLog records a single audited event.
type AuditLog struct {
	ID         uuid.UUID   `json:"id"`
	Action     AuditAction `json:"action"`
	AgentID    AgentID     `json:"agent_id,omitempty"`
	ResourceID string      `json:"resource_id,omitempty"`
	Tick       int64       `json:"tick"`
	Details    string      `json:"details,omitempty"` // JSON string
	CreatedAt  time.Time   `json:"created_at"`
}
