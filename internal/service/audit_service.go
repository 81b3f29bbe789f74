package service

import (
	"context"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"

	"github.com/rs/zerolog"
)

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService creates a new audit service.
// If repo is nil, audit events are only written to the logger.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Log records an audit entry. It runs inline so events keep the tick order; a persistence
// failure is logged and never reaches the settlement path.
func (s *auditService) Log(ctx context.Context, entry *domain.AuditLog) {
	s.log.Info().
		Str("action", string(entry.Action)).
		Int64("agent_id", int64(entry.AgentID)).
		Str("resource_id", entry.ResourceID).
		Int64("tick", entry.Tick).
		Msg("audit")

	if s.repo != nil {
		if err := s.repo.Create(ctx, entry); err != nil {
			s.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("failed to persist audit log")
		}
	}
}
