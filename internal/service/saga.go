package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"
	"settlement-kernel/internal/metrics"
	"settlement-kernel/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SagaOrchestrator queues estate sagas and runs them once each.
type SagaOrchestrator struct {
	mu      sync.Mutex
	queue   []*domain.EstateSaga
	settler ports.EstateSettler
	audit   ports.AuditService
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewSagaOrchestrator creates a new SagaOrchestrator.
func NewSagaOrchestrator(settler ports.EstateSettler, audit ports.AuditService, m *metrics.Metrics, log zerolog.Logger) *SagaOrchestrator {
	return &SagaOrchestrator{settler: settler, audit: audit, metrics: m, log: log}
}

// SubmitSaga enqueues saga. A saga can be submitted only once.
func (o *SagaOrchestrator) SubmitSaga(saga *domain.EstateSaga) error {
	if saga == nil || saga.Valuation == nil {
		return apperror.ErrMalformedConfig("estate saga without valuation")
	}
	if !saga.Consume() {
		return apperror.ErrMalformedConfig(fmt.Sprintf("estate saga %s already submitted", saga.ID))
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queue = append(o.queue, saga)
	return nil
}

// Pending returns the number of queued sagas.
func (o *SagaOrchestrator) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Execute drains the queue in submission order. Business failures are reported on the
// saga itself; a configuration error stops the drain and is returned.
func (o *SagaOrchestrator) Execute(tick int64) ([]*domain.EstateSaga, error) {
	o.mu.Lock()
	queue := o.queue
	o.queue = nil
	o.mu.Unlock()

	done := make([]*domain.EstateSaga, 0, len(queue))
	for i, saga := range queue {
		err := o.settler.Settle(saga, tick)
		o.metrics.IncrementSaga(string(saga.State))
		o.record(saga, err, tick)
		done = append(done, saga)
		if apperror.IsConfiguration(err) {
			// Put the untouched rest back for the caller to inspect.
			o.mu.Lock()
			o.queue = append(queue[i+1:], o.queue...)
			o.mu.Unlock()
			return done, err
		}
	}
	return done, nil
}

func (o *SagaOrchestrator) record(saga *domain.EstateSaga, err error, tick int64) {
	action := domain.AuditActionSagaCommitted
	details := fmt.Sprintf(`{"state":%q,"steps":%d}`, saga.State, len(saga.Executed))
	if err != nil {
		action = domain.AuditActionSagaRolledBack
		details = fmt.Sprintf(`{"state":%q,"error":%q}`, saga.State, err.Error())
		o.log.Warn().Err(err).Str("saga_id", saga.ID.String()).Str("state", string(saga.State)).Msg("estate saga failed")
	}
	if o.audit == nil {
		return
	}
	o.audit.Log(context.Background(), &domain.AuditLog{
		ID:         uuid.New(),
		Action:     action,
		AgentID:    saga.DeceasedID,
		ResourceID: saga.ID.String(),
		Tick:       tick,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	})
}
