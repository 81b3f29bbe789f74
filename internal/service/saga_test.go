package service

import (
	"context"
	"testing"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports/mocks"
	"settlement-kernel/internal/metrics"
	"settlement-kernel/pkg/apperror"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// scriptedSettler fails the sagas of the listed decedents with the given error.
type scriptedSettler struct {
	fail    map[domain.AgentID]error
	settled []domain.AgentID
}

func (s *scriptedSettler) Settle(saga *domain.EstateSaga, _ int64) error {
	s.settled = append(s.settled, saga.DeceasedID)
	if err := s.fail[saga.DeceasedID]; err != nil {
		saga.Advance(domain.SagaFailedRolledBack)
		return err
	}
	saga.Advance(domain.SagaDone)
	return nil
}

func testSaga(id domain.AgentID) *domain.EstateSaga {
	return domain.NewEstateSaga(&domain.EstateValuation{DeceasedID: id}, nil, govID, 1)
}

func TestSagaOrchestrator_SubmitOnce(t *testing.T) {
	o := NewSagaOrchestrator(&scriptedSettler{}, nil, nil, newTestLogger())
	saga := testSaga(10)

	require.NoError(t, o.SubmitSaga(saga))
	err := o.SubmitSaga(saga)
	assert.Equal(t, "CFG_003", apperror.CodeOf(err))
	assert.Equal(t, 1, o.Pending())

	assert.Error(t, o.SubmitSaga(nil))
	assert.Error(t, o.SubmitSaga(&domain.EstateSaga{}))
}

func TestSagaOrchestrator_Execute_DrainsInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockAuditRepository(ctrl)
	var actions []domain.AuditAction
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) error {
			actions = append(actions, entry.Action)
			return nil
		}).Times(3)

	settler := &scriptedSettler{fail: map[domain.AgentID]error{
		11: apperror.ErrSagaFailed("s", apperror.ErrInsufficientFunds(11, 10, 0)),
	}}
	m := metrics.New(prometheus.NewRegistry(), "test")
	o := NewSagaOrchestrator(settler, NewAuditService(repo, newTestLogger()), m, newTestLogger())
	for _, id := range []domain.AgentID{10, 11, 12} {
		require.NoError(t, o.SubmitSaga(testSaga(id)))
	}

	done, err := o.Execute(5)
	require.NoError(t, err, "business failures stay on the saga")
	require.Len(t, done, 3)
	assert.Equal(t, []domain.AgentID{10, 11, 12}, settler.settled)
	assert.Equal(t, domain.SagaFailedRolledBack, done[1].State)
	assert.Equal(t, 0, o.Pending())

	assert.Equal(t, []domain.AuditAction{
		domain.AuditActionSagaCommitted, domain.AuditActionSagaRolledBack, domain.AuditActionSagaCommitted,
	}, actions)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Sagas.WithLabelValues(string(domain.SagaDone))))
}

func TestSagaOrchestrator_Execute_ConfigurationErrorRequeuesRest(t *testing.T) {
	settler := &scriptedSettler{fail: map[domain.AgentID]error{
		11: apperror.ErrUnregisteredAgent(99),
	}}
	o := NewSagaOrchestrator(settler, nil, nil, newTestLogger())
	for _, id := range []domain.AgentID{10, 11, 12} {
		require.NoError(t, o.SubmitSaga(testSaga(id)))
	}

	done, err := o.Execute(5)
	assert.True(t, apperror.IsConfiguration(err))
	assert.Len(t, done, 2)
	assert.Equal(t, 1, o.Pending())

	done, err = o.Execute(6)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, domain.AgentID(12), done[0].DeceasedID)
}
