package service

import (
	"context"
	"errors"
	"testing"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"
	"settlement-kernel/internal/core/ports/mocks"
	"settlement-kernel/internal/metrics"
	"settlement-kernel/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	k, err := NewKernel(KernelOptions{
		Roles:          testRoles,
		Currency:       domain.DefaultCurrency,
		GenesisBalance: 10_000,
		Taxes:          defaultTestRates(),
		Mortgage:       MortgageTerms{Rate: decimal.RequireFromString("0.05"), TermTicks: 360},
		MortgageLTV:    decimal.RequireFromString("0.8"),
		Estate:         EstateOptions{FireSaleDiscount: decimal.RequireFromString("0.5"), ValuationWorkers: 2},
	}, nil, metrics.New(prometheus.NewRegistry(), "test"), newTestLogger())
	require.NoError(t, err)

	system := []struct {
		id   domain.AgentID
		kind domain.AgentKind
	}{
		{cbID, domain.AgentKindCentralBank},
		{govID, domain.AgentKindGovernment},
		{bankID, domain.AgentKindBank},
		{escrowID, domain.AgentKindEscrow},
		{pmID, domain.AgentKindPublicManager},
	}
	for _, s := range system {
		_, err := k.RegisterAgent(s.id, s.kind, 0, 0)
		require.NoError(t, err)
	}
	return k
}

func TestNewKernel_RequiresCreationAuthority(t *testing.T) {
	_, err := NewKernel(KernelOptions{}, nil, nil, newTestLogger())
	assert.True(t, apperror.IsConfiguration(err))
}

func TestKernel_RegisterAgent_GenesisIsMinted(t *testing.T) {
	k := newTestKernel(t)
	a, err := k.RegisterAgent(10, domain.AgentKindHousehold, -1, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(10_000), a.Wallet.Balance("USD"))
	assert.Equal(t, domain.Money(-10_000), mustAgent(t, k, cbID).Wallet.Balance("USD"))
	assert.Equal(t, domain.Money(10_000), k.Ledger().Issued("USD"))

	_, err = k.RegisterAgent(10, domain.AgentKindHousehold, 0, 0)
	assert.Equal(t, "CFG_007", apperror.CodeOf(err))
	_, err = k.RegisterAgent(11, "ALIEN", 0, 0)
	assert.Equal(t, "CFG_003", apperror.CodeOf(err))
}

func mustAgent(t *testing.T, k *Kernel, id domain.AgentID) *domain.Agent {
	t.Helper()
	a, err := k.Directory().Agent(id)
	require.NoError(t, err)
	return a
}

func TestKernel_RunTick_ConservesMoney(t *testing.T) {
	k := newTestKernel(t)
	for _, id := range []domain.AgentID{10, 11, 12} {
		_, err := k.RegisterAgent(id, domain.AgentKindHousehold, -1, 0)
		require.NoError(t, err)
	}
	_, err := k.RegisterAgent(20, domain.AgentKindFirm, 50_000, 0)
	require.NoError(t, err)

	mustAgent(t, k, 12).SetHeirs([]domain.AgentID{10})
	saga, err := k.ReportDeath(12, 1)
	require.NoError(t, err)
	require.Equal(t, domain.Money(1_000), saga.Valuation.TaxDue)

	txs := []*domain.Transaction{
		goodsTx(10, 20, 100, 10),
		domain.NewTransfer(domain.TransactionTypeLabor, 20, 11, 2_000, 1),
		domain.NewTransfer(domain.TransactionTypeLenderOfLastResort, cbID, bankID, 5_000, 1),
		domain.NewTransfer(domain.TransactionTypeGoods, 11, 20, 1_000_000, 1),
	}
	report, err := k.RunTick(context.Background(), 1, txs)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Committed)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Sagas, 1)
	assert.Equal(t, domain.SagaDone, report.Sagas[0].State)
	assert.Equal(t, 0, report.SagasFailed())

	assert.True(t, report.Integrity.OK(), "drift %d", report.Integrity.Drift)
	assert.Equal(t, domain.Money(5_000), report.Delta)
	assert.Equal(t, report.Integrity.ObservedAfter, report.ExpectedM2)
	assert.Empty(t, VerifyZeroSum(k.OperationLog().Records()))

	assert.Equal(t, domain.Money(10_000-1_100+9_000), mustAgent(t, k, 10).Wallet.Balance("USD"))
	assert.True(t, mustAgent(t, k, 12).Wallet.IsClosed())
	assert.Same(t, report, k.LastReport())

	_, err = k.RunTick(context.Background(), 1, nil)
	assert.Equal(t, "CFG_005", apperror.CodeOf(err))
}

func TestKernel_RunTick_ConfigurationErrorHalts(t *testing.T) {
	k := newTestKernel(t)
	_, err := k.RegisterAgent(10, domain.AgentKindHousehold, -1, 0)
	require.NoError(t, err)

	report, err := k.RunTick(context.Background(), 1, []*domain.Transaction{
		domain.NewTransfer(domain.TransactionTypeTransfer, 10, 404, 1, 1),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsConfiguration(err))
	assert.Empty(t, report.Results)
}

func TestKernel_RemoveAgent(t *testing.T) {
	k := newTestKernel(t)
	_, err := k.RegisterAgent(10, domain.AgentKindHousehold, 2_500, 0)
	require.NoError(t, err)

	require.NoError(t, k.RemoveAgent(10, 1))
	a := mustAgent(t, k, 10)
	assert.True(t, a.Wallet.IsClosed())
	assert.False(t, a.IsActive())
	assert.Equal(t, domain.Money(2_500), mustAgent(t, k, govID).Wallet.Balance("USD"))
}

func TestKernel_ReportDeaths(t *testing.T) {
	k := newTestKernel(t)
	heir, err := k.RegisterAgent(10, domain.AgentKindHousehold, 1_000, 0)
	require.NoError(t, err)
	for _, id := range []domain.AgentID{11, 12} {
		a, err := k.RegisterAgent(id, domain.AgentKindHousehold, 1_000, 0)
		require.NoError(t, err)
		a.SetHeirs([]domain.AgentID{10})
	}

	_, err = k.ReportDeaths(context.Background(), []domain.AgentID{10, 999}, 1)
	assert.Equal(t, "CFG_001", apperror.CodeOf(err))
	assert.True(t, heir.IsActive(), "nothing is queued on error")

	_, err = k.ReportDeaths(context.Background(), []domain.AgentID{11, 12, 11}, 1)
	assert.Equal(t, "CFG_003", apperror.CodeOf(err))
	assert.True(t, mustAgent(t, k, 11).IsActive(), "a repeated id queues nothing")
	assert.True(t, mustAgent(t, k, 12).IsActive())

	sagas, err := k.ReportDeaths(context.Background(), []domain.AgentID{11, 12}, 1)
	require.NoError(t, err)
	require.Len(t, sagas, 2)
	assert.Equal(t, domain.AgentID(11), sagas[0].DeceasedID)
	assert.Equal(t, domain.AgentID(12), sagas[1].DeceasedID)

	_, err = k.ReportDeaths(context.Background(), []domain.AgentID{11}, 1)
	assert.True(t, apperror.IsConfiguration(err))

	report, err := k.RunTick(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.SagasFailed())
	assert.Equal(t, domain.Money(3_000),
		heir.Wallet.Balance("USD")+mustAgent(t, k, govID).Wallet.Balance("USD"))
	assert.True(t, mustAgent(t, k, 11).Wallet.IsClosed())
	assert.True(t, mustAgent(t, k, 12).Wallet.IsClosed())
}

func TestKernel_Hydrate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	k := newTestKernel(t)
	for _, id := range []domain.AgentID{10, 11} {
		_, err := k.RegisterAgent(id, domain.AgentKindHousehold, -1, 0)
		require.NoError(t, err)
	}
	opsBefore := k.OperationLog().Len()

	store := mocks.NewMockBalanceStore(ctrl)
	store.EXPECT().LoadBalances(gomock.Any()).Return(map[domain.AgentID]map[domain.Currency]domain.Money{
		10: {"USD": 777},
		11: {"USD": 3, "EUR": 5},
	}, nil)

	require.NoError(t, k.Hydrate(context.Background(), store))
	assert.Equal(t, domain.Money(777), mustAgent(t, k, 10).Wallet.Balance("USD"))
	assert.Equal(t, opsBefore, k.OperationLog().Len())
	assert.Equal(t, k.Reporting().ObservedM2("USD"), k.Ledger().ExpectedM2("USD"))
	assert.Equal(t, domain.Money(5), k.Ledger().ExpectedM2("EUR"))
}

func TestKernel_Hydrate_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	k := newTestKernel(t)
	store := mocks.NewMockBalanceStore(ctrl)
	store.EXPECT().LoadBalances(gomock.Any()).Return(nil, errors.New("connection refused"))
	assert.ErrorContains(t, k.Hydrate(context.Background(), store), "connection refused")

	store.EXPECT().LoadBalances(gomock.Any()).Return(map[domain.AgentID]map[domain.Currency]domain.Money{
		99: {"USD": 1},
	}, nil)
	assert.Equal(t, "CFG_001", apperror.CodeOf(k.Hydrate(context.Background(), store)))
}

func TestKernel_Persist(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	k := newTestKernel(t)
	_, err = k.RegisterAgent(10, domain.AgentKindHousehold, -1, 0)
	require.NoError(t, err)

	db := mocks.NewMockDBTransactor(ctrl)
	db.EXPECT().Begin(gomock.Any()).DoAndReturn(func(ctx context.Context) (pgx.Tx, error) {
		return pool.Begin(ctx)
	}).Times(2)
	pool.ExpectBegin()
	pool.ExpectCommit()
	pool.ExpectBegin()
	pool.ExpectCommit()

	balances := mocks.NewMockBalanceStore(ctrl)
	var saved []ports.BalanceRow
	balances.EXPECT().SaveBalances(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, rows []ports.BalanceRow) error {
			saved = rows
			return nil
		}).Times(2)

	ops := mocks.NewMockOperationStore(ctrl)
	ops.EXPECT().AppendOperations(gomock.Any(), gomock.Any(), k.OperationLog().RunID().String(), gomock.Len(2)).Return(nil)

	require.NoError(t, k.Persist(context.Background(), db, balances, ops, 1))
	assert.Contains(t, saved, ports.BalanceRow{AgentID: 10, Currency: "USD", Balance: 10_000, Tick: 1})
	assert.Contains(t, saved, ports.BalanceRow{AgentID: cbID, Currency: "USD", Balance: -10_000, Tick: 1})

	// Nothing new in the operation log: only the snapshot is written.
	require.NoError(t, k.Persist(context.Background(), db, balances, ops, 2))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestKernel_Persist_SaveFailureRollsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	k := newTestKernel(t)
	db := mocks.NewMockDBTransactor(ctrl)
	db.EXPECT().Begin(gomock.Any()).DoAndReturn(func(ctx context.Context) (pgx.Tx, error) {
		return pool.Begin(ctx)
	})
	pool.ExpectBegin()
	pool.ExpectRollback()

	balances := mocks.NewMockBalanceStore(ctrl)
	balances.EXPECT().SaveBalances(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
	ops := mocks.NewMockOperationStore(ctrl)

	err = k.Persist(context.Background(), db, balances, ops, 1)
	assert.ErrorContains(t, err, "save balances")
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestKernel_PublishTelemetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	k := newTestKernel(t)
	pub := mocks.NewMockTelemetryPublisher(ctrl)
	assert.Equal(t, "SET_006", apperror.CodeOf(k.PublishTelemetry(context.Background(), pub)))

	_, err := k.RegisterAgent(10, domain.AgentKindHousehold, -1, 0)
	require.NoError(t, err)
	_, err = k.RunTick(context.Background(), 1, []*domain.Transaction{
		domain.NewTransfer(domain.TransactionTypeLenderOfLastResort, cbID, 10, 300, 1),
	})
	require.NoError(t, err)

	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, s *ports.MonetarySnapshot) error {
			assert.Equal(t, int64(1), s.Tick)
			assert.Equal(t, domain.Money(300), s.Delta)
			assert.Equal(t, domain.Money(0), s.Drift)
			assert.Equal(t, 1, s.Committed)
			assert.Equal(t, k.OperationLog().RunID().String(), s.RunID)
			return nil
		})
	require.NoError(t, k.PublishTelemetry(context.Background(), pub))
}
