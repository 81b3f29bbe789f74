package service

import (
	"context"
	"testing"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/pkg/apperror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEstates(f *fixture, fireSale string) *InheritanceManager {
	return NewInheritanceManager(f.dir, f.settlement, f.processor, f.registry, f.registry, f.taxes,
		testRoles, domain.DefaultCurrency,
		EstateOptions{FireSaleDiscount: decimal.RequireFromString(fireSale), ValuationWorkers: 2},
		newTestLogger())
}

func (f *fixture) addUnit(t *testing.T, id string, owner domain.AgentID, value domain.Money) {
	t.Helper()
	require.NoError(t, f.registry.AddUnit(domain.RealEstateUnit{ID: id, OwnerID: owner, EstimatedValue: value}))
}

func newSaga(t *testing.T, m *InheritanceManager, id domain.AgentID, heirs []domain.AgentID) *domain.EstateSaga {
	t.Helper()
	v, err := m.Value(id)
	require.NoError(t, err)
	return domain.NewEstateSaga(v, heirs, govID, 1)
}

func TestInheritanceManager_Value(t *testing.T) {
	f := newFixture(t, defaultTestRates())
	dec := f.add(t, 10, domain.AgentKindHousehold, 10_000)
	f.addUnit(t, "u1", 10, 5_000)
	dec.Portfolio().Add("ACME", decimal.NewFromInt(10), 50)
	dec.Portfolio().Add("BOLT", decimal.NewFromInt(4), 25)
	f.registry.RecordPrice("ACME", 80)

	m := newTestEstates(f, "0.5")
	v, err := m.Value(10)
	require.NoError(t, err)

	assert.Equal(t, domain.Money(10_000), v.Cash)
	assert.Equal(t, domain.Money(5_000), v.RealEstateValue)
	// ACME at the last traded price, BOLT at its cost basis.
	assert.Equal(t, domain.Money(800+100), v.StockValue)
	assert.Equal(t, domain.Money(15_900), v.TotalWealth)
	assert.Equal(t, domain.Money(1_590), v.TaxDue)
	assert.Zero(t, f.oplog.Len(), "valuation only reads")
}

func TestInheritanceManager_ValueEstates(t *testing.T) {
	f := newFixture(t, defaultTestRates())
	ids := []domain.AgentID{10, 11, 12, 13}
	for i, id := range ids {
		f.add(t, id, domain.AgentKindHousehold, domain.Money(1_000*(i+1)))
	}
	m := newTestEstates(f, "0.5")

	vals, err := m.ValueEstates(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, vals, 4)
	for i, v := range vals {
		assert.Equal(t, ids[i], v.DeceasedID)
		assert.Equal(t, domain.Money(1_000*(i+1)), v.Cash)
	}

	_, err = m.ValueEstates(context.Background(), []domain.AgentID{10, 999})
	assert.Equal(t, "CFG_001", apperror.CodeOf(err))
}

func TestInheritanceManager_Settle_Distribution(t *testing.T) {
	f := newFixture(t, defaultTestRates())
	dec := f.add(t, 10, domain.AgentKindHousehold, 10_000)
	f.add(t, 20, domain.AgentKindHousehold, 0)
	f.add(t, 21, domain.AgentKindHousehold, 0)
	f.addUnit(t, "u1", 10, 5_000)
	f.addUnit(t, "u2", 10, 5_000)
	dec.Portfolio().Add("ACME", decimal.NewFromInt(10), 50)

	m := newTestEstates(f, "0.5")
	saga := newSaga(t, m, 10, []domain.AgentID{20, 21})
	require.Equal(t, domain.Money(2_050), saga.Valuation.TaxDue)

	require.NoError(t, m.Settle(saga, 1))
	assert.Equal(t, domain.SagaDone, saga.State)
	assert.Equal(t, []domain.SagaState{
		domain.SagaValuation, domain.SagaTaxComputed, domain.SagaTaxPaid,
		domain.SagaDistribution, domain.SagaDustSweep, domain.SagaDone,
	}, saga.History)

	assert.Equal(t, domain.Money(2_050), f.balance(t, govID))
	assert.Equal(t, domain.Money(3_975), f.balance(t, 20))
	assert.Equal(t, domain.Money(3_975), f.balance(t, 21))
	assert.Equal(t, domain.Money(0), f.balance(t, 10))

	u1, _ := f.registry.Unit("u1")
	u2, _ := f.registry.Unit("u2")
	assert.Equal(t, domain.AgentID(20), u1.OwnerID)
	assert.Equal(t, domain.AgentID(21), u2.OwnerID)

	h, ok := f.agent(t, 20).Portfolio().Holding("ACME")
	require.True(t, ok, "third asset wraps around to the first heir")
	assert.True(t, h.Quantity.Equal(decimal.NewFromInt(10)))
	assert.Empty(t, dec.Properties())
	assert.Equal(t, 0, saga.Compensation.Len())
	assert.NotEmpty(t, saga.Executed)
}

func TestInheritanceManager_Settle_SkipsInactiveHeirs(t *testing.T) {
	f := newFixture(t, defaultTestRates())
	f.add(t, 10, domain.AgentKindHousehold, 1_000)
	f.add(t, 20, domain.AgentKindHousehold, 0)
	gone := f.add(t, 21, domain.AgentKindHousehold, 0)
	gone.Deactivate()

	m := newTestEstates(f, "0.5")
	saga := newSaga(t, m, 10, []domain.AgentID{20, 21})
	require.NoError(t, m.Settle(saga, 1))

	assert.Equal(t, domain.Money(900), f.balance(t, 20))
	assert.Equal(t, domain.Money(0), f.balance(t, 21))
}

func TestInheritanceManager_Settle_EscheatWithoutHeirs(t *testing.T) {
	f := newFixture(t, defaultTestRates())
	dec := f.add(t, 10, domain.AgentKindHousehold, 1_000)
	dec.Wallet.LoadBalances(map[domain.Currency]domain.Money{"USD": 1_000, "EUR": 40})
	f.addUnit(t, "u1", 10, 0)

	m := newTestEstates(f, "0.5")
	saga := newSaga(t, m, 10, nil)
	require.NoError(t, m.Settle(saga, 1))

	assert.Contains(t, saga.History, domain.SagaEscheatment)
	assert.Equal(t, domain.Money(1_000), f.balance(t, govID))
	assert.Equal(t, domain.Money(40), f.agent(t, govID).Wallet.Balance("EUR"))
	assert.Empty(t, dec.Wallet.Balances())
	u, _ := f.registry.Unit("u1")
	assert.Equal(t, govID, u.OwnerID)
}

func TestInheritanceManager_Settle_Liquidation(t *testing.T) {
	f := newFixture(t, defaultTestRates())
	f.agent(t, govID).Wallet.LoadBalances(map[domain.Currency]domain.Money{"USD": 50_000})
	dec := f.add(t, 10, domain.AgentKindHousehold, 100)
	f.add(t, 20, domain.AgentKindHousehold, 0)
	f.addUnit(t, "u1", 10, 10_000)

	m := newTestEstates(f, "0.5")
	saga := newSaga(t, m, 10, []domain.AgentID{20})
	require.Equal(t, domain.Money(1_010), saga.Valuation.TaxDue)

	require.NoError(t, m.Settle(saga, 1))
	assert.Contains(t, saga.History, domain.SagaLiquidation)

	// Fire sale at half the estimate, then tax, then the rest to the heir.
	assert.Equal(t, domain.Money(100+5_000-1_010), f.balance(t, 20))
	assert.Equal(t, domain.Money(50_000-5_000+1_010), f.balance(t, govID))
	u, _ := f.registry.Unit("u1")
	assert.Equal(t, govID, u.OwnerID)
	assert.Empty(t, dec.Properties())
}

func TestInheritanceManager_Settle_ShortfallRollsBack(t *testing.T) {
	rates := defaultTestRates()
	rates.Inheritance = decimal.RequireFromString("0.5")
	f := newFixture(t, rates)
	f.agent(t, govID).Wallet.LoadBalances(map[domain.Currency]domain.Money{"USD": 10_000})
	dec := f.add(t, 10, domain.AgentKindHousehold, 0)
	f.add(t, 20, domain.AgentKindHousehold, 0)
	f.addUnit(t, "u1", 10, 10_000)

	m := newTestEstates(f, "0.6")
	saga := newSaga(t, m, 10, []domain.AgentID{20})
	require.Equal(t, domain.Money(5_000), saga.Valuation.TaxDue)

	err := m.Settle(saga, 1)
	require.Error(t, err)
	assert.Equal(t, "SET_004", apperror.CodeOf(err))
	assert.Equal(t, domain.SagaFailedRolledBack, saga.State)

	// The 4,000 fire sale did not cover the tax, so it is undone.
	assert.Equal(t, domain.Money(10_000), f.balance(t, govID))
	assert.Equal(t, domain.Money(0), f.balance(t, 10))
	u, _ := f.registry.Unit("u1")
	assert.Equal(t, domain.AgentID(10), u.OwnerID)
	assert.Equal(t, []string{"u1"}, dec.Properties())
	assert.Equal(t, 0, saga.Compensation.Len())
}

func TestInheritanceManager_Settle_RollbackFailure(t *testing.T) {
	f := newFixture(t, defaultTestRates())
	f.add(t, 10, domain.AgentKindHousehold, 1_000)
	f.add(t, 20, domain.AgentKindHousehold, 0)
	f.agent(t, govID).Wallet.Close()

	m := newTestEstates(f, "0.5")
	saga := newSaga(t, m, 10, []domain.AgentID{20})
	// An undo that cannot be replayed: the heir never received anything.
	saga.Compensation.Record(domain.CompensationAction{
		Kind: domain.CompensateTransfer, From: 10, To: 20, Amount: 1, Currency: "USD", Memo: "stale",
	})

	err := m.Settle(saga, 1)
	require.Error(t, err)
	assert.Equal(t, domain.SagaRollbackFailed, saga.State)
	assert.Equal(t, apperror.KindAnomaly, apperror.KindOf(err))
	assert.Equal(t, domain.Money(1_000), f.balance(t, 10))
}

func TestInheritanceManager_Settle_ConfigurationError(t *testing.T) {
	const unregisteredGov domain.AgentID = 99

	t.Run("rolled back", func(t *testing.T) {
		f := newFixture(t, defaultTestRates())
		f.add(t, 10, domain.AgentKindHousehold, 1_000)
		f.add(t, 20, domain.AgentKindHousehold, 0)

		m := newTestEstates(f, "0.5")
		v, err := m.Value(10)
		require.NoError(t, err)
		saga := domain.NewEstateSaga(v, []domain.AgentID{20}, unregisteredGov, 1)

		err = m.Settle(saga, 1)
		assert.Equal(t, "CFG_001", apperror.CodeOf(err))
		assert.Equal(t, domain.SagaFailedRolledBack, saga.State)
		assert.Equal(t, domain.Money(1_000), f.balance(t, 10))
	})

	t.Run("rollback fails", func(t *testing.T) {
		f := newFixture(t, defaultTestRates())
		f.add(t, 10, domain.AgentKindHousehold, 1_000)
		f.add(t, 20, domain.AgentKindHousehold, 0)

		m := newTestEstates(f, "0.5")
		v, err := m.Value(10)
		require.NoError(t, err)
		saga := domain.NewEstateSaga(v, []domain.AgentID{20}, unregisteredGov, 1)
		saga.Compensation.Record(domain.CompensationAction{
			Kind: domain.CompensateTransfer, From: 10, To: 20, Amount: 1, Currency: "USD", Memo: "stale",
		})

		err = m.Settle(saga, 1)
		require.Error(t, err)
		assert.True(t, apperror.IsConfiguration(err))
		assert.Equal(t, domain.SagaRollbackFailed, saga.State)
		assert.Equal(t, 1, saga.Compensation.Len(), "undo log is kept for inspection")
	})
}
