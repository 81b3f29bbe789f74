package service

import (
	"io"
	"testing"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"
	"settlement-kernel/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

const (
	cbID     domain.AgentID = 1
	govID    domain.AgentID = 2
	bankID   domain.AgentID = 3
	escrowID domain.AgentID = 4
	pmID     domain.AgentID = 5
)

var testRoles = domain.Roles{
	CreationAuthorities:  []domain.AgentID{cbID},
	DestructionAuthority: cbID,
	CentralBank:          cbID,
	Government:           govID,
	Bank:                 bankID,
	PublicManager:        pmID,
	Escrow:               escrowID,
	LiquidationBuyer:     govID,
}

func defaultTestRates() TaxRates {
	return TaxRates{
		Sales:       decimal.RequireFromString("0.10"),
		Income:      decimal.RequireFromString("0.20"),
		IncomePayer: IncomePayerHousehold,
		Inheritance: decimal.RequireFromString("0.10"),
	}
}

// fixture wires the real settlement components over a fresh directory.
type fixture struct {
	oplog      *domain.OperationLog
	dir        ports.AgentDirectory
	ledger     *MonetaryLedger
	registry   *Registry
	accounting ports.Accounting
	taxes      ports.TaxPolicy
	loans      ports.LoanBook
	settlement *SettlementService
	processor  *TransactionProcessor
	metrics    *metrics.Metrics
}

func newFixture(t *testing.T, rates TaxRates) *fixture {
	t.Helper()
	f := &fixture{
		oplog:   domain.NewOperationLog(),
		dir:     NewAgentDirectory(),
		metrics: metrics.New(prometheus.NewRegistry(), "test"),
	}
	log := newTestLogger()
	f.ledger = NewMonetaryLedger(testRoles, domain.DefaultCurrency, f.metrics, log)
	f.registry = NewRegistry(f.dir, log)
	f.accounting = NewAccounting(testRoles)
	f.taxes = NewTaxPolicy(rates)
	f.loans = NewLoanBook(bankID, MortgageTerms{Rate: decimal.RequireFromString("0.05"), TermTicks: 360}, log)
	f.settlement = NewSettlementService(f.dir, f.ledger, f.registry, testRoles, nil, f.metrics, log)
	f.processor = NewTransactionProcessor(ProcessorDeps{
		Settlement:  f.settlement,
		Directory:   f.dir,
		Ledger:      f.ledger,
		Registry:    f.registry,
		Accounting:  f.accounting,
		Taxes:       f.taxes,
		Loans:       f.loans,
		Market:      f.registry,
		Roles:       testRoles,
		Currency:    domain.DefaultCurrency,
		MortgageLTV: decimal.RequireFromString("0.8"),
	}, f.metrics, log)

	f.add(t, cbID, domain.AgentKindCentralBank, 0)
	f.add(t, govID, domain.AgentKindGovernment, 0)
	f.add(t, bankID, domain.AgentKindBank, 0)
	f.add(t, escrowID, domain.AgentKindEscrow, 0)
	f.add(t, pmID, domain.AgentKindPublicManager, 0)
	return f
}

// add registers an agent with balance loaded directly, bypassing the operation log.
func (f *fixture) add(t *testing.T, id domain.AgentID, kind domain.AgentKind, balance domain.Money) *domain.Agent {
	t.Helper()
	a := domain.NewAgent(id, kind, f.oplog, testRoles.IsCreationAuthority(id))
	require.NoError(t, f.dir.Register(a))
	if balance != 0 {
		a.Wallet.LoadBalances(map[domain.Currency]domain.Money{domain.DefaultCurrency: balance})
	}
	return a
}

func (f *fixture) agent(t *testing.T, id domain.AgentID) *domain.Agent {
	t.Helper()
	a, err := f.dir.Agent(id)
	require.NoError(t, err)
	return a
}

func (f *fixture) balance(t *testing.T, id domain.AgentID) domain.Money {
	t.Helper()
	return f.agent(t, id).Wallet.Balance(domain.DefaultCurrency)
}

func (f *fixture) hctx(tick int64) *ports.HandlerContext {
	return &ports.HandlerContext{
		Tick:       tick,
		Currency:   domain.DefaultCurrency,
		Roles:      testRoles,
		Settlement: f.settlement,
		Directory:  f.dir,
		Taxes:      f.taxes,
		Loans:      f.loans,
		Ledger:     f.ledger,
		Market:     f.registry,
	}
}

// total sums every wallet, authorities and escrow included.
func (f *fixture) total(t *testing.T) domain.Money {
	t.Helper()
	var sum domain.Money
	for _, a := range f.dir.Agents() {
		sum += a.Wallet.Balance(domain.DefaultCurrency)
	}
	return sum
}

func money(v int64) *domain.Money {
	m := domain.Money(v)
	return &m
}
