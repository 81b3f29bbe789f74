package ports

import (
	"context"

	"settlement-kernel/internal/core/domain"

	"github.com/shopspring/decimal"
)

// AgentDirectory resolves agent ids. An unknown id is a configuration error.
type AgentDirectory interface {
	Register(agent *domain.Agent) error
	Agent(id domain.AgentID) (*domain.Agent, error)
	Agents() []*domain.Agent
}

// SettlementAuthority is the only component allowed to move money between wallets.
type SettlementAuthority interface {
	Transfer(from, to domain.AgentID, amount domain.Money, cur domain.Currency, memo string, tick int64) (*domain.Receipt, error)
	// SettleAtomic debits the debtor once and fans out every credit, or does nothing.
	SettleAtomic(debtor domain.AgentID, credits []domain.Credit, cur domain.Currency, tick int64) (*domain.Receipt, error)
	// CreateAndTransfer mints amount from a creation authority into dest and records the issuance.
	CreateAndTransfer(authority, dest domain.AgentID, amount domain.Money, cur domain.Currency, memo string, tick int64) (*domain.Receipt, error)
	// TransferAndDestroy moves amount into an authority and records the destruction.
	TransferAndDestroy(source, authority domain.AgentID, amount domain.Money, cur domain.Currency, memo string, tick int64) (*domain.Receipt, error)
	// Sweep force-moves every positive balance of from into to.
	Sweep(from, to domain.AgentID, memo string, tick int64) (domain.Balances, error)
	// Compensate replays a compensation log newest first.
	Compensate(log *domain.CompensationLog, tick int64) error
	Balance(id domain.AgentID, cur domain.Currency) (domain.Money, error)
}

// MonetaryLedger books issuance, destruction and system debt.
type MonetaryLedger interface {
	ResetTickFlow(tick int64) error
	ProcessTransactions(txs []*domain.Transaction)
	MonetaryDelta(cur domain.Currency) domain.Money
	TotalM2(cur domain.Currency) domain.Money
	ExpectedM2(cur domain.Currency) domain.Money
	RecordIssuance(cur domain.Currency, amount domain.Money)
	RecordDestruction(cur domain.Currency, amount domain.Money)
	SetBaseM2(cur domain.Currency, amount domain.Money)
	RecordSystemDebtIncrease(cur domain.Currency, amount domain.Money)
	RecordSystemDebtDecrease(cur domain.Currency, amount domain.Money)
	SystemDebt(cur domain.Currency) domain.Money
	Issued(cur domain.Currency) domain.Money
	Destroyed(cur domain.Currency) domain.Money
}

// HandlerContext carries the collaborators a handler may use for one intent.
type HandlerContext struct {
	Tick       int64
	Currency   domain.Currency
	Roles      domain.Roles
	Settlement SettlementAuthority
	Directory  AgentDirectory
	Taxes      TaxPolicy
	Loans      LoanBook
	Ledger     MonetaryLedger
	Market     MarketData
}

// TransactionHandler settles one transaction type.
// A non-nil error means no money moved.
type TransactionHandler interface {
	Handle(tx *domain.Transaction, buyer, seller *domain.Agent, hctx *HandlerContext) (*domain.Outcome, error)
}

// Registry applies non-financial effects of a committed transaction. It never touches wallets.
type Registry interface {
	// Validate checks that the seller holds the asset before any money moves.
	Validate(tx *domain.Transaction) error
	Apply(tx *domain.Transaction, outcome *domain.Outcome) error
	// TransferAsset moves a non-cash asset directly. Used by saga compensation.
	TransferAsset(kind domain.AssetKind, assetID string, qty decimal.Decimal, unitPrice domain.Money, from, to domain.AgentID) error
	AddUnit(unit domain.RealEstateUnit) error
	Unit(id string) (domain.RealEstateUnit, bool)
}

// Accounting keeps per-agent revenue and expense counters. It never touches wallets.
type Accounting interface {
	Record(tx *domain.Transaction, outcome *domain.Outcome)
	Finance(id domain.AgentID) FinanceRecord
	ResetTick()
}

// FinanceRecord holds the counters of one agent.
type FinanceRecord struct {
	Revenue     domain.Money `json:"revenue"`
	Expenses    domain.Money `json:"expenses"`
	LaborIncome domain.Money `json:"labor_income"`
	TaxPaid     domain.Money `json:"tax_paid"`
	TaxRevenue  domain.Money `json:"tax_revenue"`
	// Tick* counters are cleared by ResetTick.
	TickRevenue  domain.Money `json:"tick_revenue"`
	TickExpenses domain.Money `json:"tick_expenses"`
}

// TaxPolicy computes taxes with banker's rounding.
type TaxPolicy interface {
	SalesTax(value domain.Money) domain.Money
	IncomeTax(wage domain.Money) domain.Money
	IncomeTaxPayer() string
	InheritanceTax(wealth domain.Money) domain.Money
}

// LoanBook is the commercial bank's mortgage and deposit book.
type LoanBook interface {
	Grant(borrower domain.AgentID, propertyID string, principal domain.Money, tick int64) (*domain.Loan, error)
	Void(loanID string) error
	Deposit(customer domain.AgentID, amount domain.Money)
	WithdrawForCustomer(customer domain.AgentID, amount domain.Money) error
	DepositOf(customer domain.AgentID) domain.Money
	Loan(loanID string) (*domain.Loan, bool)
}

// MarketData exposes last traded prices.
type MarketData interface {
	LastPrice(itemID string) (domain.Money, bool)
}

// AuditService records audit events.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// EstateSettler runs one estate saga to a terminal state.
type EstateSettler interface {
	Settle(saga *domain.EstateSaga, tick int64) error
}

// TelemetryPublisher publishes per-tick monetary snapshots to consumers outside the kernel.
type TelemetryPublisher interface {
	Publish(ctx context.Context, snapshot *MonetarySnapshot) error
	Latest(ctx context.Context) (*MonetarySnapshot, error)
}

// MonetarySnapshot is the per-tick telemetry record.
type MonetarySnapshot struct {
	RunID       string       `json:"run_id"`
	Tick        int64        `json:"tick"`
	Currency    string       `json:"currency"`
	Delta       domain.Money `json:"monetary_delta"`
	ObservedM2  domain.Money `json:"observed_m2"`
	ExpectedM2  domain.Money `json:"expected_m2"`
	Drift       domain.Money `json:"drift"`
	SystemDebt  domain.Money `json:"system_debt"`
	Committed   int          `json:"committed"`
	Failed      int          `json:"failed"`
	SagasFailed int          `json:"sagas_failed"`
}
