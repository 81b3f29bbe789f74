package service

import (
	"sync"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/metrics"
	"settlement-kernel/pkg/apperror"

	"github.com/rs/zerolog"
)

// MonetaryLedger implements ports.MonetaryLedger.
type MonetaryLedger struct {
	mu sync.Mutex

	roles      domain.Roles
	defaultCur domain.Currency

	issued    domain.Balances
	destroyed domain.Balances
	baseM2    domain.Balances
	debt      domain.Balances

	// cumulative figures at the last ResetTickFlow
	snapIssued    domain.Balances
	snapDestroyed domain.Balances
	lastTick      int64
	everReset     bool

	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewMonetaryLedger creates a ledger with every counter at zero.
func NewMonetaryLedger(roles domain.Roles, defaultCur domain.Currency, m *metrics.Metrics, log zerolog.Logger) *MonetaryLedger {
	return &MonetaryLedger{
		roles:         roles,
		defaultCur:    defaultCur,
		issued:        domain.Balances{},
		destroyed:     domain.Balances{},
		baseM2:        domain.Balances{},
		debt:          domain.Balances{},
		snapIssued:    domain.Balances{},
		snapDestroyed: domain.Balances{},
		metrics:       m,
		log:           log,
	}
}

// ResetTickFlow snapshots the cumulative counters. It must run exactly once per tick,
// before any transaction of that tick.
func (l *MonetaryLedger) ResetTickFlow(tick int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.everReset && tick <= l.lastTick {
		return apperror.ErrTickAlreadyReset(tick)
	}
	l.snapIssued = l.issued.Plus(nil)
	l.snapDestroyed = l.destroyed.Plus(nil)
	l.lastTick = tick
	l.everReset = true
	return nil
}

// ProcessTransactions classifies committed transactions as expansion or contraction.
func (l *MonetaryLedger) ProcessTransactions(txs []*domain.Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, tx := range txs {
		if tx == nil || tx.LedgerRecorded() || tx.Type.IsSymbolic() {
			continue
		}
		cur := tx.CurrencyOr(l.defaultCur)
		payer, payee := tx.BuyerID, tx.SellerID

		switch {
		case l.roles.InAuthoritySet(payer) && !l.roles.InSystemSet(payee):
			l.issued[cur] += tx.TradeValue()
		case l.roles.InAuthoritySet(payee) && !l.roles.InSystemSet(payer):
			l.destroyed[cur] += contractionAmount(tx)
		case tx.Type.IsExpansionTag():
			l.issued[cur] += tx.TradeValue()
		case tx.Type.IsContractionTag():
			l.destroyed[cur] += contractionAmount(tx)
		}
	}
}

// Interest on a bond repayment is neutral; only the principal leaves circulation.
func contractionAmount(tx *domain.Transaction) domain.Money {
	if tx.Type == domain.TransactionTypeBondRepayment {
		return tx.Principal()
	}
	return tx.TradeValue()
}

// MonetaryDelta returns issuance minus destruction since the last reset.
func (l *MonetaryLedger) MonetaryDelta(cur domain.Currency) domain.Money {
	l.mu.Lock()
	defer l.mu.Unlock()
	return (l.issued[cur] - l.snapIssued[cur]) - (l.destroyed[cur] - l.snapDestroyed[cur])
}

// TickFlow returns issuance and destruction since the last reset.
func (l *MonetaryLedger) TickFlow(cur domain.Currency) (issued, destroyed domain.Money) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.issued[cur] - l.snapIssued[cur], l.destroyed[cur] - l.snapDestroyed[cur]
}

// TotalM2 is the ledger's money supply: base + issued − destroyed, floored at 0.
func (l *MonetaryLedger) TotalM2(cur domain.Currency) domain.Money {
	return l.ExpectedM2(cur)
}

// ExpectedM2 returns base + issued − destroyed, floored at 0.
func (l *MonetaryLedger) ExpectedM2(cur domain.Currency) domain.Money {
	l.mu.Lock()
	defer l.mu.Unlock()
	m2 := l.baseM2[cur] + l.issued[cur] - l.destroyed[cur]
	if m2 < 0 {
		return 0
	}
	return m2
}

func (l *MonetaryLedger) RecordIssuance(cur domain.Currency, amount domain.Money) {
	if amount <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.issued[cur] += amount
}

func (l *MonetaryLedger) RecordDestruction(cur domain.Currency, amount domain.Money) {
	if amount <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.destroyed[cur] += amount
}

// SetBaseM2 sets the money supply that existed before the ledger started counting,
// typically after hydrating wallets from storage.
func (l *MonetaryLedger) SetBaseM2(cur domain.Currency, amount domain.Money) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.baseM2[cur] = amount
}

func (l *MonetaryLedger) Issued(cur domain.Currency) domain.Money {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.issued[cur]
}

func (l *MonetaryLedger) Destroyed(cur domain.Currency) domain.Money {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.destroyed[cur]
}

func (l *MonetaryLedger) RecordSystemDebtIncrease(cur domain.Currency, amount domain.Money) {
	if amount <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debt[cur] += amount
}

// RecordSystemDebtDecrease lowers the debt, clamping at zero on underflow.
func (l *MonetaryLedger) RecordSystemDebtDecrease(cur domain.Currency, amount domain.Money) {
	if amount <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount > l.debt[cur] {
		l.log.Warn().
			Err(apperror.ErrUnderflow("total_system_debt")).
			Str("currency", string(cur)).
			Int64("debt", int64(l.debt[cur])).
			Int64("decrease", int64(amount)).
			Msg("system debt underflow clamped at zero")
		l.metrics.IncrementDebtUnderflow()
		l.debt[cur] = 0
		return
	}
	l.debt[cur] -= amount
}

func (l *MonetaryLedger) SystemDebt(cur domain.Currency) domain.Money {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debt[cur]
}
