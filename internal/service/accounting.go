package service

import (
	"sync"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"
)

type accounting struct {
	mu      sync.RWMutex
	roles   domain.Roles
	records map[domain.AgentID]*ports.FinanceRecord
}

// NewAccounting creates the per-agent revenue and expense book.
func NewAccounting(roles domain.Roles) ports.Accounting {
	return &accounting{roles: roles, records: make(map[domain.AgentID]*ports.FinanceRecord)}
}

// Record books a committed transaction.
func (a *accounting) Record(tx *domain.Transaction, outcome *domain.Outcome) {
	if outcome == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	switch tx.Type {
	case domain.TransactionTypeLabor, domain.TransactionTypeResearchLabor:
		a.expense(tx.BuyerID, outcome.BuyerCost)
		a.get(tx.SellerID).LaborIncome += outcome.SellerNet
	case domain.TransactionTypeGoods, domain.TransactionTypeEmergencyBuy, domain.TransactionTypeStock,
		domain.TransactionTypeHousing, domain.TransactionTypeAssetTransfer, domain.TransactionTypeAssetLiquidation,
		domain.TransactionTypeGovernmentSpending:
		a.expense(tx.BuyerID, outcome.BuyerCost)
		a.revenue(tx.SellerID, outcome.SellerNet)
	}

	if outcome.Tax > 0 {
		payer := outcome.TaxPayer
		if payer == 0 {
			payer = tx.BuyerID
		}
		a.get(payer).TaxPaid += outcome.Tax
		a.get(a.roles.Government).TaxRevenue += outcome.Tax
	}
}

func (a *accounting) expense(id domain.AgentID, amount domain.Money) {
	r := a.get(id)
	r.Expenses += amount
	r.TickExpenses += amount
}

func (a *accounting) revenue(id domain.AgentID, amount domain.Money) {
	r := a.get(id)
	r.Revenue += amount
	r.TickRevenue += amount
}

func (a *accounting) get(id domain.AgentID) *ports.FinanceRecord {
	r, ok := a.records[id]
	if !ok {
		r = &ports.FinanceRecord{}
		a.records[id] = r
	}
	return r
}

// Finance returns a copy of the counters of id.
func (a *accounting) Finance(id domain.AgentID) ports.FinanceRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if r, ok := a.records[id]; ok {
		return *r
	}
	return ports.FinanceRecord{}
}

// ResetTick clears the per-tick counters.
func (a *accounting) ResetTick() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.records {
		r.TickRevenue = 0
		r.TickExpenses = 0
	}
}
