package service

import (
	"fmt"
	"sync"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"
	"settlement-kernel/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MortgageTerms configures the bank's lending.
type MortgageTerms struct {
	Rate      decimal.Decimal
	TermTicks int64
}

// loanBook implements ports.LoanBook for the single commercial bank.
// It tracks loans and deposit liabilities only; money moves through the settlement authority.
type loanBook struct {
	mu       sync.Mutex
	bankID   domain.AgentID
	terms    MortgageTerms
	loans    map[string]*domain.Loan
	deposits map[domain.AgentID]domain.Money
	seq      int64
	log      zerolog.Logger
}

// NewLoanBook creates an empty book for bankID.
func NewLoanBook(bankID domain.AgentID, terms MortgageTerms, log zerolog.Logger) ports.LoanBook {
	return &loanBook{
		bankID:   bankID,
		terms:    terms,
		loans:    make(map[string]*domain.Loan),
		deposits: make(map[domain.AgentID]domain.Money),
		log:      log,
	}
}

// Grant books a mortgage of principal against propertyID.
func (b *loanBook) Grant(borrower domain.AgentID, propertyID string, principal domain.Money, tick int64) (*domain.Loan, error) {
	if principal <= 0 {
		return nil, apperror.ErrLoanRejected(fmt.Sprintf("principal must be positive, got %d", principal))
	}
	if borrower == b.bankID {
		return nil, apperror.ErrLoanRejected("bank cannot lend to itself")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	loan := &domain.Loan{
		ID:          fmt.Sprintf("mortgage-%d", b.seq),
		LenderID:    b.bankID,
		BorrowerID:  borrower,
		PropertyID:  propertyID,
		Principal:   principal,
		Outstanding: principal,
		Rate:        b.terms.Rate,
		TermTicks:   b.terms.TermTicks,
		StartTick:   tick,
		Status:      domain.LoanStatusActive,
	}
	b.loans[loan.ID] = loan
	b.log.Debug().Str("loan_id", loan.ID).Int64("borrower", int64(borrower)).Int64("principal", int64(principal)).Msg("mortgage granted")
	cp := *loan
	return &cp, nil
}

// Void cancels a loan that never took effect.
func (b *loanBook) Void(loanID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	loan, ok := b.loans[loanID]
	if !ok {
		return apperror.ErrNotFound("loan " + loanID)
	}
	loan.Status = domain.LoanStatusVoided
	loan.Outstanding = 0
	return nil
}

// Deposit raises the bank's deposit liability to customer.
func (b *loanBook) Deposit(customer domain.AgentID, amount domain.Money) {
	if amount <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deposits[customer] += amount
}

// WithdrawForCustomer lowers the deposit liability when the customer spends the funds.
func (b *loanBook) WithdrawForCustomer(customer domain.AgentID, amount domain.Money) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deposits[customer] < amount {
		return apperror.ErrInsufficientFunds(int64(customer), int64(amount), int64(b.deposits[customer]))
	}
	b.deposits[customer] -= amount
	return nil
}

func (b *loanBook) DepositOf(customer domain.AgentID) domain.Money {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deposits[customer]
}

func (b *loanBook) Loan(loanID string) (*domain.Loan, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	loan, ok := b.loans[loanID]
	if !ok {
		return nil, false
	}
	cp := *loan
	return &cp, true
}
