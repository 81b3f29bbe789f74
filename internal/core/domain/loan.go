package domain

import (
	"github.com/shopspring/decimal"
)

// LoanStatus represents the lifecycle state of a loan.
type LoanStatus string

const (
	LoanStatusActive LoanStatus = "ACTIVE"
	LoanStatusVoided LoanStatus = "VOIDED"
	LoanStatusRepaid LoanStatus = "REPAID"
)

// Loan is a mortgage granted by the commercial bank.
type Loan struct {
	ID          string          `json:"id"`
	LenderID    AgentID         `json:"lender_id"`
	BorrowerID  AgentID         `json:"borrower_id"`
	PropertyID  string          `json:"property_id"`
	Principal   Money           `json:"principal"`
	Outstanding Money           `json:"outstanding"`
	Rate        decimal.Decimal `json:"rate"`
	TermTicks   int64           `json:"term_ticks"`
	StartTick   int64           `json:"start_tick"`
	Status      LoanStatus      `json:"status"`
}

// IsActive reports whether the loan is outstanding.
func (l *Loan) IsActive() bool {
	return l.Status == LoanStatusActive
}
