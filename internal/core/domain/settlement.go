package domain

import (
	"github.com/google/uuid"
)

// Credit is one payee share of an atomic settlement.
type Credit struct {
	Payee  AgentID
	Amount Money
	Memo   string
}

// Leg is one money movement that actually happened.
type Leg struct {
	From   AgentID `json:"from"`
	To     AgentID `json:"to"`
	Amount Money   `json:"amount"`
	Memo   string  `json:"memo"`
}

// Receipt lists the legs moved by one settlement call.
type Receipt struct {
	ID       uuid.UUID `json:"id"`
	Debtor   AgentID   `json:"debtor"`
	Legs     []Leg     `json:"legs"`
	Total    Money     `json:"total"`
	Currency Currency  `json:"currency"`
	Tick     int64     `json:"tick"`
}

// NewReceipt starts an empty receipt.
func NewReceipt(debtor AgentID, cur Currency, tick int64) *Receipt {
	return &Receipt{ID: uuid.New(), Debtor: debtor, Currency: cur, Tick: tick}
}

// AddLeg appends a leg and updates the total.
func (r *Receipt) AddLeg(from, to AgentID, amount Money, memo string) {
	r.Legs = append(r.Legs, Leg{From: from, To: to, Amount: amount, Memo: memo})
	r.Total += amount
}

// Merge appends the legs of other.
func (r *Receipt) Merge(other *Receipt) {
	if other == nil {
		return
	}
	for _, l := range other.Legs {
		r.AddLeg(l.From, l.To, l.Amount, l.Memo)
	}
}

// Outcome is what a handler reports after a successful settlement.
type Outcome struct {
	Receipt    *Receipt
	TradeValue Money // value of the goods or service exchanged
	BuyerCost  Money // total debited from the buyer, taxes included
	SellerNet  Money // credited to the seller after taxes
	Tax        Money
	TaxPayer   AgentID
	Issued     Money // minted by this transaction
	Destroyed  Money // burned by this transaction
	MortgageID string
	FollowUps  []*Transaction
}

// TxStatus is the per-intent result.
type TxStatus string

const (
	TxCommitted TxStatus = "committed"
	TxFailed    TxStatus = "failed"
	TxSkipped   TxStatus = "skipped"
)

// TxResult reports what happened to one intent.
type TxResult struct {
	Tx      *Transaction
	Status  TxStatus
	Outcome *Outcome
	Err     error
}

// Success reports whether the intent settled.
func (r TxResult) Success() bool { return r.Status == TxCommitted }
