package domain

import (
	"encoding/json"
	"fmt"
	"math"

	"settlement-kernel/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType selects the handler that settles an intent.
type TransactionType string

const (
	TransactionTypeGoods                   TransactionType = "goods"
	TransactionTypeLabor                   TransactionType = "labor"
	TransactionTypeResearchLabor           TransactionType = "research_labor"
	TransactionTypeStock                   TransactionType = "stock"
	TransactionTypeHousing                 TransactionType = "housing"
	TransactionTypeAssetTransfer           TransactionType = "asset_transfer"
	TransactionTypeGovernmentSpending      TransactionType = "government_spending"
	TransactionTypeEmergencyBuy            TransactionType = "emergency_buy"
	TransactionTypeEscheatment             TransactionType = "escheatment"
	TransactionTypeInheritanceDistribution TransactionType = "inheritance_distribution"
	TransactionTypeTax                     TransactionType = "tax"
	TransactionTypeTransfer                TransactionType = "transfer"

	// Monetary policy.
	TransactionTypeLenderOfLastResort TransactionType = "lender_of_last_resort"
	TransactionTypeAssetLiquidation   TransactionType = "asset_liquidation"
	TransactionTypeBondPurchase       TransactionType = "bond_purchase"
	TransactionTypeOMOPurchase        TransactionType = "omo_purchase"
	TransactionTypeBondRepayment      TransactionType = "bond_repayment"
	TransactionTypeOMOSale            TransactionType = "omo_sale"
	TransactionTypeBondInterest       TransactionType = "bond_interest"

	// Symbolic records of credit already created or destroyed elsewhere. No money moves.
	TransactionTypeCreditCreation    TransactionType = "credit_creation"
	TransactionTypeCreditDestruction TransactionType = "credit_destruction"
)

// IsSymbolic reports whether t only documents a movement that happened elsewhere.
func (t TransactionType) IsSymbolic() bool {
	return t == TransactionTypeCreditCreation || t == TransactionTypeCreditDestruction
}

// IsExpansionTag reports whether t is issuance when the counterparties alone cannot tell.
func (t TransactionType) IsExpansionTag() bool {
	switch t {
	case TransactionTypeLenderOfLastResort, TransactionTypeAssetLiquidation,
		TransactionTypeBondPurchase, TransactionTypeOMOPurchase:
		return true
	}
	return false
}

// IsContractionTag reports whether t is destruction when the counterparties alone cannot tell.
func (t TransactionType) IsContractionTag() bool {
	return t == TransactionTypeBondRepayment || t == TransactionTypeOMOSale
}

// Metadata keys understood by the kernel.
const (
	MetaExecuted       = "executed"        // already settled, skip on re-submission
	MetaLedgerRecorded = "ledger_recorded" // monetary effect already booked by the handler
	MetaPrincipal      = "principal"       // Money, principal share of a bond repayment
	MetaHeirIDs        = "heir_ids"        // []AgentID for inheritance distribution
	MetaAssetKind      = "asset_kind"      // AssetKind moved by asset transfers and liquidations
	MetaSagaID         = "saga_id"
	MetaMortgageID     = "mortgage_id"
	MetaUseMortgage    = "use_mortgage" // housing purchase financed by the bank
)

// AssetKind names the non-cash asset moved by a transaction.
type AssetKind string

const (
	AssetGoods      AssetKind = "goods"
	AssetStock      AssetKind = "stock"
	AssetRealEstate AssetKind = "real_estate"
)

// Transaction is an intent produced upstream and settled by the kernel.
type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	BuyerID      AgentID         `json:"buyer_id"`
	SellerID     AgentID         `json:"seller_id"`
	ItemID       string          `json:"item_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        Money           `json:"price"`                   // per unit
	TotalPennies *Money          `json:"total_pennies,omitempty"` // overrides price × quantity
	MarketID     string          `json:"market_id,omitempty"`
	Type         TransactionType `json:"transaction_type"`
	Currency     Currency        `json:"currency,omitempty"`
	Tick         int64           `json:"tick"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
}

// NewTransfer builds a lump-sum intent whose value is exactly amount.
func NewTransfer(txType TransactionType, buyer, seller AgentID, amount Money, tick int64) *Transaction {
	total := amount
	return &Transaction{
		ID:           uuid.New(),
		BuyerID:      buyer,
		SellerID:     seller,
		Quantity:     decimal.NewFromInt(1),
		Price:        amount,
		TotalPennies: &total,
		Type:         txType,
		Tick:         tick,
	}
}

// TradeValue returns the settlement value in minor units.
func (t *Transaction) TradeValue() Money {
	if t.TotalPennies != nil {
		return *t.TotalPennies
	}
	return PriceTimes(t.Price, t.Quantity)
}

// CurrencyOr returns the transaction currency, or def when unset.
func (t *Transaction) CurrencyOr(def Currency) Currency {
	if t.Currency == "" {
		return def
	}
	return t.Currency
}

// SetMeta stores a metadata value.
func (t *Transaction) SetMeta(key string, v any) {
	if t.Metadata == nil {
		t.Metadata = make(map[string]any)
	}
	t.Metadata[key] = v
}

// MetaBool reads a boolean flag. Absent or non-bool values read as false.
func (t *Transaction) MetaBool(key string) bool {
	v, ok := t.Metadata[key].(bool)
	return ok && v
}

// MetaString reads a string value.
func (t *Transaction) MetaString(key string) string {
	v, _ := t.Metadata[key].(string)
	return v
}

// MetaMoney reads a whole amount. Values decoded from JSON arrive as float64 and must be integral.
func (t *Transaction) MetaMoney(key string) (Money, bool) {
	n, ok := wholeNumber(t.Metadata[key])
	return Money(n), ok
}

func wholeNumber(v any) (int64, bool) {
	switch n := v.(type) {
	case Money:
		return int64(n), true
	case AgentID:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// IsExecuted reports whether the intent was already settled.
func (t *Transaction) IsExecuted() bool { return t.MetaBool(MetaExecuted) }

// MarkExecuted flags the intent as settled.
func (t *Transaction) MarkExecuted() { t.SetMeta(MetaExecuted, true) }

// LedgerRecorded reports whether the monetary ledger must skip this transaction.
func (t *Transaction) LedgerRecorded() bool { return t.MetaBool(MetaLedgerRecorded) }

// MarkLedgerRecorded flags the monetary effect as already booked.
func (t *Transaction) MarkLedgerRecorded() { t.SetMeta(MetaLedgerRecorded, true) }

// Principal returns the principal share of a repayment, or the full value when absent.
func (t *Transaction) Principal() Money {
	if p, ok := t.MetaMoney(MetaPrincipal); ok && p >= 0 && p <= t.TradeValue() {
		return p
	}
	return t.TradeValue()
}

// HeirIDs returns the heirs named in metadata.
func (t *Transaction) HeirIDs() []AgentID {
	ids, _ := heirIDs(t.Metadata[MetaHeirIDs])
	return ids
}

func heirIDs(v any) ([]AgentID, bool) {
	switch l := v.(type) {
	case nil:
		return nil, true
	case []AgentID:
		return l, true
	case []int64:
		ids := make([]AgentID, len(l))
		for i, id := range l {
			ids[i] = AgentID(id)
		}
		return ids, true
	case []any:
		ids := make([]AgentID, len(l))
		for i, raw := range l {
			id, ok := wholeNumber(raw)
			if !ok {
				return nil, false
			}
			ids[i] = AgentID(id)
		}
		return ids, true
	}
	return nil, false
}

// ValidateMetadata rejects amounts and ids that are not whole numbers.
func (t *Transaction) ValidateMetadata() error {
	if v, ok := t.Metadata[MetaPrincipal]; ok {
		if _, whole := wholeNumber(v); !whole {
			return apperror.ErrMalformedConfig(fmt.Sprintf("transaction %s: principal %v is not a whole minor-unit amount", t.ID, v))
		}
	}
	if _, ok := heirIDs(t.Metadata[MetaHeirIDs]); !ok {
		return apperror.ErrMalformedConfig(fmt.Sprintf("transaction %s: heir_ids %v are not agent ids", t.ID, t.Metadata[MetaHeirIDs]))
	}
	return nil
}

// ShareID names the stock issued by a firm.
func ShareID(firm AgentID) string {
	return fmt.Sprintf("stock_%d", firm)
}

// AssetKind returns the asset moved by the transaction.
func (t *Transaction) AssetKind() AssetKind {
	if k := AssetKind(t.MetaString(MetaAssetKind)); k != "" {
		return k
	}
	switch t.Type {
	case TransactionTypeStock:
		return AssetStock
	case TransactionTypeHousing:
		return AssetRealEstate
	}
	return AssetGoods
}
