package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockHolding is one valued stock position of an estate.
type StockHolding struct {
	ItemID    string          `json:"item_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice Money           `json:"unit_price"`
	Value     Money           `json:"value"`
}

// PropertyHolding is one valued real estate unit of an estate.
type PropertyHolding struct {
	UnitID string `json:"unit_id"`
	Value  Money  `json:"value"`
}

// EstateValuation is the snapshot taken at death. It is never modified afterwards.
type EstateValuation struct {
	DeceasedID      AgentID           `json:"deceased_id"`
	Currency        Currency          `json:"currency"`
	Cash            Money             `json:"cash"`
	RealEstateValue Money             `json:"real_estate_value"`
	StockValue      Money             `json:"stock_value"`
	TotalWealth     Money             `json:"total_wealth"`
	TaxDue          Money             `json:"tax_due"`
	Stocks          []StockHolding    `json:"stock_holdings"`
	Properties      []PropertyHolding `json:"property_holdings"`
}

// SagaState is a step of the estate settlement pipeline.
type SagaState string

const (
	SagaValuation        SagaState = "VALUATION"
	SagaTaxComputed      SagaState = "TAX_COMPUTED"
	SagaLiquidation      SagaState = "LIQUIDATION"
	SagaTaxPaid          SagaState = "TAX_PAID"
	SagaDistribution     SagaState = "DISTRIBUTION"
	SagaEscheatment      SagaState = "ESCHEATMENT"
	SagaDustSweep        SagaState = "DUST_SWEEP"
	SagaDone             SagaState = "DONE"
	SagaFailedRolledBack SagaState = "FAILED_ROLLED_BACK"
	SagaRollbackFailed   SagaState = "ROLLBACK_FAILED"
)

// IsTerminal reports whether no further step can run.
func (s SagaState) IsTerminal() bool {
	return s == SagaDone || s == SagaFailedRolledBack || s == SagaRollbackFailed
}

// EstateSaga settles one decedent. It is created once and consumed once.
type EstateSaga struct {
	ID           uuid.UUID        `json:"id"`
	DeceasedID   AgentID          `json:"deceased_id"`
	HeirIDs      []AgentID        `json:"heir_ids"`
	GovernmentID AgentID          `json:"government_id"`
	Valuation    *EstateValuation `json:"valuation"`
	Tick         int64            `json:"tick"`
	State        SagaState        `json:"state"`
	History      []SagaState      `json:"history"`

	Compensation *CompensationLog `json:"-"`
	Executed     []*Transaction   `json:"-"`
	consumed     bool
}

// NewEstateSaga creates a saga in the VALUATION state.
func NewEstateSaga(v *EstateValuation, heirs []AgentID, government AgentID, tick int64) *EstateSaga {
	return &EstateSaga{
		ID:           uuid.New(),
		DeceasedID:   v.DeceasedID,
		HeirIDs:      append([]AgentID(nil), heirs...),
		GovernmentID: government,
		Valuation:    v,
		Tick:         tick,
		State:        SagaValuation,
		History:      []SagaState{SagaValuation},
		Compensation: &CompensationLog{},
	}
}

// Advance moves the saga to state and records it in the history.
func (s *EstateSaga) Advance(state SagaState) {
	s.State = state
	s.History = append(s.History, state)
}

// Consume marks the saga as taken for execution. It returns false if it already was.
func (s *EstateSaga) Consume() bool {
	if s.consumed {
		return false
	}
	s.consumed = true
	return true
}
