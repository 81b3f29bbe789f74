package domain

import (
	"github.com/shopspring/decimal"
)

// CompensationKind names how a forward step is undone.
type CompensationKind string

const (
	// CompensateTransfer moves Amount back from To to From.
	CompensateTransfer CompensationKind = "reverse_transfer"
	// CompensateMint burns Amount from To back into the authority From.
	CompensateMint CompensationKind = "reverse_mint"
	// CompensateBurn re-issues Amount from the authority To back to From.
	CompensateBurn CompensationKind = "reverse_burn"
	// CompensateAsset hands the asset back from To to From.
	CompensateAsset CompensationKind = "return_asset"
)

// CompensationAction undoes one successful forward step. From and To describe the
// forward direction.
type CompensationAction struct {
	Kind      CompensationKind `json:"kind"`
	From      AgentID          `json:"from"`
	To        AgentID          `json:"to"`
	Amount    Money            `json:"amount,omitempty"`
	Currency  Currency         `json:"currency,omitempty"`
	AssetKind AssetKind        `json:"asset_kind,omitempty"`
	AssetID   string           `json:"asset_id,omitempty"`
	Quantity  decimal.Decimal  `json:"quantity,omitempty"`
	UnitPrice Money            `json:"unit_price,omitempty"`
	Memo      string           `json:"memo"`
}

// CompensationLog collects undo actions as forward steps succeed. Replay is newest first.
type CompensationLog struct {
	actions []CompensationAction
}

// Record appends an action.
func (l *CompensationLog) Record(a CompensationAction) {
	l.actions = append(l.actions, a)
}

// Len returns the number of recorded actions.
func (l *CompensationLog) Len() int { return len(l.actions) }

// Reversed returns the actions in replay order.
func (l *CompensationLog) Reversed() []CompensationAction {
	out := make([]CompensationAction, len(l.actions))
	for i, a := range l.actions {
		out[len(l.actions)-1-i] = a
	}
	return out
}

// Clear drops every action once the saga is committed.
func (l *CompensationLog) Clear() { l.actions = nil }
