package service

import (
	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"
)

// monetaryHandler settles monetary policy operations. A leg that crosses the boundary of
// the authority set goes through the mint or burn primitive, which books the issuance or
// destruction itself, and the intent is flagged so the ledger does not count it again.
type monetaryHandler struct{}

func (h monetaryHandler) Handle(tx *domain.Transaction, buyer, seller *domain.Agent, hctx *ports.HandlerContext) (*domain.Outcome, error) {
	value := tx.TradeValue()
	roles := hctx.Roles
	r := newLegRunner(hctx, buyer.ID)

	var booked bool
	switch tx.Type {
	case domain.TransactionTypeBondRepayment, domain.TransactionTypeOMOSale:
		principal := tx.Principal()
		interest := value - principal
		memo := string(tx.Type)
		var err error
		if booked, err = h.move(r, roles, buyer.ID, seller.ID, principal, memo+":principal"); err != nil {
			return nil, r.fail(err)
		}
		// Interest is neutral to the money supply whoever receives it.
		if err = r.transfer(buyer.ID, seller.ID, interest, memo+":interest"); err != nil {
			return nil, r.fail(err)
		}
		if tx.Type == domain.TransactionTypeBondRepayment && buyer.ID == roles.Government {
			hctx.Ledger.RecordSystemDebtDecrease(hctx.Currency, principal)
		}

	default:
		var err error
		if booked, err = h.move(r, roles, buyer.ID, seller.ID, value, string(tx.Type)); err != nil {
			return nil, r.fail(err)
		}
		if tx.Type == domain.TransactionTypeBondPurchase && seller.ID == roles.Government {
			hctx.Ledger.RecordSystemDebtIncrease(hctx.Currency, value)
		}
	}

	if booked {
		tx.MarkLedgerRecorded()
	}
	return r.outcome(value, value, value, 0, buyer.ID), nil
}

// move picks the primitive for one leg. It reports false only when the ledger still has to
// classify the intent: an authority that cannot mint paying into circulation.
func (monetaryHandler) move(r *legRunner, roles domain.Roles, from, to domain.AgentID, amount domain.Money, memo string) (bool, error) {
	switch {
	case roles.IsCreationAuthority(from) && !roles.InSystemSet(to):
		return true, r.mint(from, to, amount, memo)
	case roles.InAuthoritySet(to) && !roles.InSystemSet(from):
		return true, r.burn(from, to, amount, memo)
	case roles.InAuthoritySet(from) && !roles.InSystemSet(to):
		return false, r.transfer(from, to, amount, memo)
	default:
		// Zero-sum with respect to M2.
		return true, r.transfer(from, to, amount, memo)
	}
}
