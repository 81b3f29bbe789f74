package service

import (
	"fmt"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"
	"settlement-kernel/pkg/apperror"
)

// escheatmentHandler sweeps the live balance of the buyer, in every currency, to the
// seller (the government). The amount declared on the intent is ignored.
type escheatmentHandler struct{}

func (escheatmentHandler) Handle(tx *domain.Transaction, buyer, seller *domain.Agent, hctx *ports.HandlerContext) (*domain.Outcome, error) {
	swept, err := hctx.Settlement.Sweep(buyer.ID, seller.ID, "escheatment", hctx.Tick)
	if err != nil {
		return nil, err
	}
	receipt := domain.NewReceipt(buyer.ID, hctx.Currency, hctx.Tick)
	for cur, amount := range swept {
		if cur == hctx.Currency {
			receipt.AddLeg(buyer.ID, seller.ID, amount, "escheatment")
		}
	}
	value := swept.Get(hctx.Currency)
	return &domain.Outcome{Receipt: receipt, TradeValue: value, BuyerCost: value, SellerNet: value}, nil
}

// inheritanceHandler splits the trade value evenly across the heirs named in metadata,
// remainder to the last heir, in one atomic settlement.
type inheritanceHandler struct{}

func (inheritanceHandler) Handle(tx *domain.Transaction, decedent, _ *domain.Agent, hctx *ports.HandlerContext) (*domain.Outcome, error) {
	heirs := tx.HeirIDs()
	if len(heirs) == 0 {
		return nil, apperror.ErrMalformedConfig(fmt.Sprintf("inheritance distribution %s names no heirs", tx.ID))
	}
	total := tx.TradeValue()
	shares := domain.SplitEvenly(total, len(heirs))

	credits := make([]domain.Credit, len(heirs))
	for i, heir := range heirs {
		credits[i] = domain.Credit{Payee: heir, Amount: shares[i], Memo: "inheritance:share"}
	}

	r := newLegRunner(hctx, decedent.ID)
	if err := r.settle(decedent.ID, credits); err != nil {
		return nil, r.fail(err)
	}
	return r.outcome(total, total, total, 0, decedent.ID), nil
}
