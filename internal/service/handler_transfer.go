package service

import (
	"errors"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"
	"settlement-kernel/pkg/apperror"

	"github.com/shopspring/decimal"
)

// transferHandler moves the trade value from buyer to seller in one leg. It covers stock
// trades, asset transfers, government spending, tax payments and the zero-sum default.
type transferHandler struct {
	memo  string
	isTax bool
}

func (h transferHandler) Handle(tx *domain.Transaction, buyer, seller *domain.Agent, hctx *ports.HandlerContext) (*domain.Outcome, error) {
	value := tx.TradeValue()
	memo := h.memo
	if memo == "" {
		memo = string(tx.Type)
	}

	r := newLegRunner(hctx, buyer.ID)
	if err := r.transfer(buyer.ID, seller.ID, value, memo); err != nil {
		return nil, r.fail(err)
	}
	if h.isTax {
		return r.outcome(value, value, value, value, buyer.ID), nil
	}
	return r.outcome(value, value, value, 0, buyer.ID), nil
}

// housingHandler settles a property purchase, optionally financed by a bank mortgage.
// The mortgage flow is grant, disburse, book and spend the deposit, then pay the seller.
// Any failure unwinds the money legs and voids the loan.
type housingHandler struct {
	ltv decimal.Decimal
}

func (h housingHandler) Handle(tx *domain.Transaction, buyer, seller *domain.Agent, hctx *ports.HandlerContext) (*domain.Outcome, error) {
	price := tx.TradeValue()
	r := newLegRunner(hctx, buyer.ID)

	var loan *domain.Loan
	var followUps []*domain.Transaction
	if tx.MetaBool(domain.MetaUseMortgage) && h.ltv.IsPositive() {
		if hctx.Loans == nil {
			return nil, apperror.ErrMissingCollaborator("loan book")
		}
		principal := domain.ApplyRate(price, h.ltv)

		var err error
		loan, err = hctx.Loans.Grant(buyer.ID, tx.ItemID, principal, hctx.Tick)
		if err != nil {
			return nil, err
		}

		bank := hctx.Roles.Bank
		if hctx.Roles.IsCreationAuthority(bank) {
			err = r.mint(bank, buyer.ID, principal, "housing:mortgage_disbursement")
			if err == nil {
				created := domain.NewTransfer(domain.TransactionTypeCreditCreation, bank, buyer.ID, principal, hctx.Tick)
				created.SetMeta(domain.MetaMortgageID, loan.ID)
				followUps = append(followUps, created)
			}
		} else {
			err = r.transfer(bank, buyer.ID, principal, "housing:mortgage_disbursement")
		}
		if err != nil {
			return nil, h.unwind(r, hctx, loan, err)
		}

		hctx.Loans.Deposit(buyer.ID, principal)
		if err := hctx.Loans.WithdrawForCustomer(buyer.ID, principal); err != nil {
			return nil, h.unwind(r, hctx, loan, err)
		}
	}

	if err := r.transfer(buyer.ID, seller.ID, price, "housing:payment"); err != nil {
		return nil, h.unwind(r, hctx, loan, err)
	}

	out := r.outcome(price, price, price, 0, buyer.ID)
	if loan != nil {
		out.MortgageID = loan.ID
		tx.SetMeta(domain.MetaMortgageID, loan.ID)
	}
	out.FollowUps = followUps
	return out, nil
}

func (h housingHandler) unwind(r *legRunner, hctx *ports.HandlerContext, loan *domain.Loan, cause error) error {
	err := r.fail(cause)
	if loan == nil {
		return err
	}
	if vErr := hctx.Loans.Void(loan.ID); vErr != nil {
		return errors.Join(err, vErr)
	}
	return err
}
