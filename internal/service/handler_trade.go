package service

import (
	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"
)

// goodsHandler settles a goods trade through the escrow wallet in three legs:
// buyer to escrow for value plus sales tax, escrow to seller, escrow to government.
// A failed later leg reverses every earlier one, so the buyer is always made whole.
type goodsHandler struct{}

func (goodsHandler) Handle(tx *domain.Transaction, buyer, seller *domain.Agent, hctx *ports.HandlerContext) (*domain.Outcome, error) {
	value := tx.TradeValue()
	tax := hctx.Taxes.SalesTax(value)
	escrow := hctx.Roles.Escrow

	r := newLegRunner(hctx, buyer.ID)
	if err := r.transfer(buyer.ID, escrow, value+tax, "goods:escrow_hold"); err != nil {
		return nil, r.fail(err)
	}
	if err := r.transfer(escrow, seller.ID, value, "goods:seller_payment"); err != nil {
		return nil, r.fail(err)
	}
	if err := r.transfer(escrow, hctx.Roles.Government, tax, "goods:sales_tax"); err != nil {
		return nil, r.fail(err)
	}
	return r.outcome(value, value+tax, value, tax, buyer.ID), nil
}

// taxedSaleHandler settles a sale and its sales tax in one atomic call. It serves
// emergency purchases and public manager inventory sales.
type taxedSaleHandler struct {
	memo string
}

func (h taxedSaleHandler) Handle(tx *domain.Transaction, buyer, seller *domain.Agent, hctx *ports.HandlerContext) (*domain.Outcome, error) {
	value := tx.TradeValue()
	tax := hctx.Taxes.SalesTax(value)

	r := newLegRunner(hctx, buyer.ID)
	credits := []domain.Credit{
		{Payee: seller.ID, Amount: value, Memo: h.memo},
		{Payee: hctx.Roles.Government, Amount: tax, Memo: h.memo + ":sales_tax"},
	}
	if err := r.settle(buyer.ID, credits); err != nil {
		return nil, r.fail(err)
	}
	return r.outcome(value, value+tax, value, tax, buyer.ID), nil
}

// laborHandler pays a wage from employer (buyer) to worker (seller).
// With the FIRM payer model the employer pays wage and income tax atomically.
// With the HOUSEHOLD model the worker receives the gross wage and a withholding leg follows.
type laborHandler struct{}

func (laborHandler) Handle(tx *domain.Transaction, employer, worker *domain.Agent, hctx *ports.HandlerContext) (*domain.Outcome, error) {
	wage := tx.TradeValue()
	tax := hctx.Taxes.IncomeTax(wage)
	gov := hctx.Roles.Government
	memo := string(tx.Type)

	r := newLegRunner(hctx, employer.ID)
	if hctx.Taxes.IncomeTaxPayer() == IncomePayerFirm {
		credits := []domain.Credit{
			{Payee: worker.ID, Amount: wage, Memo: memo + ":wage"},
			{Payee: gov, Amount: tax, Memo: memo + ":income_tax"},
		}
		if err := r.settle(employer.ID, credits); err != nil {
			return nil, r.fail(err)
		}
		return r.outcome(wage, wage+tax, wage, tax, employer.ID), nil
	}

	if err := r.transfer(employer.ID, worker.ID, wage, memo+":wage"); err != nil {
		return nil, r.fail(err)
	}
	if err := r.transfer(worker.ID, gov, tax, memo+":withholding"); err != nil {
		return nil, r.fail(err)
	}
	return r.outcome(wage, wage, wage-tax, tax, worker.ID), nil
}
