package service

import (
	"errors"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"
)

// legRunner executes the legs of one handler call through the settlement authority and
// records how to undo each of them. On failure, fail replays the log.
type legRunner struct {
	hctx    *ports.HandlerContext
	clog    domain.CompensationLog
	receipt *domain.Receipt

	issued    domain.Money
	destroyed domain.Money
}

func newLegRunner(hctx *ports.HandlerContext, debtor domain.AgentID) *legRunner {
	return &legRunner{
		hctx:    hctx,
		receipt: domain.NewReceipt(debtor, hctx.Currency, hctx.Tick),
	}
}

func (r *legRunner) transfer(from, to domain.AgentID, amount domain.Money, memo string) error {
	rec, err := r.hctx.Settlement.Transfer(from, to, amount, r.hctx.Currency, memo, r.hctx.Tick)
	if err != nil {
		return err
	}
	r.receipt.Merge(rec)
	if amount > 0 {
		r.clog.Record(domain.CompensationAction{
			Kind: domain.CompensateTransfer, From: from, To: to,
			Amount: amount, Currency: r.hctx.Currency, Memo: memo,
		})
	}
	return nil
}

func (r *legRunner) settle(debtor domain.AgentID, credits []domain.Credit) error {
	rec, err := r.hctx.Settlement.SettleAtomic(debtor, credits, r.hctx.Currency, r.hctx.Tick)
	if err != nil {
		return err
	}
	r.receipt.Merge(rec)
	for _, c := range credits {
		if c.Amount == 0 {
			continue
		}
		r.clog.Record(domain.CompensationAction{
			Kind: domain.CompensateTransfer, From: debtor, To: c.Payee,
			Amount: c.Amount, Currency: r.hctx.Currency, Memo: c.Memo,
		})
	}
	return nil
}

func (r *legRunner) mint(authority, dest domain.AgentID, amount domain.Money, memo string) error {
	rec, err := r.hctx.Settlement.CreateAndTransfer(authority, dest, amount, r.hctx.Currency, memo, r.hctx.Tick)
	if err != nil {
		return err
	}
	r.receipt.Merge(rec)
	if amount > 0 {
		r.issued += amount
		r.clog.Record(domain.CompensationAction{
			Kind: domain.CompensateMint, From: authority, To: dest,
			Amount: amount, Currency: r.hctx.Currency, Memo: memo,
		})
	}
	return nil
}

func (r *legRunner) burn(source, authority domain.AgentID, amount domain.Money, memo string) error {
	rec, err := r.hctx.Settlement.TransferAndDestroy(source, authority, amount, r.hctx.Currency, memo, r.hctx.Tick)
	if err != nil {
		return err
	}
	r.receipt.Merge(rec)
	if amount > 0 {
		r.destroyed += amount
		r.clog.Record(domain.CompensationAction{
			Kind: domain.CompensateBurn, From: source, To: authority,
			Amount: amount, Currency: r.hctx.Currency, Memo: memo,
		})
	}
	return nil
}

// fail undoes every recorded leg. A failed undo is reported ahead of the cause so the
// anomaly kind wins.
func (r *legRunner) fail(cause error) error {
	if r.clog.Len() == 0 {
		return cause
	}
	if err := r.hctx.Settlement.Compensate(&r.clog, r.hctx.Tick); err != nil {
		return errors.Join(err, cause)
	}
	r.clog.Clear()
	return cause
}

// outcome builds the success report. Issued and destroyed amounts come from the runner.
func (r *legRunner) outcome(value, buyerCost, sellerNet, tax domain.Money, taxPayer domain.AgentID) *domain.Outcome {
	return &domain.Outcome{
		Receipt:    r.receipt,
		TradeValue: value,
		BuyerCost:  buyerCost,
		SellerNet:  sellerNet,
		Tax:        tax,
		TaxPayer:   taxPayer,
		Issued:     r.issued,
		Destroyed:  r.destroyed,
	}
}
