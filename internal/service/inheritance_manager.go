package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"
	"settlement-kernel/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// TxExecutor settles a single intent. TransactionProcessor implements it.
type TxExecutor interface {
	Execute(tx *domain.Transaction, tick int64) (domain.TxResult, error)
}

// InheritanceManager values estates and runs estate sagas to a terminal state.
// Sub-transactions go through the dispatcher so that registry and accounting stay in sync.
type InheritanceManager struct {
	dir              ports.AgentDirectory
	settlement       ports.SettlementAuthority
	executor         TxExecutor
	registry         ports.Registry
	market           ports.MarketData
	taxes            ports.TaxPolicy
	roles            domain.Roles
	currency         domain.Currency
	fireSaleDiscount decimal.Decimal
	workers          int
	log              zerolog.Logger
}

// EstateOptions tunes liquidation and valuation.
type EstateOptions struct {
	FireSaleDiscount decimal.Decimal
	ValuationWorkers int
}

// NewInheritanceManager creates a new InheritanceManager.
func NewInheritanceManager(
	dir ports.AgentDirectory,
	settlement ports.SettlementAuthority,
	executor TxExecutor,
	registry ports.Registry,
	market ports.MarketData,
	taxes ports.TaxPolicy,
	roles domain.Roles,
	currency domain.Currency,
	opts EstateOptions,
	log zerolog.Logger,
) *InheritanceManager {
	workers := opts.ValuationWorkers
	if workers < 1 {
		workers = 1
	}
	return &InheritanceManager{
		dir:              dir,
		settlement:       settlement,
		executor:         executor,
		registry:         registry,
		market:           market,
		taxes:            taxes,
		roles:            roles,
		currency:         currency,
		fireSaleDiscount: opts.FireSaleDiscount,
		workers:          workers,
		log:              log,
	}
}

// Value snapshots the estate of deceasedID. It only reads.
func (m *InheritanceManager) Value(deceasedID domain.AgentID) (*domain.EstateValuation, error) {
	dec, err := m.dir.Agent(deceasedID)
	if err != nil {
		return nil, err
	}

	v := &domain.EstateValuation{
		DeceasedID: deceasedID,
		Currency:   m.currency,
		Cash:       dec.Wallet.Balance(m.currency),
	}
	for _, unitID := range dec.Properties() {
		u, ok := m.registry.Unit(unitID)
		if !ok {
			continue
		}
		v.Properties = append(v.Properties, domain.PropertyHolding{UnitID: unitID, Value: u.EstimatedValue})
		v.RealEstateValue += u.EstimatedValue
	}
	if p := dec.Portfolio(); p != nil {
		for _, h := range p.Holdings() {
			price := m.stockPrice(h)
			value := domain.PriceTimes(price, h.Quantity)
			v.Stocks = append(v.Stocks, domain.StockHolding{ItemID: h.ItemID, Quantity: h.Quantity, UnitPrice: price, Value: value})
			v.StockValue += value
		}
	}
	v.TotalWealth = v.Cash + v.RealEstateValue + v.StockValue
	v.TaxDue = m.taxes.InheritanceTax(v.TotalWealth)
	return v, nil
}

// stockPrice is the last traded price, falling back to the acquisition price.
func (m *InheritanceManager) stockPrice(h domain.Holding) domain.Money {
	if m.market != nil {
		if p, ok := m.market.LastPrice(h.ItemID); ok {
			return p
		}
	}
	return domain.RoundHalfEven(h.AvgCost)
}

// ValueEstates values several estates concurrently. Valuation never mutates state.
func (m *InheritanceManager) ValueEstates(ctx context.Context, ids []domain.AgentID) ([]*domain.EstateValuation, error) {
	out := make([]*domain.EstateValuation, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := m.Value(id)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Settle runs saga from its valuation to DONE, or rolls every executed step back.
func (m *InheritanceManager) Settle(saga *domain.EstateSaga, tick int64) error {
	dec, err := m.dir.Agent(saga.DeceasedID)
	if err != nil {
		return err
	}
	log := m.log.With().Str("saga_id", saga.ID.String()).Int64("deceased_id", int64(saga.DeceasedID)).Logger()
	cur := saga.Valuation.Currency
	if cur == "" {
		cur = m.currency
	}
	run := &sagaRun{m: m, saga: saga, dec: dec, cur: cur, tick: tick, log: log}

	saga.Advance(domain.SagaTaxComputed)
	if err := run.payTax(); err != nil {
		return run.rollback(err)
	}
	saga.Advance(domain.SagaTaxPaid)

	heirs := m.livingHeirs(saga.HeirIDs)
	if len(heirs) > 0 {
		saga.Advance(domain.SagaDistribution)
		err = run.distribute(heirs)
	} else {
		saga.Advance(domain.SagaEscheatment)
		err = run.escheat()
	}
	if err != nil {
		return run.rollback(err)
	}

	saga.Advance(domain.SagaDustSweep)
	if err := run.sweepDust(); err != nil {
		return run.rollback(err)
	}

	saga.Advance(domain.SagaDone)
	saga.Compensation.Clear()
	log.Info().Int("steps", len(saga.Executed)).Msg("estate settled")
	return nil
}

func (m *InheritanceManager) livingHeirs(ids []domain.AgentID) []domain.AgentID {
	heirs := make([]domain.AgentID, 0, len(ids))
	for _, id := range ids {
		a, err := m.dir.Agent(id)
		if err != nil || !a.IsActive() || a.Wallet.IsClosed() {
			continue
		}
		heirs = append(heirs, id)
	}
	return heirs
}

// sagaRun holds the working state of one Settle call.
type sagaRun struct {
	m    *InheritanceManager
	saga *domain.EstateSaga
	dec  *domain.Agent
	cur  domain.Currency
	tick int64
	log  zerolog.Logger
}

func (r *sagaRun) exec(tx *domain.Transaction) (*domain.Outcome, error) {
	tx.Currency = r.cur
	tx.SetMeta(domain.MetaSagaID, r.saga.ID.String())
	res, err := r.m.executor.Execute(tx, r.tick)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		if res.Err != nil {
			return nil, res.Err
		}
		return nil, fmt.Errorf("%s was not settled (%s)", tx.Type, res.Status)
	}
	r.saga.Executed = append(r.saga.Executed, tx)
	return res.Outcome, nil
}

func (r *sagaRun) record(a domain.CompensationAction) {
	r.saga.Compensation.Record(a)
}

func (r *sagaRun) payTax() error {
	tax := r.saga.Valuation.TaxDue
	if tax <= 0 {
		return nil
	}
	if cash := r.dec.Wallet.Balance(r.cur); cash < tax {
		r.saga.Advance(domain.SagaLiquidation)
		r.liquidate(tax - cash)
	}
	if cash := r.dec.Wallet.Balance(r.cur); cash < tax {
		return apperror.ErrInsufficientFunds(int64(r.dec.ID), int64(tax), int64(cash))
	}

	tx := domain.NewTransfer(domain.TransactionTypeTax, r.dec.ID, r.saga.GovernmentID, tax, r.tick)
	if _, err := r.exec(tx); err != nil {
		return err
	}
	r.record(domain.CompensationAction{
		Kind: domain.CompensateTransfer, From: r.dec.ID, To: r.saga.GovernmentID,
		Amount: tax, Currency: r.cur, Memo: "estate:tax",
	})
	return nil
}

// liquidate sells stock, then real estate at the fire-sale discount, until shortfall is
// covered. A sale that fails leaves its asset with the estate.
func (r *sagaRun) liquidate(shortfall domain.Money) {
	buyer := r.m.roles.LiquidationBuyer

	if p := r.dec.Portfolio(); p != nil {
		for _, h := range p.Holdings() {
			if shortfall <= 0 {
				return
			}
			price := r.m.stockPrice(h)
			tx := r.liquidationTx(buyer, domain.AssetStock, h.ItemID, h.Quantity, price)
			if proceeds, ok := r.sell(tx); ok {
				shortfall -= proceeds
			}
		}
	}

	for _, unitID := range r.dec.Properties() {
		if shortfall <= 0 {
			return
		}
		u, ok := r.m.registry.Unit(unitID)
		if !ok {
			continue
		}
		price := domain.Discount(u.EstimatedValue, r.m.fireSaleDiscount)
		tx := r.liquidationTx(buyer, domain.AssetRealEstate, unitID, decimal.NewFromInt(1), price)
		if proceeds, ok := r.sell(tx); ok {
			shortfall -= proceeds
		}
	}
}

func (r *sagaRun) liquidationTx(buyer domain.AgentID, kind domain.AssetKind, item string, qty decimal.Decimal, price domain.Money) *domain.Transaction {
	tx := domain.NewTransfer(domain.TransactionTypeAssetLiquidation, buyer, r.dec.ID, domain.PriceTimes(price, qty), r.tick)
	tx.ItemID = item
	tx.Quantity = qty
	tx.Price = price
	tx.SetMeta(domain.MetaAssetKind, string(kind))
	return tx
}

func (r *sagaRun) sell(tx *domain.Transaction) (domain.Money, bool) {
	out, err := r.exec(tx)
	if err != nil {
		r.log.Warn().Err(err).Str("item_id", tx.ItemID).Msg("liquidation failed, asset kept")
		return 0, false
	}
	kind := domain.CompensateTransfer
	if out.Issued > 0 {
		kind = domain.CompensateMint
	}
	r.record(domain.CompensationAction{
		Kind: kind, From: tx.BuyerID, To: r.dec.ID,
		Amount: out.TradeValue, Currency: r.cur, Memo: "estate:liquidation_proceeds",
	})
	r.record(domain.CompensationAction{
		Kind: domain.CompensateAsset, From: r.dec.ID, To: tx.BuyerID,
		AssetKind: tx.AssetKind(), AssetID: tx.ItemID, Quantity: tx.Quantity, UnitPrice: tx.Price,
		Memo: "estate:liquidated_asset",
	})
	return out.TradeValue, true
}

// distribute splits the live cash among heirs, then hands out real estate and stock
// round-robin.
func (r *sagaRun) distribute(heirs []domain.AgentID) error {
	cash := r.dec.Wallet.Balance(r.cur)
	if cash > 0 {
		tx := domain.NewTransfer(domain.TransactionTypeInheritanceDistribution, r.dec.ID, r.saga.GovernmentID, cash, r.tick)
		tx.SetMeta(domain.MetaHeirIDs, heirs)
		if _, err := r.exec(tx); err != nil {
			return err
		}
		for i, share := range domain.SplitEvenly(cash, len(heirs)) {
			if share == 0 {
				continue
			}
			r.record(domain.CompensationAction{
				Kind: domain.CompensateTransfer, From: r.dec.ID, To: heirs[i],
				Amount: share, Currency: r.cur, Memo: "estate:inheritance_share",
			})
		}
	}
	return r.handOverAssets(func(i int) domain.AgentID { return heirs[i%len(heirs)] })
}

// escheat sends the live cash and every asset to the government.
func (r *sagaRun) escheat() error {
	gov := r.saga.GovernmentID
	before := r.dec.Wallet.Balances()
	if len(before) > 0 {
		tx := domain.NewTransfer(domain.TransactionTypeEscheatment, r.dec.ID, gov, before.Get(r.cur), r.tick)
		if _, err := r.exec(tx); err != nil {
			return err
		}
		r.recordSwept(before, gov, "estate:escheatment")
	}
	return r.handOverAssets(func(int) domain.AgentID { return gov })
}

func (r *sagaRun) handOverAssets(recipient func(i int) domain.AgentID) error {
	n := 0
	for _, unitID := range r.dec.Properties() {
		to := recipient(n)
		n++
		if err := r.gift(to, domain.AssetRealEstate, unitID, decimal.NewFromInt(1), 0); err != nil {
			return err
		}
	}
	if p := r.dec.Portfolio(); p != nil {
		for _, h := range p.Holdings() {
			to := recipient(n)
			n++
			if err := r.gift(to, domain.AssetStock, h.ItemID, h.Quantity, domain.RoundHalfEven(h.AvgCost)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *sagaRun) gift(to domain.AgentID, kind domain.AssetKind, item string, qty decimal.Decimal, basis domain.Money) error {
	tx := domain.NewTransfer(domain.TransactionTypeAssetTransfer, to, r.dec.ID, 0, r.tick)
	tx.ItemID = item
	tx.Quantity = qty
	tx.Price = basis
	tx.SetMeta(domain.MetaAssetKind, string(kind))
	if _, err := r.exec(tx); err != nil {
		return err
	}
	r.record(domain.CompensationAction{
		Kind: domain.CompensateAsset, From: r.dec.ID, To: to,
		AssetKind: kind, AssetID: item, Quantity: qty, UnitPrice: basis,
		Memo: "estate:asset_handover",
	})
	return nil
}

// sweepDust zeroes whatever the legs left behind, in every currency.
func (r *sagaRun) sweepDust() error {
	swept, err := r.m.settlement.Sweep(r.dec.ID, r.saga.GovernmentID, "estate:dust_sweep", r.tick)
	if err != nil {
		return err
	}
	r.recordSwept(swept, r.saga.GovernmentID, "estate:dust_sweep")
	return nil
}

func (r *sagaRun) recordSwept(amounts domain.Balances, to domain.AgentID, memo string) {
	currencies := make([]domain.Currency, 0, len(amounts))
	for c, v := range amounts {
		if v > 0 {
			currencies = append(currencies, c)
		}
	}
	sort.Slice(currencies, func(i, j int) bool { return currencies[i] < currencies[j] })
	for _, c := range currencies {
		r.record(domain.CompensationAction{
			Kind: domain.CompensateTransfer, From: r.dec.ID, To: to,
			Amount: amounts[c], Currency: c, Memo: memo,
		})
	}
}

func (r *sagaRun) rollback(cause error) error {
	if apperror.IsConfiguration(cause) {
		// Setup bug: undo what we can but surface the configuration error.
		if err := r.m.settlement.Compensate(r.saga.Compensation, r.tick); err != nil {
			r.saga.Advance(domain.SagaRollbackFailed)
			return errors.Join(cause, err)
		}
		r.saga.Compensation.Clear()
		r.saga.Advance(domain.SagaFailedRolledBack)
		return cause
	}
	failed := apperror.ErrSagaFailed(r.saga.ID.String(), cause)
	if err := r.m.settlement.Compensate(r.saga.Compensation, r.tick); err != nil {
		r.saga.Advance(domain.SagaRollbackFailed)
		return errors.Join(err, failed)
	}
	r.saga.Compensation.Clear()
	r.saga.Advance(domain.SagaFailedRolledBack)
	r.log.Warn().Err(cause).Msg("estate saga rolled back")
	return failed
}
