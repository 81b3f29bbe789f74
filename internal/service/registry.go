package service

import (
	"fmt"
	"sync"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"
	"settlement-kernel/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Registry implements ports.Registry and ports.MarketData. It owns ownership, inventory,
// employment and last traded prices, and never touches a wallet.
type Registry struct {
	mu        sync.RWMutex
	dir       ports.AgentDirectory
	units     map[string]*domain.RealEstateUnit
	lastPrice map[string]domain.Money
	log       zerolog.Logger
}

// NewRegistry creates an empty registry over dir.
func NewRegistry(dir ports.AgentDirectory, log zerolog.Logger) *Registry {
	return &Registry{
		dir:       dir,
		units:     make(map[string]*domain.RealEstateUnit),
		lastPrice: make(map[string]domain.Money),
		log:       log,
	}
}

// AddUnit registers a real estate unit with its current owner.
func (r *Registry) AddUnit(unit domain.RealEstateUnit) error {
	owner, err := r.dir.Agent(unit.OwnerID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.units[unit.ID]; ok {
		return apperror.ErrMalformedConfig(fmt.Sprintf("real estate unit %s already registered", unit.ID))
	}
	u := unit
	r.units[unit.ID] = &u
	owner.AddProperty(unit.ID)
	return nil
}

// Unit returns a copy of the unit.
func (r *Registry) Unit(id string) (domain.RealEstateUnit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[id]
	if !ok {
		return domain.RealEstateUnit{}, false
	}
	return *u, true
}

// LastPrice returns the last traded unit price of a stock.
func (r *Registry) LastPrice(itemID string) (domain.Money, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.lastPrice[itemID]
	return p, ok
}

// RecordPrice sets the last traded unit price of a stock.
func (r *Registry) RecordPrice(itemID string, price domain.Money) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastPrice[itemID] = price
}

// Validate checks that the seller holds what it is selling and the buyer can hold it.
func (r *Registry) Validate(tx *domain.Transaction) error {
	if !movesAsset(tx.Type) {
		return nil
	}
	seller, err := r.dir.Agent(tx.SellerID)
	if err != nil {
		return err
	}
	buyer, err := r.dir.Agent(tx.BuyerID)
	if err != nil {
		return err
	}

	switch tx.AssetKind() {
	case domain.AssetRealEstate:
		u, ok := r.Unit(tx.ItemID)
		if !ok {
			return apperror.ErrNotFound("real estate unit " + tx.ItemID)
		}
		if u.OwnerID != seller.ID {
			return apperror.ErrAssetNotHeld(int64(seller.ID), "real estate unit "+tx.ItemID)
		}
		if !buyer.IsPropertyOwner() {
			return apperror.ErrAssetNotHeld(int64(buyer.ID), "property rights")
		}
	case domain.AssetStock:
		if buyer.Portfolio() == nil {
			return apperror.ErrAssetNotHeld(int64(buyer.ID), "a portfolio")
		}
		// Firms issue their own shares without holding them.
		if seller.Kind == domain.AgentKindFirm && tx.ItemID == domain.ShareID(seller.ID) {
			return nil
		}
		if seller.Portfolio() == nil {
			return apperror.ErrAssetNotHeld(int64(seller.ID), "stock "+tx.ItemID)
		}
		h, ok := seller.Portfolio().Holding(tx.ItemID)
		if !ok || h.Quantity.LessThan(tx.Quantity) {
			return apperror.ErrAssetNotHeld(int64(seller.ID), tx.Quantity.String()+" of stock "+tx.ItemID)
		}
	}
	return nil
}

func movesAsset(t domain.TransactionType) bool {
	switch t {
	case domain.TransactionTypeStock, domain.TransactionTypeHousing,
		domain.TransactionTypeAssetTransfer, domain.TransactionTypeAssetLiquidation:
		return true
	}
	return false
}

// Apply records the non-financial effects of a committed transaction.
func (r *Registry) Apply(tx *domain.Transaction, outcome *domain.Outcome) error {
	switch tx.Type {
	case domain.TransactionTypeGoods, domain.TransactionTypeEmergencyBuy:
		return r.moveInventory(tx.ItemID, tx.Quantity, tx.SellerID, tx.BuyerID)

	case domain.TransactionTypeLabor, domain.TransactionTypeResearchLabor:
		return r.employ(tx, outcome)

	case domain.TransactionTypeStock:
		price := unitPrice(tx)
		r.RecordPrice(tx.ItemID, price)
		return r.moveStock(tx.ItemID, tx.Quantity, price, tx.SellerID, tx.BuyerID)

	case domain.TransactionTypeHousing:
		if err := r.moveUnit(tx.ItemID, tx.SellerID, tx.BuyerID); err != nil {
			return err
		}
		r.mu.Lock()
		r.units[tx.ItemID].MortgageID = outcome.MortgageID
		r.mu.Unlock()
		return nil

	case domain.TransactionTypeAssetTransfer, domain.TransactionTypeAssetLiquidation:
		// Price carries the cost basis; gifts settle for a zero total.
		return r.TransferAsset(tx.AssetKind(), tx.ItemID, tx.Quantity, tx.Price, tx.SellerID, tx.BuyerID)
	}
	return nil
}

// TransferAsset moves an asset from one agent to another without any payment.
func (r *Registry) TransferAsset(kind domain.AssetKind, assetID string, qty decimal.Decimal, price domain.Money, from, to domain.AgentID) error {
	switch kind {
	case domain.AssetRealEstate:
		return r.moveUnit(assetID, from, to)
	case domain.AssetStock:
		return r.moveStock(assetID, qty, price, from, to)
	default:
		return r.moveInventory(assetID, qty, from, to)
	}
}

func (r *Registry) moveUnit(unitID string, from, to domain.AgentID) error {
	src, err := r.dir.Agent(from)
	if err != nil {
		return err
	}
	dst, err := r.dir.Agent(to)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[unitID]
	if !ok {
		return apperror.ErrNotFound("real estate unit " + unitID)
	}
	if u.OwnerID != from {
		return apperror.ErrAssetNotHeld(int64(from), "real estate unit "+unitID)
	}
	u.OwnerID = to
	src.RemoveProperty(unitID)
	dst.AddProperty(unitID)
	return nil
}

func (r *Registry) moveStock(item string, qty decimal.Decimal, price domain.Money, from, to domain.AgentID) error {
	src, err := r.dir.Agent(from)
	if err != nil {
		return err
	}
	dst, err := r.dir.Agent(to)
	if err != nil {
		return err
	}
	if dst.Portfolio() == nil {
		return apperror.ErrAssetNotHeld(int64(to), "a portfolio")
	}
	if src.Portfolio() != nil {
		src.Portfolio().Remove(item, qty)
	}
	dst.Portfolio().Add(item, qty, price)
	return nil
}

func (r *Registry) moveInventory(item string, qty decimal.Decimal, from, to domain.AgentID) error {
	if item == "" || !qty.IsPositive() {
		return nil
	}
	src, err := r.dir.Agent(from)
	if err != nil {
		return err
	}
	dst, err := r.dir.Agent(to)
	if err != nil {
		return err
	}
	src.AdjustInventory(item, qty.Neg())
	dst.AdjustInventory(item, qty)
	return nil
}

func (r *Registry) employ(tx *domain.Transaction, outcome *domain.Outcome) error {
	worker, err := r.dir.Agent(tx.SellerID)
	if err != nil {
		return err
	}
	employer, err := r.dir.Agent(tx.BuyerID)
	if err != nil {
		return err
	}
	since := tx.Tick
	if prev := worker.Employment(); prev != nil && prev.EmployerID == employer.ID {
		since = prev.SinceTick
	} else if prev != nil {
		if old, err := r.dir.Agent(prev.EmployerID); err == nil {
			old.Fire(worker.ID)
		}
	}
	worker.SetEmployment(&domain.Employment{
		EmployerID: employer.ID,
		Wage:       outcome.TradeValue,
		NetWage:    outcome.SellerNet,
		SinceTick:  since,
	})
	employer.Hire(worker.ID)
	return nil
}

// unitPrice derives the per-unit price actually paid.
func unitPrice(tx *domain.Transaction) domain.Money {
	if tx.TotalPennies == nil || !tx.Quantity.IsPositive() {
		return tx.Price
	}
	return domain.RoundHalfEven(tx.TotalPennies.Decimal().Div(tx.Quantity))
}
