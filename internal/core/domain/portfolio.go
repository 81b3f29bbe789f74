package domain

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Holding is a position in one stock with its weighted-average acquisition price.
type Holding struct {
	ItemID   string          `json:"item_id"`
	Quantity decimal.Decimal `json:"quantity"`
	AvgCost  decimal.Decimal `json:"avg_cost"` // minor units per share
}

// AcquisitionValue returns quantity × average cost rounded half-to-even.
func (h Holding) AcquisitionValue() Money {
	return RoundHalfEven(h.Quantity.Mul(h.AvgCost))
}

// Portfolio tracks stock positions.
type Portfolio struct {
	mu       sync.RWMutex
	holdings map[string]*Holding
}

func NewPortfolio() *Portfolio {
	return &Portfolio{holdings: make(map[string]*Holding)}
}

// Add buys qty shares at unit price and updates the cost basis.
func (p *Portfolio) Add(item string, qty decimal.Decimal, price Money) {
	if !qty.IsPositive() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.holdings[item]
	if !ok {
		p.holdings[item] = &Holding{ItemID: item, Quantity: qty, AvgCost: price.Decimal()}
		return
	}
	cost := h.Quantity.Mul(h.AvgCost).Add(qty.Mul(price.Decimal()))
	h.Quantity = h.Quantity.Add(qty)
	h.AvgCost = cost.Div(h.Quantity)
}

// Remove sells up to qty shares and returns the quantity actually removed.
// The average cost of the remaining shares is unchanged.
func (p *Portfolio) Remove(item string, qty decimal.Decimal) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.holdings[item]
	if !ok || !qty.IsPositive() {
		return decimal.Zero
	}
	removed := decimal.Min(qty, h.Quantity)
	h.Quantity = h.Quantity.Sub(removed)
	if h.Quantity.IsZero() {
		delete(p.holdings, item)
	}
	return removed
}

// Holding returns a copy of the position in item.
func (p *Portfolio) Holding(item string) (Holding, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.holdings[item]
	if !ok {
		return Holding{}, false
	}
	return *h, true
}

// Holdings returns copies of every position sorted by item id.
func (p *Portfolio) Holdings() []Holding {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Holding, 0, len(p.holdings))
	for _, h := range p.holdings {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}
