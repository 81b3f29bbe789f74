package domain

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// AgentID identifies an agent across the simulation.
type AgentID int64

// NoAgent marks an unset agent reference.
const NoAgent AgentID = -1

// AgentKind is the closed set of agent variants the kernel knows.
type AgentKind string

const (
	AgentKindHousehold     AgentKind = "HOUSEHOLD"
	AgentKindFirm          AgentKind = "FIRM"
	AgentKindGovernment    AgentKind = "GOVERNMENT"
	AgentKindCentralBank   AgentKind = "CENTRAL_BANK"
	AgentKindBank          AgentKind = "BANK"
	AgentKindPublicManager AgentKind = "PUBLIC_MANAGER"
	AgentKindEscrow        AgentKind = "ESCROW"
)

// Capabilities lists what an agent kind may take part in.
type Capabilities struct {
	Invests      bool
	OwnsProperty bool
	Employs      bool
	Works        bool
	HoldsStock   bool
}

var kindCapabilities = map[AgentKind]Capabilities{
	AgentKindHousehold:     {Invests: true, OwnsProperty: true, Works: true, HoldsStock: true},
	AgentKindFirm:          {Invests: true, OwnsProperty: true, Employs: true, HoldsStock: true},
	AgentKindGovernment:    {OwnsProperty: true, Employs: true, HoldsStock: true},
	AgentKindCentralBank:   {HoldsStock: true},
	AgentKindBank:          {Invests: true, OwnsProperty: true, HoldsStock: true},
	AgentKindPublicManager: {OwnsProperty: true},
	AgentKindEscrow:        {},
}

// Valid reports whether k is a known kind.
func (k AgentKind) Valid() bool {
	_, ok := kindCapabilities[k]
	return ok
}

// Capabilities returns the static capability set of k.
func (k AgentKind) Capabilities() Capabilities {
	return kindCapabilities[k]
}

// Employment is a worker's current contract.
type Employment struct {
	EmployerID AgentID `json:"employer_id"`
	Wage       Money   `json:"wage"`
	NetWage    Money   `json:"net_wage"`
	SinceTick  int64   `json:"since_tick"`
}

// Agent is the kernel's view of a simulation participant.
type Agent struct {
	ID     AgentID
	Kind   AgentKind
	Wallet *Wallet

	mu         sync.RWMutex
	portfolio  *Portfolio
	properties map[string]struct{}
	inventory  map[string]decimal.Decimal
	employment *Employment
	employees  map[AgentID]struct{}
	heirIDs    []AgentID
	active     bool
}

// NewAgent creates an active agent with an empty wallet.
func NewAgent(id AgentID, kind AgentKind, log *OperationLog, allowNegative bool) *Agent {
	a := &Agent{
		ID:        id,
		Kind:      kind,
		Wallet:    NewWallet(id, log, allowNegative),
		inventory: make(map[string]decimal.Decimal),
		active:    true,
	}
	caps := kind.Capabilities()
	if caps.HoldsStock {
		a.portfolio = NewPortfolio()
	}
	if caps.OwnsProperty {
		a.properties = make(map[string]struct{})
	}
	if caps.Employs {
		a.employees = make(map[AgentID]struct{})
	}
	return a
}

func (a *Agent) IsInvestor() bool      { return a.Kind.Capabilities().Invests }
func (a *Agent) IsPropertyOwner() bool { return a.properties != nil }
func (a *Agent) IsEmployer() bool      { return a.employees != nil }
func (a *Agent) IsWorker() bool        { return a.Kind.Capabilities().Works }
func (a *Agent) CanCreateMoney() bool  { return a.Wallet.AllowsNegative() }

// Portfolio returns the agent's stock holdings, or nil when it cannot hold stock.
func (a *Agent) Portfolio() *Portfolio { return a.portfolio }

// IsActive reports whether the agent is alive.
func (a *Agent) IsActive() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active
}

// Deactivate marks the agent dead or removed.
func (a *Agent) Deactivate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = false
}

// HeirIDs returns the agent's declared heirs.
func (a *Agent) HeirIDs() []AgentID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]AgentID(nil), a.heirIDs...)
}

// SetHeirs replaces the declared heirs.
func (a *Agent) SetHeirs(ids []AgentID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.heirIDs = append([]AgentID(nil), ids...)
}

// Properties returns the ids of owned real estate units in sorted order.
func (a *Agent) Properties() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]string, 0, len(a.properties))
	for id := range a.properties {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// OwnsProperty reports whether unitID belongs to the agent.
func (a *Agent) OwnsProperty(unitID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.properties[unitID]
	return ok
}

func (a *Agent) AddProperty(unitID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.properties != nil {
		a.properties[unitID] = struct{}{}
	}
}

func (a *Agent) RemoveProperty(unitID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.properties, unitID)
}

// Inventory returns the quantity held of item.
func (a *Agent) Inventory(item string) decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.inventory[item]
}

// AdjustInventory adds delta (which may be negative) to the held quantity.
func (a *Agent) AdjustInventory(item string, delta decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	q := a.inventory[item].Add(delta)
	if q.IsZero() {
		delete(a.inventory, item)
		return
	}
	a.inventory[item] = q
}

// Employment returns a copy of the current contract, or nil.
func (a *Agent) Employment() *Employment {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.employment == nil {
		return nil
	}
	e := *a.employment
	return &e
}

func (a *Agent) SetEmployment(e *Employment) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.employment = e
}

// Employees returns the ids employed by the agent in sorted order.
func (a *Agent) Employees() []AgentID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]AgentID, 0, len(a.employees))
	for id := range a.employees {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (a *Agent) Hire(worker AgentID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.employees != nil {
		a.employees[worker] = struct{}{}
	}
}

func (a *Agent) Fire(worker AgentID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.employees, worker)
}

// RealEstateUnit is one property tracked by the registry.
type RealEstateUnit struct {
	ID             string  `json:"id"`
	OwnerID        AgentID `json:"owner_id"`
	EstimatedValue Money   `json:"estimated_value"`
	MortgageID     string  `json:"mortgage_id,omitempty"`
}
