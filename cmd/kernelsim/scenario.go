package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// scenario is a scripted run: agents to register up front, then one batch of
// intents and deaths per tick.
type scenario struct {
	Agents []scenarioAgent         `json:"agents"`
	Units  []domain.RealEstateUnit `json:"units"`
	Ticks  []scenarioTick          `json:"ticks"`
}

type scenarioAgent struct {
	ID      domain.AgentID   `json:"id"`
	Kind    domain.AgentKind `json:"kind"`
	Genesis domain.Money     `json:"genesis"` // negative uses the configured default
	Heirs   []domain.AgentID `json:"heirs,omitempty"`
}

type scenarioTick struct {
	Tick         int64                 `json:"tick"`
	Transactions []*domain.Transaction `json:"transactions"`
	Deaths       []domain.AgentID      `json:"deaths,omitempty"`
}

func loadScenario(file string) (*scenario, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s scenario
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	sort.SliceStable(s.Ticks, func(i, j int) bool { return s.Ticks[i].Tick < s.Ticks[j].Tick })
	for _, t := range s.Ticks {
		for _, tx := range t.Transactions {
			if tx.ID == uuid.Nil {
				tx.ID = uuid.New()
			}
			if tx.Tick == 0 {
				tx.Tick = t.Tick
			}
			if err := tx.ValidateMetadata(); err != nil {
				return nil, fmt.Errorf("tick %d: %w", t.Tick, err)
			}
		}
	}
	return &s, nil
}

// defaultScenario is a small closed economy: households buy bread from two
// firms, the firms pay wages, the central bank lends to the commercial bank
// once and one household dies on the third tick.
func defaultScenario(roles domain.Roles, ticks int64) *scenario {
	s := &scenario{}
	households := []domain.AgentID{10, 11, 12, 13, 14, 15}
	firms := []domain.AgentID{20, 21}
	for _, id := range households {
		s.Agents = append(s.Agents, scenarioAgent{ID: id, Kind: domain.AgentKindHousehold, Genesis: 50_000})
	}
	// The last household leaves everything to the first.
	s.Agents[len(s.Agents)-1].Heirs = []domain.AgentID{households[0]}
	for _, id := range firms {
		s.Agents = append(s.Agents, scenarioAgent{ID: id, Kind: domain.AgentKindFirm, Genesis: 200_000})
	}
	s.Units = []domain.RealEstateUnit{
		{ID: "unit-1", OwnerID: households[len(households)-1], EstimatedValue: 120_000},
	}

	for tick := int64(1); tick <= ticks; tick++ {
		t := scenarioTick{Tick: tick}
		for i, h := range households {
			if tick >= 3 && h == households[len(households)-1] {
				continue
			}
			firm := firms[i%len(firms)]
			t.Transactions = append(t.Transactions,
				goods(h, firm, 250, 4, tick),
				domain.NewTransfer(domain.TransactionTypeLabor, firm, h, 1_500, tick),
			)
		}
		if tick == 2 {
			t.Transactions = append(t.Transactions,
				domain.NewTransfer(domain.TransactionTypeLenderOfLastResort, roles.CentralBank, roles.Bank, 25_000, tick))
		}
		if tick == 3 {
			t.Deaths = []domain.AgentID{households[len(households)-1]}
		}
		s.Ticks = append(s.Ticks, t)
	}
	return s
}

func goods(buyer, seller domain.AgentID, price domain.Money, qty int64, tick int64) *domain.Transaction {
	return &domain.Transaction{
		ID:       uuid.New(),
		BuyerID:  buyer,
		SellerID: seller,
		ItemID:   "bread",
		Quantity: decimal.NewFromInt(qty),
		Price:    price,
		Type:     domain.TransactionTypeGoods,
		Tick:     tick,
	}
}

// setup registers the scenario agents, heirs and real-estate units.
func (s *scenario) setup(k *service.Kernel) error {
	for _, a := range s.Agents {
		agent, err := k.RegisterAgent(a.ID, a.Kind, a.Genesis, 0)
		if err != nil {
			return fmt.Errorf("register agent %d: %w", a.ID, err)
		}
		if len(a.Heirs) > 0 {
			agent.SetHeirs(a.Heirs)
		}
	}
	for _, u := range s.Units {
		if err := k.Registry().AddUnit(u); err != nil {
			return fmt.Errorf("add unit %s: %w", u.ID, err)
		}
	}
	return nil
}
