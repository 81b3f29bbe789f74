package service

import (
	"sort"
	"sync"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"
	"settlement-kernel/pkg/apperror"
)

// agentDirectory implements ports.AgentDirectory in memory.
type agentDirectory struct {
	mu     sync.RWMutex
	agents map[domain.AgentID]*domain.Agent
}

// NewAgentDirectory creates an empty directory.
func NewAgentDirectory() ports.AgentDirectory {
	return &agentDirectory{agents: make(map[domain.AgentID]*domain.Agent)}
}

func (d *agentDirectory) Register(agent *domain.Agent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.agents[agent.ID]; ok {
		return apperror.ErrDuplicateAgent(int64(agent.ID))
	}
	d.agents[agent.ID] = agent
	return nil
}

func (d *agentDirectory) Agent(id domain.AgentID) (*domain.Agent, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.agents[id]
	if !ok {
		return nil, apperror.ErrUnregisteredAgent(int64(id))
	}
	return a, nil
}

// Agents returns every agent ordered by id.
func (d *agentDirectory) Agents() []*domain.Agent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*domain.Agent, 0, len(d.agents))
	for _, a := range d.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
