package domain

// Roles names the system agents of a run.
type Roles struct {
	CreationAuthorities  []AgentID
	DestructionAuthority AgentID
	CentralBank          AgentID
	Government           AgentID
	Bank                 AgentID
	PublicManager        AgentID
	Escrow               AgentID
	LiquidationBuyer     AgentID
}

// IsCreationAuthority reports whether id may mint money.
func (r Roles) IsCreationAuthority(id AgentID) bool {
	for _, a := range r.CreationAuthorities {
		if a == id {
			return true
		}
	}
	return false
}

// InAuthoritySet reports whether id creates or destroys money.
func (r Roles) InAuthoritySet(id AgentID) bool {
	return r.IsCreationAuthority(id) || id == r.DestructionAuthority
}

// InSystemSet reports whether id is an authority or the escrow.
// Balances of system agents are not part of M2.
func (r Roles) InSystemSet(id AgentID) bool {
	return r.InAuthoritySet(id) || id == r.Escrow
}

// PrimaryAuthority returns the creation authority used for genesis minting.
func (r Roles) PrimaryAuthority() AgentID {
	if len(r.CreationAuthorities) == 0 {
		return NoAgent
	}
	return r.CreationAuthorities[0]
}
