package domain

import (
	"sync"

	"settlement-kernel/pkg/apperror"
)

// Wallet holds one agent's multi-currency balance. Every mutation is appended to the shared log.
type Wallet struct {
	mu            sync.RWMutex
	ownerID       AgentID
	balances      map[Currency]Money
	allowNegative bool // only agents holding money-creation authority
	closed        bool
	log           *OperationLog
}

// NewWallet creates an empty wallet bound to the run's operation log.
func NewWallet(ownerID AgentID, log *OperationLog, allowNegative bool) *Wallet {
	return &Wallet{
		ownerID:       ownerID,
		balances:      make(map[Currency]Money),
		allowNegative: allowNegative,
		log:           log,
	}
}

// OwnerID returns the agent that owns the wallet.
func (w *Wallet) OwnerID() AgentID { return w.ownerID }

// AllowsNegative reports whether the owner may run a negative balance.
func (w *Wallet) AllowsNegative() bool { return w.allowNegative }

// IsClosed reports whether the wallet rejects mutations.
func (w *Wallet) IsClosed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.closed
}

// Balance returns the live balance in cur.
func (w *Wallet) Balance(cur Currency) Money {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.balances[cur]
}

// Balances returns a copy of every non-zero balance.
func (w *Wallet) Balances() Balances {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(Balances, len(w.balances))
	for c, v := range w.balances {
		if v != 0 {
			out[c] = v
		}
	}
	return out
}

// CanCover reports whether a subtract of amount in cur would succeed.
func (w *Wallet) CanCover(amount Money, cur Currency) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.allowNegative || w.balances[cur] >= amount
}

// Add credits amount to the wallet.
func (w *Wallet) Add(amount Money, cur Currency, memo string, tick int64) error {
	if amount < 0 {
		return apperror.ErrInvalidAmount(int64(amount))
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return apperror.ErrWalletClosed(int64(w.ownerID))
	}
	w.apply(amount, cur, memo, tick)
	return nil
}

// Subtract debits amount from the wallet. It fails with InsufficientFunds unless the
// owner may hold a negative balance.
func (w *Wallet) Subtract(amount Money, cur Currency, memo string, tick int64) error {
	if amount < 0 {
		return apperror.ErrInvalidAmount(int64(amount))
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return apperror.ErrWalletClosed(int64(w.ownerID))
	}
	if !w.allowNegative && w.balances[cur] < amount {
		return apperror.ErrInsufficientFunds(int64(w.ownerID), int64(amount), int64(w.balances[cur]))
	}
	w.apply(-amount, cur, memo, tick)
	return nil
}

// LoadBalances hydrates the wallet from persisted state, replacing current balances.
// Hydration restores state and is not a mutation, so nothing is logged.
func (w *Wallet) LoadBalances(balances map[Currency]Money) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances = make(map[Currency]Money, len(balances))
	for c, v := range balances {
		w.balances[c] = v
	}
}

// Close makes the wallet reject further mutations.
func (w *Wallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

// Reopen clears the closed flag.
func (w *Wallet) Reopen() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = false
}

func (w *Wallet) apply(delta Money, cur Currency, memo string, tick int64) {
	w.balances[cur] += delta
	if delta == 0 || w.log == nil {
		return
	}
	w.log.Append(OperationRecord{
		Tick:             tick,
		AgentID:          w.ownerID,
		Currency:         cur,
		Delta:            delta,
		Memo:             memo,
		ResultingBalance: w.balances[cur],
	})
}
