package domain

import (
	"sync"

	"github.com/google/uuid"
)

// OperationRecord is one immutable balance mutation. Records are never edited or removed.
type OperationRecord struct {
	Seq              int64    `json:"seq" db:"seq"`
	Tick             int64    `json:"tick" db:"tick"`
	AgentID          AgentID  `json:"agent_id" db:"agent_id"`
	Currency         Currency `json:"currency" db:"currency"`
	Delta            Money    `json:"delta" db:"delta"`
	Memo             string   `json:"memo" db:"memo"`
	ResultingBalance Money    `json:"resulting_balance" db:"resulting_balance"`
}

// OperationLog is the run-scoped, append-only audit trail shared by every wallet.
type OperationLog struct {
	mu      sync.RWMutex
	runID   uuid.UUID
	records []OperationRecord
}

// NewOperationLog creates an empty log for one simulation run.
func NewOperationLog() *OperationLog {
	return &OperationLog{runID: uuid.New()}
}

// RunID identifies the run this log belongs to.
func (l *OperationLog) RunID() uuid.UUID {
	return l.runID
}

// Append stamps the record with the next sequence number and stores it.
func (l *OperationLog) Append(rec OperationRecord) OperationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec.Seq = int64(len(l.records)) + 1
	l.records = append(l.records, rec)
	return rec
}

// Len returns the number of records.
func (l *OperationLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Records returns a copy of every record.
func (l *OperationLog) Records() []OperationRecord {
	return l.Since(0)
}

// Since returns a copy of the records after the first offset entries.
func (l *OperationLog) Since(offset int) []OperationRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(l.records) {
		return nil
	}
	return append([]OperationRecord(nil), l.records[offset:]...)
}

// NetDelta sums the deltas in cur for the agents selected by include (all when nil).
func NetDelta(records []OperationRecord, cur Currency, include func(AgentID) bool) Money {
	var sum Money
	for _, r := range records {
		if r.Currency != cur {
			continue
		}
		if include != nil && !include(r.AgentID) {
			continue
		}
		sum += r.Delta
	}
	return sum
}
