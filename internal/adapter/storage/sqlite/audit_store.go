// Package sqlite stores an offline copy of a run's operation log and audit
// events so a finished run can be verified without the kernel.
package sqlite

import (
	"context"
	"fmt"

	"settlement-kernel/internal/core/domain"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// AuditStore wraps a SQLite connection holding exported runs.
type AuditStore struct {
	conn *sqlx.DB
}

// Imbalance is a (tick, currency) bucket whose deltas do not net to zero.
type Imbalance struct {
	Tick     int64           `db:"tick"`
	Currency domain.Currency `db:"currency"`
	Net      domain.Money    `db:"net"`
}

// Open opens or creates a SQLite database at path. ":memory:" is accepted.
func Open(path string) (*AuditStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps an in-memory database alive across calls.
	conn.SetMaxOpenConns(1)

	s := &AuditStore{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *AuditStore) Close() error {
	return s.conn.Close()
}

func (s *AuditStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS operations (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		currency TEXT NOT NULL,
		delta INTEGER NOT NULL,
		memo TEXT NOT NULL,
		resulting_balance INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		agent_id INTEGER,
		resource_id TEXT,
		tick INTEGER NOT NULL,
		details TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_operations_tick ON operations(run_id, tick);
	`
	_, err := s.conn.Exec(schema)
	return err
}

type operationRow struct {
	RunID string `db:"run_id"`
	domain.OperationRecord
}

// ExportOperations writes records for runID in one transaction. Records already
// exported under the same sequence number are replaced.
func (s *AuditStore) ExportOperations(ctx context.Context, runID string, records []domain.OperationRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareNamedContext(ctx, `INSERT OR REPLACE INTO operations
		(run_id, seq, tick, agent_id, currency, delta, memo, resulting_balance)
		VALUES (:run_id, :seq, :tick, :agent_id, :currency, :delta, :memo, :resulting_balance)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, operationRow{RunID: runID, OperationRecord: rec}); err != nil {
			return fmt.Errorf("export operation %d: %w", rec.Seq, err)
		}
	}
	return tx.Commit()
}

// Operations returns the exported records of runID in sequence order.
func (s *AuditStore) Operations(ctx context.Context, runID string) ([]domain.OperationRecord, error) {
	var out []domain.OperationRecord
	err := s.conn.SelectContext(ctx, &out, `SELECT seq, tick, agent_id, currency, delta, memo, resulting_balance
		FROM operations WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("load operations: %w", err)
	}
	return out, nil
}

// Imbalances nets the exported deltas of runID per tick and currency in SQL.
func (s *AuditStore) Imbalances(ctx context.Context, runID string) ([]Imbalance, error) {
	var out []Imbalance
	err := s.conn.SelectContext(ctx, &out, `SELECT tick, currency, SUM(delta) AS net
		FROM operations WHERE run_id = ?
		GROUP BY tick, currency
		HAVING SUM(delta) != 0
		ORDER BY tick, currency`, runID)
	if err != nil {
		return nil, fmt.Errorf("net operations: %w", err)
	}
	return out, nil
}

// Create implements ports.AuditRepository.
func (s *AuditStore) Create(ctx context.Context, entry *domain.AuditLog) error {
	_, err := s.conn.ExecContext(ctx, `INSERT INTO audit_events
		(id, action, agent_id, resource_id, tick, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(), string(entry.Action), int64(entry.AgentID), entry.ResourceID,
		entry.Tick, entry.Details, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// CountAudit returns how many audit events with action were stored.
func (s *AuditStore) CountAudit(ctx context.Context, action domain.AuditAction) (int, error) {
	var n int
	if err := s.conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM audit_events WHERE action = ?`, string(action)); err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return n, nil
}
