package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IntegrityReport compares the observed change of M2 over a tick with the change the
// ledger authorized.
type IntegrityReport struct {
	Tick            int64           `json:"tick"`
	Currency        domain.Currency `json:"currency"`
	ObservedBefore  domain.Money    `json:"observed_before"`
	ObservedAfter   domain.Money    `json:"observed_after"`
	ObservedDelta   domain.Money    `json:"observed_delta"`
	AuthorizedDelta domain.Money    `json:"authorized_delta"`
	Drift           domain.Money    `json:"drift"`
}

// OK reports whether the tick conserved money.
func (r IntegrityReport) OK() bool { return r.Drift == 0 }

// ZeroSumViolation is a tick whose wallet deltas do not net to zero.
type ZeroSumViolation struct {
	Tick     int64           `json:"tick"`
	Currency domain.Currency `json:"currency"`
	Net      domain.Money    `json:"net"`
}

// ReportingService observes balances and checks conservation.
type ReportingService struct {
	dir    ports.AgentDirectory
	ledger ports.MonetaryLedger
	roles  domain.Roles
	audit  ports.AuditService
	log    zerolog.Logger
}

// NewReportingService creates a new reporting service.
func NewReportingService(dir ports.AgentDirectory, ledger ports.MonetaryLedger, roles domain.Roles, audit ports.AuditService, log zerolog.Logger) *ReportingService {
	return &ReportingService{dir: dir, ledger: ledger, roles: roles, audit: audit, log: log}
}

// ObservedM2 sums the live balances of every agent outside the system set.
func (s *ReportingService) ObservedM2(cur domain.Currency) domain.Money {
	var sum domain.Money
	for _, a := range s.dir.Agents() {
		if s.roles.InSystemSet(a.ID) {
			continue
		}
		sum += a.Wallet.Balance(cur)
	}
	return sum
}

// CheckIntegrity measures the tick's drift given the M2 observed before it started.
// A drift is logged at error level and audited.
func (s *ReportingService) CheckIntegrity(ctx context.Context, cur domain.Currency, before domain.Money, tick int64) IntegrityReport {
	after := s.ObservedM2(cur)
	r := IntegrityReport{
		Tick:            tick,
		Currency:        cur,
		ObservedBefore:  before,
		ObservedAfter:   after,
		ObservedDelta:   after - before,
		AuthorizedDelta: s.ledger.MonetaryDelta(cur),
	}
	r.Drift = r.ObservedDelta - r.AuthorizedDelta
	if r.OK() {
		return r
	}

	s.log.Error().
		Int64("tick", tick).
		Str("currency", string(cur)).
		Int64("observed_delta", int64(r.ObservedDelta)).
		Int64("authorized_delta", int64(r.AuthorizedDelta)).
		Int64("drift", int64(r.Drift)).
		Msg("money supply drift detected")
	if s.audit != nil {
		s.audit.Log(ctx, &domain.AuditLog{
			ID:         uuid.New(),
			Action:     domain.AuditActionIntegrityDrift,
			ResourceID: string(cur),
			Tick:       tick,
			Details:    fmt.Sprintf(`{"observed_delta":%d,"authorized_delta":%d,"drift":%d}`, r.ObservedDelta, r.AuthorizedDelta, r.Drift),
			CreatedAt:  time.Now().UTC(),
		})
	}
	return r
}

// VerifyZeroSum replays an operation log offline. Every mint moves money out of an
// authority wallet, so the deltas of all wallets must net to zero per tick and currency.
func VerifyZeroSum(records []domain.OperationRecord) []ZeroSumViolation {
	type key struct {
		tick int64
		cur  domain.Currency
	}
	net := make(map[key]domain.Money)
	for _, r := range records {
		net[key{r.Tick, r.Currency}] += r.Delta
	}

	var out []ZeroSumViolation
	for k, v := range net {
		if v != 0 {
			out = append(out, ZeroSumViolation{Tick: k.tick, Currency: k.cur, Net: v})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tick != out[j].Tick {
			return out[i].Tick < out[j].Tick
		}
		return out[i].Currency < out[j].Currency
	})
	return out
}
