package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"
	"settlement-kernel/internal/metrics"
	"settlement-kernel/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// KernelOptions configures a Kernel.
type KernelOptions struct {
	Roles          domain.Roles
	Currency       domain.Currency
	GenesisBalance domain.Money
	Taxes          TaxRates
	Mortgage       MortgageTerms
	MortgageLTV    decimal.Decimal
	Estate         EstateOptions
}

// TickReport summarizes one RunTick call.
type TickReport struct {
	Tick       int64
	Results    []domain.TxResult
	Sagas      []*domain.EstateSaga
	FollowUps  []*domain.Transaction
	Committed  int
	Failed     int
	Skipped    int
	Delta      domain.Money
	ExpectedM2 domain.Money
	SystemDebt domain.Money
	Integrity  IntegrityReport
	Duration   time.Duration
}

// SagasFailed counts sagas that did not reach DONE.
func (r *TickReport) SagasFailed() int {
	n := 0
	for _, s := range r.Sagas {
		if s.State != domain.SagaDone {
			n++
		}
	}
	return n
}

// Kernel wires the settlement components together and runs ticks.
type Kernel struct {
	opts KernelOptions

	oplog      *domain.OperationLog
	dir        ports.AgentDirectory
	ledger     *MonetaryLedger
	registry   *Registry
	accounting ports.Accounting
	taxes      ports.TaxPolicy
	loans      ports.LoanBook
	settlement *SettlementService
	processor  *TransactionProcessor
	estates    *InheritanceManager
	sagas      *SagaOrchestrator
	reporting  *ReportingService
	audit      ports.AuditService
	metrics    *metrics.Metrics
	log        zerolog.Logger

	lastReport   *TickReport
	persistedOps int
}

// NewKernel builds a kernel with a fresh operation log. audit and m may be nil.
func NewKernel(opts KernelOptions, audit ports.AuditService, m *metrics.Metrics, log zerolog.Logger) (*Kernel, error) {
	if opts.Currency == "" {
		opts.Currency = domain.DefaultCurrency
	}
	if len(opts.Roles.CreationAuthorities) == 0 {
		return nil, apperror.ErrMalformedConfig("at least one creation authority is required")
	}

	k := &Kernel{
		opts:    opts,
		oplog:   domain.NewOperationLog(),
		dir:     NewAgentDirectory(),
		audit:   audit,
		metrics: m,
		log:     log,
	}
	k.ledger = NewMonetaryLedger(opts.Roles, opts.Currency, m, log.With().Str("component", "ledger").Logger())
	k.registry = NewRegistry(k.dir, log.With().Str("component", "registry").Logger())
	k.accounting = NewAccounting(opts.Roles)
	k.taxes = NewTaxPolicy(opts.Taxes)
	k.loans = NewLoanBook(opts.Roles.Bank, opts.Mortgage, log.With().Str("component", "loans").Logger())
	k.settlement = NewSettlementService(k.dir, k.ledger, k.registry, opts.Roles, audit, m, log.With().Str("component", "settlement").Logger())
	k.processor = NewTransactionProcessor(ProcessorDeps{
		Settlement:  k.settlement,
		Directory:   k.dir,
		Ledger:      k.ledger,
		Registry:    k.registry,
		Accounting:  k.accounting,
		Taxes:       k.taxes,
		Loans:       k.loans,
		Market:      k.registry,
		Roles:       opts.Roles,
		Currency:    opts.Currency,
		MortgageLTV: opts.MortgageLTV,
	}, m, log.With().Str("component", "dispatcher").Logger())
	k.estates = NewInheritanceManager(k.dir, k.settlement, k.processor, k.registry, k.registry, k.taxes,
		opts.Roles, opts.Currency, opts.Estate, log.With().Str("component", "estate").Logger())
	k.sagas = NewSagaOrchestrator(k.estates, audit, m, log.With().Str("component", "saga").Logger())
	k.reporting = NewReportingService(k.dir, k.ledger, opts.Roles, audit, log.With().Str("component", "reporting").Logger())
	return k, nil
}

func (k *Kernel) OperationLog() *domain.OperationLog { return k.oplog }
func (k *Kernel) Directory() ports.AgentDirectory { return k.dir }
func (k *Kernel) Ledger() *MonetaryLedger { return k.ledger }
func (k *Kernel) Registry() *Registry { return k.registry }
func (k *Kernel) Accounting() ports.Accounting { return k.accounting }
func (k *Kernel) Loans() ports.LoanBook { return k.loans }
func (k *Kernel) Settlement() ports.SettlementAuthority { return k.settlement }
func (k *Kernel) Processor() *TransactionProcessor { return k.processor }
func (k *Kernel) Estates() *InheritanceManager { return k.estates }
func (k *Kernel) Reporting() *ReportingService { return k.reporting }
func (k *Kernel) LastReport() *TickReport { return k.lastReport }
func (k *Kernel) Currency() domain.Currency { return k.opts.Currency }
func (k *Kernel) Roles() domain.Roles { return k.opts.Roles }

// RegisterAgent creates an agent and mints its genesis balance from the primary creation
// authority. Creation authorities get a wallet that may go negative and no genesis mint.
// A negative genesis uses the configured default.
func (k *Kernel) RegisterAgent(id domain.AgentID, kind domain.AgentKind, genesis domain.Money, tick int64) (*domain.Agent, error) {
	if !kind.Valid() {
		return nil, apperror.ErrMalformedConfig(fmt.Sprintf("unknown agent kind %q", kind))
	}
	authority := k.opts.Roles.IsCreationAuthority(id)
	a := domain.NewAgent(id, kind, k.oplog, authority)
	if err := k.dir.Register(a); err != nil {
		return nil, err
	}

	if genesis < 0 {
		genesis = k.opts.GenesisBalance
	}
	if !authority && genesis > 0 {
		if _, err := k.settlement.CreateAndTransfer(k.opts.Roles.PrimaryAuthority(), id, genesis, k.opts.Currency, "genesis", tick); err != nil {
			return nil, err
		}
	}

	k.log.Debug().Int64("agent_id", int64(id)).Str("kind", string(kind)).Int64("genesis", int64(genesis)).Msg("agent registered")
	k.auditEvent(domain.AuditActionAgentRegistered, id, "", tick, fmt.Sprintf(`{"kind":%q,"genesis":%d}`, kind, genesis))
	return a, nil
}

// RemoveAgent escheats the live balance of id to the government, then closes its wallet.
func (k *Kernel) RemoveAgent(id domain.AgentID, tick int64) error {
	a, err := k.dir.Agent(id)
	if err != nil {
		return err
	}
	tx := domain.NewTransfer(domain.TransactionTypeEscheatment, id, k.opts.Roles.Government, 0, tick)
	res, err := k.processor.Execute(tx, tick)
	if err != nil {
		return err
	}
	if !res.Success() {
		return res.Err
	}
	a.Wallet.Close()
	a.Deactivate()
	k.auditEvent(domain.AuditActionAgentRemoved, id, tx.ID.String(), tick,
		fmt.Sprintf(`{"escheated":%d}`, res.Outcome.TradeValue))
	return nil
}

// ReportDeath values the estate of id now and queues its settlement saga for the next
// RunTick.
func (k *Kernel) ReportDeath(id domain.AgentID, tick int64) (*domain.EstateSaga, error) {
	a, err := k.dir.Agent(id)
	if err != nil {
		return nil, err
	}
	if !a.IsActive() {
		return nil, apperror.ErrMalformedConfig(fmt.Sprintf("agent %d is already inactive", id))
	}
	a.Deactivate()
	v, err := k.estates.Value(id)
	if err != nil {
		return nil, err
	}
	saga := domain.NewEstateSaga(v, a.HeirIDs(), k.opts.Roles.Government, tick)
	if err := k.sagas.SubmitSaga(saga); err != nil {
		return nil, err
	}
	k.log.Info().
		Int64("deceased_id", int64(id)).
		Str("saga_id", saga.ID.String()).
		Int64("total_wealth", int64(v.TotalWealth)).
		Int64("tax_due", int64(v.TaxDue)).
		Msg("estate saga submitted")
	return saga, nil
}

// ReportDeaths values several estates in parallel and queues their sagas in the
// order given. Nothing is queued if any id is unknown, repeated or already inactive.
func (k *Kernel) ReportDeaths(ctx context.Context, ids []domain.AgentID, tick int64) ([]*domain.EstateSaga, error) {
	agents := make([]*domain.Agent, 0, len(ids))
	seen := make(map[domain.AgentID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, apperror.ErrMalformedConfig(fmt.Sprintf("agent %d is reported dead twice", id))
		}
		seen[id] = true
		a, err := k.dir.Agent(id)
		if err != nil {
			return nil, err
		}
		if !a.IsActive() {
			return nil, apperror.ErrMalformedConfig(fmt.Sprintf("agent %d is already inactive", id))
		}
		agents = append(agents, a)
	}
	vals, err := k.estates.ValueEstates(ctx, ids)
	if err != nil {
		return nil, err
	}

	sagas := make([]*domain.EstateSaga, 0, len(ids))
	for i, a := range agents {
		a.Deactivate()
		saga := domain.NewEstateSaga(vals[i], a.HeirIDs(), k.opts.Roles.Government, tick)
		if err := k.sagas.SubmitSaga(saga); err != nil {
			return sagas, err
		}
		sagas = append(sagas, saga)
	}
	k.log.Info().Int("estates", len(sagas)).Int64("tick", tick).Msg("estate sagas submitted")
	return sagas, nil
}

// RunTick settles one batch. The ledger snapshot is taken before the first transaction.
// A configuration error halts the tick and is returned with the partial report.
func (k *Kernel) RunTick(ctx context.Context, tick int64, txs []*domain.Transaction) (*TickReport, error) {
	start := time.Now()
	log := k.log.With().Int64("tick", tick).Logger()

	if err := k.ledger.ResetTickFlow(tick); err != nil {
		log.Error().Err(err).Msg("tick flow reset rejected")
		return nil, err
	}
	k.accounting.ResetTick()
	cur := k.opts.Currency
	before := k.reporting.ObservedM2(cur)

	report := &TickReport{Tick: tick}
	results, err := k.processor.Process(txs, tick)
	report.Results = results
	if err != nil {
		return report, err
	}
	sagas, err := k.sagas.Execute(tick)
	report.Sagas = sagas
	if err != nil {
		return report, err
	}

	var committed []*domain.Transaction
	for _, r := range results {
		switch r.Status {
		case domain.TxCommitted:
			report.Committed++
			committed = append(committed, r.Tx)
			report.FollowUps = append(report.FollowUps, r.Outcome.FollowUps...)
		case domain.TxFailed:
			report.Failed++
		case domain.TxSkipped:
			report.Skipped++
		}
	}
	for _, s := range sagas {
		if s.State != domain.SagaDone {
			continue
		}
		committed = append(committed, s.Executed...)
		if a, err := k.dir.Agent(s.DeceasedID); err == nil {
			a.Wallet.Close()
		}
	}
	k.ledger.ProcessTransactions(committed)

	report.Integrity = k.reporting.CheckIntegrity(ctx, cur, before, tick)
	report.Delta = k.ledger.MonetaryDelta(cur)
	report.ExpectedM2 = k.ledger.ExpectedM2(cur)
	report.SystemDebt = k.ledger.SystemDebt(cur)
	report.Duration = time.Since(start)

	k.metrics.SetTickFigures(string(cur), int64(report.Delta), int64(report.Integrity.Drift), int64(report.SystemDebt))
	k.metrics.ObserveTick(report.Duration)
	log.Info().
		Int("committed", report.Committed).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Int("sagas", len(report.Sagas)).
		Int64("monetary_delta", int64(report.Delta)).
		Int64("drift", int64(report.Integrity.Drift)).
		Dur("duration", report.Duration).
		Msg("tick settled")

	k.lastReport = report
	return report, nil
}

// Hydrate loads persisted balances into registered wallets and rebases the ledger so that
// expected M2 matches what was loaded. Loading does not write to the operation log.
func (k *Kernel) Hydrate(ctx context.Context, store ports.BalanceStore) error {
	rows, err := store.LoadBalances(ctx)
	if err != nil {
		return fmt.Errorf("load balances: %w", err)
	}
	currencies := map[domain.Currency]struct{}{k.opts.Currency: {}}
	for id, balances := range rows {
		a, err := k.dir.Agent(id)
		if err != nil {
			return err
		}
		a.Wallet.LoadBalances(balances)
		for c := range balances {
			currencies[c] = struct{}{}
		}
	}
	for c := range currencies {
		observed := k.reporting.ObservedM2(c)
		k.ledger.SetBaseM2(c, observed-k.ledger.Issued(c)+k.ledger.Destroyed(c))
	}
	k.log.Info().Int("agents", len(rows)).Msg("balances hydrated")
	return nil
}

// Persist writes a balance snapshot and the operation records not yet persisted in one
// database transaction.
func (k *Kernel) Persist(ctx context.Context, db ports.DBTransactor, balances ports.BalanceStore, ops ports.OperationStore, tick int64) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var rows []ports.BalanceRow
	for _, a := range k.dir.Agents() {
		b := a.Wallet.Balances()
		currencies := make([]domain.Currency, 0, len(b))
		for c := range b {
			currencies = append(currencies, c)
		}
		sort.Slice(currencies, func(i, j int) bool { return currencies[i] < currencies[j] })
		for _, c := range currencies {
			rows = append(rows, ports.BalanceRow{AgentID: a.ID, Currency: c, Balance: b[c], Tick: tick})
		}
	}
	if err := balances.SaveBalances(ctx, tx, rows); err != nil {
		return fmt.Errorf("save balances: %w", err)
	}

	records := k.oplog.Since(k.persistedOps)
	if len(records) > 0 {
		if err := ops.AppendOperations(ctx, tx, k.oplog.RunID().String(), records); err != nil {
			return fmt.Errorf("append operations: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	k.persistedOps += len(records)
	return nil
}

// PublishTelemetry hands the last tick's monetary figures to pub.
func (k *Kernel) PublishTelemetry(ctx context.Context, pub ports.TelemetryPublisher) error {
	r := k.lastReport
	if r == nil {
		return apperror.ErrNotFound("tick report")
	}
	return pub.Publish(ctx, &ports.MonetarySnapshot{
		RunID:       k.oplog.RunID().String(),
		Tick:        r.Tick,
		Currency:    string(k.opts.Currency),
		Delta:       r.Delta,
		ObservedM2:  r.Integrity.ObservedAfter,
		ExpectedM2:  r.ExpectedM2,
		Drift:       r.Integrity.Drift,
		SystemDebt:  r.SystemDebt,
		Committed:   r.Committed,
		Failed:      r.Failed,
		SagasFailed: r.SagasFailed(),
	})
}

func (k *Kernel) auditEvent(action domain.AuditAction, id domain.AgentID, resource string, tick int64, details string) {
	if k.audit == nil {
		return
	}
	k.audit.Log(context.Background(), &domain.AuditLog{
		ID:         uuid.New(),
		Action:     action,
		AgentID:    id,
		ResourceID: resource,
		Tick:       tick,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	})
}
