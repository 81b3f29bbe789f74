package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"settlement-kernel/config"
	pgStorage "settlement-kernel/internal/adapter/storage/postgres"
	redisStorage "settlement-kernel/internal/adapter/storage/redis"
	sqliteStorage "settlement-kernel/internal/adapter/storage/sqlite"
	"settlement-kernel/internal/core/ports"
	"settlement-kernel/internal/metrics"
	"settlement-kernel/internal/service"

	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type runCmd struct {
	configPath   string
	scenarioPath string
	ticks        int64
	hydrate      bool
	metricsOut   string
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "settle a scripted scenario tick by tick" }
func (*runCmd) Usage() string {
	return `run [-config <file>] [-scenario <file>] [-ticks <n>] [-hydrate] [-metrics-out <file>]

  Registers the system agents named in the config, then the scenario agents,
  and settles one batch per tick. Without -scenario a small built-in economy
  runs for -ticks ticks.

  Optional collaborators follow the config: database.enabled persists balances
  and operations after every tick, redis.enabled publishes monetary telemetry
  and audit.sqlite_path exports the operation log for the verify command.
`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "Config file (default ./config.yaml or ./config/config.yaml)")
	f.StringVar(&c.scenarioPath, "scenario", "", "Scenario JSON file")
	f.Int64Var(&c.ticks, "ticks", 5, "Ticks of the built-in scenario")
	f.BoolVar(&c.hydrate, "hydrate", false, "Load persisted balances before the first tick (needs database.enabled)")
	f.StringVar(&c.metricsOut, "metrics-out", "", "Write Prometheus metrics in text format to this file after the run")
}

func (c *runCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(c.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return subcommands.ExitUsageError
	}
	log := newLogger(cfg.Log)

	if err := c.run(ctx, cfg, log, os.Stdout); err != nil {
		log.Error().Err(err).Msg("run aborted")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// collaborators are the optional storage adapters of one run.
type collaborators struct {
	pool      *pgxpool.Pool
	rdb       *goredis.Client
	store     *sqliteStorage.AuditStore
	telemetry *redisStorage.TelemetryCache
}

func openCollaborators(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*collaborators, error) {
	deps := &collaborators{}
	var checkers []ports.HealthChecker

	if cfg.Database.Enabled {
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return deps, err
		}
		deps.pool = pool
		if err := pgStorage.Migrate(ctx, pool); err != nil {
			return deps, err
		}
		checkers = append(checkers, pgStorage.NewHealthCheck(pool))
	}
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return deps, err
		}
		deps.rdb = rdb
		deps.telemetry = redisStorage.NewTelemetryCache(rdb, cfg.Redis.SnapshotTTL)
		checkers = append(checkers, redisStorage.NewHealthCheck(rdb))
	}
	if cfg.Audit.SQLitePath != "" {
		store, err := sqliteStorage.Open(cfg.Audit.SQLitePath)
		if err != nil {
			return deps, err
		}
		deps.store = store
	}
	return deps, checkHealth(ctx, log, checkers...)
}

func (d *collaborators) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
	if d.rdb != nil {
		d.rdb.Close()
	}
	if d.store != nil {
		d.store.Close()
	}
}

// auditService prefers the offline store so verify sees the run's audit events.
func (d *collaborators) auditService(log zerolog.Logger) ports.AuditService {
	var repo ports.AuditRepository
	switch {
	case d.store != nil:
		repo = d.store
	case d.pool != nil:
		repo = pgStorage.NewAuditRepository(d.pool)
	default:
		return nil
	}
	return service.NewAuditService(repo, log.With().Str("component", "audit").Logger())
}

func (c *runCmd) run(ctx context.Context, cfg *config.Config, log zerolog.Logger, out io.Writer) error {
	deps, err := openCollaborators(ctx, cfg, log)
	defer deps.Close()
	if err != nil {
		return err
	}

	opts, err := kernelOptions(cfg)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, cfg.Metrics.Namespace)
	k, err := newKernel(opts, deps.auditService(log), m, log)
	if err != nil {
		return err
	}

	sc := defaultScenario(opts.Roles, c.ticks)
	if c.scenarioPath != "" {
		if sc, err = loadScenario(c.scenarioPath); err != nil {
			return err
		}
	}
	if err := sc.setup(k); err != nil {
		return err
	}

	var (
		balances   *pgStorage.BalanceRepo
		operations *pgStorage.OperationRepo
		transactor *pgStorage.Transactor
	)
	if deps.pool != nil {
		balances = pgStorage.NewBalanceRepo(deps.pool)
		operations = pgStorage.NewOperationRepo(deps.pool)
		transactor = pgStorage.NewTransactor(deps.pool)
		if c.hydrate {
			if err := k.Hydrate(ctx, balances); err != nil {
				return err
			}
		}
	}

	runID := k.OperationLog().RunID().String()
	fmt.Fprintf(out, "run %s, %d agents, currency %s\n", runID, len(k.Directory().Agents()), k.Currency())

	for _, t := range sc.Ticks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(t.Deaths) > 0 {
			if _, err := k.ReportDeaths(ctx, t.Deaths, t.Tick); err != nil {
				return fmt.Errorf("report deaths at tick %d: %w", t.Tick, err)
			}
		}
		report, err := k.RunTick(ctx, t.Tick, t.Transactions)
		if report != nil {
			printTick(out, k, report)
		}
		if err != nil {
			return err
		}

		if deps.pool != nil {
			if err := k.Persist(ctx, transactor, balances, operations, t.Tick); err != nil {
				return fmt.Errorf("persist tick %d: %w", t.Tick, err)
			}
		}
		if deps.telemetry != nil {
			if err := k.PublishTelemetry(ctx, deps.telemetry); err != nil {
				log.Warn().Err(err).Int64("tick", t.Tick).Msg("telemetry not published")
			}
		}
	}

	records := k.OperationLog().Records()
	if deps.store != nil {
		if err := deps.store.ExportOperations(ctx, runID, records); err != nil {
			return fmt.Errorf("export operations: %w", err)
		}
	}
	printSummary(out, k)

	violations := service.VerifyZeroSum(records)
	fmt.Fprintf(out, "%s operations, %d zero-sum violations\n", humanize.Comma(int64(len(records))), len(violations))

	if c.metricsOut != "" {
		if err := prometheus.WriteToTextfile(c.metricsOut, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	if len(violations) > 0 {
		return errors.New("operation log does not net to zero")
	}
	return nil
}

func printTick(out io.Writer, k *service.Kernel, r *service.TickReport) {
	cur := k.Currency()
	fmt.Fprintf(out, "%s tick: %d committed, %d failed, %d skipped, %d sagas (%d failed), delta %s, expected M2 %s, drift %s, debt %s\n",
		humanize.Ordinal(int(r.Tick)), r.Committed, r.Failed, r.Skipped, len(r.Sagas), r.SagasFailed(),
		r.Delta.Format(cur), r.ExpectedM2.Format(cur), r.Integrity.Drift.Format(cur), r.SystemDebt.Format(cur))
	for _, res := range r.Results {
		if res.Err != nil {
			fmt.Fprintf(out, "  %s %d -> %d: %v\n", res.Tx.Type, res.Tx.BuyerID, res.Tx.SellerID, res.Err)
		}
	}
}

func printSummary(out io.Writer, k *service.Kernel) {
	cur := k.Currency()
	roles := k.Roles()
	agents := k.Directory().Agents()
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })

	fmt.Fprintln(out, "balances:")
	for _, a := range agents {
		marker := ""
		if roles.InSystemSet(a.ID) {
			marker = " (system)"
		}
		if !a.IsActive() {
			marker += " (inactive)"
		}
		fmt.Fprintf(out, "  %4d %-15s %15s%s\n", a.ID, a.Kind, a.Wallet.Balance(cur).Format(cur), marker)
	}
	fmt.Fprintf(out, "observed M2 %s, issued %s, destroyed %s\n",
		k.Reporting().ObservedM2(cur).Format(cur),
		k.Ledger().Issued(cur).Format(cur),
		k.Ledger().Destroyed(cur).Format(cur))
}
