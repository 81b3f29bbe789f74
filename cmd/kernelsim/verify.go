package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"settlement-kernel/config"
	sqliteStorage "settlement-kernel/internal/adapter/storage/sqlite"
	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/service"

	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"
)

type verifyCmd struct {
	configPath string
	dbPath     string
	runID      string
}

func (*verifyCmd) Name() string     { return "verify" }
func (*verifyCmd) Synopsis() string { return "check that an exported run nets to zero per tick" }
func (*verifyCmd) Usage() string {
	return `verify -run <run-id> [-db <sqlite file>] [-config <file>]

  Replays the operation log exported by "run" and reports every tick and
  currency whose wallet deltas do not sum to zero. The database defaults to
  audit.sqlite_path from the config.
`
}

func (c *verifyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "Config file")
	f.StringVar(&c.dbPath, "db", "", "SQLite export file (overrides audit.sqlite_path)")
	f.StringVar(&c.runID, "run", "", "Run ID printed by the run command (required)")
}

func (c *verifyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.runID == "" {
		fmt.Fprintln(os.Stderr, "Error: -run is required.")
		return subcommands.ExitUsageError
	}
	path := c.dbPath
	if path == "" {
		cfg, err := config.Load(c.configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			return subcommands.ExitUsageError
		}
		path = cfg.Audit.SQLitePath
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "Error: no SQLite export configured, pass -db.")
		return subcommands.ExitUsageError
	}

	ok, err := verify(ctx, path, c.runID, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if !ok {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// verify reports whether the exported run balances. The Go replay and the SQL
// aggregate must agree.
func verify(ctx context.Context, path, runID string, out io.Writer) (bool, error) {
	store, err := sqliteStorage.Open(path)
	if err != nil {
		return false, err
	}
	defer store.Close()

	records, err := store.Operations(ctx, runID)
	if err != nil {
		return false, err
	}
	if len(records) == 0 {
		return false, fmt.Errorf("run %s has no exported operations", runID)
	}
	violations := service.VerifyZeroSum(records)
	imbalances, err := store.Imbalances(ctx, runID)
	if err != nil {
		return false, err
	}
	if len(violations) != len(imbalances) {
		return false, fmt.Errorf("replay found %d violations, SQL found %d", len(violations), len(imbalances))
	}

	fmt.Fprintf(out, "run %s: %s operations\n", runID, humanize.Comma(int64(len(records))))
	for _, v := range violations {
		fmt.Fprintf(out, "  tick %d %s nets to %s\n", v.Tick, v.Currency, v.Net.Format(v.Currency))
	}

	for _, action := range []domain.AuditAction{domain.AuditActionRollbackFailed, domain.AuditActionIntegrityDrift} {
		n, err := store.CountAudit(ctx, action)
		if err != nil {
			return false, err
		}
		if n > 0 {
			fmt.Fprintf(out, "  %s audit events: %d\n", action, n)
		}
	}
	if len(violations) > 0 {
		return false, nil
	}
	fmt.Fprintln(out, "zero-sum OK")
	return true, nil
}
