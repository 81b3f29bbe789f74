package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"settlement-kernel/config"
	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"
	"settlement-kernel/internal/metrics"
	"settlement-kernel/internal/service"
	"settlement-kernel/pkg/logger"

	"github.com/rs/zerolog"
)

// kernelOptions translates validated config into kernel options.
func kernelOptions(cfg *config.Config) (service.KernelOptions, error) {
	rates, err := cfg.Rates()
	if err != nil {
		return service.KernelOptions{}, err
	}
	k := cfg.Kernel

	authorities := make([]domain.AgentID, 0, len(k.CreationAuthorities))
	for _, id := range k.CreationAuthorities {
		authorities = append(authorities, domain.AgentID(id))
	}
	liquidationBuyer := domain.AgentID(k.LiquidationBuyerID)
	if liquidationBuyer == 0 {
		liquidationBuyer = domain.AgentID(k.GovernmentID)
	}

	return service.KernelOptions{
		Roles: domain.Roles{
			CreationAuthorities:  authorities,
			DestructionAuthority: domain.AgentID(k.DestructionAuthority),
			CentralBank:          domain.AgentID(k.CentralBankID),
			Government:           domain.AgentID(k.GovernmentID),
			Bank:                 domain.AgentID(k.BankID),
			PublicManager:        domain.AgentID(k.PublicManagerID),
			Escrow:               domain.AgentID(k.EscrowID),
			LiquidationBuyer:     liquidationBuyer,
		},
		Currency:       domain.Currency(k.DefaultCurrency),
		GenesisBalance: domain.Money(k.GenesisBalance),
		Taxes: service.TaxRates{
			Sales:                rates.Sales,
			Income:               rates.Income,
			IncomePayer:          cfg.Tax.IncomePayer,
			Inheritance:          rates.Inheritance,
			InheritanceDeduction: domain.Money(cfg.Tax.InheritanceDeduction),
		},
		Mortgage: service.MortgageTerms{
			Rate:      rates.MortgageRate,
			TermTicks: cfg.Housing.MortgageTermTicks,
		},
		MortgageLTV: rates.LTV,
		Estate: service.EstateOptions{
			FireSaleDiscount: rates.FireSaleDiscount,
			ValuationWorkers: cfg.Estate.ValuationWorkers,
		},
	}, nil
}

// newKernel builds a kernel and registers every system agent named by the roles.
// Authorities outside the named roles are registered as central banks.
func newKernel(opts service.KernelOptions, audit ports.AuditService, m *metrics.Metrics, log zerolog.Logger) (*service.Kernel, error) {
	k, err := service.NewKernel(opts, audit, m, log)
	if err != nil {
		return nil, err
	}

	r := opts.Roles
	system := []struct {
		id   domain.AgentID
		kind domain.AgentKind
	}{
		{r.CentralBank, domain.AgentKindCentralBank},
		{r.Government, domain.AgentKindGovernment},
		{r.Bank, domain.AgentKindBank},
		{r.PublicManager, domain.AgentKindPublicManager},
		{r.Escrow, domain.AgentKindEscrow},
	}
	authorities := append(append([]domain.AgentID(nil), r.CreationAuthorities...), r.DestructionAuthority)
	for _, id := range authorities {
		system = append(system, struct {
			id   domain.AgentID
			kind domain.AgentKind
		}{id, domain.AgentKindCentralBank})
	}

	seen := make(map[domain.AgentID]bool)
	for _, s := range system {
		if s.id == 0 || seen[s.id] {
			continue
		}
		seen[s.id] = true
		if _, err := k.RegisterAgent(s.id, s.kind, 0, 0); err != nil {
			return nil, fmt.Errorf("register system agent %d: %w", s.id, err)
		}
	}
	return k, nil
}

// newLogger writes logs to stderr so stdout carries only the report.
func newLogger(cfg config.LogConfig) zerolog.Logger {
	var w io.Writer = os.Stderr
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return logger.NewWithWriter(cfg.Level, w)
}

func checkHealth(ctx context.Context, log zerolog.Logger, checkers ...ports.HealthChecker) error {
	for _, hc := range checkers {
		if err := hc.Ping(ctx); err != nil {
			return fmt.Errorf("%s unhealthy: %w", hc.Name(), err)
		}
		log.Info().Str("dependency", hc.Name()).Msg("dependency healthy")
	}
	return nil
}
