package service

import (
	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"

	"github.com/shopspring/decimal"
)

// Income tax payer models.
const (
	IncomePayerFirm      = "FIRM"
	IncomePayerHousehold = "HOUSEHOLD"
)

// TaxRates configures a tax policy.
type TaxRates struct {
	Sales                decimal.Decimal
	Income               decimal.Decimal
	IncomePayer          string
	Inheritance          decimal.Decimal
	InheritanceDeduction domain.Money
}

type taxPolicy struct {
	rates TaxRates
}

// NewTaxPolicy creates a flat-rate tax policy. Every amount is rounded half-to-even.
func NewTaxPolicy(rates TaxRates) ports.TaxPolicy {
	if rates.IncomePayer == "" {
		rates.IncomePayer = IncomePayerHousehold
	}
	return &taxPolicy{rates: rates}
}

func (p *taxPolicy) SalesTax(value domain.Money) domain.Money {
	return domain.ApplyRate(value, p.rates.Sales)
}

func (p *taxPolicy) IncomeTax(wage domain.Money) domain.Money {
	return domain.ApplyRate(wage, p.rates.Income)
}

func (p *taxPolicy) IncomeTaxPayer() string {
	return p.rates.IncomePayer
}

// InheritanceTax returns max(0, wealth − deduction) × rate.
func (p *taxPolicy) InheritanceTax(wealth domain.Money) domain.Money {
	taxable := wealth - p.rates.InheritanceDeduction
	if taxable <= 0 {
		return 0
	}
	return domain.ApplyRate(taxable, p.rates.Inheritance)
}
