package domain

import (
	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is an opaque currency code such as "USD".
type Currency string

// DefaultCurrency is the primary currency used when a caller does not name one.
const DefaultCurrency Currency = "USD"

// Money is a signed count of minor units ("pennies"). The kernel never holds money as a float.
type Money int64

// IsNegative reports whether m is below zero.
func (m Money) IsNegative() bool { return m < 0 }

// Int64 returns the raw minor-unit count.
func (m Money) Int64() int64 { return int64(m) }

// Decimal lifts m into an exact decimal for rate arithmetic.
func (m Money) Decimal() decimal.Decimal { return decimal.NewFromInt(int64(m)) }

// Format renders m in display units. Only use at output boundaries.
func (m Money) Format(cur Currency) string {
	return gomoney.New(int64(m), string(cur)).Display()
}

// RoundHalfEven rounds an exact decimal to whole minor units using banker's rounding.
// Round-half-up accumulates a one-sided bias over many ticks.
func RoundHalfEven(d decimal.Decimal) Money {
	return Money(d.RoundBank(0).IntPart())
}

// ApplyRate returns m × rate rounded half-to-even.
func ApplyRate(m Money, rate decimal.Decimal) Money {
	return RoundHalfEven(m.Decimal().Mul(rate))
}

// Discount returns m × (1 − rate) rounded half-to-even.
func Discount(m Money, rate decimal.Decimal) Money {
	return RoundHalfEven(m.Decimal().Mul(decimal.NewFromInt(1).Sub(rate)))
}

// PriceTimes returns unit price × quantity rounded half-to-even.
func PriceTimes(price Money, qty decimal.Decimal) Money {
	return RoundHalfEven(price.Decimal().Mul(qty))
}

// SplitEvenly divides total into n integer shares by floor division.
// The remainder goes to the last share so the shares always sum to total.
func SplitEvenly(total Money, n int) []Money {
	if n <= 0 {
		return nil
	}
	base := total / Money(n)
	shares := make([]Money, n)
	for i := range shares {
		shares[i] = base
	}
	shares[n-1] += total - base*Money(n)
	return shares
}

// Balances is a currency → amount view used for reporting. It is never a wallet.
type Balances map[Currency]Money

// Plus returns a new Balances holding b + o.
func (b Balances) Plus(o Balances) Balances {
	out := make(Balances, len(b))
	for c, v := range b {
		out[c] = v
	}
	for c, v := range o {
		out[c] += v
	}
	return out
}

// Minus returns a new Balances holding b − o.
func (b Balances) Minus(o Balances) Balances {
	out := make(Balances, len(b))
	for c, v := range b {
		out[c] = v
	}
	for c, v := range o {
		out[c] -= v
	}
	return out
}

// Get returns the amount held in cur (zero when absent).
func (b Balances) Get(cur Currency) Money {
	return b[cur]
}
