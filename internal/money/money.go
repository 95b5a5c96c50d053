package money

import (
	"github.com/shopspring/decimal"
)

// Money amounts are decimal values with two fractional digits. All arithmetic
// that produces amounts destined for the ledger must go through this package
// so rounding behaves the same everywhere.

var Zero = decimal.Zero

// FromString parses a decimal string amount, rounding to two decimals so
// sub-cent inputs never reach the ledger.
func FromString(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Round(2), nil
}

// IsPositive reports whether amount > 0.
func IsPositive(amount decimal.Decimal) bool {
	return amount.GreaterThan(decimal.Zero)
}

// IsNegative reports whether amount < 0.
func IsNegative(amount decimal.Decimal) bool {
	return amount.LessThan(decimal.Zero)
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// SplitEven divides total into n installment amounts. Every installment gets
// the two-decimal floor of total/n and the last one absorbs the remainder, so
// the installments always sum back to total exactly.
func SplitEven(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []decimal.Decimal{total}
	}

	base := total.Div(decimal.NewFromInt(int64(n))).RoundDown(2)
	amounts := make([]decimal.Decimal, n)
	for i := 0; i < n-1; i++ {
		amounts[i] = base
	}
	amounts[n-1] = total.Sub(base.Mul(decimal.NewFromInt(int64(n - 1))))
	return amounts
}

// Commission returns (commission, net) for a gross amount at the given rate.
// Commission rounds half-up to two decimals; net is gross minus commission so
// the two always recompose to gross exactly.
func Commission(gross, rate decimal.Decimal) (commission, net decimal.Decimal) {
	commission = gross.Mul(rate).Round(2)
	net = gross.Sub(commission)
	return commission, net
}

// Sum adds up a slice of amounts.
func Sum(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
