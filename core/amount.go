package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BasisPoints expresses a rate where 10000 = 100%.
type BasisPoints uint32

// MaxBasisPoints is 100%.
const MaxBasisPoints BasisPoints = 10000

var basisPointsDivisor = decimal.NewFromInt(int64(MaxBasisPoints))

// Decimal returns the rate as a decimal number of basis points.
func (bp BasisPoints) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(bp))
}

func (bp BasisPoints) String() string {
	return fmt.Sprintf("%d.%02d%%", bp/100, bp%100)
}

// Valid reports whether the rate is within 0..10000.
func (bp BasisPoints) Valid() bool {
	return bp <= MaxBasisPoints
}

// ApplyRate returns floor(amount * rate / 10000).
// Amounts are integral base units, so the result is integral too.
func ApplyRate(amount decimal.Decimal, rate BasisPoints) decimal.Decimal {
	if rate == 0 || !amount.IsPositive() {
		return decimal.Zero
	}
	q, _ := amount.Mul(rate.Decimal()).QuoRem(basisPointsDivisor, 0)
	return q
}

// Percentage returns floor(part * 10000 / total), or 0 when total is not positive.
// Summing the percentages of a pool may give less than 10000, never more.
func Percentage(part, total decimal.Decimal) BasisPoints {
	if !total.IsPositive() || !part.IsPositive() {
		return 0
	}
	q, _ := part.Mul(basisPointsDivisor).QuoRem(total, 0)
	if q.GreaterThan(basisPointsDivisor) {
		return MaxBasisPoints
	}
	return BasisPoints(q.IntPart())
}

// ValidAmount reports whether d is a strictly positive whole number of base units.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Truncate(0))
}

// SumAmounts adds every value in the map.
func SumAmounts[K comparable](m map[K]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range m {
		total = total.Add(v)
	}
	return total
}
