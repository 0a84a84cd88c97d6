package core

import (
	"testing"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestApplyRate(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		rate     BasisPoints
		expected string
	}{
		{name: "Bid fee on 100 tokens", amount: "100000000000000000000", rate: 250, expected: "2500000000000000000"},
		{name: "Auction fee on 1000", amount: "1000", rate: 1000, expected: "100"},
		{name: "Truncates toward zero", amount: "999", rate: 3333, expected: "332"},
		{name: "Tiny amount rounds to zero", amount: "3", rate: 100, expected: "0"},
		{name: "Zero rate", amount: "1000", rate: 0, expected: "0"},
		{name: "Full rate", amount: "1234", rate: MaxBasisPoints, expected: "1234"},
		{name: "Zero amount", amount: "0", rate: 500, expected: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyRate(decimal.RequireFromString(tt.amount), tt.rate)
			check.Equal(t, decimal.RequireFromString(tt.expected), got)
		})
	}
}

func TestPercentage(t *testing.T) {
	total := decimal.NewFromInt(300)

	check.Equal(t, BasisPoints(3333), Percentage(decimal.NewFromInt(100), total))
	check.Equal(t, BasisPoints(6666), Percentage(decimal.NewFromInt(200), total))
	check.Equal(t, BasisPoints(0), Percentage(decimal.Zero, total))
	check.Equal(t, BasisPoints(0), Percentage(decimal.NewFromInt(5), decimal.Zero))
	check.Equal(t, MaxBasisPoints, Percentage(total, total))
}

func TestPercentage_SumNeverExceedsFull(t *testing.T) {
	stakes := []int64{1, 2, 3, 5, 7, 11, 13}
	total := decimal.Zero
	for _, s := range stakes {
		total = total.Add(decimal.NewFromInt(s))
	}

	var sum BasisPoints
	for _, s := range stakes {
		sum += Percentage(decimal.NewFromInt(s), total)
	}
	check.True(t, sum <= MaxBasisPoints)
}

func TestBasisPoints(t *testing.T) {
	check.Equal(t, "2.50%", BasisPoints(250).String())
	check.Equal(t, "100.00%", MaxBasisPoints.String())
	check.True(t, MaxBasisPoints.Valid())
	check.False(t, BasisPoints(10001).Valid())
}

func TestValidAmount(t *testing.T) {
	check.True(t, ValidAmount(decimal.NewFromInt(1)))
	check.False(t, ValidAmount(decimal.Zero))
	check.False(t, ValidAmount(decimal.NewFromInt(-5)))
	check.False(t, ValidAmount(decimal.RequireFromString("1.5")))
	check.True(t, ValidAmount(decimal.RequireFromString("10.000")))
}

func TestSumAmounts(t *testing.T) {
	m := map[Address]decimal.Decimal{
		"a": decimal.NewFromInt(10),
		"b": decimal.NewFromInt(32),
	}
	check.Equal(t, decimal.NewFromInt(42), SumAmounts(m))
	check.Equal(t, decimal.Zero, SumAmounts(map[string]decimal.Decimal{}))
}

func TestAmountBreakdown_Total(t *testing.T) {
	b := AmountBreakdown{
		HighestBid:     decimal.NewFromInt(1000),
		Fee:            decimal.NewFromInt(25),
		Royalty:        decimal.NewFromInt(50),
		Pirs:           decimal.NewFromInt(150),
		Bidback:        decimal.NewFromInt(100),
		SellerProceeds: decimal.NewFromInt(675),
	}
	check.Equal(t, b.HighestBid, b.Total())
	check.Equal(t, decimal.NewFromInt(250), b.Rewards())
}
