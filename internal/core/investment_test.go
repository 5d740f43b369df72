package core

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func investment(date string, amount int64, rate float64, investmentType string) Allocation {
	a := alloc(date, amount, Investments)
	a.InterestRate = &rate
	a.InvestmentType = investmentType
	return a
}

func TestMonthlyRate(t *testing.T) {
	if got := MonthlyRate(0); got != 0 {
		t.Fatalf("zero annual rate: got %v", got)
	}
	// (1.12)^(1/12) - 1
	if got := MonthlyRate(12); math.Abs(got-0.009489) > 1e-6 {
		t.Fatalf("12%% annual: got %v, want ~0.009489", got)
	}
}

func TestAllocationValue_TwelveMonthsAtTwelvePercent(t *testing.T) {
	// Twelve months at the geometric monthly equivalent of 12% compounds
	// back to exactly one year of annual growth.
	today := NewDate(2024, 6, 15)
	a := investment("2023-06-15", 1000, 12, "Stocks")
	if got := AllocationValue(a, today); math.Abs(got-1120) > 0.01 {
		t.Fatalf("value = %f, want ~1120", got)
	}
}

func TestAllocationValue_Clamps(t *testing.T) {
	today := NewDate(2024, 6, 15)

	// No rate: value stays at principal regardless of elapsed time.
	flat := alloc("2020-01-01", 500, Investments)
	if got := AllocationValue(flat, today); got != 500 {
		t.Errorf("rateless value = %f, want 500", got)
	}

	// Future-dated allocation: elapsed months clamp to zero.
	future := investment("2025-01-01", 1000, 12, "")
	if got := AllocationValue(future, today); got != 1000 {
		t.Errorf("future value = %f, want 1000", got)
	}
}

func TestSummarizeInvestments(t *testing.T) {
	today := NewDate(2024, 6, 15)
	allocations := []Allocation{
		investment("2023-06-15", 1000, 12, "Stocks"),
		investment("2024-05-15", 2000, 6, "Fixed Income"),
		alloc("2024-01-01", 750, Investments), // no rate, no type
		alloc("2024-01-01", 9999, Goals),      // not an investment
	}

	s := SummarizeInvestments(allocations, today)

	if !s.TotalContributions.Equal(decimal.NewFromInt(3750)) {
		t.Fatalf("contributions = %s, want 3750", s.TotalContributions)
	}
	if s.CurrentValue < s.TotalContributions.InexactFloat64() {
		t.Fatalf("current value %f below contributions", s.CurrentValue)
	}
	if s.Growth < 0 {
		t.Fatalf("negative growth %f", s.Growth)
	}
	if math.Abs((s.CurrentValue-s.Growth)-s.TotalContributions.InexactFloat64()) > 1e-6 {
		t.Fatalf("value %f - growth %f != contributions %s", s.CurrentValue, s.Growth, s.TotalContributions)
	}

	types := make(map[string]float64, len(s.PortfolioBreakdown))
	for _, slice := range s.PortfolioBreakdown {
		types[slice.Name] = slice.Value
	}
	if len(types) != 3 {
		t.Fatalf("breakdown buckets = %d, want 3 (%+v)", len(types), s.PortfolioBreakdown)
	}
	if _, ok := types[UnclassifiedInvestmentType]; !ok {
		t.Fatal("missing unclassified bucket")
	}
	if types["Fixed Income"] < 2000 {
		t.Fatalf("fixed income bucket %f lost principal", types["Fixed Income"])
	}
}

func TestSummarizeInvestments_FloorAppliesToAggregate(t *testing.T) {
	s := SummarizeInvestments(nil, NewDate(2024, 1, 1))
	if s.CurrentValue != 0 || s.Growth != 0 || s.TotalContributions.Sign() != 0 {
		t.Fatalf("empty aggregate: %+v", s)
	}
}
