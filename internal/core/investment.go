package core

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// UnclassifiedInvestmentType buckets investment allocations that carry no
// free-text type label in the portfolio breakdown.
const UnclassifiedInvestmentType = "unclassified"

// PortfolioSlice is one investment type's share of the current portfolio
// value.
type PortfolioSlice struct {
	Name  string
	Value float64
}

// InvestmentSummary aggregates all investment allocations compounded to
// today.
type InvestmentSummary struct {
	TotalContributions decimal.Decimal
	// CurrentValue is the compounded value, floored at the contribution
	// total so rounding can never report a phantom loss.
	CurrentValue float64
	// Growth is CurrentValue minus contributions, never negative.
	Growth             float64
	PortfolioBreakdown []PortfolioSlice
}

// MonthlyRate converts an annual percentage rate to its equivalent monthly
// compounding rate: (1+annual/100)^(1/12) - 1.
func MonthlyRate(annualPercent float64) float64 {
	if annualPercent == 0 {
		return 0
	}
	return math.Pow(1+annualPercent/100, 1.0/12) - 1
}

// AllocationValue compounds a single allocation from its date to today. A
// missing rate leaves the value at principal; an allocation dated in the
// future is clamped to zero elapsed months.
func AllocationValue(a Allocation, today Date) float64 {
	rate := 0.0
	if a.InterestRate != nil {
		rate = *a.InterestRate
	}
	months := MonthsBetween(a.Date, today)
	if months < 0 {
		months = 0
	}
	return a.Amount.InexactFloat64() * math.Pow(1+MonthlyRate(rate), float64(months))
}

// SummarizeInvestments computes the investment aggregate over all
// allocations in the investments category. Non-investment allocations are
// ignored.
func SummarizeInvestments(allocations []Allocation, today Date) InvestmentSummary {
	summary := InvestmentSummary{}

	currentValue := 0.0
	breakdown := make(map[string]float64)
	for _, a := range allocations {
		if a.Category != Investments {
			continue
		}
		summary.TotalContributions = summary.TotalContributions.Add(a.Amount)

		value := AllocationValue(a, today)
		currentValue += value

		name := a.InvestmentType
		if name == "" {
			name = UnclassifiedInvestmentType
		}
		breakdown[name] += value
	}

	contributions := summary.TotalContributions.InexactFloat64()
	summary.CurrentValue = math.Max(contributions, currentValue)
	summary.Growth = math.Max(0, currentValue-contributions)

	summary.PortfolioBreakdown = make([]PortfolioSlice, 0, len(breakdown))
	for name, value := range breakdown {
		summary.PortfolioBreakdown = append(summary.PortfolioBreakdown, PortfolioSlice{Name: name, Value: value})
	}
	sort.Slice(summary.PortfolioBreakdown, func(i, j int) bool {
		a, b := summary.PortfolioBreakdown[i], summary.PortfolioBreakdown[j]
		if a.Value != b.Value {
			return a.Value > b.Value
		}
		return a.Name < b.Name
	})

	return summary
}
