package core

import "math"

// ProjectionMonths is the fixed simulation horizon.
const ProjectionMonths = 60

// ProjectionPoint is one simulated future month.
type ProjectionPoint struct {
	// Month in YYYY-MM form.
	Month string
	// Value is the projected net worth, floored at zero.
	Value float64
	// Contributions is the cumulative principal paid in, floored at zero.
	// Growth for charting is Value - Contributions, derived, not stored.
	Contributions float64
}

// weightedAnnualRate is the allocation-amount-weighted mean interest rate
// over investment allocations that declare a rate. Allocations without a
// rate are excluded from both numerator and denominator.
func weightedAnnualRate(allocations []Allocation) float64 {
	weightedSum := 0.0
	totalWeight := 0.0
	for _, a := range allocations {
		if a.Category != Investments || a.InterestRate == nil {
			continue
		}
		amount := a.Amount.InexactFloat64()
		weightedSum += amount * *a.InterestRate
		totalWeight += amount
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

// Project runs the 60-step forward simulation: compounding growth on the
// current investment value merged with recurring net cash flow. A recurring
// template's flow is counted only in its start date's calendar month (its
// anchor month), provided the template's active window still covers that
// month. Positive net flow counts as a contribution, not organic growth.
//
// The simulation is deterministic and recomputed from scratch; nothing here
// mutates its inputs.
func Project(recurring []RecurringTransaction, allocations []Allocation, today Date) []ProjectionPoint {
	invested := SummarizeInvestments(allocations, today)
	monthlyRate := MonthlyRate(weightedAnnualRate(allocations))

	runningValue := invested.CurrentValue
	runningContributions := invested.TotalContributions.InexactFloat64()

	points := make([]ProjectionPoint, 0, ProjectionMonths)
	for i := 1; i <= ProjectionMonths; i++ {
		month := today.AddMonthsClamped(i)
		monthStart := NewDate(month.Year(), month.Month(), 1)

		runningValue *= 1 + monthlyRate

		netFlow := 0.0
		for _, tpl := range recurring {
			if tpl.StartDate.Year() != month.Year() || tpl.StartDate.Month() != month.Month() {
				continue
			}
			if tpl.EndDate != nil && tpl.EndDate.Before(monthStart) {
				continue
			}
			amount := tpl.Amount.InexactFloat64()
			if tpl.Type == Income {
				netFlow += amount
			} else {
				netFlow -= amount
			}
		}

		runningValue += netFlow
		if netFlow > 0 {
			runningContributions += netFlow
		}

		points = append(points, ProjectionPoint{
			Month:         month.ISOMonth(),
			Value:         math.Max(0, runningValue),
			Contributions: math.Max(0, runningContributions),
		})
	}

	return points
}
