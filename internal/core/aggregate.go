package core

import "github.com/shopspring/decimal"

// Summary is the financial aggregate over a filtered window. It is derived
// state, recomputed on demand and never persisted.
type Summary struct {
	TotalIncome   decimal.Decimal
	TotalExpenses decimal.Decimal
	TotalBalance  decimal.Decimal
	// SavingsRate is TotalBalance/TotalIncome as a percentage, zero when
	// there is no income.
	SavingsRate           float64
	AllocationsByCategory map[AllocationCategory]decimal.Decimal
	TotalAllocated        decimal.Decimal
	// Unallocated is the balance not yet assigned to any allocation
	// category. Never negative.
	Unallocated decimal.Decimal
}

// Summarize aggregates transactions and allocations under a date filter.
// The same window applies to both record sets, so Unallocated compares a
// filtered balance against the allocations of that same window.
func Summarize(transactions []Transaction, allocations []Allocation, filter DateFilter) Summary {
	s := Summary{
		AllocationsByCategory: make(map[AllocationCategory]decimal.Decimal),
	}

	for _, tx := range transactions {
		if !filter.Matches(tx.Date) {
			continue
		}
		switch tx.Type {
		case Income:
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
		case Expense:
			s.TotalExpenses = s.TotalExpenses.Add(tx.Amount)
		}
	}
	s.TotalBalance = s.TotalIncome.Sub(s.TotalExpenses)

	if s.TotalIncome.Sign() > 0 {
		s.SavingsRate = s.TotalBalance.Div(s.TotalIncome).InexactFloat64() * 100
	}

	for _, alloc := range allocations {
		if !filter.Matches(alloc.Date) {
			continue
		}
		s.AllocationsByCategory[alloc.Category] = s.AllocationsByCategory[alloc.Category].Add(alloc.Amount)
		s.TotalAllocated = s.TotalAllocated.Add(alloc.Amount)
	}

	if s.TotalBalance.Sign() > 0 {
		if unallocated := s.TotalBalance.Sub(s.TotalAllocated); unallocated.Sign() > 0 {
			s.Unallocated = unallocated
		}
	}

	return s
}
