package services

import (
	"context"
	"fmt"

	"finanzen/internal/core"
	"finanzen/internal/storage"
)

// ReportService computes the derived read models: filtered summaries,
// investment aggregates and the net worth projection. Everything is
// recomputed from the ledger on demand; nothing derived is stored.
type ReportService struct {
	storage *storage.SQLiteRepository
}

func NewReportService(storage *storage.SQLiteRepository) *ReportService {
	return &ReportService{storage: storage}
}

// Summary aggregates transactions and allocations inside the filter window.
func (s *ReportService) Summary(ctx context.Context, filter core.DateFilter) (core.Summary, error) {
	if err := filter.Validate(); err != nil {
		return core.Summary{}, err
	}

	transactions, err := s.storage.ListTransactions(ctx)
	if err != nil {
		return core.Summary{}, fmt.Errorf("load transactions: %w", err)
	}
	allocations, err := s.storage.ListAllocations(ctx)
	if err != nil {
		return core.Summary{}, fmt.Errorf("load allocations: %w", err)
	}

	return core.Summarize(transactions, allocations, filter), nil
}

// Investments compounds every investment allocation to today.
func (s *ReportService) Investments(ctx context.Context, today core.Date) (core.InvestmentSummary, error) {
	allocations, err := s.storage.ListAllocations(ctx)
	if err != nil {
		return core.InvestmentSummary{}, fmt.Errorf("load allocations: %w", err)
	}

	return core.SummarizeInvestments(allocations, today), nil
}

// Projection simulates net worth over the next sixty months.
func (s *ReportService) Projection(ctx context.Context, today core.Date) ([]core.ProjectionPoint, error) {
	templates, err := s.storage.ListRecurring(ctx)
	if err != nil {
		return nil, fmt.Errorf("load recurring templates: %w", err)
	}
	allocations, err := s.storage.ListAllocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load allocations: %w", err)
	}

	return core.Project(templates, allocations, today), nil
}
