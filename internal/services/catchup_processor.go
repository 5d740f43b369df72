package services

import (
	"context"
	"fmt"
	"log/slog"

	"finanzen/internal/amqp"
	"finanzen/internal/core"
	"finanzen/internal/storage"
)

// CatchUpProcessor materializes overdue occurrences of recurring templates
// into the ledger. Runs are idempotent: occurrence ids are deterministic and
// inserts ignore duplicates, so overlapping or repeated runs cannot double an
// entry.
type CatchUpProcessor struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewCatchUpProcessor(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *CatchUpProcessor {
	return &CatchUpProcessor{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// Run materializes everything due up to today and returns the number of
// ledger entries created.
func (p *CatchUpProcessor) Run(ctx context.Context, today core.Date) (int, error) {
	if p.storage == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	templates, err := p.storage.ListRecurring(ctx)
	if err != nil {
		return 0, fmt.Errorf("load recurring templates: %w", err)
	}
	if len(templates) == 0 {
		return 0, nil
	}

	existingIDs, err := p.storage.RecurringLedgerIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("load materialized ledger ids: %w", err)
	}

	slog.InfoContext(ctx, "Running recurring catch-up",
		"templates", len(templates),
		"processing_date", today.ISODay())

	result := core.MaterializeRecurring(templates, existingIDs, today)
	if !result.Changed {
		slog.InfoContext(ctx, "Nothing due, ledger unchanged")
		return 0, nil
	}

	if err := p.storage.ApplyCatchUp(ctx, result.NewTransactions, result.Templates); err != nil {
		return 0, fmt.Errorf("apply catch-up: %w", err)
	}

	for _, tx := range result.NewTransactions {
		if err := p.publishSync(ctx, tx.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish sync message for materialized entry",
				"id", tx.ID, "error", err)
			// The sync worker sweeps pending rows, so a lost message heals.
		}
	}

	slog.InfoContext(ctx, "Recurring catch-up complete",
		"created", len(result.NewTransactions),
		"templates", len(templates))

	return len(result.NewTransactions), nil
}

func (p *CatchUpProcessor) publishSync(ctx context.Context, id string) error {
	if p.amqpClient == nil {
		return nil
	}
	return p.amqpClient.PublishTransactionSync(ctx, id, 1)
}
