package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finanzen/internal/amqp"
	"finanzen/internal/core"
	"finanzen/internal/storage"

	"github.com/google/uuid"
)

// ErrInsufficientUnallocated is returned when an allocation would exceed the
// money not yet assigned to any savings bucket.
var ErrInsufficientUnallocated = errors.New("allocation exceeds unallocated balance")

// LedgerService orchestrates ledger writes across SQLite and AMQP. Writes
// land locally first; the sheets mirror is eventually consistent.
type LedgerService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewLedgerService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *LedgerService {
	return &LedgerService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// CreateTransaction validates and saves a ledger entry, then publishes a sync
// message. A publish failure does not fail the request.
func (s *LedgerService) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := s.storage.CreateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	if err := s.publishSync(ctx, t.ID, 1); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", t.ID, "error", err)
	}

	return t, nil
}

// UpdateTransaction rewrites an existing ledger entry and publishes a sync
// message carrying the bumped version.
func (s *LedgerService) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	version, err := s.storage.UpdateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}

	if err := s.publishSync(ctx, t.ID, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", t.ID, "error", err)
	}

	return t, nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	return s.storage.GetTransaction(ctx, id)
}

func (s *LedgerService) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return s.storage.ListTransactions(ctx)
}

// DeleteTransaction removes a ledger entry locally and publishes a delete
// message for the mirror.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.storage.DeleteTransaction(ctx, id); err != nil {
		return err
	}

	if err := s.publishDelete(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message",
			"id", id, "error", err)
	}

	return nil
}

// CreateAllocation validates and saves a savings allocation. The amount may
// not exceed the current all-time unallocated balance.
func (s *LedgerService) CreateAllocation(ctx context.Context, a core.Allocation) (core.Allocation, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if err := a.Validate(); err != nil {
		return core.Allocation{}, err
	}

	transactions, err := s.storage.ListTransactions(ctx)
	if err != nil {
		return core.Allocation{}, fmt.Errorf("load transactions: %w", err)
	}
	allocations, err := s.storage.ListAllocations(ctx)
	if err != nil {
		return core.Allocation{}, fmt.Errorf("load allocations: %w", err)
	}

	summary := core.Summarize(transactions, allocations, core.DateFilter{Type: core.FilterAll})
	if a.Amount.GreaterThan(summary.Unallocated) {
		return core.Allocation{}, fmt.Errorf("%w: %s > %s",
			ErrInsufficientUnallocated, a.Amount, summary.Unallocated)
	}

	if err := s.storage.CreateAllocation(ctx, a); err != nil {
		return core.Allocation{}, fmt.Errorf("save allocation: %w", err)
	}

	return a, nil
}

// UpdateAllocation rewrites a savings allocation. The new amount must fit in
// the unallocated balance with the old amount given back first.
func (s *LedgerService) UpdateAllocation(ctx context.Context, a core.Allocation) (core.Allocation, error) {
	if err := a.Validate(); err != nil {
		return core.Allocation{}, err
	}

	old, err := s.storage.GetAllocation(ctx, a.ID)
	if err != nil {
		return core.Allocation{}, err
	}

	transactions, err := s.storage.ListTransactions(ctx)
	if err != nil {
		return core.Allocation{}, fmt.Errorf("load transactions: %w", err)
	}
	allocations, err := s.storage.ListAllocations(ctx)
	if err != nil {
		return core.Allocation{}, fmt.Errorf("load allocations: %w", err)
	}

	summary := core.Summarize(transactions, allocations, core.DateFilter{Type: core.FilterAll})
	headroom := summary.Unallocated.Add(old.Amount)
	if a.Amount.GreaterThan(headroom) {
		return core.Allocation{}, fmt.Errorf("%w: %s > %s",
			ErrInsufficientUnallocated, a.Amount, headroom)
	}

	if err := s.storage.UpdateAllocation(ctx, a); err != nil {
		return core.Allocation{}, err
	}
	return a, nil
}

func (s *LedgerService) ListAllocations(ctx context.Context) ([]core.Allocation, error) {
	return s.storage.ListAllocations(ctx)
}

func (s *LedgerService) DeleteAllocation(ctx context.Context, id string) error {
	return s.storage.DeleteAllocation(ctx, id)
}

// CreateRecurring validates and saves a recurring template. Materialization
// is left to the catch-up processor.
func (s *LedgerService) CreateRecurring(ctx context.Context, rt core.RecurringTransaction) (core.RecurringTransaction, error) {
	if rt.ID == "" {
		rt.ID = uuid.NewString()
	}
	if err := rt.Validate(); err != nil {
		return core.RecurringTransaction{}, err
	}

	if err := s.storage.CreateRecurring(ctx, rt); err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("save recurring transaction: %w", err)
	}

	return rt, nil
}

// UpdateRecurring rewrites a template. Entries it already materialized are
// left untouched; only future occurrences follow the new schedule.
func (s *LedgerService) UpdateRecurring(ctx context.Context, rt core.RecurringTransaction) (core.RecurringTransaction, error) {
	if err := rt.Validate(); err != nil {
		return core.RecurringTransaction{}, err
	}

	if err := s.storage.UpdateRecurring(ctx, rt); err != nil {
		return core.RecurringTransaction{}, err
	}
	return rt, nil
}

func (s *LedgerService) ListRecurring(ctx context.Context) ([]core.RecurringTransaction, error) {
	return s.storage.ListRecurring(ctx)
}

// DeleteRecurring removes a template. Its already materialized ledger entries
// are kept.
func (s *LedgerService) DeleteRecurring(ctx context.Context, id string) error {
	return s.storage.DeleteRecurring(ctx, id)
}

func (s *LedgerService) publishSync(ctx context.Context, id string, version int64) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message")
		return nil
	}
	return s.amqpClient.PublishTransactionSync(ctx, id, version)
}

func (s *LedgerService) publishDelete(ctx context.Context, id string) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping delete message")
		return nil
	}
	return s.amqpClient.PublishTransactionDelete(ctx, id)
}

// Close closes both storage and AMQP connections
func (s *LedgerService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
