package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"finanzen/internal/core"

	"github.com/shopspring/decimal"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustDay(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDay(s)
	if err != nil {
		t.Fatalf("ParseDay(%q) error = %v", s, err)
	}
	return d
}

func TestTransactionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	in := core.Transaction{
		ID:          "tx-1",
		Date:        mustDay(t, "2024-03-15"),
		Description: "salary",
		Amount:      decimal.RequireFromString("2500.50"),
		Type:        core.Income,
	}
	if err := repo.CreateTransaction(ctx, in); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	got, err := repo.GetTransaction(ctx, "tx-1")
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if got.ID != in.ID || got.Description != in.Description || got.Type != in.Type {
		t.Errorf("GetTransaction() = %+v, want %+v", got, in)
	}
	if !got.Amount.Equal(in.Amount) {
		t.Errorf("amount = %s, want %s", got.Amount, in.Amount)
	}
	if got.Date.ISODay() != "2024-03-15" {
		t.Errorf("date = %s, want 2024-03-15", got.Date.ISODay())
	}

	list, err := repo.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListTransactions() returned %d rows, want 1", len(list))
	}

	if err := repo.DeleteTransaction(ctx, "tx-1"); err != nil {
		t.Fatalf("DeleteTransaction() error = %v", err)
	}
	if _, err := repo.GetTransaction(ctx, "tx-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTransaction() after delete: error = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteTransaction(ctx, "tx-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteTransaction() twice: error = %v, want ErrNotFound", err)
	}
}

func TestTransactionListOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, tx := range []core.Transaction{
		{ID: "a", Date: mustDay(t, "2024-01-01"), Description: "old", Amount: decimal.NewFromInt(1), Type: core.Expense},
		{ID: "b", Date: mustDay(t, "2024-03-01"), Description: "new", Amount: decimal.NewFromInt(1), Type: core.Expense},
		{ID: "c", Date: mustDay(t, "2024-02-01"), Description: "mid", Amount: decimal.NewFromInt(1), Type: core.Expense},
	} {
		if err := repo.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction(%s) error = %v", tx.ID, err)
		}
	}

	list, err := repo.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	want := []string{"b", "c", "a"} // newest first
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("position %d: id = %s, want %s", i, list[i].ID, id)
		}
	}
}

func TestAllocationRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rate := 7.5
	withRate := core.Allocation{
		ID:             "al-1",
		Date:           mustDay(t, "2024-02-01"),
		Category:       core.Investments,
		Amount:         decimal.NewFromInt(1000),
		Description:    "index fund",
		InterestRate:   &rate,
		InvestmentType: "ETF",
	}
	plain := core.Allocation{
		ID:       "al-2",
		Date:     mustDay(t, "2024-02-05"),
		Category: core.Goals,
		Amount:   decimal.NewFromInt(300),
	}
	for _, a := range []core.Allocation{withRate, plain} {
		if err := repo.CreateAllocation(ctx, a); err != nil {
			t.Fatalf("CreateAllocation(%s) error = %v", a.ID, err)
		}
	}

	list, err := repo.ListAllocations(ctx)
	if err != nil {
		t.Fatalf("ListAllocations() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListAllocations() returned %d rows, want 2", len(list))
	}

	byID := make(map[string]core.Allocation, len(list))
	for _, a := range list {
		byID[a.ID] = a
	}
	got := byID["al-1"]
	if got.InterestRate == nil || *got.InterestRate != 7.5 {
		t.Errorf("interest rate = %v, want 7.5", got.InterestRate)
	}
	if got.InvestmentType != "ETF" {
		t.Errorf("investment type = %q, want ETF", got.InvestmentType)
	}
	if byID["al-2"].InterestRate != nil {
		t.Error("plain allocation came back with an interest rate")
	}

	if err := repo.DeleteAllocation(ctx, "al-1"); err != nil {
		t.Fatalf("DeleteAllocation() error = %v", err)
	}
	if err := repo.DeleteAllocation(ctx, "al-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteAllocation() twice: error = %v, want ErrNotFound", err)
	}
}

func TestRecurringRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	end := mustDay(t, "2025-01-31")
	in := core.RecurringTransaction{
		ID:          "rt-1",
		Description: "rent",
		Amount:      decimal.NewFromInt(900),
		Type:        core.Expense,
		StartDate:   mustDay(t, "2024-01-31"),
		EndDate:     &end,
	}
	if err := repo.CreateRecurring(ctx, in); err != nil {
		t.Fatalf("CreateRecurring() error = %v", err)
	}

	got, err := repo.GetRecurring(ctx, "rt-1")
	if err != nil {
		t.Fatalf("GetRecurring() error = %v", err)
	}
	if got.EndDate == nil || got.EndDate.ISODay() != "2025-01-31" {
		t.Errorf("end date = %v, want 2025-01-31", got.EndDate)
	}
	if got.LastProcessedDate != nil {
		t.Errorf("fresh template has cursor %v", got.LastProcessedDate)
	}

	if err := repo.DeleteRecurring(ctx, "rt-1"); err != nil {
		t.Fatalf("DeleteRecurring() error = %v", err)
	}
	if _, err := repo.GetRecurring(ctx, "rt-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRecurring() after delete: error = %v, want ErrNotFound", err)
	}
}

func TestApplyCatchUp(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tpl := core.RecurringTransaction{
		ID:          "rt-1",
		Description: "salary",
		Amount:      decimal.NewFromInt(1000),
		Type:        core.Income,
		StartDate:   mustDay(t, "2024-01-31"),
	}
	if err := repo.CreateRecurring(ctx, tpl); err != nil {
		t.Fatalf("CreateRecurring() error = %v", err)
	}

	result := core.MaterializeRecurring([]core.RecurringTransaction{tpl}, nil, core.NewDate(2024, 3, 10))
	if !result.Changed {
		t.Fatal("materialization produced nothing")
	}

	if err := repo.ApplyCatchUp(ctx, result.NewTransactions, result.Templates); err != nil {
		t.Fatalf("ApplyCatchUp() error = %v", err)
	}

	list, err := repo.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(list) != len(result.NewTransactions) {
		t.Fatalf("ledger has %d rows, want %d", len(list), len(result.NewTransactions))
	}

	got, err := repo.GetRecurring(ctx, "rt-1")
	if err != nil {
		t.Fatalf("GetRecurring() error = %v", err)
	}
	if got.LastProcessedDate == nil || got.LastProcessedDate.ISODay() != "2024-02-29" {
		t.Errorf("cursor = %v, want 2024-02-29", got.LastProcessedDate)
	}

	// Replaying the same batch must not duplicate rows.
	if err := repo.ApplyCatchUp(ctx, result.NewTransactions, result.Templates); err != nil {
		t.Fatalf("ApplyCatchUp() replay error = %v", err)
	}
	list, err = repo.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(list) != len(result.NewTransactions) {
		t.Fatalf("replay duplicated rows: %d, want %d", len(list), len(result.NewTransactions))
	}

	ids, err := repo.RecurringLedgerIDs(ctx)
	if err != nil {
		t.Fatalf("RecurringLedgerIDs() error = %v", err)
	}
	for _, tx := range result.NewTransactions {
		if _, ok := ids[tx.ID]; !ok {
			t.Errorf("ledger id %s missing from index", tx.ID)
		}
	}
}

func TestPendingSyncLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"tx-1", "tx-2", "tx-3"} {
		tx := core.Transaction{
			ID:          id,
			Date:        mustDay(t, "2024-03-15"),
			Description: "entry",
			Amount:      decimal.NewFromInt(10),
			Type:        core.Expense,
		}
		if err := repo.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction(%s) error = %v", id, err)
		}
	}

	pending, err := repo.GetPendingSync(ctx, 2)
	if err != nil {
		t.Fatalf("GetPendingSync() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("GetPendingSync() returned %d rows, want 2 (limit)", len(pending))
	}

	if err := repo.MarkSynced(ctx, "tx-1"); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}
	if err := repo.MarkSyncError(ctx, "tx-2"); err != nil {
		t.Fatalf("MarkSyncError() error = %v", err)
	}

	pending, err = repo.GetPendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingSync() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "tx-3" {
		t.Fatalf("pending after marking = %+v, want only tx-3", pending)
	}
}

func TestUpdateTransaction_BumpsVersionAndResetsSyncState(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tx := core.Transaction{
		ID:          "tx-up",
		Date:        mustDay(t, "2024-03-15"),
		Description: "salary",
		Amount:      decimal.NewFromInt(2500),
		Type:        core.Income,
	}
	if err := repo.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if err := repo.MarkSynced(ctx, tx.ID); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}

	tx.Amount = decimal.NewFromInt(2600)
	version, err := repo.UpdateTransaction(ctx, tx)
	if err != nil {
		t.Fatalf("UpdateTransaction() error = %v", err)
	}
	if version != 2 {
		t.Errorf("version = %d, want 2", version)
	}

	got, err := repo.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if !got.Amount.Equal(decimal.NewFromInt(2600)) {
		t.Errorf("amount after update = %s, want 2600", got.Amount)
	}

	// The update must land back in the pending queue for the mirror.
	pending, err := repo.GetPendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingSync() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != tx.ID {
		t.Fatalf("pending after update = %+v, want [%s]", pending, tx.ID)
	}
}

func TestUpdateTransaction_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.UpdateTransaction(context.Background(), core.Transaction{
		ID:          "no-such-id",
		Date:        mustDay(t, "2024-03-15"),
		Description: "ghost",
		Amount:      decimal.NewFromInt(1),
		Type:        core.Expense,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateTransaction() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateAllocationAndRecurring(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	alloc := core.Allocation{
		ID:       "alloc-1",
		Date:     mustDay(t, "2024-03-02"),
		Category: core.Goals,
		Amount:   decimal.NewFromInt(600),
	}
	if err := repo.CreateAllocation(ctx, alloc); err != nil {
		t.Fatalf("CreateAllocation() error = %v", err)
	}

	rate := 5.0
	alloc.Amount = decimal.NewFromInt(700)
	alloc.Category = core.Investments
	alloc.InterestRate = &rate
	alloc.InvestmentType = "etf"
	if err := repo.UpdateAllocation(ctx, alloc); err != nil {
		t.Fatalf("UpdateAllocation() error = %v", err)
	}

	got, err := repo.GetAllocation(ctx, alloc.ID)
	if err != nil {
		t.Fatalf("GetAllocation() error = %v", err)
	}
	if !got.Amount.Equal(decimal.NewFromInt(700)) || got.Category != core.Investments {
		t.Errorf("allocation after update = %+v", got)
	}
	if got.InterestRate == nil || *got.InterestRate != 5.0 {
		t.Errorf("interest rate after update = %v, want 5", got.InterestRate)
	}

	rt := core.RecurringTransaction{
		ID:          "rec-1",
		Description: "rent",
		Amount:      decimal.NewFromInt(900),
		Type:        core.Expense,
		StartDate:   mustDay(t, "2024-01-15"),
	}
	if err := repo.CreateRecurring(ctx, rt); err != nil {
		t.Fatalf("CreateRecurring() error = %v", err)
	}

	end := mustDay(t, "2024-12-15")
	rt.Amount = decimal.NewFromInt(950)
	rt.EndDate = &end
	if err := repo.UpdateRecurring(ctx, rt); err != nil {
		t.Fatalf("UpdateRecurring() error = %v", err)
	}

	gotRT, err := repo.GetRecurring(ctx, rt.ID)
	if err != nil {
		t.Fatalf("GetRecurring() error = %v", err)
	}
	if !gotRT.Amount.Equal(decimal.NewFromInt(950)) {
		t.Errorf("recurring amount after update = %s, want 950", gotRT.Amount)
	}
	if gotRT.EndDate == nil || gotRT.EndDate.ISODay() != "2024-12-15" {
		t.Errorf("recurring end date after update = %v, want 2024-12-15", gotRT.EndDate)
	}

	if err := repo.UpdateRecurring(ctx, core.RecurringTransaction{
		ID:          "missing",
		Description: "ghost",
		Amount:      decimal.NewFromInt(1),
		Type:        core.Expense,
		StartDate:   mustDay(t, "2024-01-01"),
	}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateRecurring(missing) error = %v, want ErrNotFound", err)
	}
}
