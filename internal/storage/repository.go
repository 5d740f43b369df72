package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finanzen/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row lookup or delete matches nothing.
var ErrNotFound = errors.New("not found")

// Sync states for the Google Sheets mirror queue.
const (
	syncPending = 0
	syncDone    = 1
	syncError   = 2
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrateSchema(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateTransaction inserts a ledger entry in the pending sync state.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, date, description, amount, type) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Date.ISODay(), t.Description, t.Amount.String(), string(t.Type))
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"date", t.Date.ISODay(),
		"amount", t.Amount.String(),
		"type", t.Type)
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, date, description, amount, type FROM transactions WHERE id = ?`, id)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, description, amount, type FROM transactions ORDER BY date DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// UpdateTransaction rewrites a ledger entry, bumps its version and puts it
// back in the pending sync state. Returns the new version.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE transactions
		 SET date = ?, description = ?, amount = ?, type = ?, version = version + 1, sync_state = ?
		 WHERE id = ? RETURNING version`,
		t.Date.ISODay(), t.Description, t.Amount.String(), string(t.Type), syncPending, t.ID)

	var version int64
	if err := row.Scan(&version); errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	} else if err != nil {
		return 0, fmt.Errorf("update transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction updated",
		"id", t.ID,
		"amount", t.Amount.String(),
		"version", version)
	return version, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) CreateAllocation(ctx context.Context, a core.Allocation) error {
	var rate sql.NullFloat64
	if a.InterestRate != nil {
		rate = sql.NullFloat64{Float64: *a.InterestRate, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO allocations (id, date, category, amount, description, interest_rate, investment_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Date.ISODay(), string(a.Category), a.Amount.String(), a.Description, rate, a.InvestmentType)
	if err != nil {
		return fmt.Errorf("create allocation: %w", err)
	}

	slog.InfoContext(ctx, "Allocation saved",
		"id", a.ID,
		"category", a.Category,
		"amount", a.Amount.String())
	return nil
}

func (r *SQLiteRepository) ListAllocations(ctx context.Context) ([]core.Allocation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, category, amount, description, interest_rate, investment_type
		 FROM allocations ORDER BY date DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()

	var allocations []core.Allocation
	for rows.Next() {
		var (
			a        core.Allocation
			date     string
			amount   string
			category string
			rate     sql.NullFloat64
		)
		if err := rows.Scan(&a.ID, &date, &category, &amount, &a.Description, &rate, &a.InvestmentType); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		if a.Date, err = core.ParseDay(date); err != nil {
			return nil, fmt.Errorf("scan allocation date: %w", err)
		}
		if a.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("scan allocation amount: %w", err)
		}
		a.Category = core.AllocationCategory(category)
		if rate.Valid {
			v := rate.Float64
			a.InterestRate = &v
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

func (r *SQLiteRepository) GetAllocation(ctx context.Context, id string) (core.Allocation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, date, category, amount, description, interest_rate, investment_type
		 FROM allocations WHERE id = ?`, id)

	var (
		a        core.Allocation
		date     string
		amount   string
		category string
		rate     sql.NullFloat64
	)
	err := row.Scan(&a.ID, &date, &category, &amount, &a.Description, &rate, &a.InvestmentType)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Allocation{}, ErrNotFound
	}
	if err != nil {
		return core.Allocation{}, fmt.Errorf("get allocation: %w", err)
	}
	if a.Date, err = core.ParseDay(date); err != nil {
		return core.Allocation{}, fmt.Errorf("get allocation date: %w", err)
	}
	if a.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Allocation{}, fmt.Errorf("get allocation amount: %w", err)
	}
	a.Category = core.AllocationCategory(category)
	if rate.Valid {
		v := rate.Float64
		a.InterestRate = &v
	}
	return a, nil
}

func (r *SQLiteRepository) UpdateAllocation(ctx context.Context, a core.Allocation) error {
	var rate sql.NullFloat64
	if a.InterestRate != nil {
		rate = sql.NullFloat64{Float64: *a.InterestRate, Valid: true}
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE allocations
		 SET date = ?, category = ?, amount = ?, description = ?, interest_rate = ?, investment_type = ?
		 WHERE id = ?`,
		a.Date.ISODay(), string(a.Category), a.Amount.String(), a.Description, rate, a.InvestmentType, a.ID)
	if err != nil {
		return fmt.Errorf("update allocation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteAllocation(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM allocations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete allocation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) CreateRecurring(ctx context.Context, rt core.RecurringTransaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_transactions (id, description, amount, type, start_date, end_date, last_processed_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rt.ID, rt.Description, rt.Amount.String(), string(rt.Type),
		rt.StartDate.ISODay(), nullDay(rt.EndDate), nullDay(rt.LastProcessedDate))
	if err != nil {
		return fmt.Errorf("create recurring transaction: %w", err)
	}

	slog.InfoContext(ctx, "Recurring transaction saved",
		"id", rt.ID,
		"start_date", rt.StartDate.ISODay(),
		"amount", rt.Amount.String())
	return nil
}

func (r *SQLiteRepository) ListRecurring(ctx context.Context) ([]core.RecurringTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, description, amount, type, start_date, end_date, last_processed_date
		 FROM recurring_transactions ORDER BY start_date, id`)
	if err != nil {
		return nil, fmt.Errorf("list recurring transactions: %w", err)
	}
	defer rows.Close()

	var templates []core.RecurringTransaction
	for rows.Next() {
		rt, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring transaction: %w", err)
		}
		templates = append(templates, rt)
	}
	return templates, rows.Err()
}

func (r *SQLiteRepository) GetRecurring(ctx context.Context, id string) (core.RecurringTransaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, description, amount, type, start_date, end_date, last_processed_date
		 FROM recurring_transactions WHERE id = ?`, id)

	rt, err := scanRecurring(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringTransaction{}, ErrNotFound
	}
	if err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("get recurring transaction: %w", err)
	}
	return rt, nil
}

// UpdateRecurring rewrites a template's schedule and amounts. The
// materialization cursor is left alone so the catch-up processor continues
// from where it was.
func (r *SQLiteRepository) UpdateRecurring(ctx context.Context, rt core.RecurringTransaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_transactions
		 SET description = ?, amount = ?, type = ?, start_date = ?, end_date = ?
		 WHERE id = ?`,
		rt.Description, rt.Amount.String(), string(rt.Type),
		rt.StartDate.ISODay(), nullDay(rt.EndDate), rt.ID)
	if err != nil {
		return fmt.Errorf("update recurring transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRecurring removes a template. Already materialized transactions stay
// in the ledger.
func (r *SQLiteRepository) DeleteRecurring(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recurring transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecurringLedgerIDs returns the ids of all materialized recurring entries,
// used by the catch-up processor for deduplication.
func (r *SQLiteRepository) RecurringLedgerIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM transactions WHERE id LIKE 'recurring:%'`)
	if err != nil {
		return nil, fmt.Errorf("list recurring ledger ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ledger id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// ApplyCatchUp persists a materialization result atomically: the new ledger
// entries and the advanced template cursors commit together or not at all.
// Inserts are id-keyed and ignore duplicates, so a retried run cannot double
// an occurrence.
func (r *SQLiteRepository) ApplyCatchUp(ctx context.Context, transactions []core.Transaction, templates []core.RecurringTransaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catch-up transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range transactions {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO transactions (id, date, description, amount, type)
			 VALUES (?, ?, ?, ?, ?)`,
			t.ID, t.Date.ISODay(), t.Description, t.Amount.String(), string(t.Type)); err != nil {
			return fmt.Errorf("insert materialized transaction %s: %w", t.ID, err)
		}
	}

	for _, rt := range templates {
		if rt.LastProcessedDate == nil {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE recurring_transactions SET last_processed_date = ? WHERE id = ?`,
			rt.LastProcessedDate.ISODay(), rt.ID); err != nil {
			return fmt.Errorf("advance cursor for template %s: %w", rt.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catch-up transaction: %w", err)
	}

	slog.InfoContext(ctx, "Catch-up applied",
		"transactions", len(transactions),
		"templates", len(templates))
	return nil
}

// PendingSyncTransaction is the minimal row shape queued for the sheets
// mirror.
type PendingSyncTransaction struct {
	ID        string
	Version   int64
	CreatedAt time.Time
}

// GetPendingSync returns transactions not yet mirrored, oldest first.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingSyncTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, version, created_at FROM transactions
		 WHERE sync_state = ? ORDER BY created_at LIMIT ?`, syncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	defer rows.Close()

	var pending []PendingSyncTransaction
	for rows.Next() {
		var p PendingSyncTransaction
		if err := rows.Scan(&p.ID, &p.Version, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending sync transaction: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// MarkSynced marks a transaction as successfully mirrored.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_state = ? WHERE id = ?`, syncDone, id); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "id", id)
	return nil
}

// MarkSyncError marks a transaction as having failed to mirror.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_state = ? WHERE id = ?`, syncError, id); err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		t      core.Transaction
		date   string
		amount string
		ty     string
	)
	if err := row.Scan(&t.ID, &date, &t.Description, &amount, &ty); err != nil {
		return core.Transaction{}, err
	}

	var err error
	if t.Date, err = core.ParseDay(date); err != nil {
		return core.Transaction{}, fmt.Errorf("parse date: %w", err)
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount: %w", err)
	}
	t.Type = core.TransactionType(ty)
	return t, nil
}

func scanRecurring(row scanner) (core.RecurringTransaction, error) {
	var (
		rt            core.RecurringTransaction
		amount        string
		ty            string
		start         string
		end           sql.NullString
		lastProcessed sql.NullString
	)
	if err := row.Scan(&rt.ID, &rt.Description, &amount, &ty, &start, &end, &lastProcessed); err != nil {
		return core.RecurringTransaction{}, err
	}

	var err error
	if rt.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("parse amount: %w", err)
	}
	if rt.StartDate, err = core.ParseDay(start); err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("parse start date: %w", err)
	}
	if end.Valid {
		d, err := core.ParseDay(end.String)
		if err != nil {
			return core.RecurringTransaction{}, fmt.Errorf("parse end date: %w", err)
		}
		rt.EndDate = &d
	}
	if lastProcessed.Valid {
		d, err := core.ParseDay(lastProcessed.String)
		if err != nil {
			return core.RecurringTransaction{}, fmt.Errorf("parse last processed date: %w", err)
		}
		rt.LastProcessedDate = &d
	}
	rt.Type = core.TransactionType(ty)
	return rt, nil
}

func nullDay(d *core.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.ISODay(), Valid: true}
}
