package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finanzen/internal/amqp"
	"finanzen/internal/sheets"
	"finanzen/internal/storage"
)

// SyncWorker mirrors ledger transactions from SQLite into an external
// sheet. AMQP messages drive the hot path; the pending-sync sweep picks
// up anything a lost message left behind.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	writer    sheets.TransactionWriter
	deleter   sheets.TransactionDeleter
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, writer sheets.TransactionWriter, deleter sheets.TransactionDeleter, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		writer:    writer,
		deleter:   deleter,
		batchSize: batchSize,
	}
}

// HandleMessage processes a single sync message from AMQP.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"action", msg.Action,
		"version", msg.Version)

	switch msg.Action {
	case amqp.ActionDelete:
		if err := w.deleter.Delete(ctx, msg.ID); err != nil {
			return fmt.Errorf("delete mirrored transaction: %w", err)
		}
		return nil
	case amqp.ActionUpsert:
		return w.syncTransaction(ctx, msg.ID)
	default:
		// Unknown actions are dropped rather than requeued forever.
		slog.WarnContext(ctx, "Unknown sync action, skipping", "id", msg.ID, "action", msg.Action)
		return nil
	}
}

// syncTransaction mirrors one transaction and records the outcome in the
// sync_state column.
func (w *SyncWorker) syncTransaction(ctx context.Context, id string) error {
	t, err := w.storage.GetTransaction(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		// Deleted before the message was consumed; nothing to mirror.
		slog.InfoContext(ctx, "Transaction no longer exists, skipping sync", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	rowRef, err := w.writer.Append(ctx, t)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("mirror transaction to sheet: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, id); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}

	slog.InfoContext(ctx, "Transaction mirrored", "id", id, "row", rowRef)
	return nil
}

// ProcessPending sweeps transactions that never got mirrored, a backup
// for lost AMQP messages. Failures are logged and left pending for the
// next sweep.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.storage.GetPendingSync(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	for _, p := range pending {
		if err := w.syncTransaction(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to sync pending transaction", "id", p.ID, "error", err)
		}
	}
	return nil
}

// StartupSyncCheck drains the pending backlog at worker startup, using a
// larger batch to recover quickly from downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.storage.GetPendingSync(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending transactions for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending transactions on startup, processing...", "count", len(pending))

	synced := 0
	failed := 0
	for _, p := range pending {
		if err := w.syncTransaction(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to sync transaction during startup", "id", p.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return nil
}
