// Package worker keeps the export workbook in step with the ledger. The
// normal path is message-driven; the pending sweep is the backup for
// messages lost between the bot process and the broker.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"caseledger/internal/amqp"
	"caseledger/internal/storage"
	"caseledger/internal/workbook"
)

type SyncWorker struct {
	storage   *storage.SQLiteRepository
	workbook  *workbook.Workbook
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, wb *workbook.Workbook, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		workbook:  wb,
		batchSize: batchSize,
	}
}

// HandleSyncMessage mirrors one transaction into the workbook.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TxSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "id", msg.ID)
	return w.mirror(ctx, msg.ID)
}

// ProcessPending sweeps transactions whose sync messages never arrived.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	ids, err := w.storage.PendingSync(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending transactions: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(ids))
	for _, id := range ids {
		if err := w.mirror(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror transaction", "id", id, "error", err)
		}
	}
	return nil
}

// StartupSyncCheck drains the backlog accumulated while the worker was
// down, in larger batches than the periodic sweep.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	ids, err := w.storage.PendingSync(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending transactions for startup check: %w", err)
	}
	if len(ids) == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending transactions on startup, processing...", "count", len(ids))
	synced := 0
	failed := 0
	for _, id := range ids {
		if err := w.mirror(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror transaction during startup", "id", id, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(ids),
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *SyncWorker) mirror(ctx context.Context, id int64) error {
	tx, err := w.storage.Transaction(ctx, id)
	if err != nil {
		// The row can legitimately be gone: a user reset erases their
		// transactions regardless of sync state.
		slog.WarnContext(ctx, "Transaction not found, skipping", "id", id, "error", err)
		return nil
	}

	if err := w.workbook.AppendTransaction(ctx, tx); err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append to workbook: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", id, "error", err)
		// The mirror write itself succeeded; don't requeue.
	}

	slog.InfoContext(ctx, "Transaction mirrored",
		"id", id,
		"user_id", tx.UserID,
		"kind", tx.Kind,
		"amount_cents", tx.Amount.Cents)
	return nil
}
