// Package service orchestrates ledger operations across the store, the
// sync message pipeline and the export workbook.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"caseledger/internal/amqp"
	"caseledger/internal/core"
	"caseledger/internal/ledger"
	"caseledger/internal/workbook"
)

// LedgerService is what the chat front end talks to. Mutations go to the
// store first; the sync message is advisory and its failure never fails
// the user's command (the pending sweep recovers lost messages).
type LedgerService struct {
	store      ledger.Store
	amqpClient *amqp.Client
	workbook   *workbook.Workbook
}

func New(store ledger.Store, amqpClient *amqp.Client, wb *workbook.Workbook) *LedgerService {
	return &LedgerService{
		store:      store,
		amqpClient: amqpClient,
		workbook:   wb,
	}
}

// RecordDeposit appends a deposit and returns the user's fresh summary.
func (s *LedgerService) RecordDeposit(ctx context.Context, userID int64, amount core.Money) (core.Summary, error) {
	return s.record(ctx, userID, core.Deposit, amount)
}

// RecordWithdrawal appends a withdrawal and returns the user's fresh summary.
func (s *LedgerService) RecordWithdrawal(ctx context.Context, userID int64, amount core.Money) (core.Summary, error) {
	return s.record(ctx, userID, core.Withdraw, amount)
}

func (s *LedgerService) record(ctx context.Context, userID int64, kind core.TxKind, amount core.Money) (core.Summary, error) {
	tx, err := s.store.Append(ctx, userID, kind, amount)
	if err != nil {
		return core.Summary{}, fmt.Errorf("record %s: %w", kind, err)
	}

	s.publishSync(ctx, tx.ID)

	sum, err := s.store.Summary(ctx, userID)
	if err != nil {
		return core.Summary{}, fmt.Errorf("read summary after %s: %w", kind, err)
	}
	return sum, nil
}

// Balance returns the user's summary; unknown users get the zero summary.
func (s *LedgerService) Balance(ctx context.Context, userID int64) (core.Summary, error) {
	return s.store.Summary(ctx, userID)
}

// History returns the user's transactions in insertion order.
func (s *LedgerService) History(ctx context.Context, userID int64) ([]core.Transaction, error) {
	return s.store.History(ctx, userID)
}

// Reset erases the user's transactions and summary. Safe to repeat.
func (s *LedgerService) Reset(ctx context.Context, userID int64) error {
	return s.store.Reset(ctx, userID)
}

// Export takes a consistent snapshot of the whole ledger, rewrites the
// workbook from it and returns the table file paths for delivery.
func (s *LedgerService) Export(ctx context.Context) ([]string, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot ledger: %w", err)
	}
	paths, err := s.workbook.WriteSnapshot(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return paths, nil
}

func (s *LedgerService) publishSync(ctx context.Context, id int64) {
	if s.amqpClient == nil {
		return
	}
	if err := s.amqpClient.PublishTxSync(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "id", id, "error", err)
	}
}

// Close releases the AMQP connection. The store is owned by the caller.
func (s *LedgerService) Close() error {
	if s.amqpClient != nil {
		return s.amqpClient.Close()
	}
	return nil
}
