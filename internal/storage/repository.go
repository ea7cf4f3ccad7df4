// Package storage implements the durable ledger store on SQLite. The
// transaction log and the per-user summaries live in the same database,
// and every mutating operation updates both inside one SQL transaction.
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

	"caseledger/internal/core"

	_ "modernc.org/sqlite"
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

	// One connection keeps every mutating operation on a single writer
	// stream; SQLite would reject concurrent writers anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
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

// storeErr keeps store failures matchable with errors.Is while retaining
// the underlying cause in the message.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, core.ErrStoreUnavailable, err)
}

// Append implements ledger.Recorder. The insert and the summary upsert
// commit together or not at all; a rolled-back call leaves no trace.
func (r *SQLiteRepository) Append(ctx context.Context, userID int64, kind core.TxKind, amount core.Money) (core.Transaction, error) {
	tx := core.Transaction{
		UserID:    userID,
		Kind:      kind,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, storeErr("begin append", err)
	}
	defer dbTx.Rollback()

	res, err := dbTx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, kind, amount_cents, created_at) VALUES (?, ?, ?, ?)`,
		userID, string(kind), amount.Cents, tx.CreatedAt,
	)
	if err != nil {
		return core.Transaction{}, storeErr("insert transaction", err)
	}
	tx.ID, err = res.LastInsertId()
	if err != nil {
		return core.Transaction{}, storeErr("transaction id", err)
	}

	sum, err := summaryTx(ctx, dbTx, userID)
	if err != nil {
		return core.Transaction{}, storeErr("read summary", err)
	}
	switch kind {
	case core.Deposit:
		sum.Deposited.Cents += amount.Cents
	case core.Withdraw:
		sum.Withdrawn.Cents += amount.Cents
	}
	sum.Balance.Cents = sum.Deposited.Cents - sum.Withdrawn.Cents
	sum.ROI = core.ROI(sum.Deposited, sum.Withdrawn)
	sum.UpdatedAt = tx.CreatedAt

	_, err = dbTx.ExecContext(ctx,
		`INSERT INTO summaries (user_id, deposited_cents, withdrawn_cents, balance_cents, roi, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		   deposited_cents = excluded.deposited_cents,
		   withdrawn_cents = excluded.withdrawn_cents,
		   balance_cents = excluded.balance_cents,
		   roi = excluded.roi,
		   updated_at = excluded.updated_at`,
		userID, sum.Deposited.Cents, sum.Withdrawn.Cents, sum.Balance.Cents, sum.ROI, sum.UpdatedAt,
	)
	if err != nil {
		return core.Transaction{}, storeErr("upsert summary", err)
	}

	if err := dbTx.Commit(); err != nil {
		return core.Transaction{}, storeErr("commit append", err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"id", tx.ID,
		"user_id", userID,
		"kind", kind,
		"amount_cents", amount.Cents,
		"balance_cents", sum.Balance.Cents)

	return tx, nil
}

// Summary implements ledger.BalanceReader.
func (r *SQLiteRepository) Summary(ctx context.Context, userID int64) (core.Summary, error) {
	sum, err := summaryTx(ctx, r.db, userID)
	if err != nil {
		return core.Summary{}, storeErr("read summary", err)
	}
	return sum, nil
}

// History implements ledger.HistoryLister. Row order follows insertion
// order, so each call is a fresh traversal of the user's full log.
func (r *SQLiteRepository) History(ctx context.Context, userID int64) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, kind, amount_cents, created_at FROM transactions WHERE user_id = ? ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// Reset implements ledger.Resetter. Both tables are purged in one SQL
// transaction; a user with no rows resets trivially.
func (r *SQLiteRepository) Reset(ctx context.Context, userID int64) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin reset", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = ?`, userID); err != nil {
		return storeErr("delete transactions", err)
	}
	if _, err := dbTx.ExecContext(ctx, `DELETE FROM summaries WHERE user_id = ?`, userID); err != nil {
		return storeErr("delete summary", err)
	}
	if err := dbTx.Commit(); err != nil {
		return storeErr("commit reset", err)
	}

	slog.InfoContext(ctx, "User ledger reset", "user_id", userID)
	return nil
}

// Snapshot implements ledger.Exporter. Both tables are read inside one
// SQL transaction so the export never interleaves with a mutation.
func (r *SQLiteRepository) Snapshot(ctx context.Context) (core.Snapshot, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Snapshot{}, storeErr("begin snapshot", err)
	}
	defer dbTx.Rollback()

	var snap core.Snapshot

	rows, err := dbTx.QueryContext(ctx,
		`SELECT id, user_id, kind, amount_cents, created_at FROM transactions ORDER BY id`)
	if err != nil {
		return core.Snapshot{}, storeErr("snapshot transactions", err)
	}
	snap.Transactions, err = scanTransactions(rows)
	rows.Close()
	if err != nil {
		return core.Snapshot{}, err
	}

	sumRows, err := dbTx.QueryContext(ctx,
		`SELECT user_id, deposited_cents, withdrawn_cents, balance_cents, roi, updated_at FROM summaries ORDER BY user_id`)
	if err != nil {
		return core.Snapshot{}, storeErr("snapshot summaries", err)
	}
	defer sumRows.Close()
	for sumRows.Next() {
		var s core.Summary
		if err := sumRows.Scan(&s.UserID, &s.Deposited.Cents, &s.Withdrawn.Cents, &s.Balance.Cents, &s.ROI, &s.UpdatedAt); err != nil {
			return core.Snapshot{}, storeErr("scan summary", err)
		}
		snap.Summaries = append(snap.Summaries, s)
	}
	if err := sumRows.Err(); err != nil {
		return core.Snapshot{}, storeErr("snapshot summaries", err)
	}

	return snap, nil
}

// Transaction returns a single row by ID, for the sync worker.
func (r *SQLiteRepository) Transaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, kind, amount_cents, created_at FROM transactions WHERE id = ?`, id)
	var t core.Transaction
	var kind string
	if err := row.Scan(&t.ID, &t.UserID, &kind, &t.Amount.Cents, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, sql.ErrNoRows)
		}
		return core.Transaction{}, storeErr("get transaction", err)
	}
	t.Kind = core.TxKind(kind)
	return t, nil
}

// PendingSync lists transaction IDs that the export mirror has not
// picked up yet, oldest first.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM transactions WHERE sync_status = 'pending' ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, storeErr("list pending sync", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scan pending sync", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list pending sync", err)
	}
	return ids, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = 'synced' WHERE id = ?`, id); err != nil {
		return storeErr("mark synced", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = 'error' WHERE id = ?`, id); err != nil {
		return storeErr("mark sync error", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func summaryTx(ctx context.Context, q queryRower, userID int64) (core.Summary, error) {
	row := q.QueryRowContext(ctx,
		`SELECT user_id, deposited_cents, withdrawn_cents, balance_cents, roi, updated_at FROM summaries WHERE user_id = ?`,
		userID,
	)
	var s core.Summary
	err := row.Scan(&s.UserID, &s.Deposited.Cents, &s.Withdrawn.Cents, &s.Balance.Cents, &s.ROI, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ZeroSummary(userID), nil
	}
	if err != nil {
		return core.Summary{}, err
	}
	return s, nil
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var kind string
		if err := rows.Scan(&t.ID, &t.UserID, &kind, &t.Amount.Cents, &t.CreatedAt); err != nil {
			return nil, storeErr("scan transaction", err)
		}
		t.Kind = core.TxKind(kind)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate transactions", err)
	}
	return out, nil
}
