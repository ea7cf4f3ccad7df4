// Package workbook maintains the tabular export of the ledger: a
// directory with a transactions table and a summary table as CSV files,
// the files a user receives when they ask for the export.
package workbook

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"caseledger/internal/core"
)

const (
	TransactionsFile = "transactions.csv"
	SummaryFile      = "summary.csv"

	timeLayout = "2006-01-02 15:04:05"
)

var (
	txHeader      = []string{"user_id", "kind", "amount", "timestamp"}
	summaryHeader = []string{"user_id", "deposits", "withdrawals", "balance", "roi_percent", "updated_at"}
)

// Workbook owns the export directory. All file access goes through one
// mutex so a snapshot rewrite never interleaves with a mirror append.
type Workbook struct {
	mu  sync.Mutex
	dir string
}

func New(dir string) (*Workbook, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &Workbook{dir: dir}, nil
}

// AppendTransaction mirrors one ledger row into the transactions table.
// The file is created with its header on first use.
func (w *Workbook) AppendTransaction(ctx context.Context, tx core.Transaction) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	path := filepath.Join(w.dir, TransactionsFile)
	writeHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		writeHeader = true
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open transactions file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if writeHeader {
		if err := cw.Write(txHeader); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := cw.Write(txRow(tx)); err != nil {
		return fmt.Errorf("write transaction row: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush transactions file: %w", err)
	}

	slog.DebugContext(ctx, "Transaction mirrored to workbook", "id", tx.ID, "user_id", tx.UserID)
	return nil
}

// WriteSnapshot rewrites both tables from a consistent ledger snapshot
// and returns the file paths, transactions table first. Each file is
// written to a temp sibling and renamed so readers never see a torn file.
func (w *Workbook) WriteSnapshot(ctx context.Context, snap core.Snapshot) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	txRows := make([][]string, 0, len(snap.Transactions)+1)
	txRows = append(txRows, txHeader)
	for _, t := range snap.Transactions {
		txRows = append(txRows, txRow(t))
	}

	sumRows := make([][]string, 0, len(snap.Summaries)+1)
	sumRows = append(sumRows, summaryHeader)
	for _, s := range snap.Summaries {
		sumRows = append(sumRows, summaryRow(s))
	}

	txPath := filepath.Join(w.dir, TransactionsFile)
	sumPath := filepath.Join(w.dir, SummaryFile)
	if err := writeCSV(txPath, txRows); err != nil {
		return nil, err
	}
	if err := writeCSV(sumPath, sumRows); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Workbook snapshot written",
		"transactions", len(snap.Transactions),
		"summaries", len(snap.Summaries),
		"dir", w.dir)

	return []string{txPath, sumPath}, nil
}

// Paths returns the table file paths without touching the files.
func (w *Workbook) Paths() []string {
	return []string{
		filepath.Join(w.dir, TransactionsFile),
		filepath.Join(w.dir, SummaryFile),
	}
}

func txRow(t core.Transaction) []string {
	return []string{
		strconv.FormatInt(t.UserID, 10),
		string(t.Kind),
		t.Amount.String(),
		t.CreatedAt.Format(timeLayout),
	}
}

func summaryRow(s core.Summary) []string {
	return []string{
		strconv.FormatInt(s.UserID, 10),
		s.Deposited.String(),
		s.Withdrawn.String(),
		s.Balance.String(),
		// Percent with two decimals, the way the summary has always been
		// presented to users.
		strconv.FormatFloat(s.ROI*100, 'f', 2, 64),
		s.UpdatedAt.Format(timeLayout),
	}
}

func writeCSV(path string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	cw := csv.NewWriter(tmp)
	if err := cw.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
