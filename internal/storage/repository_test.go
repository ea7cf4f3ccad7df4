package storage

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"caseledger/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestAppendAndSummary(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Append(ctx, 1, core.Deposit, core.Money{Cents: 100000}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := repo.Append(ctx, 1, core.Withdraw, core.Money{Cents: 50000}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	sum, err := repo.Summary(ctx, 1)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Deposited.Cents != 100000 || sum.Withdrawn.Cents != 50000 {
		t.Errorf("totals = %d/%d, want 100000/50000", sum.Deposited.Cents, sum.Withdrawn.Cents)
	}
	if sum.Balance.Cents != 50000 {
		t.Errorf("balance = %d, want 50000", sum.Balance.Cents)
	}
	if sum.ROI != -0.5 {
		t.Errorf("roi = %v, want -0.5", sum.ROI)
	}
}

func TestSummaryMatchesRecomputation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Deposits and withdrawals in a mixed sequence; the persisted summary
	// must always equal the fold over the full log.
	seq := []struct {
		kind  core.TxKind
		cents int64
	}{
		{core.Deposit, 100000},
		{core.Deposit, 200000},
		{core.Withdraw, 350000},
		{core.Deposit, 999},
		{core.Withdraw, 1},
	}
	for _, step := range seq {
		if _, err := repo.Append(ctx, 7, step.kind, core.Money{Cents: step.cents}); err != nil {
			t.Fatalf("append %v %d: %v", step.kind, step.cents, err)
		}

		sum, err := repo.Summary(ctx, 7)
		if err != nil {
			t.Fatalf("summary: %v", err)
		}
		hist, err := repo.History(ctx, 7)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		want := core.ComputeSummary(7, hist)
		if sum.Deposited != want.Deposited || sum.Withdrawn != want.Withdrawn || sum.Balance != want.Balance {
			t.Fatalf("summary %+v diverged from recomputation %+v", sum, want)
		}
		if math.Abs(sum.ROI-want.ROI) > 1e-9 {
			t.Fatalf("roi %v diverged from recomputation %v", sum.ROI, want.ROI)
		}
	}
}

func TestScenarioMultipleDeposits(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	repo.Append(ctx, 1, core.Deposit, core.Money{Cents: 100000})
	repo.Append(ctx, 1, core.Deposit, core.Money{Cents: 200000})
	repo.Append(ctx, 1, core.Withdraw, core.Money{Cents: 350000})

	sum, _ := repo.Summary(ctx, 1)
	if sum.Deposited.Cents != 300000 {
		t.Errorf("deposited = %d, want 300000", sum.Deposited.Cents)
	}
	if sum.Withdrawn.Cents != 350000 {
		t.Errorf("withdrawn = %d, want 350000", sum.Withdrawn.Cents)
	}
	if sum.Balance.Cents != -50000 {
		t.Errorf("balance = %d, want -50000", sum.Balance.Cents)
	}
	if want := 50000.0 / 300000.0; math.Abs(sum.ROI-want) > 1e-9 {
		t.Errorf("roi = %v, want %v", sum.ROI, want)
	}

	snap, err := repo.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Transactions) != 3 {
		t.Errorf("snapshot transactions = %d, want 3", len(snap.Transactions))
	}
	if len(snap.Summaries) != 1 {
		t.Fatalf("snapshot summaries = %d, want 1", len(snap.Summaries))
	}
	if snap.Summaries[0].Balance.Cents != -50000 {
		t.Errorf("snapshot summary balance = %d, want -50000", snap.Summaries[0].Balance.Cents)
	}
}

func TestUnknownUserReadsZero(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sum, err := repo.Summary(ctx, 404)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !sum.Zero() || sum.UserID != 404 {
		t.Errorf("expected zero summary, got %+v", sum)
	}
	hist, err := repo.History(ctx, 404)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 0 {
		t.Errorf("expected empty history, got %d rows", len(hist))
	}
}

func TestInvalidAmountLeavesStoreUnchanged(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	repo.Append(ctx, 1, core.Deposit, core.Money{Cents: 1000})

	for _, cents := range []int64{0, -500} {
		_, err := repo.Append(ctx, 1, core.Deposit, core.Money{Cents: cents})
		if !errors.Is(err, core.ErrInvalidAmount) {
			t.Fatalf("amount %d: error = %v, want ErrInvalidAmount", cents, err)
		}
	}

	hist, _ := repo.History(ctx, 1)
	if len(hist) != 1 {
		t.Errorf("history = %d rows, want 1", len(hist))
	}
	sum, _ := repo.Summary(ctx, 1)
	if sum.Deposited.Cents != 1000 {
		t.Errorf("deposited = %d, want 1000", sum.Deposited.Cents)
	}
}

func TestHistoryInsertionOrderAndRestartable(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	repo.Append(ctx, 1, core.Deposit, core.Money{Cents: 100})
	repo.Append(ctx, 1, core.Withdraw, core.Money{Cents: 40})
	repo.Append(ctx, 1, core.Deposit, core.Money{Cents: 60})

	first, err := repo.History(ctx, 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	kinds := []core.TxKind{core.Deposit, core.Withdraw, core.Deposit}
	for i, k := range kinds {
		if first[i].Kind != k {
			t.Fatalf("row %d kind = %v, want %v", i, first[i].Kind, k)
		}
	}
	for i := 1; i < len(first); i++ {
		if first[i].ID <= first[i-1].ID {
			t.Fatalf("ids not increasing: %d then %d", first[i-1].ID, first[i].ID)
		}
	}

	// A second call yields the same fresh traversal, not a shared cursor.
	second, err := repo.History(ctx, 1)
	if err != nil {
		t.Fatalf("second history: %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("second traversal = %d rows, want %d", len(second), len(first))
	}
}

func TestResetIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	repo.Append(ctx, 1, core.Deposit, core.Money{Cents: 100000})
	repo.Append(ctx, 1, core.Withdraw, core.Money{Cents: 50000})
	repo.Append(ctx, 2, core.Deposit, core.Money{Cents: 777})

	for i := 0; i < 2; i++ {
		if err := repo.Reset(ctx, 1); err != nil {
			t.Fatalf("reset #%d: %v", i+1, err)
		}
		sum, _ := repo.Summary(ctx, 1)
		if !sum.Zero() {
			t.Fatalf("reset #%d: summary not zero: %+v", i+1, sum)
		}
		hist, _ := repo.History(ctx, 1)
		if len(hist) != 0 {
			t.Fatalf("reset #%d: history not empty", i+1)
		}
	}

	// Resetting a user that never existed succeeds trivially.
	if err := repo.Reset(ctx, 999); err != nil {
		t.Fatalf("reset of unknown user: %v", err)
	}

	sum, _ := repo.Summary(ctx, 2)
	if sum.Deposited.Cents != 777 {
		t.Errorf("reset erased another user's data: %+v", sum)
	}
}

func TestConcurrentAppendsNoLostUpdates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	wg.Add(2 * n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := repo.Append(ctx, 1, core.Deposit, core.Money{Cents: 300}); err != nil {
				t.Errorf("deposit: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := repo.Append(ctx, 1, core.Withdraw, core.Money{Cents: 100}); err != nil {
				t.Errorf("withdraw: %v", err)
			}
		}()
	}
	wg.Wait()

	sum, err := repo.Summary(ctx, 1)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if want := int64(n*300 - n*100); sum.Balance.Cents != want {
		t.Fatalf("balance = %d, want %d (lost update)", sum.Balance.Cents, want)
	}
	hist, _ := repo.History(ctx, 1)
	if len(hist) != 2*n {
		t.Fatalf("history = %d rows, want %d", len(hist), 2*n)
	}
}

func TestSyncQueue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tx1, _ := repo.Append(ctx, 1, core.Deposit, core.Money{Cents: 100})
	tx2, _ := repo.Append(ctx, 1, core.Withdraw, core.Money{Cents: 50})

	ids, err := repo.PendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("pending sync: %v", err)
	}
	if len(ids) != 2 || ids[0] != tx1.ID || ids[1] != tx2.ID {
		t.Fatalf("pending = %v, want [%d %d]", ids, tx1.ID, tx2.ID)
	}

	if err := repo.MarkSynced(ctx, tx1.ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	ids, _ = repo.PendingSync(ctx, 10)
	if len(ids) != 1 || ids[0] != tx2.ID {
		t.Fatalf("pending after mark = %v, want [%d]", ids, tx2.ID)
	}

	got, err := repo.Transaction(ctx, tx2.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if got.Kind != core.Withdraw || got.Amount.Cents != 50 {
		t.Fatalf("transaction mismatch: %+v", got)
	}
}
