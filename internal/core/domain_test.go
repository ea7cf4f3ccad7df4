package core

import (
	"math"
	"testing"
	"time"
)

func tx(userID int64, kind TxKind, cents int64) Transaction {
	return Transaction{UserID: userID, Kind: kind, Amount: Money{Cents: cents}, CreatedAt: time.Now()}
}

func TestComputeSummary(t *testing.T) {
	cases := []struct {
		name      string
		txs       []Transaction
		deposited int64
		withdrawn int64
		balance   int64
		roi       float64
	}{
		{
			name: "deposit then withdraw half",
			txs: []Transaction{
				tx(1, Deposit, 100000),
				tx(1, Withdraw, 50000),
			},
			deposited: 100000,
			withdrawn: 50000,
			balance:   50000,
			roi:       -0.5,
		},
		{
			name: "withdrawals exceed deposits",
			txs: []Transaction{
				tx(1, Deposit, 100000),
				tx(1, Deposit, 200000),
				tx(1, Withdraw, 350000),
			},
			deposited: 300000,
			withdrawn: 350000,
			balance:   -50000,
			roi:       50000.0 / 300000.0,
		},
		{
			name: "no transactions",
			txs:  nil,
		},
		{
			name:      "withdraw only",
			txs:       []Transaction{tx(1, Withdraw, 500)},
			withdrawn: 500,
			balance:   -500,
			roi:       0, // undefined without deposits, reported as zero
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := ComputeSummary(1, tc.txs)
			if s.Deposited.Cents != tc.deposited {
				t.Errorf("Deposited = %d, want %d", s.Deposited.Cents, tc.deposited)
			}
			if s.Withdrawn.Cents != tc.withdrawn {
				t.Errorf("Withdrawn = %d, want %d", s.Withdrawn.Cents, tc.withdrawn)
			}
			if s.Balance.Cents != tc.balance {
				t.Errorf("Balance = %d, want %d", s.Balance.Cents, tc.balance)
			}
			if math.Abs(s.ROI-tc.roi) > 1e-9 {
				t.Errorf("ROI = %v, want %v", s.ROI, tc.roi)
			}
		})
	}
}

func TestROIZeroDeposits(t *testing.T) {
	if got := ROI(Money{}, Money{Cents: 1000}); got != 0 {
		t.Fatalf("ROI with zero deposits = %v, want 0", got)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := tx(1, Deposit, 100)
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Transaction{
		tx(1, TxKind("transfer"), 100),
		tx(1, Deposit, 0),
		tx(1, Withdraw, -5),
	}
	for i, b := range bads {
		if err := b.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestZeroSummary(t *testing.T) {
	s := ZeroSummary(42)
	if s.UserID != 42 || !s.Zero() || s.Balance.Cents != 0 || s.ROI != 0 {
		t.Fatalf("unexpected zero summary: %+v", s)
	}
}
