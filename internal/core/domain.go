package core

import (
	"errors"
	"time"
)

const (
	Deposit  TxKind = "deposit"
	Withdraw TxKind = "withdraw"
)

type (
	TxKind string

	// Transaction is a single ledger entry. Once appended it is never
	// mutated or deleted individually; only a user reset removes rows.
	Transaction struct {
		ID        int64
		UserID    int64
		Kind      TxKind
		Amount    Money
		CreatedAt time.Time
	}

	// Summary is the per-user materialized view over the transaction log.
	// It must always equal ComputeSummary over the user's history.
	Summary struct {
		UserID    int64
		Deposited Money
		Withdrawn Money
		Balance   Money
		ROI       float64
		UpdatedAt time.Time
	}

	// Snapshot is a consistent point-in-time export of the whole ledger.
	Snapshot struct {
		Transactions []Transaction
		Summaries    []Summary
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrStoreUnavailable = errors.New("store unavailable")
)

func (k TxKind) Valid() bool {
	return k == Deposit || k == Withdraw
}

func (t Transaction) Validate() error {
	if !t.Kind.Valid() {
		return errors.New("unknown transaction kind")
	}
	return t.Amount.Validate()
}

// Zero returns true when the summary carries no recorded activity.
func (s Summary) Zero() bool {
	return s.Deposited.Cents == 0 && s.Withdrawn.Cents == 0
}

// ZeroSummary is what readers get for a user with no transactions.
// An unknown user is never an error on the read path.
func ZeroSummary(userID int64) Summary {
	return Summary{UserID: userID}
}

// ComputeSummary folds a user's ordered transaction log into its summary.
// This is the single source of truth for the aggregate: the stores keep
// their persisted summaries equal to this fold at all times.
func ComputeSummary(userID int64, txs []Transaction) Summary {
	s := Summary{UserID: userID}
	for _, t := range txs {
		switch t.Kind {
		case Deposit:
			s.Deposited.Cents += t.Amount.Cents
		case Withdraw:
			s.Withdrawn.Cents += t.Amount.Cents
		}
		if t.CreatedAt.After(s.UpdatedAt) {
			s.UpdatedAt = t.CreatedAt
		}
	}
	s.Balance.Cents = s.Deposited.Cents - s.Withdrawn.Cents
	s.ROI = ROI(s.Deposited, s.Withdrawn)
	return s
}

// ROI is the net withdrawal gain or loss relative to the total deposited.
// Reported as 0 when nothing was deposited, matching what the summary
// table shows for withdraw-only users.
func ROI(deposited, withdrawn Money) float64 {
	if deposited.Cents <= 0 {
		return 0
	}
	return float64(withdrawn.Cents-deposited.Cents) / float64(deposited.Cents)
}
