package ledger

import (
	"context"

	"caseledger/internal/core"
)

// Ports for ledger store backends.
type (
	// Recorder appends one transaction and updates the owner's summary as
	// a single atomic unit: either both are persisted or neither is.
	Recorder interface {
		Append(ctx context.Context, userID int64, kind core.TxKind, amount core.Money) (core.Transaction, error)
	}

	// BalanceReader returns the user's summary; a user with no
	// transactions gets the zero summary, never an error.
	BalanceReader interface {
		Summary(ctx context.Context, userID int64) (core.Summary, error)
	}

	// HistoryLister returns the user's transactions in insertion order.
	// Each call yields a fresh traversal of the full log.
	HistoryLister interface {
		History(ctx context.Context, userID int64) ([]core.Transaction, error)
	}

	// Resetter erases all of the user's transactions and the summary.
	// Resetting a user with no data is a no-op, not an error.
	Resetter interface {
		Reset(ctx context.Context, userID int64) error
	}

	// Exporter produces a snapshot of every transaction and every summary,
	// consistent with the state at the moment of the call.
	Exporter interface {
		Snapshot(ctx context.Context) (core.Snapshot, error)
	}

	// Store is the full ledger backend contract.
	Store interface {
		Recorder
		BalanceReader
		HistoryLister
		Resetter
		Exporter
	}
)
