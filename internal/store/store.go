// Package store defines the persistence interface for the P&L engine.
// Implementations include PostgreSQL (source of truth) and in-memory
// (for testing). The transaction table is append-only with a uniqueness
// constraint on (owner, hash, source); holdings are an upsertable
// projection; realized P&L records are append-only and idempotent on
// their transaction reference.
package store

import (
	"context"

	"github.com/cryptfolio/pnl-engine/internal/model"
)

// Store is the persistence interface.
type Store interface {
	// --- Transactions (append-only) ---

	// InsertTransaction appends a classified transaction. Returns false
	// with a nil error when a record with the same (owner, hash, source)
	// key already exists; re-ingestion is a no-op, not a failure.
	InsertTransaction(ctx context.Context, tx *model.Transaction) (bool, error)

	// GetTransactions returns the full history for one (owner, asset)
	// pair in ascending timestamp order.
	GetTransactions(ctx context.Context, owner, asset string) ([]model.Transaction, error)

	// GetAssets lists the distinct assets an owner has transacted in.
	GetAssets(ctx context.Context, owner string) ([]string, error)

	// --- Holdings (recomputed projection) ---

	// UpsertHolding replaces the holding row keyed by (owner, asset, method).
	UpsertHolding(ctx context.Context, h *model.Holding) error

	// GetHoldings returns all holdings for an owner under one method.
	GetHoldings(ctx context.Context, owner string, method model.Method) ([]model.Holding, error)

	// --- Realized P&L (append-only audit trail) ---

	// InsertRealizedPnL appends a realized record. Returns false with a
	// nil error when a record for the same transaction already exists.
	InsertRealizedPnL(ctx context.Context, rec *model.RealizedPnL) (bool, error)

	// GetRealizedPnL returns all realized records for an owner.
	GetRealizedPnL(ctx context.Context, owner string) ([]model.RealizedPnL, error)
}
