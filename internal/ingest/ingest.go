package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cryptfolio/pnl-engine/internal/metrics"
	"github.com/cryptfolio/pnl-engine/internal/model"
	"github.com/cryptfolio/pnl-engine/internal/money"
	"github.com/cryptfolio/pnl-engine/internal/store"
)

var (
	// ErrMissingHash marks a transfer without a transaction hash.
	ErrMissingHash = errors.New("ingest: transfer has no hash")

	// ErrMissingAsset marks a transfer without an asset symbol.
	ErrMissingAsset = errors.New("ingest: transfer has no asset")

	// ErrNegativeValue marks a transfer with a negative value.
	ErrNegativeValue = errors.New("ingest: transfer value is negative")

	// ErrZeroTimestamp marks a transfer without a timestamp.
	ErrZeroTimestamp = errors.New("ingest: transfer has no timestamp")
)

// RecordError attributes a per-record failure within a batch.
type RecordError struct {
	Index int    `json:"index"`
	Hash  string `json:"hash,omitempty"`
	Err   string `json:"error"`
}

// Result summarizes a sync batch. Batches always complete: malformed
// records are collected here rather than aborting the run.
type Result struct {
	Ingested int           `json:"ingested"`
	Skipped  int           `json:"skipped"` // duplicates, re-ingested as no-ops
	Assets   []string      `json:"assets"`  // distinct assets touched by this batch
	Errors   []RecordError `json:"errors,omitempty"`
}

// Ingester validates, classifies, and persists raw transfer batches.
type Ingester struct {
	store store.Store
	guard *Guard
}

// NewIngester creates an ingester over the given store.
func NewIngester(st store.Store) *Ingester {
	return &Ingester{store: st, guard: NewGuard()}
}

// Sync ingests a batch of raw transfers for one (owner, source) pair.
// Returns ErrSyncInProgress without touching the store when a sync for
// the same key is already running. Individual malformed records are
// skipped and reported in the result; duplicates are counted, not
// re-applied.
func (in *Ingester) Sync(ctx context.Context, owner, source string, transfers []model.RawTransfer) (*Result, error) {
	if err := in.guard.TryAcquire(owner, source); err != nil {
		metrics.SyncRejections.Inc()
		return nil, err
	}
	defer in.guard.Release(owner, source)

	res := &Result{}
	seen := make(map[string]bool)

	for i, t := range transfers {
		if err := validate(t); err != nil {
			metrics.RecordErrors.Inc()
			res.Errors = append(res.Errors, RecordError{Index: i, Hash: t.Hash, Err: err.Error()})
			slog.Warn("malformed transfer skipped",
				"owner", owner, "source", source, "index", i, "err", err)
			continue
		}

		kind := Classify(owner, t)
		tx := &model.Transaction{
			ID:        uuid.New().String(),
			Owner:     owner,
			Source:    source,
			Asset:     t.Asset,
			Hash:      t.Hash,
			Kind:      kind,
			Quantity:  money.Quantity(t.Value),
			UnitPrice: money.USD(t.UnitPrice),
			FeeQty:    money.Quantity(t.Fee),
			FeeAsset:  t.FeeAsset,
			Timestamp: t.Timestamp.UTC(),
		}

		inserted, err := in.store.InsertTransaction(ctx, tx)
		if err != nil {
			res.Errors = append(res.Errors, RecordError{Index: i, Hash: t.Hash, Err: err.Error()})
			continue
		}
		if !inserted {
			metrics.DuplicatesSkipped.Inc()
			res.Skipped++
			continue
		}

		metrics.TransactionsIngested.WithLabelValues(string(kind)).Inc()
		res.Ingested++
		if !seen[t.Asset] {
			seen[t.Asset] = true
			res.Assets = append(res.Assets, t.Asset)
		}
	}

	slog.Info("sync complete",
		"owner", owner, "source", source,
		"ingested", res.Ingested, "skipped", res.Skipped, "errors", len(res.Errors))
	return res, nil
}

func validate(t model.RawTransfer) error {
	if t.Hash == "" {
		return ErrMissingHash
	}
	if t.Asset == "" {
		return ErrMissingAsset
	}
	if t.Value.IsNegative() {
		return fmt.Errorf("%w: %s", ErrNegativeValue, t.Value)
	}
	if t.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	return nil
}
