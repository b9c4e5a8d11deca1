// Package ledger replays a transaction history into the current lot set
// and aggregate holding for one (owner, asset, method). Replay is a pure
// fold: running it twice over the same input produces identical output,
// which is what ingestion idempotency and the recompute path rely on.
package ledger

import (
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptfolio/pnl-engine/internal/costbasis"
	"github.com/cryptfolio/pnl-engine/internal/model"
	"github.com/cryptfolio/pnl-engine/internal/money"
)

// Projection is the result of replaying a transaction history.
type Projection struct {
	Lots    []model.Lot
	Holding model.Holding
}

// Replay folds the full transaction history for one (owner, asset) pair
// through the given strategy. Acquisitions append lots; disposals and
// swaps consume them via costbasis.Match; self-transfers and fee-only
// transactions never touch the lot set. Holdings are always rebuilt from
// scratch here, never incrementally patched.
func Replay(owner, asset string, method model.Method, txs []model.Transaction, asOf time.Time) Projection {
	ordered := make([]model.Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Hash < ordered[j].Hash
		}
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	var lots []model.Lot
	for _, tx := range ordered {
		switch tx.Kind {
		case model.KindAcquisition:
			if !tx.Quantity.IsPositive() {
				slog.Warn("acquisition with non-positive quantity skipped",
					"owner", owner, "asset", asset, "hash", tx.Hash, "qty", tx.Quantity.String())
				continue
			}
			lots = append(lots, model.Lot{
				Quantity:  tx.Quantity,
				UnitPrice: tx.UnitPrice,
				Timestamp: tx.Timestamp,
			})

		case model.KindDisposal, model.KindSwap:
			res := costbasis.Match(method, lots, tx.Quantity)
			if res.Consumed.LessThan(tx.Quantity) {
				slog.Warn("disposal exceeds lot inventory, consuming available quantity",
					"owner", owner, "asset", asset, "hash", tx.Hash,
					"requested", tx.Quantity.String(), "consumed", res.Consumed.String())
			}
			lots = res.Remaining

		case model.KindSelfTransfer, model.KindFee:
			// No economic effect on the lot ledger.
		}
	}

	qty := decimal.Zero
	basis := decimal.Zero
	for i := range lots {
		if lots[i].Quantity.IsNegative() {
			slog.Warn("negative lot quantity clamped to zero",
				"owner", owner, "asset", asset, "qty", lots[i].Quantity.String())
			lots[i].Quantity = money.ClampNonNegative(lots[i].Quantity)
		}
		qty = qty.Add(lots[i].Quantity)
		basis = basis.Add(lots[i].Cost())
	}

	return Projection{
		Lots: lots,
		Holding: model.Holding{
			Owner:       owner,
			Asset:       asset,
			Method:      method,
			Quantity:    qty,
			CostBasis:   basis,
			LastUpdated: asOf,
		},
	}
}
