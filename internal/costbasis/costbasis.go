// Package costbasis implements the lot-matching strategies used to
// attribute acquisition cost to disposals:
//
//   - FIFO: consume the earliest-acquired lots first
//   - LIFO: consume the latest-acquired lots first
//   - AVG:  pool all lots at one weighted-average price
//
// Strategies are pure functions over an ordered lot list — no state is
// held between calls. All values use shopspring/decimal.
//
// A disposal larger than the available inventory consumes only what is
// available; the returned cost per unit is averaged over the quantity
// actually consumed, not the requested quantity. Whether an oversell is
// a data-quality error is the caller's decision.
package costbasis

import (
	"github.com/shopspring/decimal"

	"github.com/cryptfolio/pnl-engine/internal/model"
	"github.com/cryptfolio/pnl-engine/internal/money"
)

// Result reports the outcome of matching a disposal against inventory.
type Result struct {
	// CostPerUnit is the weighted average acquisition cost of the
	// consumed quantity. Zero when nothing was consumed.
	CostPerUnit decimal.Decimal

	// Consumed is the quantity actually taken from inventory. Equals
	// the requested quantity unless the inventory ran short.
	Consumed decimal.Decimal

	// Remaining holds the surviving lots in ascending timestamp order.
	Remaining []model.Lot
}

// Match consumes lots to cover a disposal under the given method.
// Lots must be in ascending timestamp order; Remaining preserves that
// order. The switch is exhaustive over the closed Method set.
func Match(method model.Method, lots []model.Lot, disposalQty decimal.Decimal) Result {
	switch method {
	case model.LIFO:
		return consume(lots, disposalQty, true)
	case model.AVG:
		return pooled(lots, disposalQty)
	default: // model.FIFO
		return consume(lots, disposalQty, false)
	}
}

// consume walks lots in acquisition order (or reverse order for
// latest-first), taking min(lot.Quantity, remaining) from each until the
// disposal is covered or the inventory is exhausted.
func consume(lots []model.Lot, disposalQty decimal.Decimal, latestFirst bool) Result {
	remaining := make([]model.Lot, len(lots))
	copy(remaining, lots)

	left := money.ClampNonNegative(disposalQty)
	consumed := decimal.Zero
	cost := decimal.Zero

	for n := 0; n < len(remaining) && left.IsPositive(); n++ {
		i := n
		if latestFirst {
			i = len(remaining) - 1 - n
		}
		take := money.Min(remaining[i].Quantity, left)
		if !take.IsPositive() {
			continue
		}
		cost = cost.Add(take.Mul(remaining[i].UnitPrice))
		consumed = consumed.Add(take)
		left = left.Sub(take)
		remaining[i].Quantity = remaining[i].Quantity.Sub(take)
	}

	out := remaining[:0]
	for _, lot := range remaining {
		if lot.Quantity.IsPositive() {
			out = append(out, lot)
		}
	}

	costPerUnit := decimal.Zero
	if consumed.IsPositive() {
		costPerUnit = cost.Div(consumed)
	}

	return Result{CostPerUnit: costPerUnit, Consumed: consumed, Remaining: out}
}

// pooled applies the weighted-average policy: one derived price across
// the whole inventory. On disposal every surviving lot is scaled down
// proportionally and re-tagged to the pooled average, which collapses
// lot provenance.
func pooled(lots []model.Lot, disposalQty decimal.Decimal) Result {
	total := decimal.Zero
	cost := decimal.Zero
	for _, lot := range lots {
		total = total.Add(lot.Quantity)
		cost = cost.Add(lot.Cost())
	}

	if !total.IsPositive() {
		return Result{CostPerUnit: decimal.Zero, Consumed: decimal.Zero, Remaining: nil}
	}

	avg := cost.Div(total)
	consumed := money.Min(money.ClampNonNegative(disposalQty), total)
	remainingTotal := total.Sub(consumed)

	var out []model.Lot
	if remainingTotal.IsPositive() {
		scale := remainingTotal.Div(total)
		out = make([]model.Lot, 0, len(lots))
		for _, lot := range lots {
			q := lot.Quantity.Mul(scale)
			if !q.IsPositive() {
				continue
			}
			out = append(out, model.Lot{
				Quantity:  q,
				UnitPrice: avg,
				Timestamp: lot.Timestamp,
			})
		}
	}

	costPerUnit := decimal.Zero
	if consumed.IsPositive() {
		costPerUnit = avg
	}

	return Result{CostPerUnit: costPerUnit, Consumed: consumed, Remaining: out}
}
