// Package model defines the core domain types shared across the P&L engine.
// All quantities and USD values use shopspring/decimal — never float64 for money.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Method selects the cost-basis accounting policy. It is a closed set:
// every switch over Method handles all three cases, so an unknown method
// can only enter the system through ParseMethod, which rejects it.
type Method string

const (
	// FIFO consumes the earliest-acquired lots first.
	FIFO Method = "fifo"
	// LIFO consumes the latest-acquired lots first.
	LIFO Method = "lifo"
	// AVG pools all lots at a single weighted-average price.
	AVG Method = "avg"
)

// Methods lists every supported cost-basis method.
func Methods() []Method { return []Method{FIFO, LIFO, AVG} }

// ErrUnknownMethod is returned by ParseMethod for unsupported values.
var ErrUnknownMethod = errors.New("model: unknown cost-basis method")

// ParseMethod validates an externally supplied method name.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case FIFO, LIFO, AVG:
		return Method(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// TxKind classifies the economic effect of a transaction.
type TxKind string

const (
	KindAcquisition  TxKind = "acquisition"
	KindDisposal     TxKind = "disposal"
	KindSwap         TxKind = "swap"
	KindSelfTransfer TxKind = "self_transfer"
	KindFee          TxKind = "fee"
)

// RawTransfer is an unclassified transfer as supplied by an upstream
// source. Fetching these is out of scope; they arrive in sync requests.
type RawTransfer struct {
	Hash      string          `json:"hash"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Asset     string          `json:"asset"`
	Value     decimal.Decimal `json:"value"`
	UnitPrice decimal.Decimal `json:"unit_price"` // USD at transfer time
	Fee       decimal.Decimal `json:"fee,omitempty"`
	FeeAsset  string          `json:"fee_asset,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Transaction is an immutable, classified ledger record. Uniquely
// identified by (Owner, Hash, Source); re-ingesting the same key is a
// no-op.
type Transaction struct {
	ID        string          `json:"id" db:"id"`
	Owner     string          `json:"owner" db:"owner"`
	Source    string          `json:"source" db:"source"` // originating address
	Asset     string          `json:"asset" db:"asset"`
	Hash      string          `json:"hash" db:"hash"`
	Kind      TxKind          `json:"kind" db:"kind"`
	Quantity  decimal.Decimal `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"` // USD
	FeeQty    decimal.Decimal `json:"fee_qty" db:"fee_qty"`
	FeeAsset  string          `json:"fee_asset" db:"fee_asset"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// Lot is an unconsumed (or partially consumed) acquisition. Lots belong
// to exactly one (owner, asset, method) ledger — matching order changes
// which lots remain, so methods never share lot state.
type Lot struct {
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"` // USD per unit
	Timestamp time.Time       `json:"timestamp"`
}

// Cost returns the total USD cost carried by the lot.
func (l Lot) Cost() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// Holding is the materialized aggregate for one (owner, asset, method).
// Never hand-edited: always recomputed by replaying the transaction
// history through the method's strategy.
type Holding struct {
	Owner       string          `json:"owner" db:"owner"`
	Asset       string          `json:"asset" db:"asset"`
	Method      Method          `json:"method" db:"method"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	CostBasis   decimal.Decimal `json:"cost_basis" db:"cost_basis"` // USD
	LastUpdated time.Time       `json:"last_updated" db:"last_updated"`
}

// RealizedPnL is an append-only audit record, one per disposal
// transaction processed. Never mutated after creation.
type RealizedPnL struct {
	ID            string          `json:"id" db:"id"`
	Owner         string          `json:"owner" db:"owner"`
	Asset         string          `json:"asset" db:"asset"`
	AmountUSD     decimal.Decimal `json:"amount_usd" db:"amount_usd"`
	TransactionID string          `json:"transaction_id" db:"transaction_id"`
	CalculatedAt  time.Time       `json:"calculated_at" db:"calculated_at"`
}
