package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cryptfolio/pnl-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All quantities and USD values are stored as NUMERIC for exact decimal
// precision. Idempotency relies on the schema's unique indexes:
// transactions on (owner, hash, source), realized P&L on (owner,
// transaction_id), holdings keyed on (owner, asset, method).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) InsertTransaction(ctx context.Context, tx *model.Transaction) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO transactions (id, owner, source, asset, hash, kind, quantity, unit_price, fee_qty, fee_asset, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10, $11)
		 ON CONFLICT (owner, hash, source) DO NOTHING`,
		tx.ID, tx.Owner, tx.Source, tx.Asset, tx.Hash, string(tx.Kind),
		tx.Quantity.String(), tx.UnitPrice.String(), tx.FeeQty.String(), tx.FeeAsset,
		tx.Timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("insert transaction %s: %w", tx.Hash, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetTransactions(ctx context.Context, owner, asset string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner, source, asset, hash, kind,
		        quantity::TEXT, unit_price::TEXT, fee_qty::TEXT, fee_asset, timestamp
		 FROM transactions
		 WHERE owner = $1 AND asset = $2
		 ORDER BY timestamp, hash`, owner, asset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		var tx model.Transaction
		var kind, qtyS, priceS, feeS string

		if err := rows.Scan(&tx.ID, &tx.Owner, &tx.Source, &tx.Asset, &tx.Hash, &kind,
			&qtyS, &priceS, &feeS, &tx.FeeAsset, &tx.Timestamp); err != nil {
			return nil, err
		}
		tx.Kind = model.TxKind(kind)
		tx.Quantity, _ = decimal.NewFromString(qtyS)
		tx.UnitPrice, _ = decimal.NewFromString(priceS)
		tx.FeeQty, _ = decimal.NewFromString(feeS)

		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (s *PostgresStore) GetAssets(ctx context.Context, owner string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT asset FROM transactions WHERE owner = $1 ORDER BY asset`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (s *PostgresStore) UpsertHolding(ctx context.Context, h *model.Holding) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO holdings (owner, asset, method, quantity, cost_basis, last_updated)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6)
		 ON CONFLICT (owner, asset, method)
		 DO UPDATE SET quantity = EXCLUDED.quantity,
		               cost_basis = EXCLUDED.cost_basis,
		               last_updated = EXCLUDED.last_updated`,
		h.Owner, h.Asset, string(h.Method),
		h.Quantity.String(), h.CostBasis.String(), h.LastUpdated,
	)
	return err
}

func (s *PostgresStore) GetHoldings(ctx context.Context, owner string, method model.Method) ([]model.Holding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT owner, asset, method, quantity::TEXT, cost_basis::TEXT, last_updated
		 FROM holdings
		 WHERE owner = $1 AND method = $2
		 ORDER BY asset`, owner, string(method))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []model.Holding
	for rows.Next() {
		var h model.Holding
		var methodS, qtyS, basisS string

		if err := rows.Scan(&h.Owner, &h.Asset, &methodS, &qtyS, &basisS, &h.LastUpdated); err != nil {
			return nil, err
		}
		h.Method = model.Method(methodS)
		h.Quantity, _ = decimal.NewFromString(qtyS)
		h.CostBasis, _ = decimal.NewFromString(basisS)

		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func (s *PostgresStore) InsertRealizedPnL(ctx context.Context, rec *model.RealizedPnL) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO realized_pnl (id, owner, asset, amount_usd, transaction_id, calculated_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6)
		 ON CONFLICT (owner, transaction_id) DO NOTHING`,
		rec.ID, rec.Owner, rec.Asset, rec.AmountUSD.String(), rec.TransactionID, rec.CalculatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert realized pnl for tx %s: %w", rec.TransactionID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetRealizedPnL(ctx context.Context, owner string) ([]model.RealizedPnL, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner, asset, amount_usd::TEXT, transaction_id, calculated_at
		 FROM realized_pnl
		 WHERE owner = $1
		 ORDER BY calculated_at`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []model.RealizedPnL
	for rows.Next() {
		var r model.RealizedPnL
		var amountS string

		if err := rows.Scan(&r.ID, &r.Owner, &r.Asset, &amountS, &r.TransactionID, &r.CalculatedAt); err != nil {
			return nil, err
		}
		r.AmountUSD, _ = decimal.NewFromString(amountS)

		recs = append(recs, r)
	}
	return recs, rows.Err()
}
