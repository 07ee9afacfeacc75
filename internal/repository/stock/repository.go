package repository

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/you-humble/repair-shop/internal/model"
)

type repository struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

func NewStockRepository(pool *pgxpool.Pool) *repository {
	return &repository{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *repository) CreateProduct(ctx context.Context, params model.CreateProductParams) (*model.Product, error) {
	q := r.sb.
		Insert("products").
		Columns("name", "price_cents", "min_stock").
		Values(params.Name, params.PriceCents, params.MinStock).
		Suffix("RETURNING id, name, min_stock, price_cents, created_at")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var p model.Product
	err = r.pool.QueryRow(ctx, sqlStr, args...).
		Scan(&p.ID, &p.Name, &p.MinStock, &p.PriceCents, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *repository) ProductByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	q := r.sb.
		Select("id", "name", "min_stock", "price_cents", "created_at").
		From("products").
		Where(sq.Eq{"id": id})

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var p model.Product
	err = r.pool.QueryRow(ctx, sqlStr, args...).
		Scan(&p.ID, &p.Name, &p.MinStock, &p.PriceCents, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrProductNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *repository) ListProducts(ctx context.Context) ([]model.Product, error) {
	q := r.sb.
		Select("id", "name", "min_stock", "price_cents", "created_at").
		From("products").
		OrderBy("name", "id")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Product, 0)
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.MinStock, &p.PriceCents, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	return out, rows.Err()
}

// LowStock lists products whose batch sum is below their threshold.
func (r *repository) LowStock(ctx context.Context) ([]model.LowStockProduct, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name, p.min_stock, p.price_cents, p.created_at,
		        COALESCE(SUM(b.quantity), 0) AS available
		 FROM products p
		 LEFT JOIN stock_batches b ON b.product_id = p.id
		 GROUP BY p.id
		 HAVING COALESCE(SUM(b.quantity), 0) < p.min_stock
		 ORDER BY p.name, p.id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.LowStockProduct, 0)
	for rows.Next() {
		var item model.LowStockProduct
		if err := rows.Scan(&item.Product.ID, &item.Product.Name, &item.Product.MinStock,
			&item.Product.PriceCents, &item.Product.CreatedAt, &item.Available); err != nil {
			return nil, err
		}
		out = append(out, item)
	}

	return out, rows.Err()
}

// AvailableStock is the sum of quantities across the product's batches.
func (r *repository) AvailableStock(ctx context.Context, productID uuid.UUID) (int32, error) {
	var available *int32
	err := r.pool.QueryRow(ctx,
		`SELECT SUM(b.quantity)
		 FROM products p
		 LEFT JOIN stock_batches b ON b.product_id = p.id
		 WHERE p.id = $1
		 GROUP BY p.id`,
		productID,
	).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.ErrProductNotFound
		}
		return 0, err
	}

	if available == nil {
		return 0, nil
	}

	return *available, nil
}

func (r *repository) Batches(ctx context.Context, productID uuid.UUID) ([]model.StockBatch, error) {
	q := r.sb.
		Select("id", "product_id", "quantity", "unit_cost_cents", "intake_date", "note").
		From("stock_batches").
		Where(sq.Eq{"product_id": productID}).
		OrderBy("intake_date", "id")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.StockBatch, 0)
	for rows.Next() {
		var b model.StockBatch
		if err := rows.Scan(&b.ID, &b.ProductID, &b.Quantity, &b.UnitCostCents,
			&b.IntakeDate, &b.Note); err != nil {
			return nil, err
		}
		out = append(out, b)
	}

	return out, rows.Err()
}

func (r *repository) ReceiveBatch(ctx context.Context, params model.ReceiveBatchParams) (*model.StockBatch, error) {
	if _, err := r.ProductByID(ctx, params.ProductID); err != nil {
		return nil, err
	}

	q := r.sb.
		Insert("stock_batches").
		Columns("product_id", "quantity", "unit_cost_cents", "intake_date", "note").
		Values(params.ProductID, params.Quantity, params.UnitCostCents,
			params.IntakeDate, params.Note).
		Suffix("RETURNING id, product_id, quantity, unit_cost_cents, intake_date, note")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var b model.StockBatch
	err = r.pool.QueryRow(ctx, sqlStr, args...).
		Scan(&b.ID, &b.ProductID, &b.Quantity, &b.UnitCostCents, &b.IntakeDate, &b.Note)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// ReserveAndDecrement atomically takes quantity units off the product's
// batches. Two concurrent callers contending for the last units serialize
// on the batch row locks: one wins, the other sees the reduced sum and gets
// ErrInsufficientStock.
func (r *repository) ReserveAndDecrement(ctx context.Context, productID uuid.UUID, quantity int32) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.DecrementInTx(ctx, tx, productID, quantity); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// DecrementInTx runs the locked decrement inside a caller-owned transaction
// so that a multi-line sale can combine per-product decrements with its own
// inserts into one atomic unit. Batches are locked and drained oldest
// intake first; the deterministic order doubles as a stable lock order.
func (r *repository) DecrementInTx(ctx context.Context, tx pgx.Tx, productID uuid.UUID, quantity int32) error {
	rows, err := tx.Query(ctx,
		`SELECT id, quantity FROM stock_batches
		 WHERE product_id = $1 AND quantity > 0
		 ORDER BY intake_date, id
		 FOR UPDATE`,
		productID,
	)
	if err != nil {
		return err
	}

	type lockedBatch struct {
		id  uuid.UUID
		qty int32
	}

	var (
		batches   []lockedBatch
		available int32
	)
	for rows.Next() {
		var b lockedBatch
		if err := rows.Scan(&b.id, &b.qty); err != nil {
			rows.Close()
			return err
		}
		batches = append(batches, b)
		available += b.qty
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if available < quantity {
		if _, err := r.productExistsInTx(ctx, tx, productID); err != nil {
			return err
		}
		return model.ErrInsufficientStock
	}

	remaining := quantity
	for _, b := range batches {
		if remaining == 0 {
			break
		}

		take := min(b.qty, remaining)
		if _, err := tx.Exec(ctx,
			"UPDATE stock_batches SET quantity = quantity - $1 WHERE id = $2",
			take, b.id,
		); err != nil {
			return err
		}
		remaining -= take
	}

	return nil
}

// ProductPriceInTx reads the current sale price inside the sale transaction
// so committed line items capture the price in effect at commit time.
func (r *repository) ProductPriceInTx(ctx context.Context, tx pgx.Tx, productID uuid.UUID) (int64, error) {
	var price int64
	err := tx.QueryRow(ctx,
		"SELECT price_cents FROM products WHERE id = $1",
		productID,
	).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.ErrProductNotFound
		}
		return 0, err
	}

	return price, nil
}

func (r *repository) productExistsInTx(ctx context.Context, tx pgx.Tx, productID uuid.UUID) (bool, error) {
	var exists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)",
		productID,
	).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, model.ErrProductNotFound
	}

	return true, nil
}
