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

// StockLedger is the slice of the stock repository the sale transaction
// needs inside its own pgx transaction.
type StockLedger interface {
	DecrementInTx(ctx context.Context, tx pgx.Tx, productID uuid.UUID, quantity int32) error
	ProductPriceInTx(ctx context.Context, tx pgx.Tx, productID uuid.UUID) (int64, error)
}

type repository struct {
	pool  *pgxpool.Pool
	stock StockLedger
	sb    sq.StatementBuilderType
}

func NewSaleRepository(pool *pgxpool.Pool, stock StockLedger) *repository {
	return &repository{
		pool:  pool,
		stock: stock,
		sb:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// CreateSale commits the whole cart as one transaction: price reads, stock
// decrements and the sale rows either all land or none do. A failing line
// rolls back decrements already applied for earlier lines.
func (r *repository) CreateSale(ctx context.Context, params model.ProcessSaleParams) (*model.SaleTransaction, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	items := make([]model.SaleLineItem, 0, len(params.Lines))
	var totalCents int64
	for _, line := range params.Lines {
		price, err := r.stock.ProductPriceInTx(ctx, tx, line.ProductID)
		if err != nil {
			return nil, err
		}

		if err := r.stock.DecrementInTx(ctx, tx, line.ProductID, line.Quantity); err != nil {
			return nil, err
		}

		subtotal := int64(line.Quantity) * price
		items = append(items, model.SaleLineItem{
			ProductID:      line.ProductID,
			Quantity:       line.Quantity,
			UnitPriceCents: price,
			SubtotalCents:  subtotal,
		})
		totalCents += subtotal
	}

	sale := model.SaleTransaction{
		CustomerID: params.CustomerID,
		SellerID:   params.SellerID,
		Items:      items,
		TotalCents: totalCents,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO sales (customer_id, seller_id, total_cents)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		sale.CustomerID, sale.SellerID, sale.TotalCents,
	).Scan(&sale.ID, &sale.At)
	if err != nil {
		return nil, err
	}

	ins := r.sb.
		Insert("sale_items").
		Columns("sale_id", "product_id", "quantity", "unit_price_cents", "subtotal_cents")
	for _, it := range items {
		ins = ins.Values(sale.ID, it.ProductID, it.Quantity, it.UnitPriceCents, it.SubtotalCents)
	}

	sqlStr, args, err := ins.ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &sale, nil
}

func (r *repository) SaleByID(ctx context.Context, id uuid.UUID) (*model.SaleTransaction, error) {
	var sale model.SaleTransaction
	err := r.pool.QueryRow(ctx,
		"SELECT id, customer_id, seller_id, total_cents, created_at FROM sales WHERE id = $1",
		id,
	).Scan(&sale.ID, &sale.CustomerID, &sale.SellerID, &sale.TotalCents, &sale.At)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrSaleNotFound
		}
		return nil, err
	}

	items, err := r.saleItems(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	sale.Items = items

	return &sale, nil
}

func (r *repository) List(ctx context.Context, filter model.SalesFilter) ([]*model.SaleTransaction, error) {
	q := r.sb.
		Select("id", "customer_id", "seller_id", "total_cents", "created_at").
		From("sales").
		OrderBy("created_at DESC")

	if filter.CustomerID != nil {
		q = q.Where(sq.Eq{"customer_id": *filter.CustomerID})
	}
	if filter.SellerID != nil {
		q = q.Where(sq.Eq{"seller_id": *filter.SellerID})
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*model.SaleTransaction, 0)
	for rows.Next() {
		var sale model.SaleTransaction
		if err := rows.Scan(&sale.ID, &sale.CustomerID, &sale.SellerID,
			&sale.TotalCents, &sale.At); err != nil {
			return nil, err
		}
		out = append(out, &sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, sale := range out {
		items, err := r.saleItems(ctx, sale.ID)
		if err != nil {
			return nil, err
		}
		sale.Items = items
	}

	return out, nil
}

func (r *repository) saleItems(ctx context.Context, saleID uuid.UUID) ([]model.SaleLineItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT product_id, quantity, unit_price_cents, subtotal_cents
		 FROM sale_items WHERE sale_id = $1 ORDER BY id`,
		saleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.SaleLineItem, 0)
	for rows.Next() {
		var it model.SaleLineItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPriceCents,
			&it.SubtotalCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}

	return out, rows.Err()
}
