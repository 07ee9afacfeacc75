package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/you-humble/repair-shop/internal/model"
	"github.com/you-humble/repair-shop/platform/logger"
)

type StockRepository interface {
	CreateProduct(ctx context.Context, params model.CreateProductParams) (*model.Product, error)
	ProductByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	LowStock(ctx context.Context) ([]model.LowStockProduct, error)
	AvailableStock(ctx context.Context, productID uuid.UUID) (int32, error)
	Batches(ctx context.Context, productID uuid.UUID) ([]model.StockBatch, error)
	ReceiveBatch(ctx context.Context, params model.ReceiveBatchParams) (*model.StockBatch, error)
	ReserveAndDecrement(ctx context.Context, productID uuid.UUID, quantity int32) error
}

type service struct {
	repo           StockRepository
	readDBTimeout  time.Duration
	writeDBTimeout time.Duration
}

func NewStockService(
	repository StockRepository,
	readDBTimeout time.Duration,
	writeDBTimeout time.Duration,
) *service {
	return &service{
		repo:           repository,
		readDBTimeout:  readDBTimeout,
		writeDBTimeout: writeDBTimeout,
	}
}

func (svc *service) CreateProduct(ctx context.Context, params model.CreateProductParams) (*model.Product, error) {
	const op string = "stock.service.CreateProduct"
	log := logger.With(logger.String("name", params.Name))

	if params.Name == "" || params.PriceCents <= 0 || params.MinStock < 0 {
		log.Error(ctx, "wrong params")
		return nil, fmt.Errorf("%s: %w", op, model.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, svc.writeDBTimeout)
	defer cancel()

	prd, err := svc.repo.CreateProduct(ctx, params)
	if err != nil {
		log.Error(ctx, "repository create product", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info(ctx, "product created", logger.String("product_id", prd.ID.String()))

	return prd, nil
}

func (svc *service) ProductByID(ctx context.Context, prdID uuid.UUID) (*model.Product, error) {
	const op string = "stock.service.ProductByID"

	ctx, cancel := context.WithTimeout(ctx, svc.readDBTimeout)
	defer cancel()

	prd, err := svc.repo.ProductByID(ctx, prdID)
	if err != nil {
		logger.Error(ctx, "repository product by id",
			logger.String("product_id", prdID.String()),
			logger.ErrorF(err),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return prd, nil
}

func (svc *service) ListProducts(ctx context.Context) ([]model.Product, error) {
	const op string = "stock.service.ListProducts"

	ctx, cancel := context.WithTimeout(ctx, svc.readDBTimeout)
	defer cancel()

	products, err := svc.repo.ListProducts(ctx)
	if err != nil {
		logger.Error(ctx, "repository list products", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return products, nil
}

// LowStock reports products whose total available quantity across batches
// sits below the product's minimum stock threshold.
func (svc *service) LowStock(ctx context.Context) ([]model.LowStockProduct, error) {
	const op string = "stock.service.LowStock"

	ctx, cancel := context.WithTimeout(ctx, svc.readDBTimeout)
	defer cancel()

	products, err := svc.repo.LowStock(ctx)
	if err != nil {
		logger.Error(ctx, "repository low stock", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return products, nil
}

func (svc *service) AvailableStock(ctx context.Context, prdID uuid.UUID) (int32, error) {
	const op string = "stock.service.AvailableStock"

	ctx, cancel := context.WithTimeout(ctx, svc.readDBTimeout)
	defer cancel()

	available, err := svc.repo.AvailableStock(ctx, prdID)
	if err != nil {
		logger.Error(ctx, "repository available stock",
			logger.String("product_id", prdID.String()),
			logger.ErrorF(err),
		)
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return available, nil
}

func (svc *service) Batches(ctx context.Context, prdID uuid.UUID) ([]model.StockBatch, error) {
	const op string = "stock.service.Batches"

	ctx, cancel := context.WithTimeout(ctx, svc.readDBTimeout)
	defer cancel()

	batches, err := svc.repo.Batches(ctx, prdID)
	if err != nil {
		logger.Error(ctx, "repository batches",
			logger.String("product_id", prdID.String()),
			logger.ErrorF(err),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return batches, nil
}

func (svc *service) ReceiveBatch(ctx context.Context, params model.ReceiveBatchParams) (*model.StockBatch, error) {
	const op string = "stock.service.ReceiveBatch"
	log := logger.With(
		logger.String("product_id", params.ProductID.String()),
		logger.Int32("quantity", params.Quantity),
	)

	if params.Quantity <= 0 {
		log.Warn(ctx, "non-positive batch quantity")
		return nil, fmt.Errorf("%s: %w", op, model.ErrInvalidQuantity)
	}
	if params.IntakeDate.IsZero() {
		params.IntakeDate = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(ctx, svc.writeDBTimeout)
	defer cancel()

	batch, err := svc.repo.ReceiveBatch(ctx, params)
	if err != nil {
		log.Error(ctx, "repository receive batch", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info(ctx, "stock batch received", logger.String("batch_id", batch.ID.String()))

	return batch, nil
}

// ReserveAndDecrement consumes quantity units of a product, draining the
// oldest batches first. Callers that need the decrement atomic with other
// writes go through the sale flow instead.
func (svc *service) ReserveAndDecrement(ctx context.Context, prdID uuid.UUID, quantity int32) error {
	const op string = "stock.service.ReserveAndDecrement"
	log := logger.With(
		logger.String("product_id", prdID.String()),
		logger.Int32("quantity", quantity),
	)

	if quantity <= 0 {
		log.Warn(ctx, "non-positive quantity")
		return fmt.Errorf("%s: %w", op, model.ErrInvalidQuantity)
	}

	ctx, cancel := context.WithTimeout(ctx, svc.writeDBTimeout)
	defer cancel()

	if err := svc.repo.ReserveAndDecrement(ctx, prdID, quantity); err != nil {
		log.Error(ctx, "repository reserve and decrement", logger.ErrorF(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
