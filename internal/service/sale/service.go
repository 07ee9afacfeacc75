package service

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/you-humble/repair-shop/internal/model"
	"github.com/you-humble/repair-shop/platform/logger"
)

type SaleRepository interface {
	CreateSale(ctx context.Context, params model.ProcessSaleParams) (*model.SaleTransaction, error)
	SaleByID(ctx context.Context, id uuid.UUID) (*model.SaleTransaction, error)
	List(ctx context.Context, filter model.SalesFilter) ([]*model.SaleTransaction, error)
}

type CompletedSender interface {
	SendSaleCompleted(ctx context.Context, event model.SaleCompleted) error
}

type service struct {
	repo           SaleRepository
	producer       CompletedSender
	readDBTimeout  time.Duration
	writeDBTimeout time.Duration
}

func NewSaleService(
	repository SaleRepository,
	producer CompletedSender,
	readDBTimeout time.Duration,
	writeDBTimeout time.Duration,
) *service {
	return &service{
		repo:           repository,
		producer:       producer,
		readDBTimeout:  readDBTimeout,
		writeDBTimeout: writeDBTimeout,
	}
}

// ProcessSale prices the cart, decrements stock and records the sale as one
// unit of work. Either every line is fulfilled or nothing changes.
func (svc *service) ProcessSale(ctx context.Context, params model.ProcessSaleParams) (*model.ProcessSaleResult, error) {
	const op string = "sale.service.ProcessSale"
	log := logger.With(
		logger.String("customer_id", params.CustomerID.String()),
		logger.Int("lines", len(params.Lines)),
	)

	if params.CustomerID == uuid.Nil {
		log.Error(ctx, "wrong params: empty customer id")
		return nil, fmt.Errorf("%s: %w", op, model.ErrValidation)
	}
	if len(params.Lines) == 0 {
		log.Warn(ctx, "empty cart")
		return nil, fmt.Errorf("%s: %w", op, model.ErrEmptyCart)
	}
	for _, line := range params.Lines {
		if line.ProductID == uuid.Nil || line.Quantity <= 0 {
			log.Error(ctx, "wrong sale line",
				logger.String("product_id", line.ProductID.String()),
				logger.Int32("quantity", line.Quantity),
			)
			return nil, fmt.Errorf("%s: %w", op, model.ErrInvalidLine)
		}
	}

	// A cart may legitimately repeat a product; merging lines up front
	// keeps the batch drain inside the transaction single-pass per product,
	// in product id order.
	merged := mergeLines(params.Lines)
	params.Lines = merged

	wdbCtx, wdbCancel := context.WithTimeout(ctx, svc.writeDBTimeout)
	defer wdbCancel()

	sale, err := svc.repo.CreateSale(wdbCtx, params)
	if err != nil {
		log.Error(ctx, "repository create sale", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info(ctx, "sale completed",
		logger.String("sale_id", sale.ID.String()),
		logger.Int64("total_cents", sale.TotalCents),
	)

	event := model.SaleCompleted{
		EventID:    uuid.New(),
		SaleID:     sale.ID,
		CustomerID: sale.CustomerID,
		TotalCents: sale.TotalCents,
		At:         sale.At,
	}

	// The sale is committed; a missed event is reported but never undoes it.
	if err := svc.producer.SendSaleCompleted(ctx, event); err != nil {
		log.Warn(ctx, "send sale completed event", logger.ErrorF(err))
	}

	return &model.ProcessSaleResult{SaleID: sale.ID, TotalCents: sale.TotalCents}, nil
}

func (svc *service) SaleByID(ctx context.Context, saleID uuid.UUID) (*model.SaleTransaction, error) {
	const op string = "sale.service.SaleByID"

	ctx, cancel := context.WithTimeout(ctx, svc.readDBTimeout)
	defer cancel()

	sale, err := svc.repo.SaleByID(ctx, saleID)
	if err != nil {
		logger.Error(ctx, "repository sale by id",
			logger.String("sale_id", saleID.String()),
			logger.ErrorF(err),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sale, nil
}

func (svc *service) List(ctx context.Context, filter model.SalesFilter) ([]*model.SaleTransaction, error) {
	const op string = "sale.service.List"

	ctx, cancel := context.WithTimeout(ctx, svc.readDBTimeout)
	defer cancel()

	sales, err := svc.repo.List(ctx, filter)
	if err != nil {
		logger.Error(ctx, "repository list sales", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sales, nil
}

// mergeLines collapses repeated products into one line each, ordered by
// product id. The repository decrements stock line by line, so concurrent
// carts must acquire cross-product batch locks in the same order.
func mergeLines(lines []model.SaleLine) []model.SaleLine {
	grouped := lo.GroupBy(lines, func(line model.SaleLine) uuid.UUID {
		return line.ProductID
	})

	merged := make([]model.SaleLine, 0, len(grouped))
	for prdID, group := range grouped {
		total := lo.SumBy(group, func(l model.SaleLine) int32 { return l.Quantity })
		merged = append(merged, model.SaleLine{ProductID: prdID, Quantity: total})
	}

	slices.SortFunc(merged, func(a, b model.SaleLine) int {
		return bytes.Compare(a.ProductID[:], b.ProductID[:])
	})

	return merged
}
