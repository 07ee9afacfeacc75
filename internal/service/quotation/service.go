package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/you-humble/repair-shop/internal/model"
	"github.com/you-humble/repair-shop/platform/logger"
)

type QuotationRepository interface {
	QuotationLines(ctx context.Context, orderID uuid.UUID) ([]model.QuotationLine, error)
	TotalAccepted(ctx context.Context, orderID uuid.UUID) (int64, error)
}

type service struct {
	repo          QuotationRepository
	readDBTimeout time.Duration
}

func NewQuotationService(repository QuotationRepository, readDBTimeout time.Duration) *service {
	return &service{repo: repository, readDBTimeout: readDBTimeout}
}

func (svc *service) Lines(ctx context.Context, orderID uuid.UUID) ([]model.QuotationLine, error) {
	const op string = "quotation.service.Lines"

	ctx, cancel := context.WithTimeout(ctx, svc.readDBTimeout)
	defer cancel()

	lines, err := svc.repo.QuotationLines(ctx, orderID)
	if err != nil {
		logger.Error(ctx, "repository quotation lines",
			logger.String("order_id", orderID.String()),
			logger.ErrorF(err),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return lines, nil
}

func (svc *service) TotalAccepted(ctx context.Context, orderID uuid.UUID) (int64, error) {
	const op string = "quotation.service.TotalAccepted"

	ctx, cancel := context.WithTimeout(ctx, svc.readDBTimeout)
	defer cancel()

	total, err := svc.repo.TotalAccepted(ctx, orderID)
	if err != nil {
		logger.Error(ctx, "repository total accepted",
			logger.String("order_id", orderID.String()),
			logger.ErrorF(err),
		)
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return total, nil
}
