package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/you-humble/repair-shop/internal/model"
	"github.com/you-humble/repair-shop/platform/logger"
)

type PaymentRepository interface {
	RecordPayment(ctx context.Context, params model.RecordPaymentParams, txRef string) (*model.Payment, error)
	IsCleared(ctx context.Context, orderID uuid.UUID) (bool, error)
	Payments(ctx context.Context, orderID uuid.UUID) ([]model.Payment, error)
}

type service struct {
	repo           PaymentRepository
	readDBTimeout  time.Duration
	writeDBTimeout time.Duration
}

func NewPaymentService(
	repository PaymentRepository,
	readDBTimeout time.Duration,
	writeDBTimeout time.Duration,
) *service {
	return &service{
		repo:           repository,
		readDBTimeout:  readDBTimeout,
		writeDBTimeout: writeDBTimeout,
	}
}

// RecordPayment registers an approved payment against an order. The caller
// vouches for the provider confirmation; the transaction reference is
// generated here so each recorded payment stays traceable.
func (svc *service) RecordPayment(ctx context.Context, params model.RecordPaymentParams) (*model.RecordPaymentResult, error) {
	const op string = "payment.service.RecordPayment"
	log := logger.With(
		logger.String("order_id", params.OrderID.String()),
		logger.String("method", string(params.Method)),
		logger.Int64("amount_cents", params.AmountCents),
	)

	if !params.Method.Valid() {
		log.Error(ctx, "wrong params: unknown payment method")
		return nil, fmt.Errorf("%s: %w", op, model.ErrValidation)
	}
	if params.AmountCents <= 0 {
		log.Error(ctx, "wrong params: non-positive amount")
		return nil, fmt.Errorf("%s: %w", op, model.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, svc.writeDBTimeout)
	defer cancel()

	pmt, err := svc.repo.RecordPayment(ctx, params, uuid.NewString())
	if err != nil {
		log.Error(ctx, "repository record payment", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info(ctx, "payment recorded", logger.String("tx_ref", pmt.TxRef))

	return &model.RecordPaymentResult{PaymentID: pmt.ID, TxRef: pmt.TxRef}, nil
}

func (svc *service) IsCleared(ctx context.Context, orderID uuid.UUID) (bool, error) {
	const op string = "payment.service.IsCleared"

	ctx, cancel := context.WithTimeout(ctx, svc.readDBTimeout)
	defer cancel()

	cleared, err := svc.repo.IsCleared(ctx, orderID)
	if err != nil {
		logger.Error(ctx, "repository is cleared",
			logger.String("order_id", orderID.String()),
			logger.ErrorF(err),
		)
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return cleared, nil
}

func (svc *service) Payments(ctx context.Context, orderID uuid.UUID) ([]model.Payment, error) {
	const op string = "payment.service.Payments"

	ctx, cancel := context.WithTimeout(ctx, svc.readDBTimeout)
	defer cancel()

	payments, err := svc.repo.Payments(ctx, orderID)
	if err != nil {
		logger.Error(ctx, "repository payments",
			logger.String("order_id", orderID.String()),
			logger.ErrorF(err),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return payments, nil
}
