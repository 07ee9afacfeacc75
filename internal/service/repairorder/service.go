package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/you-humble/repair-shop/internal/model"
	"github.com/you-humble/repair-shop/platform/logger"
)

// diagnosticFeeCents is the fixed fee charged when a client rejects a
// quotation. It covers the inspection already performed and deliberately
// overrides the computed quotation total inside ResolveQuotation's reject
// branch - nowhere else.
const diagnosticFeeCents int64 = 25_000

type OrderRepository interface {
	Create(ctx context.Context, params model.CreateOrderParams) (*model.RepairOrder, error)
	OrderByID(ctx context.Context, id uuid.UUID) (*model.RepairOrder, error)
	List(ctx context.Context, filter model.OrdersFilter) ([]*model.RepairOrder, error)
	Transitions(ctx context.Context, orderID uuid.UUID) ([]model.RepairTransition, error)
	UpdateState(ctx context.Context, params model.TransitionParams, from model.RepairState) error
	FinalizeDiagnosis(ctx context.Context, params model.FinalizeDiagnosisParams, totalCents int64) error
	ResolveQuotation(ctx context.Context, params model.ResolveQuotationParams, rejectTotalCents int64) (*model.RepairOrder, error)
	Deliver(ctx context.Context, params model.DeliverParams) (*model.RepairOrder, error)
}

type DeliveredSender interface {
	SendOrderDelivered(ctx context.Context, event model.OrderDelivered) error
}

type service struct {
	repo           OrderRepository
	producer       DeliveredSender
	readDBTimeout  time.Duration
	writeDBTimeout time.Duration
}

func NewRepairOrderService(
	repository OrderRepository,
	producer DeliveredSender,
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

func (svc *service) Create(ctx context.Context, params model.CreateOrderParams) (*model.RepairOrder, error) {
	const op string = "repairorder.service.Create"
	log := logger.With(
		logger.String("customer_id", params.CustomerID.String()),
	)

	if params.CustomerID == uuid.Nil {
		log.Error(ctx, "wrong params: empty customer id")
		return nil, fmt.Errorf("%s: %w", op, model.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, svc.writeDBTimeout)
	defer cancel()

	ord, err := svc.repo.Create(ctx, params)
	if err != nil {
		log.Error(ctx, "repository create order", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info(ctx, "repair order received", logger.String("number", ord.Number))

	return ord, nil
}

func (svc *service) OrderByID(ctx context.Context, ordID uuid.UUID) (*model.RepairOrder, error) {
	const op string = "repairorder.service.OrderByID"

	ctx, cancel := context.WithTimeout(ctx, svc.readDBTimeout)
	defer cancel()

	ord, err := svc.repo.OrderByID(ctx, ordID)
	if err != nil {
		logger.Error(ctx, "repository order by id",
			logger.String("order_id", ordID.String()),
			logger.ErrorF(err),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ord, nil
}

func (svc *service) List(ctx context.Context, filter model.OrdersFilter) ([]*model.RepairOrder, error) {
	const op string = "repairorder.service.List"

	ctx, cancel := context.WithTimeout(ctx, svc.readDBTimeout)
	defer cancel()

	orders, err := svc.repo.List(ctx, filter)
	if err != nil {
		logger.Error(ctx, "repository list orders", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return orders, nil
}

func (svc *service) Transitions(ctx context.Context, ordID uuid.UUID) ([]model.RepairTransition, error) {
	const op string = "repairorder.service.Transitions"

	ctx, cancel := context.WithTimeout(ctx, svc.readDBTimeout)
	defer cancel()

	history, err := svc.repo.Transitions(ctx, ordID)
	if err != nil {
		logger.Error(ctx, "repository transitions",
			logger.String("order_id", ordID.String()),
			logger.ErrorF(err),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return history, nil
}

// Transition moves an order along the generic part of the lifecycle. The
// legality check against the allow-list runs here; the repository repeats
// it as a compare-and-swap so a concurrent transition cannot pass both.
func (svc *service) Transition(ctx context.Context, params model.TransitionParams) (*model.RepairOrder, error) {
	const op string = "repairorder.service.Transition"
	log := logger.With(
		logger.String("order_id", params.OrderID.String()),
		logger.String("target", string(params.Target)),
	)

	if params.ActorID == uuid.Nil || !params.Target.Valid() {
		log.Error(ctx, "wrong params")
		return nil, fmt.Errorf("%s: %w", op, model.ErrValidation)
	}

	rdbCtx, rdbCancel := context.WithTimeout(ctx, svc.readDBTimeout)
	defer rdbCancel()

	ord, err := svc.repo.OrderByID(rdbCtx, params.OrderID)
	if err != nil {
		log.Error(ctx, "repository order by id", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !ord.State.CanTransitionTo(params.Target) {
		log.Warn(ctx, "illegal transition", logger.String("state", string(ord.State)))
		return nil, fmt.Errorf("%s: %w", op, model.ErrIllegalTransition)
	}

	wdbCtx, wdbCancel := context.WithTimeout(ctx, svc.writeDBTimeout)
	defer wdbCancel()

	if err := svc.repo.UpdateState(wdbCtx, params, ord.State); err != nil {
		log.Error(ctx, "repository update state", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ord.State = params.Target

	return ord, nil
}

// FinalizeDiagnosis persists the proposed quotation lines and moves the
// order to QuotationReady with the provisional total (all lines counted,
// none resolved yet).
func (svc *service) FinalizeDiagnosis(ctx context.Context, params model.FinalizeDiagnosisParams) (*model.RepairOrder, error) {
	const op string = "repairorder.service.FinalizeDiagnosis"
	log := logger.With(
		logger.String("order_id", params.OrderID.String()),
		logger.Int("lines", len(params.Lines)),
	)

	if params.ActorID == uuid.Nil {
		log.Error(ctx, "wrong params: empty actor id")
		return nil, fmt.Errorf("%s: %w", op, model.ErrValidation)
	}
	if len(params.Lines) == 0 {
		log.Warn(ctx, "empty quotation")
		return nil, fmt.Errorf("%s: %w", op, model.ErrEmptyQuotation)
	}
	for _, line := range params.Lines {
		if line.Quantity <= 0 || line.UnitCostCents <= 0 {
			log.Error(ctx, "wrong quotation line",
				logger.String("description", line.Description),
			)
			return nil, fmt.Errorf("%s: %w", op, model.ErrValidation)
		}
	}

	totalCents := lo.SumBy(params.Lines, func(line model.QuotationLineInput) int64 {
		return int64(line.Quantity) * line.UnitCostCents
	})

	ctx, cancel := context.WithTimeout(ctx, svc.writeDBTimeout)
	defer cancel()

	if err := svc.repo.FinalizeDiagnosis(ctx, params, totalCents); err != nil {
		log.Error(ctx, "repository finalize diagnosis", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ord, err := svc.repo.OrderByID(ctx, params.OrderID)
	if err != nil {
		log.Error(ctx, "repository order by id", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ord, nil
}

func (svc *service) ResolveQuotation(ctx context.Context, params model.ResolveQuotationParams) (*model.RepairOrder, error) {
	const op string = "repairorder.service.ResolveQuotation"
	log := logger.With(
		logger.String("order_id", params.OrderID.String()),
		logger.String("decision", string(params.Decision)),
	)

	if params.ActorID == uuid.Nil ||
		(params.Decision != model.DecisionAccept && params.Decision != model.DecisionReject) {
		log.Error(ctx, "wrong params")
		return nil, fmt.Errorf("%s: %w", op, model.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, svc.writeDBTimeout)
	defer cancel()

	// On reject the computed quotation total is overridden by the fixed
	// diagnostic fee; the inspection has been done and is charged for.
	ord, err := svc.repo.ResolveQuotation(ctx, params, diagnosticFeeCents)
	if err != nil {
		log.Error(ctx, "repository resolve quotation", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info(ctx, "quotation resolved",
		logger.String("state", string(ord.State)),
		logger.Int64("cost_total_cents", ord.CostTotalCents),
	)

	return ord, nil
}

// Deliver hands the device back. The repository re-checks the payment gate
// inside the same transaction as the state write; an order is never
// delivered without an approved payment matching its current total.
func (svc *service) Deliver(ctx context.Context, params model.DeliverParams) (*model.RepairOrder, error) {
	const op string = "repairorder.service.Deliver"
	log := logger.With(
		logger.String("order_id", params.OrderID.String()),
		logger.String("collector", params.CollectorName),
	)

	if params.ActorID == uuid.Nil || params.CollectorName == "" {
		log.Error(ctx, "wrong params")
		return nil, fmt.Errorf("%s: %w", op, model.ErrValidation)
	}

	wdbCtx, wdbCancel := context.WithTimeout(ctx, svc.writeDBTimeout)
	defer wdbCancel()

	ord, err := svc.repo.Deliver(wdbCtx, params)
	if err != nil {
		log.Error(ctx, "repository deliver", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	event := model.OrderDelivered{
		EventID:        uuid.New(),
		OrderID:        ord.ID,
		Number:         ord.Number,
		CostTotalCents: ord.CostTotalCents,
	}
	if ord.DeliveredAt != nil {
		event.DeliveredAt = *ord.DeliveredAt
	}

	// The handoff to downstream collaborators is best-effort; the delivery
	// itself is already committed.
	if err := svc.producer.SendOrderDelivered(ctx, event); err != nil {
		log.Warn(ctx, "send order delivered event", logger.ErrorF(err))
	}

	return ord, nil
}
