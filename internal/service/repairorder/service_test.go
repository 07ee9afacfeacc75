package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/you-humble/repair-shop/internal/model"
	"github.com/you-humble/repair-shop/internal/service/mocks"
)

func TestServiceCreate(t *testing.T) {
	t.Parallel()

	type deps struct {
		repository *mocks.MockOrderRepository
		producer   *mocks.MockDeliveredSender
	}

	newSvc := func(d deps) *service {
		return NewRepairOrderService(d.repository, d.producer, 2*time.Second, 2*time.Second)
	}

	customerID := uuid.New()

	type testCase struct {
		name   string
		params model.CreateOrderParams
		setup  func(d deps)
		assert func(t *testing.T, ord *model.RepairOrder, err error, d deps)
	}

	tests := []testCase{
		{
			name: "validation error: empty customer id",
			params: model.CreateOrderParams{
				CustomerID:  uuid.Nil,
				DeviceModel: "PX-500",
			},
			setup: func(d deps) {
				// No calls expected.
			},
			assert: func(t *testing.T, ord *model.RepairOrder, err error, d deps) {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrValidation)
				assert.Nil(t, ord)

				d.repository.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			},
		},
		{
			name: "repository error: Create fails",
			params: model.CreateOrderParams{
				CustomerID:  customerID,
				DeviceModel: "PX-500",
			},
			setup: func(d deps) {
				d.repository.
					On("Create", mock.Anything, mock.Anything).
					Return(nil, errors.New("db write failed")).
					Once()
			},
			assert: func(t *testing.T, ord *model.RepairOrder, err error, d deps) {
				require.Error(t, err)
				assert.Nil(t, ord)
			},
		},
		{
			name: "success: new order starts in Received",
			params: model.CreateOrderParams{
				CustomerID:  customerID,
				DeviceModel: "PX-500",
				Fault:       "does not power on",
			},
			setup: func(d deps) {
				d.repository.
					On("Create", mock.Anything, mock.MatchedBy(func(p model.CreateOrderParams) bool {
						return p.CustomerID == customerID && p.DeviceModel == "PX-500"
					})).
					Return(&model.RepairOrder{
						ID:         uuid.New(),
						Number:     "RO-20260829-0001",
						CustomerID: customerID,
						State:      model.StateReceived,
					}, nil).
					Once()
			},
			assert: func(t *testing.T, ord *model.RepairOrder, err error, d deps) {
				require.NoError(t, err)
				require.NotNil(t, ord)
				assert.Equal(t, model.StateReceived, ord.State)
				assert.NotEmpty(t, ord.Number)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := deps{
				repository: mocks.NewMockOrderRepository(t),
				producer:   mocks.NewMockDeliveredSender(t),
			}
			if tt.setup != nil {
				tt.setup(d)
			}

			svc := newSvc(d)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			ord, err := svc.Create(ctx, tt.params)
			tt.assert(t, ord, err, d)
		})
	}
}

func TestServiceTransition(t *testing.T) {
	t.Parallel()

	type deps struct {
		repository *mocks.MockOrderRepository
		producer   *mocks.MockDeliveredSender
	}

	newSvc := func(d deps) *service {
		return NewRepairOrderService(d.repository, d.producer, 2*time.Second, 2*time.Second)
	}

	ordID := uuid.New()
	actorID := uuid.New()

	type testCase struct {
		name   string
		params model.TransitionParams
		setup  func(d deps)
		assert func(t *testing.T, ord *model.RepairOrder, err error, d deps)
	}

	tests := []testCase{
		{
			name: "validation error: empty actor id",
			params: model.TransitionParams{
				OrderID: ordID,
				ActorID: uuid.Nil,
				Target:  model.StateDiagnosing,
			},
			setup: func(d deps) {},
			assert: func(t *testing.T, ord *model.RepairOrder, err error, d deps) {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrValidation)
				d.repository.AssertNotCalled(t, "UpdateState", mock.Anything, mock.Anything, mock.Anything)
			},
		},
		{
			name: "validation error: unknown target state",
			params: model.TransitionParams{
				OrderID: ordID,
				ActorID: actorID,
				Target:  model.RepairState("MELTED"),
			},
			setup: func(d deps) {},
			assert: func(t *testing.T, ord *model.RepairOrder, err error, d deps) {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrValidation)
			},
		},
		{
			name: "illegal transition: Received cannot jump to Repairing",
			params: model.TransitionParams{
				OrderID: ordID,
				ActorID: actorID,
				Target:  model.StateRepairing,
			},
			setup: func(d deps) {
				d.repository.
					On("OrderByID", mock.Anything, ordID).
					Return(&model.RepairOrder{ID: ordID, State: model.StateReceived}, nil).
					Once()
			},
			assert: func(t *testing.T, ord *model.RepairOrder, err error, d deps) {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrIllegalTransition)
				assert.Nil(t, ord)

				d.repository.AssertNotCalled(t, "UpdateState", mock.Anything, mock.Anything, mock.Anything)
			},
		},
		{
			name: "illegal transition: Delivered is never a generic target",
			params: model.TransitionParams{
				OrderID: ordID,
				ActorID: actorID,
				Target:  model.StateDelivered,
			},
			setup: func(d deps) {
				d.repository.
					On("OrderByID", mock.Anything, ordID).
					Return(&model.RepairOrder{ID: ordID, State: model.StateReadyForPickup}, nil).
					Once()
			},
			assert: func(t *testing.T, ord *model.RepairOrder, err error, d deps) {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrIllegalTransition)

				d.repository.AssertNotCalled(t, "UpdateState", mock.Anything, mock.Anything, mock.Anything)
			},
		},
		{
			name: "conflict: compare-and-swap lost to a concurrent transition",
			params: model.TransitionParams{
				OrderID: ordID,
				ActorID: actorID,
				Target:  model.StateDiagnosing,
			},
			setup: func(d deps) {
				d.repository.
					On("OrderByID", mock.Anything, ordID).
					Return(&model.RepairOrder{ID: ordID, State: model.StateReceived}, nil).
					Once()

				d.repository.
					On("UpdateState", mock.Anything, mock.Anything, model.StateReceived).
					Return(model.ErrIllegalTransition).
					Once()
			},
			assert: func(t *testing.T, ord *model.RepairOrder, err error, d deps) {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrIllegalTransition)
				assert.Nil(t, ord)
			},
		},
		{
			name: "success: Received -> Diagnosing",
			params: model.TransitionParams{
				OrderID: ordID,
				ActorID: actorID,
				Target:  model.StateDiagnosing,
			},
			setup: func(d deps) {
				d.repository.
					On("OrderByID", mock.Anything, ordID).
					Return(&model.RepairOrder{ID: ordID, State: model.StateReceived}, nil).
					Once()

				d.repository.
					On("UpdateState", mock.Anything, mock.MatchedBy(func(p model.TransitionParams) bool {
						return p.OrderID == ordID && p.Target == model.StateDiagnosing
					}), model.StateReceived).
					Return(nil).
					Once()
			},
			assert: func(t *testing.T, ord *model.RepairOrder, err error, d deps) {
				require.NoError(t, err)
				require.NotNil(t, ord)
				assert.Equal(t, model.StateDiagnosing, ord.State)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := deps{
				repository: mocks.NewMockOrderRepository(t),
				producer:   mocks.NewMockDeliveredSender(t),
			}
			if tt.setup != nil {
				tt.setup(d)
			}

			svc := newSvc(d)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			ord, err := svc.Transition(ctx, tt.params)
			tt.assert(t, ord, err, d)
		})
	}
}

func TestServiceFinalizeDiagnosis(t *testing.T) {
	t.Parallel()

	type deps struct {
		repository *mocks.MockOrderRepository
		producer   *mocks.MockDeliveredSender
	}

	newSvc := func(d deps) *service {
		return NewRepairOrderService(d.repository, d.producer, 2*time.Second, 2*time.Second)
	}

	ordID := uuid.New()
	actorID := uuid.New()

	type testCase struct {
		name   string
		params model.FinalizeDiagnosisParams
		setup  func(d deps)
		assert func(t *testing.T, ord *model.RepairOrder, err error, d deps)
	}

	tests := []testCase{
		{
			name: "empty quotation is rejected",
			params: model.FinalizeDiagnosisParams{
				OrderID: ordID,
				ActorID: actorID,
				Lines:   nil,
			},
			setup: func(d deps) {},
			assert: func(t *testing.T, ord *model.RepairOrder, err error, d deps) {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrEmptyQuotation)

				d.repository.AssertNotCalled(t, "FinalizeDiagnosis", mock.Anything, mock.Anything, mock.Anything)
			},
		},
		{
			name: "validation error: non-positive line quantity",
			params: model.FinalizeDiagnosisParams{
				OrderID: ordID,
				ActorID: actorID,
				Lines: []model.QuotationLineInput{
					{Description: "replace screen", Quantity: 0, UnitCostCents: 12_000},
				},
			},
			setup: func(d deps) {},
			assert: func(t *testing.T, ord *model.RepairOrder, err error, d deps) {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrValidation)
			},
		},
		{
			name: "success: provisional total sums every proposed line",
			params: model.FinalizeDiagnosisParams{
				OrderID: ordID,
				ActorID: actorID,
				Lines: []model.QuotationLineInput{
					{Description: "replace screen", Quantity: 1, UnitCostCents: 12_000},
					{Description: "thermal paste", Quantity: 2, UnitCostCents: 1_500},
				},
			},
			setup: func(d deps) {
				d.repository.
					On("FinalizeDiagnosis", mock.Anything, mock.Anything, int64(15_000)).
					Return(nil).
					Once()

				d.repository.
					On("OrderByID", mock.Anything, ordID).
					Return(&model.RepairOrder{
						ID:             ordID,
						State:          model.StateQuotationReady,
						CostTotalCents: 15_000,
					}, nil).
					Once()
			},
			assert: func(t *testing.T, ord *model.RepairOrder, err error, d deps) {
				require.NoError(t, err)
				require.NotNil(t, ord)
				assert.Equal(t, model.StateQuotationReady, ord.State)
				assert.Equal(t, int64(15_000), ord.CostTotalCents)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := deps{
				repository: mocks.NewMockOrderRepository(t),
				producer:   mocks.NewMockDeliveredSender(t),
			}
			if tt.setup != nil {
				tt.setup(d)
			}

			svc := newSvc(d)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			ord, err := svc.FinalizeDiagnosis(ctx, tt.params)
			tt.assert(t, ord, err, d)
		})
	}
}

func TestServiceResolveQuotation(t *testing.T) {
	t.Parallel()

	type deps struct {
		repository *mocks.MockOrderRepository
		producer   *mocks.MockDeliveredSender
	}

	newSvc := func(d deps) *service {
		return NewRepairOrderService(d.repository, d.producer, 2*time.Second, 2*time.Second)
	}

	ordID := uuid.New()
	actorID := uuid.New()

	type testCase struct {
		name   string
		params model.ResolveQuotationParams
		setup  func(d deps)
		assert func(t *testing.T, ord *model.RepairOrder, err error, d deps)
	}

	tests := []testCase{
		{
			name: "validation error: unknown decision",
			params: model.ResolveQuotationParams{
				OrderID:  ordID,
				ActorID:  actorID,
				Decision: model.QuotationDecision("maybe"),
			},
			setup: func(d deps) {},
			assert: func(t *testing.T, ord *model.RepairOrder, err error, d deps) {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrValidation)
				d.repository.AssertNotCalled(t, "ResolveQuotation", mock.Anything, mock.Anything, mock.Anything)
			},
		},
		{
			name: "conflict: quotation already resolved",
			params: model.ResolveQuotationParams{
				OrderID:  ordID,
				ActorID:  actorID,
				Decision: model.DecisionAccept,
			},
			setup: func(d deps) {
				d.repository.
					On("ResolveQuotation", mock.Anything, mock.Anything, mock.AnythingOfType("int64")).
					Return(nil, model.ErrQuotationAlreadyResolved).
					Once()
			},
			assert: func(t *testing.T, ord *model.RepairOrder, err error, d deps) {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrQuotationAlreadyResolved)
				assert.Nil(t, ord)
			},
		},
		{
			name: "reject passes the diagnostic fee as the override total",
			params: model.ResolveQuotationParams{
				OrderID:  ordID,
				ActorID:  actorID,
				Decision: model.DecisionReject,
			},
			setup: func(d deps) {
				d.repository.
					On("ResolveQuotation", mock.Anything, mock.MatchedBy(func(p model.ResolveQuotationParams) bool {
						return p.Decision == model.DecisionReject
					}), diagnosticFeeCents).
					Return(&model.RepairOrder{
						ID:             ordID,
						State:          model.StateQuotationRejected,
						QuotationState: model.QuotationRejected,
						CostTotalCents: diagnosticFeeCents,
					}, nil).
					Once()
			},
			assert: func(t *testing.T, ord *model.RepairOrder, err error, d deps) {
				require.NoError(t, err)
				require.NotNil(t, ord)
				assert.Equal(t, model.StateQuotationRejected, ord.State)
				assert.Equal(t, diagnosticFeeCents, ord.CostTotalCents)
			},
		},
		{
			name: "accept moves the order to QuotationAccepted",
			params: model.ResolveQuotationParams{
				OrderID:  ordID,
				ActorID:  actorID,
				Decision: model.DecisionAccept,
			},
			setup: func(d deps) {
				d.repository.
					On("ResolveQuotation", mock.Anything, mock.Anything, diagnosticFeeCents).
					Return(&model.RepairOrder{
						ID:             ordID,
						State:          model.StateQuotationAccepted,
						QuotationState: model.QuotationAccepted,
						CostTotalCents: 42_000,
					}, nil).
					Once()
			},
			assert: func(t *testing.T, ord *model.RepairOrder, err error, d deps) {
				require.NoError(t, err)
				require.NotNil(t, ord)
				assert.Equal(t, model.StateQuotationAccepted, ord.State)
				assert.Equal(t, int64(42_000), ord.CostTotalCents)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := deps{
				repository: mocks.NewMockOrderRepository(t),
				producer:   mocks.NewMockDeliveredSender(t),
			}
			if tt.setup != nil {
				tt.setup(d)
			}

			svc := newSvc(d)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			ord, err := svc.ResolveQuotation(ctx, tt.params)
			tt.assert(t, ord, err, d)
		})
	}
}

func TestServiceDeliver(t *testing.T) {
	t.Parallel()

	type deps struct {
		repository *mocks.MockOrderRepository
		producer   *mocks.MockDeliveredSender
	}

	newSvc := func(d deps) *service {
		return NewRepairOrderService(d.repository, d.producer, 2*time.Second, 2*time.Second)
	}

	ordID := uuid.New()
	actorID := uuid.New()
	deliveredAt := time.Now().UTC()

	type testCase struct {
		name   string
		params model.DeliverParams
		setup  func(d deps)
		assert func(t *testing.T, ord *model.RepairOrder, err error, d deps)
	}

	tests := []testCase{
		{
			name: "validation error: empty collector name",
			params: model.DeliverParams{
				OrderID:       ordID,
				ActorID:       actorID,
				CollectorName: "",
			},
			setup: func(d deps) {},
			assert: func(t *testing.T, ord *model.RepairOrder, err error, d deps) {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrValidation)
				d.repository.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
			},
		},
		{
			name: "payment gate closed: no approved payment matching the total",
			params: model.DeliverParams{
				OrderID:       ordID,
				ActorID:       actorID,
				CollectorName: "J. Ramos",
			},
			setup: func(d deps) {
				d.repository.
					On("Deliver", mock.Anything, mock.Anything).
					Return(nil, model.ErrPaymentRequired).
					Once()
			},
			assert: func(t *testing.T, ord *model.RepairOrder, err error, d deps) {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrPaymentRequired)
				assert.Nil(t, ord)

				d.producer.AssertNotCalled(t, "SendOrderDelivered", mock.Anything, mock.Anything)
			},
		},
		{
			name: "success: order handed over and event published",
			params: model.DeliverParams{
				OrderID:       ordID,
				ActorID:       actorID,
				CollectorName: "J. Ramos",
			},
			setup: func(d deps) {
				d.repository.
					On("Deliver", mock.Anything, mock.Anything).
					Return(&model.RepairOrder{
						ID:             ordID,
						Number:         "RO-20260829-0007",
						State:          model.StateDelivered,
						CostTotalCents: 42_000,
						DeliveredAt:    &deliveredAt,
					}, nil).
					Once()

				d.producer.
					On("SendOrderDelivered", mock.Anything, mock.MatchedBy(func(e model.OrderDelivered) bool {
						return e.OrderID == ordID && e.CostTotalCents == 42_000 && e.DeliveredAt.Equal(deliveredAt)
					})).
					Return(nil).
					Once()
			},
			assert: func(t *testing.T, ord *model.RepairOrder, err error, d deps) {
				require.NoError(t, err)
				require.NotNil(t, ord)
				assert.Equal(t, model.StateDelivered, ord.State)
			},
		},
		{
			name: "success even when the event publish fails",
			params: model.DeliverParams{
				OrderID:       ordID,
				ActorID:       actorID,
				CollectorName: "J. Ramos",
			},
			setup: func(d deps) {
				d.repository.
					On("Deliver", mock.Anything, mock.Anything).
					Return(&model.RepairOrder{
						ID:          ordID,
						State:       model.StateDelivered,
						DeliveredAt: &deliveredAt,
					}, nil).
					Once()

				d.producer.
					On("SendOrderDelivered", mock.Anything, mock.Anything).
					Return(errors.New("kafka is down")).
					Once()
			},
			assert: func(t *testing.T, ord *model.RepairOrder, err error, d deps) {
				require.NoError(t, err)
				require.NotNil(t, ord)
				assert.Equal(t, model.StateDelivered, ord.State)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := deps{
				repository: mocks.NewMockOrderRepository(t),
				producer:   mocks.NewMockDeliveredSender(t),
			}
			if tt.setup != nil {
				tt.setup(d)
			}

			svc := newSvc(d)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			ord, err := svc.Deliver(ctx, tt.params)
			tt.assert(t, ord, err, d)
		})
	}
}
