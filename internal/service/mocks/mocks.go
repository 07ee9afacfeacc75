// Package mocks holds the test doubles shared by the service packages.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/you-humble/repair-shop/internal/model"
)

type constructorT interface {
	mock.TestingT
	Cleanup(func())
}

type MockOrderRepository struct{ mock.Mock }

func NewMockOrderRepository(t constructorT) *MockOrderRepository {
	m := &MockOrderRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockOrderRepository) Create(ctx context.Context, params model.CreateOrderParams) (*model.RepairOrder, error) {
	args := m.Called(ctx, params)
	ord, _ := args.Get(0).(*model.RepairOrder)
	return ord, args.Error(1)
}

func (m *MockOrderRepository) OrderByID(ctx context.Context, id uuid.UUID) (*model.RepairOrder, error) {
	args := m.Called(ctx, id)
	ord, _ := args.Get(0).(*model.RepairOrder)
	return ord, args.Error(1)
}

func (m *MockOrderRepository) List(ctx context.Context, filter model.OrdersFilter) ([]*model.RepairOrder, error) {
	args := m.Called(ctx, filter)
	orders, _ := args.Get(0).([]*model.RepairOrder)
	return orders, args.Error(1)
}

func (m *MockOrderRepository) Transitions(ctx context.Context, orderID uuid.UUID) ([]model.RepairTransition, error) {
	args := m.Called(ctx, orderID)
	history, _ := args.Get(0).([]model.RepairTransition)
	return history, args.Error(1)
}

func (m *MockOrderRepository) UpdateState(ctx context.Context, params model.TransitionParams, from model.RepairState) error {
	args := m.Called(ctx, params, from)
	return args.Error(0)
}

func (m *MockOrderRepository) FinalizeDiagnosis(ctx context.Context, params model.FinalizeDiagnosisParams, totalCents int64) error {
	args := m.Called(ctx, params, totalCents)
	return args.Error(0)
}

func (m *MockOrderRepository) ResolveQuotation(ctx context.Context, params model.ResolveQuotationParams, rejectTotalCents int64) (*model.RepairOrder, error) {
	args := m.Called(ctx, params, rejectTotalCents)
	ord, _ := args.Get(0).(*model.RepairOrder)
	return ord, args.Error(1)
}

func (m *MockOrderRepository) Deliver(ctx context.Context, params model.DeliverParams) (*model.RepairOrder, error) {
	args := m.Called(ctx, params)
	ord, _ := args.Get(0).(*model.RepairOrder)
	return ord, args.Error(1)
}

type MockDeliveredSender struct{ mock.Mock }

func NewMockDeliveredSender(t constructorT) *MockDeliveredSender {
	m := &MockDeliveredSender{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockDeliveredSender) SendOrderDelivered(ctx context.Context, event model.OrderDelivered) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockPaymentRepository struct{ mock.Mock }

func NewMockPaymentRepository(t constructorT) *MockPaymentRepository {
	m := &MockPaymentRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPaymentRepository) RecordPayment(ctx context.Context, params model.RecordPaymentParams, txRef string) (*model.Payment, error) {
	args := m.Called(ctx, params, txRef)
	pmt, _ := args.Get(0).(*model.Payment)
	return pmt, args.Error(1)
}

func (m *MockPaymentRepository) IsCleared(ctx context.Context, orderID uuid.UUID) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) Payments(ctx context.Context, orderID uuid.UUID) ([]model.Payment, error) {
	args := m.Called(ctx, orderID)
	payments, _ := args.Get(0).([]model.Payment)
	return payments, args.Error(1)
}

type MockQuotationRepository struct{ mock.Mock }

func NewMockQuotationRepository(t constructorT) *MockQuotationRepository {
	m := &MockQuotationRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockQuotationRepository) QuotationLines(ctx context.Context, orderID uuid.UUID) ([]model.QuotationLine, error) {
	args := m.Called(ctx, orderID)
	lines, _ := args.Get(0).([]model.QuotationLine)
	return lines, args.Error(1)
}

func (m *MockQuotationRepository) TotalAccepted(ctx context.Context, orderID uuid.UUID) (int64, error) {
	args := m.Called(ctx, orderID)
	total, _ := args.Get(0).(int64)
	return total, args.Error(1)
}

type MockStockRepository struct{ mock.Mock }

func NewMockStockRepository(t constructorT) *MockStockRepository {
	m := &MockStockRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockStockRepository) CreateProduct(ctx context.Context, params model.CreateProductParams) (*model.Product, error) {
	args := m.Called(ctx, params)
	prd, _ := args.Get(0).(*model.Product)
	return prd, args.Error(1)
}

func (m *MockStockRepository) ProductByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	args := m.Called(ctx, id)
	prd, _ := args.Get(0).(*model.Product)
	return prd, args.Error(1)
}

func (m *MockStockRepository) ListProducts(ctx context.Context) ([]model.Product, error) {
	args := m.Called(ctx)
	products, _ := args.Get(0).([]model.Product)
	return products, args.Error(1)
}

func (m *MockStockRepository) LowStock(ctx context.Context) ([]model.LowStockProduct, error) {
	args := m.Called(ctx)
	products, _ := args.Get(0).([]model.LowStockProduct)
	return products, args.Error(1)
}

func (m *MockStockRepository) AvailableStock(ctx context.Context, productID uuid.UUID) (int32, error) {
	args := m.Called(ctx, productID)
	available, _ := args.Get(0).(int32)
	return available, args.Error(1)
}

func (m *MockStockRepository) Batches(ctx context.Context, productID uuid.UUID) ([]model.StockBatch, error) {
	args := m.Called(ctx, productID)
	batches, _ := args.Get(0).([]model.StockBatch)
	return batches, args.Error(1)
}

func (m *MockStockRepository) ReceiveBatch(ctx context.Context, params model.ReceiveBatchParams) (*model.StockBatch, error) {
	args := m.Called(ctx, params)
	batch, _ := args.Get(0).(*model.StockBatch)
	return batch, args.Error(1)
}

func (m *MockStockRepository) ReserveAndDecrement(ctx context.Context, productID uuid.UUID, quantity int32) error {
	args := m.Called(ctx, productID, quantity)
	return args.Error(0)
}

type MockSaleRepository struct{ mock.Mock }

func NewMockSaleRepository(t constructorT) *MockSaleRepository {
	m := &MockSaleRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSaleRepository) CreateSale(ctx context.Context, params model.ProcessSaleParams) (*model.SaleTransaction, error) {
	args := m.Called(ctx, params)
	sale, _ := args.Get(0).(*model.SaleTransaction)
	return sale, args.Error(1)
}

func (m *MockSaleRepository) SaleByID(ctx context.Context, id uuid.UUID) (*model.SaleTransaction, error) {
	args := m.Called(ctx, id)
	sale, _ := args.Get(0).(*model.SaleTransaction)
	return sale, args.Error(1)
}

func (m *MockSaleRepository) List(ctx context.Context, filter model.SalesFilter) ([]*model.SaleTransaction, error) {
	args := m.Called(ctx, filter)
	sales, _ := args.Get(0).([]*model.SaleTransaction)
	return sales, args.Error(1)
}

type MockCompletedSender struct{ mock.Mock }

func NewMockCompletedSender(t constructorT) *MockCompletedSender {
	m := &MockCompletedSender{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockCompletedSender) SendSaleCompleted(ctx context.Context, event model.SaleCompleted) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
