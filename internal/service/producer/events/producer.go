package evtproducer

import (
	"context"
	"fmt"

	"github.com/you-humble/repair-shop/internal/model"
	"github.com/you-humble/repair-shop/platform/kafka"
)

type Converter interface {
	OrderDeliveredToPayload(event model.OrderDelivered) ([]byte, error)
	SaleCompletedToPayload(event model.SaleCompleted) ([]byte, error)
}

type service struct {
	delivered kafka.Producer
	completed kafka.Producer
	conv      Converter
}

func NewEventProducer(delivered, completed kafka.Producer, conv Converter) *service {
	return &service{delivered: delivered, completed: completed, conv: conv}
}

func (s *service) SendOrderDelivered(ctx context.Context, event model.OrderDelivered) error {
	payload, err := s.conv.OrderDeliveredToPayload(event)
	if err != nil {
		return fmt.Errorf("converter order_delivered error: %w", err)
	}

	if err := s.delivered.Send(ctx, event.OrderID[:], payload); err != nil {
		return fmt.Errorf("producer to order.delivered topic error: %w", err)
	}

	return nil
}

func (s *service) SendSaleCompleted(ctx context.Context, event model.SaleCompleted) error {
	payload, err := s.conv.SaleCompletedToPayload(event)
	if err != nil {
		return fmt.Errorf("converter sale_completed error: %w", err)
	}

	if err := s.completed.Send(ctx, event.SaleID[:], payload); err != nil {
		return fmt.Errorf("producer to sale.completed topic error: %w", err)
	}

	return nil
}
