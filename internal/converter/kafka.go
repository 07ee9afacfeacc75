package converter

import (
	"encoding/json"
	"time"

	"github.com/you-humble/repair-shop/internal/model"
)

type orderDeliveredPayload struct {
	EventID        string    `json:"event_id"`
	OrderID        string    `json:"order_id"`
	Number         string    `json:"number"`
	CostTotalCents int64     `json:"cost_total_cents"`
	DeliveredAt    time.Time `json:"delivered_at"`
}

type saleCompletedPayload struct {
	EventID    string    `json:"event_id"`
	SaleID     string    `json:"sale_id"`
	CustomerID string    `json:"customer_id"`
	TotalCents int64     `json:"total_cents"`
	At         time.Time `json:"at"`
}

type KafkaConverter struct{}

func NewKafkaConverter() *KafkaConverter { return &KafkaConverter{} }

func (c *KafkaConverter) OrderDeliveredToPayload(event model.OrderDelivered) ([]byte, error) {
	return json.Marshal(orderDeliveredPayload{
		EventID:        event.EventID.String(),
		OrderID:        event.OrderID.String(),
		Number:         event.Number,
		CostTotalCents: event.CostTotalCents,
		DeliveredAt:    event.DeliveredAt,
	})
}

func (c *KafkaConverter) SaleCompletedToPayload(event model.SaleCompleted) ([]byte, error) {
	return json.Marshal(saleCompletedPayload{
		EventID:    event.EventID.String(),
		SaleID:     event.SaleID.String(),
		CustomerID: event.CustomerID.String(),
		TotalCents: event.TotalCents,
		At:         event.At,
	})
}
