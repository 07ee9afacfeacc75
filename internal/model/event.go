package model

import (
	"time"

	"github.com/google/uuid"
)

// Events handed off to downstream collaborators (invoicing, mail, dashboards).
// The core only publishes them; nothing here consumes them.

type OrderDelivered struct {
	EventID        uuid.UUID
	OrderID        uuid.UUID
	Number         string
	CostTotalCents int64
	DeliveredAt    time.Time
}

type SaleCompleted struct {
	EventID    uuid.UUID
	SaleID     uuid.UUID
	CustomerID uuid.UUID
	TotalCents int64
	At         time.Time
}
