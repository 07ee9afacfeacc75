package model

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID   uuid.UUID
	Name string
	// Threshold below which the product shows up in low-stock reports.
	MinStock   int32
	PriceCents int64
	CreatedAt  time.Time
}

type StockBatch struct {
	ID            uuid.UUID
	ProductID     uuid.UUID
	Quantity      int32
	UnitCostCents int64
	IntakeDate    time.Time
	Note          string
}

type CreateProductParams struct {
	Name       string
	PriceCents int64
	MinStock   int32
}

type ReceiveBatchParams struct {
	ProductID     uuid.UUID
	Quantity      int32
	UnitCostCents int64
	IntakeDate    time.Time
	Note          string
}

// LowStockProduct pairs a product with its current availability for
// threshold reporting.
type LowStockProduct struct {
	Product   Product
	Available int32
}
