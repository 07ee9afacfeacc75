package model

import (
	"time"

	"github.com/google/uuid"
)

type SaleTransaction struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	SellerID   uuid.UUID
	Items      []SaleLineItem
	TotalCents int64
	At         time.Time
}

type SaleLineItem struct {
	ProductID uuid.UUID
	Quantity  int32
	// Price captured at the time of sale; later price changes do not
	// rewrite committed transactions.
	UnitPriceCents int64
	SubtotalCents  int64
}

type SaleLine struct {
	ProductID uuid.UUID
	Quantity  int32
}

type ProcessSaleParams struct {
	CustomerID uuid.UUID
	SellerID   uuid.UUID
	Lines      []SaleLine
}

type ProcessSaleResult struct {
	SaleID     uuid.UUID
	TotalCents int64
}

type SalesFilter struct {
	CustomerID *uuid.UUID
	SellerID   *uuid.UUID
	Limit      uint64
	Offset     uint64
}
