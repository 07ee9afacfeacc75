package model

import (
	"time"

	"github.com/google/uuid"
)

type (
	PaymentMethod string
	PaymentStatus string
)

const (
	PaymentMethodUnknown  PaymentMethod = "PAYMENT_METHOD_UNKNOWN"
	PaymentMethodCard     PaymentMethod = "PAYMENT_METHOD_CARD"
	PaymentMethodCash     PaymentMethod = "PAYMENT_METHOD_CASH"
	PaymentMethodTransfer PaymentMethod = "PAYMENT_METHOD_TRANSFER"
)

const (
	PaymentApproved PaymentStatus = "APPROVED"
	PaymentRejected PaymentStatus = "REJECTED"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodCash, PaymentMethodTransfer:
		return true
	default:
		return false
	}
}

type Payment struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	AmountCents int64
	Method      PaymentMethod
	Status      PaymentStatus
	// Reference issued by the payment provider; the provider integration
	// itself is an external collaborator, this core records its outcome.
	TxRef string
	At    time.Time
}

type RecordPaymentParams struct {
	OrderID     uuid.UUID
	AmountCents int64
	Method      PaymentMethod
}

type RecordPaymentResult struct {
	PaymentID uuid.UUID
	TxRef     string
}
