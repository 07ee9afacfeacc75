package model

import (
	"time"

	"github.com/google/uuid"
)

type (
	RepairState    string
	QuotationState string
)

const (
	StateReceived          RepairState = "RECEIVED"
	StateDiagnosing        RepairState = "DIAGNOSING"
	StateQuotationReady    RepairState = "QUOTATION_READY"
	StateQuotationAccepted RepairState = "QUOTATION_ACCEPTED"
	StateQuotationRejected RepairState = "QUOTATION_REJECTED"
	StateAwaitingParts     RepairState = "AWAITING_PARTS"
	StateRepairing         RepairState = "REPAIRING"
	StateReadyForPickup    RepairState = "READY_FOR_PICKUP"
	StateDelivered         RepairState = "DELIVERED"
)

const (
	QuotationPending  QuotationState = "PENDING"
	QuotationAccepted QuotationState = "ACCEPTED"
	QuotationRejected QuotationState = "REJECTED"
)

// allowedTransitions is the single source of truth for the repair
// lifecycle. States missing a generic destination are only left through a
// dedicated operation: FinalizeDiagnosis (Diagnosing), ResolveQuotation
// (QuotationReady) and Deliver (ReadyForPickup), because those also create
// child records or check the payment gate in the same unit of work.
var allowedTransitions = map[RepairState][]RepairState{
	StateReceived:          {StateDiagnosing},
	StateDiagnosing:        {},
	StateQuotationReady:    {},
	StateQuotationAccepted: {StateAwaitingParts},
	StateQuotationRejected: {StateReadyForPickup},
	StateAwaitingParts:     {StateRepairing},
	StateRepairing:         {StateReadyForPickup},
	StateReadyForPickup:    {},
	StateDelivered:         {},
}

// CanTransitionTo reports whether target is a legal destination for a
// generic transition from the current state.
func (s RepairState) CanTransitionTo(target RepairState) bool {
	for _, dst := range allowedTransitions[s] {
		if dst == target {
			return true
		}
	}
	return false
}

func (s RepairState) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

type RepairOrder struct {
	ID uuid.UUID
	// Human-readable order number, stable once assigned.
	Number       string
	CustomerID   uuid.UUID
	TechnicianID *uuid.UUID

	DeviceType   string
	DeviceBrand  string
	DeviceModel  string
	DeviceSerial string
	Fault        string
	Condition    string

	State          RepairState
	QuotationState QuotationState
	CostTotalCents int64
	Paid           bool

	ReceivedAt    time.Time
	DeliveredAt   *time.Time
	CollectorName *string
}

type RepairTransition struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	FromState RepairState
	ToState   RepairState
	Note      string
	ActorID   uuid.UUID
	At        time.Time
}

type QuotationLine struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	Description string
	Quantity    int32
	// Unit cost of the part or labor item, in cents.
	UnitCostCents int64
	// Accepted is nil while the quotation is unresolved.
	Accepted *bool
}

func (l QuotationLine) SubtotalCents() int64 {
	return int64(l.Quantity) * l.UnitCostCents
}

type CreateOrderParams struct {
	CustomerID   uuid.UUID
	TechnicianID *uuid.UUID
	DeviceType   string
	DeviceBrand  string
	DeviceModel  string
	DeviceSerial string
	Fault        string
	Condition    string
}

type TransitionParams struct {
	OrderID uuid.UUID
	Target  RepairState
	Note    string
	ActorID uuid.UUID
}

type QuotationLineInput struct {
	Description   string
	Quantity      int32
	UnitCostCents int64
}

type FinalizeDiagnosisParams struct {
	OrderID uuid.UUID
	Lines   []QuotationLineInput
	ActorID uuid.UUID
}

type QuotationDecision string

const (
	DecisionAccept QuotationDecision = "ACCEPT"
	DecisionReject QuotationDecision = "REJECT"
)

type ResolveQuotationParams struct {
	OrderID  uuid.UUID
	Decision QuotationDecision
	ActorID  uuid.UUID
}

type DeliverParams struct {
	OrderID       uuid.UUID
	CollectorName string
	ActorID       uuid.UUID
}

type OrdersFilter struct {
	State        *RepairState
	CustomerID   *uuid.UUID
	TechnicianID *uuid.UUID
	Limit        uint64
	Offset       uint64
}
