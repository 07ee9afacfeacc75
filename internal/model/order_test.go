package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepairStateCanTransitionTo(t *testing.T) {
	t.Parallel()

	all := []RepairState{
		StateReceived,
		StateDiagnosing,
		StateQuotationReady,
		StateQuotationAccepted,
		StateQuotationRejected,
		StateAwaitingParts,
		StateRepairing,
		StateReadyForPickup,
		StateDelivered,
	}

	// ReadyForPickup -> Delivered is deliberately absent: delivery only
	// happens through the payment-gated Deliver operation.
	legal := map[RepairState]RepairState{
		StateReceived:          StateDiagnosing,
		StateQuotationAccepted: StateAwaitingParts,
		StateQuotationRejected: StateReadyForPickup,
		StateAwaitingParts:     StateRepairing,
		StateRepairing:         StateReadyForPickup,
	}

	for _, from := range all {
		for _, to := range all {
			want := legal[from] == to && from != ""
			assert.Equalf(t, want, from.CanTransitionTo(to),
				"%s -> %s", from, to)
		}
	}
}

func TestRepairStateValid(t *testing.T) {
	t.Parallel()

	assert.True(t, StateReceived.Valid())
	assert.True(t, StateDelivered.Valid())
	assert.False(t, RepairState("SHIPPED").Valid())
	assert.False(t, RepairState("").Valid())
}

func TestQuotationLineSubtotal(t *testing.T) {
	t.Parallel()

	line := QuotationLine{Quantity: 3, UnitCostCents: 1550}
	assert.Equal(t, int64(4650), line.SubtotalCents())
}
