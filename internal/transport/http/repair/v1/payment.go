package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/you-humble/repair-shop/internal/model"
	"github.com/you-humble/repair-shop/internal/transport/http/response"
)

type PaymentService interface {
	RecordPayment(ctx context.Context, params model.RecordPaymentParams) (*model.RecordPaymentResult, error)
	IsCleared(ctx context.Context, orderID uuid.UUID) (bool, error)
	Payments(ctx context.Context, orderID uuid.UUID) ([]model.Payment, error)
}

type paymentHandler struct {
	svc PaymentService
}

func NewPaymentHandler(service PaymentService) *paymentHandler {
	return &paymentHandler{svc: service}
}

func (h *paymentHandler) Register(r chi.Router) {
	r.Post("/orders/{orderID}/payments", h.recordPayment)
	r.Get("/orders/{orderID}/payments", h.payments)
	r.Get("/orders/{orderID}/payments/cleared", h.isCleared)
}

type recordPaymentRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
}

func (h *paymentHandler) recordPayment(w http.ResponseWriter, r *http.Request) {
	ordID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	res, err := h.svc.RecordPayment(r.Context(), model.RecordPaymentParams{
		OrderID:     ordID,
		AmountCents: req.AmountCents,
		Method:      model.PaymentMethod(req.Method),
	})
	if err != nil {
		writePaymentError(w, err)
		return
	}

	response.Created(w, recordPaymentDTO{
		PaymentID: res.PaymentID.String(),
		TxRef:     res.TxRef,
	})
}

func (h *paymentHandler) payments(w http.ResponseWriter, r *http.Request) {
	ordID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	payments, err := h.svc.Payments(r.Context(), ordID)
	if err != nil {
		writePaymentError(w, err)
		return
	}

	dtos := make([]paymentDTO, 0, len(payments))
	for _, pmt := range payments {
		dtos = append(dtos, paymentToDTO(pmt))
	}

	response.Success(w, dtos)
}

func (h *paymentHandler) isCleared(w http.ResponseWriter, r *http.Request) {
	ordID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	cleared, err := h.svc.IsCleared(r.Context(), ordID)
	if err != nil {
		writePaymentError(w, err)
		return
	}

	response.Success(w, map[string]bool{"cleared": cleared})
}

type recordPaymentDTO struct {
	PaymentID string `json:"payment_id"`
	TxRef     string `json:"tx_ref"`
}

type paymentDTO struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
	Method      string `json:"method"`
	Status      string `json:"status"`
	TxRef       string `json:"tx_ref"`
	At          string `json:"at"`
}

func paymentToDTO(pmt model.Payment) paymentDTO {
	return paymentDTO{
		ID:          pmt.ID.String(),
		OrderID:     pmt.OrderID.String(),
		AmountCents: pmt.AmountCents,
		Amount:      formatCents(pmt.AmountCents),
		Method:      string(pmt.Method),
		Status:      string(pmt.Status),
		TxRef:       pmt.TxRef,
		At:          pmt.At.Format(time.RFC3339),
	}
}

func writePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		response.BadRequest(w, unwrapMessage(err))
	case errors.Is(err, model.ErrOrderNotFound):
		response.NotFound(w, unwrapMessage(err))
	case errors.Is(err, model.ErrAmountMismatch):
		response.Conflict(w, unwrapMessage(err))
	default:
		response.Internal(w)
	}
}
