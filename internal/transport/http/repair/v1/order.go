package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/you-humble/repair-shop/internal/model"
	"github.com/you-humble/repair-shop/internal/transport/http/response"
)

type OrderService interface {
	Create(ctx context.Context, params model.CreateOrderParams) (*model.RepairOrder, error)
	OrderByID(ctx context.Context, ordID uuid.UUID) (*model.RepairOrder, error)
	List(ctx context.Context, filter model.OrdersFilter) ([]*model.RepairOrder, error)
	Transitions(ctx context.Context, ordID uuid.UUID) ([]model.RepairTransition, error)
	Transition(ctx context.Context, params model.TransitionParams) (*model.RepairOrder, error)
	FinalizeDiagnosis(ctx context.Context, params model.FinalizeDiagnosisParams) (*model.RepairOrder, error)
	ResolveQuotation(ctx context.Context, params model.ResolveQuotationParams) (*model.RepairOrder, error)
	Deliver(ctx context.Context, params model.DeliverParams) (*model.RepairOrder, error)
}

type QuotationService interface {
	Lines(ctx context.Context, orderID uuid.UUID) ([]model.QuotationLine, error)
	TotalAccepted(ctx context.Context, orderID uuid.UUID) (int64, error)
}

type orderHandler struct {
	svc   OrderService
	quots QuotationService
}

func NewOrderHandler(service OrderService, quotations QuotationService) *orderHandler {
	return &orderHandler{svc: service, quots: quotations}
}

func (h *orderHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderID}", h.orderByID)
	r.Get("/orders/{orderID}/transitions", h.transitions)
	r.Post("/orders/{orderID}/transition", h.transition)
	r.Post("/orders/{orderID}/diagnosis", h.finalizeDiagnosis)
	r.Get("/orders/{orderID}/quotation", h.quotation)
	r.Post("/orders/{orderID}/quotation", h.resolveQuotation)
	r.Post("/orders/{orderID}/deliver", h.deliver)
}

type createOrderRequest struct {
	CustomerID   string  `json:"customer_id"`
	TechnicianID *string `json:"technician_id,omitempty"`
	DeviceType   string  `json:"device_type"`
	DeviceBrand  string  `json:"device_brand"`
	DeviceModel  string  `json:"device_model"`
	DeviceSerial string  `json:"device_serial"`
	Fault        string  `json:"fault"`
	Condition    string  `json:"condition"`
}

func (h *orderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		response.BadRequest(w, "invalid customer_id")
		return
	}

	params := model.CreateOrderParams{
		CustomerID:   customerID,
		DeviceType:   req.DeviceType,
		DeviceBrand:  req.DeviceBrand,
		DeviceModel:  req.DeviceModel,
		DeviceSerial: req.DeviceSerial,
		Fault:        req.Fault,
		Condition:    req.Condition,
	}
	if req.TechnicianID != nil {
		techID, err := uuid.Parse(*req.TechnicianID)
		if err != nil {
			response.BadRequest(w, "invalid technician_id")
			return
		}
		params.TechnicianID = &techID
	}

	ord, err := h.svc.Create(r.Context(), params)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	response.Created(w, orderToDTO(ord))
}

func (h *orderHandler) orderByID(w http.ResponseWriter, r *http.Request) {
	ordID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	ord, err := h.svc.OrderByID(r.Context(), ordID)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	response.Success(w, orderToDTO(ord))
}

func (h *orderHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := ordersFilterFromQuery(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	orders, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	dtos := make([]orderDTO, 0, len(orders))
	for _, ord := range orders {
		dtos = append(dtos, orderToDTO(ord))
	}

	response.Success(w, dtos)
}

func (h *orderHandler) transitions(w http.ResponseWriter, r *http.Request) {
	ordID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	history, err := h.svc.Transitions(r.Context(), ordID)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	dtos := make([]transitionDTO, 0, len(history))
	for _, tr := range history {
		dtos = append(dtos, transitionToDTO(tr))
	}

	response.Success(w, dtos)
}

type transitionRequest struct {
	Target  string `json:"target"`
	Note    string `json:"note,omitempty"`
	ActorID string `json:"actor_id"`
}

func (h *orderHandler) transition(w http.ResponseWriter, r *http.Request) {
	ordID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	actorID, err := uuid.Parse(req.ActorID)
	if err != nil {
		response.BadRequest(w, "invalid actor_id")
		return
	}

	ord, err := h.svc.Transition(r.Context(), model.TransitionParams{
		OrderID: ordID,
		Target:  model.RepairState(req.Target),
		Note:    req.Note,
		ActorID: actorID,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	response.Success(w, orderToDTO(ord))
}

type quotationLineRequest struct {
	Description   string `json:"description"`
	Quantity      int32  `json:"quantity"`
	UnitCostCents int64  `json:"unit_cost_cents"`
}

type finalizeDiagnosisRequest struct {
	ActorID string                 `json:"actor_id"`
	Lines   []quotationLineRequest `json:"lines"`
}

func (h *orderHandler) finalizeDiagnosis(w http.ResponseWriter, r *http.Request) {
	ordID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	var req finalizeDiagnosisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	actorID, err := uuid.Parse(req.ActorID)
	if err != nil {
		response.BadRequest(w, "invalid actor_id")
		return
	}

	lines := make([]model.QuotationLineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, model.QuotationLineInput{
			Description:   line.Description,
			Quantity:      line.Quantity,
			UnitCostCents: line.UnitCostCents,
		})
	}

	ord, err := h.svc.FinalizeDiagnosis(r.Context(), model.FinalizeDiagnosisParams{
		OrderID: ordID,
		ActorID: actorID,
		Lines:   lines,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	response.Success(w, orderToDTO(ord))
}

func (h *orderHandler) quotation(w http.ResponseWriter, r *http.Request) {
	ordID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	lines, err := h.quots.Lines(r.Context(), ordID)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	total, err := h.quots.TotalAccepted(r.Context(), ordID)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	dtos := make([]quotationLineDTO, 0, len(lines))
	for _, line := range lines {
		dtos = append(dtos, quotationLineToDTO(line))
	}

	response.Success(w, quotationDTO{
		Lines:              dtos,
		TotalAcceptedCents: total,
		TotalAccepted:      formatCents(total),
	})
}

type resolveQuotationRequest struct {
	Decision string `json:"decision"`
	ActorID  string `json:"actor_id"`
}

func (h *orderHandler) resolveQuotation(w http.ResponseWriter, r *http.Request) {
	ordID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	var req resolveQuotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	actorID, err := uuid.Parse(req.ActorID)
	if err != nil {
		response.BadRequest(w, "invalid actor_id")
		return
	}

	ord, err := h.svc.ResolveQuotation(r.Context(), model.ResolveQuotationParams{
		OrderID:  ordID,
		Decision: model.QuotationDecision(req.Decision),
		ActorID:  actorID,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	response.Success(w, orderToDTO(ord))
}

type deliverRequest struct {
	CollectorName string `json:"collector_name"`
	ActorID       string `json:"actor_id"`
}

func (h *orderHandler) deliver(w http.ResponseWriter, r *http.Request) {
	ordID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	var req deliverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	actorID, err := uuid.Parse(req.ActorID)
	if err != nil {
		response.BadRequest(w, "invalid actor_id")
		return
	}

	ord, err := h.svc.Deliver(r.Context(), model.DeliverParams{
		OrderID:       ordID,
		CollectorName: req.CollectorName,
		ActorID:       actorID,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	response.Success(w, orderToDTO(ord))
}

func ordersFilterFromQuery(r *http.Request) (model.OrdersFilter, error) {
	var filter model.OrdersFilter

	if raw := r.URL.Query().Get("state"); raw != "" {
		state := model.RepairState(raw)
		if !state.Valid() {
			return filter, errors.New("invalid state filter")
		}
		filter.State = &state
	}
	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.New("invalid customer_id filter")
		}
		filter.CustomerID = &id
	}
	if raw := r.URL.Query().Get("technician_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.New("invalid technician_id filter")
		}
		filter.TechnicianID = &id
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return filter, errors.New("invalid limit")
		}
		filter.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return filter, errors.New("invalid offset")
		}
		filter.Offset = offset
	}

	return filter, nil
}

type orderDTO struct {
	ID             string  `json:"id"`
	Number         string  `json:"number"`
	CustomerID     string  `json:"customer_id"`
	TechnicianID   *string `json:"technician_id,omitempty"`
	DeviceType     string  `json:"device_type"`
	DeviceBrand    string  `json:"device_brand"`
	DeviceModel    string  `json:"device_model"`
	DeviceSerial   string  `json:"device_serial"`
	Fault          string  `json:"fault"`
	Condition      string  `json:"condition"`
	State          string  `json:"state"`
	QuotationState string  `json:"quotation_state"`
	CostTotalCents int64   `json:"cost_total_cents"`
	CostTotal      string  `json:"cost_total"`
	Paid           bool    `json:"paid"`
	ReceivedAt     string  `json:"received_at"`
	DeliveredAt    *string `json:"delivered_at,omitempty"`
	CollectorName  *string `json:"collector_name,omitempty"`
}

func orderToDTO(ord *model.RepairOrder) orderDTO {
	dto := orderDTO{
		ID:             ord.ID.String(),
		Number:         ord.Number,
		CustomerID:     ord.CustomerID.String(),
		DeviceType:     ord.DeviceType,
		DeviceBrand:    ord.DeviceBrand,
		DeviceModel:    ord.DeviceModel,
		DeviceSerial:   ord.DeviceSerial,
		Fault:          ord.Fault,
		Condition:      ord.Condition,
		State:          string(ord.State),
		QuotationState: string(ord.QuotationState),
		CostTotalCents: ord.CostTotalCents,
		CostTotal:      formatCents(ord.CostTotalCents),
		Paid:           ord.Paid,
		ReceivedAt:     ord.ReceivedAt.Format(time.RFC3339),
		CollectorName:  ord.CollectorName,
	}
	if ord.TechnicianID != nil {
		techID := ord.TechnicianID.String()
		dto.TechnicianID = &techID
	}
	if ord.DeliveredAt != nil {
		deliveredAt := ord.DeliveredAt.Format(time.RFC3339)
		dto.DeliveredAt = &deliveredAt
	}

	return dto
}

type transitionDTO struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
	Note      string `json:"note,omitempty"`
	ActorID   string `json:"actor_id"`
	At        string `json:"at"`
}

func transitionToDTO(tr model.RepairTransition) transitionDTO {
	return transitionDTO{
		ID:        tr.ID.String(),
		OrderID:   tr.OrderID.String(),
		FromState: string(tr.FromState),
		ToState:   string(tr.ToState),
		Note:      tr.Note,
		ActorID:   tr.ActorID.String(),
		At:        tr.At.Format(time.RFC3339),
	}
}

type quotationLineDTO struct {
	ID            string `json:"id"`
	Description   string `json:"description"`
	Quantity      int32  `json:"quantity"`
	UnitCostCents int64  `json:"unit_cost_cents"`
	SubtotalCents int64  `json:"subtotal_cents"`
	Accepted      *bool  `json:"accepted,omitempty"`
}

type quotationDTO struct {
	Lines              []quotationLineDTO `json:"lines"`
	TotalAcceptedCents int64              `json:"total_accepted_cents"`
	TotalAccepted      string             `json:"total_accepted"`
}

func quotationLineToDTO(line model.QuotationLine) quotationLineDTO {
	return quotationLineDTO{
		ID:            line.ID.String(),
		Description:   line.Description,
		Quantity:      line.Quantity,
		UnitCostCents: line.UnitCostCents,
		SubtotalCents: line.SubtotalCents(),
		Accepted:      line.Accepted,
	}
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation),
		errors.Is(err, model.ErrEmptyQuotation):
		response.BadRequest(w, unwrapMessage(err))
	case errors.Is(err, model.ErrOrderNotFound):
		response.NotFound(w, unwrapMessage(err))
	case errors.Is(err, model.ErrIllegalTransition),
		errors.Is(err, model.ErrQuotationAlreadyResolved),
		errors.Is(err, model.ErrPaymentRequired):
		response.Conflict(w, unwrapMessage(err))
	default:
		response.Internal(w)
	}
}

// unwrapMessage strips the op prefix chain so clients see only the
// sentinel text.
func unwrapMessage(err error) string {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err.Error()
		}
		err = unwrapped
	}
}
