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

type SaleService interface {
	ProcessSale(ctx context.Context, params model.ProcessSaleParams) (*model.ProcessSaleResult, error)
	SaleByID(ctx context.Context, saleID uuid.UUID) (*model.SaleTransaction, error)
	List(ctx context.Context, filter model.SalesFilter) ([]*model.SaleTransaction, error)
}

type handler struct {
	svc SaleService
}

func NewSaleHandler(service SaleService) *handler {
	return &handler{svc: service}
}

func (h *handler) Register(r chi.Router) {
	r.Post("/sales", h.processSale)
	r.Get("/sales", h.listSales)
	r.Get("/sales/{saleID}", h.saleByID)
}

type saleLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type processSaleRequest struct {
	CustomerID string            `json:"customer_id"`
	SellerID   string            `json:"seller_id"`
	Lines      []saleLineRequest `json:"lines"`
}

func (h *handler) processSale(w http.ResponseWriter, r *http.Request) {
	var req processSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		response.BadRequest(w, "invalid customer_id")
		return
	}
	sellerID, err := uuid.Parse(req.SellerID)
	if err != nil {
		response.BadRequest(w, "invalid seller_id")
		return
	}

	lines := make([]model.SaleLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		prdID, err := uuid.Parse(line.ProductID)
		if err != nil {
			response.BadRequest(w, "invalid product_id in line")
			return
		}
		lines = append(lines, model.SaleLine{ProductID: prdID, Quantity: line.Quantity})
	}

	res, err := h.svc.ProcessSale(r.Context(), model.ProcessSaleParams{
		CustomerID: customerID,
		SellerID:   sellerID,
		Lines:      lines,
	})
	if err != nil {
		writeSaleError(w, err)
		return
	}

	response.Created(w, processSaleDTO{
		SaleID:     res.SaleID.String(),
		TotalCents: res.TotalCents,
		Total:      formatCents(res.TotalCents),
	})
}

func (h *handler) saleByID(w http.ResponseWriter, r *http.Request) {
	saleID, err := uuid.Parse(chi.URLParam(r, "saleID"))
	if err != nil {
		response.BadRequest(w, "invalid sale id")
		return
	}

	sale, err := h.svc.SaleByID(r.Context(), saleID)
	if err != nil {
		writeSaleError(w, err)
		return
	}

	response.Success(w, saleToDTO(sale))
}

func (h *handler) listSales(w http.ResponseWriter, r *http.Request) {
	filter, err := salesFilterFromQuery(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	sales, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeSaleError(w, err)
		return
	}

	dtos := make([]saleDTO, 0, len(sales))
	for _, sale := range sales {
		dtos = append(dtos, saleToDTO(sale))
	}

	response.Success(w, dtos)
}

func salesFilterFromQuery(r *http.Request) (model.SalesFilter, error) {
	var filter model.SalesFilter

	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.New("invalid customer_id filter")
		}
		filter.CustomerID = &id
	}
	if raw := r.URL.Query().Get("seller_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.New("invalid seller_id filter")
		}
		filter.SellerID = &id
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

type processSaleDTO struct {
	SaleID     string `json:"sale_id"`
	TotalCents int64  `json:"total_cents"`
	Total      string `json:"total"`
}

type saleItemDTO struct {
	ProductID      string `json:"product_id"`
	Quantity       int32  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type saleDTO struct {
	ID         string        `json:"id"`
	CustomerID string        `json:"customer_id"`
	SellerID   string        `json:"seller_id"`
	Items      []saleItemDTO `json:"items"`
	TotalCents int64         `json:"total_cents"`
	Total      string        `json:"total"`
	At         string        `json:"at"`
}

func saleToDTO(sale *model.SaleTransaction) saleDTO {
	items := make([]saleItemDTO, 0, len(sale.Items))
	for _, item := range sale.Items {
		items = append(items, saleItemDTO{
			ProductID:      item.ProductID.String(),
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			SubtotalCents:  item.SubtotalCents,
		})
	}

	return saleDTO{
		ID:         sale.ID.String(),
		CustomerID: sale.CustomerID.String(),
		SellerID:   sale.SellerID.String(),
		Items:      items,
		TotalCents: sale.TotalCents,
		Total:      formatCents(sale.TotalCents),
		At:         sale.At.Format(time.RFC3339),
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

func writeSaleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation),
		errors.Is(err, model.ErrEmptyCart),
		errors.Is(err, model.ErrInvalidLine),
		errors.Is(err, model.ErrInvalidQuantity):
		response.BadRequest(w, unwrapMessage(err))
	case errors.Is(err, model.ErrSaleNotFound),
		errors.Is(err, model.ErrProductNotFound):
		response.NotFound(w, unwrapMessage(err))
	case errors.Is(err, model.ErrInsufficientStock):
		response.Unprocessable(w, unwrapMessage(err))
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
