package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/you-humble/repair-shop/internal/model"
	"github.com/you-humble/repair-shop/internal/transport/http/response"
)

type StockService interface {
	CreateProduct(ctx context.Context, params model.CreateProductParams) (*model.Product, error)
	ProductByID(ctx context.Context, prdID uuid.UUID) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	LowStock(ctx context.Context) ([]model.LowStockProduct, error)
	AvailableStock(ctx context.Context, prdID uuid.UUID) (int32, error)
	Batches(ctx context.Context, prdID uuid.UUID) ([]model.StockBatch, error)
	ReceiveBatch(ctx context.Context, params model.ReceiveBatchParams) (*model.StockBatch, error)
	ReserveAndDecrement(ctx context.Context, prdID uuid.UUID, quantity int32) error
}

type handler struct {
	svc StockService
}

func NewStockHandler(service StockService) *handler {
	return &handler{svc: service}
}

func (h *handler) Register(r chi.Router) {
	r.Post("/products", h.createProduct)
	r.Get("/products", h.listProducts)
	// Must be registered before the {productID} routes so chi does not
	// try to parse "low-stock" as an id.
	r.Get("/products/low-stock", h.lowStock)
	r.Get("/products/{productID}", h.productByID)
	r.Get("/products/{productID}/stock", h.availableStock)
	r.Get("/products/{productID}/batches", h.batches)
	r.Post("/products/{productID}/batches", h.receiveBatch)
	r.Post("/products/{productID}/decrement", h.decrement)
}

type createProductRequest struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	MinStock   int32  `json:"min_stock"`
}

func (h *handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	prd, err := h.svc.CreateProduct(r.Context(), model.CreateProductParams{
		Name:       req.Name,
		PriceCents: req.PriceCents,
		MinStock:   req.MinStock,
	})
	if err != nil {
		writeStockError(w, err)
		return
	}

	response.Created(w, productToDTO(prd))
}

func (h *handler) productByID(w http.ResponseWriter, r *http.Request) {
	prdID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		response.BadRequest(w, "invalid product id")
		return
	}

	prd, err := h.svc.ProductByID(r.Context(), prdID)
	if err != nil {
		writeStockError(w, err)
		return
	}

	response.Success(w, productToDTO(prd))
}

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListProducts(r.Context())
	if err != nil {
		writeStockError(w, err)
		return
	}

	dtos := make([]productDTO, 0, len(products))
	for _, prd := range products {
		dtos = append(dtos, productToDTO(&prd))
	}

	response.Success(w, dtos)
}

func (h *handler) lowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.LowStock(r.Context())
	if err != nil {
		writeStockError(w, err)
		return
	}

	dtos := make([]lowStockDTO, 0, len(products))
	for _, prd := range products {
		dtos = append(dtos, lowStockDTO{
			Product:   productToDTO(&prd.Product),
			Available: prd.Available,
		})
	}

	response.Success(w, dtos)
}

func (h *handler) availableStock(w http.ResponseWriter, r *http.Request) {
	prdID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		response.BadRequest(w, "invalid product id")
		return
	}

	available, err := h.svc.AvailableStock(r.Context(), prdID)
	if err != nil {
		writeStockError(w, err)
		return
	}

	response.Success(w, map[string]int32{"available": available})
}

func (h *handler) batches(w http.ResponseWriter, r *http.Request) {
	prdID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		response.BadRequest(w, "invalid product id")
		return
	}

	batches, err := h.svc.Batches(r.Context(), prdID)
	if err != nil {
		writeStockError(w, err)
		return
	}

	dtos := make([]batchDTO, 0, len(batches))
	for _, batch := range batches {
		dtos = append(dtos, batchToDTO(batch))
	}

	response.Success(w, dtos)
}

type receiveBatchRequest struct {
	Quantity      int32  `json:"quantity"`
	UnitCostCents int64  `json:"unit_cost_cents"`
	IntakeDate    string `json:"intake_date,omitempty"`
	Note          string `json:"note,omitempty"`
}

func (h *handler) receiveBatch(w http.ResponseWriter, r *http.Request) {
	prdID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		response.BadRequest(w, "invalid product id")
		return
	}

	var req receiveBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	params := model.ReceiveBatchParams{
		ProductID:     prdID,
		Quantity:      req.Quantity,
		UnitCostCents: req.UnitCostCents,
		Note:          req.Note,
	}
	if req.IntakeDate != "" {
		intake, err := time.Parse(time.RFC3339, req.IntakeDate)
		if err != nil {
			response.BadRequest(w, "invalid intake_date")
			return
		}
		params.IntakeDate = intake
	}

	batch, err := h.svc.ReceiveBatch(r.Context(), params)
	if err != nil {
		writeStockError(w, err)
		return
	}

	response.Created(w, batchToDTO(*batch))
}

type decrementRequest struct {
	Quantity int32 `json:"quantity"`
}

func (h *handler) decrement(w http.ResponseWriter, r *http.Request) {
	prdID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		response.BadRequest(w, "invalid product id")
		return
	}

	var req decrementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := h.svc.ReserveAndDecrement(r.Context(), prdID, req.Quantity); err != nil {
		writeStockError(w, err)
		return
	}

	response.Success(w, map[string]string{"result": "ok"})
}

type productDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Price      string `json:"price"`
	MinStock   int32  `json:"min_stock"`
	CreatedAt  string `json:"created_at"`
}

type lowStockDTO struct {
	Product   productDTO `json:"product"`
	Available int32      `json:"available"`
}

type batchDTO struct {
	ID            string `json:"id"`
	ProductID     string `json:"product_id"`
	Quantity      int32  `json:"quantity"`
	UnitCostCents int64  `json:"unit_cost_cents"`
	IntakeDate    string `json:"intake_date"`
	Note          string `json:"note,omitempty"`
}

func productToDTO(prd *model.Product) productDTO {
	return productDTO{
		ID:         prd.ID.String(),
		Name:       prd.Name,
		PriceCents: prd.PriceCents,
		Price:      formatCents(prd.PriceCents),
		MinStock:   prd.MinStock,
		CreatedAt:  prd.CreatedAt.Format(time.RFC3339),
	}
}

func batchToDTO(batch model.StockBatch) batchDTO {
	return batchDTO{
		ID:            batch.ID.String(),
		ProductID:     batch.ProductID.String(),
		Quantity:      batch.Quantity,
		UnitCostCents: batch.UnitCostCents,
		IntakeDate:    batch.IntakeDate.Format(time.RFC3339),
		Note:          batch.Note,
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

func writeStockError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation),
		errors.Is(err, model.ErrInvalidQuantity):
		response.BadRequest(w, unwrapMessage(err))
	case errors.Is(err, model.ErrProductNotFound):
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
