package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/merchware/stock-service/internal/domain"
	"github.com/merchware/stock-service/internal/service"
	"github.com/merchware/stock-service/pkg/httputil"
	"github.com/merchware/stock-service/pkg/logger"
	"github.com/merchware/stock-service/pkg/validator"
)

// ProductHandler handles HTTP requests for product endpoints.
type ProductHandler struct {
	products *service.ProductService
	logger   *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(products *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		products: products,
		logger:   logger,
	}
}

// --- Request DTOs ---

// VariantRequest is one variant in a product create or edit request.
type VariantRequest struct {
	ID       string `json:"id" validate:"omitempty,uuid"`
	Name     string `json:"name" validate:"required,max=255"`
	Stock    int    `json:"stock" validate:"gte=0"`
	MinStock int    `json:"min_stock" validate:"gte=0"`
}

// CreateProductRequest is the JSON request body for creating a product.
type CreateProductRequest struct {
	Name      string           `json:"name" validate:"required,max=255"`
	Type      string           `json:"product_type" validate:"required,oneof=physical digital"`
	Structure string           `json:"product_structure" validate:"required,oneof=simple variant"`
	BaseStock *int             `json:"base_stock" validate:"omitempty,gte=0"`
	MinStock  *int             `json:"min_stock" validate:"omitempty,gte=0"`
	Variants  []VariantRequest `json:"variants" validate:"omitempty,dive"`
}

// UpdateProductRequest is the JSON request body for editing a product.
type UpdateProductRequest struct {
	Name      *string          `json:"name" validate:"omitempty,max=255"`
	BaseStock *int             `json:"base_stock" validate:"omitempty,gte=0"`
	MinStock  *int             `json:"min_stock" validate:"omitempty,gte=0"`
	Variants  []VariantRequest `json:"variants" validate:"omitempty,dive"`
}

// PublishRequest is the JSON request body for a publish or unpublish toggle.
type PublishRequest struct {
	Published bool `json:"published"`
}

// --- Handlers ---

// Create handles POST /api/v1/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	product, err := h.products.CreateProduct(r.Context(), service.CreateProductInput{
		Name:      req.Name,
		Type:      req.Type,
		Structure: req.Structure,
		BaseStock: req.BaseStock,
		MinStock:  req.MinStock,
		Variants:  toVariantInputs(req.Variants),
		Actor:     logger.ActorFromContext(r.Context()),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: product})
}

// Get handles GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.products.GetProduct(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// List handles GET /api/v1/products?page=1&per_page=20
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 20)

	products, total, err := h.products.ListProducts(r.Context(), page, perPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(products, total, page, perPage))
}

// Update handles PUT /api/v1/products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	product, err := h.products.UpdateProduct(r.Context(), id.String(), service.UpdateProductInput{
		Name:      req.Name,
		BaseStock: req.BaseStock,
		MinStock:  req.MinStock,
		Variants:  toVariantInputs(req.Variants),
		Actor:     logger.ActorFromContext(r.Context()),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// Delete handles DELETE /api/v1/products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.products.DeleteProduct(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetPublished handles PUT /api/v1/products/{id}/publish
//
// A gate refusal is a 200 with can_publish=false, not an error status: it is
// an expected outcome the admin UI surfaces as an actionable message.
func (h *ProductHandler) SetPublished(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	decision, ok := h.decodePublishRequest(w, r, id.String(), h.products.SetPublished)
	if !ok {
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: decision})
}

// ValidatePublish handles POST /api/v1/products/{id}/publish/validate
func (h *ProductHandler) ValidatePublish(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	decision, ok := h.decodePublishRequest(w, r, id.String(), h.products.ValidatePublish)
	if !ok {
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: decision})
}

func (h *ProductHandler) decodePublishRequest(
	w http.ResponseWriter,
	r *http.Request,
	id string,
	apply func(ctx context.Context, id string, requested bool) (*domain.PublishDecision, error),
) (*domain.PublishDecision, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return nil, false
	}

	decision, err := apply(r.Context(), id, req.Published)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return nil, false
	}

	return decision, true
}

func toVariantInputs(reqs []VariantRequest) []service.VariantInput {
	if len(reqs) == 0 {
		return nil
	}
	inputs := make([]service.VariantInput, 0, len(reqs))
	for _, v := range reqs {
		inputs = append(inputs, service.VariantInput{
			ID:       v.ID,
			Name:     v.Name,
			Stock:    v.Stock,
			MinStock: v.MinStock,
		})
	}
	return inputs
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
