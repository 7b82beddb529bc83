package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/merchware/stock-service/internal/service"
	"github.com/merchware/stock-service/pkg/httputil"
	"github.com/merchware/stock-service/pkg/logger"
	"github.com/merchware/stock-service/pkg/validator"
)

// StockHandler handles HTTP requests for stock ledger endpoints.
type StockHandler struct {
	stock  *service.StockService
	sync   *service.SyncService
	logger *slog.Logger
}

// NewStockHandler creates a new stock HTTP handler.
func NewStockHandler(stock *service.StockService, sync *service.SyncService, logger *slog.Logger) *StockHandler {
	return &StockHandler{
		stock:  stock,
		sync:   sync,
		logger: logger,
	}
}

// --- Request DTOs ---

// CreateStockEntryRequest is the JSON request body for creating a stock entry.
type CreateStockEntryRequest struct {
	ProductID string  `json:"product_id" validate:"required,uuid"`
	VariantID *string `json:"variant_id" validate:"omitempty,uuid"`
	Quantity  int     `json:"quantity" validate:"gte=0"`
	MinStock  int     `json:"min_stock" validate:"gte=0"`
	Notes     string  `json:"notes" validate:"omitempty,max=1000"`
}

// UpdateStockEntryRequest is the JSON request body for editing a stock entry.
type UpdateStockEntryRequest struct {
	Quantity *int    `json:"quantity" validate:"omitempty,gte=0"`
	MinStock *int    `json:"min_stock" validate:"omitempty,gte=0"`
	Notes    *string `json:"notes" validate:"omitempty,max=1000"`
}

// BulkUpdateRequest is the JSON request body for a bulk stock edit.
type BulkUpdateRequest struct {
	Items []BulkUpdateItemRequest `json:"items" validate:"required,min=1,dive"`
}

// BulkUpdateItemRequest is one element of a bulk stock edit.
type BulkUpdateItemRequest struct {
	ID       string  `json:"id" validate:"required,uuid"`
	Quantity *int    `json:"quantity" validate:"omitempty,gte=0"`
	MinStock *int    `json:"min_stock" validate:"omitempty,gte=0"`
	Notes    *string `json:"notes" validate:"omitempty,max=1000"`
}

// BulkSyncRequest is the JSON request body for a manual reconciliation run.
type BulkSyncRequest struct {
	ProductID *string `json:"product_id" validate:"omitempty,uuid"`
	VariantID *string `json:"variant_id" validate:"omitempty,uuid"`
}

// --- Handlers ---

// CreateEntry handles POST /api/v1/stock
func (h *StockHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateStockEntryRequest
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

	entry, err := h.stock.CreateEntry(r.Context(), service.CreateStockEntryInput{
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		MinStock:  req.MinStock,
		Notes:     req.Notes,
		Actor:     logger.ActorFromContext(r.Context()),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: entry})
}

// GetEntry handles GET /api/v1/stock/{id}
func (h *StockHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	entry, err := h.stock.GetEntry(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: entry})
}

// ListEntries handles GET /api/v1/stock?product_id=&variant_id=
func (h *StockHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	productID, variantID, ok := parseEntryFilter(w, r)
	if !ok {
		return
	}

	entries, err := h.stock.ListEntries(r.Context(), productID, variantID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: entries})
}

// UpdateEntry handles PUT /api/v1/stock/{id}
func (h *StockHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateStockEntryRequest
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

	entry, err := h.stock.UpdateEntry(r.Context(), id.String(), service.UpdateStockEntryInput{
		Quantity: req.Quantity,
		MinStock: req.MinStock,
		Notes:    req.Notes,
		Actor:    logger.ActorFromContext(r.Context()),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: entry})
}

// DeleteEntry handles DELETE /api/v1/stock/{id}
func (h *StockHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.stock.DeleteEntry(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BulkUpdate handles POST /api/v1/stock/bulk-update
func (h *StockHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 4<<20)

	var req BulkUpdateRequest
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

	items := make([]service.BulkUpdateItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.BulkUpdateItem{
			ID:       item.ID,
			Quantity: item.Quantity,
			MinStock: item.MinStock,
			Notes:    item.Notes,
		})
	}

	result, err := h.stock.BulkUpdate(r.Context(), items)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// BulkSync handles POST /api/v1/stock/sync
func (h *StockHandler) BulkSync(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req BulkSyncRequest
	if r.ContentLength > 0 {
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
	}

	result, err := h.sync.BulkSync(r.Context(), req.ProductID, req.VariantID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// ListLowStock handles GET /api/v1/stock/low-stock?threshold=1.0
func (h *StockHandler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	multiplier := 1.0
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "threshold must be a positive number"},
			})
			return
		}
		multiplier = parsed
	}

	entries, err := h.stock.ListLowStock(r.Context(), multiplier)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: entries})
}

// parseEntryFilter reads optional product_id and variant_id query parameters,
// validating both as UUIDs.
func parseEntryFilter(w http.ResponseWriter, r *http.Request) (productID, variantID *string, ok bool) {
	if raw := r.URL.Query().Get("product_id"); raw != "" {
		id, valid := httputil.ParseUUID(w, raw)
		if !valid {
			return nil, nil, false
		}
		s := id.String()
		productID = &s
	}
	if raw := r.URL.Query().Get("variant_id"); raw != "" {
		id, valid := httputil.ParseUUID(w, raw)
		if !valid {
			return nil, nil, false
		}
		s := id.String()
		variantID = &s
	}
	return productID, variantID, true
}
