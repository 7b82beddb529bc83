package http

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/merchware/stock-service/internal/service"
	"github.com/merchware/stock-service/pkg/httputil"
)

// ExportHandler serializes the stock ledger as CSV or JSON downloads.
type ExportHandler struct {
	stock  *service.StockService
	logger *slog.Logger
}

// NewExportHandler creates a new export HTTP handler.
func NewExportHandler(stock *service.StockService, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		stock:  stock,
		logger: logger,
	}
}

// ExportCSV handles GET /api/v1/stock/export/csv?product_id=
func (h *ExportHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.load(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="stock-export.csv"`)

	cw := csv.NewWriter(w)
	header := []string{"entry_id", "product_id", "product_name", "variant_id", "variant_name", "quantity", "min_stock", "status", "notes"}
	if err := cw.Write(header); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write csv header", slog.String("error", err.Error()))
		return
	}

	for _, row := range rows {
		record := []string{
			row.EntryID,
			row.ProductID,
			row.ProductName,
			row.VariantID,
			row.VariantName,
			strconv.Itoa(row.Quantity),
			strconv.Itoa(row.MinStock),
			row.Status,
			row.Notes,
		}
		if err := cw.Write(record); err != nil {
			h.logger.ErrorContext(r.Context(), "failed to write csv record",
				slog.String("entry_id", row.EntryID),
				slog.String("error", err.Error()),
			)
			return
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to flush csv", slog.String("error", err.Error()))
	}
}

// ExportJSON handles GET /api/v1/stock/export/json?product_id=
func (h *ExportHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.load(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="stock-export.json"`)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: rows})
}

func (h *ExportHandler) load(w http.ResponseWriter, r *http.Request) ([]service.ExportRow, bool) {
	var productID *string
	if raw := r.URL.Query().Get("product_id"); raw != "" {
		id, valid := httputil.ParseUUID(w, raw)
		if !valid {
			return nil, false
		}
		s := id.String()
		productID = &s
	}

	rows, err := h.stock.Export(r.Context(), productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return nil, false
	}

	return rows, true
}
