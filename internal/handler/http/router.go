package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/merchware/stock-service/internal/service"
	"github.com/merchware/stock-service/pkg/health"
	"github.com/merchware/stock-service/pkg/middleware"
)

// RouterDeps bundles the services the router exposes over HTTP.
type RouterDeps struct {
	Stock    *service.StockService
	Sync     *service.SyncService
	Products *service.ProductService
	Health   *health.Handler
	CORS     middleware.CORSConfig
}

// NewRouter creates a chi router with all stock service routes registered.
func NewRouter(deps RouterDeps, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware. Order matters: tracing opens the span, request
	// logging sets the correlation id, and the request logger builds the
	// enriched context logger from both.
	r.Use(middleware.CORS(deps.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing("stock"))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("stock"))

	// Health check endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	stockHandler := NewStockHandler(deps.Stock, deps.Sync, logger)
	productHandler := NewProductHandler(deps.Products, logger)
	exportHandler := NewExportHandler(deps.Stock, logger)

	r.Route("/api/v1/stock", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", stockHandler.CreateEntry)
		r.Get("/", stockHandler.ListEntries)

		r.Post("/bulk-update", stockHandler.BulkUpdate)
		r.Post("/sync", stockHandler.BulkSync)
		r.Get("/low-stock", stockHandler.ListLowStock)

		r.Get("/export/csv", exportHandler.ExportCSV)
		r.Get("/export/json", exportHandler.ExportJSON)

		r.Get("/{id}", stockHandler.GetEntry)
		r.Put("/{id}", stockHandler.UpdateEntry)
		r.Delete("/{id}", stockHandler.DeleteEntry)
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", productHandler.Create)
		r.Get("/", productHandler.List)
		r.Get("/{id}", productHandler.Get)
		r.Put("/{id}", productHandler.Update)
		r.Delete("/{id}", productHandler.Delete)

		r.Put("/{id}/publish", productHandler.SetPublished)
		r.Post("/{id}/publish/validate", productHandler.ValidatePublish)
	})

	return r
}
