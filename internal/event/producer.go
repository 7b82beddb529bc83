package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/merchware/stock-service/internal/domain"
	pkgkafka "github.com/merchware/stock-service/pkg/kafka"
)

// Kafka topic constants for stock domain events.
const (
	TopicStockUpdated         = "backoffice.stock.updated"
	TopicStockLowStock        = "backoffice.stock.low_stock"
	TopicProductStatusChanged = "backoffice.product.status_changed"
)

// Aggregate type constants.
const (
	AggregateTypeStockEntry = "stock_entry"
	AggregateTypeProduct    = "product"
)

// Source identifier for events originating from the stock service.
const SourceStockService = "stock-service"

// StockUpdatedData is the payload for a stock.updated event.
type StockUpdatedData struct {
	EntryID   string  `json:"entry_id"`
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
	Quantity  int     `json:"quantity"`
	MinStock  int     `json:"min_stock"`
	Status    string  `json:"status"`
}

// StockLowStockData is the payload for a stock.low_stock event.
type StockLowStockData struct {
	EntryID   string  `json:"entry_id"`
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
	Quantity  int     `json:"quantity"`
	MinStock  int     `json:"min_stock"`
	Severity  string  `json:"severity"`
}

// ProductStatusChangedData is the payload for a product.status_changed event.
type ProductStatusChangedData struct {
	ProductID string `json:"product_id"`
	Status    string `json:"status"`
	Published bool   `json:"published"`
}

// Producer publishes stock domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the stock service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishStockUpdated publishes a stock.updated event for the given entry.
func (p *Producer) PublishStockUpdated(ctx context.Context, entry *domain.StockEntry, status string) error {
	data := StockUpdatedData{
		EntryID:   entry.ID,
		ProductID: entry.ProductID,
		VariantID: entry.VariantID,
		Quantity:  entry.Quantity,
		MinStock:  entry.MinStock,
		Status:    status,
	}

	event, err := pkgkafka.NewEvent(TopicStockUpdated, entry.ProductID, AggregateTypeStockEntry, SourceStockService, data)
	if err != nil {
		return fmt.Errorf("create stock.updated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicStockUpdated, event); err != nil {
		return fmt.Errorf("publish stock.updated event: %w", err)
	}

	return nil
}

// PublishLowStock publishes a stock.low_stock event for an entry that fell to
// or below its reorder threshold.
func (p *Producer) PublishLowStock(ctx context.Context, entry *domain.StockEntry) error {
	data := StockLowStockData{
		EntryID:   entry.ID,
		ProductID: entry.ProductID,
		VariantID: entry.VariantID,
		Quantity:  entry.Quantity,
		MinStock:  entry.MinStock,
		Severity:  entry.Severity(),
	}

	event, err := pkgkafka.NewEvent(TopicStockLowStock, entry.ProductID, AggregateTypeStockEntry, SourceStockService, data)
	if err != nil {
		return fmt.Errorf("create stock.low_stock event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicStockLowStock, event); err != nil {
		return fmt.Errorf("publish stock.low_stock event: %w", err)
	}

	return nil
}

// PublishProductStatusChanged publishes a product.status_changed event.
func (p *Producer) PublishProductStatusChanged(ctx context.Context, productID, status string, published bool) error {
	data := ProductStatusChangedData{
		ProductID: productID,
		Status:    status,
		Published: published,
	}

	event, err := pkgkafka.NewEvent(TopicProductStatusChanged, productID, AggregateTypeProduct, SourceStockService, data)
	if err != nil {
		return fmt.Errorf("create product.status_changed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicProductStatusChanged, event); err != nil {
		return fmt.Errorf("publish product.status_changed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published product.status_changed event",
		slog.String("product_id", productID),
		slog.String("status", status),
	)

	return nil
}
