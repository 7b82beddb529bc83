package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/merchware/stock-service/internal/domain"
	pkgkafka "github.com/merchware/stock-service/pkg/kafka"
)

// Kafka topics consumed by the stock service.
const TopicOrderStatusChanged = "backoffice.order.status_changed"

// OrderStatusDispatched is the order status that triggers stock deduction.
const OrderStatusDispatched = "dispatched"

// DispatchService defines the interface required by the event consumer.
type DispatchService interface {
	HandleOrderDispatched(ctx context.Context, orderID string, items []domain.DispatchItem) (*domain.SyncResult, error)
}

// OrderStatusChangedData is the expected payload of an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID   string                `json:"order_id"`
	OldStatus string                `json:"old_status"`
	NewStatus string                `json:"new_status"`
	Items     []domain.DispatchItem `json:"items"`
}

// Consumer processes incoming Kafka events for the stock service.
type Consumer struct {
	logger  *slog.Logger
	service DispatchService
}

// NewConsumer creates a new event consumer for the stock service.
func NewConsumer(service DispatchService, logger *slog.Logger) *Consumer {
	return &Consumer{
		service: service,
		logger:  logger,
	}
}

// HandleOrderStatusChanged deducts stock when an order transitions into the
// dispatched status. Transitions out of dispatched, or repeat dispatched to
// dispatched notifications, are ignored so stock is never double-deducted.
func (c *Consumer) HandleOrderStatusChanged(ctx context.Context, event *pkgkafka.Event) error {
	var data OrderStatusChangedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal order.status_changed data: %w", err)
	}

	if data.NewStatus != OrderStatusDispatched || data.OldStatus == OrderStatusDispatched {
		c.logger.DebugContext(ctx, "ignoring order status change",
			slog.String("order_id", data.OrderID),
			slog.String("old_status", data.OldStatus),
			slog.String("new_status", data.NewStatus),
		)
		return nil
	}

	c.logger.InfoContext(ctx, "processing order dispatch",
		slog.String("order_id", data.OrderID),
		slog.Int("items", len(data.Items)),
	)

	result, err := c.service.HandleOrderDispatched(ctx, data.OrderID, data.Items)
	if err != nil {
		return fmt.Errorf("deduct stock for order %s: %w", data.OrderID, err)
	}

	c.logger.InfoContext(ctx, "order dispatch processed",
		slog.String("order_id", data.OrderID),
		slog.Int("deducted", result.SuccessCount),
		slog.Int("failed", result.FailedCount),
	)

	return nil
}
