package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/merchware/stock-service/internal/domain"
	"github.com/merchware/stock-service/internal/repository"
	apperrors "github.com/merchware/stock-service/pkg/errors"
)

// dispatchActor is recorded as the last updater on entries written by dispatch.
const dispatchActor = "order-dispatch"

// DispatchService deducts stock when an order is dispatched. Each line item
// is deducted independently: one failed item never blocks the rest, and the
// resulting quantity is clamped at zero.
type DispatchService struct {
	entryRepo   repository.StockEntryRepository
	productRepo repository.ProductRepository
	sync        *SyncService
	logger      *slog.Logger
}

// NewDispatchService creates a new dispatch service.
func NewDispatchService(
	entryRepo repository.StockEntryRepository,
	productRepo repository.ProductRepository,
	sync *SyncService,
	logger *slog.Logger,
) *DispatchService {
	return &DispatchService{
		entryRepo:   entryRepo,
		productRepo: productRepo,
		sync:        sync,
		logger:      logger,
	}
}

// HandleOrderDispatched deducts the ordered quantity of every line item from
// the owning product or variant, mirrors the new quantity into the stock
// ledger with a note referencing the order, and recomputes variant product
// aggregates. The deduction at the storage layer is atomic, so concurrent
// dispatches against the same item cannot lose an update.
func (s *DispatchService) HandleOrderDispatched(ctx context.Context, orderID string, items []domain.DispatchItem) (*domain.SyncResult, error) {
	if orderID == "" {
		return nil, apperrors.InvalidInput("order_id is required")
	}

	result := &domain.SyncResult{}
	for _, item := range items {
		if err := s.deductItem(ctx, orderID, item); err != nil {
			result.FailedCount++
			result.Messages = append(result.Messages, fmt.Sprintf("product %s: %v", item.ProductID, err))
			s.logger.ErrorContext(ctx, "dispatch deduction failed",
				slog.String("order_id", orderID),
				slog.String("product_id", item.ProductID),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.SuccessCount++
	}

	s.logger.InfoContext(ctx, "order dispatch deduction completed",
		slog.String("order_id", orderID),
		slog.Int("deducted", result.SuccessCount),
		slog.Int("failed", result.FailedCount),
	)

	return result, nil
}

func (s *DispatchService) deductItem(ctx context.Context, orderID string, item domain.DispatchItem) error {
	if item.Quantity <= 0 {
		return apperrors.InvalidInput("ordered quantity must be positive")
	}

	product, err := s.productRepo.GetByID(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("product", item.ProductID)
		}
		return fmt.Errorf("load product: %w", err)
	}

	// Digital products track no stock; dispatching one is a no-op.
	if product.IsDigital() {
		return nil
	}

	var newQuantity, minStock int
	if item.VariantID != nil {
		if product.VariantByID(*item.VariantID) == nil {
			return apperrors.NotFound("variant", *item.VariantID)
		}
		newQuantity, minStock, err = s.productRepo.DeductVariantStock(ctx, *item.VariantID, item.Quantity)
		if err != nil {
			return fmt.Errorf("deduct variant stock: %w", err)
		}
	} else {
		newQuantity, minStock, err = s.productRepo.DeductBaseStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return fmt.Errorf("deduct base stock: %w", err)
		}
	}

	status := domain.DeriveStatus(newQuantity, minStock)
	if item.VariantID != nil {
		if err := s.productRepo.UpdateVariantStock(ctx, *item.VariantID, newQuantity, minStock, status, true); err != nil {
			return fmt.Errorf("update variant status: %w", err)
		}
	} else {
		if err := s.productRepo.UpdateStockFields(ctx, item.ProductID, newQuantity, minStock, status, true); err != nil {
			return fmt.Errorf("update product status: %w", err)
		}
	}

	// Mirror the deducted quantity into the ledger, creating the entry if it
	// never existed.
	entry, err := s.entryRepo.Upsert(ctx, &domain.StockEntry{
		ProductID:     item.ProductID,
		VariantID:     item.VariantID,
		Quantity:      newQuantity,
		MinStock:      minStock,
		Notes:         fmt.Sprintf("order %s dispatched (-%d)", orderID, item.Quantity),
		LastUpdatedBy: dispatchActor,
	})
	if err != nil {
		return fmt.Errorf("upsert stock entry: %w", err)
	}

	if item.VariantID != nil {
		if err := s.sync.RecomputeAggregate(ctx, item.ProductID); err != nil {
			s.logger.ErrorContext(ctx, "failed to recompute aggregate after dispatch",
				slog.String("order_id", orderID),
				slog.String("product_id", item.ProductID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.sync.publishStockUpdated(ctx, entry, status)

	s.logger.InfoContext(ctx, "stock deducted for dispatched order",
		slog.String("order_id", orderID),
		slog.String("product_id", item.ProductID),
		slog.Int("ordered", item.Quantity),
		slog.Int("remaining", newQuantity),
		slog.String("status", status),
	)

	return nil
}
