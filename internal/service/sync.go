package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/merchware/stock-service/internal/domain"
	"github.com/merchware/stock-service/internal/event"
	"github.com/merchware/stock-service/internal/repository"
	apperrors "github.com/merchware/stock-service/pkg/errors"
)

// SyncService propagates stock ledger changes into the denormalized product
// and variant views. Every entry point that mutates stock (direct edits,
// product lifecycle, order dispatch) converges through SyncEntry so the
// mirroring invariants hold regardless of where the write originated.
type SyncService struct {
	entryRepo   repository.StockEntryRepository
	productRepo repository.ProductRepository
	producer    *event.Producer
	logger      *slog.Logger
}

// NewSyncService creates a new sync service.
func NewSyncService(
	entryRepo repository.StockEntryRepository,
	productRepo repository.ProductRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		entryRepo:   entryRepo,
		productRepo: productRepo,
		producer:    producer,
		logger:      logger,
	}
}

// SyncEntry writes an entry's quantity and threshold into the owning product
// or variant, derives the stock status, and recomputes the variant product's
// aggregate state. A failure here never corrupts sibling entries: the caller
// decides whether to surface it or record it as a per-entry result.
func (s *SyncService) SyncEntry(ctx context.Context, entry *domain.StockEntry) error {
	product, err := s.productRepo.GetByID(ctx, entry.ProductID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("sync entry %s: product %s not found: %w", entry.ID, entry.ProductID, apperrors.ErrNotFound)
		}
		return fmt.Errorf("sync entry %s: load product: %w", entry.ID, err)
	}

	// Digital products never hold stock entries in practice; treat one as a
	// safe no-op rather than an error.
	if product.IsDigital() {
		s.logger.DebugContext(ctx, "skipping sync for digital product",
			slog.String("entry_id", entry.ID),
			slog.String("product_id", product.ID),
		)
		return nil
	}

	status := domain.DeriveStatus(entry.Quantity, entry.MinStock)

	if entry.VariantID != nil {
		if err := s.syncVariant(ctx, product, entry, status); err != nil {
			return err
		}
	} else {
		// A product-level entry only belongs to a simple product. If one
		// exists against a variant product it must not clobber the aggregate;
		// re-derive the top-level state from the variants instead.
		if product.HasVariants() {
			return s.recomputeAggregate(ctx, product)
		}
		// Stock sync never revokes publication; only the publication gate
		// can archive a product.
		if err := s.productRepo.UpdateStockFields(ctx, product.ID, entry.Quantity, entry.MinStock, status, true); err != nil {
			return fmt.Errorf("sync entry %s: update product stock fields: %w", entry.ID, err)
		}
	}

	s.publishStockUpdated(ctx, entry, status)

	s.logger.InfoContext(ctx, "stock entry synced",
		slog.String("entry_id", entry.ID),
		slog.String("product_id", entry.ProductID),
		slog.Int("quantity", entry.Quantity),
		slog.String("status", status),
	)

	return nil
}

func (s *SyncService) syncVariant(ctx context.Context, product *domain.Product, entry *domain.StockEntry, status string) error {
	variant := product.VariantByID(*entry.VariantID)
	if variant == nil {
		return fmt.Errorf("sync entry %s: variant %s not found in product %s: %w",
			entry.ID, *entry.VariantID, product.ID, apperrors.ErrNotFound)
	}

	if err := s.productRepo.UpdateVariantStock(ctx, variant.ID, entry.Quantity, entry.MinStock, status, true); err != nil {
		return fmt.Errorf("sync entry %s: update variant stock: %w", entry.ID, err)
	}

	// Mirror the write into the in-memory list so the aggregate sees it.
	variant.Stock = entry.Quantity
	variant.MinStock = entry.MinStock
	variant.Status = status
	variant.Published = true

	return s.recomputeAggregate(ctx, product)
}

// RecomputeAggregate reloads a product and, when variant-structured, derives
// its top-level status and published flag from the variant list. The product
// row is only written when the aggregate actually changed.
func (s *SyncService) RecomputeAggregate(ctx context.Context, productID string) error {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("recompute aggregate: load product %s: %w", productID, err)
	}
	return s.recomputeAggregate(ctx, product)
}

func (s *SyncService) recomputeAggregate(ctx context.Context, product *domain.Product) error {
	if !product.HasVariants() {
		return nil
	}

	state := domain.AggregateVariantState(product.Variants)
	if state.Status == product.Status && state.Published == product.Published {
		return nil
	}

	if err := s.productRepo.UpdateStatus(ctx, product.ID, state.Status, state.Published); err != nil {
		return fmt.Errorf("recompute aggregate: update product %s status: %w", product.ID, err)
	}

	if err := s.producer.PublishProductStatusChanged(ctx, product.ID, state.Status, state.Published); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.status_changed event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product aggregate status recomputed",
		slog.String("product_id", product.ID),
		slog.String("status", state.Status),
		slog.Bool("published", state.Published),
	)

	return nil
}

// SyncEntryDeleted forces the owner of a removed entry to zero stock. The
// variant (or simple product) ends up out_of_stock but still published, and
// the aggregate is recomputed for variant products.
func (s *SyncService) SyncEntryDeleted(ctx context.Context, entry *domain.StockEntry) error {
	product, err := s.productRepo.GetByID(ctx, entry.ProductID)
	if err != nil {
		return fmt.Errorf("sync deleted entry %s: load product: %w", entry.ID, err)
	}

	if product.IsDigital() {
		return nil
	}

	if entry.VariantID != nil {
		variant := product.VariantByID(*entry.VariantID)
		if variant == nil {
			// Variant already gone; nothing to zero out.
			return nil
		}
		if err := s.productRepo.UpdateVariantStock(ctx, variant.ID, 0, entry.MinStock, domain.StatusOutOfStock, true); err != nil {
			return fmt.Errorf("sync deleted entry %s: zero variant stock: %w", entry.ID, err)
		}
		variant.Stock = 0
		variant.Status = domain.StatusOutOfStock
		variant.Published = true
		return s.recomputeAggregate(ctx, product)
	}

	if err := s.productRepo.UpdateStockFields(ctx, product.ID, 0, entry.MinStock, domain.StatusOutOfStock, true); err != nil {
		return fmt.Errorf("sync deleted entry %s: zero product stock: %w", entry.ID, err)
	}

	return nil
}

// BulkSync re-runs the orchestrator over every entry matching the filter,
// isolating failures per entry. Entries whose variant no longer exists are
// orphans and are deleted instead of synced. Running it twice with no
// intervening writes changes nothing on the second pass.
func (s *SyncService) BulkSync(ctx context.Context, productID, variantID *string) (*domain.SyncResult, error) {
	entries, err := s.entryRepo.List(ctx, productID, variantID)
	if err != nil {
		return nil, fmt.Errorf("bulk sync: list entries: %w", err)
	}

	result := &domain.SyncResult{}
	for i := range entries {
		entry := &entries[i]

		if orphaned, msg := s.cleanupIfOrphaned(ctx, entry); orphaned {
			result.SuccessCount++
			result.Messages = append(result.Messages, msg)
			continue
		}

		if err := s.SyncEntry(ctx, entry); err != nil {
			result.FailedCount++
			result.Messages = append(result.Messages, fmt.Sprintf("entry %s: %v", entry.ID, err))
			s.logger.ErrorContext(ctx, "bulk sync entry failed",
				slog.String("entry_id", entry.ID),
				slog.String("product_id", entry.ProductID),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.SuccessCount++
	}

	s.logger.InfoContext(ctx, "bulk sync completed",
		slog.Int("success", result.SuccessCount),
		slog.Int("failed", result.FailedCount),
	)

	return result, nil
}

// cleanupIfOrphaned deletes a variant entry whose variant no longer exists on
// the owning product. A vanished product leaves no variant ids behind, so its
// entries fall out the same way. Returns true with a message when the entry
// was an orphan and has been deleted.
func (s *SyncService) cleanupIfOrphaned(ctx context.Context, entry *domain.StockEntry) (bool, string) {
	if entry.VariantID == nil {
		return false, ""
	}

	variantIDs, err := s.productRepo.ListVariantIDs(ctx, entry.ProductID)
	if err != nil {
		// Leave the entry to SyncEntry, which surfaces the failure.
		return false, ""
	}
	if slices.Contains(variantIDs, *entry.VariantID) {
		return false, ""
	}

	if delErr := s.entryRepo.Delete(ctx, entry.ID); delErr != nil && !errors.Is(delErr, apperrors.ErrNotFound) {
		s.logger.ErrorContext(ctx, "failed to delete orphaned entry",
			slog.String("entry_id", entry.ID),
			slog.String("error", delErr.Error()),
		)
		return false, ""
	}

	s.logger.InfoContext(ctx, "deleted orphaned stock entry",
		slog.String("entry_id", entry.ID),
		slog.String("product_id", entry.ProductID),
		slog.String("variant_id", *entry.VariantID),
	)

	return true, fmt.Sprintf("entry %s: deleted orphan (variant %s gone)", entry.ID, *entry.VariantID)
}

func (s *SyncService) publishStockUpdated(ctx context.Context, entry *domain.StockEntry, status string) {
	if err := s.producer.PublishStockUpdated(ctx, entry, status); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish stock.updated event",
			slog.String("entry_id", entry.ID),
			slog.String("error", err.Error()),
		)
	}

	if status == domain.StatusLowStock || status == domain.StatusOutOfStock {
		if err := s.producer.PublishLowStock(ctx, entry); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish stock.low_stock event",
				slog.String("entry_id", entry.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
