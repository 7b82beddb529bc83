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

// CreateStockEntryInput carries the fields for creating a stock entry.
type CreateStockEntryInput struct {
	ProductID string
	VariantID *string
	Quantity  int
	MinStock  int
	Notes     string
	Actor     string
}

// UpdateStockEntryInput carries the optional fields for a stock entry edit.
// Nil fields are left unchanged.
type UpdateStockEntryInput struct {
	Quantity *int
	MinStock *int
	Notes    *string
	Actor    string
}

// BulkUpdateItem is one element of a bulk stock edit.
type BulkUpdateItem struct {
	ID       string
	Quantity *int
	MinStock *int
	Notes    *string
}

// BulkUpdateResult summarizes a bulk stock edit. The batch always runs to
// completion; failures are reported per item.
type BulkUpdateResult struct {
	Updated  int      `json:"updated"`
	Messages []string `json:"messages,omitempty"`
}

// LowStockEntry is a stock entry annotated with restocking urgency.
type LowStockEntry struct {
	domain.StockEntry
	Severity string `json:"severity"`
}

// ExportRow is a flattened stock entry joined with its owner's identity,
// consumed by the CSV and JSON export handlers.
type ExportRow struct {
	EntryID     string `json:"entry_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	VariantID   string `json:"variant_id,omitempty"`
	VariantName string `json:"variant_name,omitempty"`
	Quantity    int    `json:"quantity"`
	MinStock    int    `json:"min_stock"`
	Status      string `json:"status"`
	Notes       string `json:"notes,omitempty"`
}

// StockService implements the business logic for stock ledger operations.
type StockService struct {
	entryRepo   repository.StockEntryRepository
	productRepo repository.ProductRepository
	sync        *SyncService
	logger      *slog.Logger
}

// NewStockService creates a new stock service.
func NewStockService(
	entryRepo repository.StockEntryRepository,
	productRepo repository.ProductRepository,
	sync *SyncService,
	logger *slog.Logger,
) *StockService {
	return &StockService{
		entryRepo:   entryRepo,
		productRepo: productRepo,
		sync:        sync,
		logger:      logger,
	}
}

// CreateEntry creates a stock entry for a product or variant and synchronizes
// the denormalized product view. The primary write succeeds even when the
// sync fails; reconciliation repairs the drift later.
func (s *StockService) CreateEntry(ctx context.Context, input CreateStockEntryInput) (*domain.StockEntry, error) {
	if input.ProductID == "" {
		return nil, apperrors.InvalidInput("product_id is required")
	}
	if input.Quantity < 0 {
		return nil, apperrors.InvalidInput("quantity must be non-negative")
	}
	if input.MinStock < 0 {
		return nil, apperrors.InvalidInput("min_stock must be non-negative")
	}

	product, err := s.productRepo.GetByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("product", input.ProductID)
		}
		return nil, fmt.Errorf("create stock entry: load product: %w", err)
	}

	if product.IsDigital() {
		return nil, apperrors.InvalidInput("digital products do not track stock")
	}
	// The nil-variant slot belongs to simple products; a variant product's
	// top-level fields are derived from its variants and never written from a
	// product-level entry.
	if product.HasVariants() && input.VariantID == nil {
		return nil, apperrors.InvalidInput("variant products track stock per variant; variant_id is required")
	}
	if input.VariantID != nil && product.VariantByID(*input.VariantID) == nil {
		return nil, apperrors.NotFound("variant", *input.VariantID)
	}

	if existing, err := s.entryRepo.GetByProductVariant(ctx, input.ProductID, input.VariantID); err == nil {
		return nil, apperrors.AlreadyExists("stock entry", existing.ID)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("create stock entry: check existing: %w", err)
	}

	entry, err := s.entryRepo.Create(ctx, &domain.StockEntry{
		ProductID:     input.ProductID,
		VariantID:     input.VariantID,
		Quantity:      input.Quantity,
		MinStock:      input.MinStock,
		Notes:         input.Notes,
		LastUpdatedBy: input.Actor,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, apperrors.AlreadyExists("stock entry", input.ProductID)
		}
		return nil, fmt.Errorf("create stock entry: %w", err)
	}

	s.syncBestEffort(ctx, entry)

	s.logger.InfoContext(ctx, "stock entry created",
		slog.String("entry_id", entry.ID),
		slog.String("product_id", entry.ProductID),
		slog.Int("quantity", entry.Quantity),
	)

	return entry, nil
}

// GetEntry retrieves a stock entry by id.
func (s *StockService) GetEntry(ctx context.Context, id string) (*domain.StockEntry, error) {
	entry, err := s.entryRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("stock entry", id)
		}
		return nil, fmt.Errorf("get stock entry: %w", err)
	}
	return entry, nil
}

// ListEntries returns stock entries optionally filtered by product and variant.
func (s *StockService) ListEntries(ctx context.Context, productID, variantID *string) ([]domain.StockEntry, error) {
	entries, err := s.entryRepo.List(ctx, productID, variantID)
	if err != nil {
		return nil, fmt.Errorf("list stock entries: %w", err)
	}
	return entries, nil
}

// UpdateEntry applies a partial edit to a stock entry and synchronizes the
// owning product or variant.
func (s *StockService) UpdateEntry(ctx context.Context, id string, input UpdateStockEntryInput) (*domain.StockEntry, error) {
	entry, err := s.entryRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("stock entry", id)
		}
		return nil, fmt.Errorf("update stock entry: load: %w", err)
	}

	if input.Quantity != nil {
		if *input.Quantity < 0 {
			return nil, apperrors.InvalidInput("quantity must be non-negative")
		}
		entry.Quantity = *input.Quantity
	}
	if input.MinStock != nil {
		if *input.MinStock < 0 {
			return nil, apperrors.InvalidInput("min_stock must be non-negative")
		}
		entry.MinStock = *input.MinStock
	}
	if input.Notes != nil {
		entry.Notes = *input.Notes
	}
	if input.Actor != "" {
		entry.LastUpdatedBy = input.Actor
	}

	updated, err := s.entryRepo.Update(ctx, entry)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("stock entry", id)
		}
		return nil, fmt.Errorf("update stock entry: %w", err)
	}

	s.syncBestEffort(ctx, updated)

	s.logger.InfoContext(ctx, "stock entry updated",
		slog.String("entry_id", updated.ID),
		slog.Int("quantity", updated.Quantity),
		slog.Int("min_stock", updated.MinStock),
	)

	return updated, nil
}

// DeleteEntry removes a stock entry and zeroes out the owning product or
// variant: quantity 0, out_of_stock, still published.
func (s *StockService) DeleteEntry(ctx context.Context, id string) error {
	entry, err := s.entryRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("stock entry", id)
		}
		return fmt.Errorf("delete stock entry: load: %w", err)
	}

	if err := s.entryRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("stock entry", id)
		}
		return fmt.Errorf("delete stock entry: %w", err)
	}

	if err := s.sync.SyncEntryDeleted(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to sync deleted stock entry",
			slog.String("entry_id", entry.ID),
			slog.String("product_id", entry.ProductID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "stock entry deleted",
		slog.String("entry_id", id),
		slog.String("product_id", entry.ProductID),
	)

	return nil
}

// BulkUpdate applies a list of stock edits, isolating failures per item. The
// batch always completes and reports a summary.
func (s *StockService) BulkUpdate(ctx context.Context, items []BulkUpdateItem) (*BulkUpdateResult, error) {
	if len(items) == 0 {
		return nil, apperrors.InvalidInput("at least one item is required")
	}

	result := &BulkUpdateResult{}
	for _, item := range items {
		_, err := s.UpdateEntry(ctx, item.ID, UpdateStockEntryInput{
			Quantity: item.Quantity,
			MinStock: item.MinStock,
			Notes:    item.Notes,
		})
		if err != nil {
			result.Messages = append(result.Messages, fmt.Sprintf("entry %s: %v", item.ID, err))
			continue
		}
		result.Updated++
	}

	s.logger.InfoContext(ctx, "bulk stock update completed",
		slog.Int("requested", len(items)),
		slog.Int("updated", result.Updated),
	)

	return result, nil
}

// ListLowStock returns entries at or below min_stock scaled by the threshold
// multiplier, annotated with severity and ordered most depleted first.
func (s *StockService) ListLowStock(ctx context.Context, multiplier float64) ([]LowStockEntry, error) {
	if multiplier <= 0 {
		multiplier = 1.0
	}

	entries, err := s.entryRepo.ListLowStock(ctx, multiplier)
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}

	annotated := make([]LowStockEntry, 0, len(entries))
	for i := range entries {
		annotated = append(annotated, LowStockEntry{
			StockEntry: entries[i],
			Severity:   entries[i].Severity(),
		})
	}

	return annotated, nil
}

// Export flattens stock entries with product and variant identity for the
// CSV and JSON export endpoints.
func (s *StockService) Export(ctx context.Context, productID *string) ([]ExportRow, error) {
	entries, err := s.entryRepo.List(ctx, productID, nil)
	if err != nil {
		return nil, fmt.Errorf("export stock: list entries: %w", err)
	}

	// Cache products so multi-variant products load once.
	products := make(map[string]*domain.Product)
	rows := make([]ExportRow, 0, len(entries))

	for i := range entries {
		entry := &entries[i]

		product, ok := products[entry.ProductID]
		if !ok {
			product, err = s.productRepo.GetByID(ctx, entry.ProductID)
			if err != nil {
				s.logger.WarnContext(ctx, "export: skipping entry with missing product",
					slog.String("entry_id", entry.ID),
					slog.String("product_id", entry.ProductID),
				)
				continue
			}
			products[entry.ProductID] = product
		}

		row := ExportRow{
			EntryID:     entry.ID,
			ProductID:   entry.ProductID,
			ProductName: product.Name,
			Quantity:    entry.Quantity,
			MinStock:    entry.MinStock,
			Status:      domain.DeriveStatus(entry.Quantity, entry.MinStock),
			Notes:       entry.Notes,
		}
		if entry.VariantID != nil {
			row.VariantID = *entry.VariantID
			if v := product.VariantByID(*entry.VariantID); v != nil {
				row.VariantName = v.Name
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// syncBestEffort runs the orchestrator and logs failures instead of
// propagating them: the ledger write already committed, and reconciliation
// exists to repair the denormalized view.
func (s *StockService) syncBestEffort(ctx context.Context, entry *domain.StockEntry) {
	if err := s.sync.SyncEntry(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "stock sync failed after ledger write",
			slog.String("entry_id", entry.ID),
			slog.String("product_id", entry.ProductID),
			slog.String("error", err.Error()),
		)
	}
}
