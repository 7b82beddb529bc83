package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/merchware/stock-service/internal/domain"
	"github.com/merchware/stock-service/internal/event"
	"github.com/merchware/stock-service/internal/repository"
	apperrors "github.com/merchware/stock-service/pkg/errors"
)

// VariantInput carries the fields for one variant on product create or edit.
// An empty ID means a new variant.
type VariantInput struct {
	ID       string
	Name     string
	Stock    int
	MinStock int
}

// CreateProductInput carries the fields for creating a product.
type CreateProductInput struct {
	Name      string
	Type      string
	Structure string
	BaseStock *int
	MinStock  *int
	Variants  []VariantInput
	Actor     string
}

// UpdateProductInput carries the fields for editing a product. Nil stock
// fields are left unchanged; the variant list replaces the existing set.
type UpdateProductInput struct {
	Name      *string
	BaseStock *int
	MinStock  *int
	Variants  []VariantInput
	Actor     string
}

// ProductService implements product lifecycle logic. Stock-bearing creates
// and edits funnel into the same sync orchestrator used by direct stock
// edits, so the mirroring invariants converge from every entry point.
type ProductService struct {
	productRepo repository.ProductRepository
	entryRepo   repository.StockEntryRepository
	sync        *SyncService
	producer    *event.Producer
	logger      *slog.Logger
}

// NewProductService creates a new product service.
func NewProductService(
	productRepo repository.ProductRepository,
	entryRepo repository.StockEntryRepository,
	sync *SyncService,
	producer *event.Producer,
	logger *slog.Logger,
) *ProductService {
	return &ProductService{
		productRepo: productRepo,
		entryRepo:   entryRepo,
		sync:        sync,
		producer:    producer,
		logger:      logger,
	}
}

// CreateProduct creates a product in draft state together with its stock
// entries: one per variant, or a single product-level entry for a simple
// physical product. Digital products track no stock.
func (s *ProductService) CreateProduct(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	if input.Name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if input.Type != domain.ProductTypePhysical && input.Type != domain.ProductTypeDigital {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid product type %q", input.Type))
	}
	if input.Structure != domain.StructureSimple && input.Structure != domain.StructureVariant {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid product structure %q", input.Structure))
	}
	if input.Structure == domain.StructureSimple && len(input.Variants) > 0 {
		return nil, apperrors.InvalidInput("simple products cannot carry variants")
	}

	product := &domain.Product{
		Name:      input.Name,
		Type:      input.Type,
		Structure: input.Structure,
		Status:    domain.StatusDraft,
		Published: false,
	}

	if input.Structure == domain.StructureSimple {
		product.BaseStock = input.BaseStock
		product.MinStock = input.MinStock
	} else {
		// A variant product delegates stock entirely to its variants; the
		// top-level fields stay clear.
		for _, v := range input.Variants {
			product.Variants = append(product.Variants, domain.Variant{
				Name:      v.Name,
				Stock:     v.Stock,
				MinStock:  v.MinStock,
				Status:    domain.StatusDraft,
				Published: false,
			})
		}
	}

	created, err := s.productRepo.Create(ctx, product)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.seedStockEntries(ctx, created, input.Actor)

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", created.ID),
		slog.String("type", created.Type),
		slog.String("structure", created.Structure),
		slog.Int("variants", len(created.Variants)),
	)

	return s.productRepo.GetByID(ctx, created.ID)
}

// seedStockEntries upserts the ledger entries implied by a product's stock
// fields and runs the orchestrator over each. Best effort: the product write
// already committed, reconciliation repairs any miss.
func (s *ProductService) seedStockEntries(ctx context.Context, product *domain.Product, actor string) {
	if product.IsDigital() {
		return
	}

	if product.HasVariants() {
		for i := range product.Variants {
			v := &product.Variants[i]
			variantID := v.ID
			entry, err := s.entryRepo.Upsert(ctx, &domain.StockEntry{
				ProductID:     product.ID,
				VariantID:     &variantID,
				Quantity:      v.Stock,
				MinStock:      v.MinStock,
				LastUpdatedBy: actor,
			})
			if err != nil {
				s.logger.ErrorContext(ctx, "failed to seed variant stock entry",
					slog.String("product_id", product.ID),
					slog.String("variant_id", variantID),
					slog.String("error", err.Error()),
				)
				continue
			}
			// Syncing forces the variant back to published; an archived
			// variant keeps its ledger entry current without being
			// resurrected by a product edit.
			if v.Status == domain.StatusArchived {
				continue
			}
			s.syncBestEffort(ctx, entry)
		}
		return
	}

	quantity := 0
	if product.BaseStock != nil {
		quantity = *product.BaseStock
	}
	minStock := 0
	if product.MinStock != nil {
		minStock = *product.MinStock
	}

	entry, err := s.entryRepo.Upsert(ctx, &domain.StockEntry{
		ProductID:     product.ID,
		Quantity:      quantity,
		MinStock:      minStock,
		LastUpdatedBy: actor,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to seed product stock entry",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.syncBestEffort(ctx, entry)
}

// GetProduct retrieves a product with its variants.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

// ListProducts returns a page of products with their variants.
func (s *ProductService) ListProducts(ctx context.Context, page, perPage int) ([]domain.Product, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	products, total, err := s.productRepo.List(ctx, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

// UpdateProduct applies a partial edit, replaces the variant set, and brings
// the stock ledger back in line with the new fields. Entries for removed
// variants are deleted; anything missed is orphan-cleaned by reconciliation.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, input UpdateProductInput) (*domain.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("update product: load: %w", err)
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, apperrors.InvalidInput("name cannot be empty")
		}
		product.Name = *input.Name
	}

	if product.HasVariants() {
		if input.BaseStock != nil || input.MinStock != nil {
			return nil, apperrors.InvalidInput("variant products do not carry top-level stock fields")
		}

		existing := make(map[string]domain.Variant, len(product.Variants))
		for _, v := range product.Variants {
			existing[v.ID] = v
		}

		replaced := make([]domain.Variant, 0, len(input.Variants))
		for _, in := range input.Variants {
			v := domain.Variant{
				ID:        in.ID,
				ProductID: product.ID,
				Name:      in.Name,
				Stock:     in.Stock,
				MinStock:  in.MinStock,
				Status:    domain.DeriveStatus(in.Stock, in.MinStock),
				Published: true,
			}
			// An archived variant stays archived through edits; only the
			// publication gate can republish it.
			if prev, ok := existing[in.ID]; ok && prev.Status == domain.StatusArchived {
				v.Status = domain.StatusArchived
				v.Published = false
			}
			replaced = append(replaced, v)
		}
		product.Variants = replaced
	} else {
		if len(input.Variants) > 0 {
			return nil, apperrors.InvalidInput("simple products cannot carry variants")
		}
		if input.BaseStock != nil {
			product.BaseStock = input.BaseStock
		}
		if input.MinStock != nil {
			product.MinStock = input.MinStock
		}
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.reconcileEntriesAfterEdit(ctx, product, input.Actor)

	s.logger.InfoContext(ctx, "product updated",
		slog.String("product_id", product.ID),
		slog.Int("variants", len(product.Variants)),
	)

	return s.productRepo.GetByID(ctx, product.ID)
}

// reconcileEntriesAfterEdit upserts entries for the product's current stock
// fields, deletes entries for removed variants, and re-syncs. Best effort.
func (s *ProductService) reconcileEntriesAfterEdit(ctx context.Context, product *domain.Product, actor string) {
	if product.IsDigital() {
		return
	}

	if product.HasVariants() {
		keep := make(map[string]bool, len(product.Variants))
		for i := range product.Variants {
			keep[product.Variants[i].ID] = true
		}

		productID := product.ID
		entries, err := s.entryRepo.List(ctx, &productID, nil)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to list entries after product edit",
				slog.String("product_id", product.ID),
				slog.String("error", err.Error()),
			)
		} else {
			for i := range entries {
				e := &entries[i]
				if e.VariantID != nil && !keep[*e.VariantID] {
					if err := s.entryRepo.DeleteByProductVariant(ctx, product.ID, e.VariantID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
						s.logger.ErrorContext(ctx, "failed to delete entry of removed variant",
							slog.String("product_id", product.ID),
							slog.String("variant_id", *e.VariantID),
							slog.String("error", err.Error()),
						)
					}
				}
			}
		}
	}

	s.seedStockEntries(ctx, product, actor)
}

// SetPublished runs a publish or unpublish request through the publication
// gate. A refusal is returned as a structured decision, not an error; the
// product is only written when the gate allows the change.
func (s *ProductService) SetPublished(ctx context.Context, id string, requested bool) (*domain.PublishDecision, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("set published: load product: %w", err)
	}

	decision := domain.EvaluatePublish(product.Shape(), requested)
	if !decision.CanPublish {
		s.logger.InfoContext(ctx, "publish refused",
			slog.String("product_id", product.ID),
			slog.String("reason", decision.Message),
		)
		return &decision, nil
	}

	if decision.Status != product.Status || decision.Published != product.Published {
		if err := s.productRepo.UpdateStatus(ctx, product.ID, decision.Status, decision.Published); err != nil {
			return nil, fmt.Errorf("set published: update status: %w", err)
		}

		if err := s.producer.PublishProductStatusChanged(ctx, product.ID, decision.Status, decision.Published); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish product.status_changed event",
				slog.String("product_id", product.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "product publication changed",
		slog.String("product_id", product.ID),
		slog.String("status", decision.Status),
		slog.Bool("published", decision.Published),
	)

	return &decision, nil
}

// ValidatePublish runs the publication gate without persisting anything.
func (s *ProductService) ValidatePublish(ctx context.Context, id string, requested bool) (*domain.PublishDecision, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("validate publish: load product: %w", err)
	}

	decision := domain.EvaluatePublish(product.Shape(), requested)
	return &decision, nil
}

// DeleteProduct removes a product, its variants, and its stock entries.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("product", id)
		}
		return fmt.Errorf("delete product: %w", err)
	}

	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id))
	return nil
}

func (s *ProductService) syncBestEffort(ctx context.Context, entry *domain.StockEntry) {
	if err := s.sync.SyncEntry(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "stock sync failed after product write",
			slog.String("entry_id", entry.ID),
			slog.String("product_id", entry.ProductID),
			slog.String("error", err.Error()),
		)
	}
}
