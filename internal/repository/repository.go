package repository

import (
	"context"

	"github.com/merchware/stock-service/internal/domain"
)

// StockEntryRepository defines the interface for stock ledger persistence.
type StockEntryRepository interface {
	// Create inserts a new stock entry. It fails with ErrAlreadyExists when
	// an entry for the same (product, variant) pair already exists.
	Create(ctx context.Context, entry *domain.StockEntry) (*domain.StockEntry, error)

	// GetByID retrieves a stock entry by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.StockEntry, error)

	// GetByProductVariant retrieves the entry for a product/variant pair.
	// A nil variantID addresses the simple-product-level entry.
	GetByProductVariant(ctx context.Context, productID string, variantID *string) (*domain.StockEntry, error)

	// List returns entries optionally filtered by product and variant.
	List(ctx context.Context, productID, variantID *string) ([]domain.StockEntry, error)

	// Update persists quantity, min stock, notes, and actor for an entry.
	Update(ctx context.Context, entry *domain.StockEntry) (*domain.StockEntry, error)

	// Upsert creates the entry for a product/variant pair or overwrites its
	// quantity and threshold if it already exists.
	Upsert(ctx context.Context, entry *domain.StockEntry) (*domain.StockEntry, error)

	// Delete removes a stock entry by id.
	Delete(ctx context.Context, id string) error

	// DeleteByProductVariant removes the entry for a product/variant pair.
	DeleteByProductVariant(ctx context.Context, productID string, variantID *string) error

	// ListLowStock returns entries where quantity <= min_stock * multiplier,
	// ordered by quantity ascending.
	ListLowStock(ctx context.Context, multiplier float64) ([]domain.StockEntry, error)
}

// ProductRepository defines the interface for product and variant persistence.
type ProductRepository interface {
	// Create inserts a product and its variants in one transaction.
	Create(ctx context.Context, product *domain.Product) (*domain.Product, error)

	// GetByID retrieves a product with all of its variants.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// List returns a page of products with their variants and the total count.
	List(ctx context.Context, page, perPage int) ([]domain.Product, int, error)

	// Update persists the product's editable fields and replaces its variant
	// set: variants present in the product are upserted, the rest deleted.
	Update(ctx context.Context, product *domain.Product) error

	// UpdateStockFields writes the denormalized stock view of a simple product.
	UpdateStockFields(ctx context.Context, productID string, baseStock, minStock int, status string, published bool) error

	// UpdateStatus writes the product-level status and published flag only.
	UpdateStatus(ctx context.Context, productID, status string, published bool) error

	// UpdateVariantStock writes the denormalized stock view of one variant.
	UpdateVariantStock(ctx context.Context, variantID string, stock, minStock int, status string, published bool) error

	// DeductBaseStock atomically lowers a simple product's base stock,
	// clamping at zero, and returns the new quantity and threshold.
	DeductBaseStock(ctx context.Context, productID string, quantity int) (newQuantity, minStock int, err error)

	// DeductVariantStock atomically lowers a variant's stock, clamping at
	// zero, and returns the new quantity and threshold.
	DeductVariantStock(ctx context.Context, variantID string, quantity int) (newQuantity, minStock int, err error)

	// ListVariantIDs returns the ids of all variants of a product.
	ListVariantIDs(ctx context.Context, productID string) ([]string, error)

	// Delete removes a product, its variants, and its stock entries.
	Delete(ctx context.Context, id string) error
}
