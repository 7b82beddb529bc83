package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/merchware/stock-service/internal/domain"
	"github.com/merchware/stock-service/pkg/database"
	apperrors "github.com/merchware/stock-service/pkg/errors"
)

const productColumns = "id, name, product_type, product_structure, base_stock, min_stock, status, published, created_at, updated_at"

const variantColumns = "id, product_id, name, stock, min_stock, status, published, created_at, updated_at"

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Type,
		&p.Structure,
		&p.BaseStock,
		&p.MinStock,
		&p.Status,
		&p.Published,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanVariant(row pgx.Row) (*domain.Variant, error) {
	var v domain.Variant
	err := row.Scan(
		&v.ID,
		&v.ProductID,
		&v.Name,
		&v.Stock,
		&v.MinStock,
		&v.Status,
		&v.Published,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Create inserts a product and its variants in one transaction.
func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id := product.ID
	if id == "" {
		id = uuid.New().String()
	}

	query := `
		INSERT INTO products (id, name, product_type, product_structure, base_stock, min_stock, status, published, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING ` + productColumns

	created, err := scanProduct(tx.QueryRow(ctx, query,
		id,
		product.Name,
		product.Type,
		product.Structure,
		product.BaseStock,
		product.MinStock,
		product.Status,
		product.Published,
	))
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	for i := range product.Variants {
		v := &product.Variants[i]
		if v.ID == "" {
			v.ID = uuid.New().String()
		}
		v.ProductID = created.ID

		variantQuery := `
			INSERT INTO variants (id, product_id, name, stock, min_stock, status, published, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
			RETURNING ` + variantColumns

		inserted, err := scanVariant(tx.QueryRow(ctx, variantQuery,
			v.ID,
			v.ProductID,
			v.Name,
			v.Stock,
			v.MinStock,
			v.Status,
			v.Published,
		))
		if err != nil {
			return nil, fmt.Errorf("create variant: %w", err)
		}
		created.Variants = append(created.Variants, *inserted)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create product: %w", err)
	}

	return created, nil
}

// GetByID retrieves a product with all of its variants.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	variants, err := r.listVariants(ctx, id)
	if err != nil {
		return nil, err
	}
	product.Variants = variants

	return product, nil
}

// List returns a page of products with their variants and the total count.
func (r *ProductRepository) List(ctx context.Context, page, perPage int) ([]domain.Product, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate products: %w", err)
	}

	for i := range products {
		variants, err := r.listVariants(ctx, products[i].ID)
		if err != nil {
			return nil, 0, err
		}
		products[i].Variants = variants
	}

	return products, total, nil
}

func (r *ProductRepository) listVariants(ctx context.Context, productID string) ([]domain.Variant, error) {
	query := `SELECT ` + variantColumns + ` FROM variants WHERE product_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		variants = append(variants, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}

	return variants, nil
}

// Update persists the product's editable fields and replaces its variant
// set. Variants carried on the product are upserted; rows no longer present
// are deleted, which is what orphans stock entries for reconciliation to
// clean up.
func (r *ProductRepository) Update(ctx context.Context, product *domain.Product) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		UPDATE products
		SET name = $2, product_type = $3, product_structure = $4,
		    base_stock = $5, min_stock = $6, status = $7, published = $8, updated_at = NOW()
		WHERE id = $1`

	tag, err := tx.Exec(ctx, query,
		product.ID,
		product.Name,
		product.Type,
		product.Structure,
		product.BaseStock,
		product.MinStock,
		product.Status,
		product.Published,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	keep := make([]string, 0, len(product.Variants))
	for i := range product.Variants {
		v := &product.Variants[i]
		if v.ID == "" {
			v.ID = uuid.New().String()
		}
		v.ProductID = product.ID
		keep = append(keep, v.ID)

		variantQuery := `
			INSERT INTO variants (id, product_id, name, stock, min_stock, status, published, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				stock = EXCLUDED.stock,
				min_stock = EXCLUDED.min_stock,
				status = EXCLUDED.status,
				published = EXCLUDED.published,
				updated_at = NOW()`

		if _, err := tx.Exec(ctx, variantQuery,
			v.ID,
			v.ProductID,
			v.Name,
			v.Stock,
			v.MinStock,
			v.Status,
			v.Published,
		); err != nil {
			return fmt.Errorf("upsert variant: %w", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM variants WHERE product_id = $1 AND NOT (id = ANY($2))`,
		product.ID, keep,
	); err != nil {
		return fmt.Errorf("delete removed variants: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit update product: %w", err)
	}

	return nil
}

// UpdateStockFields writes the denormalized stock view of a simple product.
func (r *ProductRepository) UpdateStockFields(ctx context.Context, productID string, baseStock, minStock int, status string, published bool) error {
	query := `
		UPDATE products
		SET base_stock = $2, min_stock = $3, status = $4, published = $5, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, productID, baseStock, minStock, status, published)
	if err != nil {
		return fmt.Errorf("update product stock fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// UpdateStatus writes the product-level status and published flag only.
func (r *ProductRepository) UpdateStatus(ctx context.Context, productID, status string, published bool) error {
	query := `UPDATE products SET status = $2, published = $3, updated_at = NOW() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, productID, status, published)
	if err != nil {
		return fmt.Errorf("update product status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// UpdateVariantStock writes the denormalized stock view of one variant.
func (r *ProductRepository) UpdateVariantStock(ctx context.Context, variantID string, stock, minStock int, status string, published bool) error {
	query := `
		UPDATE variants
		SET stock = $2, min_stock = $3, status = $4, published = $5, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, variantID, stock, minStock, status, published)
	if err != nil {
		return fmt.Errorf("update variant stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// DeductBaseStock atomically lowers a simple product's base stock, clamping
// at zero, so concurrent dispatches cannot produce a lost update.
func (r *ProductRepository) DeductBaseStock(ctx context.Context, productID string, quantity int) (int, int, error) {
	query := `
		UPDATE products
		SET base_stock = GREATEST(COALESCE(base_stock, 0) - $2, 0), updated_at = NOW()
		WHERE id = $1
		RETURNING COALESCE(base_stock, 0), COALESCE(min_stock, 0)`

	var newQuantity, minStock int
	err := r.pool.QueryRow(ctx, query, productID, quantity).Scan(&newQuantity, &minStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, apperrors.ErrNotFound
		}
		return 0, 0, fmt.Errorf("deduct base stock: %w", err)
	}

	return newQuantity, minStock, nil
}

// DeductVariantStock atomically lowers a variant's stock, clamping at zero.
func (r *ProductRepository) DeductVariantStock(ctx context.Context, variantID string, quantity int) (int, int, error) {
	query := `
		UPDATE variants
		SET stock = GREATEST(stock - $2, 0), updated_at = NOW()
		WHERE id = $1
		RETURNING stock, min_stock`

	var newQuantity, minStock int
	err := r.pool.QueryRow(ctx, query, variantID, quantity).Scan(&newQuantity, &minStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, apperrors.ErrNotFound
		}
		return 0, 0, fmt.Errorf("deduct variant stock: %w", err)
	}

	return newQuantity, minStock, nil
}

// ListVariantIDs returns the ids of all variants of a product.
func (r *ProductRepository) ListVariantIDs(ctx context.Context, productID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM variants WHERE product_id = $1`, productID)
	if err != nil {
		return nil, fmt.Errorf("list variant ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan variant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant ids: %w", err)
	}

	return ids, nil
}

// Delete removes a product, its variants, and its stock entries.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM stock_entries WHERE product_id = $1`, id); err != nil {
		return fmt.Errorf("delete product stock entries: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM variants WHERE product_id = $1`, id); err != nil {
		return fmt.Errorf("delete product variants: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete product: %w", err)
	}

	return nil
}
