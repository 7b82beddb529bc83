package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/merchware/stock-service/internal/domain"
	"github.com/merchware/stock-service/pkg/database"
	apperrors "github.com/merchware/stock-service/pkg/errors"
)

// Entries for simple products carry a NULL variant_id, so uniqueness per
// (product, variant) pair is enforced through an expression index over
// COALESCE(variant_id, nilVariantID). The same expression is the conflict
// target for upserts.
const nilVariantID = "00000000-0000-0000-0000-000000000000"

const stockEntryColumns = "id, product_id, variant_id, quantity, min_stock, notes, last_updated_by, created_at, updated_at"

// StockEntryRepository implements repository.StockEntryRepository using PostgreSQL.
type StockEntryRepository struct {
	pool database.DBTX
}

// NewStockEntryRepository creates a new PostgreSQL-backed stock entry repository.
func NewStockEntryRepository(pool database.DBTX) *StockEntryRepository {
	return &StockEntryRepository{pool: pool}
}

func scanStockEntry(row pgx.Row) (*domain.StockEntry, error) {
	var e domain.StockEntry
	err := row.Scan(
		&e.ID,
		&e.ProductID,
		&e.VariantID,
		&e.Quantity,
		&e.MinStock,
		&e.Notes,
		&e.LastUpdatedBy,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new stock entry. A second entry for the same
// (product, variant) pair is rejected with ErrAlreadyExists.
func (r *StockEntryRepository) Create(ctx context.Context, entry *domain.StockEntry) (*domain.StockEntry, error) {
	query := `
		INSERT INTO stock_entries (id, product_id, variant_id, quantity, min_stock, notes, last_updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING ` + stockEntryColumns

	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}

	created, err := scanStockEntry(r.pool.QueryRow(ctx, query,
		id,
		entry.ProductID,
		entry.VariantID,
		entry.Quantity,
		entry.MinStock,
		entry.Notes,
		entry.LastUpdatedBy,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperrors.ErrAlreadyExists
		}
		return nil, fmt.Errorf("create stock entry: %w", err)
	}

	return created, nil
}

// GetByID retrieves a stock entry by its unique identifier.
func (r *StockEntryRepository) GetByID(ctx context.Context, id string) (*domain.StockEntry, error) {
	query := `SELECT ` + stockEntryColumns + ` FROM stock_entries WHERE id = $1`

	entry, err := scanStockEntry(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get stock entry: %w", err)
	}

	return entry, nil
}

// GetByProductVariant retrieves the entry for a product/variant pair. A nil
// variantID addresses the simple-product-level entry.
func (r *StockEntryRepository) GetByProductVariant(ctx context.Context, productID string, variantID *string) (*domain.StockEntry, error) {
	query := `
		SELECT ` + stockEntryColumns + `
		FROM stock_entries
		WHERE product_id = $1 AND variant_id IS NOT DISTINCT FROM $2`

	entry, err := scanStockEntry(r.pool.QueryRow(ctx, query, productID, variantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get stock entry by product variant: %w", err)
	}

	return entry, nil
}

// List returns entries optionally filtered by product and variant, newest first.
func (r *StockEntryRepository) List(ctx context.Context, productID, variantID *string) ([]domain.StockEntry, error) {
	query := `
		SELECT ` + stockEntryColumns + `
		FROM stock_entries
		WHERE ($1::uuid IS NULL OR product_id = $1)
		  AND ($2::uuid IS NULL OR variant_id = $2)
		ORDER BY updated_at DESC`

	rows, err := r.pool.Query(ctx, query, productID, variantID)
	if err != nil {
		return nil, fmt.Errorf("list stock entries: %w", err)
	}
	defer rows.Close()

	return collectStockEntries(rows)
}

// Update persists quantity, min stock, notes, and actor for an entry.
func (r *StockEntryRepository) Update(ctx context.Context, entry *domain.StockEntry) (*domain.StockEntry, error) {
	query := `
		UPDATE stock_entries
		SET quantity = $2, min_stock = $3, notes = $4, last_updated_by = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + stockEntryColumns

	updated, err := scanStockEntry(r.pool.QueryRow(ctx, query,
		entry.ID,
		entry.Quantity,
		entry.MinStock,
		entry.Notes,
		entry.LastUpdatedBy,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("update stock entry: %w", err)
	}

	return updated, nil
}

// Upsert creates the entry for a product/variant pair or overwrites its
// quantity and threshold if it already exists.
func (r *StockEntryRepository) Upsert(ctx context.Context, entry *domain.StockEntry) (*domain.StockEntry, error) {
	query := `
		INSERT INTO stock_entries (id, product_id, variant_id, quantity, min_stock, notes, last_updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (product_id, COALESCE(variant_id, '` + nilVariantID + `'::uuid)) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			min_stock = EXCLUDED.min_stock,
			notes = EXCLUDED.notes,
			last_updated_by = EXCLUDED.last_updated_by,
			updated_at = NOW()
		RETURNING ` + stockEntryColumns

	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}

	upserted, err := scanStockEntry(r.pool.QueryRow(ctx, query,
		id,
		entry.ProductID,
		entry.VariantID,
		entry.Quantity,
		entry.MinStock,
		entry.Notes,
		entry.LastUpdatedBy,
	))
	if err != nil {
		return nil, fmt.Errorf("upsert stock entry: %w", err)
	}

	return upserted, nil
}

// Delete removes a stock entry by id.
func (r *StockEntryRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM stock_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete stock entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// DeleteByProductVariant removes the entry for a product/variant pair.
// Used when a variant is removed and during orphan cleanup.
func (r *StockEntryRepository) DeleteByProductVariant(ctx context.Context, productID string, variantID *string) error {
	query := `DELETE FROM stock_entries WHERE product_id = $1 AND variant_id IS NOT DISTINCT FROM $2`
	if _, err := r.pool.Exec(ctx, query, productID, variantID); err != nil {
		return fmt.Errorf("delete stock entry by product variant: %w", err)
	}
	return nil
}

// ListLowStock returns entries at or below min_stock scaled by the
// multiplier, most depleted first.
func (r *StockEntryRepository) ListLowStock(ctx context.Context, multiplier float64) ([]domain.StockEntry, error) {
	query := `
		SELECT ` + stockEntryColumns + `
		FROM stock_entries
		WHERE quantity <= min_stock * $1
		ORDER BY quantity ASC, updated_at DESC`

	rows, err := r.pool.Query(ctx, query, multiplier)
	if err != nil {
		return nil, fmt.Errorf("list low stock entries: %w", err)
	}
	defer rows.Close()

	return collectStockEntries(rows)
}

func collectStockEntries(rows pgx.Rows) ([]domain.StockEntry, error) {
	var entries []domain.StockEntry
	for rows.Next() {
		entry, err := scanStockEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock entries: %w", err)
	}
	return entries, nil
}
