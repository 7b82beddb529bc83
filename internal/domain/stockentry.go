package domain

import (
	"time"
)

// StockEntry is the normalized ledger record holding on-hand quantity and
// reorder threshold for one product or one variant. VariantID is nil for the
// simple-product-level entry; at most one entry exists per (product, variant)
// pair including the nil slot.
type StockEntry struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	VariantID     *string   `json:"variant_id,omitempty"`
	Quantity      int       `json:"quantity"`
	MinStock      int       `json:"min_stock"`
	Notes         string    `json:"notes,omitempty"`
	LastUpdatedBy string    `json:"last_updated_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Low-stock severity constants, ordered from most to least urgent.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
)

// Severity classifies how urgently an entry needs restocking. Zero or
// negative quantity is critical, at or below half the threshold is high,
// anything else flagged by a low-stock query is medium.
func (e *StockEntry) Severity() string {
	switch {
	case e.Quantity <= 0:
		return SeverityCritical
	case float64(e.Quantity) <= float64(e.MinStock)*0.5:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// SyncResult captures the outcome of synchronizing a batch of stock entries.
// Batch operations always run to completion; failures are reported per entry.
type SyncResult struct {
	SuccessCount int      `json:"success_count"`
	FailedCount  int      `json:"failed_count"`
	Messages     []string `json:"messages,omitempty"`
}

// DispatchItem is one order line to deduct stock for.
type DispatchItem struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
	Quantity  int     `json:"quantity"`
}
