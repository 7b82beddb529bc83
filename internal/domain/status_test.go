package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// DeriveStatus Tests
// ============================================================================

func TestDeriveStatus_ZeroQuantity(t *testing.T) {
	assert.Equal(t, StatusOutOfStock, DeriveStatus(0, 5))
}

func TestDeriveStatus_NegativeQuantity(t *testing.T) {
	assert.Equal(t, StatusOutOfStock, DeriveStatus(-3, 5))
}

func TestDeriveStatus_AtThreshold(t *testing.T) {
	// quantity == minStock is low_stock, not selling
	assert.Equal(t, StatusLowStock, DeriveStatus(5, 5))
}

func TestDeriveStatus_BelowThreshold(t *testing.T) {
	assert.Equal(t, StatusLowStock, DeriveStatus(3, 5))
}

func TestDeriveStatus_AboveThreshold(t *testing.T) {
	assert.Equal(t, StatusSelling, DeriveStatus(6, 5))
}

func TestDeriveStatus_ZeroThreshold(t *testing.T) {
	assert.Equal(t, StatusSelling, DeriveStatus(1, 0))
	assert.Equal(t, StatusOutOfStock, DeriveStatus(0, 0))
}

// ============================================================================
// AggregateVariantState Tests
// ============================================================================

func TestAggregateVariantState_OneSellingVariant(t *testing.T) {
	variants := []Variant{
		{ID: "a", Status: StatusSelling, Published: true},
		{ID: "b", Status: StatusDraft, Published: false},
	}
	state := AggregateVariantState(variants)
	assert.Equal(t, StatusSelling, state.Status)
	assert.True(t, state.Published)
}

func TestAggregateVariantState_AllOutOfStock(t *testing.T) {
	variants := []Variant{
		{ID: "a", Status: StatusOutOfStock, Published: true},
		{ID: "b", Status: StatusOutOfStock, Published: true},
	}
	state := AggregateVariantState(variants)
	assert.Equal(t, StatusOutOfStock, state.Status)
	assert.True(t, state.Published)
}

func TestAggregateVariantState_SomeDraft(t *testing.T) {
	variants := []Variant{
		{ID: "a", Status: StatusOutOfStock, Published: true},
		{ID: "b", Status: StatusDraft, Published: false},
	}
	state := AggregateVariantState(variants)
	assert.Equal(t, StatusDraft, state.Status)
	assert.False(t, state.Published)
}

func TestAggregateVariantState_ArchivedExcludedFromAllOutCheck(t *testing.T) {
	// Archived variants do not count toward the all-out-of-stock rule.
	variants := []Variant{
		{ID: "a", Status: StatusOutOfStock, Published: true},
		{ID: "b", Status: StatusArchived, Published: false},
	}
	state := AggregateVariantState(variants)
	assert.Equal(t, StatusOutOfStock, state.Status)
	assert.True(t, state.Published)
}

func TestAggregateVariantState_AllLowStock(t *testing.T) {
	variants := []Variant{
		{ID: "a", Status: StatusLowStock, Published: true},
		{ID: "b", Status: StatusLowStock, Published: true},
	}
	state := AggregateVariantState(variants)
	assert.Equal(t, StatusLowStock, state.Status)
	assert.True(t, state.Published)
}

func TestAggregateVariantState_MixedLowStockAndSelling(t *testing.T) {
	variants := []Variant{
		{ID: "a", Status: StatusLowStock, Published: true},
		{ID: "b", Status: StatusSelling, Published: true},
	}
	state := AggregateVariantState(variants)
	assert.Equal(t, StatusSelling, state.Status)
	assert.True(t, state.Published)
}

func TestAggregateVariantState_NoVariants(t *testing.T) {
	state := AggregateVariantState(nil)
	assert.Equal(t, StatusDraft, state.Status)
	assert.False(t, state.Published)
}

func TestAggregateVariantState_UnpublishedSellingVariant(t *testing.T) {
	// A selling but unpublished variant is not available for sale.
	variants := []Variant{
		{ID: "a", Status: StatusSelling, Published: false},
	}
	state := AggregateVariantState(variants)
	assert.Equal(t, StatusDraft, state.Status)
	assert.False(t, state.Published)
}

// ============================================================================
// Severity Tests
// ============================================================================

func TestSeverity_Critical(t *testing.T) {
	e := &StockEntry{Quantity: 0, MinStock: 10}
	assert.Equal(t, SeverityCritical, e.Severity())
}

func TestSeverity_High(t *testing.T) {
	e := &StockEntry{Quantity: 5, MinStock: 10}
	assert.Equal(t, SeverityHigh, e.Severity())
}

func TestSeverity_Medium(t *testing.T) {
	e := &StockEntry{Quantity: 8, MinStock: 10}
	assert.Equal(t, SeverityMedium, e.Severity())
}

func TestSeverity_HighBoundary(t *testing.T) {
	// Exactly half the threshold is high, just above it is medium.
	e := &StockEntry{Quantity: 5, MinStock: 10}
	assert.Equal(t, SeverityHigh, e.Severity())
	e.Quantity = 6
	assert.Equal(t, SeverityMedium, e.Severity())
}
