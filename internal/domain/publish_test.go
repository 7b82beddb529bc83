package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

// ============================================================================
// EvaluatePublish - Digital Tests
// ============================================================================

func TestEvaluatePublish_DigitalPublish(t *testing.T) {
	d := EvaluatePublish(DigitalShape{}, true)
	assert.True(t, d.CanPublish)
	assert.Equal(t, StatusSelling, d.Status)
	assert.True(t, d.Published)
}

func TestEvaluatePublish_DigitalUnpublish(t *testing.T) {
	d := EvaluatePublish(DigitalShape{}, false)
	assert.True(t, d.CanPublish)
	assert.Equal(t, StatusSelling, d.Status)
	assert.False(t, d.Published)
}

// ============================================================================
// EvaluatePublish - Variant Tests
// ============================================================================

func TestEvaluatePublish_VariantNoVariants(t *testing.T) {
	d := EvaluatePublish(VariantShape{}, true)
	assert.False(t, d.CanPublish)
	assert.Equal(t, StatusDraft, d.Status)
	assert.False(t, d.Published)
	assert.NotEmpty(t, d.Message)
}

func TestEvaluatePublish_VariantNoneSellable(t *testing.T) {
	shape := VariantShape{Variants: []Variant{
		{ID: "a", Status: StatusOutOfStock, Published: true},
		{ID: "b", Status: StatusDraft, Published: false},
	}}
	d := EvaluatePublish(shape, true)
	assert.True(t, d.CanPublish)
	assert.Equal(t, StatusOutOfStock, d.Status)
	assert.True(t, d.Published)
}

func TestEvaluatePublish_VariantOneSellable(t *testing.T) {
	shape := VariantShape{Variants: []Variant{
		{ID: "a", Status: StatusSelling, Published: true},
		{ID: "b", Status: StatusOutOfStock, Published: true},
	}}
	d := EvaluatePublish(shape, true)
	assert.True(t, d.CanPublish)
	assert.Equal(t, StatusSelling, d.Status)
	assert.True(t, d.Published)
}

func TestEvaluatePublish_VariantUnpublish(t *testing.T) {
	shape := VariantShape{Variants: []Variant{
		{ID: "a", Status: StatusSelling, Published: true},
	}}
	d := EvaluatePublish(shape, false)
	assert.True(t, d.CanPublish)
	assert.Equal(t, StatusArchived, d.Status)
	assert.False(t, d.Published)
}

// ============================================================================
// EvaluatePublish - Simple Tests
// ============================================================================

func TestEvaluatePublish_SimpleUnconfigured(t *testing.T) {
	d := EvaluatePublish(SimpleShape{}, true)
	assert.False(t, d.CanPublish)
	assert.Equal(t, StatusDraft, d.Status)
	assert.False(t, d.Published)
	assert.NotEmpty(t, d.Message)
}

func TestEvaluatePublish_SimpleConfigured(t *testing.T) {
	shape := SimpleShape{BaseStock: intPtr(10), MinStock: intPtr(5)}
	d := EvaluatePublish(shape, true)
	assert.True(t, d.CanPublish)
	assert.Equal(t, StatusSelling, d.Status)
	assert.True(t, d.Published)
}

func TestEvaluatePublish_SimpleZeroStock(t *testing.T) {
	// Publish with zero stock is allowed but flagged unavailable.
	shape := SimpleShape{BaseStock: intPtr(0), MinStock: intPtr(5)}
	d := EvaluatePublish(shape, true)
	assert.True(t, d.CanPublish)
	assert.Equal(t, StatusOutOfStock, d.Status)
	assert.True(t, d.Published)
}

func TestEvaluatePublish_SimpleLowStock(t *testing.T) {
	shape := SimpleShape{BaseStock: intPtr(3), MinStock: intPtr(5)}
	d := EvaluatePublish(shape, true)
	assert.True(t, d.CanPublish)
	assert.Equal(t, StatusLowStock, d.Status)
	assert.True(t, d.Published)
}

func TestEvaluatePublish_SimpleUnpublish(t *testing.T) {
	shape := SimpleShape{BaseStock: intPtr(10), MinStock: intPtr(5)}
	d := EvaluatePublish(shape, false)
	assert.True(t, d.CanPublish)
	assert.Equal(t, StatusArchived, d.Status)
	assert.False(t, d.Published)
}

// ============================================================================
// Product.Shape Tests
// ============================================================================

func TestShape_Digital(t *testing.T) {
	p := &Product{Type: ProductTypeDigital, Structure: StructureSimple}
	_, ok := p.Shape().(DigitalShape)
	assert.True(t, ok)
}

func TestShape_Simple(t *testing.T) {
	p := &Product{Type: ProductTypePhysical, Structure: StructureSimple, BaseStock: intPtr(4)}
	s, ok := p.Shape().(SimpleShape)
	assert.True(t, ok)
	assert.Equal(t, 4, *s.BaseStock)
}

func TestShape_Variant(t *testing.T) {
	p := &Product{Type: ProductTypePhysical, Structure: StructureVariant, Variants: []Variant{{ID: "a"}}}
	s, ok := p.Shape().(VariantShape)
	assert.True(t, ok)
	assert.Len(t, s.Variants, 1)
}
