package domain

import (
	"time"
)

// Product type constants.
const (
	ProductTypePhysical = "physical"
	ProductTypeDigital  = "digital"
)

// Product structure constants.
const (
	StructureSimple  = "simple"
	StructureVariant = "variant"
)

// Product status constants. The same enum applies to individual variants.
const (
	StatusDraft      = "draft"
	StatusSelling    = "selling"
	StatusLowStock   = "low_stock"
	StatusOutOfStock = "out_of_stock"
	StatusArchived   = "archived"
)

// Product represents a catalog item. A simple product carries its own stock
// fields; a variant product delegates stock entirely to its variants and its
// top-level status/published are derived, never set independently.
type Product struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Type      string     `json:"product_type"`
	Structure string     `json:"product_structure"`
	BaseStock *int       `json:"base_stock,omitempty"`
	MinStock  *int       `json:"min_stock,omitempty"`
	Status    string     `json:"status"`
	Published bool       `json:"published"`
	Variants  []Variant  `json:"variants,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Variant is a sellable unit of a variant-structured product.
type Variant struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	Stock     int       `json:"stock"`
	MinStock  int       `json:"min_stock"`
	Status    string    `json:"status"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDigital returns true when the product tracks no stock at all.
func (p *Product) IsDigital() bool {
	return p.Type == ProductTypeDigital
}

// HasVariants returns true when the product's structure is variant.
func (p *Product) HasVariants() bool {
	return p.Structure == StructureVariant
}

// VariantByID returns the variant with the given id, or nil if absent.
func (p *Product) VariantByID(id string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

// ValidStatuses returns the set of valid product and variant statuses.
func ValidStatuses() []string {
	return []string{StatusDraft, StatusSelling, StatusLowStock, StatusOutOfStock, StatusArchived}
}

// IsValidStatus checks whether the given status is a valid product status.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// ValidProductTypes returns the set of valid product types.
func ValidProductTypes() []string {
	return []string{ProductTypePhysical, ProductTypeDigital}
}

// ValidStructures returns the set of valid product structures.
func ValidStructures() []string {
	return []string{StructureSimple, StructureVariant}
}
