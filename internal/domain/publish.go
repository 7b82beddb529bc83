package domain

// StockShape is the structural shape of a product for publication purposes.
// Exactly three implementations exist: DigitalShape, SimpleShape, and
// VariantShape. The publication gate matches exhaustively on the shape
// instead of probing optional fields.
type StockShape interface {
	isStockShape()
}

// DigitalShape marks a product that tracks no stock and is always available.
type DigitalShape struct{}

// SimpleShape carries the stock configuration of a simple physical product.
// Nil fields mean the value was never configured.
type SimpleShape struct {
	BaseStock *int
	MinStock  *int
}

// VariantShape carries the variants of a variant-structured product.
type VariantShape struct {
	Variants []Variant
}

func (DigitalShape) isStockShape() {}
func (SimpleShape) isStockShape()  {}
func (VariantShape) isStockShape() {}

// Shape returns the product's stock shape for publication evaluation.
func (p *Product) Shape() StockShape {
	if p.IsDigital() {
		return DigitalShape{}
	}
	if p.HasVariants() {
		return VariantShape{Variants: p.Variants}
	}
	return SimpleShape{BaseStock: p.BaseStock, MinStock: p.MinStock}
}

// PublishDecision is the publication gate's verdict. A refusal is an
// expected, user-actionable outcome, so it carries a human-readable message
// and the stock snapshot that produced it rather than an error.
type PublishDecision struct {
	CanPublish bool   `json:"can_publish"`
	Status     string `json:"status"`
	Published  bool   `json:"published"`
	Message    string `json:"message,omitempty"`
	BaseStock  *int   `json:"base_stock,omitempty"`
	MinStock   *int   `json:"min_stock,omitempty"`
}

// EvaluatePublish decides whether a publish or unpublish request is allowed
// for the given shape, and what status and published value it implies.
// Publish and unpublish are reversible at will; the only hard refusals are a
// variant product with no variants and a simple product with no stock
// configuration at all.
func EvaluatePublish(shape StockShape, requested bool) PublishDecision {
	switch s := shape.(type) {
	case DigitalShape:
		// Digital products have no stock precondition.
		return PublishDecision{
			CanPublish: true,
			Status:     StatusSelling,
			Published:  requested,
		}

	case VariantShape:
		if !requested {
			return PublishDecision{
				CanPublish: true,
				Status:     StatusArchived,
				Published:  false,
			}
		}
		if len(s.Variants) == 0 {
			return PublishDecision{
				CanPublish: false,
				Status:     StatusDraft,
				Published:  false,
				Message:    "cannot publish a variant product without variants; add at least one variant first",
			}
		}
		for i := range s.Variants {
			if s.Variants[i].Published && s.Variants[i].Status == StatusSelling {
				return PublishDecision{
					CanPublish: true,
					Status:     StatusSelling,
					Published:  true,
				}
			}
		}
		// Publish is allowed even when nothing is sellable; the product is
		// flagged unavailable instead of refused.
		return PublishDecision{
			CanPublish: true,
			Status:     StatusOutOfStock,
			Published:  true,
			Message:    "no variant is published and in stock; product will show as out of stock",
		}

	case SimpleShape:
		if !requested {
			return PublishDecision{
				CanPublish: true,
				Status:     StatusArchived,
				Published:  false,
				BaseStock:  s.BaseStock,
				MinStock:   s.MinStock,
			}
		}
		if s.BaseStock == nil && s.MinStock == nil {
			return PublishDecision{
				CanPublish: false,
				Status:     StatusDraft,
				Published:  false,
				Message:    "configure base stock and minimum stock before publishing",
			}
		}
		base := 0
		if s.BaseStock != nil {
			base = *s.BaseStock
		}
		min := 0
		if s.MinStock != nil {
			min = *s.MinStock
		}
		if base == 0 {
			// Publish with zero stock is allowed but flagged unavailable.
			return PublishDecision{
				CanPublish: true,
				Status:     StatusOutOfStock,
				Published:  true,
				Message:    "base stock is zero; product will show as out of stock",
				BaseStock:  s.BaseStock,
				MinStock:   s.MinStock,
			}
		}
		return PublishDecision{
			CanPublish: true,
			Status:     DeriveStatus(base, min),
			Published:  true,
			BaseStock:  s.BaseStock,
			MinStock:   s.MinStock,
		}
	}

	return PublishDecision{
		CanPublish: false,
		Status:     StatusDraft,
		Published:  false,
		Message:    "unknown product shape",
	}
}
