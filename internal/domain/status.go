package domain

// DeriveStatus maps a quantity and reorder threshold to a stock status. The
// boundaries are exact: quantity equal to minStock is low_stock, not selling,
// and zero quantity is out_of_stock, not low_stock. Draft and archived are
// never produced here; they are set only through the publication gate.
func DeriveStatus(quantity, minStock int) string {
	switch {
	case quantity <= 0:
		return StatusOutOfStock
	case quantity <= minStock:
		return StatusLowStock
	default:
		return StatusSelling
	}
}

// AggregateState is the derived top-level state of a variant-structured
// product, recomputed from the full variant list on every sync.
type AggregateState struct {
	Status    string
	Published bool
}

// AggregateVariantState derives a variant product's top-level status and
// published flag from its variants. Recomputing from the full list on every
// call is cheap at catalog scale and avoids counter drift.
//
// Classification: a variant is available when published and selling, and
// low-stock-available when published and low_stock. With no variants in
// either class, the product is out_of_stock when every non-archived variant
// is out_of_stock (archived variants are excluded from that check), and
// draft otherwise. When every available variant is low-stock the product is
// low_stock; otherwise it is selling.
func AggregateVariantState(variants []Variant) AggregateState {
	var available, lowStock int
	allOut := true

	for i := range variants {
		v := &variants[i]
		switch {
		case v.Published && v.Status == StatusSelling:
			available++
		case v.Published && v.Status == StatusLowStock:
			lowStock++
		}
		if v.Status != StatusOutOfStock && v.Status != StatusArchived {
			allOut = false
		}
	}

	if available == 0 && lowStock == 0 {
		if len(variants) > 0 && allOut {
			return AggregateState{Status: StatusOutOfStock, Published: true}
		}
		return AggregateState{Status: StatusDraft, Published: false}
	}

	if available == 0 {
		return AggregateState{Status: StatusLowStock, Published: true}
	}

	return AggregateState{Status: StatusSelling, Published: true}
}
