package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps a page of results with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// ProductStatus enumerates lifecycle states for supplier products.
type ProductStatus string

const (
	// ProductStatusDraft marks products not yet visible in the catalog.
	ProductStatusDraft ProductStatus = "draft"
	// ProductStatusActive marks products available for ordering.
	ProductStatusActive ProductStatus = "active"
	// ProductStatusArchived marks products withdrawn from the catalog.
	ProductStatusArchived ProductStatus = "archived"
)

// Product is a supplier-owned catalog entry. Quantity is meaningful only
// while the product has no variants; once variants exist, stock lives on
// the variants.
type Product struct {
	ID         string
	OwnerID    string
	CategoryID string
	BaseSKU    string
	Name       string
	Price      int64
	Cost       int64
	Quantity   int64
	Status     ProductStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// VariationType describes one axis of variation (e.g. Size) with its
// allowed option values in display order.
type VariationType struct {
	Name        string
	DisplayName string
	Options     []string
}

// VariationTemplate binds a category to its ordered variation types.
type VariationTemplate struct {
	CategoryID string
	Types      []VariationType
	UpdatedAt  time.Time
}

// OptionPair is one (variation type, chosen value) element of a variant's
// option signature.
type OptionPair struct {
	TypeName string
	Value    string
}

// Variant is a concrete sellable combination of option values for a
// product. Two variants of the same product never share an option
// signature, and SKU is unique within the owner's namespace.
type Variant struct {
	ID        string
	ProductID string
	OwnerID   string
	Options   []OptionPair
	SKU       string
	Price     int64
	Cost      int64
	Quantity  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SignatureKey renders the option signature in template order as a single
// comparable string.
func (v Variant) SignatureKey() string {
	return SignatureKey(v.Options)
}

// SignatureKey builds the canonical comparable form of an option signature.
func SignatureKey(options []OptionPair) string {
	if len(options) == 0 {
		return ""
	}
	size := 0
	for _, pair := range options {
		size += len(pair.TypeName) + len(pair.Value) + 2
	}
	buf := make([]byte, 0, size)
	for i, pair := range options {
		if i > 0 {
			buf = append(buf, '|')
		}
		buf = append(buf, pair.TypeName...)
		buf = append(buf, '=')
		buf = append(buf, pair.Value...)
	}
	return string(buf)
}

// ChangeType enumerates the causes of an inventory quantity change.
type ChangeType string

const (
	// ChangeTypeManual records an operator-initiated quantity edit.
	ChangeTypeManual ChangeType = "manual"
	// ChangeTypeOrder records consumption by a placed order.
	ChangeTypeOrder ChangeType = "order"
	// ChangeTypeReturn records replenishment from a returned order.
	ChangeTypeReturn ChangeType = "return"
	// ChangeTypeAdjustment records a stock-take correction.
	ChangeTypeAdjustment ChangeType = "adjustment"
	// ChangeTypeSync records an external-system synchronisation.
	ChangeTypeSync ChangeType = "sync"
)

// Valid reports whether the change type is one of the enumerated causes.
func (c ChangeType) Valid() bool {
	switch c {
	case ChangeTypeManual, ChangeTypeOrder, ChangeTypeReturn, ChangeTypeAdjustment, ChangeTypeSync:
		return true
	}
	return false
}

// InventoryLogEntry is one immutable row of the append-only quantity
// ledger. VariantID is empty when the product-level quantity was adjusted.
type InventoryLogEntry struct {
	ID               string
	ProductID        string
	VariantID        string
	PreviousQuantity int64
	NewQuantity      int64
	ChangeAmount     int64
	ChangeType       ChangeType
	ActorID          string
	Notes            string
	CreatedAt        time.Time
}

// StockStatus classifies a quantity against the low-stock threshold.
type StockStatus string

const (
	// StockStatusOut means quantity is zero.
	StockStatusOut StockStatus = "out_of_stock"
	// StockStatusLow means quantity is positive but at or below the threshold.
	StockStatusLow StockStatus = "low_stock"
	// StockStatusIn means quantity is above the threshold.
	StockStatusIn StockStatus = "in_stock"
)

// ClassifyStock maps a quantity to its stock status for the given threshold.
func ClassifyStock(quantity, threshold int64) StockStatus {
	switch {
	case quantity == 0:
		return StockStatusOut
	case quantity <= threshold:
		return StockStatusLow
	default:
		return StockStatusIn
	}
}

// InventoryStats is a read-only projection over an owner's catalog.
type InventoryStats struct {
	TotalProducts      int
	TotalVariants      int
	LowStockProducts   int
	LowStockVariants   int
	OutOfStockProducts int
	OutOfStockVariants int
	RecentChanges      []InventoryLogEntry
	GeneratedAt        time.Time
}
