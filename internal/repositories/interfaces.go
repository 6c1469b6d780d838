package repositories

import (
	"context"
	"time"

	domain "github.com/craftlane/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// TemplateRepository reads category variation templates. Templates are owned
// by category configuration and are read-only to this service.
type TemplateRepository interface {
	GetTemplate(ctx context.Context, categoryID string) (domain.VariationTemplate, error)
}

// ProductRepository reads supplier products. Quantity writes go through
// InventoryRepository.Adjust only.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Product, error)
}

// VariantRepository persists product variants with the uniqueness guarantees
// the generator relies on.
type VariantRepository interface {
	FindByID(ctx context.Context, variantID string) (domain.Variant, error)
	ListByProduct(ctx context.Context, productID string) ([]domain.Variant, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Variant, error)
	ListSKUs(ctx context.Context, ownerID string) ([]string, error)
	// CreateBatch persists the supplied variants atomically, re-verifying
	// option-signature uniqueness per product and SKU uniqueness per owner
	// inside the transaction. Concurrent generators lose with a conflict.
	CreateBatch(ctx context.Context, req VariantCreateBatchRequest) ([]domain.Variant, error)
	// UpdateFields applies price/cost updates. Quantity is rejected here;
	// it belongs to the ledger.
	UpdateFields(ctx context.Context, req VariantFieldUpdate) (domain.Variant, error)
	Delete(ctx context.Context, variantID string) error
}

// VariantCreateBatchRequest carries the new variants for one product.
type VariantCreateBatchRequest struct {
	ProductID string
	OwnerID   string
	Variants  []domain.Variant
	Now       time.Time
}

// VariantFieldUpdate applies a partial price/cost edit to one variant.
type VariantFieldUpdate struct {
	VariantID string
	OwnerID   string
	Price     *int64
	Cost      *int64
	Now       time.Time
}

// InventoryTarget names either a product or one of its variants. Exactly one
// of the two identifiers is set.
type InventoryTarget struct {
	ProductID string
	VariantID string
}

// IsVariant reports whether the target addresses a variant.
func (t InventoryTarget) IsVariant() bool { return t.VariantID != "" }

// InventoryAdjustRequest sets the target's quantity and appends one log entry
// in a single transaction. PreviousQuantity and ChangeAmount are computed
// inside the transaction from the stored quantity.
type InventoryAdjustRequest struct {
	Target      InventoryTarget
	OwnerID     string
	NewQuantity int64
	ChangeType  domain.ChangeType
	ActorID     string
	Notes       string
	EntryID     string
	Now         time.Time
	// Price and Cost, when set, are written to the variant in the same
	// transaction as the quantity and log entry, so a mixed edit either
	// commits whole or not at all. Variant targets only.
	Price *int64
	Cost  *int64
}

// InventoryAdjustResult reports the committed log entry.
type InventoryAdjustResult struct {
	Entry domain.InventoryLogEntry
}

// InventoryLogQuery selects the ledger history for one target, oldest first.
type InventoryLogQuery struct {
	Target InventoryTarget
	Pager  domain.Pagination
}

// InventoryRepository is the sole quantity write path and the ledger store.
type InventoryRepository interface {
	Adjust(ctx context.Context, req InventoryAdjustRequest) (InventoryAdjustResult, error)
	ListLogs(ctx context.Context, query InventoryLogQuery) (domain.CursorPage[domain.InventoryLogEntry], error)
	RecentLogs(ctx context.Context, ownerID string, limit int) ([]domain.InventoryLogEntry, error)
}

// HealthRepository aggregates dependency probes for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
