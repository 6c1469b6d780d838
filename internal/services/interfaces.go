package services

import (
	"context"
	"time"

	domain "github.com/craftlane/api/internal/domain"
)

// Domain aliases keep handler signatures terse without re-exporting the
// domain package wholesale.
type (
	Product           = domain.Product
	Variant           = domain.Variant
	VariationType     = domain.VariationType
	VariationTemplate = domain.VariationTemplate
	InventoryLogEntry = domain.InventoryLogEntry
	InventoryStats    = domain.InventoryStats
)

// CategoryClassifier derives the coarse classification used to key the
// default-options table. The derivation is owned by the caller; the catalog
// only consumes its output.
type CategoryClassifier func(categoryID string) string

// VariationCatalogService resolves the variation types and option values
// applicable to a category.
type VariationCatalogService interface {
	ResolveTypes(ctx context.Context, categoryID string) ([]VariationType, error)
	ResolveOptions(ctx context.Context, categoryID, typeName string) ([]string, error)
}

// VariantGenerateCommand describes one generation request. Selection maps
// every applicable variation type to the chosen option values.
type VariantGenerateCommand struct {
	ProductID string
	OwnerID   string
	ActorID   string
	Selection map[string][]string
}

// VariantDeleteCommand removes one variant owned by the caller.
type VariantDeleteCommand struct {
	VariantID string
	OwnerID   string
	ActorID   string
}

// VariantService owns variant creation and lifecycle.
type VariantService interface {
	// Generate expands the selection into the cartesian product of variants,
	// skipping signatures that already exist, and returns the product's full
	// variant set after generation in creation order.
	Generate(ctx context.Context, cmd VariantGenerateCommand) ([]Variant, error)
	ListVariants(ctx context.Context, productID string) ([]Variant, error)
	DeleteVariant(ctx context.Context, cmd VariantDeleteCommand) error
}

// InventoryAdjustCommand sets a new absolute quantity for one target.
// Exactly one of ProductID/VariantID is set.
type InventoryAdjustCommand struct {
	ProductID   string
	VariantID   string
	OwnerID     string
	NewQuantity int64
	ChangeType  domain.ChangeType
	ActorID     string
	Notes       string
	// Price and Cost optionally update the variant's fields in the same
	// transaction as the quantity and log entry. Variant targets only.
	Price *int64
	Cost  *int64
}

// InventoryLogsQuery selects the ledger history for one target.
type InventoryLogsQuery struct {
	ProductID string
	VariantID string
	Pager     domain.Pagination
}

// InventoryService is the ledger boundary: the sole quantity write path,
// plus read-only projections.
type InventoryService interface {
	Adjust(ctx context.Context, cmd InventoryAdjustCommand) (InventoryLogEntry, error)
	Statistics(ctx context.Context, ownerID string) (InventoryStats, error)
	Logs(ctx context.Context, query InventoryLogsQuery) (domain.CursorPage[InventoryLogEntry], error)
}

// VariantEdit is one item of a bulk edit. Nil fields are left untouched.
type VariantEdit struct {
	VariantID string
	Price     *int64
	Cost      *int64
	Quantity  *int64
}

// BulkEditCommand applies independent per-variant field edits.
type BulkEditCommand struct {
	OwnerID string
	ActorID string
	Edits   []VariantEdit
}

// BulkQuantityCommand sets the same quantity on every listed variant.
type BulkQuantityCommand struct {
	OwnerID    string
	ActorID    string
	VariantIDs []string
	Quantity   int64
	Notes      string
}

// BulkFailure reports one item that could not be applied.
type BulkFailure struct {
	VariantID string
	Reason    string
}

// BulkResult itemizes per-item outcomes. The call itself succeeds even when
// some items fail; the caller decides whether the batch "succeeded".
type BulkResult struct {
	Updated  []Variant
	Failures []BulkFailure
}

// BulkService coordinates batched edits with per-item atomicity.
type BulkService interface {
	BulkEditVariants(ctx context.Context, cmd BulkEditCommand) (BulkResult, error)
	BulkSetQuantity(ctx context.Context, cmd BulkQuantityCommand) (BulkResult, error)
}

// LedgerEventMessage is the audit event published for every committed ledger entry.
type LedgerEventMessage struct {
	EntryID          string    `json:"entryId"`
	ProductID        string    `json:"productId"`
	VariantID        string    `json:"variantId,omitempty"`
	PreviousQuantity int64     `json:"previousQuantity"`
	NewQuantity      int64     `json:"newQuantity"`
	ChangeAmount     int64     `json:"changeAmount"`
	ChangeType       string    `json:"changeType"`
	ActorID          string    `json:"actorId"`
	Notes            string    `json:"notes,omitempty"`
	OccurredAt       time.Time `json:"occurredAt"`
}

// LedgerEventPublisher delivers committed ledger entries to downstream consumers.
type LedgerEventPublisher interface {
	PublishLedgerEntry(ctx context.Context, message LedgerEventMessage) (string, error)
}
