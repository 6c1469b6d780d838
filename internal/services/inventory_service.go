package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/craftlane/api/internal/domain"
	"github.com/craftlane/api/internal/repositories"
)

var (
	// ErrInventoryInvalidInput marks malformed ledger requests.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	// ErrInventoryNotFound marks targets that do not exist or are not owned
	// by the caller.
	ErrInventoryNotFound = errors.New("inventory: not found")
	// ErrInventoryConflict marks an adjustment that lost a concurrent-update race.
	ErrInventoryConflict = errors.New("inventory: conflict")
)

const (
	defaultLowStockThreshold = 5
	defaultRecentChanges     = 10
)

// InventoryServiceDeps wires the ledger's collaborators. Events is optional;
// without it committed entries are simply not published.
type InventoryServiceDeps struct {
	Inventory         repositories.InventoryRepository
	Products          repositories.ProductRepository
	Variants          repositories.VariantRepository
	Events            LedgerEventPublisher
	LowStockThreshold int64
	RecentChanges     int
	Clock             func() time.Time
	IDGenerator       func() string
	Logger            func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	inventory     repositories.InventoryRepository
	products      repositories.ProductRepository
	variants      repositories.VariantRepository
	events        LedgerEventPublisher
	threshold     int64
	recentChanges int
	now           func() time.Time
	newID         func() string
	logger        func(ctx context.Context, event string, fields map[string]any)
}

var _ InventoryService = (*inventoryService)(nil)

// NewInventoryService wires the sole quantity write path plus its read-only
// projections.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Inventory == nil {
		return nil, errors.New("inventory service requires inventory repository")
	}
	if deps.Products == nil {
		return nil, errors.New("inventory service requires product repository")
	}
	if deps.Variants == nil {
		return nil, errors.New("inventory service requires variant repository")
	}
	threshold := deps.LowStockThreshold
	if threshold <= 0 {
		threshold = defaultLowStockThreshold
	}
	recent := deps.RecentChanges
	if recent <= 0 {
		recent = defaultRecentChanges
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &inventoryService{
		inventory:     deps.Inventory,
		products:      deps.Products,
		variants:      deps.Variants,
		events:        deps.Events,
		threshold:     threshold,
		recentChanges: recent,
		now:           func() time.Time { return clock().UTC() },
		newID:         newID,
		logger:        logger,
	}, nil
}

func (s *inventoryService) Adjust(ctx context.Context, cmd InventoryAdjustCommand) (domain.InventoryLogEntry, error) {
	target, err := resolveTarget(cmd.ProductID, cmd.VariantID)
	if err != nil {
		return domain.InventoryLogEntry{}, err
	}
	if cmd.NewQuantity < 0 {
		return domain.InventoryLogEntry{}, fmt.Errorf("%w: quantity must not be negative", ErrInventoryInvalidInput)
	}
	if !cmd.ChangeType.Valid() {
		return domain.InventoryLogEntry{}, fmt.Errorf("%w: unknown change type %q", ErrInventoryInvalidInput, cmd.ChangeType)
	}
	actorID := strings.TrimSpace(cmd.ActorID)
	if actorID == "" {
		return domain.InventoryLogEntry{}, fmt.Errorf("%w: actor id is required", ErrInventoryInvalidInput)
	}
	if cmd.Price != nil || cmd.Cost != nil {
		if !target.IsVariant() {
			return domain.InventoryLogEntry{}, fmt.Errorf("%w: price and cost apply to variant targets only", ErrInventoryInvalidInput)
		}
		if cmd.Price != nil && *cmd.Price < 0 {
			return domain.InventoryLogEntry{}, fmt.Errorf("%w: price must not be negative", ErrInventoryInvalidInput)
		}
		if cmd.Cost != nil && *cmd.Cost < 0 {
			return domain.InventoryLogEntry{}, fmt.Errorf("%w: cost must not be negative", ErrInventoryInvalidInput)
		}
	}

	result, err := s.inventory.Adjust(ctx, repositories.InventoryAdjustRequest{
		Target:      target,
		OwnerID:     strings.TrimSpace(cmd.OwnerID),
		NewQuantity: cmd.NewQuantity,
		ChangeType:  cmd.ChangeType,
		ActorID:     actorID,
		Notes:       strings.TrimSpace(cmd.Notes),
		EntryID:     s.newID(),
		Now:         s.now(),
		Price:       cmd.Price,
		Cost:        cmd.Cost,
	})
	if err != nil {
		return domain.InventoryLogEntry{}, s.mapRepositoryError(err)
	}

	s.publishEntry(ctx, result.Entry)
	return result.Entry, nil
}

func (s *inventoryService) Statistics(ctx context.Context, ownerID string) (domain.InventoryStats, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return domain.InventoryStats{}, fmt.Errorf("%w: owner id is required", ErrInventoryInvalidInput)
	}

	products, err := s.products.ListByOwner(ctx, ownerID)
	if err != nil {
		return domain.InventoryStats{}, s.mapRepositoryError(err)
	}
	variants, err := s.variants.ListByOwner(ctx, ownerID)
	if err != nil {
		return domain.InventoryStats{}, s.mapRepositoryError(err)
	}
	recent, err := s.inventory.RecentLogs(ctx, ownerID, s.recentChanges)
	if err != nil {
		return domain.InventoryStats{}, s.mapRepositoryError(err)
	}

	stats := domain.InventoryStats{
		TotalProducts: len(products),
		TotalVariants: len(variants),
		RecentChanges: recent,
		GeneratedAt:   s.now(),
	}
	for _, p := range products {
		switch domain.ClassifyStock(p.Quantity, s.threshold) {
		case domain.StockStatusOut:
			stats.OutOfStockProducts++
		case domain.StockStatusLow:
			stats.LowStockProducts++
		}
	}
	for _, v := range variants {
		switch domain.ClassifyStock(v.Quantity, s.threshold) {
		case domain.StockStatusOut:
			stats.OutOfStockVariants++
		case domain.StockStatusLow:
			stats.LowStockVariants++
		}
	}
	return stats, nil
}

func (s *inventoryService) Logs(ctx context.Context, query InventoryLogsQuery) (domain.CursorPage[domain.InventoryLogEntry], error) {
	target, err := resolveTarget(query.ProductID, query.VariantID)
	if err != nil {
		return domain.CursorPage[domain.InventoryLogEntry]{}, err
	}
	page, err := s.inventory.ListLogs(ctx, repositories.InventoryLogQuery{
		Target: target,
		Pager:  query.Pager,
	})
	if err != nil {
		return domain.CursorPage[domain.InventoryLogEntry]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// publishEntry emits the committed entry to the audit topic. Publish failure
// is logged, never surfaced: the ledger write already committed.
func (s *inventoryService) publishEntry(ctx context.Context, entry domain.InventoryLogEntry) {
	if s.events == nil {
		return
	}
	messageID, err := s.events.PublishLedgerEntry(ctx, LedgerEventMessage{
		EntryID:          entry.ID,
		ProductID:        entry.ProductID,
		VariantID:        entry.VariantID,
		PreviousQuantity: entry.PreviousQuantity,
		NewQuantity:      entry.NewQuantity,
		ChangeAmount:     entry.ChangeAmount,
		ChangeType:       string(entry.ChangeType),
		ActorID:          entry.ActorID,
		Notes:            entry.Notes,
		OccurredAt:       entry.CreatedAt,
	})
	if err != nil {
		s.logger(ctx, "inventory.event_publish_failed", map[string]any{
			"entry_id": entry.ID,
			"error":    err.Error(),
		})
		return
	}
	s.logger(ctx, "inventory.event_published", map[string]any{
		"entry_id":   entry.ID,
		"message_id": messageID,
	})
}

func resolveTarget(productID, variantID string) (repositories.InventoryTarget, error) {
	productID = strings.TrimSpace(productID)
	variantID = strings.TrimSpace(variantID)
	switch {
	case productID == "" && variantID == "":
		return repositories.InventoryTarget{}, fmt.Errorf("%w: a product or variant target is required", ErrInventoryInvalidInput)
	case productID != "" && variantID != "":
		return repositories.InventoryTarget{}, fmt.Errorf("%w: target must be a product or a variant, not both", ErrInventoryInvalidInput)
	}
	return repositories.InventoryTarget{ProductID: productID, VariantID: variantID}, nil
}

func (s *inventoryService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var ledgerErr *repositories.LedgerError
	if errors.As(err, &ledgerErr) {
		switch ledgerErr.Code {
		case repositories.LedgerErrorTargetNotFound, repositories.LedgerErrorNotOwned:
			return fmt.Errorf("%w: %s", ErrInventoryNotFound, ledgerErr.Message)
		case repositories.LedgerErrorConflict:
			return fmt.Errorf("%w: %s", ErrInventoryConflict, ledgerErr.Message)
		}
		return err
	}
	var variantErr *repositories.VariantError
	if errors.As(err, &variantErr) {
		switch variantErr.Code {
		case repositories.VariantErrorNotFound, repositories.VariantErrorProductNotFound, repositories.VariantErrorNotOwned:
			return fmt.Errorf("%w: %s", ErrInventoryNotFound, variantErr.Message)
		}
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrInventoryNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrInventoryConflict, err)
		}
	}
	return err
}
