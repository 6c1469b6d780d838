package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/craftlane/api/internal/domain"
	"github.com/craftlane/api/internal/repositories"
)

// ErrBulkInvalidInput marks batch-level validation failures. Item-level
// failures never produce this; they land in BulkResult.Failures.
var ErrBulkInvalidInput = errors.New("bulk: invalid input")

const (
	defaultBulkWorkers  = 8
	defaultBulkMaxItems = 200
)

// BulkServiceDeps wires the coordinator's collaborators. Quantity edits route
// through Inventory so every change produces a ledger entry.
type BulkServiceDeps struct {
	Variants  repositories.VariantRepository
	Inventory InventoryService
	Workers   int
	MaxItems  int
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type bulkService struct {
	variants  repositories.VariantRepository
	inventory InventoryService
	workers   int
	maxItems  int
	now       func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
}

var _ BulkService = (*bulkService)(nil)

// NewBulkService wires the bounded-concurrency bulk coordinator.
func NewBulkService(deps BulkServiceDeps) (BulkService, error) {
	if deps.Variants == nil {
		return nil, errors.New("bulk service requires variant repository")
	}
	if deps.Inventory == nil {
		return nil, errors.New("bulk service requires inventory service")
	}
	workers := deps.Workers
	if workers <= 0 {
		workers = defaultBulkWorkers
	}
	maxItems := deps.MaxItems
	if maxItems <= 0 {
		maxItems = defaultBulkMaxItems
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &bulkService{
		variants:  deps.Variants,
		inventory: deps.Inventory,
		workers:   workers,
		maxItems:  maxItems,
		now:       func() time.Time { return clock().UTC() },
		logger:    logger,
	}, nil
}

func (s *bulkService) BulkEditVariants(ctx context.Context, cmd BulkEditCommand) (BulkResult, error) {
	ownerID := strings.TrimSpace(cmd.OwnerID)
	if ownerID == "" {
		return BulkResult{}, fmt.Errorf("%w: owner id is required", ErrBulkInvalidInput)
	}
	actorID := strings.TrimSpace(cmd.ActorID)
	if actorID == "" {
		return BulkResult{}, fmt.Errorf("%w: actor id is required", ErrBulkInvalidInput)
	}
	if len(cmd.Edits) == 0 {
		return BulkResult{}, fmt.Errorf("%w: at least one edit is required", ErrBulkInvalidInput)
	}
	if len(cmd.Edits) > s.maxItems {
		return BulkResult{}, fmt.Errorf("%w: batch exceeds %d items", ErrBulkInvalidInput, s.maxItems)
	}
	return s.run(ctx, ownerID, actorID, "", cmd.Edits), nil
}

func (s *bulkService) BulkSetQuantity(ctx context.Context, cmd BulkQuantityCommand) (BulkResult, error) {
	ownerID := strings.TrimSpace(cmd.OwnerID)
	if ownerID == "" {
		return BulkResult{}, fmt.Errorf("%w: owner id is required", ErrBulkInvalidInput)
	}
	actorID := strings.TrimSpace(cmd.ActorID)
	if actorID == "" {
		return BulkResult{}, fmt.Errorf("%w: actor id is required", ErrBulkInvalidInput)
	}
	if cmd.Quantity < 0 {
		return BulkResult{}, fmt.Errorf("%w: quantity must not be negative", ErrBulkInvalidInput)
	}
	if len(cmd.VariantIDs) == 0 {
		return BulkResult{}, fmt.Errorf("%w: at least one variant is required", ErrBulkInvalidInput)
	}
	if len(cmd.VariantIDs) > s.maxItems {
		return BulkResult{}, fmt.Errorf("%w: batch exceeds %d items", ErrBulkInvalidInput, s.maxItems)
	}

	quantity := cmd.Quantity
	edits := make([]VariantEdit, 0, len(cmd.VariantIDs))
	for _, id := range cmd.VariantIDs {
		edits = append(edits, VariantEdit{VariantID: id, Quantity: &quantity})
	}
	return s.run(ctx, ownerID, actorID, strings.TrimSpace(cmd.Notes), edits), nil
}

type bulkItemOutcome struct {
	variant *domain.Variant
	failure *BulkFailure
}

// run fans the edits out over the worker pool. Each item succeeds or fails on
// its own; outcomes are reported in input order.
func (s *bulkService) run(ctx context.Context, ownerID, actorID, notes string, edits []VariantEdit) BulkResult {
	outcomes := make([]bulkItemOutcome, len(edits))
	indexes := make(chan int)

	var wg sync.WaitGroup
	workers := s.workers
	if workers > len(edits) {
		workers = len(edits)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				outcomes[i] = s.applyEdit(ctx, ownerID, actorID, notes, edits[i])
			}
		}()
	}
	for i := range edits {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	result := BulkResult{}
	for _, outcome := range outcomes {
		if outcome.failure != nil {
			result.Failures = append(result.Failures, *outcome.failure)
			continue
		}
		if outcome.variant != nil {
			result.Updated = append(result.Updated, *outcome.variant)
		}
	}
	s.logger(ctx, "bulk.completed", map[string]any{
		"items":    len(edits),
		"updated":  len(result.Updated),
		"failures": len(result.Failures),
	})
	return result
}

func (s *bulkService) applyEdit(ctx context.Context, ownerID, actorID, notes string, edit VariantEdit) bulkItemOutcome {
	variantID := strings.TrimSpace(edit.VariantID)
	if variantID == "" {
		return failureOutcome(edit.VariantID, "variant id is required")
	}
	if edit.Quantity == nil && edit.Price == nil && edit.Cost == nil {
		return failureOutcome(variantID, "no fields to edit")
	}

	// Quantity edits carry any price/cost change into the same ledger
	// transaction, so the item commits whole or not at all.
	if edit.Quantity != nil {
		if _, err := s.inventory.Adjust(ctx, InventoryAdjustCommand{
			VariantID:   variantID,
			OwnerID:     ownerID,
			NewQuantity: *edit.Quantity,
			ChangeType:  domain.ChangeTypeManual,
			ActorID:     actorID,
			Notes:       notes,
			Price:       edit.Price,
			Cost:        edit.Cost,
		}); err != nil {
			return failureOutcome(variantID, failureReason(err))
		}
		// Re-read for the response.
		updated, err := s.variants.FindByID(ctx, variantID)
		if err != nil {
			return failureOutcome(variantID, failureReason(err))
		}
		return bulkItemOutcome{variant: &updated}
	}

	updated, err := s.variants.UpdateFields(ctx, repositories.VariantFieldUpdate{
		VariantID: variantID,
		OwnerID:   ownerID,
		Price:     edit.Price,
		Cost:      edit.Cost,
		Now:       s.now(),
	})
	if err != nil {
		return failureOutcome(variantID, failureReason(err))
	}
	return bulkItemOutcome{variant: &updated}
}

func failureOutcome(variantID, reason string) bulkItemOutcome {
	return bulkItemOutcome{failure: &BulkFailure{VariantID: variantID, Reason: reason}}
}

// failureReason renders a stable, caller-facing reason for one failed item.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInventoryInvalidInput), errors.Is(err, ErrVariantInvalidInput):
		return err.Error()
	case errors.Is(err, ErrInventoryNotFound), errors.Is(err, ErrVariantNotFound):
		return "not found"
	case errors.Is(err, ErrInventoryConflict), errors.Is(err, ErrVariantConflict):
		return "conflict"
	}
	var variantErr *repositories.VariantError
	if errors.As(err, &variantErr) {
		switch variantErr.Code {
		case repositories.VariantErrorNotFound, repositories.VariantErrorNotOwned:
			return "not found"
		}
	}
	return "internal error"
}
