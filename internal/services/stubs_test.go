package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/craftlane/api/internal/domain"
	"github.com/craftlane/api/internal/repositories"
)

type stubTemplateRepo struct {
	getFn func(ctx context.Context, categoryID string) (domain.VariationTemplate, error)
}

func (s *stubTemplateRepo) GetTemplate(ctx context.Context, categoryID string) (domain.VariationTemplate, error) {
	if s.getFn != nil {
		return s.getFn(ctx, categoryID)
	}
	return domain.VariationTemplate{}, repositories.NewCatalogError(repositories.CatalogErrorTemplateNotFound, "no template", nil)
}

type stubProductRepo struct {
	findFn func(ctx context.Context, productID string) (domain.Product, error)
	listFn func(ctx context.Context, ownerID string) ([]domain.Product, error)
}

func (s *stubProductRepo) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if s.findFn != nil {
		return s.findFn(ctx, productID)
	}
	return domain.Product{}, repositories.NewVariantError(repositories.VariantErrorProductNotFound, "no product", nil)
}

func (s *stubProductRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Product, error) {
	if s.listFn != nil {
		return s.listFn(ctx, ownerID)
	}
	return nil, nil
}

type stubVariantRepo struct {
	findFn        func(ctx context.Context, variantID string) (domain.Variant, error)
	listProductFn func(ctx context.Context, productID string) ([]domain.Variant, error)
	listOwnerFn   func(ctx context.Context, ownerID string) ([]domain.Variant, error)
	listSKUsFn    func(ctx context.Context, ownerID string) ([]string, error)
	createFn      func(ctx context.Context, req repositories.VariantCreateBatchRequest) ([]domain.Variant, error)
	updateFn      func(ctx context.Context, req repositories.VariantFieldUpdate) (domain.Variant, error)
	deleteFn      func(ctx context.Context, variantID string) error
}

func (s *stubVariantRepo) FindByID(ctx context.Context, variantID string) (domain.Variant, error) {
	if s.findFn != nil {
		return s.findFn(ctx, variantID)
	}
	return domain.Variant{}, repositories.NewVariantError(repositories.VariantErrorNotFound, "no variant", nil)
}

func (s *stubVariantRepo) ListByProduct(ctx context.Context, productID string) ([]domain.Variant, error) {
	if s.listProductFn != nil {
		return s.listProductFn(ctx, productID)
	}
	return nil, nil
}

func (s *stubVariantRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Variant, error) {
	if s.listOwnerFn != nil {
		return s.listOwnerFn(ctx, ownerID)
	}
	return nil, nil
}

func (s *stubVariantRepo) ListSKUs(ctx context.Context, ownerID string) ([]string, error) {
	if s.listSKUsFn != nil {
		return s.listSKUsFn(ctx, ownerID)
	}
	return nil, nil
}

func (s *stubVariantRepo) CreateBatch(ctx context.Context, req repositories.VariantCreateBatchRequest) ([]domain.Variant, error) {
	if s.createFn != nil {
		return s.createFn(ctx, req)
	}
	created := make([]domain.Variant, 0, len(req.Variants))
	for _, v := range req.Variants {
		v.CreatedAt = req.Now
		v.UpdatedAt = req.Now
		created = append(created, v)
	}
	return created, nil
}

func (s *stubVariantRepo) UpdateFields(ctx context.Context, req repositories.VariantFieldUpdate) (domain.Variant, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, req)
	}
	return domain.Variant{}, repositories.NewVariantError(repositories.VariantErrorNotFound, "no variant", nil)
}

func (s *stubVariantRepo) Delete(ctx context.Context, variantID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, variantID)
	}
	return nil
}

// memoryInventoryRepo emulates the transactional ledger: the mutex plays the
// role of the store transaction, so concurrent adjusts serialize and each
// reads the quantity its predecessor committed.
type memoryInventoryRepo struct {
	mu         sync.Mutex
	quantities map[string]int64
	prices     map[string]int64
	costs      map[string]int64
	owners     map[string]string
	entries    []domain.InventoryLogEntry
}

func newMemoryInventoryRepo() *memoryInventoryRepo {
	return &memoryInventoryRepo{
		quantities: make(map[string]int64),
		prices:     make(map[string]int64),
		costs:      make(map[string]int64),
		owners:     make(map[string]string),
	}
}

func (m *memoryInventoryRepo) seed(key, ownerID string, quantity int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quantities[key] = quantity
	m.owners[key] = ownerID
}

func (m *memoryInventoryRepo) Adjust(_ context.Context, req repositories.InventoryAdjustRequest) (repositories.InventoryAdjustResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := req.Target.ProductID
	if req.Target.IsVariant() {
		key = req.Target.VariantID
	}
	previous, ok := m.quantities[key]
	if !ok {
		return repositories.InventoryAdjustResult{}, repositories.NewLedgerError(repositories.LedgerErrorTargetNotFound, fmt.Sprintf("target %s not found", key), nil)
	}
	if req.OwnerID != "" && req.OwnerID != m.owners[key] {
		return repositories.InventoryAdjustResult{}, repositories.NewLedgerError(repositories.LedgerErrorNotOwned, "not owned", nil)
	}

	m.quantities[key] = req.NewQuantity
	if req.Target.IsVariant() {
		if req.Price != nil {
			m.prices[key] = *req.Price
		}
		if req.Cost != nil {
			m.costs[key] = *req.Cost
		}
	}
	entry := domain.InventoryLogEntry{
		ID:               req.EntryID,
		ProductID:        req.Target.ProductID,
		VariantID:        req.Target.VariantID,
		PreviousQuantity: previous,
		NewQuantity:      req.NewQuantity,
		ChangeAmount:     req.NewQuantity - previous,
		ChangeType:       req.ChangeType,
		ActorID:          req.ActorID,
		Notes:            req.Notes,
		CreatedAt:        req.Now,
	}
	m.entries = append(m.entries, entry)
	return repositories.InventoryAdjustResult{Entry: entry}, nil
}

func (m *memoryInventoryRepo) ListLogs(_ context.Context, query repositories.InventoryLogQuery) (domain.CursorPage[domain.InventoryLogEntry], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []domain.InventoryLogEntry
	for _, entry := range m.entries {
		if query.Target.IsVariant() {
			if entry.VariantID == query.Target.VariantID {
				matched = append(matched, entry)
			}
		} else if entry.ProductID == query.Target.ProductID && entry.VariantID == "" {
			matched = append(matched, entry)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return domain.CursorPage[domain.InventoryLogEntry]{Items: matched}, nil
}

func (m *memoryInventoryRepo) RecentLogs(_ context.Context, ownerID string, limit int) ([]domain.InventoryLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	recent := append([]domain.InventoryLogEntry(nil), m.entries...)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	if len(recent) > limit {
		recent = recent[:limit]
	}
	return recent, nil
}

func (m *memoryInventoryRepo) entryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *memoryInventoryRepo) priceOf(key string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	price, ok := m.prices[key]
	return price, ok
}

type captureLedgerEvents struct {
	mu       sync.Mutex
	messages []LedgerEventMessage
	err      error
}

func (c *captureLedgerEvents) PublishLedgerEntry(_ context.Context, message LedgerEventMessage) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	c.messages = append(c.messages, message)
	return fmt.Sprintf("msg-%d", len(c.messages)), nil
}

func (c *captureLedgerEvents) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// sequenceIDs returns an IDGenerator handing out id-1, id-2, ...
func sequenceIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func shirtTemplate() domain.VariationTemplate {
	return domain.VariationTemplate{
		CategoryID: "cat_shirts",
		Types: []domain.VariationType{
			{Name: "size", DisplayName: "Size", Options: []string{"S", "M", "L"}},
			{Name: "color", DisplayName: "Color", Options: []string{"Red", "Blue"}},
		},
	}
}

func skusOf(variants []domain.Variant) []string {
	skus := make([]string, 0, len(variants))
	for _, v := range variants {
		skus = append(skus, v.SKU)
	}
	return skus
}

func containsSKU(variants []domain.Variant, sku string) bool {
	for _, v := range variants {
		if strings.EqualFold(v.SKU, sku) {
			return true
		}
	}
	return false
}
