package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/craftlane/api/internal/domain"
)

func newTestInventoryService(t *testing.T, repo *memoryInventoryRepo, deps InventoryServiceDeps) InventoryService {
	t.Helper()
	deps.Inventory = repo
	if deps.Products == nil {
		deps.Products = &stubProductRepo{}
	}
	if deps.Variants == nil {
		deps.Variants = &stubVariantRepo{}
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = sequenceIDs("log")
	}
	svc, err := NewInventoryService(deps)
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}
	return svc
}

func TestInventoryServiceAdjustRecordsChainedEntries(t *testing.T) {
	repo := newMemoryInventoryRepo()
	repo.seed("var_1", "owner_1", 0)
	events := &captureLedgerEvents{}
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc := newTestInventoryService(t, repo, InventoryServiceDeps{
		Events: events,
		Clock:  fixedClock(now),
	})

	first, err := svc.Adjust(context.Background(), InventoryAdjustCommand{
		VariantID:   "var_1",
		OwnerID:     "owner_1",
		NewQuantity: 3,
		ChangeType:  domain.ChangeTypeManual,
		ActorID:     "actor_1",
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if first.PreviousQuantity != 0 || first.NewQuantity != 3 || first.ChangeAmount != 3 {
		t.Fatalf("unexpected first entry %+v", first)
	}
	if first.CreatedAt != now {
		t.Fatalf("expected clock timestamp, got %v", first.CreatedAt)
	}

	second, err := svc.Adjust(context.Background(), InventoryAdjustCommand{
		VariantID:   "var_1",
		OwnerID:     "owner_1",
		NewQuantity: 1,
		ChangeType:  domain.ChangeTypeOrder,
		ActorID:     "actor_1",
	})
	if err != nil {
		t.Fatalf("second adjust: %v", err)
	}
	if second.PreviousQuantity != 3 || second.NewQuantity != 1 || second.ChangeAmount != -2 {
		t.Fatalf("expected chained entry, got %+v", second)
	}
	if events.count() != 2 {
		t.Fatalf("expected 2 published events, got %d", events.count())
	}
}

func TestInventoryServiceAdjustValidatesInput(t *testing.T) {
	repo := newMemoryInventoryRepo()
	repo.seed("var_1", "owner_1", 4)
	svc := newTestInventoryService(t, repo, InventoryServiceDeps{})

	price := int64(100)
	negative := int64(-1)
	cases := []struct {
		name string
		cmd  InventoryAdjustCommand
	}{
		{"negative quantity", InventoryAdjustCommand{VariantID: "var_1", NewQuantity: -1, ChangeType: domain.ChangeTypeManual, ActorID: "a"}},
		{"unknown change type", InventoryAdjustCommand{VariantID: "var_1", NewQuantity: 1, ChangeType: "guess", ActorID: "a"}},
		{"missing actor", InventoryAdjustCommand{VariantID: "var_1", NewQuantity: 1, ChangeType: domain.ChangeTypeManual}},
		{"no target", InventoryAdjustCommand{NewQuantity: 1, ChangeType: domain.ChangeTypeManual, ActorID: "a"}},
		{"both targets", InventoryAdjustCommand{ProductID: "p", VariantID: "v", NewQuantity: 1, ChangeType: domain.ChangeTypeManual, ActorID: "a"}},
		{"price on product target", InventoryAdjustCommand{ProductID: "prod_1", NewQuantity: 1, ChangeType: domain.ChangeTypeManual, ActorID: "a", Price: &price}},
		{"negative price", InventoryAdjustCommand{VariantID: "var_1", NewQuantity: 1, ChangeType: domain.ChangeTypeManual, ActorID: "a", Price: &negative}},
		{"negative cost", InventoryAdjustCommand{VariantID: "var_1", NewQuantity: 1, ChangeType: domain.ChangeTypeManual, ActorID: "a", Cost: &negative}},
	}
	for _, tc := range cases {
		if _, err := svc.Adjust(context.Background(), tc.cmd); !errors.Is(err, ErrInventoryInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", tc.name, err)
		}
	}
	if repo.entryCount() != 0 {
		t.Fatalf("rejected adjusts must not write ledger entries, got %d", repo.entryCount())
	}
}

func TestInventoryServiceAdjustCommitsPriceWithQuantity(t *testing.T) {
	repo := newMemoryInventoryRepo()
	repo.seed("var_1", "owner_1", 2)
	svc := newTestInventoryService(t, repo, InventoryServiceDeps{})

	price := int64(1800)
	cost := int64(700)
	entry, err := svc.Adjust(context.Background(), InventoryAdjustCommand{
		VariantID:   "var_1",
		OwnerID:     "owner_1",
		NewQuantity: 5,
		ChangeType:  domain.ChangeTypeManual,
		ActorID:     "actor_1",
		Price:       &price,
		Cost:        &cost,
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if entry.PreviousQuantity != 2 || entry.NewQuantity != 5 {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if repo.entryCount() != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", repo.entryCount())
	}
	if committed, ok := repo.priceOf("var_1"); !ok || committed != 1800 {
		t.Fatalf("expected price committed with the adjust, got %d (present=%t)", committed, ok)
	}
}

func TestInventoryServiceAdjustMapsMissingTarget(t *testing.T) {
	svc := newTestInventoryService(t, newMemoryInventoryRepo(), InventoryServiceDeps{})

	_, err := svc.Adjust(context.Background(), InventoryAdjustCommand{
		VariantID:   "var_missing",
		NewQuantity: 1,
		ChangeType:  domain.ChangeTypeManual,
		ActorID:     "actor_1",
	})
	if !errors.Is(err, ErrInventoryNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInventoryServiceAdjustPublishFailureIsNotFatal(t *testing.T) {
	repo := newMemoryInventoryRepo()
	repo.seed("prod_1", "owner_1", 2)
	events := &captureLedgerEvents{err: errors.New("topic gone")}
	var logged []string
	svc := newTestInventoryService(t, repo, InventoryServiceDeps{
		Events: events,
		Logger: func(_ context.Context, event string, _ map[string]any) {
			logged = append(logged, event)
		},
	})

	entry, err := svc.Adjust(context.Background(), InventoryAdjustCommand{
		ProductID:   "prod_1",
		NewQuantity: 5,
		ChangeType:  domain.ChangeTypeSync,
		ActorID:     "actor_1",
	})
	if err != nil {
		t.Fatalf("adjust must survive publish failure: %v", err)
	}
	if entry.NewQuantity != 5 {
		t.Fatalf("unexpected entry %+v", entry)
	}
	found := false
	for _, event := range logged {
		if event == "inventory.event_publish_failed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected publish failure to be logged, got %v", logged)
	}
}

func TestInventoryServiceConcurrentAdjustsObserveDistinctPreviousQuantities(t *testing.T) {
	repo := newMemoryInventoryRepo()
	repo.seed("var_1", "owner_1", 0)
	svc := newTestInventoryService(t, repo, InventoryServiceDeps{})

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(q int64) {
			defer wg.Done()
			if _, err := svc.Adjust(context.Background(), InventoryAdjustCommand{
				VariantID:   "var_1",
				NewQuantity: q,
				ChangeType:  domain.ChangeTypeAdjustment,
				ActorID:     fmt.Sprintf("actor_%d", q),
			}); err != nil {
				t.Errorf("adjust %d: %v", q, err)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	page, err := svc.Logs(context.Background(), InventoryLogsQuery{VariantID: "var_1"})
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if len(page.Items) != workers {
		t.Fatalf("expected %d entries, got %d", workers, len(page.Items))
	}
	seen := make(map[int64]struct{}, workers)
	for _, entry := range page.Items {
		if _, dup := seen[entry.PreviousQuantity]; dup {
			t.Fatalf("two adjusts observed the same previous quantity %d", entry.PreviousQuantity)
		}
		seen[entry.PreviousQuantity] = struct{}{}
	}
}

func TestInventoryServiceStatisticsClassifiesBoundaries(t *testing.T) {
	repo := newMemoryInventoryRepo()
	products := &stubProductRepo{
		listFn: func(context.Context, string) ([]domain.Product, error) {
			return []domain.Product{
				{ID: "p1", OwnerID: "owner_1", Quantity: 0},
				{ID: "p2", OwnerID: "owner_1", Quantity: 6},
			}, nil
		},
	}
	variants := &stubVariantRepo{
		listOwnerFn: func(context.Context, string) ([]domain.Variant, error) {
			return []domain.Variant{
				{ID: "v1", OwnerID: "owner_1", Quantity: 0},
				{ID: "v2", OwnerID: "owner_1", Quantity: 5},
				{ID: "v3", OwnerID: "owner_1", Quantity: 6},
			}, nil
		},
	}
	svc := newTestInventoryService(t, repo, InventoryServiceDeps{
		Products: products,
		Variants: variants,
	})

	stats, err := svc.Statistics(context.Background(), "owner_1")
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalProducts != 2 || stats.TotalVariants != 3 {
		t.Fatalf("unexpected totals %+v", stats)
	}
	if stats.OutOfStockProducts != 1 || stats.LowStockProducts != 0 {
		t.Fatalf("unexpected product classification %+v", stats)
	}
	if stats.OutOfStockVariants != 1 || stats.LowStockVariants != 1 {
		t.Fatalf("unexpected variant classification %+v", stats)
	}
}

func TestInventoryServiceStatisticsIncludesRecentChanges(t *testing.T) {
	repo := newMemoryInventoryRepo()
	repo.seed("var_1", "owner_1", 0)
	svc := newTestInventoryService(t, repo, InventoryServiceDeps{RecentChanges: 2})

	base := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		clockSvc := newTestInventoryService(t, repo, InventoryServiceDeps{
			Clock:       fixedClock(base.Add(time.Duration(i) * time.Minute)),
			IDGenerator: sequenceIDs(fmt.Sprintf("log%d", i)),
		})
		if _, err := clockSvc.Adjust(context.Background(), InventoryAdjustCommand{
			VariantID:   "var_1",
			NewQuantity: int64(i + 1),
			ChangeType:  domain.ChangeTypeManual,
			ActorID:     "actor_1",
		}); err != nil {
			t.Fatalf("adjust %d: %v", i, err)
		}
	}

	stats, err := svc.Statistics(context.Background(), "owner_1")
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if len(stats.RecentChanges) != 2 {
		t.Fatalf("expected 2 recent changes, got %d", len(stats.RecentChanges))
	}
	if !stats.RecentChanges[0].CreatedAt.After(stats.RecentChanges[1].CreatedAt) {
		t.Fatalf("expected newest first, got %v then %v", stats.RecentChanges[0].CreatedAt, stats.RecentChanges[1].CreatedAt)
	}
}

func TestInventoryServiceLogsRequireExactlyOneTarget(t *testing.T) {
	svc := newTestInventoryService(t, newMemoryInventoryRepo(), InventoryServiceDeps{})

	if _, err := svc.Logs(context.Background(), InventoryLogsQuery{}); !errors.Is(err, ErrInventoryInvalidInput) {
		t.Fatalf("expected invalid input without target, got %v", err)
	}
	if _, err := svc.Logs(context.Background(), InventoryLogsQuery{ProductID: "p", VariantID: "v"}); !errors.Is(err, ErrInventoryInvalidInput) {
		t.Fatalf("expected invalid input with both targets, got %v", err)
	}
}
