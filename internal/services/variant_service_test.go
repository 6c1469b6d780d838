package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/craftlane/api/internal/domain"
	"github.com/craftlane/api/internal/repositories"
)

func shirtProduct() domain.Product {
	return domain.Product{
		ID:         "prod_1",
		OwnerID:    "owner_1",
		CategoryID: "cat_shirts",
		BaseSKU:    "SHIRT",
		Name:       "Shirt",
		Price:      1500,
		Cost:       700,
		Status:     domain.ProductStatusActive,
	}
}

func newTestCatalog(t *testing.T) VariationCatalogService {
	t.Helper()
	catalog, err := NewVariationCatalogService(VariationCatalogServiceDeps{
		Templates: &stubTemplateRepo{
			getFn: func(context.Context, string) (domain.VariationTemplate, error) {
				return shirtTemplate(), nil
			},
		},
	})
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}
	return catalog
}

func newTestVariantService(t *testing.T, products *stubProductRepo, variants *stubVariantRepo) VariantService {
	t.Helper()
	svc, err := NewVariantService(VariantServiceDeps{
		Products:    products,
		Variants:    variants,
		Catalog:     newTestCatalog(t),
		Clock:       fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		IDGenerator: sequenceIDs("var"),
	})
	if err != nil {
		t.Fatalf("new variant service: %v", err)
	}
	return svc
}

func TestVariantServiceGenerateExpandsCartesianProduct(t *testing.T) {
	products := &stubProductRepo{
		findFn: func(context.Context, string) (domain.Product, error) { return shirtProduct(), nil },
	}
	var captured repositories.VariantCreateBatchRequest
	variants := &stubVariantRepo{
		createFn: func(_ context.Context, req repositories.VariantCreateBatchRequest) ([]domain.Variant, error) {
			captured = req
			created := make([]domain.Variant, 0, len(req.Variants))
			for _, v := range req.Variants {
				v.CreatedAt = req.Now
				v.UpdatedAt = req.Now
				created = append(created, v)
			}
			return created, nil
		},
	}
	svc := newTestVariantService(t, products, variants)

	all, err := svc.Generate(context.Background(), VariantGenerateCommand{
		ProductID: "prod_1",
		OwnerID:   "owner_1",
		ActorID:   "actor_1",
		Selection: map[string][]string{
			"size":  {"S", "M"},
			"color": {"Red", "Blue"},
		},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 variants, got %d: %v", len(all), skusOf(all))
	}

	wantSKUs := []string{"SHIRT-S-RED", "SHIRT-S-BLUE", "SHIRT-M-RED", "SHIRT-M-BLUE"}
	for i, want := range wantSKUs {
		if all[i].SKU != want {
			t.Fatalf("expected SKU %s at position %d, got %s", want, i, all[i].SKU)
		}
	}
	for _, v := range all {
		if v.Quantity != 0 {
			t.Fatalf("expected quantity 0, got %d for %s", v.Quantity, v.SKU)
		}
		if v.Price != 1500 || v.Cost != 700 {
			t.Fatalf("expected price/cost seeded from product, got %d/%d", v.Price, v.Cost)
		}
		if v.OwnerID != "owner_1" || v.ProductID != "prod_1" {
			t.Fatalf("unexpected ownership %s/%s", v.OwnerID, v.ProductID)
		}
	}
	if all[0].Options[0].TypeName != "size" || all[0].Options[1].TypeName != "color" {
		t.Fatalf("expected template type order, got %+v", all[0].Options)
	}
	if captured.ProductID != "prod_1" || len(captured.Variants) != 4 {
		t.Fatalf("unexpected create batch %+v", captured)
	}
}

func TestVariantServiceGenerateIsIdempotent(t *testing.T) {
	existing := []domain.Variant{
		{ID: "v1", ProductID: "prod_1", OwnerID: "owner_1", SKU: "SHIRT-S-RED",
			Options: []domain.OptionPair{{TypeName: "size", Value: "S"}, {TypeName: "color", Value: "Red"}}},
		{ID: "v2", ProductID: "prod_1", OwnerID: "owner_1", SKU: "SHIRT-S-BLUE",
			Options: []domain.OptionPair{{TypeName: "size", Value: "S"}, {TypeName: "color", Value: "Blue"}}},
	}
	products := &stubProductRepo{
		findFn: func(context.Context, string) (domain.Product, error) { return shirtProduct(), nil },
	}
	variants := &stubVariantRepo{
		listProductFn: func(context.Context, string) ([]domain.Variant, error) { return existing, nil },
		listSKUsFn: func(context.Context, string) ([]string, error) {
			return []string{"SHIRT-S-RED", "SHIRT-S-BLUE"}, nil
		},
		createFn: func(context.Context, repositories.VariantCreateBatchRequest) ([]domain.Variant, error) {
			t.Fatal("create batch must not run when every combination exists")
			return nil, nil
		},
	}
	svc := newTestVariantService(t, products, variants)

	all, err := svc.Generate(context.Background(), VariantGenerateCommand{
		ProductID: "prod_1",
		OwnerID:   "owner_1",
		ActorID:   "actor_1",
		Selection: map[string][]string{"size": {"S"}, "color": {"Red", "Blue"}},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected the existing 2 variants back, got %d", len(all))
	}
}

func TestVariantServiceGenerateSkipsExistingSignatures(t *testing.T) {
	existing := []domain.Variant{
		{ID: "v1", ProductID: "prod_1", OwnerID: "owner_1", SKU: "SHIRT-S-RED",
			Options: []domain.OptionPair{{TypeName: "size", Value: "S"}, {TypeName: "color", Value: "Red"}}},
	}
	products := &stubProductRepo{
		findFn: func(context.Context, string) (domain.Product, error) { return shirtProduct(), nil },
	}
	variants := &stubVariantRepo{
		listProductFn: func(context.Context, string) ([]domain.Variant, error) { return existing, nil },
		listSKUsFn:    func(context.Context, string) ([]string, error) { return []string{"SHIRT-S-RED"}, nil },
	}
	svc := newTestVariantService(t, products, variants)

	all, err := svc.Generate(context.Background(), VariantGenerateCommand{
		ProductID: "prod_1",
		OwnerID:   "owner_1",
		ActorID:   "actor_1",
		Selection: map[string][]string{"size": {"S", "M"}, "color": {"Red", "Blue"}},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 variants total, got %d", len(all))
	}
	if all[0].ID != "v1" {
		t.Fatalf("expected existing variant first, got %s", all[0].ID)
	}
	if containsSKU(all[1:], "SHIRT-S-RED") {
		t.Fatalf("existing signature regenerated: %v", skusOf(all))
	}
}

func TestVariantServiceGenerateRejectsIncompleteSelection(t *testing.T) {
	products := &stubProductRepo{
		findFn: func(context.Context, string) (domain.Product, error) { return shirtProduct(), nil },
	}
	svc := newTestVariantService(t, products, &stubVariantRepo{})

	_, err := svc.Generate(context.Background(), VariantGenerateCommand{
		ProductID: "prod_1",
		ActorID:   "actor_1",
		Selection: map[string][]string{"size": {"S"}},
	})
	if !errors.Is(err, ErrVariantInvalidInput) {
		t.Fatalf("expected invalid input for missing color selection, got %v", err)
	}
}

func TestVariantServiceGenerateRejectsUnknownOption(t *testing.T) {
	products := &stubProductRepo{
		findFn: func(context.Context, string) (domain.Product, error) { return shirtProduct(), nil },
	}
	svc := newTestVariantService(t, products, &stubVariantRepo{})

	_, err := svc.Generate(context.Background(), VariantGenerateCommand{
		ProductID: "prod_1",
		ActorID:   "actor_1",
		Selection: map[string][]string{"size": {"S"}, "color": {"Chartreuse"}},
	})
	if !errors.Is(err, ErrVariantInvalidInput) {
		t.Fatalf("expected invalid input for unknown option, got %v", err)
	}
}

func TestVariantServiceGenerateEnforcesCapBeforeExpansion(t *testing.T) {
	wide := domain.VariationTemplate{
		CategoryID: "cat_wide",
		Types: []domain.VariationType{
			{Name: "size", Options: manyOptions("s", 30)},
			{Name: "color", Options: manyOptions("c", 20)},
		},
	}
	catalog, err := NewVariationCatalogService(VariationCatalogServiceDeps{
		Templates: &stubTemplateRepo{
			getFn: func(context.Context, string) (domain.VariationTemplate, error) { return wide, nil },
		},
	})
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}
	products := &stubProductRepo{
		findFn: func(context.Context, string) (domain.Product, error) { return shirtProduct(), nil },
	}
	variants := &stubVariantRepo{
		listProductFn: func(context.Context, string) ([]domain.Variant, error) {
			t.Fatal("capacity check must run before loading existing variants")
			return nil, nil
		},
	}
	svc, err := NewVariantService(VariantServiceDeps{
		Products:      products,
		Variants:      variants,
		Catalog:       catalog,
		GenerationCap: 500,
	})
	if err != nil {
		t.Fatalf("new variant service: %v", err)
	}

	_, err = svc.Generate(context.Background(), VariantGenerateCommand{
		ProductID: "prod_1",
		ActorID:   "actor_1",
		Selection: map[string][]string{
			"size":  manyOptions("s", 30),
			"color": manyOptions("c", 20),
		},
	})
	if !errors.Is(err, ErrVariantCapacityExceeded) {
		t.Fatalf("expected capacity error for 600 combinations, got %v", err)
	}
}

func TestVariantServiceGenerateDisambiguatesSKUCollisions(t *testing.T) {
	products := &stubProductRepo{
		findFn: func(context.Context, string) (domain.Product, error) { return shirtProduct(), nil },
	}
	variants := &stubVariantRepo{
		// SKU taken by another product in the owner's namespace.
		listSKUsFn: func(context.Context, string) ([]string, error) { return []string{"SHIRT-S-RED"}, nil },
	}
	svc := newTestVariantService(t, products, variants)

	all, err := svc.Generate(context.Background(), VariantGenerateCommand{
		ProductID: "prod_1",
		OwnerID:   "owner_1",
		ActorID:   "actor_1",
		Selection: map[string][]string{"size": {"S"}, "color": {"Red"}},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(all) != 1 || all[0].SKU != "SHIRT-S-RED-2" {
		t.Fatalf("expected disambiguated SKU SHIRT-S-RED-2, got %v", skusOf(all))
	}
}

func TestVariantServiceGenerateMapsRepositoryConflict(t *testing.T) {
	products := &stubProductRepo{
		findFn: func(context.Context, string) (domain.Product, error) { return shirtProduct(), nil },
	}
	variants := &stubVariantRepo{
		createFn: func(context.Context, repositories.VariantCreateBatchRequest) ([]domain.Variant, error) {
			return nil, repositories.NewVariantError(repositories.VariantErrorSignatureConflict, "signature taken", nil)
		},
	}
	svc := newTestVariantService(t, products, variants)

	_, err := svc.Generate(context.Background(), VariantGenerateCommand{
		ProductID: "prod_1",
		ActorID:   "actor_1",
		Selection: map[string][]string{"size": {"S"}, "color": {"Red"}},
	})
	if !errors.Is(err, ErrVariantConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestVariantServiceGenerateUnknownProduct(t *testing.T) {
	svc := newTestVariantService(t, &stubProductRepo{}, &stubVariantRepo{})

	_, err := svc.Generate(context.Background(), VariantGenerateCommand{
		ProductID: "prod_missing",
		ActorID:   "actor_1",
		Selection: map[string][]string{"size": {"S"}, "color": {"Red"}},
	})
	if !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVariantServiceDeleteChecksOwnership(t *testing.T) {
	deleted := false
	variants := &stubVariantRepo{
		findFn: func(context.Context, string) (domain.Variant, error) {
			return domain.Variant{ID: "var_1", ProductID: "prod_1", OwnerID: "owner_1"}, nil
		},
		deleteFn: func(context.Context, string) error {
			deleted = true
			return nil
		},
	}
	svc := newTestVariantService(t, &stubProductRepo{}, variants)

	err := svc.DeleteVariant(context.Background(), VariantDeleteCommand{
		VariantID: "var_1",
		OwnerID:   "owner_2",
		ActorID:   "actor_1",
	})
	if !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("expected not found for foreign owner, got %v", err)
	}
	if deleted {
		t.Fatal("delete must not run for foreign owner")
	}

	if err := svc.DeleteVariant(context.Background(), VariantDeleteCommand{
		VariantID: "var_1",
		OwnerID:   "owner_1",
		ActorID:   "actor_1",
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete to run for the owner")
	}
}

func manyOptions(prefix string, n int) []string {
	options := make([]string, 0, n)
	for i := 0; i < n; i++ {
		options = append(options, prefix+string(rune('a'+i%26))+string(rune('a'+i/26)))
	}
	return options
}
