package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"

	domain "github.com/craftlane/api/internal/domain"
	"github.com/craftlane/api/internal/repositories"
)

var (
	// ErrVariantInvalidInput marks malformed generation or lifecycle requests.
	ErrVariantInvalidInput = errors.New("variant: invalid input")
	// ErrVariantNotFound marks a missing product or variant, including targets
	// the caller does not own.
	ErrVariantNotFound = errors.New("variant: not found")
	// ErrVariantCapacityExceeded marks selections whose combination count
	// exceeds the generation cap. The expansion is never attempted.
	ErrVariantCapacityExceeded = errors.New("variant: generation capacity exceeded")
	// ErrVariantConflict marks a lost race against a concurrent generation or
	// a SKU taken between planning and commit.
	ErrVariantConflict = errors.New("variant: conflict")
)

const defaultGenerationCap = 500

// VariantServiceDeps wires the generator's collaborators.
type VariantServiceDeps struct {
	Products      repositories.ProductRepository
	Variants      repositories.VariantRepository
	Catalog       VariationCatalogService
	GenerationCap int
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type variantService struct {
	products      repositories.ProductRepository
	variants      repositories.VariantRepository
	catalog       VariationCatalogService
	generationCap int
	now           func() time.Time
	newID         func() string
	logger        func(ctx context.Context, event string, fields map[string]any)
}

var _ VariantService = (*variantService)(nil)

// NewVariantService wires the variant generator and lifecycle operations.
func NewVariantService(deps VariantServiceDeps) (VariantService, error) {
	if deps.Products == nil {
		return nil, errors.New("variant service requires product repository")
	}
	if deps.Variants == nil {
		return nil, errors.New("variant service requires variant repository")
	}
	if deps.Catalog == nil {
		return nil, errors.New("variant service requires variation catalog")
	}
	generationCap := deps.GenerationCap
	if generationCap <= 0 {
		generationCap = defaultGenerationCap
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
	return &variantService{
		products:      deps.Products,
		variants:      deps.Variants,
		catalog:       deps.Catalog,
		generationCap: generationCap,
		now:           func() time.Time { return clock().UTC() },
		newID:         newID,
		logger:        logger,
	}, nil
}

func (s *variantService) Generate(ctx context.Context, cmd VariantGenerateCommand) ([]domain.Variant, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrVariantInvalidInput)
	}
	if len(cmd.Selection) == 0 {
		return nil, fmt.Errorf("%w: selection is required", ErrVariantInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	if owner := strings.TrimSpace(cmd.OwnerID); owner != "" && owner != product.OwnerID {
		return nil, fmt.Errorf("%w: product %s", ErrVariantNotFound, productID)
	}

	types, err := s.catalog.ResolveTypes(ctx, product.CategoryID)
	if err != nil {
		if errors.Is(err, ErrCatalogNotFound) {
			return nil, fmt.Errorf("%w: category %s has no variation types", ErrVariantInvalidInput, product.CategoryID)
		}
		return nil, err
	}

	selections, err := normalizeSelection(types, cmd.Selection)
	if err != nil {
		return nil, err
	}

	total := 1
	for _, values := range selections {
		total *= len(values)
		if total > s.generationCap {
			return nil, fmt.Errorf("%w: selection expands beyond %d combinations", ErrVariantCapacityExceeded, s.generationCap)
		}
	}

	existing, err := s.variants.ListByProduct(ctx, productID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	seenSignatures := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		seenSignatures[v.SignatureKey()] = struct{}{}
	}

	ownerSKUs, err := s.variants.ListSKUs(ctx, product.OwnerID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	usedSKUs := make(map[string]struct{}, len(ownerSKUs))
	for _, sku := range ownerSKUs {
		usedSKUs[strings.ToUpper(sku)] = struct{}{}
	}

	planned := make([]domain.Variant, 0, total)
	for _, combo := range expandCombinations(types, selections) {
		signature := domain.SignatureKey(combo)
		if _, taken := seenSignatures[signature]; taken {
			continue
		}
		seenSignatures[signature] = struct{}{}
		planned = append(planned, domain.Variant{
			ID:        s.newID(),
			ProductID: productID,
			OwnerID:   product.OwnerID,
			Options:   combo,
			SKU:       synthesizeSKU(product.BaseSKU, combo, usedSKUs),
			Price:     product.Price,
			Cost:      product.Cost,
			Quantity:  0,
		})
	}

	if len(planned) == 0 {
		s.logger(ctx, "variant.generate_noop", map[string]any{
			"product_id": productID,
			"existing":   len(existing),
		})
		return existing, nil
	}

	created, err := s.variants.CreateBatch(ctx, repositories.VariantCreateBatchRequest{
		ProductID: productID,
		OwnerID:   product.OwnerID,
		Variants:  planned,
		Now:       s.now(),
	})
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}

	s.logger(ctx, "variant.generated", map[string]any{
		"product_id": productID,
		"created":    len(created),
		"existing":   len(existing),
	})
	return append(existing, created...), nil
}

func (s *variantService) ListVariants(ctx context.Context, productID string) ([]domain.Variant, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrVariantInvalidInput)
	}
	variants, err := s.variants.ListByProduct(ctx, productID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return variants, nil
}

func (s *variantService) DeleteVariant(ctx context.Context, cmd VariantDeleteCommand) error {
	variantID := strings.TrimSpace(cmd.VariantID)
	if variantID == "" {
		return fmt.Errorf("%w: variant id is required", ErrVariantInvalidInput)
	}
	variant, err := s.variants.FindByID(ctx, variantID)
	if err != nil {
		return s.mapRepositoryError(err)
	}
	if owner := strings.TrimSpace(cmd.OwnerID); owner != "" && owner != variant.OwnerID {
		return fmt.Errorf("%w: variant %s", ErrVariantNotFound, variantID)
	}
	if err := s.variants.Delete(ctx, variantID); err != nil {
		return s.mapRepositoryError(err)
	}
	s.logger(ctx, "variant.deleted", map[string]any{
		"variant_id": variantID,
		"product_id": variant.ProductID,
		"actor_id":   strings.TrimSpace(cmd.ActorID),
	})
	return nil
}

// normalizeSelection validates the selection against the applicable types and
// returns the chosen values in template-declared type order.
func normalizeSelection(types []domain.VariationType, selection map[string][]string) ([][]string, error) {
	known := make(map[string]struct{}, len(types))
	selections := make([][]string, 0, len(types))
	for _, vt := range types {
		known[strings.ToLower(vt.Name)] = struct{}{}
		values := selection[vt.Name]
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: no options selected for type %s", ErrVariantInvalidInput, vt.Name)
		}
		allowed := make(map[string]struct{}, len(vt.Options))
		for _, opt := range vt.Options {
			allowed[opt] = struct{}{}
		}
		cleaned := make([]string, 0, len(values))
		seen := make(map[string]struct{}, len(values))
		for _, value := range values {
			value = strings.TrimSpace(value)
			if value == "" {
				return nil, fmt.Errorf("%w: empty option for type %s", ErrVariantInvalidInput, vt.Name)
			}
			if _, ok := allowed[value]; !ok {
				return nil, fmt.Errorf("%w: option %q is not available for type %s", ErrVariantInvalidInput, value, vt.Name)
			}
			if _, dup := seen[value]; dup {
				continue
			}
			seen[value] = struct{}{}
			cleaned = append(cleaned, value)
		}
		selections = append(selections, cleaned)
	}
	for name := range selection {
		if _, ok := known[strings.ToLower(name)]; !ok {
			return nil, fmt.Errorf("%w: unknown variation type %s", ErrVariantInvalidInput, name)
		}
	}
	return selections, nil
}

// expandCombinations walks the cartesian product in template type order with
// the last type varying fastest.
func expandCombinations(types []domain.VariationType, selections [][]string) [][]domain.OptionPair {
	total := 1
	for _, values := range selections {
		total *= len(values)
	}
	combos := make([][]domain.OptionPair, 0, total)
	indexes := make([]int, len(selections))
	for {
		combo := make([]domain.OptionPair, len(selections))
		for i, values := range selections {
			combo[i] = domain.OptionPair{TypeName: types[i].Name, Value: values[indexes[i]]}
		}
		combos = append(combos, combo)

		pos := len(indexes) - 1
		for pos >= 0 {
			indexes[pos]++
			if indexes[pos] < len(selections[pos]) {
				break
			}
			indexes[pos] = 0
			pos--
		}
		if pos < 0 {
			return combos
		}
	}
}

// synthesizeSKU builds {baseSku}-{OPT1}-{OPT2}... and appends a numeric
// disambiguator on collision within the owner's namespace. The chosen SKU is
// recorded in used so later combinations in the same batch avoid it.
func synthesizeSKU(baseSKU string, combo []domain.OptionPair, used map[string]struct{}) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(baseSKU))
	for _, pair := range combo {
		b.WriteByte('-')
		b.WriteString(abbreviateOption(pair.Value))
	}
	candidate := b.String()
	if _, taken := used[strings.ToUpper(candidate)]; !taken {
		used[strings.ToUpper(candidate)] = struct{}{}
		return candidate
	}
	for i := 2; ; i++ {
		next := fmt.Sprintf("%s-%d", candidate, i)
		if _, taken := used[strings.ToUpper(next)]; !taken {
			used[strings.ToUpper(next)] = struct{}{}
			return next
		}
	}
}

// abbreviateOption folds an option value into its SKU fragment: uppercase
// letters and digits only.
func abbreviateOption(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	if b.Len() == 0 {
		return "X"
	}
	return b.String()
}

func (s *variantService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var variantErr *repositories.VariantError
	if errors.As(err, &variantErr) {
		switch variantErr.Code {
		case repositories.VariantErrorNotFound, repositories.VariantErrorProductNotFound, repositories.VariantErrorNotOwned:
			return fmt.Errorf("%w: %s", ErrVariantNotFound, variantErr.Message)
		case repositories.VariantErrorSignatureConflict, repositories.VariantErrorSKUConflict:
			return fmt.Errorf("%w: %s", ErrVariantConflict, variantErr.Message)
		}
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrVariantNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrVariantConflict, err)
		}
	}
	return err
}
