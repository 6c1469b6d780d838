package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/craftlane/api/internal/domain"
	"github.com/craftlane/api/internal/repositories"
)

var (
	// ErrCatalogInvalidInput marks malformed catalog lookups.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogNotFound marks categories unknown to both the template store
	// and the default table. Callers treat this as "no variation types", not
	// as a fatal condition.
	ErrCatalogNotFound = errors.New("catalog: not found")
)

// DefaultOptionTable maps a coarse category classification to the variation
// types used when no stored template declares them.
type DefaultOptionTable map[string][]domain.VariationType

// BuiltinOptionDefaults returns the static fallback table. Classifications
// without an entry resolve to nothing.
func BuiltinOptionDefaults() DefaultOptionTable {
	return DefaultOptionTable{
		"apparel": {
			{Name: "size", DisplayName: "Size", Options: []string{"S", "M", "L", "XL"}},
			{Name: "color", DisplayName: "Color", Options: []string{"Red", "Blue", "Green", "Black", "White"}},
		},
		"footwear": {
			{Name: "size", DisplayName: "Size", Options: []string{"23", "24", "25", "26", "27", "28"}},
			{Name: "color", DisplayName: "Color", Options: []string{"Black", "Brown", "White"}},
		},
		"accessory": {
			{Name: "color", DisplayName: "Color", Options: []string{"Red", "Blue", "Black", "White"}},
			{Name: "material", DisplayName: "Material", Options: []string{"Leather", "Cotton", "Metal"}},
		},
		"general": {
			{Name: "color", DisplayName: "Color", Options: []string{"Red", "Blue", "Black", "White"}},
		},
	}
}

// VariationCatalogServiceDeps wires the catalog's collaborators.
type VariationCatalogServiceDeps struct {
	Templates  repositories.TemplateRepository
	Defaults   DefaultOptionTable
	Classifier CategoryClassifier
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type variationCatalogService struct {
	templates  repositories.TemplateRepository
	defaults   DefaultOptionTable
	classifier CategoryClassifier
	logger     func(ctx context.Context, event string, fields map[string]any)
}

var _ VariationCatalogService = (*variationCatalogService)(nil)

// NewVariationCatalogService wires a catalog resolver backed by stored
// templates with the static default table as fallback.
func NewVariationCatalogService(deps VariationCatalogServiceDeps) (VariationCatalogService, error) {
	if deps.Templates == nil {
		return nil, errors.New("variation catalog service requires template repository")
	}
	defaults := deps.Defaults
	if defaults == nil {
		defaults = BuiltinOptionDefaults()
	}
	classifier := deps.Classifier
	if classifier == nil {
		classifier = func(string) string { return "general" }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &variationCatalogService{
		templates:  deps.Templates,
		defaults:   defaults,
		classifier: classifier,
		logger:     logger,
	}, nil
}

func (s *variationCatalogService) ResolveTypes(ctx context.Context, categoryID string) ([]domain.VariationType, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return nil, fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}

	template, err := s.templates.GetTemplate(ctx, categoryID)
	switch {
	case err == nil:
		return s.fillFromDefaults(categoryID, template.Types), nil
	case isTemplateNotFound(err):
		// fall through to the default table
	default:
		return nil, fmt.Errorf("resolve variation types: %w", err)
	}

	classification := s.classifier(categoryID)
	types, ok := s.defaults[classification]
	if !ok {
		s.logger(ctx, "catalog.defaults_missing", map[string]any{
			"category_id":    categoryID,
			"classification": classification,
		})
		return nil, fmt.Errorf("%w: category %s has no variation types", ErrCatalogNotFound, categoryID)
	}
	return cloneVariationTypes(types), nil
}

func (s *variationCatalogService) ResolveOptions(ctx context.Context, categoryID, typeName string) ([]string, error) {
	typeName = strings.TrimSpace(typeName)
	if typeName == "" {
		return nil, fmt.Errorf("%w: type name is required", ErrCatalogInvalidInput)
	}

	types, err := s.ResolveTypes(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	for _, vt := range types {
		if strings.EqualFold(vt.Name, typeName) {
			return append([]string(nil), vt.Options...), nil
		}
	}
	return []string{}, nil
}

// fillFromDefaults keeps the template's declared order but resolves types the
// template names without options against the default table.
func (s *variationCatalogService) fillFromDefaults(categoryID string, declared []domain.VariationType) []domain.VariationType {
	var fallback []domain.VariationType
	resolved := make([]domain.VariationType, 0, len(declared))
	for _, vt := range declared {
		if len(vt.Options) == 0 {
			if fallback == nil {
				fallback = s.defaults[s.classifier(categoryID)]
			}
			for _, def := range fallback {
				if strings.EqualFold(def.Name, vt.Name) {
					vt.Options = append([]string(nil), def.Options...)
					break
				}
			}
		}
		resolved = append(resolved, cloneVariationType(vt))
	}
	return resolved
}

func cloneVariationTypes(types []domain.VariationType) []domain.VariationType {
	out := make([]domain.VariationType, 0, len(types))
	for _, vt := range types {
		out = append(out, cloneVariationType(vt))
	}
	return out
}

func cloneVariationType(vt domain.VariationType) domain.VariationType {
	vt.Options = append([]string(nil), vt.Options...)
	return vt
}

func isTemplateNotFound(err error) bool {
	var catalogErr *repositories.CatalogError
	if errors.As(err, &catalogErr) {
		return catalogErr.Code == repositories.CatalogErrorTemplateNotFound
	}
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
