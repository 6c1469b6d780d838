package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/craftlane/api/internal/domain"
	pfirestore "github.com/craftlane/api/internal/platform/firestore"
	"github.com/craftlane/api/internal/repositories"
)

const templatesCollection = "variationTemplates"

// TemplateRepository reads category variation templates from Firestore.
// Document ID is the category ID; templates are written by category
// configuration tooling outside this service.
type TemplateRepository struct {
	templates *pfirestore.BaseRepository[templateDocument]
}

var _ repositories.TemplateRepository = (*TemplateRepository)(nil)

// NewTemplateRepository constructs a Firestore-backed template reader.
func NewTemplateRepository(provider *pfirestore.Provider) (*TemplateRepository, error) {
	if provider == nil {
		return nil, errors.New("template repository requires firestore provider")
	}
	return &TemplateRepository{
		templates: pfirestore.NewBaseRepository[templateDocument](provider, templatesCollection, nil),
	}, nil
}

func (r *TemplateRepository) GetTemplate(ctx context.Context, categoryID string) (domain.VariationTemplate, error) {
	if r == nil || r.templates == nil {
		return domain.VariationTemplate{}, errors.New("template repository not initialised")
	}
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return domain.VariationTemplate{}, repositories.NewCatalogError(repositories.CatalogErrorUnknown, "template get: category id is required", nil)
	}

	doc, err := r.templates.Get(ctx, categoryID)
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.VariationTemplate{}, repositories.NewCatalogError(repositories.CatalogErrorTemplateNotFound, fmt.Sprintf("template for category %s not found", categoryID), err)
		}
		return domain.VariationTemplate{}, wrapCatalogError("template.get", err)
	}

	return doc.Data.toDomain(doc.ID), nil
}

type templateDocument struct {
	Types     []variationTypeDocument `firestore:"types"`
	UpdatedAt time.Time               `firestore:"updatedAt"`
}

type variationTypeDocument struct {
	Name        string   `firestore:"name"`
	DisplayName string   `firestore:"displayName"`
	Options     []string `firestore:"options"`
}

func (d templateDocument) toDomain(categoryID string) domain.VariationTemplate {
	types := make([]domain.VariationType, 0, len(d.Types))
	for _, t := range d.Types {
		types = append(types, domain.VariationType{
			Name:        strings.TrimSpace(t.Name),
			DisplayName: strings.TrimSpace(t.DisplayName),
			Options:     append([]string(nil), t.Options...),
		})
	}
	return domain.VariationTemplate{
		CategoryID: categoryID,
		Types:      types,
		UpdatedAt:  d.UpdatedAt,
	}
}

func wrapCatalogError(op string, err error) error {
	if err == nil {
		return nil
	}
	var catErr *repositories.CatalogError
	if errors.As(err, &catErr) {
		if catErr.Op == "" {
			catErr.Op = op
		}
		return catErr
	}
	return pfirestore.WrapError(op, err)
}
