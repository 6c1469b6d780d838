package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/craftlane/api/internal/domain"
	pfirestore "github.com/craftlane/api/internal/platform/firestore"
	"github.com/craftlane/api/internal/repositories"
)

const productsCollection = "products"

// ProductRepository reads supplier products. Quantity writes go exclusively
// through the inventory repository.
type ProductRepository struct {
	products *pfirestore.BaseRepository[productDocument]
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository constructs a Firestore-backed product reader.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		products: pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil),
	}, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, repositories.NewVariantError(repositories.VariantErrorProductNotFound, "product find: id is required", nil)
	}

	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Product{}, repositories.NewVariantError(repositories.VariantErrorProductNotFound, fmt.Sprintf("product %s not found", productID), err)
		}
		return domain.Product{}, pfirestore.WrapError("product.find", err)
	}

	return doc.Data.toDomain(doc.ID), nil
}

func (r *ProductRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Product, error) {
	if r == nil || r.products == nil {
		return nil, errors.New("product repository not initialised")
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, errors.New("product list: owner id is required")
	}

	docs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("ownerId", "==", ownerID)
	})
	if err != nil {
		return nil, pfirestore.WrapError("product.listByOwner", err)
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.Data.toDomain(doc.ID))
	}
	return products, nil
}

type productDocument struct {
	OwnerID    string    `firestore:"ownerId"`
	CategoryID string    `firestore:"categoryId"`
	BaseSKU    string    `firestore:"baseSku"`
	Name       string    `firestore:"name"`
	Price      int64     `firestore:"price"`
	Cost       int64     `firestore:"cost"`
	Quantity   int64     `firestore:"quantity"`
	Status     string    `firestore:"status"`
	CreatedAt  time.Time `firestore:"createdAt"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:         id,
		OwnerID:    strings.TrimSpace(d.OwnerID),
		CategoryID: strings.TrimSpace(d.CategoryID),
		BaseSKU:    strings.TrimSpace(d.BaseSKU),
		Name:       d.Name,
		Price:      d.Price,
		Cost:       d.Cost,
		Quantity:   d.Quantity,
		Status:     domain.ProductStatus(d.Status),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}
