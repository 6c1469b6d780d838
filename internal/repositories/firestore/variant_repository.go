package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/craftlane/api/internal/domain"
	pfirestore "github.com/craftlane/api/internal/platform/firestore"
	"github.com/craftlane/api/internal/repositories"
)

const (
	variantsCollection       = "variants"
	skuIndexCollection       = "variantSkuIndex"
	signatureIndexCollection = "variantSignatureIndex"
)

// VariantRepository persists variants together with two uniqueness index
// collections: one per-owner SKU index and one per-product option-signature
// index. Index documents are created in the same transaction as the variant,
// so concurrent generators for the same product contend on the index and the
// loser surfaces as a conflict.
type VariantRepository struct {
	provider *pfirestore.Provider
	variants *pfirestore.BaseRepository[variantDocument]
	products *pfirestore.BaseRepository[productDocument]
	skus     *pfirestore.BaseRepository[skuIndexDocument]
	sigs     *pfirestore.BaseRepository[signatureIndexDocument]
}

var _ repositories.VariantRepository = (*VariantRepository)(nil)

// NewVariantRepository constructs a Firestore-backed variant store.
func NewVariantRepository(provider *pfirestore.Provider) (*VariantRepository, error) {
	if provider == nil {
		return nil, errors.New("variant repository requires firestore provider")
	}
	return &VariantRepository{
		provider: provider,
		variants: pfirestore.NewBaseRepository[variantDocument](provider, variantsCollection, nil),
		products: pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil),
		skus:     pfirestore.NewBaseRepository[skuIndexDocument](provider, skuIndexCollection, nil),
		sigs:     pfirestore.NewBaseRepository[signatureIndexDocument](provider, signatureIndexCollection, nil),
	}, nil
}

func (r *VariantRepository) FindByID(ctx context.Context, variantID string) (domain.Variant, error) {
	if r == nil || r.variants == nil {
		return domain.Variant{}, errors.New("variant repository not initialised")
	}
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return domain.Variant{}, repositories.NewVariantError(repositories.VariantErrorNotFound, "variant find: id is required", nil)
	}

	doc, err := r.variants.Get(ctx, variantID)
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Variant{}, repositories.NewVariantError(repositories.VariantErrorNotFound, fmt.Sprintf("variant %s not found", variantID), err)
		}
		return domain.Variant{}, wrapVariantError("variant.find", err)
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *VariantRepository) ListByProduct(ctx context.Context, productID string) ([]domain.Variant, error) {
	if r == nil || r.variants == nil {
		return nil, errors.New("variant repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, errors.New("variant list: product id is required")
	}

	docs, err := r.variants.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("productId", "==", productID).OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, wrapVariantError("variant.listByProduct", err)
	}
	return decodeVariants(docs), nil
}

func (r *VariantRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Variant, error) {
	if r == nil || r.variants == nil {
		return nil, errors.New("variant repository not initialised")
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, errors.New("variant list: owner id is required")
	}

	docs, err := r.variants.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("ownerId", "==", ownerID)
	})
	if err != nil {
		return nil, wrapVariantError("variant.listByOwner", err)
	}
	return decodeVariants(docs), nil
}

func (r *VariantRepository) ListSKUs(ctx context.Context, ownerID string) ([]string, error) {
	if r == nil || r.skus == nil {
		return nil, errors.New("variant repository not initialised")
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, errors.New("variant sku list: owner id is required")
	}

	docs, err := r.skus.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("ownerId", "==", ownerID)
	})
	if err != nil {
		return nil, wrapVariantError("variant.listSkus", err)
	}

	skus := make([]string, 0, len(docs))
	for _, doc := range docs {
		if sku := strings.TrimSpace(doc.Data.SKU); sku != "" {
			skus = append(skus, sku)
		}
	}
	return skus, nil
}

func (r *VariantRepository) CreateBatch(ctx context.Context, req repositories.VariantCreateBatchRequest) ([]domain.Variant, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("variant repository not initialised")
	}
	productID := strings.TrimSpace(req.ProductID)
	if productID == "" {
		return nil, errors.New("variant create batch: product id is required")
	}
	if len(req.Variants) == 0 {
		return nil, nil
	}

	now := req.Now.UTC()
	created := make([]domain.Variant, 0, len(req.Variants))

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created = created[:0]

		productRef, err := r.products.DocumentRef(ctx, productID)
		if err != nil {
			return err
		}
		productSnap, err := tx.Get(productRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewVariantError(repositories.VariantErrorProductNotFound, fmt.Sprintf("product %s not found", productID), err)
			}
			return err
		}
		var productDoc productDocument
		if err := productSnap.DataTo(&productDoc); err != nil {
			return fmt.Errorf("decode product %s: %w", productID, err)
		}
		ownerID := strings.TrimSpace(req.OwnerID)
		if ownerID == "" {
			ownerID = strings.TrimSpace(productDoc.OwnerID)
		}
		if ownerID != strings.TrimSpace(productDoc.OwnerID) {
			return repositories.NewVariantError(repositories.VariantErrorNotOwned, fmt.Sprintf("product %s is not owned by %s", productID, ownerID), nil)
		}

		type pendingVariant struct {
			variant    domain.Variant
			variantRef *firestore.DocumentRef
			sigRef     *firestore.DocumentRef
			skuRef     *firestore.DocumentRef
		}
		pending := make([]pendingVariant, 0, len(req.Variants))

		// All reads first: transactions forbid reads after the first write.
		for _, variant := range req.Variants {
			if strings.TrimSpace(variant.ID) == "" {
				return errors.New("variant create batch: variant id is required")
			}
			signature := variant.SignatureKey()
			if signature == "" {
				return errors.New("variant create batch: option signature is required")
			}
			sku := strings.TrimSpace(variant.SKU)
			if sku == "" {
				return errors.New("variant create batch: sku is required")
			}

			sigRef, err := r.sigs.DocumentRef(ctx, signatureIndexID(productID, signature))
			if err != nil {
				return err
			}
			if _, err := tx.Get(sigRef); err == nil {
				return repositories.NewVariantError(repositories.VariantErrorSignatureConflict, fmt.Sprintf("signature %s already exists for product %s", signature, productID), nil)
			} else if status.Code(err) != codes.NotFound {
				return err
			}

			skuRef, err := r.skus.DocumentRef(ctx, skuIndexID(ownerID, sku))
			if err != nil {
				return err
			}
			if _, err := tx.Get(skuRef); err == nil {
				return repositories.NewVariantError(repositories.VariantErrorSKUConflict, fmt.Sprintf("sku %s already exists for owner %s", sku, ownerID), nil)
			} else if status.Code(err) != codes.NotFound {
				return err
			}

			variantRef, err := r.variants.DocumentRef(ctx, variant.ID)
			if err != nil {
				return err
			}

			variant.ProductID = productID
			variant.OwnerID = ownerID
			variant.SKU = sku
			variant.CreatedAt = now
			variant.UpdatedAt = now
			pending = append(pending, pendingVariant{
				variant:    variant,
				variantRef: variantRef,
				sigRef:     sigRef,
				skuRef:     skuRef,
			})
		}

		for _, p := range pending {
			if err := tx.Create(p.variantRef, newVariantDocument(p.variant)); err != nil {
				return err
			}
			if err := tx.Create(p.sigRef, signatureIndexDocument{
				ProductID: productID,
				VariantID: p.variant.ID,
				Signature: p.variant.SignatureKey(),
				CreatedAt: now,
			}); err != nil {
				return err
			}
			if err := tx.Create(p.skuRef, skuIndexDocument{
				OwnerID:   ownerID,
				SKU:       p.variant.SKU,
				VariantID: p.variant.ID,
				CreatedAt: now,
			}); err != nil {
				return err
			}
			created = append(created, p.variant)
		}
		return nil
	})
	if err != nil {
		return nil, wrapVariantError("variant.createBatch", err)
	}
	return created, nil
}

func (r *VariantRepository) UpdateFields(ctx context.Context, req repositories.VariantFieldUpdate) (domain.Variant, error) {
	if r == nil || r.provider == nil {
		return domain.Variant{}, errors.New("variant repository not initialised")
	}
	variantID := strings.TrimSpace(req.VariantID)
	if variantID == "" {
		return domain.Variant{}, repositories.NewVariantError(repositories.VariantErrorNotFound, "variant update: id is required", nil)
	}
	if req.Price == nil && req.Cost == nil {
		return domain.Variant{}, errors.New("variant update: no fields to update")
	}

	now := req.Now.UTC()
	var updated domain.Variant

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		variantRef, err := r.variants.DocumentRef(ctx, variantID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(variantRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewVariantError(repositories.VariantErrorNotFound, fmt.Sprintf("variant %s not found", variantID), err)
			}
			return err
		}
		var doc variantDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode variant %s: %w", variantID, err)
		}
		if owner := strings.TrimSpace(req.OwnerID); owner != "" && owner != strings.TrimSpace(doc.OwnerID) {
			return repositories.NewVariantError(repositories.VariantErrorNotOwned, fmt.Sprintf("variant %s is not owned by %s", variantID, owner), nil)
		}

		if req.Price != nil {
			doc.Price = *req.Price
		}
		if req.Cost != nil {
			doc.Cost = *req.Cost
		}
		doc.UpdatedAt = now

		if err := tx.Set(variantRef, doc); err != nil {
			return err
		}
		updated = doc.toDomain(variantID)
		return nil
	})
	if err != nil {
		return domain.Variant{}, wrapVariantError("variant.updateFields", err)
	}
	return updated, nil
}

func (r *VariantRepository) Delete(ctx context.Context, variantID string) error {
	if r == nil || r.provider == nil {
		return errors.New("variant repository not initialised")
	}
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return repositories.NewVariantError(repositories.VariantErrorNotFound, "variant delete: id is required", nil)
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		variantRef, err := r.variants.DocumentRef(ctx, variantID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(variantRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewVariantError(repositories.VariantErrorNotFound, fmt.Sprintf("variant %s not found", variantID), err)
			}
			return err
		}
		var doc variantDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode variant %s: %w", variantID, err)
		}

		sigRef, err := r.sigs.DocumentRef(ctx, signatureIndexID(doc.ProductID, doc.Signature))
		if err != nil {
			return err
		}
		skuRef, err := r.skus.DocumentRef(ctx, skuIndexID(doc.OwnerID, doc.SKU))
		if err != nil {
			return err
		}

		if err := tx.Delete(variantRef); err != nil {
			return err
		}
		if err := tx.Delete(sigRef); err != nil {
			return err
		}
		return tx.Delete(skuRef)
	})
	return wrapVariantError("variant.delete", err)
}

// Helper structures ---------------------------------------------------------

type variantDocument struct {
	ProductID string               `firestore:"productId"`
	OwnerID   string               `firestore:"ownerId"`
	Options   []optionPairDocument `firestore:"options"`
	Signature string               `firestore:"signature"`
	SKU       string               `firestore:"sku"`
	Price     int64                `firestore:"price"`
	Cost      int64                `firestore:"cost"`
	Quantity  int64                `firestore:"quantity"`
	CreatedAt time.Time            `firestore:"createdAt"`
	UpdatedAt time.Time            `firestore:"updatedAt"`
}

type optionPairDocument struct {
	TypeName string `firestore:"typeName"`
	Value    string `firestore:"value"`
}

type skuIndexDocument struct {
	OwnerID   string    `firestore:"ownerId"`
	SKU       string    `firestore:"sku"`
	VariantID string    `firestore:"variantId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type signatureIndexDocument struct {
	ProductID string    `firestore:"productId"`
	VariantID string    `firestore:"variantId"`
	Signature string    `firestore:"signature"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func newVariantDocument(v domain.Variant) variantDocument {
	options := make([]optionPairDocument, len(v.Options))
	for i, pair := range v.Options {
		options[i] = optionPairDocument{
			TypeName: strings.TrimSpace(pair.TypeName),
			Value:    strings.TrimSpace(pair.Value),
		}
	}
	return variantDocument{
		ProductID: strings.TrimSpace(v.ProductID),
		OwnerID:   strings.TrimSpace(v.OwnerID),
		Options:   options,
		Signature: v.SignatureKey(),
		SKU:       strings.TrimSpace(v.SKU),
		Price:     v.Price,
		Cost:      v.Cost,
		Quantity:  v.Quantity,
		CreatedAt: v.CreatedAt.UTC(),
		UpdatedAt: v.UpdatedAt.UTC(),
	}
}

func (d variantDocument) toDomain(id string) domain.Variant {
	options := make([]domain.OptionPair, len(d.Options))
	for i, pair := range d.Options {
		options[i] = domain.OptionPair{TypeName: pair.TypeName, Value: pair.Value}
	}
	return domain.Variant{
		ID:        id,
		ProductID: strings.TrimSpace(d.ProductID),
		OwnerID:   strings.TrimSpace(d.OwnerID),
		Options:   options,
		SKU:       strings.TrimSpace(d.SKU),
		Price:     d.Price,
		Cost:      d.Cost,
		Quantity:  d.Quantity,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func decodeVariants(docs []pfirestore.Document[variantDocument]) []domain.Variant {
	variants := make([]domain.Variant, 0, len(docs))
	for _, doc := range docs {
		variants = append(variants, doc.Data.toDomain(doc.ID))
	}
	return variants
}

// Index document IDs. Product and owner ids are generated ULIDs, but
// signatures carry option values from stored templates and SKUs carry the
// product's base SKU, either of which may contain '/' or other characters
// Firestore rejects in document names. The free-form component is hashed.
func signatureIndexID(productID, signature string) string {
	return productID + "__" + indexKey(signature)
}

func skuIndexID(ownerID, sku string) string {
	return ownerID + "__" + indexKey(strings.ToUpper(strings.TrimSpace(sku)))
}

func indexKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func wrapVariantError(op string, err error) error {
	if err == nil {
		return nil
	}
	var varErr *repositories.VariantError
	if errors.As(err, &varErr) {
		if varErr.Op == "" {
			varErr.Op = op
		}
		return varErr
	}
	return pfirestore.WrapError(op, err)
}
