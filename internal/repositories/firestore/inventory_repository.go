package firestore

import (
	"context"
	"encoding/base64"
	"encoding/json"
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

const inventoryLogsCollection = "inventoryLogs"

// InventoryRepository owns the quantity fields on products and variants and
// the append-only ledger. Adjust runs the read-modify-write-log sequence in
// one Firestore transaction; concurrent adjusts on the same target abort and
// surface as conflicts.
type InventoryRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[productDocument]
	variants *pfirestore.BaseRepository[variantDocument]
	logs     *pfirestore.BaseRepository[logEntryDocument]
}

var _ repositories.InventoryRepository = (*InventoryRepository)(nil)

// NewInventoryRepository constructs a Firestore-backed inventory ledger.
func NewInventoryRepository(provider *pfirestore.Provider) (*InventoryRepository, error) {
	if provider == nil {
		return nil, errors.New("inventory repository requires firestore provider")
	}
	return &InventoryRepository{
		provider: provider,
		products: pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil),
		variants: pfirestore.NewBaseRepository[variantDocument](provider, variantsCollection, nil),
		logs:     pfirestore.NewBaseRepository[logEntryDocument](provider, inventoryLogsCollection, nil),
	}, nil
}

func (r *InventoryRepository) Adjust(ctx context.Context, req repositories.InventoryAdjustRequest) (repositories.InventoryAdjustResult, error) {
	if r == nil || r.provider == nil {
		return repositories.InventoryAdjustResult{}, errors.New("inventory repository not initialised")
	}
	if strings.TrimSpace(req.EntryID) == "" {
		return repositories.InventoryAdjustResult{}, errors.New("inventory adjust: entry id is required")
	}
	if req.Target.ProductID == "" && req.Target.VariantID == "" {
		return repositories.InventoryAdjustResult{}, repositories.NewLedgerError(repositories.LedgerErrorTargetNotFound, "inventory adjust: target is required", nil)
	}
	if !req.Target.IsVariant() && (req.Price != nil || req.Cost != nil) {
		return repositories.InventoryAdjustResult{}, errors.New("inventory adjust: price and cost apply to variant targets only")
	}

	now := req.Now.UTC()
	var entry domain.InventoryLogEntry

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var (
			targetRef *firestore.DocumentRef
			ownerID   string
			productID string
			variantID string
			previous  int64
			err       error
		)

		if req.Target.IsVariant() {
			variantID = strings.TrimSpace(req.Target.VariantID)
			targetRef, err = r.variants.DocumentRef(ctx, variantID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(targetRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewLedgerError(repositories.LedgerErrorTargetNotFound, fmt.Sprintf("variant %s not found", variantID), err)
				}
				return err
			}
			var doc variantDocument
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode variant %s: %w", variantID, err)
			}
			ownerID = strings.TrimSpace(doc.OwnerID)
			productID = strings.TrimSpace(doc.ProductID)
			previous = doc.Quantity
		} else {
			productID = strings.TrimSpace(req.Target.ProductID)
			targetRef, err = r.products.DocumentRef(ctx, productID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(targetRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewLedgerError(repositories.LedgerErrorTargetNotFound, fmt.Sprintf("product %s not found", productID), err)
				}
				return err
			}
			var doc productDocument
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode product %s: %w", productID, err)
			}
			ownerID = strings.TrimSpace(doc.OwnerID)
			previous = doc.Quantity
		}

		if owner := strings.TrimSpace(req.OwnerID); owner != "" && owner != ownerID {
			return repositories.NewLedgerError(repositories.LedgerErrorNotOwned, "inventory adjust: target is not owned by caller", nil)
		}

		updates := []firestore.Update{
			{Path: "quantity", Value: req.NewQuantity},
			{Path: "updatedAt", Value: now},
		}
		if req.Target.IsVariant() {
			if req.Price != nil {
				updates = append(updates, firestore.Update{Path: "price", Value: *req.Price})
			}
			if req.Cost != nil {
				updates = append(updates, firestore.Update{Path: "cost", Value: *req.Cost})
			}
		}
		if err := tx.Update(targetRef, updates); err != nil {
			return err
		}

		logRef, err := r.logs.DocumentRef(ctx, req.EntryID)
		if err != nil {
			return err
		}
		logDoc := logEntryDocument{
			ProductID:        productID,
			VariantID:        variantID,
			OwnerID:          ownerID,
			PreviousQuantity: previous,
			NewQuantity:      req.NewQuantity,
			ChangeAmount:     req.NewQuantity - previous,
			ChangeType:       string(req.ChangeType),
			ActorID:          strings.TrimSpace(req.ActorID),
			Notes:            strings.TrimSpace(req.Notes),
			CreatedAt:        now,
		}
		if err := tx.Create(logRef, logDoc); err != nil {
			return err
		}

		entry = logDoc.toDomain(req.EntryID)
		return nil
	})
	if err != nil {
		return repositories.InventoryAdjustResult{}, wrapLedgerError("inventory.adjust", err)
	}
	return repositories.InventoryAdjustResult{Entry: entry}, nil
}

func (r *InventoryRepository) ListLogs(ctx context.Context, query repositories.InventoryLogQuery) (domain.CursorPage[domain.InventoryLogEntry], error) {
	if r == nil || r.logs == nil {
		return domain.CursorPage[domain.InventoryLogEntry]{}, errors.New("inventory repository not initialised")
	}
	if query.Target.ProductID == "" && query.Target.VariantID == "" {
		return domain.CursorPage[domain.InventoryLogEntry]{}, repositories.NewLedgerError(repositories.LedgerErrorTargetNotFound, "inventory logs: target is required", nil)
	}

	pageSize := query.Pager.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}

	var token *logPageToken
	if raw := strings.TrimSpace(query.Pager.PageToken); raw != "" {
		decoded, err := decodeLogPageToken(raw)
		if err != nil {
			return domain.CursorPage[domain.InventoryLogEntry]{}, wrapLedgerError("inventory.logs", err)
		}
		token = decoded
	}

	docs, err := r.logs.Query(ctx, func(q firestore.Query) firestore.Query {
		if query.Target.IsVariant() {
			q = q.Where("variantId", "==", strings.TrimSpace(query.Target.VariantID))
		} else {
			q = q.Where("productId", "==", strings.TrimSpace(query.Target.ProductID)).
				Where("variantId", "==", "")
		}
		q = q.OrderBy("createdAt", firestore.Asc).
			OrderBy(firestore.DocumentID, firestore.Asc).
			Limit(pageSize + 1)
		if token != nil {
			q = q.StartAfter(token.CreatedAt, token.EntryID)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.InventoryLogEntry]{}, wrapLedgerError("inventory.logs", err)
	}

	entries := make([]domain.InventoryLogEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, doc.Data.toDomain(doc.ID))
	}

	hasMore := len(entries) > pageSize
	if hasMore {
		entries = entries[:pageSize]
	}
	var nextToken string
	if hasMore && len(entries) > 0 {
		last := entries[len(entries)-1]
		encoded, err := encodeLogPageToken(logPageToken{CreatedAt: last.CreatedAt, EntryID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.InventoryLogEntry]{}, wrapLedgerError("inventory.logs", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.InventoryLogEntry]{
		Items:         entries,
		NextPageToken: nextToken,
	}, nil
}

func (r *InventoryRepository) RecentLogs(ctx context.Context, ownerID string, limit int) ([]domain.InventoryLogEntry, error) {
	if r == nil || r.logs == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, errors.New("inventory recent logs: owner id is required")
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	docs, err := r.logs.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("ownerId", "==", ownerID).
			OrderBy("createdAt", firestore.Desc).
			Limit(limit)
	})
	if err != nil {
		return nil, wrapLedgerError("inventory.recentLogs", err)
	}

	entries := make([]domain.InventoryLogEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, doc.Data.toDomain(doc.ID))
	}
	return entries, nil
}

// Helper structures ---------------------------------------------------------

type logEntryDocument struct {
	ProductID        string    `firestore:"productId"`
	VariantID        string    `firestore:"variantId"`
	OwnerID          string    `firestore:"ownerId"`
	PreviousQuantity int64     `firestore:"previousQuantity"`
	NewQuantity      int64     `firestore:"newQuantity"`
	ChangeAmount     int64     `firestore:"changeAmount"`
	ChangeType       string    `firestore:"changeType"`
	ActorID          string    `firestore:"actorId"`
	Notes            string    `firestore:"notes,omitempty"`
	CreatedAt        time.Time `firestore:"createdAt"`
}

func (d logEntryDocument) toDomain(id string) domain.InventoryLogEntry {
	return domain.InventoryLogEntry{
		ID:               id,
		ProductID:        strings.TrimSpace(d.ProductID),
		VariantID:        strings.TrimSpace(d.VariantID),
		PreviousQuantity: d.PreviousQuantity,
		NewQuantity:      d.NewQuantity,
		ChangeAmount:     d.ChangeAmount,
		ChangeType:       domain.ChangeType(d.ChangeType),
		ActorID:          strings.TrimSpace(d.ActorID),
		Notes:            d.Notes,
		CreatedAt:        d.CreatedAt,
	}
}

type logPageToken struct {
	CreatedAt time.Time `json:"createdAt"`
	EntryID   string    `json:"entryId"`
}

func encodeLogPageToken(token logPageToken) (string, error) {
	data, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("encode log page token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func decodeLogPageToken(encoded string) (*logPageToken, error) {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode log page token: %w", err)
	}
	var token logPageToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decode log page token json: %w", err)
	}
	return &token, nil
}

func wrapLedgerError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ledgerErr *repositories.LedgerError
	if errors.As(err, &ledgerErr) {
		if ledgerErr.Op == "" {
			ledgerErr.Op = op
		}
		return ledgerErr
	}
	var varErr *repositories.VariantError
	if errors.As(err, &varErr) {
		return varErr
	}
	return pfirestore.WrapError(op, err)
}
