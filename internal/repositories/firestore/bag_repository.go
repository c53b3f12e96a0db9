package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/tastyhub/api/internal/domain"
	pfirestore "github.com/tastyhub/api/internal/platform/firestore"
	"github.com/tastyhub/api/internal/repositories"
)

const bagCollection = "bags"

// BagRepository persists shopping bags keyed by the owning session or user id.
type BagRepository struct {
	base     *pfirestore.BaseRepository[bagDocument]
	provider *pfirestore.Provider
}

// NewBagRepository constructs a Firestore-backed bag repository.
func NewBagRepository(provider *pfirestore.Provider) (*BagRepository, error) {
	if provider == nil {
		return nil, errors.New("bag repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[bagDocument](provider, bagCollection)
	return &BagRepository{base: base, provider: provider}, nil
}

var _ repositories.BagRepository = (*BagRepository)(nil)

// Get loads the bag for the owner. A missing document is an empty bag, not an error.
func (r *BagRepository) Get(ctx context.Context, ownerID string) (domain.Bag, error) {
	if err := r.ready(); err != nil {
		return domain.Bag{}, err
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return domain.Bag{}, errors.New("bag owner id is required")
	}

	doc, err := r.base.Get(ctx, ownerID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Bag{ID: ownerID, OwnerID: ownerID, Items: map[string]int{}}, nil
		}
		return domain.Bag{}, err
	}
	return toDomainBag(doc.ID, doc.Data), nil
}

// Save upserts the bag document. An empty bag is stored rather than deleted so
// the owner's last update time survives.
func (r *BagRepository) Save(ctx context.Context, bag domain.Bag) (domain.Bag, error) {
	if err := r.ready(); err != nil {
		return domain.Bag{}, err
	}
	ownerID := strings.TrimSpace(bag.OwnerID)
	if ownerID == "" {
		ownerID = strings.TrimSpace(bag.ID)
	}
	if ownerID == "" {
		return domain.Bag{}, errors.New("bag owner id is required")
	}

	doc := fromDomainBag(bag)
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	if _, err := r.base.Set(ctx, ownerID, doc); err != nil {
		return domain.Bag{}, err
	}
	saved := toDomainBag(ownerID, doc)
	return saved, nil
}

// Delete removes the bag document. Deleting a missing bag is a no-op.
func (r *BagRepository) Delete(ctx context.Context, ownerID string) error {
	if err := r.ready(); err != nil {
		return err
	}
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(ownerID))
	if err != nil {
		return err
	}
	if tx, ok := txFromContext(ctx); ok {
		if err := tx.Delete(ref); err != nil {
			return pfirestore.WrapError("bags.delete", err)
		}
		return nil
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("bags.delete", err)
	}
	return nil
}

func (r *BagRepository) ready() error {
	if r == nil || r.base == nil {
		return errors.New("bag repository not initialised")
	}
	return nil
}

type bagDocument struct {
	Items     map[string]int64 `firestore:"items"`
	UpdatedAt time.Time        `firestore:"updatedAt"`
}

func fromDomainBag(bag domain.Bag) bagDocument {
	items := make(map[string]int64, len(bag.Items))
	for id, qty := range bag.Items {
		id = strings.TrimSpace(id)
		if id == "" || qty < 1 {
			continue
		}
		items[id] = int64(qty)
	}
	return bagDocument{Items: items, UpdatedAt: bag.UpdatedAt}
}

func toDomainBag(ownerID string, doc bagDocument) domain.Bag {
	items := make(map[string]int, len(doc.Items))
	for id, qty := range doc.Items {
		if qty < 1 {
			continue
		}
		items[id] = int(qty)
	}
	return domain.Bag{
		ID:        ownerID,
		OwnerID:   ownerID,
		Items:     items,
		UpdatedAt: doc.UpdatedAt,
	}
}
