package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/tastyhub/api/internal/domain"
	pfirestore "github.com/tastyhub/api/internal/platform/firestore"
	"github.com/tastyhub/api/internal/repositories"
)

const portionCollection = "dishPortions"

// PortionRepository persists sellable dish portions in Firestore. Portions live
// in a top-level collection so the pricing path can batch-load them by id.
type PortionRepository struct {
	base     *pfirestore.BaseRepository[portionDocument]
	provider *pfirestore.Provider
}

// NewPortionRepository constructs a Firestore-backed portion repository.
func NewPortionRepository(provider *pfirestore.Provider) (*PortionRepository, error) {
	if provider == nil {
		return nil, errors.New("portion repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[portionDocument](provider, portionCollection)
	return &PortionRepository{base: base, provider: provider}, nil
}

var _ repositories.PortionRepository = (*PortionRepository)(nil)

// Insert creates the portion document, failing when the id already exists.
func (r *PortionRepository) Insert(ctx context.Context, portion domain.DishPortion) error {
	if err := r.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(portion.ID) == "" {
		return errors.New("portion id is required")
	}
	ref, err := r.base.DocumentRef(ctx, portion.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, fromDomainPortion(portion)); err != nil {
		return pfirestore.WrapError("portions.insert", err)
	}
	return nil
}

// Update overwrites the portion document.
func (r *PortionRepository) Update(ctx context.Context, portion domain.DishPortion) error {
	if err := r.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(portion.ID) == "" {
		return errors.New("portion id is required")
	}
	_, err := r.base.Set(ctx, portion.ID, fromDomainPortion(portion))
	return err
}

// Delete removes the portion document.
func (r *PortionRepository) Delete(ctx context.Context, portionID string) error {
	if err := r.ready(); err != nil {
		return err
	}
	ref, err := r.base.DocumentRef(ctx, portionID)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("portions.delete", err)
	}
	return nil
}

// FindByID loads a portion by document id.
func (r *PortionRepository) FindByID(ctx context.Context, portionID string) (domain.DishPortion, error) {
	if err := r.ready(); err != nil {
		return domain.DishPortion{}, err
	}
	doc, err := r.base.Get(ctx, portionID)
	if err != nil {
		return domain.DishPortion{}, err
	}
	return toDomainPortion(doc.ID, doc.Data)
}

// FindByIDs loads the requested portions. Missing ids are simply absent from
// the result so callers can treat them as removed catalog items.
func (r *PortionRepository) FindByIDs(ctx context.Context, portionIDs []string) (map[string]domain.DishPortion, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	out := make(map[string]domain.DishPortion, len(portionIDs))
	for _, id := range portionIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		doc, err := r.base.Get(ctx, id)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				continue
			}
			return nil, err
		}
		portion, err := toDomainPortion(doc.ID, doc.Data)
		if err != nil {
			return nil, err
		}
		out[portion.ID] = portion
	}
	return out, nil
}

// ListByDish returns the portions of a dish ordered by serving weight.
func (r *PortionRepository) ListByDish(ctx context.Context, dishID string) ([]domain.DishPortion, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	dishID = strings.TrimSpace(dishID)
	if dishID == "" {
		return nil, errors.New("dish id is required")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("dishId", "==", dishID).OrderBy("weightGrams", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.DishPortion, 0, len(docs))
	for _, doc := range docs {
		portion, err := toDomainPortion(doc.ID, doc.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, portion)
	}
	return out, nil
}

func (r *PortionRepository) ready() error {
	if r == nil || r.base == nil {
		return errors.New("portion repository not initialised")
	}
	return nil
}

type portionDocument struct {
	DishID      string    `firestore:"dishId"`
	Size        string    `firestore:"size"`
	WeightGrams int       `firestore:"weightGrams"`
	Price       string    `firestore:"price"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func fromDomainPortion(portion domain.DishPortion) portionDocument {
	return portionDocument{
		DishID:      strings.TrimSpace(portion.DishID),
		Size:        string(portion.Size),
		WeightGrams: portion.WeightGrams,
		Price:       portion.Price.String(),
		CreatedAt:   portion.CreatedAt,
		UpdatedAt:   portion.UpdatedAt,
	}
}

func toDomainPortion(id string, doc portionDocument) (domain.DishPortion, error) {
	price, err := domain.ParseMoney(doc.Price)
	if err != nil {
		return domain.DishPortion{}, err
	}
	return domain.DishPortion{
		ID:          id,
		DishID:      doc.DishID,
		Size:        domain.PortionSize(doc.Size),
		WeightGrams: doc.WeightGrams,
		Price:       price,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}
