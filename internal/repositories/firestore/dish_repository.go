package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/tastyhub/api/internal/domain"
	pfirestore "github.com/tastyhub/api/internal/platform/firestore"
	"github.com/tastyhub/api/internal/platform/pagination"
	"github.com/tastyhub/api/internal/repositories"
)

const dishCollection = "dishes"

// DishRepository persists dishes in Firestore.
type DishRepository struct {
	base     *pfirestore.BaseRepository[dishDocument]
	provider *pfirestore.Provider
}

// NewDishRepository constructs a Firestore-backed dish repository.
func NewDishRepository(provider *pfirestore.Provider) (*DishRepository, error) {
	if provider == nil {
		return nil, errors.New("dish repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[dishDocument](provider, dishCollection)
	return &DishRepository{base: base, provider: provider}, nil
}

var _ repositories.DishRepository = (*DishRepository)(nil)

// Insert creates the dish document, failing when the id already exists.
func (r *DishRepository) Insert(ctx context.Context, dish domain.Dish) error {
	if err := r.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(dish.ID) == "" {
		return errors.New("dish id is required")
	}
	doc, err := fromDomainDish(dish)
	if err != nil {
		return err
	}
	ref, err := r.base.DocumentRef(ctx, dish.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("dishes.insert", err)
	}
	return nil
}

// Update overwrites the dish document.
func (r *DishRepository) Update(ctx context.Context, dish domain.Dish) error {
	if err := r.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(dish.ID) == "" {
		return errors.New("dish id is required")
	}
	doc, err := fromDomainDish(dish)
	if err != nil {
		return err
	}
	_, err = r.base.Set(ctx, dish.ID, doc)
	return err
}

// Delete removes the dish document.
func (r *DishRepository) Delete(ctx context.Context, dishID string) error {
	if err := r.ready(); err != nil {
		return err
	}
	ref, err := r.base.DocumentRef(ctx, dishID)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("dishes.delete", err)
	}
	return nil
}

// FindByID loads a dish by document id.
func (r *DishRepository) FindByID(ctx context.Context, dishID string) (domain.Dish, error) {
	if err := r.ready(); err != nil {
		return domain.Dish{}, err
	}
	doc, err := r.base.Get(ctx, dishID)
	if err != nil {
		return domain.Dish{}, err
	}
	return toDomainDish(doc.ID, doc.Data)
}

// FindBySlug loads a dish by category and slug.
func (r *DishRepository) FindBySlug(ctx context.Context, categoryID, slug string) (domain.Dish, error) {
	if err := r.ready(); err != nil {
		return domain.Dish{}, err
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return domain.Dish{}, errors.New("dish slug is required")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("slug", "==", slug)
		if categoryID = strings.TrimSpace(categoryID); categoryID != "" {
			q = q.Where("categoryId", "==", categoryID)
		}
		return q.Limit(1)
	})
	if err != nil {
		return domain.Dish{}, err
	}
	if len(docs) == 0 {
		return domain.Dish{}, pfirestore.WrapError("dishes.findBySlug", status.Error(codes.NotFound, "dish slug not found"))
	}
	return toDomainDish(docs[0].ID, docs[0].Data)
}

// List returns a cursor page of dishes ordered by name.
func (r *DishRepository) List(ctx context.Context, filter repositories.DishListFilter) (domain.CursorPage[domain.Dish], error) {
	if err := r.ready(); err != nil {
		return domain.CursorPage[domain.Dish]{}, err
	}

	pageSize := pagination.ClampPageSize(filter.Pagination.PageSize)
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Dish]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		switch len(filter.CategoryIDs) {
		case 0:
		case 1:
			q = q.Where("categoryId", "==", filter.CategoryIDs[0])
		default:
			q = q.Where("categoryId", "in", filter.CategoryIDs)
		}
		if filter.AvailableOnly {
			q = q.Where("available", "==", true)
		}
		if filter.SpecialsOnly {
			q = q.Where("isSpecial", "==", true)
		}
		q = q.OrderBy("name", firestore.Asc)
		if len(cursor.StartAfter) > 0 {
			q = q.StartAfter(cursor.StartAfter...)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Dish]{}, err
	}

	page := domain.CursorPage[domain.Dish]{Items: make([]domain.Dish, 0, len(docs))}
	for i, doc := range docs {
		if i == pageSize {
			token, err := pagination.EncodeToken(pagination.Cursor{StartAfter: []any{docs[i-1].Data.Name}})
			if err != nil {
				return domain.CursorPage[domain.Dish]{}, err
			}
			page.NextPageToken = token
			break
		}
		dish, err := toDomainDish(doc.ID, doc.Data)
		if err != nil {
			return domain.CursorPage[domain.Dish]{}, err
		}
		page.Items = append(page.Items, dish)
	}
	return page, nil
}

func (r *DishRepository) ready() error {
	if r == nil || r.base == nil {
		return errors.New("dish repository not initialised")
	}
	return nil
}

type dishDocument struct {
	CategoryID     string     `firestore:"categoryId"`
	Name           string     `firestore:"name"`
	Slug           string     `firestore:"slug"`
	Description    string     `firestore:"description,omitempty"`
	Ingredients    string     `firestore:"ingredients,omitempty"`
	Vegetarian     bool       `firestore:"vegetarian"`
	Vegan          bool       `firestore:"vegan"`
	GlutenFree     bool       `firestore:"glutenFree"`
	Spicy          bool       `firestore:"spicy"`
	PrepTimeMins   int        `firestore:"prepTimeMins"`
	Calories       int        `firestore:"calories"`
	BasePrice      string     `firestore:"basePrice"`
	ImagePath      string     `firestore:"imagePath,omitempty"`
	Available      bool       `firestore:"available"`
	IsSpecial      bool       `firestore:"isSpecial"`
	AvailableFrom  *time.Time `firestore:"availableFrom,omitempty"`
	AvailableUntil *time.Time `firestore:"availableUntil,omitempty"`
	CreatedAt      time.Time  `firestore:"createdAt"`
	UpdatedAt      time.Time  `firestore:"updatedAt"`
}

func fromDomainDish(dish domain.Dish) (dishDocument, error) {
	return dishDocument{
		CategoryID:     strings.TrimSpace(dish.CategoryID),
		Name:           strings.TrimSpace(dish.Name),
		Slug:           strings.TrimSpace(dish.Slug),
		Description:    strings.TrimSpace(dish.Description),
		Ingredients:    strings.TrimSpace(dish.Ingredients),
		Vegetarian:     dish.Dietary.Vegetarian,
		Vegan:          dish.Dietary.Vegan,
		GlutenFree:     dish.Dietary.GlutenFree,
		Spicy:          dish.Dietary.Spicy,
		PrepTimeMins:   dish.PrepTimeMins,
		Calories:       dish.Calories,
		BasePrice:      dish.BasePrice.String(),
		ImagePath:      strings.TrimSpace(dish.ImagePath),
		Available:      dish.Available,
		IsSpecial:      dish.IsSpecial,
		AvailableFrom:  dish.AvailableFrom,
		AvailableUntil: dish.AvailableUntil,
		CreatedAt:      dish.CreatedAt,
		UpdatedAt:      dish.UpdatedAt,
	}, nil
}

func toDomainDish(id string, doc dishDocument) (domain.Dish, error) {
	price, err := domain.ParseMoney(doc.BasePrice)
	if err != nil {
		return domain.Dish{}, err
	}
	return domain.Dish{
		ID:          id,
		CategoryID:  doc.CategoryID,
		Name:        doc.Name,
		Slug:        doc.Slug,
		Description: doc.Description,
		Ingredients: doc.Ingredients,
		Dietary: domain.DietaryInfo{
			Vegetarian: doc.Vegetarian,
			Vegan:      doc.Vegan,
			GlutenFree: doc.GlutenFree,
			Spicy:      doc.Spicy,
		},
		PrepTimeMins:   doc.PrepTimeMins,
		Calories:       doc.Calories,
		BasePrice:      price,
		ImagePath:      doc.ImagePath,
		Available:      doc.Available,
		IsSpecial:      doc.IsSpecial,
		AvailableFrom:  doc.AvailableFrom,
		AvailableUntil: doc.AvailableUntil,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}, nil
}
