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
	"github.com/tastyhub/api/internal/repositories"
)

const categoryCollection = "categories"

// CategoryRepository persists menu categories in Firestore.
type CategoryRepository struct {
	base     *pfirestore.BaseRepository[categoryDocument]
	provider *pfirestore.Provider
}

// NewCategoryRepository constructs a Firestore-backed category repository.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[categoryDocument](provider, categoryCollection)
	return &CategoryRepository{base: base, provider: provider}, nil
}

// Insert creates the category document, failing when the id already exists.
func (r *CategoryRepository) Insert(ctx context.Context, category domain.Category) error {
	if err := r.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(category.ID) == "" {
		return errors.New("category id is required")
	}
	ref, err := r.base.DocumentRef(ctx, category.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, fromDomainCategory(category)); err != nil {
		return pfirestore.WrapError("categories.insert", err)
	}
	return nil
}

// Update overwrites the category document.
func (r *CategoryRepository) Update(ctx context.Context, category domain.Category) error {
	if err := r.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(category.ID) == "" {
		return errors.New("category id is required")
	}
	_, err := r.base.Set(ctx, category.ID, fromDomainCategory(category))
	return err
}

// Delete removes the category document.
func (r *CategoryRepository) Delete(ctx context.Context, categoryID string) error {
	if err := r.ready(); err != nil {
		return err
	}
	ref, err := r.base.DocumentRef(ctx, categoryID)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("categories.delete", err)
	}
	return nil
}

// FindByID loads a category by document id.
func (r *CategoryRepository) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	if err := r.ready(); err != nil {
		return domain.Category{}, err
	}
	doc, err := r.base.Get(ctx, categoryID)
	if err != nil {
		return domain.Category{}, err
	}
	return toDomainCategory(doc.ID, doc.Data), nil
}

// FindBySlug loads a category by its slug.
func (r *CategoryRepository) FindBySlug(ctx context.Context, slug string) (domain.Category, error) {
	if err := r.ready(); err != nil {
		return domain.Category{}, err
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return domain.Category{}, errors.New("category slug is required")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("slug", "==", slug).Limit(1)
	})
	if err != nil {
		return domain.Category{}, err
	}
	if len(docs) == 0 {
		return domain.Category{}, pfirestore.WrapError("categories.findBySlug", status.Error(codes.NotFound, "category slug not found"))
	}
	return toDomainCategory(docs[0].ID, docs[0].Data), nil
}

// List returns categories ordered by name, optionally filtered by menu type.
func (r *CategoryRepository) List(ctx context.Context, filter repositories.CategoryListFilter) ([]domain.Category, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.MenuType != nil {
			q = q.Where("menuType", "==", string(*filter.MenuType))
		}
		return q.OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDomainCategory(doc.ID, doc.Data))
	}
	return out, nil
}

var _ repositories.CategoryRepository = (*CategoryRepository)(nil)

func (r *CategoryRepository) ready() error {
	if r == nil || r.base == nil {
		return errors.New("category repository not initialised")
	}
	return nil
}

type categoryDocument struct {
	Name        string    `firestore:"name"`
	Slug        string    `firestore:"slug"`
	MenuType    string    `firestore:"menuType"`
	Description string    `firestore:"description,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func fromDomainCategory(category domain.Category) categoryDocument {
	return categoryDocument{
		Name:        strings.TrimSpace(category.Name),
		Slug:        strings.TrimSpace(category.Slug),
		MenuType:    string(category.MenuType),
		Description: strings.TrimSpace(category.Description),
		CreatedAt:   category.CreatedAt,
		UpdatedAt:   category.UpdatedAt,
	}
}

func toDomainCategory(id string, doc categoryDocument) domain.Category {
	return domain.Category{
		ID:          id,
		Name:        doc.Name,
		Slug:        doc.Slug,
		MenuType:    domain.MenuType(doc.MenuType),
		Description: doc.Description,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}
