package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/platform/textutil"
	"github.com/tastyhub/api/internal/repositories"
)

var (
	// ErrCatalogInvalidInput marks rejected catalog commands.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogNotFound is returned when a catalog entity does not exist.
	ErrCatalogNotFound = errors.New("catalog: not found")
	// ErrCatalogConflict is returned on slug collisions and guarded deletes.
	ErrCatalogConflict = errors.New("catalog: conflict")
	// ErrCatalogUnavailable wraps transient persistence failures.
	ErrCatalogUnavailable = errors.New("catalog: temporarily unavailable")
)

// portionSequence is the counter that hands out numeric portion document ids.
// Bag payloads reference portions by these numbers.
const portionSequence = "dishPortions"

// CatalogServiceDeps bundles collaborators required to construct the catalog service.
type CatalogServiceDeps struct {
	Categories  repositories.CategoryRepository
	Dishes      repositories.DishRepository
	Portions    repositories.PortionRepository
	Counters    repositories.CounterRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	categories repositories.CategoryRepository
	dishes     repositories.DishRepository
	portions   repositories.PortionRepository
	counters   repositories.CounterRepository
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Categories == nil {
		return nil, errors.New("catalog service: category repository is required")
	}
	if deps.Dishes == nil {
		return nil, errors.New("catalog service: dish repository is required")
	}
	if deps.Portions == nil {
		return nil, errors.New("catalog service: portion repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("catalog service: counter repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &catalogService{
		categories: deps.Categories,
		dishes:     deps.Dishes,
		portions:   deps.Portions,
		counters:   deps.Counters,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// ListCategories returns categories, optionally narrowed to one menu type.
func (s *catalogService) ListCategories(ctx context.Context, menuType string) ([]domain.Category, error) {
	filter := repositories.CategoryListFilter{}
	if menuType = strings.TrimSpace(menuType); menuType != "" {
		mt, ok := domain.ParseMenuType(menuType)
		if !ok {
			return nil, fmt.Errorf("%w: unknown menu type %q", ErrCatalogInvalidInput, menuType)
		}
		filter.MenuType = &mt
	}
	categories, err := s.categories.List(ctx, filter)
	if err != nil {
		return nil, s.translateCatalogError(err)
	}
	return categories, nil
}

// ListDishes pages dishes for menu browsing. Menu type narrows via the
// categories that belong to it; a category slug narrows to that category.
func (s *catalogService) ListDishes(ctx context.Context, query MenuQuery) (domain.CursorPage[domain.Dish], error) {
	filter := repositories.DishListFilter{
		AvailableOnly: query.AvailableOnly,
		SpecialsOnly:  query.SpecialsOnly,
		Pagination:    query.Pagination,
	}

	if slug := strings.TrimSpace(query.CategorySlug); slug != "" {
		category, err := s.categories.FindBySlug(ctx, slug)
		if err != nil {
			return domain.CursorPage[domain.Dish]{}, s.translateCatalogError(err)
		}
		filter.CategoryIDs = []string{category.ID}
	} else if menuType := strings.TrimSpace(query.MenuType); menuType != "" {
		categories, err := s.ListCategories(ctx, menuType)
		if err != nil {
			return domain.CursorPage[domain.Dish]{}, err
		}
		if len(categories) == 0 {
			return domain.CursorPage[domain.Dish]{Items: []domain.Dish{}}, nil
		}
		for _, category := range categories {
			filter.CategoryIDs = append(filter.CategoryIDs, category.ID)
		}
	}

	page, err := s.dishes.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[domain.Dish]{}, s.translateCatalogError(err)
	}
	return page, nil
}

// GetDish resolves a dish detail view with its sellable portions.
func (s *catalogService) GetDish(ctx context.Context, categorySlug, dishSlug string) (DishWithPortions, error) {
	categorySlug = strings.TrimSpace(categorySlug)
	dishSlug = strings.TrimSpace(dishSlug)
	if categorySlug == "" || dishSlug == "" {
		return DishWithPortions{}, fmt.Errorf("%w: category and dish slugs are required", ErrCatalogInvalidInput)
	}

	category, err := s.categories.FindBySlug(ctx, categorySlug)
	if err != nil {
		return DishWithPortions{}, s.translateCatalogError(err)
	}
	dish, err := s.dishes.FindBySlug(ctx, category.ID, dishSlug)
	if err != nil {
		return DishWithPortions{}, s.translateCatalogError(err)
	}
	portions, err := s.portions.ListByDish(ctx, dish.ID)
	if err != nil {
		return DishWithPortions{}, s.translateCatalogError(err)
	}
	return DishWithPortions{Dish: dish, Portions: portions}, nil
}

// PortionDetails loads portion price snapshots joined with their parent
// dishes. Portions that no longer exist, or whose dish is gone or marked
// unavailable, are silently absent from the result.
func (s *catalogService) PortionDetails(ctx context.Context, portionIDs []string) (map[string]PortionDetail, error) {
	if len(portionIDs) == 0 {
		return map[string]PortionDetail{}, nil
	}

	portions, err := s.portions.FindByIDs(ctx, portionIDs)
	if err != nil {
		return nil, s.translateCatalogError(err)
	}

	dishIDs := make([]string, 0, len(portions))
	seen := make(map[string]struct{}, len(portions))
	for _, portion := range portions {
		if _, ok := seen[portion.DishID]; ok {
			continue
		}
		seen[portion.DishID] = struct{}{}
		dishIDs = append(dishIDs, portion.DishID)
	}
	sort.Strings(dishIDs)

	now := s.clock()
	dishes := make(map[string]domain.Dish, len(dishIDs))
	for _, dishID := range dishIDs {
		dish, err := s.dishes.FindByID(ctx, dishID)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, s.translateCatalogError(err)
		}
		if !dish.AvailableAt(now) {
			continue
		}
		dishes[dish.ID] = dish
	}

	details := make(map[string]PortionDetail, len(portions))
	for id, portion := range portions {
		dish, ok := dishes[portion.DishID]
		if !ok {
			continue
		}
		details[id] = PortionDetail{Portion: portion, Dish: dish}
	}
	return details, nil
}

// CreateCategory adds a menu category with a slug derived from its name.
func (s *catalogService) CreateCategory(ctx context.Context, input CategoryInput) (domain.Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domain.Category{}, fmt.Errorf("%w: category name is required", ErrCatalogInvalidInput)
	}
	menuType, ok := domain.ParseMenuType(string(input.MenuType))
	if !ok {
		return domain.Category{}, fmt.Errorf("%w: unknown menu type %q", ErrCatalogInvalidInput, input.MenuType)
	}
	slug := textutil.Slugify(name)
	if slug == "" {
		return domain.Category{}, fmt.Errorf("%w: category name yields an empty slug", ErrCatalogInvalidInput)
	}
	if _, err := s.categories.FindBySlug(ctx, slug); err == nil {
		return domain.Category{}, fmt.Errorf("%w: category slug %q already exists", ErrCatalogConflict, slug)
	} else if !isNotFound(err) {
		return domain.Category{}, s.translateCatalogError(err)
	}

	now := s.clock()
	category := domain.Category{
		ID:          s.newID(),
		Name:        name,
		Slug:        slug,
		MenuType:    menuType,
		Description: strings.TrimSpace(input.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.categories.Insert(ctx, category); err != nil {
		return domain.Category{}, s.translateCatalogError(err)
	}
	s.logger(ctx, "catalog.category_created", map[string]any{"category_id": category.ID, "slug": slug})
	return category, nil
}

// UpdateCategory applies edits to a category. The slug follows the name.
func (s *catalogService) UpdateCategory(ctx context.Context, categoryID string, input CategoryInput) (domain.Category, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return domain.Category{}, fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}
	category, err := s.categories.FindByID(ctx, categoryID)
	if err != nil {
		return domain.Category{}, s.translateCatalogError(err)
	}

	if name := strings.TrimSpace(input.Name); name != "" && name != category.Name {
		slug := textutil.Slugify(name)
		if slug == "" {
			return domain.Category{}, fmt.Errorf("%w: category name yields an empty slug", ErrCatalogInvalidInput)
		}
		if existing, err := s.categories.FindBySlug(ctx, slug); err == nil && existing.ID != category.ID {
			return domain.Category{}, fmt.Errorf("%w: category slug %q already exists", ErrCatalogConflict, slug)
		} else if err != nil && !isNotFound(err) {
			return domain.Category{}, s.translateCatalogError(err)
		}
		category.Name = name
		category.Slug = slug
	}
	if string(input.MenuType) != "" {
		menuType, ok := domain.ParseMenuType(string(input.MenuType))
		if !ok {
			return domain.Category{}, fmt.Errorf("%w: unknown menu type %q", ErrCatalogInvalidInput, input.MenuType)
		}
		category.MenuType = menuType
	}
	category.Description = strings.TrimSpace(input.Description)
	category.UpdatedAt = s.clock()

	if err := s.categories.Update(ctx, category); err != nil {
		return domain.Category{}, s.translateCatalogError(err)
	}
	return category, nil
}

// DeleteCategory removes an empty category. Categories with dishes are kept.
func (s *catalogService) DeleteCategory(ctx context.Context, categoryID string) error {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}
	if _, err := s.categories.FindByID(ctx, categoryID); err != nil {
		return s.translateCatalogError(err)
	}
	page, err := s.dishes.List(ctx, repositories.DishListFilter{
		CategoryIDs: []string{categoryID},
		Pagination:  domain.Pagination{PageSize: 1},
	})
	if err != nil {
		return s.translateCatalogError(err)
	}
	if len(page.Items) > 0 {
		return fmt.Errorf("%w: category still has dishes", ErrCatalogConflict)
	}
	if err := s.categories.Delete(ctx, categoryID); err != nil {
		return s.translateCatalogError(err)
	}
	return nil
}

// CreateDish adds a dish under an existing category.
func (s *catalogService) CreateDish(ctx context.Context, input DishInput) (domain.Dish, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domain.Dish{}, fmt.Errorf("%w: dish name is required", ErrCatalogInvalidInput)
	}
	if input.BasePrice.IsNegative() {
		return domain.Dish{}, fmt.Errorf("%w: base price cannot be negative", ErrCatalogInvalidInput)
	}
	categoryID := strings.TrimSpace(input.CategoryID)
	if categoryID == "" {
		return domain.Dish{}, fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}
	if _, err := s.categories.FindByID(ctx, categoryID); err != nil {
		return domain.Dish{}, s.translateCatalogError(err)
	}
	slug := textutil.Slugify(name)
	if slug == "" {
		return domain.Dish{}, fmt.Errorf("%w: dish name yields an empty slug", ErrCatalogInvalidInput)
	}
	if _, err := s.dishes.FindBySlug(ctx, categoryID, slug); err == nil {
		return domain.Dish{}, fmt.Errorf("%w: dish slug %q already exists in category", ErrCatalogConflict, slug)
	} else if !isNotFound(err) {
		return domain.Dish{}, s.translateCatalogError(err)
	}

	now := s.clock()
	dish := domain.Dish{
		ID:             s.newID(),
		CategoryID:     categoryID,
		Name:           name,
		Slug:           slug,
		Description:    strings.TrimSpace(input.Description),
		Ingredients:    strings.TrimSpace(input.Ingredients),
		Dietary:        input.Dietary,
		PrepTimeMins:   input.PrepTimeMins,
		Calories:       input.Calories,
		BasePrice:      input.BasePrice.RoundCents(),
		ImagePath:      strings.TrimSpace(input.ImagePath),
		Available:      input.Available,
		IsSpecial:      input.IsSpecial,
		AvailableFrom:  input.AvailableFrom,
		AvailableUntil: input.AvailableUntil,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.dishes.Insert(ctx, dish); err != nil {
		return domain.Dish{}, s.translateCatalogError(err)
	}
	s.logger(ctx, "catalog.dish_created", map[string]any{"dish_id": dish.ID, "slug": slug})
	return dish, nil
}

// UpdateDish applies edits to a dish.
func (s *catalogService) UpdateDish(ctx context.Context, dishID string, input DishInput) (domain.Dish, error) {
	dishID = strings.TrimSpace(dishID)
	if dishID == "" {
		return domain.Dish{}, fmt.Errorf("%w: dish id is required", ErrCatalogInvalidInput)
	}
	if input.BasePrice.IsNegative() {
		return domain.Dish{}, fmt.Errorf("%w: base price cannot be negative", ErrCatalogInvalidInput)
	}
	dish, err := s.dishes.FindByID(ctx, dishID)
	if err != nil {
		return domain.Dish{}, s.translateCatalogError(err)
	}

	if categoryID := strings.TrimSpace(input.CategoryID); categoryID != "" && categoryID != dish.CategoryID {
		if _, err := s.categories.FindByID(ctx, categoryID); err != nil {
			return domain.Dish{}, s.translateCatalogError(err)
		}
		dish.CategoryID = categoryID
	}
	if name := strings.TrimSpace(input.Name); name != "" && name != dish.Name {
		slug := textutil.Slugify(name)
		if slug == "" {
			return domain.Dish{}, fmt.Errorf("%w: dish name yields an empty slug", ErrCatalogInvalidInput)
		}
		dish.Name = name
		dish.Slug = slug
	}
	dish.Description = strings.TrimSpace(input.Description)
	dish.Ingredients = strings.TrimSpace(input.Ingredients)
	dish.Dietary = input.Dietary
	dish.PrepTimeMins = input.PrepTimeMins
	dish.Calories = input.Calories
	dish.BasePrice = input.BasePrice.RoundCents()
	if imagePath := strings.TrimSpace(input.ImagePath); imagePath != "" {
		dish.ImagePath = imagePath
	}
	dish.Available = input.Available
	dish.IsSpecial = input.IsSpecial
	dish.AvailableFrom = input.AvailableFrom
	dish.AvailableUntil = input.AvailableUntil
	dish.UpdatedAt = s.clock()

	if err := s.dishes.Update(ctx, dish); err != nil {
		return domain.Dish{}, s.translateCatalogError(err)
	}
	return dish, nil
}

// DeleteDish removes a dish and its portions.
func (s *catalogService) DeleteDish(ctx context.Context, dishID string) error {
	dishID = strings.TrimSpace(dishID)
	if dishID == "" {
		return fmt.Errorf("%w: dish id is required", ErrCatalogInvalidInput)
	}
	if _, err := s.dishes.FindByID(ctx, dishID); err != nil {
		return s.translateCatalogError(err)
	}
	portions, err := s.portions.ListByDish(ctx, dishID)
	if err != nil {
		return s.translateCatalogError(err)
	}
	for _, portion := range portions {
		if err := s.portions.Delete(ctx, portion.ID); err != nil && !isNotFound(err) {
			return s.translateCatalogError(err)
		}
	}
	if err := s.dishes.Delete(ctx, dishID); err != nil {
		return s.translateCatalogError(err)
	}
	return nil
}

// CreatePortion adds a sellable portion with a numeric id from the portion
// sequence. Bag payloads and order line items reference that number.
func (s *catalogService) CreatePortion(ctx context.Context, input PortionInput) (domain.DishPortion, error) {
	dishID := strings.TrimSpace(input.DishID)
	if dishID == "" {
		return domain.DishPortion{}, fmt.Errorf("%w: dish id is required", ErrCatalogInvalidInput)
	}
	size, ok := domain.ParsePortionSize(string(input.Size))
	if !ok {
		return domain.DishPortion{}, fmt.Errorf("%w: unknown portion size %q", ErrCatalogInvalidInput, input.Size)
	}
	if input.WeightGrams <= 0 {
		return domain.DishPortion{}, fmt.Errorf("%w: weight must be positive", ErrCatalogInvalidInput)
	}
	if !input.Price.Decimal().IsPositive() {
		return domain.DishPortion{}, fmt.Errorf("%w: price must be positive", ErrCatalogInvalidInput)
	}
	if _, err := s.dishes.FindByID(ctx, dishID); err != nil {
		return domain.DishPortion{}, s.translateCatalogError(err)
	}

	sequence, err := s.counters.Next(ctx, portionSequence)
	if err != nil {
		return domain.DishPortion{}, s.translateCatalogError(err)
	}

	now := s.clock()
	portion := domain.DishPortion{
		ID:          strconv.FormatInt(sequence, 10),
		DishID:      dishID,
		Size:        size,
		WeightGrams: input.WeightGrams,
		Price:       input.Price.RoundCents(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.portions.Insert(ctx, portion); err != nil {
		return domain.DishPortion{}, s.translateCatalogError(err)
	}
	s.logger(ctx, "catalog.portion_created", map[string]any{"portion_id": portion.ID, "dish_id": dishID})
	return portion, nil
}

// UpdatePortion applies edits to a portion. The dish binding never changes.
func (s *catalogService) UpdatePortion(ctx context.Context, portionID string, input PortionInput) (domain.DishPortion, error) {
	portionID = strings.TrimSpace(portionID)
	if portionID == "" {
		return domain.DishPortion{}, fmt.Errorf("%w: portion id is required", ErrCatalogInvalidInput)
	}
	portion, err := s.portions.FindByID(ctx, portionID)
	if err != nil {
		return domain.DishPortion{}, s.translateCatalogError(err)
	}

	if string(input.Size) != "" {
		size, ok := domain.ParsePortionSize(string(input.Size))
		if !ok {
			return domain.DishPortion{}, fmt.Errorf("%w: unknown portion size %q", ErrCatalogInvalidInput, input.Size)
		}
		portion.Size = size
	}
	if input.WeightGrams > 0 {
		portion.WeightGrams = input.WeightGrams
	}
	if !input.Price.IsZero() {
		if input.Price.IsNegative() {
			return domain.DishPortion{}, fmt.Errorf("%w: price must be positive", ErrCatalogInvalidInput)
		}
		portion.Price = input.Price.RoundCents()
	}
	portion.UpdatedAt = s.clock()

	if err := s.portions.Update(ctx, portion); err != nil {
		return domain.DishPortion{}, s.translateCatalogError(err)
	}
	return portion, nil
}

// DeletePortion removes a portion. Existing orders keep their snapshots.
func (s *catalogService) DeletePortion(ctx context.Context, portionID string) error {
	portionID = strings.TrimSpace(portionID)
	if portionID == "" {
		return fmt.Errorf("%w: portion id is required", ErrCatalogInvalidInput)
	}
	if _, err := s.portions.FindByID(ctx, portionID); err != nil {
		return s.translateCatalogError(err)
	}
	if err := s.portions.Delete(ctx, portionID); err != nil {
		return s.translateCatalogError(err)
	}
	return nil
}

func (s *catalogService) translateCatalogError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrCatalogInvalidInput) || errors.Is(err, ErrCatalogNotFound) || errors.Is(err, ErrCatalogConflict) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCatalogNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCatalogConflict, err)
		default:
			return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
}
