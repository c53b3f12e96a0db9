package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/platform/httpx"
	"github.com/tastyhub/api/internal/services"
)

const (
	defaultMenuPageSize = 50
	maxMenuPageSize     = 100
)

// MenuHandlers exposes the public menu browsing endpoints.
type MenuHandlers struct {
	catalog services.CatalogService
}

// NewMenuHandlers constructs handlers backed by the catalog service.
func NewMenuHandlers(catalog services.CatalogService) *MenuHandlers {
	return &MenuHandlers{catalog: catalog}
}

// Routes wires the /menu endpoints onto the provided router.
func (h *MenuHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/categories", h.listCategories)
	r.Get("/dishes", h.listDishes)
	r.Get("/dishes/{categorySlug}/{dishSlug}", h.getDish)
}

func (h *MenuHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	categories, err := h.catalog.ListCategories(ctx, r.URL.Query().Get("menu_type"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := categoriesResponse{Categories: make([]categoryPayload, 0, len(categories))}
	for _, category := range categories {
		payload.Categories = append(payload.Categories, buildCategoryPayload(category))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *MenuHandlers) listDishes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	pager, err := parsePageParams(query.Get("page_size"), query.Get("page_token"), defaultMenuPageSize, maxMenuPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	menuQuery := services.MenuQuery{
		CategorySlug:  strings.TrimSpace(query.Get("category")),
		MenuType:      strings.TrimSpace(query.Get("menu_type")),
		SpecialsOnly:  parseBoolParam(query.Get("specials")),
		AvailableOnly: parseBoolParam(query.Get("available")),
		Pagination:    pager,
	}

	page, err := h.catalog.ListDishes(ctx, menuQuery)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := dishesResponse{
		Dishes:        make([]dishPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, dish := range page.Items {
		payload.Dishes = append(payload.Dishes, buildDishPayload(dish))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *MenuHandlers) getDish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	categorySlug := chi.URLParam(r, "categorySlug")
	dishSlug := chi.URLParam(r, "dishSlug")

	detail, err := h.catalog.GetDish(ctx, categorySlug, dishSlug)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := dishDetailResponse{
		Dish:     buildDishPayload(detail.Dish),
		Portions: make([]portionPayload, 0, len(detail.Portions)),
	}
	for _, portion := range detail.Portions {
		payload.Portions = append(payload.Portions, buildPortionPayload(portion))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_not_found", "menu item not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogConflict):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to read catalog", http.StatusInternalServerError))
	}
}

func parsePageParams(sizeRaw, token string, fallback, max int) (domain.Pagination, error) {
	pager := domain.Pagination{
		PageSize:  fallback,
		PageToken: strings.TrimSpace(token),
	}
	sizeRaw = strings.TrimSpace(sizeRaw)
	if sizeRaw == "" {
		return pager, nil
	}
	size, err := strconv.Atoi(sizeRaw)
	if err != nil || size <= 0 {
		return pager, errors.New("page_size must be a positive integer")
	}
	if size > max {
		size = max
	}
	pager.PageSize = size
	return pager, nil
}

func parseBoolParam(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

type categoriesResponse struct {
	Categories []categoryPayload `json:"categories"`
}

type categoryPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	MenuType    string `json:"menu_type"`
	Description string `json:"description,omitempty"`
}

type dishesResponse struct {
	Dishes        []dishPayload `json:"dishes"`
	NextPageToken string        `json:"next_page_token,omitempty"`
}

type dishPayload struct {
	ID           string            `json:"id"`
	CategoryID   string            `json:"category_id"`
	Name         string            `json:"name"`
	Slug         string            `json:"slug"`
	Description  string            `json:"description,omitempty"`
	Ingredients  string            `json:"ingredients,omitempty"`
	Dietary      dishDietaryFields `json:"dietary"`
	PrepTimeMins int               `json:"prep_time_mins,omitempty"`
	Calories     int               `json:"calories,omitempty"`
	BasePrice    string            `json:"base_price"`
	ImagePath    string            `json:"image_path,omitempty"`
	Available    bool              `json:"available"`
	IsSpecial    bool              `json:"is_special"`
}

type dishDietaryFields struct {
	Vegetarian bool `json:"vegetarian"`
	Vegan      bool `json:"vegan"`
	GlutenFree bool `json:"gluten_free"`
	Spicy      bool `json:"spicy"`
}

type dishDetailResponse struct {
	Dish     dishPayload      `json:"dish"`
	Portions []portionPayload `json:"portions"`
}

type portionPayload struct {
	ID          string `json:"id"`
	DishID      string `json:"dish_id"`
	Size        string `json:"size"`
	WeightGrams int    `json:"weight_grams"`
	Price       string `json:"price"`
}

func buildCategoryPayload(category domain.Category) categoryPayload {
	return categoryPayload{
		ID:          category.ID,
		Name:        category.Name,
		Slug:        category.Slug,
		MenuType:    string(category.MenuType),
		Description: category.Description,
	}
}

func buildDishPayload(dish domain.Dish) dishPayload {
	return dishPayload{
		ID:          dish.ID,
		CategoryID:  dish.CategoryID,
		Name:        dish.Name,
		Slug:        dish.Slug,
		Description: dish.Description,
		Ingredients: dish.Ingredients,
		Dietary: dishDietaryFields{
			Vegetarian: dish.Dietary.Vegetarian,
			Vegan:      dish.Dietary.Vegan,
			GlutenFree: dish.Dietary.GlutenFree,
			Spicy:      dish.Dietary.Spicy,
		},
		PrepTimeMins: dish.PrepTimeMins,
		Calories:     dish.Calories,
		BasePrice:    dish.BasePrice.String(),
		ImagePath:    dish.ImagePath,
		Available:    dish.Available,
		IsSpecial:    dish.IsSpecial,
	}
}

func buildPortionPayload(portion domain.DishPortion) portionPayload {
	return portionPayload{
		ID:          portion.ID,
		DishID:      portion.DishID,
		Size:        string(portion.Size),
		WeightGrams: portion.WeightGrams,
		Price:       portion.Price.String(),
	}
}
