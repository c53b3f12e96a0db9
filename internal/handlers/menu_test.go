package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/services"
)

func TestMenuHandlersListCategoriesFiltersByMenuType(t *testing.T) {
	service := &stubCatalogService{
		listCategoriesFunc: func(ctx context.Context, menuType string) ([]domain.Category, error) {
			if menuType != "dinner" {
				t.Fatalf("unexpected menu type %q", menuType)
			}
			return []domain.Category{
				{ID: "cat-1", Name: "Grill Classics", Slug: "grill-classics", MenuType: domain.MenuTypeDinner},
			}, nil
		},
	}

	handler := NewMenuHandlers(service)
	router := chi.NewRouter()
	router.Route("/menu", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/menu/categories?menu_type=dinner", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp categoriesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Categories) != 1 {
		t.Fatalf("expected 1 category, got %d", len(resp.Categories))
	}
	if resp.Categories[0].Slug != "grill-classics" || resp.Categories[0].MenuType != "dinner" {
		t.Fatalf("unexpected category payload: %+v", resp.Categories[0])
	}
}

func TestMenuHandlersListDishesForwardsQuery(t *testing.T) {
	service := &stubCatalogService{
		listDishesFunc: func(ctx context.Context, query services.MenuQuery) (domain.CursorPage[domain.Dish], error) {
			if query.CategorySlug != "grill-classics" {
				t.Fatalf("unexpected category slug %q", query.CategorySlug)
			}
			if !query.SpecialsOnly || !query.AvailableOnly {
				t.Fatalf("expected specials and available filters, got %+v", query)
			}
			if query.Pagination.PageSize != 10 || query.Pagination.PageToken != "tok-2" {
				t.Fatalf("unexpected pagination %+v", query.Pagination)
			}
			return domain.CursorPage[domain.Dish]{
				Items: []domain.Dish{
					{
						ID:         "dish-1",
						CategoryID: "cat-1",
						Name:       "Flame Grilled Ribs",
						Slug:       "flame-grilled-ribs",
						Dietary:    domain.DietaryInfo{Spicy: true},
						BasePrice:  domain.MustMoney("14.50"),
						Available:  true,
						IsSpecial:  true,
					},
				},
				NextPageToken: "tok-3",
			}, nil
		},
	}

	handler := NewMenuHandlers(service)
	router := chi.NewRouter()
	router.Route("/menu", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/menu/dishes?category=grill-classics&specials=true&available=1&page_size=10&page_token=tok-2", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp dishesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.NextPageToken != "tok-3" {
		t.Fatalf("expected next page token tok-3, got %q", resp.NextPageToken)
	}
	if len(resp.Dishes) != 1 {
		t.Fatalf("expected 1 dish, got %d", len(resp.Dishes))
	}
	dish := resp.Dishes[0]
	if dish.BasePrice != "14.50" {
		t.Fatalf("expected base price 14.50, got %q", dish.BasePrice)
	}
	if !dish.Dietary.Spicy {
		t.Fatalf("expected spicy flag set")
	}
}

func TestMenuHandlersListDishesRejectsBadPageSize(t *testing.T) {
	handler := NewMenuHandlers(&stubCatalogService{})
	router := chi.NewRouter()
	router.Route("/menu", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/menu/dishes?page_size=zero", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestMenuHandlersGetDishIncludesPortions(t *testing.T) {
	service := &stubCatalogService{
		getDishFunc: func(ctx context.Context, categorySlug, dishSlug string) (services.DishWithPortions, error) {
			if categorySlug != "grill-classics" || dishSlug != "flame-grilled-ribs" {
				t.Fatalf("unexpected slugs %q/%q", categorySlug, dishSlug)
			}
			return services.DishWithPortions{
				Dish: domain.Dish{ID: "dish-1", Name: "Flame Grilled Ribs", BasePrice: domain.MustMoney("14.50")},
				Portions: []domain.DishPortion{
					{ID: "portion-1", DishID: "dish-1", Size: domain.PortionSizeRegular, WeightGrams: 450, Price: domain.MustMoney("14.50")},
					{ID: "portion-2", DishID: "dish-1", Size: domain.PortionSizeLarge, WeightGrams: 700, Price: domain.MustMoney("19.95")},
				},
			}, nil
		},
	}

	handler := NewMenuHandlers(service)
	router := chi.NewRouter()
	router.Route("/menu", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/menu/dishes/grill-classics/flame-grilled-ribs", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp dishDetailResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Portions) != 2 {
		t.Fatalf("expected 2 portions, got %d", len(resp.Portions))
	}
	if resp.Portions[1].Price != "19.95" || resp.Portions[1].Size != "large" {
		t.Fatalf("unexpected portion payload: %+v", resp.Portions[1])
	}
}

func TestMenuHandlersGetDishNotFound(t *testing.T) {
	service := &stubCatalogService{
		getDishFunc: func(ctx context.Context, categorySlug, dishSlug string) (services.DishWithPortions, error) {
			return services.DishWithPortions{}, services.ErrCatalogNotFound
		},
	}

	handler := NewMenuHandlers(service)
	router := chi.NewRouter()
	router.Route("/menu", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/menu/dishes/grill-classics/missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestMenuHandlersServiceUnavailable(t *testing.T) {
	handler := NewMenuHandlers(nil)
	router := chi.NewRouter()
	router.Route("/menu", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/menu/categories", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
