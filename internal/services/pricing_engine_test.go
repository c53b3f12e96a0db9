package services

import (
	"context"
	"errors"
	"reflect"
	"testing"

	domain "github.com/tastyhub/api/internal/domain"
)

type stubCatalogService struct {
	details map[string]PortionDetail
	err     error
	lastIDs []string
}

func (s *stubCatalogService) ListCategories(context.Context, string) ([]domain.Category, error) {
	return nil, nil
}

func (s *stubCatalogService) ListDishes(context.Context, MenuQuery) (domain.CursorPage[domain.Dish], error) {
	return domain.CursorPage[domain.Dish]{}, nil
}

func (s *stubCatalogService) GetDish(context.Context, string, string) (DishWithPortions, error) {
	return DishWithPortions{}, nil
}

func (s *stubCatalogService) PortionDetails(ctx context.Context, portionIDs []string) (map[string]PortionDetail, error) {
	s.lastIDs = portionIDs
	if s.err != nil {
		return nil, s.err
	}
	found := make(map[string]PortionDetail)
	for _, id := range portionIDs {
		if detail, ok := s.details[id]; ok {
			found[id] = detail
		}
	}
	return found, nil
}

func (s *stubCatalogService) CreateCategory(context.Context, CategoryInput) (domain.Category, error) {
	return domain.Category{}, nil
}

func (s *stubCatalogService) UpdateCategory(context.Context, string, CategoryInput) (domain.Category, error) {
	return domain.Category{}, nil
}

func (s *stubCatalogService) DeleteCategory(context.Context, string) error { return nil }

func (s *stubCatalogService) CreateDish(context.Context, DishInput) (domain.Dish, error) {
	return domain.Dish{}, nil
}

func (s *stubCatalogService) UpdateDish(context.Context, string, DishInput) (domain.Dish, error) {
	return domain.Dish{}, nil
}

func (s *stubCatalogService) DeleteDish(context.Context, string) error { return nil }

func (s *stubCatalogService) CreatePortion(context.Context, PortionInput) (domain.DishPortion, error) {
	return domain.DishPortion{}, nil
}

func (s *stubCatalogService) UpdatePortion(context.Context, string, PortionInput) (domain.DishPortion, error) {
	return domain.DishPortion{}, nil
}

func (s *stubCatalogService) DeletePortion(context.Context, string) error { return nil }

var _ CatalogService = (*stubCatalogService)(nil)

func testDetail(portionID, dishID, name, price string) PortionDetail {
	return PortionDetail{
		Portion: domain.DishPortion{
			ID:     portionID,
			DishID: dishID,
			Size:   domain.PortionSizeRegular,
			Price:  domain.MustMoney(price),
		},
		Dish: domain.Dish{ID: dishID, Name: name, Available: true},
	}
}

func newTestPricingEngine(t *testing.T, catalog CatalogService) PricingEngine {
	t.Helper()
	engine, err := NewPricingEngine(PricingEngineDeps{
		Catalog: catalog,
		Policy: DeliveryPolicy{
			FreeThreshold: domain.MustMoney("60.00"),
			FlatFee:       domain.MustMoney("4.00"),
		},
	})
	if err != nil {
		t.Fatalf("NewPricingEngine: %v", err)
	}
	return engine
}

func TestPricingEngineQuoteTotals(t *testing.T) {
	catalog := &stubCatalogService{
		details: map[string]PortionDetail{
			"1": testDetail("1", "dish-1", "Lamb Shank", "12.50"),
			"2": testDetail("2", "dish-2", "Halloumi Salad", "8.25"),
		},
	}
	engine := newTestPricingEngine(t, catalog)

	quote, err := engine.Quote(context.Background(), map[string]int{"1": 2, "2": 3}, domain.DeliveryTypeDelivery)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	if len(quote.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(quote.Lines))
	}
	if quote.Lines[0].LineTotal.String() != "25.00" {
		t.Fatalf("expected line total 25.00, got %s", quote.Lines[0].LineTotal)
	}
	if quote.Lines[1].LineTotal.String() != "24.75" {
		t.Fatalf("expected line total 24.75, got %s", quote.Lines[1].LineTotal)
	}
	if quote.Subtotal.String() != "49.75" {
		t.Fatalf("expected subtotal 49.75, got %s", quote.Subtotal)
	}
	if quote.DeliveryFee.String() != "4.00" {
		t.Fatalf("expected fee 4.00, got %s", quote.DeliveryFee)
	}
	if quote.DeliveryFeeDisplay != "$4.00" {
		t.Fatalf("expected fee display $4.00, got %s", quote.DeliveryFeeDisplay)
	}
	if quote.GrandTotal.String() != "53.75" {
		t.Fatalf("expected grand total 53.75, got %s", quote.GrandTotal)
	}
}

func TestPricingEngineRoundsHalfUpPerLine(t *testing.T) {
	catalog := &stubCatalogService{
		details: map[string]PortionDetail{
			"1": testDetail("1", "dish-1", "Mezze", "3.335"),
		},
	}
	engine := newTestPricingEngine(t, catalog)

	quote, err := engine.Quote(context.Background(), map[string]int{"1": 3}, domain.DeliveryTypePickup)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	// 3.335 * 3 = 10.005, rounded half up at the line boundary.
	if quote.Lines[0].LineTotal.String() != "10.01" {
		t.Fatalf("expected line total 10.01, got %s", quote.Lines[0].LineTotal)
	}
}

func TestPricingEngineFreeDeliveryThreshold(t *testing.T) {
	catalog := &stubCatalogService{
		details: map[string]PortionDetail{
			"1": testDetail("1", "dish-1", "Feast Platter", "30.00"),
		},
	}
	engine := newTestPricingEngine(t, catalog)

	quote, err := engine.Quote(context.Background(), map[string]int{"1": 2}, domain.DeliveryTypeDelivery)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !quote.DeliveryFee.IsZero() {
		t.Fatalf("expected zero fee at threshold, got %s", quote.DeliveryFee)
	}
	if quote.DeliveryFeeDisplay != FreeDeliveryDisplay {
		t.Fatalf("expected display %q, got %q", FreeDeliveryDisplay, quote.DeliveryFeeDisplay)
	}
	if quote.GrandTotal.String() != "60.00" {
		t.Fatalf("expected grand total 60.00, got %s", quote.GrandTotal)
	}
}

func TestPricingEnginePickupNeverChargesDelivery(t *testing.T) {
	catalog := &stubCatalogService{
		details: map[string]PortionDetail{
			"1": testDetail("1", "dish-1", "Wrap", "5.00"),
		},
	}
	engine := newTestPricingEngine(t, catalog)

	quote, err := engine.Quote(context.Background(), map[string]int{"1": 1}, domain.DeliveryTypePickup)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !quote.DeliveryFee.IsZero() {
		t.Fatalf("expected zero fee for pickup, got %s", quote.DeliveryFee)
	}
	if quote.DeliveryFeeDisplay != "$0.00" {
		t.Fatalf("expected display $0.00, got %q", quote.DeliveryFeeDisplay)
	}
}

func TestPricingEngineReportsRemovedPortions(t *testing.T) {
	catalog := &stubCatalogService{
		details: map[string]PortionDetail{
			"1": testDetail("1", "dish-1", "Wrap", "5.00"),
		},
	}
	engine := newTestPricingEngine(t, catalog)

	quote, err := engine.Quote(context.Background(), map[string]int{"1": 1, "404": 2}, domain.DeliveryTypeDelivery)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !reflect.DeepEqual(quote.RemovedPortionIDs, []string{"404"}) {
		t.Fatalf("expected removed [404], got %v", quote.RemovedPortionIDs)
	}
	if len(quote.Lines) != 1 {
		t.Fatalf("expected surviving line, got %d", len(quote.Lines))
	}
	if quote.Subtotal.String() != "5.00" {
		t.Fatalf("expected subtotal 5.00, got %s", quote.Subtotal)
	}
}

func TestPricingEngineEmptyBag(t *testing.T) {
	engine := newTestPricingEngine(t, &stubCatalogService{})

	quote, err := engine.Quote(context.Background(), nil, domain.DeliveryTypeDelivery)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if len(quote.Lines) != 0 {
		t.Fatalf("expected no lines, got %d", len(quote.Lines))
	}
	if !quote.GrandTotal.IsZero() || !quote.DeliveryFee.IsZero() {
		t.Fatalf("expected zero totals, got fee %s total %s", quote.DeliveryFee, quote.GrandTotal)
	}
}

func TestPricingEngineCatalogFailure(t *testing.T) {
	engine := newTestPricingEngine(t, &stubCatalogService{err: errors.New("backend down")})

	_, err := engine.Quote(context.Background(), map[string]int{"1": 1}, domain.DeliveryTypeDelivery)
	if !errors.Is(err, ErrPricingUnavailable) {
		t.Fatalf("expected ErrPricingUnavailable, got %v", err)
	}
}
