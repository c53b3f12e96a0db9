package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/services"
)

func TestOrderTrackingReturnsProgress(t *testing.T) {
	created := time.Date(2026, 4, 2, 17, 30, 0, 0, time.UTC)
	orders := &stubOrderService{
		getByNumberFunc: func(ctx context.Context, orderNumber string) (domain.Order, error) {
			if orderNumber != "TH-0001" {
				t.Fatalf("unexpected order number %q", orderNumber)
			}
			return domain.Order{
				Number:         "TH-0001",
				Status:         domain.OrderStatusOutForDelivery,
				DeliveryType:   domain.DeliveryTypeDelivery,
				PublicTracking: true,
				CreatedAt:      created,
			}, nil
		},
	}

	handler := NewOrderHandlers(orders)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/orders/TH-0001/tracking", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp trackingResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Tracking.OrderNumber != "TH-0001" {
		t.Fatalf("expected order number TH-0001, got %q", resp.Tracking.OrderNumber)
	}
	if resp.Tracking.Status != "out_for_delivery" {
		t.Fatalf("expected status out_for_delivery, got %q", resp.Tracking.Status)
	}
	if resp.Tracking.ProgressPercent != domain.OrderStatusOutForDelivery.ProgressPercent() {
		t.Fatalf("unexpected progress %d", resp.Tracking.ProgressPercent)
	}
}

func TestOrderTrackingHiddenWhenNotPublic(t *testing.T) {
	orders := &stubOrderService{
		getByNumberFunc: func(ctx context.Context, orderNumber string) (domain.Order, error) {
			return domain.Order{Number: orderNumber, PublicTracking: false}, nil
		},
	}

	handler := NewOrderHandlers(orders)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/orders/TH-0001/tracking", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestOrderTrackingUnknownOrder(t *testing.T) {
	orders := &stubOrderService{
		getByNumberFunc: func(ctx context.Context, orderNumber string) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderNotFound
		},
	}

	handler := NewOrderHandlers(orders)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/orders/TH-9999/tracking", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestOrderTrackingServiceUnavailable(t *testing.T) {
	handler := NewOrderHandlers(nil)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/orders/TH-0001/tracking", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
