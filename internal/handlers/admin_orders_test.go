package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/platform/auth"
	"github.com/tastyhub/api/internal/services"
)

func TestAdminOrdersListQueueForwardsFilters(t *testing.T) {
	orders := &stubOrderService{
		listQueueFunc: func(ctx context.Context, query services.OrderQueueQuery) (domain.CursorPage[domain.Order], error) {
			if query.Status == nil || *query.Status != domain.OrderStatusPreparing {
				t.Fatalf("expected preparing filter, got %v", query.Status)
			}
			if query.DeliveryType == nil || *query.DeliveryType != domain.DeliveryTypePickup {
				t.Fatalf("expected pickup filter, got %v", query.DeliveryType)
			}
			if query.CreatedFrom == nil || query.CreatedFrom.Year() != 2026 {
				t.Fatalf("expected created_after filter, got %v", query.CreatedFrom)
			}
			return domain.CursorPage[domain.Order]{
				Items: []domain.Order{{Number: "TH-0003", Status: domain.OrderStatusPreparing}},
			}, nil
		},
	}

	handler := NewAdminOrderHandlers(nil, orders)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/admin/orders?status=preparing&delivery_type=pickup&created_after=2026-04-01T00:00:00Z", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "staff-1", Roles: []string{auth.RoleStaff}}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ordersResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Orders) != 1 || resp.Orders[0].Number != "TH-0003" {
		t.Fatalf("unexpected queue payload: %+v", resp.Orders)
	}
}

func TestAdminOrdersListQueueRejectsUnknownStatus(t *testing.T) {
	handler := NewAdminOrderHandlers(nil, &stubOrderService{})
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/admin/orders?status=shipped", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminOrdersStatusCounts(t *testing.T) {
	orders := &stubOrderService{
		countFunc: func(ctx context.Context) (map[domain.OrderStatus]int64, error) {
			return map[domain.OrderStatus]int64{
				domain.OrderStatusPending:   4,
				domain.OrderStatusPreparing: 2,
			}, nil
		},
	}

	handler := NewAdminOrderHandlers(nil, orders)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/admin/orders/status-counts", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp struct {
		Counts map[string]int64 `json:"counts"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Counts["pending"] != 4 || resp.Counts["preparing"] != 2 {
		t.Fatalf("unexpected counts: %v", resp.Counts)
	}
}

func TestAdminOrdersUpdateStatus(t *testing.T) {
	orders := &stubOrderService{
		updateStatusFunc: func(ctx context.Context, orderNumber string, target domain.OrderStatus, actorID string) (domain.Order, error) {
			if orderNumber != "TH-0003" {
				t.Fatalf("unexpected order number %q", orderNumber)
			}
			if target != domain.OrderStatusOutForDelivery {
				t.Fatalf("unexpected target status %q", target)
			}
			if actorID != "staff-1" {
				t.Fatalf("unexpected actor %q", actorID)
			}
			return domain.Order{Number: orderNumber, Status: target}, nil
		},
	}

	handler := NewAdminOrderHandlers(nil, orders)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	body := strings.NewReader(`{"status":"out_for_delivery"}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/orders/TH-0003/status", body)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "staff-1", Roles: []string{auth.RoleStaff}}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.Status != "out_for_delivery" {
		t.Fatalf("expected status out_for_delivery, got %q", resp.Order.Status)
	}
}

func TestAdminOrdersUpdateStatusRejectsUnknown(t *testing.T) {
	handler := NewAdminOrderHandlers(nil, &stubOrderService{})
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/admin/orders/TH-0003/status", strings.NewReader(`{"status":"shipped"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminOrdersUpdateStatusInvalidTransition(t *testing.T) {
	orders := &stubOrderService{
		updateStatusFunc: func(ctx context.Context, orderNumber string, target domain.OrderStatus, actorID string) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderInvalidState
		},
	}

	handler := NewAdminOrderHandlers(nil, orders)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/admin/orders/TH-0003/status", strings.NewReader(`{"status":"pending"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestAdminOrdersCancel(t *testing.T) {
	orders := &stubOrderService{
		updateStatusFunc: func(ctx context.Context, orderNumber string, target domain.OrderStatus, actorID string) (domain.Order, error) {
			if target != domain.OrderStatusCancelled {
				t.Fatalf("expected cancelled target, got %q", target)
			}
			return domain.Order{Number: orderNumber, Status: target}, nil
		},
	}

	handler := NewAdminOrderHandlers(nil, orders)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/admin/orders/TH-0003/cancel", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "staff-1", Roles: []string{auth.RoleStaff}}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestAdminOrdersServiceUnavailable(t *testing.T) {
	handler := NewAdminOrderHandlers(nil, nil)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
