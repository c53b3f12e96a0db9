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
	"github.com/tastyhub/api/internal/payments"
	"github.com/tastyhub/api/internal/platform/auth"
	"github.com/tastyhub/api/internal/services"
)

func checkoutTestDeps(provider payments.Provider, orders services.OrderService) CheckoutHandlersDeps {
	bags := &stubBagService{
		getFunc: func(ctx context.Context, ownerID string) (domain.Bag, error) {
			return domain.Bag{OwnerID: ownerID, Items: map[string]int{"portion-1": 2}}, nil
		},
	}
	pricing := &stubPricingEngine{
		quoteFunc: func(ctx context.Context, items map[string]int, deliveryType domain.DeliveryType) (domain.BagQuote, error) {
			return pricedQuote(), nil
		},
	}
	return CheckoutHandlersDeps{
		Bags:     bags,
		Pricing:  pricing,
		Orders:   orders,
		Provider: provider,
		Currency: "usd",
	}
}

func TestCheckoutCreateIntent(t *testing.T) {
	var captured payments.IntentRequest
	provider := &stubPaymentProvider{
		createFunc: func(ctx context.Context, req payments.IntentRequest) (payments.Intent, error) {
			captured = req
			return payments.Intent{
				ID:           "pi_123",
				ClientSecret: "pi_123_secret",
				Status:       payments.StatusPending,
				AmountCents:  req.AmountCents,
				Currency:     "usd",
			}, nil
		},
	}

	handler := NewCheckoutHandlers(checkoutTestDeps(provider, &stubOrderService{}))
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	body := strings.NewReader(`{"delivery_type":"delivery","save_info":true,"pickup_time":"18:30"}`)
	req := httptest.NewRequest(http.MethodPost, "/checkout/intent", body)
	req.Header.Set("Idempotency-Key", "idem-1")
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7", Email: "ana@example.com"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	if captured.AmountCents != 3300 {
		t.Fatalf("expected amount 3300, got %d", captured.AmountCents)
	}
	if captured.Currency != "USD" {
		t.Fatalf("expected currency USD, got %q", captured.Currency)
	}
	if captured.ReceiptEmail != "ana@example.com" {
		t.Fatalf("expected identity email fallback, got %q", captured.ReceiptEmail)
	}
	if captured.IdempotencyKey != "idem-1" {
		t.Fatalf("expected idempotency key idem-1, got %q", captured.IdempotencyKey)
	}
	if captured.Metadata["bag"] != `{"portion-1":2}` {
		t.Fatalf("unexpected bag metadata %q", captured.Metadata["bag"])
	}
	if captured.Metadata["username"] != "anonymous" {
		t.Fatalf("expected anonymous username, got %q", captured.Metadata["username"])
	}
	if captured.Metadata["save_info"] != "true" {
		t.Fatalf("expected save_info true, got %q", captured.Metadata["save_info"])
	}
	if captured.Metadata["delivery_type"] != "delivery" {
		t.Fatalf("expected delivery_type delivery, got %q", captured.Metadata["delivery_type"])
	}
	if captured.Metadata["pickup_time"] != "18:30" {
		t.Fatalf("expected pickup_time metadata, got %q", captured.Metadata["pickup_time"])
	}
	if captured.Metadata["email"] != "ana@example.com" {
		t.Fatalf("expected email metadata, got %q", captured.Metadata["email"])
	}

	var resp checkoutIntentResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.IntentID != "pi_123" || resp.ClientSecret != "pi_123_secret" {
		t.Fatalf("unexpected intent payload: %+v", resp)
	}
	if resp.GrandTotal != "33.00" {
		t.Fatalf("expected grand total 33.00, got %q", resp.GrandTotal)
	}
}

func TestCheckoutCreateIntentUsesProfileUsername(t *testing.T) {
	provider := &stubPaymentProvider{
		createFunc: func(ctx context.Context, req payments.IntentRequest) (payments.Intent, error) {
			if req.Metadata["username"] != "anamoreno" {
				t.Fatalf("expected profile username, got %q", req.Metadata["username"])
			}
			return payments.Intent{ID: "pi_123", AmountCents: req.AmountCents, Currency: "usd"}, nil
		},
	}

	deps := checkoutTestDeps(provider, &stubOrderService{})
	deps.Profiles = &stubProfileService{
		getFunc: func(ctx context.Context, profileID string) (domain.UserProfile, error) {
			return domain.UserProfile{ID: profileID, Username: "anamoreno"}, nil
		},
	}

	handler := NewCheckoutHandlers(deps)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/checkout/intent", strings.NewReader(`{}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCheckoutCreateIntentEmptyBag(t *testing.T) {
	deps := checkoutTestDeps(&stubPaymentProvider{}, &stubOrderService{})
	deps.Pricing = &stubPricingEngine{
		quoteFunc: func(ctx context.Context, items map[string]int, deliveryType domain.DeliveryType) (domain.BagQuote, error) {
			return domain.BagQuote{DeliveryType: deliveryType}, nil
		},
	}

	handler := NewCheckoutHandlers(deps)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/checkout/intent", strings.NewReader(`{}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "bag_empty") {
		t.Fatalf("expected bag_empty code, got %s", rr.Body.String())
	}
}

func TestCheckoutCreateIntentProviderError(t *testing.T) {
	provider := &stubPaymentProvider{
		createFunc: func(ctx context.Context, req payments.IntentRequest) (payments.Intent, error) {
			return payments.Intent{}, context.DeadlineExceeded
		},
	}

	handler := NewCheckoutHandlers(checkoutTestDeps(provider, &stubOrderService{}))
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/checkout/intent", strings.NewReader(`{}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rr.Code)
	}
}

func TestCheckoutUpdateIntent(t *testing.T) {
	provider := &stubPaymentProvider{
		updateFunc: func(ctx context.Context, update payments.IntentUpdate) (payments.Intent, error) {
			if update.IntentID != "pi_123" {
				t.Fatalf("unexpected intent id %q", update.IntentID)
			}
			if update.AmountCents == nil || *update.AmountCents != 3300 {
				t.Fatalf("expected amount 3300, got %v", update.AmountCents)
			}
			return payments.Intent{ID: "pi_123", AmountCents: 3300, Currency: "usd"}, nil
		},
	}

	handler := NewCheckoutHandlers(checkoutTestDeps(provider, &stubOrderService{}))
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	req := httptest.NewRequest(http.MethodPut, "/checkout/intent/pi_123", strings.NewReader(`{"delivery_type":"pickup"}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCheckoutComplete(t *testing.T) {
	var captured services.CreateOrderCommand
	orders := &stubOrderService{
		createFunc: func(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error) {
			captured = cmd
			return domain.Order{
				Number:       "TH-0001",
				Status:       domain.OrderStatusPending,
				DeliveryType: cmd.DeliveryType,
				Address:      cmd.Address,
				GrandTotal:   domain.MustMoney("33.00"),
			}, nil
		},
	}

	handler := NewCheckoutHandlers(checkoutTestDeps(&stubPaymentProvider{}, orders))
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	body := strings.NewReader(`{
		"payment_intent_id": "pi_123",
		"delivery_type": "delivery",
		"save_info": true,
		"full_name": "Ana Moreno",
		"email": "ana@example.com",
		"street_address1": "12 Harbour Lane",
		"town_or_city": "Brighton",
		"postcode": "BN1 1AA"
	}`)
	req := httptest.NewRequest(http.MethodPost, "/checkout/complete", body)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	if captured.PaymentRef != "pi_123" {
		t.Fatalf("expected payment ref pi_123, got %q", captured.PaymentRef)
	}
	if captured.ProfileID != "user-7" {
		t.Fatalf("expected profile user-7, got %q", captured.ProfileID)
	}
	if captured.RawBag != `{"portion-1":2}` {
		t.Fatalf("unexpected raw bag %q", captured.RawBag)
	}
	if !captured.SaveInfo {
		t.Fatalf("expected save info flag")
	}
	if captured.Address.FullName != "Ana Moreno" || captured.Address.Postcode != "BN1 1AA" {
		t.Fatalf("unexpected address %+v", captured.Address)
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.Number != "TH-0001" {
		t.Fatalf("expected order TH-0001, got %q", resp.Order.Number)
	}
}

func TestCheckoutCompleteEmptyBag(t *testing.T) {
	orders := &stubOrderService{
		createFunc: func(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error) {
			return domain.Order{}, services.ErrEmptyBag
		},
	}

	handler := NewCheckoutHandlers(checkoutTestDeps(&stubPaymentProvider{}, orders))
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/checkout/complete", strings.NewReader(`{"payment_intent_id":"pi_123"}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestCheckoutRequiresIdentity(t *testing.T) {
	handler := NewCheckoutHandlers(checkoutTestDeps(&stubPaymentProvider{}, &stubOrderService{}))
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/checkout/intent", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}
