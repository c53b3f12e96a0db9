package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tastyhub/api/internal/payments"
	"github.com/tastyhub/api/internal/services"
)

func TestWebhookStripeOrderCreated(t *testing.T) {
	verifier := &stubWebhookVerifier{
		verifyFunc: func(payload []byte, signatureHeader string) (services.PaymentNotification, error) {
			if signatureHeader != "t=1,v1=abc" {
				t.Fatalf("unexpected signature header %q", signatureHeader)
			}
			if !strings.Contains(string(payload), "payment_intent.succeeded") {
				t.Fatalf("unexpected payload %s", payload)
			}
			return services.PaymentNotification{
				EventID:    "evt_1",
				EventType:  services.EventPaymentSucceeded,
				PaymentRef: "pi_123",
			}, nil
		},
	}
	reconciler := &stubWebhookReconciler{
		handleFunc: func(ctx context.Context, notice services.PaymentNotification) (services.ReconcileResult, error) {
			if notice.PaymentRef != "pi_123" {
				t.Fatalf("unexpected payment ref %q", notice.PaymentRef)
			}
			return services.ReconcileResult{
				Outcome:     services.ReconcileOutcomeOrderCreated,
				OrderNumber: "TH-0004",
			}, nil
		},
	}

	handler := NewWebhookHandlers(verifier, reconciler)
	router := chi.NewRouter()
	router.Route("/webhooks", handler.Routes)

	body := strings.NewReader(`{"type":"payment_intent.succeeded"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", body)
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp webhookAckResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Received || resp.Outcome != string(services.ReconcileOutcomeOrderCreated) {
		t.Fatalf("unexpected ack: %+v", resp)
	}
	if resp.OrderNumber != "TH-0004" {
		t.Fatalf("expected order TH-0004, got %q", resp.OrderNumber)
	}
}

func TestWebhookStripeBadSignature(t *testing.T) {
	verifier := &stubWebhookVerifier{
		verifyFunc: func(payload []byte, signatureHeader string) (services.PaymentNotification, error) {
			return services.PaymentNotification{}, payments.ErrWebhookSignature
		},
	}

	handler := NewWebhookHandlers(verifier, &stubWebhookReconciler{})
	router := chi.NewRouter()
	router.Route("/webhooks", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "invalid_signature") {
		t.Fatalf("expected invalid_signature code, got %s", rr.Body.String())
	}
}

func TestWebhookStripeInvalidPayload(t *testing.T) {
	verifier := &stubWebhookVerifier{
		verifyFunc: func(payload []byte, signatureHeader string) (services.PaymentNotification, error) {
			return services.PaymentNotification{EventID: "evt_1"}, nil
		},
	}
	reconciler := &stubWebhookReconciler{
		handleFunc: func(ctx context.Context, notice services.PaymentNotification) (services.ReconcileResult, error) {
			return services.ReconcileResult{}, services.ErrWebhookInvalidPayload
		},
	}

	handler := NewWebhookHandlers(verifier, reconciler)
	router := chi.NewRouter()
	router.Route("/webhooks", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestWebhookStripeUnprocessedTriggersRetry(t *testing.T) {
	verifier := &stubWebhookVerifier{
		verifyFunc: func(payload []byte, signatureHeader string) (services.PaymentNotification, error) {
			return services.PaymentNotification{EventID: "evt_1"}, nil
		},
	}
	reconciler := &stubWebhookReconciler{
		handleFunc: func(ctx context.Context, notice services.PaymentNotification) (services.ReconcileResult, error) {
			return services.ReconcileResult{}, errors.Join(services.ErrWebhookUnprocessed, errors.New("firestore down"))
		},
	}

	handler := NewWebhookHandlers(verifier, reconciler)
	router := chi.NewRouter()
	router.Route("/webhooks", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestWebhookStripeUnavailable(t *testing.T) {
	handler := NewWebhookHandlers(nil, nil)
	router := chi.NewRouter()
	router.Route("/webhooks", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
