package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tastyhub/api/internal/payments"
	"github.com/tastyhub/api/internal/platform/httpx"
	"github.com/tastyhub/api/internal/services"
)

// Stripe caps event payloads well below this, so anything larger is noise.
const maxWebhookBodySize = 256 * 1024

// WebhookVerifier turns a raw webhook request into a verified payment
// notification.
type WebhookVerifier interface {
	VerifyAndParse(payload []byte, signatureHeader string) (services.PaymentNotification, error)
}

// WebhookHandlers receives payment provider callbacks and hands them to the
// reconciler.
type WebhookHandlers struct {
	verifier   WebhookVerifier
	reconciler services.WebhookReconciler
}

// NewWebhookHandlers constructs the webhook endpoints.
func NewWebhookHandlers(verifier WebhookVerifier, reconciler services.WebhookReconciler) *WebhookHandlers {
	return &WebhookHandlers{
		verifier:   verifier,
		reconciler: reconciler,
	}
}

// Routes wires the webhook endpoints onto the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.handleStripe)
}

func (h *WebhookHandlers) handleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.verifier == nil || h.reconciler == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "webhook processing is unavailable", http.StatusServiceUnavailable))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize+1))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read request body", http.StatusBadRequest))
		return
	}
	if int64(len(payload)) > maxWebhookBodySize {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body exceeds limit", http.StatusRequestEntityTooLarge))
		return
	}

	notice, err := h.verifier.VerifyAndParse(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payments.ErrWebhookSignature) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "webhook payload could not be parsed", http.StatusBadRequest))
		return
	}

	result, err := h.reconciler.HandlePaymentEvent(ctx, notice)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrWebhookInvalidPayload):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_payload", err.Error(), http.StatusBadRequest))
		default:
			// Non-2xx tells the provider to redeliver the event later.
			httpx.WriteError(ctx, w, httpx.NewError("webhook_unprocessed", "event could not be processed", http.StatusInternalServerError))
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, webhookAckResponse{
		Received:    true,
		Outcome:     string(result.Outcome),
		OrderNumber: result.OrderNumber,
	})
}

type webhookAckResponse struct {
	Received    bool   `json:"received"`
	Outcome     string `json:"outcome,omitempty"`
	OrderNumber string `json:"order_number,omitempty"`
}
