package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"

	"github.com/tastyhub/api/internal/services"
)

const testWebhookSecret = "whsec_test"

func signWebhookPayload(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	timestamp := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", timestamp, payload)
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func paymentSucceededPayload() []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"api_version": %q,
		"type": "payment_intent.succeeded",
		"data": {
			"object": {
				"id": "pi_123",
				"object": "payment_intent",
				"amount": 5375,
				"receipt_email": "ana@example.com",
				"metadata": {
					"bag": "{\"7\":2,\"9\":1}",
					"username": "ana",
					"save_info": "true"
				},
				"shipping": {
					"name": "Ana Moreno",
					"phone": "555-0101",
					"address": {
						"line1": "12 Harbour Way",
						"line2": "Flat 3",
						"city": "Brighton",
						"state": "East Sussex",
						"postal_code": "BN1 1AA",
						"country": "GB"
					}
				}
			}
		}
	}`, stripe.APIVersion))
}

func TestStripeWebhookVerifierParsesPaymentIntentEvent(t *testing.T) {
	verifier, err := NewStripeWebhookVerifier(testWebhookSecret)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	payload := paymentSucceededPayload()
	notice, err := verifier.VerifyAndParse(payload, signWebhookPayload(t, payload, testWebhookSecret))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if notice.EventID != "evt_1" {
		t.Fatalf("expected event id evt_1, got %q", notice.EventID)
	}
	if notice.EventType != services.EventPaymentSucceeded {
		t.Fatalf("unexpected event type %q", notice.EventType)
	}
	if notice.PaymentRef != "pi_123" {
		t.Fatalf("expected payment ref pi_123, got %q", notice.PaymentRef)
	}
	if notice.AmountCents != 5375 {
		t.Fatalf("expected amount 5375, got %d", notice.AmountCents)
	}
	if notice.Metadata["bag"] != `{"7":2,"9":1}` {
		t.Fatalf("expected bag metadata, got %q", notice.Metadata["bag"])
	}
	if notice.CustomerName != "Ana Moreno" || notice.CustomerEmail != "ana@example.com" {
		t.Fatalf("unexpected customer identity %q %q", notice.CustomerName, notice.CustomerEmail)
	}
	if notice.Address.FullName != "Ana Moreno" || notice.Address.Email != "ana@example.com" {
		t.Fatalf("expected identity copied to address, got %+v", notice.Address)
	}
	if notice.Address.StreetAddress1 != "12 Harbour Way" || notice.Address.TownOrCity != "Brighton" {
		t.Fatalf("unexpected address %+v", notice.Address)
	}
	if notice.Address.Postcode != "BN1 1AA" || notice.Address.Locality != "GB" {
		t.Fatalf("unexpected address %+v", notice.Address)
	}
}

func TestStripeWebhookVerifierRejectsBadSignature(t *testing.T) {
	verifier, err := NewStripeWebhookVerifier(testWebhookSecret)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	payload := paymentSucceededPayload()
	_, err = verifier.VerifyAndParse(payload, signWebhookPayload(t, payload, "whsec_other"))
	if !errors.Is(err, ErrWebhookSignature) {
		t.Fatalf("expected signature error, got %v", err)
	}
}

func TestStripeWebhookVerifierPassesThroughOtherEvents(t *testing.T) {
	verifier, err := NewStripeWebhookVerifier(testWebhookSecret)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	payload := []byte(fmt.Sprintf(`{
		"id": "evt_2",
		"api_version": %q,
		"type": "charge.refunded",
		"data": {"object": {"id": "ch_1", "object": "charge"}}
	}`, stripe.APIVersion))

	notice, err := verifier.VerifyAndParse(payload, signWebhookPayload(t, payload, testWebhookSecret))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if notice.EventType != "charge.refunded" {
		t.Fatalf("unexpected event type %q", notice.EventType)
	}
	if notice.PaymentRef != "" {
		t.Fatalf("expected no payment ref for non intent event, got %q", notice.PaymentRef)
	}
}

func TestNewStripeWebhookVerifierRequiresSecret(t *testing.T) {
	if _, err := NewStripeWebhookVerifier("  "); err == nil {
		t.Fatalf("expected error for missing secret")
	}
}
