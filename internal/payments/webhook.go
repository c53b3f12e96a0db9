package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/services"
)

// ErrWebhookSignature indicates the payload failed Stripe signature
// verification and must not be retried.
var ErrWebhookSignature = errors.New("payments: webhook signature verification failed")

// StripeWebhookVerifier authenticates incoming Stripe events and converts
// payment intent events into provider-neutral notifications.
type StripeWebhookVerifier struct {
	secret string
}

// NewStripeWebhookVerifier constructs a verifier bound to the endpoint secret.
func NewStripeWebhookVerifier(secret string) (*StripeWebhookVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("payments: webhook secret is required")
	}
	return &StripeWebhookVerifier{secret: secret}, nil
}

// VerifyAndParse checks the Stripe-Signature header against the raw payload
// and extracts a PaymentNotification from the embedded payment intent.
func (v *StripeWebhookVerifier) VerifyAndParse(payload []byte, signatureHeader string) (services.PaymentNotification, error) {
	if v == nil {
		return services.PaymentNotification{}, errors.New("payments: verifier is nil")
	}

	event, err := webhook.ConstructEvent(payload, signatureHeader, v.secret)
	if err != nil {
		return services.PaymentNotification{}, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}

	notice := services.PaymentNotification{
		EventID:   event.ID,
		EventType: string(event.Type),
	}

	if !strings.HasPrefix(notice.EventType, "payment_intent.") {
		return notice, nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return services.PaymentNotification{}, fmt.Errorf("payments: decode payment intent event: %w", err)
	}

	notice.PaymentRef = intent.ID
	notice.AmountCents = intent.Amount
	notice.CustomerEmail = strings.TrimSpace(intent.ReceiptEmail)
	if len(intent.Metadata) > 0 {
		notice.Metadata = make(map[string]string, len(intent.Metadata))
		for k, val := range intent.Metadata {
			notice.Metadata[k] = val
		}
	}

	if shipping := intent.Shipping; shipping != nil {
		notice.CustomerName = strings.TrimSpace(shipping.Name)
		notice.Address = shippingAddress(shipping)
	}
	notice.Address.FullName = notice.CustomerName
	notice.Address.Email = notice.CustomerEmail

	return notice, nil
}

func shippingAddress(shipping *stripe.ShippingDetails) domain.Address {
	addr := domain.Address{
		PhoneNumber: strings.TrimSpace(shipping.Phone),
	}
	if shipping.Address == nil {
		return addr
	}
	addr.StreetAddress1 = strings.TrimSpace(shipping.Address.Line1)
	addr.StreetAddress2 = strings.TrimSpace(shipping.Address.Line2)
	addr.TownOrCity = strings.TrimSpace(shipping.Address.City)
	addr.County = strings.TrimSpace(shipping.Address.State)
	addr.Postcode = strings.TrimSpace(shipping.Address.PostalCode)
	addr.Locality = strings.TrimSpace(shipping.Address.Country)
	return addr
}
