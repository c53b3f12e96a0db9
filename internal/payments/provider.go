package payments

import (
	"context"
	"time"
)

// Status enumerates the normalised payment states shared across providers.
type Status string

const (
	// StatusPending indicates the payment is awaiting customer action or PSP confirmation.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the PSP reports the payment as successfully captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the PSP reports a failure and no further action is possible.
	StatusFailed Status = "failed"
	// StatusRefunded indicates the payment has been refunded (partially or fully).
	StatusRefunded Status = "refunded"
)

// IntentRequest captures the payload required to open a payment intent for a
// checkout. Metadata carries the bag snapshot and checkout options so the
// webhook can rebuild the order if the interactive flow dies after payment.
type IntentRequest struct {
	AmountCents    int64
	Currency       string
	ReceiptEmail   string
	Metadata       map[string]string
	IdempotencyKey string
}

// IntentUpdate adjusts an open intent when the bag changes mid-checkout.
type IntentUpdate struct {
	IntentID    string
	AmountCents *int64
	Metadata    map[string]string
}

// Intent is the client-facing handle for an open payment.
type Intent struct {
	ID           string
	ClientSecret string
	Status       Status
	AmountCents  int64
	Currency     string
}

// RefundRequest defines a PSP refund attempt.
type RefundRequest struct {
	IntentID       string
	AmountCents    *int64
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string
}

// LookupRequest returns provider specific payment details for reconciliation.
type LookupRequest struct {
	IntentID string
}

// PaymentDetails normalises PSP specific fields for storage.
type PaymentDetails struct {
	Provider   string
	IntentID   string
	Status     Status
	Amount     int64
	Currency   string
	Captured   bool
	CapturedAt *time.Time
	RefundedAt *time.Time
	Raw        map[string]any
}

// Provider defines the contract for PSP adapters to implement.
type Provider interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	UpdateIntent(ctx context.Context, req IntentUpdate) (Intent, error)
	Refund(ctx context.Context, req RefundRequest) (PaymentDetails, error)
	LookupPayment(ctx context.Context, req LookupRequest) (PaymentDetails, error)
}
