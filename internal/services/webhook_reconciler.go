package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/platform/textutil"
)

var (
	// ErrWebhookInvalidPayload marks notifications whose metadata cannot be
	// turned into an order. These must be retried by the provider.
	ErrWebhookInvalidPayload = errors.New("webhook: invalid payload")
	// ErrWebhookUnprocessed marks notifications that could not be reconciled
	// because of a downstream failure. These must be retried by the provider.
	ErrWebhookUnprocessed = errors.New("webhook: not processed")
)

// EventPaymentSucceeded is the provider event the reconciler acts on.
const EventPaymentSucceeded = "payment_intent.succeeded"

// Metadata keys the checkout flow attaches to the payment intent.
const (
	metadataKeyBag          = "bag"
	metadataKeySaveInfo     = "save_info"
	metadataKeyUsername     = "username"
	metadataKeyDeliveryType = "delivery_type"
	metadataKeyPickupTime   = "pickup_time"
	metadataKeyEmail        = "email"
)

// WebhookReconcilerDeps bundles collaborators required to construct the reconciler.
type WebhookReconcilerDeps struct {
	Orders   OrderService
	Bags     BagService
	Profiles ProfileService
	Email    EmailDispatcher
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type webhookReconciler struct {
	orders   OrderService
	bags     BagService
	profiles ProfileService
	email    EmailDispatcher
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewWebhookReconciler wires dependencies into a concrete WebhookReconciler.
func NewWebhookReconciler(deps WebhookReconcilerDeps) (WebhookReconciler, error) {
	if deps.Orders == nil {
		return nil, errors.New("webhook reconciler: order service is required")
	}
	if deps.Bags == nil {
		return nil, errors.New("webhook reconciler: bag service is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &webhookReconciler{
		orders:   deps.Orders,
		bags:     deps.Bags,
		profiles: deps.Profiles,
		email:    deps.Email,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// HandlePaymentEvent reconciles a verified payment notification against the
// order store. A payment that already has its order triggers a duplicate-safe
// confirmation resend; a payment without one gets its order rebuilt from the
// intent metadata so no charge is ever left without an order.
func (w *webhookReconciler) HandlePaymentEvent(ctx context.Context, notice PaymentNotification) (ReconcileResult, error) {
	if notice.EventType != EventPaymentSucceeded {
		w.logger(ctx, "webhook.ignored", map[string]any{
			"event_id":   notice.EventID,
			"event_type": notice.EventType,
		})
		return ReconcileResult{Outcome: ReconcileOutcomeIgnored}, nil
	}

	paymentRef := strings.TrimSpace(notice.PaymentRef)
	if paymentRef == "" {
		return ReconcileResult{}, fmt.Errorf("%w: missing payment reference", ErrWebhookInvalidPayload)
	}

	order, err := w.orders.GetByPaymentRef(ctx, paymentRef)
	if err == nil {
		w.resendConfirmation(ctx, order)
		w.logger(ctx, "webhook.order_exists", map[string]any{
			"event_id":     notice.EventID,
			"order_number": order.Number,
		})
		return ReconcileResult{
			Outcome:     ReconcileOutcomeAlreadyProcessed,
			OrderNumber: order.Number,
		}, nil
	}
	if !errors.Is(err, ErrOrderNotFound) {
		return ReconcileResult{}, fmt.Errorf("%w: order lookup: %v", ErrWebhookUnprocessed, err)
	}

	cmd, err := w.buildCommand(ctx, notice)
	if err != nil {
		return ReconcileResult{}, err
	}

	created, err := w.orders.CreateFromBag(ctx, cmd)
	if err != nil {
		// Assembly failures of every kind come back as unprocessed so the
		// provider redelivers once the underlying condition clears.
		return ReconcileResult{}, fmt.Errorf("%w: %v", ErrWebhookUnprocessed, err)
	}

	w.logger(ctx, "webhook.order_created", map[string]any{
		"event_id":     notice.EventID,
		"order_number": created.Number,
	})
	return ReconcileResult{
		Outcome:     ReconcileOutcomeOrderCreated,
		OrderNumber: created.Number,
	}, nil
}

// buildCommand reconstructs the checkout command from intent metadata. The
// metadata was written by our own checkout flow but is treated as untrusted:
// every field goes through the same normalisation the interactive path uses.
func (w *webhookReconciler) buildCommand(ctx context.Context, notice PaymentNotification) (CreateOrderCommand, error) {
	metadata := textutil.NormalizeStringMap(notice.Metadata)

	rawBag := metadata[metadataKeyBag]
	if rawBag == "" {
		return CreateOrderCommand{}, fmt.Errorf("%w: metadata carries no bag", ErrWebhookInvalidPayload)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(rawBag), &decoded); err != nil {
		// An unreadable snapshot degrades to an empty bag; assembly then
		// fails as unprocessed and the event is retried rather than dropped.
		w.logger(ctx, "webhook.bag_unreadable", map[string]any{
			"payment_ref": notice.PaymentRef,
			"error":       err.Error(),
		})
		decoded = map[string]any{}
	}
	items, dropped := w.bags.Normalize(ctx, decoded)
	if len(dropped) > 0 {
		w.logger(ctx, "webhook.bag_entries_dropped", map[string]any{
			"payment_ref": notice.PaymentRef,
			"dropped":     dropped,
		})
	}

	address := notice.Address
	if address.FullName == "" {
		address.FullName = notice.CustomerName
	}
	if email := metadata[metadataKeyEmail]; email != "" {
		address.Email = email
	} else if address.Email == "" {
		address.Email = notice.CustomerEmail
	}

	return CreateOrderCommand{
		BagItems:     items,
		RawBag:       rawBag,
		ProfileID:    w.resolveProfileID(ctx, metadata[metadataKeyUsername]),
		Address:      address,
		DeliveryType: domain.NormalizeDeliveryType(metadata[metadataKeyDeliveryType]),
		PickupTime:   metadata[metadataKeyPickupTime],
		PaymentRef:   strings.TrimSpace(notice.PaymentRef),
		SaveInfo:     strings.EqualFold(metadata[metadataKeySaveInfo], "true"),
	}, nil
}

// resolveProfileID maps the metadata username onto a profile. Unknown or
// anonymous usernames fall back to a guest order.
func (w *webhookReconciler) resolveProfileID(ctx context.Context, username string) string {
	if w.profiles == nil {
		return ""
	}
	username = strings.TrimSpace(username)
	if username == "" || strings.EqualFold(username, "anonymous") {
		return ""
	}
	profile, err := w.profiles.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrProfileNotFound) {
			w.logger(ctx, "webhook.profile_lookup_failed", map[string]any{
				"username": username,
				"error":    err.Error(),
			})
		}
		return ""
	}
	return profile.ID
}

// resendConfirmation covers the crash window between order commit and email
// dispatch. The email-sent flag keeps replayed events from double sending.
func (w *webhookReconciler) resendConfirmation(ctx context.Context, order domain.Order) {
	if w.email == nil || order.EmailSent {
		return
	}
	if err := w.email.DispatchOrderConfirmation(ctx, order); err != nil {
		w.logger(ctx, "webhook.email_resend_failed", map[string]any{
			"order_number": order.Number,
			"error":        err.Error(),
		})
		return
	}
	if err := w.orders.MarkEmailSent(ctx, order.ID); err != nil {
		w.logger(ctx, "webhook.email_flag_failed", map[string]any{
			"order_number": order.Number,
			"error":        err.Error(),
		})
	}
}
