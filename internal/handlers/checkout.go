package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/payments"
	"github.com/tastyhub/api/internal/platform/auth"
	"github.com/tastyhub/api/internal/platform/httpx"
	"github.com/tastyhub/api/internal/services"
)

const maxCheckoutBodySize = 32 * 1024

// CheckoutHandlers drives the interactive checkout: opening a payment intent
// for the current bag and completing the order once payment is confirmed
// client side. The webhook reconciler covers the crash window in between.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	bags     services.BagService
	pricing  services.PricingEngine
	orders   services.OrderService
	profiles services.ProfileService
	provider payments.Provider
	currency string
}

// CheckoutHandlersDeps bundles collaborators for NewCheckoutHandlers.
type CheckoutHandlersDeps struct {
	Authenticator *auth.Authenticator
	Bags          services.BagService
	Pricing       services.PricingEngine
	Orders        services.OrderService
	Profiles      services.ProfileService
	Provider      payments.Provider
	Currency      string
}

// NewCheckoutHandlers constructs the checkout endpoints.
func NewCheckoutHandlers(deps CheckoutHandlersDeps) *CheckoutHandlers {
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "USD"
	}
	return &CheckoutHandlers{
		authn:    deps.Authenticator,
		bags:     deps.Bags,
		pricing:  deps.Pricing,
		orders:   deps.Orders,
		profiles: deps.Profiles,
		provider: deps.Provider,
		currency: currency,
	}
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/intent", h.createIntent)
	r.Put("/intent/{intentID}", h.updateIntent)
	r.Post("/complete", h.complete)
}

type checkoutIntentRequest struct {
	DeliveryType string `json:"delivery_type"`
	PickupTime   string `json:"pickup_time"`
	SaveInfo     bool   `json:"save_info"`
	ReceiptEmail string `json:"receipt_email"`
}

type checkoutIntentResponse struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
	GrandTotal   string `json:"grand_total"`
	DeliveryFee  string `json:"delivery_fee_display"`
}

func (h *CheckoutHandlers) createIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req checkoutIntentRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	bag, quote, ok := h.loadPricedBag(ctx, w, identity.UID, req.DeliveryType)
	if !ok {
		return
	}

	intent, err := h.provider.CreateIntent(ctx, payments.IntentRequest{
		AmountCents:    moneyCents(quote.GrandTotal),
		Currency:       h.currency,
		ReceiptEmail:   h.receiptEmail(req.ReceiptEmail, identity),
		Metadata:       h.intentMetadata(ctx, identity, bag, req),
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_provider_error", "failed to open payment intent", http.StatusBadGateway))
		return
	}

	writeJSONResponse(w, http.StatusCreated, checkoutIntentResponse{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountCents:  intent.AmountCents,
		Currency:     intent.Currency,
		GrandTotal:   quote.GrandTotal.String(),
		DeliveryFee:  quote.DeliveryFeeDisplay,
	})
}

func (h *CheckoutHandlers) updateIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	intentID := strings.TrimSpace(chi.URLParam(r, "intentID"))
	if intentID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "intent id is required", http.StatusBadRequest))
		return
	}

	var req checkoutIntentRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	bag, quote, ok := h.loadPricedBag(ctx, w, identity.UID, req.DeliveryType)
	if !ok {
		return
	}

	amount := moneyCents(quote.GrandTotal)
	intent, err := h.provider.UpdateIntent(ctx, payments.IntentUpdate{
		IntentID:    intentID,
		AmountCents: &amount,
		Metadata:    h.intentMetadata(ctx, identity, bag, req),
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_provider_error", "failed to update payment intent", http.StatusBadGateway))
		return
	}

	writeJSONResponse(w, http.StatusOK, checkoutIntentResponse{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountCents:  intent.AmountCents,
		Currency:     intent.Currency,
		GrandTotal:   quote.GrandTotal.String(),
		DeliveryFee:  quote.DeliveryFeeDisplay,
	})
}

type checkoutCompleteRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
	DeliveryType    string `json:"delivery_type"`
	PickupTime      string `json:"pickup_time"`
	SaveInfo        bool   `json:"save_info"`

	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phone_number"`
	StreetAddress1 string `json:"street_address1"`
	StreetAddress2 string `json:"street_address2"`
	TownOrCity     string `json:"town_or_city"`
	County         string `json:"county"`
	Postcode       string `json:"postcode"`
	Locality       string `json:"locality"`
}

func (h *CheckoutHandlers) complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req checkoutCompleteRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	bag, err := h.bags.Get(ctx, identity.UID)
	if err != nil {
		writeBagError(ctx, w, err)
		return
	}

	rawBag, err := json.Marshal(bag.Items)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to snapshot bag", http.StatusInternalServerError))
		return
	}

	order, err := h.orders.CreateFromBag(ctx, services.CreateOrderCommand{
		BagItems:  bag.Items,
		RawBag:    string(rawBag),
		ProfileID: identity.UID,
		Address: domain.Address{
			FullName:       req.FullName,
			Email:          req.Email,
			PhoneNumber:    req.PhoneNumber,
			StreetAddress1: req.StreetAddress1,
			StreetAddress2: req.StreetAddress2,
			TownOrCity:     req.TownOrCity,
			County:         req.County,
			Postcode:       req.Postcode,
			Locality:       req.Locality,
		},
		DeliveryType: domain.NormalizeDeliveryType(req.DeliveryType),
		PickupTime:   strings.TrimSpace(req.PickupTime),
		PaymentRef:   strings.TrimSpace(req.PaymentIntentID),
		SaveInfo:     req.SaveInfo,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *CheckoutHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.bags == nil || h.pricing == nil || h.orders == nil || h.provider == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func (h *CheckoutHandlers) decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) bool {
	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

func (h *CheckoutHandlers) loadPricedBag(ctx context.Context, w http.ResponseWriter, ownerID, deliveryType string) (domain.Bag, domain.BagQuote, bool) {
	bag, err := h.bags.Get(ctx, ownerID)
	if err != nil {
		writeBagError(ctx, w, err)
		return domain.Bag{}, domain.BagQuote{}, false
	}

	quote, err := h.pricing.Quote(ctx, bag.Items, domain.NormalizeDeliveryType(deliveryType))
	if err != nil {
		writeBagError(ctx, w, err)
		return domain.Bag{}, domain.BagQuote{}, false
	}
	if len(quote.Lines) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("bag_empty", "bag is empty", http.StatusBadRequest))
		return domain.Bag{}, domain.BagQuote{}, false
	}
	return bag, quote, true
}

// intentMetadata snapshots everything the webhook reconciler needs to rebuild
// the order if completion never arrives.
func (h *CheckoutHandlers) intentMetadata(ctx context.Context, identity *auth.Identity, bag domain.Bag, req checkoutIntentRequest) map[string]string {
	rawBag, err := json.Marshal(bag.Items)
	if err != nil {
		rawBag = []byte("{}")
	}

	metadata := map[string]string{
		"bag":           string(rawBag),
		"username":      h.resolveUsername(ctx, identity),
		"save_info":     "false",
		"delivery_type": string(domain.NormalizeDeliveryType(req.DeliveryType)),
	}
	if req.SaveInfo {
		metadata["save_info"] = "true"
	}
	if email := h.receiptEmail(req.ReceiptEmail, identity); email != "" {
		metadata["email"] = email
	}
	if pickup := strings.TrimSpace(req.PickupTime); pickup != "" {
		metadata["pickup_time"] = pickup
	}
	return metadata
}

func (h *CheckoutHandlers) resolveUsername(ctx context.Context, identity *auth.Identity) string {
	if h.profiles != nil {
		if profile, err := h.profiles.Get(ctx, identity.UID); err == nil && strings.TrimSpace(profile.Username) != "" {
			return profile.Username
		}
	}
	return "anonymous"
}

func (h *CheckoutHandlers) receiptEmail(requested string, identity *auth.Identity) string {
	if email := strings.TrimSpace(requested); email != "" {
		return email
	}
	return strings.TrimSpace(identity.Email)
}

var centsFactor = decimal.NewFromInt(100)

func moneyCents(m domain.Money) int64 {
	return m.RoundCents().Decimal().Mul(centsFactor).IntPart()
}
