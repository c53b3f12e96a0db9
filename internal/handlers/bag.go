package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/platform/auth"
	"github.com/tastyhub/api/internal/platform/httpx"
	"github.com/tastyhub/api/internal/services"
)

const maxBagBodySize = 16 * 1024

// BagHandlers exposes the authenticated shopping bag endpoints. Every read
// returns the bag priced through the pricing engine so clients always see
// current totals and the delivery fee policy applied.
type BagHandlers struct {
	authn   *auth.Authenticator
	bags    services.BagService
	pricing services.PricingEngine
}

// NewBagHandlers constructs handlers enforcing Firebase authentication before
// invoking the bag service.
func NewBagHandlers(authn *auth.Authenticator, bags services.BagService, pricing services.PricingEngine) *BagHandlers {
	return &BagHandlers{
		authn:   authn,
		bags:    bags,
		pricing: pricing,
	}
}

// Routes wires the /bag endpoints onto the provided router.
func (h *BagHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getBag)
	r.Post("/items", h.addItem)
	r.Patch("/items/{portionID}", h.adjustItem)
	r.Delete("/items/{portionID}", h.removeItem)
	r.Delete("/", h.clearBag)
}

func (h *BagHandlers) getBag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	bag, err := h.bags.Get(ctx, owner)
	if err != nil {
		writeBagError(ctx, w, err)
		return
	}

	h.respondPricedBag(ctx, w, bag, r.URL.Query().Get("delivery_type"))
}

func (h *BagHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	req, ok := h.decodeItemRequest(ctx, w, r)
	if !ok {
		return
	}

	bag, err := h.bags.AddItem(ctx, owner, req.PortionID, req.Quantity)
	if err != nil {
		writeBagError(ctx, w, err)
		return
	}

	h.respondPricedBag(ctx, w, bag, req.DeliveryType)
}

func (h *BagHandlers) adjustItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	req, ok := h.decodeItemRequest(ctx, w, r)
	if !ok {
		return
	}

	portionID := chi.URLParam(r, "portionID")
	bag, err := h.bags.AdjustItem(ctx, owner, portionID, req.Quantity)
	if err != nil {
		writeBagError(ctx, w, err)
		return
	}

	h.respondPricedBag(ctx, w, bag, req.DeliveryType)
}

func (h *BagHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	portionID := chi.URLParam(r, "portionID")
	bag, err := h.bags.RemoveItem(ctx, owner, portionID)
	if err != nil {
		writeBagError(ctx, w, err)
		return
	}

	h.respondPricedBag(ctx, w, bag, r.URL.Query().Get("delivery_type"))
}

func (h *BagHandlers) clearBag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	if err := h.bags.Clear(ctx, owner); err != nil {
		writeBagError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *BagHandlers) requireOwner(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.bags == nil || h.pricing == nil {
		httpx.WriteError(ctx, w, httpx.NewError("bag_service_unavailable", "bag service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return identity.UID, true
}

type bagItemRequest struct {
	PortionID    string `json:"portion_id"`
	Quantity     int    `json:"quantity"`
	DeliveryType string `json:"delivery_type"`
}

func (h *BagHandlers) decodeItemRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (bagItemRequest, bool) {
	var req bagItemRequest
	body, err := readLimitedBody(r, maxBagBodySize)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return req, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return req, false
	}
	return req, true
}

func (h *BagHandlers) respondPricedBag(ctx context.Context, w http.ResponseWriter, bag domain.Bag, deliveryType string) {
	quote, err := h.pricing.Quote(ctx, bag.Items, domain.NormalizeDeliveryType(deliveryType))
	if err != nil {
		writeBagError(ctx, w, err)
		return
	}

	// The quote may have dropped portions that no longer exist; persist the
	// corrected bag so the stale entries do not resurface.
	if len(quote.RemovedPortionIDs) > 0 {
		for _, portionID := range quote.RemovedPortionIDs {
			if cleaned, removeErr := h.bags.RemoveItem(ctx, bag.OwnerID, portionID); removeErr == nil {
				bag = cleaned
			}
		}
	}

	writeJSONResponse(w, http.StatusOK, buildBagResponse(bag, quote))
}

func writeBagError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrBagInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrBagPortionUnknown):
		httpx.WriteError(ctx, w, httpx.NewError("portion_not_found", "portion not found", http.StatusNotFound))
	case errors.Is(err, services.ErrBagLimitExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("bag_limit_exceeded", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrBagUnavailable), errors.Is(err, services.ErrPricingUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("bag_service_unavailable", "bag service is unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, services.ErrPricingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("bag_error", "failed to read bag", http.StatusInternalServerError))
	}
}

type bagResponse struct {
	Bag bagPayload `json:"bag"`
}

type bagPayload struct {
	OwnerID            string           `json:"owner_id"`
	Items              []bagLinePayload `json:"items"`
	TotalQuantity      int              `json:"total_quantity"`
	Subtotal           string           `json:"subtotal"`
	DeliveryFee        string           `json:"delivery_fee"`
	DeliveryFeeDisplay string           `json:"delivery_fee_display"`
	GrandTotal         string           `json:"grand_total"`
	DeliveryType       string           `json:"delivery_type"`
	RemovedPortionIDs  []string         `json:"removed_portion_ids,omitempty"`
	UpdatedAt          string           `json:"updated_at,omitempty"`
}

type bagLinePayload struct {
	PortionID string `json:"portion_id"`
	DishID    string `json:"dish_id"`
	DishName  string `json:"dish_name"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

func buildBagResponse(bag domain.Bag, quote domain.BagQuote) bagResponse {
	lines := make([]bagLinePayload, 0, len(quote.Lines))
	for _, line := range quote.Lines {
		lines = append(lines, bagLinePayload{
			PortionID: line.PortionID,
			DishID:    line.DishID,
			DishName:  line.DishName,
			Size:      string(line.Size),
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.String(),
			LineTotal: line.LineTotal.String(),
		})
	}

	return bagResponse{Bag: bagPayload{
		OwnerID:            bag.OwnerID,
		Items:              lines,
		TotalQuantity:      bag.TotalQuantity(),
		Subtotal:           quote.Subtotal.String(),
		DeliveryFee:        quote.DeliveryFee.String(),
		DeliveryFeeDisplay: quote.DeliveryFeeDisplay,
		GrandTotal:         quote.GrandTotal.String(),
		DeliveryType:       string(quote.DeliveryType),
		RemovedPortionIDs:  quote.RemovedPortionIDs,
		UpdatedAt:          formatTime(bag.UpdatedAt),
	}}
}
