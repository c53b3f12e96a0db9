package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/platform/httpx"
	"github.com/tastyhub/api/internal/services"
)

// OrderHandlers exposes public order tracking by order number. Orders opt out
// of public tracking via their flag; those are only visible through /me.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs the order tracking endpoints.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{orderNumber}/tracking", h.trackOrder)
}

func (h *OrderHandlers) trackOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
	order, err := h.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	if !order.PublicTracking {
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
		return
	}

	writeJSONResponse(w, http.StatusOK, trackingResponse{Tracking: buildTrackingPayload(order)})
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrEmptyBag):
		httpx.WriteError(ctx, w, httpx.NewError("bag_empty", "bag is empty", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order", http.StatusInternalServerError))
	}
}

type trackingResponse struct {
	Tracking trackingPayload `json:"tracking"`
}

type trackingPayload struct {
	OrderNumber     string `json:"order_number"`
	Status          string `json:"status"`
	ProgressPercent int    `json:"progress_percent"`
	DeliveryType    string `json:"delivery_type"`
	PickupTime      string `json:"pickup_time,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

func buildTrackingPayload(order domain.Order) trackingPayload {
	return trackingPayload{
		OrderNumber:     order.Number,
		Status:          string(order.Status),
		ProgressPercent: order.Status.ProgressPercent(),
		DeliveryType:    string(order.DeliveryType),
		PickupTime:      order.PickupTime,
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
	}
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type ordersResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type orderPayload struct {
	Number          string             `json:"order_number"`
	Status          string             `json:"status"`
	ProgressPercent int                `json:"progress_percent"`
	DeliveryType    string             `json:"delivery_type"`
	PickupTime      string             `json:"pickup_time,omitempty"`
	Address         orderAddressFields `json:"address"`
	Lines           []orderLinePayload `json:"lines"`
	OrderTotal      string             `json:"order_total"`
	DeliveryFee     string             `json:"delivery_fee"`
	GrandTotal      string             `json:"grand_total"`
	EmailSent       bool               `json:"email_sent"`
	CreatedAt       string             `json:"created_at,omitempty"`
	UpdatedAt       string             `json:"updated_at,omitempty"`
}

type orderAddressFields struct {
	FullName       string `json:"full_name"`
	Email          string `json:"email,omitempty"`
	PhoneNumber    string `json:"phone_number,omitempty"`
	StreetAddress1 string `json:"street_address1,omitempty"`
	StreetAddress2 string `json:"street_address2,omitempty"`
	TownOrCity     string `json:"town_or_city,omitempty"`
	County         string `json:"county,omitempty"`
	Postcode       string `json:"postcode,omitempty"`
	Locality       string `json:"locality,omitempty"`
}

type orderLinePayload struct {
	PortionID string `json:"portion_id"`
	DishName  string `json:"dish_name"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	lines := make([]orderLinePayload, 0, len(order.LineItems))
	for _, line := range order.LineItems {
		lines = append(lines, orderLinePayload{
			PortionID: line.PortionID,
			DishName:  line.DishName,
			Size:      string(line.Size),
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.String(),
			LineTotal: line.LineTotal.String(),
		})
	}

	return orderPayload{
		Number:          order.Number,
		Status:          string(order.Status),
		ProgressPercent: order.Status.ProgressPercent(),
		DeliveryType:    string(order.DeliveryType),
		PickupTime:      order.PickupTime,
		Address: orderAddressFields{
			FullName:       order.Address.FullName,
			Email:          order.Address.Email,
			PhoneNumber:    order.Address.PhoneNumber,
			StreetAddress1: order.Address.StreetAddress1,
			StreetAddress2: order.Address.StreetAddress2,
			TownOrCity:     order.Address.TownOrCity,
			County:         order.Address.County,
			Postcode:       order.Address.Postcode,
			Locality:       order.Address.Locality,
		},
		Lines:       lines,
		OrderTotal:  order.OrderTotal.String(),
		DeliveryFee: order.DeliveryFee.String(),
		GrandTotal:  order.GrandTotal.String(),
		EmailSent:   order.EmailSent,
		CreatedAt:   formatTime(order.CreatedAt),
		UpdatedAt:   formatTime(order.UpdatedAt),
	}
}
