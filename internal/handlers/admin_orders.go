package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/platform/auth"
	"github.com/tastyhub/api/internal/platform/httpx"
	"github.com/tastyhub/api/internal/services"
)

const (
	maxStatusBodySize    = 4 * 1024
	defaultQueuePageSize = 20
	maxQueuePageSize     = 100
)

// AdminOrderHandlers exposes the staff order queue and lifecycle operations.
type AdminOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewAdminOrderHandlers constructs handlers restricted to staff and admin roles.
func NewAdminOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *AdminOrderHandlers {
	return &AdminOrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes wires the staff order endpoints onto the provided router.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleStaff, auth.RoleAdmin))
	}
	r.Get("/orders", h.listQueue)
	r.Get("/orders/status-counts", h.statusCounts)
	r.Get("/orders/{orderNumber}", h.getOrder)
	r.Post("/orders/{orderNumber}/status", h.updateStatus)
	r.Post("/orders/{orderNumber}/cancel", h.cancelOrder)
}

func (h *AdminOrderHandlers) listQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	pager, err := parsePageParams(query.Get("page_size"), query.Get("page_token"), defaultQueuePageSize, maxQueuePageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	queue := services.OrderQueueQuery{Pagination: pager}

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, valid := domain.ParseOrderStatus(raw)
		if !valid {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown order status", http.StatusBadRequest))
			return
		}
		queue.Status = &status
	}
	if raw := strings.TrimSpace(query.Get("delivery_type")); raw != "" {
		deliveryType := domain.NormalizeDeliveryType(raw)
		queue.DeliveryType = &deliveryType
	}
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		queue.CreatedFrom = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		queue.CreatedTo = &ts
	}

	page, err := h.orders.ListQueue(ctx, queue)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := ordersResponse{
		Orders:        make([]orderPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, order := range page.Items {
		payload.Orders = append(payload.Orders, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *AdminOrderHandlers) statusCounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	counts, err := h.orders.CountByStatus(ctx)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := make(map[string]int64, len(counts))
	for status, count := range counts {
		payload[string(status)] = count
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"counts": payload})
}

func (h *AdminOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	order, err := h.orders.GetByNumber(ctx, chi.URLParam(r, "orderNumber"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *AdminOrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, _ := auth.IdentityFromContext(ctx)
	actorID := ""
	if identity != nil {
		actorID = identity.UID
	}

	body, err := readLimitedBody(r, maxStatusBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	var req updateStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	status, valid := domain.ParseOrderStatus(req.Status)
	if !valid {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown order status", http.StatusBadRequest))
		return
	}

	order, err := h.orders.UpdateStatus(ctx, chi.URLParam(r, "orderNumber"), status, actorID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

// cancelOrder moves the order to cancelled, which also deletes the aggregate.
func (h *AdminOrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, _ := auth.IdentityFromContext(ctx)
	actorID := ""
	if identity != nil {
		actorID = identity.UID
	}

	order, err := h.orders.UpdateStatus(ctx, chi.URLParam(r, "orderNumber"), domain.OrderStatusCancelled, actorID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}
