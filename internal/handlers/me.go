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

const (
	maxProfileBodySize     = 16 * 1024
	defaultHistoryPageSize = 20
	maxHistoryPageSize     = 100
)

// MeHandlers exposes the authenticated profile and order history endpoints.
type MeHandlers struct {
	authn    *auth.Authenticator
	profiles services.ProfileService
	orders   services.OrderService
}

// NewMeHandlers constructs handlers enforcing Firebase authentication before
// invoking the profile service.
func NewMeHandlers(authn *auth.Authenticator, profiles services.ProfileService, orders services.OrderService) *MeHandlers {
	return &MeHandlers{
		authn:    authn,
		profiles: profiles,
		orders:   orders,
	}
}

// Routes wires the /me endpoints onto the provided router.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getProfile)
	r.Put("/", h.updateProfile)
	r.Delete("/", h.deleteProfile)
	r.Get("/orders", h.listOrders)
}

func (h *MeHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	profile, err := h.profiles.Get(ctx, identity.UID)
	if err != nil {
		writeProfileError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, profileResponse{Profile: buildProfilePayload(profile)})
}

type updateProfileRequest struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phone_number"`
	StreetAddress1 string `json:"street_address1"`
	StreetAddress2 string `json:"street_address2"`
	TownOrCity     string `json:"town_or_city"`
	County         string `json:"county"`
	Postcode       string `json:"postcode"`
	Locality       string `json:"locality"`
}

func (h *MeHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxProfileBodySize)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req updateProfileRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	profile, err := h.profiles.Upsert(ctx, identity.UID, services.ProfileUpdate{
		Username:       req.Username,
		Email:          req.Email,
		PhoneNumber:    req.PhoneNumber,
		StreetAddress1: req.StreetAddress1,
		StreetAddress2: req.StreetAddress2,
		TownOrCity:     req.TownOrCity,
		County:         req.County,
		Postcode:       req.Postcode,
		Locality:       req.Locality,
	})
	if err != nil {
		writeProfileError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, profileResponse{Profile: buildProfilePayload(profile)})
}

func (h *MeHandlers) deleteProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	if err := h.profiles.Delete(ctx, identity.UID); err != nil {
		writeProfileError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *MeHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	pager, err := parsePageParams(query.Get("page_size"), query.Get("page_token"), defaultHistoryPageSize, maxHistoryPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListByProfile(ctx, identity.UID, pager)
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

func (h *MeHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.profiles == nil {
		httpx.WriteError(ctx, w, httpx.NewError("profile_service_unavailable", "profile service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func writeProfileError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrProfileInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrProfileNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("profile_not_found", "profile not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProfileUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("profile_service_unavailable", "profile service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("profile_error", "failed to process profile", http.StatusInternalServerError))
	}
}

type profileResponse struct {
	Profile profilePayload `json:"profile"`
}

type profilePayload struct {
	ID             string `json:"id"`
	Username       string `json:"username,omitempty"`
	Email          string `json:"email,omitempty"`
	PhoneNumber    string `json:"phone_number,omitempty"`
	StreetAddress1 string `json:"street_address1,omitempty"`
	StreetAddress2 string `json:"street_address2,omitempty"`
	TownOrCity     string `json:"town_or_city,omitempty"`
	County         string `json:"county,omitempty"`
	Postcode       string `json:"postcode,omitempty"`
	Locality       string `json:"locality,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

func buildProfilePayload(profile domain.UserProfile) profilePayload {
	return profilePayload{
		ID:             profile.ID,
		Username:       profile.Username,
		Email:          profile.Email,
		PhoneNumber:    profile.DefaultPhoneNumber,
		StreetAddress1: profile.DefaultStreetAddress1,
		StreetAddress2: profile.DefaultStreetAddress2,
		TownOrCity:     profile.DefaultTownOrCity,
		County:         profile.DefaultCounty,
		Postcode:       profile.DefaultPostcode,
		Locality:       profile.DefaultLocality,
		CreatedAt:      formatTime(profile.CreatedAt),
		UpdatedAt:      formatTime(profile.UpdatedAt),
	}
}
