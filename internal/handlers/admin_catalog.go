package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	domain "github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/platform/auth"
	"github.com/tastyhub/api/internal/platform/httpx"
	"github.com/tastyhub/api/internal/platform/storage"
	"github.com/tastyhub/api/internal/services"
)

const (
	maxCatalogBodySize  = 32 * 1024
	maxDishImageBytes   = 10 * 1024 * 1024
	dishImageUploadTTL  = 15 * time.Minute
	dishImageUploadVerb = http.MethodPut
)

var allowedDishImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// AdminCatalogHandlers exposes the staff catalog management endpoints.
type AdminCatalogHandlers struct {
	authn        *auth.Authenticator
	catalog      services.CatalogService
	uploads      *storage.Client
	uploadBucket string
	newUploadID  func() string
}

// AdminCatalogOption customises catalog handler construction.
type AdminCatalogOption func(*AdminCatalogHandlers)

// WithCatalogUploads wires the signed URL client used for dish imagery.
func WithCatalogUploads(client *storage.Client, bucket string) AdminCatalogOption {
	return func(h *AdminCatalogHandlers) {
		h.uploads = client
		h.uploadBucket = strings.TrimSpace(bucket)
	}
}

// WithCatalogUploadIDs overrides upload identifier generation (tests).
func WithCatalogUploadIDs(gen func() string) AdminCatalogOption {
	return func(h *AdminCatalogHandlers) {
		if gen != nil {
			h.newUploadID = gen
		}
	}
}

// NewAdminCatalogHandlers constructs handlers restricted to staff and admin roles.
func NewAdminCatalogHandlers(authn *auth.Authenticator, catalog services.CatalogService, opts ...AdminCatalogOption) *AdminCatalogHandlers {
	h := &AdminCatalogHandlers{
		authn:   authn,
		catalog: catalog,
		newUploadID: func() string {
			return ulid.Make().String()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the catalog management endpoints onto the provided router.
func (h *AdminCatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleStaff, auth.RoleAdmin))
	}
	r.Post("/categories", h.createCategory)
	r.Put("/categories/{categoryID}", h.updateCategory)
	r.Delete("/categories/{categoryID}", h.deleteCategory)
	r.Post("/dishes", h.createDish)
	r.Put("/dishes/{dishID}", h.updateDish)
	r.Delete("/dishes/{dishID}", h.deleteDish)
	r.Post("/dishes/{dishID}/image-upload-url", h.issueDishImageURL)
	r.Post("/portions", h.createPortion)
	r.Put("/portions/{portionID}", h.updatePortion)
	r.Delete("/portions/{portionID}", h.deletePortion)
}

func (h *AdminCatalogHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireCatalog(ctx, w) {
		return
	}

	var req categoryRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}
	input, ok := h.categoryInput(ctx, w, req)
	if !ok {
		return
	}

	category, err := h.catalog.CreateCategory(ctx, input)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildCategoryPayload(category))
}

func (h *AdminCatalogHandlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireCatalog(ctx, w) {
		return
	}

	categoryID := strings.TrimSpace(chi.URLParam(r, "categoryID"))
	var req categoryRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}
	input, ok := h.categoryInput(ctx, w, req)
	if !ok {
		return
	}

	category, err := h.catalog.UpdateCategory(ctx, categoryID, input)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCategoryPayload(category))
}

func (h *AdminCatalogHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireCatalog(ctx, w) {
		return
	}

	categoryID := strings.TrimSpace(chi.URLParam(r, "categoryID"))
	if err := h.catalog.DeleteCategory(ctx, categoryID); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminCatalogHandlers) createDish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireCatalog(ctx, w) {
		return
	}

	var req dishRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}
	input, ok := h.dishInput(ctx, w, req)
	if !ok {
		return
	}

	dish, err := h.catalog.CreateDish(ctx, input)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildDishPayload(dish))
}

func (h *AdminCatalogHandlers) updateDish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireCatalog(ctx, w) {
		return
	}

	dishID := strings.TrimSpace(chi.URLParam(r, "dishID"))
	var req dishRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}
	input, ok := h.dishInput(ctx, w, req)
	if !ok {
		return
	}

	dish, err := h.catalog.UpdateDish(ctx, dishID, input)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildDishPayload(dish))
}

func (h *AdminCatalogHandlers) deleteDish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireCatalog(ctx, w) {
		return
	}

	dishID := strings.TrimSpace(chi.URLParam(r, "dishID"))
	if err := h.catalog.DeleteDish(ctx, dishID); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminCatalogHandlers) createPortion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireCatalog(ctx, w) {
		return
	}

	var req portionRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}
	input, ok := h.portionInput(ctx, w, req)
	if !ok {
		return
	}

	portion, err := h.catalog.CreatePortion(ctx, input)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildPortionPayload(portion))
}

func (h *AdminCatalogHandlers) updatePortion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireCatalog(ctx, w) {
		return
	}

	portionID := strings.TrimSpace(chi.URLParam(r, "portionID"))
	var req portionRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}
	input, ok := h.portionInput(ctx, w, req)
	if !ok {
		return
	}

	portion, err := h.catalog.UpdatePortion(ctx, portionID, input)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPortionPayload(portion))
}

func (h *AdminCatalogHandlers) deletePortion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireCatalog(ctx, w) {
		return
	}

	portionID := strings.TrimSpace(chi.URLParam(r, "portionID"))
	if err := h.catalog.DeletePortion(ctx, portionID); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminCatalogHandlers) issueDishImageURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireCatalog(ctx, w) {
		return
	}
	if h.uploads == nil || h.uploadBucket == "" {
		httpx.WriteError(ctx, w, httpx.NewError("uploads_unavailable", "image uploads are not configured", http.StatusServiceUnavailable))
		return
	}

	dishID := strings.TrimSpace(chi.URLParam(r, "dishID"))
	var req dishImageRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	object, err := storage.BuildObjectPath(storage.PurposeDishImage, storage.PathParams{
		DishID:   dishID,
		UploadID: h.newUploadID(),
		FileName: req.FileName,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	maxSize := req.SizeBytes
	if maxSize <= 0 || maxSize > maxDishImageBytes {
		maxSize = maxDishImageBytes
	}
	result, err := h.uploads.SignedURL(ctx, h.uploadBucket, object, storage.SignedURLOptions{
		Upload: &storage.UploadOptions{
			Method:              dishImageUploadVerb,
			ContentType:         req.ContentType,
			AllowedContentTypes: allowedDishImageTypes,
			MaxSize:             maxSize,
			ExpiresIn:           dishImageUploadTTL,
		},
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	payload := dishImageResponse{
		ImagePath: object,
		UploadURL: result.URL,
		Method:    result.Method,
		Headers:   result.Headers,
	}
	if !result.ExpiresAt.IsZero() {
		payload.ExpiresAt = result.ExpiresAt.UTC().Format(time.RFC3339)
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *AdminCatalogHandlers) requireCatalog(ctx context.Context, w http.ResponseWriter) bool {
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (h *AdminCatalogHandlers) decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) bool {
	body, err := readLimitedBody(r, maxCatalogBodySize)
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

func (h *AdminCatalogHandlers) categoryInput(ctx context.Context, w http.ResponseWriter, req categoryRequest) (services.CategoryInput, bool) {
	menuType, ok := domain.ParseMenuType(req.MenuType)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "menu_type must be a known menu type", http.StatusBadRequest))
		return services.CategoryInput{}, false
	}
	return services.CategoryInput{
		Name:        strings.TrimSpace(req.Name),
		MenuType:    menuType,
		Description: strings.TrimSpace(req.Description),
	}, true
}

func (h *AdminCatalogHandlers) dishInput(ctx context.Context, w http.ResponseWriter, req dishRequest) (services.DishInput, bool) {
	basePrice, err := domain.ParseMoney(req.BasePrice)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "base_price must be a decimal amount", http.StatusBadRequest))
		return services.DishInput{}, false
	}

	availableFrom, ok := h.parseOptionalTime(ctx, w, "available_from", req.AvailableFrom)
	if !ok {
		return services.DishInput{}, false
	}
	availableUntil, ok := h.parseOptionalTime(ctx, w, "available_until", req.AvailableUntil)
	if !ok {
		return services.DishInput{}, false
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}

	return services.DishInput{
		CategoryID:  strings.TrimSpace(req.CategoryID),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Ingredients: strings.TrimSpace(req.Ingredients),
		Dietary: domain.DietaryInfo{
			Vegetarian: req.Vegetarian,
			Vegan:      req.Vegan,
			GlutenFree: req.GlutenFree,
			Spicy:      req.Spicy,
		},
		PrepTimeMins:   req.PrepTimeMins,
		Calories:       req.Calories,
		BasePrice:      basePrice,
		ImagePath:      strings.TrimSpace(req.ImagePath),
		Available:      available,
		IsSpecial:      req.IsSpecial,
		AvailableFrom:  availableFrom,
		AvailableUntil: availableUntil,
	}, true
}

func (h *AdminCatalogHandlers) portionInput(ctx context.Context, w http.ResponseWriter, req portionRequest) (services.PortionInput, bool) {
	size, ok := domain.ParsePortionSize(req.Size)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "size must be a known portion size", http.StatusBadRequest))
		return services.PortionInput{}, false
	}
	price, err := domain.ParseMoney(req.Price)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "price must be a decimal amount", http.StatusBadRequest))
		return services.PortionInput{}, false
	}
	return services.PortionInput{
		DishID:      strings.TrimSpace(req.DishID),
		Size:        size,
		WeightGrams: req.WeightGrams,
		Price:       price,
	}, true
}

func (h *AdminCatalogHandlers) parseOptionalTime(ctx context.Context, w http.ResponseWriter, field, raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", field+" must be an RFC3339 timestamp", http.StatusBadRequest))
		return nil, false
	}
	parsed = parsed.UTC()
	return &parsed, true
}

type categoryRequest struct {
	Name        string `json:"name"`
	MenuType    string `json:"menu_type"`
	Description string `json:"description,omitempty"`
}

type dishRequest struct {
	CategoryID     string `json:"category_id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Ingredients    string `json:"ingredients,omitempty"`
	Vegetarian     bool   `json:"vegetarian,omitempty"`
	Vegan          bool   `json:"vegan,omitempty"`
	GlutenFree     bool   `json:"gluten_free,omitempty"`
	Spicy          bool   `json:"spicy,omitempty"`
	PrepTimeMins   int    `json:"prep_time_mins,omitempty"`
	Calories       int    `json:"calories,omitempty"`
	BasePrice      string `json:"base_price"`
	ImagePath      string `json:"image_path,omitempty"`
	Available      *bool  `json:"available,omitempty"`
	IsSpecial      bool   `json:"is_special,omitempty"`
	AvailableFrom  string `json:"available_from,omitempty"`
	AvailableUntil string `json:"available_until,omitempty"`
}

type portionRequest struct {
	DishID      string `json:"dish_id"`
	Size        string `json:"size"`
	WeightGrams int    `json:"weight_grams,omitempty"`
	Price       string `json:"price"`
}

type dishImageRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
}

type dishImageResponse struct {
	ImagePath string            `json:"image_path"`
	UploadURL string            `json:"upload_url"`
	Method    string            `json:"method"`
	ExpiresAt string            `json:"expires_at,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}
