package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/platform/httpx"
	"github.com/tastyhub/api/internal/services"
)

const (
	maxFeedbackBodySize     = 32 * 1024
	feedbackRateLimit       = 5
	feedbackRateWindow      = time.Minute
	defaultFeedbackPageSize = 50
	maxFeedbackPageSize     = 100
)

// FeedbackHandlers accepts public feedback submissions and exposes the staff
// listing. Submissions are rate limited per client address.
type FeedbackHandlers struct {
	feedback services.FeedbackService
	limiter  rateLimiter
}

// NewFeedbackHandlers constructs the feedback endpoints.
func NewFeedbackHandlers(feedback services.FeedbackService) *FeedbackHandlers {
	return &FeedbackHandlers{
		feedback: feedback,
		limiter:  newFixedWindowLimiter(feedbackRateLimit, feedbackRateWindow, time.Now),
	}
}

// Routes wires the public /feedback endpoints onto the provided router.
func (h *FeedbackHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.submit)
}

// AdminRoutes wires the staff feedback listing. Callers mount this inside an
// authenticated admin group.
func (h *FeedbackHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/feedback", h.list)
}

type submitFeedbackRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func (h *FeedbackHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.feedback == nil {
		httpx.WriteError(ctx, w, httpx.NewError("feedback_service_unavailable", "feedback service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(r.RemoteAddr) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many submissions; try again later", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxFeedbackBodySize)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req submitFeedbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	entry, err := h.feedback.Submit(ctx, req.Name, req.Email, req.Message)
	if err != nil {
		writeFeedbackError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, feedbackResponse{Feedback: buildFeedbackPayload(entry)})
}

func (h *FeedbackHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.feedback == nil {
		httpx.WriteError(ctx, w, httpx.NewError("feedback_service_unavailable", "feedback service is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	pager, err := parsePageParams(query.Get("page_size"), query.Get("page_token"), defaultFeedbackPageSize, maxFeedbackPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.feedback.List(ctx, pager)
	if err != nil {
		writeFeedbackError(ctx, w, err)
		return
	}

	payload := feedbackListResponse{
		Feedback:      make([]feedbackPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, entry := range page.Items {
		payload.Feedback = append(payload.Feedback, buildFeedbackPayload(entry))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func writeFeedbackError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrFeedbackInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrFeedbackUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("feedback_service_unavailable", "feedback service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("feedback_error", "failed to record feedback", http.StatusInternalServerError))
	}
}

type feedbackResponse struct {
	Feedback feedbackPayload `json:"feedback"`
}

type feedbackListResponse struct {
	Feedback      []feedbackPayload `json:"feedback"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type feedbackPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at,omitempty"`
}

func buildFeedbackPayload(entry domain.Feedback) feedbackPayload {
	return feedbackPayload{
		ID:        entry.ID,
		Name:      entry.Name,
		Email:     entry.Email,
		Message:   entry.Message,
		CreatedAt: formatTime(entry.CreatedAt),
	}
}
