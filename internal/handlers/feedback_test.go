package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/services"
)

func TestFeedbackSubmit(t *testing.T) {
	service := &stubFeedbackService{
		submitFunc: func(ctx context.Context, name, email, message string) (domain.Feedback, error) {
			if name != "Ana" || email != "ana@example.com" {
				t.Fatalf("unexpected submission %q %q", name, email)
			}
			return domain.Feedback{ID: "fb-1", Name: name, Email: email, Message: message}, nil
		},
	}

	handler := NewFeedbackHandlers(service)
	router := chi.NewRouter()
	router.Route("/feedback", handler.Routes)

	body := strings.NewReader(`{"name":"Ana","email":"ana@example.com","message":"Great ribs"}`)
	req := httptest.NewRequest(http.MethodPost, "/feedback", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp feedbackResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Feedback.ID != "fb-1" {
		t.Fatalf("expected feedback fb-1, got %q", resp.Feedback.ID)
	}
}

func TestFeedbackSubmitInvalidInput(t *testing.T) {
	service := &stubFeedbackService{
		submitFunc: func(ctx context.Context, name, email, message string) (domain.Feedback, error) {
			return domain.Feedback{}, services.ErrFeedbackInvalidInput
		},
	}

	handler := NewFeedbackHandlers(service)
	router := chi.NewRouter()
	router.Route("/feedback", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/feedback", strings.NewReader(`{"message":""}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestFeedbackSubmitRateLimited(t *testing.T) {
	service := &stubFeedbackService{
		submitFunc: func(ctx context.Context, name, email, message string) (domain.Feedback, error) {
			return domain.Feedback{ID: "fb-1"}, nil
		},
	}

	handler := NewFeedbackHandlers(service)
	router := chi.NewRouter()
	router.Route("/feedback", handler.Routes)

	var last *httptest.ResponseRecorder
	for i := 0; i < feedbackRateLimit+1; i++ {
		body := strings.NewReader(fmt.Sprintf(`{"name":"Ana","message":"attempt %d"}`, i))
		req := httptest.NewRequest(http.MethodPost, "/feedback", body)
		last = httptest.NewRecorder()
		router.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", last.Code)
	}
	if !strings.Contains(last.Body.String(), "rate_limited") {
		t.Fatalf("expected rate_limited code, got %s", last.Body.String())
	}
}

func TestFeedbackAdminList(t *testing.T) {
	service := &stubFeedbackService{
		listFunc: func(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Feedback], error) {
			return domain.CursorPage[domain.Feedback]{
				Items: []domain.Feedback{
					{ID: "fb-2", Name: "Ben", Message: "Slow delivery"},
					{ID: "fb-1", Name: "Ana", Message: "Great ribs"},
				},
				NextPageToken: "tok-9",
			}, nil
		},
	}

	handler := NewFeedbackHandlers(service)
	router := chi.NewRouter()
	router.Route("/admin", handler.AdminRoutes)

	req := httptest.NewRequest(http.MethodGet, "/admin/feedback", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp feedbackListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Feedback) != 2 || resp.NextPageToken != "tok-9" {
		t.Fatalf("unexpected listing: %+v", resp)
	}
}

func TestFeedbackServiceUnavailable(t *testing.T) {
	handler := NewFeedbackHandlers(nil)
	router := chi.NewRouter()
	router.Route("/feedback", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/feedback", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
