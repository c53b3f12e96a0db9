package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/repositories"
)

var (
	// ErrFeedbackInvalidInput marks rejected feedback submissions.
	ErrFeedbackInvalidInput = errors.New("feedback: invalid input")
	// ErrFeedbackUnavailable wraps transient persistence failures.
	ErrFeedbackUnavailable = errors.New("feedback: temporarily unavailable")
)

const maxFeedbackMessageLength = 4000

// FeedbackServiceDeps bundles collaborators required to construct the feedback service.
type FeedbackServiceDeps struct {
	Feedback    repositories.FeedbackRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type feedbackService struct {
	feedback  repositories.FeedbackRepository
	sanitizer *bluemonday.Policy
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewFeedbackService wires dependencies into a concrete FeedbackService implementation.
func NewFeedbackService(deps FeedbackServiceDeps) (FeedbackService, error) {
	if deps.Feedback == nil {
		return nil, errors.New("feedback service: feedback repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &feedbackService{
		feedback:  deps.Feedback,
		sanitizer: bluemonday.StrictPolicy(),
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// Submit stores a feedback message. Markup is stripped before persistence.
func (s *feedbackService) Submit(ctx context.Context, name, email, message string) (domain.Feedback, error) {
	name = strings.TrimSpace(s.sanitizer.Sanitize(name))
	email = strings.TrimSpace(s.sanitizer.Sanitize(email))
	message = strings.TrimSpace(s.sanitizer.Sanitize(message))

	if name == "" {
		return domain.Feedback{}, fmt.Errorf("%w: name is required", ErrFeedbackInvalidInput)
	}
	if email == "" || !strings.Contains(email, "@") {
		return domain.Feedback{}, fmt.Errorf("%w: a valid email is required", ErrFeedbackInvalidInput)
	}
	if message == "" {
		return domain.Feedback{}, fmt.Errorf("%w: message is required", ErrFeedbackInvalidInput)
	}
	if len(message) > maxFeedbackMessageLength {
		return domain.Feedback{}, fmt.Errorf("%w: message exceeds %d characters", ErrFeedbackInvalidInput, maxFeedbackMessageLength)
	}

	entry := domain.Feedback{
		ID:        s.newID(),
		Name:      name,
		Email:     email,
		Message:   message,
		CreatedAt: s.clock(),
	}
	if err := s.feedback.Insert(ctx, entry); err != nil {
		return domain.Feedback{}, fmt.Errorf("%w: %v", ErrFeedbackUnavailable, err)
	}
	s.logger(ctx, "feedback.submitted", map[string]any{"feedback_id": entry.ID})
	return entry, nil
}

// List pages feedback entries newest first for the staff dashboard.
func (s *feedbackService) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Feedback], error) {
	page, err := s.feedback.List(ctx, pager)
	if err != nil {
		return domain.CursorPage[domain.Feedback]{}, fmt.Errorf("%w: %v", ErrFeedbackUnavailable, err)
	}
	return page, nil
}
