package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/tastyhub/api/internal/domain"
	pfirestore "github.com/tastyhub/api/internal/platform/firestore"
	"github.com/tastyhub/api/internal/platform/pagination"
	"github.com/tastyhub/api/internal/repositories"
)

const feedbackCollection = "feedback"

// FeedbackRepository persists feedback submissions.
type FeedbackRepository struct {
	base     *pfirestore.BaseRepository[feedbackDocument]
	provider *pfirestore.Provider
}

// NewFeedbackRepository constructs a Firestore-backed feedback repository.
func NewFeedbackRepository(provider *pfirestore.Provider) (*FeedbackRepository, error) {
	if provider == nil {
		return nil, errors.New("feedback repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[feedbackDocument](provider, feedbackCollection)
	return &FeedbackRepository{base: base, provider: provider}, nil
}

var _ repositories.FeedbackRepository = (*FeedbackRepository)(nil)

// Insert creates the feedback document.
func (r *FeedbackRepository) Insert(ctx context.Context, feedback domain.Feedback) error {
	if err := r.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(feedback.ID) == "" {
		return errors.New("feedback id is required")
	}
	ref, err := r.base.DocumentRef(ctx, feedback.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, fromDomainFeedback(feedback)); err != nil {
		return pfirestore.WrapError("feedback.insert", err)
	}
	return nil
}

// List pages through feedback submissions, newest first.
func (r *FeedbackRepository) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Feedback], error) {
	if err := r.ready(); err != nil {
		return domain.CursorPage[domain.Feedback]{}, err
	}

	pageSize := pagination.ClampPageSize(pager.PageSize)
	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Feedback]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc)
		if len(cursor.StartAfter) > 0 {
			q = q.StartAfter(cursor.StartAfter...)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Feedback]{}, err
	}

	page := domain.CursorPage[domain.Feedback]{Items: make([]domain.Feedback, 0, len(docs))}
	for i, doc := range docs {
		if i == pageSize {
			token, err := pagination.EncodeToken(pagination.Cursor{
				StartAfter: []any{docs[i-1].Data.CreatedAt, docs[i-1].ID},
			})
			if err != nil {
				return domain.CursorPage[domain.Feedback]{}, err
			}
			page.NextPageToken = token
			break
		}
		page.Items = append(page.Items, toDomainFeedback(doc.ID, doc.Data))
	}
	return page, nil
}

func (r *FeedbackRepository) ready() error {
	if r == nil || r.base == nil {
		return errors.New("feedback repository not initialised")
	}
	return nil
}

type feedbackDocument struct {
	Name      string    `firestore:"name"`
	Email     string    `firestore:"email"`
	Message   string    `firestore:"message"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func fromDomainFeedback(feedback domain.Feedback) feedbackDocument {
	return feedbackDocument{
		Name:      strings.TrimSpace(feedback.Name),
		Email:     strings.TrimSpace(feedback.Email),
		Message:   feedback.Message,
		CreatedAt: feedback.CreatedAt,
	}
}

func toDomainFeedback(id string, doc feedbackDocument) domain.Feedback {
	return domain.Feedback{
		ID:        id,
		Name:      doc.Name,
		Email:     doc.Email,
		Message:   doc.Message,
		CreatedAt: doc.CreatedAt,
	}
}
