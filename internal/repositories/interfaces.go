package repositories

import (
	"context"
	"time"

	domain "github.com/tastyhub/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Categories() CategoryRepository
	Dishes() DishRepository
	Portions() PortionRepository
	Bags() BagRepository
	Orders() OrderRepository
	Profiles() ProfileRepository
	Feedback() FeedbackRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CategoryRepository persists menu categories.
type CategoryRepository interface {
	Insert(ctx context.Context, category domain.Category) error
	Update(ctx context.Context, category domain.Category) error
	Delete(ctx context.Context, categoryID string) error
	FindByID(ctx context.Context, categoryID string) (domain.Category, error)
	FindBySlug(ctx context.Context, slug string) (domain.Category, error)
	List(ctx context.Context, filter CategoryListFilter) ([]domain.Category, error)
}

// CategoryListFilter narrows category listings.
type CategoryListFilter struct {
	MenuType *domain.MenuType
}

// DishRepository persists dishes and their portion subcollections.
type DishRepository interface {
	Insert(ctx context.Context, dish domain.Dish) error
	Update(ctx context.Context, dish domain.Dish) error
	Delete(ctx context.Context, dishID string) error
	FindByID(ctx context.Context, dishID string) (domain.Dish, error)
	FindBySlug(ctx context.Context, categoryID, slug string) (domain.Dish, error)
	List(ctx context.Context, filter DishListFilter) (domain.CursorPage[domain.Dish], error)
}

// DishListFilter narrows dish listings. Menu type filtering happens at the
// service layer by resolving categories first, then passing their ids here.
type DishListFilter struct {
	CategoryIDs   []string
	AvailableOnly bool
	SpecialsOnly  bool
	Pagination    domain.Pagination
}

// PortionRepository persists sellable dish portions.
type PortionRepository interface {
	Insert(ctx context.Context, portion domain.DishPortion) error
	Update(ctx context.Context, portion domain.DishPortion) error
	Delete(ctx context.Context, portionID string) error
	FindByID(ctx context.Context, portionID string) (domain.DishPortion, error)
	FindByIDs(ctx context.Context, portionIDs []string) (map[string]domain.DishPortion, error)
	ListByDish(ctx context.Context, dishID string) ([]domain.DishPortion, error)
}

// BagRepository owns bag persistence keyed by the session or user identifier.
type BagRepository interface {
	Get(ctx context.Context, ownerID string) (domain.Bag, error)
	Save(ctx context.Context, bag domain.Bag) (domain.Bag, error)
	Delete(ctx context.Context, ownerID string) error
}

// OrderRepository persists order headers plus line items.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	FindByPaymentRef(ctx context.Context, paymentRef string) (domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) (domain.Order, error)
	MarkEmailSent(ctx context.Context, orderID string, sentAt time.Time) error
	Delete(ctx context.Context, orderID string) error
	ListByProfile(ctx context.Context, profileID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	CountByStatus(ctx context.Context) (map[domain.OrderStatus]int64, error)
}

// OrderListFilter narrows the staff order queue.
type OrderListFilter struct {
	Status       *domain.OrderStatus
	DeliveryType *domain.DeliveryType
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Pagination   domain.Pagination
}

// ProfileRepository persists customer profiles keyed by auth UID.
type ProfileRepository interface {
	Upsert(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error)
	FindByID(ctx context.Context, profileID string) (domain.UserProfile, error)
	FindByUsername(ctx context.Context, username string) (domain.UserProfile, error)
	Delete(ctx context.Context, profileID string) error
}

// FeedbackRepository persists feedback submissions.
type FeedbackRepository interface {
	Insert(ctx context.Context, feedback domain.Feedback) error
	List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Feedback], error)
}

// CounterRepository provides transaction-safe sequence numbers. The catalog
// uses it to assign the numeric portion ids that bag payloads reference.
type CounterRepository interface {
	Next(ctx context.Context, counterID string) (int64, error)
}

// HealthRepository aggregates dependency probes for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
