package services

import (
	"context"
	"time"

	domain "github.com/tastyhub/api/internal/domain"
)

// BagService owns the shopping bag: normalisation of raw session payloads and
// the add/adjust/remove operations customers drive from the menu.
type BagService interface {
	// Normalize coerces a raw bag payload into canonical portion id to
	// quantity form, reporting the keys it had to drop.
	Normalize(ctx context.Context, raw map[string]any) (map[string]int, []string)
	Get(ctx context.Context, ownerID string) (domain.Bag, error)
	AddItem(ctx context.Context, ownerID, portionID string, quantity int) (domain.Bag, error)
	AdjustItem(ctx context.Context, ownerID, portionID string, quantity int) (domain.Bag, error)
	RemoveItem(ctx context.Context, ownerID, portionID string) (domain.Bag, error)
	Clear(ctx context.Context, ownerID string) error
}

// PricingEngine turns a canonical bag into a priced quote with exact decimal
// totals and the delivery fee policy applied.
type PricingEngine interface {
	// Quote prices the bag. Portions missing from the catalog are excluded
	// from the totals and reported through RemovedPortionIDs; the caller is
	// responsible for persisting the corrected bag.
	Quote(ctx context.Context, items map[string]int, deliveryType domain.DeliveryType) (domain.BagQuote, error)
}

// CreateOrderCommand carries everything needed to assemble an order.
type CreateOrderCommand struct {
	BagItems     map[string]int
	RawBag       string
	ProfileID    string
	Address      domain.Address
	DeliveryType domain.DeliveryType
	PickupTime   string
	PaymentRef   string
	SaveInfo     bool
}

// OrderService assembles orders from bags and drives the status lifecycle.
type OrderService interface {
	CreateFromBag(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	GetByPaymentRef(ctx context.Context, paymentRef string) (domain.Order, error)
	ListByProfile(ctx context.Context, profileID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error)
	ListQueue(ctx context.Context, query OrderQueueQuery) (domain.CursorPage[domain.Order], error)
	CountByStatus(ctx context.Context) (map[domain.OrderStatus]int64, error)
	// UpdateStatus applies a lifecycle transition. Moving to cancelled also
	// deletes the order aggregate in the same transaction.
	UpdateStatus(ctx context.Context, orderNumber string, target domain.OrderStatus, actorID string) (domain.Order, error)
	MarkEmailSent(ctx context.Context, orderID string) error
}

// OrderQueueQuery filters the staff order queue.
type OrderQueueQuery struct {
	Status       *domain.OrderStatus
	DeliveryType *domain.DeliveryType
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Pagination   domain.Pagination
}

// MenuQuery filters public dish listings.
type MenuQuery struct {
	CategorySlug  string
	MenuType      string
	SpecialsOnly  bool
	AvailableOnly bool
	Pagination    domain.Pagination
}

// DishInput carries admin-supplied dish fields.
type DishInput struct {
	CategoryID     string
	Name           string
	Description    string
	Ingredients    string
	Dietary        domain.DietaryInfo
	PrepTimeMins   int
	Calories       int
	BasePrice      domain.Money
	ImagePath      string
	Available      bool
	IsSpecial      bool
	AvailableFrom  *time.Time
	AvailableUntil *time.Time
}

// PortionInput carries admin-supplied portion fields.
type PortionInput struct {
	DishID      string
	Size        domain.PortionSize
	WeightGrams int
	Price       domain.Money
}

// CategoryInput carries admin-supplied category fields.
type CategoryInput struct {
	Name        string
	MenuType    domain.MenuType
	Description string
}

// DishWithPortions pairs a dish with its sellable portions for detail views.
type DishWithPortions struct {
	Dish     domain.Dish
	Portions []domain.DishPortion
}

// PortionDetail joins a portion with its parent dish for pricing display.
type PortionDetail struct {
	Portion domain.DishPortion
	Dish    domain.Dish
}

// CatalogService exposes menu browsing plus the staff catalog CRUD.
type CatalogService interface {
	ListCategories(ctx context.Context, menuType string) ([]domain.Category, error)
	ListDishes(ctx context.Context, query MenuQuery) (domain.CursorPage[domain.Dish], error)
	GetDish(ctx context.Context, categorySlug, dishSlug string) (DishWithPortions, error)
	// PortionDetails resolves portion snapshots joined with their dishes for
	// the pricing and order paths.
	PortionDetails(ctx context.Context, portionIDs []string) (map[string]PortionDetail, error)

	CreateCategory(ctx context.Context, input CategoryInput) (domain.Category, error)
	UpdateCategory(ctx context.Context, categoryID string, input CategoryInput) (domain.Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error
	CreateDish(ctx context.Context, input DishInput) (domain.Dish, error)
	UpdateDish(ctx context.Context, dishID string, input DishInput) (domain.Dish, error)
	DeleteDish(ctx context.Context, dishID string) error
	CreatePortion(ctx context.Context, input PortionInput) (domain.DishPortion, error)
	UpdatePortion(ctx context.Context, portionID string, input PortionInput) (domain.DishPortion, error)
	DeletePortion(ctx context.Context, portionID string) error
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	Username       string
	Email          string
	PhoneNumber    string
	StreetAddress1 string
	StreetAddress2 string
	TownOrCity     string
	County         string
	Postcode       string
	Locality       string
}

// ProfileService manages customer profiles and their saved delivery details.
type ProfileService interface {
	Get(ctx context.Context, profileID string) (domain.UserProfile, error)
	GetByUsername(ctx context.Context, username string) (domain.UserProfile, error)
	Upsert(ctx context.Context, profileID string, update ProfileUpdate) (domain.UserProfile, error)
	Delete(ctx context.Context, profileID string) error
}

// FeedbackService accepts and lists feedback form submissions.
type FeedbackService interface {
	Submit(ctx context.Context, name, email, message string) (domain.Feedback, error)
	List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Feedback], error)
}

// PaymentNotification is the provider-neutral shape of a verified payment
// webhook event.
type PaymentNotification struct {
	EventID       string
	EventType     string
	PaymentRef    string
	AmountCents   int64
	Metadata      map[string]string
	CustomerName  string
	CustomerEmail string
	Address       domain.Address
}

// ReconcileOutcome describes how a payment notification was resolved.
type ReconcileOutcome string

const (
	// ReconcileOutcomeIgnored means the event type is not handled.
	ReconcileOutcomeIgnored ReconcileOutcome = "ignored"
	// ReconcileOutcomeAlreadyProcessed means the order already existed.
	ReconcileOutcomeAlreadyProcessed ReconcileOutcome = "already_processed"
	// ReconcileOutcomeOrderCreated means the reconciler assembled the order
	// the checkout flow failed to record.
	ReconcileOutcomeOrderCreated ReconcileOutcome = "order_created"
)

// ReconcileResult reports the reconciliation outcome and the order involved.
type ReconcileResult struct {
	Outcome     ReconcileOutcome
	OrderNumber string
}

// WebhookReconciler is the safety net behind checkout: it guarantees every
// successful payment ends up with exactly one recorded order.
type WebhookReconciler interface {
	HandlePaymentEvent(ctx context.Context, notice PaymentNotification) (ReconcileResult, error)
}

// OrderEventPublisher publishes order lifecycle events for live tracking
// consumers and the staff dashboard.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order lifecycle events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	PreviousStatus string
	CurrentStatus  string
	Progress       int
	ActorID        string
	OccurredAt     time.Time
}

// EmailDispatcher enqueues transactional email jobs.
type EmailDispatcher interface {
	DispatchOrderConfirmation(ctx context.Context, order domain.Order) error
}
