package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput marks rejected order commands.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrEmptyBag is returned when checkout is attempted with nothing priceable in the bag.
	ErrEmptyBag = errors.New("order: bag is empty")
	// ErrOrderNotFound is returned when the requested order does not exist.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState is returned for disallowed status transitions.
	ErrOrderInvalidState = errors.New("order: invalid state transition")
	// ErrOrderConflict is returned when a concurrent mutation wins.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderUnavailable wraps transient persistence failures.
	ErrOrderUnavailable = errors.New("order: temporarily unavailable")
)

// orderStateTransitions defines the allowed lifecycle edges. Cancellation is
// handled separately: it is reachable from every non-terminal state.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:        {domain.OrderStatusPreparing},
	domain.OrderStatusPreparing:      {domain.OrderStatusOutForDelivery, domain.OrderStatusReadyForPickup},
	domain.OrderStatusOutForDelivery: {domain.OrderStatusCompleted},
	domain.OrderStatusReadyForPickup: {domain.OrderStatusCompleted},
	domain.OrderStatusCompleted:      {},
	domain.OrderStatusCancelled:      {},
}

const (
	// OrderEventCreated is published when checkout assembles a new order.
	OrderEventCreated = "order.created"
	// OrderEventStatusChanged is published on every lifecycle transition.
	OrderEventStatusChanged = "order.status_changed"
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Bags        repositories.BagRepository
	Profiles    repositories.ProfileRepository
	Pricing     PricingEngine
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Email       EmailDispatcher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	bags       repositories.BagRepository
	profiles   repositories.ProfileRepository
	pricing    PricingEngine
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	events     OrderEventPublisher
	email      EmailDispatcher
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("order service: pricing engine is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
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

	return &orderService{
		orders:     deps.Orders,
		bags:       deps.Bags,
		profiles:   deps.Profiles,
		pricing:    deps.Pricing,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		email:  deps.Email,
		logger: logger,
	}, nil
}

// CreateFromBag assembles an order inside a single transaction: an idempotency
// lookup on the payment reference, the order header, every line item, and the
// raw bag snapshot all commit together or not at all. A repeated payment
// reference returns the already created order instead of a duplicate.
func (s *orderService) CreateFromBag(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error) {
	paymentRef := strings.TrimSpace(cmd.PaymentRef)
	if paymentRef == "" {
		return domain.Order{}, fmt.Errorf("%w: payment reference is required", ErrOrderInvalidInput)
	}
	if len(cmd.BagItems) == 0 {
		return domain.Order{}, ErrEmptyBag
	}

	quote, err := s.pricing.Quote(ctx, cmd.BagItems, cmd.DeliveryType)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}
	if len(quote.Lines) == 0 {
		return domain.Order{}, ErrEmptyBag
	}

	now := s.clock()
	order := s.assembleOrder(cmd, quote, now)

	var result domain.Order
	txErr := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.orders.FindByPaymentRef(ctx, paymentRef)
		if err == nil {
			result = existing
			return nil
		}
		if !isNotFound(err) {
			return err
		}
		if err := s.orders.Insert(ctx, order); err != nil {
			return err
		}
		if s.bags != nil && order.ProfileID != "" {
			if err := s.bags.Delete(ctx, order.ProfileID); err != nil && !isNotFound(err) {
				return err
			}
		}
		result = order
		return nil
	})
	if txErr != nil {
		if isConflict(txErr) {
			// Lost the idempotency race: the winner has committed, return it.
			winner, err := s.orders.FindByPaymentRef(ctx, paymentRef)
			if err == nil {
				return winner, nil
			}
			return domain.Order{}, fmt.Errorf("%w: %v", ErrOrderConflict, txErr)
		}
		return domain.Order{}, s.translateOrderError(txErr)
	}

	if result.ID == order.ID {
		s.logger(ctx, "order.created", map[string]any{
			"order_id":     order.ID,
			"order_number": order.Number,
			"grand_total":  order.GrandTotal.String(),
			"line_items":   len(order.LineItems),
		})
		s.publishEvent(ctx, OrderEvent{
			Type:          OrderEventCreated,
			OrderID:       order.ID,
			OrderNumber:   order.Number,
			CurrentStatus: string(order.Status),
			Progress:      order.Status.ProgressPercent(),
			OccurredAt:    now,
		})
		s.dispatchConfirmation(ctx, result)
		if cmd.SaveInfo {
			s.saveDeliveryDefaults(ctx, result)
		}
	}
	return result, nil
}

// saveDeliveryDefaults copies the order address onto the customer profile so
// the next checkout pre-fills. Failures are logged and never fail the order.
func (s *orderService) saveDeliveryDefaults(ctx context.Context, order domain.Order) {
	if s.profiles == nil || order.ProfileID == "" {
		return
	}
	profile, err := s.profiles.FindByID(ctx, order.ProfileID)
	if err != nil {
		if !isNotFound(err) {
			s.logger(ctx, "order.profile_defaults_failed", map[string]any{
				"profile_id": order.ProfileID,
				"error":      err.Error(),
			})
			return
		}
		profile = domain.UserProfile{ID: order.ProfileID, Email: order.Address.Email}
	}
	profile.DefaultPhoneNumber = order.Address.PhoneNumber
	profile.DefaultStreetAddress1 = order.Address.StreetAddress1
	profile.DefaultStreetAddress2 = order.Address.StreetAddress2
	profile.DefaultTownOrCity = order.Address.TownOrCity
	profile.DefaultCounty = order.Address.County
	profile.DefaultPostcode = order.Address.Postcode
	profile.DefaultLocality = order.Address.Locality
	if _, err := s.profiles.Upsert(ctx, profile); err != nil {
		s.logger(ctx, "order.profile_defaults_failed", map[string]any{
			"profile_id": order.ProfileID,
			"error":      err.Error(),
		})
	}
}

func (s *orderService) assembleOrder(cmd CreateOrderCommand, quote domain.BagQuote, now time.Time) domain.Order {
	order := domain.Order{
		ID:             s.newID(),
		Number:         s.generateOrderNumber(),
		ProfileID:      strings.TrimSpace(cmd.ProfileID),
		Status:         domain.OrderStatusPending,
		DeliveryType:   quote.DeliveryType,
		PickupTime:     strings.TrimSpace(cmd.PickupTime),
		Address:        truncateAddress(cmd.Address),
		OrderTotal:     quote.Subtotal,
		DeliveryFee:    quote.DeliveryFee,
		GrandTotal:     quote.GrandTotal,
		PaymentRef:     strings.TrimSpace(cmd.PaymentRef),
		OriginalBag:    cmd.RawBag,
		PublicTracking: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, line := range quote.Lines {
		order.LineItems = append(order.LineItems, domain.OrderLineItem{
			ID:        line.PortionID,
			OrderID:   order.ID,
			PortionID: line.PortionID,
			DishName:  line.DishName,
			Size:      line.Size,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
		})
	}
	return order
}

// generateOrderNumber returns an opaque customer-facing reference. The random
// tail of a fresh ULID keeps it collision-resistant without leaking order
// volume the way a sequence would.
func (s *orderService) generateOrderNumber() string {
	id := s.newID()
	if len(id) > 12 {
		id = id[len(id)-12:]
	}
	return "TH-" + strings.ToUpper(id)
}

// GetByNumber loads an order by its public number.
func (s *orderService) GetByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return domain.Order{}, fmt.Errorf("%w: order number is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByNumber(ctx, orderNumber)
	if err != nil {
		return domain.Order{}, s.translateOrderError(err)
	}
	return order, nil
}

// GetByPaymentRef loads an order by its payment reference.
func (s *orderService) GetByPaymentRef(ctx context.Context, paymentRef string) (domain.Order, error) {
	paymentRef = strings.TrimSpace(paymentRef)
	if paymentRef == "" {
		return domain.Order{}, fmt.Errorf("%w: payment reference is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByPaymentRef(ctx, paymentRef)
	if err != nil {
		return domain.Order{}, s.translateOrderError(err)
	}
	return order, nil
}

// ListByProfile pages a customer's order history.
func (s *orderService) ListByProfile(ctx context.Context, profileID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return domain.CursorPage[domain.Order]{}, fmt.Errorf("%w: profile id is required", ErrOrderInvalidInput)
	}
	page, err := s.orders.ListByProfile(ctx, profileID, pager)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, s.translateOrderError(err)
	}
	return page, nil
}

// ListQueue pages the staff order queue.
func (s *orderService) ListQueue(ctx context.Context, query OrderQueueQuery) (domain.CursorPage[domain.Order], error) {
	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		Status:       query.Status,
		DeliveryType: query.DeliveryType,
		CreatedFrom:  query.CreatedFrom,
		CreatedTo:    query.CreatedTo,
		Pagination:   query.Pagination,
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, s.translateOrderError(err)
	}
	return page, nil
}

// CountByStatus aggregates queue counts for the staff dashboard.
func (s *orderService) CountByStatus(ctx context.Context) (map[domain.OrderStatus]int64, error) {
	counts, err := s.orders.CountByStatus(ctx)
	if err != nil {
		return nil, s.translateOrderError(err)
	}
	return counts, nil
}

// UpdateStatus applies a lifecycle transition. Cancelling deletes the order
// header and its line items in the same transaction; that removal is an
// explicit part of this operation, not a side effect of the status write.
func (s *orderService) UpdateStatus(ctx context.Context, orderNumber string, target domain.OrderStatus, actorID string) (domain.Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return domain.Order{}, fmt.Errorf("%w: order number is required", ErrOrderInvalidInput)
	}
	if _, ok := domain.ParseOrderStatus(string(target)); !ok {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, target)
	}

	now := s.clock()
	var updated domain.Order
	var previous domain.OrderStatus

	txErr := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByNumber(ctx, orderNumber)
		if err != nil {
			return err
		}
		previous = order.Status

		if err := validateTransition(order.Status, target); err != nil {
			return err
		}

		if target == domain.OrderStatusCancelled {
			if err := s.orders.Delete(ctx, order.ID); err != nil {
				return err
			}
			order.Status = domain.OrderStatusCancelled
			order.UpdatedAt = now
			updated = order
			return nil
		}

		if _, err := s.orders.UpdateStatus(ctx, order.ID, target, now); err != nil {
			return err
		}
		order.Status = target
		order.UpdatedAt = now
		updated = order
		return nil
	})
	if txErr != nil {
		return domain.Order{}, s.translateOrderError(txErr)
	}

	s.logger(ctx, "order.status_changed", map[string]any{
		"order_number": updated.Number,
		"from":         string(previous),
		"to":           string(updated.Status),
		"actor_id":     actorID,
	})
	s.publishEvent(ctx, OrderEvent{
		Type:           OrderEventStatusChanged,
		OrderID:        updated.ID,
		OrderNumber:    updated.Number,
		PreviousStatus: string(previous),
		CurrentStatus:  string(updated.Status),
		Progress:       updated.Status.ProgressPercent(),
		ActorID:        actorID,
		OccurredAt:     now,
	})
	return updated, nil
}

// MarkEmailSent records confirmation email dispatch on the order.
func (s *orderService) MarkEmailSent(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if err := s.orders.MarkEmailSent(ctx, orderID, s.clock()); err != nil {
		return s.translateOrderError(err)
	}
	return nil
}

func validateTransition(current, target domain.OrderStatus) error {
	if current == target {
		return fmt.Errorf("%w: order is already %s", ErrOrderInvalidState, current)
	}
	if target == domain.OrderStatusCancelled {
		if current.IsTerminal() {
			return fmt.Errorf("%w: cannot cancel a %s order", ErrOrderInvalidState, current)
		}
		return nil
	}
	for _, allowed := range orderStateTransitions[current] {
		if allowed == target {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrOrderInvalidState, current, target)
}

// dispatchConfirmation enqueues the confirmation email and records dispatch.
// Failures are logged and never fail the order.
func (s *orderService) dispatchConfirmation(ctx context.Context, order domain.Order) {
	if s.email == nil {
		return
	}
	if err := s.email.DispatchOrderConfirmation(ctx, order); err != nil {
		s.logger(ctx, "order.email_dispatch_failed", map[string]any{
			"order_number": order.Number,
			"error":        err.Error(),
		})
		return
	}
	if err := s.orders.MarkEmailSent(ctx, order.ID, s.clock()); err != nil {
		s.logger(ctx, "order.email_flag_failed", map[string]any{
			"order_number": order.Number,
			"error":        err.Error(),
		})
	}
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event_publish_failed", map[string]any{
			"order_number": event.OrderNumber,
			"event_type":   event.Type,
			"error":        err.Error(),
		})
	}
}

func (s *orderService) translateOrderError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrOrderInvalidState) || errors.Is(err, ErrOrderInvalidInput) ||
		errors.Is(err, ErrEmptyBag) || errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrOrderConflict) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		default:
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func isConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// truncateAddress enforces the storage field limits on provider-supplied data.
func truncateAddress(addr domain.Address) domain.Address {
	return domain.Address{
		FullName:       clampString(addr.FullName, 50),
		Email:          clampString(addr.Email, 254),
		PhoneNumber:    clampString(addr.PhoneNumber, 20),
		StreetAddress1: clampString(addr.StreetAddress1, 80),
		StreetAddress2: clampString(addr.StreetAddress2, 80),
		TownOrCity:     clampString(addr.TownOrCity, 40),
		County:         clampString(addr.County, 80),
		Postcode:       clampString(addr.Postcode, 20),
		Locality:       clampString(addr.Locality, 40),
	}
}

func clampString(v string, limit int) string {
	v = strings.TrimSpace(v)
	if len(v) > limit {
		return v[:limit]
	}
	return v
}

// noopUnitOfWork runs the function without transactional guarantees. Used in
// tests and for wiring paths backed by stub repositories.
type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
