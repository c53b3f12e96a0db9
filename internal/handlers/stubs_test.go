package handlers

import (
	"context"
	"errors"

	domain "github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/payments"
	"github.com/tastyhub/api/internal/services"
)

var errStubUnexpectedCall = errors.New("unexpected call")

type stubBagService struct {
	normalizeFunc func(ctx context.Context, raw map[string]any) (map[string]int, []string)
	getFunc       func(ctx context.Context, ownerID string) (domain.Bag, error)
	addFunc       func(ctx context.Context, ownerID, portionID string, quantity int) (domain.Bag, error)
	adjustFunc    func(ctx context.Context, ownerID, portionID string, quantity int) (domain.Bag, error)
	removeFunc    func(ctx context.Context, ownerID, portionID string) (domain.Bag, error)
	clearFunc     func(ctx context.Context, ownerID string) error
}

var _ services.BagService = (*stubBagService)(nil)

func (s *stubBagService) Normalize(ctx context.Context, raw map[string]any) (map[string]int, []string) {
	if s.normalizeFunc == nil {
		return map[string]int{}, nil
	}
	return s.normalizeFunc(ctx, raw)
}

func (s *stubBagService) Get(ctx context.Context, ownerID string) (domain.Bag, error) {
	if s.getFunc == nil {
		return domain.Bag{}, errStubUnexpectedCall
	}
	return s.getFunc(ctx, ownerID)
}

func (s *stubBagService) AddItem(ctx context.Context, ownerID, portionID string, quantity int) (domain.Bag, error) {
	if s.addFunc == nil {
		return domain.Bag{}, errStubUnexpectedCall
	}
	return s.addFunc(ctx, ownerID, portionID, quantity)
}

func (s *stubBagService) AdjustItem(ctx context.Context, ownerID, portionID string, quantity int) (domain.Bag, error) {
	if s.adjustFunc == nil {
		return domain.Bag{}, errStubUnexpectedCall
	}
	return s.adjustFunc(ctx, ownerID, portionID, quantity)
}

func (s *stubBagService) RemoveItem(ctx context.Context, ownerID, portionID string) (domain.Bag, error) {
	if s.removeFunc == nil {
		return domain.Bag{}, errStubUnexpectedCall
	}
	return s.removeFunc(ctx, ownerID, portionID)
}

func (s *stubBagService) Clear(ctx context.Context, ownerID string) error {
	if s.clearFunc == nil {
		return errStubUnexpectedCall
	}
	return s.clearFunc(ctx, ownerID)
}

type stubPricingEngine struct {
	quoteFunc func(ctx context.Context, items map[string]int, deliveryType domain.DeliveryType) (domain.BagQuote, error)
}

var _ services.PricingEngine = (*stubPricingEngine)(nil)

func (s *stubPricingEngine) Quote(ctx context.Context, items map[string]int, deliveryType domain.DeliveryType) (domain.BagQuote, error) {
	if s.quoteFunc == nil {
		return domain.BagQuote{}, errStubUnexpectedCall
	}
	return s.quoteFunc(ctx, items, deliveryType)
}

type stubOrderService struct {
	createFunc        func(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error)
	getByNumberFunc   func(ctx context.Context, orderNumber string) (domain.Order, error)
	getByPaymentFunc  func(ctx context.Context, paymentRef string) (domain.Order, error)
	listByProfileFunc func(ctx context.Context, profileID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error)
	listQueueFunc     func(ctx context.Context, query services.OrderQueueQuery) (domain.CursorPage[domain.Order], error)
	countFunc         func(ctx context.Context) (map[domain.OrderStatus]int64, error)
	updateStatusFunc  func(ctx context.Context, orderNumber string, target domain.OrderStatus, actorID string) (domain.Order, error)
	markEmailFunc     func(ctx context.Context, orderID string) error
}

var _ services.OrderService = (*stubOrderService)(nil)

func (s *stubOrderService) CreateFromBag(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error) {
	if s.createFunc == nil {
		return domain.Order{}, errStubUnexpectedCall
	}
	return s.createFunc(ctx, cmd)
}

func (s *stubOrderService) GetByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	if s.getByNumberFunc == nil {
		return domain.Order{}, errStubUnexpectedCall
	}
	return s.getByNumberFunc(ctx, orderNumber)
}

func (s *stubOrderService) GetByPaymentRef(ctx context.Context, paymentRef string) (domain.Order, error) {
	if s.getByPaymentFunc == nil {
		return domain.Order{}, errStubUnexpectedCall
	}
	return s.getByPaymentFunc(ctx, paymentRef)
}

func (s *stubOrderService) ListByProfile(ctx context.Context, profileID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
	if s.listByProfileFunc == nil {
		return domain.CursorPage[domain.Order]{}, errStubUnexpectedCall
	}
	return s.listByProfileFunc(ctx, profileID, pager)
}

func (s *stubOrderService) ListQueue(ctx context.Context, query services.OrderQueueQuery) (domain.CursorPage[domain.Order], error) {
	if s.listQueueFunc == nil {
		return domain.CursorPage[domain.Order]{}, errStubUnexpectedCall
	}
	return s.listQueueFunc(ctx, query)
}

func (s *stubOrderService) CountByStatus(ctx context.Context) (map[domain.OrderStatus]int64, error) {
	if s.countFunc == nil {
		return nil, errStubUnexpectedCall
	}
	return s.countFunc(ctx)
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, orderNumber string, target domain.OrderStatus, actorID string) (domain.Order, error) {
	if s.updateStatusFunc == nil {
		return domain.Order{}, errStubUnexpectedCall
	}
	return s.updateStatusFunc(ctx, orderNumber, target, actorID)
}

func (s *stubOrderService) MarkEmailSent(ctx context.Context, orderID string) error {
	if s.markEmailFunc == nil {
		return errStubUnexpectedCall
	}
	return s.markEmailFunc(ctx, orderID)
}

type stubCatalogService struct {
	listCategoriesFunc func(ctx context.Context, menuType string) ([]domain.Category, error)
	listDishesFunc     func(ctx context.Context, query services.MenuQuery) (domain.CursorPage[domain.Dish], error)
	getDishFunc        func(ctx context.Context, categorySlug, dishSlug string) (services.DishWithPortions, error)
	portionDetailsFunc func(ctx context.Context, portionIDs []string) (map[string]services.PortionDetail, error)
	createCategoryFunc func(ctx context.Context, input services.CategoryInput) (domain.Category, error)
	updateCategoryFunc func(ctx context.Context, categoryID string, input services.CategoryInput) (domain.Category, error)
	deleteCategoryFunc func(ctx context.Context, categoryID string) error
	createDishFunc     func(ctx context.Context, input services.DishInput) (domain.Dish, error)
	updateDishFunc     func(ctx context.Context, dishID string, input services.DishInput) (domain.Dish, error)
	deleteDishFunc     func(ctx context.Context, dishID string) error
	createPortionFunc  func(ctx context.Context, input services.PortionInput) (domain.DishPortion, error)
	updatePortionFunc  func(ctx context.Context, portionID string, input services.PortionInput) (domain.DishPortion, error)
	deletePortionFunc  func(ctx context.Context, portionID string) error
}

var _ services.CatalogService = (*stubCatalogService)(nil)

func (s *stubCatalogService) ListCategories(ctx context.Context, menuType string) ([]domain.Category, error) {
	if s.listCategoriesFunc == nil {
		return nil, errStubUnexpectedCall
	}
	return s.listCategoriesFunc(ctx, menuType)
}

func (s *stubCatalogService) ListDishes(ctx context.Context, query services.MenuQuery) (domain.CursorPage[domain.Dish], error) {
	if s.listDishesFunc == nil {
		return domain.CursorPage[domain.Dish]{}, errStubUnexpectedCall
	}
	return s.listDishesFunc(ctx, query)
}

func (s *stubCatalogService) GetDish(ctx context.Context, categorySlug, dishSlug string) (services.DishWithPortions, error) {
	if s.getDishFunc == nil {
		return services.DishWithPortions{}, errStubUnexpectedCall
	}
	return s.getDishFunc(ctx, categorySlug, dishSlug)
}

func (s *stubCatalogService) PortionDetails(ctx context.Context, portionIDs []string) (map[string]services.PortionDetail, error) {
	if s.portionDetailsFunc == nil {
		return nil, errStubUnexpectedCall
	}
	return s.portionDetailsFunc(ctx, portionIDs)
}

func (s *stubCatalogService) CreateCategory(ctx context.Context, input services.CategoryInput) (domain.Category, error) {
	if s.createCategoryFunc == nil {
		return domain.Category{}, errStubUnexpectedCall
	}
	return s.createCategoryFunc(ctx, input)
}

func (s *stubCatalogService) UpdateCategory(ctx context.Context, categoryID string, input services.CategoryInput) (domain.Category, error) {
	if s.updateCategoryFunc == nil {
		return domain.Category{}, errStubUnexpectedCall
	}
	return s.updateCategoryFunc(ctx, categoryID, input)
}

func (s *stubCatalogService) DeleteCategory(ctx context.Context, categoryID string) error {
	if s.deleteCategoryFunc == nil {
		return errStubUnexpectedCall
	}
	return s.deleteCategoryFunc(ctx, categoryID)
}

func (s *stubCatalogService) CreateDish(ctx context.Context, input services.DishInput) (domain.Dish, error) {
	if s.createDishFunc == nil {
		return domain.Dish{}, errStubUnexpectedCall
	}
	return s.createDishFunc(ctx, input)
}

func (s *stubCatalogService) UpdateDish(ctx context.Context, dishID string, input services.DishInput) (domain.Dish, error) {
	if s.updateDishFunc == nil {
		return domain.Dish{}, errStubUnexpectedCall
	}
	return s.updateDishFunc(ctx, dishID, input)
}

func (s *stubCatalogService) DeleteDish(ctx context.Context, dishID string) error {
	if s.deleteDishFunc == nil {
		return errStubUnexpectedCall
	}
	return s.deleteDishFunc(ctx, dishID)
}

func (s *stubCatalogService) CreatePortion(ctx context.Context, input services.PortionInput) (domain.DishPortion, error) {
	if s.createPortionFunc == nil {
		return domain.DishPortion{}, errStubUnexpectedCall
	}
	return s.createPortionFunc(ctx, input)
}

func (s *stubCatalogService) UpdatePortion(ctx context.Context, portionID string, input services.PortionInput) (domain.DishPortion, error) {
	if s.updatePortionFunc == nil {
		return domain.DishPortion{}, errStubUnexpectedCall
	}
	return s.updatePortionFunc(ctx, portionID, input)
}

func (s *stubCatalogService) DeletePortion(ctx context.Context, portionID string) error {
	if s.deletePortionFunc == nil {
		return errStubUnexpectedCall
	}
	return s.deletePortionFunc(ctx, portionID)
}

type stubProfileService struct {
	getFunc           func(ctx context.Context, profileID string) (domain.UserProfile, error)
	getByUsernameFunc func(ctx context.Context, username string) (domain.UserProfile, error)
	upsertFunc        func(ctx context.Context, profileID string, update services.ProfileUpdate) (domain.UserProfile, error)
	deleteFunc        func(ctx context.Context, profileID string) error
}

var _ services.ProfileService = (*stubProfileService)(nil)

func (s *stubProfileService) Get(ctx context.Context, profileID string) (domain.UserProfile, error) {
	if s.getFunc == nil {
		return domain.UserProfile{}, errStubUnexpectedCall
	}
	return s.getFunc(ctx, profileID)
}

func (s *stubProfileService) GetByUsername(ctx context.Context, username string) (domain.UserProfile, error) {
	if s.getByUsernameFunc == nil {
		return domain.UserProfile{}, errStubUnexpectedCall
	}
	return s.getByUsernameFunc(ctx, username)
}

func (s *stubProfileService) Upsert(ctx context.Context, profileID string, update services.ProfileUpdate) (domain.UserProfile, error) {
	if s.upsertFunc == nil {
		return domain.UserProfile{}, errStubUnexpectedCall
	}
	return s.upsertFunc(ctx, profileID, update)
}

func (s *stubProfileService) Delete(ctx context.Context, profileID string) error {
	if s.deleteFunc == nil {
		return errStubUnexpectedCall
	}
	return s.deleteFunc(ctx, profileID)
}

type stubFeedbackService struct {
	submitFunc func(ctx context.Context, name, email, message string) (domain.Feedback, error)
	listFunc   func(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Feedback], error)
}

var _ services.FeedbackService = (*stubFeedbackService)(nil)

func (s *stubFeedbackService) Submit(ctx context.Context, name, email, message string) (domain.Feedback, error) {
	if s.submitFunc == nil {
		return domain.Feedback{}, errStubUnexpectedCall
	}
	return s.submitFunc(ctx, name, email, message)
}

func (s *stubFeedbackService) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Feedback], error) {
	if s.listFunc == nil {
		return domain.CursorPage[domain.Feedback]{}, errStubUnexpectedCall
	}
	return s.listFunc(ctx, pager)
}

type stubPaymentProvider struct {
	createFunc func(ctx context.Context, req payments.IntentRequest) (payments.Intent, error)
	updateFunc func(ctx context.Context, update payments.IntentUpdate) (payments.Intent, error)
	refundFunc func(ctx context.Context, req payments.RefundRequest) (payments.PaymentDetails, error)
	lookupFunc func(ctx context.Context, req payments.LookupRequest) (payments.PaymentDetails, error)
}

var _ payments.Provider = (*stubPaymentProvider)(nil)

func (s *stubPaymentProvider) CreateIntent(ctx context.Context, req payments.IntentRequest) (payments.Intent, error) {
	if s.createFunc == nil {
		return payments.Intent{}, errStubUnexpectedCall
	}
	return s.createFunc(ctx, req)
}

func (s *stubPaymentProvider) UpdateIntent(ctx context.Context, update payments.IntentUpdate) (payments.Intent, error) {
	if s.updateFunc == nil {
		return payments.Intent{}, errStubUnexpectedCall
	}
	return s.updateFunc(ctx, update)
}

func (s *stubPaymentProvider) Refund(ctx context.Context, req payments.RefundRequest) (payments.PaymentDetails, error) {
	if s.refundFunc == nil {
		return payments.PaymentDetails{}, errStubUnexpectedCall
	}
	return s.refundFunc(ctx, req)
}

func (s *stubPaymentProvider) LookupPayment(ctx context.Context, req payments.LookupRequest) (payments.PaymentDetails, error) {
	if s.lookupFunc == nil {
		return payments.PaymentDetails{}, errStubUnexpectedCall
	}
	return s.lookupFunc(ctx, req)
}

type stubWebhookVerifier struct {
	verifyFunc func(payload []byte, signatureHeader string) (services.PaymentNotification, error)
}

var _ WebhookVerifier = (*stubWebhookVerifier)(nil)

func (s *stubWebhookVerifier) VerifyAndParse(payload []byte, signatureHeader string) (services.PaymentNotification, error) {
	if s.verifyFunc == nil {
		return services.PaymentNotification{}, errStubUnexpectedCall
	}
	return s.verifyFunc(payload, signatureHeader)
}

type stubWebhookReconciler struct {
	handleFunc func(ctx context.Context, notice services.PaymentNotification) (services.ReconcileResult, error)
}

var _ services.WebhookReconciler = (*stubWebhookReconciler)(nil)

func (s *stubWebhookReconciler) HandlePaymentEvent(ctx context.Context, notice services.PaymentNotification) (services.ReconcileResult, error) {
	if s.handleFunc == nil {
		return services.ReconcileResult{}, errStubUnexpectedCall
	}
	return s.handleFunc(ctx, notice)
}

type stubSystemService struct {
	reportFunc func(ctx context.Context) (domain.SystemHealthReport, error)
}

var _ services.SystemService = (*stubSystemService)(nil)

func (s *stubSystemService) HealthReport(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.reportFunc == nil {
		return domain.SystemHealthReport{}, errStubUnexpectedCall
	}
	return s.reportFunc(ctx)
}
