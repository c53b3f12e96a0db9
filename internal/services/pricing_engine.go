package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	domain "github.com/tastyhub/api/internal/domain"
)

var (
	// ErrPricingInvalidInput marks rejected pricing requests.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
	// ErrPricingUnavailable wraps catalog lookups that failed transiently.
	ErrPricingUnavailable = errors.New("pricing: temporarily unavailable")
)

// FreeDeliveryDisplay is the delivery fee string shown when the fee is waived
// by the free-delivery threshold.
const FreeDeliveryDisplay = "Free"

// DeliveryPolicy holds the configured delivery fee rules.
type DeliveryPolicy struct {
	// FreeThreshold is the subtotal at or above which delivery is free.
	FreeThreshold domain.Money
	// FlatFee is charged on delivery orders below the threshold.
	FlatFee domain.Money
}

// PricingEngineDeps bundles collaborators required to construct the engine.
type PricingEngineDeps struct {
	Catalog CatalogService
	Policy  DeliveryPolicy
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type pricingEngine struct {
	catalog CatalogService
	policy  DeliveryPolicy
	clock   func() time.Time
	logger  func(context.Context, string, map[string]any)
}

// NewPricingEngine wires dependencies into a concrete PricingEngine.
func NewPricingEngine(deps PricingEngineDeps) (PricingEngine, error) {
	if deps.Catalog == nil {
		return nil, errors.New("pricing engine: catalog service is required")
	}
	if deps.Policy.FlatFee.IsNegative() || deps.Policy.FreeThreshold.IsNegative() {
		return nil, errors.New("pricing engine: delivery policy amounts must not be negative")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &pricingEngine{
		catalog: deps.Catalog,
		policy:  deps.Policy,
		clock:   func() time.Time { return clock().UTC() },
		logger:  logger,
	}, nil
}

// Quote prices the bag with exact decimal arithmetic. Each line total, the
// subtotal, and the grand total are rounded to cents half up. Portions that no
// longer exist in the catalog are excluded and reported so the stored bag can
// be corrected; they never fail the quote.
func (e *pricingEngine) Quote(ctx context.Context, items map[string]int, deliveryType domain.DeliveryType) (domain.BagQuote, error) {
	quote := domain.BagQuote{
		DeliveryType: domain.NormalizeDeliveryType(string(deliveryType)),
	}
	if len(items) == 0 {
		return e.applyDeliveryFee(quote), nil
	}

	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	details, err := e.catalog.PortionDetails(ctx, ids)
	if err != nil {
		return domain.BagQuote{}, fmt.Errorf("%w: %v", ErrPricingUnavailable, err)
	}

	subtotal := domain.Zero
	for _, id := range ids {
		qty := items[id]
		if qty < 1 {
			qty = 1
		}
		detail, ok := details[id]
		if !ok {
			quote.RemovedPortionIDs = append(quote.RemovedPortionIDs, id)
			e.logger(ctx, "pricing.portion_missing", map[string]any{
				"portion_id": id,
			})
			continue
		}

		unit := detail.Portion.Price
		lineTotal := unit.MulInt(qty).RoundCents()
		quote.Lines = append(quote.Lines, domain.PricedLine{
			PortionID: id,
			DishID:    detail.Dish.ID,
			DishName:  detail.Dish.Name,
			Size:      detail.Portion.Size,
			Quantity:  qty,
			UnitPrice: unit,
			LineTotal: lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	quote.Subtotal = subtotal.RoundCents()
	return e.applyDeliveryFee(quote), nil
}

// applyDeliveryFee resolves the delivery fee: pickup orders and subtotals at
// or above the free threshold pay nothing, everything else pays the flat fee.
func (e *pricingEngine) applyDeliveryFee(quote domain.BagQuote) domain.BagQuote {
	switch {
	case len(quote.Lines) == 0:
		quote.Subtotal = domain.Zero.RoundCents()
		quote.DeliveryFee = domain.Zero.RoundCents()
		quote.DeliveryFeeDisplay = quote.DeliveryFee.Display()
	case quote.DeliveryType == domain.DeliveryTypePickup:
		quote.DeliveryFee = domain.Zero.RoundCents()
		quote.DeliveryFeeDisplay = quote.DeliveryFee.Display()
	case quote.Subtotal.GreaterThanOrEqual(e.policy.FreeThreshold):
		quote.DeliveryFee = domain.Zero.RoundCents()
		quote.DeliveryFeeDisplay = FreeDeliveryDisplay
	default:
		quote.DeliveryFee = e.policy.FlatFee.RoundCents()
		quote.DeliveryFeeDisplay = quote.DeliveryFee.Display()
	}
	quote.GrandTotal = quote.Subtotal.Add(quote.DeliveryFee).RoundCents()
	return quote
}
