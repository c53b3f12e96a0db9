package domain

import (
	"strings"
	"time"
)

// OrderStatus tracks an order through the kitchen and out the door.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusReadyForPickup OrderStatus = "ready_for_pickup"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// ParseOrderStatus maps arbitrary input onto a known status.
func ParseOrderStatus(v string) (OrderStatus, bool) {
	s := OrderStatus(strings.ToLower(strings.TrimSpace(v)))
	switch s {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusOutForDelivery,
		OrderStatusReadyForPickup, OrderStatusCompleted, OrderStatusCancelled:
		return s, true
	default:
		return "", false
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// ProgressPercent maps a status to the tracking bar percentage shown to
// customers. Cancelled orders report zero.
func (s OrderStatus) ProgressPercent() int {
	switch s {
	case OrderStatusPending:
		return 25
	case OrderStatusPreparing:
		return 50
	case OrderStatusOutForDelivery, OrderStatusReadyForPickup:
		return 75
	case OrderStatusCompleted:
		return 100
	default:
		return 0
	}
}

// Address is the delivery destination captured at checkout.
type Address struct {
	FullName       string
	Email          string
	PhoneNumber    string
	StreetAddress1 string
	StreetAddress2 string
	TownOrCity     string
	County         string
	Postcode       string
	Locality       string
}

// Order is the immutable record of a confirmed purchase. Totals and line
// prices are snapshots taken at creation and never recomputed.
type Order struct {
	ID             string
	Number         string
	ProfileID      string
	Status         OrderStatus
	DeliveryType   DeliveryType
	PickupTime     string
	Address        Address
	OrderTotal     Money
	DeliveryFee    Money
	GrandTotal     Money
	PaymentRef     string
	OriginalBag    string
	PublicTracking bool
	EmailSent      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LineItems      []OrderLineItem
}

// OrderLineItem is one priced portion on an order. At most one line exists
// per portion; repeats collapse into the quantity.
type OrderLineItem struct {
	ID        string
	OrderID   string
	PortionID string
	DishName  string
	Size      PortionSize
	Quantity  int
	UnitPrice Money
	LineTotal Money
}
