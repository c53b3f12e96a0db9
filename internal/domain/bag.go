package domain

import "time"

// Bag is a customer's shopping bag: canonical portion id to quantity.
// Quantities in a stored bag are always at least one.
type Bag struct {
	ID        string
	OwnerID   string
	Items     map[string]int
	UpdatedAt time.Time
}

// Clone returns a deep copy of the bag items.
func (b Bag) Clone() map[string]int {
	if len(b.Items) == 0 {
		return map[string]int{}
	}
	out := make(map[string]int, len(b.Items))
	for k, v := range b.Items {
		out[k] = v
	}
	return out
}

// TotalQuantity sums all item quantities.
func (b Bag) TotalQuantity() int {
	total := 0
	for _, qty := range b.Items {
		total += qty
	}
	return total
}

// DeliveryType selects how an order reaches the customer.
type DeliveryType string

const (
	DeliveryTypeDelivery DeliveryType = "delivery"
	DeliveryTypePickup   DeliveryType = "pickup"
)

// NormalizeDeliveryType maps arbitrary input onto a valid delivery type,
// defaulting to delivery.
func NormalizeDeliveryType(v string) DeliveryType {
	if DeliveryType(v) == DeliveryTypePickup {
		return DeliveryTypePickup
	}
	return DeliveryTypeDelivery
}

// PricedLine is a bag entry joined with its catalog snapshot and priced.
type PricedLine struct {
	PortionID string
	DishID    string
	DishName  string
	Size      PortionSize
	Quantity  int
	UnitPrice Money
	LineTotal Money
}

// BagQuote is the fully priced view of a bag.
type BagQuote struct {
	Lines              []PricedLine
	Subtotal           Money
	DeliveryFee        Money
	DeliveryFeeDisplay string
	GrandTotal         Money
	RemovedPortionIDs  []string
	DeliveryType       DeliveryType
}
