package domain

import (
	"strings"
	"time"
)

// MenuType groups categories into the sections shown on the menu page.
type MenuType string

const (
	MenuTypeBreakfast MenuType = "breakfast"
	MenuTypeLunch     MenuType = "lunch"
	MenuTypeDinner    MenuType = "dinner"
	MenuTypeGrill     MenuType = "grill"
	MenuTypeDrinks    MenuType = "drinks"
)

// ParseMenuType maps arbitrary input onto a known menu section.
func ParseMenuType(v string) (MenuType, bool) {
	mt := MenuType(strings.ToLower(strings.TrimSpace(v)))
	switch mt {
	case MenuTypeBreakfast, MenuTypeLunch, MenuTypeDinner, MenuTypeGrill, MenuTypeDrinks:
		return mt, true
	default:
		return "", false
	}
}

// Category is a named section of the menu.
type Category struct {
	ID          string
	Name        string
	Slug        string
	MenuType    MenuType
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DietaryInfo captures the dietary flags shown on a dish card.
type DietaryInfo struct {
	Vegetarian bool
	Vegan      bool
	GlutenFree bool
	Spicy      bool
}

// Dish is a menu item. Portions carry the sellable sizes and prices; the
// dish-level price is the base shown on listings.
type Dish struct {
	ID             string
	CategoryID     string
	Name           string
	Slug           string
	Description    string
	Ingredients    string
	Dietary        DietaryInfo
	PrepTimeMins   int
	Calories       int
	BasePrice      Money
	ImagePath      string
	Available      bool
	IsSpecial      bool
	AvailableFrom  *time.Time
	AvailableUntil *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AvailableAt reports whether the dish can be ordered at the given time,
// honouring the availability flag and the optional date window.
func (d Dish) AvailableAt(now time.Time) bool {
	if !d.Available {
		return false
	}
	if d.AvailableFrom != nil && now.Before(*d.AvailableFrom) {
		return false
	}
	if d.AvailableUntil != nil && now.After(*d.AvailableUntil) {
		return false
	}
	return true
}

// PortionSize enumerates the serving sizes a dish can be sold in.
type PortionSize string

const (
	PortionSizeSmall   PortionSize = "small"
	PortionSizeRegular PortionSize = "regular"
	PortionSizeLarge   PortionSize = "large"
)

// ParsePortionSize maps arbitrary input onto a known portion size.
func ParsePortionSize(v string) (PortionSize, bool) {
	size := PortionSize(strings.ToLower(strings.TrimSpace(v)))
	switch size {
	case PortionSizeSmall, PortionSizeRegular, PortionSizeLarge:
		return size, true
	default:
		return "", false
	}
}

// DishPortion is a sellable size of a dish. A dish has at most one portion
// per size; the portion price is what the bag and orders snapshot.
type DishPortion struct {
	ID          string
	DishID      string
	Size        PortionSize
	WeightGrams int
	Price       Money
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
