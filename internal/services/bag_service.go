package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	domain "github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/repositories"
)

var (
	// ErrBagInvalidInput marks rejected bag mutations.
	ErrBagInvalidInput = errors.New("bag: invalid input")
	// ErrBagPortionUnknown is returned when the portion does not exist in the catalog.
	ErrBagPortionUnknown = errors.New("bag: unknown portion")
	// ErrBagLimitExceeded is returned when a dish would exceed the per-day cap.
	ErrBagLimitExceeded = errors.New("bag: daily limit exceeded")
	// ErrBagUnavailable wraps persistence failures.
	ErrBagUnavailable = errors.New("bag: temporarily unavailable")
)

// DefaultMaxPerDish caps how many servings of one dish a bag may hold per day.
const DefaultMaxPerDish = 20

// BagServiceDeps bundles collaborators required to construct the bag service.
type BagServiceDeps struct {
	Bags       repositories.BagRepository
	Portions   repositories.PortionRepository
	MaxPerDish int
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type bagService struct {
	bags       repositories.BagRepository
	portions   repositories.PortionRepository
	maxPerDish int
	clock      func() time.Time
	logger     func(context.Context, string, map[string]any)
}

// NewBagService wires dependencies into a concrete BagService implementation.
func NewBagService(deps BagServiceDeps) (BagService, error) {
	if deps.Bags == nil {
		return nil, errors.New("bag service: bag repository is required")
	}
	if deps.Portions == nil {
		return nil, errors.New("bag service: portion repository is required")
	}

	maxPerDish := deps.MaxPerDish
	if maxPerDish <= 0 {
		maxPerDish = DefaultMaxPerDish
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &bagService{
		bags:       deps.Bags,
		portions:   deps.Portions,
		maxPerDish: maxPerDish,
		clock:      func() time.Time { return clock().UTC() },
		logger:     logger,
	}, nil
}

// Normalize coerces untyped bag payloads into canonical portion id to quantity
// form. Keys must parse as positive integers; quantities accept numeric or
// string forms and clamp to a minimum of one. Entries that cannot be coerced
// are dropped and their original keys reported so the caller can prune the
// stored bag.
func (s *bagService) Normalize(ctx context.Context, raw map[string]any) (map[string]int, []string) {
	normalized := make(map[string]int, len(raw))
	var removed []string

	for key, value := range raw {
		id, ok := coerceBagKey(key)
		if !ok {
			removed = append(removed, key)
			continue
		}
		qty, ok := coerceQuantity(value)
		if !ok {
			removed = append(removed, key)
			continue
		}
		if qty < 1 {
			qty = 1
		}
		normalized[id] += qty
	}

	if len(removed) > 0 {
		sort.Strings(removed)
		s.logger(ctx, "bag.normalize.dropped", map[string]any{
			"removed_keys": removed,
		})
	}
	return normalized, removed
}

// Get loads the owner's bag.
func (s *bagService) Get(ctx context.Context, ownerID string) (domain.Bag, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return domain.Bag{}, fmt.Errorf("%w: owner id is required", ErrBagInvalidInput)
	}
	bag, err := s.bags.Get(ctx, ownerID)
	if err != nil {
		return domain.Bag{}, s.translateBagError(err)
	}
	return bag, nil
}

// AddItem adds quantity servings of the portion to the bag.
func (s *bagService) AddItem(ctx context.Context, ownerID, portionID string, quantity int) (domain.Bag, error) {
	if quantity < 1 {
		return domain.Bag{}, fmt.Errorf("%w: quantity must be at least one", ErrBagInvalidInput)
	}
	return s.mutate(ctx, ownerID, portionID, func(current int) int {
		return current + quantity
	})
}

// AdjustItem sets the portion quantity. Zero or negative removes the line.
func (s *bagService) AdjustItem(ctx context.Context, ownerID, portionID string, quantity int) (domain.Bag, error) {
	return s.mutate(ctx, ownerID, portionID, func(int) int {
		return quantity
	})
}

// RemoveItem drops the portion from the bag.
func (s *bagService) RemoveItem(ctx context.Context, ownerID, portionID string) (domain.Bag, error) {
	return s.mutate(ctx, ownerID, portionID, func(int) int {
		return 0
	})
}

// Clear deletes the owner's bag.
func (s *bagService) Clear(ctx context.Context, ownerID string) error {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return fmt.Errorf("%w: owner id is required", ErrBagInvalidInput)
	}
	if err := s.bags.Delete(ctx, ownerID); err != nil {
		return s.translateBagError(err)
	}
	return nil
}

func (s *bagService) mutate(ctx context.Context, ownerID, portionID string, apply func(current int) int) (domain.Bag, error) {
	ownerID = strings.TrimSpace(ownerID)
	portionID = strings.TrimSpace(portionID)
	if ownerID == "" {
		return domain.Bag{}, fmt.Errorf("%w: owner id is required", ErrBagInvalidInput)
	}
	if portionID == "" {
		return domain.Bag{}, fmt.Errorf("%w: portion id is required", ErrBagInvalidInput)
	}

	bag, err := s.bags.Get(ctx, ownerID)
	if err != nil {
		return domain.Bag{}, s.translateBagError(err)
	}
	items := bag.Clone()

	next := apply(items[portionID])
	if next < 1 {
		delete(items, portionID)
	} else {
		portion, err := s.portions.FindByID(ctx, portionID)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				return domain.Bag{}, fmt.Errorf("%w: %s", ErrBagPortionUnknown, portionID)
			}
			return domain.Bag{}, s.translateBagError(err)
		}
		if err := s.checkDishLimit(ctx, items, portion, next); err != nil {
			return domain.Bag{}, err
		}
		items[portionID] = next
	}

	bag.Items = items
	bag.OwnerID = ownerID
	bag.UpdatedAt = s.clock()
	saved, err := s.bags.Save(ctx, bag)
	if err != nil {
		return domain.Bag{}, s.translateBagError(err)
	}

	s.logger(ctx, "bag.updated", map[string]any{
		"owner_id":   ownerID,
		"portion_id": portionID,
		"quantity":   next,
	})
	return saved, nil
}

// checkDishLimit enforces the per-dish daily cap across all portions of the
// dish already in the bag.
func (s *bagService) checkDishLimit(ctx context.Context, items map[string]int, portion domain.DishPortion, next int) error {
	total := next
	siblings, err := s.portions.ListByDish(ctx, portion.DishID)
	if err != nil {
		return s.translateBagError(err)
	}
	for _, sibling := range siblings {
		if sibling.ID == portion.ID {
			continue
		}
		total += items[sibling.ID]
	}
	if total > s.maxPerDish {
		return fmt.Errorf("%w: at most %d servings of one dish per day", ErrBagLimitExceeded, s.maxPerDish)
	}
	return nil
}

func (s *bagService) translateBagError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrBagPortionUnknown, err)
		default:
			return fmt.Errorf("%w: %v", ErrBagUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrBagUnavailable, err)
}

// coerceBagKey accepts keys that parse as positive integers, tolerating
// surrounding whitespace and a trailing ".0" float artefact.
func coerceBagKey(key string) (string, bool) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", false
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		if n <= 0 {
			return "", false
		}
		return strconv.FormatInt(n, 10), true
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		if f <= 0 || f != math.Trunc(f) {
			return "", false
		}
		return strconv.FormatInt(int64(f), 10), true
	}
	return "", false
}

// coerceQuantity accepts ints, floats, and numeric strings. Fractional
// quantities truncate toward zero; the caller clamps anything below one.
func coerceQuantity(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		if v > math.MaxInt32 || v < math.MinInt32 {
			return 0, false
		}
		return int(v), true
	case float64:
		if math.IsNaN(v) || v > math.MaxInt32 || v < math.MinInt32 {
			return 0, false
		}
		return int(v), true
	case float32:
		return coerceQuantity(float64(v))
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		if n, err := strconv.ParseInt(trimmed, 10, 32); err == nil {
			return int(n), true
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return coerceQuantity(f)
		}
		return 0, false
	default:
		return 0, false
	}
}
