package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	"github.com/tastyhub/api/internal/repositories"
	pfirestore "github.com/tastyhub/api/internal/platform/firestore"
)

type txContextKey struct{}

func withTx(ctx context.Context, tx *firestore.Transaction) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

func txFromContext(ctx context.Context) (*firestore.Transaction, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txContextKey{}).(*firestore.Transaction)
	return tx, ok && tx != nil
}

// Registry bundles the Firestore-backed repositories behind the repositories.Registry
// interface and provides the transactional unit of work shared by the services.
type Registry struct {
	provider *pfirestore.Provider

	categories *CategoryRepository
	dishes     *DishRepository
	portions   *PortionRepository
	bags       *BagRepository
	orders     *OrderRepository
	profiles   *ProfileRepository
	feedback   *FeedbackRepository
	counters   *CounterRepository
	health     repositories.HealthRepository
}

// NewRegistry constructs the repository set over a shared Firestore provider.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	categories, err := NewCategoryRepository(provider)
	if err != nil {
		return nil, err
	}
	dishes, err := NewDishRepository(provider)
	if err != nil {
		return nil, err
	}
	portions, err := NewPortionRepository(provider)
	if err != nil {
		return nil, err
	}
	bags, err := NewBagRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	profiles, err := NewProfileRepository(provider)
	if err != nil {
		return nil, err
	}
	feedback, err := NewFeedbackRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:   provider,
		categories: categories,
		dishes:     dishes,
		portions:   portions,
		bags:       bags,
		orders:     orders,
		profiles:   profiles,
		feedback:   feedback,
		counters:   counters,
		health:     health,
	}, nil
}

var _ repositories.Registry = (*Registry)(nil)

func (r *Registry) Categories() repositories.CategoryRepository { return r.categories }
func (r *Registry) Dishes() repositories.DishRepository         { return r.dishes }
func (r *Registry) Portions() repositories.PortionRepository    { return r.portions }
func (r *Registry) Bags() repositories.BagRepository            { return r.bags }
func (r *Registry) Orders() repositories.OrderRepository        { return r.orders }
func (r *Registry) Profiles() repositories.ProfileRepository    { return r.profiles }
func (r *Registry) Feedback() repositories.FeedbackRepository   { return r.feedback }
func (r *Registry) Counters() repositories.CounterRepository    { return r.counters }
func (r *Registry) Health() repositories.HealthRepository       { return r.health }

// RunInTx executes fn inside a single Firestore transaction. Repository calls made
// with the derived context join the transaction, so all reads happen before writes.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("registry not initialised")
	}
	if fn == nil {
		return errors.New("registry requires a transaction function")
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(withTx(ctx, tx))
	})
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}
