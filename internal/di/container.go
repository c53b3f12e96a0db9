package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	domain "github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/platform/config"
	"github.com/tastyhub/api/internal/repositories"
	"github.com/tastyhub/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Catalog    services.CatalogService
	Bags       services.BagService
	Pricing    services.PricingEngine
	Orders     services.OrderService
	Profiles   services.ProfileService
	Feedback   services.FeedbackService
	Reconciler services.WebhookReconciler
	System     services.SystemService
}

// ContainerDeps carries the runtime collaborators the container assembles
// services from. Registry is mandatory; publishers and the logger are
// optional so tests can construct partial containers.
type ContainerDeps struct {
	Config       config.Config
	Repositories repositories.Registry
	Events       services.OrderEventPublisher
	Email        services.EmailDispatcher
	Logger       *zap.Logger
	Build        services.BuildInfo
	Clock        func() time.Time
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer assembles the service graph in dependency order: catalog
// feeds pricing, pricing feeds orders, and the reconciler sits on top of
// the order, bag, and profile services.
func NewContainer(deps ContainerDeps) (*Container, error) {
	reg := deps.Repositories
	if reg == nil {
		return nil, errors.New("container: repositories registry is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := eventLogger(deps.Logger)
	cfg := deps.Config

	catalog, err := services.NewCatalogService(services.CatalogServiceDeps{
		Categories: reg.Categories(),
		Dishes:     reg.Dishes(),
		Portions:   reg.Portions(),
		Counters:   reg.Counters(),
		Clock:      clock,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("container: build catalog service: %w", err)
	}

	policy, err := deliveryPolicy(cfg.Ordering)
	if err != nil {
		return nil, err
	}
	pricing, err := services.NewPricingEngine(services.PricingEngineDeps{
		Catalog: catalog,
		Policy:  policy,
		Clock:   clock,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("container: build pricing engine: %w", err)
	}

	bags, err := services.NewBagService(services.BagServiceDeps{
		Bags:       reg.Bags(),
		Portions:   reg.Portions(),
		MaxPerDish: cfg.Ordering.MaxPerDish,
		Clock:      clock,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("container: build bag service: %w", err)
	}

	profiles, err := services.NewProfileService(services.ProfileServiceDeps{
		Profiles: reg.Profiles(),
		Clock:    clock,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("container: build profile service: %w", err)
	}

	email := deps.Email
	if !cfg.Features.EnableEmailReceipts {
		email = nil
	}
	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Bags:       reg.Bags(),
		Profiles:   reg.Profiles(),
		Pricing:    pricing,
		UnitOfWork: reg,
		Clock:      clock,
		Events:     deps.Events,
		Email:      email,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("container: build order service: %w", err)
	}

	feedback, err := services.NewFeedbackService(services.FeedbackServiceDeps{
		Feedback: reg.Feedback(),
		Clock:    clock,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("container: build feedback service: %w", err)
	}

	reconciler, err := services.NewWebhookReconciler(services.WebhookReconcilerDeps{
		Orders:   orders,
		Bags:     bags,
		Profiles: profiles,
		Email:    email,
		Clock:    clock,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("container: build webhook reconciler: %w", err)
	}

	svc := Services{
		Catalog:    catalog,
		Bags:       bags,
		Pricing:    pricing,
		Orders:     orders,
		Profiles:   profiles,
		Feedback:   feedback,
		Reconciler: reconciler,
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		build := deps.Build
		if build.Environment == "" {
			build.Environment = cfg.Environment
		}
		system, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            clock,
			Build:            build,
		})
		if err != nil {
			return nil, fmt.Errorf("container: build system service: %w", err)
		}
		svc.System = system
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases repository clients and any other held resources.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func deliveryPolicy(cfg config.OrderingConfig) (services.DeliveryPolicy, error) {
	fee, err := domain.ParseMoney(cfg.DeliveryFee)
	if err != nil {
		return services.DeliveryPolicy{}, fmt.Errorf("container: parse delivery fee: %w", err)
	}
	threshold, err := domain.ParseMoney(cfg.FreeDeliveryOver)
	if err != nil {
		return services.DeliveryPolicy{}, fmt.Errorf("container: parse free delivery threshold: %w", err)
	}
	return services.DeliveryPolicy{FreeThreshold: threshold, FlatFee: fee}, nil
}

func eventLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	if logger == nil {
		return nil
	}
	return func(_ context.Context, event string, fields map[string]any) {
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(event, zapFields...)
	}
}
