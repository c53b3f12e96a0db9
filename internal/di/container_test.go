package di

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tastyhub/api/internal/platform/config"
	"github.com/tastyhub/api/internal/repositories"
	"github.com/tastyhub/api/internal/services"
)

type stubRegistry struct {
	categories repositories.CategoryRepository
	dishes     repositories.DishRepository
	portions   repositories.PortionRepository
	bags       repositories.BagRepository
	orders     repositories.OrderRepository
	profiles   repositories.ProfileRepository
	feedback   repositories.FeedbackRepository
	counters   repositories.CounterRepository
	health     repositories.HealthRepository
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{
		categories: struct{ repositories.CategoryRepository }{},
		dishes:     struct{ repositories.DishRepository }{},
		portions:   struct{ repositories.PortionRepository }{},
		bags:       struct{ repositories.BagRepository }{},
		orders:     struct{ repositories.OrderRepository }{},
		profiles:   struct{ repositories.ProfileRepository }{},
		feedback:   struct{ repositories.FeedbackRepository }{},
		counters:   struct{ repositories.CounterRepository }{},
		health:     struct{ repositories.HealthRepository }{},
	}
}

func (r *stubRegistry) Close(context.Context) error                    { return nil }
func (r *stubRegistry) Categories() repositories.CategoryRepository    { return r.categories }
func (r *stubRegistry) Dishes() repositories.DishRepository            { return r.dishes }
func (r *stubRegistry) Portions() repositories.PortionRepository       { return r.portions }
func (r *stubRegistry) Bags() repositories.BagRepository               { return r.bags }
func (r *stubRegistry) Orders() repositories.OrderRepository           { return r.orders }
func (r *stubRegistry) Profiles() repositories.ProfileRepository       { return r.profiles }
func (r *stubRegistry) Feedback() repositories.FeedbackRepository      { return r.feedback }
func (r *stubRegistry) Counters() repositories.CounterRepository       { return r.counters }
func (r *stubRegistry) Health() repositories.HealthRepository          { return r.health }

func (r *stubRegistry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func testConfig() config.Config {
	return config.Config{
		Environment: "test",
		Ordering: config.OrderingConfig{
			Currency:         "usd",
			MaxPerDish:       20,
			DeliveryFee:      "4.00",
			FreeDeliveryOver: "60.00",
		},
		Features: config.FeatureFlags{
			EnableEmailReceipts: true,
		},
	}
}

func TestNewContainerAssemblesAllServices(t *testing.T) {
	container, err := NewContainer(ContainerDeps{
		Config:       testConfig(),
		Repositories: newStubRegistry(),
		Build:        services.BuildInfo{Version: "1.2.3"},
		Clock:        func() time.Time { return time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}

	svc := container.Services
	if svc.Catalog == nil {
		t.Error("expected catalog service")
	}
	if svc.Bags == nil {
		t.Error("expected bag service")
	}
	if svc.Pricing == nil {
		t.Error("expected pricing engine")
	}
	if svc.Orders == nil {
		t.Error("expected order service")
	}
	if svc.Profiles == nil {
		t.Error("expected profile service")
	}
	if svc.Feedback == nil {
		t.Error("expected feedback service")
	}
	if svc.Reconciler == nil {
		t.Error("expected webhook reconciler")
	}
	if svc.System == nil {
		t.Error("expected system service when a health repository is registered")
	}

	if err := container.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestNewContainerRequiresRegistry(t *testing.T) {
	_, err := NewContainer(ContainerDeps{Config: testConfig()})
	if err == nil {
		t.Fatal("expected error without a registry")
	}
}

func TestNewContainerRejectsMalformedDeliveryFee(t *testing.T) {
	cfg := testConfig()
	cfg.Ordering.DeliveryFee = "free"

	_, err := NewContainer(ContainerDeps{Config: cfg, Repositories: newStubRegistry()})
	if err == nil {
		t.Fatal("expected error for malformed delivery fee")
	}
	if !strings.Contains(err.Error(), "delivery fee") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewContainerSkipsSystemServiceWithoutHealthRepo(t *testing.T) {
	reg := newStubRegistry()
	reg.health = nil

	container, err := NewContainer(ContainerDeps{Config: testConfig(), Repositories: reg})
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	if container.Services.System != nil {
		t.Fatal("expected no system service without a health repository")
	}
}
