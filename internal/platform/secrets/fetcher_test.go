package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type recordingSecretClient struct {
	mu       sync.Mutex
	payloads map[string]string
	failures map[string]error
	accesses map[string]int
}

func newRecordingSecretClient() *recordingSecretClient {
	return &recordingSecretClient{
		payloads: make(map[string]string),
		failures: make(map[string]error),
		accesses: make(map[string]int),
	}
}

func (c *recordingSecretClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := req.GetName()
	c.accesses[name]++

	if err, ok := c.failures[name]; ok && err != nil {
		return nil, err
	}
	if payload, ok := c.payloads[name]; ok {
		return &secretmanagerpb.AccessSecretVersionResponse{
			Payload: &secretmanagerpb.SecretPayload{Data: []byte(payload)},
		}, nil
	}
	return nil, status.Error(codes.NotFound, "not found")
}

func (c *recordingSecretClient) Close() error { return nil }

func (c *recordingSecretClient) accessCount(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accesses[name]
}

func writeFallbackFile(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	if err := os.WriteFile(path, []byte(lines), 0o600); err != nil {
		t.Fatalf("failed writing fallback file: %v", err)
	}
	return path
}

func TestResolveFetchesOnceAndServesFromCache(t *testing.T) {
	ctx := context.Background()

	client := newRecordingSecretClient()
	resource := "projects/tastyhub-dev/secrets/stripe_webhook_secret/versions/latest"
	client.payloads[resource] = "whsec_abc"

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithDefaultProject("tastyhub-dev"),
		WithLogger(zap.NewNop()),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	for i := 0; i < 3; i++ {
		got, err := fetcher.Resolve(ctx, "secret://stripe_webhook_secret")
		if err != nil {
			t.Fatalf("Resolve attempt %d returned error: %v", i+1, err)
		}
		if got != "whsec_abc" {
			t.Fatalf("attempt %d: expected whsec_abc, got %s", i+1, got)
		}
	}

	if calls := client.accessCount(resource); calls != 1 {
		t.Fatalf("expected a single remote fetch, got %d", calls)
	}
}

func TestResolveUsesEnvironmentProjectMapping(t *testing.T) {
	ctx := context.Background()

	client := newRecordingSecretClient()
	resource := "projects/tastyhub-prod/secrets/stripe_api_key/versions/latest"
	client.payloads[resource] = "sk_live_789"

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithEnvironment("prod"),
		WithDefaultProject("tastyhub-dev"),
		WithProjectMap(map[string]string{"prod": "tastyhub-prod"}),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	got, err := fetcher.Resolve(ctx, "secret://stripe_api_key")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "sk_live_789" {
		t.Fatalf("expected sk_live_789, got %s", got)
	}
}

func TestResolveHonoursVersionPins(t *testing.T) {
	ctx := context.Background()

	client := newRecordingSecretClient()
	pinned := "projects/tastyhub-dev/secrets/stripe_api_key/versions/12"
	client.payloads[pinned] = "sk_test_v12"

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithDefaultProject("tastyhub-dev"),
		WithVersionPins(map[string]string{"secret://stripe_api_key": "12"}),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	got, err := fetcher.Resolve(ctx, "secret://stripe_api_key")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "sk_test_v12" {
		t.Fatalf("expected sk_test_v12, got %s", got)
	}
	if calls := client.accessCount(pinned); calls != 1 {
		t.Fatalf("expected one fetch of the pinned version, got %d", calls)
	}
}

func TestResolveFallsBackWhenAccessDenied(t *testing.T) {
	ctx := context.Background()

	fallbackPath := writeFallbackFile(t, "secret://stripe_webhook_secret=whsec_local\n")

	client := newRecordingSecretClient()
	resource := "projects/tastyhub-dev/secrets/stripe_webhook_secret/versions/latest"
	client.failures[resource] = status.Error(codes.PermissionDenied, "denied")

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithDefaultProject("tastyhub-dev"),
		WithFallbackFile(fallbackPath),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	got, err := fetcher.Resolve(ctx, "secret://stripe_webhook_secret")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "whsec_local" {
		t.Fatalf("expected whsec_local from fallback file, got %s", got)
	}
}

func TestResolveMissingSecretDoesNotFallback(t *testing.T) {
	ctx := context.Background()

	fallbackPath := writeFallbackFile(t, "secret://stripe_webhook_secret=whsec_local\n")

	client := newRecordingSecretClient()
	resource := "projects/tastyhub-dev/secrets/stripe_webhook_secret/versions/latest"
	client.failures[resource] = status.Error(codes.NotFound, "missing")

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithDefaultProject("tastyhub-dev"),
		WithFallbackFile(fallbackPath),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	if _, err := fetcher.Resolve(ctx, "secret://stripe_webhook_secret"); err == nil {
		t.Fatal("expected error when the secret does not exist upstream")
	}
}

func TestNewFetcherWithoutCredentialsStillServesFallback(t *testing.T) {
	ctx := context.Background()

	originalFactory := secretManagerClientFactory
	secretManagerClientFactory = func(context.Context, ...option.ClientOption) (*secretmanager.Client, error) {
		return nil, errors.New("no credentials")
	}
	t.Cleanup(func() {
		secretManagerClientFactory = originalFactory
	})

	fallbackPath := writeFallbackFile(t, "secret://stripe_api_key=sk_test_local\n")

	fetcher, err := NewFetcher(ctx, WithFallbackFile(fallbackPath))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	got, err := fetcher.Resolve(ctx, "secret://stripe_api_key")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "sk_test_local" {
		t.Fatalf("expected sk_test_local, got %s", got)
	}
}

func TestInvalidateWakesSubscribers(t *testing.T) {
	ctx := context.Background()

	client := newRecordingSecretClient()
	resource := "projects/tastyhub-dev/secrets/stripe_webhook_secret/versions/latest"
	client.payloads[resource] = "whsec_abc"

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithDefaultProject("tastyhub-dev"),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	if _, err := fetcher.Resolve(ctx, "secret://stripe_webhook_secret"); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	ch, cancel := fetcher.Subscribe("secret://stripe_webhook_secret")
	defer cancel()

	fetcher.Invalidate("secret://stripe_webhook_secret")

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected an invalidation signal")
	}
}
